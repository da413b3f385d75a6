package vtable

import (
	"io"

	"go.uber.org/zap"
)

// Restore points inst back at its canonical table and releases the private
// copy, the context record and the custom data. If the custom data
// implements io.Closer it's closed first; that error is returned, but the
// instance is restored either way.
//
// Restore panics if inst isn't relocated or wasn't relocated by b. Call it
// from an overridden destructor before running the original one.
func (b *Binding[D]) Restore(rt *Runtime, inst Instance) error {
	return rt.restore(&b.binding, inst)
}

func (rt *Runtime) restore(b *binding, inst Instance) error {
	table := rt.tablePointer(b, inst)
	if rt.isCanonical(b, table) {
		integrityViolation(b, inst, table, ErrNotRelocated)
	}

	rec := rt.verifiedContext(b, inst, table)

	size := b.tableSize()
	if size == 0 {
		configViolation(b, ErrZeroSizeTable)
	}

	rt.mem.WriteWord(uintptr(inst), rec.original)

	var err error
	if closer, ok := rt.dropPayload(rec.payload).(io.Closer); ok {
		err = closer.Close()
		if err != nil {
			rt.log.Warn("closing custom data",
				zap.String("binding", b.name),
				zap.Uintptr("instance", uintptr(inst)),
				zap.Error(err),
			)
		}
	}

	// Clear the magic so a stale pointer to this record can't pass for a
	// live one if the allocator hands the memory out again.
	rt.mem.WriteWord(rec.addr+ctxMagic, 0)
	rt.alloc.Free(rec.addr, contextRecordSize)

	block := table - b.layout.headerSize()
	rt.alloc.Free(block, int(b.layout.blockSize(size)))

	rt.log.Debug("restored dispatch table",
		zap.String("binding", b.name),
		zap.Uintptr("instance", uintptr(inst)),
		zap.Uintptr("table", rec.original),
		zap.Uintptr("block", block),
	)

	return err
}
