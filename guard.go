package vtable

import (
	"fmt"

	"go.uber.org/zap"
)

// tablePointer reads the dispatch table pointer of inst.
func (rt *Runtime) tablePointer(b *binding, inst Instance) uintptr {
	if inst == 0 {
		integrityViolation(b, inst, 0, ErrNull)
	}
	if uintptr(inst)%wordSize != 0 {
		integrityViolation(b, inst, 0, ErrNotAligned)
	}
	return rt.mem.ReadWord(uintptr(inst))
}

// isCanonical reports whether table is still the class's shared table and
// so has not been relocated.
func (rt *Runtime) isCanonical(b *binding, table uintptr) bool {
	ok, err := rt.canonical(b, table)
	if err != nil {
		configViolation(b, err)
	}
	return ok
}

// canonical is isCanonical for callers that report a missing module
// instead of panicking.
func (rt *Runtime) canonical(b *binding, table uintptr) (bool, error) {
	if b.relaxed {
		return rt.classifier.Classify(table) != MappedOutsideModule, nil
	}

	base, err := rt.classifier.ModuleBase(b.module)
	if err != nil {
		return false, err
	}
	return table == base+b.offset, nil
}

// relocate gives inst a private copy of its table if it doesn't already
// have one. It reports whether a copy was made.
func (rt *Runtime) relocate(b *binding, inst Instance) bool {
	table := rt.tablePointer(b, inst)
	if table%wordSize != 0 {
		integrityViolation(b, inst, table, ErrNotAligned)
	}
	if table == 0 {
		integrityViolation(b, inst, table, ErrNull)
	}

	if !rt.isCanonical(b, table) {
		rt.verifiedContext(b, inst, table)
		return false
	}

	size := b.tableSize()
	if size == 0 {
		configViolation(b, ErrZeroSizeTable)
	}
	blockSize := b.layout.blockSize(size)

	block, err := rt.alloc.Alloc(int(blockSize))
	if err != nil {
		integrityViolation(b, inst, table, fmt.Errorf("%w: %w", ErrAllocation, err))
	}

	ctx, err := rt.alloc.Alloc(contextRecordSize)
	if err != nil {
		rt.alloc.Free(block, int(blockSize))
		integrityViolation(b, inst, table, fmt.Errorf("%w: %w", ErrAllocation, err))
	}

	rt.writeContext(contextRecord{
		addr:     ctx,
		magic:    ContextMagic,
		typeID:   b.id,
		original: table,
		payload:  rt.storePayload(b.newData()),
	})
	rt.mem.WriteWord(block, ctx)

	if b.layout == leadingSlot {
		rt.mem.WriteWord(block+wordSize, rt.mem.ReadWord(table-wordSize))
	}

	copied := block + b.layout.headerSize()
	buf := make([]byte, size)
	rt.mem.Read(table, buf)
	rt.mem.Write(copied, buf)

	rt.mem.WriteWord(uintptr(inst), copied)

	rt.log.Debug("relocated dispatch table",
		zap.String("binding", b.name),
		zap.Uintptr("instance", uintptr(inst)),
		zap.Uintptr("table", table),
		zap.Uintptr("block", block),
		zap.Int("size", int(blockSize)),
	)

	return true
}

// check validates inst without relocating it. A canonical table has nothing
// to validate.
func (rt *Runtime) check(b *binding, inst Instance) {
	table := rt.tablePointer(b, inst)
	if rt.isCanonical(b, table) {
		return
	}
	rt.verifiedContext(b, inst, table)
}

// Relocate makes sure inst has a private dispatch table, copying the
// canonical one if needed. It returns true if this call made the copy.
//
// Relocate panics with an *IntegrityError if the instance's table is
// neither canonical nor a table relocated by this binding, and with a
// *ConfigError if the binding can't be used.
func (b *Binding[D]) Relocate(rt *Runtime, inst Instance) bool {
	return rt.relocate(&b.binding, inst)
}

// Check validates inst without relocating it. It panics under the same
// conditions as Relocate.
func (b *Binding[D]) Check(rt *Runtime, inst Instance) {
	rt.check(&b.binding, inst)
}

// IsRelocated reports whether inst no longer points at the canonical table.
// It doesn't validate the table.
func (b *Binding[D]) IsRelocated(rt *Runtime, inst Instance) bool {
	return !rt.isCanonical(&b.binding, rt.tablePointer(&b.binding, inst))
}
