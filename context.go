package vtable

import "fmt"

// ContextMagic tags every context record. It is "VRTMANIP" read as a little
// endian word.
const ContextMagic uint64 = 0x50494e414d545256

// Context record layout. The record is allocated separately from the block
// and the block's first word points at it.
const (
	ctxMagic    = 0 * wordSize
	ctxTypeID   = 1 * wordSize
	ctxOriginal = 2 * wordSize
	ctxPayload  = 3 * wordSize

	contextRecordSize = 4 * wordSize
)

type contextRecord struct {
	addr     uintptr
	magic    uint64
	typeID   uint64
	original uintptr
	payload  uintptr
}

func (rt *Runtime) readContext(addr uintptr) contextRecord {
	return contextRecord{
		addr:     addr,
		magic:    uint64(rt.mem.ReadWord(addr + ctxMagic)),
		typeID:   uint64(rt.mem.ReadWord(addr + ctxTypeID)),
		original: rt.mem.ReadWord(addr + ctxOriginal),
		payload:  rt.mem.ReadWord(addr + ctxPayload),
	}
}

func (rt *Runtime) writeContext(rec contextRecord) {
	rt.mem.WriteWord(rec.addr+ctxMagic, uintptr(rec.magic))
	rt.mem.WriteWord(rec.addr+ctxTypeID, uintptr(rec.typeID))
	rt.mem.WriteWord(rec.addr+ctxOriginal, rec.original)
	rt.mem.WriteWord(rec.addr+ctxPayload, rec.payload)
}

// locateContext finds the context record in front of a relocated table. It
// doesn't check the type id.
func (rt *Runtime) locateContext(b *binding, table uintptr) (contextRecord, error) {
	if table%wordSize != 0 {
		return contextRecord{}, ErrNotAligned
	}

	if table == 0 {
		return contextRecord{}, ErrNull
	}

	if b.layout == leadingSlot && table < b.layout.headerSize() {
		return contextRecord{}, ErrPointerInvalid
	}

	ctx := rt.mem.ReadWord(b.layout.contextSlot(table))
	if ctx == 0 {
		return contextRecord{}, ErrNullContext
	}

	rec := rt.readContext(ctx)
	if rec.magic != ContextMagic {
		return contextRecord{}, ErrInvalidMagic
	}

	return rec, nil
}

// verifiedContext is locateContext for callers that have no use for an
// error: any failure, including a type mismatch, panics.
func (rt *Runtime) verifiedContext(b *binding, inst Instance, table uintptr) contextRecord {
	rec, err := rt.locateContext(b, table)
	if err != nil {
		integrityViolation(b, inst, table, err)
	}

	if rec.typeID != b.id {
		integrityViolation(b, inst, table, fmt.Errorf("%w (relocated with type id %d, want %d)", ErrTypeMismatch, rec.typeID, b.id))
	}

	return rec
}
