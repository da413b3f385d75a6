package vtable

import (
	"errors"
	"fmt"
)

// ErrUnknownPayload means a context record refers to custom data this
// runtime doesn't hold, usually because another Runtime relocated the
// instance.
var ErrUnknownPayload = errors.New("context record payload is not owned by this runtime")

// CustomData returns the data attached to a relocated instance.
//
// An instance that hasn't been relocated returns ErrNotRelocated, which is
// normal for objects no setter has touched yet. The other errors mean the
// table pointer doesn't lead to a context record. CustomData still panics if
// the record belongs to a different binding.
func (b *Binding[D]) CustomData(rt *Runtime, inst Instance) (*D, error) {
	table := rt.tablePointer(&b.binding, inst)
	if rt.isCanonical(&b.binding, table) {
		return nil, ErrNotRelocated
	}

	rec, err := rt.locateContext(&b.binding, table)
	if err != nil {
		return nil, err
	}

	return b.payloadOf(rt, inst, table, rec), nil
}

// CustomDataMut returns the data attached to a relocated instance for
// modification. The instance must already be relocated, normally by an
// earlier Slot.Set; anything else panics.
func (b *Binding[D]) CustomDataMut(rt *Runtime, inst Instance) *D {
	table := rt.tablePointer(&b.binding, inst)
	if rt.isCanonical(&b.binding, table) {
		integrityViolation(&b.binding, inst, table, ErrNotRelocated)
	}

	return b.payloadOf(rt, inst, table, rt.verifiedContext(&b.binding, inst, table))
}

func (b *Binding[D]) payloadOf(rt *Runtime, inst Instance, table uintptr, rec contextRecord) *D {
	if rec.typeID != b.id {
		integrityViolation(&b.binding, inst, table, fmt.Errorf("%w (relocated with type id %d, want %d)", ErrTypeMismatch, rec.typeID, b.id))
	}

	v, ok := rt.payload(rec.payload)
	if !ok {
		integrityViolation(&b.binding, inst, table, ErrUnknownPayload)
	}

	data, ok := v.(*D)
	if !ok {
		integrityViolation(&b.binding, inst, table, fmt.Errorf("%w: payload is %T", ErrTypeMismatch, v))
	}
	return data
}
