package vtable

import "fmt"

// Slot is a typed accessor for one entry of a binding's dispatch table. F is
// usually a named uintptr type for the function's signature.
type Slot[F ~uintptr] struct {
	b     *binding
	index int
}

// NewSlot returns the accessor for the named slot. It panics if the binding
// has no such slot.
func NewSlot[F ~uintptr](def Definition, name string) Slot[F] {
	b := def.definition()
	index, ok := b.index[name]
	if !ok {
		panic(fmt.Sprintf("vtable: binding %s has no slot %q", b.name, name))
	}
	return Slot[F]{b: b, index: index}
}

// Name returns the slot's name.
func (s Slot[F]) Name() string {
	return s.b.slots[s.index]
}

// Index returns the slot's position in the table.
func (s Slot[F]) Index() int {
	return s.index
}

func (s Slot[F]) offset() uintptr {
	return uintptr(s.index) * wordSize
}

// Get returns the current value of the slot. It works the same whether or
// not the instance has been relocated.
func (s Slot[F]) Get(rt *Runtime, inst Instance) F {
	rt.check(s.b, inst)
	return F(rt.mem.ReadWord(rt.tablePointer(s.b, inst) + s.offset()))
}

// Set overwrites the slot for inst only, relocating its table first if
// needed.
func (s Slot[F]) Set(rt *Runtime, inst Instance, fn F) {
	rt.relocate(s.b, inst)
	rt.mem.WriteWord(rt.tablePointer(s.b, inst)+s.offset(), uintptr(fn))
}

// Original returns the slot's value in the canonical table, which is what
// an override usually forwards to.
func (s Slot[F]) Original(rt *Runtime, inst Instance) F {
	table := rt.tablePointer(s.b, inst)
	if !rt.isCanonical(s.b, table) {
		table = rt.verifiedContext(s.b, inst, table).original
	}
	return F(rt.mem.ReadWord(table + s.offset()))
}
