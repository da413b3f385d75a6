package vtable

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type deleterFunc uintptr

func TestSlot(t *testing.T) {
	assert := assert.New(t)

	f := newFixture(t)
	inst := f.newInstance(canonicalAddr)
	deleter := NewSlot[deleterFunc](counterClass, "deleter")

	assert.Equal("deleter", deleter.Name())
	assert.Equal(1, deleter.Index())

	// Reading never relocates.
	assert.Equal(deleterFunc(canonicalSlots[1]), deleter.Get(f.rt, inst))
	assert.Equal(deleterFunc(canonicalSlots[1]), deleter.Original(f.rt, inst))
	assert.Empty(f.allocs)

	deleter.Set(f.rt, inst, 0x4242)
	assert.Equal(deleterFunc(0x4242), deleter.Get(f.rt, inst))
	assert.Equal(deleterFunc(canonicalSlots[1]), deleter.Original(f.rt, inst))
}

func TestSlot_TypeInfo(t *testing.T) {
	f := newFixture(t)
	inst := f.newInstance(canonicalAddr)
	update := NewSlot[uintptr](typeInfoClass, "update")

	update.Set(f.rt, inst, 0x77)
	assert.Equal(t, uintptr(0x77), update.Get(f.rt, inst))
	assert.Equal(t, canonicalSlots[2], update.Original(f.rt, inst))
	assert.Equal(t, uintptr(typeInfoAddr), f.ReadWord(f.tableOf(inst)-wordSize))
}

func TestNewSlot_Unknown(t *testing.T) {
	assert.PanicsWithValue(t, `vtable: binding Counter has no slot "missing"`, func() {
		NewSlot[uintptr](counterClass, "missing")
	})
}
