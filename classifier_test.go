package vtable

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStaticClassifier(t *testing.T) {
	c := &StaticClassifier{
		Modules: []Module{
			{Name: "", Start: 0x400000, End: 0x410000},
			{Name: "game", Start: 0x7f0000010000, End: 0x7f0000020000},
			{Name: "game", Start: 0x7f0000000000, End: 0x7f0000010000},
		},
		Regions: []Region{
			{Start: 0x1000000, End: 0x1100000},
		},
	}

	base, err := c.ModuleBase("game")
	assert.NoError(t, err)
	assert.Equal(t, uintptr(0x7f0000000000), base)

	base, err = c.ModuleBase("")
	assert.NoError(t, err)
	assert.Equal(t, uintptr(0x400000), base)

	_, err = c.ModuleBase("other")
	assert.ErrorIs(t, err, ErrModuleNotFound)

	cases := map[string]struct {
		addr uintptr
		want MemoryState
	}{
		"main executable": {addr: 0x400010, want: MappedInModule},
		"module":          {addr: 0x7f0000018000, want: MappedInModule},
		"module end":      {addr: 0x7f0000020000, want: NotMapped},
		"heap":            {addr: 0x1000008, want: MappedOutsideModule},
		"nothing":         {addr: 0x10, want: NotMapped},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, c.Classify(tc.addr))
		})
	}

	c.Default = MappedOutsideModule
	assert.Equal(t, MappedOutsideModule, c.Classify(0x10))
}

func TestMemoryState_String(t *testing.T) {
	assert.Equal(t, "not mapped", NotMapped.String())
	assert.Equal(t, "mapped outside modules", MappedOutsideModule.String())
	assert.Equal(t, "mapped in module", MappedInModule.String())
	assert.Equal(t, "MemoryState(7)", MemoryState(7).String())
}

func TestBrokenClassifier(t *testing.T) {
	sim := newSimSpace()
	sim.mapAnon(0x8000, 0x10)
	rt := New(WithClassifier(brokenClassifier{err: ErrUnsupported}), WithMemory(sim))
	err := catch(func() { counterClass.IsRelocated(rt, 0x8000) })
	var ce *ConfigError
	assert.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, ErrUnsupported)
}
