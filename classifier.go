package vtable

import (
	"fmt"
	"slices"
)

// MemoryState classifies an address.
type MemoryState int

const (
	// NotMapped addresses can't be read.
	NotMapped MemoryState = iota
	// MappedOutsideModule addresses are readable but belong to no loaded
	// module, such as the heap or an arena.
	MappedOutsideModule
	// MappedInModule addresses are inside a loaded module.
	MappedInModule
)

func (s MemoryState) String() string {
	switch s {
	case NotMapped:
		return "not mapped"
	case MappedOutsideModule:
		return "mapped outside modules"
	case MappedInModule:
		return "mapped in module"
	}
	return fmt.Sprintf("MemoryState(%d)", int(s))
}

// Classifier knows where the loaded modules are. The empty module name
// refers to the main executable.
type Classifier interface {
	ModuleBase(name string) (uintptr, error)
	Classify(addr uintptr) MemoryState
}

// Module is an address range belonging to a loaded module.
type Module struct {
	Name       string
	Start, End uintptr
}

func (m Module) contains(addr uintptr) bool {
	return m.Start <= addr && addr < m.End
}

// Region is a mapped address range that isn't part of any module.
type Region struct {
	Start, End uintptr
}

func (r Region) contains(addr uintptr) bool {
	return r.Start <= addr && addr < r.End
}

// StaticClassifier classifies addresses from a fixed list of ranges.
// Addresses in none of them get the Default state.
type StaticClassifier struct {
	Modules []Module
	Regions []Region
	Default MemoryState
}

// ModuleBase returns the lowest start address among the module's ranges.
func (c *StaticClassifier) ModuleBase(name string) (uintptr, error) {
	found := false
	var base uintptr
	for _, m := range c.Modules {
		if m.Name != name {
			continue
		}
		if !found || m.Start < base {
			base = m.Start
		}
		found = true
	}

	if !found {
		return 0, fmt.Errorf("%w: %s", ErrModuleNotFound, moduleLabel(name))
	}
	return base, nil
}

func (c *StaticClassifier) Classify(addr uintptr) MemoryState {
	if slices.ContainsFunc(c.Modules, func(m Module) bool { return m.contains(addr) }) {
		return MappedInModule
	}
	if slices.ContainsFunc(c.Regions, func(r Region) bool { return r.contains(addr) }) {
		return MappedOutsideModule
	}
	return c.Default
}

// brokenClassifier stands in when the platform classifier can't be built.
// Strict bindings fail on first use with its error.
type brokenClassifier struct {
	err error
}

func (c brokenClassifier) ModuleBase(string) (uintptr, error) {
	return 0, c.err
}

func (c brokenClassifier) Classify(uintptr) MemoryState {
	return NotMapped
}
