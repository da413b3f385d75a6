package vtable

import (
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"
	"unsafe"
)

const wordSize = 8

// Instance is the address of a foreign object. Its first word is the
// dispatch table pointer.
type Instance uintptr

// InstanceOf converts a pointer to a foreign object into an Instance.
func InstanceOf(p unsafe.Pointer) Instance {
	return Instance(uintptr(p))
}

// BindingConfig describes one foreign class. It comes from reverse
// engineering the module and is fixed for the life of the process.
type BindingConfig struct {
	// Name is used in errors and logs. Defaults to the custom data type.
	Name string

	// Module holds the canonical table. Empty means the main executable.
	Module string

	// Offset of the canonical table from the start of Module.
	Offset uintptr

	// DisableOffsetCheck treats any table pointer inside a loaded module as
	// canonical instead of comparing against Module+Offset. Use it for
	// classes whose subclasses share the layout but not the table.
	DisableOffsetCheck bool

	// TypeInfo is set when the word before the table is a type info
	// pointer that must be carried along with the copy.
	TypeInfo bool

	// Slots names every entry of the table, in order.
	Slots []string
}

// contextLayout selects where the context record pointer sits relative to
// a relocated table.
type contextLayout int

const (
	noLeadingSlot contextLayout = iota
	leadingSlot
)

// headerSize is the distance from the start of a relocated block to its
// table copy. The context pointer is always the first word.
func (l contextLayout) headerSize() uintptr {
	if l == leadingSlot {
		return 2 * wordSize
	}
	return wordSize
}

func (l contextLayout) blockSize(tableSize uintptr) uintptr {
	return tableSize + l.headerSize()
}

// contextSlot returns the address of the context pointer for a relocated
// table.
func (l contextLayout) contextSlot(table uintptr) uintptr {
	return table - l.headerSize()
}

var lastTypeID atomic.Uint64

type binding struct {
	id      uint64
	name    string
	module  string
	offset  uintptr
	relaxed bool
	layout  contextLayout
	slots   []string
	index   map[string]int
	newData func() any
}

func (b *binding) definition() *binding {
	return b
}

func (b *binding) tableSize() uintptr {
	return uintptr(len(b.slots)) * wordSize
}

// Definition is implemented by every Binding regardless of its custom data
// type.
type Definition interface {
	definition() *binding
}

// Binding ties a foreign class to the custom data type D stored alongside
// each relocated instance.
type Binding[D any] struct {
	binding
}

// NewBinding creates a binding. Bindings are meant to be package level
// variables. NewBinding panics if a slot name is repeated.
func NewBinding[D any](cfg BindingConfig) *Binding[D] {
	name := cfg.Name
	if name == "" {
		name = reflect.TypeFor[D]().String()
	}

	b := &Binding[D]{
		binding: binding{
			id:      lastTypeID.Add(1),
			name:    name,
			module:  cfg.Module,
			offset:  cfg.Offset,
			relaxed: cfg.DisableOffsetCheck,
			slots:   append([]string(nil), cfg.Slots...),
			index:   make(map[string]int, len(cfg.Slots)),
			newData: func() any { return new(D) },
		},
	}
	if cfg.TypeInfo {
		b.layout = leadingSlot
	}

	for i, slot := range b.slots {
		if _, ok := b.index[slot]; ok {
			panic(fmt.Sprintf("vtable: binding %s: duplicate slot %q", name, slot))
		}
		b.index[slot] = i
	}

	return b
}

// Name returns the binding's name.
func (b *Binding[D]) Name() string {
	return b.name
}

// Slots returns the slot names in table order.
func (b *Binding[D]) Slots() []string {
	return append([]string(nil), b.slots...)
}

// ValidateBindings reports bindings that will fail on first use and pairs of
// bindings that claim the same canonical table. Two classes can't share a
// table under the exact offset check, since an instance of one would be
// relocated as the other.
func ValidateBindings(defs ...Definition) error {
	type location struct {
		module string
		offset uintptr
	}

	errs := []error{}
	seen := map[location]*binding{}
	for _, def := range defs {
		b := def.definition()
		if len(b.slots) == 0 {
			errs = append(errs, &ConfigError{Binding: b.name, Err: ErrZeroSizeTable})
		}

		if b.relaxed {
			continue
		}

		loc := location{b.module, b.offset}
		if other, ok := seen[loc]; ok && other != b {
			errs = append(errs, fmt.Errorf("bindings %s and %s share table %s+%#x", other.name, b.name, moduleLabel(b.module), b.offset))
			continue
		}
		seen[loc] = b
	}

	return errors.Join(errs...)
}

func moduleLabel(module string) string {
	if module == "" {
		return "<main>"
	}
	return module
}
