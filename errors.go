package vtable

import (
	"errors"
	"fmt"
)

// Errors returned by CustomData, and wrapped by the panics raised from the
// other operations.
var (
	ErrNotRelocated   = errors.New("dispatch table has not been relocated")
	ErrNotAligned     = errors.New("dispatch table pointer is not aligned")
	ErrNull           = errors.New("dispatch table pointer is null")
	ErrPointerInvalid = errors.New("dispatch table pointer is invalid")
	ErrNullContext    = errors.New("context record pointer is null")
	ErrInvalidMagic   = errors.New("context record is malformed (incorrect magic)")
)

var (
	// ErrTypeMismatch means the instance was relocated by a different binding.
	ErrTypeMismatch = errors.New("object is not an instance of the binding")

	ErrZeroSizeTable  = errors.New("binding has no slots")
	ErrAllocation     = errors.New("allocation failed")
	ErrModuleNotFound = errors.New("module not found")
	ErrUnsupported    = errors.New("address classification is not supported on this platform")
)

// IntegrityError is the panic value for a corrupt or mismatched instance.
// These can only come from a bad binding or a bad instance pointer.
type IntegrityError struct {
	Binding  string
	Instance Instance
	Table    uintptr
	Err      error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("vtable: %s: instance %#x (table %#x): %v", e.Binding, uintptr(e.Instance), e.Table, e.Err)
}

func (e *IntegrityError) Unwrap() error {
	return e.Err
}

// ConfigError is the panic value for a binding that can't work, such as one
// without slots or one naming a module that isn't loaded.
type ConfigError struct {
	Binding string
	Err     error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("vtable: binding %s: %v", e.Binding, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func integrityViolation(b *binding, inst Instance, table uintptr, err error) {
	panic(&IntegrityError{
		Binding:  b.name,
		Instance: inst,
		Table:    table,
		Err:      err,
	})
}

func configViolation(b *binding, err error) {
	panic(&ConfigError{Binding: b.name, Err: err})
}
