//go:build !linux

package vtable

// ProcessClassifier is only available on Linux.
type ProcessClassifier struct{}

// NewProcessClassifier returns ErrUnsupported outside Linux.
func NewProcessClassifier(pid int) (*ProcessClassifier, error) {
	return nil, ErrUnsupported
}

func (c *ProcessClassifier) Refresh() error {
	return ErrUnsupported
}

func (c *ProcessClassifier) ModuleBase(string) (uintptr, error) {
	return 0, ErrUnsupported
}

func (c *ProcessClassifier) Classify(uintptr) MemoryState {
	return NotMapped
}

func (c *ProcessClassifier) Modules() []Module {
	return nil
}

func defaultClassifier() Classifier {
	return brokenClassifier{err: ErrUnsupported}
}
