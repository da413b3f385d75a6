package vtable

import (
	"sync"

	"go.uber.org/zap"
)

// Memory reads and writes the address space the foreign objects live in.
// Implementations may panic on addresses that aren't mapped, the same way a
// plain dereference would.
type Memory interface {
	ReadWord(addr uintptr) uintptr
	WriteWord(addr, value uintptr)
	Read(addr uintptr, buf []byte)
	Write(addr uintptr, buf []byte)
}

// Allocator provides 8-byte aligned memory that the garbage collector
// doesn't manage.
type Allocator interface {
	Alloc(size int) (uintptr, error)
	Free(addr uintptr, size int)
}

// Runtime holds the collaborators every operation needs. The zero value is
// not usable; call New.
type Runtime struct {
	mem        Memory
	alloc      Allocator
	classifier Classifier
	log        *zap.Logger

	// Payloads referenced by live context records, keyed by handle.
	mu         sync.Mutex
	payloads   map[uintptr]any
	nextHandle uintptr
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithMemory replaces the live process memory.
func WithMemory(m Memory) Option {
	return func(rt *Runtime) {
		rt.mem = m
	}
}

// WithAllocator replaces the default arena allocator.
func WithAllocator(a Allocator) Option {
	return func(rt *Runtime) {
		rt.alloc = a
	}
}

// WithClassifier replaces the platform address classifier.
func WithClassifier(c Classifier) Option {
	return func(rt *Runtime) {
		rt.classifier = c
	}
}

// WithLogger sets the logger for this runtime.
func WithLogger(l *zap.Logger) Option {
	return func(rt *Runtime) {
		rt.log = l
	}
}

// New creates a runtime. Without options it works on the memory of the
// current process.
func New(opts ...Option) *Runtime {
	rt := &Runtime{
		payloads: map[uintptr]any{},
	}
	for _, opt := range opts {
		opt(rt)
	}

	if rt.mem == nil {
		rt.mem = ProcessMemory{}
	}
	if rt.alloc == nil {
		rt.alloc = newArenaAllocator(defaultArenaSize)
	}
	if rt.classifier == nil {
		rt.classifier = defaultClassifier()
	}
	if rt.log == nil {
		rt.log = Logger()
	}

	return rt
}

func (rt *Runtime) storePayload(v any) uintptr {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	// Handle 0 is never used so a zeroed record can't resolve to anything.
	rt.nextHandle++
	rt.payloads[rt.nextHandle] = v
	return rt.nextHandle
}

func (rt *Runtime) payload(handle uintptr) (any, bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	v, ok := rt.payloads[handle]
	return v, ok
}

func (rt *Runtime) dropPayload(handle uintptr) any {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	v := rt.payloads[handle]
	delete(rt.payloads, handle)
	return v
}

// livePayloads reports how many context records this runtime owns.
func (rt *Runtime) livePayloads() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return len(rt.payloads)
}
