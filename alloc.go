package vtable

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/pboyd/malloc"
)

const defaultArenaSize = 64 << 10

// arenaAllocator hands out blocks from an mmap arena. The garbage collector
// never sees these pages, which is what we want for memory a foreign object
// points into.
type arenaAllocator struct {
	*malloc.Arena
	startSize int
	mu        sync.Mutex
	initOnce  sync.Once
	initErr   error

	// Allocations by address. malloc wants the original slice back.
	live map[uintptr][]uint64
}

func newArenaAllocator(startSize int) *arenaAllocator {
	return &arenaAllocator{
		startSize: startSize,
		live:      map[uintptr][]uint64{},
	}
}

func (a *arenaAllocator) init() error {
	a.initOnce.Do(func() {
		be := malloc.MmapBackend(malloc.MmapProt(protRW))
		a.Arena = malloc.NewArena(uint64(a.startSize), malloc.Backend(be))
		if a.Arena == nil {
			a.initErr = errors.New("unable to initialize arena")
		}
	})
	return a.initErr
}

// Alloc returns size bytes rounded up to whole words. Allocating in words
// is what keeps the result 8-byte aligned.
func (a *arenaAllocator) Alloc(size int) (uintptr, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if size <= 0 {
		return 0, fmt.Errorf("invalid allocation size %d", size)
	}

	err := a.init()
	if err != nil {
		return 0, fmt.Errorf("error initializing allocator: %w", err)
	}

	words, err := malloc.MallocSlice[uint64](a.Arena, (size+wordSize-1)/wordSize)
	if err != nil {
		return 0, err
	}

	addr := uintptr(unsafe.Pointer(unsafe.SliceData(words)))
	a.live[addr] = words
	return addr, nil
}

func (a *arenaAllocator) Free(addr uintptr, size int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	words, ok := a.live[addr]
	if !ok {
		panic(fmt.Sprintf("Free called with unknown address %#x", addr))
	}
	if len(words)*wordSize < size {
		panic(fmt.Sprintf("Free called with size %d for a %d byte block", size, len(words)*wordSize))
	}

	delete(a.live, addr)
	malloc.FreeSlice(a.Arena, words)
}
