package vtable

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"testing"

	"go.uber.org/zap/zaptest"
)

// simSpace is a fake address space made of byte buffers. It stands in for
// the foreign process as Memory, Allocator and Classifier at once.
type simSpace struct {
	regions  []*simRegion
	heapNext uintptr

	allocs     map[uintptr]int
	allocSizes []int
	frees      int
	failAlloc  bool
}

type simRegion struct {
	start    uintptr
	data     []byte
	module   string
	isModule bool
	readable bool
}

func (r *simRegion) end() uintptr {
	return r.start + uintptr(len(r.data))
}

func newSimSpace() *simSpace {
	return &simSpace{
		heapNext: 0x100000,
		allocs:   map[uintptr]int{},
	}
}

func (s *simSpace) mapRegion(r *simRegion) *simRegion {
	for _, other := range s.regions {
		if r.start < other.end() && other.start < r.end() {
			panic(fmt.Sprintf("sim: region %#x overlaps %#x", r.start, other.start))
		}
	}
	s.regions = append(s.regions, r)
	return r
}

func (s *simSpace) mapModule(name string, start uintptr, size int) *simRegion {
	return s.mapRegion(&simRegion{start: start, data: make([]byte, size), module: name, isModule: true, readable: true})
}

func (s *simSpace) mapAnon(start uintptr, size int) *simRegion {
	return s.mapRegion(&simRegion{start: start, data: make([]byte, size), readable: true})
}

func (s *simSpace) region(addr uintptr, n int) *simRegion {
	for _, r := range s.regions {
		if r.start <= addr && addr+uintptr(n) <= r.end() {
			if !r.readable {
				break
			}
			return r
		}
	}
	panic(fmt.Sprintf("sim: fault accessing %d bytes at %#x", n, addr))
}

func (s *simSpace) ReadWord(addr uintptr) uintptr {
	r := s.region(addr, wordSize)
	return uintptr(binary.LittleEndian.Uint64(r.data[addr-r.start:]))
}

func (s *simSpace) WriteWord(addr, value uintptr) {
	r := s.region(addr, wordSize)
	binary.LittleEndian.PutUint64(r.data[addr-r.start:], uint64(value))
}

func (s *simSpace) Read(addr uintptr, buf []byte) {
	r := s.region(addr, len(buf))
	copy(buf, r.data[addr-r.start:])
}

func (s *simSpace) Write(addr uintptr, buf []byte) {
	r := s.region(addr, len(buf))
	copy(r.data[addr-r.start:], buf)
}

func (s *simSpace) Alloc(size int) (uintptr, error) {
	if s.failAlloc {
		return 0, errors.New("sim: out of memory")
	}

	addr := s.heapNext
	// Leave an unmapped gap after every block so overruns fault.
	s.heapNext += uintptr((size+15)&^15) + 0x10
	s.mapAnon(addr, size)
	s.allocs[addr] = size
	s.allocSizes = append(s.allocSizes, size)
	return addr, nil
}

func (s *simSpace) Free(addr uintptr, size int) {
	got, ok := s.allocs[addr]
	if !ok {
		panic(fmt.Sprintf("sim: free of unknown block %#x", addr))
	}
	if got != size {
		panic(fmt.Sprintf("sim: block %#x freed with size %d, allocated with %d", addr, size, got))
	}

	delete(s.allocs, addr)
	s.regions = slices.DeleteFunc(s.regions, func(r *simRegion) bool { return r.start == addr })
	s.frees++
}

func (s *simSpace) ModuleBase(name string) (uintptr, error) {
	found := false
	var base uintptr
	for _, r := range s.regions {
		if r.isModule && r.module == name && (!found || r.start < base) {
			base = r.start
			found = true
		}
	}
	if !found {
		return 0, fmt.Errorf("%w: %s", ErrModuleNotFound, name)
	}
	return base, nil
}

func (s *simSpace) Classify(addr uintptr) MemoryState {
	for _, r := range s.regions {
		if r.start <= addr && addr < r.end() {
			switch {
			case !r.readable:
				return NotMapped
			case r.isModule:
				return MappedInModule
			default:
				return MappedOutsideModule
			}
		}
	}
	return NotMapped
}

// Fixture addresses. The "game" module is mapped at 0x1000 with the
// canonical table at offset 0x148, as in a real reverse engineered layout.
const (
	gameBase      = 0x1000
	gameSize      = 0x1000
	canonicalAddr = gameBase + 0x148
	typeInfoAddr  = 0x1900

	objectsBase = 0x8000
)

var canonicalSlots = []uintptr{0x1800, 0x1810, 0x1820}

type fixture struct {
	*simSpace
	rt          *Runtime
	nextObject  uintptr
	objectsArea *simRegion
}

func newFixture(t *testing.T) *fixture {
	s := newSimSpace()
	s.mapModule("game", gameBase, gameSize)
	for i, fn := range canonicalSlots {
		s.WriteWord(canonicalAddr+uintptr(i)*wordSize, fn)
	}
	s.WriteWord(canonicalAddr-wordSize, typeInfoAddr)

	f := &fixture{
		simSpace:    s,
		objectsArea: s.mapAnon(objectsBase, 0x1000),
		nextObject:  objectsBase,
		rt: New(
			WithMemory(s),
			WithAllocator(s),
			WithClassifier(s),
			WithLogger(zaptest.NewLogger(t)),
		),
	}
	return f
}

// newInstance creates a foreign object whose table pointer is table.
func (f *fixture) newInstance(table uintptr) Instance {
	inst := f.nextObject
	f.nextObject += 0x20
	f.WriteWord(inst, table)
	return Instance(inst)
}

func (f *fixture) tableOf(inst Instance) uintptr {
	return f.ReadWord(uintptr(inst))
}

func (f *fixture) slotOf(inst Instance, i int) uintptr {
	return f.ReadWord(f.tableOf(inst) + uintptr(i)*wordSize)
}

// catch runs fn and returns what it panicked with.
func catch(fn func()) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if e, ok := r.(error); ok {
			err = e
			return
		}
		err = fmt.Errorf("non-error panic: %v", r)
	}()
	fn()
	return nil
}
