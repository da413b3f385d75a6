package vtable

import "unsafe"

// Fails to compile where pointers aren't 8 bytes.
var _ [unsafe.Sizeof(uintptr(0)) - wordSize]struct{}

// ProcessMemory accesses the memory of the current process directly. Bad
// addresses fault like any other dereference.
type ProcessMemory struct{}

func (ProcessMemory) ReadWord(addr uintptr) uintptr {
	return *(*uintptr)(unsafe.Pointer(addr))
}

func (ProcessMemory) WriteWord(addr, value uintptr) {
	*(*uintptr)(unsafe.Pointer(addr)) = value
}

func (ProcessMemory) Read(addr uintptr, buf []byte) {
	copy(buf, unsafe.Slice((*byte)(unsafe.Pointer(addr)), len(buf)))
}

func (ProcessMemory) Write(addr uintptr, buf []byte) {
	copy(unsafe.Slice((*byte)(unsafe.Pointer(addr)), len(buf)), buf)
}
