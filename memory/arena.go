// Package memory implements the byte granular arena that running programs
// allocate from.
//
// Allocation state lives entirely beside the data: one flag per arena byte,
// plus a table of live allocation sizes keyed by their starting offset so
// that Free needs only the pointer.
package memory

import (
	"log"
)

const (
	SIZE_DESKTOP  = 16000 // Arena size for the desktop profile.
	SIZE_EMBEDDED = 4096  // Arena size for the embedded profile.
)

// Arena is a fixed size region of bytes with a first-fit allocator.
type Arena struct {
	Verbose bool // Set to log allocator actions.

	data      []byte
	allocated []bool
	sizes     map[int]int
}

// NewArena creates an arena of size bytes, all free.
func NewArena(size int) (arena *Arena) {
	arena = &Arena{
		data:      make([]byte, size),
		allocated: make([]bool, size),
		sizes:     make(map[int]int),
	}
	return
}

// Size of the arena in bytes.
func (arena *Arena) Size() int {
	return len(arena.data)
}

// Reset frees all allocations and zeros the arena.
func (arena *Arena) Reset() {
	clear(arena.data)
	clear(arena.allocated)
	clear(arena.sizes)
}

// Used returns the number of bytes currently allocated.
func (arena *Arena) Used() (used int) {
	for _, size := range arena.sizes {
		used += size
	}
	return
}

// Allocate finds the lowest run of size free bytes, marks it allocated,
// and returns its offset.
func (arena *Arena) Allocate(size int) (ptr int, err error) {
	ptr = -1
	if size <= 0 || size > len(arena.allocated) {
		err = ErrOutOfMemory
		return
	}

	run := 0
	for n, used := range arena.allocated {
		if used {
			run = 0
			continue
		}
		run++
		if run == size {
			ptr = n - size + 1
			break
		}
	}

	if ptr < 0 {
		err = ErrOutOfMemory
		return
	}

	for n := ptr; n < ptr+size; n++ {
		arena.allocated[n] = true
	}
	arena.sizes[ptr] = size

	if arena.Verbose {
		log.Printf("memory: allocate %d bytes at %d", size, ptr)
	}

	return
}

// Free releases the allocation that starts at ptr.
func (arena *Arena) Free(ptr int) (err error) {
	size, ok := arena.sizes[ptr]
	if !ok {
		err = ErrNotAllocated
		return
	}

	for n := ptr; n < ptr+size; n++ {
		arena.allocated[n] = false
	}
	delete(arena.sizes, ptr)

	if arena.Verbose {
		log.Printf("memory: free %d bytes at %d", size, ptr)
	}

	return
}

// Allocated reports whether the byte at addr belongs to a live allocation.
func (arena *Arena) Allocated(addr int) bool {
	if addr < 0 || addr >= len(arena.allocated) {
		return false
	}
	return arena.allocated[addr]
}

// SizeOf returns the size of the live allocation starting at ptr.
func (arena *Arena) SizeOf(ptr int) (size int, ok bool) {
	size, ok = arena.sizes[ptr]
	return
}

// StoreByte writes value at addr, which must be allocated.
func (arena *Arena) StoreByte(addr int, value byte) (err error) {
	if !arena.Allocated(addr) {
		err = ErrNotAllocated
		return
	}
	arena.data[addr] = value
	return
}

// LoadByte reads the byte at addr, which must be allocated.
func (arena *Arena) LoadByte(addr int) (value byte, err error) {
	if !arena.Allocated(addr) {
		err = ErrNotAllocated
		return
	}
	value = arena.data[addr]
	return
}

// Peek reads the byte at addr without the allocation check.
// Out of range addresses read as zero.
func (arena *Arena) Peek(addr int) byte {
	if addr < 0 || addr >= len(arena.data) {
		return 0
	}
	return arena.data[addr]
}
