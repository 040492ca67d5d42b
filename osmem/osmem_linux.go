//go:build linux

package osmem

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// regionRegistry remembers the []byte backing each mmap'd region so
// Free/FreeRegion can hand unix.Munmap a correctly-lengthed slice;
// percpu only ever sees the bare unsafe.Pointer.
var regionRegistry sync.Map // uintptr(base) -> []byte

func pageSize() int { return unix.Getpagesize() }

func roundUp(n, align int) int {
	if align <= 0 {
		return n
	}
	return (n + align - 1) &^ (align - 1)
}

// mmapAnon grounds slab-region allocation on the pack's own mmap-backed
// slab pools (other_examples/aethne0-bongodb__system_linux.go's
// AllocSlab; momentics-hioload-ws's bufferpool_linux.go).
func mmapAnon(size int) ([]byte, error) {
	if size <= 0 {
		size = pageSize()
	}
	size = roundUp(size, pageSize())
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
}

func allocRegion(size int) (unsafe.Pointer, error) {
	buf, err := mmapAnon(size)
	if err != nil {
		return nil, fmt.Errorf("osmem: mmap %d bytes: %w", size, err)
	}
	base := unsafe.Pointer(&buf[0])
	regionRegistry.Store(uintptr(base), buf)
	return base, nil
}

func freeRegion(p unsafe.Pointer, _ int) error {
	v, ok := regionRegistry.LoadAndDelete(uintptr(p))
	if !ok {
		return fmt.Errorf("osmem: free: unknown region %p", p)
	}
	return unix.Munmap(v.([]byte))
}

func alloc(bytes, align uintptr) unsafe.Pointer {
	size := roundUp(int(bytes), int(align))
	p, err := allocRegion(size)
	if err != nil {
		panic(err)
	}
	return p
}

func free(p unsafe.Pointer) {
	_ = freeRegion(p, 0)
}
