//go:build !linux

package osmem

import (
	"sync"
	"unsafe"
)

// fallbackRegistry keeps a live reference to every region's backing
// slice so the garbage collector never reclaims memory percpu still
// addresses via raw unsafe.Pointer, matching the "fallback to Go heap"
// path documented in momentics-hioload-ws's bufferpool_linux.go for
// platforms without hugepage/mmap support.
var fallbackRegistry sync.Map // uintptr(base) -> []byte

func allocRegion(size int) (unsafe.Pointer, error) {
	if size <= 0 {
		size = 1
	}
	buf := make([]byte, size)
	p := unsafe.Pointer(&buf[0])
	fallbackRegistry.Store(uintptr(p), buf)
	return p, nil
}

func freeRegion(p unsafe.Pointer, _ int) error {
	fallbackRegistry.Delete(uintptr(p))
	return nil
}

func alloc(bytes, align uintptr) unsafe.Pointer {
	p, _ := allocRegion(int(bytes))
	return p
}

func free(p unsafe.Pointer) {
	_ = freeRegion(p, 0)
}
