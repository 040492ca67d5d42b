// Package osmem supplies the OS-backed allocate/free/resident-query
// callbacks that package percpu consumes as external collaborators
// (spec.md §1, §6): "an allocate aligned memory callback, a free
// aligned memory callback, ... and a fatal-error reporter" for
// allocation, and "an OS-provided resident-page query" for
// MetadataMemoryUsage.
//
// On Linux, regions are backed by anonymous mmap, grounded on the
// pack's own mmap-based slab backing
// (other_examples/aethne0-bongodb__system_linux.go's AllocSlab/
// DeallocSlab, and momentics-hioload-ws's bufferpool_linux.go). On
// other platforms, regions fall back to ordinary Go-heap byte slices
// kept alive until FreeRegion or Free releases them, matching the "fallback to Go heap"
// pattern documented in that same bufferpool_linux.go.
package osmem

import "unsafe"

// AllocRegion allocates a page-aligned slab region of numCPUs×(1<<shift)
// bytes, ready to pass as percpu.New's slabRegion argument.
func AllocRegion(numCPUs int, shift uint8) (unsafe.Pointer, error) {
	return allocRegion(numCPUs * (1 << shift))
}

// FreeRegion releases a region previously returned by AllocRegion.
func FreeRegion(p unsafe.Pointer, numCPUs int, shift uint8) error {
	return freeRegion(p, numCPUs*(1<<shift))
}

// Alloc implements percpu.AllocFunc: it allocates bytes-many bytes for
// auxiliary metadata such as the slab's stopped-flag array. On Linux
// the memory comes from mmap, so it is page-aligned and any align up to
// the page size is met; bytes is rounded up to a multiple of align, and
// an align larger than the page size is not guaranteed. On other
// platforms the memory comes from the Go heap and align is not applied.
func Alloc(bytes, align uintptr) unsafe.Pointer {
	return alloc(bytes, align)
}

// Free releases memory returned by Alloc.
func Free(p unsafe.Pointer) {
	free(p)
}

// Resident implements percpu.ResidentFunc using the platform's
// resident-page query (mincore(2) on Linux).
func Resident(base unsafe.Pointer, size uintptr) uintptr {
	return resident(base, size)
}
