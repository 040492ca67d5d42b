//go:build linux

package osmem

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// resident sums the resident pages covering [base, base+size) via
// mincore(2), the Go-idiomatic equivalent of tcmalloc's
// MInCore::residence (see
// _examples/original_source/tcmalloc/internal/percpu_tcmalloc.cc,
// MetadataMemoryUsage).
func resident(base unsafe.Pointer, size uintptr) uintptr {
	if base == nil || size == 0 {
		return 0
	}
	pg := uintptr(pageSize())
	start := uintptr(base) &^ (pg - 1)
	end := (uintptr(base) + size + pg - 1) &^ (pg - 1)
	span := end - start

	vec := make([]byte, span/pg)
	if _, _, errno := unix.Syscall(unix.SYS_MINCORE, start, span, uintptr(unsafe.Pointer(&vec[0]))); errno != 0 {
		return size // unknown: assume fully resident rather than under-report
	}

	var residentPages uintptr
	for i := uintptr(0); i < span/pg; i++ {
		if vec[i]&1 != 0 {
			residentPages++
		}
	}
	return residentPages * pg
}
