//go:build !linux

package osmem

import "unsafe"

// resident has no portable mincore(2) equivalent outside Linux; a Go
// heap-backed region is assumed fully resident, matching
// percpu.defaultResidentFunc's documented assumption.
func resident(_ unsafe.Pointer, size uintptr) uintptr {
	return size
}
