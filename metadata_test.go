package percpu

import (
	"runtime"
	"testing"
	"unsafe"
)

// Invariant I7 (spec.md §8): MetadataMemoryUsage never reports more
// resident bytes than virtual bytes, and virtual accounts for both the
// slab region and the stopped-flag array.
func TestMetadataMemoryUsage(t *testing.T) {
	const numCPUs = 3
	s, region := newTestSlab(t, numCPUs, minShift, 2, func(int) int { return 4 },
		WithResidentFunc(func(base unsafe.Pointer, size uintptr) uintptr { return size / 2 }))
	defer runtime.KeepAlive(region)

	usage := s.MetadataMemoryUsage()
	wantSlab := uintptr(numCPUs) * uintptr(subregionSize(minShift))
	if usage.Virtual < wantSlab {
		t.Fatalf("Virtual = %d, want at least the slab region size %d", usage.Virtual, wantSlab)
	}
	if usage.Resident > usage.Virtual {
		t.Fatalf("Resident (%d) exceeds Virtual (%d)", usage.Resident, usage.Virtual)
	}
	if usage.Resident != wantSlab/2 {
		t.Fatalf("Resident = %d, want %d (half the slab region, per the injected ResidentFunc)", usage.Resident, wantSlab/2)
	}
}

// TestMetadataMemoryUsageAfterDestroy also verifies that Destroy frees
// the stopped-flag array through the FreeFunc paired with allocFn in
// New, not through the region's own freeFn (slab.go's stoppedFree).
func TestMetadataMemoryUsageAfterDestroy(t *testing.T) {
	const numCPUs = 1
	region := make([]byte, numCPUs*subregionSize(minShift))
	defer runtime.KeepAlive(region)

	var stoppedFreed []unsafe.Pointer
	stoppedFree := func(p unsafe.Pointer) { stoppedFreed = append(stoppedFreed, p) }

	s, err := New(2, unsafe.Pointer(&region[0]), minShift, testAlloc, stoppedFree,
		func(int) int { return 4 }, WithNumCPUs(numCPUs))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.oracle = &staticOracle{cpu: 0, n: numCPUs}

	var regionFreed []unsafe.Pointer
	s.Destroy(func(p unsafe.Pointer) { regionFreed = append(regionFreed, p) })
	if len(regionFreed) != 1 {
		t.Fatalf("Destroy freed the region %d times via regionFreeFn, want 1", len(regionFreed))
	}
	if len(stoppedFreed) != 1 {
		t.Fatalf("Destroy freed the stopped array %d times via the New-paired FreeFunc, want 1", len(stoppedFreed))
	}

	usage := s.MetadataMemoryUsage()
	if usage.Resident != 0 {
		t.Fatalf("Resident after Destroy = %d, want 0", usage.Resident)
	}
}

func TestDestroyTwiceIsFatal(t *testing.T) {
	var fired int
	s, region := newTestSlab(t, 1, minShift, 2, func(int) int { return 4 },
		WithFatalReporter(func(string, ...any) { fired++ }))
	defer runtime.KeepAlive(region)

	s.Destroy(func(unsafe.Pointer) {})
	s.Destroy(func(unsafe.Pointer) {})
	if fired != 1 {
		t.Fatalf("fatal reporter fired %d times, want exactly 1 (on the second Destroy)", fired)
	}
}
