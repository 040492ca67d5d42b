package osmem

import (
	"testing"
	"unsafe"
)

func TestAllocRegionRoundTrip(t *testing.T) {
	const numCPUs, shift = 2, 12
	base, err := AllocRegion(numCPUs, shift)
	if err != nil {
		t.Fatalf("AllocRegion: %v", err)
	}
	if base == nil {
		t.Fatal("AllocRegion returned a nil base")
	}

	mem := unsafe.Slice((*byte)(base), numCPUs*(1<<shift))
	for i := range mem {
		mem[i] = byte(i)
	}
	for i := range mem {
		if mem[i] != byte(i) {
			t.Fatalf("region not writable/readable at offset %d", i)
		}
	}

	if err := FreeRegion(base, numCPUs, shift); err != nil {
		t.Fatalf("FreeRegion: %v", err)
	}
}

func TestAllocFree(t *testing.T) {
	p := Alloc(256, 64)
	if p == nil {
		t.Fatal("Alloc returned nil")
	}
	Free(p)
}

func TestResidentWithinBounds(t *testing.T) {
	const size = 3 * 4096
	base, err := AllocRegion(1, 14) // 1<<14 == 16384, rounds to >= size
	if err != nil {
		t.Fatalf("AllocRegion: %v", err)
	}
	defer FreeRegion(base, 1, 14)

	mem := unsafe.Slice((*byte)(base), size)
	for i := range mem {
		mem[i] = 1 // touch every page so it is resident
	}

	got := Resident(base, uintptr(size))
	if got > uintptr(size) {
		t.Fatalf("Resident = %d, exceeds region size %d", got, size)
	}
}
