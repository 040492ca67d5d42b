package percpu

import "unsafe"

// MetadataUsage reports the slab cache's own memory footprint, per
// spec.md §4.7 and §7. It excludes the objects the cache points to,
// which belong to the transfer cache, not to the slab.
type MetadataUsage struct {
	// Virtual is NumCPUs×sizeof(stopped flag) + NumCPUs×(1<<shift):
	// everything the cache has reserved, whether resident or not.
	Virtual uintptr
	// Resident is however many of those bytes currently have a
	// physical page backing them, per the configured ResidentFunc (the
	// default counts every byte as resident; WithResidentFunc can
	// install osmem.Resident). Only the slab region is queried; the
	// stopped-flag array is not counted.
	Resident uintptr
}

// MetadataMemoryUsage computes virtual and resident byte counts for the
// slab region and the stopped-flag array.
func (s *Slab) MetadataMemoryUsage() MetadataUsage {
	base, shift := s.region.load()
	n := s.oracle.numCPUs()

	slabsSize := uintptr(n) * uintptr(subregionSize(shift))
	stoppedSize := uintptr(n) * unsafe.Sizeof(stoppedFlag{})

	var resident uintptr
	if base != nil {
		resident = s.residentFn(base, slabsSize)
	}

	return MetadataUsage{
		Virtual:  stoppedSize + slabsSize,
		Resident: resident,
	}
}
