package percpu

import "runtime"

// CPUMode selects how the CPU identity oracle (spec.md §4.1) resolves
// "the calling thread's CPU". It is fixed at Init.
type CPUMode uint8

const (
	// PhysicalCPU returns the kernel's logical CPU id, via getcpu(2) on
	// platforms that expose it.
	PhysicalCPU CPUMode = iota

	// VirtualCPU returns a NUMA-or-affinity-derived id, scoped to the
	// calling thread's current affinity mask rather than the whole
	// machine. Falls back to PhysicalCPU behavior where affinity
	// queries are unavailable.
	VirtualCPU
)

// cpuOracle is the only component permitted to ask the host for the
// current CPU (spec.md §4.1). Implementations live in cpu_linux.go and
// cpu_fallback.go, selected by build tag.
type cpuOracle interface {
	// currentCPU returns an id in [0, numCPUs). It must be cheap enough
	// to call on every Push/Pop slow-path attempt.
	currentCPU() int
	numCPUs() int
}

// newCPUOracle constructs the oracle for mode, scoped to n logical
// CPUs. n is normally runtime.NumCPU() or runtime.GOMAXPROCS(0); Init
// accepts it explicitly so tests can exercise small, deterministic CPU
// counts.
func newCPUOracle(mode CPUMode, n int) cpuOracle {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return newPlatformOracle(mode, n)
}
