//go:build linux

package percpu

import (
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// linuxOracle answers current-CPU queries with the kernel's own
// getcpu(2), the same syscall the rseq ABI would otherwise expose for
// free via the thread's rseq registration. Grounded on the pack's use
// of golang.org/x/sys/unix for raw syscalls and CPU/affinity
// introspection (containers-nri-plugins/pkg/topology).
type linuxOracle struct {
	mode CPUMode
	n    int
}

func newPlatformOracle(mode CPUMode, n int) cpuOracle {
	return &linuxOracle{mode: mode, n: n}
}

func (o *linuxOracle) numCPUs() int { return o.n }

func (o *linuxOracle) currentCPU() int {
	var rawCPU, rawNode uint32
	_, _, errno := unix.RawSyscall(unix.SYS_GETCPU,
		uintptr(unsafe.Pointer(&rawCPU)), uintptr(unsafe.Pointer(&rawNode)), 0)
	if errno != 0 {
		return fallbackCPUID(o.n)
	}
	c := int(rawCPU)
	if o.mode == VirtualCPU {
		c = o.scopeToAffinity(c)
	}
	if c < 0 || c >= o.n {
		// A real CPU id (or affinity-scoped index) outside [0, n) must
		// never be folded back in with modulo: doing so maps two
		// genuinely-concurrent real CPUs onto the same logical slot,
		// breaking the one-mutator-per-slot invariant (spec.md §5).
		// Degrade to the same stack-identity fallback used when the
		// syscall itself fails instead.
		return fallbackCPUID(o.n)
	}
	return c
}

// scopeToAffinity narrows a raw getcpu(2) result to the calling
// thread's current affinity mask, approximating the rseq vcpu_id the
// spec's "virtual" mode describes (spec.md §4.1): the position of cpu
// within the sorted set of CPUs the thread is allowed to run on.
func (o *linuxOracle) scopeToAffinity(cpu int) int {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil || !set.IsSet(cpu) {
		return cpu
	}
	idx := 0
	for c := 0; c < cpu && c < runtime.NumCPU(); c++ {
		if set.IsSet(c) {
			idx++
		}
	}
	return idx
}
