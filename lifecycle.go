package percpu

import (
	"fmt"
	"runtime"
	"unsafe"
)

// StopCpu quiesces cpu: sets its stopped flag and fences mutators off
// it (spec.md §4.4). Preconditions: cpu must not already be stopped.
//
// The fence is a software approximation of the spec's "CPU fence"
// primitive (spec.md §6 lists "an OS-provided 'fence one CPU'... or a
// software emulation" among the environmental dependencies this
// package consumes). A real fence (an IPI, or rseq's kernel-enforced
// abort) guarantees that no mutator is mid-sequence on cpu by the time
// StopCpu returns. This package cannot issue an IPI from Go, so it
// relies instead on every Push/Pop revalidating the stopped flag
// immediately before its commit store (critical.go): the yield loop
// below only shrinks the already-narrow race window between that
// revalidation and the commit, it does not close it. See DESIGN.md for
// the accepted tradeoff.
func (s *Slab) StopCpu(cpu int) error {
	if !s.validCPU(cpu) {
		return ErrInvalidCPU
	}
	if !s.stopped[cpu].v.CompareAndSwap(false, true) {
		s.fatalf("StopCpu: %v (cpu %d)", ErrAlreadyStopped, cpu)
		return ErrAlreadyStopped
	}
	s.fenceCpu(cpu)
	return nil
}

// StartCpu resumes mutators on cpu. Precondition: cpu must be stopped.
func (s *Slab) StartCpu(cpu int) error {
	if !s.validCPU(cpu) {
		return ErrInvalidCPU
	}
	if !s.stopped[cpu].v.Load() {
		s.fatalf("StartCpu: %v (cpu %d)", ErrNotStopped, cpu)
		return ErrNotStopped
	}
	s.stopped[cpu].v.Store(false)
	return nil
}

func (s *Slab) fenceCpu(cpu int) {
	s.debugf("fenceCpu: yielding for cpu %d", cpu)
	for i := 0; i < 64; i++ {
		runtime.Gosched()
	}
}

func (s *Slab) fenceAllCpus() {
	for i := 0; i < 64; i++ {
		runtime.Gosched()
	}
}

// ScopedCPUStop stops a CPU on acquisition and restarts it on every
// exit path, mirroring the reference implementation's
// ScopedSlabCpuStop helper (spec.md §4.4).
type ScopedCPUStop struct {
	s   *Slab
	cpu int
}

// ScopedStopCpu stops cpu and returns a handle whose Close restarts it.
func (s *Slab) ScopedStopCpu(cpu int) (*ScopedCPUStop, error) {
	if err := s.StopCpu(cpu); err != nil {
		return nil, err
	}
	return &ScopedCPUStop{s: s, cpu: cpu}, nil
}

// Close restarts the stopped CPU. Safe to call via defer.
func (c *ScopedCPUStop) Close() error {
	return c.s.StartCpu(c.cpu)
}

// InitCpu lazily initializes cpu's headers: every size class 1..N-1 is
// laid out with begin==current==end (empty, zero live capacity;
// capacity is granted later by GrowOtherCache). Must not be called
// concurrently with any other controller operation on cpu.
func (s *Slab) InitCpu(cpu int, capacityFn CapacityFunc) error {
	scoped, err := s.ScopedStopCpu(cpu)
	if err != nil {
		return err
	}
	defer scoped.Close()

	base, shift := s.region.load()
	return s.initCpuImpl(base, shift, cpu, capacityFn)
}

// initCpuImpl performs the actual layout and may run directly (bypassing
// ScopedStopCpu) when the caller (ResizeSlabs) has already stopped
// every CPU itself.
func (s *Slab) initCpuImpl(base unsafe.Pointer, shift uint8, cpu int, capacityFn CapacityFunc) error {
	if !s.isStopped(cpu) {
		s.fatalf("InitCpu: %v (cpu %d)", ErrNotStopped, cpu)
		return ErrNotStopped
	}

	limit := subregionSize(shift)
	idx := uint16(s.numClasses) // slots begin right after the header words

	for class := 1; class < s.numClasses; class++ {
		cap := capacityFn(class)
		if cap < 0 {
			cap = 0
		}

		if cap > 0 {
			// One extra element before begin, pointing to itself, so that
			// Pop's prefetch of current-2 is always dereferenceable even
			// when popping the last live element (spec.md §3 invariant 4).
			storeSlot(base, shift, cpu, idx, slotAddr(base, shift, cpu, idx))
			idx++
		}

		h := header{begin: idx, current: idx, end: idx}
		storeHeader(getHeader(base, shift, cpu, class), h)

		idx += uint16(cap)
		used := int(idx) * pointerSize
		if used > limit {
			err := fmt.Errorf("%w: cpu %d class %d needs %d bytes, have %d", ErrConfigOverflow, cpu, class, used, limit)
			s.fatalf("InitCpu: %v", err)
			return err
		}
	}

	s.populated[cpu].Store(true)
	return nil
}

// Populated reports whether InitCpu has ever completed for cpu.
func (s *Slab) Populated(cpu int) bool {
	if !s.validCPU(cpu) {
		return false
	}
	return s.populated[cpu].Load()
}
