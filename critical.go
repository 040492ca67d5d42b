package percpu

import (
	"runtime"
	"unsafe"
)

// This file implements the restartable critical section (spec.md §4.2,
// C2). Real Linux rseq registers a short instruction sequence with the
// kernel so that a migration mid-sequence aborts to a fixed label
// before any commit store becomes visible; golang.org/x/sys/unix does
// not expose rseq registration in a form a goroutine can safely use
// (the ABI is per-OS-thread, and the Go scheduler freely moves
// goroutines across OS threads between any two instructions), so this
// package always takes the spec's documented software-fallback path
// (spec.md §6): read the CPU, perform the operation speculatively, then
// re-read the CPU (and the stopped flag) immediately before the commit
// store. A mismatch means the thread migrated or the CPU was frozen
// mid-sequence; the whole attempt restarts, exactly as a genuine rseq
// abort would restart it, only the abort is driven by a revalidation
// check instead of a kernel-delivered signal.
//
// runtime.LockOSThread pins the calling goroutine to its OS thread for
// the duration of the section so that, at minimum, two concurrent
// Push/Pop calls from different goroutines never interleave on the
// same OS thread mid-sequence; it does not and cannot prevent the OS
// from migrating that thread to a different CPU, which is precisely
// the case the revalidation check exists to catch.
//
// The header commit itself is a CAS against the snapshot taken by
// loadHeader, not a plain store: it catches a controller operation
// (GrowOtherCache, ResizeSlabs, ...) touching this CPU's header in the
// window between revalidation and commit. It is defense in depth, not
// the primary correctness mechanism: the one-mutator-per-slot
// invariant that makes the slot write above safe from a concurrent
// second writer is the cpuOracle's job (spec.md §5): oracle.numCPUs()
// must never be smaller than the number of threads that can genuinely
// execute Push/Pop at once, or two callers can resolve to the same cpu
// and silently overwrite each other's storeSlot before either commits.

// Push stores p on the stack for (currentCPU, class). If the class is
// at capacity, onOverflow is invoked instead and its result returned.
func (s *Slab) Push(class int, p unsafe.Pointer, onOverflow OverflowHandler) bool {
	if err := s.checkClass(class); err != nil {
		s.fatalf("Push: %v (class %d)", err, class)
		return false
	}
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		cpu := s.oracle.currentCPU()
		if s.isStopped(cpu) {
			return onOverflow(cpu, class, p)
		}
		base, shift := s.region.load()
		hdrp := getHeader(base, shift, cpu, class)
		h := loadHeader(hdrp)
		if h.current >= h.end {
			return onOverflow(cpu, class, p)
		}

		storeSlot(base, shift, cpu, h.current, p)

		if s.isStopped(cpu) || s.oracle.currentCPU() != cpu {
			// Migrated, or the controller froze this CPU out from under
			// us, between the read above and here: restart. The slot
			// write we just made lives in the old CPU's subregion and is
			// unobserved (current wasn't bumped), so it is harmless.
			continue
		}
		newH := h
		newH.current++
		if !hdrp.CompareAndSwap(packHeader(h), packHeader(newH)) {
			// The header moved under us since loadHeader above: a
			// controller operation (GrowOtherCache, ResizeSlabs, ...)
			// touched this CPU in the narrow window between our
			// revalidation and this commit. Restart rather than
			// clobbering whatever the controller just published.
			continue
		}
		return true
	}
}

// Pop removes and returns the top pointer on the stack for
// (currentCPU, class). If the class is empty, onUnderflow is invoked
// instead and its result returned.
func (s *Slab) Pop(class int, onUnderflow UnderflowHandler) (unsafe.Pointer, bool) {
	if err := s.checkClass(class); err != nil {
		s.fatalf("Pop: %v (class %d)", err, class)
		return nil, false
	}
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		cpu := s.oracle.currentCPU()
		if s.isStopped(cpu) {
			return onUnderflow(cpu, class)
		}
		base, shift := s.region.load()
		hdrp := getHeader(base, shift, cpu, class)
		h := loadHeader(hdrp)
		if h.current <= h.begin {
			return onUnderflow(cpu, class)
		}

		// Prefetch the slot a subsequent Pop would return. At current-2
		// this is always dereferenceable: either a live pointer, or (when
		// popping the last element) the sentinel slot at begin-1, which
		// points to itself for exactly this reason (spec.md §3 invariant
		// 4). Go has no portable prefetch intrinsic; the load itself is
		// the closest available approximation and is cheap enough that
		// dropping it would only be a minor pessimization, not a
		// correctness change.
		_ = loadSlot(base, shift, cpu, h.current-2)

		p := loadSlot(base, shift, cpu, h.current-1)

		if s.isStopped(cpu) || s.oracle.currentCPU() != cpu {
			continue
		}
		newH := h
		newH.current--
		if !hdrp.CompareAndSwap(packHeader(h), packHeader(newH)) {
			continue
		}
		return p, true
	}
}

func (s *Slab) checkClass(class int) error {
	if class <= 0 || class >= s.numClasses {
		return ErrInvalidSizeClass
	}
	return nil
}
