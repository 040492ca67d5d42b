package percpu

import "unsafe"

// GrowOtherCache grows (cpu, class)'s capacity by up to n slots, clamped
// to the configured max capacity for the slab's current shift minus
// whatever capacity the class already holds. cpu must be stopped.
// Growth only moves end; begin and current are untouched, and the
// additional slots must already have been reserved for this class at
// Init/Resize time (spec.md §4.5).
func (s *Slab) GrowOtherCache(cpu, class, n int) (int, error) {
	if !s.validCPU(cpu) {
		return 0, ErrInvalidCPU
	}
	if err := s.checkClass(class); err != nil {
		return 0, err
	}
	if !s.isStopped(cpu) {
		s.fatalf("GrowOtherCache: %v (cpu %d)", ErrNotStopped, cpu)
		return 0, ErrNotStopped
	}

	base, shift := s.region.load()
	hdrp := getHeader(base, shift, cpu, class)
	h := loadHeader(hdrp)

	maxCap := s.maxCapacityFn(shift, class)
	room := maxCap - h.capacity()
	if room < 0 {
		room = 0
	}
	grow := n
	if grow > room {
		grow = room
	}
	if grow < 0 {
		grow = 0
	}
	if grow != n {
		s.warnf("GrowOtherCache: requested %d truncated to %d (cpu %d class %d, max %d)", n, grow, cpu, class, maxCap)
	}

	h.end += uint16(grow)
	storeHeader(hdrp, h)
	return grow, nil
}

// ShrinkOtherCache shrinks (cpu, class)'s capacity by up to n slots.
// cpu must be stopped. If there is not enough unused headroom
// (end-current) to satisfy the shrink without touching live slots, the
// top len(batch) live pointers are popped first and handed to shrink,
// top-of-stack first, before end is moved (spec.md §4.5, invariant I5).
func (s *Slab) ShrinkOtherCache(cpu, class, n int, shrink ShrinkHandler) (int, error) {
	if !s.validCPU(cpu) {
		return 0, ErrInvalidCPU
	}
	if err := s.checkClass(class); err != nil {
		return 0, err
	}
	if !s.isStopped(cpu) {
		s.fatalf("ShrinkOtherCache: %v (cpu %d)", ErrNotStopped, cpu)
		return 0, ErrNotStopped
	}

	base, shift := s.region.load()
	hdrp := getHeader(base, shift, cpu, class)
	h := loadHeader(hdrp)

	unused := h.headroom()
	if unused < n && h.current != h.begin {
		pop := n - unused
		if max := int(h.current - h.begin); pop > max {
			pop = max
		}
		batch := make([]unsafe.Pointer, pop)
		for i := 0; i < pop; i++ {
			batch[i] = loadSlot(base, shift, cpu, h.current-uint16(i)-1)
		}
		shrink(class, batch, pop)
		h.current -= uint16(pop)
	}

	toShrink := n
	if room := h.headroom(); toShrink > room {
		toShrink = room
	}
	if toShrink < 0 {
		toShrink = 0
	}
	h.end -= uint16(toShrink)
	storeHeader(hdrp, h)
	return toShrink, nil
}

// drainCpuImpl hands every size class's live batch on cpu to drain and
// resets that class to zero capacity. base/shift are passed explicitly
// so ResizeSlabs can drain the *old* region after publishing a new one.
func (s *Slab) drainCpuImpl(base unsafe.Pointer, shift uint8, cpu int, drain DrainHandler) error {
	if !s.isStopped(cpu) {
		s.fatalf("DrainCpu: %v (cpu %d)", ErrNotStopped, cpu)
		return ErrNotStopped
	}
	for class := 1; class < s.numClasses; class++ {
		hdrp := getHeader(base, shift, cpu, class)
		h := loadHeader(hdrp)
		size := h.size()
		cap := h.capacity()

		batch := make([]unsafe.Pointer, size)
		for i := 0; i < size; i++ {
			batch[i] = loadSlot(base, shift, cpu, h.begin+uint16(i))
		}
		drain(cpu, class, batch, size, cap)

		h.current = h.begin
		h.end = h.begin
		storeHeader(hdrp, h)
	}
	return nil
}

// DrainCpu empties every class's cache on cpu into drain and collapses
// capacity to zero. cpu must already be stopped; Drain wraps this with
// a ScopedCPUStop for the common case.
func (s *Slab) DrainCpu(cpu int, drain DrainHandler) error {
	if !s.validCPU(cpu) {
		return ErrInvalidCPU
	}
	base, shift := s.region.load()
	return s.drainCpuImpl(base, shift, cpu, drain)
}

// Drain stops cpu, empties its caches into drain, and restarts it.
func (s *Slab) Drain(cpu int, drain DrainHandler) error {
	scoped, err := s.ScopedStopCpu(cpu)
	if err != nil {
		return err
	}
	defer scoped.Close()
	return s.DrainCpu(cpu, drain)
}
