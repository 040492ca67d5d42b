package percpu

import "unsafe"

// AllocFunc allocates bytes-many bytes aligned to align, for auxiliary
// metadata such as the per-CPU stopped-flag array. It must return a
// dereferenceable, zeroed region or panic/report fatally on failure.
type AllocFunc func(bytes, align uintptr) unsafe.Pointer

// FreeFunc releases memory previously returned by an AllocFunc or by the
// slab region allocator passed to Init.
type FreeFunc func(p unsafe.Pointer)

// CapacityFunc returns the initial per-class slot budget used only for
// the Init/InitCpu layout check; it does not itself grow a class's live
// capacity (that is GrowOtherCache's job).
type CapacityFunc func(class int) int

// MaxCapacityFunc returns the maximum number of slots a class may hold
// at the given shift. Capacity requests in GrowOtherCache are clamped to
// this value.
type MaxCapacityFunc func(shift uint8, class int) int

// OverflowHandler is invoked by Push when a (cpu, class) stack is full.
// It must either absorb p (returning true) or reject it (returning
// false); a typical implementation batches a run of objects to a
// transfer cache and retries.
type OverflowHandler func(cpu, class int, p unsafe.Pointer) bool

// UnderflowHandler is invoked by Pop when a (cpu, class) stack is empty.
// It returns a pointer to hand back to the caller, or (nil, false) if
// none is available.
type UnderflowHandler func(cpu, class int) (unsafe.Pointer, bool)

// DrainHandler receives the live batch for one (cpu, class) pair during
// DrainCpu/Drain/ResizeSlabs. batch is ordered bottom-to-top of the
// stack (index 0 is the oldest live push); size is len(batch); cap is
// the class's capacity (end-begin) before the drain. The handler must
// not retain batch past the call.
type DrainHandler func(cpu, class int, batch []unsafe.Pointer, size, cap int)

// ShrinkHandler receives objects popped off the top of a (cpu, class)
// stack by ShrinkOtherCache when there isn't enough unused capacity to
// shrink without spilling live objects. batch is ordered top-of-stack
// first.
type ShrinkHandler func(class int, batch []unsafe.Pointer, count int)

// PopulatedFunc reports whether a cpu has ever been initialized
// (InitCpu called for it); ResizeSlabs uses it to decide which CPUs
// need their headers laid out in the new region and drained from the
// old one.
type PopulatedFunc func(cpu int) bool

// FatalReporter is invoked for configuration overflows and precondition
// violations (spec kinds 1 and 5): the caller decides how the failure
// surfaces. The default reporter panics.
type FatalReporter func(format string, args ...any)
