package percpu

import "errors"

// Sentinel errors returned by Slab's controller-side operations. Fast-path
// Push/Pop never return an error; empty/full conditions are handed to the
// caller-supplied overflow/underflow handler instead (see handlers.go).
var (
	// ErrConfigOverflow is returned by Init when the requested per-CPU
	// layout (headers plus slots for every size class) would not fit in
	// 1<<shift bytes.
	ErrConfigOverflow = errors.New("percpu: per-CPU layout exceeds slab shift")

	// ErrShiftOutOfRange is returned when a shift falls outside the
	// supported range.
	ErrShiftOutOfRange = errors.New("percpu: shift out of supported range")

	// ErrAlreadyStopped is returned by StopCpu when the CPU is already
	// stopped, and by ResizeSlabs if it observes a CPU stopped before
	// freezing it itself.
	ErrAlreadyStopped = errors.New("percpu: cpu already stopped")

	// ErrNotStopped is returned by any controller operation that
	// requires the target CPU to be stopped (GrowOtherCache,
	// ShrinkOtherCache, DrainCpu, StartCpu) when it is not. InitCpu
	// stops the CPU itself and so reports ErrAlreadyStopped instead.
	ErrNotStopped = errors.New("percpu: cpu is not stopped")

	// ErrDestroyed is returned by Destroy itself when called a second
	// time on the same Slab. No other method checks for a destroyed
	// Slab: calling Push, Pop, or a controller operation after Destroy
	// is a caller bug, not a condition this package detects, and will
	// dereference the zeroed region instead of returning this error.
	ErrDestroyed = errors.New("percpu: slab already destroyed")

	// ErrInvalidSizeClass is returned for a size class outside
	// [1, numClasses).
	ErrInvalidSizeClass = errors.New("percpu: size class out of range")

	// ErrInvalidCPU is returned for a cpu id outside [0, NumCPUs).
	ErrInvalidCPU = errors.New("percpu: cpu id out of range")
)
