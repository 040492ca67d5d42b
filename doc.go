// Package percpu implements a per-CPU slab cache for a general-purpose
// memory allocator.
//
// The cache is a fixed-size metadata region, shared by all logical CPUs,
// holding per-CPU, per-size-class stacks of pre-cached object pointers.
// Mutator threads push freed objects and pop allocations from the slab
// belonging to the CPU they are currently running on. The fast path
// takes no locks; it commits with a single compare-and-swap on the
// per-class header word, so a concurrent controller operation is
// detected and the attempt restarts instead of clobbering it. The
// cache sits between a global backing store (a transfer cache, not
// implemented here) and a thread's direct allocation path: its job is
// to absorb allocation/free traffic so the global store is contacted
// only in batches.
//
// Fast-path operations (Push, Pop) never block and never call external
// code except the caller-supplied overflow/underflow handler. Everything
// else (growing or shrinking a CPU's capacity, draining a CPU, resizing
// the whole backing region) is a controller operation: the caller must
// serialize calls to Init, InitCpu, GrowOtherCache, ShrinkOtherCache,
// Drain, StopCpu, StartCpu, ResizeSlabs and Destroy across at most one
// goroutine at a time.
//
// Object size classification, the transfer cache itself, the page heap,
// and sampling are out of scope; Slab only consumes callbacks for
// allocating and freeing the backing region, querying per-class
// capacity, draining or shrinking batches back to a transfer cache, and
// reporting fatal errors.
package percpu
