package percpu

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"unsafe"
)

// stoppedFlag is a per-CPU boolean kept on its own cache line so that
// one CPU's controller-driven stop/start never bounces another CPU's
// mutator cache line (spec.md §3 "Stopped flags").
type stoppedFlag struct {
	v atomic.Bool
	_ [60]byte // pad atomic.Bool (4 bytes) up to a 64-byte cache line
}

// Slab is a per-CPU slab cache: a fixed-size metadata region, shared by
// all logical CPUs, holding per-CPU, per-size-class stacks of cached
// object pointers. See the package doc for the fast-path contract.
//
// A Slab's fast-path methods (Push, Pop) are safe for concurrent use by
// any number of mutator goroutines. Every other method is a controller
// operation and must be serialized by the caller: at most one goroutine
// may call InitCpu, GrowOtherCache, ShrinkOtherCache, Drain, StopCpu,
// StartCpu, ResizeSlabs or Destroy on a given Slab at a time.
type Slab struct {
	numClasses int
	capacityFn CapacityFunc

	region baseShift // {base, shift}, read on every Push/Pop

	stopped   []stoppedFlag
	populated []atomic.Bool

	oracle cpuOracle

	maxCapacityFn MaxCapacityFunc
	residentFn    ResidentFunc
	logger        *slog.Logger
	debugLogging  bool
	fatal         FatalReporter

	stoppedFree FreeFunc // pairs with the allocFn used for the stopped array, released in Destroy
	destroyed   atomic.Bool
}

// New constructs a Slab over slabRegion, a pre-allocated, page-aligned
// region of numCPUs×(1<<shift) bytes supplied by the caller (spec.md
// §6, Init's slab_region argument). allocFn is used once, to allocate
// the auxiliary stopped-flag array; freeFn is its paired deallocator,
// retained and used by Destroy to release that same array. capacityFn
// supplies the initial per-class slot budget used only for the Init
// layout check (spec.md §4.4): classes start at zero live capacity and
// are grown later via GrowOtherCache.
func New(numClasses int, slabRegion unsafe.Pointer, shift uint8, allocFn AllocFunc, freeFn FreeFunc, capacityFn CapacityFunc, opts ...Option) (*Slab, error) {
	if !validShift(shift) {
		return nil, ErrShiftOutOfRange
	}
	if numClasses <= 0 {
		return nil, ErrConfigOverflow
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	oracle := newCPUOracle(cfg.cpuMode, cfg.numCPUs)
	n := oracle.numCPUs()

	if cfg.cpuMode == PhysicalCPU && cfg.numCPUs > 0 && cfg.numCPUs < runtime.NumCPU() && cfg.logger != nil {
		cfg.logger.Warn("percpu: numCPUs smaller than host parallelism in PhysicalCPU mode; "+
			"concurrent mutators on different real CPUs may alias the same slot",
			slog.Int("numCPUs", cfg.numCPUs), slog.Int("runtime.NumCPU", runtime.NumCPU()))
	}

	stoppedBytes := uintptr(n) * unsafe.Sizeof(stoppedFlag{})
	stoppedPtr := allocFn(stoppedBytes, 64)
	stopped := unsafe.Slice((*stoppedFlag)(stoppedPtr), n)

	s := &Slab{
		numClasses:    numClasses,
		capacityFn:    capacityFn,
		stopped:       stopped,
		populated:     make([]atomic.Bool, n),
		oracle:        oracle,
		maxCapacityFn: cfg.maxCapacityFn,
		residentFn:    cfg.residentFn,
		logger:        cfg.logger,
		debugLogging:  cfg.debugLogging,
		fatal:         cfg.fatal,
		stoppedFree:   freeFn,
	}
	s.region.store(slabRegion, shift)

	if err := s.checkLayout(shift, capacityFn); err != nil {
		s.fatalf("Init: %v", err)
		return nil, err
	}

	return s, nil
}

// NumCPUs returns the number of logical CPUs this Slab is sized for.
func (s *Slab) NumCPUs() int { return s.oracle.numCPUs() }

// checkLayout verifies that laying out every size class with its
// configured initial capacity would fit within 1<<shift bytes, per
// spec.md §4 ("Fails fatally if the CPU's packed layout would exceed
// 1 << shift"). It does not write anything; InitCpu performs the real
// layout when a CPU is first used.
func (s *Slab) checkLayout(shift uint8, capacityFn CapacityFunc) error {
	consumed := s.numClasses * pointerSize
	limit := subregionSize(shift)
	for class := 1; class < s.numClasses; class++ {
		cap := capacityFn(class)
		if cap <= 0 {
			continue
		}
		consumed += (cap + 1) * pointerSize // +1 for the sentinel
		if consumed > limit {
			return ErrConfigOverflow
		}
	}
	return nil
}

func (s *Slab) isStopped(cpu int) bool {
	if cpu < 0 || cpu >= len(s.stopped) {
		return true
	}
	return s.stopped[cpu].v.Load()
}

func (s *Slab) validCPU(cpu int) bool {
	return cpu >= 0 && cpu < len(s.stopped)
}

func (s *Slab) fatalf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Error("percpu: fatal", slog.String("detail", fmt.Sprintf(format, args...)))
	}
	s.fatal(format, args...)
}

func (s *Slab) debugf(format string, args ...any) {
	if s.debugLogging && s.logger != nil {
		s.logger.Debug(fmt.Sprintf(format, args...))
	}
}

func (s *Slab) warnf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(fmt.Sprintf(format, args...))
	}
}

// Destroy releases the slab region via regionFreeFn and the auxiliary
// stopped-flag array via the freeFn originally paired with it in New,
// and returns the old region's base address. The Slab must not be used
// afterwards.
func (s *Slab) Destroy(regionFreeFn FreeFunc) unsafe.Pointer {
	if !s.destroyed.CompareAndSwap(false, true) {
		s.fatalf("Destroy: %v", ErrDestroyed)
		return nil
	}
	base, _ := s.region.load()
	regionFreeFn(base)
	if len(s.stopped) > 0 {
		s.stoppedFree(unsafe.Pointer(&s.stopped[0]))
	}
	s.region.store(nil, 0)
	return base
}
