package percpu

import (
	"fmt"
	"log/slog"
	"unsafe"
)

// ResidentFunc queries the OS for the number of currently resident
// bytes within [base, base+size), for MetadataMemoryUsage (spec.md
// §4.7). The default assumes every page is resident, since a Go
// program has no portable way to ask otherwise; osmem.Resident (built
// on the mincore(2) syscall) supplies an accurate answer on Linux.
type ResidentFunc func(base unsafe.Pointer, size uintptr) uintptr

// config holds everything Init needs beyond the spec's required
// positional arguments (num_classes, alloc_fn, slab_region, capacity_fn,
// shift). Functional options configure it, the same pattern the teacher
// codebase uses for its own allocator construction.
type config struct {
	cpuMode       CPUMode
	numCPUs       int
	maxCapacityFn MaxCapacityFunc
	logger        *slog.Logger
	debugLogging  bool
	fatal         FatalReporter
	residentFn    ResidentFunc
}

func defaultConfig() config {
	return config{
		cpuMode:       PhysicalCPU,
		numCPUs:       0, // resolved to runtime.NumCPU() in New
		maxCapacityFn: defaultMaxCapacityFunc,
		logger:        slog.Default(),
		fatal:         defaultFatalReporter,
		residentFn:    defaultResidentFunc,
	}
}

func defaultResidentFunc(base unsafe.Pointer, size uintptr) uintptr {
	return size
}

func defaultMaxCapacityFunc(shift uint8, class int) int {
	// With no caller-supplied budget, a class may use the whole
	// subregion's slot count minus one slot; the header words and the
	// other classes' slots are not subtracted, so this is only a
	// ceiling, not a recommendation.
	return subregionSize(shift)/pointerSize - 1
}

func defaultFatalReporter(format string, args ...any) {
	panic("percpu: " + fmt.Sprintf(format, args...))
}

// Option configures a Slab at construction time.
type Option func(*config)

// WithCPUMode selects the CPU identity oracle's mode (spec.md §4.1).
func WithCPUMode(mode CPUMode) Option {
	return func(c *config) { c.cpuMode = mode }
}

// WithNumCPUs overrides the logical CPU count the slab is sized for.
//
// In PhysicalCPU mode, shrinking n below the host's real parallelism
// is only safe when paired with a cpuOracle that is itself injective
// across however many threads will genuinely run Push/Pop at once: the
// default oracle queries the real kernel CPU id via getcpu(2), and
// folding two genuinely-concurrent real CPUs onto the same small n
// breaks the one-mutator-per-slot invariant the whole fast path
// depends on (spec.md §5). Tests that want a small, deterministic CPU
// count should also install a deterministic test oracle rather than
// relying on this option alone with production CPU detection.
func WithNumCPUs(n int) Option {
	return func(c *config) { c.numCPUs = n }
}

// WithMaxCapacityFunc overrides the per-class capacity ceiling used by
// GrowOtherCache.
func WithMaxCapacityFunc(fn MaxCapacityFunc) Option {
	return func(c *config) { c.maxCapacityFn = fn }
}

// WithLogger sets the logger used for warnings (capacity truncation in
// GrowOtherCache, and the small-numCPUs warning in New) and fatal-path
// messages. Fast-path Push/Pop never log, regardless of this setting;
// a stopped CPU seen by Push/Pop is not logged.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDebugLogging enables debug logging of StopCpu's per-CPU fence.
// Push/Pop revalidation retries, InitCpu and ResizeSlabs are not traced.
func WithDebugLogging() Option {
	return func(c *config) { c.debugLogging = true }
}

// WithResidentFunc overrides how MetadataMemoryUsage determines the
// resident byte count of the slab region. See osmem.Resident for a
// Linux implementation backed by mincore(2).
func WithResidentFunc(fn ResidentFunc) Option {
	return func(c *config) {
		if fn != nil {
			c.residentFn = fn
		}
	}
}

// WithFatalReporter overrides how configuration overflows and
// precondition violations (spec.md §7 kinds 1 and 5) are reported. The
// default panics.
func WithFatalReporter(fn FatalReporter) Option {
	return func(c *config) {
		if fn != nil {
			c.fatal = fn
		}
	}
}
