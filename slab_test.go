package percpu

import (
	"runtime"
	"testing"
	"unsafe"
)

// testAlloc backs auxiliary allocations (the stopped-flag array) with
// plain Go memory; tests keep the region slice itself alive by holding
// it in a local variable for the lifetime of the test, since the
// region's address is packed into an atomic word the garbage collector
// cannot trace through (see layout.go's baseShift).
func testAlloc(bytes, align uintptr) unsafe.Pointer {
	buf := make([]byte, bytes)
	return unsafe.Pointer(&buf[0])
}

// testFree is testAlloc's paired deallocator: plain Go memory needs no
// explicit release, but New requires the two to come as a matching pair
// (see slab.go's stoppedFree).
func testFree(unsafe.Pointer) {}

// staticOracle reports a fixed cpu id regardless of which goroutine or
// real CPU calls it. Every single-threaded test in this package runs
// its mutator calls from one goroutine and only ever cares about cpu 0,
// so installing this in place of the production oracle (which queries
// the real kernel CPU id) makes those tests deterministic without
// relying on WithNumCPUs to coincidentally fold onto a single slot,
// exactly the unsafe coincidence the concurrent tests must not rely on
// (see concurrency_test.go's migratingOracle for the concurrent case).
type staticOracle struct {
	cpu, n int
}

func (o *staticOracle) currentCPU() int { return o.cpu }
func (o *staticOracle) numCPUs() int    { return o.n }

func newTestSlab(t *testing.T, numCPUs int, shift uint8, numClasses int, capacityFn CapacityFunc, opts ...Option) (*Slab, []byte) {
	t.Helper()
	size := numCPUs * subregionSize(shift)
	region := make([]byte, size)
	opts = append([]Option{WithNumCPUs(numCPUs)}, opts...)
	s, err := New(numClasses, unsafe.Pointer(&region[0]), shift, testAlloc, testFree, capacityFn, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.oracle = &staticOracle{cpu: 0, n: numCPUs}
	return s, region
}

func ptrFor(v *int) unsafe.Pointer { return unsafe.Pointer(v) }

// growStopped runs GrowOtherCache inside a StopCpu/StartCpu pair:
// GrowOtherCache requires a stopped cpu, and InitCpu restarts the cpu
// before it returns.
func growStopped(t *testing.T, s *Slab, cpu, class, n int) (int, error) {
	t.Helper()
	if err := s.StopCpu(cpu); err != nil {
		t.Fatalf("StopCpu(%d): %v", cpu, err)
	}
	grown, err := s.GrowOtherCache(cpu, class, n)
	if serr := s.StartCpu(cpu); serr != nil {
		t.Fatalf("StartCpu(%d): %v", cpu, serr)
	}
	return grown, err
}

// checkInvariants verifies I1/I2 (spec.md §8) across every (cpu, class)
// pair: begin<=current<=end, and per-CPU class intervals are disjoint.
func checkInvariants(t *testing.T, s *Slab) {
	t.Helper()
	base, shift := s.region.load()
	if base == nil {
		return
	}
	for cpu := 0; cpu < s.NumCPUs(); cpu++ {
		type iv struct{ lo, hi uint16 }
		var intervals []iv
		for class := 1; class < s.numClasses; class++ {
			h := loadHeader(getHeader(base, shift, cpu, class))
			if !(h.begin <= h.current && h.current <= h.end) {
				t.Errorf("cpu %d class %d: invariant I1 violated: %+v", cpu, class, h)
			}
			if h.capacity() > 0 {
				intervals = append(intervals, iv{h.begin, h.end})
			}
		}
		for i := range intervals {
			for j := range intervals {
				if i == j {
					continue
				}
				a, b := intervals[i], intervals[j]
				if a.lo < b.hi && b.lo < a.hi {
					t.Errorf("cpu %d: invariant I2 violated: intervals %+v and %+v overlap", cpu, a, b)
				}
			}
		}
	}
}

// Concrete scenario 1 (spec.md §8): single CPU, one class, capacity 4,
// push A/B/C, pop in LIFO order, then underflow.
func TestScenario1_PushPopLIFO(t *testing.T) {
	s, region := newTestSlab(t, 1, minShift, 2, func(class int) int { return 8 })
	defer runtime.KeepAlive(region)
	if err := s.InitCpu(0, func(int) int { return 8 }); err != nil {
		t.Fatalf("InitCpu: %v", err)
	}
	if grown, err := growStopped(t, s, 0, 1, 4); err != nil || grown != 4 {
		t.Fatalf("GrowOtherCache: grown=%d err=%v", grown, err)
	}

	var a, b, c int
	noOverflow := func(cpu, class int, p unsafe.Pointer) bool {
		t.Fatalf("unexpected overflow for cpu=%d class=%d", cpu, class)
		return false
	}
	if !s.Push(1, ptrFor(&a), noOverflow) {
		t.Fatal("push A failed")
	}
	if !s.Push(1, ptrFor(&b), noOverflow) {
		t.Fatal("push B failed")
	}
	if !s.Push(1, ptrFor(&c), noOverflow) {
		t.Fatal("push C failed")
	}
	checkInvariants(t, s)

	wantOrder := []unsafe.Pointer{ptrFor(&c), ptrFor(&b), ptrFor(&a)}
	for i, want := range wantOrder {
		got, ok := s.Pop(1, func(cpu, class int) (unsafe.Pointer, bool) {
			t.Fatalf("unexpected underflow at pop %d", i)
			return nil, false
		})
		if !ok || got != want {
			t.Fatalf("pop %d: got %v want %v", i, got, want)
		}
	}

	underflowed := false
	s.Pop(1, func(cpu, class int) (unsafe.Pointer, bool) {
		underflowed = true
		return nil, false
	})
	if !underflowed {
		t.Fatal("expected underflow handler on 4th pop")
	}
	checkInvariants(t, s)
}

// Concrete scenario 2 (spec.md §8): push until full; the third push
// into a capacity-2 class invokes the overflow handler with the
// rejected pointer.
func TestScenario2_PushOverflow(t *testing.T) {
	s, region := newTestSlab(t, 1, minShift, 2, func(int) int { return 8 })
	defer runtime.KeepAlive(region)
	if err := s.InitCpu(0, func(int) int { return 8 }); err != nil {
		t.Fatalf("InitCpu: %v", err)
	}
	if _, err := growStopped(t, s, 0, 1, 2); err != nil {
		t.Fatalf("GrowOtherCache: %v", err)
	}

	var a, b, c int
	noOverflow := func(cpu, class int, p unsafe.Pointer) bool { return false }
	if !s.Push(1, ptrFor(&a), noOverflow) {
		t.Fatal("push A failed")
	}
	if !s.Push(1, ptrFor(&b), noOverflow) {
		t.Fatal("push B failed")
	}

	var overflowed unsafe.Pointer
	s.Push(1, ptrFor(&c), func(cpu, class int, p unsafe.Pointer) bool {
		overflowed = p
		return false
	})
	if overflowed != ptrFor(&c) {
		t.Fatalf("overflow handler saw %v, want C", overflowed)
	}
	checkInvariants(t, s)
}

func TestInvalidSizeClassIsFatal(t *testing.T) {
	var fired bool
	s, region := newTestSlab(t, 1, minShift, 2, func(int) int { return 0 },
		WithFatalReporter(func(format string, args ...any) { fired = true }))
	defer runtime.KeepAlive(region)
	s.Push(0, nil, func(cpu, class int, p unsafe.Pointer) bool { return false })
	if !fired {
		t.Fatal("expected fatal reporter to fire for reserved class 0")
	}
}
