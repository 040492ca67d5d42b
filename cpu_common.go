package percpu

import (
	"hash/fnv"
	"runtime"
)

// fallbackCPUID derives a stable-for-the-goroutine, non-authoritative
// CPU id when no kernel getcpu(2) equivalent is available, by hashing
// the calling goroutine's stack trace, the same fingerprinting trick
// the teacher codebase uses for its own CPU identifier (getCurrentCPUID
// in the retrieved slab allocator reference). It is not a substitute
// for a real CPU id: two goroutines on different OS threads can collide,
// and migration is invisible to it, which is why it is only used as a
// last resort before falling back fully to the software critical
// section's CPU-recheck-and-restart contract (critical.go).
func fallbackCPUID(n int) int {
	if n <= 0 {
		n = 1
	}
	var buf [96]byte
	k := runtime.Stack(buf[:], false)
	h := fnv.New64a()
	h.Write(buf[:k])
	return int(h.Sum64() % uint64(n))
}
