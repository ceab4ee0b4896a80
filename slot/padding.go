// padding.go: cache-line padded atomic counters
package slot

import "sync/atomic"

// cacheLineSize is the padding target. Correct on essentially every
// mainstream CPU; a mismatch only costs some extra false-sharing avoidance
// margin, never correctness.
const cacheLineSize = 64

// paddedCounter is a single atomic.Int64 padded out to its own cache line so
// that the three counters of one slot, and the counters of neighboring
// slots, never share a line under contention.
type paddedCounter struct {
	v   atomic.Int64
	_   [cacheLineSize - 8]byte
}

func (p *paddedCounter) Load() int64                 { return p.v.Load() }
func (p *paddedCounter) Store(val int64)             { p.v.Store(val) }
func (p *paddedCounter) Add(delta int64) int64       { return p.v.Add(delta) }
func (p *paddedCounter) CompareAndSwap(old, new int64) bool {
	return p.v.CompareAndSwap(old, new)
}
