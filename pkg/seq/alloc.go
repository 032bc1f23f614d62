package seq

import "sync/atomic"

// Allocator hands out strictly increasing sequence numbers for one process.
type Allocator struct {
	next atomic.Int64
}

// NewAllocator returns an allocator whose first reservation starts at next.
func NewAllocator(next int64) *Allocator {
	a := &Allocator{}
	a.next.Store(next)
	return a
}

// Next reserves n contiguous numbers and returns the first; the caller owns
// [first, first+n). n <= 0 reserves nothing and returns the current position.
func (a *Allocator) Next(n int) int64 {
	if n <= 0 {
		return a.next.Load()
	}
	return a.next.Add(int64(n)) - int64(n)
}

// AdvanceTo moves the allocator forward so the next reservation starts at or
// after n. It never moves backwards.
func (a *Allocator) AdvanceTo(n int64) {
	for {
		cur := a.next.Load()
		if cur >= n || a.next.CompareAndSwap(cur, n) {
			return
		}
	}
}

// Peek returns the number the next reservation would start at.
func (a *Allocator) Peek() int64 { return a.next.Load() }

// NextAfter returns the allocator seed for a store whose greatest key is last.
// An empty store (ok == false) starts at 1.
func NextAfter(last []byte, ok bool) (int64, error) {
	if !ok {
		return 1, nil
	}
	n, err := Decode(last)
	if err != nil {
		return 0, err
	}
	return n + 1, nil
}
