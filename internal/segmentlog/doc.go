// Package segmentlog implements an append-friendly ordered log on Pebble.
//
// # Overview
//
// Every record is stored under the 8-byte big-endian encoding of its sequence
// number, so byte order equals append order and range scans need no index.
// Sequence numbers come from a process-local allocator seeded at open time to
// one past the greatest stored key (or 1 for an empty log).
//
//	l, _ := segmentlog.Open(segmentlog.Options{Path: "./data/log"})
//	defer l.Close()
//
//	k, _ := l.Append(ctx, []byte("hello"))
//	keys, _ := l.AppendBatch(ctx, [][]byte{a, b, c}) // one atomic batch
//
//	c, _ := l.IterateFrom(k.Bytes(), 100)
//	for c.HasNext() {
//	    for _, rec := range c.NextBatch() { _ = rec }
//	}
//	_ = c.Close()
//
//	_ = l.TruncateBefore(ctx, 10) // drops sequence numbers below 10
//
// Read-only and secondary logs (OpenReadOnly, OpenSecondary) share the same
// read surface; a secondary observes newer primary state after CatchUp.
package segmentlog
