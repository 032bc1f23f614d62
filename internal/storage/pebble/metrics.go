package pebblestore

import (
	"sync/atomic"
	"time"
)

// MetricsHook is a minimal hook surface for storage observations.
type MetricsHook interface {
	ObserveWrite(elapsed time.Duration, bytes int)
	ObserveRead(elapsed time.Duration, bytes int)
	ObserveBatchCommit(elapsed time.Duration, numOps int, bytes int)
}

// NoopMetrics is used when no metrics hook is provided.
type NoopMetrics struct{}

func (NoopMetrics) ObserveWrite(time.Duration, int)            {}
func (NoopMetrics) ObserveRead(time.Duration, int)             {}
func (NoopMetrics) ObserveBatchCommit(time.Duration, int, int) {}

// Counters is a lock-free MetricsHook that accumulates totals.
type Counters struct {
	writes       atomic.Int64
	writeBytes   atomic.Int64
	reads        atomic.Int64
	readBytes    atomic.Int64
	batches      atomic.Int64
	batchOps     atomic.Int64
	batchBytes   atomic.Int64
	batchNanos   atomic.Int64
	writeNanos   atomic.Int64
	readNanosSum atomic.Int64
}

func (c *Counters) ObserveWrite(d time.Duration, bytes int) {
	c.writes.Add(1)
	c.writeBytes.Add(int64(bytes))
	c.writeNanos.Add(int64(d))
}

func (c *Counters) ObserveRead(d time.Duration, bytes int) {
	c.reads.Add(1)
	c.readBytes.Add(int64(bytes))
	c.readNanosSum.Add(int64(d))
}

func (c *Counters) ObserveBatchCommit(d time.Duration, numOps int, bytes int) {
	c.batches.Add(1)
	c.batchOps.Add(int64(numOps))
	c.batchBytes.Add(int64(bytes))
	c.batchNanos.Add(int64(d))
}

// Snapshot returns the current totals keyed by metric name.
func (c *Counters) Snapshot() map[string]int64 {
	return map[string]int64{
		"writes":             c.writes.Load(),
		"write_bytes":        c.writeBytes.Load(),
		"write_nanos":        c.writeNanos.Load(),
		"reads":              c.reads.Load(),
		"read_bytes":         c.readBytes.Load(),
		"read_nanos":         c.readNanosSum.Load(),
		"batch_commits":      c.batches.Load(),
		"batch_ops":          c.batchOps.Load(),
		"batch_bytes":        c.batchBytes.Load(),
		"batch_commit_nanos": c.batchNanos.Load(),
	}
}
