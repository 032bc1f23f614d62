// Package transports abstracts how the CLI reaches a segmented log: by
// opening the data directory in-process or through a running gRPC server.
package transports

import "context"

// Entry is one log record as seen by the CLI.
type Entry struct {
	Seq   int64
	Value []byte
}

// ScanRequest describes a bounded log scan.
type ScanRequest struct {
	Start     *int64
	Reverse   bool
	BatchSize int
	Limit     int
	Filter    string
}

// LogTransport is the log surface the CLI needs.
type LogTransport interface {
	Append(ctx context.Context, values [][]byte) ([]int64, error)
	Put(ctx context.Context, id int64, value []byte) error
	Get(ctx context.Context, id int64) ([]byte, error)
	ReadLast(ctx context.Context, count int) ([]Entry, error)
	LastKey(ctx context.Context) (int64, bool, error)
	Scan(ctx context.Context, req ScanRequest, onEntry func(Entry) error) error
	Truncate(ctx context.Context, before int64) error
	// Trim applies one retention bound and returns the truncation bound.
	Trim(ctx context.Context, keep *int, maxBytes *int64) (int64, error)
	// CatchUp resyncs a secondary and returns the next sequence to be issued.
	CatchUp(ctx context.Context) (int64, error)
	Close() error
}
