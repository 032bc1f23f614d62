package segmentlog

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/rzbill/seglog/internal/cursor"
	"github.com/rzbill/seglog/internal/kvstore"
	pebblestore "github.com/rzbill/seglog/internal/storage/pebble"
	"github.com/rzbill/seglog/pkg/dberrors"
	logpkg "github.com/rzbill/seglog/pkg/log"
	"github.com/rzbill/seglog/pkg/seq"
)

// Record is a stored log entry; Key is the 8-byte encoded sequence number.
type Record = kvstore.Record

// Options configures a log.
type Options struct {
	Path              string
	SecondaryPath     string
	Compression       bool
	Fsync             pebblestore.FsyncMode
	FsyncInterval     time.Duration
	CompactOnTruncate bool
	Metrics           pebblestore.MetricsHook
	Logger            logpkg.Logger
}

// Log is safe for concurrent use.
type Log struct {
	store  *kvstore.Store
	alloc  *seq.Allocator
	notify *notifier
	logger logpkg.Logger
}

// Open opens or creates a log for appending.
func Open(opts Options) (*Log, error) { return open(opts, pebblestore.ModePrimary) }

// OpenReadOnly opens an existing log for reading.
func OpenReadOnly(opts Options) (*Log, error) { return open(opts, pebblestore.ModeReadOnly) }

// OpenSecondary opens a replica of the log at opts.Path in opts.SecondaryPath.
func OpenSecondary(opts Options) (*Log, error) { return open(opts, pebblestore.ModeSecondary) }

// OpenMode opens the log in the given mode.
func OpenMode(opts Options, mode pebblestore.Mode) (*Log, error) { return open(opts, mode) }

func open(opts Options, mode pebblestore.Mode) (*Log, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.Nop()
	}
	logger = logger.WithComponent("segmentlog")
	store, err := kvstore.OpenMode(kvstore.Options{
		Path:              opts.Path,
		SecondaryPath:     opts.SecondaryPath,
		Compression:       opts.Compression,
		Profile:           pebblestore.ProfileLog,
		Fsync:             opts.Fsync,
		FsyncInterval:     opts.FsyncInterval,
		CompactOnTruncate: opts.CompactOnTruncate,
		Metrics:           opts.Metrics,
		Logger:            logger,
	}, mode)
	if err != nil {
		return nil, err
	}

	// Seed from the raw last key so a corrupt tail fails the open instead of
	// being skipped.
	last, ok, err := store.LastKey()
	if err != nil {
		_ = store.Close()
		return nil, dberrors.New(dberrors.KindOpen, "open", err)
	}
	next, err := seq.NextAfter(last, ok)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	store.SetKeyFilter(seq.Valid)

	logger.Info("log opened", logpkg.Str("mode", mode.String()), logpkg.Seq(next))
	return &Log{store: store, alloc: seq.NewAllocator(next), notify: newNotifier(), logger: logger}, nil
}

// NextSeq returns the sequence number the next Append would receive.
func (l *Log) NextSeq() int64 { return l.alloc.Peek() }

// Mode reports how the log was opened.
func (l *Log) Mode() pebblestore.Mode { return l.store.Mode() }

// Append stores value under a freshly allocated sequence number.
func (l *Log) Append(ctx context.Context, value []byte) (seq.Key, error) {
	k := seq.Encode(l.alloc.Next(1))
	if err := l.store.Put(ctx, k[:], value); err != nil {
		return seq.Key{}, relabel(err, "append")
	}
	l.notify.signal()
	return k, nil
}

// AppendBatch stores values under contiguous sequence numbers in one atomic
// batch and returns their keys in input order. Empty input is a no-op.
func (l *Log) AppendBatch(ctx context.Context, values [][]byte) ([]seq.Key, error) {
	if len(values) == 0 {
		return nil, nil
	}
	first := l.alloc.Next(len(values))
	keys := make([]seq.Key, len(values))
	recs := make([]Record, len(values))
	for i, v := range values {
		keys[i] = seq.Encode(first + int64(i))
		recs[i] = Record{Key: keys[i][:], Value: v}
	}
	if err := l.store.PutBatch(ctx, recs); err != nil {
		return nil, relabel(err, "append_batch")
	}
	l.notify.signal()
	return keys, nil
}

// Put writes value at an explicit sequence number, overwriting any existing
// entry. The allocator is not advanced.
func (l *Log) Put(ctx context.Context, id int64, value []byte) error {
	if id < 0 {
		return dberrors.New(dberrors.KindWrite, "put", errors.Wrapf(dberrors.ErrInvalidArgument, "negative sequence %d", id))
	}
	k := seq.Encode(id)
	if err := l.store.Put(ctx, k[:], value); err != nil {
		return relabel(err, "put")
	}
	l.notify.signal()
	return nil
}

// Get returns the value stored at id or dberrors.ErrNotFound.
func (l *Log) Get(id int64) ([]byte, error) {
	k := seq.Encode(id)
	return l.store.Get(k[:])
}

// TruncateBefore deletes every entry with a sequence number below id using a
// single range tombstone. Entries at id and above are untouched. A negative id
// encodes above every allocated key and is rejected.
func (l *Log) TruncateBefore(ctx context.Context, id int64) error {
	if id < 0 {
		return dberrors.New(dberrors.KindWrite, "truncate_before", errors.Wrapf(dberrors.ErrInvalidArgument, "negative sequence %d", id))
	}
	k := seq.Encode(id)
	if err := l.store.DeleteRange(ctx, nil, k[:]); err != nil {
		return relabel(err, "truncate_before")
	}
	l.logger.Debug("truncated", logpkg.Seq(id))
	return nil
}

// ReadLast returns up to count of the newest entries in ascending order.
func (l *Log) ReadLast(count int) ([]Record, error) {
	return l.store.ReadLast(count)
}

// LastKey returns the greatest stored sequence key, or false when empty.
func (l *Log) LastKey() (seq.Key, bool, error) {
	b, ok, err := l.store.LastKey()
	if err != nil || !ok {
		return seq.Key{}, false, err
	}
	k, err := seq.FromBytes(b)
	if err != nil {
		return seq.Key{}, false, err
	}
	return k, true, nil
}

// IterateFrom scans ascending from the first key >= start; nil starts at the
// beginning. Entries whose key is not a sequence key are skipped.
func (l *Log) IterateFrom(start []byte, batchSize int) (*cursor.Cursor, error) {
	return l.store.IterateFrom(start, batchSize)
}

// IterateFromEnd scans descending from the last key <= start; nil starts at
// the newest entry.
func (l *Log) IterateFromEnd(start []byte, batchSize int) (*cursor.Cursor, error) {
	return l.store.IterateFromEnd(start, batchSize)
}

// Scan opens a cursor with explicit options.
func (l *Log) Scan(opts cursor.Options) (*cursor.Cursor, error) {
	return l.store.Scan(opts)
}

// CatchUp makes a secondary log observe the primary's latest flushed state
// and advances the allocator past any newly visible entries.
func (l *Log) CatchUp() error {
	if err := l.store.CatchUp(); err != nil {
		return err
	}
	k, ok, err := l.LastKey()
	if err != nil {
		return dberrors.New(dberrors.KindCatchUp, "catch_up", err)
	}
	if ok {
		l.alloc.AdvanceTo(k.Seq() + 1)
	}
	l.notify.signal()
	l.logger.Debug("caught up", logpkg.Seq(l.alloc.Peek()))
	return nil
}

// Flush persists buffered appends.
func (l *Log) Flush() error { return l.store.Flush() }

// Close flushes and releases the log. Open cursors stay usable until closed.
func (l *Log) Close() error {
	return l.store.Close()
}

// relabel renames the operation on a typed error so callers see the log
// operation rather than the store primitive underneath it.
func relabel(err error, op string) error {
	var e *dberrors.Error
	if errors.As(err, &e) {
		return &dberrors.Error{Kind: e.Kind, Op: op, Err: e.Err}
	}
	return err
}
