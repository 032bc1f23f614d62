package kvstore

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"

	"github.com/rzbill/seglog/internal/cursor"
	pebblestore "github.com/rzbill/seglog/internal/storage/pebble"
	"github.com/rzbill/seglog/pkg/dberrors"
	logpkg "github.com/rzbill/seglog/pkg/log"
)

// Record is a key/value pair returned by reads and scans.
type Record = cursor.Record

// Options configures a store.
type Options struct {
	// Path is the primary database directory.
	Path string
	// SecondaryPath is the replica directory for OpenSecondary.
	SecondaryPath string
	// Compression enables block compression for newly written tables.
	Compression bool
	// Profile selects primary write tuning. Defaults to the store profile.
	Profile pebblestore.Profile
	// Fsync and FsyncInterval select the WAL durability policy.
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	// CompactOnTruncate schedules a background compaction after DeleteRange.
	CompactOnTruncate bool
	// KeyFilter, when set, hides keys it rejects from every read and scan.
	KeyFilter func(key []byte) bool
	// Metrics observes engine reads and writes. Optional.
	Metrics pebblestore.MetricsHook
	// Logger is used for lifecycle and scan diagnostics. Optional.
	Logger logpkg.Logger
}

// Store is safe for concurrent use.
type Store struct {
	db     *pebblestore.DB
	opts   Options
	logger logpkg.Logger

	closeMu sync.Mutex
	closed  bool
}

// Open opens or creates the store at opts.Path for reading and writing.
func Open(opts Options) (*Store, error) {
	return open(opts, pebblestore.ModePrimary)
}

// OpenReadOnly opens an existing store without write access. It may run
// alongside a live primary.
func OpenReadOnly(opts Options) (*Store, error) {
	return open(opts, pebblestore.ModeReadOnly)
}

// OpenSecondary opens a replica of the primary at opts.Path, kept in
// opts.SecondaryPath. Call CatchUp to observe newer primary state.
func OpenSecondary(opts Options) (*Store, error) {
	return open(opts, pebblestore.ModeSecondary)
}

// OpenMode opens the store in the given mode.
func OpenMode(opts Options, mode pebblestore.Mode) (*Store, error) {
	return open(opts, mode)
}

func open(opts Options, mode pebblestore.Mode) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.Nop()
	}
	db, err := pebblestore.Open(pebblestore.Options{
		Path:          opts.Path,
		Mode:          mode,
		SecondaryPath: opts.SecondaryPath,
		Compression:   opts.Compression,
		Profile:       opts.Profile,
		Fsync:         opts.Fsync,
		FsyncInterval: opts.FsyncInterval,
		Metrics:       opts.Metrics,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}
	return &Store{db: db, opts: opts, logger: logger}, nil
}

// SetKeyFilter installs a filter applied by every later read and scan. It
// must be called before the store is shared between goroutines.
func (s *Store) SetKeyFilter(accept func(key []byte) bool) {
	s.opts.KeyFilter = accept
}

// Mode reports how the store was opened.
func (s *Store) Mode() pebblestore.Mode { return s.db.Mode() }

// acquire pins the engine for one operation.
func (s *Store) acquire(op string) (func(), error) {
	s.closeMu.Lock()
	closed := s.closed
	s.closeMu.Unlock()
	if closed || !s.db.Acquire() {
		return nil, dberrors.Closed(op)
	}
	return func() { _ = s.db.Release() }, nil
}

func (s *Store) accept(key []byte) bool {
	return s.opts.KeyFilter == nil || s.opts.KeyFilter(key)
}

// Put writes value under key.
func (s *Store) Put(ctx context.Context, key, value []byte) error {
	release, err := s.acquire("put")
	if err != nil {
		return err
	}
	defer release()
	if err := ctx.Err(); err != nil {
		return dberrors.New(dberrors.KindWrite, "put", err)
	}
	return dberrors.New(dberrors.KindWrite, "put", s.db.Set(key, value))
}

// PutBatch writes all records in one atomic batch.
func (s *Store) PutBatch(ctx context.Context, recs []Record) error {
	if len(recs) == 0 {
		return nil
	}
	release, err := s.acquire("put_batch")
	if err != nil {
		return err
	}
	defer release()
	return dberrors.New(dberrors.KindWrite, "put_batch", s.commit(ctx, func(b *pebble.Batch) error {
		for _, r := range recs {
			if err := b.Set(r.Key, r.Value, nil); err != nil {
				return err
			}
		}
		return nil
	}))
}

// commit builds and commits one batch. The caller holds a reference.
func (s *Store) commit(ctx context.Context, fill func(b *pebble.Batch) error) error {
	b, err := s.db.NewBatch()
	if err != nil {
		return err
	}
	defer b.Close()
	if err := fill(b); err != nil {
		return err
	}
	return s.db.CommitBatch(ctx, b)
}

// Get returns the value for key or dberrors.ErrNotFound.
func (s *Store) Get(key []byte) ([]byte, error) {
	release, err := s.acquire("get")
	if err != nil {
		return nil, err
	}
	defer release()
	v, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, dberrors.ErrNotFound) {
			return nil, dberrors.ErrNotFound
		}
		return nil, dberrors.New(dberrors.KindRead, "get", err)
	}
	return v, nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key []byte) error {
	release, err := s.acquire("delete")
	if err != nil {
		return err
	}
	defer release()
	if err := ctx.Err(); err != nil {
		return dberrors.New(dberrors.KindWrite, "delete", err)
	}
	return dberrors.New(dberrors.KindWrite, "delete", s.db.Delete(key))
}

// DeleteRange removes every key in [start, end) with one range tombstone.
// A nil start means the smallest possible key.
func (s *Store) DeleteRange(ctx context.Context, start, end []byte) error {
	release, err := s.acquire("delete_range")
	if err != nil {
		return err
	}
	defer release()
	if start == nil {
		start = []byte{}
	}
	if err := s.db.DeleteRange(ctx, start, end); err != nil {
		return dberrors.New(dberrors.KindWrite, "delete_range", err)
	}
	if s.opts.CompactOnTruncate && s.db.CompactRangeAsync(start, end) {
		s.logger.Debug("scheduled compaction of deleted range", logpkg.Key(end))
	}
	return nil
}

// ReadLast returns up to count of the greatest records in ascending order.
func (s *Store) ReadLast(count int) ([]Record, error) {
	if count <= 0 {
		return nil, nil
	}
	release, err := s.acquire("read_last")
	if err != nil {
		return nil, err
	}
	defer release()

	it, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, dberrors.New(dberrors.KindRead, "read_last", err)
	}
	out := make([]Record, 0, min(count, cursor.DefaultBatchSize))
	for ok := it.Last(); ok && len(out) < count; ok = it.Prev() {
		if !s.accept(it.Key()) {
			continue
		}
		out = append(out, Record{
			Key:   append([]byte(nil), it.Key()...),
			Value: append([]byte(nil), it.Value()...),
		})
	}
	err = errors.CombineErrors(it.Error(), it.Close())
	if err != nil {
		return nil, dberrors.New(dberrors.KindRead, "read_last", err)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// LastKey returns the greatest key, or false when the store is empty.
func (s *Store) LastKey() ([]byte, bool, error) {
	release, err := s.acquire("last_key")
	if err != nil {
		return nil, false, err
	}
	defer release()
	return s.lastKey()
}

func (s *Store) lastKey() ([]byte, bool, error) {
	it, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, false, dberrors.New(dberrors.KindRead, "last_key", err)
	}
	var key []byte
	for ok := it.Last(); ok; ok = it.Prev() {
		if s.accept(it.Key()) {
			key = append([]byte(nil), it.Key()...)
			break
		}
	}
	if err := errors.CombineErrors(it.Error(), it.Close()); err != nil {
		return nil, false, dberrors.New(dberrors.KindRead, "last_key", err)
	}
	return key, key != nil, nil
}

// IterateFrom scans ascending from the first key >= start. A nil start
// begins at the first key. batchSize <= 0 uses cursor.DefaultBatchSize.
func (s *Store) IterateFrom(start []byte, batchSize int) (*cursor.Cursor, error) {
	return s.Scan(cursor.Options{Start: start, BatchSize: batchSize})
}

// IterateFromEnd scans descending from the last key <= start. A nil start
// begins at the last key.
func (s *Store) IterateFromEnd(start []byte, batchSize int) (*cursor.Cursor, error) {
	return s.Scan(cursor.Options{Start: start, BatchSize: batchSize, Reverse: true})
}

// Scan opens a cursor with explicit options. The store's key filter is
// combined with opts.Accept.
func (s *Store) Scan(opts cursor.Options) (*cursor.Cursor, error) {
	if _, err := s.acquire("iterate"); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = s.logger
	}
	if s.opts.KeyFilter != nil {
		extra := opts.Accept
		opts.Accept = func(k []byte) bool {
			return s.opts.KeyFilter(k) && (extra == nil || extra(k))
		}
	}
	c, err := cursor.New(source{db: s.db}, opts)
	if err != nil {
		return nil, dberrors.New(dberrors.KindRead, "iterate", err)
	}
	return c, nil
}

// source hands a cursor the reference taken by Scan.
type source struct {
	db *pebblestore.DB
}

func (s source) NewIter() (cursor.Iterator, error) {
	it, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	return it, nil
}

func (s source) Release() error { return s.db.Release() }

// CatchUp brings a secondary store up to date with its primary.
func (s *Store) CatchUp() error {
	release, err := s.acquire("catch_up")
	if err != nil {
		return err
	}
	defer release()
	return s.db.CatchUp()
}

// Flush persists buffered writes. It is a no-op for non-primary stores.
func (s *Store) Flush() error {
	release, err := s.acquire("flush")
	if err != nil {
		return err
	}
	defer release()
	return dberrors.New(dberrors.KindWrite, "flush", s.db.Flush())
}

// Close flushes, stops background maintenance and releases the store's
// engine reference. Cursors still open keep the engine alive until they are
// closed. A second Close is a no-op.
func (s *Store) Close() error {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return nil
	}
	s.closed = true
	s.closeMu.Unlock()

	var err error
	if ferr := s.db.Flush(); ferr != nil {
		err = dberrors.New(dberrors.KindClose, "close", ferr)
	}
	s.db.CancelBackgroundWork()
	if rerr := s.db.Release(); rerr != nil && err == nil {
		err = dberrors.New(dberrors.KindClose, "close", rerr)
	}
	return err
}
