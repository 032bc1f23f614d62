package pebblestore

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"

	"github.com/rzbill/seglog/pkg/dberrors"
	logpkg "github.com/rzbill/seglog/pkg/log"
)

// DB is a shared, reference-counted handle to one Pebble instance.
//
// The opener holds the first reference. Cursors and in-flight operations take
// their own with Acquire and give it back with Release; Pebble is closed when
// the last reference is released, so a cursor created before the owner's
// Close keeps the engine alive until it is closed too.
type DB struct {
	opts      Options
	dir       string // directory Pebble actually opened
	private   bool   // dir is a mirror owned by this handle, removed on shutdown
	writeSync bool
	metrics   MetricsHook
	logger    logpkg.Logger

	// mu is held shared around every engine call and exclusively while a
	// secondary swaps its instance during CatchUp.
	mu          sync.RWMutex
	inner       *pebble.DB
	unavailable error

	refs atomic.Int64

	bgMu     sync.Mutex
	bgClosed bool
	bgCtx    context.Context
	bgCancel context.CancelFunc
	bg       sync.WaitGroup

	shutdownOnce sync.Once
	shutdownErr  error
}

// Open opens Pebble according to opts.Mode. Failures are OpenError.
func Open(opts Options) (*DB, error) {
	if opts.Path == "" {
		return nil, dberrors.New(dberrors.KindOpen, "open", errors.New("pebble: Options.Path is required"))
	}
	if opts.Mode == ModeSecondary && opts.SecondaryPath == "" {
		return nil, dberrors.New(dberrors.KindOpen, "open", errors.New("pebble: Options.SecondaryPath is required in secondary mode"))
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.Nop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NoopMetrics{}
	}

	db := &DB{
		opts:      opts,
		writeSync: opts.Fsync == FsyncModeAlways,
		metrics:   metrics,
		logger:    logger.With(logpkg.Component("pebble"), logpkg.Str("mode", opts.Mode.String())),
	}
	db.bgCtx, db.bgCancel = context.WithCancel(context.Background())

	var err error
	switch opts.Mode {
	case ModePrimary:
		db.dir = opts.Path
		db.inner, err = openEngine(db.dir, opts, db.logger)
	case ModeReadOnly:
		err = db.openReadOnly()
	case ModeSecondary:
		db.dir = opts.SecondaryPath
		if err = syncMirror(opts.Path, db.dir); err == nil {
			db.inner, err = openEngine(db.dir, opts, db.logger)
		}
	default:
		err = errors.Newf("pebble: unknown mode %d", opts.Mode)
	}
	if err != nil {
		db.bgCancel()
		return nil, dberrors.New(dberrors.KindOpen, "open", err)
	}
	db.refs.Store(1)
	db.logger.Info("database opened", logpkg.Str("path", opts.Path), logpkg.Str("dir", db.dir))
	return db, nil
}

func openEngine(dir string, opts Options, logger logpkg.Logger) (*pebble.DB, error) {
	po, release := engineOptions(opts, logger)
	defer release()
	return pebble.Open(dir, po)
}

// openReadOnly mirrors the directory into a private sibling and opens the
// mirror, so the reader never holds the primary's directory lock and a primary
// can open before or after it. Hard-linked tables stay readable after the
// primary compacts them away. When no sibling can be created (read-only
// media) the directory is opened in place.
func (db *DB) openReadOnly() error {
	if _, err := os.Stat(db.opts.Path); err != nil {
		return errors.Wrapf(err, "read-only open %s", db.opts.Path)
	}
	parent, base := filepath.Split(filepath.Clean(db.opts.Path))
	if parent == "" {
		parent = "."
	}
	mirror, err := os.MkdirTemp(parent, "."+base+".ro-")
	if err != nil {
		db.logger.Debug("cannot create mirror, opening in place", logpkg.Err(err))
		inner, openErr := openEngine(db.opts.Path, db.opts, db.logger)
		if openErr != nil {
			return errors.CombineErrors(openErr, err)
		}
		db.dir, db.inner = db.opts.Path, inner
		return nil
	}
	if err := syncMirror(db.opts.Path, mirror); err != nil {
		_ = os.RemoveAll(mirror)
		return err
	}
	inner, err := openEngine(mirror, db.opts, db.logger)
	if err != nil {
		_ = os.RemoveAll(mirror)
		return err
	}
	db.dir, db.inner, db.private = mirror, inner, true
	return nil
}

// Mode reports how the handle was opened.
func (db *DB) Mode() Mode { return db.opts.Mode }

// Dir is the directory Pebble has open: the primary path, a read-only
// mirror, or the secondary path.
func (db *DB) Dir() string { return db.dir }

// Acquire takes a reference. It fails once the handle has been fully released.
func (db *DB) Acquire() bool {
	for {
		n := db.refs.Load()
		if n <= 0 {
			return false
		}
		if db.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Release drops a reference. The last release stops background work, closes
// Pebble and removes a private mirror; its error is returned to that caller.
func (db *DB) Release() error {
	n := db.refs.Add(-1)
	if n > 0 {
		return nil
	}
	if n < 0 {
		db.refs.Store(0)
		return nil
	}
	db.shutdownOnce.Do(func() { db.shutdownErr = db.shutdown() })
	return db.shutdownErr
}

// Refs returns the current reference count.
func (db *DB) Refs() int64 { return db.refs.Load() }

func (db *DB) shutdown() error {
	db.CancelBackgroundWork()
	db.bg.Wait()

	db.mu.Lock()
	var err error
	if db.inner != nil {
		err = db.inner.Close()
		db.inner = nil
	}
	db.mu.Unlock()

	if db.private {
		if rmErr := os.RemoveAll(db.dir); rmErr != nil {
			err = errors.CombineErrors(err, rmErr)
		}
	}
	db.logger.Info("database closed", logpkg.Str("dir", db.dir))
	return err
}

// CancelBackgroundWork stops scheduling maintenance and cancels queued work.
// A compaction already inside Pebble runs to completion. Never fails.
func (db *DB) CancelBackgroundWork() {
	db.bgMu.Lock()
	defer db.bgMu.Unlock()
	db.bgClosed = true
	db.bgCancel()
}

// engine returns the live instance with mu held shared; callers must invoke
// the returned unlock.
func (db *DB) engine(op string) (*pebble.DB, func(), error) {
	db.mu.RLock()
	if db.inner == nil {
		err := db.unavailable
		db.mu.RUnlock()
		if err != nil {
			return nil, nil, err
		}
		return nil, nil, dberrors.Closed(op)
	}
	return db.inner, db.mu.RUnlock, nil
}

func (db *DB) writeOpts() *pebble.WriteOptions {
	if db.writeSync {
		return pebble.Sync
	}
	return pebble.NoSync
}

// NewBatch creates a new batch for atomic multi-key updates.
func (db *DB) NewBatch() (*pebble.Batch, error) {
	inner, unlock, err := db.engine("new_batch")
	if err != nil {
		return nil, err
	}
	defer unlock()
	return inner.NewBatch(), nil
}

// CommitBatch commits b with the configured fsync policy. Every operation in
// b becomes visible or none does.
func (db *DB) CommitBatch(ctx context.Context, b *pebble.Batch) error {
	if b == nil {
		return errors.New("pebble: nil batch")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	_, unlock, err := db.engine("commit")
	if err != nil {
		return err
	}
	defer unlock()
	start := time.Now()
	size := b.Len()
	ops := int(b.Count())
	if err := b.Commit(db.writeOpts()); err != nil {
		return err
	}
	db.metrics.ObserveBatchCommit(time.Since(start), ops, size)
	return nil
}

// Set sets a key to a value respecting the fsync policy.
func (db *DB) Set(key, value []byte) error {
	inner, unlock, err := db.engine("set")
	if err != nil {
		return err
	}
	defer unlock()
	start := time.Now()
	if err := inner.Set(key, value, db.writeOpts()); err != nil {
		return err
	}
	db.metrics.ObserveWrite(time.Since(start), len(key)+len(value))
	return nil
}

// Delete removes a key respecting the fsync policy.
func (db *DB) Delete(key []byte) error {
	inner, unlock, err := db.engine("delete")
	if err != nil {
		return err
	}
	defer unlock()
	start := time.Now()
	if err := inner.Delete(key, db.writeOpts()); err != nil {
		return err
	}
	db.metrics.ObserveWrite(time.Since(start), len(key))
	return nil
}

// DeleteRange removes every key in [start, end) in a single atomic batch.
func (db *DB) DeleteRange(ctx context.Context, start, end []byte) error {
	b, err := db.NewBatch()
	if err != nil {
		return err
	}
	defer b.Close()
	if err := b.DeleteRange(start, end, nil); err != nil {
		return err
	}
	return db.CommitBatch(ctx, b)
}

// Get copies the value for the given key. Absent keys yield dberrors.ErrNotFound.
func (db *DB) Get(key []byte) ([]byte, error) {
	inner, unlock, err := db.engine("get")
	if err != nil {
		return nil, err
	}
	defer unlock()
	start := time.Now()
	val, closer, err := inner.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, dberrors.ErrNotFound
		}
		return nil, err
	}
	defer closer.Close()
	buf := append([]byte(nil), val...)
	db.metrics.ObserveRead(time.Since(start), len(buf))
	return buf, nil
}

// Iter is a Pebble iterator that pins the current instance until closed.
// Keys and values are only valid until the next positioning call.
type Iter struct {
	*pebble.Iterator
	unlock func()
}

// Close closes the iterator and unpins the instance.
func (it *Iter) Close() error {
	err := it.Iterator.Close()
	if it.unlock != nil {
		it.unlock()
		it.unlock = nil
	}
	return err
}

// NewIter creates an iterator with the provided options. Callers must not
// hold it across calls that may block on CatchUp.
func (db *DB) NewIter(opts *pebble.IterOptions) (*Iter, error) {
	inner, unlock, err := db.engine("iterate")
	if err != nil {
		return nil, err
	}
	it, err := inner.NewIter(opts)
	if err != nil {
		unlock()
		return nil, err
	}
	return &Iter{Iterator: it, unlock: unlock}, nil
}

// Flush persists memtables to durable storage. Read-only and secondary
// handles have nothing to flush.
func (db *DB) Flush() error {
	if db.opts.Mode != ModePrimary {
		return nil
	}
	inner, unlock, err := db.engine("flush")
	if err != nil {
		return err
	}
	defer unlock()
	return inner.Flush()
}

// CompactRange synchronously compacts [start, end).
func (db *DB) CompactRange(start, end []byte) error {
	inner, unlock, err := db.engine("compact")
	if err != nil {
		return err
	}
	defer unlock()
	return inner.Compact(start, end, true)
}

// CompactRangeAsync schedules a background compaction of [start, end) and
// reports whether it was scheduled. Nothing is scheduled on non-primary
// handles or after CancelBackgroundWork.
func (db *DB) CompactRangeAsync(start, end []byte) bool {
	if db.opts.Mode != ModePrimary {
		return false
	}
	db.bgMu.Lock()
	if db.bgClosed {
		db.bgMu.Unlock()
		return false
	}
	db.bg.Add(1)
	ctx := db.bgCtx
	db.bgMu.Unlock()

	start = append([]byte(nil), start...)
	end = append([]byte(nil), end...)
	go func() {
		defer db.bg.Done()
		if ctx.Err() != nil {
			return
		}
		if err := db.CompactRange(start, end); err != nil {
			db.logger.Warn("background compaction failed", logpkg.Err(err))
		}
	}()
	return true
}

// CatchUp resyncs a secondary with its primary's on-disk state and reopens
// it. In-flight reads finish first; reads issued meanwhile wait. On failure
// the replica stays unavailable until a later CatchUp succeeds.
func (db *DB) CatchUp() error {
	if db.opts.Mode != ModeSecondary {
		return dberrors.New(dberrors.KindCatchUp, "catch_up", errors.Newf("pebble: catch-up requires secondary mode, handle is %s", db.opts.Mode))
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.refs.Load() <= 0 {
		return dberrors.Closed("catch_up")
	}
	if db.inner != nil {
		if err := db.inner.Close(); err != nil {
			db.logger.Warn("closing stale replica", logpkg.Err(err))
		}
		db.inner = nil
	}
	err := syncMirror(db.opts.Path, db.dir)
	if err == nil {
		db.inner, err = openEngine(db.dir, db.opts, db.logger)
	}
	if err != nil {
		wrapped := dberrors.New(dberrors.KindCatchUp, "catch_up", err)
		db.unavailable = wrapped
		return wrapped
	}
	db.unavailable = nil
	db.logger.Debug("caught up with primary")
	return nil
}
