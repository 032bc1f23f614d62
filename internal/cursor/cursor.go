package cursor

import (
	"github.com/cockroachdb/errors"

	logpkg "github.com/rzbill/seglog/pkg/log"
)

// DefaultBatchSize is used when Options.BatchSize is not positive.
const DefaultBatchSize = 1000

// Record is one key/value pair copied out of the engine.
type Record struct {
	Key   []byte `json:"key"`
	Value []byte `json:"value"`
}

// Iterator is the subset of a positioned engine iterator a cursor needs.
// Key and Value are only valid until the next positioning call.
type Iterator interface {
	First() bool
	Last() bool
	SeekGE(key []byte) bool
	SeekLT(key []byte) bool
	Next() bool
	Prev() bool
	Valid() bool
	Key() []byte
	Value() []byte
	Error() error
	Close() error
}

// Source opens iterators over a live engine. Release is called exactly once,
// when the cursor is closed, to return the reference the cursor was given.
type Source interface {
	NewIter() (Iterator, error)
	Release() error
}

// Options configures a scan.
type Options struct {
	// Start is the inclusive starting key. Nil starts at the first key, or the
	// last key when Reverse is set.
	Start []byte
	// Reverse scans in descending key order.
	Reverse bool
	// BatchSize bounds the pairs read per load.
	BatchSize int
	// Accept filters keys; rejected pairs are skipped and counted.
	Accept func(key []byte) bool
	// Logger receives skipped-entry diagnostics at debug level.
	Logger logpkg.Logger
}

// Cursor is a single-owner paginated scan. It is not safe for concurrent use.
type Cursor struct {
	src     Source
	opts    Options
	logger  logpkg.Logger
	batch   int
	reverse bool

	pos      []byte // inclusive start of the next load; nil before the first
	seeded   bool
	buf      []Record
	off      int
	finished bool
	closed   bool
	skipped  int
	err      error
}

// New creates a cursor over src and loads its first page. The cursor owns
// the reference held by src; on error that reference has been released.
func New(src Source, opts Options) (*Cursor, error) {
	batch := opts.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.Nop()
	}
	c := &Cursor{
		src:     src,
		opts:    opts,
		logger:  logger,
		batch:   batch,
		reverse: opts.Reverse,
	}
	if opts.Start != nil {
		c.pos = append([]byte(nil), opts.Start...)
	}
	c.load()
	if c.err != nil {
		err := c.err
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// load replaces the buffer with the next page.
func (c *Cursor) load() {
	c.buf, c.off = c.buf[:0], 0
	it, err := c.src.NewIter()
	if err != nil {
		c.fail(err)
		return
	}
	defer func() {
		if cerr := it.Close(); cerr != nil && c.err == nil {
			c.fail(cerr)
		}
	}()

	valid := c.seek(it)
	c.seeded = true
	for valid && len(c.buf) < c.batch {
		key := it.Key()
		if c.opts.Accept != nil && !c.opts.Accept(key) {
			c.skipped++
			c.logger.Debug("skipping entry", logpkg.Key(key), logpkg.Int("width", len(key)))
		} else {
			c.buf = append(c.buf, Record{
				Key:   append([]byte(nil), key...),
				Value: append([]byte(nil), it.Value()...),
			})
		}
		valid = c.step(it)
	}
	if err := it.Error(); err != nil {
		c.buf = c.buf[:0]
		c.fail(err)
		return
	}
	if valid {
		c.pos = append(c.pos[:0], it.Key()...)
		return
	}
	c.finished = true
	c.pos = nil
}

func (c *Cursor) seek(it Iterator) bool {
	if !c.reverse {
		if c.pos == nil {
			return it.First()
		}
		return it.SeekGE(c.pos)
	}
	if c.pos == nil {
		if c.seeded {
			return false
		}
		return it.Last()
	}
	// largest key <= pos
	bound := make([]byte, len(c.pos)+1)
	copy(bound, c.pos)
	return it.SeekLT(bound)
}

func (c *Cursor) step(it Iterator) bool {
	if c.reverse {
		return it.Prev()
	}
	return it.Next()
}

func (c *Cursor) fail(err error) {
	c.err = errors.Wrap(err, "cursor load")
	c.finished = true
	c.pos = nil
}

// Next returns the next pair, loading further pages as needed. It reports
// false once the scan is exhausted, has failed, or the cursor is closed.
func (c *Cursor) Next() (Record, bool) {
	for c.off >= len(c.buf) {
		if c.finished || c.closed {
			return Record{}, false
		}
		c.load()
	}
	rec := c.buf[c.off]
	c.off++
	return rec, true
}

// NextBatch returns the unread remainder of the current page, loading one
// page first if the buffer is drained. It never loads more than one page.
func (c *Cursor) NextBatch() []Record {
	if c.closed {
		return nil
	}
	if c.off >= len(c.buf) && !c.finished {
		c.load()
	}
	if c.off >= len(c.buf) {
		c.buf, c.off = nil, 0
		return nil
	}
	out := c.buf[c.off:]
	c.buf, c.off = nil, 0
	return out
}

// HasNext reports whether buffered pairs remain or more may be loaded.
func (c *Cursor) HasNext() bool {
	if c.closed {
		return false
	}
	return c.off < len(c.buf) || !c.finished
}

// Resume returns the key of the next unread pair, or nil once exhausted.
// A new cursor started at Resume continues the scan where this one stopped.
func (c *Cursor) Resume() []byte {
	if c.closed {
		return nil
	}
	if c.off < len(c.buf) {
		return append([]byte(nil), c.buf[c.off].Key...)
	}
	if c.finished {
		return nil
	}
	return append([]byte(nil), c.pos...)
}

// Skipped returns how many pairs the key filter rejected so far.
func (c *Cursor) Skipped() int { return c.skipped }

// Err returns the error that ended the scan early, if any.
func (c *Cursor) Err() error { return c.err }

// Close drops the buffer and returns the engine reference. It is idempotent.
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.finished = true
	c.buf, c.off, c.pos = nil, 0, nil
	return c.src.Release()
}
