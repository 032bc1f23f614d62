package transports

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/rzbill/seglog/internal/cursor"
	"github.com/rzbill/seglog/internal/filter"
	"github.com/rzbill/seglog/internal/runtime"
	"github.com/rzbill/seglog/pkg/seq"
)

// Local serves the log from a runtime opened in this process.
type Local struct {
	rt *runtime.Runtime
}

// NewLocal wraps rt. Close closes the runtime.
func NewLocal(rt *runtime.Runtime) *Local { return &Local{rt: rt} }

func (l *Local) Append(ctx context.Context, values [][]byte) ([]int64, error) {
	keys, err := l.rt.Log().AppendBatch(ctx, values)
	if err != nil {
		return nil, err
	}
	out := make([]int64, len(keys))
	for i, k := range keys {
		out[i] = k.Seq()
	}
	return out, nil
}

func (l *Local) Put(ctx context.Context, id int64, value []byte) error {
	return l.rt.Log().Put(ctx, id, value)
}

func (l *Local) Get(_ context.Context, id int64) ([]byte, error) {
	return l.rt.Log().Get(id)
}

func (l *Local) ReadLast(_ context.Context, count int) ([]Entry, error) {
	recs, err := l.rt.Log().ReadLast(count)
	if err != nil {
		return nil, err
	}
	return toEntries(recs), nil
}

func (l *Local) LastKey(context.Context) (int64, bool, error) {
	k, ok, err := l.rt.Log().LastKey()
	return k.Seq(), ok, err
}

func (l *Local) Scan(ctx context.Context, req ScanRequest, onEntry func(Entry) error) error {
	f, err := filter.New(req.Filter)
	if err != nil {
		return err
	}
	var start []byte
	if req.Start != nil {
		start = seq.Encode(*req.Start).Bytes()
	}
	batch := req.BatchSize
	if batch <= 0 {
		batch = l.rt.Config().ScanBatchSize
	}
	var cur *cursor.Cursor
	if req.Reverse {
		cur, err = l.rt.Log().IterateFromEnd(start, batch)
	} else {
		cur, err = l.rt.Log().IterateFrom(start, batch)
	}
	if err != nil {
		return err
	}
	defer cur.Close()

	sent := 0
	for cur.HasNext() {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, e := range toEntries(f.Apply(cur.NextBatch())) {
			if err := onEntry(e); err != nil {
				return err
			}
			sent++
			if req.Limit > 0 && sent >= req.Limit {
				return nil
			}
		}
	}
	return cur.Err()
}

func (l *Local) Truncate(ctx context.Context, before int64) error {
	return l.rt.Log().TruncateBefore(ctx, before)
}

func (l *Local) Trim(ctx context.Context, keep *int, maxBytes *int64) (int64, error) {
	switch {
	case keep != nil && maxBytes == nil:
		return l.rt.Log().TrimToCount(ctx, *keep)
	case maxBytes != nil && keep == nil:
		return l.rt.Log().TrimToMaxBytes(ctx, *maxBytes)
	default:
		return 0, errors.New("exactly one of keep or max bytes is required")
	}
}

func (l *Local) CatchUp(context.Context) (int64, error) {
	if err := l.rt.Log().CatchUp(); err != nil {
		return 0, err
	}
	return l.rt.Log().NextSeq(), nil
}

func (l *Local) Close() error { return l.rt.Close() }

func toEntries(recs []cursor.Record) []Entry {
	out := make([]Entry, 0, len(recs))
	for _, r := range recs {
		n, err := seq.Decode(r.Key)
		if err != nil {
			continue
		}
		out = append(out, Entry{Seq: n, Value: r.Value})
	}
	return out
}
