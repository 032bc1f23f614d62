package segmentlog

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/rzbill/seglog/pkg/dberrors"
	logpkg "github.com/rzbill/seglog/pkg/log"
	"github.com/rzbill/seglog/pkg/seq"
)

const retentionScanBatch = 1024

// TrimToCount keeps the newest keep entries and truncates everything older.
// It returns the truncation bound, or 0 when nothing had to go.
func (l *Log) TrimToCount(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		return 0, dberrors.New(dberrors.KindWrite, "trim", errors.Wrapf(dberrors.ErrInvalidArgument, "negative keep %d", keep))
	}
	last, ok, err := l.LastKey()
	if err != nil || !ok {
		return 0, err
	}
	if keep == 0 {
		return l.trimBefore(ctx, last.Seq()+1)
	}
	cur, err := l.IterateFromEnd(nil, retentionScanBatch)
	if err != nil {
		return 0, err
	}
	defer cur.Close()
	seen := 0
	for rec, ok := cur.Next(); ok; rec, ok = cur.Next() {
		if seen++; seen == keep {
			n, err := seq.Decode(rec.Key)
			if err != nil {
				return 0, err
			}
			return l.trimBefore(ctx, n)
		}
	}
	return 0, cur.Err()
}

// TrimToMaxBytes truncates the oldest entries until the remaining values
// total at most maxBytes. It returns the truncation bound, or 0 when the log
// already fits.
func (l *Log) TrimToMaxBytes(ctx context.Context, maxBytes int64) (int64, error) {
	if maxBytes < 0 {
		return 0, dberrors.New(dberrors.KindWrite, "trim", errors.Wrapf(dberrors.ErrInvalidArgument, "negative max bytes %d", maxBytes))
	}
	cur, err := l.IterateFromEnd(nil, retentionScanBatch)
	if err != nil {
		return 0, err
	}
	defer cur.Close()
	var total int64
	for rec, ok := cur.Next(); ok; rec, ok = cur.Next() {
		total += int64(len(rec.Value))
		if total > maxBytes {
			n, err := seq.Decode(rec.Key)
			if err != nil {
				return 0, err
			}
			return l.trimBefore(ctx, n+1)
		}
	}
	return 0, cur.Err()
}

func (l *Log) trimBefore(ctx context.Context, bound int64) (int64, error) {
	if err := l.TruncateBefore(ctx, bound); err != nil {
		return 0, relabel(err, "trim")
	}
	l.logger.Info("trimmed", logpkg.Seq(bound))
	return bound, nil
}
