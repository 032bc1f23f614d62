package segmentlog

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/rzbill/seglog/pkg/dberrors"
)

func TestTrimToCount(t *testing.T) {
	l, _ := newTestLog(t)
	appendN(t, l, 10)
	ctx := context.Background()

	bound, err := l.TrimToCount(ctx, 3)
	if err != nil {
		t.Fatalf("trim: %v", err)
	}
	if bound != 8 {
		t.Fatalf("bound = %d, want 8", bound)
	}
	recs, err := l.ReadLast(100)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if diff := cmp.Diff([]int64{8, 9, 10}, seqs(recs)); diff != "" {
		t.Fatalf("remaining (-want +got):\n%s", diff)
	}

	bound, err = l.TrimToCount(ctx, 5)
	if err != nil || bound != 0 {
		t.Fatalf("trim above size = %d, %v; want no-op", bound, err)
	}
}

func TestTrimToCountZeroEmptiesLog(t *testing.T) {
	l, _ := newTestLog(t)
	appendN(t, l, 4)
	if _, err := l.TrimToCount(context.Background(), 0); err != nil {
		t.Fatalf("trim: %v", err)
	}
	if _, ok, err := l.LastKey(); err != nil || ok {
		t.Fatalf("last key after trim = %v, %v; want empty", ok, err)
	}
	if got := l.NextSeq(); got != 5 {
		t.Fatalf("next seq = %d, want 5", got)
	}
}

func TestTrimToMaxBytes(t *testing.T) {
	l, _ := newTestLog(t)
	appendN(t, l, 10) // values v1..v9 are 2 bytes, v10 is 3
	ctx := context.Background()

	bound, err := l.TrimToMaxBytes(ctx, 6)
	if err != nil {
		t.Fatalf("trim: %v", err)
	}
	if bound != 9 {
		t.Fatalf("bound = %d, want 9", bound)
	}
	recs, _ := l.ReadLast(100)
	if diff := cmp.Diff([]int64{9, 10}, seqs(recs)); diff != "" {
		t.Fatalf("remaining (-want +got):\n%s", diff)
	}

	bound, err = l.TrimToMaxBytes(ctx, 1000)
	if err != nil || bound != 0 {
		t.Fatalf("trim under budget = %d, %v; want no-op", bound, err)
	}
}

func TestTrimRejectsNegative(t *testing.T) {
	l, _ := newTestLog(t)
	if _, err := l.TrimToCount(context.Background(), -1); !errors.Is(err, dberrors.ErrInvalidArgument) {
		t.Fatalf("want invalid argument, got %v", err)
	}
	if _, err := l.TrimToMaxBytes(context.Background(), -1); !errors.Is(err, dberrors.ErrInvalidArgument) {
		t.Fatalf("want invalid argument, got %v", err)
	}
}
