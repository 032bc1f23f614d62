package segmentlog

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/rzbill/seglog/internal/kvstore"
	"github.com/rzbill/seglog/pkg/dberrors"
	"github.com/rzbill/seglog/pkg/seq"
)

func openTestLog(t *testing.T, dir string) *Log {
	t.Helper()
	l, err := Open(Options{Path: dir})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func newTestLog(t *testing.T) (*Log, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "log")
	return openTestLog(t, dir), dir
}

func appendN(t *testing.T, l *Log, n int) []seq.Key {
	t.Helper()
	keys := make([]seq.Key, 0, n)
	for i := 1; i <= n; i++ {
		k, err := l.Append(context.Background(), []byte(fmt.Sprintf("v%d", i)))
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		keys = append(keys, k)
	}
	return keys
}

func seqs(recs []Record) []int64 {
	out := make([]int64, 0, len(recs))
	for _, r := range recs {
		n, _ := seq.Decode(r.Key)
		out = append(out, n)
	}
	return out
}

func span(from, to int64) []int64 {
	var out []int64
	if from <= to {
		for i := from; i <= to; i++ {
			out = append(out, i)
		}
		return out
	}
	for i := from; i >= to; i-- {
		out = append(out, i)
	}
	return out
}

func TestAppendReadLastTruncateExample(t *testing.T) {
	l, _ := newTestLog(t)
	ctx := context.Background()

	k1, err := l.Append(ctx, []byte("a"))
	if err != nil {
		t.Fatalf("append a: %v", err)
	}
	k2, err := l.Append(ctx, []byte("b"))
	if err != nil {
		t.Fatalf("append b: %v", err)
	}
	if k2.Seq() != k1.Seq()+1 {
		t.Fatalf("keys not contiguous: %d %d", k1.Seq(), k2.Seq())
	}

	recs, err := l.ReadLast(2)
	if err != nil {
		t.Fatalf("read last: %v", err)
	}
	want := []Record{{Key: k1.Bytes(), Value: []byte("a")}, {Key: k2.Bytes(), Value: []byte("b")}}
	if diff := cmp.Diff(want, recs); diff != "" {
		t.Fatalf("read last mismatch (-want +got):\n%s", diff)
	}

	if err := l.TruncateBefore(ctx, k2.Seq()); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	last, ok, err := l.LastKey()
	if err != nil || !ok || last != k2 {
		t.Fatalf("last key after truncate: %v %v %v", last, ok, err)
	}
	if _, err := l.Get(k1.Seq()); !errors.Is(err, dberrors.ErrNotFound) {
		t.Fatalf("truncated entry still present: %v", err)
	}
}

func TestAppendStrictlyIncreasing(t *testing.T) {
	l, _ := newTestLog(t)
	keys := appendN(t, l, 20)
	for i := 1; i < len(keys); i++ {
		if keys[i].Compare(keys[i-1]) <= 0 || keys[i].Seq() != keys[i-1].Seq()+1 {
			t.Fatalf("key %d (%d) does not follow %d", i, keys[i].Seq(), keys[i-1].Seq())
		}
	}
	if keys[0].Seq() != 1 {
		t.Fatalf("empty log should start at 1, got %d", keys[0].Seq())
	}
}

func TestConcurrentAppendsNeverOverlap(t *testing.T) {
	l, _ := newTestLog(t)
	const workers, per = 8, 50
	var mu sync.Mutex
	var all []int64
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			local := make([]int64, 0, per)
			for i := 0; i < per; i++ {
				if i%5 == 0 {
					keys, err := l.AppendBatch(context.Background(), [][]byte{[]byte("x"), []byte("y")})
					if err != nil {
						t.Errorf("append batch: %v", err)
						return
					}
					for _, k := range keys {
						local = append(local, k.Seq())
					}
					continue
				}
				k, err := l.Append(context.Background(), []byte(fmt.Sprintf("%d-%d", w, i)))
				if err != nil {
					t.Errorf("append: %v", err)
					return
				}
				if len(local) > 0 && k.Seq() <= local[len(local)-1] {
					t.Errorf("per-caller keys must increase: %d after %d", k.Seq(), local[len(local)-1])
				}
				local = append(local, k.Seq())
			}
			mu.Lock()
			all = append(all, local...)
			mu.Unlock()
		}(w)
	}
	wg.Wait()

	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
	for i, n := range all {
		if n != int64(i+1) {
			t.Fatalf("sequence %d missing or duplicated (got %d)", i+1, n)
		}
	}
	c, err := l.IterateFrom(nil, 64)
	if err != nil {
		t.Fatalf("iterate: %v", err)
	}
	defer c.Close()
	count := 0
	for c.HasNext() {
		count += len(c.NextBatch())
	}
	if count != len(all) {
		t.Fatalf("stored %d entries, allocated %d", count, len(all))
	}
}

func TestAppendBatchContiguous(t *testing.T) {
	l, _ := newTestLog(t)
	appendN(t, l, 2)
	keys, err := l.AppendBatch(context.Background(), [][]byte{[]byte("v1"), []byte("v2"), []byte("v3")})
	if err != nil {
		t.Fatalf("append batch: %v", err)
	}
	if len(keys) != 3 || keys[0].Seq() != 3 || keys[1].Seq() != 4 || keys[2].Seq() != 5 {
		t.Fatalf("batch keys = %v", keys)
	}

	if keys, err := l.AppendBatch(context.Background(), nil); err != nil || keys != nil {
		t.Fatalf("empty batch: %v %v", keys, err)
	}
}

func TestAppendBatchCanceledContextWritesNothing(t *testing.T) {
	l, _ := newTestLog(t)
	appendN(t, l, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.AppendBatch(ctx, [][]byte{[]byte("p"), []byte("q"), []byte("r")}); !errors.Is(err, dberrors.ErrWrite) {
		t.Fatalf("expected WriteError for canceled batch, got %v", err)
	}
	recs, err := l.ReadLast(100)
	if err != nil {
		t.Fatalf("read last: %v", err)
	}
	if diff := cmp.Diff(span(1, 2), seqs(recs)); diff != "" {
		t.Fatalf("canceled batch left entries behind (-want +got):\n%s", diff)
	}
}

func TestAppendBatchRejectedByEngineWritesNothing(t *testing.T) {
	l, dir := newTestLog(t)
	appendN(t, l, 3)
	if err := l.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	ro, err := OpenReadOnly(Options{Path: dir})
	if err != nil {
		t.Fatalf("open read-only: %v", err)
	}
	defer ro.Close()

	if _, err := ro.AppendBatch(context.Background(), [][]byte{[]byte("a"), []byte("b")}); !errors.Is(err, dberrors.ErrWrite) {
		t.Fatalf("expected WriteError from engine commit, got %v", err)
	}
	recs, err := ro.ReadLast(100)
	if err != nil {
		t.Fatalf("read last: %v", err)
	}
	if diff := cmp.Diff(span(1, 3), seqs(recs)); diff != "" {
		t.Fatalf("rejected batch left entries behind (-want +got):\n%s", diff)
	}
}

func TestTruncateBeforeRejectsNegative(t *testing.T) {
	l, _ := newTestLog(t)
	appendN(t, l, 5)
	err := l.TruncateBefore(context.Background(), -1)
	if !errors.Is(err, dberrors.ErrInvalidArgument) || !errors.Is(err, dberrors.ErrWrite) {
		t.Fatalf("expected WriteError wrapping ErrInvalidArgument, got %v", err)
	}
	recs, err := l.ReadLast(100)
	if err != nil {
		t.Fatalf("read last: %v", err)
	}
	if diff := cmp.Diff(span(1, 5), seqs(recs)); diff != "" {
		t.Fatalf("negative truncate removed entries (-want +got):\n%s", diff)
	}
	if err := l.TruncateBefore(context.Background(), 0); err != nil {
		t.Fatalf("truncate before 0: %v", err)
	}
	if recs, _ := l.ReadLast(100); len(recs) != 5 {
		t.Fatalf("truncate before 0 removed entries: %v", seqs(recs))
	}
}

func TestIterateForwardAndReverse(t *testing.T) {
	l, _ := newTestLog(t)
	appendN(t, l, 25)

	c, err := l.IterateFrom(nil, 7)
	if err != nil {
		t.Fatalf("iterate: %v", err)
	}
	var fwd []Record
	for rec, ok := c.Next(); ok; rec, ok = c.Next() {
		fwd = append(fwd, rec)
	}
	_ = c.Close()
	if diff := cmp.Diff(span(1, 25), seqs(fwd)); diff != "" {
		t.Fatalf("forward mismatch (-want +got):\n%s", diff)
	}

	c, err = l.IterateFromEnd(nil, 7)
	if err != nil {
		t.Fatalf("iterate from end: %v", err)
	}
	var rev []Record
	for rec, ok := c.Next(); ok; rec, ok = c.Next() {
		rev = append(rev, rec)
	}
	_ = c.Close()
	if diff := cmp.Diff(span(25, 1), seqs(rev)); diff != "" {
		t.Fatalf("reverse mismatch (-want +got):\n%s", diff)
	}

	start := seq.Encode(10)
	c, err = l.IterateFromEnd(start.Bytes(), 0)
	if err != nil {
		t.Fatalf("iterate from end at 10: %v", err)
	}
	defer c.Close()
	if diff := cmp.Diff(span(10, 1), seqs(c.NextBatch())); diff != "" {
		t.Fatalf("reverse from 10 mismatch (-want +got):\n%s", diff)
	}
}

func TestNextBatchConcatenationAnyBatchSize(t *testing.T) {
	l, _ := newTestLog(t)
	appendN(t, l, 30)
	for _, size := range []int{1, 4, 29, 30, 31, 0} {
		t.Run(fmt.Sprintf("size=%d", size), func(t *testing.T) {
			c, err := l.IterateFrom(nil, size)
			if err != nil {
				t.Fatalf("iterate: %v", err)
			}
			defer c.Close()
			var got []Record
			for c.HasNext() {
				got = append(got, c.NextBatch()...)
			}
			if diff := cmp.Diff(span(1, 30), seqs(got)); diff != "" {
				t.Fatalf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTruncateThenAppend(t *testing.T) {
	l, _ := newTestLog(t)
	appendN(t, l, 10)
	if err := l.TruncateBefore(context.Background(), 6); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	recs, err := l.ReadLast(100)
	if err != nil {
		t.Fatalf("read last: %v", err)
	}
	if diff := cmp.Diff(span(6, 10), seqs(recs)); diff != "" {
		t.Fatalf("after truncate (-want +got):\n%s", diff)
	}
	last, _, _ := l.LastKey()
	if last.Seq() != 10 {
		t.Fatalf("truncation moved the tail: %d", last.Seq())
	}

	k, err := l.Append(context.Background(), []byte("fresh"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	recs, err = l.ReadLast(1)
	if err != nil || len(recs) != 1 {
		t.Fatalf("read last 1: %v %v", recs, err)
	}
	if diff := cmp.Diff(Record{Key: k.Bytes(), Value: []byte("fresh")}, recs[0]); diff != "" {
		t.Fatalf("newest record mismatch (-want +got):\n%s", diff)
	}
}

func TestReopenContinuesSequence(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "log")
	l, err := Open(Options{Path: dir})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	appendN(t, l, 5)
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	l = openTestLog(t, dir)
	k, err := l.Append(context.Background(), []byte("six"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if k.Seq() != 6 {
		t.Fatalf("reopened log appended at %d, want 6", k.Seq())
	}
}

func TestPutOverwritesWithoutAdvancing(t *testing.T) {
	l, _ := newTestLog(t)
	ctx := context.Background()
	appendN(t, l, 3)
	if err := l.Put(ctx, 2, []byte("patched")); err != nil {
		t.Fatalf("put: %v", err)
	}
	v, err := l.Get(2)
	if err != nil || string(v) != "patched" {
		t.Fatalf("get 2: %q %v", v, err)
	}
	if l.NextSeq() != 4 {
		t.Fatalf("put must not move the allocator, next=%d", l.NextSeq())
	}
	if err := l.Put(ctx, -1, []byte("x")); !errors.Is(err, dberrors.ErrInvalidArgument) || !errors.Is(err, dberrors.ErrWrite) {
		t.Fatalf("negative id should be rejected as invalid write, got %v", err)
	}
}

func TestEmptyLog(t *testing.T) {
	l, _ := newTestLog(t)
	if _, ok, err := l.LastKey(); ok || err != nil {
		t.Fatalf("empty last key: %v %v", ok, err)
	}
	recs, err := l.ReadLast(5)
	if err != nil || len(recs) != 0 {
		t.Fatalf("empty read last: %v %v", recs, err)
	}
	c, err := l.IterateFromEnd(nil, 0)
	if err != nil {
		t.Fatalf("iterate from end: %v", err)
	}
	defer c.Close()
	if c.HasNext() {
		t.Fatalf("empty log cursor should be exhausted")
	}
}

func TestCloseSemantics(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "log")
	l, err := Open(Options{Path: dir})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	appendN(t, l, 3)
	c, err := l.IterateFrom(nil, 1)
	if err != nil {
		t.Fatalf("iterate: %v", err)
	}

	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, err := l.Append(context.Background(), []byte("late")); !errors.Is(err, dberrors.ErrClosed) {
		t.Fatalf("append after close: %v", err)
	}
	if _, _, err := l.LastKey(); !errors.Is(err, dberrors.ErrClosed) {
		t.Fatalf("last key after close: %v", err)
	}

	var got []Record
	for c.HasNext() {
		got = append(got, c.NextBatch()...)
	}
	if diff := cmp.Diff(span(1, 3), seqs(got)); diff != "" {
		t.Fatalf("cursor after owner close (-want +got):\n%s", diff)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("cursor close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("cursor second close: %v", err)
	}
	if c.NextBatch() != nil {
		t.Fatalf("closed cursor returned data")
	}
}

func TestMalformedTailFailsOpen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "log")
	s, err := kvstore.Open(kvstore.Options{Path: dir})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := s.Put(context.Background(), []byte{0xff, 0xff, 0xff}, []byte("junk")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	if _, err := Open(Options{Path: dir}); !errors.Is(err, dberrors.ErrDecode) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestScanSkipsForeignKeys(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "log")
	s, err := kvstore.Open(kvstore.Options{Path: dir})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	k1, k2 := seq.Encode(1), seq.Encode(2)
	recs := []kvstore.Record{
		{Key: k1.Bytes(), Value: []byte("a")},
		{Key: append(k1.Bytes(), 0x01), Value: []byte("stray")},
		{Key: k2.Bytes(), Value: []byte("b")},
	}
	if err := s.PutBatch(context.Background(), recs); err != nil {
		t.Fatalf("put batch: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	l := openTestLog(t, dir)
	c, err := l.IterateFrom(nil, 0)
	if err != nil {
		t.Fatalf("iterate: %v", err)
	}
	defer c.Close()
	if diff := cmp.Diff([]int64{1, 2}, seqs(c.NextBatch())); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if c.Skipped() != 1 {
		t.Fatalf("skipped = %d, want 1", c.Skipped())
	}
}

func TestSecondaryFollowsPrimary(t *testing.T) {
	l, dir := newTestLog(t)
	appendN(t, l, 3)
	if err := l.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	sec, err := OpenSecondary(Options{Path: dir, SecondaryPath: filepath.Join(t.TempDir(), "replica")})
	if err != nil {
		t.Fatalf("open secondary: %v", err)
	}
	defer sec.Close()

	appendN(t, l, 2)
	if err := l.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := sec.CatchUp(); err != nil {
		t.Fatalf("catch up: %v", err)
	}
	last, ok, err := sec.LastKey()
	if err != nil || !ok || last.Seq() != 5 {
		t.Fatalf("secondary last key after catch-up: %v %v %v", last, ok, err)
	}
	if err := l.CatchUp(); !errors.Is(err, dberrors.ErrCatchUp) {
		t.Fatalf("catch-up on primary should fail with CatchUpError, got %v", err)
	}
}

func TestReadOnlyAlongsidePrimary(t *testing.T) {
	l, dir := newTestLog(t)
	appendN(t, l, 4)
	if err := l.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	ro, err := OpenReadOnly(Options{Path: dir})
	if err != nil {
		t.Fatalf("open read-only: %v", err)
	}
	defer ro.Close()
	recs, err := ro.ReadLast(10)
	if err != nil {
		t.Fatalf("read last: %v", err)
	}
	if diff := cmp.Diff(span(1, 4), seqs(recs)); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if _, err := ro.Append(context.Background(), []byte("nope")); !errors.Is(err, dberrors.ErrWrite) {
		t.Fatalf("expected WriteError on read-only append, got %v", err)
	}
}
