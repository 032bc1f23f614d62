package cursor

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// memSource serves iterators over a sorted in-memory key set.
type memSource struct {
	keys     [][]byte
	vals     map[string][]byte
	opened   int
	open     int
	released int
	iterErr  error
}

func newMemSource(n int) *memSource {
	s := &memSource{vals: map[string][]byte{}}
	for i := 1; i <= n; i++ {
		s.put([]byte(fmt.Sprintf("k%03d", i)), []byte(fmt.Sprintf("v%d", i)))
	}
	return s
}

func (s *memSource) put(k, v []byte) {
	if _, ok := s.vals[string(k)]; !ok {
		s.keys = append(s.keys, k)
		sort.Slice(s.keys, func(i, j int) bool { return bytes.Compare(s.keys[i], s.keys[j]) < 0 })
	}
	s.vals[string(k)] = v
}

func (s *memSource) NewIter() (Iterator, error) {
	s.opened++
	s.open++
	return &memIter{src: s, pos: -1}, nil
}

func (s *memSource) Release() error {
	s.released++
	return nil
}

type memIter struct {
	src *memSource
	pos int
}

func (it *memIter) valid() bool { return it.pos >= 0 && it.pos < len(it.src.keys) }

func (it *memIter) First() bool { it.pos = 0; return it.valid() }
func (it *memIter) Last() bool  { it.pos = len(it.src.keys) - 1; return it.valid() }
func (it *memIter) Next() bool  { it.pos++; return it.valid() }
func (it *memIter) Prev() bool  { it.pos--; return it.valid() }
func (it *memIter) Valid() bool { return it.valid() }
func (it *memIter) Key() []byte { return it.src.keys[it.pos] }
func (it *memIter) Value() []byte {
	return it.src.vals[string(it.src.keys[it.pos])]
}
func (it *memIter) Error() error { return it.src.iterErr }
func (it *memIter) Close() error { it.src.open--; return nil }

func (it *memIter) SeekGE(key []byte) bool {
	it.pos = sort.Search(len(it.src.keys), func(i int) bool { return bytes.Compare(it.src.keys[i], key) >= 0 })
	return it.valid()
}

func (it *memIter) SeekLT(key []byte) bool {
	it.pos = sort.Search(len(it.src.keys), func(i int) bool { return bytes.Compare(it.src.keys[i], key) >= 0 }) - 1
	return it.valid()
}

func drain(c *Cursor) []string {
	var out []string
	for rec, ok := c.Next(); ok; rec, ok = c.Next() {
		out = append(out, string(rec.Key))
	}
	return out
}

func keyRange(from, to int) []string {
	var out []string
	step := 1
	if from > to {
		step = -1
	}
	for i := from; ; i += step {
		out = append(out, fmt.Sprintf("k%03d", i))
		if i == to {
			break
		}
	}
	return out
}

func TestForwardFromStart(t *testing.T) {
	src := newMemSource(10)
	c, err := New(src, Options{BatchSize: 3})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if diff := cmp.Diff(keyRange(1, 10), drain(c)); diff != "" {
		t.Fatalf("forward scan mismatch (-want +got):\n%s", diff)
	}
	if src.open != 0 {
		t.Fatalf("iterators must not outlive a load, %d open", src.open)
	}
	if src.opened != 4 {
		t.Fatalf("expected 4 loads for 10 keys in pages of 3, got %d", src.opened)
	}
}

func TestForwardFromKey(t *testing.T) {
	src := newMemSource(10)
	c, err := New(src, Options{Start: []byte("k004"), BatchSize: 4})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if diff := cmp.Diff(keyRange(4, 10), drain(c)); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestReverseFromEnd(t *testing.T) {
	src := newMemSource(7)
	c, err := New(src, Options{Reverse: true, BatchSize: 2})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if diff := cmp.Diff(keyRange(7, 1), drain(c)); diff != "" {
		t.Fatalf("reverse scan mismatch (-want +got):\n%s", diff)
	}
}

func TestReverseFromMissingKeyStartsAtPredecessor(t *testing.T) {
	src := newMemSource(5)
	c, err := New(src, Options{Start: []byte("k003x"), Reverse: true})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if diff := cmp.Diff(keyRange(3, 1), drain(c)); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestEmptySource(t *testing.T) {
	for _, reverse := range []bool{false, true} {
		c, err := New(newMemSource(0), Options{Reverse: reverse})
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		if c.HasNext() {
			t.Fatalf("reverse=%v: empty source should be exhausted", reverse)
		}
		if _, ok := c.Next(); ok {
			t.Fatalf("reverse=%v: unexpected record", reverse)
		}
		if c.NextBatch() != nil {
			t.Fatalf("reverse=%v: expected nil batch", reverse)
		}
	}
}

func TestNextBatchConcatenates(t *testing.T) {
	for _, batch := range []int{1, 2, 3, 5, 10, 11, 1000} {
		t.Run(fmt.Sprintf("batch=%d", batch), func(t *testing.T) {
			c, err := New(newMemSource(10), Options{BatchSize: batch})
			if err != nil {
				t.Fatalf("new: %v", err)
			}
			var got []string
			for c.HasNext() {
				page := c.NextBatch()
				if len(page) > batch {
					t.Fatalf("page of %d exceeds batch size %d", len(page), batch)
				}
				for _, r := range page {
					got = append(got, string(r.Key))
				}
			}
			if diff := cmp.Diff(keyRange(1, 10), got); diff != "" {
				t.Fatalf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNextBatchReturnsRemainderOnly(t *testing.T) {
	c, err := New(newMemSource(6), Options{BatchSize: 4})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if rec, _ := c.Next(); string(rec.Key) != "k001" {
		t.Fatalf("first = %q", rec.Key)
	}
	page := c.NextBatch()
	if len(page) != 3 {
		t.Fatalf("remainder of first page = %d, want 3", len(page))
	}
	page = c.NextBatch()
	if len(page) != 2 || string(page[0].Key) != "k005" {
		t.Fatalf("second page = %v", page)
	}
	if c.HasNext() {
		t.Fatalf("expected exhausted cursor")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	src := newMemSource(3)
	c, err := New(src, Options{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if src.released != 1 {
		t.Fatalf("released %d times, want 1", src.released)
	}
	if c.HasNext() {
		t.Fatalf("closed cursor must report no more data")
	}
	if _, ok := c.Next(); ok {
		t.Fatalf("closed cursor returned a record")
	}
}

func TestAcceptFilterSkips(t *testing.T) {
	src := newMemSource(4)
	src.put([]byte("k002bad"), []byte("x"))
	c, err := New(src, Options{Accept: func(k []byte) bool { return len(k) == 4 }})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if diff := cmp.Diff(keyRange(1, 4), drain(c)); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if c.Skipped() != 1 {
		t.Fatalf("skipped = %d, want 1", c.Skipped())
	}
}

func TestResumeContinuesScan(t *testing.T) {
	src := newMemSource(9)
	c, err := New(src, Options{BatchSize: 4})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	first := c.NextBatch()
	resume := c.Resume()
	if string(resume) != "k005" {
		t.Fatalf("resume = %q", resume)
	}
	_ = c.Close()

	c2, err := New(src, Options{Start: resume, BatchSize: 4})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	var got []string
	for _, r := range first {
		got = append(got, string(r.Key))
	}
	got = append(got, drain(c2)...)
	if diff := cmp.Diff(keyRange(1, 9), got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if c2.Resume() != nil {
		t.Fatalf("exhausted cursor should have no resume key")
	}
}

func TestLoadErrorIsSticky(t *testing.T) {
	src := newMemSource(5)
	src.iterErr = errors.New("disk on fire")
	if _, err := New(src, Options{}); err == nil {
		t.Fatalf("expected first load error")
	}
	if src.released != 1 {
		t.Fatalf("failed construction must release the reference")
	}

	src = newMemSource(5)
	c, err := New(src, Options{BatchSize: 2})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	src.iterErr = errors.New("disk on fire")
	got := drain(c)
	if len(got) != 2 {
		t.Fatalf("expected only the first page, got %v", got)
	}
	if c.Err() == nil {
		t.Fatalf("expected sticky error")
	}
	if c.HasNext() {
		t.Fatalf("failed cursor must be exhausted")
	}
}
