package segmentlog

import (
	"context"
	"sync"
	"time"
)

// notifier wakes every waiter when new entries become visible.
type notifier struct {
	mu sync.Mutex
	ch chan struct{}
}

func newNotifier() *notifier { return &notifier{ch: make(chan struct{})} }

func (n *notifier) wait() <-chan struct{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ch
}

func (n *notifier) signal() {
	n.mu.Lock()
	close(n.ch)
	n.ch = make(chan struct{})
	n.mu.Unlock()
}

// Appended returns a channel closed by the next successful write or catch-up.
// Take it before reading so an entry written in between is not missed.
func (l *Log) Appended() <-chan struct{} { return l.notify.wait() }

// WaitForAppend blocks until an entry is written, timeout elapses or ctx is
// done. It returns true only when woken by a write. A non-positive timeout
// waits on ctx alone.
func (l *Log) WaitForAppend(ctx context.Context, timeout time.Duration) bool {
	ch := l.notify.wait()
	var after <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		after = t.C
	}
	select {
	case <-ch:
		return true
	case <-after:
		return false
	case <-ctx.Done():
		return false
	}
}
