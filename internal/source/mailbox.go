package source

import (
	"sync"
	"time"
)

// rawFrame is one UI-resolution capture tick, before the inference copy and
// mapping are derived.
type rawFrame struct {
	pix    []byte
	width  int
	height int
	ptsNs  int64
}

// mailbox is a single-slot, overwrite-on-publish handoff between a capture
// goroutine (gocv polling loop or GStreamer appsink callback) and the
// ingest worker's Read call. Grounded on the teacher's DropOld subscriber
// (modules/framebus/internal/bus/bus.go's latestFrameHolder): "drop frames,
// never queue" at the source boundary, generalized from a *Frame to a
// *rawFrame and given a timed Receive instead of an unbounded block.
type mailbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	latest *rawFrame
	seq    uint64
	taken  uint64
	closed bool
}

func newMailbox() *mailbox {
	m := &mailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Publish replaces the latest frame and wakes any waiter. Always succeeds
// unless the mailbox is closed, in which case it is a no-op.
func (m *mailbox) Publish(f *rawFrame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.latest = f
	m.seq++
	m.cond.Broadcast()
}

// Receive waits up to timeout for a frame newer than the last one this
// caller observed. Returns (nil, false) on timeout or close.
func (m *mailbox) Receive(timeout time.Duration) (*rawFrame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, false
	}

	deadline := time.Now().Add(timeout)
	for m.latest == nil || m.seq == m.taken {
		if m.closed {
			return nil, false
		}
		remaining := deadline.Sub(time.Now())
		if remaining <= 0 {
			return nil, false
		}
		waitWithTimeout(m.cond, remaining)
	}

	m.taken = m.seq
	return m.latest, true
}

// Close wakes every waiter and inerts future Publish/Receive calls.
func (m *mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.cond.Broadcast()
}

// waitWithTimeout wakes cond.Wait (which has no native deadline) via a timer
// that grabs the same lock to broadcast; the caller re-checks its condition
// on return, same as a normal spurious wakeup.
func waitWithTimeout(cond *sync.Cond, d time.Duration) {
	timer := time.AfterFunc(d, func() {
		cond.L.Lock()
		cond.Broadcast()
		cond.L.Unlock()
	})
	defer timer.Stop()
	cond.Wait()
}
