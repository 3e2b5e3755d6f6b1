package source

import (
	"testing"
	"time"
)

func TestMailboxReceiveTimesOutWithNoPublish(t *testing.T) {
	m := newMailbox()
	_, ok := m.Receive(20 * time.Millisecond)
	if ok {
		t.Fatal("expected timeout, got a frame")
	}
}

func TestMailboxReceiveGetsLatestPublish(t *testing.T) {
	m := newMailbox()
	m.Publish(&rawFrame{width: 1, height: 1, ptsNs: 1})
	m.Publish(&rawFrame{width: 2, height: 2, ptsNs: 2})

	f, ok := m.Receive(time.Second)
	if !ok {
		t.Fatal("expected a frame")
	}
	if f.ptsNs != 2 {
		t.Fatalf("ptsNs = %d, want 2 (latest publish wins)", f.ptsNs)
	}
}

func TestMailboxReceiveBlocksUntilPublish(t *testing.T) {
	m := newMailbox()
	done := make(chan *rawFrame, 1)
	go func() {
		f, ok := m.Receive(time.Second)
		if ok {
			done <- f
		} else {
			done <- nil
		}
	}()

	time.Sleep(20 * time.Millisecond)
	m.Publish(&rawFrame{ptsNs: 42})

	select {
	case f := <-done:
		if f == nil || f.ptsNs != 42 {
			t.Fatalf("got %+v, want ptsNs=42", f)
		}
	case <-time.After(time.Second):
		t.Fatal("Receive never returned after Publish")
	}
}

func TestMailboxCloseWakesWaiters(t *testing.T) {
	m := newMailbox()
	done := make(chan bool, 1)
	go func() {
		_, ok := m.Receive(5 * time.Second)
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	m.Close()

	select {
	case ok := <-done:
		if ok {
			t.Fatal("expected Receive to report no frame after Close")
		}
	case <-time.After(time.Second):
		t.Fatal("Receive never woke after Close")
	}
}

func TestMailboxPublishAfterCloseIsNoop(t *testing.T) {
	m := newMailbox()
	m.Close()
	m.Publish(&rawFrame{ptsNs: 1})
	_, ok := m.Receive(20 * time.Millisecond)
	if ok {
		t.Fatal("expected closed mailbox to stay empty")
	}
}
