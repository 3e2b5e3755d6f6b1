package registry

import (
	"testing"
	"time"
)

func TestRegisterIsIdempotent(t *testing.T) {
	r := New()
	a := r.Register("cam0/ui")
	b := r.Register("cam0/ui")
	if a != b {
		t.Fatal("Register should return the same StreamState for the same key")
	}
}

func TestKeysAreSorted(t *testing.T) {
	r := New()
	r.Register("cam1/ui")
	r.Register("cam0/ui")
	r.Register("cam0/inf")
	keys := r.Keys()
	want := []string{"cam0/inf", "cam0/ui", "cam1/ui"}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("keys = %v, want %v", keys, want)
		}
	}
}

func TestPushJPEGAdvancesSeqAndIsVisible(t *testing.T) {
	s := newStreamState()
	s.PushJPEG([]byte("a"))
	jpeg, seq := s.Snapshot()
	if string(jpeg) != "a" || seq != 1 {
		t.Fatalf("snapshot = (%q, %d), want (a, 1)", jpeg, seq)
	}
	s.PushJPEG([]byte("b"))
	jpeg, seq = s.Snapshot()
	if string(jpeg) != "b" || seq != 2 {
		t.Fatalf("snapshot = (%q, %d), want (b, 2)", jpeg, seq)
	}
}

func TestWaitNextReturnsOnPush(t *testing.T) {
	s := newStreamState()
	cancel := make(chan struct{})
	done := make(chan struct{})

	var got []byte
	var ok bool
	go func() {
		got, _, ok = s.WaitNext(0, cancel)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	s.PushJPEG([]byte("frame"))

	select {
	case <-done:
		if !ok || string(got) != "frame" {
			t.Fatalf("got (%q, %v), want (frame, true)", got, ok)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitNext never returned after PushJPEG")
	}
}

func TestWaitNextReturnsOnCancel(t *testing.T) {
	s := newStreamState()
	cancel := make(chan struct{})
	done := make(chan struct{})

	var ok bool
	go func() {
		_, _, ok = s.WaitNext(0, cancel)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	close(cancel)

	select {
	case <-done:
		if ok {
			t.Fatal("expected WaitNext to report cancellation")
		}
	case <-time.After(time.Second):
		t.Fatal("WaitNext never returned after cancel")
	}
}
