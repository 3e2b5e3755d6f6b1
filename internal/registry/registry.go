// Package registry implements the MJPEG stream registry: a thread-safe
// stream_key -> StreamState map fed by the encode+publish
// stage and read by the HTTP surface in http.go.
package registry

import (
	"sort"
	"sync"
)

// StreamState holds one stream key's latest JPEG, sequence counter, and
// latest metadata JSON, each guarded by its own lock/condition so pushes to
// one key never contend with reads of another.
type StreamState struct {
	mu   sync.Mutex
	cond *sync.Cond
	seq  uint64
	jpeg []byte
	meta string
}

func newStreamState() *StreamState {
	s := &StreamState{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// PushJPEG replaces the latest frame, increments seq, and wakes every
// waiter.
func (s *StreamState) PushJPEG(b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(b))
	copy(cp, b)
	s.jpeg = cp
	s.seq++
	s.cond.Broadcast()
}

// PushMeta replaces the latest metadata string.
func (s *StreamState) PushMeta(meta string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta = meta
}

// Snapshot returns the latest JPEG bytes and its sequence number.
func (s *StreamState) Snapshot() ([]byte, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jpeg, s.seq
}

// Meta returns the latest metadata JSON, or "" if none has been pushed yet.
func (s *StreamState) Meta() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta
}

// WaitNext blocks until seq advances past last or cancel fires, then
// returns the new JPEG and seq. ok is false only when cancel fired first.
func (s *StreamState) WaitNext(last uint64, cancel <-chan struct{}) (jpeg []byte, seq uint64, ok bool) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-cancel:
			s.mu.Lock()
			s.cond.Broadcast()
			s.mu.Unlock()
		case <-stop:
		}
	}()

	s.mu.Lock()
	defer s.mu.Unlock()
	for s.seq == last {
		select {
		case <-cancel:
			return nil, 0, false
		default:
		}
		s.cond.Wait()
	}
	return s.jpeg, s.seq, true
}

// Registry is the process-wide stream_key -> StreamState map. The map
// itself is guarded by one lock used only for insert/lookup;
// all per-stream traffic goes through the StreamState's own lock.
type Registry struct {
	mu      sync.Mutex
	streams map[string]*StreamState
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{streams: make(map[string]*StreamState)}
}

// Register idempotently creates the stream state for key.
func (r *Registry) Register(key string) *StreamState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.streams[key]; ok {
		return s
	}
	s := newStreamState()
	r.streams[key] = s
	return s
}

// Get looks up a stream's state.
func (r *Registry) Get(key string) (*StreamState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.streams[key]
	return s, ok
}

// Keys returns every registered stream key, sorted.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.streams))
	for k := range r.streams {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
