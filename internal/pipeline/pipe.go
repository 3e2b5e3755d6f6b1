// Package pipeline builds and runs the per-stream dataflow graph:
// frame-bundle producer -> shared detector pool ->
// per-stream ordering/tracking -> anonymize -> encode+publish. The bounded
// queue (internal/queue) is the only synchronization primitive between
// stages; everything else is a goroutine looping on pop_for.
package pipeline

import (
	"sync"

	"github.com/e7canasta/shroudstream/internal/frame"
	"github.com/e7canasta/shroudstream/internal/queue"
	"github.com/e7canasta/shroudstream/internal/source"
	"github.com/e7canasta/shroudstream/internal/tracker"
)

// StreamPipe owns one stream's four bounded queues, the worker goroutines
// reading/writing them, its tracker instance, and the ordering stage's two
// pending maps.
type StreamPipe struct {
	StreamID string

	Source  source.FrameSource
	Tracker tracker.Tracker

	InfStateIn *queue.Queue[*frame.Ctx]
	DetRes     *queue.Queue[frame.InferResults]
	AnonIn     *queue.Queue[*frame.Ctx]
	EncIn      *queue.Queue[*frame.Ctx]

	pendingFrames map[uint64]*frame.Ctx
	pendingDets   map[uint64]frame.InferResults
	nextFrameID   int64 // -1 before seeing any frame

	wg sync.WaitGroup
}

func newStreamPipe(streamID string, src source.FrameSource, trk tracker.Tracker, capacities QueueCapacities) *StreamPipe {
	return &StreamPipe{
		StreamID:      streamID,
		Source:        src,
		Tracker:       trk,
		InfStateIn:    queue.New[*frame.Ctx](capacities.InfStateIn),
		DetRes:        queue.New[frame.InferResults](capacities.DetRes),
		AnonIn:        queue.New[*frame.Ctx](capacities.AnonIn),
		EncIn:         queue.New[*frame.Ctx](capacities.EncIn),
		pendingFrames: make(map[uint64]*frame.Ctx),
		pendingDets:   make(map[uint64]frame.InferResults),
		nextFrameID:   -1,
	}
}

// stopQueues stops all four per-stream queues, unblocking every worker
// waiting in pop_for.
func (p *StreamPipe) stopQueues() {
	p.InfStateIn.Stop()
	p.DetRes.Stop()
	p.AnonIn.Stop()
	p.EncIn.Stop()
}

// QueueCapacities mirrors config.QueueCapacities with defaults already
// applied (see Runtime.Start), so newStreamPipe takes plain sizes rather
// than the YAML schema type.
type QueueCapacities struct {
	InferIn      int
	AnalyticsOut int
	InfStateIn   int
	DetRes       int
	AnonIn       int
	EncIn        int
}
