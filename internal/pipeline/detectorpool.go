package pipeline

import (
	"context"
	"log/slog"

	"github.com/e7canasta/shroudstream/internal/detector"
	"github.com/e7canasta/shroudstream/internal/frame"
	"github.com/e7canasta/shroudstream/internal/queue"
)

// detectorJob routes one frame's inference image to the worker pool and
// carries enough identity for the result to be routed back to its stream.
type detectorJob struct {
	streamID string
	ctx      *frame.Ctx
}

// runDetectorWorker is one of the W shared detector workers. routeTo looks
// up the target stream's det_res queue; it is built once at start() with no
// locking on the hot path. A persistently failing detector logs only its
// first failure, instead of spamming the hot path on every frame.
func runDetectorWorker(ctx context.Context, det detector.Detector, inferIn *queue.Queue[*detectorJob], routeTo map[string]*queue.Queue[frame.InferResults], workerID int) {
	logged := false

	for {
		if ctx.Err() != nil {
			return
		}

		job, ok := inferIn.PopFor(detectorPopTimeout)
		if !ok {
			continue
		}

		boxes, err := det.Detect(job.ctx.InfImage)
		if err != nil {
			if !logged {
				slog.Error("detector worker: detect failed", "worker", workerID, "stream", job.streamID, "error", err)
				logged = true
			}
			boxes = nil
		}
		job.ctx.InfImage = nil // release once detection is done with it

		results := frame.InferResults{
			StreamID: job.streamID,
			FrameID:  job.ctx.FrameID,
			Boxes:    boxes,
		}

		if q, ok := routeTo[job.streamID]; ok {
			q.PushDropOldest(results)
		}
	}
}

const detectorPopTimeout = readTimeout
