package pipeline

import (
	"context"
	"time"

	"github.com/e7canasta/shroudstream/internal/frame"
	"github.com/e7canasta/shroudstream/internal/queue"
)

// firstDrainTimeout is how long the ordering stage blocks waiting for the
// first inf_state_in item each loop.
const firstDrainTimeout = 2 * time.Millisecond

// runOrderTrack is the per-stream ordering + tracking stage:
// the heart of the pipeline. It reassembles out-of-order detector results
// with their frames, in strictly increasing frame_id order, advancing the
// tracker only in order.
func runOrderTrack(ctx context.Context, pipe *StreamPipe, analyticsOut *queue.Queue[frame.TrackerOutput], reorderWindow, pendingCap int) {
	defer pipe.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		drainFrames(pipe)
		drainDets(pipe)

		if pipe.nextFrameID < 0 {
			if k, ok := minKey(pipe.pendingFrames); ok {
				pipe.nextFrameID = int64(k)
			}
		}

	advance:
		for pipe.nextFrameID >= 0 {
			nid := uint64(pipe.nextFrameID)
			fctx, hasFrame := pipe.pendingFrames[nid]
			det, hasDet := pipe.pendingDets[nid]

			switch {
			case hasFrame && hasDet:
				process(pipe, fctx, det.Boxes, analyticsOut)
				delete(pipe.pendingFrames, nid)
				delete(pipe.pendingDets, nid)
				pipe.nextFrameID++

			case !hasFrame:
				if later, ok := minKeyGreaterThan(pipe.pendingFrames, nid); ok {
					pipe.nextFrameID = int64(later)
				} else {
					break advance
				}

			default: // frame present, detection missing
				latest := maxKeyFrames(pipe.pendingFrames)
				if d := maxKeyDets(pipe.pendingDets); d > latest {
					latest = d
				}
				if int64(latest)-pipe.nextFrameID > int64(reorderWindow) {
					process(pipe, fctx, nil, analyticsOut)
					delete(pipe.pendingFrames, nid)
					pipe.nextFrameID++
				} else {
					break advance
				}
			}
		}

		trimFrames(pipe.pendingFrames, pendingCap)
		trimDets(pipe.pendingDets, pendingCap)
	}
}

func drainFrames(pipe *StreamPipe) {
	first, ok := pipe.InfStateIn.PopFor(firstDrainTimeout)
	if !ok {
		return
	}
	pipe.pendingFrames[first.FrameID] = first
	for {
		v, ok := pipe.InfStateIn.TryPop()
		if !ok {
			return
		}
		pipe.pendingFrames[v.FrameID] = v
	}
}

func drainDets(pipe *StreamPipe) {
	for {
		d, ok := pipe.DetRes.TryPop()
		if !ok {
			return
		}
		pipe.pendingDets[d.FrameID] = d
	}
}

// process runs the tracker and publishes both outputs for one frame.
func process(pipe *StreamPipe, fctx *frame.Ctx, dets []frame.Box, analyticsOut *queue.Queue[frame.TrackerOutput]) {
	tracks := pipe.Tracker.Update(dets)
	fctx.TrackedBoxes = tracks

	analyticsOut.PushDropOldest(frame.TrackerOutput{
		StreamID: fctx.StreamID,
		FrameID:  fctx.FrameID,
		PtsNs:    fctx.PtsNs,
		Tracks:   tracks,
	})
	pipe.AnonIn.PushDropOldest(fctx)
}

func minKey(m map[uint64]*frame.Ctx) (uint64, bool) {
	var min uint64
	found := false
	for k := range m {
		if !found || k < min {
			min = k
			found = true
		}
	}
	return min, found
}

func minKeyGreaterThan(m map[uint64]*frame.Ctx, threshold uint64) (uint64, bool) {
	var min uint64
	found := false
	for k := range m {
		if k > threshold && (!found || k < min) {
			min = k
			found = true
		}
	}
	return min, found
}

func maxKeyFrames(m map[uint64]*frame.Ctx) uint64 {
	var max uint64
	for k := range m {
		if k > max {
			max = k
		}
	}
	return max
}

func maxKeyDets(m map[uint64]frame.InferResults) uint64 {
	var max uint64
	for k := range m {
		if k > max {
			max = k
		}
	}
	return max
}

func trimFrames(m map[uint64]*frame.Ctx, cap int) {
	for len(m) > cap {
		k, ok := minKey(m)
		if !ok {
			return
		}
		delete(m, k)
	}
}

func trimDets(m map[uint64]frame.InferResults, cap int) {
	for len(m) > cap {
		var min uint64
		found := false
		for k := range m {
			if !found || k < min {
				min = k
				found = true
			}
		}
		if !found {
			return
		}
		delete(m, min)
	}
}
