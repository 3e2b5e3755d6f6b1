package pipeline

import (
	"context"
	"time"

	"github.com/e7canasta/shroudstream/internal/frame"
	"github.com/e7canasta/shroudstream/internal/queue"
)

// readTimeout bounds every source.Read call so the ingest worker reacts to
// cancellation promptly: every worker blocks only inside pop_for or
// read(timeout), never on an unbounded call.
const readTimeout = 200 * time.Millisecond

// runIngest is the frame-bundle producer worker. It
// pulls a time-aligned (inf_image, ui_image) pair from the source and fans
// it out, drop-oldest, onto the shared detector queue and this stream's
// own inf_state_in queue.
func runIngest(ctx context.Context, pipe *StreamPipe, inferIn *queue.Queue[*detectorJob]) {
	defer pipe.wg.Done()
	defer pipe.Source.Stop()

	for {
		if ctx.Err() != nil {
			return
		}

		bundle, ok := pipe.Source.Read(readTimeout)
		if !ok {
			continue
		}

		fctx := &frame.Ctx{Bundle: *bundle}
		if bundle.InfImage != nil {
			fctx.InfWidth, fctx.InfHeight = bundle.InfImage.Width, bundle.InfImage.Height
		}
		inferIn.PushDropOldest(&detectorJob{streamID: pipe.StreamID, ctx: fctx})
		pipe.InfStateIn.PushDropOldest(fctx)
	}
}
