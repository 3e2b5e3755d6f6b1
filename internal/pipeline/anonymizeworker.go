package pipeline

import (
	"context"

	"github.com/e7canasta/shroudstream/internal/anonymize"
)

// runAnonymize is the per-stream anonymizer worker: drains
// anon_in, redacts ui_image in place inside the mapped, clipped boxes, and
// hands the context off to enc_in.
func runAnonymize(ctx context.Context, pipe *StreamPipe, anon anonymize.Anonymizer) {
	defer pipe.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		fctx, ok := pipe.AnonIn.PopFor(readTimeout)
		if !ok {
			continue
		}

		anon.Apply(fctx.UIImage, fctx.TrackedBoxes, fctx.Mapping)
		pipe.EncIn.PushDropOldest(fctx)
	}
}
