package pipeline

import (
	"context"

	"github.com/e7canasta/shroudstream/internal/emitter"
	"github.com/e7canasta/shroudstream/internal/frame"
	"github.com/e7canasta/shroudstream/internal/queue"
)

// runAnalyticsEmit drains the shared analytics_out queue and forwards each
// TrackerOutput to the optional MQTT emitter, a consumer outside the core.
// It is only spawned when the runtime built an emitter;
// analytics_out still back-pressures with drop-oldest if nothing drains it.
func runAnalyticsEmit(ctx context.Context, analyticsOut *queue.Queue[frame.TrackerOutput], em *emitter.Emitter) {
	for {
		if ctx.Err() != nil {
			return
		}

		out, ok := analyticsOut.PopFor(readTimeout)
		if !ok {
			continue
		}

		em.Publish(out)
	}
}
