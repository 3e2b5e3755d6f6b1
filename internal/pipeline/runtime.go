package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/e7canasta/shroudstream/internal/anonymize"
	"github.com/e7canasta/shroudstream/internal/config"
	"github.com/e7canasta/shroudstream/internal/detector"
	"github.com/e7canasta/shroudstream/internal/emitter"
	"github.com/e7canasta/shroudstream/internal/frame"
	"github.com/e7canasta/shroudstream/internal/queue"
	"github.com/e7canasta/shroudstream/internal/registry"
	"github.com/e7canasta/shroudstream/internal/source"
	"github.com/e7canasta/shroudstream/internal/tracker"
)

// Runtime builds and owns every StreamPipe, the shared detector pool, and
// the goroutines that drive them, grounded on the teacher's Orion
// orchestrator (Run/Shutdown/watchWorkers in
// References/orion-prototipe/internal/core/orion.go), generalized from
// one stream and one worker set to S streams sharing one detector pool.
type Runtime struct {
	cfg      *config.Config
	registry *registry.Registry
	emitter  *emitter.Emitter
	detector detector.Detector
	anon     anonymize.Anonymizer

	inferIn      *queue.Queue[*detectorJob]
	analyticsOut *queue.Queue[frame.TrackerOutput]
	detRoutes    map[string]*queue.Queue[frame.InferResults]

	pipes []*StreamPipe

	mu        sync.Mutex
	running   bool
	runCtx    context.Context
	cancelRun context.CancelFunc
	wg        sync.WaitGroup
}

// NewRuntime constructs a Runtime. The stream list passed to Start must
// already be replica-expanded (internal/replicate.Expand).
func NewRuntime(cfg *config.Config, reg *registry.Registry) *Runtime {
	return &Runtime{
		cfg:       cfg,
		registry:  reg,
		detRoutes: make(map[string]*queue.Queue[frame.InferResults]),
	}
}

// Start builds the detector/anonymizer, builds per-stream pipes, spawns the
// shared detector pool, then spawns each stream's four workers. Returns
// false if nothing could be started.
func (rt *Runtime) Start(ctx context.Context, streams []config.StreamConfig) bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.running {
		return true
	}

	det, err := detector.New(rt.cfg.Runtime.Detector.CascadeFile, rt.cfg.Runtime.InfWorkers)
	if err != nil {
		slog.Error("runtime: failed to build detector", "error", err)
		return false
	}
	rt.detector = det
	rt.anon = anonymize.New(anonymize.Config{
		Method:            anonymize.Method(rt.cfg.Runtime.Anonymizer.Method),
		PixelationDivisor: rt.cfg.Runtime.Anonymizer.PixelationDivisor,
		BlurKernel:        rt.cfg.Runtime.Anonymizer.BlurKernel,
	})

	if rt.cfg.MQTT.Broker != "" {
		rt.emitter = emitter.New(emitter.Config{Broker: rt.cfg.MQTT.Broker, Topic: rt.cfg.MQTT.Topic, ClientID: "shroudstreamd"})
		if err := rt.emitter.Connect(); err != nil {
			slog.Warn("runtime: mqtt connect failed, continuing without analytics sink", "error", err)
			rt.emitter = nil
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	rt.runCtx = runCtx
	rt.cancelRun = cancel

	caps := QueueCapacities{
		InferIn:      orDefault(rt.cfg.Runtime.QueueCapacities.InferIn, 64),
		AnalyticsOut: orDefault(rt.cfg.Runtime.QueueCapacities.AnalyticsOut, 256),
		InfStateIn:   orDefault(rt.cfg.Runtime.QueueCapacities.InfStateIn, 32),
		DetRes:       orDefault(rt.cfg.Runtime.QueueCapacities.DetRes, 32),
		AnonIn:       orDefault(rt.cfg.Runtime.QueueCapacities.AnonIn, 16),
		EncIn:        orDefault(rt.cfg.Runtime.QueueCapacities.EncIn, 16),
	}

	rt.inferIn = queue.New[*detectorJob](caps.InferIn)
	rt.analyticsOut = queue.New[frame.TrackerOutput](caps.AnalyticsOut)

	for _, sc := range streams {
		src := buildSource(sc)
		if ok := src.Start(); !ok {
			slog.Error("runtime: source failed to start, skipping stream", "stream", sc.ID)
			continue
		}

		trk := tracker.New(tracker.Config{
			HighThresh:        rt.cfg.Runtime.Tracker.HighThresh,
			LowThresh:         rt.cfg.Runtime.Tracker.LowThresh,
			MatchIoUThresh:    rt.cfg.Runtime.Tracker.MatchIoUThresh,
			LowMatchIoUThresh: rt.cfg.Runtime.Tracker.LowMatchIoUThresh,
			MinHits:           rt.cfg.Runtime.Tracker.MinHits,
			MaxMissed:         rt.cfg.Runtime.Tracker.MaxMissed,
		})

		pipe := newStreamPipe(sc.ID, src, trk, caps)
		rt.detRoutes[sc.ID] = pipe.DetRes
		rt.pipes = append(rt.pipes, pipe)
	}

	if len(rt.pipes) == 0 {
		slog.Error("runtime: no stream started")
		if rt.cancelRun != nil {
			rt.cancelRun()
		}
		if rt.inferIn != nil {
			rt.inferIn.Stop()
		}
		if rt.analyticsOut != nil {
			rt.analyticsOut.Stop()
		}
		if rt.detector != nil {
			rt.detector.Close()
			rt.detector = nil
		}
		if rt.emitter != nil {
			rt.emitter.Disconnect()
			rt.emitter = nil
		}
		return false
	}

	workers := rt.cfg.Runtime.InfWorkers
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		rt.wg.Add(1)
		go func(id int) {
			defer rt.wg.Done()
			runDetectorWorker(runCtx, rt.detector, rt.inferIn, rt.detRoutes, id)
		}(i)
	}

	for _, pipe := range rt.pipes {
		pipe.wg.Add(4)
		rt.wg.Add(4)
		go rt.runIngestWorker(runCtx, pipe)
		go rt.runOrderWorker(runCtx, pipe)
		go rt.runAnonymizeWorker(runCtx, pipe)
		go rt.runEncodeWorker(runCtx, pipe)
	}

	if rt.emitter != nil {
		rt.wg.Add(1)
		go func() {
			defer rt.wg.Done()
			runAnalyticsEmit(runCtx, rt.analyticsOut, rt.emitter)
		}()
	}

	rt.wg.Add(1)
	go func() {
		defer rt.wg.Done()
		rt.logStatsPeriodically(runCtx)
	}()

	rt.running = true
	slog.Info("pipeline runtime started", "streams", len(rt.pipes), "detector_workers", workers)
	return true
}

func (rt *Runtime) runIngestWorker(ctx context.Context, pipe *StreamPipe) {
	defer rt.wg.Done()
	runIngest(ctx, pipe, rt.inferIn)
}

func (rt *Runtime) runOrderWorker(ctx context.Context, pipe *StreamPipe) {
	defer rt.wg.Done()
	runOrderTrack(ctx, pipe, rt.analyticsOut, rt.cfg.Runtime.ReorderWindow, rt.cfg.Runtime.PendingCap)
}

func (rt *Runtime) runAnonymizeWorker(ctx context.Context, pipe *StreamPipe) {
	defer rt.wg.Done()
	runAnonymize(ctx, pipe, rt.anon)
}

func (rt *Runtime) runEncodeWorker(ctx context.Context, pipe *StreamPipe) {
	defer rt.wg.Done()
	runEncode(ctx, pipe, rt.registry, rt.cfg.Runtime.JPEGQuality)
}

// logStatsPeriodically reports queue depths every 30s, echoing the
// teacher's watchWorkers health-check cadence without the restart logic —
// this runtime relies on drop-oldest back-pressure instead of restarting
// workers, favoring fresh frames over complete delivery.
func (rt *Runtime) logStatsPeriodically(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, pipe := range rt.pipes {
				slog.Debug("pipeline queue depths",
					"stream", pipe.StreamID,
					"inf_state_in", pipe.InfStateIn.Stats(),
					"det_res", pipe.DetRes.Stats(),
					"anon_in", pipe.AnonIn.Stats(),
					"enc_in", pipe.EncIn.Stats(),
				)
			}
		}
	}
}

// Stop stops every queue (unblocking all pop_for waiters), cancels the run
// context, joins every goroutine, then drops the detector and anonymizer
// last. Safe to call after a partially failed Start, and idempotent.
func (rt *Runtime) Stop() {
	rt.mu.Lock()
	if !rt.running {
		rt.mu.Unlock()
		return
	}
	rt.running = false
	rt.mu.Unlock()

	if rt.cancelRun != nil {
		rt.cancelRun()
	}

	if rt.inferIn != nil {
		rt.inferIn.Stop()
	}
	if rt.analyticsOut != nil {
		rt.analyticsOut.Stop()
	}
	for _, pipe := range rt.pipes {
		pipe.stopQueues()
	}

	rt.wg.Wait()

	if rt.detector != nil {
		rt.detector.Close()
	}
	if rt.emitter != nil {
		rt.emitter.Disconnect()
	}

	slog.Info("pipeline runtime stopped")
}

func buildSource(sc config.StreamConfig) source.FrameSource {
	opts := source.Options{
		StreamID: sc.ID,
		Interp:   sc.Outputs.Profiles["inference"].Interp,
	}
	if ui, ok := sc.Outputs.Profiles["ui"]; ok {
		opts.UIWidth, opts.UIHeight = ui.Width, ui.Height
	}
	if inf, ok := sc.Outputs.Profiles["inference"]; ok {
		opts.InfWidth, opts.InfHeight = inf.Width, inf.Height
	}

	switch sc.Type {
	case "file":
		return source.NewFileSource(opts, sc.File.Path, sc.File.Loop)
	case "webcam":
		return source.NewWebcamSource(opts, sc.Webcam.Device)
	default: // "rtsp", validated in internal/config
		return source.NewRTSPSource(opts, sc.RTSP.URL)
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
