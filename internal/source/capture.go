package source

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"github.com/e7canasta/shroudstream/internal/frame"
	"github.com/e7canasta/shroudstream/internal/scale"
)

// captureSource implements FrameSource for "file" and "webcam" streams using
// gocv.VideoCapture. It polls the capture device on its own goroutine and
// hands the latest frame off through a mailbox, the same drop-newest-wins
// boundary the teacher uses between GStreamer and its consumers.
type captureSource struct {
	opts Options
	open func() (*gocv.VideoCapture, error)
	loop bool

	mu      sync.Mutex
	cap     *gocv.VideoCapture
	stop    chan struct{}
	wg      sync.WaitGroup
	box     *mailbox
	mapping frame.Mapping
	latched bool
	frameID uint64
}

// NewFileSource opens a video file. loop restarts the capture from frame 0
// when it reaches end of stream.
func NewFileSource(opts Options, path string, loop bool) FrameSource {
	return &captureSource{
		opts: opts,
		loop: loop,
		open: func() (*gocv.VideoCapture, error) {
			vc, err := gocv.VideoCaptureFile(path)
			if err != nil {
				return nil, fmt.Errorf("source %s: open file %s: %w", opts.StreamID, path, err)
			}
			return vc, nil
		},
	}
}

// NewWebcamSource opens a local device index (e.g. /dev/video0 → 0).
func NewWebcamSource(opts Options, device int) FrameSource {
	return &captureSource{
		opts: opts,
		open: func() (*gocv.VideoCapture, error) {
			vc, err := gocv.VideoCaptureDevice(device)
			if err != nil {
				return nil, fmt.Errorf("source %s: open device %d: %w", opts.StreamID, device, err)
			}
			return vc, nil
		},
	}
}

func (s *captureSource) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cap != nil {
		return true // idempotent after success
	}

	vc, err := s.open()
	if err != nil {
		slog.Error("source start failed", "stream", s.opts.StreamID, "error", err)
		return false
	}

	if s.opts.UIWidth > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(s.opts.UIWidth))
	}
	if s.opts.UIHeight > 0 {
		vc.Set(gocv.VideoCaptureFrameHeight, float64(s.opts.UIHeight))
	}

	s.cap = vc
	s.stop = make(chan struct{})
	s.box = newMailbox()

	s.wg.Add(1)
	go s.pollLoop(vc, s.stop)

	return true
}

func (s *captureSource) pollLoop(vc *gocv.VideoCapture, stop chan struct{}) {
	defer s.wg.Done()

	mat := gocv.NewMat()
	defer mat.Close()

	for {
		select {
		case <-stop:
			return
		default:
		}

		if ok := vc.Read(&mat); !ok || mat.Empty() {
			if s.loop {
				vc.Set(gocv.VideoCapturePosFrames, 0)
				continue
			}
			time.Sleep(20 * time.Millisecond)
			continue
		}

		pix, err := mat.DataPtrUint8()
		if err != nil {
			continue
		}
		cp := make([]byte, len(pix))
		copy(cp, pix)

		s.box.Publish(&rawFrame{
			pix:    cp,
			width:  mat.Cols(),
			height: mat.Rows(),
			ptsNs:  time.Now().UnixNano(),
		})
	}
}

func (s *captureSource) Read(timeout time.Duration) (*frame.Bundle, bool) {
	raw, ok := s.box.Receive(timeout)
	if !ok {
		return nil, false
	}

	ui := &frame.Image{Width: raw.width, Height: raw.height, Pix: raw.pix}

	infW, infH := s.opts.InfWidth, s.opts.InfHeight
	if infW <= 0 || infH <= 0 {
		infW, infH = raw.width, raw.height
	}
	inf, mapping := scale.Down(ui, infW, infH, scale.Interp(s.opts.Interp))

	s.mu.Lock()
	if !s.latched {
		s.mapping = mapping
		s.latched = true
	}
	id := s.frameID
	s.frameID++
	s.mu.Unlock()

	return &frame.Bundle{
		StreamID: s.opts.StreamID,
		FrameID:  id,
		PtsNs:    raw.ptsNs,
		InfImage: inf,
		UIImage:  ui,
		Mapping:  s.mapping,
		TraceID:  uuid.New().String(),
	}, true
}

func (s *captureSource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cap == nil {
		return
	}
	close(s.stop)
	s.box.Close()
	s.wg.Wait()
	s.cap.Close()
	s.cap = nil
}
