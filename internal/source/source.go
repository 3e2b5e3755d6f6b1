// Package source implements the FrameSource capability: the ingest
// worker's only window onto a camera, file, or RTSP URL. The three stream
// types are served by two concrete implementations — capture.go (file/webcam,
// via gocv.VideoCapture) and rtsp.go (via go-gst) — behind the single FrameSource
// interface so the pipeline runtime never branches on source type.
package source

import (
	"time"

	"github.com/e7canasta/shroudstream/internal/frame"
)

// FrameSource is the capability contract consumed by the ingest worker.
// Start is idempotent after a successful call; Stop is always safe, including
// after a failed Start.
type FrameSource interface {
	Start() bool
	Read(timeout time.Duration) (*frame.Bundle, bool)
	Stop()
}

// Options configures the dual-output resolution and resampling used to
// derive the inference copy from the captured UI-resolution frame.
type Options struct {
	StreamID string

	UIWidth  int
	UIHeight int

	InfWidth  int
	InfHeight int
	Interp    string // nearest | linear | cubic | area
}
