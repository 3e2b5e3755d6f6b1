// Package frame defines the data types that flow through the pipeline:
// detections and tracks (Box), one ingest tick (Bundle), a bundle
// enriched with tracking results (Ctx), and the payloads published on
// the detector and analytics queues.
package frame

// Box is an axis-aligned rectangle in inference-frame coordinates, either a
// raw detection or a tracked object.
//
// Id is -1 on raw detections and >= 1 once assigned by the tracker. Occluded
// is set by the tracker for coasted (predict-only) tracks.
type Box struct {
	X, Y, W, H float64
	Score      float64
	ID         int
	Occluded   bool
}

// Mapping is the fixed affine transform from inference-frame coordinates to
// UI-frame coordinates, latched once per stream on the first successful
// read from its FrameSource.
type Mapping struct {
	Sx, Sy float64
	Tx, Ty float64
}

// Apply maps a point from inference coordinates to UI coordinates.
func (m Mapping) Apply(x, y float64) (float64, float64) {
	return x*m.Sx + m.Tx, y*m.Sy + m.Ty
}

// Image is an immutable or mutable pixel buffer, depending on which copy of
// a FrameBundle it backs. Width/Height describe Pix's logical dimensions;
// Pix holds interleaved BGR bytes (the convention used throughout the ingest
// and anonymize stages, matching gocv.Mat's default channel order).
type Image struct {
	Width, Height int
	Pix           []byte
}

// Empty reports whether the image carries no pixels, used to detect frames
// whose UI copy was never populated (e.g. a skipped tick) before encoding.
func (img *Image) Empty() bool {
	return img == nil || len(img.Pix) == 0 || img.Width <= 0 || img.Height <= 0
}

// Bundle is one ingest tick: a time-aligned (inference, UI) frame pair plus
// the coordinate mapping between them. FrameID is strictly increasing per
// stream, starting at 0.
type Bundle struct {
	StreamID string
	FrameID  uint64
	PtsNs    int64
	InfImage *Image
	UIImage  *Image
	Mapping  Mapping
	TraceID  string
}

// Ctx enriches a Bundle with its eventual tracked boxes. InfImage is set to
// nil as soon as detection completes on it; UIImage survives until encoded.
// InfWidth/InfHeight are recorded at ingest time so the encoder can still
// report the inference profile's dimensions after InfImage is released.
type Ctx struct {
	Bundle
	TrackedBoxes        []Box
	InfWidth, InfHeight int
}

// InferResults is the detector's output for one frame.
type InferResults struct {
	StreamID string
	FrameID  uint64
	Boxes    []Box
}

// TrackerOutput is published on the bounded analytics queue for consumers
// outside the core (the MQTT emitter, in this build).
type TrackerOutput struct {
	StreamID string
	FrameID  uint64
	PtsNs    int64
	Tracks   []Box
}
