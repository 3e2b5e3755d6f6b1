// Package detector implements the Detector capability: a stateless
// detect(frame) -> [Box]. The production implementation is a
// Haar-cascade face detector built on gocv.CascadeClassifier, grounded on
// the Haar-cascade usage shown in other_examples' ffmpeg/detection snippet
// (classifier.Load + DetectMultiScale over a gocv.Mat).
package detector

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/e7canasta/shroudstream/internal/frame"
)

// Detector is the stateless contract consumed by the detector worker pool.
// Implementations must be safe for concurrent calls from multiple workers.
type Detector interface {
	Detect(img *frame.Image) ([]frame.Box, error)
	Close()
}

// faceDetector runs Haar-cascade face detection. gocv.CascadeClassifier is
// not safe for concurrent DetectMultiScale calls on one instance (the
// underlying OpenCV object keeps scratch buffers), so the detector owns a
// small pool of independently-loaded classifiers and hands each call
// whichever one is free via a buffered channel, rather than serializing
// every call behind one mutex.
type faceDetector struct {
	pool chan *gocv.CascadeClassifier
	size int

	mu     sync.Mutex
	closed bool
}

// New loads cascadeFile into poolSize independent classifiers (poolSize
// should match the configured inf_workers count) and returns a Detector
// ready for concurrent use.
func New(cascadeFile string, poolSize int) (Detector, error) {
	if poolSize < 1 {
		poolSize = 1
	}

	pool := make(chan *gocv.CascadeClassifier, poolSize)
	for i := 0; i < poolSize; i++ {
		c := gocv.NewCascadeClassifier()
		if !c.Load(cascadeFile) {
			c.Close()
			for len(pool) > 0 {
				(<-pool).Close()
			}
			return nil, fmt.Errorf("detector: failed to load cascade %s", cascadeFile)
		}
		pool <- &c
	}

	return &faceDetector{
		pool: pool,
		size: poolSize,
	}, nil
}

// Detect runs the cascade over img and returns boxes in inference-frame
// coordinates. Haar cascades report no confidence score; every detection is
// reported at score 1.0 so it always clears the tracker's high_thresh
// partition.
func (d *faceDetector) Detect(img *frame.Image) ([]frame.Box, error) {
	if img == nil || img.Empty() {
		return nil, fmt.Errorf("detector: empty image")
	}

	mat, err := gocv.NewMatFromBytes(img.Height, img.Width, gocv.MatTypeCV8UC3, img.Pix)
	if err != nil {
		return nil, fmt.Errorf("detector: wrap image: %w", err)
	}
	defer mat.Close()

	classifier := <-d.pool
	rects := classifier.DetectMultiScale(mat)
	d.pool <- classifier

	boxes := make([]frame.Box, 0, len(rects))
	for _, r := range rects {
		boxes = append(boxes, rectToBox(r))
	}
	return boxes, nil
}

func rectToBox(r image.Rectangle) frame.Box {
	return frame.Box{
		X:     float64(r.Min.X),
		Y:     float64(r.Min.Y),
		W:     float64(r.Dx()),
		H:     float64(r.Dy()),
		Score: 1.0,
		ID:    -1,
	}
}

// Close releases every classifier in the pool. Safe to call once.
func (d *faceDetector) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	for i := 0; i < d.size; i++ {
		c := <-d.pool
		c.Close()
	}
}
