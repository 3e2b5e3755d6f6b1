// Package anonymize implements in-place redaction of UI pixels inside the
// tracker's boxes, mapped from inference to UI coordinates. Both redaction
// methods are built on
// gocv.io/x/gocv image ops, the same library the teacher corpus uses for
// all pixel manipulation (capture, resize, encode).
package anonymize

import (
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/e7canasta/shroudstream/internal/frame"
)

// Method selects the redaction algorithm.
type Method string

const (
	MethodPixelate Method = "pixelate"
	MethodBlur     Method = "blur"
)

// Anonymizer mutates ui_image in place inside every mapped, clipped box.
type Anonymizer interface {
	Apply(img *frame.Image, boxes []frame.Box, mapping frame.Mapping)
}

// Config holds the method-specific redaction parameters.
type Config struct {
	Method            Method
	PixelationDivisor int
	BlurKernel        int
}

type anonymizer struct {
	cfg Config
}

// New builds an Anonymizer from the configured method and parameters.
func New(cfg Config) Anonymizer {
	return &anonymizer{cfg: cfg}
}

// Apply mutates img in place. Every box is mapped to UI space, clipped to
// the image rectangle, and — unless it collapses below the minimum mapped
// size — redacted with the configured method.
func (a *anonymizer) Apply(img *frame.Image, boxes []frame.Box, mapping frame.Mapping) {
	if img == nil || img.Empty() || len(boxes) == 0 {
		return
	}

	mat, err := gocv.NewMatFromBytes(img.Height, img.Width, gocv.MatTypeCV8UC3, img.Pix)
	if err != nil {
		return
	}
	defer mat.Close()

	for _, b := range boxes {
		r, ok := mapBox(b, mapping, img.Width, img.Height)
		if !ok {
			continue
		}
		roi := mat.Region(r)
		switch a.cfg.Method {
		case MethodPixelate:
			pixelate(roi, a.cfg.PixelationDivisor)
		default:
			blur(roi, a.cfg.BlurKernel)
		}
		roi.Close()
	}

	copy(img.Pix, mat.ToBytes())
}

// mapBox applies the affine box mapping and clipping rules.
// Boxes with an original w<=1 or h<=1 are skipped before mapping; boxes
// whose mapped w'<2 or h'<2 are skipped after mapping and clipping.
func mapBox(b frame.Box, m frame.Mapping, uiW, uiH int) (image.Rectangle, bool) {
	if b.W <= 1 || b.H <= 1 {
		return image.Rectangle{}, false
	}

	x := int(math.Round(b.X*m.Sx + m.Tx))
	y := int(math.Round(b.Y*m.Sy + m.Ty))
	w := int(math.Round(b.W * m.Sx))
	h := int(math.Round(b.H * m.Sy))

	r := image.Rect(x, y, x+w, y+h).Intersect(image.Rect(0, 0, uiW, uiH))
	if r.Dx() < 2 || r.Dy() < 2 {
		return image.Rectangle{}, false
	}
	return r, true
}

// pixelate downscales the ROI to (max(2, w/d), max(2, h/d)) with linear
// interpolation, then upscales back with nearest-neighbor.
func pixelate(roi gocv.Mat, divisor int) {
	d := divisor
	if d < 2 {
		d = 2
	}

	w, h := roi.Cols(), roi.Rows()
	smallW := maxInt(2, w/d)
	smallH := maxInt(2, h/d)

	small := gocv.NewMat()
	defer small.Close()
	gocv.Resize(roi, &small, image.Pt(smallW, smallH), 0, 0, gocv.InterpolationLinear)
	gocv.Resize(small, &roi, image.Pt(w, h), 0, 0, gocv.InterpolationNearestNeighbor)
}

// blur applies a Gaussian blur with an odd kernel >= 3, sigma auto-derived
// (0 tells OpenCV to compute sigma from the kernel size).
func blur(roi gocv.Mat, kernel int) {
	k := kernel
	if k < 3 {
		k = 3
	}
	if k%2 == 0 {
		k++
	}
	gocv.GaussianBlur(roi, &roi, image.Pt(k, k), 0, 0, gocv.BorderDefault)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
