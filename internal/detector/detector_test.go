package detector

import (
	"image"
	"testing"

	"github.com/e7canasta/shroudstream/internal/frame"
)

func TestRectToBoxCarriesFullConfidence(t *testing.T) {
	b := rectToBox(image.Rect(10, 20, 18, 32))
	want := frame.Box{X: 10, Y: 20, W: 8, H: 12, Score: 1.0, ID: -1}
	if b != want {
		t.Fatalf("rectToBox = %+v, want %+v", b, want)
	}
}

func TestDetectRejectsEmptyImage(t *testing.T) {
	d := &faceDetector{}
	if _, err := d.Detect(nil); err == nil {
		t.Fatal("expected error for nil image")
	}
	if _, err := d.Detect(&frame.Image{}); err == nil {
		t.Fatal("expected error for empty image")
	}
}
