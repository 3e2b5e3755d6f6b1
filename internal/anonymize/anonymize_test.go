package anonymize

import (
	"image"
	"testing"

	"github.com/e7canasta/shroudstream/internal/frame"
)

func TestMapBoxAppliesAffineMapping(t *testing.T) {
	b := frame.Box{X: 10, Y: 5, W: 8, H: 8}
	m := frame.Mapping{Sx: 2, Sy: 2, Tx: 0, Ty: 0}

	r, ok := mapBox(b, m, 640, 480)
	if !ok {
		t.Fatal("expected mapped box to be accepted")
	}
	want := image.Rect(20, 10, 36, 26)
	if r != want {
		t.Fatalf("mapped rect = %v, want %v", r, want)
	}
}

func TestMapBoxSkipsDegenerateOriginalBox(t *testing.T) {
	m := frame.Mapping{Sx: 1, Sy: 1}
	if _, ok := mapBox(frame.Box{X: 0, Y: 0, W: 1, H: 10}, m, 100, 100); ok {
		t.Fatal("expected box with w<=1 to be skipped before mapping")
	}
	if _, ok := mapBox(frame.Box{X: 0, Y: 0, W: 10, H: 1}, m, 100, 100); ok {
		t.Fatal("expected box with h<=1 to be skipped before mapping")
	}
}

func TestMapBoxSkipsTinyMappedBox(t *testing.T) {
	m := frame.Mapping{Sx: 0.1, Sy: 0.1}
	b := frame.Box{X: 0, Y: 0, W: 10, H: 10} // maps to 1x1
	if _, ok := mapBox(b, m, 100, 100); ok {
		t.Fatal("expected mapped box below 2x2 to be skipped")
	}
}

func TestMapBoxClipsToImageRectangle(t *testing.T) {
	m := frame.Mapping{Sx: 1, Sy: 1}
	b := frame.Box{X: 90, Y: 90, W: 20, H: 20}
	r, ok := mapBox(b, m, 100, 100)
	if !ok {
		t.Fatal("expected clipped box to still be accepted")
	}
	want := image.Rect(90, 90, 100, 100)
	if r != want {
		t.Fatalf("clipped rect = %v, want %v", r, want)
	}
}
