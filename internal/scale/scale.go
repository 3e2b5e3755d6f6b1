// Package scale derives the low-resolution inference copy of a frame from
// its high-resolution UI copy, and the coordinate mapping between the two.
//
// The source capability (internal/source) captures once at UI resolution and
// calls Down to produce the paired inference image so both images come
// from the same source instant.
package scale

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"github.com/e7canasta/shroudstream/internal/frame"
)

// Interp names the resampling kernels allowed for output profiles.
type Interp string

const (
	InterpNearest Interp = "nearest"
	InterpLinear  Interp = "linear"
	InterpCubic   Interp = "cubic"
	InterpArea    Interp = "area"
)

func kernel(i Interp) draw.Interpolator {
	switch i {
	case InterpNearest:
		return draw.NearestNeighbor
	case InterpCubic:
		return draw.CatmullRom
	case InterpArea, InterpLinear, "":
		return draw.BiLinear
	default:
		return draw.BiLinear
	}
}

// Down resizes a BGR src image (uiW x uiH) down to (infW x infH) using the
// given interpolation, and returns the resized image together with the
// Mapping that sends inference-space points back onto the UI source: a
// point (xi, yi) in inference coordinates maps to (xi*sx+tx, yi*sy+ty) in
// UI coordinates.
func Down(src *frame.Image, infW, infH int, interp Interp) (*frame.Image, frame.Mapping) {
	dst := &frame.Image{
		Width:  infW,
		Height: infH,
		Pix:    make([]byte, infW*infH*3),
	}

	srcImg := wrapBGR(src)
	dstImg := wrapBGR(dst)

	kernel(interp).Scale(dstImg, dstImg.Bounds(), srcImg, srcImg.Bounds(), draw.Over, nil)

	mapping := frame.Mapping{
		Sx: float64(src.Width) / float64(infW),
		Sy: float64(src.Height) / float64(infH),
		Tx: 0,
		Ty: 0,
	}
	return dst, mapping
}

// bgrImage adapts a frame.Image (interleaved BGR) to image/draw's
// image.Image/draw.Image interfaces without copying pixel data.
type bgrImage struct {
	img *frame.Image
}

func wrapBGR(img *frame.Image) *bgrImage {
	return &bgrImage{img: img}
}

func (b *bgrImage) ColorModel() color.Model { return color.RGBAModel }

func (b *bgrImage) Bounds() image.Rectangle {
	return image.Rect(0, 0, b.img.Width, b.img.Height)
}

func (b *bgrImage) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= b.img.Width || y >= b.img.Height {
		return color.RGBA{}
	}
	i := (y*b.img.Width + x) * 3
	return color.RGBA{R: b.img.Pix[i+2], G: b.img.Pix[i+1], B: b.img.Pix[i], A: 255}
}

func (b *bgrImage) Set(x, y int, c color.Color) {
	if x < 0 || y < 0 || x >= b.img.Width || y >= b.img.Height {
		return
	}
	r, g, bl, _ := c.RGBA()
	i := (y*b.img.Width + x) * 3
	b.img.Pix[i] = byte(bl >> 8)
	b.img.Pix[i+1] = byte(g >> 8)
	b.img.Pix[i+2] = byte(r >> 8)
}
