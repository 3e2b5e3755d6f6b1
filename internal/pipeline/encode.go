package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"

	"gocv.io/x/gocv"

	"github.com/e7canasta/shroudstream/internal/frame"
	"github.com/e7canasta/shroudstream/internal/registry"
)

// runEncode is the per-stream encoder + publisher worker. It
// drains enc_in, JPEG-encodes ui_image, and publishes under "<id>/ui" (JPEG
// + metadata) and "<id>/inf" (metadata only, inference dimensions).
func runEncode(ctx context.Context, pipe *StreamPipe, reg *registry.Registry, jpegQuality int) {
	defer pipe.wg.Done()

	uiKey := pipe.StreamID + "/ui"
	infKey := pipe.StreamID + "/inf"
	uiState := reg.Register(uiKey)
	infState := reg.Register(infKey)

	for {
		if ctx.Err() != nil {
			return
		}

		fctx, ok := pipe.EncIn.PopFor(readTimeout)
		if !ok {
			continue
		}

		if fctx.UIImage.Empty() {
			continue // empty UI images are skipped
		}

		jpeg, err := encodeJPEG(fctx.UIImage, jpegQuality)
		if err != nil {
			slog.Error("encode worker: jpeg encode failed", "stream", pipe.StreamID, "error", err)
			continue
		}

		uiState.PushJPEG(jpeg)
		uiState.PushMeta(uiMetaJSON(pipe.StreamID, fctx.FrameID, fctx.PtsNs, fctx.UIImage.Width, fctx.UIImage.Height, len(fctx.TrackedBoxes)))
		infState.PushMeta(infMetaJSON(pipe.StreamID, fctx.FrameID, fctx.PtsNs, fctx.InfWidth, fctx.InfHeight))
	}
}

func encodeJPEG(img *frame.Image, quality int) ([]byte, error) {
	mat, err := gocv.NewMatFromBytes(img.Height, img.Width, gocv.MatTypeCV8UC3, img.Pix)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, err
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}

// uiMetaFields is the "<id>/ui" metadata shape. Tracks has no omitempty:
// viewers must see a literal "tracks":0 on every zero-detection frame, not
// a dropped field.
type uiMetaFields struct {
	StreamID string `json:"stream_id"`
	Profile  string `json:"profile"`
	FrameID  uint64 `json:"frame_id"`
	PtsNs    int64  `json:"pts_ns"`
	Width    int    `json:"w"`
	Height   int    `json:"h"`
	Tracks   int    `json:"tracks"`
}

// infMetaFields is the "<id>/inf" metadata shape: dimensions only, no
// tracks field at all.
type infMetaFields struct {
	StreamID string `json:"stream_id"`
	Profile  string `json:"profile"`
	FrameID  uint64 `json:"frame_id"`
	PtsNs    int64  `json:"pts_ns"`
	Width    int    `json:"w"`
	Height   int    `json:"h"`
}

func uiMetaJSON(streamID string, frameID uint64, ptsNs int64, w, h, tracks int) string {
	b, err := json.Marshal(uiMetaFields{
		StreamID: streamID, Profile: "ui", FrameID: frameID, PtsNs: ptsNs, Width: w, Height: h, Tracks: tracks,
	})
	if err != nil {
		return "{}"
	}
	return string(b)
}

func infMetaJSON(streamID string, frameID uint64, ptsNs int64, w, h int) string {
	b, err := json.Marshal(infMetaFields{
		StreamID: streamID, Profile: "inf", FrameID: frameID, PtsNs: ptsNs, Width: w, Height: h,
	})
	if err != nil {
		return "{}"
	}
	return string(b)
}
