package tracker

import (
	"testing"

	"github.com/e7canasta/shroudstream/internal/frame"
)

func box(x, y, w, h, score float64) frame.Box {
	return frame.Box{X: x, Y: y, W: w, H: h, Score: score, ID: -1}
}

func TestIoUDisjointIsZero(t *testing.T) {
	a := box(0, 0, 10, 10, 1)
	b := box(100, 100, 10, 10, 1)
	if v := iou(a, b); v != 0 {
		t.Fatalf("iou = %v, want 0", v)
	}
}

func TestIoUIdenticalIsOne(t *testing.T) {
	a := box(5, 5, 10, 10, 1)
	if v := iou(a, a); v != 1 {
		t.Fatalf("iou = %v, want 1", v)
	}
}

// S2 — birth after min_hits. A newborn track (hits=1, missed=0) is emitted
// on its first frame: emit suppresses only tracks that are below min_hits
// and have also missed a frame.
func TestBirthAfterMinHits(t *testing.T) {
	tr := New(DefaultConfig())
	det := box(10, 10, 8, 8, 0.9)

	out := tr.Update([]frame.Box{det})
	if len(out) != 1 || out[0].ID != 1 || out[0].Occluded {
		t.Fatalf("frame 0: got %+v, want one non-occluded track id=1 (newborn emits on birth)", out)
	}

	out = tr.Update([]frame.Box{det})
	if len(out) != 1 || out[0].ID != 1 || out[0].Occluded {
		t.Fatalf("frame 1: got %+v, want one non-occluded track id=1", out)
	}

	out = tr.Update([]frame.Box{det})
	if len(out) != 1 || out[0].ID != 1 {
		t.Fatalf("frame 2: got %+v, want track id=1 to persist", out)
	}
}

// S3 — occlusion coast: after birth, detector goes empty for a while; the
// track must keep emitting (occluded=true) until max_missed is exceeded.
func TestOcclusionCoastSurvivesWithinMaxMissed(t *testing.T) {
	cfg := DefaultConfig()
	tr := New(cfg)
	det := box(10, 10, 8, 8, 0.9)

	tr.Update([]frame.Box{det})
	tr.Update([]frame.Box{det})

	for i := 0; i < 4; i++ {
		out := tr.Update(nil)
		if len(out) != 1 {
			t.Fatalf("coast step %d: got %d tracks, want 1", i, len(out))
		}
		if !out[0].Occluded {
			t.Fatalf("coast step %d: want occluded=true", i)
		}
		if out[0].ID != 1 {
			t.Fatalf("coast step %d: id changed to %d, want 1", i, out[0].ID)
		}
	}
}

func TestTrackDiesAfterMaxMissed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxMissed = 2
	tr := New(cfg)
	det := box(10, 10, 8, 8, 0.9)

	tr.Update([]frame.Box{det})
	tr.Update([]frame.Box{det})

	tr.Update(nil) // missed=1
	tr.Update(nil) // missed=2
	out := tr.Update(nil) // missed=3 > max_missed=2
	if len(out) != 0 {
		t.Fatalf("got %d tracks after exceeding max_missed, want 0", len(out))
	}
}

// Tracker identity stability (property 6): overlapping consecutive
// high-confidence detections keep the same track id.
func TestIdentityStableAcrossOverlappingDetections(t *testing.T) {
	tr := New(DefaultConfig())
	d0 := box(100, 100, 20, 20, 0.9)
	d1 := box(102, 101, 20, 20, 0.9) // heavy overlap, small shift

	tr.Update([]frame.Box{d0})
	out := tr.Update([]frame.Box{d1})
	if len(out) != 1 || out[0].ID != 1 {
		t.Fatalf("got %+v, want stable id=1", out)
	}
}

func TestLowScoreDetectionIsDiscarded(t *testing.T) {
	tr := New(DefaultConfig())
	out := tr.Update([]frame.Box{box(0, 0, 10, 10, 0.05)}) // below low_thresh=0.2
	if len(out) != 0 {
		t.Fatalf("got %d tracks from a sub-low-thresh detection, want 0", len(out))
	}
}

func TestGreedyMatchTieBreakIsLexicographic(t *testing.T) {
	// Two tracks, one det; both tracks clear threshold with equal IoU.
	// The lower track index must win.
	trackTaken := []bool{false, false}
	detTaken := []bool{false}
	matches := greedyMatch(2, 1, 0.1, func(ti, di int) float64 { return 0.5 }, trackTaken, detTaken)
	if di, ok := matches[0]; !ok || di != 0 {
		t.Fatalf("matches = %v, want track 0 matched to det 0", matches)
	}
	if _, ok := matches[1]; ok {
		t.Fatalf("matches = %v, want track 1 left unmatched", matches)
	}
}
