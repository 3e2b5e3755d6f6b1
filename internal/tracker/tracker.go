// Package tracker implements the per-stream multi-object tracker state
// machine: predict, partition, two greedy IoU
// association passes, birth, death, emit. The association shape (partition
// detections by score, match in two passes) is grounded on the two-stage
// structure of swdee-go-rknnlite's ByteTracker, but the matching itself is
// the simpler greedy-by-descending-IoU rule, not ByteTracker's LAPJV
// optimal assignment.
package tracker

import (
	"sort"

	"github.com/e7canasta/shroudstream/internal/frame"
)

// Config holds the per-stream tracker thresholds.
type Config struct {
	HighThresh        float64
	LowThresh         float64
	MatchIoUThresh    float64
	LowMatchIoUThresh float64
	MinHits           int
	MaxMissed         int
}

// DefaultConfig returns the tracker's baseline thresholds.
func DefaultConfig() Config {
	return Config{
		HighThresh:        0.6,
		LowThresh:         0.2,
		MatchIoUThresh:    0.3,
		LowMatchIoUThresh: 0.2,
		MinHits:           2,
		MaxMissed:         20,
	}
}

// Tracker is the per-stream stateful MOT capability.
type Tracker interface {
	Update(dets []frame.Box) []frame.Box
}

type track struct {
	id             int
	box            frame.Box
	vx, vy, vw, vh float64
	age            int
	hits           int
	missed         int
	lastScore      float64
}

// motTracker is the single production implementation of Tracker. It is not
// safe for concurrent Update calls — by design exactly one goroutine (the
// per-stream ordering+tracking worker) owns it.
type motTracker struct {
	cfg    Config
	tracks []*track
	nextID int
}

// New constructs a fresh tracker for one stream.
func New(cfg Config) Tracker {
	return &motTracker{cfg: cfg, nextID: 1}
}

// Update runs one step of the predict/partition/associate/birth/death/emit
// state machine and returns the boxes to emit for this frame.
func (t *motTracker) Update(dets []frame.Box) []frame.Box {
	t.predict()

	high, low := partition(dets, t.cfg.HighThresh, t.cfg.LowThresh)

	trackTaken := make([]bool, len(t.tracks))
	highTaken := make([]bool, len(high))
	lowTaken := make([]bool, len(low))

	firstMatches := greedyMatch(len(t.tracks), len(high), t.cfg.MatchIoUThresh,
		func(ti, di int) float64 { return iou(t.tracks[ti].box, high[di]) },
		trackTaken, highTaken)

	secondMatches := greedyMatch(len(t.tracks), len(low), t.cfg.LowMatchIoUThresh,
		func(ti, di int) float64 { return iou(t.tracks[ti].box, low[di]) },
		trackTaken, lowTaken)

	for ti, di := range firstMatches {
		t.applyMatch(t.tracks[ti], high[di])
	}
	for ti, di := range secondMatches {
		t.applyMatch(t.tracks[ti], low[di])
	}

	for di, det := range high {
		if !highTaken[di] {
			t.birth(det)
		}
	}

	t.reapDead()

	return t.emit()
}

func (t *motTracker) predict() {
	for _, tr := range t.tracks {
		tr.age++
		tr.missed++
		tr.box.X += tr.vx
		tr.box.Y += tr.vy
		tr.box.W += tr.vw
		tr.box.H += tr.vh
		if tr.box.W < 1 {
			tr.box.W = 1
		}
		if tr.box.H < 1 {
			tr.box.H = 1
		}
	}
}

func partition(dets []frame.Box, highThresh, lowThresh float64) (high, low []frame.Box) {
	for _, d := range dets {
		switch {
		case d.Score >= highThresh:
			high = append(high, d)
		case d.Score >= lowThresh:
			low = append(low, d)
		}
	}
	return high, low
}

// greedyMatch builds every (track, det) candidate pair clearing thresh,
// sorts by descending IoU with a (track_index, det_index) lexicographic
// tie-break, and accepts pairs in that order while neither side is taken.
// trackTaken/detTaken are updated in place so a second pass can reuse the
// track side's state.
func greedyMatch(nTracks, nDets int, thresh float64, iouFn func(ti, di int) float64, trackTaken, detTaken []bool) map[int]int {
	type candidate struct {
		ti, di int
		iou    float64
	}

	var candidates []candidate
	for ti := 0; ti < nTracks; ti++ {
		if trackTaken[ti] {
			continue
		}
		for di := 0; di < nDets; di++ {
			if detTaken[di] {
				continue
			}
			v := iouFn(ti, di)
			if v >= thresh {
				candidates = append(candidates, candidate{ti, di, v})
			}
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].iou != candidates[j].iou {
			return candidates[i].iou > candidates[j].iou
		}
		if candidates[i].ti != candidates[j].ti {
			return candidates[i].ti < candidates[j].ti
		}
		return candidates[i].di < candidates[j].di
	})

	matches := make(map[int]int)
	for _, c := range candidates {
		if trackTaken[c.ti] || detTaken[c.di] {
			continue
		}
		trackTaken[c.ti] = true
		detTaken[c.di] = true
		matches[c.ti] = c.di
	}
	return matches
}

func (t *motTracker) applyMatch(tr *track, det frame.Box) {
	tr.vx = 0.5*(det.X-tr.box.X) + 0.5*tr.vx
	tr.vy = 0.5*(det.Y-tr.box.Y) + 0.5*tr.vy
	tr.vw = 0.5*(det.W-tr.box.W) + 0.5*tr.vw
	tr.vh = 0.5*(det.H-tr.box.H) + 0.5*tr.vh
	tr.box = det
	tr.hits++
	tr.missed = 0
	tr.lastScore = det.Score
}

func (t *motTracker) birth(det frame.Box) {
	t.tracks = append(t.tracks, &track{
		id:        t.nextID,
		box:       det,
		age:       1,
		hits:      1,
		missed:    0,
		lastScore: det.Score,
	})
	t.nextID++
}

func (t *motTracker) reapDead() {
	kept := t.tracks[:0]
	for _, tr := range t.tracks {
		if tr.missed <= t.cfg.MaxMissed {
			kept = append(kept, tr)
		}
	}
	t.tracks = kept
}

func (t *motTracker) emit() []frame.Box {
	out := make([]frame.Box, 0, len(t.tracks))
	for _, tr := range t.tracks {
		if tr.hits < t.cfg.MinHits && tr.missed > 0 {
			continue
		}
		out = append(out, frame.Box{
			X:        tr.box.X,
			Y:        tr.box.Y,
			W:        tr.box.W,
			H:        tr.box.H,
			Score:    tr.lastScore,
			ID:       tr.id,
			Occluded: tr.missed > 0,
		})
	}
	return out
}
