package replicate

import (
	"testing"

	"github.com/e7canasta/shroudstream/internal/config"
)

func TestExpandFillsMissingIDs(t *testing.T) {
	in := []config.StreamConfig{{
		ID:   "cam0",
		Type: "webcam",
		Replicate: config.ReplicateConfig{
			Count: 3,
			IDs:   []string{"custom_0"},
		},
	}}

	out := Expand(in)

	if len(out) != 3 {
		t.Fatalf("len = %d, want 3", len(out))
	}
	if out[0].ID != "custom_0" {
		t.Fatalf("out[0].ID = %q, want custom_0", out[0].ID)
	}
	if out[1].ID != "cam0_1" {
		t.Fatalf("out[1].ID = %q, want cam0_1", out[1].ID)
	}
	if out[2].ID != "cam0_2" {
		t.Fatalf("out[2].ID = %q, want cam0_2", out[2].ID)
	}
	for _, s := range out {
		if s.Replicate.Count != 1 {
			t.Fatalf("replica %q should not carry a further replicate.count, got %d", s.ID, s.Replicate.Count)
		}
	}
}

func TestExpandSingleCopyPassesThrough(t *testing.T) {
	in := []config.StreamConfig{{ID: "cam0", Type: "file"}}
	out := Expand(in)
	if len(out) != 1 || out[0].ID != "cam0" {
		t.Fatalf("expected single passthrough stream, got %+v", out)
	}
}

func TestExpandWithNoExplicitIDsSuffixesSlotZero(t *testing.T) {
	in := []config.StreamConfig{{
		ID:        "cam0",
		Type:      "webcam",
		Replicate: config.ReplicateConfig{Count: 2},
	}}

	out := Expand(in)

	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if out[0].ID != "cam0_0" {
		t.Fatalf("out[0].ID = %q, want cam0_0", out[0].ID)
	}
	if out[1].ID != "cam0_1" {
		t.Fatalf("out[1].ID = %q, want cam0_1", out[1].ID)
	}
}

func TestExpandSingleCopyDiscardsExplicitIDs(t *testing.T) {
	in := []config.StreamConfig{{
		ID:        "cam0",
		Type:      "file",
		Replicate: config.ReplicateConfig{Count: 1, IDs: []string{"custom_0"}},
	}}

	out := Expand(in)

	if len(out) != 1 || out[0].ID != "cam0" {
		t.Fatalf("expected single passthrough stream with bare id, got %+v", out)
	}
	if len(out[0].Replicate.IDs) != 0 {
		t.Fatalf("explicit ids should be discarded at count == 1, got %v", out[0].Replicate.IDs)
	}
}

func TestExpandMultipleStreams(t *testing.T) {
	in := []config.StreamConfig{
		{ID: "cam0", Replicate: config.ReplicateConfig{Count: 2}},
		{ID: "cam1", Replicate: config.ReplicateConfig{Count: 1}},
	}
	out := Expand(in)
	if len(out) != 3 {
		t.Fatalf("len = %d, want 3", len(out))
	}
	ids := map[string]bool{}
	for _, s := range out {
		ids[s.ID] = true
	}
	for _, want := range []string{"cam0_0", "cam0_1", "cam1"} {
		if !ids[want] {
			t.Fatalf("missing expanded id %q in %v", want, ids)
		}
	}
}
