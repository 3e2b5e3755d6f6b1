// Package replicate turns N logical copies of one stream config into N
// distinct stream specs ("Replica expansion"). Id synthesis
// follows the original C++ prototype (core/src/common/replicate.cpp,
// expand_replicas): explicit replicate.ids are kept verbatim and in order;
// every remaining slot, including slot 0, gets "<id>_<index>".
package replicate

import (
	"strconv"

	"github.com/e7canasta/shroudstream/internal/config"
)

// Expand returns one StreamConfig per requested replica, each with its own
// synthesized or explicit id and Replicate.Count reset to 1 (a replica is
// not itself replicated further).
func Expand(streams []config.StreamConfig) []config.StreamConfig {
	out := make([]config.StreamConfig, 0, len(streams))
	for _, s := range streams {
		out = append(out, expandOne(s)...)
	}
	return out
}

func expandOne(s config.StreamConfig) []config.StreamConfig {
	count := s.Replicate.Count
	if count < 1 {
		count = 1
	}
	if count == 1 {
		s.Replicate.Count = 1
		s.Replicate.IDs = nil
		return []config.StreamConfig{s}
	}

	ids := make([]string, count)
	for i, explicit := range s.Replicate.IDs {
		if i >= count {
			break
		}
		ids[i] = explicit
	}
	for i := 0; i < count; i++ {
		if ids[i] != "" {
			continue
		}
		ids[i] = s.ID + "_" + strconv.Itoa(i)
	}

	out := make([]config.StreamConfig, count)
	for i := 0; i < count; i++ {
		replica := s
		replica.ID = ids[i]
		replica.Replicate.Count = 1
		replica.Replicate.IDs = nil
		out[i] = replica
	}
	return out
}
