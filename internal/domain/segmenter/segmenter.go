// Package segmenter turns decoded audio into ordered speech intervals using
// silence-gap voice activity detection.
package segmenter

import (
	"github.com/pkuleshov/langaudit/internal/audio"
	"github.com/pkuleshov/langaudit/internal/types"
)

// Params tune the silence-gap detection.
type Params struct {
	// MinSilenceLenMs is the minimum silence duration treated as a segment
	// boundary.
	MinSilenceLenMs int

	// SilenceThreshDBFS is the loudness floor below which audio counts as
	// silence. More negative means stricter.
	SilenceThreshDBFS float64

	// MinSegmentLenMs drops detected intervals shorter than this.
	MinSegmentLenMs int
}

// Detect returns the speech intervals of c in time order, dropping any
// interval shorter than MinSegmentLenMs. An empty result is a valid outcome
// (an all-silent file), not an error. Pure function of its inputs.
func Detect(c *audio.Clip, p Params) []types.Interval {
	raw := audio.DetectNonSilent(c, p.MinSilenceLenMs, p.SilenceThreshDBFS)
	if len(raw) == 0 {
		return nil
	}
	out := raw[:0]
	for _, iv := range raw {
		if iv.DurationMs() < int64(p.MinSegmentLenMs) {
			continue
		}
		out = append(out, iv)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
