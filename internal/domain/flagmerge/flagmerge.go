// Package flagmerge groups contiguous flagged segments so they can be
// exported as single clips.
package flagmerge

import (
	"sort"

	"github.com/pkuleshov/langaudit/internal/types"
)

// Merge groups the flagged segments of segs into ranges whose neighbours are
// at most maxGapMs apart. Unflagged segments are ignored. The gap is measured
// against the end of the last segment added to the open group, not the
// group's own span, so consecutive small gaps compound into one group even
// when the cumulative span exceeds maxGapMs. This chained semantics is a
// deliberate policy choice.
//
// The returned ranges are ordered by start time; Segments carries the indices
// of the constituents within segs. maxGapMs == 0 merges only segments that
// abut or overlap.
func Merge(segs []types.Segment, maxGapMs int64) []types.MergedRange {
	type flagged struct {
		idx int
		seg types.Segment
	}
	var fl []flagged
	for i, s := range segs {
		if s.Flagged {
			fl = append(fl, flagged{idx: i, seg: s})
		}
	}
	if len(fl) == 0 {
		return nil
	}

	// Stable: ties keep the original segment order.
	sort.SliceStable(fl, func(i, j int) bool {
		return fl[i].seg.StartMs < fl[j].seg.StartMs
	})

	var out []types.MergedRange
	open := types.MergedRange{
		StartMs:  fl[0].seg.StartMs,
		EndMs:    fl[0].seg.EndMs,
		Segments: []int{fl[0].idx},
	}
	lastEnd := fl[0].seg.EndMs

	for _, f := range fl[1:] {
		if f.seg.StartMs-lastEnd <= maxGapMs {
			open.EndMs = f.seg.EndMs
			open.Segments = append(open.Segments, f.idx)
			lastEnd = f.seg.EndMs
			continue
		}
		out = append(out, open)
		open = types.MergedRange{
			StartMs:  f.seg.StartMs,
			EndMs:    f.seg.EndMs,
			Segments: []int{f.idx},
		}
		lastEnd = f.seg.EndMs
	}
	return append(out, open)
}
