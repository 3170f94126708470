// Package usecase drives the batch: per-file segmentation, transcription,
// classification, clip export, and statistics. Failures are isolated at the
// narrowest scope that can contain them: one bad segment never aborts its
// file, one bad file never aborts the batch.
package usecase

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/pkuleshov/langaudit/internal/audio"
	"github.com/pkuleshov/langaudit/internal/domain/classify"
	"github.com/pkuleshov/langaudit/internal/domain/flagmerge"
	"github.com/pkuleshov/langaudit/internal/domain/segmenter"
	"github.com/pkuleshov/langaudit/internal/ports"
	"github.com/pkuleshov/langaudit/internal/types"
)

type Deps struct {
	Codec ports.AudioCodec
	ASR   ports.Recognizer
	Log   *zap.Logger
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return Usecase{d: d}
}

type Input struct {
	// Files are the audio paths to process, in input order. Report rows
	// follow this order.
	Files []string

	// ClipsDir receives exported flagged clips. Empty disables export.
	ClipsDir string

	ConfidenceThreshold float64
	MinSilenceLenMs     int
	SilenceThreshDBFS   float64
	MinSegmentLenMs     int

	MergeFlagged  bool
	MaxMergeGapMs int64

	AuthorizedLanguages []string
}

type Result struct {
	// Rows holds one entry per speech segment plus one placeholder per
	// file-level failure, ordered by file input order then segment start.
	Rows  []types.Segment
	Stats types.Stats
}

// Run processes every file in order. Files are processed one at a time and
// segments within a file one at a time: the recognizer and codec are
// blocking, stateful external calls with no thread-safety guarantee. The
// only error Run returns is context cancellation between files; everything
// else is absorbed into rows and counters.
func (u Usecase) Run(ctx context.Context, in Input) (Result, error) {
	res := Result{Stats: types.Stats{TotalFiles: len(in.Files)}}

	for _, path := range in.Files {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("batch cancelled: %w", err)
		}
		u.processFile(ctx, path, in, &res)
	}
	return res, nil
}

// processFile owns the decoded samples for exactly one file; they are
// released when it returns.
func (u Usecase) processFile(ctx context.Context, path string, in Input, res *Result) {
	name := filepath.Base(path)
	log := u.d.Log.With(zap.String("file", name))
	log.Info("processing file")

	clip, err := u.d.Codec.Decode(ctx, path)
	if err != nil {
		log.Warn("decode failed", zap.Error(err))
		res.Rows = append(res.Rows, types.Segment{
			File:     name,
			Text:     "ERROR DURING PROCESSING",
			Language: "N/A",
			Flagged:  true,
			Reason:   types.ReasonProcessingError,
			Detail:   fmt.Sprintf("Processing error: %v", err),
		})
		res.Stats.FailedFiles++
		return
	}

	intervals := segmenter.Detect(clip, segmenter.Params{
		MinSilenceLenMs:   in.MinSilenceLenMs,
		SilenceThreshDBFS: in.SilenceThreshDBFS,
		MinSegmentLenMs:   in.MinSegmentLenMs,
	})
	if len(intervals) == 0 {
		log.Warn("no speech detected")
		res.Rows = append(res.Rows, types.Segment{
			File:     name,
			Language: "N/A",
			Flagged:  true,
			Reason:   types.ReasonNoSpeech,
			Detail:   "No speech detected",
		})
		res.Stats.FailedFiles++
		return
	}

	segs := make([]types.Segment, 0, len(intervals))
	for _, iv := range intervals {
		segs = append(segs, u.transcribeInterval(ctx, name, clip, iv, in))
	}

	for _, s := range segs {
		res.Stats.TotalSegments++
		if s.Flagged {
			res.Stats.FlaggedSegments++
		}
	}
	res.Rows = append(res.Rows, segs...)

	if in.ClipsDir != "" {
		u.exportFlagged(ctx, name, clip, segs, in, &res.Stats)
	}

	// Per-segment transcription errors do not fail the file; only decode
	// failure and an empty segmenter result do.
	res.Stats.SuccessfulFiles++
	log.Info("file done",
		zap.Int("segments", len(segs)),
	)
}

// transcribeInterval runs recognition and classification for one speech
// interval. A recognizer error is contained here: it yields a flagged error
// row with zero confidence and the file continues. The sliced sub-clip is
// scoped to this call.
func (u Usecase) transcribeInterval(ctx context.Context, name string, clip *audio.Clip, iv types.Interval, in Input) types.Segment {
	sub := clip.SliceMs(iv.StartMs, iv.EndMs)

	tr, err := u.d.ASR.Transcribe(ctx, sub)
	if err != nil {
		u.d.Log.Warn("transcription failed",
			zap.String("file", name),
			zap.Int64("start_ms", iv.StartMs),
			zap.Int64("end_ms", iv.EndMs),
			zap.Error(err),
		)
		return types.Segment{
			File:     name,
			StartMs:  iv.StartMs,
			EndMs:    iv.EndMs,
			Language: "N/A",
			Flagged:  true,
			Reason:   types.ReasonTranscriptionError,
			Detail:   fmt.Sprintf("Transcription error: %v", err),
		}
	}

	confidence := tr.MeanConfidence()
	decision := classify.Classify(tr.Language, confidence, in.AuthorizedLanguages, in.ConfidenceThreshold)

	return types.Segment{
		File:       name,
		StartMs:    iv.StartMs,
		EndMs:      iv.EndMs,
		Text:       strings.TrimSpace(tr.Text),
		Language:   tr.Language,
		Confidence: confidence,
		Flagged:    decision.Flagged,
		Reason:     decision.Reason,
		Detail:     decision.Detail,
	}
}

// exportFlagged writes flagged audio to the clips directory: merged ranges
// when merging is enabled, one clip per flagged segment otherwise. Export
// failures are logged and swallowed; the report row is already final and a
// lost clip must not fail the file.
func (u Usecase) exportFlagged(ctx context.Context, name string, clip *audio.Clip, segs []types.Segment, in Input, stats *types.Stats) {
	base := strings.TrimSuffix(name, filepath.Ext(name))

	if in.MergeFlagged {
		for i, r := range flagmerge.Merge(segs, in.MaxMergeGapMs) {
			out := filepath.Join(in.ClipsDir,
				fmt.Sprintf("%s_merged%d_%dms_to_%dms.wav", base, i+1, r.StartMs, r.EndMs))
			if err := u.d.Codec.Export(ctx, clip.SliceMs(r.StartMs, r.EndMs), out); err != nil {
				u.d.Log.Warn("merged clip export failed", zap.String("clip", out), zap.Error(err))
				continue
			}
			stats.MergedClips++
		}
		return
	}

	for i, s := range segs {
		if !s.Flagged {
			continue
		}
		out := filepath.Join(in.ClipsDir,
			fmt.Sprintf("%s_segment%d_%dms_to_%dms.wav", base, i+1, s.StartMs, s.EndMs))
		if err := u.d.Codec.Export(ctx, clip.SliceMs(s.StartMs, s.EndMs), out); err != nil {
			u.d.Log.Warn("clip export failed", zap.String("clip", out), zap.Error(err))
		}
	}
}
