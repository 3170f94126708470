package types

import "fmt"

// FlagReason classifies why a report row was flagged for review.
type FlagReason string

const (
	// ReasonNone marks an unflagged row. Rendered as "N/A" in the report.
	ReasonNone FlagReason = "none"

	// ReasonLanguageMismatch marks speech detected in a language outside the
	// authorized set.
	ReasonLanguageMismatch FlagReason = "language-mismatch"

	// ReasonLowConfidence marks speech transcribed below the confidence
	// threshold.
	ReasonLowConfidence FlagReason = "low-confidence"

	// ReasonNoSpeech marks a file in which voice activity detection found no
	// usable speech interval.
	ReasonNoSpeech FlagReason = "no-speech-detected"

	// ReasonTranscriptionError marks a single interval whose transcription
	// call failed. The rest of the file still processes.
	ReasonTranscriptionError FlagReason = "transcription-error"

	// ReasonProcessingError marks a file that could not be decoded or
	// otherwise failed before segmentation.
	ReasonProcessingError FlagReason = "processing-error"
)

// IsValid reports whether r is a recognised flag reason.
func (r FlagReason) IsValid() bool {
	switch r {
	case ReasonNone, ReasonLanguageMismatch, ReasonLowConfidence,
		ReasonNoSpeech, ReasonTranscriptionError, ReasonProcessingError:
		return true
	}
	return false
}

// Interval is a half-open speech region [StartMs, EndMs) inside one file.
type Interval struct {
	StartMs int64
	EndMs   int64
}

// DurationMs returns the interval length in milliseconds.
func (iv Interval) DurationMs() int64 { return iv.EndMs - iv.StartMs }

// Segment is one classified speech region and doubles as a report row.
// File-level failure placeholders (decode error, no speech) are Segments
// with zero times and an error reason. Immutable once appended to a report.
type Segment struct {
	File    string
	StartMs int64
	EndMs   int64

	Text       string
	Language   string // ISO code, "unknown", or "N/A" on failure rows
	Confidence float64

	Flagged bool
	Reason  FlagReason
	Detail  string // human-readable reason, e.g. "Language mismatch (Detected: fr)"
}

// StartSec returns the segment start in seconds.
func (s Segment) StartSec() float64 { return float64(s.StartMs) / 1000 }

// EndSec returns the segment end in seconds.
func (s Segment) EndSec() float64 { return float64(s.EndMs) / 1000 }

// ReasonText returns the report representation of the flag reason:
// the detail string when flagged, the literal "N/A" otherwise.
func (s Segment) ReasonText() string {
	if !s.Flagged {
		return "N/A"
	}
	if s.Detail != "" {
		return s.Detail
	}
	return string(s.Reason)
}

// MergedRange is a group of flagged segments exported as a single clip.
// It exists only during clip export for one file and is not persisted.
type MergedRange struct {
	StartMs int64
	EndMs   int64

	// Segments holds the indices of the constituent segments within the
	// segment sequence handed to the merge engine.
	Segments []int
}

// Transcription is the recognizer output for one speech interval.
type Transcription struct {
	Text     string
	Language string

	// Confidences holds per-sub-segment confidence scores as reported by the
	// engine. May be empty.
	Confidences []float64
}

// MeanConfidence returns the arithmetic mean of the sub-segment confidences,
// or 0 when the engine reported none.
func (t Transcription) MeanConfidence() float64 {
	if len(t.Confidences) == 0 {
		return 0
	}
	var sum float64
	for _, c := range t.Confidences {
		sum += c
	}
	return sum / float64(len(t.Confidences))
}

// Stats accumulates batch-wide counters. Initialized at batch start,
// mutated only by the processing goroutine, read-only once the batch ends.
type Stats struct {
	TotalFiles      int `json:"total_files"`
	SuccessfulFiles int `json:"successful_files"`
	FailedFiles     int `json:"failed_files"`
	TotalSegments   int `json:"total_segments"`
	FlaggedSegments int `json:"flagged_segments"`
	MergedClips     int `json:"merged_clips"`
}

// BatchResult is returned to the caller after a run; it is not persisted.
type BatchResult struct {
	BatchID string
	Success bool
	Err     string

	Stats Stats

	// Device is the label reported by the recognizer. Engines that cannot
	// observe their compute backend report a static default.
	Device string

	Model string
	AuthorizedLanguages []string

	ReportPath string
	ClipsDir   string
}

// Summary renders a one-line human summary for logs and CLI output.
func (r BatchResult) Summary() string {
	if !r.Success {
		return fmt.Sprintf("batch %s failed: %s", r.BatchID, r.Err)
	}
	return fmt.Sprintf(
		"batch %s: %d/%d files ok, %d segments (%d flagged), %d merged clips",
		r.BatchID, r.Stats.SuccessfulFiles, r.Stats.TotalFiles,
		r.Stats.TotalSegments, r.Stats.FlaggedSegments, r.Stats.MergedClips,
	)
}
