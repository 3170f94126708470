package config

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadFromReader_OverlaysDefaults(t *testing.T) {
	t.Parallel()

	in := strings.NewReader(`
model_path: models/ggml-base.bin
confidence_threshold: 0.85
authorized_languages: [en]
merge_flagged_segments: false
`)
	p, err := LoadFromReader(in)
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if p.ConfidenceThreshold != 0.85 {
		t.Fatalf("ConfidenceThreshold = %v", p.ConfidenceThreshold)
	}
	if p.MergeFlaggedSegments {
		t.Fatal("merge_flagged_segments: false was ignored")
	}
	// Untouched keys keep the defaults.
	if p.MinSilenceLenMs != 500 || p.SilenceThreshDBFS != -40 || p.MinSegmentLenMs != 1000 {
		t.Fatalf("defaults lost: %+v", p)
	}
	if len(p.AuthorizedLanguages) != 1 || p.AuthorizedLanguages[0] != "en" {
		t.Fatalf("AuthorizedLanguages = %v", p.AuthorizedLanguages)
	}
}

func TestLoadFromReader_RejectsUnknownKeys(t *testing.T) {
	t.Parallel()

	_, err := LoadFromReader(strings.NewReader("model_path: m.bin\nconfidense_threshold: 0.5\n"))
	if err == nil {
		t.Fatal("expected an error for a misspelled key")
	}
}

func TestValidate_CollectsAllFailures(t *testing.T) {
	t.Parallel()

	p := Params{
		ConfidenceThreshold: 1.5,
		MinSilenceLenMs:     0,
		SilenceThreshDBFS:   10,
		MinSegmentLenMs:     -1,
		MaxMergeGapMs:       -5,
		Recognizer:          "gpu-magic",
	}
	err := p.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	msg := err.Error()
	for _, want := range []string{
		"confidence_threshold",
		"min_silence_len_ms",
		"silence_thresh_dbfs",
		"min_segment_len_ms",
		"max_merge_gap_ms",
		"authorized_languages",
		"recognizer",
		"model_path",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("validation message missing %q: %s", want, msg)
		}
	}
}

func TestValidate_BoundaryValues(t *testing.T) {
	t.Parallel()

	p := Default()
	p.ModelPath = "m.bin"

	// Threshold endpoints are legal; a zero merge gap is legal.
	p.ConfidenceThreshold = 0
	p.MaxMergeGapMs = 0
	if err := p.Validate(); err != nil {
		t.Fatalf("zero threshold/gap should validate: %v", err)
	}
	p.ConfidenceThreshold = 1
	if err := p.Validate(); err != nil {
		t.Fatalf("threshold 1 should validate: %v", err)
	}
}

func TestValidate_CLIRecognizerNeedsBinary(t *testing.T) {
	t.Parallel()

	p := Default()
	p.ModelPath = "m.bin"
	p.Recognizer = RecognizerCLI
	if err := p.Validate(); err == nil || !strings.Contains(err.Error(), "whisper_bin") {
		t.Fatalf("expected whisper_bin requirement, got %v", err)
	}
	p.WhisperBin = "/usr/local/bin/whisper-cli"
	if err := p.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	t.Parallel()

	p := Default()
	p.ModelPath = "models/ggml-base.bin"
	p.AuthorizedLanguages = []string{"en", "de"}
	p.MaxMergeGapMs = 250

	path := filepath.Join(t.TempDir(), "langaudit.yaml")
	if err := p.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.MaxMergeGapMs != 250 || len(got.AuthorizedLanguages) != 2 {
		t.Fatalf("round trip lost data: %+v", got)
	}
	if got.ModelPath != p.ModelPath {
		t.Fatalf("ModelPath = %q", got.ModelPath)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
