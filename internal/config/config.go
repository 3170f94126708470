// Package config holds the persisted processing parameters: the YAML schema,
// loader, and validation. CLI flags overlay these values at run time.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Recognizer selects the speech-recognition backend.
type Recognizer string

const (
	// RecognizerNative runs whisper.cpp in-process through the CGO bindings.
	RecognizerNative Recognizer = "native"

	// RecognizerCLI shells out to the whisper.cpp binary.
	RecognizerCLI Recognizer = "cli"
)

// IsValid reports whether r is a recognised backend name.
func (r Recognizer) IsValid() bool {
	return r == RecognizerNative || r == RecognizerCLI
}

// Params is the full set of processing parameters. Zero values are not
// meaningful; start from Default and overlay.
type Params struct {
	InputFolder       string `yaml:"input_folder"`
	OutputReportPath  string `yaml:"output_report_path"`
	OutputClipsFolder string `yaml:"output_clips_folder"`

	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	MinSilenceLenMs     int     `yaml:"min_silence_len_ms"`
	SilenceThreshDBFS   int     `yaml:"silence_thresh_dbfs"`
	MinSegmentLenMs     int     `yaml:"min_segment_len_ms"`

	MergeFlaggedSegments bool `yaml:"merge_flagged_segments"`
	MaxMergeGapMs        int  `yaml:"max_merge_gap_ms"`

	AuthorizedLanguages []string `yaml:"authorized_languages"`

	Recognizer Recognizer `yaml:"recognizer"`
	ModelPath  string     `yaml:"model_path"`
	WhisperBin string     `yaml:"whisper_bin"`

	FFmpegPath  string `yaml:"ffmpeg_path"`
	FFprobePath string `yaml:"ffprobe_path"`

	EnableFileLog bool   `yaml:"enable_file_log"`
	LogFolder     string `yaml:"log_folder"`
}

// Default returns the stock parameter set.
func Default() Params {
	return Params{
		OutputReportPath:     "output.xlsx",
		OutputClipsFolder:    "cropped_audio",
		ConfidenceThreshold:  0.7,
		MinSilenceLenMs:      500,
		SilenceThreshDBFS:    -40,
		MinSegmentLenMs:      1000,
		MergeFlaggedSegments: true,
		MaxMergeGapMs:        1000,
		AuthorizedLanguages:  []string{"en", "hi"},
		Recognizer:           RecognizerNative,
		EnableFileLog:        true,
		LogFolder:            "logs",
	}
}

// Load reads the YAML parameter file at path over the defaults and validates
// the result.
func Load(path string) (Params, error) {
	f, err := os.Open(path)
	if err != nil {
		return Params{}, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	p, err := LoadFromReader(f)
	if err != nil {
		return Params{}, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return p, nil
}

// LoadFromReader decodes YAML from r over the defaults and validates the
// result. Unknown keys are rejected so typos fail loudly.
func LoadFromReader(r io.Reader) (Params, error) {
	p := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return Params{}, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// Save writes the parameters back as YAML.
func (p Params) Save(path string) error {
	b, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("config: write %q: %w", path, err)
	}
	return nil
}

// Validate checks that p is a coherent parameter set and returns a joined
// error listing every failure found.
func (p Params) Validate() error {
	var errs []error

	if p.ConfidenceThreshold < 0 || p.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("confidence_threshold %v must be within [0, 1]", p.ConfidenceThreshold))
	}
	if p.MinSilenceLenMs <= 0 {
		errs = append(errs, fmt.Errorf("min_silence_len_ms %d must be a positive number of milliseconds", p.MinSilenceLenMs))
	}
	if p.MinSegmentLenMs <= 0 {
		errs = append(errs, fmt.Errorf("min_segment_len_ms %d must be a positive number of milliseconds", p.MinSegmentLenMs))
	}
	if p.SilenceThreshDBFS >= 0 {
		errs = append(errs, fmt.Errorf("silence_thresh_dbfs %d must be negative", p.SilenceThreshDBFS))
	}
	if p.MaxMergeGapMs < 0 {
		errs = append(errs, fmt.Errorf("max_merge_gap_ms %d must not be negative", p.MaxMergeGapMs))
	}
	if len(p.AuthorizedLanguages) == 0 {
		errs = append(errs, errors.New("authorized_languages must not be empty"))
	}
	if !p.Recognizer.IsValid() {
		errs = append(errs, fmt.Errorf("recognizer %q is invalid; valid values: native, cli", p.Recognizer))
	}
	if p.ModelPath == "" {
		errs = append(errs, errors.New("model_path is required"))
	}
	if p.Recognizer == RecognizerCLI && p.WhisperBin == "" {
		errs = append(errs, errors.New("whisper_bin is required with the cli recognizer"))
	}
	if p.EnableFileLog && p.LogFolder == "" {
		errs = append(errs, errors.New("log_folder is required when file logging is enabled"))
	}

	return errors.Join(errs...)
}
