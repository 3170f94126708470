// Package whisperbind implements ports.Recognizer on the whisper.cpp CGO
// bindings. The model is loaded once and shared; each Transcribe call runs
// on a fresh whisper context because contexts are not thread-safe. Audio is
// handed over as an in-memory float32 buffer, so no intermediate files are
// written.
//
// The whisper.cpp static library (libwhisper.a) and headers must be
// available at link time via LIBRARY_PATH and C_INCLUDE_PATH.
package whisperbind

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/pkuleshov/langaudit/internal/audio"
	"github.com/pkuleshov/langaudit/internal/ports"
	"github.com/pkuleshov/langaudit/internal/types"
)

var _ ports.Recognizer = (*Adapter)(nil)

type Adapter struct {
	model     whisperlib.Model
	modelPath string
	language  string
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLanguage pins recognition to a fixed language code instead of
// auto-detection. Mostly useful for benchmarking; compliance auditing wants
// the detected language.
func WithLanguage(lang string) Option {
	return func(a *Adapter) { a.language = lang }
}

// New loads the whisper model at modelPath. Call Close when done.
func New(modelPath string, opts ...Option) (*Adapter, error) {
	if modelPath == "" {
		return nil, errors.New("whisperbind: model path must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisperbind: load model %q: %w", modelPath, err)
	}
	a := &Adapter{model: model, modelPath: modelPath, language: "auto"}
	for _, o := range opts {
		o(a)
	}
	return a, nil
}

// Close releases the model.
func (a *Adapter) Close() error {
	if a.model != nil {
		return a.model.Close()
	}
	return nil
}

// Model returns the model file name.
func (a *Adapter) Model() string { return filepath.Base(a.modelPath) }

// Device reports the compute device as "cpu". The bindings do not expose
// which backend the linked whisper.cpp was compiled with, so when it runs
// on an accelerator this label is a best-effort default, not a measurement.
func (a *Adapter) Device() string { return "cpu" }

// Transcribe runs one inference over the clip and returns the text, the
// detected language, and one confidence value per whisper segment (the mean
// token probability of that segment).
func (a *Adapter) Transcribe(ctx context.Context, c *audio.Clip) (types.Transcription, error) {
	if err := ctx.Err(); err != nil {
		return types.Transcription{}, fmt.Errorf("whisperbind: context cancelled: %w", err)
	}
	if c == nil || len(c.Samples) == 0 {
		return types.Transcription{}, errors.New("whisperbind: empty clip")
	}

	wctx, err := a.model.NewContext()
	if err != nil {
		return types.Transcription{}, fmt.Errorf("whisperbind: create context: %w", err)
	}
	if err := wctx.SetLanguage(a.language); err != nil {
		// Monolingual models reject "auto"; recognition still works, only
		// detection degrades.
		if a.language != "auto" {
			return types.Transcription{}, fmt.Errorf("whisperbind: set language %q: %w", a.language, err)
		}
	}

	if err := wctx.Process(c.Float32(), nil, nil, nil); err != nil {
		return types.Transcription{}, fmt.Errorf("whisperbind: process audio: %w", err)
	}

	var (
		parts       []string
		confidences []float64
	)
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return types.Transcription{}, fmt.Errorf("whisperbind: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
		if conf, ok := meanTokenProbability(segment.Tokens); ok {
			confidences = append(confidences, conf)
		}
	}

	lang := wctx.DetectedLanguage()
	if lang == "" {
		lang = "unknown"
	}

	return types.Transcription{
		Text:        strings.Join(parts, " "),
		Language:    lang,
		Confidences: confidences,
	}, nil
}

func meanTokenProbability(tokens []whisperlib.Token) (float64, bool) {
	if len(tokens) == 0 {
		return 0, false
	}
	var sum float64
	for _, t := range tokens {
		sum += float64(t.P)
	}
	return sum / float64(len(tokens)), true
}
