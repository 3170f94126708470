package ports

import (
	"context"

	"github.com/pkuleshov/langaudit/internal/audio"
	"github.com/pkuleshov/langaudit/internal/types"
)

// AudioCodec decodes source files into PCM clips and writes clips back out.
// Implementations wrap an external media tool and are treated as blocking,
// stateful calls; the core never assumes they are safe for concurrent use.
type AudioCodec interface {
	// Decode reads the file at path into a mono PCM clip.
	Decode(ctx context.Context, path string) (*audio.Clip, error)

	// Export writes the clip to outPath; the container format follows the
	// file extension.
	Export(ctx context.Context, c *audio.Clip, outPath string) error

	// ProbeDurationMs returns the duration of the file at path without
	// decoding it.
	ProbeDurationMs(ctx context.Context, path string) (int64, error)
}

// Recognizer transcribes one speech clip at a time. The clip is handed over
// as an in-memory buffer; implementations must not retain it after returning.
type Recognizer interface {
	Transcribe(ctx context.Context, c *audio.Clip) (types.Transcription, error)

	// Model identifies the loaded recognition model (e.g. "ggml-base.bin").
	Model() string

	// Device identifies the compute device the engine runs on (e.g. "cpu").
	Device() string
}
