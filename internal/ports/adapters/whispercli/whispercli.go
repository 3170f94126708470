// Package whispercli implements ports.Recognizer by invoking the whisper.cpp
// command-line binary with JSON output. It is the fallback for environments
// where the CGO bindings cannot be linked; the bindings adapter avoids the
// temp-file round-trip this one needs.
package whispercli

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkuleshov/langaudit/internal/audio"
	"github.com/pkuleshov/langaudit/internal/ports"
	"github.com/pkuleshov/langaudit/internal/types"
)

var _ ports.Recognizer = (*Adapter)(nil)

type Adapter struct {
	bin   string
	model string
}

func New(binPath, modelPath string) *Adapter {
	return &Adapter{bin: binPath, model: modelPath}
}

// Model returns the model file name.
func (a *Adapter) Model() string { return filepath.Base(a.model) }

// Device reports the compute device of the external binary.
func (a *Adapter) Device() string { return "cpu" }

// Transcribe writes the clip to a scoped temp file, runs the whisper.cpp
// binary, and parses its JSON output. The temp directory is removed on every
// exit path.
func (a *Adapter) Transcribe(ctx context.Context, c *audio.Clip) (types.Transcription, error) {
	if c == nil || len(c.Samples) == 0 {
		return types.Transcription{}, errors.New("whispercli: empty clip")
	}

	dir, err := os.MkdirTemp("", "whispercli-")
	if err != nil {
		return types.Transcription{}, fmt.Errorf("whispercli: temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	wav := filepath.Join(dir, "segment.wav")
	if err := writeWAV(wav, c); err != nil {
		return types.Transcription{}, err
	}

	outPrefix := filepath.Join(dir, "whisper")
	cmd := exec.CommandContext(ctx, a.bin,
		"-m", a.model,
		"-f", wav,
		"-l", "auto",
		"-oj", "-ojf",
		"-of", outPrefix,
		"-np",
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return types.Transcription{}, fmt.Errorf("whispercli: %w\n%s", err, string(b))
	}

	jb, err := os.ReadFile(outPrefix + ".json")
	if err != nil {
		return types.Transcription{}, fmt.Errorf("whispercli: read output: %w", err)
	}
	return parseOutput(jb)
}

// output mirrors the whisper.cpp full-JSON shape, limited to the fields the
// pipeline consumes.
type output struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Text   string `json:"text"`
		Tokens []struct {
			Text string  `json:"text"`
			P    float64 `json:"p"`
		} `json:"tokens"`
	} `json:"transcription"`
}

func parseOutput(jb []byte) (types.Transcription, error) {
	var out output
	if err := json.Unmarshal(jb, &out); err != nil {
		return types.Transcription{}, fmt.Errorf("whispercli: parse output: %w", err)
	}

	var (
		parts       []string
		confidences []float64
	)
	for _, seg := range out.Transcription {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
		if len(seg.Tokens) == 0 {
			continue
		}
		var sum float64
		for _, tok := range seg.Tokens {
			sum += tok.P
		}
		confidences = append(confidences, sum/float64(len(seg.Tokens)))
	}

	lang := out.Result.Language
	if lang == "" {
		lang = "unknown"
	}
	return types.Transcription{
		Text:        strings.Join(parts, " "),
		Language:    lang,
		Confidences: confidences,
	}, nil
}

// writeWAV emits a minimal PCM WAV container around the clip samples.
func writeWAV(path string, c *audio.Clip) error {
	data := make([]byte, 2*len(c.Samples))
	for i, s := range c.Samples {
		binary.LittleEndian.PutUint16(data[2*i:], uint16(s))
	}

	hdr := make([]byte, 44)
	copy(hdr[0:], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:], uint32(36+len(data)))
	copy(hdr[8:], "WAVE")
	copy(hdr[12:], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:], 16)
	binary.LittleEndian.PutUint16(hdr[20:], 1) // PCM
	binary.LittleEndian.PutUint16(hdr[22:], 1) // mono
	binary.LittleEndian.PutUint32(hdr[24:], uint32(c.SampleRate))
	binary.LittleEndian.PutUint32(hdr[28:], uint32(c.SampleRate*2))
	binary.LittleEndian.PutUint16(hdr[32:], 2)
	binary.LittleEndian.PutUint16(hdr[34:], 16)
	copy(hdr[36:], "data")
	binary.LittleEndian.PutUint32(hdr[40:], uint32(len(data)))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("whispercli: create wav: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(hdr); err != nil {
		return fmt.Errorf("whispercli: write wav header: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("whispercli: write wav data: %w", err)
	}
	return nil
}
