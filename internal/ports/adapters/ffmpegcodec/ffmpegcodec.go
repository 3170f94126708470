// Package ffmpegcodec implements ports.AudioCodec by shelling out to ffmpeg
// and ffprobe. All audio is decoded to mono 16 kHz signed 16-bit PCM, the
// format the recognition engines expect.
package ffmpegcodec

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"github.com/pkuleshov/langaudit/internal/audio"
)

const decodeSampleRate = 16000

type Adapter struct {
	ffmpeg  string
	ffprobe string
}

func New(ffmpegPath, ffprobePath string) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Adapter{ffmpeg: ffmpegPath, ffprobe: ffprobePath}
}

// Decode reads any container/codec ffmpeg understands into a mono 16 kHz
// PCM clip.
func (a *Adapter) Decode(ctx context.Context, path string) (*audio.Clip, error) {
	var out, errb bytes.Buffer
	cmd := exec.CommandContext(ctx, a.ffmpeg,
		"-v", "error",
		"-i", path,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(decodeSampleRate),
		"-f", "s16le",
		"-",
	)
	cmd.Stdout = &out
	cmd.Stderr = &errb
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg decode %s: %w\n%s", path, err, errb.String())
	}
	raw := out.Bytes()
	if len(raw) < 2 {
		return nil, fmt.Errorf("ffmpeg decode %s: no audio data", path)
	}
	return &audio.Clip{
		SampleRate: decodeSampleRate,
		Samples:    bytesToSamples(raw),
	}, nil
}

// Export writes the clip to outPath; ffmpeg picks the container from the
// file extension (.wav in practice).
func (a *Adapter) Export(ctx context.Context, c *audio.Clip, outPath string) error {
	if c == nil || len(c.Samples) == 0 {
		return fmt.Errorf("ffmpeg export %s: empty clip", outPath)
	}
	var errb bytes.Buffer
	cmd := exec.CommandContext(ctx, a.ffmpeg,
		"-y",
		"-v", "error",
		"-f", "s16le",
		"-ar", strconv.Itoa(c.SampleRate),
		"-ac", "1",
		"-i", "-",
		outPath,
	)
	cmd.Stdin = bytes.NewReader(samplesToBytes(c.Samples))
	cmd.Stderr = &errb
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg export %s: %w\n%s", outPath, err, errb.String())
	}
	return nil
}

// ProbeDurationMs returns the container duration without decoding.
func (a *Adapter) ProbeDurationMs(ctx context.Context, path string) (int64, error) {
	cmd := exec.CommandContext(ctx, a.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration %s: %w\n%s", path, err, string(b))
	}
	return parseDurationMs(string(b))
}

// parseDurationMs converts ffprobe's seconds output to rounded milliseconds.
func parseDurationMs(out string) (int64, error) {
	s := strings.TrimSpace(out)
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	return int64(math.Round(sec * 1000)), nil
}

func bytesToSamples(raw []byte) []int16 {
	n := len(raw) / 2
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		samples[i] = int16(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8)
	}
	return samples
}

func samplesToBytes(samples []int16) []byte {
	raw := make([]byte, 2*len(samples))
	for i, s := range samples {
		raw[2*i] = byte(uint16(s))
		raw[2*i+1] = byte(uint16(s) >> 8)
	}
	return raw
}
