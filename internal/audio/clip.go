// Package audio holds the decoded-sample model and the loudness analysis
// used for voice activity detection. Everything here is pure sample math;
// codec work lives in the ffmpeg adapter.
package audio

import (
	"math"

	"github.com/pkuleshov/langaudit/internal/types"
)

// frameMs is the analysis frame length for silence detection. 10 ms keeps
// boundary jitter below any usable min-silence setting.
const frameMs = 10

// Clip is a decoded mono PCM buffer. A clip is owned by exactly one file's
// processing step and must not be retained across files.
type Clip struct {
	SampleRate int
	Samples    []int16
}

// DurationMs returns the clip length in milliseconds.
func (c *Clip) DurationMs() int64 {
	if c.SampleRate <= 0 {
		return 0
	}
	return int64(len(c.Samples)) * 1000 / int64(c.SampleRate)
}

// SliceMs returns the half-open region [startMs, endMs) as a new Clip.
// Bounds are clamped to the clip; the returned clip shares the backing
// array, so it stays valid only while the parent clip does.
func (c *Clip) SliceMs(startMs, endMs int64) *Clip {
	lo := c.sampleIndex(startMs)
	hi := c.sampleIndex(endMs)
	if lo > hi {
		lo = hi
	}
	return &Clip{SampleRate: c.SampleRate, Samples: c.Samples[lo:hi]}
}

func (c *Clip) sampleIndex(ms int64) int {
	i := int(ms * int64(c.SampleRate) / 1000)
	if i < 0 {
		return 0
	}
	if i > len(c.Samples) {
		return len(c.Samples)
	}
	return i
}

// Float32 converts the samples to the normalized [-1, 1] float form expected
// by recognition engines.
func (c *Clip) Float32() []float32 {
	out := make([]float32, len(c.Samples))
	for i, s := range c.Samples {
		out[i] = float32(s) / 32768
	}
	return out
}

// DBFS returns the loudness of the samples in decibels relative to full
// scale. A zero-energy buffer returns -Inf.
func DBFS(samples []int16) float64 {
	if len(samples) == 0 {
		return math.Inf(-1)
	}
	var sum float64
	for _, s := range samples {
		f := float64(s)
		sum += f * f
	}
	rms := math.Sqrt(sum / float64(len(samples)))
	if rms == 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(rms/32768)
}

// DetectNonSilent returns the ordered speech intervals of c, in ms.
//
// The clip is scanned in fixed frames; a silence run of at least
// minSilenceLenMs splits the clip, and everything between splits is reported
// as one non-silent interval. Silence shorter than minSilenceLenMs stays
// attached to the surrounding speech. Returns nil for an all-silent clip.
func DetectNonSilent(c *Clip, minSilenceLenMs int, silenceThreshDBFS float64) []types.Interval {
	if c == nil || len(c.Samples) == 0 || c.SampleRate <= 0 {
		return nil
	}

	frameSamples := c.SampleRate * frameMs / 1000
	if frameSamples <= 0 {
		frameSamples = 1
	}
	nFrames := (len(c.Samples) + frameSamples - 1) / frameSamples

	silent := make([]bool, nFrames)
	for i := 0; i < nFrames; i++ {
		lo := i * frameSamples
		hi := lo + frameSamples
		if hi > len(c.Samples) {
			hi = len(c.Samples)
		}
		silent[i] = DBFS(c.Samples[lo:hi]) < silenceThreshDBFS
	}

	minSilenceFrames := minSilenceLenMs / frameMs
	if minSilenceFrames < 1 {
		minSilenceFrames = 1
	}

	durMs := c.DurationMs()
	frameStart := func(i int) int64 {
		ms := int64(i) * frameMs
		if ms > durMs {
			ms = durMs
		}
		return ms
	}

	var out []types.Interval
	var openStart int64 = -1
	i := 0
	for i < nFrames {
		if !silent[i] {
			if openStart < 0 {
				openStart = frameStart(i)
			}
			i++
			continue
		}
		run := i
		for run < nFrames && silent[run] {
			run++
		}
		if run-i >= minSilenceFrames {
			if openStart >= 0 {
				out = append(out, types.Interval{StartMs: openStart, EndMs: frameStart(i)})
				openStart = -1
			}
		} else if openStart < 0 && run < nFrames {
			// Short silence before any speech opened: attach it to the
			// upcoming speech interval, as pydub does.
			openStart = frameStart(i)
		}
		i = run
	}
	if openStart >= 0 {
		out = append(out, types.Interval{StartMs: openStart, EndMs: durMs})
	}
	return out
}
