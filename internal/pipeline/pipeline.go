// Package pipeline wires the adapters to the core and runs one batch end to
// end: scan the input folder, build the recognizer, process every file, and
// write the report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pkuleshov/langaudit/internal/config"
	"github.com/pkuleshov/langaudit/internal/ports"
	"github.com/pkuleshov/langaudit/internal/ports/adapters/ffmpegcodec"
	"github.com/pkuleshov/langaudit/internal/ports/adapters/whisperbind"
	"github.com/pkuleshov/langaudit/internal/ports/adapters/whispercli"
	"github.com/pkuleshov/langaudit/internal/report"
	"github.com/pkuleshov/langaudit/internal/types"
	"github.com/pkuleshov/langaudit/internal/usecase"
)

// FileInfo describes one audio file discovered in the input folder.
type FileInfo struct {
	Path      string
	Name      string
	SizeBytes int64

	// DurationMs is -1 when the probe failed; the file still processes.
	DurationMs int64
}

// recognizedExts are the container formats handed to the decoder. Anything
// else in the input folder is ignored without comment.
var recognizedExts = map[string]bool{
	".mp3": true, ".wav": true, ".m4a": true, ".flac": true,
	".ogg": true, ".aac": true, ".wma": true,
}

// probeConcurrency bounds parallel ffprobe calls during the folder scan.
const probeConcurrency = 4

// recognizerFactory builds the configured recognizer and the func that
// releases it.
type recognizerFactory func(config.Params) (ports.Recognizer, func(), error)

// Run executes one batch with the given parameters. The returned error is
// batch-fatal: nothing was produced beyond what BatchResult describes.
// Per-file and per-segment failures never surface here; they land in the
// report rows and the stats counters.
func Run(ctx context.Context, p config.Params) (types.BatchResult, error) {
	return run(ctx, p, ffmpegcodec.New(p.FFmpegPath, p.FFprobePath), buildRecognizer)
}

func run(ctx context.Context, p config.Params, codec ports.AudioCodec, newASR recognizerFactory) (types.BatchResult, error) {
	res := types.BatchResult{
		BatchID:             uuid.NewString()[:8],
		AuthorizedLanguages: p.AuthorizedLanguages,
		ReportPath:          p.OutputReportPath,
		ClipsDir:            p.OutputClipsFolder,
	}

	if err := p.Validate(); err != nil {
		return fail(res, fmt.Errorf("invalid parameters: %w", err))
	}

	log, closeLog, err := buildLogger(p, res.BatchID)
	if err != nil {
		return fail(res, err)
	}
	defer closeLog()
	log = log.With(zap.String("batch", res.BatchID))

	files, err := scanFolder(ctx, codec, p.InputFolder)
	if err != nil {
		return fail(res, err)
	}
	if len(files) == 0 {
		return fail(res, fmt.Errorf("no audio files found in %q", p.InputFolder))
	}
	for _, f := range files {
		log.Info("queued",
			zap.String("file", f.Name),
			zap.Int64("size_bytes", f.SizeBytes),
			zap.Int64("duration_ms", f.DurationMs),
		)
	}

	asr, closeASR, err := newASR(p)
	if err != nil {
		return fail(res, fmt.Errorf("recognizer init: %w", err))
	}
	defer closeASR()
	res.Device = asr.Device()
	res.Model = asr.Model()
	log.Info("batch starting",
		zap.Int("files", len(files)),
		zap.String("model", res.Model),
		zap.String("device", res.Device),
		zap.Strings("authorized_languages", p.AuthorizedLanguages),
	)

	if p.OutputClipsFolder != "" {
		if err := os.MkdirAll(p.OutputClipsFolder, 0o755); err != nil {
			return fail(res, fmt.Errorf("create clips folder: %w", err))
		}
	}

	uc := usecase.New(usecase.Deps{Codec: codec, ASR: asr, Log: log})
	out, err := uc.Run(ctx, usecase.Input{
		Files:               paths(files),
		ClipsDir:            p.OutputClipsFolder,
		ConfidenceThreshold: p.ConfidenceThreshold,
		MinSilenceLenMs:     p.MinSilenceLenMs,
		SilenceThreshDBFS:   float64(p.SilenceThreshDBFS),
		MinSegmentLenMs:     p.MinSegmentLenMs,
		MergeFlagged:        p.MergeFlaggedSegments,
		MaxMergeGapMs:       int64(p.MaxMergeGapMs),
		AuthorizedLanguages: p.AuthorizedLanguages,
	})
	res.Stats = out.Stats
	if err != nil {
		return fail(res, err)
	}

	// A batch in which not a single speech segment survived has nothing to
	// report on; refuse to write an empty report.
	if out.Stats.TotalSegments == 0 {
		return fail(res, errors.New("no speech segments produced across the batch"))
	}

	if err := report.Write(p.OutputReportPath, out.Rows); err != nil {
		return fail(res, fmt.Errorf("write report: %w", err))
	}

	res.Success = true
	log.Info("batch complete",
		zap.String("report", p.OutputReportPath),
		zap.Int("segments", out.Stats.TotalSegments),
		zap.Int("flagged", out.Stats.FlaggedSegments),
	)
	return res, nil
}

func fail(res types.BatchResult, err error) (types.BatchResult, error) {
	res.Success = false
	res.Err = err.Error()
	return res, err
}

// durationProber is the slice of the codec the folder scan needs.
type durationProber interface {
	ProbeDurationMs(ctx context.Context, path string) (int64, error)
}

// scanFolder lists the recognized audio files in folder, in name order, and
// probes their durations with bounded concurrency. A failed probe marks the
// duration as unknown rather than dropping the file.
func scanFolder(ctx context.Context, prober durationProber, folder string) ([]FileInfo, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("read input folder: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() || !recognizedExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		var size int64
		if info, err := e.Info(); err == nil {
			size = info.Size()
		}
		files = append(files, FileInfo{
			Path:      filepath.Join(folder, e.Name()),
			Name:      e.Name(),
			SizeBytes: size,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(probeConcurrency)
	for i := range files {
		g.Go(func() error {
			d, err := prober.ProbeDurationMs(gctx, files[i].Path)
			if err != nil {
				files[i].DurationMs = -1
				return nil
			}
			files[i].DurationMs = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

func paths(files []FileInfo) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}

func buildRecognizer(p config.Params) (ports.Recognizer, func(), error) {
	switch p.Recognizer {
	case config.RecognizerCLI:
		return whispercli.New(p.WhisperBin, p.ModelPath), func() {}, nil
	default:
		a, err := whisperbind.New(p.ModelPath)
		if err != nil {
			return nil, nil, err
		}
		return a, func() { _ = a.Close() }, nil
	}
}

// buildLogger writes to stderr and, when file logging is on, to a per-run
// file in the log folder named after the start time and batch id.
func buildLogger(p config.Params, batchID string) (*zap.Logger, func(), error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	if p.EnableFileLog {
		if err := os.MkdirAll(p.LogFolder, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log folder: %w", err)
		}
		name := fmt.Sprintf("run_%s_%s.log",
			time.Now().UTC().Format("20060102-150405Z"), batchID)
		cfg.OutputPaths = append(cfg.OutputPaths, filepath.Join(p.LogFolder, name))
	}
	log, err := cfg.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}
	return log, func() { _ = log.Sync() }, nil
}

// compile-time checks that the adapters satisfy their ports
var (
	_ ports.AudioCodec = (*ffmpegcodec.Adapter)(nil)
	_ ports.Recognizer = (*whisperbind.Adapter)(nil)
	_ ports.Recognizer = (*whispercli.Adapter)(nil)
)
