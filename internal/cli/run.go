package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/pkuleshov/langaudit/internal/config"
	"github.com/pkuleshov/langaudit/internal/pipeline"
)

// defaultConfigPath is picked up when present and --config is not given.
const defaultConfigPath = "langaudit.yaml"

func run(cmd *cobra.Command, folder string) error {
	p, cfgPath, err := loadParams(cmd)
	if err != nil {
		return err
	}
	overlayFlags(cmd, &p)
	if folder != "" {
		p.InputFolder = folder
	}
	if p.ModelPath == "" {
		p.ModelPath = os.Getenv("LANGAUDIT_MODEL")
	}

	if save, _ := cmd.Flags().GetBool("save-config"); save {
		if err := p.Save(cfgPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "parameters saved to %s\n", cfgPath)
		if p.InputFolder == "" {
			return nil
		}
	}
	if p.InputFolder == "" {
		return errors.New("input folder is required (pass it as the argument or set input_folder in the config)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := pipeline.Run(ctx, p)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Summary())
	return nil
}

// loadParams resolves the parameter file: an explicit --config must load,
// the default path loads only when it exists, otherwise stock defaults.
func loadParams(cmd *cobra.Command) (config.Params, string, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = defaultConfigPath
		if _, err := os.Stat(path); err != nil {
			return config.Default(), path, nil
		}
	}
	p, err := config.Load(path)
	if err != nil {
		return config.Params{}, "", err
	}
	return p, path, nil
}

// overlayFlags applies only the flags the user actually set, so config file
// values survive unless overridden on the command line.
func overlayFlags(cmd *cobra.Command, p *config.Params) {
	fs := cmd.Flags()
	if fs.Changed("report") {
		p.OutputReportPath, _ = fs.GetString("report")
	}
	if fs.Changed("clips") {
		p.OutputClipsFolder, _ = fs.GetString("clips")
	}
	if fs.Changed("threshold") {
		p.ConfidenceThreshold, _ = fs.GetFloat64("threshold")
	}
	if fs.Changed("langs") {
		p.AuthorizedLanguages, _ = fs.GetStringSlice("langs")
	}
	if fs.Changed("model") {
		p.ModelPath, _ = fs.GetString("model")
	}
	if fs.Changed("recognizer") {
		r, _ := fs.GetString("recognizer")
		p.Recognizer = config.Recognizer(r)
	}
	if fs.Changed("whisper-bin") {
		p.WhisperBin, _ = fs.GetString("whisper-bin")
	}
	if fs.Changed("min-silence-ms") {
		p.MinSilenceLenMs, _ = fs.GetInt("min-silence-ms")
	}
	if fs.Changed("silence-db") {
		p.SilenceThreshDBFS, _ = fs.GetInt("silence-db")
	}
	if fs.Changed("min-segment-ms") {
		p.MinSegmentLenMs, _ = fs.GetInt("min-segment-ms")
	}
	if fs.Changed("merge") {
		p.MergeFlaggedSegments, _ = fs.GetBool("merge")
	}
	if fs.Changed("merge-gap-ms") {
		p.MaxMergeGapMs, _ = fs.GetInt("merge-gap-ms")
	}
}
