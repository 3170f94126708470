package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root := newRoot()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRoot() *cobra.Command {
	root := &cobra.Command{
		Use:          "langaudit [input-folder]",
		Short:        "Audit audio files for unauthorized-language speech",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			folder := ""
			if len(args) == 1 {
				folder = args[0]
			}
			return run(cmd, folder)
		},
	}

	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceErrors = true

	// Visible flags
	root.Flags().String("config", "", "YAML parameter file")
	root.Flags().Bool("save-config", false, "Write the effective parameters back to the config file")
	root.Flags().String("report", "output.xlsx", "Report output path (.xlsx or .csv)")
	root.Flags().String("clips", "cropped_audio", "Folder for exported flagged clips")
	root.Flags().Float64("threshold", 0.7, "Confidence threshold below which segments are flagged")
	root.Flags().StringSlice("langs", []string{"en", "hi"}, "Authorized language codes")
	root.Flags().String("model", "", "whisper.cpp model path")
	root.Flags().String("recognizer", "native", "Recognition backend: native or cli")

	// Hidden tuning flags (internal)
	root.Flags().Int("min-silence-ms", 500, "Minimum silence run treated as a segment boundary")
	root.Flags().Int("silence-db", -40, "Silence threshold in dBFS")
	root.Flags().Int("min-segment-ms", 1000, "Minimum speech segment length kept")
	root.Flags().Bool("merge", true, "Merge nearby flagged segments into one clip")
	root.Flags().Int("merge-gap-ms", 1000, "Maximum gap bridged when merging flagged segments")
	root.Flags().String("whisper-bin", "", "whisper.cpp binary (cli recognizer only)")
	for _, f := range []string{
		"min-silence-ms", "silence-db", "min-segment-ms", "merge-gap-ms", "whisper-bin",
	} {
		_ = root.Flags().MarkHidden(f)
	}

	return root
}
