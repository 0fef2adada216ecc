package main

import (
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/deploymenttheory/go-genmeta/internal/config"
	"github.com/deploymenttheory/go-genmeta/internal/logger"
	"github.com/deploymenttheory/go-genmeta/internal/processor"
	"github.com/deploymenttheory/go-genmeta/internal/sink"
	"github.com/deploymenttheory/go-genmeta/internal/storage"
)

var (
	cfgFile string
	cfg     config.Config
	logFile *os.File
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "genmeta [flags] files...",
		Short: "Read and optionally remove AI generation metadata from image files",
		Long: `Inspects JPEG, TIFF and PNG files for embedded metadata (EXIF tags and PNG
text chunks), flags entries that look like AI image-generation provenance
(tool names, prompts, workflow graphs), and displays, exports, copies or
strips them.`,
		Example: `  genmeta image.jpg                  Display metadata for a single image
  genmeta '*.jpg'                    Display metadata for all JPG files
  genmeta -r 'generated_*.png'       Remove metadata from matching PNG files
  genmeta -s swarm_output.png        Save AI metadata to a separate file
  genmeta -c image.png               Copy AI metadata to the clipboard
  genmeta --ai-only -v 'out/*.png'   Only show AI metadata, noting files without any`,
		Args:              cobra.MinimumNArgs(1),
		PersistentPreRunE: setup,
		RunE:              run,
		PersistentPostRun: teardown,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	// Actions
	rootCmd.Flags().BoolVarP(&cfg.Remove, "remove", "r", false, "remove AI generation metadata from images (keeps a .backup copy; fails if one already exists)")
	rootCmd.Flags().BoolVarP(&cfg.SaveMetadata, "save-metadata", "s", false, "save AI generation metadata to separate files (.json or .txt)")
	rootCmd.Flags().BoolVarP(&cfg.Copy, "copy", "c", false, "copy AI generation metadata to clipboard (single file only)")

	// Display flags
	rootCmd.Flags().Bool("ai-only", false, "only display potential AI generation metadata")

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML file with default settings")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "show verbose output")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")
	rootCmd.PersistentFlags().String("log-file", "", "log to file instead of stdout")
	rootCmd.PersistentFlags().String("report", "", "write a JSON report of every processed file")

	return rootCmd
}

// setup loads the config file, applies explicitly set flags over it and
// configures logging.
func setup(cmd *cobra.Command, args []string) error {
	if cfgFile != "" {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		loaded.Remove, loaded.SaveMetadata, loaded.Copy = cfg.Remove, cfg.SaveMetadata, cfg.Copy
		cfg = *loaded
	}
	applyFlags(cmd)

	if cfg.Verbose {
		logger.SetLevel(logger.LevelDebug)
	} else {
		logger.SetLevel(logger.LevelInfo)
	}

	if cfg.NoColor || !term.IsTerminal(int(os.Stdout.Fd())) {
		logger.DisableColors()
	}

	if cfg.LogFile != "" {
		file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			logger.Errorf("Failed to open log file: %v", err)
		} else {
			logFile = file
			logger.ToFile(file)
			logger.Debugf("Logging to file: %s", cfg.LogFile)
		}
	}
	return nil
}

// applyFlags copies flags the user set on the command line into cfg.
func applyFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("verbose") {
		cfg.Verbose, _ = flags.GetBool("verbose")
	}
	if flags.Changed("ai-only") {
		cfg.AIOnly, _ = flags.GetBool("ai-only")
	}
	if flags.Changed("no-color") {
		cfg.NoColor, _ = flags.GetBool("no-color")
	}
	if flags.Changed("log-file") {
		cfg.LogFile, _ = flags.GetString("log-file")
	}
	if flags.Changed("report") {
		cfg.Report, _ = flags.GetString("report")
	}
}

func run(cmd *cobra.Command, args []string) error {
	var store storage.Storage = storage.Discard{}
	if cfg.Report != "" {
		report, err := storage.New(cfg.Report)
		if err != nil {
			return err
		}
		store = report
	}

	if ignored, winner := cfg.Ignored(); len(ignored) > 0 {
		logger.Warningf("%s takes precedence; ignoring %s", winner, strings.Join(ignored, ", "))
	}

	proc := processor.New(&cfg, store, cmd.OutOrStdout(), sink.ForHost(runtime.GOOS))
	runErr := proc.Run(args)

	if err := store.Close(); err != nil {
		logger.Errorf("Failed to write report %s: %v", cfg.Report, err)
	}
	if runErr != nil {
		return runErr
	}

	stats := proc.Stats()
	logger.Debugf("Processed %d files (%d warnings, %d errors, %d skipped) in %v",
		stats.FilesProcessed, stats.Warnings, stats.Errors, stats.FilesSkipped, proc.Duration())
	return nil
}

func teardown(cmd *cobra.Command, args []string) {
	if logFile != nil {
		logFile.Close()
	}
}
