package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/joshuapare/deltakit/delta/dirty"
	"github.com/joshuapare/deltakit/internal/logger"
	"github.com/joshuapare/deltakit/pkg/patch"
)

var (
	// Global flags
	verbose   bool
	quiet     bool
	jsonOut   bool
	logDir    string
	chunkSize int
	syncMode  string
)

var rootCmd = &cobra.Command{
	Use:   "deltactl",
	Short: "Edit large binary files in place",
	Long: `deltactl inserts, removes and overwrites bytes in binary files of any
size without rewriting the whole file. Only changed regions and the shifted
remainder are written back, with bounded memory use.`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
	PersistentPostRun: func(*cobra.Command, []string) { logger.Close() },
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "Write daily JSON logs to this directory")
	rootCmd.PersistentFlags().
		IntVar(&chunkSize, "chunk", 0, "Bytes moved per copy chunk while saving (default 4096)")
	rootCmd.PersistentFlags().
		StringVar(&syncMode, "sync", "none", "Flush written ranges after saving (none, data, full)")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging(*cobra.Command, []string) error {
	opts := logger.Options{
		Enabled: verbose || logDir != "",
		LogDir:  logDir,
	}
	if verbose {
		opts.Stderr = os.Stderr
		opts.Level = slog.LevelDebug
	}
	return logger.Init(opts)
}

// patchOptions builds patch options from the global flags.
func patchOptions() (*patch.Options, error) {
	mode, err := dirty.ParseFlushMode(syncMode)
	if err != nil {
		return nil, err
	}
	if chunkSize < 0 {
		return nil, fmt.Errorf("invalid --chunk %d", chunkSize)
	}
	return &patch.Options{
		Flush:           mode,
		ProcessingLimit: chunkSize,
		Logger:          logger.L,
	}, nil
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// parseNumber parses a decimal or 0x/0o/0b prefixed integer argument.
func parseNumber(name, s string) (int64, error) {
	v, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	return v, nil
}
