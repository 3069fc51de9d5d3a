// Command holdsense is a press-and-hold screen capture assistant: a
// resident process watches the hold chord and drives the capture pipeline,
// and one-shot verbs expose the same pipeline for scripted use.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"holdsense/config"
	"holdsense/logutil"
)

var rootCmd = &cobra.Command{
	Use:           "holdsense",
	Short:         "Press-and-hold screen capture assistant",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	// DPI awareness must be set before anything queries display metrics,
	// or logical bounds and captured pixels disagree on scaled monitors.
	enableDPIAwareness()

	// The input hook and clipboard want a stable OS thread.
	runtime.LockOSThread()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration and points the log at the configured sink.
// One-shot verbs keep stdout clean unless file logging is enabled.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	logutil.Setup(cfg.LogsDir, cfg.EnableFileLogging)
	return cfg, nil
}
