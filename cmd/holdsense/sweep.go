package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"holdsense/registry"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Prune old capture directories",
	Long: "Run one retention pass over the capture cache, keeping the newest " +
		"directories up to the configured bound. The resident sweeps on its own; " +
		"this verb covers setups where the resident is not running.",
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sw := &registry.Sweeper{
		Root:    cfg.CapturesDir(),
		MaxDirs: cfg.MaxCaptureDirs,
	}
	sw.Sweep()
	fmt.Printf("swept %s (keeping the %d newest)\n", cfg.CapturesDir(), cfg.MaxCaptureDirs)
	return nil
}
