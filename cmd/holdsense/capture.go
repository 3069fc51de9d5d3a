package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"holdsense/display"
	"holdsense/registry"
	"holdsense/snapshot"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture the displays once and keep the snapshot on disk",
	RunE:  runCapture,
}

func init() {
	rootCmd.AddCommand(captureCmd)
	captureCmd.Flags().Int("display", -1, "Capture only this display id")
	captureCmd.Flags().Bool("all", false, "Capture every display (the default)")
	captureCmd.Flags().String("out", "", "Write the snapshot under this directory instead of the capture cache")
}

func runCapture(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	displayID, _ := cmd.Flags().GetInt("display")
	all, _ := cmd.Flags().GetBool("all")
	out, _ := cmd.Flags().GetString("out")

	root := cfg.CapturesDir()
	if out != "" {
		root = out
	}

	targets := display.List()
	if displayID >= 0 && !all {
		var filtered []display.Descriptor
		for _, d := range targets {
			if d.ID == int64(displayID) {
				filtered = append(filtered, d)
			}
		}
		if len(filtered) == 0 {
			return fmt.Errorf("no display with id %d", displayID)
		}
		targets = filtered
	}

	acq := snapshot.NewAcquirer(snapshot.ScreenSource{}, snapshot.Options{
		CacheRoot: root,
		MaxEdge:   cfg.MaxCaptureEdge,
	})
	reg := registry.New(registry.Options{
		TTL:         time.Duration(cfg.SnapshotTTLSec) * time.Second,
		ReuseWindow: time.Duration(cfg.ReuseWindowSec) * time.Second,
	})
	defer reg.Close()

	snap, err := acq.Capture(cmd.Context(), targets)
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	reg.Register(snap)

	fmt.Printf("snapshot %s (%d displays) in %s\n", snap.ID, len(snap.Displays), snap.CacheDir)
	for _, d := range snap.Displays {
		fmt.Printf("  display %d: %dx%d px (scale %.2f) %s\n",
			d.DisplayID, d.Width, d.Height, d.Scale, filepath.Base(d.FilePath))
	}
	return nil
}
