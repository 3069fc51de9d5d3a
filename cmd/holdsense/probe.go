package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"holdsense/clipboard"
	"holdsense/session"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Print the current selection text",
	Long: "Ask the sidecar for the currently selected text. Falls back to the " +
		"clipboard when the sidecar is unreachable.",
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := clipboard.Init(); err != nil {
		log.Printf("probe: clipboard unavailable: %v", err)
	}

	client := session.NewClient(cfg.SidecarURL, 10*time.Second)
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	text, err := client.ProbeSelectionText(ctx)
	if err != nil {
		return fmt.Errorf("probe selection: %w", err)
	}
	fmt.Print(text)
	return nil
}
