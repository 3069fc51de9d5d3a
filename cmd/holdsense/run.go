package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"holdsense/chord"
	"holdsense/clipboard"
	"holdsense/config"
	"holdsense/eventloop"
	"holdsense/geom"
	"holdsense/overlay"
	"holdsense/registry"
	"holdsense/singleinstance"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the resident capture assistant",
	Long: "Start the resident process that watches the hold chord and drives " +
		"the capture pipeline. When a resident is already running, it is asked " +
		"to open the overlay and this invocation exits.",
	RunE: runResident,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runResident(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// A second invocation delegates instead of racing for the port.
	delegated, err := singleinstance.NewClient().TryActivate(ctx)
	if delegated {
		if err != nil {
			return fmt.Errorf("resident refused activation: %w", err)
		}
		fmt.Println("resident already running, overlay requested")
		return nil
	}

	srv := singleinstance.NewServer()
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("claim resident port: %w", err)
	}
	defer srv.Close()

	if err := clipboard.Init(); err != nil {
		log.Printf("run: clipboard unavailable: %v", err)
	}

	reg := registry.New(registry.Options{
		TTL:         time.Duration(cfg.SnapshotTTLSec) * time.Second,
		ReuseWindow: time.Duration(cfg.ReuseWindowSec) * time.Second,
	})
	defer reg.Close()

	loop := eventloop.New(cfg, eventloop.Deps{Registry: reg})

	sweeper := &registry.Sweeper{
		Root:     cfg.CapturesDir(),
		MaxDirs:  cfg.MaxCaptureDirs,
		Interval: time.Duration(cfg.SnapshotTTLSec) * time.Second,
		Live:     reg.LiveIDs,
	}
	go sweeper.Run(ctx)

	binding, err := chord.ParseBinding(cfg.Hotkey)
	if err != nil {
		return fmt.Errorf("parse hotkey %q: %w", cfg.Hotkey, err)
	}
	detector := chord.NewDetector(binding, loop.Hold)
	if err := detector.Start(newKeySource(cfg, loop)); err != nil {
		log.Printf("run: %v; hold-to-capture disabled, manual trigger still works", err)
	}
	defer detector.Stop()

	// Manual activations delegated by later invocations.
	go func() {
		for {
			conn, err := srv.Next(ctx)
			if err != nil {
				return
			}
			loop.TriggerUI()
			_ = conn.Ack()
			_ = conn.Close()
		}
	}()

	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	log.Printf("run: resident up, hotkey %s, sidecar %s", cfg.Hotkey, cfg.SidecarURL)
	if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// newKeySource picks the input hook. The portable hook also carries pointer
// edges; the native Windows hook is keys only, so drags then rely on the
// overlay feeding Loop.Pointer directly.
func newKeySource(cfg *config.Config, loop *eventloop.Loop) chord.Source {
	if cfg.NativeHook {
		return chord.NewNativeSource()
	}
	src := chord.NewHookSource()
	src.SetPointerSink(func(e chord.PointerEdge) {
		loop.Pointer(overlay.PointerEvent{
			Kind: pointerKind(e.Kind),
			Pos:  geom.Point{X: e.X, Y: e.Y},
		})
	})
	return src
}

func pointerKind(k chord.PointerKind) overlay.PointerKind {
	switch k {
	case chord.PointerDown:
		return overlay.PointerDown
	case chord.PointerUp:
		return overlay.PointerUp
	default:
		return overlay.PointerMove
	}
}
