package registry

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Sweeper bounds the number of capture directories retained on disk,
// independent of registry state. A crash between capture and registration
// leaves an orphan directory that no TTL timer will ever reclaim; the sweep
// keeps the newest MaxDirs and removes the rest, sparing directories of
// Active snapshots.
type Sweeper struct {
	// Root is the captures directory, one subdirectory per capture id.
	Root string
	// MaxDirs is the retention bound. Default 12.
	MaxDirs int
	// Interval is the time between sweep passes. If <= 0, only the initial
	// pass on Run is performed and Run waits for cancellation.
	Interval time.Duration
	// Live reports the ids whose directories must be spared.
	Live func() map[string]bool

	// NewTicker creates a ticker channel and its stop function. If nil,
	// time.NewTicker is used. Inject a custom implementation for
	// deterministic testing without real timers.
	NewTicker func(d time.Duration) (tick <-chan time.Time, stop func())
}

// Run sweeps immediately, then at intervals until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.Sweep()

	if s.Interval <= 0 {
		<-ctx.Done()
		return
	}

	newTicker := s.NewTicker
	if newTicker == nil {
		newTicker = defaultNewTicker
	}

	ch, stop := newTicker(s.Interval)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			s.Sweep()
		}
	}
}

// Sweep executes a single retention pass. Errors are logged and swallowed;
// retention is best-effort.
func (s *Sweeper) Sweep() {
	maxDirs := s.MaxDirs
	if maxDirs <= 0 {
		maxDirs = 12
	}

	dirEntries, err := os.ReadDir(s.Root)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("registry: sweep: reading %s failed: %v", s.Root, err)
		}
		return
	}

	type captureDir struct {
		name string
		mod  time.Time
	}
	var dirs []captureDir
	for _, de := range dirEntries {
		if !de.IsDir() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		dirs = append(dirs, captureDir{name: de.Name(), mod: info.ModTime()})
	}
	if len(dirs) <= maxDirs {
		return
	}

	// newest first; everything beyond the bound is a candidate
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].mod.After(dirs[j].mod) })

	live := map[string]bool{}
	if s.Live != nil {
		live = s.Live()
	}

	removed := 0
	for _, d := range dirs[maxDirs:] {
		if live[d.name] {
			continue
		}
		path := filepath.Join(s.Root, d.name)
		if err := os.RemoveAll(path); err != nil {
			log.Printf("registry: sweep: removing %s failed: %v", path, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		log.Printf("registry: sweep removed %d of %d capture dir(s)", removed, len(dirs))
	}
}

func defaultNewTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}
