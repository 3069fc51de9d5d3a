// Package registry owns the lifecycle of outstanding snapshots: TTL expiry,
// explicit discard, the latest-slot reuse window, and the capacity sweep of
// capture directories on disk. It is the single component allowed to delete
// files under the capture root.
package registry

import (
	"log"
	"os"
	"sync"
	"time"

	"holdsense/snapshot"
)

// Options tunes the registry. Zero values pick the defaults.
type Options struct {
	// TTL is how long a registered snapshot lives before automatic
	// discard. Default 5 minutes.
	TTL time.Duration
	// ReuseWindow is how long the latest snapshot may serve non-forced
	// capture requests. Default 5 seconds.
	ReuseWindow time.Duration
	// Now and RemoveDir are injection points for tests.
	Now       func() time.Time
	RemoveDir func(path string) error
}

type entry struct {
	snap  *snapshot.Snapshot
	timer *time.Timer
}

// Registry tracks Active snapshots by id. A snapshot's only transition is
// Active to Discarded, and Discarded is terminal.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	latest  *snapshot.Snapshot
	opts    Options
}

func New(opts Options) *Registry {
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	if opts.ReuseWindow <= 0 {
		opts.ReuseWindow = 5 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RemoveDir == nil {
		opts.RemoveDir = os.RemoveAll
	}
	return &Registry{entries: make(map[string]*entry), opts: opts}
}

// Register stores snap, arms its TTL timer, and replaces the latest slot.
// The snapshot previously in the latest slot is not discarded: in-flight
// selections may still hold its id. Re-registering an id re-arms its timer.
func (r *Registry) Register(snap *snapshot.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.entries[snap.ID]; ok {
		prev.timer.Stop()
	}
	id := snap.ID
	e := &entry{snap: snap}
	e.timer = time.AfterFunc(r.opts.TTL, func() {
		log.Printf("registry: snapshot %s TTL expired", id)
		r.Discard(id)
	})
	r.entries[id] = e
	r.latest = snap
	log.Printf("registry: registered snapshot %s (%d displays), ttl %s", id, len(snap.Displays), r.opts.TTL)
}

// Discard removes the snapshot and deletes its directory. Idempotent: when
// a TTL fire races an explicit discard, the loser finds the entry already
// gone and does nothing, so the directory is deleted at most once.
// Filesystem failures are logged and swallowed here and nowhere else; from
// the caller's perspective a discard always succeeds.
func (r *Registry) Discard(id string) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.entries, id)
	if r.latest != nil && r.latest.ID == id {
		r.latest = nil
	}
	r.mu.Unlock()

	e.timer.Stop()
	if e.snap.CacheDir != "" {
		if err := r.opts.RemoveDir(e.snap.CacheDir); err != nil {
			log.Printf("registry: discard %s: removing %s failed: %v", id, e.snap.CacheDir, err)
		}
	}
	log.Printf("registry: discarded snapshot %s", id)
}

// Get returns the snapshot for id while it is still Active.
func (r *Registry) Get(id string) (*snapshot.Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return e.snap, true
}

// Latest returns the snapshot in the latest slot, or nil.
func (r *Registry) Latest() *snapshot.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest
}

// ReusableLatest returns the latest snapshot only while it is fresh enough
// to serve a non-forced capture request, else nil.
func (r *Registry) ReusableLatest() *snapshot.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.latest == nil {
		return nil
	}
	age := r.opts.Now().UnixMilli() - r.latest.GeneratedAtMillis
	if age < 0 || age > r.opts.ReuseWindow.Milliseconds() {
		return nil
	}
	return r.latest
}

// LiveIDs reports the ids of all Active snapshots. The sweeper uses this to
// spare their directories.
func (r *Registry) LiveIDs() map[string]bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]bool, len(r.entries))
	for id := range r.entries {
		out[id] = true
	}
	return out
}

// Len reports the number of Active snapshots.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close stops all TTL timers without touching the disk. Retained directories
// are bounded by the sweep on next start.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		e.timer.Stop()
	}
	r.entries = make(map[string]*entry)
	r.latest = nil
}
