package registry

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func mkCaptureDir(t *testing.T, root, name string, mod time.Time) {
	t.Helper()
	path := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(path, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(path, "display-0.png"), []byte("png"), 0o644))
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func listDirs(t *testing.T, root string) []string {
	t.Helper()
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

func TestSweepKeepsNewest(t *testing.T) {
	root := t.TempDir()
	base := time.Now().Add(-time.Hour)
	for i, name := range []string{"cap-1", "cap-2", "cap-3", "cap-4", "cap-5"} {
		mkCaptureDir(t, root, name, base.Add(time.Duration(i)*time.Minute))
	}

	s := &Sweeper{Root: root, MaxDirs: 3}
	s.Sweep()

	require.Equal(t, []string{"cap-3", "cap-4", "cap-5"}, listDirs(t, root))
}

func TestSweepSparesLiveSnapshots(t *testing.T) {
	root := t.TempDir()
	base := time.Now().Add(-time.Hour)
	for i, name := range []string{"cap-1", "cap-2", "cap-3", "cap-4"} {
		mkCaptureDir(t, root, name, base.Add(time.Duration(i)*time.Minute))
	}

	s := &Sweeper{
		Root:    root,
		MaxDirs: 2,
		Live:    func() map[string]bool { return map[string]bool{"cap-1": true} },
	}
	s.Sweep()

	// cap-1 is oldest but registered, so only cap-2 goes.
	require.Equal(t, []string{"cap-1", "cap-3", "cap-4"}, listDirs(t, root))
}

func TestSweepUnderBoundIsNoop(t *testing.T) {
	root := t.TempDir()
	mkCaptureDir(t, root, "cap-1", time.Now())
	mkCaptureDir(t, root, "cap-2", time.Now())

	s := &Sweeper{Root: root, MaxDirs: 12}
	s.Sweep()

	require.Len(t, listDirs(t, root), 2)
}

func TestSweepMissingRoot(t *testing.T) {
	s := &Sweeper{Root: filepath.Join(t.TempDir(), "does-not-exist"), MaxDirs: 3}
	s.Sweep() // must not panic or create anything
}

func TestSweepIgnoresPlainFiles(t *testing.T) {
	root := t.TempDir()
	base := time.Now().Add(-time.Hour)
	for i, name := range []string{"cap-1", "cap-2", "cap-3"} {
		mkCaptureDir(t, root, name, base.Add(time.Duration(i)*time.Minute))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "stray.log"), []byte("x"), 0o644))

	s := &Sweeper{Root: root, MaxDirs: 2}
	s.Sweep()

	require.Equal(t, []string{"cap-2", "cap-3"}, listDirs(t, root))
	_, err := os.Stat(filepath.Join(root, "stray.log"))
	require.NoError(t, err, "plain files are not sweep candidates")
}

func TestSweeperRunTicks(t *testing.T) {
	root := t.TempDir()
	tick := make(chan time.Time, 1)

	s := &Sweeper{
		Root:     root,
		MaxDirs:  1,
		Interval: time.Minute,
		NewTicker: func(d time.Duration) (<-chan time.Time, func()) {
			return tick, func() {}
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	// Dirs created after the initial pass are reclaimed on the next tick.
	base := time.Now().Add(-time.Hour)
	mkCaptureDir(t, root, "cap-1", base)
	mkCaptureDir(t, root, "cap-2", base.Add(time.Minute))
	tick <- time.Now()

	require.Eventually(t, func() bool {
		dirs := listDirs(t, root)
		return len(dirs) == 1 && dirs[0] == "cap-2"
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop on context cancellation")
	}
}
