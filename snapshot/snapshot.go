// Package snapshot captures per-display screen images into per-gesture
// cache directories. Each capture produces one Snapshot: a UUID-named
// directory of PNG files plus the geometry needed to crop selections out of
// them later. Ownership of a Snapshot passes to the registry immediately
// after capture.
package snapshot

import (
	"errors"
	"strings"

	"holdsense/geom"
)

var (
	// ErrNoTargets is returned for a capture request with zero target
	// displays. Nothing is written to the filesystem in that case.
	ErrNoTargets = errors.New("no target displays")

	// ErrNoDisplays is returned when every target display failed to
	// capture. Partial failure is not an error; see Acquirer.Capture.
	ErrNoDisplays = errors.New("no displays available")
)

// DisplayImage is one display's stored capture within a Snapshot.
// Scale is measured from the stored image (pixel width / logical width),
// which stays truthful after downsampling and when the OS-reported scale
// factor is stale.
type DisplayImage struct {
	DisplayID int64
	Bounds    geom.Rect
	Scale     float64
	Width     int
	Height    int
	FilePath  string
}

// Snapshot is one capture event's full set of display images plus metadata.
// The registry owns its on-disk directory from registration until discard.
type Snapshot struct {
	ID                string
	GeneratedAtMillis int64
	CacheDir          string
	Displays          []DisplayImage
	Viewport          geom.Rect
}

// Display returns the stored image for a display id.
func (s *Snapshot) Display(id int64) (DisplayImage, bool) {
	for _, d := range s.Displays {
		if d.DisplayID == id {
			return d, true
		}
	}
	return DisplayImage{}, false
}

// SourceInfo describes one capturable source reported by the OS capture
// service. The native display id and label are optional and may disagree
// with the display-geometry API, which is why resolution falls back from id
// to label to position.
type SourceInfo struct {
	Index     int
	DisplayID int64
	Label     string
	Bounds    geom.Rect
}

// normalizeLabel lower-cases and trims a display label for matching.
func normalizeLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}
