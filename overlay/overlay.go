// Package overlay is the presentation boundary for the selection surface.
// Window creation and drawing live outside this module; the event loop
// drives a Presenter with mode changes and receives pointer events back.
package overlay

import (
	"log"

	"holdsense/chord"
	"holdsense/geom"
)

type Mode int

const (
	ModeIdle Mode = iota
	ModePrimed
	ModeSelecting
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModePrimed:
		return "primed"
	case ModeSelecting:
		return "selecting"
	default:
		return "unknown"
	}
}

// ModeChange tells the presenter which surface to show.
type ModeChange struct {
	Mode              Mode
	TriggeredAtMillis int64
	Source            chord.EventSource
}

type PointerKind int

const (
	PointerDown PointerKind = iota
	PointerMove
	PointerUp
)

func (k PointerKind) String() string {
	switch k {
	case PointerDown:
		return "down"
	case PointerMove:
		return "move"
	case PointerUp:
		return "up"
	default:
		return "unknown"
	}
}

// PointerEvent is a pointer edge in global logical coordinates.
type PointerEvent struct {
	Kind PointerKind
	Pos  geom.Point
}

// Presenter is implemented by whatever owns the overlay window.
// HideForCapture must remove the overlay from the screen before a forced
// capture grabs pixels; Restore brings it back afterwards.
type Presenter interface {
	SetMode(change ModeChange)
	HideForCapture()
	Restore()
}

// NullPresenter logs transitions. Used when running headless and by the
// one-shot commands.
type NullPresenter struct{}

func (NullPresenter) SetMode(c ModeChange) {
	log.Printf("overlay: mode=%s source=%s", c.Mode, c.Source)
}

func (NullPresenter) HideForCapture() {
	log.Printf("overlay: hidden for capture")
}

func (NullPresenter) Restore() {
	log.Printf("overlay: restored")
}
