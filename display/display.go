package display

import (
	"fmt"
	"log"
	"math"

	"github.com/kbinani/screenshot"

	"holdsense/geom"
)

// Descriptor describes one attached display in logical coordinates.
// Scale is a hint only; the capture path measures the effective scale from
// captured pixel dimensions.
type Descriptor struct {
	ID     int64
	Bounds geom.Rect
	Scale  float64
	Label  string
}

// Provider enumerates attached displays. The screen-backed implementation is
// the default; tests and the orchestrator inject fakes.
type Provider interface {
	List() []Descriptor
}

// ScreenProvider enumerates displays via the OS screen API.
type ScreenProvider struct{}

func (ScreenProvider) List() []Descriptor {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		log.Printf("display: no active displays, using fallback")
		return []Descriptor{Fallback()}
	}
	out := make([]Descriptor, 0, n)
	for i := 0; i < n; i++ {
		b := screenshot.GetDisplayBounds(i)
		out = append(out, Descriptor{
			ID: int64(i),
			Bounds: geom.Rect{
				X:      float64(b.Min.X),
				Y:      float64(b.Min.Y),
				Width:  float64(b.Dx()),
				Height: float64(b.Dy()),
			},
			Scale: 1.0,
			Label: fmt.Sprintf("Display %d", i+1),
		})
	}
	return out
}

// Fallback is the synthetic display used when enumeration yields nothing.
// Callers never see an empty display list.
func Fallback() Descriptor {
	return Descriptor{
		ID:     0,
		Bounds: geom.Rect{X: 0, Y: 0, Width: 1920, Height: 1080},
		Scale:  1.0,
		Label:  "Display 1",
	}
}

// List enumerates displays with the default provider. Results are queried
// fresh on every call; display geometry is never cached across gestures.
func List() []Descriptor {
	return ScreenProvider{}.List()
}

// Primary returns the first enumerated display, or the fallback.
func Primary() Descriptor {
	ds := List()
	return ds[0]
}

// At returns the display whose bounds contain p, else the nearest display by
// edge distance, else the fallback for an empty slice.
func At(displays []Descriptor, p geom.Point) Descriptor {
	if len(displays) == 0 {
		return Fallback()
	}
	for _, d := range displays {
		if d.Bounds.Contains(p) {
			return d
		}
	}
	best := displays[0]
	bestDist := math.Inf(1)
	for _, d := range displays {
		dist := geom.Dist(p, d.Bounds.ClosestPointIn(p))
		if dist < bestDist {
			bestDist = dist
			best = d
		}
	}
	return best
}
