package snapshot

import (
	"fmt"
	"image"

	"github.com/kbinani/screenshot"

	"holdsense/geom"
)

// ScreenSource captures displays through the OS screen API. Source ids and
// labels mirror the display enumerator's, so resolution normally succeeds
// on the id index.
type ScreenSource struct{}

func (ScreenSource) Sources() ([]SourceInfo, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, fmt.Errorf("no active displays")
	}
	out := make([]SourceInfo, 0, n)
	for i := 0; i < n; i++ {
		b := screenshot.GetDisplayBounds(i)
		out = append(out, SourceInfo{
			Index:     i,
			DisplayID: int64(i),
			Label:     fmt.Sprintf("Display %d", i+1),
			Bounds: geom.Rect{
				X:      float64(b.Min.X),
				Y:      float64(b.Min.Y),
				Width:  float64(b.Dx()),
				Height: float64(b.Dy()),
			},
		})
	}
	return out, nil
}

func (ScreenSource) Grab(info SourceInfo) (*image.RGBA, error) {
	bounds := image.Rect(
		int(info.Bounds.X),
		int(info.Bounds.Y),
		int(info.Bounds.X+info.Bounds.Width),
		int(info.Bounds.Y+info.Bounds.Height),
	)
	img, err := screenshot.CaptureRect(bounds)
	if err != nil {
		return nil, fmt.Errorf("capture display %d: %w", info.DisplayID, err)
	}
	return img, nil
}
