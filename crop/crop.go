// Package crop resolves a user-drawn selection rectangle against a
// snapshot and produces the encoded sub-image handed off to the session
// collaborator.
package crop

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"log"
	"math"
	"os"

	"holdsense/geom"
	"holdsense/snapshot"
)

// ErrSourceUnavailable reports that the owning display's stored image is
// missing or corrupt.
var ErrSourceUnavailable = errors.New("stored capture unavailable")

// Selection is the cropped output artifact. Ownership passes to the
// collaborator immediately; the core does not retain it.
type Selection struct {
	DataURL    string
	PNG        []byte
	SourceRect geom.Rect
	DisplayID  int64
}

// Crop translates rect (overlay-local logical coordinates) into the owning
// display's pixel space and extracts the sub-image from the stored capture.
// The owning display is the one containing the selection's global center;
// when no display contains the center the first display is used.
func Crop(snap *snapshot.Snapshot, rect geom.Rect, viewportOrigin geom.Point) (*Selection, error) {
	if snap == nil || len(snap.Displays) == 0 {
		return nil, fmt.Errorf("snapshot has no display images: %w", ErrSourceUnavailable)
	}

	globalRect := rect.Translate(viewportOrigin.X, viewportOrigin.Y)
	owner := owningDisplay(snap.Displays, globalRect.Center())

	img, err := readPNG(owner.FilePath)
	if err != nil {
		log.Printf("crop: decoding %s failed: %v", owner.FilePath, err)
		return nil, fmt.Errorf("decode stored capture for display %d: %w", owner.DisplayID, ErrSourceUnavailable)
	}

	px := pixelRect(globalRect, owner, img.Bounds())
	out := cropRGBA(toRGBA(img), px)

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encode crop: %w", err)
	}

	log.Printf("crop: display %d rect %dx%d at (%d,%d)", owner.DisplayID, px.Dx(), px.Dy(), px.Min.X, px.Min.Y)
	return &Selection{
		DataURL:    "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
		PNG:        buf.Bytes(),
		SourceRect: rect,
		DisplayID:  owner.DisplayID,
	}, nil
}

func owningDisplay(displays []snapshot.DisplayImage, center geom.Point) snapshot.DisplayImage {
	for _, d := range displays {
		if d.Bounds.Contains(center) {
			return d
		}
	}
	return displays[0]
}

// pixelRect converts the global selection into the owning display's stored
// pixel space: offset relative to the display origin times the measured
// scale, floored at 1x1 device pixels, clamped into the stored image. A
// rectangle that clamps away entirely becomes a 1x1 probe at the nearest
// in-bounds point so the gesture stays non-fatal.
func pixelRect(globalRect geom.Rect, d snapshot.DisplayImage, imgBounds image.Rectangle) image.Rectangle {
	x := int(math.Round((globalRect.X - d.Bounds.X) * d.Scale))
	y := int(math.Round((globalRect.Y - d.Bounds.Y) * d.Scale))
	w := int(math.Round(globalRect.Width * d.Scale))
	h := int(math.Round(globalRect.Height * d.Scale))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	r := image.Rect(x, y, x+w, y+h).Intersect(imgBounds)
	if r.Empty() {
		cx := clampInt(x, imgBounds.Min.X, imgBounds.Max.X-1)
		cy := clampInt(y, imgBounds.Min.Y, imgBounds.Max.Y-1)
		r = image.Rect(cx, cy, cx+1, cy+1)
	}
	return r
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// cropRGBA copies the selected rows into a fresh image. Row copies beat
// per-pixel access by a wide margin on large selections.
func cropRGBA(img *image.RGBA, r image.Rectangle) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	bytesPerRow := r.Dx() * 4
	for y := 0; y < r.Dy(); y++ {
		srcOff := img.PixOffset(r.Min.X, r.Min.Y+y)
		dstOff := out.PixOffset(0, y)
		copy(out.Pix[dstOff:dstOff+bytesPerRow], img.Pix[srcOff:srcOff+bytesPerRow])
	}
	return out
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	out := image.NewRGBA(img.Bounds())
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
	return out
}

func readPNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return png.Decode(f)
}
