package snapshot

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"log"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/image/draw"

	"holdsense/display"
	"holdsense/geom"
)

// CaptureSource is the OS screen-capture boundary: enumerate capturable
// sources, then grab a full image per source. The default implementation is
// ScreenSource; tests inject fakes with mismatched ids/labels.
type CaptureSource interface {
	Sources() ([]SourceInfo, error)
	Grab(info SourceInfo) (*image.RGBA, error)
}

// Options tunes the Acquirer. Zero values pick the defaults.
type Options struct {
	// CacheRoot is the directory that holds one subdirectory per capture.
	CacheRoot string
	// MaxEdge bounds the longest pixel edge of a stored image; larger
	// captures are uniformly downscaled. Default 4096.
	MaxEdge int
	// NewID and Now are injection points for tests.
	NewID func() string
	Now   func() time.Time
}

// Acquirer captures target displays into a fresh per-gesture directory.
type Acquirer struct {
	src  CaptureSource
	opts Options
}

func NewAcquirer(src CaptureSource, opts Options) *Acquirer {
	if opts.MaxEdge <= 0 {
		opts.MaxEdge = 4096
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.CacheRoot == "" {
		opts.CacheRoot = filepath.Join(os.TempDir(), "holdsense", "captures")
	}
	return &Acquirer{src: src, opts: opts}
}

// Capture grabs one image per target display, in parallel, and returns the
// assembled Snapshot. One display failing does not fail the others; only
// zero successful captures is a hard failure. The capture directory is
// never deleted here, even on failure: the registry owns deletion and the
// sweeper reaps orphans.
func (a *Acquirer) Capture(ctx context.Context, targets []display.Descriptor) (*Snapshot, error) {
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}

	sources, err := a.src.Sources()
	if err != nil {
		log.Printf("snapshot: source enumeration failed: %v", err)
		return nil, fmt.Errorf("enumerate capture sources: %w", ErrNoDisplays)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no capturable sources: %w", ErrNoDisplays)
	}

	log.Printf("snapshot: %d target display(s), %d source(s), required edge %d (clamp %d)",
		len(targets), len(sources), requiredEdge(targets), a.opts.MaxEdge)

	id := a.opts.NewID()
	dir := filepath.Join(a.opts.CacheRoot, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create capture dir: %w", err)
	}

	res := newResolver(sources)

	images := make([]*DisplayImage, len(targets))
	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target display.Descriptor) {
			defer wg.Done()
			di, err := a.captureOne(ctx, target, i, res, dir)
			if err != nil {
				log.Printf("snapshot: display %d capture failed, skipping: %v", target.ID, err)
				return
			}
			images[i] = di
		}(i, target)
	}
	wg.Wait()

	var captured []DisplayImage
	var viewport geom.Rect
	for i, di := range images {
		viewport = viewport.Union(targets[i].Bounds)
		if di != nil {
			captured = append(captured, *di)
		}
	}
	if len(captured) == 0 {
		log.Printf("snapshot: all %d display captures failed, leaving %s for the sweeper", len(targets), dir)
		return nil, ErrNoDisplays
	}

	snap := &Snapshot{
		ID:                id,
		GeneratedAtMillis: a.opts.Now().UnixMilli(),
		CacheDir:          dir,
		Displays:          captured,
		Viewport:          viewport,
	}
	log.Printf("snapshot: captured %d/%d display(s) into %s", len(captured), len(targets), dir)
	return snap, nil
}

func (a *Acquirer) captureOne(ctx context.Context, target display.Descriptor, position int, res *resolver, dir string) (*DisplayImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, how, ok := res.resolve(target, position)
	if !ok {
		return nil, fmt.Errorf("no capture source for display %d (%q)", target.ID, target.Label)
	}
	if how == resolvedByPosition {
		log.Printf("snapshot: WARNING display %d resolved positionally (source %d), ids/labels disagree", target.ID, info.Index)
	}

	img, err := a.src.Grab(info)
	if err != nil {
		return nil, fmt.Errorf("grab source %d: %w", info.Index, err)
	}
	if img == nil || img.Bounds().Dx() == 0 || img.Bounds().Dy() == 0 {
		return nil, fmt.Errorf("source %d produced an empty image", info.Index)
	}

	img = clampToEdge(img, a.opts.MaxEdge)

	// Effective scale is measured from what was actually stored, not from
	// the OS-reported scale factor, which can be stale.
	scale := 1.0
	if target.Bounds.Width > 0 {
		scale = float64(img.Bounds().Dx()) / target.Bounds.Width
	}

	path := filepath.Join(dir, fmt.Sprintf("display-%d.png", target.ID))
	if err := writePNG(path, img); err != nil {
		return nil, fmt.Errorf("write %s: %w", path, err)
	}

	return &DisplayImage{
		DisplayID: target.ID,
		Bounds:    target.Bounds,
		Scale:     scale,
		Width:     img.Bounds().Dx(),
		Height:    img.Bounds().Dy(),
		FilePath:  path,
	}, nil
}

type resolveMethod int

const (
	resolvedByID resolveMethod = iota
	resolvedByLabel
	resolvedByPosition
)

// resolver holds the two lookup indices built once per capture: native id
// and normalized label. The capture API and the display-geometry API may
// disagree on identifiers, so resolution degrades id -> label -> position.
type resolver struct {
	ordered []SourceInfo
	byID    map[int64]SourceInfo
	byLabel map[string]SourceInfo
}

func newResolver(sources []SourceInfo) *resolver {
	r := &resolver{
		ordered: sources,
		byID:    make(map[int64]SourceInfo, len(sources)),
		byLabel: make(map[string]SourceInfo, len(sources)),
	}
	for _, s := range sources {
		if _, dup := r.byID[s.DisplayID]; !dup {
			r.byID[s.DisplayID] = s
		}
		if l := normalizeLabel(s.Label); l != "" {
			if _, dup := r.byLabel[l]; !dup {
				r.byLabel[l] = s
			}
		}
	}
	return r
}

func (r *resolver) resolve(target display.Descriptor, position int) (SourceInfo, resolveMethod, bool) {
	if s, ok := r.byID[target.ID]; ok {
		return s, resolvedByID, true
	}
	if l := normalizeLabel(target.Label); l != "" {
		if s, ok := r.byLabel[l]; ok {
			return s, resolvedByLabel, true
		}
	}
	if position >= 0 && position < len(r.ordered) {
		return r.ordered[position], resolvedByPosition, true
	}
	return SourceInfo{}, 0, false
}

// requiredEdge is the longest pixel edge the targets would need before
// clamping, using the enumerated scale hint.
func requiredEdge(targets []display.Descriptor) int {
	longest := 0.0
	for _, t := range targets {
		scale := t.Scale
		if scale <= 0 {
			scale = 1.0
		}
		if e := t.Bounds.Width * scale; e > longest {
			longest = e
		}
		if e := t.Bounds.Height * scale; e > longest {
			longest = e
		}
	}
	return int(math.Ceil(longest))
}

// clampToEdge uniformly downscales img so its longest edge is at most
// maxEdge. Bounds memory and encode time on multi-4K setups.
func clampToEdge(img *image.RGBA, maxEdge int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	longest := w
	if h > longest {
		longest = h
	}
	if longest <= maxEdge {
		return img
	}
	ratio := float64(maxEdge) / float64(longest)
	nw := int(math.Round(float64(w) * ratio))
	nh := int(math.Round(float64(h) * ratio))
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
