// Package eventloop coordinates the hold-to-capture gesture: chord
// activation, dwell escalation, drag selection, and the capture, crop,
// and handoff that follow. All state transitions run on one goroutine.
package eventloop

import (
	"context"
	"errors"
	"log"
	"time"

	"holdsense/chord"
	"holdsense/clipboard"
	"holdsense/config"
	"holdsense/crop"
	"holdsense/display"
	"holdsense/geom"
	"holdsense/notification"
	"holdsense/overlay"
	"holdsense/registry"
	"holdsense/session"
	"holdsense/snapshot"
	"holdsense/worker"
)

const defaultCaptureDeadline = 20 * time.Second

type mode int

const (
	modeIdle mode = iota
	modePrimed
	modeSelecting
	modeLocked
)

func (m mode) String() string {
	switch m {
	case modeIdle:
		return "idle"
	case modePrimed:
		return "primed"
	case modeSelecting:
		return "selecting"
	case modeLocked:
		return "locked"
	default:
		return "unknown"
	}
}

// Acquirer is the slice of the snapshot acquirer the loop needs.
type Acquirer interface {
	Capture(ctx context.Context, targets []display.Descriptor) (*snapshot.Snapshot, error)
}

// Deps are the loop's collaborators. Zero fields get working defaults in
// New, so tests can inject only what they observe.
type Deps struct {
	Presenter    overlay.Presenter
	Collaborator session.Collaborator
	Acquirer     Acquirer
	Registry     *registry.Registry
	Displays     display.Provider
	Pool         *worker.Pool

	// Notify surfaces one-line failures to the user. Must be safe to call
	// from worker goroutines.
	Notify func(message string)
	// CopyFallback delivers a cropped PNG locally when the collaborator
	// is unreachable.
	CopyFallback func(png []byte) error

	AfterFunc func(d time.Duration, f func()) *time.Timer
	Now       func() time.Time
}

// Loop is the single-threaded orchestrator for the capture pipeline.
type Loop struct {
	deps Deps

	dwell           time.Duration
	minSelectionPx  float64
	cancelThreshold float64
	visionEnabled   bool
	captureDeadline time.Duration
	ownPool         bool

	// Gesture state, touched only by the Run goroutine.
	mode        mode
	seq         uint64
	source      chord.EventSource
	chordHeld   bool
	visionArmed bool
	anchor      geom.Point
	rect        geom.Rect
	probedText  string
	dwellTimer  *time.Timer

	holdCh    chan chord.HoldEvent
	pointerCh chan overlay.PointerEvent
	uiCh      chan struct{}
	dwellCh   chan uint64
	probeCh   chan probeResult
	results   chan captureResult
}

type probeResult struct {
	seq  uint64
	text string
}

type captureResult struct {
	seq    uint64
	sel    *crop.Selection
	err    error
	warm   bool
	cancel context.CancelFunc
}

// New creates the loop. cfg may be nil; missing deps get defaults wired
// from cfg the same way the resident binary wires them.
func New(cfg *config.Config, deps Deps) *Loop {
	dwellMS := 500
	minPx := 12
	cancelPx := 6
	vision := true
	if cfg != nil {
		dwellMS = cfg.DwellMS
		minPx = cfg.MinSelectionPx
		cancelPx = cfg.CancelThresholdPx
		vision = cfg.VisionEnabled
	}

	l := &Loop{
		deps:            deps,
		dwell:           time.Duration(dwellMS) * time.Millisecond,
		minSelectionPx:  float64(minPx),
		cancelThreshold: float64(cancelPx),
		visionEnabled:   vision,
		captureDeadline: defaultCaptureDeadline,
		holdCh:          make(chan chord.HoldEvent, 8),
		pointerCh:       make(chan overlay.PointerEvent, 64),
		uiCh:            make(chan struct{}, 4),
		dwellCh:         make(chan uint64, 4),
		probeCh:         make(chan probeResult, 4),
		results:         make(chan captureResult, 1),
	}

	if l.deps.Presenter == nil {
		l.deps.Presenter = overlay.NullPresenter{}
	}
	if l.deps.Displays == nil {
		l.deps.Displays = display.ScreenProvider{}
	}
	if l.deps.Registry == nil {
		opts := registry.Options{}
		if cfg != nil {
			opts.TTL = time.Duration(cfg.SnapshotTTLSec) * time.Second
			opts.ReuseWindow = time.Duration(cfg.ReuseWindowSec) * time.Second
		}
		l.deps.Registry = registry.New(opts)
	}
	if l.deps.Acquirer == nil {
		opts := snapshot.Options{}
		if cfg != nil {
			opts.CacheRoot = cfg.CapturesDir()
			opts.MaxEdge = cfg.MaxCaptureEdge
		}
		l.deps.Acquirer = snapshot.NewAcquirer(snapshot.ScreenSource{}, opts)
	}
	if l.deps.Collaborator == nil {
		url := config.DefaultSidecarURL
		if cfg != nil {
			url = cfg.SidecarURL
		}
		l.deps.Collaborator = session.NewClient(url, 10*time.Second)
	}
	if l.deps.Pool == nil {
		l.deps.Pool = worker.New(0)
		l.ownPool = true
	}
	if l.deps.Notify == nil {
		l.deps.Notify = notification.Show
	}
	if l.deps.CopyFallback == nil {
		l.deps.CopyFallback = clipboard.WriteImage
	}
	if l.deps.AfterFunc == nil {
		l.deps.AfterFunc = time.AfterFunc
	}
	if l.deps.Now == nil {
		l.deps.Now = time.Now
	}
	return l
}

// Hold is the chord detector sink. Safe to call from any goroutine.
func (l *Loop) Hold(evt chord.HoldEvent) {
	select {
	case l.holdCh <- evt:
	default:
		log.Printf("eventloop: hold event dropped, queue full")
	}
}

// Pointer feeds pointer edges in global logical coordinates.
func (l *Loop) Pointer(evt overlay.PointerEvent) {
	select {
	case l.pointerCh <- evt:
	default:
	}
}

// TriggerUI requests a manual activation, the overlay-button path that
// needs no chord.
func (l *Loop) TriggerUI() {
	select {
	case l.uiCh <- struct{}{}:
	default:
	}
}

// Run processes events until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	if l.ownPool {
		defer l.deps.Pool.Close()
	}
	defer l.stopDwell()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt := <-l.holdCh:
			l.handleHold(ctx, evt)
		case evt := <-l.pointerCh:
			l.handlePointer(ctx, evt)
		case <-l.uiCh:
			l.handleUITrigger(ctx)
		case seq := <-l.dwellCh:
			l.handleDwell(ctx, seq)
		case res := <-l.probeCh:
			l.handleProbe(res)
		case res := <-l.results:
			l.handleResult(res)
		}
	}
}

func (l *Loop) handleHold(ctx context.Context, evt chord.HoldEvent) {
	l.chordHeld = evt.Active
	if evt.Active {
		l.activate(ctx, evt.Source, evt.TriggeredAtMillis)
		return
	}
	l.handleRelease()
}

func (l *Loop) handleUITrigger(ctx context.Context) {
	// A second manual trigger while the overlay is up toggles it away.
	if l.mode == modePrimed && l.source == chord.SourceUI {
		log.Printf("handleUITrigger: toggling overlay off")
		l.toIdle()
		return
	}
	l.activate(ctx, chord.SourceUI, l.deps.Now().UnixMilli())
}

// activate starts a fresh gesture from any state. The sequence bump
// invalidates every timer and callback of the previous gesture.
func (l *Loop) activate(ctx context.Context, src chord.EventSource, triggeredAt int64) {
	l.seq++
	l.source = src
	l.visionArmed = false
	l.probedText = ""
	l.rect = geom.Rect{}
	l.setMode(modePrimed, triggeredAt)
	log.Printf("activate: seq=%d source=%s", l.seq, src)

	l.armDwell(l.seq)
	l.startProbe(ctx, l.seq)
}

func (l *Loop) handleRelease() {
	if l.source == chord.SourceUI && l.mode == modePrimed {
		// A manually triggered overlay outlives the chord.
		return
	}
	switch l.mode {
	case modePrimed:
		log.Printf("handleRelease: clean exit seq=%d", l.seq)
		l.toIdle()
	case modeSelecting:
		log.Printf("handleRelease: cancelling drag seq=%d", l.seq)
		l.toIdle()
	case modeLocked:
		// The capture already dispatched; its result decides the exit.
		log.Printf("handleRelease: capture in flight seq=%d", l.seq)
	}
}

func (l *Loop) handlePointer(ctx context.Context, evt overlay.PointerEvent) {
	switch evt.Kind {
	case overlay.PointerDown:
		if l.mode != modePrimed {
			return
		}
		l.anchor = evt.Pos
		l.rect = geom.FromCorners(evt.Pos, evt.Pos)
		l.setMode(modeSelecting, l.deps.Now().UnixMilli())
	case overlay.PointerMove:
		if l.mode != modeSelecting {
			return
		}
		l.rect = geom.FromCorners(l.anchor, evt.Pos)
	case overlay.PointerUp:
		if l.mode != modeSelecting {
			return
		}
		l.rect = geom.FromCorners(l.anchor, evt.Pos)
		l.finishDrag(ctx, evt.Pos)
	}
}

func (l *Loop) finishDrag(ctx context.Context, pos geom.Point) {
	if geom.Dist(l.anchor, pos) < l.cancelThreshold {
		// A click, not a drag.
		log.Printf("finishDrag: below cancel threshold seq=%d", l.seq)
		l.rect = geom.Rect{}
		l.setMode(modePrimed, l.deps.Now().UnixMilli())
		return
	}
	if l.rect.MinEdge() < l.minSelectionPx {
		log.Printf("finishDrag: selection %.0fx%.0f under minimum, back to primed seq=%d",
			l.rect.Width, l.rect.Height, l.seq)
		l.rect = geom.Rect{}
		l.setMode(modePrimed, l.deps.Now().UnixMilli())
		return
	}
	l.mode = modeLocked
	log.Printf("finishDrag: locked rect=%+v seq=%d visionArmed=%v", l.rect, l.seq, l.visionArmed)
	l.submitLockedCapture(ctx)
}

func (l *Loop) handleDwell(ctx context.Context, seq uint64) {
	if seq != l.seq || l.mode != modePrimed {
		log.Printf("handleDwell: stale fire seq=%d current=%d mode=%s, dropped", seq, l.seq, l.mode)
		return
	}
	if !l.visionEnabled {
		log.Printf("handleDwell: vision disabled, long press ignored")
		return
	}
	l.visionArmed = true
	log.Printf("handleDwell: vision armed seq=%d", l.seq)
	l.submitWarmCapture(ctx)
}

func (l *Loop) handleProbe(res probeResult) {
	if res.seq != l.seq {
		log.Printf("handleProbe: stale probe seq=%d current=%d, dropped", res.seq, l.seq)
		return
	}
	l.probedText = res.text
	log.Printf("handleProbe: selection text length=%d seq=%d", len(res.text), res.seq)
}

func (l *Loop) handleResult(res captureResult) {
	if res.cancel != nil {
		defer res.cancel()
	}
	if res.seq != l.seq {
		log.Printf("handleResult: stale result seq=%d current=%d, dropped", res.seq, l.seq)
		return
	}
	if res.warm {
		if res.err != nil {
			log.Printf("handleResult: warm capture failed: %v", res.err)
		}
		return
	}
	if l.mode != modeLocked {
		log.Printf("handleResult: result in mode=%s, dropped", l.mode)
		return
	}

	if res.err != nil {
		log.Printf("handleResult: capture failed: %v", res.err)
		l.deps.Notify(captureFailureMessage(res.err))
		if l.chordHeld || l.source == chord.SourceUI {
			l.setMode(modePrimed, l.deps.Now().UnixMilli())
		} else {
			l.toIdle()
		}
		return
	}

	log.Printf("handleResult: gesture complete seq=%d display=%d", res.seq, res.sel.DisplayID)
	l.toIdle()
}

// submitLockedCapture runs the forced, overlay-hidden capture for the
// frozen rectangle on the worker pool.
func (l *Loop) submitLockedCapture(ctx context.Context) {
	seq := l.seq
	rect := l.rect
	probed := l.probedText
	jobCtx, cancel := context.WithTimeout(ctx, l.captureDeadline)

	submitted := l.deps.Pool.Submit(jobCtx, seq, rect,
		func(ctx context.Context) (*crop.Selection, error) {
			return l.lockedCapture(ctx, rect, probed)
		},
		func(sel *crop.Selection, err error) {
			// Post unless the loop is already gone; otherwise Close would
			// wait forever on this callback.
			select {
			case l.results <- captureResult{seq: seq, sel: sel, err: err, cancel: cancel}:
			case <-ctx.Done():
				cancel()
			}
		})
	if !submitted {
		cancel()
		log.Printf("submitLockedCapture: pool busy, dropping gesture seq=%d", seq)
		l.deps.Notify("Capture busy, try again")
		l.setMode(modePrimed, l.deps.Now().UnixMilli())
	}
}

// lockedCapture is the worker-side body: fresh hidden capture, crop, and
// handoff. The overlay must never end up composited into the crop.
func (l *Loop) lockedCapture(ctx context.Context, rect geom.Rect, probed string) (*crop.Selection, error) {
	l.deps.Presenter.HideForCapture()
	snap, err := l.deps.Acquirer.Capture(ctx, l.deps.Displays.List())
	l.deps.Presenter.Restore()
	if err != nil {
		return nil, err
	}
	l.deps.Registry.Register(snap)

	origin := geom.Point{X: snap.Viewport.X, Y: snap.Viewport.Y}
	local := rect.Translate(-origin.X, -origin.Y)
	sel, err := crop.Crop(snap, local, origin)
	if err != nil {
		return nil, err
	}

	sessionID, err := l.deps.Collaborator.AttachCapture(ctx, session.CapturePayload{
		CaptureID: snap.ID,
		DataURL:   sel.DataURL,
		Text:      probed,
		Rect:      sel.SourceRect,
		DisplayID: sel.DisplayID,
		Viewport:  snap.Viewport,
	})
	if err != nil {
		if errors.Is(err, session.ErrSidecarUnavailable) {
			// Keep the gesture useful: the crop lands on the clipboard.
			if cerr := l.deps.CopyFallback(sel.PNG); cerr != nil {
				log.Printf("lockedCapture: clipboard fallback failed: %v", cerr)
			} else {
				l.deps.Notify("Assistant offline, selection copied to clipboard")
				return sel, nil
			}
		}
		return nil, err
	}
	log.Printf("lockedCapture: handed off capture=%s session=%s", snap.ID, sessionID)
	return sel, nil
}

// submitWarmCapture refreshes the registry's latest snapshot so a lock
// shortly after has warm caches. Best-effort: a busy pool or a failure
// only logs.
func (l *Loop) submitWarmCapture(ctx context.Context) {
	if snap := l.deps.Registry.ReusableLatest(); snap != nil {
		log.Printf("submitWarmCapture: reusing snapshot %s", snap.ID)
		return
	}
	seq := l.seq
	submitted := l.deps.Pool.Submit(ctx, seq, geom.Rect{},
		func(ctx context.Context) (*crop.Selection, error) {
			snap, err := l.deps.Acquirer.Capture(ctx, l.deps.Displays.List())
			if err != nil {
				return nil, err
			}
			l.deps.Registry.Register(snap)
			return nil, nil
		},
		func(sel *crop.Selection, err error) {
			select {
			case l.results <- captureResult{seq: seq, err: err, warm: true}:
			case <-ctx.Done():
			}
		})
	if !submitted {
		log.Printf("submitWarmCapture: pool busy, skipping")
	}
}

func (l *Loop) startProbe(ctx context.Context, seq uint64) {
	go func() {
		probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		text, err := l.deps.Collaborator.ProbeSelectionText(probeCtx)
		if err != nil {
			// Best-effort by contract.
			log.Printf("startProbe: probe failed: %v", err)
			return
		}
		select {
		case l.probeCh <- probeResult{seq: seq, text: text}:
		default:
		}
	}()
}

func (l *Loop) armDwell(seq uint64) {
	l.stopDwell()
	l.dwellTimer = l.deps.AfterFunc(l.dwell, func() {
		select {
		case l.dwellCh <- seq:
		default:
		}
	})
}

func (l *Loop) stopDwell() {
	if l.dwellTimer != nil {
		l.dwellTimer.Stop()
		l.dwellTimer = nil
	}
}

func (l *Loop) toIdle() {
	l.stopDwell()
	l.visionArmed = false
	l.rect = geom.Rect{}
	l.probedText = ""
	l.setMode(modeIdle, l.deps.Now().UnixMilli())
}

func (l *Loop) setMode(m mode, triggeredAt int64) {
	l.mode = m
	l.deps.Presenter.SetMode(overlay.ModeChange{
		Mode:              overlayMode(m),
		TriggeredAtMillis: triggeredAt,
		Source:            l.source,
	})
}

// overlayMode maps loop states onto the three overlay surfaces. A locked
// rectangle keeps the selecting surface until the gesture resolves.
func overlayMode(m mode) overlay.Mode {
	switch m {
	case modePrimed:
		return overlay.ModePrimed
	case modeSelecting, modeLocked:
		return overlay.ModeSelecting
	default:
		return overlay.ModeIdle
	}
}

func captureFailureMessage(err error) string {
	switch {
	case errors.Is(err, snapshot.ErrNoDisplays):
		return "Capture failed: no displays available"
	case errors.Is(err, crop.ErrSourceUnavailable):
		return "Capture failed: stored image unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return "Capture timed out"
	default:
		return "Capture failed"
	}
}
