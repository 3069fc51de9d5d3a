// Package chord monitors the global input source and detects the
// press-and-hold modifier chord that drives activation. Key edges stream in
// from a Source (portable hook or native), the Detector folds them into two
// held-key flags, and every transition of the derived active state is
// emitted as a HoldEvent. Long-press escalation is owned by the event loop,
// not this package.
package chord

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
)

// ErrSourceUnavailable reports that the global key listener could not start.
// Hold-to-activate degrades to a no-op when this happens.
var ErrSourceUnavailable = errors.New("input source unavailable")

// EventSource tags how an activation was produced.
type EventSource int

const (
	SourceHotkey EventSource = iota
	SourceUI
)

func (s EventSource) String() string {
	if s == SourceUI {
		return "ui"
	}
	return "hotkey"
}

// HoldEvent is emitted on every change of the chord's active state.
// Consumers never see two consecutive events with equal Active.
type HoldEvent struct {
	Active            bool
	TriggeredAtMillis int64
	Source            EventSource
}

// KeyEvent is one raw key edge from the global input source.
type KeyEvent struct {
	Code uint16
	Down bool
}

// Key is one modifier group of the chord. Rawcodes carries both the left
// and right variants of the modifier.
type Key struct {
	Name     string
	Rawcodes []uint16
}

func (k Key) matches(code uint16) bool {
	for _, rc := range k.Rawcodes {
		if rc == code {
			return true
		}
	}
	return false
}

// Binding is the two-modifier chord that drives activation.
type Binding struct {
	Primary   Key
	Secondary Key
}

// ParseBinding converts a binding string like "ctrl+alt" into a Binding.
// Exactly two distinct modifier names are required.
func ParseBinding(spec string) (Binding, error) {
	parts := strings.Split(strings.ToLower(spec), "+")
	var keys []Key
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		rawcodes := modifierRawcodes(part)
		if rawcodes == nil {
			return Binding{}, fmt.Errorf("unknown modifier %q in binding %q", part, spec)
		}
		keys = append(keys, Key{Name: part, Rawcodes: rawcodes})
	}
	if len(keys) != 2 {
		return Binding{}, fmt.Errorf("binding %q must name exactly two modifiers", spec)
	}
	if keys[0].Name == keys[1].Name {
		return Binding{}, fmt.Errorf("binding %q repeats modifier %q", spec, keys[0].Name)
	}
	return Binding{Primary: keys[0], Secondary: keys[1]}, nil
}

// modifierRawcodes maps a modifier name to its virtual key rawcodes,
// left and right variants.
func modifierRawcodes(name string) []uint16 {
	switch name {
	case "ctrl", "control":
		return []uint16{162, 163} // VK_LCONTROL, VK_RCONTROL
	case "alt", "option":
		return []uint16{164, 165} // VK_LMENU, VK_RMENU (MENU = Alt)
	case "shift":
		return []uint16{160, 161} // VK_LSHIFT, VK_RSHIFT
	case "win", "cmd", "super":
		return []uint16{91, 92} // VK_LWIN, VK_RWIN
	default:
		return nil
	}
}

// Detector tracks the two held-key flags and emits a HoldEvent whenever the
// derived active state changes. Redundant edges (key repeat while held) do
// not re-emit.
type Detector struct {
	mu        sync.Mutex
	binding   Binding
	primary   bool
	secondary bool
	active    bool
	src       Source
	sink      func(HoldEvent)
	now       func() time.Time
}

// NewDetector creates a detector for the given binding. sink is invoked on
// the caller's goroutine for direct HandleKey calls, or on the source's
// listener goroutine once attached.
func NewDetector(binding Binding, sink func(HoldEvent)) *Detector {
	return &Detector{binding: binding, sink: sink, now: time.Now}
}

// Start attaches a key source and consumes its edges until the source
// channel closes. Attaching twice is a no-op. A source that fails to start
// leaves the detector inert; the caller decides whether that is fatal.
func (d *Detector) Start(src Source) error {
	d.mu.Lock()
	if d.src != nil {
		d.mu.Unlock()
		return nil
	}
	events, err := src.Start()
	if err != nil {
		d.mu.Unlock()
		return fmt.Errorf("start key source: %w", err)
	}
	d.src = src
	d.mu.Unlock()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("chord: PANIC in key listener: %v", r)
			}
		}()
		for ev := range events {
			d.HandleKey(ev.Code, ev.Down)
		}
		log.Printf("chord: key event channel closed")
	}()
	return nil
}

// Stop detaches the source and clears held-key state. Safe to call multiple
// times.
func (d *Detector) Stop() {
	d.mu.Lock()
	src := d.src
	d.src = nil
	d.mu.Unlock()
	if src != nil {
		src.Stop()
	}
	d.Reset()
}

// HandleKey applies one raw key edge. Edges for keys outside the chord are
// ignored.
func (d *Detector) HandleKey(code uint16, down bool) {
	d.mu.Lock()
	matched := false
	if d.binding.Primary.matches(code) {
		d.primary = down
		matched = true
	}
	if d.binding.Secondary.matches(code) {
		d.secondary = down
		matched = true
	}
	if !matched {
		d.mu.Unlock()
		return
	}
	ev, emit := d.recomputeLocked()
	d.mu.Unlock()
	if emit {
		d.emit(ev)
	}
}

// Reset clears both held flags. A hook detached mid-hold never delivers the
// key-up, which would otherwise leave the chord stuck active. When the chord
// was active the deactivation edge is emitted, so consumers still observe
// strict alternation.
func (d *Detector) Reset() {
	d.mu.Lock()
	d.primary = false
	d.secondary = false
	ev, emit := d.recomputeLocked()
	d.mu.Unlock()
	if emit {
		d.emit(ev)
	}
}

// Active reports the current chord state.
func (d *Detector) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

func (d *Detector) recomputeLocked() (HoldEvent, bool) {
	next := d.primary && d.secondary
	if next == d.active {
		return HoldEvent{}, false
	}
	d.active = next
	return HoldEvent{
		Active:            next,
		TriggeredAtMillis: d.now().UnixMilli(),
		Source:            SourceHotkey,
	}, true
}

func (d *Detector) emit(ev HoldEvent) {
	if d.sink == nil {
		return
	}
	log.Printf("chord: active=%v source=%s", ev.Active, ev.Source)
	d.sink(ev)
}
