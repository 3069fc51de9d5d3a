package chord

import (
	"log"
	"sync"

	gohook "github.com/robotn/gohook"
)

// Source delivers raw key edges from a global listener. Start and Stop are
// idempotent; a second Start returns the same channel.
type Source interface {
	Start() (<-chan KeyEvent, error)
	Stop()
}

// PointerKind discriminates raw global pointer transitions.
type PointerKind int

const (
	PointerDown PointerKind = iota
	PointerMove
	PointerUp
)

// PointerEdge is one raw global mouse transition in logical screen
// coordinates. The hook source forwards these to an optional sink so the
// overlay boundary can track drags without a second OS hook.
type PointerEdge struct {
	Kind PointerKind
	X    float64
	Y    float64
}

// HookSource wraps the portable gohook listener. The process may hold only
// one gohook stream, so this source fans a single stream out into key edges
// (for the detector) and pointer edges (for the optional pointer sink).
type HookSource struct {
	mu          sync.Mutex
	started     bool
	out         chan KeyEvent
	pointerSink func(PointerEdge)
}

func NewHookSource() *HookSource { return &HookSource{} }

// SetPointerSink installs a callback for global mouse edges. Must be called
// before Start.
func (s *HookSource) SetPointerSink(sink func(PointerEdge)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pointerSink = sink
}

func (s *HookSource) Start() (<-chan KeyEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return s.out, nil
	}

	raw := gohook.Start()
	if raw == nil {
		return nil, ErrSourceUnavailable
	}
	log.Printf("chord: gohook listener started")

	out := make(chan KeyEvent, 16)
	sink := s.pointerSink
	go func() {
		defer close(out)
		for ev := range raw {
			switch ev.Kind {
			case gohook.KeyDown, gohook.KeyHold:
				out <- KeyEvent{Code: ev.Rawcode, Down: true}
			case gohook.KeyUp:
				out <- KeyEvent{Code: ev.Rawcode, Down: false}
			case gohook.MouseDown:
				if sink != nil {
					sink(PointerEdge{Kind: PointerDown, X: float64(ev.X), Y: float64(ev.Y)})
				}
			case gohook.MouseMove, gohook.MouseDrag:
				if sink != nil {
					sink(PointerEdge{Kind: PointerMove, X: float64(ev.X), Y: float64(ev.Y)})
				}
			case gohook.MouseUp:
				if sink != nil {
					sink(PointerEdge{Kind: PointerUp, X: float64(ev.X), Y: float64(ev.Y)})
				}
			}
		}
		log.Printf("chord: gohook stream closed")
	}()

	s.started = true
	s.out = out
	return out, nil
}

func (s *HookSource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.started = false
	gohook.End()
}
