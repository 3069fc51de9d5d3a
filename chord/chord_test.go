package chord

import (
	"errors"
	"testing"
	"time"
)

func mustBinding(t *testing.T, spec string) Binding {
	t.Helper()
	b, err := ParseBinding(spec)
	if err != nil {
		t.Fatalf("ParseBinding(%q) failed: %v", spec, err)
	}
	return b
}

func TestParseBinding(t *testing.T) {
	tests := []struct {
		input     string
		primary   string
		secondary string
		wantErr   bool
	}{
		{"ctrl+alt", "ctrl", "alt", false},
		{"Ctrl+Alt", "ctrl", "alt", false},
		{"shift+win", "shift", "win", false},
		{"CMD+Shift", "cmd", "shift", false},
		{" ctrl + alt ", "ctrl", "alt", false},
		{"ctrl", "", "", true},
		{"ctrl+alt+shift", "", "", true},
		{"ctrl+ctrl", "", "", true},
		{"ctrl+q", "", "", true},
		{"", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			b, err := ParseBinding(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseBinding(%q) succeeded, expected error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseBinding(%q) failed: %v", tt.input, err)
			}
			if b.Primary.Name != tt.primary || b.Secondary.Name != tt.secondary {
				t.Errorf("ParseBinding(%q) = (%q, %q), expected (%q, %q)",
					tt.input, b.Primary.Name, b.Secondary.Name, tt.primary, tt.secondary)
			}
			if len(b.Primary.Rawcodes) == 0 || len(b.Secondary.Rawcodes) == 0 {
				t.Errorf("ParseBinding(%q) produced empty rawcode groups", tt.input)
			}
		})
	}
}

func TestModifierRawcodes(t *testing.T) {
	tests := []struct {
		name     string
		expected []uint16
	}{
		{"ctrl", []uint16{162, 163}},
		{"alt", []uint16{164, 165}},
		{"shift", []uint16{160, 161}},
		{"win", []uint16{91, 92}},
		{"cmd", []uint16{91, 92}},
		{"super", []uint16{91, 92}},
		{"q", nil},
		{"unknown", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := modifierRawcodes(tt.name)
			if len(result) != len(tt.expected) {
				t.Fatalf("modifierRawcodes(%q) returned %d rawcodes, expected %d",
					tt.name, len(result), len(tt.expected))
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("modifierRawcodes(%q)[%d] = %d, expected %d",
						tt.name, i, result[i], tt.expected[i])
				}
			}
		})
	}
}

// The detector must emit exactly one event per change of the derived active
// state: no duplicate consecutive emissions for key repeats or redundant
// edges.
func TestDetectorDebounce(t *testing.T) {
	var got []HoldEvent
	d := NewDetector(mustBinding(t, "ctrl+alt"), func(ev HoldEvent) {
		got = append(got, ev)
	})

	steps := []struct {
		code uint16
		down bool
	}{
		{162, true},  // ctrl down: chord half held, no event
		{162, true},  // ctrl repeat: nothing
		{164, true},  // alt down: active -> true
		{164, true},  // alt repeat while active: nothing
		{162, true},  // ctrl repeat while active: nothing
		{162, false}, // ctrl up: active -> false
		{164, false}, // alt up: nothing, already inactive
		{163, true},  // right ctrl down
		{165, true},  // right alt down: active -> true (right variants)
		{165, false}, // right alt up: active -> false
	}
	for _, s := range steps {
		d.HandleKey(s.code, s.down)
	}

	want := []bool{true, false, true, false}
	if len(got) != len(want) {
		t.Fatalf("emitted %d events, expected %d: %+v", len(got), len(want), got)
	}
	for i, ev := range got {
		if ev.Active != want[i] {
			t.Errorf("event %d: Active=%v, expected %v", i, ev.Active, want[i])
		}
		if ev.Source != SourceHotkey {
			t.Errorf("event %d: Source=%v, expected SourceHotkey", i, ev.Source)
		}
	}
	for i := 1; i < len(got); i++ {
		if got[i].Active == got[i-1].Active {
			t.Errorf("events %d and %d both have Active=%v", i-1, i, got[i].Active)
		}
	}
}

func TestDetectorIgnoresKeysOutsideChord(t *testing.T) {
	var got []HoldEvent
	d := NewDetector(mustBinding(t, "ctrl+alt"), func(ev HoldEvent) {
		got = append(got, ev)
	})

	d.HandleKey(162, true) // ctrl down
	d.HandleKey(81, true)  // 'q' down: not part of the chord
	d.HandleKey(164, true) // alt down: active -> true
	d.HandleKey(81, false) // 'q' up: nothing
	d.HandleKey(65, true)  // 'a' down: nothing

	if len(got) != 1 {
		t.Fatalf("emitted %d events, expected 1: %+v", len(got), got)
	}
	if !got[0].Active {
		t.Errorf("expected activation event, got %+v", got[0])
	}
	if !d.Active() {
		t.Errorf("detector should still be active after unrelated key edges")
	}
}

func TestDetectorResetEmitsDeactivation(t *testing.T) {
	var got []HoldEvent
	d := NewDetector(mustBinding(t, "ctrl+alt"), func(ev HoldEvent) {
		got = append(got, ev)
	})

	d.HandleKey(162, true)
	d.HandleKey(164, true)
	if !d.Active() {
		t.Fatalf("chord should be active")
	}

	d.Reset()
	if d.Active() {
		t.Errorf("chord should be inactive after Reset")
	}
	d.Reset() // second reset is a no-op

	want := []bool{true, false}
	if len(got) != len(want) {
		t.Fatalf("emitted %d events, expected %d: %+v", len(got), len(want), got)
	}
	if got[1].Active {
		t.Errorf("Reset should emit a deactivation event")
	}
}

func TestDetectorTimestamp(t *testing.T) {
	fixed := time.UnixMilli(1723000000000)
	var got []HoldEvent
	d := NewDetector(mustBinding(t, "ctrl+alt"), func(ev HoldEvent) {
		got = append(got, ev)
	})
	d.now = func() time.Time { return fixed }

	d.HandleKey(162, true)
	d.HandleKey(164, true)

	if len(got) != 1 {
		t.Fatalf("emitted %d events, expected 1", len(got))
	}
	if got[0].TriggeredAtMillis != fixed.UnixMilli() {
		t.Errorf("TriggeredAtMillis = %d, expected %d", got[0].TriggeredAtMillis, fixed.UnixMilli())
	}
}

type fakeSource struct {
	ch      chan KeyEvent
	started int
	stopped int
	failing bool
}

func (f *fakeSource) Start() (<-chan KeyEvent, error) {
	if f.failing {
		return nil, ErrSourceUnavailable
	}
	f.started++
	if f.ch == nil {
		f.ch = make(chan KeyEvent, 16)
	}
	return f.ch, nil
}

func (f *fakeSource) Stop() {
	f.stopped++
	if f.ch != nil {
		close(f.ch)
		f.ch = nil
	}
}

func TestDetectorStartFeedsFromSource(t *testing.T) {
	events := make(chan HoldEvent, 4)
	d := NewDetector(mustBinding(t, "ctrl+alt"), func(ev HoldEvent) {
		events <- ev
	})

	src := &fakeSource{}
	if err := d.Start(src); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := d.Start(src); err != nil {
		t.Fatalf("second Start should be a no-op, got: %v", err)
	}
	if src.started != 1 {
		t.Errorf("source started %d times, expected 1", src.started)
	}

	src.ch <- KeyEvent{Code: 162, Down: true}
	src.ch <- KeyEvent{Code: 164, Down: true}

	select {
	case ev := <-events:
		if !ev.Active {
			t.Errorf("expected activation, got %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for activation event")
	}

	d.Stop()
	d.Stop() // idempotent
	if src.stopped != 1 {
		t.Errorf("source stopped %d times, expected 1", src.stopped)
	}

	// Stop while active emits the deactivation edge.
	select {
	case ev := <-events:
		if ev.Active {
			t.Errorf("expected deactivation on Stop, got %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for deactivation event")
	}
}

func TestDetectorStartSourceFailure(t *testing.T) {
	d := NewDetector(mustBinding(t, "ctrl+alt"), nil)
	err := d.Start(&fakeSource{failing: true})
	if err == nil {
		t.Fatalf("Start should fail when the source cannot start")
	}
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("error should wrap ErrSourceUnavailable, got: %v", err)
	}
	// A failed start leaves nothing attached; a later Start works.
	if err := d.Start(&fakeSource{}); err != nil {
		t.Errorf("Start after failed attempt should succeed, got: %v", err)
	}
	d.Stop()
}
