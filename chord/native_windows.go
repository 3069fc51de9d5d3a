//go:build windows

package chord

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32              = windows.NewLazySystemDLL("user32.dll")
	setWindowsHookEx    = user32.NewProc("SetWindowsHookExW")
	callNextHookEx      = user32.NewProc("CallNextHookEx")
	unhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	peekMessage         = user32.NewProc("PeekMessageW")
)

const (
	whKeyboardLL = 13
	wmKeydown    = 0x0100
	wmKeyup      = 0x0101
	wmSyskeydown = 0x0104
	wmSyskeyup   = 0x0105
	pmRemove     = 0x0001
)

type kbdllhookstruct struct {
	vkCode      uint32
	scanCode    uint32
	flags       uint32
	time        uint32
	dwExtraInfo uintptr
}

type msg struct {
	hwnd    uintptr
	message uint32
	wParam  uintptr
	lParam  uintptr
	time    uint32
	pt      struct{ x, y int32 }
}

// NativeSource installs a low-level keyboard hook directly instead of going
// through the portable listener. Key edges only; it cannot feed a pointer
// sink.
type NativeSource struct {
	mu      sync.Mutex
	started bool
	out     chan KeyEvent
	hook    uintptr
	done    chan struct{}
}

// NewNativeSource returns the Windows low-level keyboard hook source.
func NewNativeSource() Source { return &NativeSource{} }

func (s *NativeSource) Start() (<-chan KeyEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return s.out, nil
	}

	s.out = make(chan KeyEvent, 16)
	s.done = make(chan struct{})

	errCh := make(chan error, 1)
	go s.runHook(errCh)
	if err := <-errCh; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	s.started = true
	return s.out, nil
}

func (s *NativeSource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.started = false
	close(s.done)
	if s.hook != 0 {
		unhookWindowsHookEx.Call(s.hook)
		s.hook = 0
	}
}

func (s *NativeSource) runHook(errCh chan<- error) {
	// LL hooks deliver on the thread that installed them, so the hook and
	// its message loop must share one locked OS thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(s.out)

	hookProc := func(nCode int32, wParam uintptr, lParam uintptr) uintptr {
		if nCode >= 0 {
			kb := (*kbdllhookstruct)(unsafe.Pointer(lParam))
			down := wParam == wmKeydown || wParam == wmSyskeydown
			up := wParam == wmKeyup || wParam == wmSyskeyup
			if down || up {
				// Never block inside the hook proc; a slow consumer loses
				// edges rather than stalling system input.
				select {
				case s.out <- KeyEvent{Code: uint16(kb.vkCode), Down: down}:
				default:
				}
			}
		}
		r, _, _ := callNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
		return r
	}

	hook, _, err := setWindowsHookEx.Call(
		whKeyboardLL,
		windows.NewCallback(hookProc),
		0,
		0,
	)
	if hook == 0 {
		errCh <- fmt.Errorf("SetWindowsHookEx failed: %v", err)
		return
	}
	s.hook = hook
	errCh <- nil

	var m msg
	for {
		select {
		case <-s.done:
			return
		default:
			r, _, _ := peekMessage.Call(
				uintptr(unsafe.Pointer(&m)),
				0,
				0,
				0,
				pmRemove,
			)
			if r != 0 {
				continue
			}
			runtime.Gosched()
		}
	}
}
