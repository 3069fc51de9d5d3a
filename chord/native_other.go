//go:build !windows

package chord

import "fmt"

// NewNativeSource is only functional on Windows; elsewhere it reports the
// source unavailable so callers fall back to the portable hook.
func NewNativeSource() Source { return unsupportedSource{} }

type unsupportedSource struct{}

func (unsupportedSource) Start() (<-chan KeyEvent, error) {
	return nil, fmt.Errorf("%w: native hook not supported on this platform", ErrSourceUnavailable)
}

func (unsupportedSource) Stop() {}
