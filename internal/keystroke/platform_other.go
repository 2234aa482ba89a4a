//go:build !linux && !windows

package keystroke

import (
	"context"
	"fmt"
)

// StubSource is used on unsupported platforms.
type StubSource struct{}

func newPlatformSource(opts Options) (Source, error) {
	if opts.Kind != KindAuto {
		return nil, fmt.Errorf("%w: source %q", ErrNotAvailable, opts.Kind)
	}
	return StubSource{}, nil
}

// Name implements Source.
func (StubSource) Name() string { return "stub" }

// Available returns false on unsupported platforms.
func (StubSource) Available() (bool, string) {
	return false, "keyboard monitoring not implemented for this platform"
}

// Start returns ErrNotAvailable.
func (StubSource) Start(ctx context.Context) (<-chan Event, error) {
	return nil, ErrNotAvailable
}

// Stop is a no-op on unsupported platforms.
func (StubSource) Stop() error {
	return nil
}
