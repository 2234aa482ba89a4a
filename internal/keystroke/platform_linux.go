//go:build linux

package keystroke

import "fmt"

// newPlatformSource picks evdev when a keyboard device is readable and the
// IBus engine otherwise.
func newPlatformSource(opts Options) (Source, error) {
	switch opts.Kind {
	case KindEvdev:
		return NewEvdevSource(opts.EvdevLayout, opts.Buffer, opts.Logger), nil
	case KindIBus:
		return NewIBusSource(opts.Buffer, opts.Logger), nil
	case KindAuto:
		evdev := NewEvdevSource(opts.EvdevLayout, opts.Buffer, opts.Logger)
		ok, reason := evdev.Available()
		if ok {
			return evdev, nil
		}
		opts.Logger.Debug("evdev unavailable, using ibus", "reason", reason)
		return NewIBusSource(opts.Buffer, opts.Logger), nil
	}
	return nil, fmt.Errorf("%w: source %q not supported on linux", ErrNotAvailable, opts.Kind)
}
