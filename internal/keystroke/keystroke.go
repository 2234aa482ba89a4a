// Package keystroke delivers an ordered stream of key events from the host.
//
// Unlike a key counter, a layout corrector has to know which character the
// user produced, so every Source reports the resulting rune together with
// the special key and the modifier state.
//
// Platform support:
//   - Linux: IBus engine over D-Bus (layout-aware keysyms) or /dev/input
//     evdev (requires the input group; the OS layout must be configured).
//   - Windows: WH_KEYBOARD_LL hook with ToUnicodeEx against the foreground
//     window's keyboard layout.
//   - Elsewhere: a stub that reports ErrNotAvailable.
//
// ScriptedSource replays a fixed sequence and is used by tests and the CLI.
package keystroke

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"textswitcher/internal/layout"
)

// Source produces key events. Start returns the event channel; the channel
// is closed when the source stops or the context is cancelled.
type Source interface {
	Start(ctx context.Context) (<-chan Event, error)
	Stop() error

	// Available reports whether the source can run with the current
	// permissions, with a human readable explanation.
	Available() (bool, string)

	// Name identifies the source in logs ("ibus", "evdev", "hook", ...).
	Name() string
}

var (
	// ErrNotAvailable is returned when no key source exists on this platform.
	ErrNotAvailable = errors.New("keystroke: key event source not available")

	// ErrPermissionDenied is returned when the OS refuses access to input.
	ErrPermissionDenied = errors.New("keystroke: permission denied")

	// ErrAlreadyRunning is returned by Start on a running source.
	ErrAlreadyRunning = errors.New("keystroke: source already running")
)

// Source kinds accepted by Options.Kind.
const (
	KindAuto  = "auto"
	KindIBus  = "ibus"
	KindEvdev = "evdev"
	KindHook  = "hook"
)

// DefaultBuffer is the capacity of a source's event channel.
const DefaultBuffer = 256

// Options selects and configures the platform source.
type Options struct {
	Kind string

	// EvdevLayout is the layout the OS is assumed to use when decoding raw
	// scancodes. evdev sees key positions only.
	EvdevLayout layout.Layout

	Buffer int
	Logger *slog.Logger
}

// New creates the Source for the current platform.
func New(opts Options) (Source, error) {
	if opts.Kind == "" {
		opts.Kind = KindAuto
	}
	if opts.Buffer <= 0 {
		opts.Buffer = DefaultBuffer
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if !opts.EvdevLayout.Valid() {
		opts.EvdevLayout = layout.English
	}
	return newPlatformSource(opts)
}

// baseSource provides the running flag and a non-blocking event channel
// shared by the platform implementations.
type baseSource struct {
	mu      sync.RWMutex
	running bool
	ch      chan Event
	dropped atomic.Uint64
}

func (b *baseSource) open(size int) (chan Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return nil, ErrAlreadyRunning
	}
	if size <= 0 {
		size = DefaultBuffer
	}
	b.ch = make(chan Event, size)
	b.running = true
	return b.ch, nil
}

// emit delivers ev without blocking the OS callback; a full channel drops
// the event.
func (b *baseSource) emit(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.running {
		return
	}
	select {
	case b.ch <- ev:
	default:
		b.dropped.Add(1)
	}
}

func (b *baseSource) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return
	}
	b.running = false
	close(b.ch)
}

// IsRunning returns the running state.
func (b *baseSource) IsRunning() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.running
}

// Dropped returns the number of events lost because the consumer lagged.
func (b *baseSource) Dropped() uint64 {
	return b.dropped.Load()
}
