// Package replacer swaps already committed text for its corrected form with
// synthetic input while preserving the user's clipboard.
//
// A replacement runs through a fixed sequence of states:
//
//	Idle → Deleting → Settling → Pasting → Restoring → Idle
//
// Deleting emits one backspace per character to remove, Settling waits for
// the target application to process them, Pasting places the new text on
// the clipboard and sends the paste gesture, and Restoring puts the saved
// clipboard back once the application had time to read it.
package replacer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// State is the replacer's position in the replacement sequence.
type State int32

const (
	Idle State = iota
	Deleting
	Settling
	Pasting
	Restoring
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Deleting:
		return "deleting"
	case Settling:
		return "settling"
	case Pasting:
		return "pasting"
	case Restoring:
		return "restoring"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Injector emits synthetic key events into the focused application.
type Injector interface {
	Backspace() error
	Paste() error
}

// Clipboard is the system clipboard.
type Clipboard interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

// ErrBusy is returned when a replacement is already in flight.
var ErrBusy = errors.New("replacer: replacement in progress")

// EventEmissionError reports a synthetic event that could not be delivered.
// Deleted is the number of backspaces that reached the application.
type EventEmissionError struct {
	Op      string
	Deleted int
	Err     error
}

func (e *EventEmissionError) Error() string {
	return fmt.Sprintf("replacer: %s failed after %d deletions: %v", e.Op, e.Deleted, e.Err)
}

func (e *EventEmissionError) Unwrap() error { return e.Err }

// Delays are the pauses that keep synthetic events from interleaving.
type Delays struct {
	InterKey time.Duration
	Settle   time.Duration
	Restore  time.Duration
}

// DefaultDelays returns values that work for common desktop applications.
func DefaultDelays() Delays {
	return Delays{
		InterKey: 8 * time.Millisecond,
		Settle:   40 * time.Millisecond,
		Restore:  150 * time.Millisecond,
	}
}

// Request asks for Delete characters before the caret to be replaced by
// Text.
type Request struct {
	Delete int
	Text   string
}

// Result describes what a replacement did.
type Result struct {
	Deleted  int
	Pasted   bool
	Restored bool
	Duration time.Duration
	Err      error
}

// OK reports whether the replacement completed.
func (r Result) OK() bool { return r.Err == nil && r.Pasted }

// Options configures a Replacer.
type Options struct {
	Delays Delays
	Logger *slog.Logger

	// OnState is called on every state transition. Tests use it to check
	// the sequence.
	OnState func(State)
}

// Replacer executes replacements one at a time.
type Replacer struct {
	injector  Injector
	clipboard Clipboard
	delays    atomic.Pointer[Delays]
	state     atomic.Int32
	logger    *slog.Logger
	onState   func(State)
}

// New creates a Replacer.
func New(injector Injector, clipboard Clipboard, opts Options) *Replacer {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	r := &Replacer{
		injector:  injector,
		clipboard: clipboard,
		logger:    opts.Logger.With("component", "replacer"),
		onState:   opts.OnState,
	}
	d := opts.Delays
	r.delays.Store(&d)
	return r
}

// State returns the current state.
func (r *Replacer) State() State {
	return State(r.state.Load())
}

// Busy reports whether a replacement is in flight.
func (r *Replacer) Busy() bool {
	return r.State() != Idle
}

// SetDelays changes the delays for subsequent replacements.
func (r *Replacer) SetDelays(d Delays) {
	r.delays.Store(&d)
}

// Delays returns the current delays.
func (r *Replacer) Delays() Delays {
	return *r.delays.Load()
}

func (r *Replacer) transition(s State) {
	r.state.Store(int32(s))
	r.logger.Debug("state", "state", s.String())
	if r.onState != nil {
		r.onState(s)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Replace deletes req.Delete characters and pastes req.Text. It returns
// ErrBusy without side effects when another replacement is running. The
// clipboard is restored whenever it was captured, including on failure.
func (r *Replacer) Replace(ctx context.Context, req Request) (res Result) {
	if !r.state.CompareAndSwap(int32(Idle), int32(Deleting)) {
		return Result{Err: ErrBusy}
	}
	start := time.Now()
	delays := r.Delays()
	defer func() {
		res.Duration = time.Since(start)
		r.transition(Idle)
	}()

	if r.onState != nil {
		r.onState(Deleting)
	}
	saved, err := r.clipboard.ReadAll()
	if err != nil {
		res.Err = fmt.Errorf("replacer: read clipboard: %w", err)
		r.logger.Warn("replacement aborted before deleting", "error", err)
		return res
	}

	defer func() {
		r.transition(Restoring)
		if res.Pasted && req.Text != "" {
			// The application reads the clipboard asynchronously after the
			// paste gesture; restoring early would paste the old content.
			_ = sleep(context.WithoutCancel(ctx), delays.Restore)
		}
		if err := r.clipboard.WriteAll(saved); err != nil {
			r.logger.Error("restore clipboard", "error", err)
			if res.Err == nil {
				res.Err = fmt.Errorf("replacer: restore clipboard: %w", err)
			}
			return
		}
		res.Restored = true
	}()

	r.logger.Debug("deleting", "count", req.Delete)
	for i := 0; i < req.Delete; i++ {
		if i > 0 {
			if err := sleep(ctx, delays.InterKey); err != nil {
				res.Err = &EventEmissionError{Op: "backspace", Deleted: res.Deleted, Err: err}
				return res
			}
		}
		if err := r.injector.Backspace(); err != nil {
			res.Err = &EventEmissionError{Op: "backspace", Deleted: res.Deleted, Err: err}
			r.logger.Error("synthetic backspace failed", "deleted", res.Deleted, "error", err)
			return res
		}
		res.Deleted++
	}

	r.transition(Settling)
	if err := sleep(ctx, delays.Settle); err != nil {
		res.Err = &EventEmissionError{Op: "settle", Deleted: res.Deleted, Err: err}
		return res
	}

	r.transition(Pasting)
	if req.Text != "" {
		if err := r.clipboard.WriteAll(req.Text); err != nil {
			res.Err = &EventEmissionError{Op: "clipboard", Deleted: res.Deleted, Err: err}
			r.logger.Error("set clipboard for paste", "error", err)
			return res
		}
		if err := r.injector.Paste(); err != nil {
			res.Err = &EventEmissionError{Op: "paste", Deleted: res.Deleted, Err: err}
			r.logger.Error("synthetic paste failed", "deleted", res.Deleted, "error", err)
			return res
		}
	}
	res.Pasted = true
	return res
}
