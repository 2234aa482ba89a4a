package keystroke

import (
	"context"
	"time"
	"unicode"
)

// ScriptedSource replays a fixed event sequence in order and closes its
// channel at the end.
type ScriptedSource struct {
	baseSource
	events []Event

	// Delay is slept between events. Zero replays as fast as the consumer
	// reads.
	Delay time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewScriptedSource returns a source that replays events.
func NewScriptedSource(events []Event) *ScriptedSource {
	return &ScriptedSource{events: events}
}

// Name implements Source.
func (s *ScriptedSource) Name() string { return "scripted" }

// Available implements Source.
func (s *ScriptedSource) Available() (bool, string) {
	return true, "scripted events"
}

// Start implements Source. Unlike the OS sources it blocks on a slow
// consumer instead of dropping events.
func (s *ScriptedSource) Start(ctx context.Context) (<-chan Event, error) {
	ch, err := s.open(1)
	if err != nil {
		return nil, err
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		defer s.close()
		for _, ev := range s.events {
			if s.Delay > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(s.Delay):
				}
			}
			select {
			case <-ctx.Done():
				return
			case ch <- ev:
			}
		}
	}()
	return ch, nil
}

// Stop implements Source.
func (s *ScriptedSource) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}
	return nil
}

// Script builds event sequences with a manual clock.
type Script struct {
	events []Event
	now    time.Time
	step   time.Duration
}

// NewScript starts a script at start; every event advances the clock by
// step.
func NewScript(start time.Time, step time.Duration) *Script {
	return &Script{now: start, step: step}
}

func (s *Script) add(ev Event) *Script {
	ev.Time = s.now
	s.events = append(s.events, ev)
	s.now = s.now.Add(s.step)
	return s
}

// Type appends one character event per rune. Upper-case letters carry
// ModShift. '\n', '\t' and '\b' become Enter, Tab and Backspace.
func (s *Script) Type(text string) *Script {
	for _, r := range text {
		switch r {
		case '\n':
			s.add(Event{Key: KeyEnter})
		case '\t':
			s.add(Event{Key: KeyTab})
		case '\b':
			s.add(Event{Key: KeyBackspace})
		default:
			var mods Modifiers
			if unicode.IsUpper(r) {
				mods = ModShift
			}
			s.add(Event{Char: r, Modifiers: mods})
		}
	}
	return s
}

// Press appends a special key with modifiers.
func (s *Script) Press(k Key, mods Modifiers) *Script {
	return s.add(Event{Key: k, Modifiers: mods})
}

// Chord appends a character typed with command modifiers, such as Ctrl+Z.
func (s *Script) Chord(r rune, mods Modifiers) *Script {
	return s.add(Event{Char: r, Modifiers: mods})
}

// Tap appends a press of a modifier key on its own.
func (s *Script) Tap(k Key) *Script {
	return s.add(Event{Key: k})
}

// Repeat appends an auto-repeat press of k.
func (s *Script) Repeat(k Key) *Script {
	return s.add(Event{Key: k, Repeat: true})
}

// Injected appends ev marked as synthetic.
func (s *Script) Injected(ev Event) *Script {
	ev.Injected = true
	return s.add(ev)
}

// Wait advances the clock without an event.
func (s *Script) Wait(d time.Duration) *Script {
	s.now = s.now.Add(d)
	return s
}

// Now returns the script clock.
func (s *Script) Now() time.Time { return s.now }

// Events returns a copy of the sequence built so far.
func (s *Script) Events() []Event {
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// Source wraps the sequence in a ScriptedSource.
func (s *Script) Source() *ScriptedSource {
	return NewScriptedSource(s.Events())
}
