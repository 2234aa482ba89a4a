package replacer

import (
	"errors"
	"sync"
)

// MemoryClipboard is an in-process clipboard.
type MemoryClipboard struct {
	mu     sync.Mutex
	text   string
	writes int

	// ReadErr and WriteErr, when set, are returned by the next calls.
	ReadErr  error
	WriteErr error
}

// NewMemoryClipboard returns a clipboard holding text.
func NewMemoryClipboard(text string) *MemoryClipboard {
	return &MemoryClipboard{text: text}
}

// ReadAll implements Clipboard.
func (c *MemoryClipboard) ReadAll() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ReadErr != nil {
		return "", c.ReadErr
	}
	return c.text, nil
}

// WriteAll implements Clipboard.
func (c *MemoryClipboard) WriteAll(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.WriteErr != nil {
		return c.WriteErr
	}
	c.text = text
	c.writes++
	return nil
}

// Text returns the clipboard content.
func (c *MemoryClipboard) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

// Writes returns how many successful writes happened.
func (c *MemoryClipboard) Writes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes
}

// ErrInjectionFailed is the failure produced by Screen's fault switches.
var ErrInjectionFailed = errors.New("injection failed")

// Screen simulates a focused text field. Backspace removes the last
// character and Paste appends the clipboard, so a sequence of replacements
// can be checked against the visible text. It also serves dry runs, where
// nothing must reach the real desktop.
type Screen struct {
	mu        sync.Mutex
	text      []rune
	clipboard Clipboard

	backspaces int
	pastes     int

	// FailAfter makes the Backspace call after that many successful ones
	// fail. Zero or negative disables it.
	FailAfter int
	// FailPaste makes Paste fail.
	FailPaste bool

	// OnEvent is called after every successful synthetic event with "backspace"
	// or "paste". The monitor tests use it to feed echoes back.
	OnEvent func(op string)
}

// NewScreen creates a Screen whose Paste reads from clipboard.
func NewScreen(clipboard Clipboard) *Screen {
	return &Screen{clipboard: clipboard}
}

// Type appends user typed text.
func (s *Screen) Type(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text = append(s.text, []rune(text)...)
}

// Text returns the visible text.
func (s *Screen) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.text)
}

// Counts returns the number of backspaces and pastes received.
func (s *Screen) Counts() (backspaces, pastes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backspaces, s.pastes
}

// Backspace implements Injector.
func (s *Screen) Backspace() error {
	s.mu.Lock()
	if s.FailAfter > 0 && s.backspaces >= s.FailAfter {
		s.mu.Unlock()
		return ErrInjectionFailed
	}
	if n := len(s.text); n > 0 {
		s.text = s.text[:n-1]
	}
	s.backspaces++
	hook := s.OnEvent
	s.mu.Unlock()
	if hook != nil {
		hook("backspace")
	}
	return nil
}

// Paste implements Injector.
func (s *Screen) Paste() error {
	s.mu.Lock()
	if s.FailPaste {
		s.mu.Unlock()
		return ErrInjectionFailed
	}
	s.mu.Unlock()

	text, err := s.clipboard.ReadAll()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.text = append(s.text, []rune(text)...)
	s.pastes++
	hook := s.OnEvent
	s.mu.Unlock()
	if hook != nil {
		hook("paste")
	}
	return nil
}
