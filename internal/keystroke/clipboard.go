package keystroke

import (
	"sync"

	"github.com/atotto/clipboard"
)

// clipboard.Primary is package state in atotto/clipboard on X11 systems,
// so every access goes through this lock.
var clipMu sync.Mutex

// SystemClipboard reads and writes the regular system clipboard.
type SystemClipboard struct{}

// ReadAll returns the clipboard text.
func (SystemClipboard) ReadAll() (string, error) {
	clipMu.Lock()
	defer clipMu.Unlock()
	selectRegular()
	return clipboard.ReadAll()
}

// WriteAll replaces the clipboard text.
func (SystemClipboard) WriteAll(text string) error {
	clipMu.Lock()
	defer clipMu.Unlock()
	selectRegular()
	return clipboard.WriteAll(text)
}

// PrimarySelection reports the X11/Wayland primary selection, i.e. the text
// currently highlighted by the user. Platforms without a primary selection
// never report one.
type PrimarySelection struct {
	mu   sync.Mutex
	last string
	read func() (string, error)
}

// NewPrimarySelection creates a selection provider backed by the system.
func NewPrimarySelection() *PrimarySelection {
	return &PrimarySelection{read: readPrimary}
}

// Selection returns the selected text if it changed since the previous
// query. A selection that was already seen is stale: the user has moved on
// and only the highlight in some other window remains.
func (p *PrimarySelection) Selection() (string, bool) {
	text, err := p.read()
	if err != nil || text == "" {
		return "", false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if text == p.last {
		return "", false
	}
	p.last = text
	return text, true
}

// Prime records the current selection as seen without reporting it.
func (p *PrimarySelection) Prime() {
	text, err := p.read()
	if err != nil {
		return
	}
	p.mu.Lock()
	p.last = text
	p.mu.Unlock()
}
