package keystroke

import (
	"fmt"
	"strings"
	"time"
)

// Key identifies a non-character key. Character keys use KeyNone and carry
// the produced rune in Event.Char.
type Key uint8

const (
	KeyNone Key = iota
	KeyBackspace
	KeyEnter
	KeyTab
	KeyEscape
	KeyDelete
	KeyLeft
	KeyRight
	KeyUp
	KeyDown
	KeyHome
	KeyEnd
	KeyPageUp
	KeyPageDown
	KeyShift
	KeyControl
	KeyAlt
	KeyMeta
	KeyCapsLock

	// KeyFocus is synthesized when input focus moves to another field.
	KeyFocus

	// KeyOther is any key with no character and no dedicated constant
	// (function keys, media keys).
	KeyOther
)

var keyNames = [...]string{
	KeyNone:      "none",
	KeyBackspace: "backspace",
	KeyEnter:     "enter",
	KeyTab:       "tab",
	KeyEscape:    "escape",
	KeyDelete:    "delete",
	KeyLeft:      "left",
	KeyRight:     "right",
	KeyUp:        "up",
	KeyDown:      "down",
	KeyHome:      "home",
	KeyEnd:       "end",
	KeyPageUp:    "pageup",
	KeyPageDown:  "pagedown",
	KeyShift:     "shift",
	KeyControl:   "control",
	KeyAlt:       "alt",
	KeyMeta:      "meta",
	KeyCapsLock:  "capslock",
	KeyFocus:     "focus",
	KeyOther:     "other",
}

func (k Key) String() string {
	if int(k) < len(keyNames) {
		return keyNames[k]
	}
	return fmt.Sprintf("key(%d)", uint8(k))
}

// IsModifier reports whether k is a modifier key.
func (k Key) IsModifier() bool {
	switch k {
	case KeyShift, KeyControl, KeyAlt, KeyMeta, KeyCapsLock:
		return true
	}
	return false
}

// IsNavigation reports whether k moves the caret.
func (k Key) IsNavigation() bool {
	switch k {
	case KeyLeft, KeyRight, KeyUp, KeyDown, KeyHome, KeyEnd, KeyPageUp, KeyPageDown:
		return true
	}
	return false
}

// ParseTrigger maps a trigger name from configuration to a modifier key.
func ParseTrigger(s string) (Key, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "shift", "":
		return KeyShift, true
	case "ctrl", "control":
		return KeyControl, true
	case "alt", "option":
		return KeyAlt, true
	case "meta", "cmd", "command", "super", "win":
		return KeyMeta, true
	}
	return KeyNone, false
}

// Modifiers is the set of modifiers held when a key was pressed.
type Modifiers uint8

const (
	ModShift Modifiers = 1 << iota
	ModControl
	ModAlt
	ModMeta
	ModCapsLock
)

// Has reports whether every modifier in m2 is set.
func (m Modifiers) Has(m2 Modifiers) bool {
	return m&m2 == m2
}

// Chord reports whether a command modifier is held. Shift and Caps Lock only
// change the produced character and do not count.
func (m Modifiers) Chord() bool {
	return m&(ModControl|ModAlt|ModMeta) != 0
}

func (m Modifiers) String() string {
	var parts []string
	for _, p := range []struct {
		bit  Modifiers
		name string
	}{{ModControl, "ctrl"}, {ModAlt, "alt"}, {ModMeta, "meta"}, {ModShift, "shift"}, {ModCapsLock, "caps"}} {
		if m.Has(p.bit) {
			parts = append(parts, p.name)
		}
	}
	return strings.Join(parts, "+")
}

// Event is one key press. Releases are not reported.
type Event struct {
	// Char is the character the key produced in the active layout, or 0.
	Char      rune
	Key       Key
	Modifiers Modifiers
	Time      time.Time

	// Repeat is set for auto-repeat presses of a held key.
	Repeat bool

	// Injected is set when the OS marks the event as synthetic.
	Injected bool
}

// IsChar reports whether the event produced a printable character.
func (e Event) IsChar() bool {
	return e.Key == KeyNone && e.Char != 0
}

func (e Event) String() string {
	var b strings.Builder
	if mods := e.Modifiers.String(); mods != "" {
		b.WriteString(mods)
		b.WriteByte('+')
	}
	if e.IsChar() {
		fmt.Fprintf(&b, "%q", e.Char)
	} else {
		b.WriteString(e.Key.String())
	}
	if e.Repeat {
		b.WriteString(" (repeat)")
	}
	if e.Injected {
		b.WriteString(" (injected)")
	}
	return b.String()
}
