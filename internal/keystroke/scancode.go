package keystroke

import (
	"unicode"

	"textswitcher/internal/layout"
)

// Linux input event codes (linux/input-event-codes.h).
const (
	evKey = 0x01
	evRep = 0x14

	// Codes from BTN_MISC up are mouse and joystick buttons.
	btnMisc = 0x100

	keyRelease = 0
	keyPress   = 1
	keyRepeat  = 2
)

// Non-character key codes.
const (
	codeEsc        = 1
	codeBackspace  = 14
	codeTab        = 15
	codeEnter      = 28
	codeLeftCtrl   = 29
	codeLeftShift  = 42
	codeRightShift = 54
	codeLeftAlt    = 56
	codeCapsLock   = 58
	codeKPEnter    = 96
	codeRightCtrl  = 97
	codeRightAlt   = 100
	codeHome       = 102
	codeUp         = 103
	codePageUp     = 104
	codeLeft       = 105
	codeRight      = 106
	codeEnd        = 107
	codeDown       = 108
	codePageDown   = 109
	codeDelete     = 111
	codeLeftMeta   = 125
	codeRightMeta  = 126
)

// usKeys maps character key codes to their unshifted and shifted US QWERTY
// characters.
var usKeys = map[uint16][2]rune{
	2: {'1', '!'}, 3: {'2', '@'}, 4: {'3', '#'}, 5: {'4', '$'}, 6: {'5', '%'},
	7: {'6', '^'}, 8: {'7', '&'}, 9: {'8', '*'}, 10: {'9', '('}, 11: {'0', ')'},
	12: {'-', '_'}, 13: {'=', '+'},
	16: {'q', 'Q'}, 17: {'w', 'W'}, 18: {'e', 'E'}, 19: {'r', 'R'}, 20: {'t', 'T'},
	21: {'y', 'Y'}, 22: {'u', 'U'}, 23: {'i', 'I'}, 24: {'o', 'O'}, 25: {'p', 'P'},
	26: {'[', '{'}, 27: {']', '}'},
	30: {'a', 'A'}, 31: {'s', 'S'}, 32: {'d', 'D'}, 33: {'f', 'F'}, 34: {'g', 'G'},
	35: {'h', 'H'}, 36: {'j', 'J'}, 37: {'k', 'K'}, 38: {'l', 'L'},
	39: {';', ':'}, 40: {'\'', '"'}, 41: {'`', '~'}, 43: {'\\', '|'},
	44: {'z', 'Z'}, 45: {'x', 'X'}, 46: {'c', 'C'}, 47: {'v', 'V'}, 48: {'b', 'B'},
	49: {'n', 'N'}, 50: {'m', 'M'},
	51: {',', '<'}, 52: {'.', '>'}, 53: {'/', '?'},
	57: {' ', ' '},
}

var scancodeKeys = map[uint16]Key{
	codeEsc:        KeyEscape,
	codeBackspace:  KeyBackspace,
	codeTab:        KeyTab,
	codeEnter:      KeyEnter,
	codeKPEnter:    KeyEnter,
	codeLeftCtrl:   KeyControl,
	codeRightCtrl:  KeyControl,
	codeLeftShift:  KeyShift,
	codeRightShift: KeyShift,
	codeLeftAlt:    KeyAlt,
	codeRightAlt:   KeyAlt,
	codeLeftMeta:   KeyMeta,
	codeRightMeta:  KeyMeta,
	codeCapsLock:   KeyCapsLock,
	codeHome:       KeyHome,
	codeEnd:        KeyEnd,
	codeUp:         KeyUp,
	codeDown:       KeyDown,
	codeLeft:       KeyLeft,
	codeRight:      KeyRight,
	codePageUp:     KeyPageUp,
	codePageDown:   KeyPageDown,
	codeDelete:     KeyDelete,
}

// modifierState tracks held modifiers across evdev press/release events.
type modifierState struct {
	shift, ctrl, alt, meta int
	caps                   bool
}

func (m *modifierState) update(code uint16, value int32) {
	delta := 0
	switch value {
	case keyPress:
		delta = 1
	case keyRelease:
		delta = -1
	default:
		return
	}
	adjust := func(n *int) {
		*n += delta
		if *n < 0 {
			*n = 0
		}
	}
	switch code {
	case codeLeftShift, codeRightShift:
		adjust(&m.shift)
	case codeLeftCtrl, codeRightCtrl:
		adjust(&m.ctrl)
	case codeLeftAlt, codeRightAlt:
		adjust(&m.alt)
	case codeLeftMeta, codeRightMeta:
		adjust(&m.meta)
	case codeCapsLock:
		if value == keyPress {
			m.caps = !m.caps
		}
	}
}

func (m *modifierState) mods() Modifiers {
	var out Modifiers
	if m.shift > 0 {
		out |= ModShift
	}
	if m.ctrl > 0 {
		out |= ModControl
	}
	if m.alt > 0 {
		out |= ModAlt
	}
	if m.meta > 0 {
		out |= ModMeta
	}
	if m.caps {
		out |= ModCapsLock
	}
	return out
}

// decodeScancode turns a key code into an Event as if the OS layout were
// assumed. The second result is false for codes the source ignores.
func decodeScancode(code uint16, mods Modifiers, assumed layout.Layout) (Event, bool) {
	if code >= btnMisc {
		return Event{}, false
	}
	ev := Event{Modifiers: mods}
	if k, ok := scancodeKeys[code]; ok {
		ev.Key = k
		return ev, true
	}
	pair, ok := usKeys[code]
	if !ok {
		ev.Key = KeyOther
		return ev, true
	}
	shifted := mods.Has(ModShift)
	r := pair[0]
	if unicode.IsLetter(r) && mods.Has(ModCapsLock) {
		shifted = !shifted
	}
	if shifted {
		r = pair[1]
	}
	if assumed == layout.Russian {
		// Caps Lock applies to Russian letters on the punctuation keys too.
		if mods.Has(ModCapsLock) && !unicode.IsLetter(pair[0]) && unicode.IsLetter(layoutRune(pair[0], assumed)) {
			if shifted {
				r = pair[0]
			} else {
				r = pair[1]
			}
		}
		r = layoutRune(r, assumed)
	}
	ev.Char = r
	return ev, true
}

func layoutRune(r rune, l layout.Layout) rune {
	if l != layout.Russian {
		return r
	}
	out := []rune(layout.Convert(string(r), layout.English, layout.Russian))
	if len(out) != 1 {
		return r
	}
	return out[0]
}
