package keystroke

// X11 keysyms as delivered by IBus ProcessKeyEvent.
const (
	xkBackSpace  = 0xff08
	xkTab        = 0xff09
	xkReturn     = 0xff0d
	xkEscape     = 0xff1b
	xkHome       = 0xff50
	xkLeft       = 0xff51
	xkUp         = 0xff52
	xkRight      = 0xff53
	xkDown       = 0xff54
	xkPageUp     = 0xff55
	xkPageDown   = 0xff56
	xkEnd        = 0xff57
	xkKPEnter    = 0xff8d
	xkShiftL     = 0xffe1
	xkShiftR     = 0xffe2
	xkControlL   = 0xffe3
	xkControlR   = 0xffe4
	xkCapsLock   = 0xffe5
	xkMetaL      = 0xffe7
	xkMetaR      = 0xffe8
	xkAltL       = 0xffe9
	xkAltR       = 0xffea
	xkSuperL     = 0xffeb
	xkSuperR     = 0xffec
	xkLevel3     = 0xfe03
	xkDelete     = 0xffff
	xkNumeroSign = 0x6b0
	xkCyrIOLower = 0x6a3
	xkCyrIOUpper = 0x6b3
)

// Cyrillic keysyms 0x6c0..0x6df in keysym order (lower case); 0x6e0..0x6ff
// repeat the same letters in upper case.
var cyrillicKeysyms = []rune("юабцдефгхийклмнопярстужвьызшэщчъ")

// IBus key event state masks.
const (
	ibusShiftMask   uint32 = 1 << 0
	ibusLockMask    uint32 = 1 << 1
	ibusControlMask uint32 = 1 << 2
	ibusMod1Mask    uint32 = 1 << 3
	ibusMod4Mask    uint32 = 1 << 6
	ibusReleaseMask uint32 = 1 << 30
)

// keyvalToRune converts an X11 keysym to the character it produces, or 0.
func keyvalToRune(keyval uint32) rune {
	switch {
	case keyval >= 0x20 && keyval <= 0x7e:
		return rune(keyval)
	case keyval >= 0xa0 && keyval <= 0xff:
		return rune(keyval)
	case keyval >= 0x01000000 && keyval <= 0x0110ffff:
		return rune(keyval - 0x01000000)
	case keyval >= 0x6c0 && keyval <= 0x6df:
		return cyrillicKeysyms[keyval-0x6c0]
	case keyval >= 0x6e0 && keyval <= 0x6ff:
		return upperCyrillic(cyrillicKeysyms[keyval-0x6e0])
	case keyval == xkCyrIOLower:
		return 'ё'
	case keyval == xkCyrIOUpper:
		return 'Ё'
	case keyval == xkNumeroSign:
		return '№'
	}
	return 0
}

func upperCyrillic(r rune) rune {
	if r >= 'а' && r <= 'я' {
		return r - 'а' + 'А'
	}
	return r
}

// keyvalToKey classifies keysyms that do not produce characters.
func keyvalToKey(keyval uint32) Key {
	switch keyval {
	case xkBackSpace:
		return KeyBackspace
	case xkTab:
		return KeyTab
	case xkReturn, xkKPEnter:
		return KeyEnter
	case xkEscape:
		return KeyEscape
	case xkDelete:
		return KeyDelete
	case xkHome:
		return KeyHome
	case xkEnd:
		return KeyEnd
	case xkLeft:
		return KeyLeft
	case xkRight:
		return KeyRight
	case xkUp:
		return KeyUp
	case xkDown:
		return KeyDown
	case xkPageUp:
		return KeyPageUp
	case xkPageDown:
		return KeyPageDown
	case xkShiftL, xkShiftR:
		return KeyShift
	case xkControlL, xkControlR:
		return KeyControl
	case xkAltL, xkAltR, xkLevel3:
		return KeyAlt
	case xkMetaL, xkMetaR, xkSuperL, xkSuperR:
		return KeyMeta
	case xkCapsLock:
		return KeyCapsLock
	}
	return KeyOther
}

// ibusModifiers converts an IBus state mask.
func ibusModifiers(state uint32) Modifiers {
	var m Modifiers
	if state&ibusShiftMask != 0 {
		m |= ModShift
	}
	if state&ibusLockMask != 0 {
		m |= ModCapsLock
	}
	if state&ibusControlMask != 0 {
		m |= ModControl
	}
	if state&ibusMod1Mask != 0 {
		m |= ModAlt
	}
	if state&ibusMod4Mask != 0 {
		m |= ModMeta
	}
	return m
}

// decodeKeysym builds an Event from an IBus key press.
func decodeKeysym(keyval, state uint32) Event {
	ev := Event{Modifiers: ibusModifiers(state)}
	if r := keyvalToRune(keyval); r != 0 {
		ev.Char = r
		return ev
	}
	ev.Key = keyvalToKey(keyval)
	return ev
}
