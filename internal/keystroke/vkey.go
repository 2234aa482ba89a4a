package keystroke

// Windows virtual-key codes.
const (
	vkBack     = 0x08
	vkTab      = 0x09
	vkReturn   = 0x0D
	vkShift    = 0x10
	vkControl  = 0x11
	vkMenu     = 0x12
	vkCapital  = 0x14
	vkEscape   = 0x1B
	vkPrior    = 0x21
	vkNext     = 0x22
	vkEnd      = 0x23
	vkHome     = 0x24
	vkLeft     = 0x25
	vkUp       = 0x26
	vkRight    = 0x27
	vkDown     = 0x28
	vkDelete   = 0x2E
	vkLWin     = 0x5B
	vkRWin     = 0x5C
	vkLShift   = 0xA0
	vkRShift   = 0xA1
	vkLControl = 0xA2
	vkRControl = 0xA3
	vkLMenu    = 0xA4
	vkRMenu    = 0xA5
)

var vkKeys = map[uint32]Key{
	vkBack:     KeyBackspace,
	vkTab:      KeyTab,
	vkReturn:   KeyEnter,
	vkEscape:   KeyEscape,
	vkPrior:    KeyPageUp,
	vkNext:     KeyPageDown,
	vkEnd:      KeyEnd,
	vkHome:     KeyHome,
	vkLeft:     KeyLeft,
	vkUp:       KeyUp,
	vkRight:    KeyRight,
	vkDown:     KeyDown,
	vkDelete:   KeyDelete,
	vkShift:    KeyShift,
	vkLShift:   KeyShift,
	vkRShift:   KeyShift,
	vkControl:  KeyControl,
	vkLControl: KeyControl,
	vkRControl: KeyControl,
	vkMenu:     KeyAlt,
	vkLMenu:    KeyAlt,
	vkRMenu:    KeyAlt,
	vkLWin:     KeyMeta,
	vkRWin:     KeyMeta,
	vkCapital:  KeyCapsLock,
}

// vkModifiers tracks held modifiers by virtual key.
type vkModifiers struct {
	held map[uint32]bool
	caps bool
}

func (v *vkModifiers) press(vk uint32) {
	if v.held == nil {
		v.held = make(map[uint32]bool)
	}
	if vk == vkCapital && !v.held[vk] {
		v.caps = !v.caps
	}
	v.held[vk] = true
}

func (v *vkModifiers) release(vk uint32) {
	delete(v.held, vk)
}

func (v *vkModifiers) mods() Modifiers {
	var m Modifiers
	if v.held[vkShift] || v.held[vkLShift] || v.held[vkRShift] {
		m |= ModShift
	}
	if v.held[vkControl] || v.held[vkLControl] || v.held[vkRControl] {
		m |= ModControl
	}
	if v.held[vkMenu] || v.held[vkLMenu] || v.held[vkRMenu] {
		m |= ModAlt
	}
	if v.held[vkLWin] || v.held[vkRWin] {
		m |= ModMeta
	}
	if v.caps {
		m |= ModCapsLock
	}
	return m
}

// keyState fills a GetKeyboardState style array for ToUnicodeEx. Control
// and Alt are left out so the translation yields the printable character.
func (v *vkModifiers) keyState(state *[256]byte) {
	m := v.mods()
	if m.Has(ModShift) {
		state[vkShift] = 0x80
	}
	if m.Has(ModCapsLock) {
		state[vkCapital] = 0x01
	}
}

// repeatTracker reports whether a press is an auto-repeat of a held key.
type repeatTracker map[uint32]bool

func (r repeatTracker) press(vk uint32) bool {
	repeat := r[vk]
	r[vk] = true
	return repeat
}

func (r repeatTracker) release(vk uint32) {
	delete(r, vk)
}
