package keystroke

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textswitcher/internal/layout"
)

// =============================================================================
// Tests for the event model
// =============================================================================

func TestModifiersChord(t *testing.T) {
	assert.False(t, ModShift.Chord())
	assert.False(t, (ModShift | ModCapsLock).Chord())
	assert.True(t, ModControl.Chord())
	assert.True(t, (ModShift | ModMeta).Chord())
	assert.Equal(t, "ctrl+shift", (ModShift | ModControl).String())
}

func TestKeyClassification(t *testing.T) {
	for _, k := range []Key{KeyShift, KeyControl, KeyAlt, KeyMeta, KeyCapsLock} {
		if !k.IsModifier() {
			t.Errorf("%s should be a modifier", k)
		}
	}
	for _, k := range []Key{KeyLeft, KeyHome, KeyPageDown} {
		if !k.IsNavigation() {
			t.Errorf("%s should be navigation", k)
		}
	}
	if KeyBackspace.IsModifier() || KeyBackspace.IsNavigation() {
		t.Error("backspace is neither modifier nor navigation")
	}
}

func TestParseTrigger(t *testing.T) {
	k, ok := ParseTrigger("Shift")
	require.True(t, ok)
	assert.Equal(t, KeyShift, k)

	k, ok = ParseTrigger("cmd")
	require.True(t, ok)
	assert.Equal(t, KeyMeta, k)

	_, ok = ParseTrigger("hyper")
	assert.False(t, ok)
}

func TestEventString(t *testing.T) {
	ev := Event{Char: 'z', Modifiers: ModControl}
	assert.Equal(t, "ctrl+'z'", ev.String())
	assert.True(t, ev.IsChar())

	ev = Event{Key: KeyShift, Repeat: true}
	assert.Equal(t, "shift (repeat)", ev.String())
	assert.False(t, ev.IsChar())
}

// =============================================================================
// Tests for keysym decoding (IBus)
// =============================================================================

func TestKeyvalToRune(t *testing.T) {
	tests := []struct {
		keyval uint32
		want   rune
	}{
		{'a', 'a'},
		{'Z', 'Z'},
		{0x20, ' '},
		{0xe9, 'é'},
		{0x6c1, 'а'},
		{0x6c0, 'ю'},
		{0x6df, 'ъ'},
		{0x6e1, 'А'},
		{0x6ff, 'Ъ'},
		{0x6ca, 'й'},
		{0x6a3, 'ё'},
		{0x6b3, 'Ё'},
		{0x6b0, '№'},
		{0x01000416, 'Ж'},
		{xkBackSpace, 0},
		{xkShiftL, 0},
	}
	for _, tt := range tests {
		if got := keyvalToRune(tt.keyval); got != tt.want {
			t.Errorf("keyvalToRune(%#x) = %q, want %q", tt.keyval, got, tt.want)
		}
	}
}

func TestCyrillicKeysymTableCoversAlphabet(t *testing.T) {
	seen := make(map[rune]bool)
	for _, r := range cyrillicKeysyms {
		seen[r] = true
	}
	for r := 'а'; r <= 'я'; r++ {
		assert.True(t, seen[r], "missing %q", r)
	}
	assert.Len(t, cyrillicKeysyms, 32)
}

func TestDecodeKeysym(t *testing.T) {
	ev := decodeKeysym(xkBackSpace, 0)
	assert.Equal(t, KeyBackspace, ev.Key)

	ev = decodeKeysym(xkShiftL, ibusShiftMask)
	assert.Equal(t, KeyShift, ev.Key)
	assert.True(t, ev.Modifiers.Has(ModShift))

	ev = decodeKeysym('z', ibusControlMask)
	assert.Equal(t, 'z', ev.Char)
	assert.True(t, ev.Modifiers.Chord())

	ev = decodeKeysym(0xffbe, 0) // F1
	assert.Equal(t, KeyOther, ev.Key)
}

// =============================================================================
// Tests for scancode decoding (evdev)
// =============================================================================

func TestDecodeScancodeEnglish(t *testing.T) {
	ev, ok := decodeScancode(16, 0, layout.English)
	require.True(t, ok)
	assert.Equal(t, 'q', ev.Char)

	ev, _ = decodeScancode(16, ModShift, layout.English)
	assert.Equal(t, 'Q', ev.Char)

	ev, _ = decodeScancode(16, ModCapsLock, layout.English)
	assert.Equal(t, 'Q', ev.Char)

	ev, _ = decodeScancode(16, ModCapsLock|ModShift, layout.English)
	assert.Equal(t, 'q', ev.Char)

	ev, _ = decodeScancode(3, ModShift, layout.English)
	assert.Equal(t, '@', ev.Char)

	ev, _ = decodeScancode(codeBackspace, 0, layout.English)
	assert.Equal(t, KeyBackspace, ev.Key)

	_, ok = decodeScancode(0x110, 0, layout.English) // BTN_LEFT
	assert.False(t, ok)
}

func TestDecodeScancodeRussian(t *testing.T) {
	ev, _ := decodeScancode(16, 0, layout.Russian)
	assert.Equal(t, 'й', ev.Char)

	ev, _ = decodeScancode(26, 0, layout.Russian) // '[' key
	assert.Equal(t, 'х', ev.Char)

	ev, _ = decodeScancode(26, ModCapsLock, layout.Russian)
	assert.Equal(t, 'Х', ev.Char)

	ev, _ = decodeScancode(53, 0, layout.Russian) // '/' key
	assert.Equal(t, '.', ev.Char)

	ev, _ = decodeScancode(3, ModShift, layout.Russian)
	assert.Equal(t, '"', ev.Char)

	ev, _ = decodeScancode(57, 0, layout.Russian)
	assert.Equal(t, ' ', ev.Char)
}

func TestModifierStateTracking(t *testing.T) {
	var s modifierState
	s.update(codeLeftShift, keyPress)
	assert.Equal(t, ModShift, s.mods())
	s.update(codeLeftShift, keyRepeat)
	s.update(codeLeftShift, keyRelease)
	assert.Equal(t, Modifiers(0), s.mods())

	s.update(codeCapsLock, keyPress)
	s.update(codeCapsLock, keyRelease)
	assert.Equal(t, ModCapsLock, s.mods())

	// Stray releases never go negative.
	s.update(codeLeftCtrl, keyRelease)
	s.update(codeLeftCtrl, keyPress)
	assert.True(t, s.mods().Has(ModControl))
}

// =============================================================================
// Tests for Windows virtual-key tracking
// =============================================================================

func TestVKModifiers(t *testing.T) {
	var v vkModifiers
	v.press(vkLShift)
	v.press(vkLControl)
	assert.Equal(t, ModShift|ModControl, v.mods())

	var state [256]byte
	v.keyState(&state)
	assert.Equal(t, byte(0x80), state[vkShift])
	assert.Equal(t, byte(0), state[vkControl])

	v.release(vkLShift)
	v.release(vkLControl)
	v.press(vkCapital)
	v.press(vkCapital) // auto-repeat while held does not toggle again
	v.release(vkCapital)
	assert.Equal(t, ModCapsLock, v.mods())
}

func TestRepeatTracker(t *testing.T) {
	r := repeatTracker{}
	assert.False(t, r.press(vkLShift))
	assert.True(t, r.press(vkLShift))
	r.release(vkLShift)
	assert.False(t, r.press(vkLShift))
}

// =============================================================================
// Tests for ScriptedSource
// =============================================================================

func TestScriptBuilder(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	events := NewScript(start, 10*time.Millisecond).
		Type("Hi").
		Tap(KeyShift).
		Wait(time.Second).
		Chord('z', ModControl).
		Type("\b\n").
		Events()

	require.Len(t, events, 6)
	assert.Equal(t, 'H', events[0].Char)
	assert.Equal(t, ModShift, events[0].Modifiers)
	assert.Equal(t, start, events[0].Time)
	assert.Equal(t, KeyShift, events[2].Key)
	assert.Equal(t, start.Add(20*time.Millisecond), events[2].Time)
	assert.Equal(t, start.Add(1030*time.Millisecond), events[3].Time)
	assert.Equal(t, KeyBackspace, events[4].Key)
	assert.Equal(t, KeyEnter, events[5].Key)
}

func TestScriptedSourceReplaysInOrder(t *testing.T) {
	src := NewScript(time.Now(), time.Millisecond).Type("abc").Source()

	ch, err := src.Start(context.Background())
	require.NoError(t, err)

	var got []rune
	for ev := range ch {
		got = append(got, ev.Char)
	}
	assert.Equal(t, []rune("abc"), got)
	require.NoError(t, src.Stop())
	assert.False(t, src.IsRunning())
}

func TestScriptedSourceAlreadyRunning(t *testing.T) {
	src := NewScriptedSource(NewScript(time.Now(), 0).Type("xyz").Events())
	_, err := src.Start(context.Background())
	require.NoError(t, err)
	defer src.Stop()

	_, err = src.Start(context.Background())
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestScriptedSourceStopsOnCancel(t *testing.T) {
	src := NewScriptedSource(NewScript(time.Now(), 0).Type("abcdef").Events())
	src.Delay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := src.Start(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should close without delivering")
	case <-time.After(2 * time.Second):
		t.Fatal("source did not stop")
	}
}

// =============================================================================
// Tests for baseSource
// =============================================================================

func TestBaseSourceDropsWhenFull(t *testing.T) {
	var b baseSource
	ch, err := b.open(2)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		b.emit(Event{Char: 'a'})
	}
	assert.Len(t, ch, 2)
	assert.Equal(t, uint64(3), b.Dropped())

	b.close()
	b.close()
	b.emit(Event{Char: 'b'})
	assert.False(t, b.IsRunning())
}

func TestBaseSourceConcurrentEmit(t *testing.T) {
	var b baseSource
	ch, err := b.open(1000)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				b.emit(Event{Char: 'x'})
			}
		}()
	}
	wg.Wait()
	assert.Len(t, ch, 500)
}

// =============================================================================
// Tests for PrimarySelection
// =============================================================================

func TestPrimarySelectionReportsChangesOnly(t *testing.T) {
	current := "ghbdtn"
	p := &PrimarySelection{read: func() (string, error) { return current, nil }}

	text, ok := p.Selection()
	require.True(t, ok)
	assert.Equal(t, "ghbdtn", text)

	_, ok = p.Selection()
	assert.False(t, ok, "same selection twice is stale")

	current = "vbh"
	text, ok = p.Selection()
	require.True(t, ok)
	assert.Equal(t, "vbh", text)
}

func TestPrimarySelectionPrime(t *testing.T) {
	p := &PrimarySelection{read: func() (string, error) { return "old", nil }}
	p.Prime()
	_, ok := p.Selection()
	assert.False(t, ok)
}

func TestPrimarySelectionErrors(t *testing.T) {
	p := &PrimarySelection{read: func() (string, error) { return "", errors.New("no xclip") }}
	_, ok := p.Selection()
	assert.False(t, ok)
}
