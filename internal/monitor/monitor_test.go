package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textswitcher/internal/dictionary"
	"textswitcher/internal/keystroke"
	"textswitcher/internal/knowledge"
	"textswitcher/internal/replacer"
	"textswitcher/internal/validator"
)

// harness wires a monitor to a simulated text field. Synthetic backspaces
// and pastes are fed back as key events without the injected flag, the way
// IBus and evdev report them.
type harness struct {
	t      *testing.T
	m      *Monitor
	screen *replacer.Screen
	clip   *replacer.MemoryClipboard
	store  *knowledge.Store

	corrections []Correction
	learned     []string
	overrides   []string
	drops       int
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	store, err := knowledge.Open(knowledge.Options{Dir: t.TempDir(), Sync: true})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	v := validator.New(validator.DefaultConfig(), validator.Deps{
		Dictionary: dictionary.Bundled(),
		Buzzwords:  knowledge.BundledBuzzwords(),
		Knowledge:  store,
	})

	h := &harness{t: t, store: store}
	h.clip = replacer.NewMemoryClipboard("clipboard")
	h.screen = replacer.NewScreen(h.clip)
	h.screen.OnEvent = h.echo
	h.m = New(Options{
		Config:    cfg,
		Validator: v,
		Knowledge: store,
		Replacer:  replacer.New(h.screen, h.clip, replacer.Options{}),
		Hooks:     h.hooks(),
	})
	return h
}

func (h *harness) hooks() Hooks {
	return Hooks{
		OnCorrection: func(c Correction) {
			h.corrections = append(h.corrections, c)
		},
		OnLearnedException: func(w string) {
			h.learned = append(h.learned, w)
		},
		OnManualOverride: func(original, corrected string) {
			h.overrides = append(h.overrides, original+"->"+corrected)
		},
		OnDrop: func(keystroke.Event) {
			h.drops++
		},
	}
}

func (h *harness) echo(op string) {
	switch op {
	case "backspace":
		h.m.HandleEvent(keystroke.Event{Key: keystroke.KeyBackspace, Time: time.Now()})
	case "paste":
		h.m.HandleEvent(keystroke.Event{Key: keystroke.KeyControl, Time: time.Now()})
		h.m.HandleEvent(keystroke.Event{Char: 'v', Modifiers: keystroke.ModControl, Time: time.Now()})
	}
}

// feed types the printable events into the screen and hands every event to
// the monitor.
func (h *harness) feed(events []keystroke.Event) {
	for _, ev := range events {
		if ev.IsChar() && !ev.Modifiers.Chord() {
			h.screen.Type(string(ev.Char))
		}
		h.m.HandleEvent(ev)
	}
}

func script() *keystroke.Script {
	return keystroke.NewScript(time.Now(), 10*time.Millisecond)
}

func manualConfig() Config {
	cfg := DefaultConfig()
	cfg.AutoCorrect = false
	return cfg
}

// =============================================================================
// Automatic correction
// =============================================================================

func TestAutoCorrectsWrongLayoutWord(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.feed(script().Type("ghbdtn ").Events())

	assert.Equal(t, "привет ", h.screen.Text())
	assert.Equal(t, "clipboard", h.clip.Text(), "clipboard must be preserved")
	assert.Equal(t, uint64(1), h.m.Stats().Auto)

	require.Len(t, h.corrections, 1)
	c := h.corrections[0]
	assert.Equal(t, KindAuto, c.Kind)
	assert.Equal(t, "ghbdtn", c.Original)
	assert.Equal(t, "привет", c.Replacement)
	assert.Equal(t, "dictionary", c.Layer)

	snap := h.m.Snapshot()
	assert.Equal(t, "привет", snap.LastWord)
	assert.Equal(t, " ", snap.Trail)
	assert.False(t, snap.InFlight)
}

func TestKeepsCorrectWords(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.feed(script().Type("hello world привет ").Events())

	assert.Equal(t, "hello world привет ", h.screen.Text())
	assert.Zero(t, h.m.Stats().Auto)
	assert.Empty(t, h.corrections)
}

func TestAutoCorrectionKeepsTrailingPunctuation(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.feed(script().Type("ghbdtn! ").Events())

	assert.Equal(t, "привет! ", h.screen.Text())
}

func TestAutoCorrectDisabled(t *testing.T) {
	h := newHarness(t, manualConfig())
	h.feed(script().Type("ghbdtn ").Events())

	assert.Equal(t, "ghbdtn ", h.screen.Text())
	assert.Zero(t, h.m.Stats().Auto)
}

func TestDeferredSingleLetterJoinsNextWord(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	// "d" is the Russian preposition "в" typed in the English layout
	h.feed(script().Type("d ghbdtn ").Events())

	assert.Equal(t, "в привет ", h.screen.Text())
	require.Len(t, h.corrections, 1)
	assert.Equal(t, "d ghbdtn", h.corrections[0].Original)
}

func TestSingleLetterExceptionIsNotDeferred(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	_, _, err := h.store.AddException("d", knowledge.ReasonManual)
	require.NoError(t, err)

	h.feed(script().Type("d ghbdtn ").Events())

	assert.Equal(t, "d привет ", h.screen.Text())
	require.Len(t, h.corrections, 1)
	assert.Equal(t, "ghbdtn", h.corrections[0].Original)
}

func TestDeferredSingleLetterStaysWhenNextWordKept(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.feed(script().Type("d hello ").Events())

	assert.Equal(t, "d hello ", h.screen.Text())
}

// =============================================================================
// Manual override
// =============================================================================

func TestManualOverrideMergesTwoWords(t *testing.T) {
	h := newHarness(t, manualConfig())
	h.feed(script().Type("ghbdtn vbh").Tap(keystroke.KeyShift).Tap(keystroke.KeyShift).Events())

	assert.Equal(t, "привет мир", h.screen.Text())
	assert.Equal(t, uint64(1), h.m.Stats().Manual)
	assert.Equal(t, []string{"ghbdtn vbh->привет мир"}, h.overrides)
	assert.Equal(t, "clipboard", h.clip.Text())
}

func TestManualOverrideAfterAutoCorrection(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.feed(script().Type("ghbdtn vbh").Tap(keystroke.KeyShift).Tap(keystroke.KeyShift).Events())

	assert.Equal(t, "привет мир", h.screen.Text())
	assert.Equal(t, uint64(1), h.m.Stats().Auto)
	assert.Equal(t, uint64(1), h.m.Stats().Manual)
}

func TestManualOverrideIsReversible(t *testing.T) {
	h := newHarness(t, manualConfig())
	s := script().Type("ghbdtn")
	h.feed(s.Tap(keystroke.KeyShift).Tap(keystroke.KeyShift).Events())
	assert.Equal(t, "привет", h.screen.Text())

	h.feed(script().Tap(keystroke.KeyShift).Tap(keystroke.KeyShift).Events())
	assert.Equal(t, "ghbdtn", h.screen.Text())

	h.feed(script().Tap(keystroke.KeyShift).Tap(keystroke.KeyShift).Events())
	assert.Equal(t, "привет", h.screen.Text())
}

func TestManualOverrideLearnsForcedConversion(t *testing.T) {
	h := newHarness(t, manualConfig())
	h.feed(script().Type("ghbdtn").Tap(keystroke.KeyShift).Tap(keystroke.KeyShift).Events())

	f, ok := h.store.Forced("ghbdtn")
	require.True(t, ok)
	assert.Equal(t, "привет", f.Corrected)
	assert.Equal(t, 1, f.ConfirmationCount)

	// toggling back is not a second confirmation
	h.feed(script().Tap(keystroke.KeyShift).Tap(keystroke.KeyShift).Events())
	f, _ = h.store.Forced("ghbdtn")
	assert.Equal(t, 1, f.ConfirmationCount)
}

func TestManualOverrideOfLastWord(t *testing.T) {
	h := newHarness(t, manualConfig())
	h.feed(script().Type("ntcn ").Tap(keystroke.KeyShift).Tap(keystroke.KeyShift).Events())

	assert.Equal(t, "тест ", h.screen.Text())
	snap := h.m.Snapshot()
	assert.Equal(t, "тест", snap.LastWord)
	assert.Equal(t, " ", snap.Trail)
}

func TestSlowDoubleTapIsIgnored(t *testing.T) {
	h := newHarness(t, manualConfig())
	h.feed(script().Type("ghbdtn").Tap(keystroke.KeyShift).Wait(time.Second).Tap(keystroke.KeyShift).Events())

	assert.Equal(t, "ghbdtn", h.screen.Text())
	assert.Zero(t, h.m.Stats().Manual)
}

func TestInterruptedDoubleTapIsIgnored(t *testing.T) {
	h := newHarness(t, manualConfig())
	h.feed(script().Type("ghbdt").Tap(keystroke.KeyShift).Type("n").Tap(keystroke.KeyShift).Events())

	assert.Zero(t, h.m.Stats().Manual)
	assert.Equal(t, "ghbdtn", h.m.Snapshot().Buffer)
}

func TestAutoRepeatDoesNotTrigger(t *testing.T) {
	h := newHarness(t, manualConfig())
	h.feed(script().Type("ghbdtn").Tap(keystroke.KeyShift).Repeat(keystroke.KeyShift).Events())

	assert.Zero(t, h.m.Stats().Manual)
}

type fakeSelection struct{ text string }

func (f *fakeSelection) Selection() (string, bool) {
	t := f.text
	f.text = ""
	return t, t != ""
}

func TestManualOverrideConvertsSelection(t *testing.T) {
	h := newHarness(t, manualConfig())
	h.m.selection = &fakeSelection{text: "ghbdtn vbh"}
	h.feed(script().Tap(keystroke.KeyShift).Tap(keystroke.KeyShift).Events())

	assert.Equal(t, "привет мир", h.screen.Text())
	backspaces, pastes := h.screen.Counts()
	assert.Zero(t, backspaces)
	assert.Equal(t, 1, pastes)
	_, ok := h.store.Forced("ghbdtn vbh")
	assert.False(t, ok, "multi-word selections are not learned")
}

// =============================================================================
// Undo learning
// =============================================================================

func TestUndoLearnsException(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.feed(script().Type("ghbdtn ").Chord('z', keystroke.ModControl).Events())

	assert.True(t, h.store.IsException("ghbdtn"))
	assert.Equal(t, []string{"ghbdtn"}, h.learned)
	assert.Equal(t, uint64(1), h.m.Stats().Undo)
	require.Len(t, h.corrections, 2)
	assert.Equal(t, KindUndo, h.corrections[1].Kind)

	// the same word is now left alone
	h.feed(script().Type("ghbdtn ").Events())
	assert.Equal(t, uint64(1), h.m.Stats().Auto)
}

func TestUndoLearnsWordWithSwallowedPunctuation(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.feed(script().Type("yj; ").Events())
	require.Equal(t, "нож ", h.screen.Text())

	h.feed(script().Chord('z', keystroke.ModControl).Events())
	assert.Equal(t, []string{"yj;"}, h.learned)
	assert.True(t, h.store.IsException("yj;"))

	h.feed(script().Type("yj; ").Events())
	assert.Equal(t, "нож yj; ", h.screen.Text())
	assert.Equal(t, uint64(1), h.m.Stats().Auto)
}

func TestUndoOnlyReachesLastWord(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.feed(script().Type("ghbdtn hello world ").Chord('z', keystroke.ModControl).Events())

	assert.Equal(t, uint64(1), h.m.Stats().Auto)
	assert.Zero(t, h.m.Stats().Undo)
	assert.False(t, h.store.IsException("ghbdtn"))
	assert.Empty(t, h.learned)
}

func TestUndoOutsideWindowIsIgnored(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.feed(script().Type("ghbdtn ").Wait(10 * time.Second).Chord('z', keystroke.ModControl).Events())

	assert.False(t, h.store.IsException("ghbdtn"))
	assert.Empty(t, h.learned)
}

func TestUndoWithRussianLayoutKey(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.feed(script().Type("ghbdtn ").Chord('я', keystroke.ModControl).Events())

	assert.True(t, h.store.IsException("ghbdtn"))
}

func TestRedoChordIsNotUndo(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.feed(script().Type("ghbdtn ").Chord('Z', keystroke.ModControl|keystroke.ModShift).Events())

	assert.False(t, h.store.IsException("ghbdtn"))
}

// =============================================================================
// Editing and resets
// =============================================================================

func TestBackspaceEditsBuffer(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.feed(script().Type("hellp\bo").Events())
	assert.Equal(t, "hello", h.m.Snapshot().Buffer)

	h.feed(script().Type(" \b\b").Events())
	snap := h.m.Snapshot()
	assert.Empty(t, snap.LastWord, "deleting into the last word forgets it")
	assert.Empty(t, snap.Trail)
}

func TestNavigationResetsWord(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.feed(script().Type("ghbd").Press(keystroke.KeyLeft, 0).Type("tn ").Events())

	assert.Zero(t, h.m.Stats().Auto)
	assert.Equal(t, "tn", h.m.Snapshot().LastWord)
}

func TestEnterResetsWithoutValidating(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.feed(script().Type("ghbdtn\n").Events())

	assert.Zero(t, h.m.Stats().Auto)
	assert.Equal(t, Snapshot{}, h.m.Snapshot())
}

func TestInjectedEventsIgnored(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.m.HandleEvent(keystroke.Event{Char: 'a', Injected: true})

	assert.Empty(t, h.m.Snapshot().Buffer)
	assert.Equal(t, uint64(1), h.m.Stats().Echoes)
}

func TestPunctuationInsideWord(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.feed(script().Type("2.5").Events())
	assert.Equal(t, "2.5", h.m.Snapshot().Buffer)

	h.feed(script().Type(" ").Events())
	assert.Equal(t, "2.5 ", h.screen.Text())
}

// =============================================================================
// Replacement in flight
// =============================================================================

func TestEchoSuppression(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.feed(script().Type("ghbdtn ").Events())

	// 7 backspaces, the Ctrl press and the paste chord
	assert.Equal(t, uint64(9), h.m.Stats().Echoes)
	snap := h.m.Snapshot()
	assert.Equal(t, "привет", snap.LastWord)
	assert.Empty(t, snap.Buffer)
}

func TestQueueDuringReplacementIsBounded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.QueueLimit = 4
	h := newHarness(t, cfg)

	fired := false
	h.screen.OnEvent = func(op string) {
		h.echo(op)
		if !fired {
			fired = true
			for i := 0; i < 6; i++ {
				h.m.HandleEvent(keystroke.Event{Char: 'x', Time: time.Now()})
			}
		}
	}
	h.feed(script().Type("ghbdtn ").Events())

	assert.Equal(t, uint64(2), h.m.Stats().Dropped)
	assert.Equal(t, 2, h.drops)
	snap := h.m.Snapshot()
	assert.Equal(t, "xxxx", snap.Buffer, "queued events replay after the replacement")
	assert.Zero(t, snap.Queued)
}

func TestAbortedReplacementKeepsState(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.clip.ReadErr = errors.New("no display")
	h.feed(script().Type("ghbdtn ").Events())

	assert.Equal(t, "ghbdtn ", h.screen.Text())
	assert.Equal(t, uint64(1), h.m.Stats().Aborted)
	require.Len(t, h.corrections, 1)
	assert.Equal(t, KindAbort, h.corrections[0].Kind)
	assert.Error(t, h.corrections[0].Err)
	assert.Equal(t, "ghbdtn", h.m.Snapshot().LastWord)
}

func TestFailedDeletionResetsState(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.screen.FailAfter = 3
	h.feed(script().Type("ghbdtn ").Events())

	assert.Equal(t, uint64(1), h.m.Stats().Aborted)
	assert.Equal(t, Snapshot{}, h.m.Snapshot())
	assert.Equal(t, "clipboard", h.clip.Text())
}

// =============================================================================
// Run
// =============================================================================

func TestRunWithScriptedSource(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.screen.OnEvent = nil
	h.screen.Type("ghbdtn vbh ")

	src := script().Type("ghbdtn vbh ").Source()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, h.m.Run(ctx, src))
	assert.Equal(t, uint64(2), h.m.Stats().Auto)
	assert.Len(t, h.corrections, 2)
	assert.Equal(t, "clipboard", h.clip.Text())
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	src := keystroke.NewScriptedSource(script().Type("abc").Events())
	src.Delay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.m.Run(ctx, src) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

// =============================================================================
// Configuration
// =============================================================================

func TestSetConfigFillsDefaults(t *testing.T) {
	h := newHarness(t, Config{AutoCorrect: true})
	cfg := h.m.Config()
	assert.Equal(t, keystroke.KeyShift, cfg.Trigger)
	assert.Equal(t, 400*time.Millisecond, cfg.DoublePress)
	assert.Equal(t, 32, cfg.QueueLimit)

	h.m.SetConfig(Config{Trigger: keystroke.KeyControl, QueueLimit: 8})
	cfg = h.m.Config()
	assert.Equal(t, keystroke.KeyControl, cfg.Trigger)
	assert.Equal(t, 8, cfg.QueueLimit)
	assert.False(t, cfg.AutoCorrect)
}

func TestCustomTrigger(t *testing.T) {
	cfg := manualConfig()
	cfg.Trigger = keystroke.KeyControl
	h := newHarness(t, cfg)

	h.feed(script().Type("ghbdtn").Tap(keystroke.KeyShift).Tap(keystroke.KeyShift).Events())
	assert.Zero(t, h.m.Stats().Manual)

	h.feed(script().Tap(keystroke.KeyControl).Tap(keystroke.KeyControl).Events())
	assert.Equal(t, "привет", h.screen.Text())
}
