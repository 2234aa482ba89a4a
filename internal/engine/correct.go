package engine

import (
	"context"
	"strings"
	"time"

	"textswitcher/internal/history"
	"textswitcher/internal/keystroke"
	"textswitcher/internal/layout"
	"textswitcher/internal/monitor"
	"textswitcher/internal/replacer"
	"textswitcher/internal/validator"
)

// typingStep is the simulated gap between keystrokes.
const typingStep = 50 * time.Millisecond

// CorrectText types text into a simulated text field through a fresh
// monitor that shares this engine's validator and returns what the field
// shows afterwards. Nothing is learned, journaled or sent to the desktop.
// A word still being typed at the end of text is validated as if a space
// followed it.
func (e *Engine) CorrectText(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	cfg := e.Config()
	clip := replacer.NewMemoryClipboard("")
	screen := replacer.NewScreen(clip)

	mc := monitorConfig(cfg)
	mc.AutoCorrect = true
	mc.EchoSuppression = false

	m := monitor.New(monitor.Options{
		Config:    mc,
		Validator: e.validator,
		Replacer:  replacer.New(screen, clip, replacer.Options{Logger: e.logger}),
		History:   history.NewRing(cfg.Validator.ContextMaxEntries, cfg.Validator.ContextMaxAge()),
		Logger:    e.logger,
	})

	closing := !strings.HasSuffix(text, " ")
	typed := text
	if closing {
		typed += " "
	}
	for _, ev := range keystroke.NewScript(time.Now(), typingStep).Type(typed).Events() {
		if ev.IsChar() && !ev.Modifiers.Chord() {
			screen.Type(string(ev.Char))
		}
		m.HandleEvent(ev)
	}

	out := screen.Text()
	if closing {
		out = strings.TrimSuffix(out, " ")
	}
	return out, nil
}

// Check explains the decision for each word in order. Earlier words that
// resolve to a layout become context for later ones, the way they would
// while typing.
func (e *Engine) Check(words []string) []validator.Report {
	cfg := e.Config()
	ring := history.NewRing(cfg.Validator.ContextMaxEntries, cfg.Validator.ContextMaxAge())

	reports := make([]validator.Report, 0, len(words))
	for _, w := range words {
		r := e.validator.Explain(w, ring.Snapshot())
		reports = append(reports, r)

		final := r.Candidate.Core
		if r.Decision.ShouldConvert() {
			final = r.Decision.Converted
		}
		if len([]rune(final)) > 1 {
			ring.Add(history.Entry{Word: final, Layout: layout.Detect(final), Time: time.Now()})
		}
	}
	return reports
}
