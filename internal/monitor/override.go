package monitor

import (
	"strings"
	"unicode/utf8"

	"textswitcher/internal/history"
	"textswitcher/internal/keystroke"
	"textswitcher/internal/layout"
	"textswitcher/internal/replacer"
)

// target is the text a manual override replaces.
type target struct {
	original  string // text to delete, separators excluded
	converted string
	trail     string // separators kept after the replacement
	delete    int
	// learnable targets are a single word typed in the wrong layout whose
	// conversion may be remembered as forced.
	learnable bool
}

// override handles a double tap of the trigger key. A fresh selection wins;
// otherwise the word being typed, the last word, or both together are
// converted. A word that was already replaced is restored instead.
func (m *Monitor) override(ev keystroke.Event) {
	t, ok := m.overrideTarget()
	if !ok || t.converted == t.original {
		return
	}
	m.lastAuto = nil

	after := state{
		last:  &word{text: t.converted, original: t.original},
		trail: []rune(t.trail),
	}
	m.submit(job{
		kind:        KindManual,
		req:         replacer.Request{Delete: t.delete, Text: t.converted + t.trail},
		original:    t.original,
		replacement: t.converted,
		learnable:   t.learnable,
		at:          ev.Time,
		before:      m.st.clone(),
		after:       after,
	})
}

func (m *Monitor) overrideTarget() (target, bool) {
	if m.selection != nil {
		if sel, ok := m.selection.Selection(); ok {
			conv, _ := layout.Toggle(sel)
			return target{
				original:  sel,
				converted: conv,
				learnable: isSingleWord(sel),
			}, true
		}
	}

	live := string(m.st.buffer) + string(m.st.pending)
	last := m.st.last
	trail := string(m.st.trail)

	if live != "" {
		t := target{original: live, learnable: true}
		t.converted, _ = layout.Toggle(live)
		t.delete = utf8.RuneCountInString(live)

		// "ghbdtn vj|": both words were typed in the wrong layout
		if last != nil && last.original == "" && sameLayout(last.text, live) {
			t.original = last.text + trail + live
			t.converted = toggleWord(last.text) + trail + t.converted
			t.delete += utf8.RuneCountInString(last.text + trail)
			t.learnable = false
		}
		return t, true
	}

	if last == nil {
		return target{}, false
	}
	t := target{
		original: last.text,
		trail:    trail,
		delete:   utf8.RuneCountInString(last.text + trail),
	}
	if last.original != "" {
		t.converted = last.original
		return t, true
	}
	t.converted = toggleWord(last.text)
	t.learnable = true
	return t, true
}

// toggleWord converts a completed word, keeping its trailing punctuation.
func toggleWord(s string) string {
	core, trailing := layout.SplitTrailing(s)
	conv, _ := layout.Toggle(core)
	return conv + trailing
}

func sameLayout(a, b string) bool {
	core, _ := layout.SplitTrailing(a)
	la := layout.Detect(core)
	return la.Valid() && la == layout.Detect(b)
}

func isSingleWord(s string) bool {
	return s != "" && !strings.ContainsFunc(s, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n'
	})
}

// learnForced records a manual conversion of a single word.
func (m *Monitor) learnForced(j job) {
	if m.knowledge == nil || !j.learnable {
		return
	}
	orig, _ := layout.SplitTrailing(j.original)
	conv, _ := layout.SplitTrailing(j.replacement)
	if utf8.RuneCountInString(orig) < 2 || !layout.Detect(orig).Valid() || !isSingleWord(orig) {
		return
	}
	if _, err := m.knowledge.ConfirmForced(orig, conv); err != nil {
		m.logger.Warn("record forced conversion", "error", err)
	}
	if l := layout.Detect(conv); l.Valid() {
		m.history.Add(history.Entry{Word: conv, Layout: l, Time: j.at})
	}
}
