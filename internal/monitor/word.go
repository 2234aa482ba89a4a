package monitor

import (
	"unicode"
	"unicode/utf8"

	"textswitcher/internal/history"
	"textswitcher/internal/keystroke"
	"textswitcher/internal/layout"
	"textswitcher/internal/replacer"
	"textswitcher/internal/validator"
)

// word is a completed word as it currently appears on screen.
type word struct {
	text     string
	original string // text before the last replacement, empty if never replaced
	auto     bool
}

// deferral is a single letter waiting for the next word's verdict.
type deferral struct {
	word      *word
	converted string
	target    layout.Layout
}

// state is what the monitor knows about the text left of the cursor.
type state struct {
	buffer   []rune // word being typed
	pending  []rune // mappable punctuation typed right after buffer
	last     *word  // last completed word
	trail    []rune // separators typed after last
	deferred *deferral
}

func (s state) isEmpty() bool {
	return len(s.buffer) == 0 && len(s.pending) == 0 && s.last == nil && len(s.trail) == 0
}

func (s state) clone() state {
	c := state{
		buffer:   append([]rune(nil), s.buffer...),
		pending:  append([]rune(nil), s.pending...),
		trail:    append([]rune(nil), s.trail...),
		deferred: s.deferred,
	}
	if s.last != nil {
		w := *s.last
		c.last = &w
		if s.deferred != nil && s.deferred.word == s.last {
			d := *s.deferred
			d.word = c.last
			c.deferred = &d
		}
	}
	return c
}

func (m *Monitor) typeChar(ev keystroke.Event) {
	r := ev.Char
	switch {
	case unicode.IsSpace(r):
		m.boundary(r, ev)
	case unicode.IsLetter(r) || unicode.IsDigit(r):
		if len(m.st.pending) > 0 {
			m.st.buffer = append(m.st.buffer, m.st.pending...)
			m.st.pending = nil
		}
		m.st.buffer = append(m.st.buffer, r)
	case len(m.st.buffer) > 0:
		if layout.IsMappable(r, layout.Detect(string(m.st.buffer))) {
			m.st.pending = append(m.st.pending, r)
			return
		}
		m.boundary(r, ev)
	case layout.OpensWord(r):
		m.st.buffer = append(m.st.buffer, r)
	default:
		m.st.trail = append(m.st.trail, r)
	}
}

// strongLayer reports whether a layer's conversion is trusted enough to
// swallow punctuation into the word.
func strongLayer(l validator.Layer) bool {
	switch l {
	case validator.LayerForced, validator.LayerDictionary, validator.LayerMixed:
		return true
	}
	return false
}

// decide validates a finished word. Punctuation typed after it is first
// tried as part of the word ("yj;" is "нож"), then as trailing punctuation.
// whole reports which of the two readings the decision is about.
func (m *Monitor) decide(text, punct string, ctx []history.Entry) (d validator.Decision, whole bool) {
	if punct != "" {
		d = m.validator.ValidateWhole(text+punct, ctx)
		if d.ShouldConvert() && strongLayer(d.Layer) {
			return d, true
		}
	}
	return m.validator.Validate(text+punct, ctx), false
}

func (m *Monitor) boundary(b rune, ev keystroke.Event) {
	if len(m.st.buffer) == 0 {
		m.st.trail = append(m.st.trail, b)
		return
	}
	typed := string(m.st.buffer) + string(m.st.pending)
	text, punct := string(m.st.buffer), string(m.st.pending)
	m.st.buffer, m.st.pending = nil, nil
	// undo only reaches back to the word just completed
	m.lastAuto = nil

	prev := m.st.deferred
	m.st.deferred = nil

	cfg := m.Config()
	if !cfg.AutoCorrect {
		m.remember(typed, ev)
		m.st.last = &word{text: typed}
		m.st.trail = []rune{b}
		return
	}

	d, whole := m.decide(text, punct, m.history.Snapshot())
	m.logger.Debug("word validated", "decision", d.String())

	if !d.ShouldConvert() {
		m.remember(typed, ev)
		m.st.last = &word{text: typed}
		m.st.trail = []rune{b}
		if d.Deferred {
			m.st.deferred = &deferral{word: m.st.last, converted: d.Converted, target: d.Target}
		}
		return
	}

	core, _ := layout.SplitTrailing(d.Converted)
	m.history.Add(history.Entry{Word: core, Layout: d.Target, Time: ev.Time})

	original, replacement := typed, d.Converted
	del := utf8.RuneCountInString(typed) + 1
	if prev != nil && prev.word == m.st.last && prev.target == d.Target {
		trail := string(m.st.trail)
		original = prev.word.text + trail + typed
		replacement = prev.converted + trail + d.Converted
		del += utf8.RuneCountInString(prev.word.text + trail)
	}

	after := state{
		last:  &word{text: replacement, original: original, auto: true},
		trail: []rune{b},
	}
	before := state{last: &word{text: typed}, trail: []rune{b}}

	learn := typed
	if !whole {
		learn, _ = layout.SplitTrailing(typed)
	}
	m.submit(job{
		kind:        KindAuto,
		req:         replacer.Request{Delete: del, Text: replacement + string(b)},
		original:    original,
		replacement: replacement,
		learn:       learn,
		decision:    d,
		at:          ev.Time,
		before:      before,
		after:       after,
	})
}

// remember adds a kept word to the context history. Single letters carry
// too little signal to bias later words.
func (m *Monitor) remember(typed string, ev keystroke.Event) {
	core, _ := layout.SplitTrailing(typed)
	if utf8.RuneCountInString(core) < 2 {
		return
	}
	if l := layout.Detect(core); l.Valid() {
		m.history.Add(history.Entry{Word: core, Layout: l, Time: ev.Time})
	}
}
