package layout

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Layout identifies a keyboard layout or the result of detecting one.
type Layout int

const (
	// Unknown means the text carries no letters of either layout.
	Unknown Layout = iota
	// English is US QWERTY.
	English
	// Russian is ЙЦУКЕН.
	Russian
	// Mixed means letters of both layouts are present.
	Mixed
)

func (l Layout) String() string {
	switch l {
	case English:
		return "en"
	case Russian:
		return "ru"
	case Mixed:
		return "mixed"
	default:
		return "unknown"
	}
}

// Opposite returns the other supported layout. Unknown and Mixed have no
// opposite and are returned unchanged.
func (l Layout) Opposite() Layout {
	switch l {
	case English:
		return Russian
	case Russian:
		return English
	default:
		return l
	}
}

// Valid reports whether l is one of the two concrete layouts.
func (l Layout) Valid() bool {
	return l == English || l == Russian
}

// Parse converts "en"/"ru" (and a few aliases) into a Layout.
func Parse(s string) (Layout, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "en", "english", "us", "qwerty", "latin":
		return English, true
	case "ru", "russian", "йцукен", "cyrillic":
		return Russian, true
	}
	return Unknown, false
}

// Key-position pairs. Index i of each English string is the same physical
// key as index i of the matching Russian string.
const (
	enLower   = "qwertyuiop[]asdfghjkl;'zxcvbnm,./`"
	ruLower   = "йцукенгшщзхъфывапролджэячсмитьбю.ё"
	enUpper   = "QWERTYUIOP{}ASDFGHJKL:\"ZXCVBNM<>?~"
	ruUpper   = "ЙЦУКЕНГШЩЗХЪФЫВАПРОЛДЖЭЯЧСМИТЬБЮ,Ё"
	enShifted = "@#$^&|"
	ruShifted = "\"№;:?/"
)

var (
	enToRu = map[rune]rune{}
	ruToEn = map[rune]rune{}
)

func init() {
	pairs := [][2]string{
		{enLower, ruLower},
		{enUpper, ruUpper},
		{enShifted, ruShifted},
	}
	for _, p := range pairs {
		en, ru := []rune(p[0]), []rune(p[1])
		if len(en) != len(ru) {
			panic("layout: table length mismatch")
		}
		for i := range en {
			enToRu[en[i]] = ru[i]
			ruToEn[ru[i]] = en[i]
		}
	}
}

func table(from, to Layout) map[rune]rune {
	switch {
	case from == English && to == Russian:
		return enToRu
	case from == Russian && to == English:
		return ruToEn
	}
	return nil
}

// Convert substitutes every character of text that has a table entry for
// the from→to direction. Unmapped characters pass through unchanged. Any
// other pair of layouts returns text as is.
func Convert(text string, from, to Layout) string {
	t := table(from, to)
	if t == nil || text == "" {
		return text
	}
	var b strings.Builder
	b.Grow(len(text) + len(text)/2)
	for _, r := range text {
		if m, ok := t[r]; ok {
			b.WriteRune(m)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Toggle converts text from its detected layout to the opposite one. Mixed
// text is converted letter by letter, each letter to the other script, which
// is what a user expects from a forced conversion of a half-converted word.
func Toggle(text string) (string, Layout) {
	switch l := Detect(text); l {
	case English, Russian:
		return Convert(text, l, l.Opposite()), l.Opposite()
	case Mixed:
		var b strings.Builder
		for _, r := range text {
			if m, ok := enToRu[r]; ok && ScriptOf(r) == English {
				b.WriteRune(m)
			} else if m, ok := ruToEn[r]; ok && ScriptOf(r) == Russian {
				b.WriteRune(m)
			} else {
				b.WriteRune(r)
			}
		}
		return b.String(), Mixed
	default:
		return text, Unknown
	}
}

// IsMappable reports whether r has a table entry when typed in layout l.
func IsMappable(r rune, l Layout) bool {
	switch l {
	case English:
		_, ok := enToRu[r]
		return ok
	case Russian:
		_, ok := ruToEn[r]
		return ok
	}
	_, en := enToRu[r]
	_, ru := ruToEn[r]
	return en || ru
}

// OpensWord reports whether r may start a word. Besides letters and digits
// this admits the QWERTY keys that produce Russian letters and rarely start
// an English word.
func OpensWord(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	return strings.ContainsRune("[{;:`~", r)
}

// ScriptOf returns English for Latin letters, Russian for Cyrillic letters
// and Unknown for anything else.
func ScriptOf(r rune) Layout {
	switch {
	case r < utf8.RuneSelf:
		if ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') {
			return English
		}
	case unicode.Is(unicode.Cyrillic, r) && unicode.IsLetter(r):
		return Russian
	case unicode.Is(unicode.Latin, r) && unicode.IsLetter(r):
		return English
	}
	return Unknown
}

// Counts returns the number of Latin and Cyrillic letters in text.
func Counts(text string) (latin, cyrillic int) {
	for _, r := range text {
		switch ScriptOf(r) {
		case English:
			latin++
		case Russian:
			cyrillic++
		}
	}
	return latin, cyrillic
}

// Detect reports the layout text was typed in, judged by its letters.
func Detect(text string) Layout {
	latin, cyrillic := Counts(text)
	switch {
	case latin == 0 && cyrillic == 0:
		return Unknown
	case latin > 0 && cyrillic > 0:
		return Mixed
	case latin > 0:
		return English
	default:
		return Russian
	}
}

// Dominant returns the script with more letters in text, or Unknown on a tie.
func Dominant(text string) Layout {
	latin, cyrillic := Counts(text)
	switch {
	case latin > cyrillic:
		return English
	case cyrillic > latin:
		return Russian
	}
	return Unknown
}

// ConvertScript rewrites only the letters that belong to the other script
// of to, leaving letters already in to and everything else untouched. It is
// used to repair words typed partly in the wrong layout.
func ConvertScript(text string, to Layout) string {
	from := to.Opposite()
	t := table(from, to)
	if t == nil {
		return text
	}
	var b strings.Builder
	b.Grow(len(text) + len(text)/2)
	for _, r := range text {
		if ScriptOf(r) == from {
			if m, ok := t[r]; ok {
				b.WriteRune(m)
				continue
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}
