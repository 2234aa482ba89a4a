package layout

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Class describes how confidently a candidate's layout can be determined.
type Class int

const (
	// ClassUnknown candidates contain no letters.
	ClassUnknown Class = iota
	// ClassDeterministic candidates use a single script and convert cleanly
	// into letters of the other one.
	ClassDeterministic
	// ClassPartialMixed candidates contain letters of both scripts.
	ClassPartialMixed
	// ClassAmbiguous candidates use a single script but their conversion
	// produces non-letters inside the word.
	ClassAmbiguous
)

func (c Class) String() string {
	switch c {
	case ClassDeterministic:
		return "deterministic"
	case ClassPartialMixed:
		return "partial-mixed"
	case ClassAmbiguous:
		return "ambiguous"
	default:
		return "unknown"
	}
}

// WordCandidate is a completed word as seen by the validator.
type WordCandidate struct {
	Raw       string // exactly what was typed
	Core      string // Raw without trailing punctuation
	Trailing  string // punctuation stripped from the end of Raw
	Layout    Layout // detected from Core
	Class     Class
	Converted string // Core converted to the opposite layout
}

// Classify splits raw into core and trailing punctuation and determines the
// candidate's layout class.
func Classify(raw string) WordCandidate {
	core, trailing := SplitTrailing(raw)
	return classify(raw, core, trailing)
}

// ClassifyWhole treats all of raw, trailing punctuation included, as the
// word. It is used to check whether punctuation typed after a word was in
// fact part of it ("yj;" is "нож").
func ClassifyWhole(raw string) WordCandidate {
	return classify(raw, raw, "")
}

func classify(raw, core, trailing string) WordCandidate {
	c := WordCandidate{
		Raw:      raw,
		Core:     core,
		Trailing: trailing,
		Layout:   Detect(core),
	}
	switch c.Layout {
	case Unknown:
		c.Class = ClassUnknown
		c.Converted = core
	case Mixed:
		c.Class = ClassPartialMixed
		c.Converted, _ = Toggle(core)
	default:
		c.Converted = Convert(core, c.Layout, c.Layout.Opposite())
		c.Class = ClassDeterministic
		if !lettersOnly(c.Converted) {
			c.Class = ClassAmbiguous
		}
	}
	return c
}

// Target is the layout a conversion of the candidate would produce.
func (c WordCandidate) Target() Layout {
	return c.Layout.Opposite()
}

// Len is the rune length of the core.
func (c WordCandidate) Len() int {
	return utf8.RuneCountInString(c.Core)
}

// SplitTrailing separates trailing punctuation from a word. Only punctuation
// and symbols are stripped, never letters or digits.
func SplitTrailing(raw string) (core, trailing string) {
	end := len(raw)
	for end > 0 {
		r, size := utf8.DecodeLastRuneInString(raw[:end])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			break
		}
		end -= size
	}
	return raw[:end], raw[end:]
}

// lettersOnly allows apostrophes and hyphens inside a word but rejects any
// other non-letter.
func lettersOnly(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range []rune(s) {
		if unicode.IsLetter(r) {
			continue
		}
		if (r == '-' || r == '\'') && i > 0 {
			continue
		}
		return false
	}
	return true
}

// IsNumeric reports whether s consists of digits and number punctuation only
// and contains at least one digit.
func IsNumeric(s string) bool {
	digits := 0
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			digits++
		case strings.ContainsRune(".,:-+/%", r):
		default:
			return false
		}
	}
	return digits > 0
}
