package validator

import (
	"fmt"

	"textswitcher/internal/layout"
)

// Verdict is the outcome of one cascade layer.
type Verdict int

const (
	// Escalate defers to the next layer.
	Escalate Verdict = iota
	// Keep leaves the word as typed.
	Keep
	// Convert replaces the word with its conversion.
	Convert
)

func (v Verdict) String() string {
	switch v {
	case Keep:
		return "keep"
	case Convert:
		return "convert"
	default:
		return "escalate"
	}
}

// Layer identifies a cascade layer, in precedence order.
type Layer int

const (
	LayerNone Layer = iota
	LayerSingleChar
	LayerExceptions
	LayerBuzzwords
	LayerShortWords
	LayerForced
	LayerDictionary
	LayerMixed
	LayerContext
	LayerNgram
	LayerSpell
	LayerFallback
)

var layerNames = [...]string{
	LayerNone:       "none",
	LayerSingleChar: "single-char",
	LayerExceptions: "exceptions",
	LayerBuzzwords:  "buzzwords",
	LayerShortWords: "short-words",
	LayerForced:     "forced",
	LayerDictionary: "dictionary",
	LayerMixed:      "mixed",
	LayerContext:    "context",
	LayerNgram:      "ngram",
	LayerSpell:      "spellcheck",
	LayerFallback:   "fallback",
}

func (l Layer) String() string {
	if l >= 0 && int(l) < len(layerNames) {
		return layerNames[l]
	}
	return fmt.Sprintf("layer(%d)", int(l))
}

// Reason codes. They are diagnostic only.
const (
	ReasonEmpty            = "empty"
	ReasonNumeric          = "numeric"
	ReasonNoLetters        = "no-letters"
	ReasonTooShort         = "too-short"
	ReasonSingleChar       = "single-char"
	ReasonSingleCharDefer  = "single-char-deferred"
	ReasonException        = "user-exception"
	ReasonBuzzword         = "buzzword"
	ReasonShortWord        = "short-word"
	ReasonForced           = "forced-conversion"
	ReasonDictionary       = "dictionary"
	ReasonBuzzwordRestore  = "buzzword-restore"
	ReasonMixedRepair      = "mixed-repair"
	ReasonContext          = "context-bias"
	ReasonNgram            = "ngram"
	ReasonSpell            = "spellcheck"
	ReasonHomographContext = "homograph-context"
	ReasonDefault          = "default-keep"
)

// Decision is the result of validating one word.
type Decision struct {
	Verdict Verdict
	// Target is the layout of Converted. For a deferred Keep it is the
	// layout the word would take if the next word converts to it.
	Target layout.Layout
	// Converted is the full replacement text, trailing punctuation included.
	Converted string
	Layer     Layer
	Reason    string
	// Deferred marks a single letter that should be converted together with
	// the following word when that word converts to Target.
	Deferred bool
}

// ShouldConvert reports whether the decision replaces the word.
func (d Decision) ShouldConvert() bool {
	return d.Verdict == Convert
}

func (d Decision) String() string {
	if d.Verdict == Convert {
		return fmt.Sprintf("convert(%s, %s/%s)", d.Target, d.Layer, d.Reason)
	}
	return fmt.Sprintf("%s(%s/%s)", d.Verdict, d.Layer, d.Reason)
}

func keep(l Layer, reason string) Decision {
	return Decision{Verdict: Keep, Layer: l, Reason: reason}
}

func escalate(l Layer) Decision {
	return Decision{Verdict: Escalate, Layer: l}
}
