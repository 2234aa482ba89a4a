package validator

import (
	"textswitcher/internal/history"
	"textswitcher/internal/layout"
)

// Report lists every signal the cascade saw for one word, for diagnostics.
type Report struct {
	Word      string
	Candidate layout.WordCandidate
	Majority  layout.Layout

	Exception         bool
	Buzzword          bool
	ConvertedBuzzword bool
	Forced            string
	ForcedCount       int

	DictionaryReady bool
	RawKnown        bool
	ConvertedKnown  bool

	NgramReady     bool
	NgramRaw       float64
	NgramConverted float64
	NgramDiff      float64

	SpellReady     bool
	SpellRaw       bool
	SpellConverted bool

	// Trace holds the verdict of every layer consulted, in order.
	Trace    []Decision
	Decision Decision
}

// Explain runs the cascade on word and reports how it got to its decision.
func (v *Validator) Explain(word string, ctx []history.Entry) Report {
	cand := layout.Classify(word)
	d, trace := v.run(cand, ctx, true)
	r := Report{
		Word:      word,
		Candidate: cand,
		Trace:     trace,
		Decision:  d,
	}
	if !cand.Layout.Valid() && cand.Class != layout.ClassPartialMixed {
		return r
	}

	in := v.prepare(cand, ctx)
	r.Majority = in.majority
	r.DictionaryReady = in.haveDict
	r.RawKnown = in.rawKnown
	r.ConvertedKnown = in.convKnown
	r.ConvertedBuzzword = in.convBuzzword
	r.NgramReady = in.ngramReady
	r.NgramRaw = in.ngramRaw
	r.NgramConverted = in.ngramConv
	r.NgramDiff = in.ngramDiff
	r.SpellReady = in.spellReady
	r.SpellRaw = in.spellRaw
	r.SpellConverted = in.spellConv

	r.Buzzword = v.deps.Buzzwords.Contains(cand.Raw)
	if k := v.deps.Knowledge; k != nil {
		r.Exception = k.IsException(cand.Core)
		if f, ok := k.Forced(cand.Core); ok {
			r.Forced = f.Corrected
			r.ForcedCount = f.ConfirmationCount
		}
	}
	return r
}
