// Package validator decides, word by word, whether text was typed in the
// wrong keyboard layout.
//
// The decision is an ordered cascade of independent layers. Each layer
// either decides (Keep or Convert) or escalates to the next one; the first
// decision wins and the rest are never consulted. When no layer decides
// the word is kept: a conversion always needs positive evidence.
//
//	 1 single-char   one-letter words, deferred to the following word
//	 2 exceptions    words the user un-did or listed; always Keep
//	 3 buzzwords     domain vocabulary; always Keep
//	 4 short-words   short function words of the typed layout
//	 5 forced        corrections the user made by hand
//	 6 dictionary    target-language membership of the conversion
//	 7 mixed         repair of half-converted words
//	 8 context       majority layout of recent words
//	 9 ngram         bigram/trigram plausibility in each language
//	10 spellcheck    system spelling dictionaries
//	11 fallback      homographs follow context, else Keep
//
// A missing resource (dictionary, n-gram tables, spell checker) turns only
// its layer into a permanent Escalate.
package validator

import (
	"strings"
	"sync/atomic"
	"time"
	"unicode"

	"textswitcher/internal/dictionary"
	"textswitcher/internal/history"
	"textswitcher/internal/knowledge"
	"textswitcher/internal/layout"
	"textswitcher/internal/ngram"
)

// Config holds the tunable thresholds.
type Config struct {
	MinWordLength          int
	ContextMinMajority     int
	NgramMargin            float64
	NgramMinLength         int
	ForcedMinConfirmations int
}

// DefaultConfig returns the thresholds used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		MinWordLength:          2,
		ContextMinMajority:     2,
		NgramMargin:            1.0,
		NgramMinLength:         3,
		ForcedMinConfirmations: 1,
	}
}

// Knowledge is the subset of the knowledge store the cascade reads.
type Knowledge interface {
	IsException(word string) bool
	Forced(word string) (knowledge.ForcedConversion, bool)
}

// Deps are the resources the cascade consults. Any of them may be nil.
type Deps struct {
	Dictionary *dictionary.Dictionary
	Spell      dictionary.SpellChecker
	Scorer     *ngram.Scorer
	Buzzwords  *knowledge.Buzzwords
	Knowledge  Knowledge
	// Observe is called with every final decision and how long it took.
	Observe func(Decision, time.Duration)
}

// Validator runs the cascade. It is safe for concurrent use.
type Validator struct {
	cfg    atomic.Pointer[Config]
	deps   Deps
	layers []layerFunc
}

type layerFunc struct {
	id Layer
	// short layers also run for words below the minimum length; they never
	// return Convert
	short bool
	eval  func(v *Validator, in *input) Decision
}

// New builds a validator.
func New(cfg Config, deps Deps) *Validator {
	v := &Validator{deps: deps}
	v.SetConfig(cfg)
	v.layers = []layerFunc{
		{LayerSingleChar, true, (*Validator).singleChar},
		{LayerExceptions, true, (*Validator).exceptions},
		{LayerBuzzwords, true, (*Validator).buzzwords},
		{LayerShortWords, false, (*Validator).shortWords},
		{LayerForced, false, (*Validator).forced},
		{LayerDictionary, false, (*Validator).dictionary},
		{LayerMixed, false, (*Validator).mixed},
		{LayerContext, false, (*Validator).context},
		{LayerNgram, false, (*Validator).ngram},
		{LayerSpell, false, (*Validator).spell},
		{LayerFallback, false, (*Validator).fallback},
	}
	return v
}

// SetConfig replaces the thresholds. Zero fields take their defaults.
func (v *Validator) SetConfig(cfg Config) {
	def := DefaultConfig()
	if cfg.MinWordLength <= 0 {
		cfg.MinWordLength = def.MinWordLength
	}
	if cfg.ContextMinMajority <= 0 {
		cfg.ContextMinMajority = def.ContextMinMajority
	}
	if cfg.NgramMargin < 0 {
		cfg.NgramMargin = def.NgramMargin
	}
	if cfg.NgramMinLength <= 0 {
		cfg.NgramMinLength = def.NgramMinLength
	}
	if cfg.ForcedMinConfirmations <= 0 {
		cfg.ForcedMinConfirmations = def.ForcedMinConfirmations
	}
	v.cfg.Store(&cfg)
}

// Config returns the active thresholds.
func (v *Validator) Config() Config {
	return *v.cfg.Load()
}

// input carries the candidate and every signal the layers share.
type input struct {
	cand     layout.WordCandidate
	cfg      Config
	ctx      []history.Entry
	majority layout.Layout

	rawKnown      bool
	convKnown     bool
	convBuzzword  bool
	ngramReady    bool
	ngramRaw      float64
	ngramConv     float64
	ngramDiff     float64
	spellReady    bool
	spellRaw      bool
	spellConv     bool
	haveDict      bool
	deterministic bool
}

// Validate decides word, treating trailing punctuation as separate from the
// word: a conversion converts the word and keeps the punctuation.
func (v *Validator) Validate(word string, ctx []history.Entry) Decision {
	d, _ := v.run(layout.Classify(word), ctx, false)
	return d
}

// ValidateWhole decides word with any trailing punctuation treated as part
// of it, so "yj;" may become "нож".
func (v *Validator) ValidateWhole(word string, ctx []history.Entry) Decision {
	d, _ := v.run(layout.ClassifyWhole(word), ctx, false)
	return d
}

func (v *Validator) run(cand layout.WordCandidate, ctx []history.Entry, trace bool) (Decision, []Decision) {
	start := time.Now()
	d, steps := v.cascade(cand, ctx, trace)
	if v.deps.Observe != nil {
		v.deps.Observe(d, time.Since(start))
	}
	return d, steps
}

func (v *Validator) cascade(cand layout.WordCandidate, ctx []history.Entry, trace bool) (Decision, []Decision) {
	switch {
	case strings.TrimSpace(cand.Raw) == "":
		return keep(LayerNone, ReasonEmpty), nil
	case layout.IsNumeric(cand.Core):
		return keep(LayerNone, ReasonNumeric), nil
	case cand.Class == layout.ClassUnknown:
		return keep(LayerNone, ReasonNoLetters), nil
	}

	in := v.prepare(cand, ctx)
	short := cand.Len() < in.cfg.MinWordLength

	var steps []Decision
	for _, l := range v.layers {
		if short && !l.short {
			continue
		}
		d := l.eval(v, in)
		d.Layer = l.id
		if trace {
			steps = append(steps, d)
		}
		if d.Verdict == Escalate {
			continue
		}
		if short && d.Verdict == Convert {
			// unreachable by construction; never convert a short word
			d = keep(l.id, ReasonTooShort)
		}
		return d, steps
	}
	if short {
		return keep(LayerNone, ReasonTooShort), steps
	}
	return keep(LayerNone, ReasonDefault), steps
}

func (v *Validator) prepare(cand layout.WordCandidate, ctx []history.Entry) *input {
	in := &input{
		cand:          cand,
		cfg:           v.Config(),
		ctx:           ctx,
		deterministic: cand.Class == layout.ClassDeterministic,
	}
	in.majority = history.Majority(ctx, in.cfg.ContextMinMajority)

	if !cand.Layout.Valid() {
		return in
	}
	target := cand.Target()

	if d := v.deps.Dictionary; d != nil && d.Len(cand.Layout) > 0 && d.Len(target) > 0 {
		in.haveDict = true
		in.rawKnown = d.Contains(cand.Core, cand.Layout)
		if in.deterministic {
			in.convKnown = d.Contains(cand.Converted, target)
		}
	}
	if in.deterministic && v.deps.Buzzwords.Contains(cand.Converted) {
		in.convBuzzword = true
	}

	if s := v.deps.Scorer; s.Available() && in.deterministic {
		in.ngramReady = true
		in.ngramRaw = s.Score(cand.Core, cand.Layout)
		in.ngramConv = s.Score(cand.Converted, target)
		in.ngramDiff = in.ngramRaw - in.ngramConv
	}

	if sp := v.deps.Spell; sp != nil && in.deterministic {
		in.spellReady = true
		in.spellRaw = sp.Check(cand.Core, cand.Layout)
		in.spellConv = sp.Check(cand.Converted, target)
	}
	return in
}

// convert builds a Convert decision for the plain layout conversion.
func (in *input) convert(reason string) Decision {
	return Decision{
		Verdict:   Convert,
		Target:    in.cand.Target(),
		Converted: in.cand.Converted + in.cand.Trailing,
		Reason:    reason,
	}
}

// ============================================================================
// Layers
// ============================================================================

func (v *Validator) singleChar(in *input) Decision {
	c := in.cand
	if c.Len() != 1 || !c.Layout.Valid() {
		return escalate(LayerSingleChar)
	}
	if c.Trailing != "" || v.deps.Buzzwords.Contains(c.Raw) {
		// "c#", "f#", "c++" and lone letters ending a sentence
		return keep(LayerSingleChar, ReasonSingleChar)
	}
	if isException(v.deps.Knowledge, c) {
		// never carried into the next word
		return escalate(LayerSingleChar)
	}
	native := dictionary.IsSingleLetterWord(c.Core, c.Layout)
	foreign := c.Class == layout.ClassDeterministic &&
		dictionary.IsSingleLetterWord(c.Converted, c.Target())

	if foreign && (!native || in.majority == c.Target()) {
		d := keep(LayerSingleChar, ReasonSingleCharDefer)
		d.Deferred = true
		d.Target = c.Target()
		d.Converted = c.Converted + c.Trailing
		return d
	}
	return keep(LayerSingleChar, ReasonSingleChar)
}

func (v *Validator) exceptions(in *input) Decision {
	k := v.deps.Knowledge
	if k == nil {
		return escalate(LayerExceptions)
	}
	if isException(k, in.cand) {
		return keep(LayerExceptions, ReasonException)
	}
	return escalate(LayerExceptions)
}

// isException matches the word as typed, its core, and the core without
// punctuation when the candidate swallowed it ("yj;" matches "yj").
func isException(k Knowledge, c layout.WordCandidate) bool {
	if k == nil {
		return false
	}
	if k.IsException(c.Core) || k.IsException(c.Raw) {
		return true
	}
	core, _ := layout.SplitTrailing(c.Raw)
	return core != c.Core && core != "" && k.IsException(core)
}

func (v *Validator) buzzwords(in *input) Decision {
	b := v.deps.Buzzwords
	if b.Contains(in.cand.Raw) || b.Contains(in.cand.Core) {
		return keep(LayerBuzzwords, ReasonBuzzword)
	}
	return escalate(LayerBuzzwords)
}

func (v *Validator) shortWords(in *input) Decision {
	if in.cand.Layout.Valid() && dictionary.IsShortWord(in.cand.Core, in.cand.Layout) {
		return keep(LayerShortWords, ReasonShortWord)
	}
	return escalate(LayerShortWords)
}

func (v *Validator) forced(in *input) Decision {
	k := v.deps.Knowledge
	if k == nil {
		return escalate(LayerForced)
	}
	f, ok := k.Forced(in.cand.Core)
	if !ok || f.ConfirmationCount < in.cfg.ForcedMinConfirmations {
		return escalate(LayerForced)
	}
	if f.Corrected == in.cand.Core {
		return keep(LayerForced, ReasonForced)
	}
	target := layout.Detect(f.Corrected)
	if !target.Valid() {
		target = in.cand.Target()
	}
	return Decision{
		Verdict:   Convert,
		Target:    target,
		Converted: MatchCase(in.cand.Core, f.Corrected) + in.cand.Trailing,
		Reason:    ReasonForced,
	}
}

func (v *Validator) dictionary(in *input) Decision {
	if !in.haveDict {
		return escalate(LayerDictionary)
	}
	convKnown := in.convKnown || in.convBuzzword
	switch {
	case convKnown && !in.rawKnown:
		if in.convBuzzword && !in.convKnown {
			return in.convert(ReasonBuzzwordRestore)
		}
		return in.convert(ReasonDictionary)
	case in.rawKnown && !convKnown:
		return keep(LayerDictionary, ReasonDictionary)
	}
	return escalate(LayerDictionary)
}

func (v *Validator) mixed(in *input) Decision {
	c := in.cand
	if c.Class != layout.ClassPartialMixed {
		return escalate(LayerMixed)
	}
	if v.deps.Dictionary == nil {
		return escalate(LayerMixed)
	}
	// prefer the script that already has more letters
	order := []layout.Layout{layout.Russian, layout.English}
	if layout.Dominant(c.Core) == layout.English {
		order = []layout.Layout{layout.English, layout.Russian}
	}
	for _, target := range order {
		repaired := layout.ConvertScript(c.Core, target)
		if v.deps.Dictionary.Contains(repaired, target) || v.deps.Buzzwords.Contains(repaired) {
			return Decision{
				Verdict:   Convert,
				Target:    target,
				Converted: repaired + c.Trailing,
				Reason:    ReasonMixedRepair,
			}
		}
	}
	return escalate(LayerMixed)
}

func (v *Validator) context(in *input) Decision {
	if !in.deterministic || !in.majority.Valid() {
		return escalate(LayerContext)
	}
	if in.rawKnown && (in.convKnown || in.convBuzzword) {
		return escalate(LayerContext)
	}
	margin := in.cfg.NgramMargin
	switch in.majority {
	case in.cand.Target():
		if in.ngramReady && in.ngramDiff > margin {
			return escalate(LayerContext)
		}
		return in.convert(ReasonContext)
	case in.cand.Layout:
		if in.ngramReady && in.ngramDiff < -margin {
			return escalate(LayerContext)
		}
		return keep(LayerContext, ReasonContext)
	}
	return escalate(LayerContext)
}

func (v *Validator) ngram(in *input) Decision {
	if !in.ngramReady || in.cand.Len() < in.cfg.NgramMinLength {
		return escalate(LayerNgram)
	}
	if in.rawKnown && in.convKnown {
		return escalate(LayerNgram)
	}
	margin := in.cfg.NgramMargin
	switch {
	case in.ngramDiff < -margin:
		return in.convert(ReasonNgram)
	case in.ngramDiff > margin:
		return keep(LayerNgram, ReasonNgram)
	}
	return escalate(LayerNgram)
}

func (v *Validator) spell(in *input) Decision {
	if !in.spellReady || (in.rawKnown && in.convKnown) {
		return escalate(LayerSpell)
	}
	switch {
	case in.spellConv && !in.spellRaw:
		return in.convert(ReasonSpell)
	case in.spellRaw && !in.spellConv:
		return keep(LayerSpell, ReasonSpell)
	}
	return escalate(LayerSpell)
}

func (v *Validator) fallback(in *input) Decision {
	if in.deterministic && in.majority.Valid() && in.majority == in.cand.Target() {
		return in.convert(ReasonHomographContext)
	}
	return keep(LayerFallback, ReasonDefault)
}

// MatchCase adapts a stored correction to the case of the typed word: an
// all-caps word gets an all-caps correction, anything else keeps the stored
// text.
func MatchCase(typed, corrected string) string {
	letters, upper := 0, 0
	for _, r := range typed {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters > 1 && upper == letters {
		return strings.ToUpper(corrected)
	}
	return corrected
}
