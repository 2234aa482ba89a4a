// Package ngram scores how plausible a word is in each layout's language
// using character bigram and trigram log-probabilities.
package ngram

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"
	"unicode/utf8"

	"textswitcher/internal/layout"
)

// DefaultPenalty is the log-probability charged for an n-gram the model has
// never seen.
const DefaultPenalty = -12.0

// ResourceLoadError reports an n-gram table that could not be read. The
// scorer built without it stays unavailable.
type ResourceLoadError struct {
	Resource string
	Err      error
}

func (e *ResourceLoadError) Error() string {
	return fmt.Sprintf("ngram: load %s: %v", e.Resource, e.Err)
}

func (e *ResourceLoadError) Unwrap() error { return e.Err }

// Model maps n-grams of one language to log-probabilities. It is immutable
// once built.
type Model struct {
	bigrams  map[string]float64
	trigrams map[string]float64
}

// NewModel builds a model from probability tables. Values in (0,1] are
// probabilities and are converted to natural logs; values <= 0 are taken as
// log-probabilities already. Anything else is dropped.
func NewModel(bigrams, trigrams map[string]float64) *Model {
	return &Model{
		bigrams:  toLog(bigrams),
		trigrams: toLog(trigrams),
	}
}

func toLog(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		k = strings.ToLower(k)
		switch {
		case v > 0 && v <= 1:
			out[k] = math.Log(v)
		case v <= 0:
			out[k] = v
		}
	}
	return out
}

// Sizes returns the number of bigrams and trigrams in the model.
func (m *Model) Sizes() (bigrams, trigrams int) {
	if m == nil {
		return 0, 0
	}
	return len(m.bigrams), len(m.trigrams)
}

// Paths locates the four JSON tables.
type Paths struct {
	EnglishBigrams  string `toml:"en_bigrams" json:"en_bigrams" yaml:"en_bigrams"`
	EnglishTrigrams string `toml:"en_trigrams" json:"en_trigrams" yaml:"en_trigrams"`
	RussianBigrams  string `toml:"ru_bigrams" json:"ru_bigrams" yaml:"ru_bigrams"`
	RussianTrigrams string `toml:"ru_trigrams" json:"ru_trigrams" yaml:"ru_trigrams"`
}

// Empty reports whether no table is configured.
func (p Paths) Empty() bool {
	return p.EnglishBigrams == "" && p.EnglishTrigrams == "" &&
		p.RussianBigrams == "" && p.RussianTrigrams == ""
}

// LoadModels reads the configured tables. Each file is a flat JSON object
// of n-gram to probability. Any failure is returned as a ResourceLoadError.
func LoadModels(p Paths) (map[layout.Layout]*Model, error) {
	en, err := loadPair(p.EnglishBigrams, p.EnglishTrigrams)
	if err != nil {
		return nil, err
	}
	ru, err := loadPair(p.RussianBigrams, p.RussianTrigrams)
	if err != nil {
		return nil, err
	}
	return map[layout.Layout]*Model{layout.English: en, layout.Russian: ru}, nil
}

func loadPair(bigramPath, trigramPath string) (*Model, error) {
	bi, err := loadTable(bigramPath)
	if err != nil {
		return nil, err
	}
	tri, err := loadTable(trigramPath)
	if err != nil {
		return nil, err
	}
	return NewModel(bi, tri), nil
}

func loadTable(path string) (map[string]float64, error) {
	if path == "" {
		return nil, &ResourceLoadError{Resource: "(unset)", Err: os.ErrNotExist}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ResourceLoadError{Resource: path, Err: err}
	}
	var table map[string]float64
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, &ResourceLoadError{Resource: path, Err: err}
	}
	if len(table) == 0 {
		return nil, &ResourceLoadError{Resource: path, Err: fmt.Errorf("empty table")}
	}
	return table, nil
}

// Train builds a model from a frequency-ordered word list. Word i (0-based)
// contributes with Zipf weight 1/(i+1).
func Train(words []string) *Model {
	bi := map[string]float64{}
	tri := map[string]float64{}
	var biTotal, triTotal float64
	for i, w := range words {
		weight := 1 / float64(i+1)
		rs := []rune(strings.ToLower(w))
		for j := 0; j+1 < len(rs); j++ {
			bi[string(rs[j:j+2])] += weight
			biTotal += weight
		}
		for j := 0; j+2 < len(rs); j++ {
			tri[string(rs[j:j+3])] += weight
			triTotal += weight
		}
	}
	m := &Model{
		bigrams:  make(map[string]float64, len(bi)),
		trigrams: make(map[string]float64, len(tri)),
	}
	for k, v := range bi {
		m.bigrams[k] = math.Log(v / biTotal)
	}
	for k, v := range tri {
		m.trigrams[k] = math.Log(v / triTotal)
	}
	return m
}

// Scorer compares words across the two layouts' models.
type Scorer struct {
	models  map[layout.Layout]*Model
	penalty float64
}

// NewScorer returns a scorer over models. A zero penalty selects
// DefaultPenalty.
func NewScorer(models map[layout.Layout]*Model, penalty float64) *Scorer {
	if penalty == 0 {
		penalty = DefaultPenalty
	}
	return &Scorer{models: models, penalty: penalty}
}

// Available reports whether both layouts have a model.
func (s *Scorer) Available() bool {
	return s != nil && s.models[layout.English] != nil && s.models[layout.Russian] != nil
}

// Penalty returns the unseen n-gram penalty.
func (s *Scorer) Penalty() float64 {
	return s.penalty
}

// Score sums the bigram log-probabilities of word under l's model and, for
// words of three or more letters, the trigram log-probabilities too.
func (s *Scorer) Score(word string, l layout.Layout) float64 {
	if !s.Available() {
		return 0
	}
	m := s.models[l]
	if m == nil {
		return 0
	}
	rs := []rune(strings.ToLower(word))
	var total float64
	for i := 0; i+1 < len(rs); i++ {
		total += s.lookup(m.bigrams, string(rs[i:i+2]))
	}
	if len(rs) >= 3 {
		for i := 0; i+2 < len(rs); i++ {
			total += s.lookup(m.trigrams, string(rs[i:i+3]))
		}
	}
	return total
}

func (s *Scorer) lookup(table map[string]float64, gram string) float64 {
	if lp, ok := table[gram]; ok {
		return lp
	}
	return s.penalty
}

// Compare returns Score(word, from) - Score(converted, to). A positive
// result favours the word as typed; a negative one favours the conversion.
func (s *Scorer) Compare(word string, from layout.Layout, converted string, to layout.Layout) float64 {
	return s.Score(word, from) - s.Score(converted, to)
}

// PerGram returns the mean log-probability per n-gram, which makes scores
// of words with different lengths comparable in diagnostics.
func (s *Scorer) PerGram(word string, l layout.Layout) float64 {
	n := utf8.RuneCountInString(word)
	grams := n - 1
	if n >= 3 {
		grams += n - 2
	}
	if grams <= 0 {
		return 0
	}
	return s.Score(word, l) / float64(grams)
}
