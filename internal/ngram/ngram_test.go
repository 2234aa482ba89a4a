package ngram

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textswitcher/internal/dictionary"
	"textswitcher/internal/layout"
)

func bundledScorer() *Scorer {
	d := dictionary.Bundled()
	return NewScorer(map[layout.Layout]*Model{
		layout.English: Train(d.Words(layout.English)),
		layout.Russian: Train(d.Words(layout.Russian)),
	}, DefaultPenalty)
}

func TestCompareFavoursRealWords(t *testing.T) {
	s := bundledScorer()
	require.True(t, s.Available())

	tests := []struct {
		word      string
		from      layout.Layout
		converted string
		convert   bool
	}{
		{"ghbdtn", layout.English, "привет", true},
		{"hello", layout.English, "руддщ", false},
		{"руддщ", layout.Russian, "hello", true},
		{"привет", layout.Russian, "ghbdtn", false},
		{"ntrcn", layout.English, "текст", true},
	}
	for _, tt := range tests {
		diff := s.Compare(tt.word, tt.from, tt.converted, tt.from.Opposite())
		if tt.convert && diff >= 0 {
			t.Errorf("Compare(%q, %q) = %.2f, want negative", tt.word, tt.converted, diff)
		}
		if !tt.convert && diff <= 0 {
			t.Errorf("Compare(%q, %q) = %.2f, want positive", tt.word, tt.converted, diff)
		}
	}
}

func TestScoreUnseenUsesPenalty(t *testing.T) {
	m := NewModel(map[string]float64{"ab": 0.5}, map[string]float64{})
	s := NewScorer(map[layout.Layout]*Model{layout.English: m, layout.Russian: m}, -10)

	assert.InDelta(t, math.Log(0.5), s.Score("ab", layout.English), 1e-9)
	// "abc": bigrams ab + bc(unseen), trigram abc(unseen)
	assert.InDelta(t, math.Log(0.5)-20, s.Score("abc", layout.English), 1e-9)
	assert.Equal(t, 0.0, s.Score("a", layout.English))
	assert.InDelta(t, math.Log(0.5), s.Score("AB", layout.English), 1e-9, "scoring is case-insensitive")
}

func TestNewModelAcceptsLogValues(t *testing.T) {
	m := NewModel(map[string]float64{"ab": -3.5, "cd": 0.25, "ef": 7}, nil)
	bi, tri := m.Sizes()
	assert.Equal(t, 2, bi)
	assert.Equal(t, 0, tri)
	assert.Equal(t, -3.5, m.bigrams["ab"])
	assert.InDelta(t, math.Log(0.25), m.bigrams["cd"], 1e-9)
}

func TestScorerUnavailable(t *testing.T) {
	s := NewScorer(map[layout.Layout]*Model{layout.English: Train([]string{"test"})}, 0)
	assert.False(t, s.Available())
	assert.Equal(t, DefaultPenalty, s.Penalty())
	assert.Equal(t, 0.0, s.Score("test", layout.English))

	var nilScorer *Scorer
	assert.False(t, nilScorer.Available())
}

func TestLoadModels(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0600))
		return p
	}
	paths := Paths{
		EnglishBigrams:  write("en_bi.json", `{"th": 0.03, "he": 0.025}`),
		EnglishTrigrams: write("en_tri.json", `{"the": 0.02}`),
		RussianBigrams:  write("ru_bi.json", `{"то": 0.0153}`),
		RussianTrigrams: write("ru_tri.json", `{"что": 0.01}`),
	}
	models, err := LoadModels(paths)
	require.NoError(t, err)

	s := NewScorer(models, DefaultPenalty)
	assert.InDelta(t, math.Log(0.03)+math.Log(0.025)+math.Log(0.02), s.Score("the", layout.English), 1e-9)

	paths.RussianTrigrams = filepath.Join(dir, "missing.json")
	_, err = LoadModels(paths)
	var rle *ResourceLoadError
	require.True(t, errors.As(err, &rle))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	paths.RussianTrigrams = write("bad.json", `{"что": "x"}`)
	_, err = LoadModels(paths)
	assert.ErrorAs(t, err, &rle)

	assert.False(t, paths.Empty())
	assert.True(t, Paths{}.Empty())
}

func TestPerGram(t *testing.T) {
	m := NewModel(map[string]float64{"ab": -2, "bc": -2}, map[string]float64{"abc": -2})
	s := NewScorer(map[layout.Layout]*Model{layout.English: m, layout.Russian: m}, -10)
	assert.InDelta(t, -2.0, s.PerGram("abc", layout.English), 1e-9)
	assert.Equal(t, 0.0, s.PerGram("a", layout.English))
}
