package dictionary

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"textswitcher/internal/layout"
)

func TestBundled(t *testing.T) {
	d := Bundled()

	assert.True(t, d.Contains("привет", layout.Russian))
	assert.True(t, d.Contains("Привет", layout.Russian))
	assert.True(t, d.Contains("мир", layout.Russian))
	assert.True(t, d.Contains("hello", layout.English))
	assert.False(t, d.Contains("ghbdtn", layout.English))
	assert.False(t, d.Contains("hello", layout.Russian))

	rank, ok := d.Rank("the", layout.English)
	require.True(t, ok)
	assert.Equal(t, 1, rank)
	assert.Greater(t, d.Len(layout.Russian), 300)
	assert.Equal(t, "и", d.Words(layout.Russian)[0])
}

func TestNormalizeFoldsYo(t *testing.T) {
	assert.Equal(t, "еще", Normalize("ЕЩЁ"))
	assert.True(t, Bundled().Contains("её", layout.Russian))
}

func TestLoadCustomList(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ru.txt")
	content := "# comment\n    1→кот\n2 пёс\nрыба\n\nкот\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	d, err := Load(map[layout.Layout]string{layout.Russian: path})
	require.NoError(t, err)
	assert.Equal(t, []string{"кот", "пес", "рыба"}, d.Words(layout.Russian))
	assert.True(t, d.Contains("hello", layout.English), "english falls back to bundled list")

	_, err = Load(map[layout.Layout]string{layout.English: filepath.Join(dir, "missing.txt")})
	assert.Error(t, err)
}

func TestShortWords(t *testing.T) {
	assert.True(t, IsSingleLetterWord("в", layout.Russian))
	assert.True(t, IsSingleLetterWord("I", layout.English))
	assert.False(t, IsSingleLetterWord("d", layout.English))
	assert.True(t, IsShortWord("ok", layout.English))
	assert.True(t, IsShortWord("Ещё", layout.Russian))
	assert.False(t, IsShortWord("yf", layout.English))
}

func TestNilDictionary(t *testing.T) {
	var d *Dictionary
	assert.False(t, d.Contains("x", layout.English))
	assert.Nil(t, d.Words(layout.English))
}

// ============================================================================
// Hunspell
// ============================================================================

func TestHunspellUTF8(t *testing.T) {
	dir := t.TempDir()
	dic := filepath.Join(dir, "en_US.dic")
	require.NoError(t, os.WriteFile(dic, []byte("3\nkubernetes/M\nzebra\tpo:noun\nworld/S\n"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "en_US.aff"), []byte("SET UTF-8\n"), 0600))

	h, err := LoadHunspell(map[layout.Layout]string{layout.English: dic, layout.Russian: filepath.Join(dir, "none.dic")})
	require.Error(t, err, "missing russian dictionary is reported")
	require.NotNil(t, h)

	assert.True(t, h.Check("Kubernetes", layout.English))
	assert.True(t, h.Check("zebra", layout.English))
	assert.False(t, h.Check("3", layout.English))
	assert.True(t, h.Has(layout.English))
	assert.False(t, h.Has(layout.Russian))
}

func TestHunspellKOI8(t *testing.T) {
	dir := t.TempDir()
	encoded, err := charmap.KOI8R.NewEncoder().String("2\nкарандаш/AB\nтетрадь\n")
	require.NoError(t, err)
	dic := filepath.Join(dir, "ru_RU.dic")
	require.NoError(t, os.WriteFile(dic, []byte(encoded), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ru_RU.aff"), []byte("SET KOI8-R\nTRY оеа\n"), 0600))

	h, err := LoadHunspell(map[layout.Layout]string{layout.Russian: dic, layout.English: filepath.Join(dir, "x.dic")})
	require.NotNil(t, h)
	assert.Error(t, err)
	assert.True(t, h.Check("карандаш", layout.Russian))
	assert.True(t, h.Check("Тетрадь", layout.Russian))
}

func TestHunspellNothingLoaded(t *testing.T) {
	dir := t.TempDir()
	h, err := LoadHunspell(map[layout.Layout]string{
		layout.English: filepath.Join(dir, "a.dic"),
		layout.Russian: filepath.Join(dir, "b.dic"),
	})
	assert.Nil(t, h)
	assert.Error(t, err)

	var nilChecker *Hunspell
	assert.False(t, nilChecker.Check("word", layout.English))
}
