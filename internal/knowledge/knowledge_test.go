package knowledge

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSync(t *testing.T, dir string) *Store {
	t.Helper()
	s, err := Open(Options{Dir: dir, Sync: true})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// ============================================================================
// Buzzwords
// ============================================================================

func TestBundledBuzzwords(t *testing.T) {
	b := BundledBuzzwords()
	for _, term := range []string{"docker", "Docker", "react-native", "node.js", "c++", "ci/cd", "kubernetes"} {
		assert.True(t, b.Contains(term), term)
	}
	assert.True(t, b.Contains("docker,"), "trailing punctuation is ignored")
	assert.True(t, b.Contains("(kubernetes)"))
	assert.True(t, b.Contains("docker-kubernetes"), "compound of known parts")
	assert.False(t, b.Contains("react-blah"))
	assert.False(t, b.Contains("привет"))
	assert.False(t, b.Contains("вщслук"))
	assert.Greater(t, b.Compounds(), 5)
	assert.Equal(t, b.Len(), len(b.Terms()))

	c, ok := b.Lookup("PostgreSQL")
	require.True(t, ok)
	assert.Equal(t, "data", c)
}

func TestLoadBuzzwords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "b.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"x": ["Foo-Bar", "baz"]}`), 0600))
	b, err := LoadBuzzwords(path)
	require.NoError(t, err)
	assert.True(t, b.Contains("foo-bar"))
	assert.Equal(t, 1, b.Compounds())

	_, err = LoadBuzzwords(filepath.Join(dir, "missing.json"))
	var rle *ResourceLoadError
	assert.True(t, errors.As(err, &rle))

	var nilSet *Buzzwords
	assert.False(t, nilSet.Contains("docker"))
}

// ============================================================================
// Exceptions
// ============================================================================

func TestExceptionsCaseInsensitive(t *testing.T) {
	s := openSync(t, t.TempDir())

	e, created, err := s.AddException("GhBdTn", ReasonUndo)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "GhBdTn", e.Word, "original case is kept")
	assert.NotEmpty(t, e.ID)

	assert.True(t, s.IsException("ghbdtn"))
	assert.True(t, s.IsException("GHBDTN"))

	_, created, err = s.AddException("ghbdtn", ReasonManual)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Len(t, s.Exceptions(), 1)

	assert.True(t, s.RemoveException("GHBDTN"))
	assert.False(t, s.IsException("ghbdtn"))
	assert.False(t, s.RemoveException("ghbdtn"))

	_, _, err = s.AddException("   ", "")
	assert.Error(t, err)
}

func TestExceptionsPersistAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(Options{Dir: dir})
	require.NoError(t, err)
	_, _, err = s.AddException("Vfif", ReasonManual)
	require.NoError(t, err)
	_, err = s.ConfirmForced("ntrcn", "текст")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened := openSync(t, dir)
	assert.True(t, reopened.IsException("vfif"))
	f, ok := reopened.Forced("NTRCN")
	require.True(t, ok)
	assert.Equal(t, "текст", f.Corrected)
	assert.Equal(t, 1, f.ConfirmationCount)
	assert.Empty(t, reopened.LoadErrors())

	data, err := os.ReadFile(filepath.Join(dir, "exceptions.json"))
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, float64(DocumentVersion), doc["version"])
}

// ============================================================================
// Forced conversions
// ============================================================================

func TestForcedConfirmationAndPromotion(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s, err := Open(Options{Dir: t.TempDir(), Sync: true, Now: func() time.Time { return now }})
	require.NoError(t, err)
	defer s.Close()

	var f ForcedConversion
	for i := 1; i <= 3; i++ {
		f, err = s.ConfirmForced("Ghbdtn", "Привет")
		require.NoError(t, err)
		assert.Equal(t, i, f.ConfirmationCount)
	}
	assert.True(t, s.IsHard(f))

	_, err = s.ConfirmForced("vbh", "мир")
	require.NoError(t, err)

	now = now.Add(90 * 24 * time.Hour)
	removed := s.Prune(30 * 24 * time.Hour)
	assert.Equal(t, 1, removed)

	_, ok := s.Forced("ghbdtn")
	assert.True(t, ok, "hard knowledge survives pruning")
	_, ok = s.Forced("vbh")
	assert.False(t, ok)

	list := s.ForcedConversions()
	require.Len(t, list, 1)
	assert.Equal(t, "Привет", list[0].Corrected)

	assert.True(t, s.RemoveForced("GHBDTN"))
	assert.Empty(t, s.ForcedConversions())
}

// ============================================================================
// Migration and validation
// ============================================================================

func TestMigratesVersionOneDocuments(t *testing.T) {
	dir := t.TempDir()
	v1Exceptions := `["ghbdtn", {"word": "vfif", "timestamp": 1700000000, "future": true}]`
	v1Forced := `[{"original": "ntrcn", "corrected": "текст", "count": 4}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "exceptions.json"), []byte(v1Exceptions), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "forced_conversions.json"), []byte(v1Forced), 0600))

	s := openSync(t, dir)
	require.Empty(t, s.LoadErrors())
	assert.True(t, s.IsException("ghbdtn"))
	assert.True(t, s.IsException("vfif"))

	f, ok := s.Forced("ntrcn")
	require.True(t, ok)
	assert.Equal(t, 4, f.ConfirmationCount)
	assert.True(t, s.IsHard(f))
	assert.NotEmpty(t, f.ID)

	// migrated documents are rewritten at the current version
	data, err := os.ReadFile(filepath.Join(dir, "forced_conversions.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"version": 2`)
	assert.Contains(t, string(data), `"confirmationCount": 4`)
	assert.False(t, s.Dirty())
}

func TestToleratesUnknownFields(t *testing.T) {
	dir := t.TempDir()
	doc := `{"version": 2, "exceptions": [{"id": "a", "word": "Lfyyst", "timestamp": "2025-01-01T00:00:00Z", "reason": "manual", "color": "blue"}], "extra": {}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "exceptions.json"), []byte(doc), 0600))

	s := openSync(t, dir)
	assert.Empty(t, s.LoadErrors())
	assert.True(t, s.IsException("lfyyst"))
}

func TestCorruptDocumentIsMovedAside(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "exceptions.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 2, "exceptions": [{"reason": "no word"}]}`), 0600))

	s := openSync(t, dir)
	errs := s.LoadErrors()
	require.Len(t, errs, 1)
	var rle *ResourceLoadError
	assert.True(t, errors.As(errs[0], &rle))
	assert.Empty(t, s.Exceptions())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	found := false
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "exceptions.json.corrupt-") {
			found = true
		}
	}
	assert.True(t, found, "corrupt document preserved")

	_, ok := s.Forced("anything")
	assert.False(t, ok, "other collection unaffected")
}

// ============================================================================
// Persistence failures
// ============================================================================

func TestPersistenceErrorRetriedOnNextMutation(t *testing.T) {
	dir := t.TempDir()
	blocked := filepath.Join(dir, "blocked")
	require.NoError(t, os.WriteFile(blocked, []byte("file, not a dir"), 0600))

	var results []error
	s, err := Open(Options{
		ExceptionsPath: filepath.Join(dir, "ok", "exceptions.json"),
		ForcedPath:     filepath.Join(dir, "ok", "forced.json"),
		Sync:           true,
		OnPersist:      func(err error) { results = append(results, err) },
	})
	require.NoError(t, err)
	defer s.Close()

	// point the exceptions document at an impossible location
	s.exceptionsPath = filepath.Join(blocked, "exceptions.json")
	_, _, err = s.AddException("ghbdtn", ReasonManual)
	require.NoError(t, err, "mutation succeeds even when the write fails")
	require.NotEmpty(t, results)
	var pe *PersistenceError
	assert.True(t, errors.As(results[len(results)-1], &pe))
	assert.True(t, s.Dirty())
	assert.True(t, s.IsException("ghbdtn"))

	s.exceptionsPath = filepath.Join(dir, "ok", "exceptions.json")
	_, _, err = s.AddException("vbh", ReasonManual)
	require.NoError(t, err)
	assert.NoError(t, s.LastError())
	assert.False(t, s.Dirty())

	data, err := os.ReadFile(s.exceptionsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ghbdtn", "earlier failed change written with the retry")
}

func TestAsyncWriterFlushesOnClose(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(Options{Dir: dir})
	require.NoError(t, err)
	for _, w := range []string{"one", "two", "three"} {
		_, _, err := s.AddException(w, ReasonManual)
		require.NoError(t, err)
	}
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "close is idempotent")

	// mutations after close are written inline
	_, _, err = s.AddException("four", ReasonManual)
	require.NoError(t, err)

	reopened := openSync(t, dir)
	assert.Len(t, reopened.Exceptions(), 4)
}
