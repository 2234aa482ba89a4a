package journal

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) (*Journal, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "journal.db")
	j, err := Open(path, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j, path
}

func TestOpenMigrates(t *testing.T) {
	j, _ := openTest(t)

	v, err := SchemaVersion(j.db)
	require.NoError(t, err)
	assert.Equal(t, LatestVersion(), v)

	// Running migrations again is a no-op.
	require.NoError(t, MigrateDB(j.db))
	v, err = SchemaVersion(j.db)
	require.NoError(t, err)
	assert.Equal(t, LatestVersion(), v)
}

func TestMigrateFromV1(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)

	_, err = db.Exec(`CREATE TABLE schema_migrations (version INTEGER PRIMARY KEY, applied_at INTEGER NOT NULL, description TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(migrationV1Up)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO schema_migrations VALUES (1, 0, 'v1')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO corrections (id, kind, original, replacement, created_at) VALUES ('a', 'auto', 'ghbdtn', 'привет', 1)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	j, err := Open(path, Options{})
	require.NoError(t, err)
	defer j.Close()

	entries, err := j.Recent(10, "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "привет", entries[0].Replacement)
	assert.Empty(t, entries[0].Error)
}

// =============================================================================
// Writing
// =============================================================================

func TestInsertAndRecent(t *testing.T) {
	j, _ := openTest(t)
	base := time.Now().Add(-time.Minute)

	require.NoError(t, j.Insert(Entry{Kind: KindAuto, Original: "ghbdtn", Replacement: "привет", Layer: "dictionary", CreatedAt: base}))
	require.NoError(t, j.Insert(Entry{Kind: KindManual, Original: "ntcn", Replacement: "тест", CreatedAt: base.Add(time.Second)}))
	require.NoError(t, j.Insert(Entry{Kind: KindAbort, Original: "rfr", Replacement: "как", Error: "paste failed", CreatedAt: base.Add(2 * time.Second)}))

	entries, err := j.Recent(10, "")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, KindAbort, entries[0].Kind)
	assert.Equal(t, "paste failed", entries[0].Error)
	assert.Equal(t, KindAuto, entries[2].Kind)
	assert.Equal(t, "dictionary", entries[2].Layer)
	assert.NotEmpty(t, entries[2].ID)
	assert.Equal(t, base.UnixNano(), entries[2].CreatedAt.UnixNano())

	manual, err := j.Recent(10, KindManual)
	require.NoError(t, err)
	require.Len(t, manual, 1)
	assert.Equal(t, "тест", manual[0].Replacement)

	limited, err := j.Recent(2, "")
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestRecordAndFlush(t *testing.T) {
	j, _ := openTest(t)

	for i := 0; i < 5; i++ {
		assert.True(t, j.Record(Entry{Kind: KindAuto, Original: "ghbdtn", Replacement: "привет"}))
	}
	require.NoError(t, j.Flush(context.Background()))

	entries, err := j.Recent(0, "")
	require.NoError(t, err)
	assert.Len(t, entries, 5)
	assert.Zero(t, j.Dropped())
}

func TestCloseDrainsQueue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path, Options{})
	require.NoError(t, err)

	j.Record(Entry{Kind: KindUndo, Original: "ghbdtn", Replacement: "привет"})
	require.NoError(t, j.Close())
	require.NoError(t, j.Close())

	assert.False(t, j.Record(Entry{Kind: KindAuto}))
	assert.ErrorIs(t, j.Flush(context.Background()), ErrClosed)

	reopened, err := Open(path, Options{})
	require.NoError(t, err)
	defer reopened.Close()

	entries, err := reopened.Recent(10, "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, KindUndo, entries[0].Kind)
}

// =============================================================================
// Maintenance
// =============================================================================

func TestStats(t *testing.T) {
	j, _ := openTest(t)

	empty, err := j.Stats()
	require.NoError(t, err)
	assert.Zero(t, empty.Total)

	now := time.Now()
	require.NoError(t, j.Insert(Entry{Kind: KindAuto, Original: "a", Replacement: "ф", CreatedAt: now.Add(-time.Hour)}))
	require.NoError(t, j.Insert(Entry{Kind: KindAuto, Original: "b", Replacement: "и", CreatedAt: now}))
	require.NoError(t, j.Insert(Entry{Kind: KindUndo, Original: "b", Replacement: "и", CreatedAt: now}))

	s, err := j.Stats()
	require.NoError(t, err)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.ByKind[KindAuto])
	assert.Equal(t, 1, s.ByKind[KindUndo])
	assert.Equal(t, now.Add(-time.Hour).UnixNano(), s.First.UnixNano())
	assert.Equal(t, now.UnixNano(), s.Last.UnixNano())
}

func TestPrune(t *testing.T) {
	j, _ := openTest(t)

	now := time.Now()
	require.NoError(t, j.Insert(Entry{Kind: KindAuto, Original: "old", Replacement: "щдв", CreatedAt: now.AddDate(0, 0, -100)}))
	require.NoError(t, j.Insert(Entry{Kind: KindAuto, Original: "new", Replacement: "туц", CreatedAt: now}))

	n, err := j.Prune(now.AddDate(0, 0, -90))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	entries, err := j.Recent(10, "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "new", entries[0].Original)
}
