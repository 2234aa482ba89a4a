// Package journal keeps a history of corrections in SQLite.
//
// Writes from the key event path go through Record, which never blocks:
// entries are queued to a writer goroutine and dropped when the queue is
// full. Reads and maintenance run directly against the database.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Entry kinds.
const (
	KindAuto   = "auto"
	KindManual = "manual"
	KindUndo   = "undo"
	KindAbort  = "abort"
)

// DefaultBuffer is the capacity of the write queue.
const DefaultBuffer = 256

// ErrClosed is returned by operations on a closed journal.
var ErrClosed = errors.New("journal: closed")

// Entry is one journaled correction.
type Entry struct {
	ID          string
	Kind        string
	Original    string
	Replacement string
	Layer       string
	Reason      string
	Error       string
	CreatedAt   time.Time
}

// Stats summarises the journal.
type Stats struct {
	Total  int
	ByKind map[string]int
	First  time.Time
	Last   time.Time
}

// Options configures a Journal.
type Options struct {
	// Buffer bounds the queue between Record and the writer.
	Buffer int
	Logger *slog.Logger
}

type request struct {
	entry Entry
	flush chan struct{}
}

// Journal is the correction history store.
type Journal struct {
	db      *sql.DB
	logger  *slog.Logger
	queue   chan request
	done    chan struct{}
	closed  atomic.Bool
	dropped atomic.Uint64
	mu      sync.RWMutex
}

// Open opens or creates the database at path, runs migrations and starts
// the writer.
func Open(path string, opts Options) (*Journal, error) {
	if opts.Buffer <= 0 {
		opts.Buffer = DefaultBuffer
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := MigrateDB(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	j := &Journal{
		db:     db,
		logger: opts.Logger.With("component", "journal"),
		queue:  make(chan request, opts.Buffer),
		done:   make(chan struct{}),
	}
	go j.writeLoop()
	return j, nil
}

// Record queues e for writing and reports whether it was accepted. ID and
// CreatedAt are filled in when empty.
func (j *Journal) Record(e Entry) bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed.Load() {
		return false
	}
	select {
	case j.queue <- request{entry: e}:
		return true
	default:
		j.dropped.Add(1)
		return false
	}
}

// Dropped returns how many entries Record discarded.
func (j *Journal) Dropped() uint64 {
	return j.dropped.Load()
}

// Flush waits until every entry recorded before the call is written.
func (j *Journal) Flush(ctx context.Context) error {
	flushed := make(chan struct{})
	j.mu.RLock()
	if j.closed.Load() {
		j.mu.RUnlock()
		return ErrClosed
	}
	select {
	case j.queue <- request{flush: flushed}:
	case <-ctx.Done():
		j.mu.RUnlock()
		return ctx.Err()
	}
	j.mu.RUnlock()

	select {
	case <-flushed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *Journal) writeLoop() {
	defer close(j.done)
	for req := range j.queue {
		if req.flush != nil {
			close(req.flush)
			continue
		}
		if err := j.Insert(req.entry); err != nil {
			j.logger.Warn("write entry", "kind", req.entry.Kind, "error", err)
		}
	}
}

// Insert writes e synchronously.
func (j *Journal) Insert(e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	_, err := j.db.Exec(`
		INSERT INTO corrections (id, kind, original, replacement, layer, reason, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Kind, e.Original, e.Replacement, nullString(e.Layer), nullString(e.Reason), nullString(e.Error), e.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert correction: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. A non-empty kind
// filters by kind.
func (j *Journal) Recent(limit int, kind string) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, kind, original, replacement, layer, reason, error, created_at
		FROM corrections`
	args := []any{}
	if kind != "" {
		query += " WHERE kind = ?"
		args = append(args, kind)
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query corrections: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var layer, reason, errText sql.NullString
		var created int64
		if err := rows.Scan(&e.ID, &e.Kind, &e.Original, &e.Replacement, &layer, &reason, &errText, &created); err != nil {
			return nil, fmt.Errorf("scan correction: %w", err)
		}
		e.Layer = layer.String
		e.Reason = reason.String
		e.Error = errText.String
		e.CreatedAt = time.Unix(0, created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats counts entries by kind.
func (j *Journal) Stats() (Stats, error) {
	s := Stats{ByKind: map[string]int{}}

	rows, err := j.db.Query("SELECT kind, COUNT(*) FROM corrections GROUP BY kind")
	if err != nil {
		return s, fmt.Errorf("count corrections: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return s, fmt.Errorf("scan count: %w", err)
		}
		s.ByKind[kind] = n
		s.Total += n
	}
	if err := rows.Err(); err != nil {
		return s, err
	}
	if s.Total == 0 {
		return s, nil
	}

	var first, last int64
	if err := j.db.QueryRow("SELECT MIN(created_at), MAX(created_at) FROM corrections").Scan(&first, &last); err != nil {
		return s, fmt.Errorf("time range: %w", err)
	}
	s.First = time.Unix(0, first)
	s.Last = time.Unix(0, last)
	return s, nil
}

// Prune deletes entries created before cutoff and returns how many were
// removed.
func (j *Journal) Prune(cutoff time.Time) (int64, error) {
	res, err := j.db.Exec("DELETE FROM corrections WHERE created_at < ?", cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune corrections: %w", err)
	}
	return res.RowsAffected()
}

// Ping checks that the database still answers.
func (j *Journal) Ping(ctx context.Context) error {
	if j.closed.Load() {
		return ErrClosed
	}
	return j.db.PingContext(ctx)
}

// Close drains the queue and closes the database.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed.Swap(true) {
		j.mu.Unlock()
		return nil
	}
	close(j.queue)
	j.mu.Unlock()

	<-j.done
	return j.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
