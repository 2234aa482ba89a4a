// Package knowledge holds what the corrector knows beyond statistics: the
// bundled domain vocabulary, words the user never wants corrected, and
// corrections the user made by hand.
//
// Exceptions and forced conversions are small versioned JSON documents in
// the user's data directory. They are loaded once at startup and rewritten
// in the background after every mutation.
package knowledge

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"
)

// DefaultHardThreshold is the confirmation count at which a forced
// conversion becomes permanent.
const DefaultHardThreshold = 3

// Options configures a Store.
type Options struct {
	// Dir holds both documents unless explicit paths are given. Empty
	// selects the platform data directory.
	Dir            string
	ExceptionsPath string
	ForcedPath     string

	HardThreshold int

	// Sync writes documents inline with each mutation instead of on the
	// background writer.
	Sync bool

	// OnPersist is called after every write attempt with its result.
	OnPersist func(error)

	Logger *slog.Logger
	Now    func() time.Time
}

// Store is safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	exceptions map[string]Exception
	forced     map[string]ForcedConversion

	exceptionsPath string
	forcedPath     string
	hardThreshold  int
	sync           bool
	logger         *slog.Logger
	now            func() time.Time

	writeMu     sync.Mutex
	dirty       map[docKind]bool
	lastErr     error
	loadErrs    []error
	signal      chan struct{}
	done        chan struct{}
	closed      bool
	closeOnce   sync.Once
	onPersisted func(error)
}

// Open loads both documents and starts the background writer. Documents
// that fail to load are moved aside and reported through LoadErrors; the
// store is still returned. Open fails only when the data directory cannot
// be created.
func Open(opts Options) (*Store, error) {
	if opts.Dir == "" && (opts.ExceptionsPath == "" || opts.ForcedPath == "") {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		opts.Dir = dir
	}
	if opts.ExceptionsPath == "" {
		opts.ExceptionsPath = filepath.Join(opts.Dir, "exceptions.json")
	}
	if opts.ForcedPath == "" {
		opts.ForcedPath = filepath.Join(opts.Dir, "forced_conversions.json")
	}
	if opts.HardThreshold <= 0 {
		opts.HardThreshold = DefaultHardThreshold
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default().With("component", "knowledge")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	for _, p := range []string{opts.ExceptionsPath, opts.ForcedPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0700); err != nil {
			return nil, fmt.Errorf("create knowledge dir: %w", err)
		}
	}

	s := &Store{
		exceptions:     map[string]Exception{},
		forced:         map[string]ForcedConversion{},
		exceptionsPath: opts.ExceptionsPath,
		forcedPath:     opts.ForcedPath,
		hardThreshold:  opts.HardThreshold,
		sync:           opts.Sync,
		logger:         opts.Logger,
		now:            opts.Now,
		dirty:          map[docKind]bool{},
		signal:         make(chan struct{}, 1),
		done:           make(chan struct{}),
		onPersisted:    opts.OnPersist,
	}
	s.loadExceptions()
	s.loadForced()
	if s.Dirty() {
		_ = s.Flush()
	}

	if !s.sync {
		go s.writer()
	} else {
		close(s.done)
	}
	return s, nil
}

// DefaultDir returns the platform-specific data directory.
func DefaultDir() (string, error) {
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", "TextSwitcher"), nil
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			return "", errors.New("LOCALAPPDATA not set")
		}
		return filepath.Join(localAppData, "TextSwitcher"), nil
	default:
		if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
			return filepath.Join(xdgData, "textswitcher"), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".local", "share", "textswitcher"), nil
	}
}

// ============================================================================
// Loading
// ============================================================================

func (s *Store) loadExceptions() {
	var doc exceptionsDocument
	migrated, ok := s.loadDocument(kindExceptions, s.exceptionsPath, &doc)
	if !ok {
		return
	}
	for _, e := range doc.Exceptions {
		k := Key(e.Word)
		if k == "" {
			continue
		}
		s.exceptions[k] = e
	}
	if migrated {
		s.dirty[kindExceptions] = true
	}
}

func (s *Store) loadForced() {
	var doc forcedDocument
	migrated, ok := s.loadDocument(kindForced, s.forcedPath, &doc)
	if !ok {
		return
	}
	for _, f := range doc.Conversions {
		k := Key(f.Original)
		if k == "" {
			continue
		}
		if f.ConfirmationCount < 1 {
			f.ConfirmationCount = 1
		}
		s.forced[k] = f
	}
	if migrated {
		s.dirty[kindForced] = true
	}
}

// loadDocument returns whether the document was migrated and whether it was
// loaded at all. A missing file is not an error.
func (s *Store) loadDocument(kind docKind, path string, out any) (migrated, ok bool) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, false
	}
	if err != nil {
		s.loadFailed(kind, path, err, false)
		return false, false
	}
	changes, err := decodeDocument(kind, data, s.now(), out)
	if err != nil {
		s.loadFailed(kind, path, err, true)
		return false, false
	}
	for _, c := range changes {
		s.logger.Info("migrated knowledge document", "path", path, "change", c)
	}
	return len(changes) > 0, true
}

// loadFailed records the error and, for undecodable documents, moves the
// file aside so the next write does not destroy it.
func (s *Store) loadFailed(kind docKind, path string, err error, moveAside bool) {
	loadErr := &ResourceLoadError{Path: path, Err: err}
	s.loadErrs = append(s.loadErrs, loadErr)
	s.logger.Warn("knowledge document unusable, starting empty",
		"collection", kind.String(), "path", path, "error", err)
	if !moveAside {
		return
	}
	backup := fmt.Sprintf("%s.corrupt-%s", path, s.now().UTC().Format("20060102T150405"))
	if rerr := os.Rename(path, backup); rerr != nil {
		s.logger.Warn("could not move corrupt document aside", "path", path, "error", rerr)
	}
}

// LoadErrors returns the ResourceLoadErrors encountered by Open.
func (s *Store) LoadErrors() []error {
	return s.loadErrs
}

// ============================================================================
// Exceptions
// ============================================================================

// IsException reports whether word is a user exception.
func (s *Store) IsException(word string) bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.exceptions[Key(word)]
	return ok
}

// AddException records word as never-correct. It returns the stored record
// and whether it was newly created.
func (s *Store) AddException(word, reason string) (Exception, bool, error) {
	k := Key(word)
	if k == "" {
		return Exception{}, false, errors.New("knowledge: empty word")
	}
	if reason == "" {
		reason = ReasonManual
	}

	s.mu.Lock()
	if e, ok := s.exceptions[k]; ok {
		s.mu.Unlock()
		return e, false, nil
	}
	e := Exception{
		ID:        newID(),
		Word:      word,
		Timestamp: s.now().UTC(),
		Reason:    reason,
	}
	s.exceptions[k] = e
	s.mu.Unlock()

	s.changed(kindExceptions)
	return e, true, nil
}

// RemoveException deletes the exception for word.
func (s *Store) RemoveException(word string) bool {
	k := Key(word)
	s.mu.Lock()
	_, ok := s.exceptions[k]
	if ok {
		delete(s.exceptions, k)
	}
	s.mu.Unlock()
	if ok {
		s.changed(kindExceptions)
	}
	return ok
}

// Exceptions returns all exceptions ordered by creation time.
func (s *Store) Exceptions() []Exception {
	s.mu.RLock()
	out := make([]Exception, 0, len(s.exceptions))
	for _, e := range s.exceptions {
		out = append(out, e)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return Key(out[i].Word) < Key(out[j].Word)
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// ============================================================================
// Forced conversions
// ============================================================================

// Forced returns the forced conversion for word.
func (s *Store) Forced(word string) (ForcedConversion, bool) {
	if s == nil {
		return ForcedConversion{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.forced[Key(word)]
	return f, ok
}

// ConfirmForced records that the user converted original into corrected.
// The confirmation count only grows.
func (s *Store) ConfirmForced(original, corrected string) (ForcedConversion, error) {
	k := Key(original)
	if k == "" || corrected == "" {
		return ForcedConversion{}, errors.New("knowledge: empty conversion")
	}
	now := s.now().UTC()

	s.mu.Lock()
	f, ok := s.forced[k]
	if !ok {
		f = ForcedConversion{
			ID:        newID(),
			Original:  original,
			Timestamp: now,
		}
	}
	f.Corrected = corrected
	f.Updated = now
	f.ConfirmationCount++
	s.forced[k] = f
	s.mu.Unlock()

	s.changed(kindForced)
	return f, nil
}

// RemoveForced deletes the forced conversion for original.
func (s *Store) RemoveForced(original string) bool {
	k := Key(original)
	s.mu.Lock()
	_, ok := s.forced[k]
	if ok {
		delete(s.forced, k)
	}
	s.mu.Unlock()
	if ok {
		s.changed(kindForced)
	}
	return ok
}

// IsHard reports whether f has been confirmed often enough to be permanent.
func (s *Store) IsHard(f ForcedConversion) bool {
	return f.ConfirmationCount >= s.hardThreshold
}

// HardThreshold returns the promotion threshold.
func (s *Store) HardThreshold() int {
	return s.hardThreshold
}

// ForcedConversions returns all forced conversions, most confirmed first.
func (s *Store) ForcedConversions() []ForcedConversion {
	s.mu.RLock()
	out := make([]ForcedConversion, 0, len(s.forced))
	for _, f := range s.forced {
		out = append(out, f)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].ConfirmationCount != out[j].ConfirmationCount {
			return out[i].ConfirmationCount > out[j].ConfirmationCount
		}
		return Key(out[i].Original) < Key(out[j].Original)
	})
	return out
}

// Prune removes forced conversions that are not hard knowledge and have not
// been confirmed within maxAge. It returns the number removed.
func (s *Store) Prune(maxAge time.Duration) int {
	cutoff := s.now().Add(-maxAge)
	removed := 0
	s.mu.Lock()
	for k, f := range s.forced {
		if s.IsHard(f) {
			continue
		}
		if f.Updated.Before(cutoff) {
			delete(s.forced, k)
			removed++
		}
	}
	s.mu.Unlock()
	if removed > 0 {
		s.changed(kindForced)
	}
	return removed
}

// ============================================================================
// Persistence
// ============================================================================

// changed marks a collection dirty and schedules a write. Any collection
// left dirty by an earlier failure is written with it.
func (s *Store) changed(kind docKind) {
	s.writeMu.Lock()
	s.dirty[kind] = true
	s.writeMu.Unlock()

	// After Close the writer is gone and changes are written inline.
	s.mu.RLock()
	inline := s.sync || s.closed
	if !inline {
		select {
		case s.signal <- struct{}{}:
		default:
		}
	}
	s.mu.RUnlock()
	if inline {
		_ = s.Flush()
	}
}

func (s *Store) writer() {
	defer close(s.done)
	for range s.signal {
		_ = s.Flush()
	}
}

// Flush writes every dirty collection now. A failed collection stays dirty.
func (s *Store) Flush() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var errs []error
	for _, kind := range []docKind{kindExceptions, kindForced} {
		if !s.dirty[kind] {
			continue
		}
		if err := s.write(kind); err != nil {
			errs = append(errs, err)
			s.logger.Error("knowledge write failed, will retry on next change",
				"collection", kind.String(), "error", err)
			continue
		}
		s.dirty[kind] = false
	}
	err := errors.Join(errs...)
	s.lastErr = err
	if s.onPersisted != nil {
		s.onPersisted(err)
	}
	return err
}

// LastError returns the result of the most recent write attempt.
func (s *Store) LastError() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.lastErr
}

// Dirty reports whether any collection has unwritten changes.
func (s *Store) Dirty() bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.dirty[kindExceptions] || s.dirty[kindForced]
}

func (s *Store) write(kind docKind) error {
	var (
		path string
		doc  any
	)
	switch kind {
	case kindExceptions:
		path = s.exceptionsPath
		doc = exceptionsDocument{Version: DocumentVersion, Exceptions: s.Exceptions()}
	case kindForced:
		path = s.forcedPath
		doc = forcedDocument{Version: DocumentVersion, Conversions: s.ForcedConversions()}
	}
	if err := writeJSONAtomic(path, doc); err != nil {
		return &PersistenceError{Path: path, Err: err}
	}
	return nil
}

// Close stops the background writer and flushes pending changes.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		if !s.sync {
			close(s.signal)
		}
		<-s.done
		err = s.Flush()
	})
	return err
}
