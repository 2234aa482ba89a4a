package logging

import (
	"compress/gzip"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultTypedTextMaxAge is how long a backup that may hold typed words is
// kept when the configuration does not say otherwise.
const DefaultTypedTextMaxAge = 24 * time.Hour

// backupStamp is the timestamp embedded in backup names. It is fine
// grained so two rotations in the same second keep separate files.
const backupStamp = "20060102-150405.000000"

// typedMarker tags backups written while debug logging let typed words
// through the redaction.
const typedMarker = ".typed"

// RotationPolicy decides when the active log file is rotated and how long
// its backups live.
type RotationPolicy struct {
	// MaxBytes rotates the file before a write would take it past this
	// size. Zero disables size rotation.
	MaxBytes int64

	MaxAge     time.Duration
	MaxBackups int
	Compress   bool

	// TypedTextMaxAge bounds backups written at debug level, whatever
	// MaxAge says.
	TypedTextMaxAge time.Duration
}

// policyFor converts the logger configuration into a rotation policy.
func policyFor(cfg *Config) RotationPolicy {
	p := RotationPolicy{
		MaxBytes:        cfg.MaxSize * 1024 * 1024,
		MaxAge:          time.Duration(cfg.MaxAge) * 24 * time.Hour,
		MaxBackups:      cfg.MaxBackups,
		Compress:        cfg.Compress,
		TypedTextMaxAge: cfg.TypedTextMaxAge,
	}
	if p.TypedTextMaxAge <= 0 {
		p.TypedTextMaxAge = DefaultTypedTextMaxAge
	}
	return p
}

// FileRotator is the log file writer. It rotates daily and by size, and
// prunes backups by count and age.
type FileRotator struct {
	path   string
	policy RotationPolicy
	level  slog.Leveler
	now    func() time.Time

	mu     sync.Mutex
	file   *os.File
	size   int64
	opened time.Time
	typed  bool // the active file received records at debug level

	maint sync.Mutex // serializes compression and pruning
	wg    sync.WaitGroup
}

// NewFileRotator opens path for appending. level is consulted on every
// write to learn whether typed text may be reaching the file; nil means
// it never does.
func NewFileRotator(path string, policy RotationPolicy, level slog.Leveler) (*FileRotator, error) {
	r := &FileRotator{
		path:   path,
		policy: policy,
		level:  level,
		now:    time.Now,
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	if err := r.openFile(); err != nil {
		return nil, err
	}
	// backups left by earlier runs may already be past their retention
	r.maintain("")
	return r, nil
}

func (r *FileRotator) openFile() error {
	file, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	r.file = file
	r.size = info.Size()
	r.opened = r.now()
	r.typed = false
	return nil
}

// Write implements io.Writer.
func (r *FileRotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		if err := r.openFile(); err != nil {
			return 0, err
		}
	}
	if r.shouldRotate(int64(len(p))) {
		if err := r.rotate(); err != nil {
			return 0, fmt.Errorf("rotate log: %w", err)
		}
	}
	if r.level != nil && r.level.Level() <= LevelDebug {
		r.typed = true
	}

	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

func (r *FileRotator) shouldRotate(writeSize int64) bool {
	if r.size == 0 {
		return false
	}
	if limit := r.policy.MaxBytes; limit > 0 && r.size+writeSize > limit {
		return true
	}
	y1, m1, d1 := r.opened.Date()
	y2, m2, d2 := r.now().Date()
	return y1 != y2 || m1 != m2 || d1 != d2
}

func (r *FileRotator) rotate() error {
	if err := r.file.Close(); err != nil {
		return fmt.Errorf("close current log: %w", err)
	}
	r.file = nil

	backup := r.backupName(r.now(), r.typed)
	if err := os.Rename(r.path, backup); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("rename log file: %w", err)
	}
	if err := r.openFile(); err != nil {
		return err
	}
	r.maintain(backup)
	return nil
}

// backupName builds "<name>-<stamp>[.typed]<ext>" next to the log file.
func (r *FileRotator) backupName(at time.Time, typed bool) string {
	name, ext := r.nameParts()
	marker := ""
	if typed {
		marker = typedMarker
	}
	base := fmt.Sprintf("%s-%s%s%s", name, at.UTC().Format(backupStamp), marker, ext)
	return filepath.Join(filepath.Dir(r.path), base)
}

func (r *FileRotator) nameParts() (name, ext string) {
	base := filepath.Base(r.path)
	ext = filepath.Ext(base)
	return strings.TrimSuffix(base, ext), ext
}

// maintain compresses the fresh backup, if any, and prunes in the
// background. Close waits for it.
func (r *FileRotator) maintain(fresh string) {
	now := r.now()
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.maint.Lock()
		defer r.maint.Unlock()
		if fresh != "" && r.policy.Compress {
			compressFile(fresh)
		}
		r.prune(now)
	}()
}

// backup is a rotated file found on disk.
type backup struct {
	path  string
	at    time.Time
	typed bool
}

// backups lists rotated files, newest first.
func (r *FileRotator) backups() []backup {
	name, _ := r.nameParts()
	prefix := name + "-"
	matches, err := filepath.Glob(filepath.Join(filepath.Dir(r.path), prefix+"*"))
	if err != nil {
		return nil
	}

	var out []backup
	for _, m := range matches {
		rest := strings.TrimPrefix(filepath.Base(m), prefix)
		if len(rest) < len(backupStamp) {
			continue
		}
		at, err := time.Parse(backupStamp, rest[:len(backupStamp)])
		if err != nil {
			continue
		}
		out = append(out, backup{
			path:  m,
			at:    at,
			typed: strings.HasPrefix(rest[len(backupStamp):], typedMarker),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].at.After(out[j].at) })
	return out
}

func (r *FileRotator) prune(now time.Time) {
	p := r.policy
	for i, b := range r.backups() {
		age := now.Sub(b.at)
		switch {
		case p.MaxBackups > 0 && i >= p.MaxBackups,
			p.MaxAge > 0 && age > p.MaxAge,
			b.typed && p.TypedTextMaxAge > 0 && age > p.TypedTextMaxAge:
			os.Remove(b.path)
		}
	}
}

// compressFile replaces path with path.gz.
func compressFile(path string) {
	if err := gzipFile(path, path+".gz"); err != nil {
		os.Remove(path + ".gz")
		return
	}
	os.Remove(path)
}

func gzipFile(src, dst string) error {
	input, err := os.Open(src)
	if err != nil {
		return err
	}
	defer input.Close()

	output, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer output.Close()

	gz := gzip.NewWriter(output)
	gz.Name = filepath.Base(src)
	if _, err := io.Copy(gz, input); err != nil {
		gz.Close()
		return err
	}
	return gz.Close()
}

// Close waits for background maintenance and closes the file.
func (r *FileRotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.wg.Wait()
	if r.file != nil {
		err := r.file.Close()
		r.file = nil
		return err
	}
	return nil
}

// Sync flushes the file.
func (r *FileRotator) Sync() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file != nil {
		return r.file.Sync()
	}
	return nil
}

// Files returns the active log file followed by its backups, newest first.
func (r *FileRotator) Files() []string {
	files := []string{r.path}
	for _, b := range r.backups() {
		files = append(files, b.path)
	}
	return files
}
