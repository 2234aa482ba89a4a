package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		hasError bool
	}{
		{"debug", LevelDebug, false},
		{"DEBUG", LevelDebug, false},
		{"info", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"invalid", LevelInfo, true},
		{"", LevelInfo, true},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			level, err := ParseLevel(test.input)
			if test.hasError && err == nil {
				t.Error("expected error, got nil")
			}
			if !test.hasError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !test.hasError && level != test.expected {
				t.Errorf("expected %v, got %v", test.expected, level)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("json"); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat(json) = %v, %v", f, err)
	}
	if f, err := ParseFormat("TEXT"); err != nil || f != FormatText {
		t.Errorf("ParseFormat(TEXT) = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
}

func TestLevelString(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{LevelDebug, "debug"},
		{LevelInfo, "info"},
		{LevelWarn, "warn"},
		{LevelError, "error"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			if result := LevelString(test.level); result != test.expected {
				t.Errorf("expected %q, got %q", test.expected, result)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("expected default level Info, got %v", cfg.Level)
	}
	if cfg.Format != FormatText {
		t.Errorf("expected default format Text, got %v", cfg.Format)
	}
	if cfg.Output != "stderr" {
		t.Errorf("expected default output stderr, got %s", cfg.Output)
	}
	if !strings.HasSuffix(cfg.FilePath, "textswitcher.log") {
		t.Errorf("unexpected default file path %s", cfg.FilePath)
	}
}

func TestShouldRedact(t *testing.T) {
	tests := []struct {
		key      string
		expected bool
	}{
		{"password", true},
		{"PASSWORD", true},
		{"secret", true},
		{"auth_token", true},
		{"clipboard", true},
		{"saved_clipboard", true},
		{"layer", false},
		{"kind", false},
		{"deleted", false},
	}

	for _, test := range tests {
		t.Run(test.key, func(t *testing.T) {
			if result := shouldRedact(test.key); result != test.expected {
				t.Errorf("shouldRedact(%q) = %v, expected %v", test.key, result, test.expected)
			}
		})
	}
}

// =============================================================================
// Output
// =============================================================================

func newBufferLogger(t *testing.T, level Level, format Format) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger, err := New(&Config{
		Level:     level,
		Format:    format,
		Output:    "stderr",
		Component: "test",
		Console:   &buf,
	})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	t.Cleanup(func() { logger.Close() })
	return logger, &buf
}

func TestJSONFormat(t *testing.T) {
	logger, buf := newBufferLogger(t, LevelInfo, FormatJSON)

	logger.Info("replaced", "layer", "dictionary", "deleted", 7)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if entry["msg"] != "replaced" {
		t.Errorf("unexpected msg %v", entry["msg"])
	}
	if entry["layer"] != "dictionary" {
		t.Errorf("unexpected layer %v", entry["layer"])
	}
	if entry["component"] != "test" {
		t.Errorf("unexpected component %v", entry["component"])
	}
}

func TestTypedTextHiddenAboveDebug(t *testing.T) {
	logger, buf := newBufferLogger(t, LevelDebug, FormatJSON)

	logger.Info("replaced", "original", "ghbdtn", "replacement", "привет")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["original"] != "[6 chars]" {
		t.Errorf("original not redacted: %v", entry["original"])
	}
	if entry["replacement"] != "[6 chars]" {
		t.Errorf("replacement not redacted: %v", entry["replacement"])
	}

	buf.Reset()
	logger.Debug("decision", "word", "ghbdtn")
	if !strings.Contains(buf.String(), "ghbdtn") {
		t.Errorf("debug output should keep the word: %s", buf.String())
	}
}

func TestSecretsRedacted(t *testing.T) {
	logger, buf := newBufferLogger(t, LevelInfo, FormatText)

	logger.Info("restore", "clipboard", "hunter2")

	if strings.Contains(buf.String(), "hunter2") {
		t.Errorf("clipboard contents leaked: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "[REDACTED]") {
		t.Errorf("expected redaction marker: %s", buf.String())
	}
}

func TestSetLevel(t *testing.T) {
	logger, buf := newBufferLogger(t, LevelInfo, FormatText)
	child := logger.WithComponent("monitor")

	child.Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug logged at info level: %s", buf.String())
	}

	logger.SetLevel(LevelDebug)
	if logger.Level() != LevelDebug {
		t.Errorf("expected debug level, got %v", logger.Level())
	}

	child.Debug("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("child logger did not follow level change: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "component=monitor") {
		t.Errorf("missing component: %s", buf.String())
	}
}

func TestBothOutputs(t *testing.T) {
	var buf bytes.Buffer
	logPath := filepath.Join(t.TempDir(), "logs", "ts.log")

	logger, err := New(&Config{
		Level:    LevelInfo,
		Format:   FormatText,
		Output:   "both",
		FilePath: logPath,
		MaxSize:  1,
		Console:  &buf,
	})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	logger.Info("started", "source", "ibus")
	if err := logger.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if !strings.Contains(buf.String(), "started") {
		t.Errorf("console output missing: %q", buf.String())
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "source=ibus") {
		t.Errorf("file output missing: %q", data)
	}
}

// =============================================================================
// Rotation
// =============================================================================

func testPolicy() RotationPolicy {
	return RotationPolicy{
		MaxBytes:        1024 * 1024,
		MaxAge:          7 * 24 * time.Hour,
		MaxBackups:      3,
		TypedTextMaxAge: DefaultTypedTextMaxAge,
	}
}

func TestFileRotator(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")

	rotator, err := NewFileRotator(logPath, testPolicy(), nil)
	if err != nil {
		t.Fatalf("failed to create rotator: %v", err)
	}
	defer rotator.Close()

	testData := []byte("test log line\n")
	n, err := rotator.Write(testData)
	if err != nil {
		t.Fatalf("failed to write: %v", err)
	}
	if n != len(testData) {
		t.Errorf("expected to write %d bytes, wrote %d", len(testData), n)
	}

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		t.Error("log file was not created")
	}
	if err := rotator.Sync(); err != nil {
		t.Errorf("sync failed: %v", err)
	}
}

func TestFileRotatorRotation(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")

	rotator, err := NewFileRotator(logPath, testPolicy(), nil)
	if err != nil {
		t.Fatalf("failed to create rotator: %v", err)
	}

	line := []byte(strings.Repeat("x", 1023) + "\n")
	for i := 0; i < 1100; i++ {
		if _, err := rotator.Write(line); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	if err := rotator.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files := rotator.Files()
	if len(files) != 2 {
		t.Errorf("expected the log and one backup, got %v", files)
	}

	info, err := os.Stat(logPath)
	if err != nil {
		t.Fatalf("stat current log: %v", err)
	}
	if info.Size() >= 1024*1024 {
		t.Errorf("current log was not rotated, size %d", info.Size())
	}
}

// fakeClock drives a rotator's notion of time.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestFileRotatorDailyAndCompressed(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")
	policy := testPolicy()
	policy.Compress = true
	policy.MaxAge = 0

	rotator, err := NewFileRotator(logPath, policy, nil)
	if err != nil {
		t.Fatalf("failed to create rotator: %v", err)
	}
	clock := &fakeClock{t: time.Date(2026, 3, 14, 23, 0, 0, 0, time.Local)}
	rotator.now = clock.now
	rotator.opened = clock.t

	write := func(s string) {
		t.Helper()
		if _, err := rotator.Write([]byte(s)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	write("before midnight\n")
	clock.t = clock.t.Add(30 * time.Minute)
	write("same day\n")
	clock.t = clock.t.Add(time.Hour)
	write("after midnight\n")
	// same day of the month, a month later
	clock.t = clock.t.AddDate(0, 1, 0)
	write("next month\n")
	if err := rotator.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	backups := rotator.backups()
	if len(backups) != 2 {
		t.Fatalf("expected 2 backups, got %v", rotator.Files())
	}
	for _, b := range backups {
		if !strings.HasSuffix(b.path, ".log.gz") {
			t.Errorf("backup %s was not compressed", b.path)
		}
	}
}

func TestFileRotatorExpiresTypedText(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")
	level := new(slog.LevelVar)
	level.Set(LevelDebug)

	rotator, err := NewFileRotator(logPath, testPolicy(), level)
	if err != nil {
		t.Fatalf("failed to create rotator: %v", err)
	}
	start := time.Now()
	clock := &fakeClock{t: start}
	rotator.now = clock.now
	rotator.opened = start

	write := func(s string) {
		t.Helper()
		if _, err := rotator.Write([]byte(s)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	write("word validated word=ghbdtn\n")
	level.Set(LevelInfo)
	clock.t = start.AddDate(0, 0, 1)
	write("auto correction word=[6 chars]\n")

	backups := rotator.backups()
	if len(backups) != 1 || !backups[0].typed {
		t.Fatalf("expected one typed backup, got %v", rotator.Files())
	}

	clock.t = start.AddDate(0, 0, 3)
	write("auto correction word=[3 chars]\n")
	if err := rotator.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	backups = rotator.backups()
	if len(backups) != 1 {
		t.Fatalf("expected only the redacted backup to survive, got %v", rotator.Files())
	}
	if backups[0].typed {
		t.Errorf("typed backup %s outlived its retention", backups[0].path)
	}
	data, err := os.ReadFile(backups[0].path)
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	if strings.Contains(string(data), "ghbdtn") {
		t.Errorf("surviving backup holds typed text: %q", data)
	}
}

func TestPolicyForDefaultsTypedRetention(t *testing.T) {
	p := policyFor(&Config{MaxSize: 2, MaxAge: 3})
	if p.MaxBytes != 2*1024*1024 {
		t.Errorf("MaxBytes = %d", p.MaxBytes)
	}
	if p.MaxAge != 72*time.Hour {
		t.Errorf("MaxAge = %v", p.MaxAge)
	}
	if p.TypedTextMaxAge != DefaultTypedTextMaxAge {
		t.Errorf("TypedTextMaxAge = %v", p.TypedTextMaxAge)
	}
}

// =============================================================================
// Crash reports
// =============================================================================

func TestCrashHandler(t *testing.T) {
	var seen []CrashReport
	handler := NewCrashHandler(&CrashHandlerConfig{
		CrashDir:  t.TempDir(),
		Version:   "1.0.0",
		Component: "test",
		OnCrash:   func(r CrashReport) { seen = append(seen, r) },
	})

	handler.HandlePanic("test panic value", map[string]any{"goroutine": "monitor"})

	reports, err := handler.GetCrashReports()
	if err != nil {
		t.Fatalf("failed to get crash reports: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("expected 1 report, got %d", len(reports))
	}

	report := reports[0]
	if report.PanicValue != "test panic value" {
		t.Errorf("expected panic value 'test panic value', got %q", report.PanicValue)
	}
	if report.Version != "1.0.0" {
		t.Errorf("expected version '1.0.0', got %q", report.Version)
	}
	if report.Context["goroutine"] != "monitor" {
		t.Errorf("unexpected context %v", report.Context)
	}
	if report.StackTrace == "" {
		t.Error("missing stack trace")
	}
	if len(seen) != 1 || seen[0].ID != report.ID {
		t.Errorf("OnCrash not called with the report: %v", seen)
	}
}

func TestCrashHandlerRecovery(t *testing.T) {
	handler := NewCrashHandler(&CrashHandlerConfig{CrashDir: t.TempDir()})

	panicked := handler.Recover("worker", func() {
		panic("intentional test panic")
	})
	if !panicked {
		t.Error("Recover did not report the panic")
	}

	if handler.Recover("worker", func() {}) {
		t.Error("Recover reported a panic for a clean run")
	}

	reports, _ := handler.GetCrashReports()
	if len(reports) != 1 {
		t.Errorf("expected 1 crash report, got %d", len(reports))
	}
}

func TestCrashHandlerCleanupOld(t *testing.T) {
	handler := NewCrashHandler(&CrashHandlerConfig{CrashDir: t.TempDir()})

	for i := 0; i < 3; i++ {
		handler.HandlePanic("test panic", nil)
	}

	reports, _ := handler.GetCrashReports()
	if len(reports) != 3 {
		t.Fatalf("expected 3 reports, got %d", len(reports))
	}

	old := time.Now().Add(-48 * time.Hour)
	files, _ := filepath.Glob(filepath.Join(handler.Dir(), "crash-*.json"))
	if err := os.Chtimes(files[0], old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	if err := handler.CleanupOldCrashReports(24 * time.Hour); err != nil {
		t.Errorf("CleanupOldCrashReports failed: %v", err)
	}

	reports, _ = handler.GetCrashReports()
	if len(reports) != 2 {
		t.Errorf("expected 2 reports after cleanup, got %d", len(reports))
	}
}

func TestJournaldFallsBackToConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&Config{
		Level:   LevelInfo,
		Format:  FormatText,
		Output:  "journald",
		Console: &buf,
	})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Close()

	// Without a journal socket the console receives a warning and the
	// records; with one the console stays silent.
	logger.Info("started")
	if buf.Len() > 0 && !strings.Contains(buf.String(), "started") {
		t.Errorf("console fallback lost the record: %q", buf.String())
	}
}
