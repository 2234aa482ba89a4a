package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"textswitcher/internal/keystroke"
	"textswitcher/internal/layout"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Unwrap lets errors.Is match ErrInvalidConfig.
func (e ValidationErrors) Unwrap() error {
	return ErrInvalidConfig
}

// ValidateConfig performs comprehensive validation of the configuration.
// Warnings (see ValidationError.IsWarning) alone never fail validation.
func ValidateConfig(c *Config) error {
	errs := Check(c)
	if errs.HasErrors() {
		return errs
	}
	return nil
}

// Check returns every finding, warnings included.
func Check(c *Config) ValidationErrors {
	var errs ValidationErrors

	// Validate version
	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateKeyboard(&c.Keyboard)...)
	errs = append(errs, validateValidator(&c.Validator)...)
	errs = append(errs, validateKnowledge(&c.Knowledge)...)
	errs = append(errs, validateResources(&c.Resources)...)
	errs = append(errs, validateReplacer(&c.Replacer)...)
	errs = append(errs, validateJournal(&c.Journal)...)
	errs = append(errs, validateMetrics(&c.Metrics)...)
	errs = append(errs, validateLogging(&c.Logging)...)

	return errs
}

func validateKeyboard(k *KeyboardConfig) ValidationErrors {
	var errs ValidationErrors

	switch k.Source {
	case keystroke.KindAuto, keystroke.KindIBus, keystroke.KindEvdev, keystroke.KindHook:
	default:
		errs = append(errs, ValidationError{
			Field:   "keyboard.source",
			Message: fmt.Sprintf("invalid source: %s (valid: auto, ibus, evdev, hook)", k.Source),
		})
	}

	if _, ok := layout.Parse(k.EvdevLayout); !ok {
		errs = append(errs, ValidationError{
			Field:   "keyboard.evdev_layout",
			Message: fmt.Sprintf("invalid layout: %s (valid: en, ru)", k.EvdevLayout),
		})
	}

	if _, ok := keystroke.ParseTrigger(k.Trigger); !ok {
		errs = append(errs, ValidationError{
			Field:   "keyboard.trigger",
			Message: fmt.Sprintf("invalid trigger: %s", k.Trigger),
		})
	}

	if k.DoublePressMs < 100 || k.DoublePressMs > 2000 {
		errs = append(errs, *RangeError("keyboard.double_press_ms", 100, 2000))
	}
	if k.UndoWindowMs < 0 || k.UndoWindowMs > 60000 {
		errs = append(errs, *RangeError("keyboard.undo_window_ms", 0, 60000))
	}
	if k.QueueLimit < 1 || k.QueueLimit > 4096 {
		errs = append(errs, *RangeError("keyboard.queue_limit", 1, 4096))
	}

	return errs
}

func validateValidator(v *ValidatorConfig) ValidationErrors {
	var errs ValidationErrors

	if v.MinWordLength < 1 || v.MinWordLength > 10 {
		errs = append(errs, *RangeError("validator.min_word_length", 1, 10))
	}
	if v.ContextMaxEntries < 1 {
		errs = append(errs, ValidationError{
			Field:   "validator.context_max_entries",
			Message: "context must hold at least 1 entry",
		})
	}
	if v.ContextMaxAgeMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "validator.context_max_age_ms",
			Message: "context age cannot be negative",
		})
	}
	if v.ContextMinMajority < 1 || v.ContextMinMajority > v.ContextMaxEntries {
		errs = append(errs, ValidationError{
			Field:   "validator.context_min_majority",
			Message: fmt.Sprintf("majority must be between 1 and context_max_entries (%d)", v.ContextMaxEntries),
		})
	}
	if v.NgramPenalty >= 0 {
		errs = append(errs, ValidationError{
			Field:   "validator.ngram_penalty",
			Message: "penalty for unseen n-grams must be negative",
		})
	}
	if v.NgramMargin < 0 {
		errs = append(errs, ValidationError{
			Field:   "validator.ngram_margin",
			Message: "margin cannot be negative",
		})
	}
	if v.NgramMinLength < 2 {
		errs = append(errs, ValidationError{
			Field:   "validator.ngram_min_length",
			Message: "n-gram scoring needs words of at least 2 letters",
		})
	}

	return errs
}

func validateKnowledge(k *KnowledgeConfig) ValidationErrors {
	var errs ValidationErrors

	if k.Dir == "" {
		errs = append(errs, *RequiredFieldError("knowledge.dir"))
	} else if info, err := os.Stat(expandPath(k.Dir)); err == nil && !info.IsDir() {
		errs = append(errs, ValidationError{
			Field:   "knowledge.dir",
			Message: fmt.Sprintf("not a directory: %s", k.Dir),
		})
	}

	if k.ForcedMinConfirmations < 1 {
		errs = append(errs, ValidationError{
			Field:   "knowledge.forced_min_confirmations",
			Message: "at least 1 confirmation is required",
		})
	}
	if k.ForcedHardThreshold < k.ForcedMinConfirmations {
		errs = append(errs, ValidationError{
			Field:   "knowledge.forced_hard_threshold",
			Message: "hard threshold must be >= forced_min_confirmations",
		})
	}
	if k.ForcedPruneDays < 0 {
		errs = append(errs, ValidationError{
			Field:   "knowledge.forced_prune_days",
			Message: "prune age cannot be negative",
		})
	}

	return errs
}

// validateResources reports configured files that do not exist. They are
// warnings: a missing resource falls back to the bundled data.
func validateResources(r *ResourcesConfig) ValidationErrors {
	var errs ValidationErrors

	files := []struct {
		field, path string
	}{
		{"resources.dictionary_en", r.DictionaryEN},
		{"resources.dictionary_ru", r.DictionaryRU},
		{"resources.hunspell_en", r.HunspellEN},
		{"resources.hunspell_ru", r.HunspellRU},
		{"resources.ngram_en_bigrams", r.NgramENBigrams},
		{"resources.ngram_en_trigrams", r.NgramENTrigrams},
		{"resources.ngram_ru_bigrams", r.NgramRUBigrams},
		{"resources.ngram_ru_trigrams", r.NgramRUTrigrams},
	}
	for _, f := range files {
		if f.path == "" || f.path == "auto" {
			continue
		}
		if _, err := os.Stat(expandPath(f.path)); err != nil {
			errs = append(errs, ValidationError{
				Field:   f.field,
				Message: fmt.Sprintf("file not found: %s", f.path),
			})
		}
	}

	return errs
}

func validateReplacer(r *ReplacerConfig) ValidationErrors {
	var errs ValidationErrors

	delays := []struct {
		field string
		v     int
	}{
		{"replacer.inter_key_delay_ms", r.InterKeyDelayMs},
		{"replacer.settle_delay_ms", r.SettleDelayMs},
		{"replacer.restore_delay_ms", r.RestoreDelayMs},
	}
	for _, d := range delays {
		if d.v < 0 || d.v > 5000 {
			errs = append(errs, *RangeError(d.field, 0, 5000))
		}
	}

	return errs
}

func validateJournal(j *JournalConfig) ValidationErrors {
	var errs ValidationErrors

	if !j.Enabled {
		return errs
	}

	if j.Path == "" {
		errs = append(errs, ValidationError{
			Field:   "journal.path",
			Message: "database path is required when the journal is enabled",
		})
	} else {
		dir := filepath.Dir(expandPath(j.Path))
		if info, err := os.Stat(dir); err == nil && !info.IsDir() {
			errs = append(errs, ValidationError{
				Field:   "journal.path",
				Message: fmt.Sprintf("parent path is not a directory: %s", dir),
			})
		}
	}

	if j.RetentionDays < 0 {
		errs = append(errs, ValidationError{
			Field:   "journal.retention_days",
			Message: "retention cannot be negative",
		})
	}

	return errs
}

func validateMetrics(m *MetricsConfig) ValidationErrors {
	var errs ValidationErrors

	if m.ListenAddr == "" {
		return errs
	}
	if _, _, err := net.SplitHostPort(m.ListenAddr); err != nil {
		errs = append(errs, ValidationError{
			Field:   "metrics.listen_addr",
			Message: fmt.Sprintf("invalid address %q: %v", m.ListenAddr, err),
		})
	}

	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch l.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
		// Valid formats
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr", "journald":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: fmt.Sprintf("file path is required when output is '%s'", l.Output),
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %s (valid: stdout, stderr, file, both, journald)", l.Output),
		})
	}

	if l.MaxSizeMB < 1 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Message: "max size must be at least 1 MB",
		})
	}

	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Message: "max backups cannot be negative",
		})
	}

	if l.MaxAgeDays < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_age_days",
			Message: "max age cannot be negative",
		})
	}

	return errs
}

// Helper functions

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// ExpandPath resolves a leading "~/" to the user's home directory.
func ExpandPath(path string) string { return expandPath(path) }

// IsWarning returns true if this is a non-fatal validation issue.
func (e *ValidationError) IsWarning() bool {
	// Missing resources fall back to bundled data
	return strings.HasPrefix(e.Field, "resources.")
}

// Warnings returns only warning-level validation errors.
func (e ValidationErrors) Warnings() ValidationErrors {
	var warnings ValidationErrors
	for _, err := range e {
		if err.IsWarning() {
			warnings = append(warnings, err)
		}
	}
	return warnings
}

// Errors returns only error-level validation errors.
func (e ValidationErrors) Errors() ValidationErrors {
	var errs ValidationErrors
	for _, err := range e {
		if !err.IsWarning() {
			errs = append(errs, err)
		}
	}
	return errs
}

// HasErrors returns true if there are any non-warning errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e.Errors()) > 0
}

// RequiredFieldError creates a validation error for a required field.
func RequiredFieldError(field string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: "required field is missing",
	}
}

// RangeError creates a validation error for an out-of-range value.
func RangeError(field string, min, max interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("value must be between %v and %v", min, max),
	}
}

// ErrInvalidConfig is returned when validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")
