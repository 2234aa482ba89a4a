// Package config handles configuration loading, validation, and management for textswitcher.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Version is the current configuration schema version.
const Version = 2

// Config holds the complete configuration.
type Config struct {
	// Version is the configuration schema version for migrations.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Keyboard configures the key event source, the manual trigger and
	// the monitor's queue.
	Keyboard KeyboardConfig `toml:"keyboard" json:"keyboard" yaml:"keyboard"`

	// Validator holds the cascade thresholds.
	Validator ValidatorConfig `toml:"validator" json:"validator" yaml:"validator"`

	// Knowledge configures the learned exceptions and forced conversions.
	Knowledge KnowledgeConfig `toml:"knowledge" json:"knowledge" yaml:"knowledge"`

	// Resources lists optional dictionary and n-gram files.
	Resources ResourcesConfig `toml:"resources" json:"resources" yaml:"resources"`

	// Replacer holds the synthetic input timing.
	Replacer ReplacerConfig `toml:"replacer" json:"replacer" yaml:"replacer"`

	// Journal configures the correction history database.
	Journal JournalConfig `toml:"journal" json:"journal" yaml:"journal"`

	Notifications NotificationsConfig `toml:"notifications" json:"notifications" yaml:"notifications"`

	Metrics MetricsConfig `toml:"metrics" json:"metrics" yaml:"metrics"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// mu protects concurrent access to the config.
	mu sync.RWMutex `toml:"-" json:"-" yaml:"-"`
}

// KeyboardConfig holds key capture settings.
type KeyboardConfig struct {
	// Source selects the key event source: "auto", "ibus", "evdev" or "hook".
	Source string `toml:"source" json:"source" yaml:"source"`

	// EvdevLayout is the layout assumed when decoding raw scancodes.
	EvdevLayout string `toml:"evdev_layout" json:"evdev_layout" yaml:"evdev_layout"`

	// Trigger is the modifier whose double tap converts text by hand.
	Trigger string `toml:"trigger" json:"trigger" yaml:"trigger"`

	// DoublePressMs is the longest gap between the two trigger taps.
	DoublePressMs int `toml:"double_press_ms" json:"double_press_ms" yaml:"double_press_ms"`

	// UndoWindowMs is how long after an automatic replacement an undo
	// teaches an exception.
	UndoWindowMs int `toml:"undo_window_ms" json:"undo_window_ms" yaml:"undo_window_ms"`

	// QueueLimit bounds the events held while a replacement is running.
	QueueLimit int `toml:"queue_limit" json:"queue_limit" yaml:"queue_limit"`

	// EchoSuppression drops our own synthetic backspaces and paste when
	// the source cannot mark them as injected.
	EchoSuppression bool `toml:"echo_suppression" json:"echo_suppression" yaml:"echo_suppression"`
}

// ValidatorConfig holds the cascade thresholds.
type ValidatorConfig struct {
	AutoCorrect        bool    `toml:"auto_correct" json:"auto_correct" yaml:"auto_correct"`
	MinWordLength      int     `toml:"min_word_length" json:"min_word_length" yaml:"min_word_length"`
	ContextMaxEntries  int     `toml:"context_max_entries" json:"context_max_entries" yaml:"context_max_entries"`
	ContextMaxAgeMs    int     `toml:"context_max_age_ms" json:"context_max_age_ms" yaml:"context_max_age_ms"`
	ContextMinMajority int     `toml:"context_min_majority" json:"context_min_majority" yaml:"context_min_majority"`
	NgramPenalty       float64 `toml:"ngram_penalty" json:"ngram_penalty" yaml:"ngram_penalty"`
	NgramMargin        float64 `toml:"ngram_margin" json:"ngram_margin" yaml:"ngram_margin"`
	NgramMinLength     int     `toml:"ngram_min_length" json:"ngram_min_length" yaml:"ngram_min_length"`
}

// KnowledgeConfig holds the knowledge store settings.
type KnowledgeConfig struct {
	// Dir holds exceptions.json and forced_conversions.json.
	Dir string `toml:"dir" json:"dir" yaml:"dir"`

	// BuzzwordsPath replaces the bundled buzzword list when set.
	BuzzwordsPath string `toml:"buzzwords_path" json:"buzzwords_path" yaml:"buzzwords_path"`

	ForcedMinConfirmations int `toml:"forced_min_confirmations" json:"forced_min_confirmations" yaml:"forced_min_confirmations"`
	ForcedHardThreshold    int `toml:"forced_hard_threshold" json:"forced_hard_threshold" yaml:"forced_hard_threshold"`
	ForcedPruneDays        int `toml:"forced_prune_days" json:"forced_prune_days" yaml:"forced_prune_days"`
}

// ResourcesConfig lists optional external resources. Empty paths select
// the bundled word lists and a model trained from them.
type ResourcesConfig struct {
	DictionaryEN string `toml:"dictionary_en" json:"dictionary_en" yaml:"dictionary_en"`
	DictionaryRU string `toml:"dictionary_ru" json:"dictionary_ru" yaml:"dictionary_ru"`

	// Hunspell .dic files. "auto" searches the usual system locations.
	HunspellEN string `toml:"hunspell_en" json:"hunspell_en" yaml:"hunspell_en"`
	HunspellRU string `toml:"hunspell_ru" json:"hunspell_ru" yaml:"hunspell_ru"`

	NgramENBigrams  string `toml:"ngram_en_bigrams" json:"ngram_en_bigrams" yaml:"ngram_en_bigrams"`
	NgramENTrigrams string `toml:"ngram_en_trigrams" json:"ngram_en_trigrams" yaml:"ngram_en_trigrams"`
	NgramRUBigrams  string `toml:"ngram_ru_bigrams" json:"ngram_ru_bigrams" yaml:"ngram_ru_bigrams"`
	NgramRUTrigrams string `toml:"ngram_ru_trigrams" json:"ngram_ru_trigrams" yaml:"ngram_ru_trigrams"`
}

// ReplacerConfig holds the synthetic input delays.
type ReplacerConfig struct {
	InterKeyDelayMs int `toml:"inter_key_delay_ms" json:"inter_key_delay_ms" yaml:"inter_key_delay_ms"`
	SettleDelayMs   int `toml:"settle_delay_ms" json:"settle_delay_ms" yaml:"settle_delay_ms"`
	RestoreDelayMs  int `toml:"restore_delay_ms" json:"restore_delay_ms" yaml:"restore_delay_ms"`
}

// JournalConfig holds the correction history settings.
type JournalConfig struct {
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Path is the SQLite database file.
	Path string `toml:"path" json:"path" yaml:"path"`

	// RetentionDays drops older entries on startup. Zero keeps everything.
	RetentionDays int `toml:"retention_days" json:"retention_days" yaml:"retention_days"`
}

// NotificationsConfig controls desktop notifications.
type NotificationsConfig struct {
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// ListenAddr serves /metrics when set, e.g. "127.0.0.1:9464".
	ListenAddr string `toml:"listen_addr" json:"listen_addr" yaml:"listen_addr"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is the log output: "stdout", "stderr", "file", "both" or
	// "journald".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the path to the log file (when Output is "file" or "both").
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// MaxSizeMB is the maximum log file size before rotation.
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of old log files to keep.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups"`

	// MaxAgeDays is the maximum age of log files in days.
	MaxAgeDays int `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`

	// Compress determines whether to compress rotated logs.
	Compress bool `toml:"compress" json:"compress" yaml:"compress"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := DataDir()

	return &Config{
		Version: Version,
		Keyboard: KeyboardConfig{
			Source:          "auto",
			EvdevLayout:     "en",
			Trigger:         "shift",
			DoublePressMs:   400,
			UndoWindowMs:    5000,
			QueueLimit:      32,
			EchoSuppression: true,
		},
		Validator: ValidatorConfig{
			AutoCorrect:        true,
			MinWordLength:      2,
			ContextMaxEntries:  10,
			ContextMaxAgeMs:    30000,
			ContextMinMajority: 2,
			NgramPenalty:       -12,
			NgramMargin:        1.0,
			NgramMinLength:     3,
		},
		Knowledge: KnowledgeConfig{
			Dir:                    dir,
			ForcedMinConfirmations: 1,
			ForcedHardThreshold:    3,
			ForcedPruneDays:        30,
		},
		Replacer: ReplacerConfig{
			InterKeyDelayMs: 8,
			SettleDelayMs:   40,
			RestoreDelayMs:  150,
		},
		Journal: JournalConfig{
			Enabled:       true,
			Path:          filepath.Join(dir, "journal.db"),
			RetentionDays: 90,
		},
		Notifications: NotificationsConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join(PlatformLogDir(), "textswitcher.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 14,
			Compress:   true,
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// Load reads configuration from the specified path.
// If the file doesn't exist, returns default configuration.
// Supports TOML, JSON, and YAML formats based on file extension.
// Older schema versions are migrated in memory.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg, raw, err := readConfig(path)
	if err != nil {
		return nil, err
	}
	if cfg.Version < Version {
		if _, err := Migrate(cfg, raw, ""); err != nil {
			return nil, fmt.Errorf("migrate config: %w", err)
		}
	}

	// Apply environment variable overrides
	cfg.ApplyEnvOverrides()

	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// EnsureDirectories creates the directories the configured files live in.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Knowledge.Dir}
	if c.Journal.Enabled && c.Journal.Path != "" {
		dirs = append(dirs, filepath.Dir(c.Journal.Path))
	}
	if c.Logging.Output == "file" || c.Logging.Output == "both" {
		dirs = append(dirs, filepath.Dir(c.Logging.FilePath))
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(expandPath(dir), 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}

// DataDir returns the base data directory.
// Uses platform-specific paths or TEXTSWITCHER_DATA_DIR environment override.
func DataDir() string {
	if envDir := os.Getenv("TEXTSWITCHER_DATA_DIR"); envDir != "" {
		return envDir
	}
	return PlatformDataDir()
}

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables are prefixed with TEXTSWITCHER_ and use underscores.
func (c *Config) ApplyEnvOverrides() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v := os.Getenv("TEXTSWITCHER_SOURCE"); v != "" {
		c.Keyboard.Source = v
	}
	if v := os.Getenv("TEXTSWITCHER_TRIGGER"); v != "" {
		c.Keyboard.Trigger = v
	}
	if v, ok := envBool("TEXTSWITCHER_AUTO_CORRECT"); ok {
		c.Validator.AutoCorrect = v
	}

	if v := os.Getenv("TEXTSWITCHER_KNOWLEDGE_DIR"); v != "" {
		c.Knowledge.Dir = v
	}
	if v := os.Getenv("TEXTSWITCHER_JOURNAL_PATH"); v != "" {
		c.Journal.Path = v
	}

	// Logging overrides
	if v := os.Getenv("TEXTSWITCHER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("TEXTSWITCHER_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}

	if v := os.Getenv("TEXTSWITCHER_METRICS_ADDR"); v != "" {
		c.Metrics.ListenAddr = v
	}
	if v, ok := envBool("TEXTSWITCHER_NOTIFICATIONS"); ok {
		c.Notifications.Enabled = v
	}
}

func envBool(key string) (bool, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return &Config{
		Version:       c.Version,
		Keyboard:      c.Keyboard,
		Validator:     c.Validator,
		Knowledge:     c.Knowledge,
		Resources:     c.Resources,
		Replacer:      c.Replacer,
		Journal:       c.Journal,
		Notifications: c.Notifications,
		Metrics:       c.Metrics,
		Logging:       c.Logging,
	}
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// DoublePress returns the trigger double-tap window.
func (k KeyboardConfig) DoublePress() time.Duration { return ms(k.DoublePressMs) }

// UndoWindow returns the undo learning window.
func (k KeyboardConfig) UndoWindow() time.Duration { return ms(k.UndoWindowMs) }

// ContextMaxAge returns the context history age bound.
func (v ValidatorConfig) ContextMaxAge() time.Duration { return ms(v.ContextMaxAgeMs) }

// ForcedPruneAge returns the age after which soft forced conversions are pruned.
func (k KnowledgeConfig) ForcedPruneAge() time.Duration {
	return time.Duration(k.ForcedPruneDays) * 24 * time.Hour
}

// InterKey returns the delay between synthetic backspaces.
func (r ReplacerConfig) InterKey() time.Duration { return ms(r.InterKeyDelayMs) }

// Settle returns the delay between deleting and pasting.
func (r ReplacerConfig) Settle() time.Duration { return ms(r.SettleDelayMs) }

// Restore returns the delay before the clipboard is restored.
func (r ReplacerConfig) Restore() time.Duration { return ms(r.RestoreDelayMs) }
