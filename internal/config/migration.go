package config

import (
	"fmt"
	"os"
	"time"
)

// MigrationResult contains the result of a configuration migration.
type MigrationResult struct {
	FromVersion int
	ToVersion   int
	Backup      string
	Changes     []string
	Warnings    []string
}

// Migrate upgrades cfg to the current version. raw is the parsed document
// as a generic map; version 1 kept every setting at the top level, so the
// values are taken from there. When configPath names an existing file it
// is backed up first.
func Migrate(cfg *Config, raw map[string]any, configPath string) (*MigrationResult, error) {
	if cfg.Version >= Version {
		return nil, nil
	}
	if cfg.Version < 1 {
		cfg.Version = 1
	}

	result := &MigrationResult{
		FromVersion: cfg.Version,
		ToVersion:   Version,
	}

	if configPath != "" {
		backup, err := backupConfig(configPath)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("could not create backup: %v", err))
		} else {
			result.Backup = backup
		}
	}

	// Apply migrations in sequence
	for cfg.Version < Version {
		changes, warnings, err := applyMigration(cfg, raw)
		if err != nil {
			return result, fmt.Errorf("migration from v%d to v%d failed: %w", cfg.Version, cfg.Version+1, err)
		}
		result.Changes = append(result.Changes, changes...)
		result.Warnings = append(result.Warnings, warnings...)
	}

	return result, nil
}

// applyMigration applies a single version upgrade.
func applyMigration(cfg *Config, raw map[string]any) (changes []string, warnings []string, err error) {
	switch cfg.Version {
	case 1:
		changes, warnings = migrateV1ToV2(cfg, raw)
	default:
		return nil, nil, fmt.Errorf("unknown version %d", cfg.Version)
	}

	cfg.Version++
	return changes, warnings, nil
}

// migrateV1ToV2 moves the flat version 1 keys into their sections.
func migrateV1ToV2(cfg *Config, raw map[string]any) (changes []string, warnings []string) {
	intKey := func(key string, dst *int, field string) {
		v, ok := raw[key]
		if !ok {
			return
		}
		n, ok := toInt(v)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("ignored %s: not a number", key))
			return
		}
		*dst = n
		changes = append(changes, fmt.Sprintf("moved %s to %s", key, field))
	}
	boolKey := func(key string, dst *bool, field string) {
		v, ok := raw[key]
		if !ok {
			return
		}
		b, ok := v.(bool)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("ignored %s: not a boolean", key))
			return
		}
		*dst = b
		changes = append(changes, fmt.Sprintf("moved %s to %s", key, field))
	}
	stringKey := func(key string, dst *string, field string) {
		v, ok := raw[key]
		if !ok {
			return
		}
		s, ok := v.(string)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("ignored %s: not a string", key))
			return
		}
		*dst = s
		changes = append(changes, fmt.Sprintf("moved %s to %s", key, field))
	}

	intKey("double_shift_ms", &cfg.Keyboard.DoublePressMs, "keyboard.double_press_ms")
	intKey("undo_window_ms", &cfg.Keyboard.UndoWindowMs, "keyboard.undo_window_ms")
	intKey("min_word_length", &cfg.Validator.MinWordLength, "validator.min_word_length")
	boolKey("auto_correct", &cfg.Validator.AutoCorrect, "validator.auto_correct")
	boolKey("notifications", &cfg.Notifications.Enabled, "notifications.enabled")
	stringKey("log_level", &cfg.Logging.Level, "logging.level")
	stringKey("data_dir", &cfg.Knowledge.Dir, "knowledge.dir")

	for _, key := range []string{"hotkey", "launch_at_login"} {
		if _, ok := raw[key]; ok {
			warnings = append(warnings, fmt.Sprintf("dropped unsupported setting %s", key))
		}
	}

	return changes, warnings
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

// backupConfig creates a backup of the config file.
func backupConfig(configPath string) (string, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return "", nil // No file to backup
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("read config: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	backupPath := configPath + ".backup-" + timestamp

	if err := os.WriteFile(backupPath, data, 0600); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}

	return backupPath, nil
}
