package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// DebounceDelay is how long the loader waits after the last file event
// before reloading.
const DebounceDelay = 200 * time.Millisecond

// Loader handles configuration loading, watching, and hot-reloading.
type Loader struct {
	path     string
	config   *Config
	mu       sync.RWMutex
	watcher  *fsnotify.Watcher
	onChange []func(*Config)
	logger   *slog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	errChan  chan error
	done     chan struct{}
}

// NewLoader creates a new configuration loader.
func NewLoader(path string, logger *slog.Logger) *Loader {
	if path == "" {
		path = ConfigPath()
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Loader{
		path:    path,
		logger:  logger.With("component", "config"),
		errChan: make(chan error, 1),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Path returns the watched file.
func (l *Loader) Path() string { return l.path }

// Load reads and parses the configuration file. A file written for an
// older schema is migrated, backed up and rewritten.
func (l *Loader) Load() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cfg, raw, err := readConfig(l.path)
	if err != nil {
		return nil, err
	}

	// Check for migrations
	if cfg.Version < Version {
		result, err := Migrate(cfg, raw, l.path)
		if err != nil {
			return nil, fmt.Errorf("migration failed: %w", err)
		}
		if result != nil {
			for _, w := range result.Warnings {
				l.logger.Warn("config migration", "warning", w)
			}
			l.logger.Info("config migrated", "from", result.FromVersion, "to", result.ToVersion, "backup", result.Backup)
			if result.Backup != "" {
				if err := SaveConfig(cfg, l.path); err != nil {
					l.logger.Warn("rewrite migrated config", "error", err)
				}
			}
		}
	}

	// Apply environment overrides
	cfg.ApplyEnvOverrides()

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	l.config = cfg
	return cfg, nil
}

// Config returns the current configuration.
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config
}

// Watch starts watching the configuration file for changes.
// When changes are detected, the configuration is reloaded and
// registered callbacks are invoked. An invalid file is reported on
// Errors and the previous configuration stays in effect.
func (l *Loader) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	l.watcher = watcher

	// Watch the directory so editors that replace the file are seen.
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		watcher.Close()
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch directory: %w", err)
	}

	l.done = make(chan struct{})
	go l.watchLoop()

	return nil
}

// watchLoop handles file system events.
func (l *Loader) watchLoop() {
	defer close(l.done)

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-l.ctx.Done():
			return

		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(l.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(DebounceDelay, l.reload)

		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.report(err)
		}
	}
}

func (l *Loader) report(err error) {
	l.logger.Warn("config watch", "error", err)
	select {
	case l.errChan <- err:
	default:
	}
}

// reload attempts to reload the configuration.
func (l *Loader) reload() {
	if l.ctx.Err() != nil {
		return
	}
	newCfg, raw, err := readConfig(l.path)
	if err != nil {
		l.report(fmt.Errorf("reload config: %w", err))
		return
	}
	if newCfg.Version < Version {
		if _, err := Migrate(newCfg, raw, ""); err != nil {
			l.report(fmt.Errorf("migrate config: %w", err))
			return
		}
	}

	newCfg.ApplyEnvOverrides()

	// Validate before applying
	if err := newCfg.Validate(); err != nil {
		l.report(fmt.Errorf("validate new config: %w", err))
		return
	}

	l.mu.Lock()
	l.config = newCfg
	callbacks := append([]func(*Config){}, l.onChange...)
	l.mu.Unlock()

	l.logger.Info("config reloaded", "path", l.path)
	for _, cb := range callbacks {
		cb(newCfg)
	}
}

// OnChange registers a callback to be invoked when the configuration changes.
func (l *Loader) OnChange(cb func(*Config)) {
	l.mu.Lock()
	l.onChange = append(l.onChange, cb)
	l.mu.Unlock()
}

// Errors returns a channel for receiving errors that occur during watching.
func (l *Loader) Errors() <-chan error {
	return l.errChan
}

// Close stops the watcher and releases resources.
func (l *Loader) Close() error {
	l.cancel()
	if l.watcher == nil {
		return nil
	}
	err := l.watcher.Close()
	if l.done != nil {
		<-l.done
	}
	return err
}

// readConfig parses path over the defaults and also returns the document
// as a generic map, which migrations use to find legacy keys. A missing
// file yields the defaults.
func readConfig(path string) (*Config, map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil, nil
		}
		return nil, nil, fmt.Errorf("read config: %w", err)
	}

	f, raw, err := decodeRaw(path, data)
	if err != nil {
		return nil, nil, err
	}

	cfg := DefaultConfig()

	// A document without a version predates versioning. Its flat keys may
	// share a name with a current section ("notifications = false"), so
	// only tables are decoded here and Migrate moves the rest.
	if _, ok := raw["version"]; !ok {
		if err := decodeSections(raw, cfg); err != nil {
			return nil, nil, fmt.Errorf("decode %s: %w", f.name, err)
		}
		cfg.Version = 1
		return cfg, raw, nil
	}

	if err := f.decode(data, cfg); err != nil {
		return nil, nil, fmt.Errorf("decode %s: %w", f.name, err)
	}
	return cfg, raw, nil
}

type format struct {
	name   string
	decode func(data []byte, v any) error
}

var (
	formatTOML = format{"TOML", func(data []byte, v any) error {
		_, err := toml.Decode(string(data), v)
		return err
	}}
	formatJSON = format{"JSON", json.Unmarshal}
	formatYAML = format{"YAML", yaml.Unmarshal}
)

// decodeRaw decodes data as a generic document, choosing the format by
// extension or, failing that, by trying each one in turn.
func decodeRaw(path string, data []byte) (format, map[string]any, error) {
	var formats []format
	switch filepath.Ext(path) {
	case ".toml":
		formats = []format{formatTOML}
	case ".json":
		formats = []format{formatJSON}
	case ".yaml", ".yml":
		formats = []format{formatYAML}
	default:
		// TOML first, it is the most common
		formats = []format{formatTOML, formatJSON, formatYAML}
	}

	var lastErr error
	for _, f := range formats {
		raw := map[string]any{}
		if err := f.decode(data, &raw); err != nil {
			lastErr = fmt.Errorf("decode %s: %w", f.name, err)
			continue
		}
		return f, raw, nil
	}
	if len(formats) > 1 {
		return format{}, nil, fmt.Errorf("parse config: unable to parse config file (tried TOML, JSON, YAML)")
	}
	return format{}, nil, lastErr
}

// decodeSections decodes the table-valued keys of raw into cfg.
func decodeSections(raw map[string]any, cfg *Config) error {
	sections := make(map[string]any, len(raw))
	for k, v := range raw {
		switch v.(type) {
		case map[string]any:
			sections[k] = v
		}
	}
	data, err := json.Marshal(sections)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, cfg)
}

// LoadOrCreate loads the configuration from the specified path,
// creating a default configuration file if it doesn't exist.
func LoadOrCreate(path string) (*Config, bool, error) {
	if path == "" {
		path = ConfigPath()
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := SaveConfig(cfg, path); err != nil {
			return nil, false, fmt.Errorf("create default config: %w", err)
		}
		return cfg, true, nil
	}

	loader := NewLoader(path, nil)
	cfg, err := loader.Load()
	if err != nil {
		return nil, false, err
	}

	return cfg, false, nil
}

// SaveConfig saves the configuration to a file.
func SaveConfig(cfg *Config, path string) error {
	data, err := Encode(cfg, filepath.Ext(path))
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// Encode renders cfg in the format named by ext (".toml", ".json",
// ".yaml"); anything else is TOML.
func Encode(cfg *Config, ext string) ([]byte, error) {
	snapshot := cfg.Clone()
	switch ext {
	case ".json":
		return json.MarshalIndent(snapshot, "", "  ")
	case ".yaml", ".yml":
		return yaml.Marshal(snapshot)
	default:
		var buf bytes.Buffer
		buf.WriteString("# textswitcher configuration\n\n")
		if err := toml.NewEncoder(&buf).Encode(snapshot); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
}
