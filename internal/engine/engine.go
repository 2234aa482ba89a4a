// Package engine owns one running instance of textswitcher.
//
// An Engine builds every component from a config.Config: the resources the
// validator consults, the knowledge store, the context ring, the replacer
// and the keyboard monitor. It fans monitor events out to the journal, the
// metrics registry and desktop notifications, and applies configuration
// changes to the running components.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"textswitcher/internal/config"
	"textswitcher/internal/health"
	"textswitcher/internal/history"
	"textswitcher/internal/journal"
	"textswitcher/internal/keystroke"
	"textswitcher/internal/knowledge"
	"textswitcher/internal/layout"
	"textswitcher/internal/logging"
	"textswitcher/internal/metrics"
	"textswitcher/internal/monitor"
	"textswitcher/internal/replacer"
	"textswitcher/internal/validator"
)

// Options wires an Engine. Only Config is required; the rest default to
// the production implementations.
type Options struct {
	Config *config.Config
	Logger *slog.Logger

	// Version is stamped into crash reports.
	Version string

	// DryRun replaces the desktop injector and clipboard with an in-memory
	// screen, so corrections are logged and journaled but never typed.
	DryRun bool

	Source    keystroke.Source
	Injector  replacer.Injector
	Clipboard replacer.Clipboard
	Selection monitor.SelectionProvider
	Notifier  Notifier

	// Metrics defaults to a registry with the Go runtime collectors.
	Metrics *metrics.Metrics

	// CrashDir overrides where crash reports are written.
	CrashDir string

	// Now overrides the clock of the knowledge store.
	Now func() time.Time
}

// Engine is a running textswitcher instance.
type Engine struct {
	mu  sync.RWMutex
	cfg *config.Config

	logger    *slog.Logger
	res       *resources
	store     *knowledge.Store
	validator *validator.Validator
	history   *history.Ring
	replacer  *replacer.Replacer
	monitor   *monitor.Monitor
	journal   *journal.Journal
	metrics   *metrics.Metrics
	crash     *logging.CrashHandler
	health    *health.Checker
	notify    *notifier
	selection monitor.SelectionProvider
	source    keystroke.Source
	dryRun    bool
	running   atomic.Bool

	closeOnce sync.Once
}

// New builds an Engine. Resource files that fail to load are logged and
// their layers are disabled; a knowledge store or journal that cannot be
// opened is an error.
func New(opts Options) (*Engine, error) {
	if opts.Config == nil {
		return nil, errors.New("engine: config is required")
	}
	cfg := opts.Config.Clone()
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		cfg:     cfg,
		logger:  logger.With("component", "engine"),
		metrics: opts.Metrics,
		source:  opts.Source,
		dryRun:  opts.DryRun,
	}
	if e.metrics == nil {
		e.metrics = metrics.New(true)
	}
	e.crash = logging.NewCrashHandler(&logging.CrashHandlerConfig{
		CrashDir: opts.CrashDir,
		Version:  opts.Version,
		Logger:   logger,
	})

	e.res = loadResources(cfg, logger)

	store, err := knowledge.Open(knowledge.Options{
		Dir:           config.ExpandPath(cfg.Knowledge.Dir),
		HardThreshold: cfg.Knowledge.ForcedHardThreshold,
		Logger:        logger,
		Now:           opts.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("open knowledge store: %w", err)
	}
	for _, lerr := range store.LoadErrors() {
		e.logger.Warn("knowledge document reset", "error", lerr)
	}
	e.store = store
	if age := cfg.Knowledge.ForcedPruneAge(); age > 0 {
		if n := store.Prune(age); n > 0 {
			e.logger.Info("pruned forced conversions", "count", n)
		}
	}

	if cfg.Journal.Enabled {
		j, err := journal.Open(config.ExpandPath(cfg.Journal.Path), journal.Options{Logger: logger})
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("open journal: %w", err)
		}
		e.journal = j
		if cfg.Journal.RetentionDays > 0 {
			cutoff := time.Now().AddDate(0, 0, -cfg.Journal.RetentionDays)
			if n, err := j.Prune(cutoff); err != nil {
				e.logger.Warn("prune journal", "error", err)
			} else if n > 0 {
				e.logger.Info("pruned journal", "count", n)
			}
		}
	}

	e.validator = validator.New(validatorConfig(cfg), validator.Deps{
		Dictionary: e.res.dictionary,
		Spell:      e.res.spell,
		Scorer:     e.res.scorer,
		Buzzwords:  e.res.buzzwords,
		Knowledge:  store,
		Observe:    e.observeDecision,
	})
	e.history = history.NewRing(cfg.Validator.ContextMaxEntries, cfg.Validator.ContextMaxAge())

	injector, clipboard := opts.Injector, opts.Clipboard
	if clipboard == nil {
		if opts.DryRun {
			clipboard = replacer.NewMemoryClipboard("")
		} else {
			clipboard = keystroke.SystemClipboard{}
		}
	}
	if injector == nil {
		if opts.DryRun {
			injector = replacer.NewScreen(clipboard)
		} else {
			kb, err := replacer.NewKeybdInjector()
			if err != nil {
				e.closeStores()
				return nil, fmt.Errorf("create injector: %w", err)
			}
			injector = kb
		}
	}
	e.replacer = replacer.New(injector, clipboard, replacer.Options{
		Delays: replacerDelays(cfg),
		Logger: logger,
	})

	e.selection = opts.Selection
	if e.selection == nil && !opts.DryRun {
		e.selection = keystroke.NewPrimarySelection()
	}

	notify := opts.Notifier
	if notify == nil {
		notify = DesktopNotifier{}
	}
	e.notify = newNotifier(notify, cfg.Notifications.Enabled, logger)

	e.monitor = monitor.New(monitor.Options{
		Config:    monitorConfig(cfg),
		Validator: e.validator,
		Knowledge: &observedKnowledge{Store: store, metrics: e.metrics},
		Replacer:  e.replacer,
		Selection: e.selection,
		History:   e.history,
		Hooks:     e.hooks(),
		Logger:    logger,
	})
	e.refreshKnowledgeGauges()
	e.health = e.healthChecks()
	return e, nil
}

// Config returns a copy of the active configuration.
func (e *Engine) Config() *config.Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg.Clone()
}

// Knowledge returns the knowledge store.
func (e *Engine) Knowledge() *knowledge.Store { return e.store }

// Journal returns the correction journal, or nil when it is disabled.
func (e *Engine) Journal() *journal.Journal { return e.journal }

// Metrics returns the metrics registry.
func (e *Engine) Metrics() *metrics.Metrics { return e.metrics }

// Monitor returns the keyboard monitor.
func (e *Engine) Monitor() *monitor.Monitor { return e.monitor }

// Validator returns the validator.
func (e *Engine) Validator() *validator.Validator { return e.validator }

// Health returns the component health checker.
func (e *Engine) Health() *health.Checker { return e.health }

// Resources describes which optional resources are active.
func (e *Engine) Resources() ResourceStatus { return e.res.status() }

// Close flushes the knowledge store and closes the journal. It is safe to
// call more than once.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.notify.close()
		err = e.closeStores()
	})
	return err
}

func (e *Engine) closeStores() error {
	var errs []error
	if err := e.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close knowledge store: %w", err))
	}
	if e.journal != nil {
		if err := e.journal.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close journal: %w", err))
		}
		if n := e.journal.Dropped(); n > 0 {
			e.logger.Warn("journal entries dropped", "count", n)
		}
	}
	return errors.Join(errs...)
}

// Run captures keys until ctx is cancelled. The metrics endpoint, when
// configured, runs alongside the monitor. A panic in the monitor is
// written to a crash report and returned as an error.
func (e *Engine) Run(ctx context.Context) error {
	cfg := e.Config()

	src := e.source
	if src == nil {
		l, _ := layout.Parse(cfg.Keyboard.EvdevLayout)
		s, err := keystroke.New(keystroke.Options{
			Kind:        cfg.Keyboard.Source,
			EvdevLayout: l,
			Logger:      e.logger,
		})
		if err != nil {
			return fmt.Errorf("create key source: %w", err)
		}
		src = s
	}
	if ok, reason := src.Available(); !ok {
		return fmt.Errorf("%w: %s", keystroke.ErrNotAvailable, reason)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if addr := cfg.Metrics.ListenAddr; addr != "" {
		srv, err := e.metrics.Listen(addr, e.logger)
		if err != nil {
			return fmt.Errorf("metrics endpoint: %w", err)
		}
		srv.Handle("/health", e.health.HealthHandler())
		srv.Handle("/readyz", e.health.ReadinessHandler())
		e.logger.Info("metrics endpoint listening", "addr", srv.Addr())
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.crash.Recover("metrics", func() {
				if err := srv.Serve(ctx); err != nil {
					e.logger.Warn("metrics endpoint stopped", "error", err)
				}
			})
		}()
	}
	defer wg.Wait()

	if p, ok := e.selection.(*keystroke.PrimarySelection); ok {
		p.Prime()
	}

	e.logger.Info("engine started",
		"source", src.Name(),
		"auto_correct", cfg.Validator.AutoCorrect,
		"dry_run", e.dryRun,
		"exceptions", len(e.store.Exceptions()),
		"forced", len(e.store.ForcedConversions()),
	)

	e.running.Store(true)
	e.health.SetReady(true)
	var runErr error
	if e.crash.Recover("monitor", func() { runErr = e.monitor.Run(ctx, src) }) {
		runErr = errors.New("engine: monitor crashed")
	}
	e.running.Store(false)
	e.health.SetReady(false)
	cancel()

	if err := e.store.Flush(); err != nil {
		e.logger.Warn("flush knowledge store", "error", err)
	}
	if e.journal != nil {
		flushCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		if err := e.journal.Flush(flushCtx); err != nil && !errors.Is(err, journal.ErrClosed) {
			e.logger.Warn("flush journal", "error", err)
		}
		done()
	}
	st := e.monitor.Stats()
	e.logger.Info("engine stopped", "auto", st.Auto, "manual", st.Manual, "undo", st.Undo, "aborted", st.Aborted, "dropped", st.Dropped)
	return runErr
}
