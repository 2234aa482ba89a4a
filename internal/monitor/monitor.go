// Package monitor turns the key event stream into layout corrections.
//
// The Monitor keeps the word being typed, punctuation typed right after it
// and the last completed word. At a word boundary the word goes through the
// validator; a Convert decision becomes a replacement. A double tap of the
// trigger modifier converts the current text by hand, and an undo shortly
// after an automatic replacement teaches the knowledge store to leave that
// word alone.
//
// HandleEvent is the single-threaded core and must not be called
// concurrently. Run drives it from a Source and executes replacements on a
// worker goroutine; while a replacement is in flight further events are
// queued up to a bound and replayed when it finishes.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"textswitcher/internal/history"
	"textswitcher/internal/keystroke"
	"textswitcher/internal/knowledge"
	"textswitcher/internal/replacer"
	"textswitcher/internal/validator"
)

// Validator decides single words.
type Validator interface {
	Validate(word string, ctx []history.Entry) validator.Decision
	ValidateWhole(word string, ctx []history.Entry) validator.Decision
}

// Knowledge receives what the monitor learns.
type Knowledge interface {
	AddException(word, reason string) (knowledge.Exception, bool, error)
	ConfirmForced(original, corrected string) (knowledge.ForcedConversion, error)
}

// Replacer performs on-screen replacements.
type Replacer interface {
	Replace(ctx context.Context, req replacer.Request) replacer.Result
}

// SelectionProvider reports text the user has selected, if any changed
// since the last query.
type SelectionProvider interface {
	Selection() (string, bool)
}

// Kind classifies a correction.
type Kind string

const (
	KindAuto   Kind = "auto"
	KindManual Kind = "manual"
	KindUndo   Kind = "undo"
	KindAbort  Kind = "abort"
)

// Correction describes one replacement, learned undo or aborted attempt.
type Correction struct {
	Kind        Kind
	Original    string
	Replacement string
	Layer       string
	Reason      string
	Time        time.Time
	Err         error
}

// Hooks are called on the monitor goroutine and must not block.
type Hooks struct {
	OnCorrection       func(Correction)
	OnLearnedException func(word string)
	OnManualOverride   func(original, converted string)
	OnDrop             func(keystroke.Event)
}

// Config holds the monitor settings.
type Config struct {
	AutoCorrect     bool
	Trigger         keystroke.Key
	DoublePress     time.Duration
	UndoWindow      time.Duration
	QueueLimit      int
	EchoSuppression bool

	// UndoModifier is the modifier of the platform undo chord.
	UndoModifier keystroke.Modifiers
}

// DefaultConfig returns the default settings for this platform.
func DefaultConfig() Config {
	undo := keystroke.ModControl
	if runtime.GOOS == "darwin" {
		undo = keystroke.ModMeta
	}
	return Config{
		AutoCorrect:     true,
		Trigger:         keystroke.KeyShift,
		DoublePress:     400 * time.Millisecond,
		UndoWindow:      5 * time.Second,
		QueueLimit:      32,
		EchoSuppression: true,
		UndoModifier:    undo,
	}
}

// Options wires a Monitor.
type Options struct {
	Config    Config
	Validator Validator
	Knowledge Knowledge
	Replacer  Replacer
	Selection SelectionProvider
	History   *history.Ring
	Hooks     Hooks
	Logger    *slog.Logger
}

// Stats are cumulative counters, safe to read from any goroutine.
type Stats struct {
	Auto    uint64
	Manual  uint64
	Undo    uint64
	Aborted uint64
	Dropped uint64
	Echoes  uint64
}

type counters struct {
	auto, manual, undo, aborted, dropped, echoes atomic.Uint64
}

// Monitor is the keyboard monitor.
type Monitor struct {
	cfg       atomic.Pointer[Config]
	validator Validator
	knowledge Knowledge
	replacer  Replacer
	selection SelectionProvider
	history   *history.Ring
	hooks     Hooks
	logger    *slog.Logger
	stats     counters

	// Everything below is owned by the goroutine calling HandleEvent.
	st          state
	lastTap     time.Time
	lastAuto    *autoRecord
	inFlight    *job
	queue       []keystroke.Event
	echo        echoBudget
	jobs        chan<- job
	syncResults []jobResult
}

type autoRecord struct {
	word        string
	replacement string
	at          time.Time
}

type echoBudget struct {
	backspaces int
	pastes     int
}

func (e echoBudget) empty() bool { return e.backspaces == 0 && e.pastes == 0 }

// New creates a Monitor. Validator and Replacer are required.
func New(opts Options) *Monitor {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.History == nil {
		opts.History = history.NewRing(0, 0)
	}
	m := &Monitor{
		validator: opts.Validator,
		knowledge: opts.Knowledge,
		replacer:  opts.Replacer,
		selection: opts.Selection,
		history:   opts.History,
		hooks:     opts.Hooks,
		logger:    opts.Logger.With("component", "monitor"),
	}
	m.SetConfig(opts.Config)
	return m
}

// SetConfig replaces the settings. It may be called from any goroutine.
// Zero durations and limits take their defaults.
func (m *Monitor) SetConfig(cfg Config) {
	def := DefaultConfig()
	if cfg.Trigger == keystroke.KeyNone {
		cfg.Trigger = def.Trigger
	}
	if cfg.DoublePress <= 0 {
		cfg.DoublePress = def.DoublePress
	}
	if cfg.UndoWindow <= 0 {
		cfg.UndoWindow = def.UndoWindow
	}
	if cfg.QueueLimit <= 0 {
		cfg.QueueLimit = def.QueueLimit
	}
	if cfg.UndoModifier == 0 {
		cfg.UndoModifier = def.UndoModifier
	}
	m.cfg.Store(&cfg)
}

// Config returns the active settings.
func (m *Monitor) Config() Config {
	return *m.cfg.Load()
}

// Stats returns the counters.
func (m *Monitor) Stats() Stats {
	return Stats{
		Auto:    m.stats.auto.Load(),
		Manual:  m.stats.manual.Load(),
		Undo:    m.stats.undo.Load(),
		Aborted: m.stats.aborted.Load(),
		Dropped: m.stats.dropped.Load(),
		Echoes:  m.stats.echoes.Load(),
	}
}

// Snapshot is the visible monitor state, for diagnostics and tests.
type Snapshot struct {
	Buffer   string
	Pending  string
	LastWord string
	Trail    string
	InFlight bool
	Queued   int
}

// Snapshot returns the current state. Like HandleEvent it belongs to the
// event goroutine.
func (m *Monitor) Snapshot() Snapshot {
	s := Snapshot{
		Buffer:   string(m.st.buffer),
		Pending:  string(m.st.pending),
		Trail:    string(m.st.trail),
		InFlight: m.inFlight != nil,
		Queued:   len(m.queue),
	}
	if m.st.last != nil {
		s.LastWord = m.st.last.text
	}
	return s
}

// HandleEvent processes one key event. Without Run, replacements execute
// inline and their results are applied before HandleEvent returns.
func (m *Monitor) HandleEvent(ev keystroke.Event) {
	m.handle(ev)
	m.flushSync()
}

func (m *Monitor) flushSync() {
	for len(m.syncResults) > 0 {
		r := m.syncResults[0]
		m.syncResults = m.syncResults[1:]
		m.complete(r)
	}
}

// Run starts src and feeds its events to the monitor until the context is
// cancelled or the source closes its channel. Replacements run on a worker
// goroutine and their results are applied on the event goroutine.
func (m *Monitor) Run(ctx context.Context, src keystroke.Source) error {
	events, err := src.Start(ctx)
	if err != nil {
		return fmt.Errorf("start %s source: %w", src.Name(), err)
	}
	defer src.Stop()

	jobs := make(chan job, 1)
	results := make(chan jobResult, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := range jobs {
			results <- jobResult{job: j, res: m.replacer.Replace(ctx, j.req)}
		}
	}()
	m.jobs = jobs
	defer func() {
		m.jobs = nil
		close(jobs)
		wg.Wait()
	}()

	m.logger.Info("monitor started", "source", src.Name())
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitor stopped")
			return nil
		case r := <-results:
			m.complete(r)
		case ev, ok := <-events:
			if !ok {
				for m.inFlight != nil {
					select {
					case r := <-results:
						m.complete(r)
					case <-ctx.Done():
						return nil
					}
				}
				m.logger.Info("event source closed")
				return nil
			}
			m.handle(ev)
		}
	}
}

func (m *Monitor) handle(ev keystroke.Event) {
	if m.inFlight != nil {
		if m.consumeEcho(ev) {
			return
		}
		limit := m.Config().QueueLimit
		if len(m.queue) >= limit {
			m.stats.dropped.Add(1)
			m.logger.Warn("key event dropped during replacement", "key", ev.Key.String(), "queued", len(m.queue))
			if m.hooks.OnDrop != nil {
				m.hooks.OnDrop(ev)
			}
			return
		}
		m.queue = append(m.queue, ev)
		return
	}
	if m.consumeEcho(ev) {
		return
	}
	m.process(ev)
}

// consumeEcho recognises our own synthetic backspaces and paste chord.
// Events the OS marks as injected are always ignored. Without the injected
// flag (IBus, evdev) the expected number of backspaces and one paste chord
// are swallowed; the first unrelated event after a replacement ends the
// budget.
func (m *Monitor) consumeEcho(ev keystroke.Event) bool {
	if ev.Injected {
		m.stats.echoes.Add(1)
		return true
	}
	if m.echo.empty() || !m.Config().EchoSuppression {
		return false
	}
	switch {
	case ev.Key == keystroke.KeyBackspace && !ev.Modifiers.Chord() && m.echo.backspaces > 0:
		m.echo.backspaces--
	case isPaste(ev) && m.echo.pastes > 0:
		m.echo.pastes--
	case (ev.Key == keystroke.KeyControl || ev.Key == keystroke.KeyMeta) && m.echo.pastes > 0:
		// modifier press that opens the paste chord
	default:
		if m.inFlight == nil {
			m.echo = echoBudget{}
		}
		return false
	}
	m.stats.echoes.Add(1)
	return true
}

func isPaste(ev keystroke.Event) bool {
	if !ev.Modifiers.Has(keystroke.ModControl) && !ev.Modifiers.Has(keystroke.ModMeta) {
		return false
	}
	switch ev.Char {
	case 'v', 'V', 'м', 'М':
		return true
	}
	return false
}

func isUndo(ev keystroke.Event, cfg Config) bool {
	if !ev.Modifiers.Has(cfg.UndoModifier) || ev.Modifiers.Has(keystroke.ModShift) {
		return false
	}
	switch ev.Char {
	case 'z', 'Z', 'я', 'Я':
		return true
	}
	return false
}

func (m *Monitor) process(ev keystroke.Event) {
	cfg := m.Config()

	if ev.Key.IsModifier() {
		if ev.Key != cfg.Trigger {
			if !ev.Repeat {
				m.lastTap = time.Time{}
			}
			return
		}
		if ev.Repeat {
			return
		}
		if !m.lastTap.IsZero() && ev.Time.Sub(m.lastTap) <= cfg.DoublePress && !ev.Time.Before(m.lastTap) {
			m.lastTap = time.Time{}
			m.override(ev)
			return
		}
		m.lastTap = ev.Time
		return
	}
	m.lastTap = time.Time{}

	switch {
	case ev.Key == keystroke.KeyBackspace && !ev.Modifiers.Chord():
		m.backspace()
	case ev.Key == keystroke.KeyFocus:
		m.lastAuto = nil
		m.reset("focus")
	case ev.Key != keystroke.KeyNone:
		m.reset(ev.Key.String())
	case ev.Modifiers.Chord():
		if isUndo(ev, cfg) {
			m.undo(ev, cfg)
		}
		m.reset("chord")
	case ev.Char != 0:
		m.typeChar(ev)
	}
}

func (m *Monitor) reset(reason string) {
	if !m.st.isEmpty() {
		m.logger.Debug("state reset", "reason", reason)
	}
	m.st = state{}
}

func (m *Monitor) backspace() {
	switch {
	case len(m.st.pending) > 0:
		m.st.pending = m.st.pending[:len(m.st.pending)-1]
	case len(m.st.buffer) > 0:
		m.st.buffer = m.st.buffer[:len(m.st.buffer)-1]
	case len(m.st.trail) > 0:
		m.st.trail = m.st.trail[:len(m.st.trail)-1]
	default:
		// deleting into the previous word; its text is no longer known
		m.st = state{}
	}
}

func (m *Monitor) undo(ev keystroke.Event, cfg Config) {
	rec := m.lastAuto
	if rec == nil {
		return
	}
	age := ev.Time.Sub(rec.at)
	if age < 0 || age > cfg.UndoWindow {
		return
	}
	m.lastAuto = nil
	m.stats.undo.Add(1)

	created := false
	if m.knowledge != nil {
		_, isNew, err := m.knowledge.AddException(rec.word, knowledge.ReasonUndo)
		if err != nil {
			m.logger.Warn("learn exception", "error", err)
		}
		created = isNew
	}
	m.logger.Info("undo learned exception", "new", created)
	m.logger.Debug("undo", "word", rec.word, "replacement", rec.replacement)
	m.emit(Correction{Kind: KindUndo, Original: rec.word, Replacement: rec.replacement, Time: ev.Time})
	if created && m.hooks.OnLearnedException != nil {
		m.hooks.OnLearnedException(rec.word)
	}
}

func (m *Monitor) emit(c Correction) {
	if m.hooks.OnCorrection != nil {
		m.hooks.OnCorrection(c)
	}
}
