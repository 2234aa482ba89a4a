package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/beeep"

	"textswitcher/internal/journal"
	"textswitcher/internal/keystroke"
	"textswitcher/internal/knowledge"
	"textswitcher/internal/metrics"
	"textswitcher/internal/monitor"
	"textswitcher/internal/validator"
)

const appName = "TextSwitcher"

// Notifier shows a desktop notification.
type Notifier interface {
	Notify(title, message string) error
}

// DesktopNotifier uses the platform notification service.
type DesktopNotifier struct{}

// Notify implements Notifier.
func (DesktopNotifier) Notify(title, message string) error {
	return beeep.Notify(title, message, "")
}

type notice struct {
	title, message string
}

// notifier delivers notices on its own goroutine so monitor hooks never
// wait on the desktop. Notices beyond the queue are dropped.
type notifier struct {
	target  Notifier
	enabled atomic.Bool
	queue   chan notice
	done    chan struct{}
	once    sync.Once
	logger  *slog.Logger
}

func newNotifier(target Notifier, enabled bool, logger *slog.Logger) *notifier {
	n := &notifier{
		target: target,
		queue:  make(chan notice, 8),
		done:   make(chan struct{}),
		logger: logger.With("component", "notify"),
	}
	n.enabled.Store(enabled)
	go n.loop()
	return n
}

func (n *notifier) loop() {
	defer close(n.done)
	for msg := range n.queue {
		if err := n.target.Notify(msg.title, msg.message); err != nil {
			n.logger.Debug("notification failed", "error", err)
		}
	}
}

func (n *notifier) send(title, message string) {
	if !n.enabled.Load() {
		return
	}
	select {
	case n.queue <- notice{title: title, message: message}:
	default:
		n.logger.Debug("notification dropped")
	}
}

func (n *notifier) setEnabled(v bool) { n.enabled.Store(v) }

func (n *notifier) close() {
	n.once.Do(func() {
		n.enabled.Store(false)
		close(n.queue)
		<-n.done
	})
}

// observedKnowledge counts what the monitor teaches the store.
type observedKnowledge struct {
	*knowledge.Store
	metrics *metrics.Metrics
}

func (k *observedKnowledge) AddException(word, reason string) (knowledge.Exception, bool, error) {
	exc, created, err := k.Store.AddException(word, reason)
	if created {
		k.metrics.LearnedExceptions.WithLabelValues(reason).Inc()
	}
	k.refresh()
	return exc, created, err
}

func (k *observedKnowledge) ConfirmForced(original, corrected string) (knowledge.ForcedConversion, error) {
	f, err := k.Store.ConfirmForced(original, corrected)
	if err == nil {
		k.metrics.ForcedConfirmed.Inc()
	}
	k.refresh()
	return f, err
}

func (k *observedKnowledge) refresh() {
	k.metrics.SetKnowledge(len(k.Store.Exceptions()), len(k.Store.ForcedConversions()))
}

func (e *Engine) refreshKnowledgeGauges() {
	e.metrics.SetKnowledge(len(e.store.Exceptions()), len(e.store.ForcedConversions()))
}

func (e *Engine) observeDecision(d validator.Decision, took time.Duration) {
	e.metrics.ObserveDecision(d.Layer.String(), d.Verdict.String(), took)
}

func (e *Engine) hooks() monitor.Hooks {
	return monitor.Hooks{
		OnCorrection:       e.onCorrection,
		OnLearnedException: e.onLearnedException,
		OnManualOverride:   e.onManualOverride,
		OnDrop: func(keystroke.Event) {
			e.metrics.DroppedEvents.Inc()
		},
	}
}

func (e *Engine) onCorrection(c monitor.Correction) {
	e.metrics.ObserveCorrection(string(c.Kind), c.Err != nil)
	if c.Err != nil {
		e.logger.Warn("replacement failed", "kind", c.Kind, "layer", c.Layer, "error", c.Err)
	}
	if e.journal == nil {
		return
	}
	entry := journal.Entry{
		Kind:        string(c.Kind),
		Original:    c.Original,
		Replacement: c.Replacement,
		Layer:       c.Layer,
		Reason:      c.Reason,
		CreatedAt:   c.Time,
	}
	if c.Err != nil {
		entry.Error = c.Err.Error()
	}
	if !e.journal.Record(entry) {
		e.metrics.JournalDropped.Inc()
	}
}

func (e *Engine) onLearnedException(word string) {
	e.notify.send(appName, fmt.Sprintf("%q will no longer be converted", word))
}

func (e *Engine) onManualOverride(original, converted string) {
	e.notify.send(appName, fmt.Sprintf("%s → %s", original, converted))
}
