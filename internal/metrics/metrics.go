// Package metrics provides Prometheus metrics for textswitcher.
//
// Features:
//   - Counters for decisions, replacements, dropped events and learning
//   - Gauges for knowledge store size and uptime
//   - A histogram of cascade latency
//   - Optional HTTP endpoint for scraping
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "textswitcher"

// Metrics holds all textswitcher metrics on a private registry.
type Metrics struct {
	registry *prometheus.Registry
	started  time.Time

	// Counters
	Decisions         *prometheus.CounterVec
	Replacements      *prometheus.CounterVec
	DroppedEvents     prometheus.Counter
	LearnedExceptions *prometheus.CounterVec
	ForcedConfirmed   prometheus.Counter
	JournalDropped    prometheus.Counter

	// Gauges
	Exceptions       prometheus.Gauge
	ForcedConversion prometheus.Gauge

	// Histograms
	ValidateDuration prometheus.Histogram
}

// New creates and registers all metrics. withRuntime adds the Go and
// process collectors.
func New(withRuntime bool) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		started:  time.Now(),

		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Word decisions by deciding layer and verdict.",
		}, []string{"layer", "verdict"}),
		Replacements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replacements_total",
			Help:      "Corrections by kind (auto, manual, undo, abort) and result.",
		}, []string{"kind", "result"}),
		DroppedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_events_total",
			Help:      "Key events dropped while a replacement was in flight.",
		}),
		LearnedExceptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "learned_exceptions_total",
			Help:      "Exceptions added, by reason.",
		}, []string{"reason"}),
		ForcedConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forced_confirmations_total",
			Help:      "Manual overrides recorded as forced conversions.",
		}),
		JournalDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "journal_dropped_total",
			Help:      "Journal entries dropped because the write queue was full.",
		}),

		Exceptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "exceptions",
			Help:      "Words in the exception list.",
		}),
		ForcedConversion: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "forced_conversions",
			Help:      "Learned forced conversions.",
		}),

		ValidateDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "validate_duration_seconds",
			Help:      "Time spent deciding one word.",
			Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}),
	}

	m.registry.MustRegister(
		m.Decisions,
		m.Replacements,
		m.DroppedEvents,
		m.LearnedExceptions,
		m.ForcedConfirmed,
		m.JournalDropped,
		m.Exceptions,
		m.ForcedConversion,
		m.ValidateDuration,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Seconds since the engine started.",
		}, func() float64 { return time.Since(m.started).Seconds() }),
	)
	if withRuntime {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveDecision records one validator decision.
func (m *Metrics) ObserveDecision(layer, verdict string, took time.Duration) {
	m.Decisions.WithLabelValues(layer, verdict).Inc()
	m.ValidateDuration.Observe(took.Seconds())
}

// ObserveCorrection records one monitor correction.
func (m *Metrics) ObserveCorrection(kind string, failed bool) {
	result := "ok"
	if failed {
		result = "failed"
	}
	m.Replacements.WithLabelValues(kind, result).Inc()
}

// SetKnowledge updates the knowledge store gauges.
func (m *Metrics) SetKnowledge(exceptions, forced int) {
	m.Exceptions.Set(float64(exceptions))
	m.ForcedConversion.Set(float64(forced))
}

// Handler returns the /metrics handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Server serves /metrics and /healthz on a listen address.
type Server struct {
	srv    *http.Server
	mux    *http.ServeMux
	ln     net.Listener
	logger *slog.Logger
}

// Listen binds addr and prepares the server. Serve starts it.
func (m *Metrics) Listen(addr string, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	return &Server{
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		mux:    mux,
		ln:     ln,
		logger: logger.With("component", "metrics"),
	}, nil
}

// Handle registers an extra endpoint. Call it before Serve.
func (s *Server) Handle(pattern string, h http.Handler) {
	s.mux.Handle(pattern, h)
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Serve blocks until ctx is cancelled, then shuts the server down.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("serving metrics", "addr", s.Addr())
		errCh <- s.srv.Serve(s.ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}
