package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveDecision(t *testing.T) {
	m := New(false)

	m.ObserveDecision("dictionary", "convert", 20*time.Microsecond)
	m.ObserveDecision("dictionary", "convert", 30*time.Microsecond)
	m.ObserveDecision("exception", "keep", time.Microsecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Decisions.WithLabelValues("dictionary", "convert")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Decisions.WithLabelValues("exception", "keep")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ValidateDuration))
}

func TestObserveCorrection(t *testing.T) {
	m := New(false)

	m.ObserveCorrection("auto", false)
	m.ObserveCorrection("abort", true)
	m.ObserveCorrection("auto", false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Replacements.WithLabelValues("auto", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Replacements.WithLabelValues("abort", "failed")))
}

func TestGauges(t *testing.T) {
	m := New(false)
	m.SetKnowledge(4, 2)
	m.DroppedEvents.Add(3)

	assert.Equal(t, 4.0, testutil.ToFloat64(m.Exceptions))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ForcedConversion))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.DroppedEvents))
}

func TestRegistriesAreIndependent(t *testing.T) {
	a := New(false)
	b := New(true)
	a.DroppedEvents.Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.DroppedEvents))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.DroppedEvents))
}

func TestServer(t *testing.T) {
	m := New(false)
	m.ObserveDecision("ngram", "convert", time.Microsecond)

	srv, err := m.Listen("127.0.0.1:0", nil)
	require.NoError(t, err)
	srv.Handle("/readyz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `textswitcher_decisions_total{layer="ngram",verdict="convert"} 1`), string(body))
	assert.Contains(t, string(body), "textswitcher_uptime_seconds")

	resp, err = http.Get("http://" + srv.Addr() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get("http://" + srv.Addr() + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestListenInvalidAddr(t *testing.T) {
	m := New(false)
	_, err := m.Listen("not-an-address", nil)
	assert.Error(t, err)
}
