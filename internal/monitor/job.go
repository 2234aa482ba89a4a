package monitor

import (
	"context"
	"time"

	"textswitcher/internal/replacer"
	"textswitcher/internal/validator"
)

// job is one replacement with the states to install when it finishes.
type job struct {
	kind        Kind
	req         replacer.Request
	original    string
	replacement string
	learn       string // word to make an exception of on undo
	learnable   bool
	decision    validator.Decision
	at          time.Time

	before state // restored when nothing was deleted
	after  state // installed on success
}

type jobResult struct {
	job job
	res replacer.Result
}

func (m *Monitor) submit(j job) {
	m.inFlight = &j
	m.echo = echoBudget{}
	if m.Config().EchoSuppression {
		m.echo.backspaces = j.req.Delete
		if j.req.Text != "" {
			m.echo.pastes = 1
		}
	}
	if m.jobs != nil {
		m.jobs <- j
		return
	}
	res := m.replacer.Replace(context.Background(), j.req)
	m.syncResults = append(m.syncResults, jobResult{job: j, res: res})
}

func (m *Monitor) complete(r jobResult) {
	j, res := r.job, r.res
	m.inFlight = nil

	if res.Err != nil && !res.Pasted {
		m.stats.aborted.Add(1)
		m.echo = echoBudget{}
		if res.Deleted == 0 {
			m.st = j.before
		} else {
			m.st = state{}
		}
		m.logger.Warn("replacement aborted", "kind", j.kind, "deleted", res.Deleted, "error", res.Err)
		m.emit(Correction{
			Kind:        KindAbort,
			Original:    j.original,
			Replacement: j.replacement,
			Layer:       layerName(j),
			Reason:      string(j.kind),
			Time:        j.at,
			Err:         res.Err,
		})
		m.drain()
		return
	}
	if res.Err != nil {
		m.logger.Warn("clipboard not restored after replacement", "error", res.Err)
	}

	m.st = j.after
	c := Correction{
		Kind:        j.kind,
		Original:    j.original,
		Replacement: j.replacement,
		Layer:       layerName(j),
		Reason:      j.decision.Reason,
		Time:        j.at,
	}
	switch j.kind {
	case KindAuto:
		m.stats.auto.Add(1)
		m.lastAuto = &autoRecord{word: j.learn, replacement: j.replacement, at: j.at}
		m.logger.Info("auto correction", "layer", c.Layer, "took", res.Duration)
	case KindManual:
		m.stats.manual.Add(1)
		c.Reason = "manual"
		m.learnForced(j)
		m.logger.Info("manual correction", "took", res.Duration)
		if m.hooks.OnManualOverride != nil {
			m.hooks.OnManualOverride(j.original, j.replacement)
		}
	}
	m.emit(c)
	m.drain()
}

func layerName(j job) string {
	if j.kind == KindManual {
		return "manual"
	}
	return j.decision.Layer.String()
}

// drain replays events queued during a replacement. It stops early when one
// of them starts another replacement.
func (m *Monitor) drain() {
	for m.inFlight == nil && len(m.queue) > 0 {
		ev := m.queue[0]
		m.queue = m.queue[1:]
		if m.consumeEcho(ev) {
			continue
		}
		m.process(ev)
	}
	if len(m.queue) == 0 {
		m.queue = nil
	}
}
