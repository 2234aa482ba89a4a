package engine

import (
	"context"
	"errors"
	"fmt"

	"textswitcher/internal/health"
)

func (e *Engine) healthChecks() *health.Checker {
	c := health.NewChecker()

	c.RegisterFunc("source", true, func(context.Context) health.CheckResult {
		if !e.running.Load() {
			return health.Unhealthy("key source not capturing", nil)
		}
		return health.Healthy("capturing")
	})

	c.RegisterFunc("knowledge", false, func(context.Context) health.CheckResult {
		if err := e.store.LastError(); err != nil {
			return health.Degraded("last write failed", err)
		}
		r := health.Healthy("persisted")
		r.Details = map[string]any{
			"exceptions": len(e.store.Exceptions()),
			"forced":     len(e.store.ForcedConversions()),
		}
		return r
	})

	c.RegisterFunc("resources", false, func(context.Context) health.CheckResult {
		s := e.res.status()
		r := health.Healthy("loaded")
		r.Details = map[string]any{
			"english_words": s.EnglishWords,
			"russian_words": s.RussianWords,
			"ngram":         s.Ngram,
			"spell_en":      s.SpellEnglish,
			"spell_ru":      s.SpellRussian,
		}
		if len(s.Errors) > 0 {
			r.Status = health.StatusDegraded
			r.Message = fmt.Sprintf("%d resources failed to load", len(s.Errors))
			r.Error = errors.Join(s.Errors...).Error()
		}
		return r
	})

	if e.journal != nil {
		c.RegisterFunc("journal", false, func(ctx context.Context) health.CheckResult {
			if err := e.journal.Ping(ctx); err != nil {
				return health.Unhealthy("database unreachable", err)
			}
			if n := e.journal.Dropped(); n > 0 {
				return health.Degraded(fmt.Sprintf("%d entries dropped", n), nil)
			}
			return health.Healthy("writable")
		})
	}

	return c
}
