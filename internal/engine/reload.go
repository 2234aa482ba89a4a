package engine

import (
	"textswitcher/internal/config"
	"textswitcher/internal/keystroke"
	"textswitcher/internal/logging"
	"textswitcher/internal/monitor"
	"textswitcher/internal/replacer"
	"textswitcher/internal/validator"
)

func validatorConfig(cfg *config.Config) validator.Config {
	return validator.Config{
		MinWordLength:          cfg.Validator.MinWordLength,
		ContextMinMajority:     cfg.Validator.ContextMinMajority,
		NgramMargin:            cfg.Validator.NgramMargin,
		NgramMinLength:         cfg.Validator.NgramMinLength,
		ForcedMinConfirmations: cfg.Knowledge.ForcedMinConfirmations,
	}
}

func monitorConfig(cfg *config.Config) monitor.Config {
	mc := monitor.DefaultConfig()
	mc.AutoCorrect = cfg.Validator.AutoCorrect
	if key, ok := keystroke.ParseTrigger(cfg.Keyboard.Trigger); ok {
		mc.Trigger = key
	}
	mc.DoublePress = cfg.Keyboard.DoublePress()
	mc.UndoWindow = cfg.Keyboard.UndoWindow()
	mc.QueueLimit = cfg.Keyboard.QueueLimit
	mc.EchoSuppression = cfg.Keyboard.EchoSuppression
	return mc
}

func replacerDelays(cfg *config.Config) replacer.Delays {
	return replacer.Delays{
		InterKey: cfg.Replacer.InterKey(),
		Settle:   cfg.Replacer.Settle(),
		Restore:  cfg.Replacer.Restore(),
	}
}

// ApplyConfig updates the running components. Thresholds, timings, the
// trigger, notifications and the log level take effect immediately.
// Resource paths, storage paths, the key source and the metrics address
// are read at startup only; changes to them are logged and ignored.
func (e *Engine) ApplyConfig(cfg *config.Config, logger *logging.Logger) {
	next := cfg.Clone()

	e.mu.Lock()
	prev := e.cfg
	e.cfg = next
	e.mu.Unlock()

	e.validator.SetConfig(validatorConfig(next))
	e.monitor.SetConfig(monitorConfig(next))
	e.replacer.SetDelays(replacerDelays(next))
	e.history.SetBounds(next.Validator.ContextMaxEntries, next.Validator.ContextMaxAge())
	e.notify.setEnabled(next.Notifications.Enabled)

	if logger != nil {
		if level, err := logging.ParseLevel(next.Logging.Level); err == nil && level != logger.Level() {
			logger.SetLevel(level)
			e.logger.Info("log level changed", "level", logging.LevelString(level))
		}
	}

	if prev.Resources != next.Resources || prev.Knowledge.Dir != next.Knowledge.Dir ||
		prev.Knowledge.BuzzwordsPath != next.Knowledge.BuzzwordsPath ||
		prev.Validator.NgramPenalty != next.Validator.NgramPenalty {
		e.logger.Warn("resource settings changed, restart to apply")
	}
	if prev.Journal != next.Journal || prev.Keyboard.Source != next.Keyboard.Source ||
		prev.Keyboard.EvdevLayout != next.Keyboard.EvdevLayout || prev.Metrics != next.Metrics {
		e.logger.Warn("startup settings changed, restart to apply")
	}
	e.logger.Info("configuration applied", "auto_correct", next.Validator.AutoCorrect, "trigger", next.Keyboard.Trigger)
}

// Watch applies every configuration the loader reloads.
func (e *Engine) Watch(loader *config.Loader, logger *logging.Logger) {
	loader.OnChange(func(cfg *config.Config) {
		e.ApplyConfig(cfg, logger)
	})
}
