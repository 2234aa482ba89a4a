package engine

import (
	"errors"
	"log/slog"

	"textswitcher/internal/config"
	"textswitcher/internal/dictionary"
	"textswitcher/internal/knowledge"
	"textswitcher/internal/layout"
	"textswitcher/internal/ngram"
)

// resources are the read-only inputs of the validator.
type resources struct {
	dictionary *dictionary.Dictionary
	spell      dictionary.SpellChecker
	hunspell   *dictionary.Hunspell
	scorer     *ngram.Scorer
	buzzwords  *knowledge.Buzzwords
	trained    bool
	errs       []error
}

// ResourceStatus reports which optional resources are in use.
type ResourceStatus struct {
	EnglishWords int
	RussianWords int
	Buzzwords    int
	Ngram        bool
	NgramTrained bool
	SpellEnglish bool
	SpellRussian bool
	Errors       []error
}

func (r *resources) status() ResourceStatus {
	s := ResourceStatus{
		EnglishWords: r.dictionary.Len(layout.English),
		RussianWords: r.dictionary.Len(layout.Russian),
		Buzzwords:    r.buzzwords.Len(),
		Ngram:        r.scorer != nil && r.scorer.Available(),
		NgramTrained: r.trained,
		SpellEnglish: r.hunspell.Has(layout.English),
		SpellRussian: r.hunspell.Has(layout.Russian),
		Errors:       r.errs,
	}
	return s
}

// loadResources never fails. A resource that cannot be loaded falls back
// to the bundled data where there is any, and otherwise disables the
// layers that need it.
func loadResources(cfg *config.Config, logger *slog.Logger) *resources {
	logger = logger.With("component", "resources")
	r := &resources{}

	dict, err := dictionary.Load(map[layout.Layout]string{
		layout.English: config.ExpandPath(cfg.Resources.DictionaryEN),
		layout.Russian: config.ExpandPath(cfg.Resources.DictionaryRU),
	})
	if err != nil {
		logger.Warn("word lists unavailable, using bundled lists", "error", err)
		r.errs = append(r.errs, err)
		dict = dictionary.Bundled()
	}
	r.dictionary = dict

	r.buzzwords = knowledge.BundledBuzzwords()
	if path := cfg.Knowledge.BuzzwordsPath; path != "" {
		b, err := knowledge.LoadBuzzwords(config.ExpandPath(path))
		if err != nil {
			logger.Warn("buzzword list unavailable, using bundled list", "error", err)
			r.errs = append(r.errs, err)
		} else {
			r.buzzwords = b
		}
	}

	r.loadHunspell(cfg.Resources, logger)
	r.loadNgram(cfg, logger)

	logger.Debug("resources loaded",
		"en_words", dict.Len(layout.English),
		"ru_words", dict.Len(layout.Russian),
		"buzzwords", r.buzzwords.Len(),
		"ngram_trained", r.trained,
	)
	return r
}

func hunspellPath(p string) (string, bool) {
	switch p {
	case "":
		return "", false
	case "auto":
		return "", true
	}
	return config.ExpandPath(p), true
}

func (r *resources) loadHunspell(res config.ResourcesConfig, logger *slog.Logger) {
	paths := map[layout.Layout]string{}
	enabled := false
	if p, ok := hunspellPath(res.HunspellEN); ok {
		paths[layout.English] = p
		enabled = true
	}
	if p, ok := hunspellPath(res.HunspellRU); ok {
		paths[layout.Russian] = p
		enabled = true
	}
	if !enabled {
		return
	}

	h, err := dictionary.LoadHunspell(paths)
	if err != nil {
		if errors.Is(err, dictionary.ErrNoDictionary) {
			logger.Info("no hunspell dictionaries found, spell check disabled")
		} else {
			logger.Warn("hunspell dictionaries", "error", err)
			r.errs = append(r.errs, err)
		}
	}
	if h != nil {
		r.hunspell = h
		r.spell = h
	}
}

func (r *resources) loadNgram(cfg *config.Config, logger *slog.Logger) {
	paths := ngram.Paths{
		EnglishBigrams:  config.ExpandPath(cfg.Resources.NgramENBigrams),
		EnglishTrigrams: config.ExpandPath(cfg.Resources.NgramENTrigrams),
		RussianBigrams:  config.ExpandPath(cfg.Resources.NgramRUBigrams),
		RussianTrigrams: config.ExpandPath(cfg.Resources.NgramRUTrigrams),
	}
	penalty := cfg.Validator.NgramPenalty

	if paths.Empty() {
		r.scorer = ngram.NewScorer(map[layout.Layout]*ngram.Model{
			layout.English: ngram.Train(r.dictionary.Words(layout.English)),
			layout.Russian: ngram.Train(r.dictionary.Words(layout.Russian)),
		}, penalty)
		r.trained = true
		return
	}

	models, err := ngram.LoadModels(paths)
	if err != nil {
		// configured tables that fail to load disable the layer
		logger.Warn("n-gram tables unavailable, n-gram layer disabled", "error", err)
		r.errs = append(r.errs, err)
		return
	}
	r.scorer = ngram.NewScorer(models, penalty)
}
