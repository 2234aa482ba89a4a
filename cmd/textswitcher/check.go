package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"textswitcher/internal/config"
	"textswitcher/internal/engine"
	"textswitcher/internal/metrics"
	"textswitcher/internal/validator"
)

var checkVerbose bool

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <word>...",
		Short: "Explain how each word would be handled",
		Long: `Check runs every word through the validator and prints what each layer
saw. Words are checked in order and earlier words act as typing context for
later ones. Learned exceptions and forced conversions are taken into
account; nothing is learned or journaled.`,
		Example: `  textswitcher check ghbdtn vbh
  textswitcher check --verbose "ntrcn,"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runCheckCmd,
	}

	cmd.Flags().BoolVarP(&checkVerbose, "verbose", "v", false, "show the verdict of every layer consulted")

	return cmd
}

func runCheckCmd(cmd *cobra.Command, args []string) error {
	stderr := cmd.ErrOrStderr()
	cfg, err := loadConfig(stderr)
	if err != nil {
		return err
	}
	eng, closeEng, err := newOfflineEngine(cfg, stderr)
	if err != nil {
		return err
	}
	defer closeEng()

	var words []string
	for _, a := range args {
		words = append(words, strings.Fields(a)...)
	}

	out := cmd.OutOrStdout()
	for i, r := range eng.Check(words) {
		if i > 0 {
			fmt.Fprintln(out)
		}
		writeReport(out, r, checkVerbose)
	}
	return nil
}

// newOfflineEngine builds an engine that never touches the desktop: no
// typing, no journal, no notifications and no metrics endpoint.
func newOfflineEngine(cfg *config.Config, stderr io.Writer) (*engine.Engine, func(), error) {
	cfg = cfg.Clone()
	cfg.Journal.Enabled = false
	cfg.Notifications.Enabled = false
	cfg.Metrics.ListenAddr = ""

	logger, err := newLogger(cfg, false, stderr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	eng, err := engine.New(engine.Options{
		Config:  cfg,
		Logger:  logger.Logger,
		Version: version,
		DryRun:  true,
		Metrics: metrics.New(false),
	})
	if err != nil {
		logger.Close()
		return nil, nil, fmt.Errorf("failed to start: %w", err)
	}
	return eng, func() {
		eng.Close()
		logger.Close()
	}, nil
}

func writeReport(w io.Writer, r validator.Report, verbose bool) {
	d := r.Decision
	verdict := keepStyle.Render("keep")
	if d.ShouldConvert() {
		verdict = convertStyle.Render("convert → " + d.Converted)
	}
	fmt.Fprintf(w, "%s  %s\n", titleStyle.Render(r.Word), verdict)

	c := r.Candidate
	field(w, "layout", c.Layout)
	field(w, "class", c.Class)
	if c.Converted != "" && c.Converted != c.Core {
		field(w, "converted", c.Converted)
	}
	if c.Trailing != "" {
		field(w, "trailing", fmt.Sprintf("%q", c.Trailing))
	}
	if r.Majority.Valid() {
		field(w, "context", r.Majority)
	}

	var known []string
	if r.Exception {
		known = append(known, "exception")
	}
	if r.Buzzword {
		known = append(known, "buzzword")
	}
	if r.ConvertedBuzzword {
		known = append(known, "converts to buzzword")
	}
	if r.Forced != "" {
		known = append(known, fmt.Sprintf("forced → %s (%s)", r.Forced, plural(r.ForcedCount, "confirmation")))
	}
	if len(known) > 0 {
		field(w, "knowledge", strings.Join(known, ", "))
	}

	if r.DictionaryReady {
		field(w, "dictionary", fmt.Sprintf("raw %s, converted %s", yesNo(r.RawKnown), yesNo(r.ConvertedKnown)))
	} else {
		field(w, "dictionary", mutedStyle.Render("unavailable"))
	}
	if r.NgramReady {
		field(w, "ngram", fmt.Sprintf("raw %.3f, converted %.3f, diff %+.3f", r.NgramRaw, r.NgramConverted, r.NgramDiff))
	} else {
		field(w, "ngram", mutedStyle.Render("unavailable"))
	}
	if r.SpellReady {
		field(w, "spell", fmt.Sprintf("raw %s, converted %s", yesNo(r.SpellRaw), yesNo(r.SpellConverted)))
	} else {
		field(w, "spell", mutedStyle.Render("unavailable"))
	}

	field(w, "layer", d.Layer)
	if d.Reason != "" {
		field(w, "reason", d.Reason)
	}
	if d.Deferred {
		field(w, "deferred", "converts with the next word")
	}

	if verbose && len(r.Trace) > 0 {
		fmt.Fprintf(w, "  %s\n", labelStyle.Render("trace"))
		for _, t := range r.Trace {
			fmt.Fprintf(w, "    %-12s %-9s %s\n", t.Layer, t.Verdict, mutedStyle.Render(t.Reason))
		}
	}
}
