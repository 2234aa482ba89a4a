package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"textswitcher/internal/config"
	"textswitcher/internal/journal"
)

var (
	historyLimit int
	historyKind  string
	historyStats bool
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent corrections from the journal",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}

	cmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "entries to show")
	cmd.Flags().StringVar(&historyKind, "kind", "", "only show one kind: auto, manual, undo, abort")
	cmd.Flags().BoolVar(&historyStats, "stats", false, "show totals instead of entries")

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	switch historyKind {
	case "", journal.KindAuto, journal.KindManual, journal.KindUndo, journal.KindAbort:
	default:
		return fmt.Errorf("unknown kind %q", historyKind)
	}

	cfg, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if !cfg.Journal.Enabled {
		return fmt.Errorf("the journal is disabled (journal.enabled = false)")
	}

	j, err := journal.Open(config.ExpandPath(cfg.Journal.Path), journal.Options{})
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer j.Close()

	out := cmd.OutOrStdout()
	if historyStats {
		s, err := j.Stats()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s, first %s, last %s\n", plural(s.Total, "correction"), ago(s.First), ago(s.Last))
		kinds := make([]string, 0, len(s.ByKind))
		for k := range s.ByKind {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		tw := newTable(out)
		for _, k := range kinds {
			fmt.Fprintf(tw, "  %s\t%d\n", k, s.ByKind[k])
		}
		return tw.Flush()
	}

	entries, err := j.Recent(historyLimit, historyKind)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "no corrections recorded")
		return nil
	}

	tw := newTable(out)
	fmt.Fprintln(tw, "WHEN\tKIND\tORIGINAL\tREPLACEMENT\tLAYER")
	for _, e := range entries {
		replacement := truncate(e.Replacement, 32)
		if e.Error != "" {
			replacement = failStyle.Render("failed: " + truncate(e.Error, 40))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", ago(e.CreatedAt), e.Kind, truncate(e.Original, 32), replacement, e.Layer)
	}
	return tw.Flush()
}
