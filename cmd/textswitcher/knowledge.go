package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"textswitcher/internal/knowledge"
)

var forcedPruneDays int

func newExceptionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "exceptions",
		Aliases: []string{"exc"},
		Short:   "Manage words that are never converted automatically",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List exceptions",
		Args:  cobra.NoArgs,
		RunE:  runExceptionsList,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "add <word>...",
		Short: "Add exceptions",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runExceptionsAdd,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "remove <word>...",
		Short: "Remove exceptions",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runExceptionsRemove,
	})

	return cmd
}

func withKnowledge(cmd *cobra.Command, fn func(*knowledge.Store) error) error {
	cfg, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	store, err := openKnowledge(cfg)
	if err != nil {
		return err
	}
	for _, lerr := range store.LoadErrors() {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", lerr)
	}
	if err := fn(store); err != nil {
		store.Close()
		return err
	}
	if err := store.Close(); err != nil {
		return fmt.Errorf("failed to save knowledge: %w", err)
	}
	return nil
}

func runExceptionsList(cmd *cobra.Command, args []string) error {
	return withKnowledge(cmd, func(store *knowledge.Store) error {
		out := cmd.OutOrStdout()
		list := store.Exceptions()
		if len(list) == 0 {
			fmt.Fprintln(out, "no exceptions")
			return nil
		}
		tw := newTable(out)
		fmt.Fprintln(tw, "WORD\tREASON\tADDED")
		for _, e := range list {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Word, e.Reason, ago(e.Timestamp))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(out, mutedStyle.Render(plural(len(list), "exception")))
		return nil
	})
}

func runExceptionsAdd(cmd *cobra.Command, args []string) error {
	return withKnowledge(cmd, func(store *knowledge.Store) error {
		out := cmd.OutOrStdout()
		for _, word := range args {
			word = strings.TrimSpace(word)
			_, created, err := store.AddException(word, knowledge.ReasonManual)
			if err != nil {
				return fmt.Errorf("failed to add %q: %w", word, err)
			}
			if created {
				fmt.Fprintf(out, "added %s\n", word)
			} else {
				fmt.Fprintf(out, "%s is already an exception\n", word)
			}
		}
		return nil
	})
}

func runExceptionsRemove(cmd *cobra.Command, args []string) error {
	return withKnowledge(cmd, func(store *knowledge.Store) error {
		out := cmd.OutOrStdout()
		missing := 0
		for _, word := range args {
			if store.RemoveException(word) {
				fmt.Fprintf(out, "removed %s\n", word)
			} else {
				fmt.Fprintf(out, "%s is not an exception\n", word)
				missing++
			}
		}
		if missing == len(args) {
			return fmt.Errorf("no exceptions removed")
		}
		return nil
	})
}

func newForcedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forced",
		Short: "Manage conversions learned from manual corrections",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List forced conversions, most confirmed first",
		Args:  cobra.NoArgs,
		RunE:  runForcedList,
	})

	prune := &cobra.Command{
		Use:   "prune",
		Short: "Drop stale conversions that are not yet permanent",
		Args:  cobra.NoArgs,
		RunE:  runForcedPrune,
	}
	prune.Flags().IntVar(&forcedPruneDays, "days", 0, "maximum age in days (default knowledge.forced_prune_days)")
	cmd.AddCommand(prune)

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <word>...",
		Short: "Forget forced conversions",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runForcedRemove,
	})

	return cmd
}

func runForcedList(cmd *cobra.Command, args []string) error {
	return withKnowledge(cmd, func(store *knowledge.Store) error {
		out := cmd.OutOrStdout()
		list := store.ForcedConversions()
		if len(list) == 0 {
			fmt.Fprintln(out, "no forced conversions")
			return nil
		}
		tw := newTable(out)
		fmt.Fprintln(tw, "ORIGINAL\tCORRECTED\tCONFIRMED\tSTATE\tLAST USED")
		for _, f := range list {
			state := "learning"
			if store.IsHard(f) {
				state = "permanent"
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", f.Original, f.Corrected, f.ConfirmationCount, state, ago(f.Updated))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("%s, permanent after %d",
			plural(len(list), "conversion"), store.HardThreshold())))
		return nil
	})
}

func runForcedPrune(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	days := cfg.Knowledge.ForcedPruneDays
	if cmd.Flags().Changed("days") {
		days = forcedPruneDays
	}
	if days <= 0 {
		return fmt.Errorf("--days must be positive")
	}

	return withKnowledge(cmd, func(store *knowledge.Store) error {
		n := store.Prune(time.Duration(days) * 24 * time.Hour)
		fmt.Fprintf(cmd.OutOrStdout(), "pruned %s older than %d days\n", plural(n, "conversion"), days)
		return nil
	})
}

func runForcedRemove(cmd *cobra.Command, args []string) error {
	return withKnowledge(cmd, func(store *knowledge.Store) error {
		out := cmd.OutOrStdout()
		removed := 0
		for _, word := range args {
			if store.RemoveForced(word) {
				fmt.Fprintf(out, "removed %s\n", word)
				removed++
			} else {
				fmt.Fprintf(out, "%s has no forced conversion\n", word)
			}
		}
		if removed == 0 {
			return fmt.Errorf("no forced conversions removed")
		}
		return nil
	})
}
