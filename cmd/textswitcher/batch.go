package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"textswitcher/internal/corpus"
)

var (
	batchCategory     string
	batchLimit        int
	batchMinAccuracy  float64
	batchFailures     int
	batchUseKnowledge bool
)

// errBelowThreshold is returned when --min-accuracy is not met.
var errBelowThreshold = errors.New("accuracy below threshold")

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch [corpus.json]",
		Short: "Score the corrector against a test corpus",
		Long: `Batch types every case of a corpus into a simulated text field and
compares the result with the expected text. Without an argument the bundled
smoke corpus is used.

Learned knowledge is ignored unless --use-knowledge is given, so results do
not depend on what this machine has learned.`,
		Example: `  textswitcher batch
  textswitcher batch tests.json --category ru_typed_as_en --failures 20
  textswitcher batch tests.json --min-accuracy 95`,
		Args: cobra.MaximumNArgs(1),
		RunE: runBatchCmd,
	}

	cmd.Flags().StringVar(&batchCategory, "category", "", "only run one category")
	cmd.Flags().IntVar(&batchLimit, "limit", 0, "cases per category (0 = all)")
	cmd.Flags().Float64Var(&batchMinAccuracy, "min-accuracy", 0, "fail when overall accuracy is below this percentage")
	cmd.Flags().IntVar(&batchFailures, "failures", 10, "failed cases to list")
	cmd.Flags().BoolVar(&batchUseKnowledge, "use-knowledge", false, "apply learned exceptions and forced conversions")

	return cmd
}

func runBatchCmd(cmd *cobra.Command, args []string) error {
	if batchMinAccuracy < 0 || batchMinAccuracy > 100 {
		return fmt.Errorf("--min-accuracy must be between 0 and 100")
	}

	c := corpus.Bundled()
	if len(args) == 1 {
		loaded, err := corpus.Load(args[0])
		if err != nil {
			return fmt.Errorf("failed to load corpus: %w", err)
		}
		c = loaded
	}

	stderr := cmd.ErrOrStderr()
	cfg, err := loadConfig(stderr)
	if err != nil {
		return err
	}
	if !batchUseKnowledge {
		dir, err := os.MkdirTemp("", "textswitcher-batch-")
		if err != nil {
			return fmt.Errorf("failed to create scratch knowledge dir: %w", err)
		}
		defer os.RemoveAll(dir)
		cfg.Knowledge.Dir = dir
	}

	eng, closeEng, err := newOfflineEngine(cfg, stderr)
	if err != nil {
		return err
	}
	defer closeEng()

	report, err := corpus.Evaluate(cmd.Context(), c, corpus.CorrectorFunc(eng.CorrectText), corpus.Options{
		Category: batchCategory,
		Limit:    batchLimit,
	})
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	if err := report.Write(cmd.OutOrStdout(), batchFailures); err != nil {
		return err
	}

	accuracy := report.Stats.Accuracy() * 100
	if batchMinAccuracy > 0 && accuracy < batchMinAccuracy {
		fmt.Fprintln(stderr, failStyle.Render(fmt.Sprintf("accuracy %.1f%% is below %.1f%%", accuracy, batchMinAccuracy)))
		return fmt.Errorf("%w: %.1f%% < %.1f%%", errBelowThreshold, accuracy, batchMinAccuracy)
	}
	return nil
}
