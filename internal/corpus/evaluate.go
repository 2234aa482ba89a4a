package corpus

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
)

// Corrector turns typed text into corrected text.
type Corrector interface {
	Correct(ctx context.Context, text string) (string, error)
}

// CorrectorFunc adapts a function to Corrector.
type CorrectorFunc func(ctx context.Context, text string) (string, error)

// Correct calls f.
func (f CorrectorFunc) Correct(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

// Failure kinds.
const (
	FalseNegative   = "false_negative"
	FalsePositive   = "false_positive"
	WrongConversion = "wrong_conversion"
)

// Outcome is the result of one case.
type Outcome struct {
	Case      Case
	Actual    string
	Passed    bool
	Converted bool
	Failure   string
}

// Stats are confusion counts for a set of cases.
type Stats struct {
	Total  int
	Passed int
	TP     int
	TN     int
	FP     int
	FN     int
}

// Failed returns the number of failed cases.
func (s Stats) Failed() int { return s.Total - s.Passed }

// Accuracy is passed over total.
func (s Stats) Accuracy() float64 { return ratio(s.Passed, s.Total) }

// Precision is TP over TP+FP.
func (s Stats) Precision() float64 { return ratio(s.TP, s.TP+s.FP) }

// Recall is TP over TP+FN.
func (s Stats) Recall() float64 { return ratio(s.TP, s.TP+s.FN) }

// F1 is the harmonic mean of precision and recall.
func (s Stats) F1() float64 {
	p, r := s.Precision(), s.Recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

func (s *Stats) add(o Outcome) {
	s.Total++
	if o.Passed {
		s.Passed++
	}
	switch {
	case o.Case.Convert && o.Converted && o.Passed:
		s.TP++
	case o.Case.Convert && !o.Converted:
		s.FN++
	case o.Case.Convert:
		s.FP++
	case !o.Converted:
		s.TN++
	default:
		s.FP++
	}
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

// Report is the result of an evaluation.
type Report struct {
	Stats
	Categories map[string]Stats
	Failures   map[string]int
	Outcomes   []Outcome
}

// Options narrows an evaluation.
type Options struct {
	// Category restricts the run to one category.
	Category string
	// Limit caps the number of cases; zero runs all of them.
	Limit int
}

// Evaluate runs every selected case through c. An error from the
// corrector aborts the run.
func Evaluate(ctx context.Context, corpus *Corpus, c Corrector, opts Options) (*Report, error) {
	cases := corpus.Cases(opts.Category)
	if opts.Category != "" && len(cases) == 0 {
		return nil, fmt.Errorf("unknown category %q", opts.Category)
	}
	if opts.Limit > 0 && len(cases) > opts.Limit {
		cases = cases[:opts.Limit]
	}

	r := &Report{
		Categories: map[string]Stats{},
		Failures:   map[string]int{},
		Outcomes:   make([]Outcome, 0, len(cases)),
	}
	for _, tc := range cases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		actual, err := c.Correct(ctx, tc.Input)
		if err != nil {
			return nil, fmt.Errorf("case %s: %w", tc.ID, err)
		}
		o := score(tc, actual)
		r.Outcomes = append(r.Outcomes, o)
		r.Stats.add(o)
		cs := r.Categories[tc.Category]
		cs.add(o)
		r.Categories[tc.Category] = cs
		if o.Failure != "" {
			r.Failures[o.Failure]++
		}
	}
	return r, nil
}

func score(tc Case, actual string) Outcome {
	o := Outcome{Case: tc, Actual: actual, Converted: actual != tc.Input}
	if tc.Convert {
		o.Passed = actual == tc.Expected
	} else {
		o.Passed = actual == tc.Input
	}
	if o.Passed {
		return o
	}
	switch {
	case !tc.Convert:
		o.Failure = FalsePositive
	case !o.Converted:
		o.Failure = FalseNegative
	default:
		o.Failure = WrongConversion
	}
	return o
}

// FailedOutcomes returns the outcomes that did not pass.
func (r *Report) FailedOutcomes() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if !o.Passed {
			out = append(out, o)
		}
	}
	return out
}

// Write prints a summary table followed by up to maxFailures failed
// cases.
func (r *Report) Write(w io.Writer, maxFailures int) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tTOTAL\tPASSED\tACCURACY\tFP\tFN")
	names := make([]string, 0, len(r.Categories))
	for name := range r.Categories {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s := r.Categories[name]
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.1f%%\t%d\t%d\n", name, s.Total, s.Passed, s.Accuracy()*100, s.FP, s.FN)
	}
	fmt.Fprintf(tw, "TOTAL\t%d\t%d\t%.1f%%\t%d\t%d\n", r.Total, r.Passed, r.Accuracy()*100, r.FP, r.FN)
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nprecision %.3f  recall %.3f  f1 %.3f\n", r.Precision(), r.Recall(), r.F1())
	if len(r.Failures) > 0 {
		parts := make([]string, 0, len(r.Failures))
		for _, kind := range []string{FalsePositive, FalseNegative, WrongConversion} {
			if n := r.Failures[kind]; n > 0 {
				parts = append(parts, fmt.Sprintf("%s=%d", kind, n))
			}
		}
		fmt.Fprintf(w, "failures: %s\n", strings.Join(parts, " "))
	}

	failed := r.FailedOutcomes()
	if maxFailures <= 0 || len(failed) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	for i, o := range failed {
		if i == maxFailures {
			fmt.Fprintf(w, "... %d more\n", len(failed)-maxFailures)
			break
		}
		_, err := fmt.Fprintf(w, "[%s] %s %q -> %q (expected %q)\n", o.Failure, o.Case.ID, o.Case.Input, o.Actual, o.Case.Expected)
		if err != nil {
			return err
		}
	}
	return nil
}
