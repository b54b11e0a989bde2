package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/openmath-eval/internal/metrics"
	"github.com/stellarlinkco/openmath-eval/internal/store"
)

type compareOptions struct {
	model     string
	mode      string
	threshold float64
}

func newCompareCmd(st *cliState) *cobra.Command {
	var opts compareOptions

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare the latest baseline and openmath experiments",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return st.loadConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return compareConditions(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.model, "model", "", "model name")
	cmd.Flags().StringVar(&opts.mode, "mode", "greedy", "sampling mode")
	cmd.Flags().Float64Var(&opts.threshold, "threshold", 0.6, "reranker score threshold")

	return cmd
}

func compareConditions(cmd *cobra.Command, st *cliState, opts *compareOptions) error {
	if st == nil || opts == nil {
		return fmt.Errorf("compare: nil state")
	}
	if st.cfg == nil {
		return fmt.Errorf("compare: missing config (internal error)")
	}
	model := strings.TrimSpace(opts.model)
	if model == "" {
		model = configuredModel(st.cfg)
	}
	if model == "" {
		return fmt.Errorf("compare: --model is required")
	}

	db, err := openStore(st.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	comparison, err := db.GetConditionComparison(cmd.Context(), model, opts.mode, opts.threshold)
	if err != nil {
		return err
	}

	outcomes := append(
		outcomesFromRecords(comparison.BaselineResults, "baseline"),
		outcomesFromRecords(comparison.OpenMathResults, "openmath")...)

	calc := metrics.NewCalculator(0)
	summary := calc.GenerateSummary(outcomes, []string{"baseline", "openmath"})

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Model:     %s\n", comparison.Model)
	fmt.Fprintf(out, "Mode:      %s\n", comparison.Mode)
	fmt.Fprintf(out, "Threshold: %g\n", comparison.Threshold)
	fmt.Fprintf(out, "Baseline:  %s\n", comparison.BaselineID)
	fmt.Fprintf(out, "OpenMath:  %s\n", comparison.OpenMathID)
	fmt.Fprintln(out)
	fmt.Fprint(out, calc.FormatSummaryTable(summary))

	if len(comparison.Regressions) > 0 {
		fmt.Fprintf(out, "\nRegressions (%d): %s\n",
			len(comparison.Regressions), strings.Join(comparison.Regressions, ", "))
	}
	if len(comparison.Improvements) > 0 {
		fmt.Fprintf(out, "\nImprovements (%d): %s\n",
			len(comparison.Improvements), strings.Join(comparison.Improvements, ", "))
	}
	return nil
}

func outcomesFromRecords(records []*store.ProblemRecord, condition string) []metrics.Outcome {
	out := make([]metrics.Outcome, 0, len(records))
	for _, r := range records {
		out = append(out, metrics.Outcome{
			Condition:   condition,
			Level:       r.Level,
			ProblemType: r.ProblemType,
			IsCorrect:   r.IsCorrect,
		})
	}
	return out
}
