package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/openmath-eval/internal/report"
)

type reportOptions struct {
	baselinePath string
	openmathPath string
	model        string
	thresholds   string
	output       string
}

func newReportCmd(st *cliState) *cobra.Command {
	var opts reportOptions

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Extract a threshold-sweep CSV from a transcript pair",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return st.loadConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return extractReport(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.baselinePath, "baseline", "", "baseline transcript markdown")
	cmd.Flags().StringVar(&opts.openmathPath, "openmath", "", "openmath transcript markdown")
	cmd.Flags().StringVar(&opts.model, "model", "", "model name for CSV rows (defaults to the transcript header)")
	cmd.Flags().StringVar(&opts.thresholds, "thresholds", "", "comma-separated threshold sweep (default 0.0-0.9)")
	cmd.Flags().StringVar(&opts.output, "output", "", "output CSV path (default results/results_flexible_<ts>.csv)")

	return cmd
}

func extractReport(cmd *cobra.Command, st *cliState, opts *reportOptions) error {
	if st == nil || opts == nil {
		return fmt.Errorf("report: nil state")
	}
	if st.cfg == nil {
		return fmt.Errorf("report: missing config (internal error)")
	}
	if strings.TrimSpace(opts.baselinePath) == "" || strings.TrimSpace(opts.openmathPath) == "" {
		return fmt.Errorf("report: --baseline and --openmath are required")
	}

	thresholds, err := parseThresholds(opts.thresholds)
	if err != nil {
		return err
	}

	baseline, err := report.ParseTranscriptFile(opts.baselinePath)
	if err != nil {
		return err
	}
	openmath, err := report.ParseTranscriptFile(opts.openmathPath)
	if err != nil {
		return err
	}

	reranked, err := loadReranked(st.cfg.Data.RerankedPath)
	if err != nil {
		return err
	}

	model := strings.TrimSpace(opts.model)
	if model == "" {
		model = report.NormalizeModelName(baseline.Metadata.Model)
	}
	mode := baseline.Metadata.Mode

	rows := report.SweepRows(model, mode, reranked, baseline.Results, openmath.Results, thresholds)

	output := strings.TrimSpace(opts.output)
	if output == "" {
		output = report.DefaultCSVPath(st.cfg.Experiment.OutputDir, time.Now())
	}
	if err := report.WriteCSV(output, rows); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Parsed %d baseline and %d openmath results\n", len(baseline.Results), len(openmath.Results))
	fmt.Fprintf(out, "Wrote %d rows to %s\n", len(rows), output)
	return nil
}

func parseThresholds(raw string) ([]float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var out []float64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("report: invalid threshold %q", part)
		}
		out = append(out, v)
	}
	return out, nil
}
