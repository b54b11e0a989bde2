package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/openmath-eval/internal/store"
)

type listOptions struct {
	model     string
	condition string
	mode      string
	limit     int
}

func newListCmd(st *cliState) *cobra.Command {
	var opts listOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored experiments",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return st.loadConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return listExperiments(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.model, "model", "", "filter by model")
	cmd.Flags().StringVar(&opts.condition, "condition", "", "filter by condition")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "filter by mode")
	cmd.Flags().IntVar(&opts.limit, "limit", 20, "maximum rows")

	return cmd
}

func listExperiments(cmd *cobra.Command, st *cliState, opts *listOptions) error {
	if st == nil || opts == nil {
		return fmt.Errorf("list: nil state")
	}
	if st.cfg == nil {
		return fmt.Errorf("list: missing config (internal error)")
	}

	db, err := openStore(st.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	experiments, err := db.ListExperiments(cmd.Context(), store.ExperimentFilter{
		Model:     opts.model,
		Condition: opts.condition,
		Mode:      opts.mode,
		Limit:     opts.limit,
	})
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tMODEL\tCONDITION\tMODE\tTHRESHOLD\tACCURACY\tSTARTED")
	for _, exp := range experiments {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%g\t%d/%d (%.1f%%)\t%s\n",
			exp.ID, exp.Model, exp.Condition, exp.Mode, exp.Threshold,
			exp.CorrectCount, exp.TotalProblems, exp.Accuracy()*100,
			exp.StartedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}
