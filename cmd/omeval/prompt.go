package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/openmath-eval/internal/openmath"
	"github.com/stellarlinkco/openmath-eval/internal/prompt"
	"github.com/stellarlinkco/openmath-eval/internal/retrieval"
)

type promptOptions struct {
	condition string
	topK      int
}

func newPromptCmd(st *cliState) *cobra.Command {
	var opts promptOptions

	cmd := &cobra.Command{
		Use:   "prompt <problem text>",
		Short: "Preview the composed prompt for a condition",
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return st.loadConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return previewPrompt(cmd, st, &opts, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVar(&opts.condition, "condition", "openmath", "prompt condition to render")
	cmd.Flags().IntVar(&opts.topK, "top-k", 10, "retrieved symbols to inject")

	return cmd
}

func previewPrompt(cmd *cobra.Command, st *cliState, opts *promptOptions, problem string) error {
	if st == nil || opts == nil {
		return fmt.Errorf("prompt: nil state")
	}
	if st.cfg == nil {
		return fmt.Errorf("prompt: missing config (internal error)")
	}
	problem = strings.TrimSpace(problem)
	if problem == "" {
		return fmt.Errorf("prompt: empty problem text")
	}

	builder, err := prompt.NewBuilder(st.cfg.Data.TemplatesPath)
	if err != nil {
		return err
	}

	var symbols []openmath.Symbol
	if config, ok := builder.ConditionConfig(opts.condition); ok && config.IncludeDefinitions {
		kb, err := loadKB(st.cfg.Data.KnowledgePath)
		if err != nil {
			return err
		}
		r := retrieval.NewBM25Retriever(kb)
		for _, scored := range r.Retrieve(problem, opts.topK, true).TopK(opts.topK) {
			symbols = append(symbols, kb.Symbols[scored.ID])
		}
	}

	composed, err := builder.Build(problem, symbols, opts.condition)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Condition: %s\n", composed.Condition)
	if len(composed.RetrievedSymbols) > 0 {
		fmt.Fprintf(out, "Symbols:   %s\n", strings.Join(composed.RetrievedSymbols, ", "))
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "--- System ---")
	if composed.SystemPrompt == "" {
		fmt.Fprintln(out, "(empty)")
	} else {
		fmt.Fprintln(out, composed.SystemPrompt)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "--- User ---")
	fmt.Fprintln(out, composed.UserPrompt)
	return nil
}
