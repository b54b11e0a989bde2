package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/openmath-eval/internal/llm"
	"github.com/stellarlinkco/openmath-eval/internal/openmath"
	"github.com/stellarlinkco/openmath-eval/internal/retrieval"
)

type retrieveOptions struct {
	topK           int
	method         string
	anySym         bool
	expand         bool
	verbose        bool
	embeddingModel string
}

func newRetrieveCmd(st *cliState) *cobra.Command {
	var opts retrieveOptions

	cmd := &cobra.Command{
		Use:   "retrieve <query>",
		Short: "Rank OpenMath symbols against a problem text",
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return st.loadConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return retrieveSymbols(cmd, st, &opts, strings.Join(args, " "))
		},
	}

	cmd.Flags().IntVar(&opts.topK, "top-k", 10, "number of symbols to show")
	cmd.Flags().StringVar(&opts.method, "method", "bm25", "retrieval method: bm25|keyword|hybrid")
	cmd.Flags().BoolVar(&opts.anySym, "any-symbol", false, "keyword method: include symbols without a SymPy mapping")
	cmd.Flags().BoolVar(&opts.expand, "expand", true, "bm25 method: expand the query with index synonyms")
	cmd.Flags().BoolVar(&opts.verbose, "verbose", false, "include symbol descriptions")
	cmd.Flags().StringVar(&opts.embeddingModel, "embedding-model", "", "hybrid method: embedding model override")

	return cmd
}

func retrieveSymbols(cmd *cobra.Command, st *cliState, opts *retrieveOptions, query string) error {
	if st == nil || opts == nil {
		return fmt.Errorf("retrieve: nil state")
	}
	if st.cfg == nil {
		return fmt.Errorf("retrieve: missing config (internal error)")
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return fmt.Errorf("retrieve: empty query")
	}

	kb, err := loadKB(st.cfg.Data.KnowledgePath)
	if err != nil {
		return err
	}

	switch opts.method {
	case "bm25":
		return retrieveBM25(cmd, kb, opts, query)
	case "keyword":
		return retrieveKeyword(cmd, st, kb, opts, query)
	case "hybrid":
		return retrieveHybrid(cmd, st, kb, opts, query)
	default:
		return fmt.Errorf("retrieve: unknown method %q (want bm25, keyword, or hybrid)", opts.method)
	}
}

func retrieveBM25(cmd *cobra.Command, kb *openmath.KnowledgeBase, opts *retrieveOptions, query string) error {
	r := retrieval.NewBM25Retriever(kb)
	result := r.Retrieve(query, opts.topK, opts.expand)

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	printRetrieveHeader(tw, opts.verbose)
	for _, scored := range result.TopK(opts.topK) {
		printRetrieveRow(tw, kb, scored.ID, fmt.Sprintf("%.3f", scored.Score), opts.verbose)
	}
	return tw.Flush()
}

func retrieveKeyword(cmd *cobra.Command, st *cliState, kb *openmath.KnowledgeBase, opts *retrieveOptions, query string) error {
	idx, err := loadIndex(st.cfg.Data.IndexPath)
	if err != nil {
		return err
	}
	r, err := retrieval.NewKeywordRetriever(kb, idx)
	if err != nil {
		return err
	}

	kwOpts := retrieval.KeywordOptions{MaxSymbols: opts.topK}
	if opts.anySym {
		requireSymPy := false
		kwOpts.RequireSymPy = &requireSymPy
	}
	terms := retrieval.NewExtractor(idx).Extract(query).AllTerms()
	result := r.Retrieve(terms, kwOpts)

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	printRetrieveHeader(tw, opts.verbose)
	for _, id := range result.SymbolIDs {
		printRetrieveRow(tw, kb, id, fmt.Sprintf("%d", result.Scores[id]), opts.verbose)
	}
	return tw.Flush()
}

func retrieveHybrid(cmd *cobra.Command, st *cliState, kb *openmath.KnowledgeBase, opts *retrieveOptions, query string) error {
	provider, err := defaultProviderFromConfig(st.cfg)
	if err != nil {
		return err
	}
	embedder, ok := provider.(llm.Embedder)
	if !ok {
		return fmt.Errorf("retrieve: provider %q cannot embed", provider.Name())
	}

	r, err := retrieval.NewHybridRetriever(kb, embedder, opts.embeddingModel)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	cachePath := retrieval.EmbeddingsCachePath(st.cfg.Data.KnowledgePath, r.Model())
	if err := r.LoadEmbeddings(cachePath); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "embedding %d symbols (cache miss: %v)\n", len(kb.Symbols), err)
		if err := r.EnsureEmbeddings(ctx, nil); err != nil {
			return err
		}
		if err := r.SaveEmbeddings(cachePath); err != nil {
			return err
		}
	}

	result, err := r.Retrieve(ctx, query, retrieval.HybridOptions{TopK: opts.topK})
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	printRetrieveHeader(tw, opts.verbose)
	for _, id := range result.SymbolIDs {
		printRetrieveRow(tw, kb, id, fmt.Sprintf("%.4f", result.Scores[id]), opts.verbose)
	}
	return tw.Flush()
}

func printRetrieveHeader(tw *tabwriter.Writer, verbose bool) {
	if verbose {
		fmt.Fprintln(tw, "SYMBOL\tSCORE\tSYMPY\tDESCRIPTION")
		return
	}
	fmt.Fprintln(tw, "SYMBOL\tSCORE\tSYMPY")
}

func printRetrieveRow(tw *tabwriter.Writer, kb *openmath.KnowledgeBase, id, score string, verbose bool) {
	sym := kb.Symbols[id]
	if verbose {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", id, score, sym.SymPyFunction, truncateText(sym.Description, 80))
		return
	}
	fmt.Fprintf(tw, "%s\t%s\t%s\n", id, score, sym.SymPyFunction)
}

func truncateText(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
