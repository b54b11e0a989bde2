package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/openmath-eval/internal/openmath"
	"github.com/stellarlinkco/openmath-eval/internal/retrieval"
)

func newKBCmd(st *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Build and inspect the OpenMath knowledge base",
		Args:  cobra.NoArgs,
	}

	cmd.AddCommand(newKBBuildCmd(st))
	cmd.AddCommand(newKBStatsCmd(st))
	return cmd
}

func newKBBuildCmd(st *cliState) *cobra.Command {
	var (
		cdsDir              string
		includeExperimental bool
		skipIndex           bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Parse Content Dictionaries into the knowledge base and keyword index",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return st.loadConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if st.cfg == nil {
				return fmt.Errorf("kb: missing config (internal error)")
			}
			if strings.TrimSpace(cdsDir) == "" {
				return fmt.Errorf("kb: --cds-dir is required")
			}

			kb, err := openmath.Build(cmd.Context(), cdsDir, openmath.BuildOptions{
				IncludeExperimental: includeExperimental,
			})
			if err != nil {
				return err
			}
			if err := kb.Save(st.cfg.Data.KnowledgePath); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Parsed %d content dictionaries, %d symbols\n",
				len(kb.ContentDictionaries), len(kb.Symbols))
			fmt.Fprintf(out, "Knowledge base: %s\n", st.cfg.Data.KnowledgePath)

			if skipIndex {
				return nil
			}
			idx := retrieval.BuildIndex(kb)
			if err := idx.Save(st.cfg.Data.IndexPath); err != nil {
				return err
			}
			fmt.Fprintf(out, "Keyword index:  %s (%d keys)\n", st.cfg.Data.IndexPath, len(idx.Index))
			return nil
		},
	}

	cmd.Flags().StringVar(&cdsDir, "cds-dir", "", "directory of .ocd files (with optional sts/ signatures)")
	cmd.Flags().BoolVar(&includeExperimental, "include-experimental", false, "include experimental Content Dictionaries")
	cmd.Flags().BoolVar(&skipIndex, "skip-index", false, "skip regenerating the keyword index")

	return cmd
}

func newKBStatsCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show per-dictionary symbol counts",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return st.loadConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if st.cfg == nil {
				return fmt.Errorf("kb: missing config (internal error)")
			}
			kb, err := loadKB(st.cfg.Data.KnowledgePath)
			if err != nil {
				return err
			}

			type cdStats struct {
				symbols int
				sympy   int
			}
			byCD := map[string]*cdStats{}
			totalSymPy := 0
			for _, id := range kb.SortedSymbolIDs() {
				sym := kb.Symbols[id]
				s := byCD[sym.CD]
				if s == nil {
					s = &cdStats{}
					byCD[sym.CD] = s
				}
				s.symbols++
				if sym.SymPyFunction != "" {
					s.sympy++
					totalSymPy++
				}
			}

			cds := make([]string, 0, len(byCD))
			for cd := range byCD {
				cds = append(cds, cd)
			}
			sort.Strings(cds)

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "CD\tSYMBOLS\tSYMPY")
			for _, cd := range cds {
				fmt.Fprintf(tw, "%s\t%d\t%d\n", cd, byCD[cd].symbols, byCD[cd].sympy)
			}
			fmt.Fprintf(tw, "TOTAL\t%d\t%d\n", len(kb.Symbols), totalSymPy)
			return tw.Flush()
		},
	}
}
