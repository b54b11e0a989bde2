package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/openmath-eval/internal/config"
	"github.com/stellarlinkco/openmath-eval/internal/experiment"
	"github.com/stellarlinkco/openmath-eval/internal/report"
	"github.com/stellarlinkco/openmath-eval/internal/store"
)

type runOptions struct {
	model       string
	condition   string
	mode        string
	threshold   float64
	nProblems   int
	maxAttempts int
	maxTokens   int
	topK        int
	temperature float64
	seed        int64
	concurrency int
	outputDir   string
	noStore     bool
}

func newRunCmd(st *cliState) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a threshold-filtered experiment",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return st.loadConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExperiment(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.model, "model", "", "model name (defaults to the configured provider model)")
	cmd.Flags().StringVar(&opts.condition, "condition", "", "experiment condition: baseline|openmath")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "sampling mode: greedy|best-of-n")
	cmd.Flags().Float64Var(&opts.threshold, "threshold", -1, "minimum reranker score for included problems")
	cmd.Flags().IntVar(&opts.nProblems, "n-problems", 0, "maximum number of problems (overrides config)")
	cmd.Flags().IntVar(&opts.maxAttempts, "max-attempts", 0, "best-of-n attempt cap (overrides config)")
	cmd.Flags().IntVar(&opts.maxTokens, "max-tokens", 0, "completion token budget (overrides config)")
	cmd.Flags().IntVar(&opts.topK, "top-k", 0, "OpenMath symbols injected per problem (overrides config)")
	cmd.Flags().Float64Var(&opts.temperature, "temperature", -1, "best-of-n sampling temperature (overrides config)")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "sampling seed (overrides config)")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "parallel inference requests (overrides config)")
	cmd.Flags().StringVar(&opts.outputDir, "output-dir", "", "transcript output directory (overrides config)")
	cmd.Flags().BoolVar(&opts.noStore, "no-store", false, "skip persisting results to the store")

	return cmd
}

func runExperiment(cmd *cobra.Command, st *cliState, opts *runOptions) error {
	if st == nil || opts == nil {
		return fmt.Errorf("run: nil state")
	}
	if st.cfg == nil {
		return fmt.Errorf("run: missing config (internal error)")
	}
	cfg := st.cfg

	runOpts, err := resolveRunOptions(cfg, opts)
	if err != nil {
		return err
	}

	provider, err := defaultProviderFromConfig(cfg)
	if err != nil {
		return err
	}

	runner, err := experiment.New(provider, runOpts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	dataset, err := loadDataset(ctx, cfg.Data.ProblemsPath)
	if err != nil {
		return err
	}
	reranked, err := loadReranked(cfg.Data.RerankedPath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	effective := runner.Options()
	fmt.Fprintln(out, strings.Repeat("=", 70))
	fmt.Fprintln(out, "THRESHOLD-BASED EXPERIMENT RUNNER")
	fmt.Fprintln(out, strings.Repeat("=", 70))
	fmt.Fprintf(out, "Model:       %s\n", effective.Model)
	fmt.Fprintf(out, "Condition:   %s\n", effective.Condition)
	fmt.Fprintf(out, "Mode:        %s\n", effective.Mode)
	fmt.Fprintf(out, "Threshold:   %g\n", effective.Threshold)
	fmt.Fprintf(out, "Problems:    %d\n", effective.NProblems)
	fmt.Fprintln(out, strings.Repeat("=", 70))

	progress := func(done, total int, problemID string) {
		fmt.Fprintf(out, "[%d/%d] %s\n", done, total, problemID)
	}

	run, err := runner.Run(ctx, dataset, reranked, progress)
	if err != nil {
		return err
	}

	outputDir := strings.TrimSpace(opts.outputDir)
	if outputDir == "" {
		outputDir = cfg.Experiment.OutputDir
	}
	transcriptPath, err := report.SaveTranscript(outputDir, run, report.TranscriptOptions{
		Date:      time.Now(),
		ServerURL: resolveServerURL(cfg),
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Overall Accuracy:  %d/%d (%.1f%%)\n", run.CorrectCount(), len(run.Results), run.Accuracy()*100)
	fmt.Fprintf(out, "Average Attempts:  %.2f\n", run.AverageAttempts())
	fmt.Fprintf(out, "Elapsed:           %s\n", run.Elapsed.Round(time.Second))
	fmt.Fprintf(out, "Transcript:        %s\n", transcriptPath)

	if opts.noStore {
		return nil
	}

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	exp, problems := store.RecordsFromRun(run, transcriptPath)
	if err := db.SaveExperiment(ctx, exp); err != nil {
		return err
	}
	if err := db.SaveProblemResults(ctx, exp.ID, problems); err != nil {
		return err
	}
	fmt.Fprintf(out, "Experiment ID:     %s\n", exp.ID)
	return nil
}

func resolveRunOptions(cfg *config.Config, opts *runOptions) (experiment.Options, error) {
	e := cfg.Experiment

	runOpts := experiment.Options{
		Model:       strings.TrimSpace(opts.model),
		Condition:   strings.TrimSpace(opts.condition),
		Mode:        strings.TrimSpace(opts.mode),
		Threshold:   e.Threshold,
		NProblems:   e.NProblems,
		MaxAttempts: e.MaxAttempts,
		MaxTokens:   e.MaxTokens,
		TopKSymbols: e.TopKSymbols,
		Temperature: e.Temperature,
		Seed:        e.Seed,
		Concurrency: e.Concurrency,
	}
	if runOpts.Model == "" {
		runOpts.Model = configuredModel(cfg)
	}
	if runOpts.Model == "" {
		return experiment.Options{}, fmt.Errorf("run: no model configured (set --model or llm.providers.%s.model)", cfg.LLM.DefaultProvider)
	}
	if runOpts.Condition == "" {
		runOpts.Condition = e.Condition
	}
	if runOpts.Mode == "" {
		runOpts.Mode = e.Mode
	}
	if opts.threshold >= 0 {
		runOpts.Threshold = opts.threshold
	}
	if runOpts.Threshold < 0 || runOpts.Threshold > 1 {
		return experiment.Options{}, fmt.Errorf("run: threshold must be between 0 and 1 (got %v)", runOpts.Threshold)
	}
	if opts.nProblems > 0 {
		runOpts.NProblems = opts.nProblems
	}
	if opts.maxAttempts > 0 {
		runOpts.MaxAttempts = opts.maxAttempts
	}
	if opts.maxTokens > 0 {
		runOpts.MaxTokens = opts.maxTokens
	}
	if opts.topK > 0 {
		runOpts.TopKSymbols = opts.topK
	}
	if opts.temperature >= 0 {
		runOpts.Temperature = opts.temperature
	}
	if opts.seed != 0 {
		runOpts.Seed = opts.seed
	}
	if opts.concurrency > 0 {
		runOpts.Concurrency = opts.concurrency
	}
	return runOpts, nil
}

func configuredModel(cfg *config.Config) string {
	name := strings.TrimSpace(cfg.LLM.DefaultProvider)
	if name == "" {
		name = "ollama"
	}
	return strings.TrimSpace(cfg.LLM.Providers[name].Model)
}

func resolveServerURL(cfg *config.Config) string {
	if url := strings.TrimSpace(cfg.LLM.Providers["ollama"].BaseURL); url != "" {
		return url
	}
	return "http://localhost:11434"
}
