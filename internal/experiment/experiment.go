// Package experiment runs threshold-filtered evaluation experiments:
// sample problems, build prompts with optional OpenMath context, query
// the model, and grade the answers.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stellarlinkco/openmath-eval/internal/benchmark"
	"github.com/stellarlinkco/openmath-eval/internal/compare"
	"github.com/stellarlinkco/openmath-eval/internal/extract"
	"github.com/stellarlinkco/openmath-eval/internal/llm"
	"github.com/stellarlinkco/openmath-eval/internal/prompt"
	"github.com/stellarlinkco/openmath-eval/internal/retrieval"
)

// Conditions and modes accepted by the runner.
const (
	ConditionBaseline = "baseline"
	ConditionOpenMath = "openmath"

	ModeGreedy  = "greedy"
	ModeBestOfN = "best-of-n"
)

// Options configures one experiment run. Zero values select the usual
// defaults.
type Options struct {
	Model       string
	Condition   string
	Mode        string
	Threshold   float64
	NProblems   int
	MaxAttempts int
	MaxTokens   int
	TopKSymbols int
	Temperature float64
	Seed        int64
	Concurrency int
}

func (o *Options) applyDefaults() {
	if o.Condition == "" {
		o.Condition = ConditionOpenMath
	}
	if o.Mode == "" {
		o.Mode = ModeGreedy
	}
	if o.NProblems <= 0 {
		o.NProblems = 500
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = 4096
	}
	if o.TopKSymbols <= 0 {
		o.TopKSymbols = 20
	}
	if o.Temperature == 0 {
		o.Temperature = 0.6
	}
	if o.Seed == 0 {
		o.Seed = 42
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
}

func (o Options) validate() error {
	switch o.Condition {
	case ConditionBaseline, ConditionOpenMath:
	default:
		return fmt.Errorf("experiment: unknown condition %q", o.Condition)
	}
	switch o.Mode {
	case ModeGreedy, ModeBestOfN:
	default:
		return fmt.Errorf("experiment: unknown mode %q", o.Mode)
	}
	return nil
}

// Result is the outcome for one problem.
type Result struct {
	ProblemID        string   `json:"problem_id"`
	Level            int      `json:"level"`
	ProblemType      string   `json:"problem_type"`
	ProblemText      string   `json:"problem_text"`
	GroundTruth      string   `json:"ground_truth"`
	Condition        string   `json:"condition"`
	Mode             string   `json:"mode"`
	Model            string   `json:"model"`
	Threshold        float64  `json:"threshold"`
	Response         string   `json:"response"`
	PredictedAnswer  string   `json:"predicted_answer"`
	IsCorrect        bool     `json:"is_correct"`
	ComparisonMethod string   `json:"comparison_method"`
	Attempts         int      `json:"attempts"`
	ElapsedSeconds   float64  `json:"elapsed_time"`
	SystemPrompt     string   `json:"system_prompt,omitempty"`
	UserPrompt       string   `json:"user_prompt,omitempty"`
	OpenMathSymbols  []string `json:"openmath_symbols,omitempty"`
}

// RunResult is a completed experiment.
type RunResult struct {
	Options   Options
	Results   []Result
	StartedAt time.Time
	Elapsed   time.Duration
}

// CorrectCount counts correct results.
func (r *RunResult) CorrectCount() int {
	n := 0
	for _, result := range r.Results {
		if result.IsCorrect {
			n++
		}
	}
	return n
}

// Accuracy is the fraction of correct results.
func (r *RunResult) Accuracy() float64 {
	if len(r.Results) == 0 {
		return 0
	}
	return float64(r.CorrectCount()) / float64(len(r.Results))
}

// AverageAttempts is the mean attempts per problem.
func (r *RunResult) AverageAttempts() float64 {
	if len(r.Results) == 0 {
		return 0
	}
	sum := 0
	for _, result := range r.Results {
		sum += result.Attempts
	}
	return float64(sum) / float64(len(r.Results))
}

// Runner executes experiments against a model provider.
type Runner struct {
	provider   llm.Provider
	comparator *compare.Comparator
	opts       Options

	// now is a test seam for timestamps.
	now func() time.Time
}

// New builds a runner. Options are validated after defaults apply.
func New(provider llm.Provider, opts Options) (*Runner, error) {
	if provider == nil {
		return nil, errors.New("experiment: nil provider")
	}
	opts.applyDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Runner{
		provider:   provider,
		comparator: compare.New(0),
		opts:       opts,
		now:        time.Now,
	}, nil
}

// Options returns the effective options after defaults.
func (r *Runner) Options() Options { return r.opts }

// SelectProblems applies the threshold filter and the seeded sample,
// returning the problems to run in ID order. Every condition sees the
// same filtered problem set, so baseline and openmath stay comparable.
func (r *Runner) SelectProblems(dataset *benchmark.Dataset, reranked retrieval.RerankedData) ([]benchmark.Problem, retrieval.RerankedData) {
	filtered := reranked.FilterByThreshold(r.opts.Threshold)

	var candidates []benchmark.Problem
	for _, id := range filtered.ProblemIDs() {
		if problem, ok := dataset.Get(id); ok {
			candidates = append(candidates, problem)
		}
	}

	if len(candidates) > r.opts.NProblems {
		rng := rand.New(rand.NewSource(r.opts.Seed))
		rng.Shuffle(len(candidates), func(i, j int) {
			candidates[i], candidates[j] = candidates[j], candidates[i]
		})
		candidates = candidates[:r.opts.NProblems]
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })
	return candidates, filtered
}

// Progress reports per-problem completion.
type Progress func(done, total int, problemID string)

// Run executes the experiment over the filtered, sampled problem set.
func (r *Runner) Run(ctx context.Context, dataset *benchmark.Dataset, reranked retrieval.RerankedData, progress Progress) (*RunResult, error) {
	if dataset == nil {
		return nil, errors.New("experiment: nil dataset")
	}

	problems, filtered := r.SelectProblems(dataset, reranked)
	if len(problems) == 0 {
		return nil, fmt.Errorf("experiment: no problems at threshold %g", r.opts.Threshold)
	}

	run := &RunResult{
		Options:   r.opts,
		Results:   make([]Result, len(problems)),
		StartedAt: r.now(),
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		done int
		sem  = make(chan struct{}, r.opts.Concurrency)
	)
	for i, problem := range problems {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int, problem benchmark.Problem) {
			defer wg.Done()
			defer func() { <-sem }()

			run.Results[i] = r.evaluate(ctx, problem, filtered)

			mu.Lock()
			done++
			current := done
			mu.Unlock()
			if progress != nil {
				progress(current, len(problems), problem.ID)
			}
		}(i, problem)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	run.Elapsed = r.now().Sub(run.StartedAt)
	return run, nil
}

// evaluate runs one problem through prompting, inference, extraction,
// and grading.
func (r *Runner) evaluate(ctx context.Context, problem benchmark.Problem, filtered retrieval.RerankedData) Result {
	result := Result{
		ProblemID:   problem.ID,
		Level:       problem.Level,
		ProblemType: problem.Type,
		ProblemText: problem.Problem,
		GroundTruth: problem.Answer,
		Condition:   r.opts.Condition,
		Mode:        r.opts.Mode,
		Model:       r.opts.Model,
		Threshold:   r.opts.Threshold,
	}

	var openmathContext string
	if r.opts.Condition == ConditionOpenMath {
		symbols := filtered.TopSymbols(problem.ID, r.opts.TopKSymbols)
		openmathContext = prompt.FormatContext(symbols, r.opts.TopKSymbols)
		for _, sym := range symbols {
			result.OpenMathSymbols = append(result.OpenMathSymbols, sym.CD+":"+sym.Name)
		}
	}

	system, user := prompt.BuildForModel(r.opts.Model, problem.Problem, openmathContext)
	result.SystemPrompt = system
	result.UserPrompt = user

	var err error
	if r.opts.Mode == ModeGreedy {
		err = r.runGreedy(ctx, &result, system, user)
	} else {
		err = r.runBestOfN(ctx, &result, system, user)
	}
	if err != nil {
		result.Response = "ERROR: " + err.Error()
		result.PredictedAnswer = ""
		result.IsCorrect = false
		result.ComparisonMethod = "error"
		result.Attempts = 1
		result.ElapsedSeconds = 0
	}
	return result
}

func (r *Runner) runGreedy(ctx context.Context, result *Result, system, user string) error {
	start := r.now()
	response, err := r.complete(ctx, system, user, 0)
	if err != nil {
		return err
	}
	result.ElapsedSeconds = r.now().Sub(start).Seconds()
	result.Response = response
	result.Attempts = 1

	predicted := extract.Extract(response).PrimaryAnswer()
	result.PredictedAnswer = predicted
	result.ComparisonMethod = "no_answer"
	if predicted != "" {
		cmp := r.comparator.Compare(predicted, result.GroundTruth)
		result.IsCorrect = cmp.IsEquivalent
		result.ComparisonMethod = cmp.Method
	}
	return nil
}

// runBestOfN samples up to MaxAttempts completions at temperature and
// stops at the first correct answer.
func (r *Runner) runBestOfN(ctx context.Context, result *Result, system, user string) error {
	start := r.now()
	result.Attempts = r.opts.MaxAttempts

	var response string
	for attempt := 1; attempt <= r.opts.MaxAttempts; attempt++ {
		var err error
		response, err = r.complete(ctx, system, user, r.opts.Temperature)
		if err != nil {
			return err
		}

		predicted := extract.Extract(response).PrimaryAnswer()
		if predicted == "" {
			continue
		}
		if r.comparator.Compare(predicted, result.GroundTruth).IsEquivalent {
			result.IsCorrect = true
			result.Attempts = attempt
			break
		}
	}

	result.ElapsedSeconds = r.now().Sub(start).Seconds()
	result.Response = response
	result.PredictedAnswer = extract.Extract(response).PrimaryAnswer()
	result.ComparisonMethod = "best_of_n"
	return nil
}

func (r *Runner) complete(ctx context.Context, system, user string, temperature float64) (string, error) {
	resp, err := r.provider.Complete(ctx, &llm.Request{
		System:      system,
		Messages:    []llm.Message{{Role: "user", Content: user}},
		MaxTokens:   r.opts.MaxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		text.WriteString(block.Text)
	}
	return text.String(), nil
}
