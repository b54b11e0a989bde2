package main

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/openmath-eval/internal/benchmark"
	"github.com/stellarlinkco/openmath-eval/internal/config"
	"github.com/stellarlinkco/openmath-eval/internal/llm"
	"github.com/stellarlinkco/openmath-eval/internal/retrieval"
	"github.com/stellarlinkco/openmath-eval/internal/store"
)

type fakeProvider struct {
	name     string
	response string
	err      error
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &llm.Response{Content: []llm.ContentBlock{{Type: "text", Text: p.response}}}, nil
}

func testRunConfig(dir string) *config.Config {
	return &config.Config{
		LLM: config.LLMConfig{
			DefaultProvider: "ollama",
			Providers: map[string]config.ProviderConfig{
				"ollama": {BaseURL: "http://ollama.test:11434", Model: "gemma2:9b"},
			},
		},
		Experiment: config.ExperimentConfig{
			Condition:   "baseline",
			Mode:        "greedy",
			Threshold:   0.5,
			NProblems:   500,
			MaxTokens:   4096,
			MaxAttempts: 5,
			Temperature: 0.6,
			TopKSymbols: 20,
			Seed:        42,
			OutputDir:   filepath.Join(dir, "results"),
		},
		Storage: config.StorageConfig{Type: "sqlite", Path: filepath.Join(dir, "omeval.db")},
	}
}

func testRunFixtures() (*benchmark.Dataset, retrieval.RerankedData) {
	dataset := &benchmark.Dataset{Problems: []benchmark.Problem{
		{ID: "math_00001", Problem: "What is 2+2?", Answer: "4", Level: 1, Type: "Algebra"},
		{ID: "math_00002", Problem: "What is 3+4?", Answer: "7", Level: 2, Type: "Prealgebra"},
	}}
	reranked := retrieval.RerankedData{
		"math_00001": {ProblemID: "math_00001", RerankedSymbols: []retrieval.RerankedSymbol{
			{ID: "arith1:plus", CD: "arith1", Name: "plus", RerankerScore: 0.9},
		}},
		"math_00002": {ProblemID: "math_00002", RerankedSymbols: []retrieval.RerankedSymbol{
			{ID: "arith1:plus", CD: "arith1", Name: "plus", RerankerScore: 0.8},
		}},
	}
	return dataset, reranked
}

func overrideRunSeams(t *testing.T, provider llm.Provider, dataset *benchmark.Dataset, reranked retrieval.RerankedData) {
	t.Helper()

	origProvider := defaultProviderFromConfig
	origDataset := loadDataset
	origReranked := loadReranked
	t.Cleanup(func() {
		defaultProviderFromConfig = origProvider
		loadDataset = origDataset
		loadReranked = origReranked
	})

	defaultProviderFromConfig = func(cfg *config.Config) (llm.Provider, error) {
		return provider, nil
	}
	loadDataset = func(ctx context.Context, path string) (*benchmark.Dataset, error) {
		return dataset, nil
	}
	loadReranked = func(path string) (retrieval.RerankedData, error) {
		return reranked, nil
	}
}

func TestRunExperiment(t *testing.T) {
	dir := t.TempDir()
	cfg := testRunConfig(dir)
	dataset, reranked := testRunFixtures()
	overrideRunSeams(t, &fakeProvider{name: "ollama", response: `The answer is \boxed{4}.`}, dataset, reranked)

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	cmd.SetContext(context.Background())

	st := &cliState{cfg: cfg}
	err := runExperiment(cmd, st, &runOptions{threshold: -1, temperature: -1})
	if err != nil {
		t.Fatalf("runExperiment: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "THRESHOLD-BASED EXPERIMENT RUNNER") {
		t.Fatalf("missing banner: %q", out)
	}
	if !strings.Contains(out, "Overall Accuracy:  1/2 (50.0%)") {
		t.Fatalf("missing accuracy line: %q", out)
	}
	if !strings.Contains(out, "Transcript:") {
		t.Fatalf("missing transcript line: %q", out)
	}
	if !strings.Contains(out, "Experiment ID:") {
		t.Fatalf("missing experiment id line: %q", out)
	}

	db, err := store.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer db.Close()

	experiments, err := db.ListExperiments(context.Background(), store.ExperimentFilter{})
	if err != nil {
		t.Fatalf("ListExperiments: %v", err)
	}
	if len(experiments) != 1 {
		t.Fatalf("experiments: got %d want 1", len(experiments))
	}
	exp := experiments[0]
	if exp.Model != "gemma2:9b" || exp.Condition != "baseline" || exp.CorrectCount != 1 {
		t.Fatalf("experiment record: %+v", exp)
	}
	results, err := db.GetProblemResults(context.Background(), exp.ID)
	if err != nil {
		t.Fatalf("GetProblemResults: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("problem results: got %d want 2", len(results))
	}
}

func TestRunExperiment_NoStore(t *testing.T) {
	dir := t.TempDir()
	cfg := testRunConfig(dir)
	dataset, reranked := testRunFixtures()
	overrideRunSeams(t, &fakeProvider{name: "ollama", response: `\boxed{4}`}, dataset, reranked)

	origOpen := openStore
	t.Cleanup(func() { openStore = origOpen })
	openStore = func(cfg *config.Config) (store.Store, error) {
		t.Fatalf("openStore called with --no-store")
		return nil, nil
	}

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	cmd.SetContext(context.Background())

	st := &cliState{cfg: cfg}
	err := runExperiment(cmd, st, &runOptions{threshold: -1, temperature: -1, noStore: true})
	if err != nil {
		t.Fatalf("runExperiment: %v", err)
	}
	if strings.Contains(buf.String(), "Experiment ID:") {
		t.Fatalf("unexpected store line: %q", buf.String())
	}
}

func TestRunExperiment_ProviderError(t *testing.T) {
	cfg := testRunConfig(t.TempDir())

	origProvider := defaultProviderFromConfig
	t.Cleanup(func() { defaultProviderFromConfig = origProvider })
	defaultProviderFromConfig = func(cfg *config.Config) (llm.Provider, error) {
		return nil, fmt.Errorf("llm: no such provider")
	}

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	st := &cliState{cfg: cfg}
	if err := runExperiment(cmd, st, &runOptions{threshold: -1, temperature: -1}); err == nil {
		t.Fatalf("expected provider error")
	}
}

func TestResolveRunOptions(t *testing.T) {
	t.Parallel()

	cfg := testRunConfig("x")

	got, err := resolveRunOptions(cfg, &runOptions{threshold: -1, temperature: -1})
	if err != nil {
		t.Fatalf("resolveRunOptions: %v", err)
	}
	if got.Model != "gemma2:9b" || got.Condition != "baseline" || got.Mode != "greedy" {
		t.Fatalf("defaults: %+v", got)
	}
	if got.Threshold != 0.5 || got.Temperature != 0.6 || got.Seed != 42 {
		t.Fatalf("defaults: %+v", got)
	}

	got, err = resolveRunOptions(cfg, &runOptions{
		model:       "qwen2.5-math-7b",
		condition:   "openmath",
		mode:        "best-of-n",
		threshold:   0.7,
		nProblems:   10,
		maxAttempts: 3,
		maxTokens:   1024,
		topK:        5,
		temperature: 0.2,
		seed:        7,
		concurrency: 4,
	})
	if err != nil {
		t.Fatalf("resolveRunOptions(overrides): %v", err)
	}
	if got.Model != "qwen2.5-math-7b" || got.Condition != "openmath" || got.Mode != "best-of-n" {
		t.Fatalf("overrides: %+v", got)
	}
	if got.Threshold != 0.7 || got.NProblems != 10 || got.MaxAttempts != 3 || got.MaxTokens != 1024 {
		t.Fatalf("overrides: %+v", got)
	}
	if got.TopKSymbols != 5 || got.Temperature != 0.2 || got.Seed != 7 || got.Concurrency != 4 {
		t.Fatalf("overrides: %+v", got)
	}
}

func TestResolveRunOptions_Errors(t *testing.T) {
	t.Parallel()

	cfg := testRunConfig("x")

	noModel := testRunConfig("x")
	noModel.LLM.Providers = map[string]config.ProviderConfig{}
	if _, err := resolveRunOptions(noModel, &runOptions{threshold: -1, temperature: -1}); err == nil {
		t.Fatalf("expected missing model error")
	}

	if _, err := resolveRunOptions(cfg, &runOptions{threshold: 1.5, temperature: -1}); err == nil {
		t.Fatalf("expected threshold range error")
	}
}

func TestConfiguredModel(t *testing.T) {
	t.Parallel()

	cfg := testRunConfig("x")
	if got := configuredModel(cfg); got != "gemma2:9b" {
		t.Fatalf("configuredModel: got %q", got)
	}

	cfg.LLM.DefaultProvider = ""
	if got := configuredModel(cfg); got != "gemma2:9b" {
		t.Fatalf("configuredModel(default): got %q", got)
	}

	cfg.LLM.Providers = nil
	if got := configuredModel(cfg); got != "" {
		t.Fatalf("configuredModel(empty): got %q", got)
	}
}

func TestResolveServerURL(t *testing.T) {
	t.Parallel()

	cfg := testRunConfig("x")
	if got := resolveServerURL(cfg); got != "http://ollama.test:11434" {
		t.Fatalf("resolveServerURL: got %q", got)
	}

	cfg.LLM.Providers = nil
	if got := resolveServerURL(cfg); got != "http://localhost:11434" {
		t.Fatalf("resolveServerURL(default): got %q", got)
	}
}

func TestRunExperiment_NilState(t *testing.T) {
	t.Parallel()

	cmd := &cobra.Command{}
	if err := runExperiment(cmd, nil, &runOptions{}); err == nil {
		t.Fatalf("expected nil state error")
	}
	if err := runExperiment(cmd, &cliState{}, &runOptions{}); err == nil {
		t.Fatalf("expected missing config error")
	}
}
