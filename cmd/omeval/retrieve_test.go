package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/openmath-eval/internal/config"
	"github.com/stellarlinkco/openmath-eval/internal/llm"
	"github.com/stellarlinkco/openmath-eval/internal/openmath"
	"github.com/stellarlinkco/openmath-eval/internal/retrieval"
)

func retrieveTestKB() *openmath.KnowledgeBase {
	return &openmath.KnowledgeBase{
		Version: "1.0.0",
		Symbols: map[string]openmath.Symbol{
			"arith1:gcd": {
				ID: "arith1:gcd", CD: "arith1", Name: "gcd",
				Description:   "The greatest common divisor of its arguments.",
				SymPyFunction: "sympy.gcd",
				Keywords:      []string{"gcd", "greatest", "common", "divisor"},
			},
			"arith1:plus": {
				ID: "arith1:plus", CD: "arith1", Name: "plus",
				Description:   "An n-ary commutative addition.",
				SymPyFunction: "sympy.Add",
				Keywords:      []string{"plus", "addition", "sum"},
			},
		},
	}
}

func overrideRetrieveSeams(t *testing.T, kb *openmath.KnowledgeBase) {
	t.Helper()

	origKB := loadKB
	origIndex := loadIndex
	t.Cleanup(func() {
		loadKB = origKB
		loadIndex = origIndex
	})

	loadKB = func(path string) (*openmath.KnowledgeBase, error) {
		return kb, nil
	}
	loadIndex = func(path string) (*retrieval.Index, error) {
		return retrieval.BuildIndex(kb), nil
	}
}

func TestRetrieveSymbols_BM25(t *testing.T) {
	kb := retrieveTestKB()
	overrideRetrieveSeams(t, kb)

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	cmd.SetContext(context.Background())

	st := &cliState{cfg: &config.Config{}}
	opts := &retrieveOptions{topK: 5, method: "bm25", expand: true}
	if err := retrieveSymbols(cmd, st, opts, "greatest common divisor"); err != nil {
		t.Fatalf("retrieveSymbols: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "SYMBOL") || !strings.Contains(out, "SCORE") {
		t.Fatalf("missing header: %q", out)
	}
	if !strings.Contains(out, "arith1:gcd") || !strings.Contains(out, "sympy.gcd") {
		t.Fatalf("missing gcd row: %q", out)
	}
}

func TestRetrieveSymbols_Keyword(t *testing.T) {
	kb := retrieveTestKB()
	overrideRetrieveSeams(t, kb)

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	cmd.SetContext(context.Background())

	st := &cliState{cfg: &config.Config{}}
	opts := &retrieveOptions{topK: 5, method: "keyword", verbose: true}
	if err := retrieveSymbols(cmd, st, opts, "gcd"); err != nil {
		t.Fatalf("retrieveSymbols: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "DESCRIPTION") {
		t.Fatalf("missing verbose header: %q", out)
	}
	if !strings.Contains(out, "arith1:gcd") {
		t.Fatalf("missing gcd row: %q", out)
	}
	if strings.Contains(out, "arith1:plus") {
		t.Fatalf("unexpected plus row: %q", out)
	}
}

type embedProvider struct {
	fakeProvider
}

func (p *embedProvider) Embed(ctx context.Context, model, input string) ([]float64, error) {
	// Crude bag-of-letters vector; enough for a stable ranking.
	vec := make([]float64, 26)
	for _, r := range strings.ToLower(input) {
		if r >= 'a' && r <= 'z' {
			vec[r-'a']++
		}
	}
	return vec, nil
}

func TestRetrieveSymbols_Hybrid(t *testing.T) {
	kb := retrieveTestKB()
	overrideRetrieveSeams(t, kb)

	origProvider := defaultProviderFromConfig
	t.Cleanup(func() { defaultProviderFromConfig = origProvider })
	defaultProviderFromConfig = func(cfg *config.Config) (llm.Provider, error) {
		return &embedProvider{fakeProvider{name: "ollama"}}, nil
	}

	dir := t.TempDir()
	cfg := &config.Config{Data: config.DataConfig{KnowledgePath: filepath.Join(dir, "openmath.json")}}

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetContext(context.Background())

	st := &cliState{cfg: cfg}
	opts := &retrieveOptions{topK: 2, method: "hybrid"}
	if err := retrieveSymbols(cmd, st, opts, "greatest common divisor"); err != nil {
		t.Fatalf("retrieveSymbols: %v", err)
	}
	if !strings.Contains(buf.String(), "arith1:gcd") {
		t.Fatalf("missing gcd row: %q", buf.String())
	}

	cachePath := retrieval.EmbeddingsCachePath(cfg.Data.KnowledgePath, retrieval.DefaultEmbeddingModel)
	if _, err := os.Stat(cachePath); err != nil {
		t.Fatalf("embeddings cache: %v", err)
	}

	// Second call hits the cache.
	buf.Reset()
	if err := retrieveSymbols(cmd, st, opts, "greatest common divisor"); err != nil {
		t.Fatalf("retrieveSymbols(cached): %v", err)
	}
	if !strings.Contains(buf.String(), "arith1:gcd") {
		t.Fatalf("missing gcd row on cached run: %q", buf.String())
	}
}

func TestRetrieveSymbols_Errors(t *testing.T) {
	kb := retrieveTestKB()
	overrideRetrieveSeams(t, kb)

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	st := &cliState{cfg: &config.Config{}}

	if err := retrieveSymbols(cmd, nil, &retrieveOptions{}, "x"); err == nil {
		t.Fatalf("expected nil state error")
	}
	if err := retrieveSymbols(cmd, st, &retrieveOptions{method: "bm25"}, "  "); err == nil {
		t.Fatalf("expected empty query error")
	}
	err := retrieveSymbols(cmd, st, &retrieveOptions{method: "embedding"}, "gcd")
	if err == nil || !strings.Contains(err.Error(), "unknown method") {
		t.Fatalf("expected unknown method error, got %v", err)
	}
}

func TestTruncateText(t *testing.T) {
	t.Parallel()

	if got := truncateText("short  text", 80); got != "short text" {
		t.Fatalf("truncateText: got %q", got)
	}
	long := strings.Repeat("abcd ", 30)
	got := truncateText(long, 20)
	if len(got) != 20 || !strings.HasSuffix(got, "...") {
		t.Fatalf("truncateText(long): got %q", got)
	}
}
