package prompt

import (
	"strings"
	"testing"

	"github.com/stellarlinkco/openmath-eval/internal/retrieval"
)

func TestBuildForModel_MinimalistCoT(t *testing.T) {
	system, user := BuildForModel("johnnyboy/qwen2.5-math-7b:latest", "What is 2+2?", "")

	if system != "" {
		t.Fatalf("system: got %q", system)
	}
	if user != "What is 2+2?\n\n"+DefaultTrigger {
		t.Fatalf("user: got %q", user)
	}
}

func TestBuildForModel_MinimalistCoTWithContext(t *testing.T) {
	system, user := BuildForModel("johnnyboy/qwen2.5-math-7b:latest", "What is 2+2?", "## Context")

	if system != "## Context" {
		t.Fatalf("system: got %q", system)
	}
	if !strings.HasPrefix(user, "What is 2+2?") {
		t.Fatalf("user: got %q", user)
	}
}

func TestBuildForModel_System2(t *testing.T) {
	system, user := BuildForModel("gemma2:9b", "Find x.", "")

	if system != System2Prompt {
		t.Fatalf("system: got %q", system)
	}
	if user != "Problem: Find x." {
		t.Fatalf("user: got %q", user)
	}

	system, _ = BuildForModel("gemma2:2b", "Find x.", "## Context")
	if !strings.HasPrefix(system, "## Context\n\n") || !strings.Contains(system, "1. BREAKDOWN") {
		t.Fatalf("system with context: got %q", system)
	}
}

func TestConfigForModel_Unknown(t *testing.T) {
	config := ConfigForModel("some-new-model")
	if config.Strategy != StrategySystem2Reflection || !config.UsesSystemPrompt {
		t.Fatalf("got %+v", config)
	}
}

func TestFormatContext(t *testing.T) {
	symbols := []retrieval.RerankedSymbol{
		{
			CD: "arith1", Name: "gcd",
			Description:   "greatest  common   divisor",
			CMPProperties: []string{"p1", "p2", "p3", "p4"},
			Examples:      []string{"gcd(6, 9) = 3", "gcd(4, 6) = 2"},
		},
		{CD: "transc1", Name: "sin", Description: "the sine function"},
	}

	ctx := FormatContext(symbols, 10)

	if !strings.HasPrefix(ctx, "## Relevant Mathematical Definitions and Properties\n\n") {
		t.Fatalf("header:\n%s", ctx)
	}
	for _, want := range []string{
		"### arith1:gcd",
		"**Description:** greatest common divisor",
		"**Properties:**",
		"  - p3",
		"**Example:** gcd(6, 9) = 3",
		"### transc1:sin",
	} {
		if !strings.Contains(ctx, want) {
			t.Fatalf("context missing %q:\n%s", want, ctx)
		}
	}
	// Properties cap at three, examples at one.
	if strings.Contains(ctx, "p4") || strings.Contains(ctx, "gcd(4, 6)") {
		t.Fatalf("context not truncated:\n%s", ctx)
	}
}

func TestFormatContext_TopK(t *testing.T) {
	symbols := []retrieval.RerankedSymbol{
		{CD: "arith1", Name: "gcd", Description: "d1"},
		{CD: "arith1", Name: "plus", Description: "d2"},
	}
	ctx := FormatContext(symbols, 1)
	if strings.Contains(ctx, "arith1:plus") {
		t.Fatalf("top-k not applied:\n%s", ctx)
	}
}

func TestFormatContext_Empty(t *testing.T) {
	if got := FormatContext(nil, 5); got != "" {
		t.Fatalf("got %q", got)
	}
}
