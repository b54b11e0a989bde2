package report

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stellarlinkco/openmath-eval/internal/experiment"
)

func testRun() *experiment.RunResult {
	return &experiment.RunResult{
		Options: experiment.Options{
			Model:       "gemma2:9b",
			Condition:   "openmath",
			Mode:        "greedy",
			Threshold:   0.5,
			MaxTokens:   4096,
			MaxAttempts: 5,
			Temperature: 0.6,
			TopKSymbols: 20,
			Seed:        42,
		},
		Results: []experiment.Result{
			{
				ProblemID:       "math_00001",
				Level:           1,
				ProblemType:     "prealgebra",
				ProblemText:     "What is 2+2?",
				GroundTruth:     "4",
				Response:        `The answer is \boxed{4}.`,
				PredictedAnswer: "4",
				IsCorrect:       true,
				Attempts:        1,
				SystemPrompt:    "## Relevant Mathematical Definitions and Properties",
				UserPrompt:      "Problem: What is 2+2?",
				OpenMathSymbols: []string{"arith1:plus", "arith1:gcd"},
			},
			{
				ProblemID:       "math_00002",
				Level:           3,
				ProblemType:     "algebra",
				ProblemText:     "Solve x+1=3.",
				GroundTruth:     "2",
				Response:        `\boxed{5}`,
				PredictedAnswer: "5",
				IsCorrect:       false,
				Attempts:        2,
				UserPrompt:      "Problem: Solve x+1=3.",
			},
		},
	}
}

func TestWriteTranscript(t *testing.T) {
	var sb strings.Builder
	date := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	opts := TranscriptOptions{Date: date, ServerURL: "http://localhost:11434"}
	if err := WriteTranscript(&sb, testRun(), opts); err != nil {
		t.Fatalf("WriteTranscript: %v", err)
	}
	content := sb.String()

	for _, want := range []string{
		"# OpenMath Ontology Mathematical Problem Solving Experiment",
		"**Condition**: openmath",
		"**Mode**: greedy",
		"**Model**: gemma2:9b",
		"**Threshold**: 0.5",
		"**Date**: 2026-03-14 09:30:00",
		"- Number of problems: 2 (filtered by threshold >= 0.5)",
		"- Max tokens: 4096",
		"- Temperature: 0.6 (best-of-n only)",
		"- Ollama URL: http://localhost:11434",
		"**Overall Accuracy**: 1/2 (50.0%)",
		"**Average Number of Attempts**: 1.50",
		"- Level 1: 1/1 (100.0%)",
		"- Level 3: 0/1 (0.0%)",
		"- algebra: 0/1 (0.0%)",
		"- prealgebra: 1/1 (100.0%)",
		"## Problem math_00001",
		"  Ground Truth: 4",
		"## Response math_00001",
		"  Is Correct: True",
		"  OpenMath Symbols: ['arith1:plus', 'arith1:gcd']",
		"--- System Prompt ---\n## Relevant Mathematical Definitions and Properties\n--- End System Prompt ---",
		"--- System Prompt ---\n(empty)\n--- End System Prompt ---",
		"  Is Correct: False",
		resultSeparator,
	} {
		if !strings.Contains(content, want) {
			t.Fatalf("transcript missing %q:\n%s", want, content)
		}
	}
}

func TestTranscriptRoundTrip(t *testing.T) {
	var sb strings.Builder
	opts := TranscriptOptions{
		Date:      time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		ServerURL: "http://localhost:11434",
	}
	if err := WriteTranscript(&sb, testRun(), opts); err != nil {
		t.Fatalf("WriteTranscript: %v", err)
	}

	parsed := ParseTranscript(sb.String())

	meta := parsed.Metadata
	if meta.Condition != "openmath" || meta.Mode != "greedy" || meta.Model != "gemma2:9b" {
		t.Fatalf("metadata: %+v", meta)
	}
	if meta.Date != "2026-03-14 09:30:00" {
		t.Fatalf("date: got %q", meta.Date)
	}
	if meta.NProblems != 2 || meta.MaxTokens != 4096 || meta.MaxAttempts != 5 {
		t.Fatalf("config: %+v", meta)
	}
	if meta.Temperature != 0.6 || meta.TopKSymbols != 20 || meta.Seed != 42 {
		t.Fatalf("config: %+v", meta)
	}

	if len(parsed.Results) != 2 {
		t.Fatalf("results: got %d", len(parsed.Results))
	}
	first := parsed.Results["math_00001"]
	if first.Level != 1 || first.ProblemType != "prealgebra" || !first.IsCorrect || first.Attempts != 1 {
		t.Fatalf("first: %+v", first)
	}
	second := parsed.Results["math_00002"]
	if second.Level != 3 || second.ProblemType != "algebra" || second.IsCorrect || second.Attempts != 2 {
		t.Fatalf("second: %+v", second)
	}
}

func TestParseTranscript_MissingHeader(t *testing.T) {
	parsed := ParseTranscript("no headers here")
	if parsed.Metadata.Condition != "unknown" || parsed.Metadata.Model != "unknown" {
		t.Fatalf("metadata: %+v", parsed.Metadata)
	}
	if len(parsed.Results) != 0 {
		t.Fatalf("results: %+v", parsed.Results)
	}
}

func TestParseTranscript_ResponseWithoutProblem(t *testing.T) {
	content := "## Response math_00009\n  Attempt: 1\n  Answer: 5\n  Is Correct: True"
	parsed := ParseTranscript(content)
	if len(parsed.Results) != 0 {
		t.Fatalf("orphan response kept: %+v", parsed.Results)
	}
}

func TestTranscriptFilename(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	got := TranscriptFilename(testRun(), ts)
	want := "experiment_gemma2-9b_openmath_greedy_0.5_260314_0930.md"
	if got != want {
		t.Fatalf("filename: got %q, want %q", got, want)
	}
}

func TestSaveTranscript(t *testing.T) {
	dir := t.TempDir()
	opts := TranscriptOptions{
		Date:      time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		ServerURL: "http://localhost:11434",
	}
	path, err := SaveTranscript(dir, testRun(), opts)
	if err != nil {
		t.Fatalf("SaveTranscript: %v", err)
	}
	if !strings.HasSuffix(path, "experiment_gemma2-9b_openmath_greedy_0.5_260314_0930.md") {
		t.Fatalf("path: %q", path)
	}

	parsed, err := ParseTranscriptFile(path)
	if err != nil {
		t.Fatalf("ParseTranscriptFile: %v", err)
	}
	if len(parsed.Results) != 2 {
		t.Fatalf("results: got %d", len(parsed.Results))
	}
}

func TestParseTranscriptFile_Missing(t *testing.T) {
	if _, err := ParseTranscriptFile(filepath.Join(t.TempDir(), "nope.md")); err == nil {
		t.Fatalf("expected error")
	}
}

func TestFormatThreshold(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "0.0"},
		{0.5, "0.5"},
		{0.25, "0.25"},
		{1, "1.0"},
	}
	for _, tc := range cases {
		if got := formatThreshold(tc.in); got != tc.want {
			t.Fatalf("formatThreshold(%v): got %q, want %q", tc.in, got, tc.want)
		}
	}
}
