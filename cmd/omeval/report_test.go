package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/openmath-eval/internal/config"
	"github.com/stellarlinkco/openmath-eval/internal/retrieval"
)

func writeTranscriptFixture(t *testing.T, dir, name, condition string, correct bool) string {
	t.Helper()

	isCorrect := "False"
	if correct {
		isCorrect = "True"
	}
	content := strings.Join([]string{
		"# OpenMath Ontology Mathematical Problem Solving Experiment",
		"",
		"**Condition**: " + condition,
		"**Mode**: greedy",
		"**Model**: gemma2:9b",
		"**Date**: 2026-03-14 09:30:00",
		"",
		"## Problem math_00001",
		"  Level: 1",
		"  Type: Algebra",
		"",
		"## Response math_00001",
		"  Attempt: 1",
		"  Answer: 4",
		"  Is Correct: " + isCorrect,
		"",
	}, "\n")

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestExtractReport(t *testing.T) {
	dir := t.TempDir()
	baselinePath := writeTranscriptFixture(t, dir, "baseline.md", "baseline", false)
	openmathPath := writeTranscriptFixture(t, dir, "openmath.md", "openmath", true)

	origReranked := loadReranked
	t.Cleanup(func() { loadReranked = origReranked })
	loadReranked = func(path string) (retrieval.RerankedData, error) {
		return retrieval.RerankedData{
			"math_00001": {ProblemID: "math_00001", RerankedSymbols: []retrieval.RerankedSymbol{
				{ID: "arith1:plus", RerankerScore: 0.9},
			}},
			"math_00002": {ProblemID: "math_00002", RerankedSymbols: []retrieval.RerankedSymbol{
				{ID: "arith1:gcd", RerankerScore: 0.3},
			}},
		}, nil
	}

	output := filepath.Join(dir, "results.csv")
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	cmd.SetContext(context.Background())

	st := &cliState{cfg: &config.Config{}}
	err := extractReport(cmd, st, &reportOptions{
		baselinePath: baselinePath,
		openmathPath: openmathPath,
		thresholds:   "0.0,0.5",
		output:       output,
	})
	if err != nil {
		t.Fatalf("extractReport: %v", err)
	}

	if !strings.Contains(buf.String(), "Wrote 52 rows to "+output) {
		t.Fatalf("output: %q", buf.String())
	}

	f, err := os.Open(output)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(rows) != 53 {
		t.Fatalf("rows: got %d want 53", len(rows))
	}
	if rows[0][0] != "model" || rows[0][8] != "threshold" {
		t.Fatalf("header: %v", rows[0])
	}
	// Overall baseline row at threshold 0.0 covers both reranked problems.
	want := []string{"gemma2-9b", "2", "0", "1.0", "baseline", "greedy", "all", "all", "0.0"}
	for i, col := range want {
		if rows[1][i] != col {
			t.Fatalf("row 1 col %d: got %q want %q (row %v)", i, rows[1][i], col, rows[1])
		}
	}
	// Threshold 0.5 drops math_00002.
	if rows[27][1] != "1" || rows[27][8] != "0.5" {
		t.Fatalf("row 27: %v", rows[27])
	}
}

func TestExtractReport_Errors(t *testing.T) {
	t.Parallel()

	cmd := &cobra.Command{}
	st := &cliState{cfg: &config.Config{}}

	if err := extractReport(cmd, nil, &reportOptions{}); err == nil {
		t.Fatalf("expected nil state error")
	}
	if err := extractReport(cmd, st, &reportOptions{}); err == nil {
		t.Fatalf("expected missing flags error")
	}
	if err := extractReport(cmd, st, &reportOptions{
		baselinePath: "a.md", openmathPath: "b.md", thresholds: "0.5,x",
	}); err == nil {
		t.Fatalf("expected threshold parse error")
	}
	if err := extractReport(cmd, st, &reportOptions{
		baselinePath: "does-not-exist.md", openmathPath: "b.md",
	}); err == nil {
		t.Fatalf("expected read error")
	}
}

func TestParseThresholds(t *testing.T) {
	t.Parallel()

	if got, err := parseThresholds(""); err != nil || got != nil {
		t.Fatalf("empty: got %v err %v", got, err)
	}

	got, err := parseThresholds(" 0.0, 0.5 ,0.9 ")
	if err != nil {
		t.Fatalf("parseThresholds: %v", err)
	}
	if len(got) != 3 || got[0] != 0 || got[1] != 0.5 || got[2] != 0.9 {
		t.Fatalf("parseThresholds: got %v", got)
	}

	if _, err := parseThresholds("0.1,abc"); err == nil {
		t.Fatalf("expected parse error")
	}
}
