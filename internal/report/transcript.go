// Package report writes and parses experiment transcripts, and turns
// transcript pairs into threshold-sweep CSV summaries.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/stellarlinkco/openmath-eval/internal/experiment"
)

const (
	transcriptTitle = "# OpenMath Ontology Mathematical Problem Solving Experiment"
	resultSeparator = "--------------------------------------------------------"
)

// TranscriptOptions carries run context that is not part of the results
// themselves.
type TranscriptOptions struct {
	Date      time.Time
	ServerURL string
}

// TranscriptFilename derives the markdown file name for a run:
// experiment_{model}_{condition}_{mode}_{threshold}_{ts}.md.
func TranscriptFilename(run *experiment.RunResult, ts time.Time) string {
	return fmt.Sprintf("experiment_%s_%s_%s_%s_%s.md",
		NormalizeModelName(run.Options.Model),
		run.Options.Condition,
		run.Options.Mode,
		formatThreshold(run.Options.Threshold),
		ts.Format("060102_1504"))
}

// WriteTranscript renders the full experiment transcript: header,
// configuration, summary, and per-problem details.
func WriteTranscript(w io.Writer, run *experiment.RunResult, opts TranscriptOptions) error {
	date := opts.Date
	if date.IsZero() {
		date = time.Now()
	}
	o := run.Options
	total := len(run.Results)

	lines := []string{
		transcriptTitle,
		"",
		"**Condition**: " + o.Condition,
		"**Mode**: " + o.Mode,
		"**Model**: " + o.Model,
		"**Threshold**: " + formatThreshold(o.Threshold),
		"**Date**: " + date.Format("2006-01-02 15:04:05"),
		"",
		"## Configuration",
		"",
		fmt.Sprintf("- Number of problems: %d (filtered by threshold >= %s)", total, formatThreshold(o.Threshold)),
		fmt.Sprintf("- Max tokens: %d", o.MaxTokens),
		fmt.Sprintf("- Max attempts: %d", o.MaxAttempts),
		fmt.Sprintf("- Temperature: %s (best-of-n only)", formatThreshold(o.Temperature)),
		fmt.Sprintf("- Top K symbols: %d", o.TopKSymbols),
		fmt.Sprintf("- Seed: %d", o.Seed),
		"- Ollama URL: " + opts.ServerURL,
		"",
		"---",
		"",
		"## Summary",
		"",
		fmt.Sprintf("**Overall Accuracy**: %d/%d (%.1f%%)", run.CorrectCount(), total, run.Accuracy()*100),
		fmt.Sprintf("**Average Number of Attempts**: %.2f", run.AverageAttempts()),
		"",
		"### By Level",
	}

	byLevel, byType := groupCounts(run.Results)
	for _, level := range sortedIntKeys(byLevel) {
		g := byLevel[level]
		lines = append(lines, fmt.Sprintf("- Level %d: %d/%d (%.1f%%)", level, g.correct, g.total, g.accuracy()))
	}

	lines = append(lines, "", "### By Problem Type")
	for _, ptype := range sortedStringKeys(byType) {
		g := byType[ptype]
		lines = append(lines, fmt.Sprintf("- %s: %d/%d (%.1f%%)", ptype, g.correct, g.total, g.accuracy()))
	}

	lines = append(lines, "", "---", "", "# Detailed Results", "")

	for _, r := range run.Results {
		lines = append(lines,
			"## Problem "+r.ProblemID,
			fmt.Sprintf("  Level: %d", r.Level),
			"  Type: "+r.ProblemType,
			"  Problem Statement: "+r.ProblemText,
			"  Ground Truth: "+r.GroundTruth,
			"",
			"## Response "+r.ProblemID,
			fmt.Sprintf("  Attempt: %d", r.Attempts),
			"  Answer: "+r.PredictedAnswer,
			"  Is Correct: "+formatBool(r.IsCorrect),
		)
		if len(r.OpenMathSymbols) > 0 {
			lines = append(lines, "  OpenMath Symbols: "+formatSymbolList(r.OpenMathSymbols))
		}

		systemPrompt := r.SystemPrompt
		if systemPrompt == "" {
			systemPrompt = "(empty)"
		}
		lines = append(lines,
			"",
			"--- System Prompt ---",
			systemPrompt,
			"--- End System Prompt ---",
			"",
			"--- User Prompt ---",
			r.UserPrompt,
			"--- End User Prompt ---",
			"",
			"--- LLM Response ---",
			r.Response,
			"--- End LLM Response ---",
			"",
			resultSeparator,
			"",
		)
	}

	_, err := io.WriteString(w, strings.Join(lines, "\n"))
	if err != nil {
		return fmt.Errorf("report: write transcript: %w", err)
	}
	return nil
}

// SaveTranscript writes the transcript into outputDir and returns the
// file path.
func SaveTranscript(outputDir string, run *experiment.RunResult, opts TranscriptOptions) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("report: create %q: %w", outputDir, err)
	}

	date := opts.Date
	if date.IsZero() {
		date = time.Now()
		opts.Date = date
	}

	path := filepath.Join(outputDir, TranscriptFilename(run, date))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("report: create transcript: %w", err)
	}
	defer f.Close()

	if err := WriteTranscript(f, run, opts); err != nil {
		return "", err
	}
	return path, nil
}

type group struct {
	correct int
	total   int
}

func (g group) accuracy() float64 {
	if g.total == 0 {
		return 0
	}
	return float64(g.correct) / float64(g.total) * 100
}

func groupCounts(results []experiment.Result) (map[int]group, map[string]group) {
	byLevel := map[int]group{}
	byType := map[string]group{}
	for _, r := range results {
		lv := byLevel[r.Level]
		lv.total++
		if r.IsCorrect {
			lv.correct++
		}
		byLevel[r.Level] = lv

		tp := byType[r.ProblemType]
		tp.total++
		if r.IsCorrect {
			tp.correct++
		}
		byType[r.ProblemType] = tp
	}
	return byLevel, byType
}

func sortedIntKeys(m map[int]group) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func sortedStringKeys(m map[string]group) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatThreshold renders a float the way the transcripts expect:
// whole numbers keep one decimal (0 -> "0.0").
func formatThreshold(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// formatSymbolList renders symbol IDs as a bracketed, quoted list:
// ['arith1:gcd', 'transc1:sin'].
func formatSymbolList(symbols []string) string {
	quoted := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		quoted = append(quoted, "'"+sym+"'")
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
