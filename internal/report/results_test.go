package report

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stellarlinkco/openmath-eval/internal/retrieval"
)

func TestNormalizeModelName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"johnnyboy/qwen2.5-math-7b:latest", "qwen2.5-math-7b"},
		{"gemma2:9b", "gemma2-9b"},
		{"gemma2:2b", "gemma2-2b"},
		{"registry.local/gemma2:9b", "gemma2-9b"},
		{"llama3.1:8b-instruct", "llama3.1-8b-instruct"},
		{"Org/Model_X:v2", "org-model-x-v2"},
	}
	for _, tc := range cases {
		if got := NormalizeModelName(tc.in); got != tc.want {
			t.Fatalf("NormalizeModelName(%q): got %q, want %q", tc.in, got, tc.want)
		}
	}
}

func pairedResults() (map[string]ProblemResult, map[string]ProblemResult) {
	baseline := map[string]ProblemResult{
		"math_00001": {ProblemID: "math_00001", Level: 1, ProblemType: "algebra", IsCorrect: true, Attempts: 1},
		"math_00002": {ProblemID: "math_00002", Level: 1, ProblemType: "algebra", IsCorrect: false, Attempts: 2},
		"math_00003": {ProblemID: "math_00003", Level: 3, ProblemType: "geometry", IsCorrect: false, Attempts: 1},
	}
	openmath := map[string]ProblemResult{
		"math_00001": {ProblemID: "math_00001", Level: 1, ProblemType: "algebra", IsCorrect: true, Attempts: 1},
		"math_00002": {ProblemID: "math_00002", Level: 1, ProblemType: "algebra", IsCorrect: true, Attempts: 3},
		// math_00003 missing: excluded from level/type buckets.
	}
	return baseline, openmath
}

func TestComputeThresholdStats(t *testing.T) {
	baseline, openmath := pairedResults()
	filtered := map[string]bool{"math_00001": true, "math_00002": true, "math_00003": true}

	stats := ComputeThresholdStats(0.0, filtered, baseline, openmath)

	if stats.NProblems != 3 {
		t.Fatalf("n problems: got %d", stats.NProblems)
	}
	if stats.BaselineCorrect != 1 || stats.OpenMathCorrect != 2 {
		t.Fatalf("correct: baseline=%d openmath=%d", stats.BaselineCorrect, stats.OpenMathCorrect)
	}
	if stats.Delta <= 0 {
		t.Fatalf("delta: got %f", stats.Delta)
	}

	// Only math_00001 and math_00002 appear in both result sets.
	lv := stats.ByLevel[1]
	if lv.Total != 2 || lv.BaselineCorrect != 1 || lv.OpenMathCorrect != 2 {
		t.Fatalf("level 1: %+v", lv)
	}
	if _, ok := stats.ByLevel[3]; ok {
		t.Fatalf("level 3 counted without openmath result")
	}
	tp := stats.ByType["algebra"]
	if tp.Total != 2 || tp.OpenMathAttemptsSum != 4 {
		t.Fatalf("algebra: %+v", tp)
	}
}

func TestComputeThresholdStats_FilterApplies(t *testing.T) {
	baseline, openmath := pairedResults()
	filtered := map[string]bool{"math_00001": true}

	stats := ComputeThresholdStats(0.9, filtered, baseline, openmath)
	if stats.NProblems != 1 || stats.BaselineCorrect != 1 || stats.OpenMathCorrect != 1 {
		t.Fatalf("stats: %+v", stats)
	}
	if stats.BaselineAccuracy != 100.0 {
		t.Fatalf("accuracy: got %f", stats.BaselineAccuracy)
	}
}

func TestGenerateCSVRows(t *testing.T) {
	baseline, openmath := pairedResults()
	filtered := map[string]bool{"math_00001": true, "math_00002": true, "math_00003": true}
	stats := ComputeThresholdStats(0.0, filtered, baseline, openmath)

	rows := GenerateCSVRows("gemma2-9b", "greedy", stats)

	if len(rows) != 26 {
		t.Fatalf("rows: got %d, want 26", len(rows))
	}

	overall := rows[0]
	if overall.Condition != "baseline" || overall.Level != "all" || overall.Type != "all" {
		t.Fatalf("overall row: %+v", overall)
	}
	if overall.Problems != 3 || overall.Correct != 1 {
		t.Fatalf("overall row: %+v", overall)
	}
	if rows[1].Condition != "openmath" || rows[1].Correct != 2 {
		t.Fatalf("openmath overall row: %+v", rows[1])
	}
	if rows[1].Attempts != 2.0 {
		t.Fatalf("openmath attempts: got %v", rows[1].Attempts)
	}

	// Level 1 row pair follows the overall pair.
	level1 := rows[2]
	if level1.Level != "1" || level1.Problems != 2 || level1.Correct != 1 {
		t.Fatalf("level 1 row: %+v", level1)
	}

	// Absent levels produce zero rows with attempts pinned at 1.0.
	var level2 Row
	for _, row := range rows {
		if row.Level == "2" && row.Condition == "baseline" {
			level2 = row
			break
		}
	}
	if level2.Problems != 0 || level2.Correct != 0 || level2.Attempts != 1.0 {
		t.Fatalf("level 2 zero row: %+v", level2)
	}

	var precalc Row
	for _, row := range rows {
		if row.Type == "precalculus" && row.Condition == "openmath" {
			precalc = row
			break
		}
	}
	if precalc.Problems != 0 || precalc.Attempts != 1.0 {
		t.Fatalf("precalculus zero row: %+v", precalc)
	}
}

func TestSweepRows(t *testing.T) {
	baseline, openmath := pairedResults()
	reranked := retrieval.RerankedData{
		"math_00001": {
			ProblemID: "math_00001",
			RerankedSymbols: []retrieval.RerankedSymbol{
				{ID: "arith1:plus", CD: "arith1", Name: "plus", RerankerScore: 0.9},
			},
		},
		"math_00002": {
			ProblemID: "math_00002",
			RerankedSymbols: []retrieval.RerankedSymbol{
				{ID: "arith1:gcd", CD: "arith1", Name: "gcd", RerankerScore: 0.3},
			},
		},
	}

	rows := SweepRows("gemma2-9b", "greedy", reranked, baseline, openmath, []float64{0.0, 0.5})
	if len(rows) != 52 {
		t.Fatalf("rows: got %d, want 52", len(rows))
	}
	if rows[0].Threshold != 0.0 || rows[26].Threshold != 0.5 {
		t.Fatalf("thresholds: %v, %v", rows[0].Threshold, rows[26].Threshold)
	}
	// At 0.5 only math_00001 passes the filter.
	if rows[26].Problems != 1 {
		t.Fatalf("filtered problems: %+v", rows[26])
	}

	defaulted := SweepRows("gemma2-9b", "greedy", reranked, baseline, openmath, nil)
	if len(defaulted) != 26*len(DefaultThresholds) {
		t.Fatalf("default sweep rows: got %d", len(defaulted))
	}
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "results.csv")
	rows := []Row{
		{
			Model: "gemma2-9b", Problems: 3, Correct: 1, Attempts: 1.33,
			Condition: "baseline", Mode: "greedy", Level: "all", Type: "all", Threshold: 0.0,
		},
	}
	if err := WriteCSV(path, rows); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records: got %d", len(records))
	}
	if got, want := len(records[0]), len(CSVFieldnames); got != want {
		t.Fatalf("header columns: got %d, want %d", got, want)
	}
	if records[0][0] != "model" || records[0][8] != "threshold" {
		t.Fatalf("header: %v", records[0])
	}
	want := []string{"gemma2-9b", "3", "1", "1.33", "baseline", "greedy", "all", "all", "0.0"}
	for i, cell := range want {
		if records[1][i] != cell {
			t.Fatalf("row[%d]: got %q, want %q", i, records[1][i], cell)
		}
	}
}

func TestDefaultCSVPath(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	got := DefaultCSVPath("results", ts)
	if got != filepath.Join("results", "results_flexible_260314_0930.csv") {
		t.Fatalf("path: %q", got)
	}
}
