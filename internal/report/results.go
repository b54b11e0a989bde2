package report

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/stellarlinkco/openmath-eval/internal/retrieval"
)

// modelNameMap maps server-side model names to the clean names used in
// CSV output.
var modelNameMap = map[string]string{
	"johnnyboy/qwen2.5-math-7b:latest": "qwen2.5-math-7b",
	"gemma2:9b":                        "gemma2-9b",
	"gemma2:2b":                        "gemma2-2b",
}

// ProblemTypes are the MATH benchmark problem categories, in CSV row
// order.
var ProblemTypes = []string{
	"algebra",
	"counting_&_probability",
	"geometry",
	"intermediate_algebra",
	"number_theory",
	"prealgebra",
	"precalculus",
}

// Levels are the MATH benchmark difficulty levels.
var Levels = []int{1, 2, 3, 4, 5}

// CSVFieldnames is the column order of the results CSV.
var CSVFieldnames = []string{
	"model", "problems", "correct", "attempts",
	"condition", "mode", "level", "type", "threshold",
}

// DefaultThresholds is the sweep used when no thresholds are
// configured.
var DefaultThresholds = []float64{0.0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9}

// NormalizeModelName maps a model name to its clean CSV form: direct
// lookup, then partial match in either direction, then a lowercase
// fallback with separators replaced by dashes.
func NormalizeModelName(model string) string {
	if clean, ok := modelNameMap[model]; ok {
		return clean
	}
	for name, clean := range modelNameMap {
		if strings.Contains(model, name) || strings.Contains(name, model) {
			return clean
		}
	}
	clean := strings.NewReplacer("/", "-", ":", "-", "_", "-").Replace(model)
	return strings.ToLower(clean)
}

// conditionCounts accumulates paired baseline/openmath tallies for one
// level or type bucket.
type conditionCounts struct {
	Total               int
	BaselineCorrect     int
	OpenMathCorrect     int
	BaselineAttemptsSum int
	OpenMathAttemptsSum int
}

// ThresholdStats summarizes a baseline/openmath transcript pair at one
// threshold.
type ThresholdStats struct {
	Threshold           float64
	NProblems           int
	BaselineCorrect     int
	OpenMathCorrect     int
	BaselineAccuracy    float64
	OpenMathAccuracy    float64
	Delta               float64
	ByLevel             map[int]conditionCounts
	ByType              map[string]conditionCounts
	AvgAttemptsBaseline float64
	AvgAttemptsOpenMath float64
}

// FilterProblemsByThreshold returns the set of problem IDs whose best
// reranker score meets the threshold.
func FilterProblemsByThreshold(maxScores map[string]float64, threshold float64) map[string]bool {
	filtered := make(map[string]bool)
	for pid, score := range maxScores {
		if score >= threshold {
			filtered[pid] = true
		}
	}
	return filtered
}

// ComputeThresholdStats tallies a baseline/openmath result pair over
// the problems meeting the threshold. Per-level and per-type buckets
// only count problems present in both result sets, so the paired
// comparison stays balanced.
func ComputeThresholdStats(threshold float64, filtered map[string]bool, baseline, openmath map[string]ProblemResult) ThresholdStats {
	stats := ThresholdStats{
		Threshold:           threshold,
		NProblems:           len(filtered),
		ByLevel:             map[int]conditionCounts{},
		ByType:              map[string]conditionCounts{},
		AvgAttemptsBaseline: 1.0,
		AvgAttemptsOpenMath: 1.0,
	}

	var baselineAttempts, openmathAttempts, baselineN, openmathN int
	for pid, r := range baseline {
		if !filtered[pid] {
			continue
		}
		baselineN++
		baselineAttempts += r.Attempts
		if r.IsCorrect {
			stats.BaselineCorrect++
		}
	}
	for pid, r := range openmath {
		if !filtered[pid] {
			continue
		}
		openmathN++
		openmathAttempts += r.Attempts
		if r.IsCorrect {
			stats.OpenMathCorrect++
		}
	}

	if stats.NProblems > 0 {
		stats.BaselineAccuracy = float64(stats.BaselineCorrect) / float64(stats.NProblems) * 100
		stats.OpenMathAccuracy = float64(stats.OpenMathCorrect) / float64(stats.NProblems) * 100
	}
	stats.Delta = stats.OpenMathAccuracy - stats.BaselineAccuracy
	if baselineN > 0 {
		stats.AvgAttemptsBaseline = float64(baselineAttempts) / float64(baselineN)
	}
	if openmathN > 0 {
		stats.AvgAttemptsOpenMath = float64(openmathAttempts) / float64(openmathN)
	}

	for pid := range filtered {
		b, okB := baseline[pid]
		o, okO := openmath[pid]
		if !okB || !okO {
			continue
		}

		lv := stats.ByLevel[b.Level]
		lv.Total++
		lv.BaselineAttemptsSum += b.Attempts
		lv.OpenMathAttemptsSum += o.Attempts
		if b.IsCorrect {
			lv.BaselineCorrect++
		}
		if o.IsCorrect {
			lv.OpenMathCorrect++
		}
		stats.ByLevel[b.Level] = lv

		tp := stats.ByType[b.ProblemType]
		tp.Total++
		tp.BaselineAttemptsSum += b.Attempts
		tp.OpenMathAttemptsSum += o.Attempts
		if b.IsCorrect {
			tp.BaselineCorrect++
		}
		if o.IsCorrect {
			tp.OpenMathCorrect++
		}
		stats.ByType[b.ProblemType] = tp
	}

	return stats
}

// Row is one line of the results CSV. Level and Type are "all" for
// aggregate rows.
type Row struct {
	Model     string
	Problems  int
	Correct   int
	Attempts  float64
	Condition string
	Mode      string
	Level     string
	Type      string
	Threshold float64
}

// GenerateCSVRows expands one threshold's stats into its 26 CSV rows:
// an overall pair, a pair per level, and a pair per problem type.
// Levels and types absent at this threshold get zero rows.
func GenerateCSVRows(model, mode string, stats ThresholdStats) []Row {
	rows := make([]Row, 0, 2+2*len(Levels)+2*len(ProblemTypes))
	pair := func(problems, baselineCorrect, openmathCorrect int, baselineAttempts, openmathAttempts float64, level, ptype string) {
		rows = append(rows,
			Row{
				Model: model, Problems: problems, Correct: baselineCorrect,
				Attempts: round2(baselineAttempts), Condition: "baseline",
				Mode: mode, Level: level, Type: ptype, Threshold: stats.Threshold,
			},
			Row{
				Model: model, Problems: problems, Correct: openmathCorrect,
				Attempts: round2(openmathAttempts), Condition: "openmath",
				Mode: mode, Level: level, Type: ptype, Threshold: stats.Threshold,
			},
		)
	}

	pair(stats.NProblems, stats.BaselineCorrect, stats.OpenMathCorrect,
		stats.AvgAttemptsBaseline, stats.AvgAttemptsOpenMath, "all", "all")

	for _, level := range Levels {
		counts, ok := stats.ByLevel[level]
		if !ok {
			pair(0, 0, 0, 1.0, 1.0, strconv.Itoa(level), "all")
			continue
		}
		pair(counts.Total, counts.BaselineCorrect, counts.OpenMathCorrect,
			avgAttempts(counts.BaselineAttemptsSum, counts.Total),
			avgAttempts(counts.OpenMathAttemptsSum, counts.Total),
			strconv.Itoa(level), "all")
	}

	for _, ptype := range ProblemTypes {
		counts, ok := stats.ByType[ptype]
		if !ok {
			pair(0, 0, 0, 1.0, 1.0, "all", ptype)
			continue
		}
		pair(counts.Total, counts.BaselineCorrect, counts.OpenMathCorrect,
			avgAttempts(counts.BaselineAttemptsSum, counts.Total),
			avgAttempts(counts.OpenMathAttemptsSum, counts.Total),
			"all", ptype)
	}

	return rows
}

// SweepRows runs the threshold sweep over a parsed baseline/openmath
// transcript pair and concatenates the CSV rows for every threshold.
func SweepRows(model, mode string, reranked retrieval.RerankedData, baseline, openmath map[string]ProblemResult, thresholds []float64) []Row {
	if len(thresholds) == 0 {
		thresholds = DefaultThresholds
	}
	maxScores := reranked.MaxScores()

	var rows []Row
	for _, threshold := range thresholds {
		filtered := FilterProblemsByThreshold(maxScores, threshold)
		stats := ComputeThresholdStats(threshold, filtered, baseline, openmath)
		rows = append(rows, GenerateCSVRows(model, mode, stats)...)
	}
	return rows
}

// WriteCSV writes rows with the standard header.
func WriteCSV(path string, rows []Row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("report: create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(CSVFieldnames); err != nil {
		return fmt.Errorf("report: write csv header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.Model,
			strconv.Itoa(row.Problems),
			strconv.Itoa(row.Correct),
			formatThreshold(row.Attempts),
			row.Condition,
			row.Mode,
			row.Level,
			row.Type,
			formatThreshold(row.Threshold),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("report: write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("report: flush csv: %w", err)
	}
	return nil
}

// DefaultCSVPath builds the auto-generated output name,
// results_flexible_{ts}.csv, under outputDir.
func DefaultCSVPath(outputDir string, ts time.Time) string {
	return filepath.Join(outputDir, fmt.Sprintf("results_flexible_%s.csv", ts.Format("060102_1504")))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func avgAttempts(sum, total int) float64 {
	if total == 0 {
		return 1.0
	}
	return float64(sum) / float64(total)
}
