// Package metrics computes accuracy statistics and condition
// comparisons over experiment outcomes.
package metrics

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// DefaultSignificanceLevel is the alpha used for significance testing.
const DefaultSignificanceLevel = 0.05

// Outcome is the slice of one evaluation the calculator needs.
type Outcome struct {
	Condition        string `json:"condition"`
	Level            int    `json:"level"`
	ProblemType      string `json:"problem_type"`
	IsCorrect        bool   `json:"is_correct"`
	CodeExtracted    bool   `json:"code_extracted"`
	ExecutionSuccess bool   `json:"execution_success"`
}

// Breakdown is a per-group accuracy slice.
type Breakdown struct {
	Total    int     `json:"total"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}

// Accuracy holds overall and grouped accuracy for one result set.
type Accuracy struct {
	Total                 int                  `json:"total"`
	Correct               int                  `json:"correct"`
	Accuracy              float64              `json:"accuracy"`
	ConfidenceInterval95  [2]float64           `json:"confidence_interval_95"`
	ByLevel               map[int]Breakdown    `json:"by_level"`
	ByType                map[string]Breakdown `json:"by_type"`
	CodeExtractedCount    int                  `json:"code_extracted_count"`
	ExecutionSuccessCount int                  `json:"execution_success_count"`
}

// Comparison is a significance-tested accuracy comparison between two
// conditions.
type Comparison struct {
	ConditionA    string  `json:"condition_a"`
	ConditionB    string  `json:"condition_b"`
	AccuracyA     float64 `json:"accuracy_a"`
	AccuracyB     float64 `json:"accuracy_b"`
	AccuracyDiff  float64 `json:"accuracy_diff"`
	PValue        float64 `json:"p_value"`
	HasPValue     bool    `json:"has_p_value"`
	IsSignificant bool    `json:"is_significant"`
	EffectSize    float64 `json:"effect_size"`
}

// Summary aggregates per-condition metrics and baseline comparisons.
type Summary struct {
	Conditions       map[string]Accuracy `json:"conditions"`
	ConditionOrder   []string            `json:"-"`
	Comparisons      []Comparison        `json:"comparisons"`
	TotalProblems    int                 `json:"total_problems"`
	TotalEvaluations int                 `json:"total_evaluations"`
}

// Calculator computes metrics from experiment outcomes.
type Calculator struct {
	significanceLevel float64
}

// NewCalculator returns a calculator. A non-positive alpha selects
// DefaultSignificanceLevel.
func NewCalculator(significanceLevel float64) *Calculator {
	if significanceLevel <= 0 {
		significanceLevel = DefaultSignificanceLevel
	}
	return &Calculator{significanceLevel: significanceLevel}
}

// ComputeAccuracy computes overall accuracy, a Wilson 95% interval, and
// per-level and per-type breakdowns.
func (c *Calculator) ComputeAccuracy(results []Outcome) Accuracy {
	metrics := Accuracy{
		ByLevel: map[int]Breakdown{},
		ByType:  map[string]Breakdown{},
	}
	if len(results) == 0 {
		return metrics
	}

	metrics.Total = len(results)
	for _, r := range results {
		if r.IsCorrect {
			metrics.Correct++
		}
		if r.CodeExtracted {
			metrics.CodeExtractedCount++
		}
		if r.ExecutionSuccess {
			metrics.ExecutionSuccessCount++
		}

		level := metrics.ByLevel[r.Level]
		level.Total++
		if r.IsCorrect {
			level.Correct++
		}
		metrics.ByLevel[r.Level] = level

		ptype := r.ProblemType
		if ptype == "" {
			ptype = "unknown"
		}
		group := metrics.ByType[ptype]
		group.Total++
		if r.IsCorrect {
			group.Correct++
		}
		metrics.ByType[ptype] = group
	}

	metrics.Accuracy = float64(metrics.Correct) / float64(metrics.Total)
	metrics.ConfidenceInterval95 = wilsonInterval(metrics.Correct, metrics.Total, 1.96)

	for level, group := range metrics.ByLevel {
		group.Accuracy = float64(group.Correct) / float64(group.Total)
		metrics.ByLevel[level] = group
	}
	for ptype, group := range metrics.ByType {
		group.Accuracy = float64(group.Correct) / float64(group.Total)
		metrics.ByType[ptype] = group
	}
	return metrics
}

// CompareConditions tests whether two conditions differ in accuracy,
// using a two-proportion z-test and Cohen's h for effect size.
func (c *Calculator) CompareConditions(resultsA, resultsB []Outcome, conditionA, conditionB string) Comparison {
	metricsA := c.ComputeAccuracy(resultsA)
	metricsB := c.ComputeAccuracy(resultsB)

	comparison := Comparison{
		ConditionA:   conditionA,
		ConditionB:   conditionB,
		AccuracyA:    metricsA.Accuracy,
		AccuracyB:    metricsB.Accuracy,
		AccuracyDiff: metricsB.Accuracy - metricsA.Accuracy,
	}
	if metricsA.Total > 0 && metricsB.Total > 0 {
		comparison.PValue = twoProportionPValue(
			metricsA.Correct, metricsA.Total,
			metricsB.Correct, metricsB.Total,
		)
		comparison.HasPValue = true
		comparison.IsSignificant = comparison.PValue < c.significanceLevel
		comparison.EffectSize = cohensH(metricsA.Accuracy, metricsB.Accuracy)
	}
	return comparison
}

// GenerateSummary computes per-condition metrics over all outcomes and
// compares every non-baseline condition against "baseline".
func (c *Calculator) GenerateSummary(allResults []Outcome, conditions []string) Summary {
	summary := Summary{
		Conditions:       map[string]Accuracy{},
		ConditionOrder:   append([]string(nil), conditions...),
		TotalEvaluations: len(allResults),
	}

	grouped := map[string][]Outcome{}
	var groupOrder []string
	for _, r := range allResults {
		condition := r.Condition
		if condition == "" {
			condition = "unknown"
		}
		if _, seen := grouped[condition]; !seen {
			groupOrder = append(groupOrder, condition)
		}
		grouped[condition] = append(grouped[condition], r)
	}

	for _, condition := range conditions {
		summary.Conditions[condition] = c.ComputeAccuracy(grouped[condition])
	}
	if len(groupOrder) > 0 {
		summary.TotalProblems = len(grouped[groupOrder[0]])
	}

	if baseline, ok := grouped["baseline"]; ok {
		for _, condition := range conditions {
			if condition == "baseline" || len(grouped[condition]) == 0 {
				continue
			}
			summary.Comparisons = append(summary.Comparisons,
				c.CompareConditions(baseline, grouped[condition], "baseline", condition))
		}
	}
	return summary
}

// wilsonInterval is the Wilson score confidence interval for a binomial
// proportion.
func wilsonInterval(successes, total int, z float64) [2]float64 {
	if total == 0 {
		return [2]float64{0, 0}
	}
	n := float64(total)
	p := float64(successes) / n

	denominator := 1 + z*z/n
	center := (p + z*z/(2*n)) / denominator
	spread := z * math.Sqrt((p*(1-p)+z*z/(4*n))/n) / denominator

	return [2]float64{
		math.Max(0, center-spread),
		math.Min(1, center+spread),
	}
}

// twoProportionPValue is the two-tailed p-value of a pooled z-test for
// two proportions.
func twoProportionPValue(successesA, totalA, successesB, totalB int) float64 {
	pooled := float64(successesA+successesB) / float64(totalA+totalB)
	if pooled == 0 || pooled == 1 {
		return 1.0
	}

	se := math.Sqrt(pooled * (1 - pooled) * (1/float64(totalA) + 1/float64(totalB)))
	if se == 0 {
		return 1.0
	}

	pA := float64(successesA) / float64(totalA)
	pB := float64(successesB) / float64(totalB)
	z := (pB - pA) / se

	return 2 * (1 - normalCDF(math.Abs(z)))
}

func normalCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

// cohensH is the effect size for a difference between two proportions.
func cohensH(p1, p2 float64) float64 {
	phi1 := 2 * math.Asin(math.Sqrt(p1))
	phi2 := 2 * math.Asin(math.Sqrt(p2))
	return math.Abs(phi2 - phi1)
}

// FormatSummaryTable renders the summary as an ASCII table.
func (c *Calculator) FormatSummaryTable(summary Summary) string {
	var lines []string
	rule := strings.Repeat("=", 70)
	thin := strings.Repeat("-", 70)

	lines = append(lines, rule, "EXPERIMENT SUMMARY", rule)
	lines = append(lines,
		fmt.Sprintf("Total Problems: %d", summary.TotalProblems),
		fmt.Sprintf("Total Evaluations: %d", summary.TotalEvaluations),
		"")

	lines = append(lines, thin)
	lines = append(lines, fmt.Sprintf("%-20s %10s %10s %12s %15s",
		"Condition", "Correct", "Total", "Accuracy", "95% CI"))
	lines = append(lines, thin)

	for _, condition := range c.summaryOrder(summary) {
		m := summary.Conditions[condition]
		ci := fmt.Sprintf("[%.1f%%, %.1f%%]",
			m.ConfidenceInterval95[0]*100, m.ConfidenceInterval95[1]*100)
		lines = append(lines, fmt.Sprintf("%-20s %10d %10d %11.1f%% %15s",
			condition, m.Correct, m.Total, m.Accuracy*100, ci))
	}
	lines = append(lines, thin, "")

	if len(summary.Comparisons) > 0 {
		lines = append(lines, "Comparisons vs Baseline:", thin)
		lines = append(lines, fmt.Sprintf("%-20s %10s %12s %12s",
			"Condition", "Diff", "p-value", "Significant"))
		lines = append(lines, thin)

		for _, comp := range summary.Comparisons {
			sig := "No"
			if comp.IsSignificant {
				sig = "Yes *"
			}
			pValue := "N/A"
			if comp.HasPValue {
				pValue = fmt.Sprintf("%.4f", comp.PValue)
			}
			lines = append(lines, fmt.Sprintf("%-20s %+9.1f%% %12s %12s",
				comp.ConditionB, comp.AccuracyDiff*100, pValue, sig))
		}
		lines = append(lines, thin)
	}

	lines = append(lines, rule)
	return strings.Join(lines, "\n")
}

func (c *Calculator) summaryOrder(summary Summary) []string {
	if len(summary.ConditionOrder) > 0 {
		return summary.ConditionOrder
	}
	order := make([]string, 0, len(summary.Conditions))
	for condition := range summary.Conditions {
		order = append(order, condition)
	}
	sort.Strings(order)
	return order
}
