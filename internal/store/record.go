package store

import (
	"fmt"

	"github.com/stellarlinkco/openmath-eval/internal/experiment"
)

// NewExperimentID builds a stable experiment identifier from run
// options and the start timestamp.
func NewExperimentID(run *experiment.RunResult) string {
	o := run.Options
	return fmt.Sprintf("%s_%s_%s_%g_%s",
		o.Model, o.Condition, o.Mode, o.Threshold,
		run.StartedAt.UTC().Format("060102_150405"))
}

// RecordsFromRun converts a completed run into store records.
func RecordsFromRun(run *experiment.RunResult, transcriptPath string) (*ExperimentRecord, []*ProblemRecord) {
	if run == nil {
		return nil, nil
	}
	o := run.Options
	id := NewExperimentID(run)

	exp := &ExperimentRecord{
		ID:             id,
		Model:          o.Model,
		Condition:      o.Condition,
		Mode:           o.Mode,
		Threshold:      o.Threshold,
		StartedAt:      run.StartedAt,
		FinishedAt:     run.StartedAt.Add(run.Elapsed),
		TotalProblems:  len(run.Results),
		CorrectCount:   run.CorrectCount(),
		AvgAttempts:    run.AverageAttempts(),
		TranscriptPath: transcriptPath,
		Config: map[string]any{
			"n_problems":    o.NProblems,
			"max_tokens":    o.MaxTokens,
			"max_attempts":  o.MaxAttempts,
			"temperature":   o.Temperature,
			"top_k_symbols": o.TopKSymbols,
			"seed":          o.Seed,
		},
	}

	problems := make([]*ProblemRecord, 0, len(run.Results))
	for _, r := range run.Results {
		problems = append(problems, &ProblemRecord{
			ID:               id + ":" + r.ProblemID,
			ExperimentID:     id,
			ProblemID:        r.ProblemID,
			Level:            r.Level,
			ProblemType:      r.ProblemType,
			GroundTruth:      r.GroundTruth,
			PredictedAnswer:  r.PredictedAnswer,
			IsCorrect:        r.IsCorrect,
			ComparisonMethod: r.ComparisonMethod,
			Attempts:         r.Attempts,
			ElapsedSeconds:   r.ElapsedSeconds,
			SystemPrompt:     r.SystemPrompt,
			UserPrompt:       r.UserPrompt,
			Response:         r.Response,
			OpenMathSymbols:  r.OpenMathSymbols,
		})
	}
	return exp, problems
}
