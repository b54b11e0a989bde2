package store

import (
	"context"
	"time"
)

// ExperimentWriter defines persistence for experiment summaries and
// per-problem results.
type ExperimentWriter interface {
	SaveExperiment(ctx context.Context, exp *ExperimentRecord) error
	SaveProblemResults(ctx context.Context, experimentID string, results []*ProblemRecord) error
}

// ExperimentReader defines read access to experiment data.
type ExperimentReader interface {
	GetExperiment(ctx context.Context, id string) (*ExperimentRecord, error)
	ListExperiments(ctx context.Context, filter ExperimentFilter) ([]*ExperimentRecord, error)
	GetProblemResults(ctx context.Context, experimentID string) ([]*ProblemRecord, error)
}

// Analytics defines query helpers for historical comparisons.
type Analytics interface {
	GetModelHistory(ctx context.Context, model string, limit int) ([]*ExperimentRecord, error)
	GetConditionComparison(ctx context.Context, model, mode string, threshold float64) (*ConditionComparison, error)
}

// Store defines persistence for experiments and problem results.
type Store interface {
	ExperimentWriter
	ExperimentReader
	Analytics
	Close() error
}

// ExperimentRecord stores a single experiment summary.
type ExperimentRecord struct {
	ID             string
	Model          string
	Condition      string
	Mode           string
	Threshold      float64
	StartedAt      time.Time
	FinishedAt     time.Time
	TotalProblems  int
	CorrectCount   int
	AvgAttempts    float64
	TranscriptPath string
	Config         map[string]any // Serialized run options
}

// Accuracy is the fraction of problems answered correctly.
func (e *ExperimentRecord) Accuracy() float64 {
	if e == nil || e.TotalProblems == 0 {
		return 0
	}
	return float64(e.CorrectCount) / float64(e.TotalProblems)
}

// ProblemRecord stores the outcome for one problem in an experiment.
type ProblemRecord struct {
	ID               string
	ExperimentID     string
	ProblemID        string
	Level            int
	ProblemType      string
	GroundTruth      string
	PredictedAnswer  string
	IsCorrect        bool
	ComparisonMethod string
	Attempts         int
	ElapsedSeconds   float64
	SystemPrompt     string
	UserPrompt       string
	Response         string
	OpenMathSymbols  []string // JSON serialized
}

// ExperimentFilter filters experiment listings.
type ExperimentFilter struct {
	Model     string
	Condition string
	Mode      string
	Since     time.Time
	Until     time.Time
	Limit     int
}

// ConditionComparison pairs the latest baseline and openmath
// experiments for a model/mode/threshold and lists the problems whose
// outcome changed.
type ConditionComparison struct {
	Model           string
	Mode            string
	Threshold       float64
	BaselineID      string
	OpenMathID      string
	BaselineResults []*ProblemRecord
	OpenMathResults []*ProblemRecord
	Regressions     []string // Problem IDs correct at baseline, wrong with openmath
	Improvements    []string // Problem IDs wrong at baseline, correct with openmath
}
