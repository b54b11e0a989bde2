package api

import (
	"context"

	"github.com/stellarlinkco/openmath-eval/internal/store"
)

type fakeStore struct {
	SaveExperimentFunc         func(ctx context.Context, exp *store.ExperimentRecord) error
	SaveProblemResultsFunc     func(ctx context.Context, experimentID string, results []*store.ProblemRecord) error
	GetExperimentFunc          func(ctx context.Context, id string) (*store.ExperimentRecord, error)
	ListExperimentsFunc        func(ctx context.Context, filter store.ExperimentFilter) ([]*store.ExperimentRecord, error)
	GetProblemResultsFunc      func(ctx context.Context, experimentID string) ([]*store.ProblemRecord, error)
	GetModelHistoryFunc        func(ctx context.Context, model string, limit int) ([]*store.ExperimentRecord, error)
	GetConditionComparisonFunc func(ctx context.Context, model, mode string, threshold float64) (*store.ConditionComparison, error)
	CloseFunc                  func() error
}

func (s *fakeStore) SaveExperiment(ctx context.Context, exp *store.ExperimentRecord) error {
	if s.SaveExperimentFunc != nil {
		return s.SaveExperimentFunc(ctx, exp)
	}
	return nil
}

func (s *fakeStore) SaveProblemResults(ctx context.Context, experimentID string, results []*store.ProblemRecord) error {
	if s.SaveProblemResultsFunc != nil {
		return s.SaveProblemResultsFunc(ctx, experimentID, results)
	}
	return nil
}

func (s *fakeStore) GetExperiment(ctx context.Context, id string) (*store.ExperimentRecord, error) {
	if s.GetExperimentFunc != nil {
		return s.GetExperimentFunc(ctx, id)
	}
	return nil, nil
}

func (s *fakeStore) ListExperiments(ctx context.Context, filter store.ExperimentFilter) ([]*store.ExperimentRecord, error) {
	if s.ListExperimentsFunc != nil {
		return s.ListExperimentsFunc(ctx, filter)
	}
	return nil, nil
}

func (s *fakeStore) GetProblemResults(ctx context.Context, experimentID string) ([]*store.ProblemRecord, error) {
	if s.GetProblemResultsFunc != nil {
		return s.GetProblemResultsFunc(ctx, experimentID)
	}
	return nil, nil
}

func (s *fakeStore) GetModelHistory(ctx context.Context, model string, limit int) ([]*store.ExperimentRecord, error) {
	if s.GetModelHistoryFunc != nil {
		return s.GetModelHistoryFunc(ctx, model, limit)
	}
	return nil, nil
}

func (s *fakeStore) GetConditionComparison(ctx context.Context, model, mode string, threshold float64) (*store.ConditionComparison, error) {
	if s.GetConditionComparisonFunc != nil {
		return s.GetConditionComparisonFunc(ctx, model, mode, threshold)
	}
	return nil, nil
}

func (s *fakeStore) Close() error {
	if s.CloseFunc != nil {
		return s.CloseFunc()
	}
	return nil
}
