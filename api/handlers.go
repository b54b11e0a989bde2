package api

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stellarlinkco/openmath-eval/internal/metrics"
	"github.com/stellarlinkco/openmath-eval/internal/store"
)

type experimentView struct {
	ID             string         `json:"id"`
	Model          string         `json:"model"`
	Condition      string         `json:"condition"`
	Mode           string         `json:"mode"`
	Threshold      float64        `json:"threshold"`
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     time.Time      `json:"finished_at"`
	TotalProblems  int            `json:"total_problems"`
	CorrectCount   int            `json:"correct_count"`
	Accuracy       float64        `json:"accuracy"`
	AvgAttempts    float64        `json:"avg_attempts"`
	TranscriptPath string         `json:"transcript_path,omitempty"`
	Config         map[string]any `json:"config,omitempty"`
}

type problemResultView struct {
	ProblemID        string   `json:"problem_id"`
	Level            int      `json:"level"`
	ProblemType      string   `json:"problem_type"`
	GroundTruth      string   `json:"ground_truth"`
	PredictedAnswer  string   `json:"predicted_answer"`
	IsCorrect        bool     `json:"is_correct"`
	ComparisonMethod string   `json:"comparison_method"`
	Attempts         int      `json:"attempts"`
	ElapsedSeconds   float64  `json:"elapsed_seconds"`
	OpenMathSymbols  []string `json:"openmath_symbols,omitempty"`
}

type summaryView struct {
	Experiment experimentView   `json:"experiment"`
	Accuracy   metrics.Accuracy `json:"accuracy"`
}

func experimentToView(exp *store.ExperimentRecord) experimentView {
	return experimentView{
		ID:             exp.ID,
		Model:          exp.Model,
		Condition:      exp.Condition,
		Mode:           exp.Mode,
		Threshold:      exp.Threshold,
		StartedAt:      exp.StartedAt,
		FinishedAt:     exp.FinishedAt,
		TotalProblems:  exp.TotalProblems,
		CorrectCount:   exp.CorrectCount,
		Accuracy:       exp.Accuracy(),
		AvgAttempts:    exp.AvgAttempts,
		TranscriptPath: exp.TranscriptPath,
		Config:         exp.Config,
	}
}

func problemToView(r *store.ProblemRecord) problemResultView {
	return problemResultView{
		ProblemID:        r.ProblemID,
		Level:            r.Level,
		ProblemType:      r.ProblemType,
		GroundTruth:      r.GroundTruth,
		PredictedAnswer:  r.PredictedAnswer,
		IsCorrect:        r.IsCorrect,
		ComparisonMethod: r.ComparisonMethod,
		Attempts:         r.Attempts,
		ElapsedSeconds:   r.ElapsedSeconds,
		OpenMathSymbols:  r.OpenMathSymbols,
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleListExperiments(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	limit, err := parseLimitParam(c.Query("limit"), 20)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	since, err := parseTimeParam(c.Query("since"))
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	until, err := parseTimeParam(c.Query("until"))
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	filter := store.ExperimentFilter{
		Model:     strings.TrimSpace(c.Query("model")),
		Condition: strings.TrimSpace(c.Query("condition")),
		Mode:      strings.TrimSpace(c.Query("mode")),
		Since:     since,
		Until:     until,
		Limit:     limit,
	}

	experiments, err := s.store.ListExperiments(c.Request.Context(), filter)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	views := make([]experimentView, 0, len(experiments))
	for _, exp := range experiments {
		views = append(views, experimentToView(exp))
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) handleGetExperiment(c *gin.Context) {
	exp, ok := s.lookupExperiment(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, experimentToView(exp))
}

func (s *Server) handleGetExperimentResults(c *gin.Context) {
	exp, ok := s.lookupExperiment(c)
	if !ok {
		return
	}

	results, err := s.store.GetProblemResults(c.Request.Context(), exp.ID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	views := make([]problemResultView, 0, len(results))
	for _, r := range results {
		views = append(views, problemToView(r))
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) handleGetExperimentSummary(c *gin.Context) {
	exp, ok := s.lookupExperiment(c)
	if !ok {
		return
	}

	results, err := s.store.GetProblemResults(c.Request.Context(), exp.ID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	outcomes := make([]metrics.Outcome, 0, len(results))
	for _, r := range results {
		outcomes = append(outcomes, metrics.Outcome{
			Condition:   exp.Condition,
			Level:       r.Level,
			ProblemType: r.ProblemType,
			IsCorrect:   r.IsCorrect,
		})
	}

	calc := metrics.NewCalculator(0)
	c.JSON(http.StatusOK, summaryView{
		Experiment: experimentToView(exp),
		Accuracy:   calc.ComputeAccuracy(outcomes),
	})
}

func (s *Server) handleGetModelHistory(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	model := strings.TrimSpace(c.Param("model"))
	if model == "" {
		respondError(c, http.StatusBadRequest, errors.New("missing model"))
		return
	}

	limit, err := parseLimitParam(c.Query("limit"), 20)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	history, err := s.store.GetModelHistory(c.Request.Context(), model, limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	views := make([]experimentView, 0, len(history))
	for _, exp := range history {
		views = append(views, experimentToView(exp))
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) handleCompareConditions(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	model := strings.TrimSpace(c.Query("model"))
	mode := strings.TrimSpace(c.Query("mode"))
	if model == "" || mode == "" {
		respondError(c, http.StatusBadRequest, errors.New("missing model or mode"))
		return
	}

	threshold := 0.0
	if raw := strings.TrimSpace(c.Query("threshold")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			respondError(c, http.StatusBadRequest, fmt.Errorf("invalid threshold %q", raw))
			return
		}
		threshold = v
	}

	cmp, err := s.store.GetConditionComparison(c.Request.Context(), model, mode, threshold)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(c, http.StatusNotFound, err)
			return
		}
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"model":        cmp.Model,
		"mode":         cmp.Mode,
		"threshold":    cmp.Threshold,
		"baseline_id":  cmp.BaselineID,
		"openmath_id":  cmp.OpenMathID,
		"regressions":  cmp.Regressions,
		"improvements": cmp.Improvements,
	})
}

func (s *Server) lookupExperiment(c *gin.Context) (*store.ExperimentRecord, bool) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return nil, false
	}

	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		respondError(c, http.StatusBadRequest, errors.New("missing experiment id"))
		return nil, false
	}

	exp, err := s.store.GetExperiment(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(c, http.StatusNotFound, fmt.Errorf("experiment %q not found", id))
			return nil, false
		}
		respondError(c, http.StatusInternalServerError, err)
		return nil, false
	}
	return exp, true
}

func parseLimitParam(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	if v <= 0 {
		return 0, fmt.Errorf("limit must be > 0")
	}
	return v, nil
}

func parseTimeParam(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	layouts := []string{time.RFC3339, "2006-01-02"}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q (expected RFC3339 or YYYY-MM-DD)", raw)
}

func respondError(c *gin.Context, status int, err error) {
	if err == nil {
		c.Status(status)
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
