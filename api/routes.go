package api

import (
	"errors"
	"os"
	"strings"
)

func (s *Server) registerRoutes() error {
	if s == nil || s.router == nil {
		return nil
	}

	s.router.GET("/healthz", s.handleHealth)

	api := s.router.Group("/api/v1")
	apiKey := strings.TrimSpace(os.Getenv("OPENMATH_EVAL_API_KEY"))
	if apiKey != "" {
		api.Use(apiKeyAuthMiddleware(apiKey))
	} else if strings.EqualFold(strings.TrimSpace(os.Getenv("OPENMATH_EVAL_DISABLE_AUTH")), "true") {
		// Explicitly allow unauthenticated access.
	} else {
		return errors.New("api: missing auth configuration: set OPENMATH_EVAL_API_KEY or set OPENMATH_EVAL_DISABLE_AUTH=true")
	}

	api.GET("/experiments", s.handleListExperiments)
	api.GET("/experiments/:id", s.handleGetExperiment)
	api.GET("/experiments/:id/results", s.handleGetExperimentResults)
	api.GET("/experiments/:id/summary", s.handleGetExperimentSummary)

	api.GET("/models/:model/history", s.handleGetModelHistory)
	api.GET("/compare", s.handleCompareConditions)

	return nil
}
