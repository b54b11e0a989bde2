package benchmark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

const defaultMATHPath = "data/benchmark/math.jsonl"

// ProblemTypes lists the seven MATH subject areas.
var ProblemTypes = []string{
	"algebra",
	"counting_and_probability",
	"geometry",
	"intermediate_algebra",
	"number_theory",
	"prealgebra",
	"precalculus",
}

type mathRow struct {
	ID           string          `json:"id,omitempty"`
	Problem      string          `json:"problem"`
	Solution     string          `json:"solution,omitempty"`
	Answer       string          `json:"answer,omitempty"`
	Level        json.RawMessage `json:"level,omitempty"`
	Type         string          `json:"type,omitempty"`
	Subject      string          `json:"subject,omitempty"`
	SourceDomain string          `json:"source_domain,omitempty"`
}

// LoadMATH reads MATH benchmark problems from a jsonl file. The path may be
// overridden with OPENMATH_EVAL_MATH_PATH; when the file is missing a small
// built-in sample is returned.
func LoadMATH(ctx context.Context, path string) (*Dataset, error) {
	if ctx == nil {
		return nil, errors.New("benchmark: nil context")
	}

	if env := strings.TrimSpace(os.Getenv("OPENMATH_EVAL_MATH_PATH")); env != "" {
		path = env
	}
	if strings.TrimSpace(path) == "" {
		path = defaultMATHPath
	}

	rows, err := readJSONL[mathRow](ctx, path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Dataset{Problems: defaultMATHSample()}, nil
		}
		return nil, fmt.Errorf("benchmark: load %q: %w", path, err)
	}

	out := make([]Problem, 0, len(rows))
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text := strings.TrimSpace(row.Problem)
		if text == "" {
			continue
		}

		id := strings.TrimSpace(row.ID)
		if id == "" {
			id = problemID(i)
		}

		answer := strings.TrimSpace(row.Answer)
		if answer == "" {
			answer = lastBoxed(row.Solution)
		}

		out = append(out, Problem{
			ID:       id,
			Problem:  text,
			Solution: strings.TrimSpace(row.Solution),
			Answer:   answer,
			Level:    parseLevel(row.Level),
			Type:     normalizeType(firstNonEmpty(row.Type, row.Subject, row.SourceDomain)),
		})
	}

	if len(out) == 0 {
		return &Dataset{Problems: defaultMATHSample()}, nil
	}
	return &Dataset{Problems: out}, nil
}

// parseLevel accepts either a bare number or a "Level N" string.
func parseLevel(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}

	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0
	}
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "Level")
	s = strings.TrimSpace(s)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func normalizeType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	return strings.ReplaceAll(t, " ", "_")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

var boxedRe = regexp.MustCompile(`\\boxed\{([^{}]*(?:\{[^{}]*\}[^{}]*)*)\}`)

func lastBoxed(s string) string {
	matches := boxedRe.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return ""
	}
	return strings.TrimSpace(matches[len(matches)-1][1])
}

func defaultMATHSample() []Problem {
	return []Problem{
		{
			ID:      "math_00000",
			Problem: "What is $1+2+3+\\cdots+10$?",
			Answer:  "55",
			Level:   1,
			Type:    "algebra",
		},
		{
			ID:      "math_00001",
			Problem: "Compute $\\gcd(12, 18)$.",
			Answer:  "6",
			Level:   1,
			Type:    "number_theory",
		},
		{
			ID:      "math_00002",
			Problem: "A fair coin is flipped twice. What is the probability of two heads? Express your answer as a common fraction.",
			Answer:  "\\frac{1}{4}",
			Level:   2,
			Type:    "counting_and_probability",
		},
	}
}
