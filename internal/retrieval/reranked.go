package retrieval

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// RerankedSymbol is one symbol with its cross-encoder relevance score for
// a specific problem.
type RerankedSymbol struct {
	ID            string   `json:"id"`
	CD            string   `json:"cd"`
	Name          string   `json:"name"`
	Description   string   `json:"description_normalized"`
	CMPProperties []string `json:"cmp_properties_normalized"`
	Examples      []string `json:"examples_normalized"`
	SymPyFunction string   `json:"sympy_function,omitempty"`
	RerankerScore float64  `json:"reranker_score"`
}

// RerankedProblem is the reranked symbol list for one problem.
type RerankedProblem struct {
	ProblemID       string           `json:"problem_id"`
	RerankedSymbols []RerankedSymbol `json:"reranked_symbols"`
}

// RerankedData maps problem IDs to their reranked symbols, as stored in
// openmath-reranked.json.
type RerankedData map[string]RerankedProblem

// LoadReranked reads a reranked symbols file.
func LoadReranked(path string) (RerankedData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("retrieval: read reranked data: %w", err)
	}

	var data RerankedData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("retrieval: parse reranked data %q: %w", path, err)
	}
	return data, nil
}

// FilterByThreshold keeps, per problem, only symbols whose reranker score
// meets the threshold, and drops problems left with no symbols. This runs
// before inference so every condition sees the same problem set.
func (d RerankedData) FilterByThreshold(threshold float64) RerankedData {
	out := make(RerankedData, len(d))
	for id, problem := range d {
		var kept []RerankedSymbol
		for _, sym := range problem.RerankedSymbols {
			if sym.RerankerScore >= threshold {
				kept = append(kept, sym)
			}
		}
		if len(kept) == 0 {
			continue
		}
		out[id] = RerankedProblem{ProblemID: problem.ProblemID, RerankedSymbols: kept}
	}
	return out
}

// ProblemIDs returns the problem IDs present, sorted.
func (d RerankedData) ProblemIDs() []string {
	ids := make([]string, 0, len(d))
	for id := range d {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// MaxScores returns each problem's highest reranker score; problems with
// no symbols report zero.
func (d RerankedData) MaxScores() map[string]float64 {
	out := make(map[string]float64, len(d))
	for id, problem := range d {
		var max float64
		for _, sym := range problem.RerankedSymbols {
			if sym.RerankerScore > max {
				max = sym.RerankerScore
			}
		}
		out[id] = max
	}
	return out
}

// TopSymbols returns up to k reranked symbols for a problem, preserving
// stored order (already ranked by score).
func (d RerankedData) TopSymbols(problemID string, k int) []RerankedSymbol {
	problem, ok := d[problemID]
	if !ok {
		return nil
	}
	symbols := problem.RerankedSymbols
	if k > 0 && len(symbols) > k {
		symbols = symbols[:k]
	}
	return symbols
}
