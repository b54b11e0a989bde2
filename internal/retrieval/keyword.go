package retrieval

import (
	"errors"
	"sort"
	"strings"

	"github.com/stellarlinkco/openmath-eval/internal/openmath"
)

const (
	defaultMaxSymbols   = 10
	defaultMinScore     = 1
	defaultRequireSymPy = true
)

// CDs probed when resolving a synonym target to a bare symbol name.
var synonymProbeCDs = []string{
	"arith1", "relation1", "transc1", "logic1",
	"set1", "integer1", "calculus1", "nums1",
}

// KeywordOptions tunes a keyword retrieval call. Zero values select the
// defaults (10 symbols, minimum score 1, SymPy mappings required).
type KeywordOptions struct {
	MaxSymbols int
	MinScore   int
	// RequireSymPy nil means the default (true).
	RequireSymPy *bool
}

// KeywordResult holds the symbols matched for a term list, ranked by the
// number of matching terms.
type KeywordResult struct {
	QueryTerms []string
	Symbols    []openmath.Symbol
	SymbolIDs  []string
	Scores     map[string]int
}

// KeywordRetriever matches extracted terms against the keyword index.
type KeywordRetriever struct {
	kb  *openmath.KnowledgeBase
	idx *Index
}

// NewKeywordRetriever builds a retriever over a knowledge base and index.
func NewKeywordRetriever(kb *openmath.KnowledgeBase, idx *Index) (*KeywordRetriever, error) {
	if kb == nil {
		return nil, errors.New("retrieval: nil knowledge base")
	}
	if idx == nil {
		return nil, errors.New("retrieval: nil index")
	}
	return &KeywordRetriever{kb: kb, idx: idx}, nil
}

// Retrieve ranks symbols by how many query terms match them. Ties break
// alphabetically by symbol ID.
func (r *KeywordRetriever) Retrieve(terms []string, opts KeywordOptions) KeywordResult {
	maxSymbols := opts.MaxSymbols
	if maxSymbols <= 0 {
		maxSymbols = defaultMaxSymbols
	}
	minScore := opts.MinScore
	if minScore <= 0 {
		minScore = defaultMinScore
	}
	requireSymPy := defaultRequireSymPy
	if opts.RequireSymPy != nil {
		requireSymPy = *opts.RequireSymPy
	}

	result := KeywordResult{QueryTerms: terms, Scores: map[string]int{}}

	matches := map[string]int{}
	for _, term := range terms {
		for _, id := range r.resolveTerm(strings.ToLower(term)) {
			if requireSymPy && r.kb.Symbols[id].SymPyFunction == "" {
				continue
			}
			matches[id]++
		}
	}

	type scored struct {
		id    string
		score int
	}
	ranked := make([]scored, 0, len(matches))
	for id, score := range matches {
		if score >= minScore {
			ranked = append(ranked, scored{id, score})
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].id < ranked[j].id
	})
	if len(ranked) > maxSymbols {
		ranked = ranked[:maxSymbols]
	}

	for _, s := range ranked {
		sym, ok := r.kb.Symbols[s.id]
		if !ok {
			continue
		}
		result.Symbols = append(result.Symbols, sym)
		result.SymbolIDs = append(result.SymbolIDs, s.id)
		result.Scores[s.id] = s.score
	}
	return result
}

// resolveTerm maps a term to symbol IDs through the index, operator
// aliases, and synonym expansion.
func (r *KeywordRetriever) resolveTerm(term string) []string {
	var matched []string

	matched = append(matched, r.idx.Index[term]...)
	matched = append(matched, r.idx.Aliases[term]...)

	if targets, ok := r.idx.Synonyms[term]; ok {
		for _, target := range targets {
			matched = append(matched, r.idx.Index[target]...)
			for _, cd := range synonymProbeCDs {
				id := openmath.SymbolID(cd, target)
				if _, exists := r.kb.Symbols[id]; exists {
					matched = append(matched, id)
				}
			}
		}
	}

	return dedupe(matched)
}

// Symbol returns a symbol by ID.
func (r *KeywordRetriever) Symbol(id string) (openmath.Symbol, bool) {
	sym, ok := r.kb.Symbols[id]
	return sym, ok
}

// SymbolsForCD returns every symbol belonging to a Content Dictionary,
// sorted by ID.
func (r *KeywordRetriever) SymbolsForCD(cd string) []openmath.Symbol {
	var out []openmath.Symbol
	for _, id := range r.kb.SortedSymbolIDs() {
		if r.kb.Symbols[id].CD == cd {
			out = append(out, r.kb.Symbols[id])
		}
	}
	return out
}
