package retrieval

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/stellarlinkco/openmath-eval/internal/openmath"
)

// Okapi BM25 constants, plus the epsilon floor applied to negative IDF
// values (as a fraction of the average IDF).
const (
	bm25K1      = 1.5
	bm25B       = 0.75
	bm25Epsilon = 0.25
)

// Metadata CDs that pollute search results.
var nonMathematicalCDs = newSet(
	"meta", "metagrp", "metasig", "error", "scscp1", "scscp2",
	"altenc", "mathmlattr", "sts", "mathmltypes",
)

// Index-side and query-side stop words for BM25 tokenization. Without
// filtering, words like "find" and "value" match noisy index entries and
// dilute relevance scores.
var bm25StopWords = newSet(
	"find", "calculate", "compute", "solve", "determine", "evaluate",
	"what", "which", "how", "many", "much", "value", "answer",
	"the", "a", "an", "of", "to", "in", "for", "is", "are", "on",
	"that", "by", "this", "with", "and", "or", "if", "then",
	"given", "let", "show", "prove", "express", "simplify",
	"it", "its", "be", "been", "being", "has", "have", "had",
	"do", "does", "did", "will", "would", "could", "should",
	"can", "may", "might", "must", "shall",
	"all", "each", "every", "some", "any", "no", "not",
	"number", "numbers", "total", "result",
)

// Curated phrase-to-symbol-name synonyms for query expansion. Kept
// hand-picked for precision rather than derived from the index.
var bm25Synonyms = map[string]string{
	"greatest common divisor": "gcd",
	"highest common factor":   "gcd",
	"hcf":                     "gcd",
	"least common multiple":   "lcm",
	"lowest common multiple":  "lcm",
	"absolute value":          "abs",
	"modulo":                  "remainder",
	"mod":                     "remainder",
	"sine":                    "sin",
	"cosine":                  "cos",
	"tangent":                 "tan",
	"cotangent":               "cot",
	"secant":                  "sec",
	"cosecant":                "csc",
	"inverse sine":            "arcsin",
	"inverse cosine":          "arccos",
	"inverse tangent":         "arctan",
	"logarithm":               "log",
	"natural logarithm":       "ln",
	"natural log":             "ln",
	"exponential":             "exp",
	"e^x":                     "exp",
	"e to the":                "exp",
	"binomial coefficient":    "binomial",
	"combination":             "binomial",
	"choose":                  "binomial",
	"ncr":                     "binomial",
	"n choose k":              "binomial",
	"permutation":             "permutation",
	"factorial":               "factorial",
	"n!":                      "factorial",
	"circumference":           "circle",
	"diameter":                "circle",
	"perimeter":               "plus",
	"pi":                      "pi",
	"euler":                   "e",
	"infinity":                "infinity",
	"equals":                  "eq",
	"equal to":                "eq",
	"less than":               "lt",
	"greater than":            "gt",
	"less than or equal":      "leq",
	"greater than or equal":   "geq",
	"not equal":               "neq",
	"derivative":              "diff",
	"differentiate":           "diff",
	"integral":                "int",
	"integrate":               "int",
	"definite integral":       "defint",
	"square root":             "root",
	"sqrt":                    "root",
	"cube root":               "root",
	"power":                   "power",
	"exponent":                "power",
	"raised to":               "power",
}

var bm25PunctRe = regexp.MustCompile(`[^\w\s]`)

// BM25Result is a lexical retrieval ranking.
type BM25Result struct {
	Query     string
	SymbolIDs []string
	Scores    map[string]float64
}

// TopK returns up to k (id, score) pairs in descending score order.
func (r BM25Result) TopK(k int) []ScoredID {
	pairs := make([]ScoredID, 0, len(r.Scores))
	for id, score := range r.Scores {
		pairs = append(pairs, ScoredID{ID: id, Score: score})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Score != pairs[j].Score {
			return pairs[i].Score > pairs[j].Score
		}
		return pairs[i].ID < pairs[j].ID
	})
	if len(pairs) > k {
		pairs = pairs[:k]
	}
	return pairs
}

// ScoredID pairs a symbol ID with a retrieval score.
type ScoredID struct {
	ID    string
	Score float64
}

// BM25Retriever ranks knowledge-base symbols lexically against a query.
// The index is built over each symbol's description card (name,
// description, CMP properties, examples) with metadata CDs excluded.
type BM25Retriever struct {
	symbols   []openmath.Symbol
	symbolIDs []string
	nameIndex map[string][]string

	freqs  []map[string]int
	docLen []int
	avgdl  float64
	idf    map[string]float64
}

// NewBM25Retriever builds the BM25 index from a knowledge base.
func NewBM25Retriever(kb *openmath.KnowledgeBase) *BM25Retriever {
	r := &BM25Retriever{nameIndex: map[string][]string{}, idf: map[string]float64{}}
	if kb == nil {
		return r
	}

	for _, id := range kb.SortedSymbolIDs() {
		sym := kb.Symbols[id]
		if _, skip := nonMathematicalCDs[sym.CD]; skip {
			continue
		}
		r.symbols = append(r.symbols, sym)
		r.symbolIDs = append(r.symbolIDs, id)

		name := strings.ToLower(sym.Name)
		r.nameIndex[name] = append(r.nameIndex[name], id)
	}

	r.buildIndex()
	return r
}

// Symbols returns the indexed symbols in ID order.
func (r *BM25Retriever) Symbols() []openmath.Symbol { return r.symbols }

// SymbolIDs returns the indexed symbol IDs in order.
func (r *BM25Retriever) SymbolIDs() []string { return r.symbolIDs }

func (r *BM25Retriever) buildIndex() {
	if len(r.symbols) == 0 {
		return
	}

	df := map[string]int{}
	totalLen := 0
	for _, sym := range r.symbols {
		tokens := bm25Tokenize(descriptionCard(sym))
		freq := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			freq[tok]++
		}
		r.freqs = append(r.freqs, freq)
		r.docLen = append(r.docLen, len(tokens))
		totalLen += len(tokens)
		for tok := range freq {
			df[tok]++
		}
	}
	r.avgdl = float64(totalLen) / float64(len(r.symbols))

	// Okapi IDF can go negative for very common terms; floor those at a
	// fraction of the average IDF.
	n := float64(len(r.symbols))
	var idfSum float64
	var negative []string
	for tok, d := range df {
		idf := math.Log(n-float64(d)+0.5) - math.Log(float64(d)+0.5)
		r.idf[tok] = idf
		idfSum += idf
		if idf < 0 {
			negative = append(negative, tok)
		}
	}
	avgIDF := idfSum / float64(len(r.idf))
	for _, tok := range negative {
		r.idf[tok] = bm25Epsilon * avgIDF
	}
}

func descriptionCard(sym openmath.Symbol) string {
	parts := []string{sym.Name}
	if sym.Description != "" {
		parts = append(parts, sym.Description)
	}
	parts = append(parts, sym.CMPProperties...)
	parts = append(parts, sym.Examples...)
	return strings.Join(parts, " ")
}

func bm25Tokenize(text string) []string {
	text = bm25PunctRe.ReplaceAllString(text, " ")
	var out []string
	for _, tok := range strings.Fields(text) {
		tok = strings.ToLower(tok)
		if _, stop := bm25StopWords[tok]; stop {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// expandQuery appends curated synonyms and exact symbol-name matches so
// phrases like "greatest common divisor" reach the gcd entries.
func (r *BM25Retriever) expandQuery(query string) string {
	lower := strings.ToLower(query)
	tokens := newSet(tokenize(lower)...)

	expanded := map[string]struct{}{}
	for phrase, name := range bm25Synonyms {
		if strings.Contains(lower, phrase) {
			expanded[name] = struct{}{}
		}
	}
	for name := range r.nameIndex {
		if _, ok := tokens[name]; ok {
			expanded[name] = struct{}{}
		}
	}
	if len(expanded) == 0 {
		return query
	}

	terms := make([]string, 0, len(expanded))
	for term := range expanded {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return query + " " + strings.Join(terms, " ")
}

// AllScores returns the BM25 score of every indexed symbol for the query,
// aligned with SymbolIDs.
func (r *BM25Retriever) AllScores(query string, expand bool) []float64 {
	scores := make([]float64, len(r.symbols))
	if len(r.symbols) == 0 {
		return scores
	}
	if expand {
		query = r.expandQuery(query)
	}

	for _, tok := range bm25Tokenize(query) {
		idf, ok := r.idf[tok]
		if !ok {
			continue
		}
		for i, freq := range r.freqs {
			f := float64(freq[tok])
			if f == 0 {
				continue
			}
			norm := 1 - bm25B + bm25B*float64(r.docLen[i])/r.avgdl
			scores[i] += idf * f * (bm25K1 + 1) / (f + bm25K1*norm)
		}
	}
	return scores
}

// Retrieve returns the top-k positively scored symbols for a query.
func (r *BM25Retriever) Retrieve(query string, topK int, expand bool) BM25Result {
	result := BM25Result{Query: query, Scores: map[string]float64{}}
	if len(r.symbols) == 0 {
		return result
	}
	if topK <= 0 {
		topK = 50
	}

	scores := r.AllScores(query, expand)
	for _, idx := range argsortDesc(scores) {
		if len(result.SymbolIDs) >= topK {
			break
		}
		if scores[idx] <= 0 {
			continue
		}
		id := r.symbolIDs[idx]
		result.SymbolIDs = append(result.SymbolIDs, id)
		result.Scores[id] = scores[idx]
	}
	return result
}

// argsortDesc returns indices ordering values from high to low, with the
// original index breaking ties for determinism.
func argsortDesc(values []float64) []int {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return values[idx[a]] > values[idx[b]]
	})
	return idx
}
