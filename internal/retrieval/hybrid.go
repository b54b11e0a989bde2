package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/stellarlinkco/openmath-eval/internal/llm"
	"github.com/stellarlinkco/openmath-eval/internal/openmath"
)

const (
	// DefaultEmbeddingModel balances quality and cost for math text.
	DefaultEmbeddingModel = "qwen3-embedding:4b"

	defaultRRFK      = 60
	defaultHybridTop = 50
)

// HybridOptions tunes a hybrid retrieval call. Zero values select the
// defaults: top 50, equal BM25/dense weights, query expansion on.
type HybridOptions struct {
	TopK         int
	BM25Weight   float64
	DenseWeight  float64
	MinRRFScore  float64
	RequireSymPy bool
	NoExpand     bool
}

// HybridResult is the fused ranking with per-retriever debug scores.
type HybridResult struct {
	Query       string
	Symbols     []openmath.Symbol
	SymbolIDs   []string
	Scores      map[string]float64
	BM25Scores  map[string]float64
	DenseScores map[string]float64
}

// HybridRetriever fuses BM25 lexical scores with dense embedding
// similarity through reciprocal rank fusion. BM25 catches exact terms
// like "gcd"; embeddings catch paraphrases like "find the remainder".
type HybridRetriever struct {
	bm25       *BM25Retriever
	embedder   llm.Embedder
	model      string
	rrfK       int
	embeddings [][]float64
}

// NewHybridRetriever builds a hybrid retriever. Symbol embeddings are not
// computed until EnsureEmbeddings or LoadEmbeddings runs.
func NewHybridRetriever(kb *openmath.KnowledgeBase, embedder llm.Embedder, model string) (*HybridRetriever, error) {
	if kb == nil {
		return nil, errors.New("retrieval: nil knowledge base")
	}
	if embedder == nil {
		return nil, errors.New("retrieval: nil embedder")
	}
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &HybridRetriever{
		bm25:     NewBM25Retriever(kb),
		embedder: embedder,
		model:    model,
		rrfK:     defaultRRFK,
	}, nil
}

// Model returns the embedding model in use.
func (h *HybridRetriever) Model() string { return h.model }

// EmbeddingsCachePath derives the model-specific cache file next to the
// knowledge base, e.g. data/openmath-embeddings_qwen3-embedding_4b.json.
func EmbeddingsCachePath(kbPath, model string) string {
	safe := strings.NewReplacer(":", "_", "/", "_").Replace(model)
	return filepath.Join(filepath.Dir(kbPath), fmt.Sprintf("openmath-embeddings_%s.json", safe))
}

type embeddingsCache struct {
	Model     string      `json:"model"`
	SymbolIDs []string    `json:"symbol_ids"`
	Vectors   [][]float64 `json:"vectors"`
}

// EnsureEmbeddings computes an embedding for every indexed symbol. The
// progress callback, when set, receives (done, total).
func (h *HybridRetriever) EnsureEmbeddings(ctx context.Context, progress func(done, total int)) error {
	if h.embeddings != nil {
		return nil
	}

	symbols := h.bm25.Symbols()
	vectors := make([][]float64, 0, len(symbols))
	for i, sym := range symbols {
		if err := ctx.Err(); err != nil {
			return err
		}

		vec, err := h.embedder.Embed(ctx, h.model, embeddingText(sym))
		if err != nil {
			return fmt.Errorf("retrieval: embed %s: %w", sym.ID, err)
		}
		vectors = append(vectors, vec)

		if progress != nil {
			progress(i+1, len(symbols))
		}
	}
	h.embeddings = vectors
	return nil
}

// LoadEmbeddings restores cached symbol embeddings. A cache whose model
// or symbol count mismatches the index is ignored.
func (h *HybridRetriever) LoadEmbeddings(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("retrieval: read embeddings cache: %w", err)
	}

	var cache embeddingsCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return fmt.Errorf("retrieval: parse embeddings cache %q: %w", path, err)
	}
	if cache.Model != h.model {
		return fmt.Errorf("retrieval: embeddings cache model %q, want %q", cache.Model, h.model)
	}
	if len(cache.Vectors) != len(h.bm25.Symbols()) {
		return fmt.Errorf("retrieval: embeddings cache has %d vectors, want %d",
			len(cache.Vectors), len(h.bm25.Symbols()))
	}
	h.embeddings = cache.Vectors
	return nil
}

// SaveEmbeddings writes the computed embeddings for reuse across runs.
func (h *HybridRetriever) SaveEmbeddings(path string) error {
	if h.embeddings == nil {
		return errors.New("retrieval: no embeddings to save")
	}

	data, err := json.Marshal(embeddingsCache{
		Model:     h.model,
		SymbolIDs: h.bm25.SymbolIDs(),
		Vectors:   h.embeddings,
	})
	if err != nil {
		return fmt.Errorf("retrieval: encode embeddings cache: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("retrieval: create %q: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("retrieval: write embeddings cache: %w", err)
	}
	return nil
}

// Retrieve runs hybrid retrieval for a query. EnsureEmbeddings or
// LoadEmbeddings must have succeeded first.
func (h *HybridRetriever) Retrieve(ctx context.Context, query string, opts HybridOptions) (HybridResult, error) {
	result := HybridResult{
		Query:       query,
		Scores:      map[string]float64{},
		BM25Scores:  map[string]float64{},
		DenseScores: map[string]float64{},
	}

	symbols := h.bm25.Symbols()
	if len(symbols) == 0 {
		return result, nil
	}
	if h.embeddings == nil {
		return result, errors.New("retrieval: embeddings not initialized")
	}

	clean := asymptoteRe.ReplaceAllString(query, " ")
	queryVec, err := h.embedder.Embed(ctx, h.model, clean)
	if err != nil {
		return result, fmt.Errorf("retrieval: embed query: %w", err)
	}
	return h.fuse(clean, queryVec, opts), nil
}

// RetrieveWithEmbedding runs hybrid retrieval with a pre-computed query
// embedding, avoiding a redundant embedding call in batch processing.
func (h *HybridRetriever) RetrieveWithEmbedding(query string, queryVec []float64, opts HybridOptions) (HybridResult, error) {
	if h.embeddings == nil {
		return HybridResult{Query: query}, errors.New("retrieval: embeddings not initialized")
	}
	clean := asymptoteRe.ReplaceAllString(query, " ")
	return h.fuse(clean, queryVec, opts), nil
}

func (h *HybridRetriever) fuse(query string, queryVec []float64, opts HybridOptions) HybridResult {
	result := HybridResult{
		Query:       query,
		Scores:      map[string]float64{},
		BM25Scores:  map[string]float64{},
		DenseScores: map[string]float64{},
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = defaultHybridTop
	}
	bm25Weight := opts.BM25Weight
	denseWeight := opts.DenseWeight
	if bm25Weight == 0 && denseWeight == 0 {
		bm25Weight, denseWeight = 0.5, 0.5
	}

	bm25Scores := h.bm25.AllScores(query, !opts.NoExpand)
	denseScores := make([]float64, len(h.embeddings))
	for i, vec := range h.embeddings {
		denseScores[i] = cosineSimilarity(queryVec, vec)
	}

	// RRF: each retriever contributes weight / (k + rank + 1).
	rrf := make([]float64, len(bm25Scores))
	for rank, idx := range argsortDesc(bm25Scores) {
		rrf[idx] += bm25Weight / float64(h.rrfK+rank+1)
	}
	for rank, idx := range argsortDesc(denseScores) {
		rrf[idx] += denseWeight / float64(h.rrfK+rank+1)
	}

	symbols := h.bm25.Symbols()
	seen := map[string]struct{}{}
	for _, idx := range argsortDesc(rrf) {
		if len(result.Symbols) >= topK {
			break
		}
		if rrf[idx] < opts.MinRRFScore {
			continue
		}

		sym := symbols[idx]
		if opts.RequireSymPy && sym.SymPyFunction == "" {
			continue
		}
		if _, dup := seen[sym.ID]; dup {
			continue
		}
		seen[sym.ID] = struct{}{}

		result.Symbols = append(result.Symbols, sym)
		result.SymbolIDs = append(result.SymbolIDs, sym.ID)
		result.Scores[sym.ID] = rrf[idx]
		result.BM25Scores[sym.ID] = bm25Scores[idx]
		result.DenseScores[sym.ID] = denseScores[idx]
	}
	return result
}

// RetrieveBatch retrieves symbols for many problems keyed by problem ID.
// Each query is the problem's concept terms joined by spaces.
func (h *HybridRetriever) RetrieveBatch(ctx context.Context, conceptsByProblem map[string][]string, opts HybridOptions, progress func(done, total int)) (map[string]HybridResult, error) {
	ids := make([]string, 0, len(conceptsByProblem))
	for id := range conceptsByProblem {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make(map[string]HybridResult, len(ids))
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		query := strings.Join(conceptsByProblem[id], " ")
		result, err := h.Retrieve(ctx, query, opts)
		if err != nil {
			return out, fmt.Errorf("retrieval: problem %s: %w", id, err)
		}
		out[id] = result

		if progress != nil {
			progress(i+1, len(ids))
		}
	}
	return out, nil
}

// embeddingText is the definition text embedded per symbol. Symbol IDs
// are left out; they pollute semantic similarity.
func embeddingText(sym openmath.Symbol) string {
	var parts []string
	if sym.Description != "" {
		parts = append(parts, sym.Description)
	}
	parts = append(parts, sym.CMPProperties...)
	parts = append(parts, sym.Examples...)
	if len(parts) == 0 {
		return sym.Name
	}
	return strings.Join(parts, " ")
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	return dot / ((math.Sqrt(normA) + 1e-10) * (math.Sqrt(normB) + 1e-10))
}
