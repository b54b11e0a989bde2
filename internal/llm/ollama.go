package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOllamaBaseURL = "http://localhost:11434"
	defaultOllamaRetry   = 3
	ollamaContextWindow  = 4096
	ollamaTimeout        = 180 * time.Second
)

// OllamaProvider talks to a local Ollama server over its native chat API.
type OllamaProvider struct {
	baseURL    string
	model      string
	httpClient *http.Client
	retryMax   int
	retryBase  time.Duration
}

func NewOllamaProvider(baseURL string, model string) *OllamaProvider {
	base := strings.TrimSpace(baseURL)
	if base == "" {
		base = defaultOllamaBaseURL
	}
	base = strings.TrimRight(base, "/")
	// OpenAI-compatible URLs point at /v1; the native API lives at the root.
	base = strings.TrimSuffix(base, "/v1")

	m := strings.TrimSpace(model)
	if m == "" {
		m = "qwen2.5-math:7b"
	}

	return &OllamaProvider{
		baseURL:    base,
		model:      m,
		httpClient: &http.Client{Timeout: ollamaTimeout},
		retryMax:   defaultOllamaRetry,
		retryBase:  time.Second,
	}
}

func (p *OllamaProvider) Name() string {
	return "ollama"
}

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done            bool   `json:"done"`
	DoneReason      string `json:"done_reason"`
	EvalCount       int    `json:"eval_count"`
	PromptEvalCount int    `json:"prompt_eval_count"`
}

func (p *OllamaProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	if p == nil || p.httpClient == nil {
		return nil, errors.New("llm: ollama: nil client")
	}
	if ctx == nil {
		return nil, errors.New("llm: ollama: nil context")
	}
	if req == nil {
		return nil, errors.New("llm: ollama: nil request")
	}

	msgs := make([]Message, 0, len(req.Messages)+1)
	if system := strings.TrimSpace(req.System); system != "" {
		msgs = append(msgs, Message{Role: "system", Content: system})
	}
	for _, m := range req.Messages {
		role := strings.TrimSpace(m.Role)
		if role == "" {
			role = "user"
		}
		msgs = append(msgs, Message{Role: role, Content: m.Content})
	}

	options := map[string]any{
		"temperature": req.Temperature,
		"num_ctx":     ollamaContextWindow,
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}

	payload := ollamaChatRequest{
		Model:    p.model,
		Messages: msgs,
		Stream:   false,
		Options:  options,
	}

	var lastErr error
	for attempt := 0; attempt <= p.retryMax; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, p.backoff(attempt-1)); err != nil {
				return nil, err
			}
		}

		resp, err := p.chat(ctx, &payload)
		if err != nil {
			lastErr = err
			continue
		}
		return resp, nil
	}
	return nil, lastErr
}

func (p *OllamaProvider) chat(ctx context.Context, payload *ollamaChatRequest) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("llm: ollama: marshal request: %w", err)
	}

	url := p.baseURL + "/api/chat"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("llm: ollama: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llm: ollama: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		return nil, fmt.Errorf("llm: ollama: status %d: %s", httpResp.StatusCode, strings.TrimSpace(string(b)))
	}

	var decoded ollamaChatResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("llm: ollama: decode response: %w", err)
	}

	out := &Response{
		StopReason: decoded.DoneReason,
		Usage: Usage{
			InputTokens:  decoded.PromptEvalCount,
			OutputTokens: decoded.EvalCount,
		},
	}
	if decoded.Message.Content != "" {
		out.Content = append(out.Content, ContentBlock{
			Type: "text",
			Text: decoded.Message.Content,
		})
	}
	return out, nil
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
	Embedding  []float64   `json:"embedding"`
}

// Embed returns the embedding vector for a single input string.
func (p *OllamaProvider) Embed(ctx context.Context, model string, input string) ([]float64, error) {
	if p == nil || p.httpClient == nil {
		return nil, errors.New("llm: ollama: nil client")
	}
	if ctx == nil {
		return nil, errors.New("llm: ollama: nil context")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = p.model
	}

	body, err := json.Marshal(ollamaEmbedRequest{Model: model, Input: []string{input}})
	if err != nil {
		return nil, fmt.Errorf("llm: ollama: marshal embed request: %w", err)
	}

	url := p.baseURL + "/api/embed"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("llm: ollama: build embed request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llm: ollama: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		return nil, fmt.Errorf("llm: ollama: embed status %d: %s", httpResp.StatusCode, strings.TrimSpace(string(b)))
	}

	var decoded ollamaEmbedResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("llm: ollama: decode embed response: %w", err)
	}

	if len(decoded.Embeddings) > 0 {
		return decoded.Embeddings[0], nil
	}
	if len(decoded.Embedding) > 0 {
		return decoded.Embedding, nil
	}
	return nil, errors.New("llm: ollama: empty embedding")
}

func (p *OllamaProvider) backoff(attempt int) time.Duration {
	base := p.retryBase
	if base <= 0 {
		base = time.Second
	}
	if attempt < 0 {
		return 0
	}
	return base * time.Duration(1<<attempt)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
