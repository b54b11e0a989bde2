package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewOllamaProvider_Defaults(t *testing.T) {
	p := NewOllamaProvider("", "")
	if p.baseURL != defaultOllamaBaseURL {
		t.Fatalf("baseURL: got %q", p.baseURL)
	}
	if p.model == "" {
		t.Fatalf("model: empty")
	}
	if p.retryMax != defaultOllamaRetry {
		t.Fatalf("retryMax: got %d", p.retryMax)
	}
}

func TestNewOllamaProvider_StripsV1Suffix(t *testing.T) {
	p := NewOllamaProvider("http://host:11434/v1/", "m")
	if p.baseURL != "http://host:11434" {
		t.Fatalf("baseURL: got %q", p.baseURL)
	}
}

func TestOllamaComplete_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path: got %s", r.URL.Path)
		}
		var req ollamaChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Stream {
			t.Errorf("stream: expected false")
		}
		if req.Model != "test-model" {
			t.Errorf("model: got %q", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("messages: got %+v", req.Messages)
		}
		if req.Options["num_ctx"] != float64(ollamaContextWindow) {
			t.Errorf("num_ctx: got %v", req.Options["num_ctx"])
		}
		if req.Options["num_predict"] != float64(256) {
			t.Errorf("num_predict: got %v", req.Options["num_predict"])
		}
		_, _ = w.Write([]byte(`{
			"message": {"role": "assistant", "content": "\\boxed{7}"},
			"done": true,
			"done_reason": "stop",
			"eval_count": 12,
			"prompt_eval_count": 34
		}`))
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "test-model")
	resp, err := p.Complete(context.Background(), &Request{
		System:      "You are a mathematician.",
		Messages:    []Message{{Role: "user", Content: "3+4?"}},
		MaxTokens:   256,
		Temperature: 0,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got := Text(resp); got != "\\boxed{7}" {
		t.Fatalf("text: got %q", got)
	}
	if resp.Usage.InputTokens != 34 || resp.Usage.OutputTokens != 12 {
		t.Fatalf("usage: got %+v", resp.Usage)
	}
	if resp.StopReason != "stop" {
		t.Fatalf("stop reason: got %q", resp.StopReason)
	}
}

func TestOllamaComplete_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "model loading", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"message": {"role": "assistant", "content": "ok"}, "done": true}`))
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "m")
	p.retryBase = time.Millisecond

	resp, err := p.Complete(context.Background(), &Request{Messages: []Message{{Role: "user", Content: "hi"}}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got := Text(resp); got != "ok" {
		t.Fatalf("text: got %q", got)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("calls: got %d want %d", got, 3)
	}
}

func TestOllamaComplete_ExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "m")
	p.retryBase = time.Millisecond

	_, err := p.Complete(context.Background(), &Request{Messages: []Message{{Role: "user", Content: "hi"}}})
	if err == nil {
		t.Fatalf("Complete: expected error")
	}
	if !strings.Contains(err.Error(), "status 500") {
		t.Fatalf("error: got %v", err)
	}
	if got := calls.Load(); got != int32(defaultOllamaRetry+1) {
		t.Fatalf("calls: got %d want %d", got, defaultOllamaRetry+1)
	}
}

func TestOllamaEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("path: got %s", r.URL.Path)
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Model != "embed-model" {
			t.Errorf("model: got %q", req.Model)
		}
		if len(req.Input) != 1 || req.Input[0] != "triangle area" {
			t.Errorf("input: got %+v", req.Input)
		}
		_, _ = w.Write([]byte(`{"embeddings": [[0.1, 0.2, 0.3]]}`))
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "m")
	vec, err := p.Embed(context.Background(), "embed-model", "triangle area")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 || vec[1] != 0.2 {
		t.Fatalf("vector: got %v", vec)
	}
}

func TestOllamaEmbed_SingularFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embedding": [1, 2]}`))
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "m")
	vec, err := p.Embed(context.Background(), "", "x")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 2 || vec[0] != 1 {
		t.Fatalf("vector: got %v", vec)
	}
}

func TestOllamaEmbed_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "m")
	_, err := p.Embed(context.Background(), "", "x")
	if err == nil || !strings.Contains(err.Error(), "empty embedding") {
		t.Fatalf("error: got %v", err)
	}
}
