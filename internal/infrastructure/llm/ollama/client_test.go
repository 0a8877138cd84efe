package ollama

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cmtemkin/needham-navigator-sub000/internal/infrastructure/resilience"
)

func newTestClient(baseURL string) *Client {
	exec := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    1,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return New(baseURL, "rewrite-model", "embed-model", exec)
}

func TestEmbedBatchesAllTexts(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2],[0.3,0.4]]}`))
	}))
	defer server.Close()

	embedder := NewEmbedder(newTestClient(server.URL))
	vectors, err := embedder.Embed(context.Background(), []string{"first chunk", "second chunk"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vectors))
	}
	input, _ := payload["input"].([]any)
	if len(input) != 2 {
		t.Fatalf("all texts should go in one request, got %v", payload["input"])
	}
	if payload["model"] != "embed-model" {
		t.Fatalf("wrong model: %v", payload["model"])
	}
}

func TestEmbedVectorCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2]]}`))
	}))
	defer server.Close()

	embedder := NewEmbedder(newTestClient(server.URL))
	if _, err := embedder.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("a vector count mismatch must be an error")
	}
}

func TestEmbedIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusNotFound)
	}))
	defer server.Close()

	embedder := NewEmbedder(newTestClient(server.URL))
	_, err := embedder.Embed(context.Background(), []string{"hello"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
}

func TestRewriteBuildsPromptAndSanitizesResponse(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"response":"Rewritten query: \"minimum front yard setback dimensional requirements\"\nextra line"}`))
	}))
	defer server.Close()

	rewriter := NewRewriter(newTestClient(server.URL))
	got, err := rewriter.Rewrite(context.Background(), "how far from the street does my shed need to be", "needham")
	if err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}
	if got != "minimum front yard setback dimensional requirements" {
		t.Fatalf("rewrite not sanitized: %q", got)
	}

	prompt, _ := payload["prompt"].(string)
	if !strings.Contains(prompt, "how far from the street") || !strings.Contains(prompt, "needham") {
		t.Fatalf("prompt missing query or tenant: %s", prompt)
	}
	if payload["stream"] != false {
		t.Fatalf("rewrite must not stream: %v", payload["stream"])
	}
}

func TestSanitizeRewrite(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`"accessory structure setback requirements"`, "accessory structure setback requirements"},
		{"Rewritten: trash collection schedule", "trash collection schedule"},
		{"plain query\nsecond line ignored", "plain query"},
		{"   ", ""},
	}
	for _, tc := range cases {
		if got := sanitizeRewrite(tc.in); got != tc.want {
			t.Errorf("sanitizeRewrite(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestClassifyOllamaErrorStatuses(t *testing.T) {
	retryable := classifyOllamaError(&HTTPStatusError{StatusCode: http.StatusServiceUnavailable})
	if !retryable.Retryable || !retryable.RecordFailure {
		t.Fatalf("5xx should be retryable and recorded: %+v", retryable)
	}
	permanent := classifyOllamaError(&HTTPStatusError{StatusCode: http.StatusBadRequest})
	if permanent.Retryable || permanent.RecordFailure {
		t.Fatalf("4xx should not retry or trip the breaker: %+v", permanent)
	}
	canceled := classifyOllamaError(context.Canceled)
	if canceled.Retryable || canceled.RecordFailure {
		t.Fatalf("cancellation is not a dependency failure: %+v", canceled)
	}
}
