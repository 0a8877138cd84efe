package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cmtemkin/needham-navigator-sub000/internal/infrastructure/resilience"
)

// Client is a thin ollama HTTP client shared by the embedder and the
// query rewriter.
type Client struct {
	baseURL      string
	rewriteModel string
	embedModel   string
	httpClient   *http.Client
	exec         *resilience.Executor
}

func New(baseURL, rewriteModel, embedModel string, exec *resilience.Executor) *Client {
	if exec == nil {
		exec = resilience.NewExecutor(resilience.DefaultConfig(), nil)
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		rewriteModel: rewriteModel,
		embedModel:   embedModel,
		httpClient:   &http.Client{Timeout: 120 * time.Second},
		exec:         exec,
	}
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

// Embed batches every text into a single /api/embed call;
// response vectors stay positionally aligned with the input.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	err := e.client.exec.Execute(ctx, "ollama_embed", func(ctx context.Context) error {
		return e.client.postJSON(ctx, "/api/embed", request, &response, "embed")
	}, classifyOllamaError)
	if err != nil {
		return nil, wrapTemporaryIfNeeded("embed texts", err)
	}
	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed result mismatch: %d vectors for %d texts", len(response.Embeddings), len(texts))
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

// Rewriter reformulates resident questions into the vocabulary of
// municipal documents before the dense search.
type Rewriter struct {
	client *Client
}

func NewRewriter(client *Client) *Rewriter {
	return &Rewriter{client: client}
}

func (r *Rewriter) Rewrite(ctx context.Context, query, tenantID string) (string, error) {
	reqBody := map[string]any{
		"model":  r.client.rewriteModel,
		"prompt": buildRewritePrompt(query, tenantID),
		"stream": false,
	}

	var response struct {
		Response string `json:"response"`
	}
	err := r.client.exec.Execute(ctx, "ollama_rewrite", func(ctx context.Context) error {
		return r.client.postJSON(ctx, "/api/generate", reqBody, &response, "rewrite")
	}, classifyOllamaError)
	if err != nil {
		return "", wrapTemporaryIfNeeded("rewrite query", err)
	}
	return sanitizeRewrite(response.Response), nil
}

// sanitizeRewrite strips quoting and label prefixes models add despite
// instructions, keeping only the first line.
func sanitizeRewrite(raw string) string {
	line := strings.TrimSpace(raw)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.Trim(line, `"'`)
	for _, prefix := range []string{"Rewritten query:", "Rewritten:", "Query:"} {
		if rest, ok := strings.CutPrefix(line, prefix); ok {
			line = strings.TrimSpace(rest)
		}
	}
	return strings.TrimSpace(line)
}
