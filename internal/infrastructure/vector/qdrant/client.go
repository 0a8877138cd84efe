package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cmtemkin/needham-navigator-sub000/internal/core/domain"
	"github.com/cmtemkin/needham-navigator-sub000/internal/infrastructure/resilience"
)

const (
	denseVectorName  = "content"
	sparseVectorName = "lexical"
)

// Store talks to qdrant over its HTTP API. Chunks live in a primary
// collection with a named dense vector and a named sparse vector; an
// optional auxiliary collection holds supplementary content searched at
// a discount.
type Store struct {
	baseURL       string
	collection    string
	auxCollection string
	httpClient    *http.Client
	exec          *resilience.Executor

	ensureMu    sync.Mutex
	ensuredSize map[string]int
}

func New(baseURL, collection, auxCollection string, exec *resilience.Executor) *Store {
	if exec == nil {
		exec = resilience.NewExecutor(resilience.DefaultConfig(), nil)
	}
	return &Store{
		baseURL:       strings.TrimRight(baseURL, "/"),
		collection:    collection,
		auxCollection: auxCollection,
		httpClient:    &http.Client{Timeout: 60 * time.Second},
		exec:          exec,
		ensuredSize:   map[string]int{},
	}
}

func (s *Store) IndexChunks(ctx context.Context, doc *domain.Document, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 || len(vectors) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors mismatch: %d/%d", len(chunks), len(vectors))
	}

	if err := s.ensureCollection(ctx, s.collection, len(vectors[0])); err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  map[string]any `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(chunks))
	for i, chunk := range chunks {
		sparse := encodeSparseDocument(chunk.Text, chunk.Metadata.Title)
		points = append(points, point{
			// Deterministic point IDs make re-indexing an upsert, not a
			// duplicate.
			ID: uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunk.ID)).String(),
			Vector: map[string]any{
				denseVectorName:  vectors[i],
				sparseVectorName: sparse,
			},
			Payload: chunkPayload(doc, chunk),
		})
	}

	body, err := json.Marshal(map[string]any{"points": points})
	if err != nil {
		return fmt.Errorf("marshal upsert body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", s.baseURL, s.collection)
	return s.exec.Execute(ctx, "qdrant_upsert", func(ctx context.Context) error {
		return s.send(ctx, http.MethodPut, url, body, nil)
	}, qdrantClassifier)
}

func (s *Store) DeleteByDocument(ctx context.Context, documentID string) error {
	body, err := json.Marshal(map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "document_id", "match": map[string]any{"value": documentID}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("marshal delete body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/delete?wait=true", s.baseURL, s.collection)
	err = s.exec.Execute(ctx, "qdrant_delete", func(ctx context.Context) error {
		return s.send(ctx, http.MethodPost, url, body, nil)
	}, qdrantClassifier)
	// A collection that does not exist yet holds nothing to delete.
	var status *statusError
	if errors.As(err, &status) && status.Code == http.StatusNotFound {
		return nil
	}
	return err
}

func (s *Store) Search(
	ctx context.Context,
	queryVector []float32,
	threshold float64,
	limit int,
	filter domain.SearchFilter,
) ([]domain.RetrievedChunk, error) {
	return s.denseSearch(ctx, s.collection, queryVector, threshold, limit, filter)
}

func (s *Store) SearchAuxiliary(
	ctx context.Context,
	queryVector []float32,
	threshold float64,
	limit int,
	filter domain.SearchFilter,
) ([]domain.RetrievedChunk, error) {
	if s.auxCollection == "" {
		return nil, nil
	}
	return s.denseSearch(ctx, s.auxCollection, queryVector, threshold, limit, filter)
}

func (s *Store) denseSearch(
	ctx context.Context,
	collection string,
	queryVector []float32,
	threshold float64,
	limit int,
	filter domain.SearchFilter,
) ([]domain.RetrievedChunk, error) {
	reqBody := map[string]any{
		"vector": map[string]any{
			"name":   denseVectorName,
			"vector": queryVector,
		},
		"limit":        limit,
		"with_payload": true,
	}
	if threshold > 0 {
		reqBody["score_threshold"] = threshold
	}
	if f := buildFilter(filter); f != nil {
		reqBody["filter"] = f
	}
	return s.search(ctx, collection, "qdrant_search", reqBody, true)
}

func (s *Store) SearchLexical(
	ctx context.Context,
	queryText string,
	limit int,
	filter domain.SearchFilter,
) ([]domain.RetrievedChunk, error) {
	sparse := encodeSparseQuery(queryText)
	if len(sparse.Indices) == 0 {
		return nil, nil
	}

	reqBody := map[string]any{
		"vector": map[string]any{
			"name":   sparseVectorName,
			"vector": sparse,
		},
		"limit":        limit,
		"with_payload": true,
	}
	if f := buildFilter(filter); f != nil {
		reqBody["filter"] = f
	}
	// Sparse scores are not on the cosine scale of the dense signals;
	// rows go back unscored and the caller decides their weight.
	return s.search(ctx, s.collection, "qdrant_search_lexical", reqBody, false)
}

func (s *Store) search(
	ctx context.Context,
	collection, operation string,
	reqBody map[string]any,
	keepScores bool,
) ([]domain.RetrievedChunk, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", s.baseURL, collection)
	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	err = s.exec.Execute(ctx, operation, func(ctx context.Context) error {
		return s.send(ctx, http.MethodPost, url, body, &searchResp)
	}, qdrantClassifier)
	if err != nil {
		return nil, err
	}

	out := make([]domain.RetrievedChunk, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		chunk := chunkFromPayload(r.Payload)
		if keepScores {
			chunk.Similarity = r.Score
		}
		out = append(out, chunk)
	}
	return out, nil
}

func (s *Store) send(ctx context.Context, method, url string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create qdrant request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &statusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode qdrant response: %w", err)
	}
	return nil
}

func (s *Store) ensureCollection(ctx context.Context, collection string, vectorSize int) error {
	s.ensureMu.Lock()
	if s.ensuredSize[collection] == vectorSize {
		s.ensureMu.Unlock()
		return nil
	}
	s.ensureMu.Unlock()

	body, err := json.Marshal(map[string]any{
		"vectors": map[string]any{
			denseVectorName: map[string]any{
				"size":     vectorSize,
				"distance": "Cosine",
			},
		},
		"sparse_vectors": map[string]any{
			sparseVectorName: map[string]any{},
		},
	})
	if err != nil {
		return fmt.Errorf("marshal ensure collection body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s", s.baseURL, collection)
	err = s.exec.Execute(ctx, "qdrant_ensure_collection", func(ctx context.Context) error {
		return s.send(ctx, http.MethodPut, url, body, nil)
	}, qdrantClassifier)

	// 409 means the collection already exists.
	var status *statusError
	if err != nil && !(errors.As(err, &status) && status.Code == http.StatusConflict) {
		return err
	}

	s.ensureMu.Lock()
	s.ensuredSize[collection] = vectorSize
	s.ensureMu.Unlock()
	return nil
}

func chunkPayload(doc *domain.Document, chunk domain.Chunk) map[string]any {
	return map[string]any{
		"chunk_id":         chunk.ID,
		"document_id":      chunk.DocumentID,
		"tenant_id":        doc.TenantID,
		"document_type":    string(doc.Type),
		"text":             chunk.Text,
		"title":            chunk.Metadata.Title,
		"url":              chunk.Metadata.URL,
		"department":       chunk.Metadata.Department,
		"section_number":   chunk.Metadata.SectionNumber,
		"section_title":    chunk.Metadata.SectionTitle,
		"page":             chunk.Metadata.Page,
		"effective_date":   chunk.Metadata.EffectiveDate,
		"last_amended":     chunk.Metadata.LastAmended,
		"document_date":    chunk.Metadata.DocumentDate,
		"chunk_type":       string(chunk.Metadata.ChunkType),
		"contains_table":   chunk.Metadata.ContainsTable,
		"chunk_index":      chunk.Metadata.ChunkIndex,
		"total_chunks":     chunk.Metadata.TotalChunks,
		"content_hash":     chunk.Metadata.ContentHash,
		"keywords":         chunk.Metadata.Keywords,
		"applies_to":       chunk.Metadata.AppliesTo,
		"cross_references": chunk.Metadata.CrossReferences,
	}
}

func chunkFromPayload(payload map[string]any) domain.RetrievedChunk {
	return domain.RetrievedChunk{
		Chunk: domain.Chunk{
			ID:         getString(payload, "chunk_id"),
			DocumentID: getString(payload, "document_id"),
			Text:       getString(payload, "text"),
			Metadata: domain.ChunkMetadata{
				Title:           getString(payload, "title"),
				URL:             getString(payload, "url"),
				Department:      getString(payload, "department"),
				SectionNumber:   getString(payload, "section_number"),
				SectionTitle:    getString(payload, "section_title"),
				Page:            getInt(payload, "page"),
				EffectiveDate:   getString(payload, "effective_date"),
				LastAmended:     getString(payload, "last_amended"),
				DocumentDate:    getString(payload, "document_date"),
				ChunkType:       domain.ChunkType(getString(payload, "chunk_type")),
				ContainsTable:   getBool(payload, "contains_table"),
				ChunkIndex:      getInt(payload, "chunk_index"),
				TotalChunks:     getInt(payload, "total_chunks"),
				ContentHash:     getString(payload, "content_hash"),
				Keywords:        getStrings(payload, "keywords"),
				AppliesTo:       getStrings(payload, "applies_to"),
				CrossReferences: getStrings(payload, "cross_references"),
			},
		},
	}
}

func buildFilter(filter domain.SearchFilter) map[string]any {
	var must []map[string]any
	if filter.TenantID != "" {
		must = append(must, map[string]any{
			"key": "tenant_id", "match": map[string]any{"value": filter.TenantID},
		})
	}
	if filter.Type != "" {
		must = append(must, map[string]any{
			"key": "document_type", "match": map[string]any{"value": string(filter.Type)},
		})
	}
	if filter.Department != "" {
		must = append(must, map[string]any{
			"key": "department", "match": map[string]any{"value": filter.Department},
		})
	}
	if len(must) == 0 {
		return nil
	}
	return map[string]any{"must": must}
}

type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("qdrant status %d", e.Code)
	}
	return fmt.Sprintf("qdrant status %d: %s", e.Code, e.Body)
}

func qdrantClassifier(err error) resilience.ErrorClassification {
	var status *statusError
	if errors.As(err, &status) {
		retryable := status.Code == http.StatusTooManyRequests || status.Code >= 500
		return resilience.ErrorClassification{Retryable: retryable, RecordFailure: retryable}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}

func getString(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getBool(payload map[string]any, key string) bool {
	b, _ := payload[key].(bool)
	return b
}

func getInt(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func getStrings(payload map[string]any, key string) []string {
	raw, ok := payload[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
