package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cmtemkin/needham-navigator-sub000/internal/core/domain"
	"github.com/cmtemkin/needham-navigator-sub000/internal/core/ports"
	"github.com/cmtemkin/needham-navigator-sub000/internal/observability/metrics"
)

const serviceName = "api"

type Router struct {
	ingestor      ports.DocumentIngestor
	retriever     ports.PassageRetriever
	reader        ports.DocumentReader
	metrics       *metrics.HTTPServerMetrics
	logger        *slog.Logger
	defaultTenant string
}

// TrafficPolicy bounds inbound load before a request reaches a
// handler. Zero values disable the corresponding gate.
type TrafficPolicy struct {
	RateLimitRPS   float64
	RateLimitBurst int
	MaxInFlight    int
}

func NewRouter(
	ingestor ports.DocumentIngestor,
	retriever ports.PassageRetriever,
	reader ports.DocumentReader,
	m *metrics.HTTPServerMetrics,
	logger *slog.Logger,
	defaultTenant string,
) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		ingestor:      ingestor,
		retriever:     retriever,
		reader:        reader,
		metrics:       m,
		logger:        logger,
		defaultTenant: defaultTenant,
	}
}

func (rt *Router) Handler(policy TrafficPolicy) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/documents", rt.submitDocument)
	mux.HandleFunc("/v1/documents/", rt.getDocumentByID)
	mux.HandleFunc("/v1/retrieve", rt.retrieve)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if policy.MaxInFlight > 0 {
		handler = backpressureMiddleware(handler, policy.MaxInFlight, 50*time.Millisecond)
	}
	if policy.RateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, policy.RateLimitRPS, policy.RateLimitBurst)
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) submitDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var sub domain.DocumentSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if sub.TenantID == "" {
		sub.TenantID = rt.defaultTenant
	}

	doc, err := rt.ingestor.Ingest(r.Context(), sub)
	if err != nil {
		rt.writeDomainError(w, r, "ingest_failed", err)
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "document id is required")
		return
	}

	doc, err := rt.reader.GetByID(r.Context(), id)
	if err != nil {
		rt.writeDomainError(w, r, "get_document_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

type retrieveRequest struct {
	Query               string `json:"query"`
	TenantID            string `json:"tenant_id"`
	MaxResults          int    `json:"max_results"`
	PerDocumentCap      int    `json:"per_document_cap"`
	SiblingExpansion    *bool  `json:"sibling_expansion"`
	RewriteEnabled      *bool  `json:"rewrite_enabled"`
	CrossEncoderEnabled *bool  `json:"cross_encoder_enabled"`
}

type retrieveResponse struct {
	Query    string                  `json:"query"`
	TenantID string                  `json:"tenant_id"`
	Count    int                     `json:"count"`
	Chunks   []domain.RetrievedChunk `json:"chunks"`
}

func (rt *Router) retrieve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	tenantID := req.TenantID
	if tenantID == "" {
		tenantID = rt.defaultTenant
	}

	cfg := domain.RetrievalConfig{
		MaxResults:          req.MaxResults,
		PerDocumentCap:      req.PerDocumentCap,
		SiblingExpansion:    req.SiblingExpansion,
		RewriteEnabled:      req.RewriteEnabled,
		CrossEncoderEnabled: req.CrossEncoderEnabled,
	}

	start := time.Now()
	chunks, err := rt.retriever.Retrieve(r.Context(), req.Query, tenantID, cfg)
	if err != nil {
		if rt.metrics != nil && domain.IsKind(err, domain.ErrUnavailable) {
			rt.metrics.RecordSignalFailure(serviceName, "all")
		}
		rt.writeDomainError(w, r, "retrieve_failed", err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordRetrieval(serviceName, len(chunks), time.Since(start))
		rt.metrics.RecordCrossEncoder(serviceName, crossEncoderOutcome(chunks))
	}

	if chunks == nil {
		chunks = []domain.RetrievedChunk{}
	}
	writeJSON(w, http.StatusOK, retrieveResponse{
		Query:    req.Query,
		TenantID: tenantID,
		Count:    len(chunks),
		Chunks:   chunks,
	})
}

func crossEncoderOutcome(chunks []domain.RetrievedChunk) string {
	for _, c := range chunks {
		if c.CrossEncoderScore != nil {
			return "applied"
		}
	}
	return "formula_only"
}

func (rt *Router) writeDomainError(w http.ResponseWriter, r *http.Request, event string, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		rt.logger.Error(event,
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
