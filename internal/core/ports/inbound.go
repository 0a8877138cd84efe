package ports

import (
	"context"

	"github.com/cmtemkin/needham-navigator-sub000/internal/core/domain"
)

// DocumentIngestor is the inbound contract for accepting crawled text.
type DocumentIngestor interface {
	Ingest(ctx context.Context, sub domain.DocumentSubmission) (*domain.Document, error)
}

// PassageRetriever is the inbound contract for hybrid retrieval.
type PassageRetriever interface {
	Retrieve(ctx context.Context, query, tenantID string, cfg domain.RetrievalConfig) ([]domain.RetrievedChunk, error)
}

// DocumentReader is the inbound read model for document state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous
// chunk-and-index processing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}
