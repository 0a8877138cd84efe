package ports

import (
	"context"
	"io"

	"github.com/cmtemkin/needham-navigator-sub000/internal/core/domain"
)

// DocumentRepository persists document state and chunk metadata.
type DocumentRepository interface {
	Upsert(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	GetByURL(ctx context.Context, tenantID, url string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	MarkVerified(ctx context.Context, id string) error
	MarkIngested(ctx context.Context, id string) error
	// ReplaceChunks removes every chunk row of the document and inserts
	// the new set in one transaction.
	ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error
}

// ObjectStorage keeps the raw crawled text the worker re-reads for
// chunking.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes document-ingested events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// Chunker converts raw document text into annotated retrieval units.
// It never fails: malformed structure degrades to paragraph splitting
// and empty input yields an empty slice.
type Chunker interface {
	Chunk(doc *domain.Document, text string) []domain.Chunk
	DetectType(title, text string) domain.DocumentType
}

// Embedder builds vectors for chunk batches and query forms. Embed is
// order-preserving: vectors[i] corresponds to texts[i].
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore indexes chunks and serves the dense, lexical, and
// auxiliary search signals.
type VectorStore interface {
	IndexChunks(ctx context.Context, doc *domain.Document, chunks []domain.Chunk, vectors [][]float32) error
	DeleteByDocument(ctx context.Context, documentID string) error
	Search(ctx context.Context, queryVector []float32, threshold float64, limit int, filter domain.SearchFilter) ([]domain.RetrievedChunk, error)
	SearchAuxiliary(ctx context.Context, queryVector []float32, threshold float64, limit int, filter domain.SearchFilter) ([]domain.RetrievedChunk, error)
	SearchLexical(ctx context.Context, queryText string, limit int, filter domain.SearchFilter) ([]domain.RetrievedChunk, error)
}

// QueryRewriter produces an optional LLM-rewritten query form.
// Failures are non-fatal to retrieval.
type QueryRewriter interface {
	Rewrite(ctx context.Context, query, tenantID string) (string, error)
}

// CrossEncoder scores candidate texts against a query. Failures and
// timeouts are non-fatal; callers fall back to formula scores.
type CrossEncoder interface {
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
}
