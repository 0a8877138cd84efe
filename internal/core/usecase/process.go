package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cmtemkin/needham-navigator-sub000/internal/core/domain"
	"github.com/cmtemkin/needham-navigator-sub000/internal/core/ports"
)

// ProcessDocumentUseCase runs the ingestion pipeline for one document:
// load raw text, chunk, embed, and replace the document's stored chunks
// wholesale. Chunks are never patched in place.
type ProcessDocumentUseCase struct {
	repo     ports.DocumentRepository
	storage  ports.ObjectStorage
	chunker  ports.Chunker
	embedder ports.Embedder
	vectorDB ports.VectorStore
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	chunker ports.Chunker,
	embedder ports.Embedder,
	vectorDB ports.VectorStore,
) *ProcessDocumentUseCase {
	return &ProcessDocumentUseCase{
		repo:     repo,
		storage:  storage,
		chunker:  chunker,
		embedder: embedder,
		vectorDB: vectorDB,
	}
}

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if err := uc.repo.UpdateStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	if err := uc.pipeline(ctx, documentID); err != nil {
		if failErr := uc.repo.UpdateStatus(ctx, documentID, domain.StatusFailed, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.UpdateStatus(ctx, documentID, domain.StatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}
	if err := uc.repo.MarkIngested(ctx, documentID); err != nil {
		return fmt.Errorf("mark ingested: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) pipeline(ctx context.Context, documentID string) error {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("fetch document by id: %w", err)
	}

	text, err := uc.loadText(ctx, doc.ID)
	if err != nil {
		return err
	}

	if doc.Type == "" {
		doc.Type = uc.chunker.DetectType(doc.Title, text)
		if err := uc.repo.Upsert(ctx, doc); err != nil {
			return fmt.Errorf("persist detected type: %w", err)
		}
	}

	chunks := uc.chunker.Chunk(doc, text)
	if len(chunks) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "chunk document", errors.New("chunking produced zero chunks"))
	}

	vectors, err := uc.embedChunks(ctx, chunks)
	if err != nil {
		return err
	}

	// Replace at document granularity: drop everything the document
	// owned before indexing the new set.
	if err := uc.vectorDB.DeleteByDocument(ctx, doc.ID); err != nil {
		return fmt.Errorf("delete stale vectors: %w", err)
	}
	if err := uc.vectorDB.IndexChunks(ctx, doc, chunks, vectors); err != nil {
		return fmt.Errorf("index chunks in vector store: %w", err)
	}
	if err := uc.repo.ReplaceChunks(ctx, doc.ID, chunks); err != nil {
		return fmt.Errorf("replace chunk metadata: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) loadText(ctx context.Context, documentID string) (string, error) {
	reader, err := uc.storage.Open(ctx, rawTextKey(documentID))
	if err != nil {
		return "", fmt.Errorf("open raw text: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read raw text: %w", err)
	}
	if len(raw) == 0 {
		return "", domain.WrapError(domain.ErrInvalidInput, "load raw text", errors.New("stored text is empty"))
	}
	return string(raw), nil
}

func (uc *ProcessDocumentUseCase) embedChunks(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	vectors, err := uc.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)),
		)
	}
	return vectors, nil
}
