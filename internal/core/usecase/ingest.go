package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cmtemkin/needham-navigator-sub000/internal/core/domain"
	"github.com/cmtemkin/needham-navigator-sub000/internal/core/ports"
)

// IngestDocumentUseCase accepts crawled text, stores the raw blob, and
// queues the document for asynchronous chunking. A resubmission with an
// unchanged content hash is recorded as a verification, not re-chunked.
type IngestDocumentUseCase struct {
	repo    ports.DocumentRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewIngestDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *IngestDocumentUseCase {
	return &IngestDocumentUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
	}
}

func (uc *IngestDocumentUseCase) Ingest(ctx context.Context, sub domain.DocumentSubmission) (*domain.Document, error) {
	if strings.TrimSpace(sub.URL) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ingest document", errors.New("url is required"))
	}
	if strings.TrimSpace(sub.Text) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ingest document", errors.New("document text is empty"))
	}
	if sub.TenantID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ingest document", errors.New("tenant id is required"))
	}

	hash := documentHash(sub.Text)
	now := time.Now().UTC()

	existing, err := uc.repo.GetByURL(ctx, sub.TenantID, sub.URL)
	if err != nil && !domain.IsKind(err, domain.ErrDocumentNotFound) {
		return nil, fmt.Errorf("lookup document by url: %w", err)
	}
	if existing != nil && existing.ContentHash == hash {
		if err := uc.repo.MarkVerified(ctx, existing.ID); err != nil {
			return nil, fmt.Errorf("mark document verified: %w", err)
		}
		existing.VerifiedAt = now
		return existing, nil
	}

	doc := &domain.Document{
		ID:          uuid.NewString(),
		TenantID:    sub.TenantID,
		URL:         sub.URL,
		Title:       sub.Title,
		Type:        sub.Type,
		Department:  sub.Department,
		ContentHash: hash,
		Status:      domain.StatusFetched,
		FetchedAt:   now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if existing != nil {
		doc.ID = existing.ID
		doc.CreatedAt = existing.CreatedAt
	}

	if err := uc.storage.Save(ctx, rawTextKey(doc.ID), strings.NewReader(sub.Text)); err != nil {
		return nil, fmt.Errorf("save raw text: %w", err)
	}
	if err := uc.repo.Upsert(ctx, doc); err != nil {
		return nil, fmt.Errorf("upsert document: %w", err)
	}
	if err := uc.queue.PublishDocumentIngested(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("publish ingestion event: %w", err)
	}
	return doc, nil
}

func documentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func rawTextKey(documentID string) string {
	return documentID + ".txt"
}
