package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/cmtemkin/needham-navigator-sub000/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	url TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	doc_type TEXT NOT NULL DEFAULT '',
	department TEXT NOT NULL DEFAULT '',
	content_hash TEXT NOT NULL,
	status TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	fetched_at TIMESTAMPTZ NOT NULL,
	ingested_at TIMESTAMPTZ,
	verified_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	UNIQUE (tenant_id, url)
);

CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_tenant ON documents(tenant_id);

CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	chunk_index INT NOT NULL,
	content TEXT NOT NULL,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb
);

CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id, chunk_index);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Upsert(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (
	id, tenant_id, url, title, doc_type, department, content_hash, status, error_message, fetched_at, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (id) DO UPDATE SET
	title = EXCLUDED.title,
	doc_type = EXCLUDED.doc_type,
	department = EXCLUDED.department,
	content_hash = EXCLUDED.content_hash,
	status = EXCLUDED.status,
	error_message = EXCLUDED.error_message,
	fetched_at = EXCLUDED.fetched_at,
	updated_at = EXCLUDED.updated_at
`,
		doc.ID, doc.TenantID, doc.URL, doc.Title, string(doc.Type), doc.Department,
		doc.ContentHash, string(doc.Status), doc.Error, doc.FetchedAt, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

const documentColumns = `id, tenant_id, url, title, doc_type, department, content_hash, status, error_message, fetched_at, ingested_at, verified_at, created_at, updated_at`

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE id = $1
`, id)
	return scanDocument(row, id)
}

func (r *DocumentRepository) GetByURL(ctx context.Context, tenantID, url string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE tenant_id = $1 AND url = $2
`, tenantID, url)
	return scanDocument(row, url)
}

func scanDocument(row *sql.Row, key string) (*domain.Document, error) {
	var doc domain.Document
	var docType, status string
	var ingestedAt, verifiedAt sql.NullTime

	err := row.Scan(
		&doc.ID, &doc.TenantID, &doc.URL, &doc.Title, &docType, &doc.Department,
		&doc.ContentHash, &status, &doc.Error, &doc.FetchedAt, &ingestedAt, &verifiedAt,
		&doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("%s", key))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}

	doc.Type = domain.DocumentType(docType)
	doc.Status = domain.DocumentStatus(status)
	if ingestedAt.Valid {
		doc.IngestedAt = ingestedAt.Time
	}
	if verifiedAt.Valid {
		doc.VerifiedAt = verifiedAt.Time
	}
	return &doc, nil
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return requireRow(res, "update status", id)
}

func (r *DocumentRepository) MarkVerified(ctx context.Context, id string) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET verified_at = $2, updated_at = $2
WHERE id = $1
`, id, now)
	if err != nil {
		return fmt.Errorf("mark document verified: %w", err)
	}
	return requireRow(res, "mark verified", id)
}

func (r *DocumentRepository) MarkIngested(ctx context.Context, id string) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET ingested_at = $2, updated_at = $2
WHERE id = $1
`, id, now)
	if err != nil {
		return fmt.Errorf("mark document ingested: %w", err)
	}
	return requireRow(res, "mark ingested", id)
}

// ReplaceChunks swaps the document's chunk rows in one transaction so
// readers never observe a half-replaced document.
func (r *DocumentRepository) ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin chunk tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete stale chunks: %w", err)
	}

	for _, chunk := range chunks {
		metadata, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("marshal chunk metadata: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO chunks (id, document_id, chunk_index, content, metadata)
VALUES ($1,$2,$3,$4,$5)
`, chunk.ID, documentID, chunk.Metadata.ChunkIndex, chunk.Text, metadata); err != nil {
			return fmt.Errorf("insert chunk %s: %w", chunk.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chunk tx: %w", err)
	}
	return nil
}

func requireRow(res sql.Result, operation, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, operation, fmt.Errorf("%s", id))
	}
	return nil
}
