package domain

import "time"

type DocumentType string

const (
	TypeZoning      DocumentType = "zoning"
	TypeBylaw       DocumentType = "bylaw"
	TypePermits     DocumentType = "permits"
	TypeFees        DocumentType = "fees"
	TypeBudget      DocumentType = "budget"
	TypeHealth      DocumentType = "health"
	TypePublicWorks DocumentType = "public_works"
	TypeMinutes     DocumentType = "minutes"
	TypePlanning    DocumentType = "planning"
	TypeGeneral     DocumentType = "general"
)

type DocumentStatus string

const (
	StatusFetched    DocumentStatus = "fetched"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
)

// Document is the unit of re-ingestion: when its content hash changes,
// every chunk it owns is replaced wholesale, never patched in place.
type Document struct {
	ID          string         `json:"id"`
	TenantID    string         `json:"tenant_id"`
	URL         string         `json:"url"`
	Title       string         `json:"title"`
	Type        DocumentType   `json:"type"`
	Department  string         `json:"department,omitempty"`
	ContentHash string         `json:"content_hash"`
	Status      DocumentStatus `json:"status"`
	Error       string         `json:"error,omitempty"`
	FetchedAt   time.Time      `json:"fetched_at"`
	IngestedAt  time.Time      `json:"ingested_at"`
	VerifiedAt  time.Time      `json:"verified_at"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// DocumentSubmission is the inbound ingestion payload: raw text as the
// crawler produced it, plus whatever provenance the crawler knows.
type DocumentSubmission struct {
	TenantID   string       `json:"tenant_id"`
	URL        string       `json:"url"`
	Title      string       `json:"title"`
	Text       string       `json:"text"`
	Type       DocumentType `json:"type,omitempty"`
	Department string       `json:"department,omitempty"`
}
