package domain

type ChunkType string

const (
	ChunkRegulation    ChunkType = "regulation"
	ChunkTable         ChunkType = "table"
	ChunkProcedureStep ChunkType = "procedure_step"
	ChunkMeetingItem   ChunkType = "meeting_item"
	ChunkFinancialData ChunkType = "financial_data"
	ChunkInformational ChunkType = "informational"
)

// Chunk is the atomic retrieval unit. Chunks are created only by the
// chunker at ingestion time and are immutable once written.
type Chunk struct {
	ID         string        `json:"id"`
	DocumentID string        `json:"document_id"`
	Text       string        `json:"text"`
	Metadata   ChunkMetadata `json:"metadata"`
}

type ChunkMetadata struct {
	Title         string `json:"title"`
	URL           string `json:"url"`
	Department    string `json:"department,omitempty"`
	SectionNumber string `json:"section_number,omitempty"`
	SectionTitle  string `json:"section_title,omitempty"`
	Page          int    `json:"page,omitempty"`

	EffectiveDate string `json:"effective_date,omitempty"`
	LastAmended   string `json:"last_amended,omitempty"`
	DocumentDate  string `json:"document_date,omitempty"`

	ChunkType       ChunkType `json:"chunk_type"`
	ContainsTable   bool      `json:"contains_table"`
	CrossReferences []string  `json:"cross_references,omitempty"`
	Keywords        []string  `json:"keywords,omitempty"`
	AppliesTo       []string  `json:"applies_to,omitempty"`

	// ChunkIndex is zero-based and contiguous per document; every chunk
	// of a document carries the same TotalChunks. ContentHash is a pure
	// function of the chunk text, independent of the document hash.
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
	ContentHash string `json:"content_hash"`
}
