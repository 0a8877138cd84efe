// Package chunking converts raw municipal document text into bounded,
// overlapping, annotated retrieval units under per-document-type
// policies.
package chunking

import (
	"fmt"
	"strings"

	"github.com/cmtemkin/needham-navigator-sub000/internal/core/domain"
)

type Chunker struct {
	tok      Tokenizer
	policies map[domain.DocumentType]Policy
}

func New(tok Tokenizer) *Chunker {
	return &Chunker{
		tok:      tok,
		policies: defaultPolicies(),
	}
}

// DetectType classifies a document when the crawler supplied no
// explicit type.
func (c *Chunker) DetectType(title, text string) domain.DocumentType {
	return DetectType(title, text)
}

// Chunk produces the ordered chunk list for a document. It never
// fails: unparseable structure degrades to paragraph splitting, and
// empty input yields an empty slice, which the caller must reject
// before persistence.
func (c *Chunker) Chunk(doc *domain.Document, text string) []domain.Chunk {
	docType := doc.Type
	if docType == "" {
		docType = DetectType(doc.Title, text)
	}
	policy := c.PolicyFor(docType)

	sections := splitSections(text, policy.Strategy)
	packed := packer{tok: c.tok, policy: policy}.pack(sections)
	if len(packed) == 0 {
		return nil
	}

	docDate := documentDateRe.FindString(doc.Title + "\n" + head(text, 400))
	prefix := typePrefix(docType)

	out := make([]domain.Chunk, 0, len(packed))
	for i, pc := range packed {
		meta := domain.ChunkMetadata{
			Title:         doc.Title,
			URL:           doc.URL,
			Department:    doc.Department,
			SectionNumber: pc.sec.number,
			SectionTitle:  pc.sec.title,

			EffectiveDate: firstMatchGroup(effectiveDateRe, pc.text),
			LastAmended:   firstMatchGroup(amendedDateRe, pc.text),
			DocumentDate:  docDate,

			ChunkType:       inferChunkType(pc.sec.isTable, docType),
			ContainsTable:   pc.sec.isTable,
			CrossReferences: findCrossReferences(pc.text),
			Keywords:        findKeywords(pc.text),
			AppliesTo:       findZoneCodes(pc.text),

			ChunkIndex:  i,
			TotalChunks: len(packed),
			ContentHash: contentHash(pc.text),
		}

		out = append(out, domain.Chunk{
			ID:         chunkID(doc.ID, prefix, pc.sec.number, i),
			DocumentID: doc.ID,
			Text:       pc.text,
			Metadata:   meta,
		})
	}
	return out
}

// Oversize reports how many chunks exceed the policy budget; these are
// single-paragraph or atomic-table overflows accepted by the packer.
func (c *Chunker) Oversize(docType domain.DocumentType, chunks []domain.Chunk) int {
	policy := c.PolicyFor(docType)
	n := 0
	for _, chunk := range chunks {
		if c.tok.Count(chunk.Text) > policy.MaxTokens {
			n++
		}
	}
	return n
}

// chunkID derives the chunk identifier from the document-type prefix
// plus the section number when known, with the sequence index keeping
// identifiers unique within the document.
func chunkID(docID, prefix, sectionNumber string, index int) string {
	if sectionNumber != "" {
		return fmt.Sprintf("%s:%s-%s-%d", docID, prefix, sectionNumber, index)
	}
	return fmt.Sprintf("%s:%s-%d", docID, prefix, index)
}

func head(text string, n int) string {
	if len(text) <= n {
		return text
	}
	return strings.ToValidUTF8(text[:n], "")
}
