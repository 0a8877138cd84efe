package chunking

import "github.com/cmtemkin/needham-navigator-sub000/internal/core/domain"

type BoundaryStrategy string

const (
	// StrategySections splits at markdown-style headings, falling back
	// to blank-line paragraph breaks when the document has none.
	StrategySections BoundaryStrategy = "sections"
	// StrategyTableAtomic extracts pipe-delimited tables as standalone
	// sections that are never subdivided regardless of size.
	StrategyTableAtomic BoundaryStrategy = "table_atomic"
)

// Policy is the per-document-type chunking policy. Budgets and overlap
// are token counts.
type Policy struct {
	MaxTokens     int
	OverlapTokens int
	Strategy      BoundaryStrategy
}

func defaultPolicies() map[domain.DocumentType]Policy {
	return map[domain.DocumentType]Policy{
		domain.TypeZoning:      {MaxTokens: 1024, OverlapTokens: 256, Strategy: StrategySections},
		domain.TypeBylaw:       {MaxTokens: 768, OverlapTokens: 192, Strategy: StrategySections},
		domain.TypePermits:     {MaxTokens: 512, OverlapTokens: 128, Strategy: StrategySections},
		domain.TypeFees:        {MaxTokens: 384, OverlapTokens: 96, Strategy: StrategyTableAtomic},
		domain.TypeBudget:      {MaxTokens: 1280, OverlapTokens: 320, Strategy: StrategySections},
		domain.TypeHealth:      {MaxTokens: 768, OverlapTokens: 192, Strategy: StrategySections},
		domain.TypePublicWorks: {MaxTokens: 512, OverlapTokens: 128, Strategy: StrategySections},
		domain.TypeMinutes:     {MaxTokens: 768, OverlapTokens: 192, Strategy: StrategySections},
		domain.TypePlanning:    {MaxTokens: 896, OverlapTokens: 224, Strategy: StrategySections},
		domain.TypeGeneral:     {MaxTokens: 768, OverlapTokens: 192, Strategy: StrategySections},
	}
}

// PolicyFor resolves the chunking policy for a document type, falling
// back to the general policy for unknown types.
func (c *Chunker) PolicyFor(docType domain.DocumentType) Policy {
	if p, ok := c.policies[docType]; ok {
		return p
	}
	return c.policies[domain.TypeGeneral]
}

var typePrefixes = map[domain.DocumentType]string{
	domain.TypeZoning:      "zon",
	domain.TypeBylaw:       "byl",
	domain.TypePermits:     "prm",
	domain.TypeFees:        "fee",
	domain.TypeBudget:      "bud",
	domain.TypeHealth:      "hlt",
	domain.TypePublicWorks: "pwd",
	domain.TypeMinutes:     "min",
	domain.TypePlanning:    "plb",
	domain.TypeGeneral:     "gen",
}

func typePrefix(docType domain.DocumentType) string {
	if p, ok := typePrefixes[docType]; ok {
		return p
	}
	return typePrefixes[domain.TypeGeneral]
}
