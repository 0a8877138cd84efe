package domain

import "time"

type SearchFilter struct {
	TenantID   string
	Type       DocumentType
	Department string
}

// RetrievedChunk decorates a Chunk for one query. It is built fresh per
// request and never persisted.
type RetrievedChunk struct {
	Chunk
	Similarity        float64         `json:"similarity"`
	CrossEncoderScore *float64        `json:"cross_encoder_score,omitempty"`
	Relevance         float64         `json:"relevance"`
	Source            SourceReference `json:"source"`
}

// SourceReference is presentation-only provenance for a retrieved chunk.
type SourceReference struct {
	Title    string `json:"title"`
	Citation string `json:"citation"`
	URL      string `json:"url"`
	Section  string `json:"section,omitempty"`
	Date     string `json:"date,omitempty"`
}

// RetrievalConfig carries the tunable constants of the retrieval
// pipeline. Zero values fall back to the defaults below, so a caller
// can override any subset per request.
type RetrievalConfig struct {
	MaxResults      int
	PerSearchLimit  int
	PerDocumentCap  int
	SimilarityFloor float64
	SearchThreshold float64

	SemanticWeight  float64
	KeywordWeight   float64
	RecencyWeight   float64
	AuthorityWeight float64
	SourceBoost     float64

	AuxiliaryMultiplier float64
	RerankTimeout       time.Duration

	SiblingExpansion    *bool
	RewriteEnabled      *bool
	CrossEncoderEnabled *bool
}

func DefaultRetrievalConfig() RetrievalConfig {
	enabled := true
	return RetrievalConfig{
		MaxResults:      10,
		PerSearchLimit:  20,
		PerDocumentCap:  3,
		SimilarityFloor: 0.35,
		SearchThreshold: 0.25,

		SemanticWeight:  0.6,
		KeywordWeight:   0.2,
		RecencyWeight:   0.1,
		AuthorityWeight: 0.1,
		SourceBoost:     0.05,

		AuxiliaryMultiplier: 0.95,
		RerankTimeout:       3 * time.Second,

		SiblingExpansion:    &enabled,
		RewriteEnabled:      &enabled,
		CrossEncoderEnabled: &enabled,
	}
}

func (c RetrievalConfig) Normalize() RetrievalConfig {
	return c.Merged(DefaultRetrievalConfig())
}

// Merged fills zero-valued fields from def, letting callers override
// any subset of an already-normalized base configuration. A zero
// numeric field always means "use the default": formula weights can be
// lowered but not set to zero per call. Disabling a whole signal is
// what the boolean toggles are for; they distinguish unset (nil) from
// explicitly false.
func (c RetrievalConfig) Merged(def RetrievalConfig) RetrievalConfig {
	out := c

	if out.MaxResults <= 0 {
		out.MaxResults = def.MaxResults
	}
	if out.PerSearchLimit <= 0 {
		out.PerSearchLimit = def.PerSearchLimit
	}
	if out.PerDocumentCap <= 0 {
		out.PerDocumentCap = def.PerDocumentCap
	}
	if out.SimilarityFloor <= 0 {
		out.SimilarityFloor = def.SimilarityFloor
	}
	if out.SearchThreshold <= 0 {
		out.SearchThreshold = def.SearchThreshold
	}
	if out.SemanticWeight <= 0 {
		out.SemanticWeight = def.SemanticWeight
	}
	if out.KeywordWeight <= 0 {
		out.KeywordWeight = def.KeywordWeight
	}
	if out.RecencyWeight <= 0 {
		out.RecencyWeight = def.RecencyWeight
	}
	if out.AuthorityWeight <= 0 {
		out.AuthorityWeight = def.AuthorityWeight
	}
	if out.SourceBoost <= 0 {
		out.SourceBoost = def.SourceBoost
	}
	if out.AuxiliaryMultiplier <= 0 || out.AuxiliaryMultiplier > 1 {
		out.AuxiliaryMultiplier = def.AuxiliaryMultiplier
	}
	if out.RerankTimeout <= 0 {
		out.RerankTimeout = def.RerankTimeout
	}
	if out.SiblingExpansion == nil {
		out.SiblingExpansion = def.SiblingExpansion
	}
	if out.RewriteEnabled == nil {
		out.RewriteEnabled = def.RewriteEnabled
	}
	if out.CrossEncoderEnabled == nil {
		out.CrossEncoderEnabled = def.CrossEncoderEnabled
	}
	return out
}

// ExpansionRules is the data side of query expansion: synonym
// injection, intent keyword patterns, and department routing. Patterns
// are regular expressions compiled by the retrieval use case; tenants
// may override the built-in rules from configuration.
type ExpansionRules struct {
	Synonyms    map[string][]string   `yaml:"synonyms"`
	Intents     []IntentRule          `yaml:"intents"`
	Departments []DepartmentRule      `yaml:"departments"`
	TypeBoosts  map[ChunkType]float64 `yaml:"type_boosts"`
}

type IntentRule struct {
	Pattern string   `yaml:"pattern"`
	Inject  []string `yaml:"inject"`
}

type DepartmentRule struct {
	Pattern    string `yaml:"pattern"`
	Department string `yaml:"department"`
}
