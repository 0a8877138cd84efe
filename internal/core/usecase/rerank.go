package usecase

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/cmtemkin/needham-navigator-sub000/internal/core/domain"
)

// The scoring formula and the cross-encoder blend are pure functions
// over the candidate; the weights live in RetrievalConfig so tuning is
// a config change, not a code change.

var yearRe = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// formulaScore computes the weighted relevance formula and the source
// boost separately; the boost is additive in the formula but has its
// own weight in the cross-encoder blend.
func formulaScore(cand domain.RetrievedChunk, queryTerms []string, queryDept string, rules compiledRules, cfg domain.RetrievalConfig) (formula, boost float64) {
	semantic := clamp01(cand.Similarity)
	keyword := termOverlap(queryTerms, cand.Text)
	recency := recencyTier(chunkYear(cand.Metadata))
	authority := authorityTier(cand.Metadata.ChunkType)

	if queryDept != "" && strings.EqualFold(cand.Metadata.Department, queryDept) {
		boost = cfg.SourceBoost
	}
	if typeBoost, ok := rules.typeBoosts[cand.Metadata.ChunkType]; ok && typeBoost > boost {
		boost = typeBoost
	}

	formula = cfg.SemanticWeight*semantic +
		cfg.KeywordWeight*keyword +
		cfg.RecencyWeight*recency +
		cfg.AuthorityWeight*authority +
		boost
	return formula, boost
}

// blendScores folds an available cross-encoder score into the final
// relevance instead of replacing the formula, so a failed cross-encoder
// call degrades to formula-only scoring.
func blendScores(crossEncoder, formula, boost float64) float64 {
	return 0.6*crossEncoder + 0.3*formula + 0.1*boost
}

// termOverlap is the fraction of query terms of three or more
// characters present in the chunk text.
func termOverlap(queryTerms []string, text string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	lowered := strings.ToLower(text)
	matches := 0
	for _, term := range queryTerms {
		if strings.Contains(lowered, term) {
			matches++
		}
	}
	return float64(matches) / float64(len(queryTerms))
}

// queryTerms extracts the scoring terms: lowercase alphanumeric runs of
// at least three characters, deduplicated in order.
func queryTerms(query string) []string {
	var terms []string
	seen := map[string]struct{}{}
	var b strings.Builder

	flush := func() {
		if b.Len() >= 3 {
			term := b.String()
			if _, dup := seen[term]; !dup {
				seen[term] = struct{}{}
				terms = append(terms, term)
			}
		}
		b.Reset()
	}

	for _, r := range query {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return terms
}

// chunkYear takes the most recent year found across the chunk's
// temporal metadata fields; they are independently sourced and any of
// them may be missing.
func chunkYear(meta domain.ChunkMetadata) int {
	best := 0
	for _, field := range []string{meta.LastAmended, meta.EffectiveDate, meta.DocumentDate} {
		m := yearRe.FindString(field)
		if m == "" {
			continue
		}
		year := 0
		for _, r := range m {
			year = year*10 + int(r-'0')
		}
		if year > best {
			best = year
		}
	}
	return best
}

func recencyTier(year int) float64 {
	switch {
	case year >= 2024:
		return 1.0
	case year >= 2020:
		return 0.7
	case year >= 2015:
		return 0.4
	default:
		return 0
	}
}

// authorityTier weighs regulatory text above procedural records above
// everything else.
func authorityTier(chunkType domain.ChunkType) float64 {
	switch chunkType {
	case domain.ChunkRegulation:
		return 1.0
	case domain.ChunkProcedureStep, domain.ChunkMeetingItem:
		return 0.7
	default:
		return 0.5
	}
}
