package usecase

import (
	"sort"

	"github.com/cmtemkin/needham-navigator-sub000/internal/core/domain"
)

// mergeCandidates folds the per-signal result lists into one candidate
// set keyed by chunk ID. A chunk seen by several searches keeps the
// maximum similarity observed, never an average: one strong match from
// any query form is sufficient.
func mergeCandidates(lists ...[]domain.RetrievedChunk) []domain.RetrievedChunk {
	acc := map[string]domain.RetrievedChunk{}
	for _, list := range lists {
		for _, cand := range list {
			cand.Similarity = clamp01(cand.Similarity)
			current, seen := acc[cand.ID]
			if !seen {
				acc[cand.ID] = cand
				continue
			}
			if cand.Similarity > current.Similarity {
				current.Similarity = cand.Similarity
			}
			current = preferRicher(current, cand)
			acc[cand.ID] = current
		}
	}

	out := make([]domain.RetrievedChunk, 0, len(acc))
	for _, cand := range acc {
		out = append(out, cand)
	}
	sortCandidates(out, func(c domain.RetrievedChunk) float64 { return c.Similarity })
	return out
}

// applyFloor drops merged candidates below the similarity floor. The
// floor is independent of the per-search threshold that bounds each
// individual search.
func applyFloor(cands []domain.RetrievedChunk, floor float64) []domain.RetrievedChunk {
	out := cands[:0]
	for _, cand := range cands {
		if cand.Similarity >= floor {
			out = append(out, cand)
		}
	}
	return out
}

// preferRicher keeps the most complete payload when the same chunk
// arrives from signals with uneven metadata (the unscored full-text
// rows carry text but no similarity).
func preferRicher(current, candidate domain.RetrievedChunk) domain.RetrievedChunk {
	if current.Text == "" && candidate.Text != "" {
		current.Text = candidate.Text
	}
	if current.Metadata.Title == "" && candidate.Metadata.Title != "" {
		current.Metadata = candidate.Metadata
	}
	if current.DocumentID == "" && candidate.DocumentID != "" {
		current.DocumentID = candidate.DocumentID
	}
	return current
}

// sortCandidates orders by the given score descending with a stable,
// deterministic tie-break so identical inputs always produce identical
// output order.
func sortCandidates(cands []domain.RetrievedChunk, score func(domain.RetrievedChunk) float64) {
	sort.SliceStable(cands, func(i, j int) bool {
		si, sj := score(cands[i]), score(cands[j])
		if si != sj {
			return si > sj
		}
		if cands[i].DocumentID != cands[j].DocumentID {
			return cands[i].DocumentID < cands[j].DocumentID
		}
		return cands[i].Metadata.ChunkIndex < cands[j].Metadata.ChunkIndex
	})
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
