package usecase

import "github.com/cmtemkin/needham-navigator-sub000/internal/core/domain"

// selectDiverse picks the final result set from relevance-ordered
// candidates. The first pass fills roughly 80% of the slots greedily
// under the per-document cap; the second pass back-fills remaining
// slots preferring sibling chunks (same document, index within 1 of a
// selected chunk) over the next-best unrelated candidate, so adjacent
// passages of a multi-part answer stay together.
func selectDiverse(cands []domain.RetrievedChunk, cfg domain.RetrievalConfig) []domain.RetrievedChunk {
	if len(cands) == 0 {
		return nil
	}
	max := cfg.MaxResults
	if len(cands) < max {
		max = len(cands)
	}

	if cfg.SiblingExpansion == nil || !*cfg.SiblingExpansion {
		return cands[:max]
	}

	firstPass := int(float64(cfg.MaxResults) * 0.8)
	if firstPass < 1 {
		firstPass = 1
	}
	if firstPass > max {
		firstPass = max
	}

	selected := make([]domain.RetrievedChunk, 0, max)
	picked := map[string]struct{}{}
	perDoc := map[string]int{}

	for _, cand := range cands {
		if len(selected) >= firstPass {
			break
		}
		if perDoc[cand.DocumentID] >= cfg.PerDocumentCap {
			continue
		}
		selected = append(selected, cand)
		picked[cand.ID] = struct{}{}
		perDoc[cand.DocumentID]++
	}

	// Second pass: siblings of already-selected chunks first, in
	// relevance order, then whatever ranks next.
	for len(selected) < max {
		next, ok := pickSibling(cands, selected, picked)
		if !ok {
			next, ok = pickNext(cands, picked)
		}
		if !ok {
			break
		}
		selected = append(selected, next)
		picked[next.ID] = struct{}{}
	}
	return selected
}

func pickSibling(cands, selected []domain.RetrievedChunk, picked map[string]struct{}) (domain.RetrievedChunk, bool) {
	for _, cand := range cands {
		if _, done := picked[cand.ID]; done {
			continue
		}
		if isSibling(cand, selected) {
			return cand, true
		}
	}
	return domain.RetrievedChunk{}, false
}

func pickNext(cands []domain.RetrievedChunk, picked map[string]struct{}) (domain.RetrievedChunk, bool) {
	for _, cand := range cands {
		if _, done := picked[cand.ID]; done {
			continue
		}
		return cand, true
	}
	return domain.RetrievedChunk{}, false
}

func isSibling(cand domain.RetrievedChunk, selected []domain.RetrievedChunk) bool {
	for _, sel := range selected {
		if sel.DocumentID != cand.DocumentID {
			continue
		}
		delta := cand.Metadata.ChunkIndex - sel.Metadata.ChunkIndex
		if delta >= -1 && delta <= 1 {
			return true
		}
	}
	return false
}
