package usecase

import (
	"testing"

	"github.com/cmtemkin/needham-navigator-sub000/internal/core/domain"
)

func rc(id, docID string, index int, sim float64) domain.RetrievedChunk {
	return domain.RetrievedChunk{
		Chunk: domain.Chunk{
			ID:         id,
			DocumentID: docID,
			Text:       "text of " + id,
			Metadata:   domain.ChunkMetadata{ChunkIndex: index},
		},
		Similarity: sim,
	}
}

func TestMergeKeepsMaximumSimilarity(t *testing.T) {
	a := rc("c1", "d1", 0, 0.50)
	b := rc("c1", "d1", 0, 0.82)
	c := rc("c1", "d1", 0, 0.64)

	merged := mergeCandidates([]domain.RetrievedChunk{a}, []domain.RetrievedChunk{b}, []domain.RetrievedChunk{c})
	if len(merged) != 1 {
		t.Fatalf("expected 1 merged candidate, got %d", len(merged))
	}
	if merged[0].Similarity != 0.82 {
		t.Fatalf("merge must keep the maximum similarity, got %f", merged[0].Similarity)
	}
}

func TestMergeClampsSimilarity(t *testing.T) {
	merged := mergeCandidates([]domain.RetrievedChunk{rc("c1", "d1", 0, 1.7), rc("c2", "d1", 1, -0.2)})
	for _, cand := range merged {
		if cand.Similarity < 0 || cand.Similarity > 1 {
			t.Fatalf("similarity must be clamped to [0,1], got %f", cand.Similarity)
		}
	}
}

func TestMergePrefersRicherPayload(t *testing.T) {
	sparse := rc("c1", "", 0, 0.4)
	sparse.Text = ""
	rich := rc("c1", "d1", 0, 0.3)
	rich.Metadata.Title = "Zoning By-Law"

	merged := mergeCandidates([]domain.RetrievedChunk{sparse}, []domain.RetrievedChunk{rich})
	if merged[0].Text == "" || merged[0].Metadata.Title == "" || merged[0].DocumentID == "" {
		t.Fatalf("merged candidate should keep the richer payload: %+v", merged[0])
	}
	if merged[0].Similarity != 0.4 {
		t.Fatalf("similarity should stay at the maximum, got %f", merged[0].Similarity)
	}
}

func TestApplyFloorDropsWeakCandidates(t *testing.T) {
	cands := []domain.RetrievedChunk{
		rc("c1", "d1", 0, 0.91),
		rc("c2", "d2", 0, 0.349),
		rc("c3", "d3", 0, 0.35),
	}
	kept := applyFloor(cands, 0.35)
	if len(kept) != 2 {
		t.Fatalf("expected 2 candidates at or above the floor, got %d", len(kept))
	}
	for _, cand := range kept {
		if cand.Similarity < 0.35 {
			t.Fatalf("candidate below floor survived: %f", cand.Similarity)
		}
	}
}

func TestSortCandidatesDeterministicTieBreak(t *testing.T) {
	cands := []domain.RetrievedChunk{
		rc("c2", "d2", 0, 0.5),
		rc("c1", "d1", 1, 0.5),
		rc("c0", "d1", 0, 0.5),
	}
	sortCandidates(cands, func(c domain.RetrievedChunk) float64 { return c.Similarity })
	if cands[0].ID != "c0" || cands[1].ID != "c1" || cands[2].ID != "c2" {
		t.Fatalf("ties must break on document id then chunk index, got %s %s %s", cands[0].ID, cands[1].ID, cands[2].ID)
	}
}
