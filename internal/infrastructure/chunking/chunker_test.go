package chunking

import (
	"fmt"
	"strings"
	"testing"

	"github.com/cmtemkin/needham-navigator-sub000/internal/core/domain"
)

// wordTokenizer treats whitespace-separated words as tokens, so budget
// and overlap arithmetic is exact and readable in tests.
type wordTokenizer struct{}

func (wordTokenizer) Count(text string) int {
	return len(strings.Fields(text))
}

func (wordTokenizer) Tail(text string, n int) string {
	fields := strings.Fields(text)
	if len(fields) <= n {
		return text
	}
	return strings.Join(fields[len(fields)-n:], " ")
}

func words(prefix string, n int) string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return strings.Join(out, " ")
}

func TestDetectType(t *testing.T) {
	cases := []struct {
		name    string
		title   string
		content string
		want    domain.DocumentType
	}{
		{"zoning by title", "Town of Needham Zoning By-Law", "", domain.TypeZoning},
		{"fees by content", "Building Department", "Schedule of Fees for fiscal year 2025", domain.TypeFees},
		{"minutes", "Select Board Meeting Minutes", "", domain.TypeMinutes},
		{"planning", "Planning Board", "site plan review decision", domain.TypePlanning},
		{"health", "Regulations", "The Board of Health adopts the following", domain.TypeHealth},
		{"budget", "FY26 Annual Budget", "", domain.TypeBudget},
		{"public works", "DPW Notice", "trash collection delayed one day", domain.TypePublicWorks},
		{"fallback", "Community Newsletter", "events around town", domain.TypeGeneral},
		{"first match wins", "Zoning By-Law fee schedule", "", domain.TypeZoning},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DetectType(tc.title, tc.content); got != tc.want {
				t.Fatalf("DetectType() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestSplitHeadingSectionsKeepsIntroduction(t *testing.T) {
	text := "This document governs land use.\n\n# Section 4.1 Setbacks\n\nFront setbacks apply.\n\n## 4.2 Height\n\nHeight limits apply."
	sections := splitHeadingSections(text)

	if len(sections) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(sections))
	}
	if sections[0].title != "Introduction" {
		t.Fatalf("expected preamble retained as Introduction, got %q", sections[0].title)
	}
	if sections[1].number != "4.1" {
		t.Fatalf("expected section number 4.1, got %q", sections[1].number)
	}
	if sections[2].number != "4.2" {
		t.Fatalf("expected section number 4.2, got %q", sections[2].number)
	}
}

func TestSplitHeadingSectionsNoHeadingsFallsBack(t *testing.T) {
	text := "para one\n\npara two"
	sections := splitHeadingSections(text)
	if len(sections) != 1 || sections[0].text != text {
		t.Fatalf("expected single untitled section, got %+v", sections)
	}
}

func TestSplitTableAtomicExtractsWholeTables(t *testing.T) {
	text := "Permit fees below.\n\n| Permit | Fee |\n|---|---|\n| Fence | $50 |\n| Pool | $125 |\n\nChecks payable to the town."
	sections := splitTableAtomic(text)

	if len(sections) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(sections))
	}
	if !sections[1].isTable {
		t.Fatalf("expected middle section to be a table")
	}
	if !strings.Contains(sections[1].text, "| Pool | $125 |") {
		t.Fatalf("table rows must stay together, got %q", sections[1].text)
	}
	if sections[0].isTable || sections[2].isTable {
		t.Fatalf("narrative sections must not be marked as tables")
	}
}

func TestPackerRespectsBudgetAndOverlap(t *testing.T) {
	p := packer{tok: wordTokenizer{}, policy: Policy{MaxTokens: 20, OverlapTokens: 5}}
	sec := section{text: strings.Join([]string{
		words("a", 8), words("b", 8), words("c", 8), words("d", 8), words("e", 8),
	}, "\n\n")}

	chunks := p.packSection(sec)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	tok := wordTokenizer{}
	for i, chunk := range chunks {
		if !chunk.oversize && tok.Count(chunk.text) > 20 {
			t.Fatalf("chunk %d exceeds budget: %d tokens", i, tok.Count(chunk.text))
		}
	}
	for i := 1; i < len(chunks); i++ {
		overlap := tok.Tail(chunks[i-1].text, 5)
		if !strings.HasPrefix(chunks[i].text, overlap) {
			t.Fatalf("chunk %d does not open with the previous chunk's 5-token tail", i)
		}
	}
}

func TestOversizeCountsBudgetOverflow(t *testing.T) {
	c := New(wordTokenizer{})
	policy := c.PolicyFor(domain.TypeGeneral)

	small := domain.Chunk{Text: words("s", 5)}
	big := domain.Chunk{Text: words("g", policy.MaxTokens+1)}
	if got := c.Oversize(domain.TypeGeneral, []domain.Chunk{small, big, small}); got != 1 {
		t.Fatalf("Oversize = %d, want 1", got)
	}
}

func TestPackerAcceptsOversizeParagraph(t *testing.T) {
	p := packer{tok: wordTokenizer{}, policy: Policy{MaxTokens: 10, OverlapTokens: 2}}
	big := words("x", 25)
	chunks := p.packSection(section{text: big + "\n\n" + words("y", 4)})

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if !chunks[0].oversize {
		t.Fatalf("expected first chunk flagged oversize")
	}
	if !strings.Contains(chunks[0].text, "x24") {
		t.Fatalf("oversize paragraph must not be truncated")
	}
}

func TestPackerTableNeverSplit(t *testing.T) {
	p := packer{tok: wordTokenizer{}, policy: Policy{MaxTokens: 5, OverlapTokens: 1}}
	table := section{text: words("row", 40), isTable: true}
	chunks := p.packSection(table)

	if len(chunks) != 1 {
		t.Fatalf("table section must stay atomic, got %d chunks", len(chunks))
	}
	if !chunks[0].oversize {
		t.Fatalf("oversize table should be flagged")
	}
}

func TestChunkerIndexContiguityAndHashes(t *testing.T) {
	c := New(wordTokenizer{})
	doc := &domain.Document{ID: "doc-1", Title: "Zoning By-Law", Type: domain.TypeZoning, URL: "https://example.org/zoning"}

	var sb strings.Builder
	sb.WriteString("# 1. General\n\n")
	for i := 0; i < 12; i++ {
		sb.WriteString(words(fmt.Sprintf("p%d-", i), 200))
		sb.WriteString("\n\n")
	}
	chunks := c.Chunk(doc, sb.String())
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	seen := map[string]struct{}{}
	for i, chunk := range chunks {
		if chunk.Metadata.ChunkIndex != i {
			t.Fatalf("chunk %d has index %d", i, chunk.Metadata.ChunkIndex)
		}
		if chunk.Metadata.TotalChunks != len(chunks) {
			t.Fatalf("chunk %d reports total %d, want %d", i, chunk.Metadata.TotalChunks, len(chunks))
		}
		if chunk.Metadata.ContentHash == "" || chunk.ID == "" {
			t.Fatalf("chunk %d missing hash or id", i)
		}
		if _, dup := seen[chunk.ID]; dup {
			t.Fatalf("duplicate chunk id %s", chunk.ID)
		}
		seen[chunk.ID] = struct{}{}
	}

	if contentHash(chunks[0].Text) != chunks[0].Metadata.ContentHash {
		t.Fatalf("content hash must be a pure function of chunk text")
	}
}

func TestChunkerCoverageNoContentLoss(t *testing.T) {
	c := New(wordTokenizer{})
	doc := &domain.Document{ID: "doc-2", Title: "General By-Laws", Type: domain.TypeBylaw}

	paras := []string{words("alpha", 60), words("beta", 60), words("gamma", 60), words("delta", 60)}
	text := "# Article 1\n\n" + strings.Join(paras, "\n\n")

	chunks := c.Chunk(doc, text)
	joined := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		joined = append(joined, chunk.Text)
	}
	all := strings.Join(joined, "\n")
	for _, para := range paras {
		if !strings.Contains(all, para) {
			t.Fatalf("paragraph lost during chunking: %q...", para[:20])
		}
	}
}

func TestChunkerEmptyInput(t *testing.T) {
	c := New(wordTokenizer{})
	doc := &domain.Document{ID: "doc-3", Title: "Empty", Type: domain.TypeGeneral}
	if chunks := c.Chunk(doc, "   \n\n  "); len(chunks) != 0 {
		t.Fatalf("expected zero chunks for blank input, got %d", len(chunks))
	}
}

func TestChunkerZoningScenario(t *testing.T) {
	c := New(wordTokenizer{})
	doc := &domain.Document{ID: "doc-z", Title: "Zoning By-Law", Type: domain.TypeZoning}

	// ~3,500 tokens across two headed sections under the 1024/256
	// zoning policy should land on 3-4 chunks.
	var sb strings.Builder
	sb.WriteString("# 4.1 Setbacks\n\n")
	for i := 0; i < 7; i++ {
		sb.WriteString(words(fmt.Sprintf("s%d-", i), 250))
		sb.WriteString("\n\n")
	}
	sb.WriteString("# 4.2 Height\n\n")
	for i := 0; i < 7; i++ {
		sb.WriteString(words(fmt.Sprintf("h%d-", i), 250))
		sb.WriteString("\n\n")
	}

	chunks := c.Chunk(doc, sb.String())
	if len(chunks) < 3 || len(chunks) > 4 {
		t.Fatalf("expected 3-4 chunks, got %d", len(chunks))
	}

	tok := wordTokenizer{}
	for i, chunk := range chunks {
		if tok.Count(chunk.Text) > 1024 {
			t.Fatalf("chunk %d exceeds zoning budget", i)
		}
	}

	// Consecutive chunks within a section share the 256-token overlap.
	first, second := chunks[0].Text, chunks[1].Text
	if !strings.HasPrefix(second, tok.Tail(first, 256)) {
		t.Fatalf("second chunk must open with the first chunk's 256-token tail")
	}
}

func TestAnnotations(t *testing.T) {
	c := New(wordTokenizer{})
	doc := &domain.Document{ID: "doc-a", Title: "Zoning By-Law", Type: domain.TypeZoning, Department: "Planning"}
	text := "# 5.2 Accessory Uses\n\nSetback requirements in the SRB district follow §5.1 and Chapter 3. Amended: June 10, 2023. A special permit is required for pools in any Single Residence District."

	chunks := c.Chunk(doc, text)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	meta := chunks[0].Metadata

	if meta.ChunkType != domain.ChunkRegulation {
		t.Fatalf("zoning text should be a regulation chunk, got %s", meta.ChunkType)
	}
	wantRefs := []string{"chapter 3", "§5.1"}
	for _, ref := range wantRefs {
		if !contains(meta.CrossReferences, ref) {
			t.Fatalf("missing cross reference %q in %v", ref, meta.CrossReferences)
		}
	}
	if !contains(meta.AppliesTo, "SRB") {
		t.Fatalf("missing zone code SRB in %v", meta.AppliesTo)
	}
	if !contains(meta.AppliesTo, "single residence district") {
		t.Fatalf("missing district name in %v", meta.AppliesTo)
	}
	if !contains(meta.Keywords, "setback") {
		t.Fatalf("missing keyword setback in %v", meta.Keywords)
	}
	if meta.LastAmended != "June 10, 2023" {
		t.Fatalf("expected amended date, got %q", meta.LastAmended)
	}
	if meta.SectionNumber != "5.2" {
		t.Fatalf("expected section number 5.2, got %q", meta.SectionNumber)
	}
}

func TestInferChunkType(t *testing.T) {
	cases := []struct {
		table   bool
		docType domain.DocumentType
		want    domain.ChunkType
	}{
		{true, domain.TypeZoning, domain.ChunkTable},
		{false, domain.TypeZoning, domain.ChunkRegulation},
		{false, domain.TypeHealth, domain.ChunkRegulation},
		{false, domain.TypePermits, domain.ChunkProcedureStep},
		{false, domain.TypeMinutes, domain.ChunkMeetingItem},
		{false, domain.TypeFees, domain.ChunkFinancialData},
		{false, domain.TypeGeneral, domain.ChunkInformational},
	}
	for _, tc := range cases {
		if got := inferChunkType(tc.table, tc.docType); got != tc.want {
			t.Fatalf("inferChunkType(%v, %s) = %s, want %s", tc.table, tc.docType, got, tc.want)
		}
	}
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
