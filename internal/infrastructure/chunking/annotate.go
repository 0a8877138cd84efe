package chunking

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"

	"github.com/cmtemkin/needham-navigator-sub000/internal/core/domain"
)

var crossRefPatterns = []*regexp.Regexp{
	regexp.MustCompile(`§\s*\d+(?:\.\d+)*`),
	regexp.MustCompile(`(?i)\bchapter\s+\d+\b`),
	regexp.MustCompile(`(?i)\barticle\s+(?:[IVXLC]+|\d+)(?:\s+of\s+the\s+[A-Z][A-Za-z ]*?by-?laws)?`),
	regexp.MustCompile(`(?i)\bsection\s+\d+(?:[.-]\d+)*\b`),
}

// keywordFamilies are the domain term patterns whose matches populate
// chunk keywords. Family membership is not recorded, only the terms.
var keywordFamilies = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bsetbacks?\b|floor\s+area\s+ratio|\bFAR\b|height\s+limits?|lot\s+coverage|\bfrontage\b`),
	regexp.MustCompile(`(?i)\bpermits?\b|\bvariances?\b|\bwaivers?\b|special\s+permit`),
	regexp.MustCompile(`(?i)\bresidential\b|\bcommercial\b|\bindustrial\b`),
	regexp.MustCompile(`(?i)\bfees?\b|\bcosts?\b|\brates?\b|\bcharges?\b`),
	regexp.MustCompile(`(?i)\bdeadlines?\b|\bhours\b|\bschedules?\b`),
}

// zoneCodes is the town's fixed short-code list for zoning districts.
var zoneCodes = []string{
	"SRA", "SRB", "SRC", "GR", "AR-1", "AR-2",
	"BUS", "CB", "IND-1", "IND-2", "MU-1",
}

var zoneCodeRes = compileZoneCodes(zoneCodes)

func compileZoneCodes(codes []string) map[string]*regexp.Regexp {
	out := make(map[string]*regexp.Regexp, len(codes))
	for _, code := range codes {
		out[code] = regexp.MustCompile(`\b` + regexp.QuoteMeta(code) + `\b`)
	}
	return out
}

var zoneDistrictRe = regexp.MustCompile(`(?i)\b(?:single|general|rural)\s+residence\s+district|\bbusiness\s+district|\bindustrial\s+district`)

var (
	effectiveDateRe = regexp.MustCompile(`(?i)effective(?:\s+date)?[:\s]+(?:as\s+of\s+)?([A-Z][a-z]+\s+\d{1,2},\s+\d{4}|\d{1,2}/\d{1,2}/\d{4})`)
	amendedDateRe   = regexp.MustCompile(`(?i)(?:last\s+)?amended[:\s]+([A-Z][a-z]+\s+\d{1,2},\s+\d{4}|\d{1,2}/\d{1,2}/\d{4})`)
	documentDateRe  = regexp.MustCompile(`\b[A-Z][a-z]+\s+\d{1,2},\s+(?:19|20)\d{2}\b`)
)

func findCrossReferences(text string) []string {
	set := map[string]struct{}{}
	for _, re := range crossRefPatterns {
		for _, m := range re.FindAllString(text, -1) {
			set[normalizeTerm(m)] = struct{}{}
		}
	}
	return sortedSet(set)
}

func findKeywords(text string) []string {
	set := map[string]struct{}{}
	for _, re := range keywordFamilies {
		for _, m := range re.FindAllString(text, -1) {
			set[normalizeTerm(m)] = struct{}{}
		}
	}
	return sortedSet(set)
}

func findZoneCodes(text string) []string {
	set := map[string]struct{}{}
	for code, re := range zoneCodeRes {
		if re.MatchString(text) {
			set[code] = struct{}{}
		}
	}
	for _, m := range zoneDistrictRe.FindAllString(text, -1) {
		set[normalizeTerm(m)] = struct{}{}
	}
	return sortedSet(set)
}

// inferChunkType derives the chunk type: tables win outright, then the
// owning document's type decides.
func inferChunkType(containsTable bool, docType domain.DocumentType) domain.ChunkType {
	if containsTable {
		return domain.ChunkTable
	}
	switch docType {
	case domain.TypeZoning, domain.TypeBylaw, domain.TypeHealth:
		return domain.ChunkRegulation
	case domain.TypePermits:
		return domain.ChunkProcedureStep
	case domain.TypeMinutes:
		return domain.ChunkMeetingItem
	case domain.TypeBudget, domain.TypeFees:
		return domain.ChunkFinancialData
	default:
		return domain.ChunkInformational
	}
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func firstMatchGroup(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if len(m) > 1 {
		return m[1]
	}
	return ""
}

func normalizeTerm(term string) string {
	return strings.Join(strings.Fields(strings.ToLower(term)), " ")
}

func sortedSet(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for term := range set {
		out = append(out, term)
	}
	sort.Strings(out)
	return out
}
