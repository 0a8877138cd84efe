package chunking

import (
	"regexp"

	"github.com/cmtemkin/needham-navigator-sub000/internal/core/domain"
)

// Document-type detection is an ordered list of (pattern, type) pairs
// evaluated first-match-wins against the title plus the head of the
// content. No match falls through to the general type.
type typeRule struct {
	pattern *regexp.Regexp
	docType domain.DocumentType
}

const detectionWindow = 2000

var typeRules = []typeRule{
	{regexp.MustCompile(`(?i)zoning\s+(by-?law|ordinance|regulation)|land\s+use\s+regulation|dimensional\s+requirements|zoning\s+map`), domain.TypeZoning},
	{regexp.MustCompile(`(?i)general\s+by-?laws?|town\s+by-?laws?|code\s+of\s+by-?laws`), domain.TypeBylaw},
	{regexp.MustCompile(`(?i)permit|license\s+application|variance|special\s+permit|certificate\s+of\s+occupancy`), domain.TypePermits},
	{regexp.MustCompile(`(?i)fee\s+schedule|schedule\s+of\s+fees|rates?\s+and\s+charges`), domain.TypeFees},
	{regexp.MustCompile(`(?i)annual\s+budget|operating\s+budget|capital\s+(budget|plan)|appropriation`), domain.TypeBudget},
	{regexp.MustCompile(`(?i)board\s+of\s+health|health\s+regulation|sanitary|food\s+establishment|septic`), domain.TypeHealth},
	{regexp.MustCompile(`(?i)public\s+works|dpw|street\s+opening|snow\s+removal|water\s+and\s+sewer|trash\s+collection`), domain.TypePublicWorks},
	{regexp.MustCompile(`(?i)meeting\s+minutes|minutes\s+of\s+the|town\s+meeting|select\s+board\s+meeting`), domain.TypeMinutes},
	{regexp.MustCompile(`(?i)planning\s+board|site\s+plan\s+review|subdivision|master\s+plan`), domain.TypePlanning},
}

// DetectType classifies a document from its title and leading content.
func DetectType(title, content string) domain.DocumentType {
	head := content
	if len(head) > detectionWindow {
		head = head[:detectionWindow]
	}
	sample := title + "\n" + head

	for _, rule := range typeRules {
		if rule.pattern.MatchString(sample) {
			return rule.docType
		}
	}
	return domain.TypeGeneral
}
