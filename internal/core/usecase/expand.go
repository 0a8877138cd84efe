package usecase

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/cmtemkin/needham-navigator-sub000/internal/core/domain"
)

// compiledRules is ExpansionRules with patterns compiled once at
// construction. Pattern errors are configuration errors and surface at
// startup, never per query.
type compiledRules struct {
	synonyms     map[string][]string
	synonymTerms []string
	intents      []compiledIntent
	departments  []compiledDepartment
	typeBoosts   map[domain.ChunkType]float64
}

type compiledIntent struct {
	pattern *regexp.Regexp
	inject  []string
}

type compiledDepartment struct {
	pattern    *regexp.Regexp
	department string
}

func compileRules(rules domain.ExpansionRules) (compiledRules, error) {
	out := compiledRules{
		synonyms:   map[string][]string{},
		typeBoosts: map[domain.ChunkType]float64{},
	}
	for term, related := range rules.Synonyms {
		lowered := strings.ToLower(term)
		out.synonyms[lowered] = related
		out.synonymTerms = append(out.synonymTerms, lowered)
	}
	// Dictionary terms are visited in sorted order so the expanded form
	// is identical across calls for the same query.
	sort.Strings(out.synonymTerms)
	for _, intent := range rules.Intents {
		re, err := regexp.Compile(intent.Pattern)
		if err != nil {
			return compiledRules{}, fmt.Errorf("compile intent pattern %q: %w", intent.Pattern, err)
		}
		out.intents = append(out.intents, compiledIntent{pattern: re, inject: intent.Inject})
	}
	for _, dept := range rules.Departments {
		re, err := regexp.Compile(dept.Pattern)
		if err != nil {
			return compiledRules{}, fmt.Errorf("compile department pattern %q: %w", dept.Pattern, err)
		}
		out.departments = append(out.departments, compiledDepartment{pattern: re, department: dept.Department})
	}
	for chunkType, boost := range rules.TypeBoosts {
		out.typeBoosts[chunkType] = boost
	}
	return out, nil
}

// expandQuery injects synonyms for matched dictionary terms and intent
// keywords for matched question patterns. The result equals the input
// when nothing matched, which callers use to skip a redundant search.
func (r compiledRules) expandQuery(query string) string {
	lowered := strings.ToLower(query)
	var additions []string
	seen := map[string]struct{}{}

	add := func(term string) {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" || strings.Contains(lowered, term) {
			return
		}
		if _, dup := seen[term]; dup {
			return
		}
		seen[term] = struct{}{}
		additions = append(additions, term)
	}

	for _, term := range r.synonymTerms {
		if strings.Contains(lowered, term) {
			for _, syn := range r.synonyms[term] {
				add(syn)
			}
		}
	}
	for _, intent := range r.intents {
		if intent.pattern.MatchString(lowered) {
			for _, kw := range intent.inject {
				add(kw)
			}
		}
	}

	if len(additions) == 0 {
		return query
	}
	return query + " " + strings.Join(additions, " ")
}

// routeDepartment infers the responsible department from the query,
// first match wins. Empty when nothing matched.
func (r compiledRules) routeDepartment(query string) string {
	lowered := strings.ToLower(query)
	for _, dept := range r.departments {
		if dept.pattern.MatchString(lowered) {
			return dept.department
		}
	}
	return ""
}

// DefaultExpansionRules is the built-in municipal dictionary; tenants
// override it from configuration.
func DefaultExpansionRules() domain.ExpansionRules {
	return domain.ExpansionRules{
		Synonyms: map[string][]string{
			"trash":   {"garbage", "refuse", "rubbish", "solid waste"},
			"garbage": {"trash", "refuse"},
			"dog":     {"canine", "leash", "animal control"},
			"pool":    {"swimming pool"},
			"fence":   {"fencing", "barrier"},
			"shed":    {"accessory structure", "outbuilding"},
			"parking": {"vehicle", "off-street parking"},
			"setback": {"yard", "distance", "lot line"},
			"deck":    {"porch", "accessory structure"},
			"water":   {"sewer", "utility"},
		},
		Intents: []domain.IntentRule{
			{Pattern: `when\s+(is|are|does|do)\b.*\b(open|close|pick|collect)`, Inject: []string{"hours", "schedule"}},
			{Pattern: `where\s+(is|are|can|do)\b`, Inject: []string{"address", "location"}},
			{Pattern: `who\s+(do\s+i|should\s+i|can\s+i)\s+(call|contact|email)`, Inject: []string{"department", "contact", "phone"}},
			{Pattern: `how\s+much\b|what\s+(is|are)\s+the\s+(fee|cost|price)`, Inject: []string{"fee", "rate", "cost"}},
			{Pattern: `do\s+i\s+need\s+a\s+permit|permit\s+required`, Inject: []string{"permit", "zoning", "application"}},
			{Pattern: `how\s+do\s+i\b|how\s+to\b`, Inject: []string{"process", "steps", "procedure"}},
		},
		Departments: []domain.DepartmentRule{
			{Pattern: `zoning|setback|variance|lot|district`, Department: "Planning and Community Development"},
			{Pattern: `permit|building|inspection|construction`, Department: "Building"},
			{Pattern: `trash|garbage|recycl|snow|street|sidewalk|water|sewer`, Department: "Public Works"},
			{Pattern: `septic|restaurant|food|health|well`, Department: "Health"},
			{Pattern: `tax|excise|assessment`, Department: "Assessor"},
			{Pattern: `dog|license|vital|marriage|birth`, Department: "Town Clerk"},
		},
		TypeBoosts: map[domain.ChunkType]float64{},
	}
}
