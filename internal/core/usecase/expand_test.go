package usecase

import (
	"strings"
	"testing"

	"github.com/cmtemkin/needham-navigator-sub000/internal/core/domain"
)

func TestExpandQuerySynonyms(t *testing.T) {
	rules, err := compileRules(DefaultExpansionRules())
	if err != nil {
		t.Fatalf("compileRules: %v", err)
	}

	got := rules.expandQuery("trash pickup day")
	for _, want := range []string{"garbage", "refuse"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expanded query %q missing synonym %q", got, want)
		}
	}
	if !strings.HasPrefix(got, "trash pickup day") {
		t.Fatalf("expansion must preserve the original query prefix, got %q", got)
	}
}

func TestExpandQueryIsDeterministic(t *testing.T) {
	rules, err := compileRules(DefaultExpansionRules())
	if err != nil {
		t.Fatalf("compileRules: %v", err)
	}

	// Hits many dictionary terms at once; the injected synonyms must
	// come out in the same order on every call.
	query := "dog pool fence shed parking water"
	first := rules.expandQuery(query)
	if first == query {
		t.Fatalf("expected expansion for %q", query)
	}
	for i := 0; i < 200; i++ {
		if got := rules.expandQuery(query); got != first {
			t.Fatalf("expansion not deterministic:\n%q\n%q", first, got)
		}
	}
}

func TestExpandQueryIntent(t *testing.T) {
	rules, err := compileRules(DefaultExpansionRules())
	if err != nil {
		t.Fatalf("compileRules: %v", err)
	}

	got := rules.expandQuery("do I need a permit for a fence")
	for _, want := range []string{"zoning", "application"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expanded query %q missing intent keyword %q", got, want)
		}
	}
}

func TestExpandQueryNoMatchReturnsInput(t *testing.T) {
	rules, err := compileRules(DefaultExpansionRules())
	if err != nil {
		t.Fatalf("compileRules: %v", err)
	}

	const q = "article seventeen appropriation"
	if got := rules.expandQuery(q); got != q {
		t.Fatalf("no-match expansion must return the input unchanged, got %q", got)
	}
}

func TestExpandQuerySkipsTermsAlreadyPresent(t *testing.T) {
	rules, err := compileRules(DefaultExpansionRules())
	if err != nil {
		t.Fatalf("compileRules: %v", err)
	}

	got := rules.expandQuery("trash and garbage collection")
	if strings.Count(strings.ToLower(got), "garbage") != 1 {
		t.Fatalf("terms already in the query must not be injected again: %q", got)
	}
}

func TestRouteDepartmentFirstMatchWins(t *testing.T) {
	rules, err := compileRules(DefaultExpansionRules())
	if err != nil {
		t.Fatalf("compileRules: %v", err)
	}

	cases := []struct {
		query string
		want  string
	}{
		{"setback requirements for a shed", "Planning and Community Development"},
		{"building permit inspection", "Building"},
		{"when is trash collected", "Public Works"},
		{"septic system upgrade", "Health"},
		{"motor vehicle excise tax", "Assessor"},
		{"renew my dog license", "Town Clerk"},
		{"town meeting warrant", ""},
	}
	for _, tc := range cases {
		if got := rules.routeDepartment(tc.query); got != tc.want {
			t.Errorf("routeDepartment(%q) = %q, want %q", tc.query, got, tc.want)
		}
	}
}

func TestCompileRulesRejectsBadPattern(t *testing.T) {
	_, err := compileRules(domain.ExpansionRules{
		Intents: []domain.IntentRule{{Pattern: `when\s+(is`, Inject: []string{"hours"}}},
	})
	if err == nil {
		t.Fatal("expected an error for an invalid intent pattern")
	}
}
