package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadRetrievalDefaults(t *testing.T) {
	t.Setenv("RETRIEVAL_MAX_RESULTS", "")
	t.Setenv("RETRIEVAL_FLOOR", "")
	t.Setenv("RETRIEVAL_RERANK_TIMEOUT", "")
	t.Setenv("SIBLING_EXPANSION", "")

	cfg := Load()
	if cfg.RetrievalMaxResults != 10 {
		t.Fatalf("expected default max results 10, got %d", cfg.RetrievalMaxResults)
	}
	if cfg.RetrievalFloor != 0.35 {
		t.Fatalf("expected default floor 0.35, got %f", cfg.RetrievalFloor)
	}
	if cfg.RetrievalRerankTimeout != 3*time.Second {
		t.Fatalf("expected default rerank timeout 3s, got %v", cfg.RetrievalRerankTimeout)
	}
	if !cfg.SiblingExpansion {
		t.Fatal("sibling expansion should default on")
	}
	if cfg.CrossEncoderEnabled {
		t.Fatal("cross encoder should default off without a rerank service")
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("RETRIEVAL_MAX_RESULTS", "5")
	t.Setenv("RETRIEVAL_FLOOR", "0.5")
	t.Setenv("RETRIEVAL_RERANK_TIMEOUT", "750ms")
	t.Setenv("CROSS_ENCODER_ENABLED", "true")
	t.Setenv("RATE_LIMIT_RPS", "2.5")

	cfg := Load()
	if cfg.RetrievalMaxResults != 5 {
		t.Fatalf("expected max results 5, got %d", cfg.RetrievalMaxResults)
	}
	if cfg.RetrievalFloor != 0.5 {
		t.Fatalf("expected floor 0.5, got %f", cfg.RetrievalFloor)
	}
	if cfg.RetrievalRerankTimeout != 750*time.Millisecond {
		t.Fatalf("expected rerank timeout 750ms, got %v", cfg.RetrievalRerankTimeout)
	}
	if !cfg.CrossEncoderEnabled {
		t.Fatal("expected cross encoder enabled")
	}
	if cfg.RateLimitRPS != 2.5 {
		t.Fatalf("expected rate limit 2.5, got %f", cfg.RateLimitRPS)
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("RETRIEVAL_MAX_RESULTS", "plenty")
	t.Setenv("RETRIEVAL_FLOOR", "low")
	t.Setenv("REWRITE_ENABLED", "yep")

	cfg := Load()
	if cfg.RetrievalMaxResults != 10 || cfg.RetrievalFloor != 0.35 || !cfg.RewriteEnabled {
		t.Fatalf("malformed values should fall back to defaults: %+v", cfg)
	}
}

func TestLoadExpansionRulesDefaults(t *testing.T) {
	rules, err := LoadExpansionRules("")
	if err != nil {
		t.Fatalf("LoadExpansionRules: %v", err)
	}
	if len(rules.Synonyms) == 0 || len(rules.Departments) == 0 {
		t.Fatal("built-in rules should carry synonyms and department routes")
	}
}

func TestLoadExpansionRulesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	body := `synonyms:
  trash: ["garbage"]
intents:
  - pattern: 'how\s+much'
    inject: ["fee"]
departments:
  - pattern: 'zoning'
    department: 'Planning and Community Development'
type_boosts:
  table: 0.15
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write rules file: %v", err)
	}

	rules, err := LoadExpansionRules(path)
	if err != nil {
		t.Fatalf("LoadExpansionRules: %v", err)
	}
	if got := rules.Synonyms["trash"]; len(got) != 1 || got[0] != "garbage" {
		t.Fatalf("synonyms not parsed: %v", rules.Synonyms)
	}
	if len(rules.Intents) != 1 || rules.Intents[0].Inject[0] != "fee" {
		t.Fatalf("intents not parsed: %+v", rules.Intents)
	}
	if rules.TypeBoosts["table"] != 0.15 {
		t.Fatalf("type boosts not parsed: %v", rules.TypeBoosts)
	}
}

func TestLoadExpansionRulesMissingFile(t *testing.T) {
	if _, err := LoadExpansionRules("/nonexistent/rules.yaml"); err == nil {
		t.Fatal("missing file should be an error")
	}
}
