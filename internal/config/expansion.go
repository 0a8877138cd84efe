package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cmtemkin/needham-navigator-sub000/internal/core/domain"
	"github.com/cmtemkin/needham-navigator-sub000/internal/core/usecase"
)

// LoadExpansionRules reads the tenant expansion dictionary from a YAML
// file. An empty path means the built-in municipal defaults.
func LoadExpansionRules(path string) (domain.ExpansionRules, error) {
	if path == "" {
		return usecase.DefaultExpansionRules(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.ExpansionRules{}, fmt.Errorf("read expansion rules %s: %w", path, err)
	}

	var rules domain.ExpansionRules
	if err := yaml.Unmarshal(raw, &rules); err != nil {
		return domain.ExpansionRules{}, fmt.Errorf("parse expansion rules %s: %w", path, err)
	}
	return rules, nil
}
