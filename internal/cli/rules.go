package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// rulesFile is the TOML shape of a replacement rules file:
//
//	[replacements]
//	"Old Name" = "New Name"
//	"2023" = "2024"
type rulesFile struct {
	Replacements map[string]string `toml:"replacements"`
}

// loadRules merges rules from an optional TOML file with inline old=new
// pairs. Inline pairs win on conflict.
func loadRules(path string, pairs []string) (map[string]string, error) {
	rules := make(map[string]string)

	if path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("rules file not found: %s", path)
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read rules file: %w", err)
		}
		var doc rulesFile
		if err := toml.Unmarshal(content, &doc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rules file: %w", err)
		}
		for from, to := range doc.Replacements {
			rules[from] = to
		}
	}

	for _, pair := range pairs {
		from, to, ok := strings.Cut(pair, "=")
		if !ok || from == "" {
			return nil, fmt.Errorf("invalid --set value %q, want old=new", pair)
		}
		rules[from] = to
	}

	return rules, nil
}
