package redact

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed ruleset.schema.json
var rulesetSchema []byte

var jsUnicodeEscape = regexp.MustCompile(`\\u([0-9a-fA-F]{4})`)

// translatePattern rewrites JavaScript-style \uXXXX escapes into the
// \x{XXXX} form RE2 understands. Rulesets written against the original
// browser tool carry CJK ranges in the JS dialect.
func translatePattern(pattern string) string {
	return jsUnicodeEscape.ReplaceAllString(pattern, `\x{$1}`)
}

// LoadRuleset parses a user-supplied JSON ruleset. The document is
// validated against the embedded schema first, then every pattern is
// translated and compiled so a broken regex is rejected at load time,
// not in the middle of an identify call.
func LoadRuleset(data []byte) ([]Rule, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("ruleset.schema.json", bytes.NewReader(rulesetSchema)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("ruleset.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("parse ruleset: %w", err)
	}
	if err := schema.Validate(generic); err != nil {
		return nil, fmt.Errorf("ruleset does not match schema: %w", err)
	}

	var rules []Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("decode ruleset: %w", err)
	}

	for i := range rules {
		for j, pattern := range rules[i].Patterns {
			rules[i].Patterns[j] = translatePattern(pattern)
		}
	}
	if _, err := compileRules(rules); err != nil {
		return nil, err
	}
	return rules, nil
}
