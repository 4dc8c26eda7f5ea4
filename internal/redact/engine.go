package redact

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Match is one identified sensitive span. Offsets are byte offsets into
// the original text and stay valid until Apply rewrites it.
type Match struct {
	ID          string `json:"id"`
	Category    string `json:"category"`
	Original    string `json:"original"`
	StartIndex  int    `json:"start_index"`
	EndIndex    int    `json:"end_index"`
	Replacement string `json:"replacement"`
	Selected    bool   `json:"is_selected"`
}

type compiledPattern struct {
	re              *regexp.Regexp
	useCaptureGroup bool
}

type compiledRule struct {
	category    string
	replacement string
	patterns    []compiledPattern
}

func compileRules(rules []Rule) ([]compiledRule, error) {
	ret := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Category == "" {
			return nil, fmt.Errorf("rule is missing a category")
		}
		if len(rule.Patterns) == 0 {
			return nil, fmt.Errorf("rule %s has no patterns", rule.Category)
		}
		cr := compiledRule{category: rule.Category, replacement: rule.Replacement}
		for _, pattern := range rule.Patterns {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("rule %s: compile pattern %q: %w", rule.Category, pattern, err)
			}
			cr.patterns = append(cr.patterns, compiledPattern{re: re, useCaptureGroup: rule.UseCaptureGroup})
		}
		ret = append(ret, cr)
	}
	return ret, nil
}

// Identify scans text with the given rules and returns the accepted
// matches sorted by start offset. Rules and their patterns run in
// declaration order; a span overlapping an already accepted span is
// dropped, so rule order doubles as category priority. Identical
// (category, original) pairs share one sequence number so a recurring
// name carries the same tag throughout the document.
func Identify(text string, rules []Rule) ([]Match, error) {
	compiled, err := compileRules(rules)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0)
	counters := make(map[string]int)
	assigned := make(map[string]int)

	for _, rule := range compiled {
		for _, pattern := range rule.patterns {
			for _, loc := range pattern.re.FindAllStringSubmatchIndex(text, -1) {
				start, end := loc[0], loc[1]
				if pattern.useCaptureGroup && len(loc) >= 4 && loc[2] >= 0 {
					start, end = loc[2], loc[3]
				}
				if start == end {
					continue
				}
				if overlapsAny(matches, start, end) {
					continue
				}

				original := text[start:end]
				tagKey := rule.category + "\x00" + original
				index, seen := assigned[tagKey]
				if !seen {
					counters[rule.category]++
					index = counters[rule.category]
					assigned[tagKey] = index
				}

				matches = append(matches, Match{
					ID:          fmt.Sprintf("%s-%d-%d", rule.category, index, start),
					Category:    rule.category,
					Original:    original,
					StartIndex:  start,
					EndIndex:    end,
					Replacement: strings.ReplaceAll(rule.replacement, "${index}", strconv.Itoa(index)),
					Selected:    true,
				})
			}
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].StartIndex < matches[j].StartIndex
	})
	return matches, nil
}

func overlapsAny(matches []Match, start, end int) bool {
	for _, m := range matches {
		if start < m.EndIndex && m.StartIndex < end {
			return true
		}
	}
	return false
}

// Apply substitutes every selected match's replacement into text.
// Substitution runs back to front; offsets were computed against the
// original text and variable-length replacements would shift everything
// behind them in any other order.
func Apply(text string, matches []Match) string {
	selected := make([]Match, 0, len(matches))
	for _, m := range matches {
		if m.Selected && m.StartIndex >= 0 && m.EndIndex <= len(text) && m.StartIndex < m.EndIndex {
			selected = append(selected, m)
		}
	}
	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].StartIndex > selected[j].StartIndex
	})

	result := text
	for _, m := range selected {
		result = result[:m.StartIndex] + m.Replacement + result[m.EndIndex:]
	}
	return result
}

// Deselect marks the match with the given id as excluded from Apply
// while keeping it listed (it still shows in reports of all matches).
func Deselect(matches []Match, id string) []Match {
	ret := make([]Match, len(matches))
	copy(ret, matches)
	for i := range ret {
		if ret[i].ID == id {
			ret[i].Selected = false
		}
	}
	return ret
}

// Remove drops the match with the given id entirely; it no longer
// appears in Apply or in any report.
func Remove(matches []Match, id string) []Match {
	ret := make([]Match, 0, len(matches))
	for _, m := range matches {
		if m.ID != id {
			ret = append(ret, m)
		}
	}
	return ret
}
