package rule

import (
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/praetorian-inc/aobscan/pkg/types"
)

// FilterConfig specifies include and exclude patterns for rule filtering.
type FilterConfig struct {
	Include []string // Regex patterns - only matching rules included
	Exclude []string // Regex patterns - matching rules excluded
}

// ParsePatterns splits a comma-separated string into individual patterns.
// Patterns are trimmed of whitespace.
func ParsePatterns(patterns string) []string {
	if patterns == "" {
		return []string{}
	}

	parts := strings.Split(patterns, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// Filter applies include and exclude patterns to rule IDs.
// Include is applied first, then exclude.
// Empty include means "include all".
// Patterns use .NET-style syntax, so lookarounds such as
// `aob\.(?!x64).*` are accepted.
func Filter(rules []*types.Rule, config FilterConfig) ([]*types.Rule, error) {
	if len(rules) == 0 {
		return rules, nil
	}

	includeRegexes, err := compileAll(config.Include)
	if err != nil {
		return nil, err
	}
	excludeRegexes, err := compileAll(config.Exclude)
	if err != nil {
		return nil, err
	}

	// Apply include filter
	filtered := rules
	if len(includeRegexes) > 0 {
		filtered = make([]*types.Rule, 0)
		for _, rule := range rules {
			if matchesAny(rule.ID, includeRegexes) {
				filtered = append(filtered, rule)
			}
		}
	}

	// Apply exclude filter
	if len(excludeRegexes) > 0 {
		kept := make([]*types.Rule, 0)
		for _, rule := range filtered {
			if !matchesAny(rule.ID, excludeRegexes) {
				kept = append(kept, rule)
			}
		}
		filtered = kept
	}

	return filtered, nil
}

// SelectRuleset returns the rules a ruleset names, in ruleset order.
func SelectRuleset(rules []*types.Rule, rs *types.Ruleset) ([]*types.Rule, error) {
	byID := make(map[string]*types.Rule, len(rules))
	for _, r := range rules {
		byID[r.ID] = r
	}

	selected := make([]*types.Rule, 0, len(rs.RuleIDs))
	for _, id := range rs.RuleIDs {
		r, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("ruleset %s references unknown rule ID: %s", rs.ID, id)
		}
		selected = append(selected, r)
	}
	return selected, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func compileAll(patterns []string) ([]*regexp2.Regexp, error) {
	regexes := make([]*regexp2.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		re, err := regexp2.Compile(pattern, regexp2.None)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern %q: %w", pattern, err)
		}
		regexes = append(regexes, re)
	}
	return regexes, nil
}

func matchesAny(ruleID string, regexes []*regexp2.Regexp) bool {
	for _, re := range regexes {
		if ok, err := re.MatchString(ruleID); err == nil && ok {
			return true
		}
	}
	return false
}
