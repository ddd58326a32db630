package prefilter

import (
	"fmt"

	"github.com/cloudflare/ahocorasick"
	"github.com/praetorian-inc/aobscan/pkg/types"
)

// Prefilter uses Aho-Corasick to skip rules that cannot match a blob.
//
// Each rule's keyword is the longest run of concrete bytes in its signature.
// A blob without that run cannot contain a match, so the rule is dropped
// before the anchor scan.
type Prefilter struct {
	matcher        *ahocorasick.Matcher
	keywords       []string                 // keyword at each index
	keywordRules   map[string][]*types.Rule // keyword -> rules needing it
	noKeywordRules []*types.Rule            // rules without a literal (always checked)
}

// New creates a prefilter from rules. It fails if a rule's signature does
// not compile.
func New(rules []*types.Rule) (*Prefilter, error) {
	pf := &Prefilter{
		keywordRules:   make(map[string][]*types.Rule),
		noKeywordRules: make([]*types.Rule, 0),
	}

	keywordSet := make(map[string]bool)
	var dict [][]byte
	for _, rule := range rules {
		sig, err := rule.Compile()
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
		}

		literal := sig.LongestLiteral()
		if len(literal) == 0 {
			pf.noKeywordRules = append(pf.noKeywordRules, rule)
			continue
		}

		keyword := string(literal)
		if !keywordSet[keyword] {
			keywordSet[keyword] = true
			pf.keywords = append(pf.keywords, keyword)
			dict = append(dict, literal)
		}
		pf.keywordRules[keyword] = append(pf.keywordRules[keyword], rule)
	}

	if len(dict) > 0 {
		pf.matcher = ahocorasick.NewMatcher(dict)
	}

	return pf, nil
}

// Filter returns rules that might match content (literal found OR no
// literal defined). It is safe to call from several goroutines.
func (pf *Prefilter) Filter(content []byte) []*types.Rule {
	result := make([]*types.Rule, 0, len(pf.noKeywordRules))
	result = append(result, pf.noKeywordRules...)

	if pf.matcher == nil {
		return result
	}

	// Match keeps per-call counters in the automaton; concurrent scans need
	// the pooled variant.
	hits := pf.matcher.MatchThreadSafe(content)

	seenRules := make(map[*types.Rule]bool)
	for _, hit := range hits {
		keyword := pf.keywords[hit]
		for _, rule := range pf.keywordRules[keyword] {
			if !seenRules[rule] {
				seenRules[rule] = true
				result = append(result, rule)
			}
		}
	}

	return result
}

// Keyword returns the literal the prefilter requires for rule, or nil if
// the rule is always checked.
func (pf *Prefilter) Keyword(rule *types.Rule) []byte {
	for keyword, rules := range pf.keywordRules {
		for _, r := range rules {
			if r == rule {
				return []byte(keyword)
			}
		}
	}
	return nil
}
