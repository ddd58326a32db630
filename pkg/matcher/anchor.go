package matcher

import (
	"fmt"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/praetorian-inc/aobscan/pkg/prefilter"
	"github.com/praetorian-inc/aobscan/pkg/signature"
	"github.com/praetorian-inc/aobscan/pkg/types"
	"golang.org/x/sync/errgroup"
)

const parallelThreshold = 64 * 1024 // bytes

type compiledRule struct {
	rule *types.Rule
	sig  *signature.Signature
	sid  string // rule structural ID, computed when the rule lacks one
}

// AnchorMatcher implements Matcher with the first-byte anchor scan.
//
// Every rule is compiled once. For each blob, the prefilter drops rules whose
// longest literal is absent, and each remaining rule is scanned repeatedly:
// after a match at i, the next scan starts at i+1, so overlapping matches are
// reported.
//
// Thread Safety: compiled signatures are read-only after New and the
// prefilter is safe for concurrent use, so Match may be called from several
// goroutines at once.
type AnchorMatcher struct {
	rules        []compiledRule
	pf           *prefilter.Prefilter
	contextBytes int
	maxMatches   int
	dedupe       bool
	workers      int
}

// NewAnchor compiles cfg.Rules. It fails if there are no rules, if a
// signature does not compile, or if a signature has no concrete byte.
func NewAnchor(cfg Config) (*AnchorMatcher, error) {
	if len(cfg.Rules) == 0 {
		return nil, fmt.Errorf("no rules provided")
	}

	m := &AnchorMatcher{
		rules:        make([]compiledRule, 0, len(cfg.Rules)),
		contextBytes: max(cfg.ContextBytes, 0),
		maxMatches:   max(cfg.MaxMatchesPerRule, 0),
		dedupe:       cfg.Dedupe,
		workers:      cfg.Workers,
	}
	if m.workers <= 0 {
		m.workers = runtime.NumCPU()
	}

	for _, rule := range cfg.Rules {
		sig, err := rule.Compile()
		if err != nil {
			return nil, fmt.Errorf("failed to compile signature %q for rule %s: %w", rule.Signature, rule.ID, err)
		}
		if _, ok := sig.FirstByte().Index(); !ok {
			return nil, fmt.Errorf("rule %s: %w", rule.ID, signature.ErrNoAnchor)
		}
		sid := rule.StructuralID
		if sid == "" {
			sid = rule.ComputeStructuralID()
		}
		m.rules = append(m.rules, compiledRule{rule: rule, sig: sig, sid: sid})
	}

	pf, err := prefilter.New(cfg.Rules)
	if err != nil {
		return nil, err
	}
	m.pf = pf

	return m, nil
}

// Rules returns the loaded rules in configuration order.
func (m *AnchorMatcher) Rules() []*types.Rule {
	out := make([]*types.Rule, 0, len(m.rules))
	for _, cr := range m.rules {
		out = append(out, cr.rule)
	}
	return out
}

// Match scans content against all loaded rules.
func (m *AnchorMatcher) Match(content []byte) ([]*types.Match, error) {
	return m.MatchWithBlobID(content, types.ComputeBlobID(content))
}

// MatchWithBlobID scans content with a known BlobID.
func (m *AnchorMatcher) MatchWithBlobID(content []byte, blobID types.BlobID) ([]*types.Match, error) {
	result, err := m.MatchDetailed(content, blobID)
	if err != nil {
		return nil, err
	}
	return result.Matches, nil
}

// MatchDetailed scans content and reports per-rule statistics alongside the
// matches.
func (m *AnchorMatcher) MatchDetailed(content []byte, blobID types.BlobID) (*MatchResult, error) {
	candidates := m.candidates(content)

	perRule := make([][]*types.Match, len(candidates))
	stats := make([]RuleStat, len(candidates))

	scanOne := func(i int) error {
		start := time.Now()
		matches, truncated, err := m.matchRule(content, blobID, candidates[i])
		if err != nil {
			return err
		}
		perRule[i] = matches
		stats[i] = RuleStat{
			RuleID:   candidates[i].rule.ID,
			Status:   RuleCompleted,
			Duration: time.Since(start),
			Matches:  len(matches),
		}
		if truncated {
			stats[i].Status = RuleTruncated
		}
		return nil
	}

	if len(content) >= parallelThreshold && len(candidates) > 1 {
		var g errgroup.Group
		g.SetLimit(m.workers)
		for i := range candidates {
			g.Go(func() error { return scanOne(i) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i := range candidates {
			if err := scanOne(i); err != nil {
				return nil, err
			}
		}
	}

	result := &MatchResult{
		RuleStats: make(map[string]RuleStat, len(m.rules)),
		Summary:   ResultSummary{TotalRules: len(m.rules)},
	}
	for _, cr := range m.rules {
		result.RuleStats[cr.rule.ID] = RuleStat{RuleID: cr.rule.ID, Status: RuleSkipped}
	}
	for _, st := range stats {
		result.RuleStats[st.RuleID] = st
	}
	for _, st := range result.RuleStats {
		switch st.Status {
		case RuleCompleted:
			result.Summary.CompletedRules++
		case RuleTruncated:
			result.Summary.TruncatedRules++
		case RuleSkipped:
			result.Summary.SkippedRules++
		}
	}

	var all []*types.Match
	for _, matches := range perRule {
		all = append(all, matches...)
	}
	slices.SortFunc(all, compareMatches)

	if m.dedupe {
		d := NewContentDeduplicator()
		kept := all[:0]
		for _, match := range all {
			if !d.Seen(match) {
				kept = append(kept, match)
			}
		}
		all = kept
	}

	result.Matches = all
	return result, nil
}

// Close releases resources. The anchor matcher holds none.
func (m *AnchorMatcher) Close() error {
	return nil
}

// candidates returns the compiled rules the prefilter keeps, in
// configuration order.
func (m *AnchorMatcher) candidates(content []byte) []compiledRule {
	kept := make(map[*types.Rule]bool)
	for _, rule := range m.pf.Filter(content) {
		kept[rule] = true
	}

	out := make([]compiledRule, 0, len(kept))
	for _, cr := range m.rules {
		if kept[cr.rule] {
			out = append(out, cr)
		}
	}
	return out
}

// matchRule finds every window of content matching one rule. truncated is
// true when the per-rule limit stopped the scan.
func (m *AnchorMatcher) matchRule(content []byte, blobID types.BlobID, cr compiledRule) (matches []*types.Match, truncated bool, err error) {
	n := cr.sig.Len()
	for cursor := 0; cursor+n <= len(content); {
		idx, err := cr.sig.Index(content[cursor:])
		if err != nil {
			return nil, false, fmt.Errorf("rule %s: %w", cr.rule.ID, err)
		}
		if idx < 0 {
			break
		}

		start := cursor + idx
		matches = append(matches, buildMatch(blobID, cr, content, start, m.contextBytes))
		if m.maxMatches > 0 && len(matches) >= m.maxMatches {
			return matches, true, nil
		}
		cursor = start + 1
	}
	return matches, false, nil
}

// buildMatch constructs a types.Match for the window content[start:start+L].
func buildMatch(blobID types.BlobID, cr compiledRule, content []byte, start, contextBytes int) *types.Match {
	end := start + cr.sig.Len()
	snippet := types.NewSnippet(content, start, end, contextBytes)

	result := &types.Match{
		BlobID:   blobID,
		RuleID:   cr.rule.ID,
		RuleName: cr.rule.Name,
		Location: types.Location{
			Offset: types.OffsetSpan{
				Start: int64(start),
				End:   int64(end),
			},
		},
		Position: int64(start + cr.sig.Offset()),
		Checksum: types.Checksum(snippet.Matching),
		Snippet:  snippet,
	}

	result.StructuralID = result.ComputeStructuralID(cr.sid)
	result.FindingID = types.ComputeFindingID(cr.sid, snippet.Matching)

	return result
}

func compareMatches(a, b *types.Match) int {
	if a.Location.Offset.Start != b.Location.Offset.Start {
		if a.Location.Offset.Start < b.Location.Offset.Start {
			return -1
		}
		return 1
	}
	return strings.Compare(a.RuleID, b.RuleID)
}
