package matcher

import (
	"time"

	"github.com/praetorian-inc/aobscan/pkg/types"
)

// RuleStatus represents how a rule fared on one blob
type RuleStatus int

const (
	// RuleCompleted indicates the rule scanned the whole blob
	RuleCompleted RuleStatus = iota
	// RuleTruncated indicates the per-rule match limit stopped the scan
	RuleTruncated
	// RuleSkipped indicates the prefilter ruled the blob out
	RuleSkipped
)

// String returns the string representation of RuleStatus
func (rs RuleStatus) String() string {
	switch rs {
	case RuleCompleted:
		return "completed"
	case RuleTruncated:
		return "truncated"
	case RuleSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// RuleStat contains statistics about a single rule execution
type RuleStat struct {
	RuleID   string        // Rule identifier
	Status   RuleStatus    // Execution status
	Duration time.Duration // Time taken to execute
	Matches  int           // Number of matches found
}

// ResultSummary provides aggregate statistics for a scan
type ResultSummary struct {
	TotalRules     int // Total number of rules loaded
	CompletedRules int // Rules that scanned the whole blob
	TruncatedRules int // Rules stopped by the match limit
	SkippedRules   int // Rules the prefilter dropped
}

// MatchResult contains matches and execution statistics
type MatchResult struct {
	Matches   []*types.Match      // Matches sorted by window start, then rule ID
	RuleStats map[string]RuleStat // Statistics for each rule (keyed by RuleID)
	Summary   ResultSummary       // Aggregate statistics
}
