package rule

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/praetorian-inc/aobscan/pkg/signature"
	"github.com/praetorian-inc/aobscan/pkg/types"
)

// ValidateRule checks rule consistency and required fields.
// The signature must compile and carry at least one concrete byte, every
// example must match and no negative example may match.
func ValidateRule(r *types.Rule) error {
	if r == nil {
		return fmt.Errorf("rule is nil")
	}

	// Check required fields
	if r.ID == "" {
		return fmt.Errorf("rule ID is required")
	}
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if strings.TrimSpace(r.Signature) == "" {
		return fmt.Errorf("rule signature is required")
	}

	sig, err := r.Compile()
	if err != nil {
		return fmt.Errorf("invalid signature for rule %s: %w", r.ID, err)
	}
	if _, ok := sig.FirstByte().Index(); !ok {
		return fmt.Errorf("rule %s: %w", r.ID, signature.ErrNoAnchor)
	}

	// Validate StructuralID matches computed value
	expectedID := r.ComputeStructuralID()
	if r.StructuralID != "" && r.StructuralID != expectedID {
		return fmt.Errorf("rule %s has inconsistent StructuralID: got %s, expected %s",
			r.ID, r.StructuralID, expectedID)
	}

	for i, ex := range r.Examples {
		data, err := DecodeExample(ex)
		if err != nil {
			return fmt.Errorf("rule %s example %d: %w", r.ID, i, err)
		}
		idx, err := sig.Index(data)
		if err != nil {
			return fmt.Errorf("rule %s example %d: %w", r.ID, i, err)
		}
		if idx < 0 {
			return fmt.Errorf("rule %s example %d does not match signature %s", r.ID, i, sig)
		}
	}

	for i, ex := range r.NegativeExamples {
		data, err := DecodeExample(ex)
		if err != nil {
			return fmt.Errorf("rule %s negative example %d: %w", r.ID, i, err)
		}
		idx, err := sig.Index(data)
		if err != nil {
			return fmt.Errorf("rule %s negative example %d: %w", r.ID, i, err)
		}
		if idx >= 0 {
			return fmt.Errorf("rule %s negative example %d matches signature %s at %d", r.ID, i, sig, idx)
		}
	}

	return nil
}

// ValidateRules validates every rule and rejects duplicate IDs. All problems
// are reported together.
func ValidateRules(rules []*types.Rule) error {
	var errs []error
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		if err := ValidateRule(r); err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[r.ID] {
			errs = append(errs, fmt.Errorf("duplicate rule ID: %s", r.ID))
		}
		seen[r.ID] = true
	}
	return errors.Join(errs...)
}

// DecodeExample decodes a hex example, ignoring whitespace.
func DecodeExample(s string) ([]byte, error) {
	data, err := hex.DecodeString(strings.Join(strings.Fields(s), ""))
	if err != nil {
		return nil, fmt.Errorf("invalid hex example: %w", err)
	}
	return data, nil
}

// ValidateRuleset checks ruleset consistency and required fields.
// knownRuleIDs is a map of valid rule IDs for reference checking.
// Returns error if ruleset is invalid.
func ValidateRuleset(rs *types.Ruleset, knownRuleIDs map[string]bool) error {
	if rs == nil {
		return fmt.Errorf("ruleset is nil")
	}

	// Check required fields
	if rs.ID == "" {
		return fmt.Errorf("ruleset ID is required")
	}
	if rs.Name == "" {
		return fmt.Errorf("ruleset name is required")
	}
	if len(rs.RuleIDs) == 0 {
		return fmt.Errorf("ruleset %s must reference at least one rule", rs.ID)
	}

	// Validate all referenced rule IDs exist
	if knownRuleIDs != nil {
		for _, ruleID := range rs.RuleIDs {
			if !knownRuleIDs[ruleID] {
				return fmt.Errorf("ruleset %s references unknown rule ID: %s", rs.ID, ruleID)
			}
		}
	}

	// Check for duplicate rule IDs
	seen := make(map[string]bool)
	for _, ruleID := range rs.RuleIDs {
		if seen[ruleID] {
			return fmt.Errorf("ruleset %s contains duplicate rule ID: %s", rs.ID, ruleID)
		}
		seen[ruleID] = true
	}

	return nil
}
