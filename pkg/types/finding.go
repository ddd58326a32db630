package types

import (
	"crypto/sha1"
	"encoding/hex"
)

// Finding groups the matches of one rule whose matched windows hold the same
// bytes. Wildcard positions are part of the window, so two hits of a
// signature with different wildcard bytes are different findings.
type Finding struct {
	ID       string // SHA-1(rule_structural_id + '\0' + window)
	RuleID   string
	Window   []byte // matched bytes shared by every match
	Checksum uint32 // CRC-32 of Window
	Matches  []*Match
}

// ComputeFindingID computes a content-based finding ID.
// Format: SHA-1(rule_structural_id + '\0' + window)
func ComputeFindingID(ruleStructuralID string, window []byte) string {
	h := sha1.New()
	h.Write([]byte(ruleStructuralID))
	h.Write([]byte{0})
	h.Write(window)
	return hex.EncodeToString(h.Sum(nil))
}

// NewFinding builds the finding a match belongs to.
func NewFinding(m *Match) *Finding {
	return &Finding{
		ID:       m.FindingID,
		RuleID:   m.RuleID,
		Window:   m.Snippet.Matching,
		Checksum: m.Checksum,
		Matches:  []*Match{m},
	}
}
