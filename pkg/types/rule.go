package types

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"

	"github.com/praetorian-inc/aobscan/pkg/signature"
)

// Rule is a named AOB signature with metadata.
type Rule struct {
	ID               string   `json:"id"`                          // e.g., "aob.elf.1"
	Name             string   `json:"name"`                        // human-readable name
	Signature        string   `json:"signature"`                   // hex bytes, ?? for wildcards
	Offset           int      `json:"offset,omitempty"`            // added to reported positions
	StructuralID     string   `json:"structural_id,omitempty"`     // SHA-1 of canonical signature and offset (computed)
	Description      string   `json:"description,omitempty"`       // optional
	Examples         []string `json:"examples,omitempty"`          // hex blobs the signature must match
	NegativeExamples []string `json:"negative_examples,omitempty"` // hex blobs it must not match
	References       []string `json:"references,omitempty"`        // documentation URLs
	Categories       []string `json:"categories,omitempty"`        // classification tags
}

// ComputeStructuralID computes SHA-1 of the canonical signature text and the
// offset, so formatting differences in rule files do not change the ID.
func (r *Rule) ComputeStructuralID() string {
	canonical, err := signature.Format(r.Signature)
	if err != nil {
		canonical = r.Signature
	}

	h := sha1.New()
	h.Write([]byte(canonical))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(r.Offset)))
	return hex.EncodeToString(h.Sum(nil))
}

// Compile compiles the rule's signature with its offset.
func (r *Rule) Compile() (*signature.Signature, error) {
	return signature.Compile(r.Signature, r.Offset)
}

// Ruleset groups rules together.
type Ruleset struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	RuleIDs     []string `json:"rule_ids"`
}
