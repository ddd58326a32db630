package sarif

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/praetorian-inc/aobscan/pkg/types"
)

// SARIF 2.1.0 constants
const (
	SchemaURI   = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json"
	Version     = "2.1.0"
	ToolName    = "aobscan"
	ToolVersion = "0.1.0"
)

// Report is the top-level SARIF report structure
type Report struct {
	Schema  string `json:"$schema"`
	Version string `json:"version"`
	Runs    []Run  `json:"runs"`
}

// Run represents a single invocation of the tool
type Run struct {
	Tool    Tool     `json:"tool"`
	Results []Result `json:"results"`
}

// Tool describes the analysis tool
type Tool struct {
	Driver Driver `json:"driver"`
}

// Driver contains tool metadata
type Driver struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Rules   []Rule `json:"rules,omitempty"`
}

// Rule represents a detection rule
type Rule struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	ShortDescription ShortDescription `json:"shortDescription"`
	HelpURI          string           `json:"helpUri,omitempty"`
}

// ShortDescription contains rule description text
type ShortDescription struct {
	Text string `json:"text"`
}

// Result represents a single finding
type Result struct {
	RuleID              string            `json:"ruleId"`
	Level               string            `json:"level"`
	Message             Message           `json:"message"`
	Locations           []Location        `json:"locations"`
	PartialFingerprints map[string]string `json:"partialFingerprints,omitempty"`
	Properties          *ResultProperties `json:"properties,omitempty"`
}

// ResultProperties carries match details SARIF has no field for.
type ResultProperties struct {
	Position  int64  `json:"position"`
	Checksum  string `json:"checksum"`
	FindingID string `json:"findingId,omitempty"`
	BlobID    string `json:"blobId,omitempty"`
}

// Message contains the result message
type Message struct {
	Text string `json:"text"`
}

// Location describes where a result was found
type Location struct {
	PhysicalLocation PhysicalLocation `json:"physicalLocation"`
}

// PhysicalLocation specifies file location
type PhysicalLocation struct {
	ArtifactLocation ArtifactLocation `json:"artifactLocation"`
	Region           Region           `json:"region"`
	Address          *Address         `json:"address,omitempty"`
}

// Address is the reported position, the window start plus the rule offset.
type Address struct {
	AbsoluteAddress int64 `json:"absoluteAddress"`
}

// ArtifactLocation identifies the file
type ArtifactLocation struct {
	URI string `json:"uri"`
}

// Region specifies the matched byte range
type Region struct {
	ByteOffset int64    `json:"byteOffset"`
	ByteLength int64    `json:"byteLength"`
	Snippet    *Snippet `json:"snippet,omitempty"`
}

// Snippet contains the matched bytes as hex text and base64 binary
type Snippet struct {
	Text   string `json:"text,omitempty"`
	Binary []byte `json:"binary,omitempty"`
}

// NewReport creates a new SARIF report with initialized structure
func NewReport() *Report {
	return &Report{
		Schema:  SchemaURI,
		Version: Version,
		Runs: []Run{
			{
				Tool: Tool{
					Driver: Driver{
						Name:    ToolName,
						Version: ToolVersion,
						Rules:   []Rule{},
					},
				},
				Results: []Result{},
			},
		},
	}
}

// AddRule adds a detection rule to the report
func (r *Report) AddRule(rule *types.Rule) {
	sarifRule := Rule{
		ID:   rule.ID,
		Name: rule.Name,
		ShortDescription: ShortDescription{
			Text: rule.Description,
		},
	}

	// Add first reference as helpUri if available
	if len(rule.References) > 0 {
		sarifRule.HelpURI = rule.References[0]
	}

	r.Runs[0].Tool.Driver.Rules = append(r.Runs[0].Tool.Driver.Rules, sarifRule)
}

// AddResult adds a match result to the report
func (r *Report) AddResult(match *types.Match, filePath string) {
	// Convert file path to URI format
	uri := formatFileURI(filePath)

	region := Region{
		ByteOffset: match.Location.Offset.Start,
		ByteLength: match.Location.Offset.End - match.Location.Offset.Start,
	}
	if len(match.Snippet.Matching) > 0 {
		region.Snippet = &Snippet{
			Text:   types.HexDump(match.Snippet.Matching),
			Binary: match.Snippet.Matching,
		}
	}

	result := Result{
		RuleID: match.RuleID,
		Level:  "note",
		Message: Message{
			Text: fmt.Sprintf("%s at 0x%X", match.RuleName, match.Position),
		},
		Locations: []Location{
			{
				PhysicalLocation: PhysicalLocation{
					ArtifactLocation: ArtifactLocation{
						URI: uri,
					},
					Region:  region,
					Address: &Address{AbsoluteAddress: match.Position},
				},
			},
		},
		Properties: &ResultProperties{
			Position:  match.Position,
			Checksum:  fmt.Sprintf("%08x", match.Checksum),
			FindingID: match.FindingID,
		},
	}
	if !match.BlobID.IsZero() {
		result.Properties.BlobID = match.BlobID.Hex()
	}
	if match.StructuralID != "" {
		result.PartialFingerprints = map[string]string{"structuralId/v1": match.StructuralID}
	}

	r.Runs[0].Results = append(r.Runs[0].Results, result)
}

// ToJSON serializes the report to JSON bytes
func (r *Report) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// formatFileURI converts a file path to SARIF URI format
// Absolute paths get file:// prefix, relative paths stay as-is
func formatFileURI(path string) string {
	if filepath.IsAbs(path) {
		// Normalize path separators for URI format
		path = filepath.ToSlash(path)
		// Ensure path starts with /
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		return "file://" + path
	}
	// Relative paths stay as-is
	return filepath.ToSlash(path)
}
