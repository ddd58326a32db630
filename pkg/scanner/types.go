package scanner

import "github.com/praetorian-inc/aobscan/pkg/types"

// ContentItem represents a content item to scan
type ContentItem struct {
	Source   string            `json:"source"`   // e.g., "file:/usr/bin/ls", "pid:4242:heap"
	Content  []byte            `json:"content"`  // raw bytes, base64 in JSON
	Metadata map[string]string `json:"metadata"` // optional metadata
}

// ScanResult represents scan results for a single item
type ScanResult struct {
	Source  string         `json:"source"`
	BlobID  types.BlobID   `json:"blob_id"`
	Matches []*types.Match `json:"matches"`
}

// BatchScanResult represents batch scan results
type BatchScanResult struct {
	Results []ScanResult `json:"results"`
	Total   int          `json:"total"` // matches across the batch, each location counted once
}

// FindResult is the outcome of a single ad-hoc signature search.
type FindResult struct {
	Signature string `json:"signature"` // canonical form
	Offset    int    `json:"offset"`
	Found     bool   `json:"found"`
	Position  int    `json:"position"` // window start plus offset; 0 when not found
}

// DebugLogger provides platform-specific logging
type DebugLogger interface {
	Log(format string, args ...interface{})
}

// NoopLogger is a no-op logger
type NoopLogger struct{}

func (NoopLogger) Log(format string, args ...interface{}) {}
