package serve

import (
	"encoding/json"

	"github.com/praetorian-inc/aobscan/pkg/scanner"
)

// Request represents an incoming NDJSON request
type Request struct {
	Type    string          `json:"type"`    // "scan" | "scan_batch" | "find" | "close"
	Payload json.RawMessage `json:"payload"`
}

// ScanPayload is the payload for "scan" requests
type ScanPayload struct {
	Content []byte `json:"content"` // base64
	Source  string `json:"source"`
}

// ScanBatchPayload is the payload for "scan_batch" requests
type ScanBatchPayload struct {
	Items []scanner.ContentItem `json:"items"`
}

// FindPayload is the payload for "find" requests
type FindPayload struct {
	Content   []byte `json:"content"` // base64
	Signature string `json:"signature"`
	Offset    int    `json:"offset"`
}

// Response represents an outgoing NDJSON response
type Response struct {
	Success bool            `json:"success"`
	Type    string          `json:"type"`              // "ready" | "scan" | "scan_batch" | "find" | request type on error
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ReadyData is the data field for "ready" responses
type ReadyData struct {
	Version string `json:"version"`
}
