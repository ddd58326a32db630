package store

import (
	"github.com/praetorian-inc/aobscan/pkg/types"
)

// MemoryPath selects the in-memory store.
const MemoryPath = ":memory:"

// Store provides persistence for scan results.
// This interface abstracts the underlying storage implementation,
// allowing for different backends (SQLite, in-memory).
type Store interface {
	// AddBlob stores a blob record.
	AddBlob(id types.BlobID, size int64) error

	// AddRule stores the rule a match refers to.
	AddRule(r *types.Rule) error

	// AddMatch stores a match record.
	AddMatch(m *types.Match) error

	// AddFinding stores a finding (deduplicated).
	AddFinding(f *types.Finding) error

	// AddProvenance associates provenance with a blob.
	AddProvenance(blobID types.BlobID, prov types.Provenance) error

	// GetMatches retrieves matches for a blob.
	GetMatches(blobID types.BlobID) ([]*types.Match, error)

	// GetAllMatches retrieves all matches (for JSON export).
	GetAllMatches() ([]*types.Match, error)

	// GetFindings retrieves all findings with their matches (for reporting).
	GetFindings() ([]*types.Finding, error)

	// GetProvenance retrieves the first provenance recorded for a blob.
	GetProvenance(blobID types.BlobID) (types.Provenance, error)

	// FindingExists checks if a finding with this ID exists.
	FindingExists(id string) (bool, error)

	// BlobExists checks if a blob has already been scanned.
	BlobExists(id types.BlobID) (bool, error)

	// Close closes the database connection.
	Close() error
}

// Config for store initialization.
type Config struct {
	// Path is the database file path.
	// Use ":memory:" for the in-memory store (useful for testing).
	Path string
}
