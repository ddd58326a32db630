package store

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/praetorian-inc/aobscan/pkg/types"
)

// blobRecord stores blob metadata.
type blobRecord struct {
	id   types.BlobID
	size int64
}

// MemoryStore implements Store using in-memory data structures.
// It backs ":memory:" paths, the request/response surfaces and WASM builds.
type MemoryStore struct {
	mu         sync.RWMutex
	blobs      map[string]blobRecord         // keyed by BlobID.Hex()
	rules      map[string]*types.Rule        // keyed by rule ID
	matches    []*types.Match                // all matches, insertion order
	matchIDs   map[string]bool               // structural IDs already stored
	findings   []*types.Finding              // insertion order
	findingIDs map[string]*types.Finding     // keyed by finding ID
	provenance map[string][]types.Provenance // keyed by BlobID.Hex()
}

// NewMemory creates a new in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		blobs:      make(map[string]blobRecord),
		rules:      make(map[string]*types.Rule),
		matches:    make([]*types.Match, 0),
		matchIDs:   make(map[string]bool),
		findingIDs: make(map[string]*types.Finding),
		provenance: make(map[string][]types.Provenance),
	}
}

// AddBlob stores a blob record.
func (m *MemoryStore) AddBlob(id types.BlobID, size int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := id.Hex()
	if _, exists := m.blobs[key]; exists {
		// Idempotent - already exists
		return nil
	}

	m.blobs[key] = blobRecord{
		id:   id,
		size: size,
	}
	return nil
}

// AddRule stores a rule, replacing an earlier definition with the same ID.
func (m *MemoryStore) AddRule(r *types.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rules[r.ID] = r
	return nil
}

// Rule returns a stored rule by ID.
func (m *MemoryStore) Rule(id string) (*types.Rule, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rules[id]
	return r, ok
}

// AddMatch stores a match record. A match whose structural ID is already
// stored is ignored.
func (m *MemoryStore) AddMatch(match *types.Match) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.matchIDs[match.StructuralID] {
		return nil
	}
	m.matchIDs[match.StructuralID] = true
	m.matches = append(m.matches, match)
	return nil
}

// AddFinding stores a finding (deduplicated).
func (m *MemoryStore) AddFinding(f *types.Finding) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.findingIDs[f.ID]; exists {
		return nil
	}

	stored := &types.Finding{
		ID:       f.ID,
		RuleID:   f.RuleID,
		Window:   f.Window,
		Checksum: f.Checksum,
	}
	m.findingIDs[f.ID] = stored
	m.findings = append(m.findings, stored)
	return nil
}

// AddProvenance associates provenance with a blob.
func (m *MemoryStore) AddProvenance(blobID types.BlobID, prov types.Provenance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := blobID.Hex()
	for _, p := range m.provenance[key] {
		if reflect.DeepEqual(p, prov) {
			return nil
		}
	}

	m.provenance[key] = append(m.provenance[key], prov)
	return nil
}

// GetAllProvenance retrieves all provenance records for a blob.
func (m *MemoryStore) GetAllProvenance(blobID types.BlobID) ([]types.Provenance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	provs := m.provenance[blobID.Hex()]
	result := make([]types.Provenance, len(provs))
	copy(result, provs)
	return result, nil
}

// GetMatches retrieves matches for a blob.
func (m *MemoryStore) GetMatches(blobID types.BlobID) ([]*types.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []*types.Match{}
	for _, match := range m.matches {
		if match.BlobID == blobID {
			result = append(result, match)
		}
	}
	return result, nil
}

// GetAllMatches retrieves all matches (for JSON export).
func (m *MemoryStore) GetAllMatches() ([]*types.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*types.Match, len(m.matches))
	copy(result, m.matches)
	return result, nil
}

// GetFindings retrieves all findings with their matches (for reporting).
func (m *MemoryStore) GetFindings() ([]*types.Finding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*types.Finding, 0, len(m.findings))
	index := make(map[string]*types.Finding, len(m.findings))
	for _, f := range m.findings {
		cp := *f
		cp.Matches = nil
		result = append(result, &cp)
		index[cp.ID] = &cp
	}
	for _, match := range m.matches {
		if f, ok := index[match.FindingID]; ok {
			f.Matches = append(f.Matches, match)
		}
	}
	return result, nil
}

// FindingExists checks if a finding with this ID exists.
func (m *MemoryStore) FindingExists(id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.findingIDs[id]
	return exists, nil
}

// BlobExists checks if a blob has already been scanned.
func (m *MemoryStore) BlobExists(id types.BlobID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.blobs[id.Hex()]
	return exists, nil
}

// GetProvenance retrieves the first provenance recorded for a blob.
func (m *MemoryStore) GetProvenance(blobID types.BlobID) (types.Provenance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key := blobID.Hex()
	provs := m.provenance[key]
	if len(provs) == 0 {
		return nil, fmt.Errorf("no provenance found for blob %s", key)
	}

	return provs[0], nil
}

// Close closes the database connection.
// For in-memory store, this is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}
