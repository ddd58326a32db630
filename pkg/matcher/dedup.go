package matcher

import (
	"crypto/sha256"

	"github.com/praetorian-inc/aobscan/pkg/types"
)

// DedupeMode selects what makes two signature hits the same.
type DedupeMode int

const (
	// DedupeByLocation keys on the match structural ID: rule, blob and
	// window bounds. The same bytes at two addresses are two hits.
	DedupeByLocation DedupeMode = iota

	// DedupeByContent keys on the rule and the matched window bytes, which
	// is how findings are grouped. Bytes under a wildcard are part of the
	// window, so hits differing only there stay distinct.
	DedupeByContent
)

// Deduplicator drops repeated hits. It is not safe for concurrent use.
type Deduplicator struct {
	seen map[string]struct{}
	mode DedupeMode
}

// NewDeduplicator returns a location-keyed deduplicator.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{seen: make(map[string]struct{}), mode: DedupeByLocation}
}

// NewContentDeduplicator returns a deduplicator keyed on matched bytes.
func NewContentDeduplicator() *Deduplicator {
	return &Deduplicator{seen: make(map[string]struct{}), mode: DedupeByContent}
}

// SetMode switches the key. Hits recorded under the old mode are not
// rekeyed; call Reset first when switching mid-stream.
func (d *Deduplicator) SetMode(mode DedupeMode) {
	d.mode = mode
}

// IsDuplicate reports whether an equivalent hit was added before.
func (d *Deduplicator) IsDuplicate(m *types.Match) bool {
	_, ok := d.seen[d.key(m)]
	return ok
}

// Add records m.
func (d *Deduplicator) Add(m *types.Match) {
	d.seen[d.key(m)] = struct{}{}
}

// Seen records m and reports whether an equivalent hit was already there.
func (d *Deduplicator) Seen(m *types.Match) bool {
	k := d.key(m)
	if _, ok := d.seen[k]; ok {
		return true
	}
	d.seen[k] = struct{}{}
	return false
}

// Reset forgets every recorded hit.
func (d *Deduplicator) Reset() {
	clear(d.seen)
}

func (d *Deduplicator) key(m *types.Match) string {
	if d.mode != DedupeByContent {
		return m.StructuralID
	}
	h := sha256.New()
	h.Write([]byte(m.RuleID))
	h.Write([]byte{0})
	h.Write(m.Snippet.Matching)
	return string(h.Sum(nil))
}
