package matcher

import "github.com/praetorian-inc/aobscan/pkg/types"

// Matcher scans content for rule matches.
type Matcher interface {
	// Match scans content against all loaded rules.
	// Returns matches sorted by window start, then rule ID.
	Match(content []byte) ([]*types.Match, error)

	// MatchWithBlobID scans content with a known BlobID.
	MatchWithBlobID(content []byte, blobID types.BlobID) ([]*types.Match, error)

	// Close releases resources.
	Close() error
}

// Config for matcher initialization.
type Config struct {
	// Rules to compile and load into the matcher
	Rules []*types.Rule

	// ContextBytes is the number of bytes kept on each side of a match
	ContextBytes int

	// MaxMatchesPerRule limits matches returned per rule and blob (0 = unlimited)
	MaxMatchesPerRule int

	// Dedupe keeps only the first match of each rule per distinct window
	Dedupe bool

	// Workers bounds parallel rule evaluation on large blobs (0 = runtime.NumCPU())
	Workers int
}

// New creates a new Matcher with the given config.
func New(cfg Config) (Matcher, error) {
	return NewAnchor(cfg)
}
