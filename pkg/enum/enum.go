package enum

import (
	"context"

	"github.com/praetorian-inc/aobscan/pkg/types"
)

// Enumerator discovers content to scan from a source.
type Enumerator interface {
	// Enumerate yields blobs from the source.
	// The callback receives blob content, its ID, and provenance information.
	Enumerate(ctx context.Context, callback func(content []byte, blobID types.BlobID, prov types.Provenance) error) error
}

// Config for enumeration.
type Config struct {
	// Root is the starting path for enumeration.
	Root string

	// IncludeHidden includes hidden files/directories (starting with .).
	IncludeHidden bool

	// MaxFileSize is the maximum file size to process (0 = no limit).
	MaxFileSize int64

	// FollowSymlinks follows symbolic links.
	FollowSymlinks bool

	// ExtractArchives yields archive members as separate blobs
	// (comma-separated: zip,jar,war,apk,7z or 'all').
	ExtractArchives string

	// ExtractLimits bounds archive extraction. The zero value means
	// DefaultExtractionLimits.
	ExtractLimits ExtractionLimits

	// Workers is the number of parallel file readers (0 = runtime.NumCPU()).
	Workers int
}

// limits returns the configured extraction limits or the defaults.
func (c Config) limits() ExtractionLimits {
	if c.ExtractLimits == (ExtractionLimits{}) {
		return DefaultExtractionLimits()
	}
	return c.ExtractLimits
}
