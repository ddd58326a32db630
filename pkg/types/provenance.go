package types

import "time"

// Provenance kinds.
const (
	KindFile     = "file"
	KindGit      = "git"
	KindArchive  = "archive"
	KindExtended = "extended"
)

// Provenance records where a blob came from.
type Provenance interface {
	Kind() string
	// Path returns a displayable path, or "" if the source has none.
	Path() string
}

// FileProvenance is a file on disk.
type FileProvenance struct {
	FilePath string
}

func (f FileProvenance) Kind() string { return KindFile }
func (f FileProvenance) Path() string { return f.FilePath }

// GitProvenance is a blob in a git repository.
type GitProvenance struct {
	RepoPath string
	Commit   *CommitMetadata // nil if not tracking commit info
	BlobPath string          // path within repo at commit
}

func (g GitProvenance) Kind() string { return KindGit }
func (g GitProvenance) Path() string { return g.BlobPath }

// CommitMetadata holds git commit information.
type CommitMetadata struct {
	CommitID           string
	AuthorName         string
	AuthorEmail        string
	AuthorTimestamp    time.Time
	CommitterName      string
	CommitterEmail     string
	CommitterTimestamp time.Time
	Message            string
}

// ArchiveProvenance is a member extracted from an archive (zip, jar, 7z).
type ArchiveProvenance struct {
	ArchivePath string
	MemberPath  string
}

func (a ArchiveProvenance) Kind() string { return KindArchive }

// Path returns "archive!member", the notation jar URLs use.
func (a ArchiveProvenance) Path() string {
	return a.ArchivePath + "!" + a.MemberPath
}

// ExtendedProvenance carries caller-defined source data, e.g. a memory region
// of another process or a request in the streaming server.
type ExtendedProvenance struct {
	Payload map[string]any
}

func (e ExtendedProvenance) Kind() string { return KindExtended }

// Path returns the "source" payload entry when it is a string.
func (e ExtendedProvenance) Path() string {
	if s, ok := e.Payload["source"].(string); ok {
		return s
	}
	return ""
}
