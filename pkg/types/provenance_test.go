package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileProvenance(t *testing.T) {
	prov := FileProvenance{FilePath: "/usr/bin/ls"}

	assert.Equal(t, KindFile, prov.Kind())
	assert.Equal(t, "/usr/bin/ls", prov.Path())
}

func TestGitProvenance(t *testing.T) {
	commitTime := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	prov := GitProvenance{
		RepoPath: "/path/to/repo",
		Commit: &CommitMetadata{
			CommitID:        "abc123def456",
			AuthorName:      "Jane Doe",
			AuthorEmail:     "jane@example.com",
			AuthorTimestamp: commitTime,
			Message:         "Add firmware image",
		},
		BlobPath: "firmware/boot.bin",
	}

	assert.Equal(t, KindGit, prov.Kind())
	assert.Equal(t, "firmware/boot.bin", prov.Path())
	require.NotNil(t, prov.Commit)
	assert.Equal(t, "abc123def456", prov.Commit.CommitID)
	assert.Equal(t, commitTime, prov.Commit.AuthorTimestamp)
}

func TestArchiveProvenance(t *testing.T) {
	prov := ArchiveProvenance{ArchivePath: "/tmp/app.jar", MemberPath: "com/example/Main.class"}

	assert.Equal(t, KindArchive, prov.Kind())
	assert.Equal(t, "/tmp/app.jar!com/example/Main.class", prov.Path())
}

func TestExtendedProvenance(t *testing.T) {
	tests := []struct {
		name     string
		payload  map[string]any
		expected string
	}{
		{name: "source string", payload: map[string]any{"source": "pid:1234", "region": "0x7ff000"}, expected: "pid:1234"},
		{name: "source not a string", payload: map[string]any{"source": 42}, expected: ""},
		{name: "empty payload", payload: map[string]any{}, expected: ""},
		{name: "nil payload", payload: nil, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prov := ExtendedProvenance{Payload: tt.payload}
			assert.Equal(t, KindExtended, prov.Kind())
			assert.Equal(t, tt.expected, prov.Path())
		})
	}
}

func TestProvenance_InterfaceUsage(t *testing.T) {
	provs := []Provenance{
		FileProvenance{FilePath: "/file.bin"},
		GitProvenance{RepoPath: "/repo", BlobPath: "lib.so"},
		ArchiveProvenance{ArchivePath: "a.zip", MemberPath: "b.dll"},
		ExtendedProvenance{Payload: map[string]any{"source": "stdin"}},
	}

	kinds := make([]string, 0, len(provs))
	paths := make([]string, 0, len(provs))
	for _, p := range provs {
		kinds = append(kinds, p.Kind())
		paths = append(paths, p.Path())
	}

	assert.Equal(t, []string{"file", "git", "archive", "extended"}, kinds)
	assert.Equal(t, []string{"/file.bin", "lib.so", "a.zip!b.dll", "stdin"}, paths)
}
