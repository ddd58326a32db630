//go:build !wasm

package store

import (
	"path/filepath"
	"testing"

	"github.com/praetorian-inc/aobscan/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge_EmptySources(t *testing.T) {
	_, err := Merge(MergeConfig{
		SourcePaths: []string{},
		DestPath:    filepath.Join(t.TempDir(), "dest.db"),
	})
	assert.ErrorContains(t, err, "no source databases")
}

func TestMerge_NoDestination(t *testing.T) {
	_, err := Merge(MergeConfig{
		SourcePaths: []string{"source.db"},
		DestPath:    "",
	})
	assert.ErrorContains(t, err, "destination path is required")
}

// populate writes one blob with a match, finding and provenance into a new
// database at path.
func populate(t *testing.T, path string, content []byte, file string) {
	t.Helper()

	s, err := NewSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	rule := &types.Rule{ID: "aob.test", Name: "Test", Signature: "AA BB"}
	rule.StructuralID = rule.ComputeStructuralID()
	require.NoError(t, s.AddRule(rule))

	blobID := types.ComputeBlobID(content)
	require.NoError(t, s.AddBlob(blobID, int64(len(content))))

	m := sampleMatch(blobID, rule, 0, []byte{0xAA, 0xBB})
	require.NoError(t, s.AddMatch(m))
	require.NoError(t, s.AddFinding(types.NewFinding(m)))
	require.NoError(t, s.AddProvenance(blobID, types.FileProvenance{FilePath: file}))
}

func TestMerge_MultipleSources(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.db")
	b := filepath.Join(dir, "b.db")
	populate(t, a, []byte{0xAA, 0xBB, 0x01}, "/a.bin")
	populate(t, b, []byte{0xAA, 0xBB, 0x02}, "/b.bin")

	dest := filepath.Join(dir, "dest.db")
	stats, err := Merge(MergeConfig{SourcePaths: []string{a, b}, DestPath: dest})
	require.NoError(t, err)

	assert.Equal(t, 2, stats.SourcesProcessed)
	assert.Equal(t, 2, stats.BlobsMerged)
	assert.Equal(t, 1, stats.RulesMerged)
	assert.Equal(t, 2, stats.MatchesMerged)
	// Both matches cover the same bytes for the same rule.
	assert.Equal(t, 1, stats.FindingsMerged)
	assert.Equal(t, 2, stats.ProvenanceMerged)

	s, err := NewSQLite(dest)
	require.NoError(t, err)
	defer s.Close()

	findings, err := s.GetFindings()
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Len(t, findings[0].Matches, 2)
}

func TestMerge_Deduplication(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.db")
	populate(t, a, []byte{0xAA, 0xBB}, "/a.bin")

	dest := filepath.Join(dir, "dest.db")
	_, err := Merge(MergeConfig{SourcePaths: []string{a}, DestPath: dest})
	require.NoError(t, err)

	stats, err := Merge(MergeConfig{SourcePaths: []string{a}, DestPath: dest})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.BlobsMerged)
	assert.Equal(t, 0, stats.MatchesMerged)
	assert.Equal(t, 0, stats.FindingsMerged)
	assert.Equal(t, 0, stats.ProvenanceMerged)
	assert.Equal(t, 1, stats.SourcesProcessed)
}
