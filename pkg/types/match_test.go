package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch_ComputeStructuralID(t *testing.T) {
	blobID := ComputeBlobID([]byte("test content"))

	match := Match{
		BlobID:   blobID,
		RuleID:   "aob.elf.1",
		Location: Location{Offset: OffsetSpan{Start: 10, End: 14}},
	}

	id := match.ComputeStructuralID("rule_sid")
	assert.Len(t, id, 40)
	assert.Equal(t, id, match.ComputeStructuralID("rule_sid"))
	assert.NotEqual(t, id, match.ComputeStructuralID("other_rule_sid"))

	moved := match
	moved.Location.Offset = OffsetSpan{Start: 11, End: 15}
	assert.NotEqual(t, id, moved.ComputeStructuralID("rule_sid"))

	otherBlob := match
	otherBlob.BlobID = ComputeBlobID([]byte("other content"))
	assert.NotEqual(t, id, otherBlob.ComputeStructuralID("rule_sid"))
}

func TestOffsetSpan_Len(t *testing.T) {
	assert.Equal(t, int64(4), OffsetSpan{Start: 10, End: 14}.Len())
	assert.Equal(t, int64(0), OffsetSpan{}.Len())
}

func TestNewSnippet(t *testing.T) {
	content := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}

	tests := []struct {
		name    string
		start   int
		end     int
		context int
		before  []byte
		after   []byte
	}{
		{name: "middle", start: 4, end: 6, context: 2, before: []byte{2, 3}, after: []byte{6, 7}},
		{name: "clamped at start", start: 1, end: 3, context: 4, before: []byte{0}, after: []byte{3, 4, 5, 6}},
		{name: "clamped at end", start: 8, end: 10, context: 3, before: []byte{5, 6, 7}, after: []byte{}},
		{name: "no context", start: 4, end: 6, context: 0, before: []byte{}, after: []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSnippet(content, tt.start, tt.end, tt.context)
			assert.Equal(t, tt.before, s.Before)
			assert.Equal(t, content[tt.start:tt.end], s.Matching)
			assert.Equal(t, tt.after, s.After)
		})
	}
}

func TestNewSnippet_CopiesContent(t *testing.T) {
	content := []byte{1, 2, 3, 4}
	s := NewSnippet(content, 1, 3, 1)
	content[1] = 0xFF

	assert.Equal(t, []byte{2, 3}, s.Matching)
}

func TestChecksum(t *testing.T) {
	// CRC-32 check value.
	assert.Equal(t, uint32(0xCBF43926), Checksum([]byte("123456789")))
	assert.Equal(t, uint32(0), Checksum(nil))
}

func TestHexDump(t *testing.T) {
	assert.Equal(t, "", HexDump(nil))
	assert.Equal(t, "0A", HexDump([]byte{0x0a}))
	assert.Equal(t, "7F 45 4C 46", HexDump([]byte{0x7f, 'E', 'L', 'F'}))
	assert.Equal(t, "00 FF AB", HexDump([]byte{0x00, 0xff, 0xab}))
}
