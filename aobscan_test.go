package aobscan

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScanner(t *testing.T) {
	scanner, err := NewScanner()
	require.NoError(t, err)
	defer scanner.Close()

	assert.Equal(t, 23, scanner.RuleCount())
}

func TestNewScanner_InvalidCustomRules(t *testing.T) {
	_, err := NewScanner(WithRules([]*Rule{{ID: "bad", Name: "Bad", Signature: "ABC"}}))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = NewScanner(WithRules([]*Rule{}))
	assert.Error(t, err)
}

func TestScanBytes_Builtin(t *testing.T) {
	scanner, err := NewScanner()
	require.NoError(t, err)
	defer scanner.Close()

	content := []byte{0x7F, 0x45, 0x4C, 0x46, 0x02, 0x01, 0x01, 0x00}
	matches, err := scanner.ScanBytes(content)
	require.NoError(t, err)
	require.NotEmpty(t, matches)

	match := matches[0]
	assert.Equal(t, "aob.elf.1", match.RuleID)
	assert.NotEmpty(t, match.RuleName)
	assert.Equal(t, int64(0), match.Position)
	assert.Equal(t, content[:7], match.Snippet.Matching)
	assert.False(t, match.BlobID.IsZero())
}

func TestScanBytes_OffsetAndEveryOccurrence(t *testing.T) {
	scanner, err := NewScanner(WithRules([]*Rule{
		{ID: "test.call", Name: "Call", Signature: "E8 ?? ?? ?? ??", Offset: 1},
	}))
	require.NoError(t, err)
	defer scanner.Close()

	content := []byte{0x90, 0xE8, 0x01, 0x00, 0x00, 0x00, 0x90, 0xE8, 0x02, 0x00, 0x00, 0x00}
	matches, err := scanner.ScanBytes(content)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, int64(2), matches[0].Position)
	assert.Equal(t, int64(8), matches[1].Position)
}

func TestScanner_Options(t *testing.T) {
	content := []byte{0xAA, 0xBB, 0x00, 0x11, 0x22, 0xAA, 0xBB, 0xAA, 0xBB}
	rules := []*Rule{{ID: "test.ab", Name: "AB", Signature: "AA BB"}}

	scanner, err := NewScanner(WithRules(rules), WithContextBytes(1), WithMaxMatches(2))
	require.NoError(t, err)
	matches, err := scanner.ScanBytes(content)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Empty(t, matches[0].Snippet.Before)
	assert.Equal(t, []byte{0x00}, matches[0].Snippet.After)
	require.NoError(t, scanner.Close())

	scanner, err = NewScanner(WithRules(rules), WithDedupe())
	require.NoError(t, err)
	defer scanner.Close()
	matches, err = scanner.ScanBytes(content)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, int64(0), matches[0].Position)
}

func TestScanFile(t *testing.T) {
	scanner, err := NewScanner()
	require.NoError(t, err)
	defer scanner.Close()

	path := filepath.Join(t.TempDir(), "image.png")
	require.NoError(t, os.WriteFile(path, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00}, 0644))

	matches, err := scanner.ScanFile(path)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, "aob.png.1", matches[0].RuleID)

	_, err = scanner.ScanFile(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorContains(t, err, "reading file")
}

func TestScanner_Closed(t *testing.T) {
	scanner, err := NewScanner()
	require.NoError(t, err)
	require.NoError(t, scanner.Close())
	require.NoError(t, scanner.Close())

	_, err = scanner.ScanBytes([]byte{0x01})
	assert.ErrorContains(t, err, "scanner is closed")
}

func TestScanner_Concurrent(t *testing.T) {
	scanner, err := NewScanner()
	require.NoError(t, err)
	defer scanner.Close()

	content := []byte{0x00, 0x50, 0x4B, 0x03, 0x04, 0x14, 0x00}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			matches, err := scanner.ScanBytes(content)
			assert.NoError(t, err)
			assert.NotEmpty(t, matches)
		}()
	}
	wg.Wait()
}

func TestRules_ReturnsCopy(t *testing.T) {
	scanner, err := NewScanner()
	require.NoError(t, err)
	defer scanner.Close()

	rules := scanner.Rules()
	rules[0] = nil
	assert.NotNil(t, scanner.Rules()[0])
}

func TestLoadRulesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yml")
	require.NoError(t, os.WriteFile(path, []byte(`rules:
  - name: Syscall
    id: custom.syscall
    signature: "0F 05"
`), 0644))

	rules, err := LoadRulesFromFile(path)
	require.NoError(t, err)
	require.Len(t, rules, 1)

	scanner, err := NewScanner(WithRules(rules))
	require.NoError(t, err)
	defer scanner.Close()

	matches, err := scanner.ScanBytes([]byte{0x90, 0x0F, 0x05})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, int64(1), matches[0].Position)
}

func TestLoadBuiltinRules(t *testing.T) {
	rules, err := LoadBuiltinRules()
	require.NoError(t, err)

	var x64 []*Rule
	for _, r := range rules {
		if strings.HasPrefix(r.ID, "aob.x64.") {
			x64 = append(x64, r)
		}
	}
	assert.Len(t, x64, 4)
}

func TestCompileAndScan(t *testing.T) {
	sig, err := Compile("0b??0d", 2)
	require.NoError(t, err)
	assert.Equal(t, "0B ?? 0D", sig.String())

	pos, found, err := Scan([]byte{0x00, 0x0B, 0xFF, 0x0D}, sig)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 3, pos)

	_, err = Compile("0b?", 0)
	var lengthErr *InvalidLengthError
	assert.ErrorAs(t, err, &lengthErr)

	_, err = Compile("0g", 0)
	var stringErr *InvalidStringError
	assert.ErrorAs(t, err, &stringErr)

	_, _, err = Scan([]byte{0x00}, MustCompile("??", 0))
	assert.ErrorIs(t, err, ErrNoAnchor)
}

func TestFind(t *testing.T) {
	pos, found, err := Find([]byte{0x90, 0xE8, 0x00}, "E8 ??", 1)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 2, pos)

	_, found, err = Find([]byte{0x90}, "E8 ??", 0)
	require.NoError(t, err)
	assert.False(t, found)

	_, _, err = Find(nil, "E8 ?", 0)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestFormat(t *testing.T) {
	out, err := Format("de ad\tbe ef")
	require.NoError(t, err)
	assert.Equal(t, "DE AD BE EF", out)
}
