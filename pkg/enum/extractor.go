package enum

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/bodgit/sevenzip"
)

// ExtractedContent is one member read out of an archive.
type ExtractedContent struct {
	Name    string // path within the archive; nested members use "outer!inner"
	Content []byte
}

// ExtractionLimits bounds the work done on a single archive.
type ExtractionLimits struct {
	MaxSize  int64 // largest member that is read
	MaxTotal int64 // total bytes read from one archive, nested members included
	MaxFiles int   // members yielded from one archive, nested members included
	MaxDepth int   // nesting of archives within archives (0 = outer archive only)
}

// DefaultExtractionLimits returns limits suitable for scanning build outputs.
func DefaultExtractionLimits() ExtractionLimits {
	return ExtractionLimits{
		MaxSize:  10 * 1024 * 1024,
		MaxTotal: 100 * 1024 * 1024,
		MaxFiles: 10000,
		MaxDepth: 3,
	}
}

// extractState tracks limit usage across one ExtractMembers call.
type extractState struct {
	limits ExtractionLimits
	total  int64
	files  int
}

// admit reports whether a member whose header declares size may be read.
// Headers can lie, so the bytes actually read are charged by charge.
func (s *extractState) admit(size int64) bool {
	if s.limits.MaxSize > 0 && size > s.limits.MaxSize {
		return false
	}
	if s.limits.MaxTotal > 0 && (s.total >= s.limits.MaxTotal || s.total+size > s.limits.MaxTotal) {
		return false
	}
	if s.limits.MaxFiles > 0 && s.files >= s.limits.MaxFiles {
		return false
	}
	return true
}

// readLimit is the most a member read may return: MaxSize, further capped by
// what is left of MaxTotal. Zero means unlimited; admit keeps the remaining
// total above zero.
func (s *extractState) readLimit() int64 {
	limit := s.limits.MaxSize
	if s.limits.MaxTotal > 0 {
		remaining := s.limits.MaxTotal - s.total
		if limit <= 0 || remaining < limit {
			limit = remaining
		}
	}
	return limit
}

// charge counts n bytes read for one member against the limits. It reports
// false, charging nothing, when they would push the total past MaxTotal.
func (s *extractState) charge(n int64) bool {
	if s.limits.MaxTotal > 0 && s.total+n > s.limits.MaxTotal {
		return false
	}
	s.total += n
	s.files++
	return true
}

// zipExtensions are the extensions read as zip containers.
var zipExtensions = map[string]bool{
	".zip": true,
	".jar": true,
	".war": true,
	".ear": true,
	".apk": true,
	".aar": true,
	".ipa": true,
	".xpi": true,
}

// isExtractable reports whether ext names a supported archive format.
func isExtractable(ext string) bool {
	return zipExtensions[ext] || ext == ".7z"
}

// getExtension returns the lower-cased extension of path.
func getExtension(p string) string {
	return strings.ToLower(path.Ext(strings.ReplaceAll(p, "\\", "/")))
}

// ExtractMembers returns the members of the archive at path. Directories
// are skipped, and members that are themselves archives are expanded up to
// limits.MaxDepth. Members over the limits are skipped without error.
func ExtractMembers(path string, content []byte, limits ExtractionLimits) ([]ExtractedContent, error) {
	state := &extractState{limits: limits}
	return extract(path, content, state, 0)
}

func extract(name string, content []byte, state *extractState, depth int) ([]ExtractedContent, error) {
	ext := getExtension(name)
	switch {
	case zipExtensions[ext]:
		return extractZip(content, state, depth)
	case ext == ".7z":
		return extract7z(content, state, depth)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", ext)
	}
}

// extractZip reads every member of a zip container.
func extractZip(content []byte, state *extractState, depth int) ([]ExtractedContent, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to open zip: %w", err)
	}

	var results []ExtractedContent
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if !state.admit(int64(f.UncompressedSize64)) {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			continue
		}
		data, err := readLimited(rc, state.readLimit())
		rc.Close()
		if err != nil || !state.charge(int64(len(data))) {
			continue
		}

		results = append(results, expandMember(f.Name, data, state, depth)...)
	}
	return results, nil
}

// extract7z reads every member of a 7z archive.
func extract7z(content []byte, state *extractState, depth int) ([]ExtractedContent, error) {
	r, err := sevenzip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to open 7z: %w", err)
	}

	var results []ExtractedContent
	for _, f := range r.File {
		info := f.FileInfo()
		if info.IsDir() {
			continue
		}
		if !state.admit(info.Size()) {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			continue
		}
		data, err := readLimited(rc, state.readLimit())
		rc.Close()
		if err != nil || !state.charge(int64(len(data))) {
			continue
		}

		results = append(results, expandMember(f.Name, data, state, depth)...)
	}
	return results, nil
}

// expandMember returns the member itself, followed by its own members when
// it is an archive and the depth limit allows.
func expandMember(name string, data []byte, state *extractState, depth int) []ExtractedContent {
	results := []ExtractedContent{{Name: name, Content: data}}
	if depth >= state.limits.MaxDepth || !isExtractable(getExtension(name)) {
		return results
	}

	nested, err := extract(name, data, state, depth+1)
	if err != nil {
		return results
	}
	for _, n := range nested {
		results = append(results, ExtractedContent{
			Name:    name + "!" + n.Name,
			Content: n.Content,
		})
	}
	return results
}

// readLimited reads r fully, failing if it holds more than max bytes.
// Declared sizes in archive headers are not trusted.
func readLimited(r io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("member exceeds %d bytes", max)
	}
	return data, nil
}
