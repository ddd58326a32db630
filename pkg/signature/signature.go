package signature

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Tag marks whether a pattern position must match exactly.
type Tag uint8

const (
	// Concrete positions must equal the pattern byte.
	Concrete Tag = iota
	// Wildcard positions match any byte.
	Wildcard
)

// String returns "x" for concrete and "?" for wildcard positions.
func (t Tag) String() string {
	switch t {
	case Concrete:
		return "x"
	case Wildcard:
		return "?"
	default:
		return "unknown"
	}
}

// Anchor is the position of the first concrete byte of a signature. A
// signature made only of wildcards has NoAnchor.
type Anchor struct {
	index int
	ok    bool
}

// NoAnchor is the anchor of a signature without concrete bytes.
var NoAnchor = Anchor{}

// AnchorAt returns an anchor at pattern position i.
func AnchorAt(i int) Anchor {
	return Anchor{index: i, ok: true}
}

// Index returns the anchor position and whether the anchor exists.
func (a Anchor) Index() (int, bool) {
	return a.index, a.ok
}

func (a Anchor) String() string {
	if !a.ok {
		return "none"
	}
	return strconv.Itoa(a.index)
}

// Signature is a compiled AOB signature.
type Signature struct {
	pattern       []byte
	mask          []Tag
	matching      []int
	firstByte     Anchor
	firstWildcard int // -1 when fully concrete
	offset        int
	sig           string
}

// Compile parses text into a Signature. Whitespace is ignored. Every
// remaining pair of characters is one byte: a hexadecimal value, or a
// wildcard when the pair contains a '?'.
//
// A pair with a single '?' such as "A?" is a wildcard for the whole byte,
// not for one nibble.
//
// The returned error is an *InvalidLengthError or an *InvalidStringError,
// both of which wrap ErrInvalidSignature.
func Compile(text string, offset int) (*Signature, error) {
	groups, err := split(text)
	if err != nil {
		return nil, err
	}

	pattern := make([]byte, 0, len(groups))
	mask := make([]Tag, 0, len(groups))
	for _, g := range groups {
		if strings.ContainsRune(g, '?') {
			pattern = append(pattern, 0)
			mask = append(mask, Wildcard)
			continue
		}

		v, err := strconv.ParseUint(g, 16, 8)
		if err != nil {
			return nil, &InvalidStringError{Group: g}
		}
		pattern = append(pattern, byte(v))
		mask = append(mask, Concrete)
	}

	s := &Signature{
		pattern:       pattern,
		mask:          mask,
		firstByte:     NoAnchor,
		firstWildcard: -1,
		offset:        offset,
		sig:           strings.ToUpper(strings.Join(groups, " ")),
	}
	for i, tag := range mask {
		switch tag {
		case Concrete:
			if !s.firstByte.ok {
				s.firstByte = AnchorAt(i)
			}
			s.matching = append(s.matching, i)
		case Wildcard:
			if s.firstWildcard < 0 {
				s.firstWildcard = i
			}
		}
	}

	return s, nil
}

// MustCompile is like Compile but panics if text is not a valid signature.
func MustCompile(text string, offset int) *Signature {
	s, err := Compile(text, offset)
	if err != nil {
		panic(fmt.Sprintf("signature: Compile(%q): %v", text, err))
	}
	return s
}

// Format renders text in canonical form: upper-case two-character groups
// separated by single spaces. It checks only the length; the groups are not
// parsed.
func Format(text string) (string, error) {
	groups, err := split(text)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(strings.Join(groups, " ")), nil
}

// split removes whitespace from text and cuts the rest into two-character
// groups.
func split(text string) ([]string, error) {
	stripped := make([]rune, 0, len(text))
	for _, r := range text {
		if !unicode.IsSpace(r) {
			stripped = append(stripped, r)
		}
	}

	if len(stripped)%2 != 0 {
		return nil, &InvalidLengthError{Length: len(stripped)}
	}

	groups := make([]string, 0, len(stripped)/2)
	for i := 0; i < len(stripped); i += 2 {
		groups = append(groups, string(stripped[i:i+2]))
	}
	return groups, nil
}

// Pattern returns a copy of the byte values. Wildcard positions hold 0.
func (s *Signature) Pattern() []byte {
	out := make([]byte, len(s.pattern))
	copy(out, s.pattern)
	return out
}

// Mask returns a copy of the per-position tags.
func (s *Signature) Mask() []Tag {
	out := make([]Tag, len(s.mask))
	copy(out, s.mask)
	return out
}

// MatchingIndices returns a copy of the concrete positions in ascending order.
func (s *Signature) MatchingIndices() []int {
	out := make([]int, len(s.matching))
	copy(out, s.matching)
	return out
}

// FirstByte returns the anchor used to seed a scan.
func (s *Signature) FirstByte() Anchor {
	return s.firstByte
}

// FirstWildcard returns the position of the first wildcard, if any.
func (s *Signature) FirstWildcard() (int, bool) {
	if s.firstWildcard < 0 {
		return 0, false
	}
	return s.firstWildcard, true
}

// Len returns the number of bytes the signature spans.
func (s *Signature) Len() int {
	return len(s.pattern)
}

// Offset returns the value added to every reported match position.
func (s *Signature) Offset() int {
	return s.offset
}

// String returns the canonical text of the signature.
func (s *Signature) String() string {
	return s.sig
}

// LongestLiteral returns the longest run of consecutive concrete bytes. The
// earliest run wins a tie. It returns nil for a signature without concrete
// bytes.
func (s *Signature) LongestLiteral() []byte {
	bestStart, bestLen := 0, 0
	runStart := -1
	for i := 0; i <= len(s.mask); i++ {
		if i < len(s.mask) && s.mask[i] == Concrete {
			if runStart < 0 {
				runStart = i
			}
			continue
		}
		if runStart >= 0 {
			if i-runStart > bestLen {
				bestStart, bestLen = runStart, i-runStart
			}
			runStart = -1
		}
	}
	if bestLen == 0 {
		return nil
	}

	out := make([]byte, bestLen)
	copy(out, s.pattern[bestStart:bestStart+bestLen])
	return out
}
