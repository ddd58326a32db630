package signature

import "bytes"

// Scan returns the position of the leftmost match of sig in buffer, adjusted
// by the signature offset. found is false when the signature does not occur.
//
// Scan returns ErrNoAnchor when sig has no concrete byte.
func Scan(buffer []byte, sig *Signature) (pos int, found bool, err error) {
	i, err := sig.Index(buffer)
	if err != nil {
		return 0, false, err
	}
	if i < 0 {
		return 0, false, nil
	}
	return i + sig.offset, true, nil
}

// Index returns the start of the leftmost window of buffer that matches the
// signature, or -1 if there is none. The offset is not applied.
//
// The first concrete byte serves as an anchor: bytes.IndexByte finds each
// occurrence of it, and only windows aligned on an occurrence are verified.
func (s *Signature) Index(buffer []byte) (int, error) {
	anchor, ok := s.firstByte.Index()
	if !ok {
		return -1, ErrNoAnchor
	}

	n := len(s.pattern)
	if len(buffer) < n {
		return -1, nil
	}
	last := len(buffer) - n // last window start that fits
	value := s.pattern[anchor]

	for cursor := anchor; cursor < len(buffer); {
		hit := bytes.IndexByte(buffer[cursor:], value)
		if hit < 0 {
			return -1, nil
		}

		at := cursor + hit
		start := at - anchor
		if start > last {
			return -1, nil
		}
		if s.verify(buffer[start : start+n]) {
			return start, nil
		}
		cursor = at + 1
	}

	return -1, nil
}

// Matches reports whether window, which must be exactly Len bytes long,
// satisfies every concrete position of the signature.
func (s *Signature) Matches(window []byte) bool {
	if len(window) != len(s.pattern) {
		return false
	}
	return s.verify(window)
}

func (s *Signature) verify(window []byte) bool {
	for _, k := range s.matching {
		if window[k] != s.pattern[k] {
			return false
		}
	}
	return true
}
