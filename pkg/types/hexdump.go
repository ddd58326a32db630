package types

import (
	"encoding/hex"
	"strings"
)

// HexDump renders b the way signatures are written: upper-case byte pairs
// separated by single spaces.
func HexDump(b []byte) string {
	if len(b) == 0 {
		return ""
	}

	encoded := strings.ToUpper(hex.EncodeToString(b))

	var sb strings.Builder
	sb.Grow(len(b)*3 - 1)
	for i := 0; i < len(encoded); i += 2 {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(encoded[i : i+2])
	}
	return sb.String()
}
