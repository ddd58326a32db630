package types

import (
	"crypto/sha1"
	"database/sql/driver"
	"encoding/hex"
	"fmt"
)

// BlobID identifies blob content the way git does: SHA-1 of
// "blob <len>\0" followed by the content.
type BlobID [sha1.Size]byte

// ComputeBlobID computes the git blob ID of content.
func ComputeBlobID(content []byte) BlobID {
	h := sha1.New()
	fmt.Fprintf(h, "blob %d\x00", len(content))
	h.Write(content)

	var id BlobID
	h.Sum(id[:0])
	return id
}

// ParseBlobID parses the 40-character hex form.
func ParseBlobID(s string) (BlobID, error) {
	var id BlobID
	if len(s) != hex.EncodedLen(len(id)) {
		return BlobID{}, fmt.Errorf("invalid blob ID length: expected %d, got %d", hex.EncodedLen(len(id)), len(s))
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return BlobID{}, fmt.Errorf("invalid blob ID %q: %w", s, err)
	}
	return id, nil
}

// Hex returns the 40-character hex form.
func (id BlobID) Hex() string {
	return hex.EncodeToString(id[:])
}

func (id BlobID) String() string {
	return id.Hex()
}

// IsZero reports whether id is the zero value.
func (id BlobID) IsZero() bool {
	return id == BlobID{}
}

// MarshalText encodes the ID as hex. JSON and YAML encoders use it.
func (id BlobID) MarshalText() ([]byte, error) {
	return []byte(id.Hex()), nil
}

// UnmarshalText decodes the hex form.
func (id *BlobID) UnmarshalText(text []byte) error {
	parsed, err := ParseBlobID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Value implements driver.Valuer.
func (id BlobID) Value() (driver.Value, error) {
	return id.Hex(), nil
}

// Scan implements sql.Scanner.
func (id *BlobID) Scan(value any) error {
	switch v := value.(type) {
	case string:
		return id.UnmarshalText([]byte(v))
	case []byte:
		return id.UnmarshalText(v)
	case nil:
		return fmt.Errorf("cannot scan NULL into BlobID")
	default:
		return fmt.Errorf("cannot scan %T into BlobID", value)
	}
}
