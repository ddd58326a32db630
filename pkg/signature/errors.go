package signature

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSignature is the class of every compile error. Use errors.As
	// with *InvalidLengthError or *InvalidStringError for the details.
	ErrInvalidSignature = errors.New("signature: invalid signature")

	// ErrNoAnchor is returned when scanning with a signature that has no
	// concrete byte. Such a signature matches everywhere, so a position would
	// be meaningless.
	ErrNoAnchor = errors.New("signature: no concrete byte to anchor the scan")
)

// InvalidLengthError reports a signature whose text, with whitespace removed,
// has an odd number of characters.
type InvalidLengthError struct {
	Length int
}

func (err *InvalidLengthError) Error() string {
	return fmt.Sprintf("signature: length %d (excluding whitespace) is not a multiple of 2; pad bytes with a leading 0 and write wildcards as ??", err.Length)
}

func (err *InvalidLengthError) Unwrap() error {
	return ErrInvalidSignature
}

// InvalidStringError reports a two-character group that is neither a
// wildcard nor a hexadecimal byte.
type InvalidStringError struct {
	Group string
}

func (err *InvalidStringError) Error() string {
	return fmt.Sprintf("signature: invalid byte %q", err.Group)
}

func (err *InvalidStringError) Unwrap() error {
	return ErrInvalidSignature
}
