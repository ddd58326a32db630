package types

// OffsetSpan is byte range [Start, End) - half-open interval.
type OffsetSpan struct {
	Start int64
	End   int64
}

// Len returns the number of bytes in the span.
func (s OffsetSpan) Len() int64 {
	return s.End - s.Start
}

// Location is where the matched window sits in its blob.
type Location struct {
	Offset OffsetSpan
}
