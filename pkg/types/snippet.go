package types

// Snippet contains context around a match.
type Snippet struct {
	Before   []byte // bytes before match
	Matching []byte // the matched window
	After    []byte // bytes after match
}

// NewSnippet copies content[start:end] and up to contextBytes on each side.
func NewSnippet(content []byte, start, end, contextBytes int) Snippet {
	from := max(start-contextBytes, 0)
	to := min(end+contextBytes, len(content))

	return Snippet{
		Before:   clone(content[from:start]),
		Matching: clone(content[start:end]),
		After:    clone(content[end:to]),
	}
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
