package audio

// Split cuts b into chunks of at most max bytes, preserving order. The last
// chunk may be shorter. Chunks alias b; callers must not retain b while
// mutating it. Returns nil for empty input.
func Split(b []byte, max int) [][]byte {
	if len(b) == 0 || max <= 0 {
		return nil
	}
	chunks := make([][]byte, 0, (len(b)+max-1)/max)
	for len(b) > max {
		chunks = append(chunks, b[:max])
		b = b[max:]
	}
	return append(chunks, b)
}
