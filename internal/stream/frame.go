package stream

import "strings"

// Delimiter marks the boundary between the human-readable answer and the
// metadata JSON the backend appends to the same response body. It is chosen
// so it effectively never occurs inside natural-language text, and the
// backend emits it at most once.
const Delimiter = "\n\n__METADATA__"

// Frame accumulates streamed text and splits it into the answer shown to
// the user and the raw metadata tail. The split is computed on demand and
// only becomes authoritative once the stream has ended.
type Frame struct {
	buf strings.Builder
}

// Append adds decoded text to the buffer.
func (f *Frame) Append(text string) {
	f.buf.WriteString(text)
}

// Display returns the answer text visible so far: everything before the
// first delimiter, or the whole buffer if none has appeared. A trailing
// partial delimiter is held back so its bytes never flash on screen.
func (f *Frame) Display() string {
	s := f.buf.String()
	if i := strings.Index(s, Delimiter); i >= 0 {
		return s[:i]
	}
	return s[:len(s)-partialDelimiterLen(s)]
}

// Split returns the final (display, tail) pair. Tail is everything after
// the first delimiter occurrence and is empty when no delimiter arrived.
func (f *Frame) Split() (display, tail string) {
	s := f.buf.String()
	if i := strings.Index(s, Delimiter); i >= 0 {
		return s[:i], s[i+len(Delimiter):]
	}
	return s, ""
}

// Len reports the total accumulated text length.
func (f *Frame) Len() int {
	return f.buf.Len()
}

// partialDelimiterLen returns the length of the longest suffix of s that is
// a proper prefix of the delimiter.
func partialDelimiterLen(s string) int {
	max := len(Delimiter) - 1
	if max > len(s) {
		max = len(s)
	}
	for n := max; n > 0; n-- {
		if strings.HasSuffix(s, Delimiter[:n]) {
			return n
		}
	}
	return 0
}
