package stream

import (
	"strings"
	"unicode/utf8"
)

// Decoder turns raw byte chunks into text, holding back incomplete
// multi-byte sequences until the bytes that finish them arrive. The
// transport is free to split chunks anywhere, including inside a rune.
type Decoder struct {
	pending []byte
}

// Write appends a chunk and returns the longest decodable prefix as text.
// Bytes that might be the start of an unfinished multi-byte rune stay
// buffered for the next call. A genuinely invalid byte decodes to a
// replacement rune, the same best-effort treatment Flush gives it.
func (d *Decoder) Write(chunk []byte) string {
	d.pending = append(d.pending, chunk...)

	var out strings.Builder
	i := 0
	for i < len(d.pending) {
		r, size := utf8.DecodeRune(d.pending[i:])
		if r == utf8.RuneError && size == 1 {
			if len(d.pending)-i < utf8.UTFMax {
				// Possibly an incomplete sequence; wait for more bytes.
				break
			}
			out.WriteRune(utf8.RuneError)
			i++
			continue
		}
		out.Write(d.pending[i : i+size])
		i += size
	}

	d.pending = d.pending[i:]
	return out.String()
}

// Flush returns whatever is still buffered at end of stream. A connection
// truncated mid-rune yields replacement characters rather than an error.
func (d *Decoder) Flush() string {
	if len(d.pending) == 0 {
		return ""
	}
	out := make([]rune, 0, len(d.pending))
	for i := 0; i < len(d.pending); {
		r, size := utf8.DecodeRune(d.pending[i:])
		out = append(out, r)
		i += size
	}
	d.pending = nil
	return string(out)
}
