package source

// stream.go holds the io.Reader wrappers every text format reads through:
//
//   - bomSkipper drops a leading UTF-8 byte order mark (Excel's "CSV UTF-8")
//   - utf8Sanitizer replaces invalid UTF-8 bytes with '?' so Latin-1 exports
//     still parse
//   - sizeLimiter fails once more than the allowed number of bytes is read
//
// All three work in constant memory.

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type bomSkipper struct {
	br      *bufio.Reader
	checked bool
}

func newBOMSkipper(r io.Reader) *bomSkipper {
	return &bomSkipper{br: bufio.NewReader(r)}
}

func (b *bomSkipper) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		if head, err := b.br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
			b.br.Discard(len(utf8BOM))
		}
	}
	return b.br.Read(p)
}

// utf8Sanitizer rewrites invalid bytes in place. A multi-byte rune split
// across two reads is carried over to the next call rather than replaced.
type utf8Sanitizer struct {
	r       io.Reader
	pending []byte
}

func newUTF8Sanitizer(r io.Reader) *utf8Sanitizer {
	return &utf8Sanitizer{r: r, pending: make([]byte, 0, utf8.UTFMax)}
}

func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	off := copy(p, s.pending)
	s.pending = s.pending[:0]

	n, err := s.r.Read(p[off:])
	n += off
	if n == 0 {
		return 0, err
	}
	if asciiOnly(p[:n]) {
		return n, err
	}
	return s.sanitize(p[:n], err == io.EOF), err
}

func asciiOnly(b []byte) bool {
	for _, c := range b {
		if c >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func (s *utf8Sanitizer) sanitize(data []byte, atEOF bool) int {
	w := 0
	for r := 0; r < len(data); {
		if !atEOF && !utf8.FullRune(data[r:]) {
			s.pending = append(s.pending, data[r:]...)
			return w
		}
		c, size := utf8.DecodeRune(data[r:])
		if c == utf8.RuneError && size == 1 {
			data[w] = '?'
			w++
			r++
			continue
		}
		copy(data[w:], data[r:r+size])
		w += size
		r += size
	}
	return w
}

// sizeLimiter counts bytes and fails with ErrFileTooLarge past max. A max of
// zero or less disables the check.
type sizeLimiter struct {
	r    io.Reader
	n    int64
	max  int64
	name string
}

func (l *sizeLimiter) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.n += int64(n)
	if l.max > 0 && l.n > l.max {
		return n, fmt.Errorf("%w: %s exceeds %d bytes", ErrFileTooLarge, l.name, l.max)
	}
	return n, err
}

// textReader wraps r for the text formats: BOM first, then sanitizing.
func textReader(r io.Reader) io.Reader {
	return newUTF8Sanitizer(newBOMSkipper(r))
}
