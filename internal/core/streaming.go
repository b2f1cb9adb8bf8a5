package core

// streaming.go provides the readers that sit between an uploaded file and
// the CSV tokenizer:
//
//   - utf8Sanitizer replaces invalid UTF-8 bytes with '?' without buffering
//     the whole file
//   - skipBOM drops a leading UTF-8 byte order mark (Excel on Windows)
//   - countingReader tracks bytes consumed for progress reporting

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// utf8Sanitizer wraps an io.Reader and replaces invalid UTF-8 sequences on
// the fly. Bytes that may start a multi-byte rune split across reads are held
// back until the next call.
type utf8Sanitizer struct {
	reader  io.Reader
	pending []byte
}

func newUTF8Sanitizer(r io.Reader) *utf8Sanitizer {
	return &utf8Sanitizer{reader: r, pending: make([]byte, 0, utf8.UTFMax)}
}

func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	offset := 0
	if len(s.pending) > 0 {
		offset = copy(p, s.pending)
		s.pending = s.pending[:0]
	}

	n, err := s.reader.Read(p[offset:])
	n += offset
	if n == 0 {
		return 0, err
	}

	if isASCII(p[:n]) {
		return n, err
	}
	return s.sanitize(p[:n], err == io.EOF), err
}

func isASCII(data []byte) bool {
	for _, b := range data {
		if b >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// sanitize rewrites data in place and returns the number of bytes to hand
// to the caller. '?' is used instead of U+FFFD so the data never grows.
func (s *utf8Sanitizer) sanitize(data []byte, atEOF bool) int {
	write := 0
	for read := 0; read < len(data); {
		if !atEOF && !utf8.FullRune(data[read:]) {
			s.pending = append(s.pending, data[read:]...)
			return write
		}

		r, size := utf8.DecodeRune(data[read:])
		if r == utf8.RuneError && size == 1 {
			data[write] = '?'
			write++
			read++
			continue
		}
		copy(data[write:], data[read:read+size])
		write += size
		read += size
	}
	return write
}

// skipBOM returns a buffered reader positioned after a leading UTF-8 BOM.
func skipBOM(r io.Reader) *bufio.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

// countingReader tracks how many bytes have been read.
type countingReader struct {
	reader io.Reader
	n      int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.reader.Read(p)
	c.n += int64(n)
	return n, err
}

// newInputReader applies the input transforms in order: count raw bytes,
// strip the BOM, then sanitize what is left.
func newInputReader(r io.Reader) (*bufio.Reader, *countingReader) {
	counter := &countingReader{reader: r}
	return bufio.NewReader(newUTF8Sanitizer(skipBOM(counter))), counter
}
