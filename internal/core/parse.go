package core

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"path/filepath"
	"strings"
)

// DefaultChunkSize is the number of rows per chunk when streaming.
const DefaultChunkSize = 500

// candidateDelimiters in tie-break order.
var candidateDelimiters = []rune{',', '\t', ';'}

// ParseResult is the tokenized form of an import file.
type ParseResult struct {
	Headers   []string `json:"headers"`
	Rows      []RawRow `json:"rows"`
	TotalRows int      `json:"totalRows"`
	Errors    []string `json:"errors"`
	Delimiter string   `json:"delimiter,omitempty"`

	err error
}

// Failed reports whether parsing hit an error. A failed parse must not be
// mapped or imported.
func (p ParseResult) Failed() bool { return len(p.Errors) > 0 }

// Err returns the first parse error, or nil.
func (p ParseResult) Err() error { return p.err }

func (p *ParseResult) fail(err error) {
	if p.err == nil {
		p.err = err
	}
	p.Errors = append(p.Errors, err.Error())
}

// Parse tokenizes delimited text. The delimiter is detected from the header
// line. Empty input yields no headers and the error "empty input"; a header
// with no data rows is not an error.
//
// Rows whose cells are all blank are dropped, so row indexes count non-blank
// data rows only.
func Parse(text string) ParseResult {
	res := ParseResult{Headers: []string{}, Rows: []RawRow{}, Errors: []string{}}

	cr, err := NewChunkReader(strings.NewReader(text), DefaultChunkSize)
	if err != nil {
		res.fail(err)
		return res
	}
	res.Headers = cr.Headers()
	res.Delimiter = string(cr.Delimiter())

	for chunk, err := range cr.All() {
		res.Rows = append(res.Rows, chunk.Rows...)
		if err != nil {
			res.fail(err)
			break
		}
	}
	res.TotalRows = len(res.Rows)
	return res
}

// ParseFile tokenizes an uploaded file, choosing the decoder by extension.
// Workbooks (.xlsx) read their first sheet; everything else is treated as
// delimited text.
func ParseFile(fileName string, data []byte) ParseResult {
	if strings.EqualFold(filepath.Ext(fileName), ".xlsx") {
		return parseWorkbook(data)
	}
	return Parse(string(data))
}

// DetectDelimiter picks the most frequent candidate delimiter outside quotes
// in line. Ties go to comma, then tab, then semicolon; no candidates at all
// means comma.
func DetectDelimiter(line string) rune {
	counts := make(map[rune]int, len(candidateDelimiters))
	inQuotes := false
	for _, r := range line {
		if r == '"' {
			inQuotes = !inQuotes
			continue
		}
		if !inQuotes {
			counts[r]++
		}
	}

	best, bestCount := ',', 0
	for _, d := range candidateDelimiters {
		if counts[d] > bestCount {
			best, bestCount = d, counts[d]
		}
	}
	return best
}

// Chunk is a contiguous run of data rows. Rows[i] has row index StartRow+i.
type Chunk struct {
	StartRow int
	Rows     []RawRow
}

// RowIndex returns the 1-based row index of Rows[i].
func (c Chunk) RowIndex(i int) int { return c.StartRow + i }

// ChunkReader streams data rows in fixed-size chunks. It is finite and
// cannot be restarted; row indices continue across chunks.
type ChunkReader struct {
	reader    *csv.Reader
	counter   *countingReader
	headers   []string
	delimiter rune
	size      int
	next      int
	done      bool
}

// NewChunkReader reads the header row from r and prepares to stream the
// data rows. It returns ErrEmptyInput when r holds nothing but whitespace.
func NewChunkReader(r io.Reader, size int) (*ChunkReader, error) {
	if size <= 0 {
		size = DefaultChunkSize
	}

	br, counter := newInputReader(r)
	headerLine, err := firstNonBlankLine(br)
	if err != nil {
		return nil, err
	}

	delimiter := DetectDelimiter(headerLine)
	cr := csv.NewReader(io.MultiReader(strings.NewReader(headerLine), br))
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	return &ChunkReader{
		reader:    cr,
		counter:   counter,
		headers:   header,
		delimiter: delimiter,
		size:      size,
		next:      1,
	}, nil
}

// firstNonBlankLine returns the first line containing anything other than
// whitespace, including its line terminator.
func firstNonBlankLine(br *bufio.Reader) (string, error) {
	for {
		line, err := br.ReadString('\n')
		if strings.TrimSpace(line) != "" {
			return line, nil
		}
		if errors.Is(err, io.EOF) {
			return "", ErrEmptyInput
		}
		if err != nil {
			return "", fmt.Errorf("read header: %w", err)
		}
	}
}

// Headers returns the trimmed header row.
func (c *ChunkReader) Headers() []string {
	out := make([]string, len(c.headers))
	copy(out, c.headers)
	return out
}

// Delimiter returns the detected delimiter.
func (c *ChunkReader) Delimiter() rune { return c.delimiter }

// BytesRead returns the number of input bytes consumed so far.
func (c *ChunkReader) BytesRead() int64 { return c.counter.n }

// Next returns the next chunk, or io.EOF once the input is exhausted. On a
// tokenizer error the rows read before it are returned together with an
// error wrapping ErrMalformedInput, and the reader is finished.
// All-blank records are skipped and do not consume a row index.
func (c *ChunkReader) Next() (Chunk, error) {
	if c.done {
		return Chunk{}, io.EOF
	}

	chunk := Chunk{StartRow: c.next}
	for len(chunk.Rows) < c.size {
		record, err := c.reader.Read()
		if errors.Is(err, io.EOF) {
			c.done = true
			break
		}
		if err != nil {
			c.done = true
			c.next += len(chunk.Rows)
			return chunk, fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}
		if isBlankRecord(record) {
			continue
		}
		chunk.Rows = append(chunk.Rows, c.toRow(record))
	}

	if len(chunk.Rows) == 0 {
		return Chunk{}, io.EOF
	}
	c.next += len(chunk.Rows)
	return chunk, nil
}

// All returns the remaining chunks as a single-use sequence. Iteration stops
// after the first error.
func (c *ChunkReader) All() iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		for {
			chunk, err := c.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(chunk, err) || err != nil {
				return
			}
		}
	}
}

// toRow keys a record by header. Missing trailing cells become "", cells
// beyond the header are dropped, and a repeated header keeps its first column.
func (c *ChunkReader) toRow(record []string) RawRow {
	row := make(RawRow, len(c.headers))
	for i, h := range c.headers {
		if _, seen := row[h]; seen {
			continue
		}
		if i < len(record) {
			row[h] = record[i]
		} else {
			row[h] = ""
		}
	}
	return row
}

func isBlankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
