// Package tabular streams delimited feed files into normalized headers
// and ordered row mappings. Row order is significant: it determines the
// row numbers used by the resume checkpoint.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Options control how a source file is read.
type Options struct {
	Delimiter rune
	Encoding  string
	HasHeader bool
	// RowLimit > 0 stops reading after that many data rows without
	// draining the rest of the stream (bounded-memory preview).
	RowLimit int
}

// Row maps normalized header names to cell values. Missing cells are
// present with an empty value so lookups never distinguish short rows.
type Row map[string]string

// Table is the parsed result.
type Table struct {
	Headers []string
	Rows    []Row
}

var (
	ErrNoHeaders        = errors.New("file contains no header row")
	ErrNoRows           = errors.New("file contains no data rows")
	ErrDuplicateHeaders = errors.New("file contains duplicate header names")
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	nonWordRe    = regexp.MustCompile(`[^a-z0-9_]`)
	multiScoreRe = regexp.MustCompile(`_{2,}`)
)

// Parse reads the delimited stream into a Table. Rows with inconsistent
// column counts are padded or truncated to the header width rather than
// rejected.
func Parse(r io.Reader, opts Options) (*Table, error) {
	decoded, err := decodeReader(r, opts.Encoding)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(decoded)
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var headers []string
	if opts.HasHeader {
		record, err := cr.Read()
		if err == io.EOF {
			return nil, ErrNoHeaders
		}
		if err != nil {
			return nil, fmt.Errorf("read header row: %w", err)
		}
		headers = NormalizeHeaders(record)
	}

	table := &Table{}
	for {
		if opts.RowLimit > 0 && len(table.Rows) >= opts.RowLimit {
			break
		}

		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Tolerate a malformed line; the next Read continues
			// after it.
			continue
		}

		if headers == nil {
			headers = syntheticHeaders(len(record))
		}
		table.Rows = append(table.Rows, recordToRow(headers, record))
	}

	table.Headers = headers
	return table, nil
}

// Validate checks the structural preconditions a sync run needs. Each
// failure mode carries a distinct error.
func Validate(t *Table, requiredColumn string) error {
	if len(t.Headers) == 0 {
		return ErrNoHeaders
	}
	if len(t.Rows) == 0 {
		return ErrNoRows
	}

	seen := make(map[string]bool, len(t.Headers))
	for _, h := range t.Headers {
		if seen[h] {
			return fmt.Errorf("%w: %q", ErrDuplicateHeaders, h)
		}
		seen[h] = true
	}

	if requiredColumn != "" && !seen[requiredColumn] {
		return fmt.Errorf("required column %q not found in headers", requiredColumn)
	}
	return nil
}

// NormalizeHeaders cleans raw header cells and de-duplicates repeats by
// appending numeric suffixes.
func NormalizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	counts := make(map[string]int, len(raw))

	for i, h := range raw {
		name := normalizeHeader(h)
		if name == "" {
			name = "unnamed_column"
		}
		if n := counts[name]; n > 0 {
			headers[i] = fmt.Sprintf("%s_%d", name, n)
		} else {
			headers[i] = name
		}
		counts[name]++
	}
	return headers
}

func normalizeHeader(h string) string {
	s := strings.ToLower(strings.TrimSpace(h))
	s = whitespaceRe.ReplaceAllString(s, "_")
	s = nonWordRe.ReplaceAllString(s, "")
	s = multiScoreRe.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

func syntheticHeaders(n int) []string {
	headers := make([]string, n)
	for i := range headers {
		headers[i] = fmt.Sprintf("column_%d", i+1)
	}
	return headers
}

func recordToRow(headers []string, record []string) Row {
	row := make(Row, len(headers))
	for i, h := range headers {
		if i < len(record) {
			row[h] = record[i]
		} else {
			row[h] = ""
		}
	}
	return row
}

func decodeReader(r io.Reader, enc string) (io.Reader, error) {
	var dec *encoding.Decoder
	switch strings.ToLower(strings.TrimSpace(enc)) {
	case "", "utf-8", "utf8":
		return r, nil
	case "latin-1", "latin1", "iso-8859-1":
		dec = charmap.ISO8859_1.NewDecoder()
	case "windows-1252", "cp1252":
		dec = charmap.Windows1252.NewDecoder()
	default:
		return nil, fmt.Errorf("unsupported encoding %q", enc)
	}
	return transform.NewReader(r, dec), nil
}
