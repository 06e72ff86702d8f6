package datanorm

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ignite/searchterm-optimizer/internal/domain"
)

var (
	ErrEmptyFile          = errors.New("report file is empty")
	ErrNoSearchTermColumn = errors.New("no search term column detected")
	ErrTooManyRows        = errors.New("report has too many rows")
)

// maxWarnings caps the per-file warning list; SkippedRows keeps counting.
const maxWarnings = 20

// ParseOptions bound a single parse.
type ParseOptions struct {
	MaxRows int // 0 means unlimited
}

// ParseResult is a parsed report ready for analysis.
type ParseResult struct {
	Records     []domain.SearchTermRecord
	Header      []string
	Mapping     *ColumnMapping
	TotalRows   int
	SkippedRows int
	Warnings    []string
}

func (r *ParseResult) warn(format string, args ...interface{}) {
	r.SkippedRows++
	if len(r.Warnings) < maxWarnings {
		r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
	}
}

// ParseReport reads a search-term report export (CSV or tab-separated),
// maps its columns and normalizes every row. Rows that cannot be used are
// skipped and reported in Warnings; blank rows are ignored.
func ParseReport(r io.Reader, opts ParseOptions) (*ParseResult, error) {
	br := bufio.NewReaderSize(stripBOM(r), 64*1024)

	headerLine, err := peekHeaderLine(br)
	if err != nil {
		if err == io.EOF {
			return nil, ErrEmptyFile
		}
		return nil, fmt.Errorf("peek header: %w", err)
	}
	if strings.TrimSpace(headerLine) == "" {
		return nil, ErrEmptyFile
	}

	reader := csv.NewReader(br)
	reader.Comma = sniffDelimiter(headerLine)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, ErrEmptyFile
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	mapping := MapColumns(header)
	if mapping == nil {
		return nil, fmt.Errorf("%w in header: %v", ErrNoSearchTermColumn, header)
	}

	res := &ParseResult{Header: header, Mapping: mapping}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				res.TotalRows++
				res.warn("line %d: %v", pe.Line, pe.Err)
				continue
			}
			return nil, fmt.Errorf("read row: %w", err)
		}
		if blankRow(row) {
			continue
		}
		res.TotalRows++
		line, _ := reader.FieldPos(0)

		rec, err := NormalizeRow(row, mapping)
		if err != nil {
			res.warn("line %d: %v", line, err)
			continue
		}
		if opts.MaxRows > 0 && len(res.Records) >= opts.MaxRows {
			return nil, fmt.Errorf("%w: limit is %d", ErrTooManyRows, opts.MaxRows)
		}
		res.Records = append(res.Records, rec)
	}

	if res.TotalRows == 0 {
		return nil, ErrEmptyFile
	}
	return res, nil
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// sniffDelimiter picks tab, semicolon or comma by counting them outside
// quotes in the header line.
func sniffDelimiter(line string) rune {
	counts := map[rune]int{}
	inQuotes := false
	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case !inQuotes && (r == '\t' || r == ';' || r == ','):
			counts[r]++
		}
	}
	best, bestN := ',', counts[',']
	for _, d := range []rune{'\t', ';'} {
		if counts[d] > bestN {
			best, bestN = d, counts[d]
		}
	}
	return best
}

// stripBOM wraps a reader to strip a UTF-8 BOM if present.
func stripBOM(r io.Reader) io.Reader {
	buf := make([]byte, 3)
	n, err := io.ReadFull(r, buf)
	if err != nil || n < 3 {
		return bytes.NewReader(buf[:n])
	}
	if buf[0] == 0xEF && buf[1] == 0xBB && buf[2] == 0xBF {
		return r
	}
	return io.MultiReader(bytes.NewReader(buf), r)
}

// peekHeaderLine returns the first line without consuming it.
func peekHeaderLine(br *bufio.Reader) (string, error) {
	for size := 4096; size <= 64*1024; size *= 2 {
		peeked, err := br.Peek(size)
		if len(peeked) > 0 {
			if idx := bytes.IndexByte(peeked, '\n'); idx >= 0 {
				return strings.TrimRight(string(peeked[:idx]), "\r"), nil
			}
		}
		if err != nil {
			if err == io.EOF && len(peeked) > 0 {
				return strings.TrimRight(string(peeked), "\r\n"), nil
			}
			return "", err
		}
	}
	peeked, _ := br.Peek(64 * 1024)
	return strings.TrimRight(string(peeked), "\r\n"), nil
}
