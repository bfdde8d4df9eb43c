// Package csvparse turns exported CSV bytes into header names and raw rows.
package csvparse

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cgillinger/facebook-stats/internal/domain"
)

// Record is one data line keyed by header name.
type Record struct {
	Line  int
	Cells domain.RawRow
}

// File is a parsed export.
type File struct {
	Name      string
	Headers   []string
	Records   []Record
	Delimiter rune
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parse reads a whole CSV export. Blank lines are skipped, short rows are
// padded with absent cells and surplus cells are ignored. A missing header
// or an empty input yields a *domain.ParseError.
func Parse(r io.Reader, name string) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &domain.ParseError{File: name, Err: err}
	}
	return ParseBytes(data, name)
}

// ParseBytes is Parse over an in-memory buffer.
func ParseBytes(data []byte, name string) (*File, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &domain.ParseError{File: name, Err: domain.ErrEmptyFile}
	}

	delim := DetectDelimiter(data)
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &domain.ParseError{File: name, Err: domain.ErrEmptyFile}
		}
		return nil, wrapCSVError(name, err)
	}
	headers := uniqueHeaders(header)
	if !hasName(headers) {
		return nil, &domain.ParseError{File: name, Line: 1, Err: domain.ErrNoHeader}
	}

	f := &File{Name: name, Headers: headers, Delimiter: delim}
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, wrapCSVError(name, err)
		}
		line, _ := reader.FieldPos(0)
		cells := make(domain.RawRow, len(headers))
		blank := true
		for i, h := range headers {
			if i >= len(rec) || h == "" {
				continue
			}
			v := domain.ParseValue(rec[i])
			if !v.IsEmpty() {
				blank = false
			}
			cells[h] = v
		}
		if blank {
			continue
		}
		f.Records = append(f.Records, Record{Line: line, Cells: cells})
	}
	return f, nil
}

// DetectDelimiter picks the most frequent of comma, semicolon and tab on
// the first non-blank line, ignoring quoted text. Comma wins ties.
func DetectDelimiter(data []byte) rune {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		counts := map[rune]int{}
		quoted := false
		for _, r := range line {
			switch {
			case r == '"':
				quoted = !quoted
			case !quoted && (r == ',' || r == ';' || r == '\t'):
				counts[r]++
			}
		}
		best := ','
		for _, r := range []rune{';', '\t'} {
			if counts[r] > counts[best] {
				best = r
			}
		}
		return best
	}
	return ','
}

// uniqueHeaders trims header cells and suffixes repeats ("Reach",
// "Reach_2") so every column keeps its own cell.
func uniqueHeaders(raw []string) []string {
	out := make([]string, len(raw))
	seen := make(map[string]int, len(raw))
	for i, h := range raw {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		seen[h]++
		if n := seen[h]; n > 1 {
			h = fmt.Sprintf("%s_%d", h, n)
		}
		out[i] = h
	}
	return out
}

// hasName reports whether headers look like a header row: at least one
// non-blank cell and not every cell numeric.
func hasName(headers []string) bool {
	for _, h := range headers {
		if h != "" && !domain.ParseValue(h).IsNum {
			return true
		}
	}
	return false
}

func wrapCSVError(name string, err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &domain.ParseError{File: name, Line: pe.Line, Err: pe.Err}
	}
	return &domain.ParseError{File: name, Err: err}
}
