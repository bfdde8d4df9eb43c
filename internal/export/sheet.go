package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// SheetName names the single worksheet of an Excel export.
const SheetName = "Facebook Statistik"

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts "csv" and "xlsx" in any case. Empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatXLSX:
		return f, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// ContentType is the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Cell is one exported value. Numbers stay numeric in Excel; identifiers
// and other text are always written as text.
type Cell struct {
	Text  string
	Num   float64
	IsNum bool
}

// Text builds a text cell.
func Text(s string) Cell { return Cell{Text: s} }

// Number builds a numeric cell.
func Number(v float64) Cell { return Cell{Text: formatNumber(v), Num: v, IsNum: true} }

// Sheet is a header line and rows of cells.
type Sheet struct {
	Header []string
	Rows   [][]Cell
}

// Write renders the sheet in format f.
func (s *Sheet) Write(w io.Writer, f Format) error {
	switch f {
	case FormatCSV, "":
		return s.writeCSV(w)
	case FormatXLSX:
		return s.writeXLSX(w)
	}
	return fmt.Errorf("unknown export format %q", f)
}

func (s *Sheet) writeCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(s.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range s.Rows {
		line := make([]string, len(row))
		for j, c := range row {
			line[j] = c.Text
		}
		if err := cw.Write(line); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func (s *Sheet) writeXLSX(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("open sheet: %w", err)
	}

	header := make([]interface{}, len(s.Header))
	for i, h := range s.Header {
		header[i] = h
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range s.Rows {
		values := make([]interface{}, len(row))
		for j, c := range row {
			switch {
			case c.IsNum:
				values[j] = c.Num
			case c.Text != "":
				values[j] = c.Text
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, values); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
