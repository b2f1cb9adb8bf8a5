package core

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// parseWorkbook reads the first sheet of an .xlsx file. The first non-blank
// row is the header; the remaining rows follow the same rules as Parse.
func parseWorkbook(data []byte) ParseResult {
	res := ParseResult{Headers: []string{}, Rows: []RawRow{}, Errors: []string{}}
	if len(bytes.TrimSpace(data)) == 0 {
		res.fail(ErrEmptyInput)
		return res
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		res.fail(fmt.Errorf("%w: open workbook: %v", ErrMalformedInput, err))
		return res
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		res.fail(ErrEmptyInput)
		return res
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		res.fail(fmt.Errorf("%w: read sheet %q: %v", ErrMalformedInput, sheets[0], err))
		return res
	}

	headerIdx := -1
	for i, row := range rows {
		if !isBlankRecord(row) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		res.fail(ErrEmptyInput)
		return res
	}

	headers := make([]string, len(rows[headerIdx]))
	for i, h := range rows[headerIdx] {
		headers[i] = strings.TrimSpace(h)
	}
	res.Headers = headers

	shaper := &ChunkReader{headers: headers}
	for _, row := range rows[headerIdx+1:] {
		if isBlankRecord(row) {
			continue
		}
		res.Rows = append(res.Rows, shaper.toRow(row))
	}
	res.TotalRows = len(res.Rows)
	return res
}

var errorReportColumns = []string{"Row", "Field", "Value", "Error"}

// WriteErrorReportXLSX writes entries as a single-sheet workbook with the
// same columns as the CSV report.
func WriteErrorReportXLSX(w io.Writer, entries []ErrorReportEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Errors"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(errorReportColumns))
	for i, c := range errorReportColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, e := range entries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{e.Row, e.Field, e.Value, e.Message}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", e.Row, err)
		}
	}

	if err := f.SetColWidth(sheet, "B", "D", 30); err != nil {
		return fmt.Errorf("set widths: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
