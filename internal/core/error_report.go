package core

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// WriteErrorReportCSV writes entries with the columns Row, Field, Value,
// Error. Values containing delimiters, quotes or newlines are quoted.
func WriteErrorReportCSV(w io.Writer, entries []ErrorReportEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(errorReportColumns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, e := range entries {
		if err := cw.Write([]string{strconv.Itoa(e.Row), e.Field, e.Value, e.Message}); err != nil {
			return fmt.Errorf("write row %d: %w", e.Row, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ValidationReport lists the field errors of records as report entries, in
// record order.
func ValidationReport(records []ImportRecord) []ErrorReportEntry {
	out := []ErrorReportEntry{}
	for _, r := range records {
		out = appendRecordErrors(out, r.RowIndex, r.Errors)
	}
	return out
}

func appendRecordErrors(dst []ErrorReportEntry, row int, errs []FieldError) []ErrorReportEntry {
	for _, fe := range errs {
		dst = append(dst, ErrorReportEntry{
			Row:     row,
			Field:   fe.Field,
			Value:   fe.Value,
			Message: fe.Message,
		})
	}
	return dst
}
