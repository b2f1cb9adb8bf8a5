package core

// validation.go checks mapped rows against a catalog and produces typed,
// normalized values.
//
// Rules per field kind:
//   - required fields must be non-blank
//   - safe-text fields may only contain characters from safeTextRegex
//   - enum fields match their options case-insensitively and are rewritten
//     to the canonical casing
//   - number fields must parse when non-blank (see ParseNumber)
//
// Errors are reported in catalog field order, so the same input always
// yields the same error list. A row with any error is INVALID and is never
// repaired or partially imported.

import (
	"context"
	"fmt"
	"regexp"
	"runtime"
	"slices"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
)

// safeTextRegex is the allow-list for free-text fields. Angle brackets,
// braces, backticks and control characters are rejected.
var safeTextRegex = regexp.MustCompile(`^[\p{L}\p{M}\p{N}\s.,;:'"&()\[\]/\\#+*=%@!?$€£_|~-]*$`)

// Validator validates mapped rows for one catalog.
type Validator struct {
	catalog Catalog
	workers int
}

// NewValidator creates a validator. workers bounds ValidateRows fan-out;
// zero or less uses GOMAXPROCS.
func NewValidator(c Catalog, workers int) *Validator {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Validator{catalog: c, workers: workers}
}

// RecordValidation is the outcome of validating one mapped row.
type RecordValidation struct {
	Errors     []FieldError     `json:"errors"`
	Normalized NormalizedRecord `json:"normalized"`
}

// ValidateRecord validates mapped (target field -> raw value). Fields not in
// the catalog are ignored. The call is pure: validating the same input
// twice gives identical results.
func (v *Validator) ValidateRecord(mapped map[string]string, rowIndex int) RecordValidation {
	res := RecordValidation{Errors: []FieldError{}, Normalized: NormalizedRecord{}}

	for _, f := range v.catalog.Fields {
		raw := mapped[f.Key]
		value := CleanCell(raw)

		if value == "" {
			if f.Required {
				res.Errors = append(res.Errors, FieldError{
					Field:   f.Key,
					Value:   raw,
					Message: "required field is empty",
				})
			}
			continue
		}
		fv, ferr := validateField(f, value)
		if ferr != nil {
			res.Errors = append(res.Errors, *ferr)
			continue
		}
		res.Normalized[f.Key] = fv
	}

	return res
}

func validateField(f TargetFieldDefinition, value string) (FieldValue, *FieldError) {
	fail := func(format string, args ...any) (FieldValue, *FieldError) {
		return FieldValue{}, &FieldError{Field: f.Key, Value: value, Message: fmt.Sprintf(format, args...)}
	}

	switch f.Kind {
	case FieldEnum:
		for _, opt := range f.EnumValues {
			if strings.EqualFold(opt, value) {
				return EnumValue(opt), nil
			}
		}
		return fail("invalid enum value for %s: must be one of: %s", f.Label, strings.Join(f.EnumValues, ", "))

	case FieldNumber:
		d, err := ParseNumber(value)
		if err != nil {
			return fail("invalid number for %s", f.Label)
		}
		return NumberValue(d), nil

	default:
		if f.SafeText && !safeTextRegex.MatchString(value) {
			return fail("%s contains characters that are not allowed", f.Label)
		}
		if f.MaxLength > 0 && utf8.RuneCountInString(value) > f.MaxLength {
			return fail("%s exceeds %d characters", f.Label, f.MaxLength)
		}
		return TextValue(value), nil
	}
}

// BuildRecord maps and validates one raw row.
func (v *Validator) BuildRecord(rowIndex int, row RawRow, mappings []ColumnMapping) ImportRecord {
	rec := v.RecordFromMapped(rowIndex, ApplyMappings(row, mappings))
	rec.Raw = row
	return rec
}

// RecordFromMapped validates a row that was already mapped, e.g. one
// submitted back by a client after review.
func (v *Validator) RecordFromMapped(rowIndex int, mapped map[string]string) ImportRecord {
	res := v.ValidateRecord(mapped, rowIndex)

	rec := ImportRecord{
		RowIndex:   rowIndex,
		Status:     StatusValid,
		Mapped:     mapped,
		Normalized: res.Normalized,
	}
	if len(res.Errors) > 0 {
		rec.Status = StatusInvalid
		rec.Errors = res.Errors
	}
	return rec
}

// ValidateRows maps and validates rows in parallel. rows[i] has row index
// startRow+i and the output keeps that order.
func (v *Validator) ValidateRows(ctx context.Context, startRow int, rows []RawRow, mappings []ColumnMapping) ([]ImportRecord, error) {
	out := make([]ImportRecord, len(rows))
	if len(rows) == 0 {
		return out, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(v.workers)

	segment := (len(rows) + v.workers - 1) / v.workers
	for lo := 0; lo < len(rows); lo += segment {
		hi := min(lo+segment, len(rows))
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				out[i] = v.BuildRecord(startRow+i, rows[i], mappings)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// BatchValidation partitions records by status.
type BatchValidation struct {
	ValidRecords   []ImportRecord `json:"validRecords"`
	InvalidRecords []ImportRecord `json:"invalidRecords"`
	TotalProcessed int            `json:"totalProcessed"`
}

// ValidateBatch splits records into valid and invalid sets, each in row order.
func ValidateBatch(records []ImportRecord) BatchValidation {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b ImportRecord) int { return a.RowIndex - b.RowIndex })

	res := BatchValidation{
		ValidRecords:   []ImportRecord{},
		InvalidRecords: []ImportRecord{},
		TotalProcessed: len(sorted),
	}
	for _, r := range sorted {
		if r.Status == StatusValid {
			res.ValidRecords = append(res.ValidRecords, r)
		} else {
			res.InvalidRecords = append(res.InvalidRecords, r)
		}
	}
	return res
}
