package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FieldKind represents how the raw text of a target field is interpreted.
type FieldKind int

const (
	FieldText FieldKind = iota
	FieldEnum
	FieldNumber
)

var fieldKindNames = map[FieldKind]string{
	FieldText:   "text",
	FieldEnum:   "enum",
	FieldNumber: "number",
}

func (k FieldKind) String() string {
	if name, ok := fieldKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("FieldKind(%d)", int(k))
}

// MarshalText encodes the kind by name so catalogs read naturally in JSON.
func (k FieldKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *FieldKind) UnmarshalText(b []byte) error {
	for kind, name := range fieldKindNames {
		if strings.EqualFold(name, string(b)) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown field kind %q", string(b))
}

// TargetFieldDefinition describes one field of an element type that imported
// columns can be mapped onto.
type TargetFieldDefinition struct {
	Key        string    `json:"key"`
	Label      string    `json:"label"`
	Required   bool      `json:"required"`
	Kind       FieldKind `json:"kind"`
	EnumValues []string  `json:"enumValues,omitempty"` // canonical casing
	Aliases    []string  `json:"aliases,omitempty"`    // extra header spellings for auto-detection
	SafeText   bool      `json:"safeText,omitempty"`   // restrict to the safe character set
	MaxLength  int       `json:"maxLength,omitempty"`  // 0 means unlimited
}

// Catalog is the set of target fields for one element type.
type Catalog struct {
	ElementType string                  `json:"elementType"`
	Label       string                  `json:"label"`
	Fields      []TargetFieldDefinition `json:"fields"`

	// KeyFields lists the fields used to find an existing element, in
	// lookup order. The first field that yields a match wins.
	KeyFields []string `json:"keyFields"`
}

// Field returns the definition for key.
func (c Catalog) Field(key string) (TargetFieldDefinition, bool) {
	for _, f := range c.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return TargetFieldDefinition{}, false
}

// RequiredFields returns the required field definitions in catalog order.
func (c Catalog) RequiredFields() []TargetFieldDefinition {
	var out []TargetFieldDefinition
	for _, f := range c.Fields {
		if f.Required {
			out = append(out, f)
		}
	}
	return out
}

// RawRow maps a header to the raw cell value of one parsed data row.
// Rows are never modified after parsing.
type RawRow map[string]string

// ColumnMapping binds one source header to a target field. An empty
// TargetField means the column is ignored.
type ColumnMapping struct {
	CSVHeader   string `json:"csvHeader"`
	TargetField string `json:"targetField"`
	Required    bool   `json:"required"`
}

// RecordStatus is the validation outcome for one row.
type RecordStatus string

const (
	StatusValid   RecordStatus = "VALID"
	StatusInvalid RecordStatus = "INVALID"
)

// FieldError is a validation problem with one field of one row.
type FieldError struct {
	Field   string `json:"field"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("%s: %s (value: %q)", e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// FieldValue is a normalized, typed field value. Text holds the canonical
// string for text and enum kinds; Number is set for the number kind.
type FieldValue struct {
	Kind   FieldKind
	Text   string
	Number decimal.Decimal
}

// TextValue returns a text field value.
func TextValue(s string) FieldValue { return FieldValue{Kind: FieldText, Text: s} }

// EnumValue returns an enum field value holding the canonical option.
func EnumValue(s string) FieldValue { return FieldValue{Kind: FieldEnum, Text: s} }

// NumberValue returns a number field value.
func NumberValue(d decimal.Decimal) FieldValue {
	return FieldValue{Kind: FieldNumber, Number: d, Text: d.String()}
}

func (v FieldValue) String() string {
	if v.Kind == FieldNumber {
		return v.Number.String()
	}
	return v.Text
}

// MarshalJSON writes numbers as JSON numbers and everything else as strings.
func (v FieldValue) MarshalJSON() ([]byte, error) {
	if v.Kind == FieldNumber {
		return []byte(v.Number.String()), nil
	}
	return json.Marshal(v.Text)
}

// NormalizedRecord holds the typed values of a validated row, keyed by
// target field. Empty optional fields are absent.
type NormalizedRecord map[string]FieldValue

// Text returns the string form of key, or "" when absent.
func (n NormalizedRecord) Text(key string) string {
	if v, ok := n[key]; ok {
		return v.String()
	}
	return ""
}

// Attributes converts the record into the attribute map handed to an
// ElementWriter. Numbers become json.Number so they encode unquoted.
func (n NormalizedRecord) Attributes() map[string]any {
	attrs := make(map[string]any, len(n))
	for k, v := range n {
		if v.Kind == FieldNumber {
			attrs[k] = json.Number(v.Number.String())
			continue
		}
		attrs[k] = v.Text
	}
	return attrs
}

// ImportRecord is one data row as it moves through validation.
type ImportRecord struct {
	RowIndex   int               `json:"rowIndex"` // 1-based data row position
	Status     RecordStatus      `json:"status"`
	Raw        RawRow            `json:"raw,omitempty"`
	Mapped     map[string]string `json:"mapped"`
	Normalized NormalizedRecord  `json:"normalized,omitempty"`
	Errors     []FieldError      `json:"errors,omitempty"`
}

// DuplicateStrategy says what to do with a row that matches an existing element.
type DuplicateStrategy string

const (
	StrategyUpdateExisting DuplicateStrategy = "UPDATE_EXISTING"
	StrategyCreateNew      DuplicateStrategy = "CREATE_NEW"
	StrategySkip           DuplicateStrategy = "SKIP"
)

// Valid reports whether s is a known strategy.
func (s DuplicateStrategy) Valid() bool {
	switch s {
	case StrategyUpdateExisting, StrategyCreateNew, StrategySkip:
		return true
	}
	return false
}

// ParseDuplicateStrategy accepts a strategy name in any casing.
func ParseDuplicateStrategy(s string) (DuplicateStrategy, error) {
	st := DuplicateStrategy(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStrategy, s)
	}
	return st, nil
}

// Key fields used for duplicate matching.
const (
	KeyApplicationCode = "applicationCode"
	KeyName            = "name"
)

// DuplicateMatch links an import row to an existing element. Strategy is
// always set; a new match defaults to StrategyUpdateExisting.
type DuplicateMatch struct {
	RowIndex            int               `json:"rowIndex"`
	ExistingElementID   string            `json:"existingElementId"`
	ExistingElementName string            `json:"existingElementName"`
	MatchedBy           string            `json:"matchedBy"`
	Strategy            DuplicateStrategy `json:"strategy"`
}

// Element is an element already present in the repository.
type Element struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Name       string         `json:"name"`
	Attributes map[string]any `json:"attributes,omitempty"`
	UpdatedAt  time.Time      `json:"updatedAt,omitempty"`
}
