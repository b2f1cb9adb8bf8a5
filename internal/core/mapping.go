package core

import (
	"fmt"
	"strings"
)

// NormalizeHeader folds a header for alias comparison: trimmed, lowercased,
// with '_' and '-' read as spaces and runs of whitespace collapsed.
func NormalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.NewReplacer("_", " ", "-", " ").Replace(h)
	return strings.Join(strings.Fields(h), " ")
}

// aliasIndex maps a normalized spelling to a field key. Field keys and
// labels are aliases of themselves; explicit aliases come after.
func (c Catalog) aliasIndex() map[string]string {
	idx := make(map[string]string)
	add := func(alias, key string) {
		n := NormalizeHeader(alias)
		if n == "" {
			return
		}
		if _, exists := idx[n]; !exists {
			idx[n] = key
		}
	}
	for _, f := range c.Fields {
		add(f.Key, f.Key)
		add(splitCamel(f.Key), f.Key)
		add(f.Label, f.Key)
	}
	for _, f := range c.Fields {
		for _, a := range f.Aliases {
			add(a, f.Key)
		}
	}
	return idx
}

// splitCamel turns "lifecycleStatus" into "lifecycle Status".
func splitCamel(s string) string {
	var b strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// AutoDetectMappings proposes one mapping per header, in header order. A
// header whose alias points at a field already claimed by an earlier header
// stays unmapped, as does a header with no known alias.
func (c Catalog) AutoDetectMappings(headers []string) []ColumnMapping {
	idx := c.aliasIndex()
	used := make(map[string]bool)
	mappings := make([]ColumnMapping, 0, len(headers))

	for _, h := range headers {
		m := ColumnMapping{CSVHeader: h}
		if key, ok := idx[NormalizeHeader(h)]; ok && !used[key] {
			used[key] = true
			m.TargetField = key
			if f, ok := c.Field(key); ok {
				m.Required = f.Required
			}
		}
		mappings = append(mappings, m)
	}
	return mappings
}

// MappingValidation reports whether a mapping set can be imported.
type MappingValidation struct {
	Valid            bool     `json:"valid"`
	MissingRequired  []string `json:"missingRequired"`
	DuplicateTargets []string `json:"duplicateTargets,omitempty"`
	UnknownTargets   []string `json:"unknownTargets,omitempty"`
}

// Err summarizes an invalid result as an error, or nil when valid.
func (v MappingValidation) Err() error {
	switch {
	case v.Valid:
		return nil
	case len(v.MissingRequired) > 0:
		return fmt.Errorf("%w: %s", ErrMissingRequiredMapping, strings.Join(v.MissingRequired, ", "))
	case len(v.DuplicateTargets) > 0:
		return fmt.Errorf("%w: %s", ErrDuplicateTarget, strings.Join(v.DuplicateTargets, ", "))
	default:
		return fmt.Errorf("%w: %s", ErrUnknownTarget, strings.Join(v.UnknownTargets, ", "))
	}
}

// ValidateMappings checks that every required field has a mapping, that no
// field is targeted twice and that targets exist in the catalog. Missing
// fields are listed in catalog order.
func (c Catalog) ValidateMappings(mappings []ColumnMapping) MappingValidation {
	res := MappingValidation{MissingRequired: []string{}}
	count := make(map[string]int)

	for _, m := range mappings {
		if m.TargetField == "" {
			continue
		}
		if _, ok := c.Field(m.TargetField); !ok {
			res.UnknownTargets = append(res.UnknownTargets, m.TargetField)
			continue
		}
		count[m.TargetField]++
		if count[m.TargetField] == 2 {
			res.DuplicateTargets = append(res.DuplicateTargets, m.TargetField)
		}
	}

	for _, f := range c.RequiredFields() {
		if count[f.Key] == 0 {
			res.MissingRequired = append(res.MissingRequired, f.Key)
		}
	}

	res.Valid = len(res.MissingRequired) == 0 &&
		len(res.DuplicateTargets) == 0 &&
		len(res.UnknownTargets) == 0
	return res
}

// ApplyMappings projects a raw row onto target fields. Ignored columns are
// skipped; a header missing from the row yields "".
func ApplyMappings(row RawRow, mappings []ColumnMapping) map[string]string {
	out := make(map[string]string, len(mappings))
	for _, m := range mappings {
		if m.TargetField == "" {
			continue
		}
		out[m.TargetField] = row[m.CSVHeader]
	}
	return out
}
