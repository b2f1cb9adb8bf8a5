package core

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNormalizeHeader(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Name", "name"},
		{"  Lifecycle Status  ", "lifecycle status"},
		{"lifecycle_status", "lifecycle status"},
		{"App-Code", "app code"},
		{"APP   NAME", "app name"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := NormalizeHeader(tt.input); got != tt.want {
				t.Errorf("NormalizeHeader(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestAutoDetectMappings(t *testing.T) {
	c := testCatalog()

	tests := []struct {
		name    string
		headers []string
		want    []ColumnMapping
	}{
		{
			name:    "aliases",
			headers: []string{"name", "type", "lifecycle"},
			want: []ColumnMapping{
				{CSVHeader: "name", TargetField: "name", Required: true},
				{CSVHeader: "type", TargetField: "applicationType"},
				{CSVHeader: "lifecycle", TargetField: "lifecycleStatus"},
			},
		},
		{
			name:    "labels and split keys",
			headers: []string{"Application Code", "lifecycle_status", "Annual Run Cost"},
			want: []ColumnMapping{
				{CSVHeader: "Application Code", TargetField: "applicationCode"},
				{CSVHeader: "lifecycle_status", TargetField: "lifecycleStatus"},
				{CSVHeader: "Annual Run Cost", TargetField: "annualRunCost"},
			},
		},
		{
			name:    "first header wins",
			headers: []string{"App Name", "Name"},
			want: []ColumnMapping{
				{CSVHeader: "App Name", TargetField: "name", Required: true},
				{CSVHeader: "Name"},
			},
		},
		{
			name:    "unknown headers stay unmapped",
			headers: []string{"Owner Email", "code"},
			want: []ColumnMapping{
				{CSVHeader: "Owner Email"},
				{CSVHeader: "code", TargetField: "applicationCode"},
			},
		},
		{
			name:    "no headers",
			headers: []string{},
			want:    []ColumnMapping{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.AutoDetectMappings(tt.headers)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mappings mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAutoDetectMappings_RoundTrip(t *testing.T) {
	c := testCatalog()

	headers := make([]string, len(c.Fields))
	row := RawRow{}
	for i, f := range c.Fields {
		headers[i] = f.Key
		row[f.Key] = "value of " + f.Key
	}

	mapped := ApplyMappings(row, c.AutoDetectMappings(headers))
	for _, f := range c.Fields {
		if mapped[f.Key] != row[f.Key] {
			t.Errorf("mapped[%s] = %q, want %q", f.Key, mapped[f.Key], row[f.Key])
		}
	}
}

func TestValidateMappings(t *testing.T) {
	c := testCatalog()

	tests := []struct {
		name     string
		mappings []ColumnMapping
		want     MappingValidation
		wantErr  error
	}{
		{
			name: "valid",
			mappings: []ColumnMapping{
				{CSVHeader: "Name", TargetField: "name"},
				{CSVHeader: "Notes"},
			},
			want: MappingValidation{Valid: true, MissingRequired: []string{}},
		},
		{
			name: "missing required",
			mappings: []ColumnMapping{
				{CSVHeader: "Type", TargetField: "applicationType"},
			},
			want:    MappingValidation{MissingRequired: []string{"name"}},
			wantErr: ErrMissingRequiredMapping,
		},
		{
			name: "duplicate target",
			mappings: []ColumnMapping{
				{CSVHeader: "Name", TargetField: "name"},
				{CSVHeader: "Title", TargetField: "name"},
				{CSVHeader: "Other title", TargetField: "name"},
			},
			want:    MappingValidation{MissingRequired: []string{}, DuplicateTargets: []string{"name"}},
			wantErr: ErrDuplicateTarget,
		},
		{
			name: "unknown target",
			mappings: []ColumnMapping{
				{CSVHeader: "Name", TargetField: "name"},
				{CSVHeader: "Owner", TargetField: "ownerEmail"},
			},
			want: MappingValidation{MissingRequired: []string{}, UnknownTargets: []string{"ownerEmail"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.ValidateMappings(tt.mappings)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("validation mismatch (-want +got):\n%s", diff)
			}

			err := got.Err()
			if got.Valid != (err == nil) {
				t.Errorf("Valid = %v but Err() = %v", got.Valid, err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Err() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyMappings(t *testing.T) {
	row := RawRow{"App": "Billing", "Kind": "SaaS", "Ignored": "x"}
	mappings := []ColumnMapping{
		{CSVHeader: "App", TargetField: "name"},
		{CSVHeader: "Kind", TargetField: "applicationType"},
		{CSVHeader: "Ignored"},
		{CSVHeader: "Missing", TargetField: "description"},
	}

	want := map[string]string{
		"name":            "Billing",
		"applicationType": "SaaS",
		"description":     "",
	}
	if diff := cmp.Diff(want, ApplyMappings(row, mappings)); diff != "" {
		t.Errorf("ApplyMappings mismatch (-want +got):\n%s", diff)
	}
}
