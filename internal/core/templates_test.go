package core

import (
	"context"
	"errors"
	"testing"
)

func newTemplateService() *Service {
	registeredCatalog()
	return NewService(nil, newStubRepo(), nil, ServiceOptions{})
}

func TestMatchTemplateHeaders(t *testing.T) {
	tests := []struct {
		name     string
		csv      []string
		template []string
		want     float64
	}{
		{"exact", []string{"Name", "Type"}, []string{"Name", "Type"}, 1},
		{"normalized spelling", []string{"app_name", "TYPE "}, []string{"App Name", "type"}, 1},
		{"partial", []string{"Name", "Owner"}, []string{"Name", "Type", "Lifecycle", "Cost"}, 0.25},
		{"extra csv columns do not hurt", []string{"A", "B", "C", "Name"}, []string{"Name"}, 1},
		{"empty template", []string{"Name"}, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchTemplateHeaders(tt.csv, tt.template); got != tt.want {
				t.Errorf("matchTemplateHeaders = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestService_TemplateLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTemplateService()
	mappings := []ColumnMapping{
		{CSVHeader: "App", TargetField: "name"},
		{CSVHeader: "Kind", TargetField: "applicationType"},
	}

	created, err := s.CreateTemplate(ctx, testElementType, "Vendor export", mappings, []string{"App", "Kind"})
	if err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}
	if created.ID == "" || created.CreatedAt.IsZero() {
		t.Errorf("created = %+v, want id and timestamps", created)
	}

	if _, err := s.CreateTemplate(ctx, testElementType, "vendor EXPORT", mappings, nil); !errors.Is(err, ErrDuplicateTemplate) {
		t.Errorf("duplicate name = %v, want ErrDuplicateTemplate", err)
	}

	updated, err := s.UpdateTemplate(ctx, created.ID, "Vendor export v2", mappings[:1], []string{"App"})
	if err != nil {
		t.Fatalf("UpdateTemplate: %v", err)
	}
	if updated.Name != "Vendor export v2" || len(updated.Mappings) != 1 || !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("updated = %+v", updated)
	}

	list, err := s.ListTemplates(ctx, testElementType)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListTemplates = %v, %v; want one template", list, err)
	}

	if err := s.DeleteTemplate(ctx, created.ID); err != nil {
		t.Fatalf("DeleteTemplate: %v", err)
	}
	if _, err := s.GetTemplate(ctx, created.ID); !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("GetTemplate after delete = %v, want ErrTemplateNotFound", err)
	}
	if err := s.DeleteTemplate(ctx, created.ID); !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("second DeleteTemplate = %v, want ErrTemplateNotFound", err)
	}
}

func TestService_CreateTemplateRejectsBadMappings(t *testing.T) {
	ctx := context.Background()
	s := newTemplateService()

	tests := []struct {
		name        string
		elementType string
		tmplName    string
		mappings    []ColumnMapping
		wantErr     error
	}{
		{"unknown element type", "nope", "x", nil, ErrUnknownCatalog},
		{"duplicate target", testElementType, "x", []ColumnMapping{{CSVHeader: "A", TargetField: "name"}, {CSVHeader: "B", TargetField: "name"}}, ErrDuplicateTarget},
		{"blank name", testElementType, "  ", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreateTemplate(ctx, tt.elementType, tt.tmplName, tt.mappings, nil)
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	// Missing required fields are allowed in a template.
	if _, err := s.CreateTemplate(ctx, testElementType, "partial", []ColumnMapping{{CSVHeader: "Kind", TargetField: "applicationType"}}, nil); err != nil {
		t.Errorf("partial template rejected: %v", err)
	}
}

func TestService_MatchTemplates(t *testing.T) {
	ctx := context.Background()
	s := newTemplateService()

	for _, tc := range []struct {
		name    string
		headers []string
	}{
		{"Close", []string{"App", "Kind", "Stage", "Cost"}},
		{"Exact", []string{"App", "Kind"}},
		{"Far", []string{"Application", "Owner", "Vendor"}},
	} {
		if _, err := s.CreateTemplate(ctx, testElementType, tc.name, nil, tc.headers); err != nil {
			t.Fatalf("CreateTemplate(%s): %v", tc.name, err)
		}
	}

	matches, err := s.MatchTemplates(ctx, testElementType, []string{"app", "kind", "stage"})
	if err != nil {
		t.Fatalf("MatchTemplates: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2: %+v", len(matches), matches)
	}
	if matches[0].Template.Name != "Exact" || matches[0].MatchScore != 1 {
		t.Errorf("best match = %s (%v), want Exact (1)", matches[0].Template.Name, matches[0].MatchScore)
	}
	if matches[1].Template.Name != "Close" || matches[1].MatchScore != 0.75 {
		t.Errorf("second match = %s (%v), want Close (0.75)", matches[1].Template.Name, matches[1].MatchScore)
	}
}
