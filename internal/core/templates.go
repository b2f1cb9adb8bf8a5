package core

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TemplateMatchThreshold is the minimum score for a template to be offered
// for a new file.
const TemplateMatchThreshold = 0.7

// MappingTemplate is a saved set of column mappings for files with a known
// header layout.
type MappingTemplate struct {
	ID          string          `json:"id"`
	ElementType string          `json:"elementType"`
	Name        string          `json:"name"`
	Mappings    []ColumnMapping `json:"mappings"`
	CSVHeaders  []string        `json:"csvHeaders"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// TemplateMatch is a saved template scored against a file's headers.
type TemplateMatch struct {
	Template   MappingTemplate `json:"template"`
	MatchScore float64         `json:"matchScore"`
}

// TemplateStore persists mapping templates. Names are unique per element type.
type TemplateStore interface {
	CreateTemplate(ctx context.Context, t MappingTemplate) (MappingTemplate, error)
	GetTemplate(ctx context.Context, id string) (MappingTemplate, error)
	ListTemplates(ctx context.Context, elementType string) ([]MappingTemplate, error)
	UpdateTemplate(ctx context.Context, t MappingTemplate) (MappingTemplate, error)
	DeleteTemplate(ctx context.Context, id string) error
}

// CreateTemplate validates and saves a new mapping template.
func (s *Service) CreateTemplate(ctx context.Context, elementType, name string, mappings []ColumnMapping, csvHeaders []string) (MappingTemplate, error) {
	t, err := s.checkTemplate(elementType, name, mappings)
	if err != nil {
		return MappingTemplate{}, err
	}
	now := time.Now().UTC()
	t.ID = uuid.NewString()
	t.CSVHeaders = slices.Clone(csvHeaders)
	t.CreatedAt = now
	t.UpdatedAt = now

	created, err := s.templates.CreateTemplate(ctx, t)
	if err != nil {
		return MappingTemplate{}, fmt.Errorf("create template: %w", err)
	}
	s.audit(ctx, AuditEntry{Action: ActionTemplateCreate, ElementType: elementType, TemplateID: created.ID,
		Details: map[string]any{"name": created.Name}})
	return created, nil
}

// GetTemplate retrieves a template by ID.
func (s *Service) GetTemplate(ctx context.Context, id string) (MappingTemplate, error) {
	return s.templates.GetTemplate(ctx, id)
}

// ListTemplates returns all templates for an element type, sorted by name.
func (s *Service) ListTemplates(ctx context.Context, elementType string) ([]MappingTemplate, error) {
	templates, err := s.templates.ListTemplates(ctx, elementType)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return templates, nil
}

// UpdateTemplate replaces the name, mappings and headers of a template.
func (s *Service) UpdateTemplate(ctx context.Context, id, name string, mappings []ColumnMapping, csvHeaders []string) (MappingTemplate, error) {
	existing, err := s.templates.GetTemplate(ctx, id)
	if err != nil {
		return MappingTemplate{}, err
	}
	t, err := s.checkTemplate(existing.ElementType, name, mappings)
	if err != nil {
		return MappingTemplate{}, err
	}
	t.ID = existing.ID
	t.CreatedAt = existing.CreatedAt
	t.CSVHeaders = slices.Clone(csvHeaders)
	t.UpdatedAt = time.Now().UTC()

	updated, err := s.templates.UpdateTemplate(ctx, t)
	if err != nil {
		return MappingTemplate{}, fmt.Errorf("update template: %w", err)
	}
	s.audit(ctx, AuditEntry{Action: ActionTemplateUpdate, ElementType: updated.ElementType, TemplateID: updated.ID,
		Details: map[string]any{"name": updated.Name}})
	return updated, nil
}

// DeleteTemplate removes a template.
func (s *Service) DeleteTemplate(ctx context.Context, id string) error {
	if err := s.templates.DeleteTemplate(ctx, id); err != nil {
		return err
	}
	s.audit(ctx, AuditEntry{Action: ActionTemplateDelete, TemplateID: id})
	return nil
}

// MatchTemplates finds templates whose saved headers mostly appear in
// csvHeaders, best match first.
func (s *Service) MatchTemplates(ctx context.Context, elementType string, csvHeaders []string) ([]TemplateMatch, error) {
	templates, err := s.ListTemplates(ctx, elementType)
	if err != nil {
		return nil, err
	}

	matches := []TemplateMatch{}
	for _, t := range templates {
		score := matchTemplateHeaders(csvHeaders, t.CSVHeaders)
		if score >= TemplateMatchThreshold {
			matches = append(matches, TemplateMatch{Template: t, MatchScore: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].MatchScore > matches[j].MatchScore
	})
	return matches, nil
}

// checkTemplate rejects templates that could never be applied: unknown
// element types, unknown targets and targets mapped twice. Missing required
// fields are allowed; the mapping step reports them per file.
func (s *Service) checkTemplate(elementType, name string, mappings []ColumnMapping) (MappingTemplate, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return MappingTemplate{}, fmt.Errorf("%w: template name is required", ErrInvalidArgument)
	}
	cat, err := s.Catalog(elementType)
	if err != nil {
		return MappingTemplate{}, err
	}
	v := cat.ValidateMappings(mappings)
	if len(v.DuplicateTargets) > 0 || len(v.UnknownTargets) > 0 {
		v.MissingRequired = nil
		return MappingTemplate{}, v.Err()
	}
	return MappingTemplate{ElementType: elementType, Name: name, Mappings: slices.Clone(mappings)}, nil
}

// matchTemplateHeaders returns the share of template headers present in csvHeaders.
func matchTemplateHeaders(csvHeaders, templateHeaders []string) float64 {
	if len(templateHeaders) == 0 {
		return 0
	}

	csvSet := make(map[string]bool, len(csvHeaders))
	for _, h := range csvHeaders {
		csvSet[NormalizeHeader(h)] = true
	}

	matched := 0
	for _, h := range templateHeaders {
		if csvSet[NormalizeHeader(h)] {
			matched++
		}
	}
	return float64(matched) / float64(len(templateHeaders))
}

// MemoryTemplateStore is an in-process TemplateStore.
type MemoryTemplateStore struct {
	mu        sync.RWMutex
	templates map[string]MappingTemplate
}

// NewMemoryTemplateStore creates an empty store.
func NewMemoryTemplateStore() *MemoryTemplateStore {
	return &MemoryTemplateStore{templates: make(map[string]MappingTemplate)}
}

func (m *MemoryTemplateStore) CreateTemplate(_ context.Context, t MappingTemplate) (MappingTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.nameTaken(t) {
		return MappingTemplate{}, fmt.Errorf("%w: %s", ErrDuplicateTemplate, t.Name)
	}
	m.templates[t.ID] = t
	return t, nil
}

func (m *MemoryTemplateStore) GetTemplate(_ context.Context, id string) (MappingTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.templates[id]
	if !ok {
		return MappingTemplate{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	return t, nil
}

func (m *MemoryTemplateStore) ListTemplates(_ context.Context, elementType string) ([]MappingTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []MappingTemplate{}
	for _, t := range m.templates {
		if t.ElementType == elementType {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryTemplateStore) UpdateTemplate(_ context.Context, t MappingTemplate) (MappingTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.templates[t.ID]; !ok {
		return MappingTemplate{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, t.ID)
	}
	if m.nameTaken(t) {
		return MappingTemplate{}, fmt.Errorf("%w: %s", ErrDuplicateTemplate, t.Name)
	}
	m.templates[t.ID] = t
	return t, nil
}

func (m *MemoryTemplateStore) DeleteTemplate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.templates[id]; !ok {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	delete(m.templates, id)
	return nil
}

// nameTaken reports whether another template of the same element type
// already uses t's name. Callers hold m.mu.
func (m *MemoryTemplateStore) nameTaken(t MappingTemplate) bool {
	for id, other := range m.templates {
		if id != t.ID && other.ElementType == t.ElementType && strings.EqualFold(other.Name, t.Name) {
			return true
		}
	}
	return false
}
