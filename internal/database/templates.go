package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/catalog-import/internal/core"
)

// TemplateStore is a core.TemplateStore on the mapping_templates table.
type TemplateStore struct {
	db DBTX
}

// NewTemplateStore creates a TemplateStore.
func NewTemplateStore(db DBTX) *TemplateStore {
	return &TemplateStore{db: db}
}

var _ core.TemplateStore = (*TemplateStore)(nil)

const (
	templateColumns = `id, element_type, name, mappings, csv_headers, created_at, updated_at`
	templateSelect  = `id::text, element_type, name, mappings, csv_headers, created_at, updated_at`
)

func (s *TemplateStore) CreateTemplate(ctx context.Context, t core.MappingTemplate) (core.MappingTemplate, error) {
	mappings, headers, err := encodeTemplate(t)
	if err != nil {
		return core.MappingTemplate{}, err
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO mapping_templates (`+templateColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.ElementType, t.Name, mappings, headers, t.CreatedAt, t.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return core.MappingTemplate{}, fmt.Errorf("%w: %s", core.ErrDuplicateTemplate, t.Name)
	}
	if err != nil {
		return core.MappingTemplate{}, classify("insert template", err)
	}
	return t, nil
}

func (s *TemplateStore) GetTemplate(ctx context.Context, id string) (core.MappingTemplate, error) {
	if _, err := uuid.Parse(id); err != nil {
		return core.MappingTemplate{}, fmt.Errorf("%w: %s", core.ErrTemplateNotFound, id)
	}
	t, err := scanTemplate(s.db.QueryRow(ctx, `SELECT `+templateSelect+` FROM mapping_templates WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.MappingTemplate{}, fmt.Errorf("%w: %s", core.ErrTemplateNotFound, id)
	}
	if err != nil {
		return core.MappingTemplate{}, classify("get template", err)
	}
	return t, nil
}

func (s *TemplateStore) ListTemplates(ctx context.Context, elementType string) ([]core.MappingTemplate, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+templateSelect+` FROM mapping_templates WHERE element_type = $1 ORDER BY name`,
		elementType,
	)
	if err != nil {
		return nil, classify("list templates", err)
	}
	defer rows.Close()

	out := []core.MappingTemplate{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, classify("scan template", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list templates", err)
	}
	return out, nil
}

func (s *TemplateStore) UpdateTemplate(ctx context.Context, t core.MappingTemplate) (core.MappingTemplate, error) {
	mappings, headers, err := encodeTemplate(t)
	if err != nil {
		return core.MappingTemplate{}, err
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE mapping_templates SET name = $2, mappings = $3, csv_headers = $4, updated_at = $5 WHERE id = $1`,
		t.ID, t.Name, mappings, headers, t.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return core.MappingTemplate{}, fmt.Errorf("%w: %s", core.ErrDuplicateTemplate, t.Name)
	}
	if err != nil {
		return core.MappingTemplate{}, classify("update template", err)
	}
	if tag.RowsAffected() == 0 {
		return core.MappingTemplate{}, fmt.Errorf("%w: %s", core.ErrTemplateNotFound, t.ID)
	}
	return t, nil
}

func (s *TemplateStore) DeleteTemplate(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s", core.ErrTemplateNotFound, id)
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM mapping_templates WHERE id = $1`, id)
	if err != nil {
		return classify("delete template", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", core.ErrTemplateNotFound, id)
	}
	return nil
}

func encodeTemplate(t core.MappingTemplate) (mappings, headers []byte, err error) {
	if t.Mappings == nil {
		t.Mappings = []core.ColumnMapping{}
	}
	if t.CSVHeaders == nil {
		t.CSVHeaders = []string{}
	}
	if mappings, err = json.Marshal(t.Mappings); err != nil {
		return nil, nil, fmt.Errorf("encode mappings: %w", err)
	}
	if headers, err = json.Marshal(t.CSVHeaders); err != nil {
		return nil, nil, fmt.Errorf("encode headers: %w", err)
	}
	return mappings, headers, nil
}

func scanTemplate(row pgx.Row) (core.MappingTemplate, error) {
	var (
		t                 core.MappingTemplate
		mappings, headers []byte
	)
	if err := row.Scan(&t.ID, &t.ElementType, &t.Name, &mappings, &headers, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return core.MappingTemplate{}, err
	}
	if err := json.Unmarshal(mappings, &t.Mappings); err != nil {
		return core.MappingTemplate{}, fmt.Errorf("decode mappings of %s: %w", t.ID, err)
	}
	if err := json.Unmarshal(headers, &t.CSVHeaders); err != nil {
		return core.MappingTemplate{}, fmt.Errorf("decode headers of %s: %w", t.ID, err)
	}
	return t, nil
}
