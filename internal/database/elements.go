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

// ElementRepository stores catalog elements in the elements table. Key
// fields other than name are looked up inside the attributes document.
type ElementRepository struct {
	db DBTX
}

// NewElementRepository creates an ElementRepository.
func NewElementRepository(db DBTX) *ElementRepository {
	return &ElementRepository{db: db}
}

var _ core.ElementRepository = (*ElementRepository)(nil)

const elementColumns = `id::text, element_type, name, attributes, updated_at`

// FindByKey returns the oldest element of elementType whose field matches
// value case-insensitively, or nil.
func (r *ElementRepository) FindByKey(ctx context.Context, elementType, field, value string) (*core.Element, error) {
	var row pgx.Row
	if field == core.KeyName {
		row = r.db.QueryRow(ctx,
			`SELECT `+elementColumns+` FROM elements
			 WHERE element_type = $1 AND lower(name) = lower($2)
			 ORDER BY created_at, id LIMIT 1`,
			elementType, value,
		)
	} else {
		row = r.db.QueryRow(ctx,
			`SELECT `+elementColumns+` FROM elements
			 WHERE element_type = $1 AND lower(attributes->>$2) = lower($3)
			 ORDER BY created_at, id LIMIT 1`,
			elementType, field, value,
		)
	}

	el, err := scanElement(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("find element by "+field, err)
	}
	return el, nil
}

func (r *ElementRepository) GetElement(ctx context.Context, id string) (*core.Element, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", core.ErrElementNotFound, id)
	}
	el, err := scanElement(r.db.QueryRow(ctx, `SELECT `+elementColumns+` FROM elements WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrElementNotFound, id)
	}
	if err != nil {
		return nil, classify("get element", err)
	}
	return el, nil
}

// Upsert creates an element when elementID is empty. Otherwise the supplied
// attributes are merged into the existing element, leaving attributes the
// row did not carry untouched.
func (r *ElementRepository) Upsert(ctx context.Context, elementType, elementID string, attributes map[string]any) (string, error) {
	name, _ := attributes[core.KeyName].(string)
	doc, err := json.Marshal(attributes)
	if err != nil {
		return "", fmt.Errorf("encode attributes: %w", err)
	}

	if elementID == "" {
		id := uuid.NewString()
		_, err := r.db.Exec(ctx,
			`INSERT INTO elements (id, element_type, name, attributes) VALUES ($1, $2, $3, $4)`,
			id, elementType, name, doc,
		)
		if err != nil {
			return "", classify("insert element", err)
		}
		return id, nil
	}

	if _, err := uuid.Parse(elementID); err != nil {
		return "", fmt.Errorf("%w: %s", core.ErrElementNotFound, elementID)
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE elements
		 SET name = COALESCE(NULLIF($3, ''), name), attributes = attributes || $4::jsonb, updated_at = now()
		 WHERE id = $1 AND element_type = $2`,
		elementID, elementType, name, doc,
	)
	if err != nil {
		return "", classify("update element", err)
	}
	if tag.RowsAffected() == 0 {
		return "", fmt.Errorf("%w: %s", core.ErrElementNotFound, elementID)
	}
	return elementID, nil
}

func scanElement(row pgx.Row) (*core.Element, error) {
	var (
		el    core.Element
		attrs []byte
	)
	if err := row.Scan(&el.ID, &el.Type, &el.Name, &attrs, &el.UpdatedAt); err != nil {
		return nil, err
	}
	el.Attributes = map[string]any{}
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &el.Attributes); err != nil {
			return nil, fmt.Errorf("decode attributes of %s: %w", el.ID, err)
		}
	}
	return &el, nil
}
