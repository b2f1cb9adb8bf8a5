package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const testElementType = "test_application"

// testCatalog mirrors the shape of the application catalog with a few
// tighter limits that are easy to hit in tests.
func testCatalog() Catalog {
	return Catalog{
		ElementType: testElementType,
		Label:       "Test Applications",
		KeyFields:   []string{KeyApplicationCode, KeyName},
		Fields: []TargetFieldDefinition{
			{Key: KeyName, Label: "Name", Required: true, Kind: FieldText, SafeText: true, MaxLength: 40, Aliases: []string{"app name", "application"}},
			{Key: KeyApplicationCode, Label: "Application Code", Kind: FieldText, SafeText: true, Aliases: []string{"code"}},
			{Key: "applicationType", Label: "Application Type", Kind: FieldEnum, EnumValues: []string{"COTS", "SaaS", "Custom"}, Aliases: []string{"type"}},
			{Key: "lifecycleStatus", Label: "Lifecycle Status", Kind: FieldEnum, EnumValues: []string{"Planned", "Active", "Retired"}, Aliases: []string{"lifecycle", "status"}},
			{Key: "annualRunCost", Label: "Annual Run Cost", Kind: FieldNumber, Aliases: []string{"cost"}},
			{Key: "description", Label: "Description", Kind: FieldText, MaxLength: 20},
		},
	}
}

var registerTestCatalog sync.Once

// registeredCatalog makes the test catalog available through the registry.
func registeredCatalog() Catalog {
	registerTestCatalog.Do(func() { RegisterCatalog(testCatalog()) })
	return testCatalog()
}

// validRecord builds a VALID record the way the validator would.
func validRecord(row int, fields map[string]string) ImportRecord {
	return NewValidator(testCatalog(), 1).RecordFromMapped(row, fields)
}

type upsertCall struct {
	ElementID  string
	Attributes map[string]any
}

// stubRepo is an in-memory ElementRepository.
type stubRepo struct {
	mu       sync.Mutex
	elements []*Element
	nextID   int

	findErr    error
	failNames  map[string]error
	flakyLeft  int
	panicNames map[string]bool
	writes     []upsertCall
}

func newStubRepo(existing ...Element) *stubRepo {
	r := &stubRepo{failNames: map[string]error{}, panicNames: map[string]bool{}}
	for i := range existing {
		el := existing[i]
		r.elements = append(r.elements, &el)
	}
	return r
}

func (r *stubRepo) FindByKey(_ context.Context, elementType, field, value string) (*Element, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, el := range r.elements {
		if el.Type != elementType {
			continue
		}
		got := el.Name
		if field != KeyName {
			got, _ = el.Attributes[field].(string)
		}
		if got != "" && strings.EqualFold(got, value) {
			cp := *el
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *stubRepo) GetElement(_ context.Context, id string) (*Element, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, el := range r.elements {
		if el.ID == id {
			cp := *el
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrElementNotFound, id)
}

func (r *stubRepo) Upsert(_ context.Context, elementType, elementID string, attributes map[string]any) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name, _ := attributes[KeyName].(string)
	if r.panicNames[name] {
		panic("writer exploded")
	}
	if err, ok := r.failNames[name]; ok {
		return "", err
	}
	if r.flakyLeft > 0 {
		r.flakyLeft--
		return "", fmt.Errorf("%w: connection reset", ErrBackendUnavailable)
	}

	r.writes = append(r.writes, upsertCall{ElementID: elementID, Attributes: attributes})
	if elementID != "" {
		for _, el := range r.elements {
			if el.ID == elementID {
				el.Name = name
				el.Attributes = attributes
				return el.ID, nil
			}
		}
		return "", fmt.Errorf("%w: %s", ErrElementNotFound, elementID)
	}

	r.nextID++
	el := &Element{
		ID:         fmt.Sprintf("el-%d", r.nextID),
		Type:       elementType,
		Name:       name,
		Attributes: attributes,
		UpdatedAt:  time.Now(),
	}
	r.elements = append(r.elements, el)
	return el.ID, nil
}

func (r *stubRepo) writeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.writes)
}

// newPendingBatch stores a PENDING batch and returns the store.
func newPendingBatch(id string) *MemoryStore {
	store := NewMemoryStore()
	_ = store.Create(context.Background(), ImportBatch{
		ID:          id,
		Status:      BatchPending,
		CreatedAt:   time.Now(),
		ErrorReport: []ErrorReportEntry{},
	})
	return store
}
