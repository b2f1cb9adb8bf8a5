package core

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/catalog-import/internal/metrics"
)

// ElementFinder looks up elements that already exist in the repository.
type ElementFinder interface {
	// FindByKey returns the oldest element of elementType whose field equals
	// value (case-insensitive), or nil when none exists.
	FindByKey(ctx context.Context, elementType, field, value string) (*Element, error)
	// GetElement returns ErrElementNotFound for unknown ids.
	GetElement(ctx context.Context, id string) (*Element, error)
}

// ElementWriter creates or updates elements. An empty elementID creates a
// new element; otherwise the existing element is updated. The element id is
// returned either way.
type ElementWriter interface {
	Upsert(ctx context.Context, elementType, elementID string, attributes map[string]any) (string, error)
}

// ElementRepository is the full element backend.
type ElementRepository interface {
	ElementFinder
	ElementWriter
}

// DuplicateWarning flags rows whose duplicate handling deserves a second
// look. Warnings never block an import.
type DuplicateWarning struct {
	RowIndexes []int  `json:"rowIndexes"`
	ElementID  string `json:"elementId,omitempty"`
	Field      string `json:"field,omitempty"`
	Value      string `json:"value,omitempty"`
	Message    string `json:"message"`
}

// DetectionResult holds at most one match per row, in row order.
type DetectionResult struct {
	Matches  []DuplicateMatch   `json:"matches"`
	Warnings []DuplicateWarning `json:"warnings"`
}

// DuplicateDetector finds existing elements that valid records refer to.
type DuplicateDetector struct {
	finder      ElementFinder
	catalog     Catalog
	concurrency int
}

// NewDuplicateDetector creates a detector. concurrency bounds the number of
// lookups in flight; zero or less uses GOMAXPROCS.
func NewDuplicateDetector(finder ElementFinder, c Catalog, concurrency int) *DuplicateDetector {
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}
	return &DuplicateDetector{finder: finder, catalog: c, concurrency: concurrency}
}

// Detect looks up every VALID record by its key fields in catalog order
// (application code before name). Lookups run concurrently and are all
// joined before the result is returned. Any lookup failure fails the whole
// call with an error wrapping ErrBackendUnavailable.
func (d *DuplicateDetector) Detect(ctx context.Context, records []ImportRecord) (DetectionResult, error) {
	var valid []ImportRecord
	for _, r := range records {
		if r.Status == StatusValid {
			valid = append(valid, r)
		}
	}
	slices.SortStableFunc(valid, func(a, b ImportRecord) int { return a.RowIndex - b.RowIndex })

	found := make([]*DuplicateMatch, len(valid))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for i, rec := range valid {
		g.Go(func() error {
			m, err := d.lookup(gctx, rec)
			if err != nil {
				return fmt.Errorf("row %d: %w", rec.RowIndex, err)
			}
			found[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return DetectionResult{}, err
	}

	res := DetectionResult{Matches: []DuplicateMatch{}, Warnings: []DuplicateWarning{}}
	for _, m := range found {
		if m != nil {
			res.Matches = append(res.Matches, *m)
		}
	}
	res.Warnings = append(res.Warnings, d.inFileWarnings(valid)...)
	res.Warnings = append(res.Warnings, sharedMatchWarnings(res.Matches)...)
	return res, nil
}

func (d *DuplicateDetector) lookup(ctx context.Context, rec ImportRecord) (*DuplicateMatch, error) {
	for _, key := range d.catalog.KeyFields {
		value := rec.Normalized.Text(key)
		if value == "" {
			continue
		}

		el, err := d.finder.FindByKey(ctx, d.catalog.ElementType, key, value)
		if err != nil {
			metrics.DuplicateLookups.WithLabelValues(key, "error").Inc()
			if errors.Is(err, ErrBackendUnavailable) || errors.Is(err, context.Canceled) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: find by %s: %v", ErrBackendUnavailable, key, err)
		}
		if el == nil {
			metrics.DuplicateLookups.WithLabelValues(key, "miss").Inc()
			continue
		}

		metrics.DuplicateLookups.WithLabelValues(key, "hit").Inc()
		return &DuplicateMatch{
			RowIndex:            rec.RowIndex,
			ExistingElementID:   el.ID,
			ExistingElementName: el.Name,
			MatchedBy:           key,
			Strategy:            StrategyUpdateExisting,
		}, nil
	}
	return nil, nil
}

// inFileWarnings reports key values shared by several rows of the same file.
func (d *DuplicateDetector) inFileWarnings(valid []ImportRecord) []DuplicateWarning {
	var out []DuplicateWarning
	for _, key := range d.catalog.KeyFields {
		rows := make(map[string][]int)
		display := make(map[string]string)
		var order []string
		for _, rec := range valid {
			v := rec.Normalized.Text(key)
			if v == "" {
				continue
			}
			folded := strings.ToLower(v)
			if _, seen := rows[folded]; !seen {
				order = append(order, folded)
				display[folded] = v
			}
			rows[folded] = append(rows[folded], rec.RowIndex)
		}
		for _, folded := range order {
			if len(rows[folded]) < 2 {
				continue
			}
			out = append(out, DuplicateWarning{
				RowIndexes: rows[folded],
				Field:      key,
				Value:      display[folded],
				Message:    fmt.Sprintf("rows %s share %s %q", joinRows(rows[folded]), key, display[folded]),
			})
		}
	}
	return out
}

// sharedMatchWarnings reports existing elements matched by more than one row.
// Each row is still applied on its own; with UPDATE_EXISTING the last row wins.
func sharedMatchWarnings(matches []DuplicateMatch) []DuplicateWarning {
	byElement := make(map[string][]int)
	var order []string
	for _, m := range matches {
		if _, seen := byElement[m.ExistingElementID]; !seen {
			order = append(order, m.ExistingElementID)
		}
		byElement[m.ExistingElementID] = append(byElement[m.ExistingElementID], m.RowIndex)
	}

	var out []DuplicateWarning
	for _, id := range order {
		rows := byElement[id]
		if len(rows) < 2 {
			continue
		}
		out = append(out, DuplicateWarning{
			RowIndexes: rows,
			ElementID:  id,
			Message:    fmt.Sprintf("rows %s match the same existing element; updates apply in row order and the last one wins", joinRows(rows)),
		})
	}
	return out
}

func joinRows(rows []int) string {
	parts := make([]string, len(rows))
	for i, r := range rows {
		parts[i] = strconv.Itoa(r)
	}
	return strings.Join(parts, ", ")
}

// Resolution holds the strategy chosen for each duplicate match. It is not
// safe for concurrent use.
type Resolution struct {
	matches []DuplicateMatch
	byRow   map[int]int
}

// NewResolution copies matches into a resolution. Matches without a
// strategy default to UPDATE_EXISTING; a second match for the same row is
// ignored.
func NewResolution(matches []DuplicateMatch) *Resolution {
	r := &Resolution{byRow: make(map[int]int, len(matches))}
	sorted := slices.Clone(matches)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].RowIndex < sorted[j].RowIndex })

	for _, m := range sorted {
		if _, exists := r.byRow[m.RowIndex]; exists {
			continue
		}
		if m.Strategy == "" {
			m.Strategy = StrategyUpdateExisting
		}
		r.byRow[m.RowIndex] = len(r.matches)
		r.matches = append(r.matches, m)
	}
	return r
}

// AssignStrategy sets the strategy for the match on rowIndex, replacing any
// earlier choice.
func (r *Resolution) AssignStrategy(rowIndex int, s DuplicateStrategy) error {
	if !s.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStrategy, s)
	}
	i, ok := r.byRow[rowIndex]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNoDuplicateMatch, rowIndex)
	}
	r.matches[i].Strategy = s
	return nil
}

// Match returns the match for rowIndex.
func (r *Resolution) Match(rowIndex int) (DuplicateMatch, bool) {
	i, ok := r.byRow[rowIndex]
	if !ok {
		return DuplicateMatch{}, false
	}
	return r.matches[i], true
}

// Matches returns a copy of all matches in row order.
func (r *Resolution) Matches() []DuplicateMatch {
	return slices.Clone(r.matches)
}
