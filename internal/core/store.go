package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// BatchStore persists import batches. Implementations must make Update
// atomic with respect to other updates of the same batch so that the
// PENDING -> IN_PROGRESS claim happens at most once. Reads return
// snapshots and never block on a running execution.
type BatchStore interface {
	// Create stores a new batch. It returns ErrDuplicateBatch if the id exists.
	Create(ctx context.Context, b ImportBatch) error
	// Get returns ErrBatchNotFound for unknown ids.
	Get(ctx context.Context, id string) (ImportBatch, error)
	// Update applies u via ApplyUpdate and returns the stored result.
	Update(ctx context.Context, id string, u BatchUpdate) (ImportBatch, error)
	// List returns every batch, newest first.
	List(ctx context.Context) ([]ImportBatch, error)
	// Page returns a 1-based page of List together with the total count.
	Page(ctx context.Context, page, pageSize int) (BatchPage, error)
}

// MemoryStore is an in-process BatchStore.
type MemoryStore struct {
	mu      sync.RWMutex
	batches map[string]*memoryEntry
	seq     int
}

type memoryEntry struct {
	batch ImportBatch
	seq   int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{batches: make(map[string]*memoryEntry)}
}

func (m *MemoryStore) Create(_ context.Context, b ImportBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.batches[b.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateBatch, b.ID)
	}
	m.seq++
	m.batches[b.ID] = &memoryEntry{batch: b.Clone(), seq: m.seq}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (ImportBatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.batches[id]
	if !ok {
		return ImportBatch{}, fmt.Errorf("%w: %s", ErrBatchNotFound, id)
	}
	return e.batch.Clone(), nil
}

func (m *MemoryStore) Update(_ context.Context, id string, u BatchUpdate) (ImportBatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.batches[id]
	if !ok {
		return ImportBatch{}, fmt.Errorf("%w: %s", ErrBatchNotFound, id)
	}
	updated, err := ApplyUpdate(e.batch, u)
	if err != nil {
		return ImportBatch{}, err
	}
	e.batch = updated
	return updated.Clone(), nil
}

func (m *MemoryStore) List(_ context.Context) ([]ImportBatch, error) {
	m.mu.RLock()
	entries := make([]*memoryEntry, 0, len(m.batches))
	for _, e := range m.batches {
		entries = append(entries, e)
	}
	out := make([]ImportBatch, 0, len(entries))
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.batch.CreatedAt.Equal(b.batch.CreatedAt) {
			return a.batch.CreatedAt.After(b.batch.CreatedAt)
		}
		return a.seq > b.seq
	})
	for _, e := range entries {
		out = append(out, e.batch.Clone())
	}
	m.mu.RUnlock()
	return out, nil
}

func (m *MemoryStore) Page(ctx context.Context, page, pageSize int) (BatchPage, error) {
	page, pageSize = NormalizePage(page, pageSize)
	all, err := m.List(ctx)
	if err != nil {
		return BatchPage{}, err
	}

	res := BatchPage{Items: []ImportBatch{}, Total: len(all), Page: page, PageSize: pageSize}
	start := (page - 1) * pageSize
	if start >= len(all) {
		return res, nil
	}
	end := min(start+pageSize, len(all))
	res.Items = all[start:end]
	return res, nil
}
