package reports

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/de-tools/pivot-reports/pkg/models/store"
)

type memoryStore struct {
	mu      sync.RWMutex
	records map[string]*store.ReportRequest
}

func NewMemoryStore() Store {
	return &memoryStore{
		records: make(map[string]*store.ReportRequest),
	}
}

func (m *memoryStore) Create(_ context.Context, r *store.ReportRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.records[r.RequestID]; exists {
		return ErrAlreadyExists
	}
	m.records[r.RequestID] = clone(r)
	return nil
}

func (m *memoryStore) Fetch(_ context.Context, requestID string) (*store.ReportRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[requestID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(r), nil
}

func (m *memoryStore) Update(_ context.Context, requestID string, patch store.ReportPatch) (*store.ReportRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[requestID]
	if !ok {
		return nil, ErrNotFound
	}
	patch.Apply(r)
	return clone(r), nil
}

func (m *memoryStore) List(_ context.Context, owner string) ([]*store.ReportRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	res := make([]*store.ReportRequest, 0, len(m.records))
	for _, r := range m.records {
		if owner != "" && r.Owner != owner {
			continue
		}
		res = append(res, clone(r))
	}

	slices.SortFunc(res, func(a, b *store.ReportRequest) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.RequestID, b.RequestID)
	})
	return res, nil
}

func (m *memoryStore) DeleteCreatedBefore(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	deleted := 0
	for id, r := range m.records {
		if r.CreatedAt.Before(cutoff) {
			delete(m.records, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *memoryStore) Close() error {
	return nil
}

func clone(r *store.ReportRequest) *store.ReportRequest {
	c := *r
	c.Payload = slices.Clone(r.Payload)
	if r.CSVPath != nil {
		path := *r.CSVPath
		c.CSVPath = &path
	}
	if r.CompletedAt != nil {
		at := *r.CompletedAt
		c.CompletedAt = &at
	}
	return &c
}
