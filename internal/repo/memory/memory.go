package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/reconcile"
	"github.com/hamed0406/sitewatch/internal/repo"
)

type Store struct {
	mu      sync.RWMutex
	results map[string]domain.Result
	synced  map[string]time.Time
}

func New() *Store {
	return &Store{
		results: make(map[string]domain.Result),
		synced:  make(map[string]time.Time),
	}
}

func (m *Store) Get(ctx context.Context, name string) (*domain.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.results[name]
	if !ok {
		return nil, nil
	}
	cp := reconcile.Clone(r)
	return &cp, nil
}

func (m *Store) List(ctx context.Context) ([]domain.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Result, 0, len(m.results))
	for _, r := range m.results {
		out = append(out, reconcile.Clone(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Store) Upsert(ctx context.Context, r domain.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[r.Name] = reconcile.Clone(r)
	return nil
}

func (m *Store) Update(ctx context.Context, name string, fn repo.MergeFunc) (domain.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var old *domain.Result
	if cur, ok := m.results[name]; ok {
		cp := reconcile.Clone(cur)
		old = &cp
	}
	next := fn(old)
	next.Name = name
	m.results[name] = reconcile.Clone(next)
	return next, nil
}

func (m *Store) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.results[name]; !ok {
		return repo.ErrNotFound
	}
	delete(m.results, name)
	delete(m.synced, name)
	return nil
}

func (m *Store) MarkSynced(ctx context.Context, name string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.synced[name] = at.UTC()
	return nil
}

func (m *Store) LastSynced(ctx context.Context, name string) (time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.synced[name]
	return t, ok, nil
}

func (m *Store) Close() error { return nil }

var _ repo.Store = (*Store)(nil)
