package repo

import (
	"context"
	"errors"
	"time"

	"github.com/hamed0406/sitewatch/internal/domain"
)

// ErrNotFound is returned by Delete when no result exists for a site name.
var ErrNotFound = errors.New("not found")

// MergeFunc computes the value to store from the current one (nil when the
// site has no result yet).
type MergeFunc func(old *domain.Result) domain.Result

// ResultStore holds exactly one result per site name. Every write is a whole
// record replacement keyed by name.
type ResultStore interface {
	Get(ctx context.Context, name string) (*domain.Result, error)
	// List returns all results ordered by name.
	List(ctx context.Context) ([]domain.Result, error)
	Upsert(ctx context.Context, r domain.Result) error
	// Update reads, merges and writes one key atomically so the next read for
	// the same name observes the write.
	Update(ctx context.Context, name string, fn MergeFunc) (domain.Result, error)
	Delete(ctx context.Context, name string) error
}

// SyncRecorder keeps the per-site "last synchronised" bookkeeping.
type SyncRecorder interface {
	MarkSynced(ctx context.Context, name string, at time.Time) error
	LastSynced(ctx context.Context, name string) (time.Time, bool, error)
}

// Store is what a backend provides.
type Store interface {
	ResultStore
	SyncRecorder
	Close() error
}
