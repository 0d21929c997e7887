package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/repo"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := New(context.Background(), filepath.Join(t.TempDir(), "results.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_RoundTripsResult(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	bal := 12.5
	ts := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	in := domain.Result{
		Name:        "alpha",
		URL:         "https://alpha.example.com",
		Status:      domain.StatusSuccess,
		Models:      []string{"m1", "m2"},
		Balance:     &bal,
		APIKeys:     json.RawMessage(`[{"id":1,"name":"default"}]`),
		LastRefresh: &ts,
	}
	require.NoError(t, s.Upsert(ctx, in))

	got, err := s.Get(ctx, "alpha")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, in.Models, got.Models)
	assert.Equal(t, 12.5, *got.Balance)
	assert.JSONEq(t, string(in.APIKeys), string(got.APIKeys))
	assert.True(t, got.LastRefresh.Equal(ts))

	missing, err := s.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLiteStore_UpdateMergesAgainstStoredValue(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	_, err := s.Update(ctx, "beta", func(old *domain.Result) domain.Result {
		assert.Nil(t, old)
		return domain.Result{URL: "https://beta", Status: domain.StatusSuccess, Models: []string{"x"}}
	})
	require.NoError(t, err)

	out, err := s.Update(ctx, "beta", func(old *domain.Result) domain.Result {
		require.NotNil(t, old)
		next := *old
		next.Status = domain.StatusFailure
		next.Error = "timeout"
		return next
	})
	require.NoError(t, err)
	assert.Equal(t, "beta", out.Name)
	assert.Equal(t, []string{"x"}, out.Models)

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, domain.StatusFailure, all[0].Status)
}

func TestSQLiteStore_SyncBookkeeping(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	_, ok, err := s.LastSynced(ctx, "gamma")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Upsert(ctx, domain.Result{Name: "gamma", URL: "https://g", Status: domain.StatusSuccess}))
	at := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	require.NoError(t, s.MarkSynced(ctx, "gamma", at))

	got, ok, err := s.LastSynced(ctx, "gamma")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, got.Equal(at))

	require.NoError(t, s.Delete(ctx, "gamma"))
	r, err := s.Get(ctx, "gamma")
	require.NoError(t, err)
	assert.Nil(t, r)
	assert.ErrorIs(t, s.Delete(ctx, "gamma"), repo.ErrNotFound)
}
