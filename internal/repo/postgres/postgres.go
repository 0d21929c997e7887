package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3/database"
	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/repo"
	"github.com/hamed0406/sitewatch/internal/repo/migrations"
)

var _ repo.Store = (*Store)(nil)

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	err = repo.ConnectWithRetry(ctx, 30*time.Second, func() error {
		ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return pool.Ping(ctxPing)
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	if err := migrations.Up(ctx, db, database.DialectPostgres); err != nil {
		pool.Close()
		return nil, err
	}
	log.Info("postgres_store_ready")
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *Store) Get(ctx context.Context, name string) (*domain.Result, error) {
	return getResult(ctx, s.pool, name)
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getResult(ctx context.Context, q rowQuerier, name string) (*domain.Result, error) {
	var payload []byte
	err := q.QueryRow(ctx, `SELECT payload FROM results WHERE name = $1`, name).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get result: %w", err)
	}
	var r domain.Result
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, fmt.Errorf("decode result %q: %w", name, err)
	}
	return &r, nil
}

func (s *Store) List(ctx context.Context) ([]domain.Result, error) {
	rows, err := s.pool.Query(ctx, `SELECT name, payload FROM results ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var out []domain.Result
	for rows.Next() {
		var (
			name    string
			payload []byte
		)
		if err := rows.Scan(&name, &payload); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		var r domain.Result
		if err := json.Unmarshal(payload, &r); err != nil {
			s.log.Warn("postgres_result_decode_error", zap.String("site", name), zap.Error(err))
			continue
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const upsertSQL = `
INSERT INTO results (name, url, status, payload, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (name)
DO UPDATE SET url = EXCLUDED.url, status = EXCLUDED.status,
              payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`

func (s *Store) Upsert(ctx context.Context, r domain.Result) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if _, err := s.pool.Exec(ctx, upsertSQL, r.Name, r.URL, string(r.Status), payload); err != nil {
		return fmt.Errorf("upsert result: %w", err)
	}
	return nil
}

// Update serialises writers for one name with a transaction-scoped advisory
// lock, which also covers the first insert where no row exists to lock.
func (s *Store) Update(ctx context.Context, name string, fn repo.MergeFunc) (domain.Result, error) {
	var out domain.Result
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, name); err != nil {
			return fmt.Errorf("lock %q: %w", name, err)
		}
		old, err := getResult(ctx, tx, name)
		if err != nil {
			return err
		}
		next := fn(old)
		next.Name = name
		payload, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		if _, err := tx.Exec(ctx, upsertSQL, next.Name, next.URL, string(next.Status), payload); err != nil {
			return fmt.Errorf("upsert result: %w", err)
		}
		out = next
		return nil
	})
	return out, err
}

func (s *Store) Delete(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM results WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *Store) MarkSynced(ctx context.Context, name string, at time.Time) error {
	if _, err := s.pool.Exec(ctx, `UPDATE results SET last_sync_at = $2 WHERE name = $1`, name, at.UTC()); err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	return nil
}

func (s *Store) LastSynced(ctx context.Context, name string) (time.Time, bool, error) {
	var at *time.Time
	err := s.pool.QueryRow(ctx, `SELECT last_sync_at FROM results WHERE name = $1`, name).Scan(&at)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("last synced: %w", err)
	}
	if at == nil {
		return time.Time{}, false, nil
	}
	return *at, true, nil
}
