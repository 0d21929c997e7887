package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pressly/goose/v3/database"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/repo"
	"github.com/hamed0406/sitewatch/internal/repo/migrations"
)

// Store persists results in a single SQLite file. All access goes through one
// connection, which serialises Update without extra locking.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// New opens (creating if needed) the database file and migrates it.
func New(ctx context.Context, path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := repo.ConnectWithRetry(ctx, 10*time.Second, func() error { return db.PingContext(ctx) }); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := migrations.Up(ctx, db, database.DialectSQLite3); err != nil {
		db.Close()
		return nil, err
	}
	log.Info("sqlite_store_ready", zap.String("path", path))
	return &Store{db: db, log: log}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Get(ctx context.Context, name string) (*domain.Result, error) {
	return getResult(ctx, s.db, name)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getResult(ctx context.Context, q queryer, name string) (*domain.Result, error) {
	var payload string
	err := q.QueryRowContext(ctx, `SELECT payload FROM results WHERE name = ?`, name).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get result: %w", err)
	}
	var r domain.Result
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return nil, fmt.Errorf("decode result %q: %w", name, err)
	}
	return &r, nil
}

func (s *Store) List(ctx context.Context) ([]domain.Result, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, payload FROM results ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var out []domain.Result
	for rows.Next() {
		var name, payload string
		if err := rows.Scan(&name, &payload); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		var r domain.Result
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			s.log.Warn("sqlite_result_decode_error", zap.String("site", name), zap.Error(err))
			continue
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func putResult(ctx context.Context, e execer, r domain.Result) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	_, err = e.ExecContext(ctx, `
INSERT INTO results (name, url, status, payload, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
  url = excluded.url,
  status = excluded.status,
  payload = excluded.payload,
  updated_at = excluded.updated_at`,
		r.Name, r.URL, string(r.Status), string(payload), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("upsert result: %w", err)
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, r domain.Result) error {
	return putResult(ctx, s.db, r)
}

func (s *Store) Update(ctx context.Context, name string, fn repo.MergeFunc) (domain.Result, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Result{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	old, err := getResult(ctx, tx, name)
	if err != nil {
		return domain.Result{}, err
	}
	next := fn(old)
	next.Name = name
	if err := putResult(ctx, tx, next); err != nil {
		return domain.Result{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Result{}, fmt.Errorf("commit: %w", err)
	}
	return next, nil
}

func (s *Store) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM results WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete result: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// MarkSynced records a successful sync; it is a no-op for unknown sites.
func (s *Store) MarkSynced(ctx context.Context, name string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE results SET last_sync_at = ? WHERE name = ?`,
		at.UTC().Format(time.RFC3339Nano), name)
	if err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	return nil
}

func (s *Store) LastSynced(ctx context.Context, name string) (time.Time, bool, error) {
	var v sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT last_sync_at FROM results WHERE name = ?`, name).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !v.Valid) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("last synced: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse last_sync_at: %w", err)
	}
	return t, true, nil
}

var _ repo.Store = (*Store)(nil)
