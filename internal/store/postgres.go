package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/dex-cli/internal/db"
	"github.com/sells-group/dex-cli/internal/model"
)

// PostgresStore implements Store using a pgx pool.
type PostgresStore struct {
	pool db.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgres connects to PostgreSQL and returns a PostgresStore.
func NewPostgres(ctx context.Context, connString string, poolCfg *db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT 'running',
	options    JSONB NOT NULL,
	summary    JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS entity_outcomes (
	run_id       TEXT NOT NULL REFERENCES runs(id),
	dex_no       INTEGER NOT NULL,
	name         TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL,
	degraded     JSONB NOT NULL DEFAULT '[]',
	wrote        BOOLEAN NOT NULL DEFAULT false,
	error        TEXT NOT NULL DEFAULT '',
	processed_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (run_id, dex_no)
);

CREATE TABLE IF NOT EXISTS page_cache (
	url_hash   TEXT PRIMARY KEY,
	url        TEXT NOT NULL,
	body       BYTEA NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_page_cache_expires_at ON page_cache(expires_at);
`

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, opts model.RunOptions) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	optsJSON, err := json.Marshal(opts)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal options")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, status, options, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, string(model.RunStatusRunning), optsJSON, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Status:    model.RunStatusRunning,
		Options:   opts,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) RecordOutcome(ctx context.Context, o model.EntityOutcome) error {
	degraded, err := json.Marshal(nonNil(o.Degraded))
	if err != nil {
		return eris.Wrap(err, "postgres: marshal degraded")
	}

	return db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO entity_outcomes (run_id, dex_no, name, status, degraded, wrote, error, processed_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (run_id, dex_no) DO UPDATE SET
			   name = EXCLUDED.name, status = EXCLUDED.status, degraded = EXCLUDED.degraded,
			   wrote = EXCLUDED.wrote, error = EXCLUDED.error, processed_at = EXCLUDED.processed_at`,
			o.RunID, o.DexNo, o.Name, string(o.Status), degraded, o.Wrote, o.Error, o.ProcessedAt.UTC(),
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: record outcome %s/%d", o.RunID, o.DexNo)
		}

		tag, err := tx.Exec(ctx, `UPDATE runs SET updated_at = $1 WHERE id = $2`, time.Now().UTC(), o.RunID)
		if err != nil {
			return eris.Wrapf(err, "postgres: touch run %s", o.RunID)
		}
		if tag.RowsAffected() == 0 {
			return eris.Wrapf(ErrRunNotFound, "run %s", o.RunID)
		}
		return nil
	})
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary model.RunSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal summary")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, summary = $2, updated_at = $3 WHERE id = $4`,
		string(status), summaryJSON, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrRunNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, status, options, summary, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	)
	r, err := scanPgRun(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, status, options, summary, created_at, updated_at FROM runs`
	var args []any
	n := 1
	if filter.Status != "" {
		query += fmt.Sprintf(` WHERE status = $%d`, n)
		args = append(args, string(filter.Status))
		n++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, n, n+1)
	args = append(args, limitOrDefault(filter.Limit), filter.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate runs")
}

func (s *PostgresStore) ListOutcomes(ctx context.Context, runID string) ([]model.EntityOutcome, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT run_id, dex_no, name, status, degraded, wrote, error, processed_at
		 FROM entity_outcomes WHERE run_id = $1 ORDER BY dex_no`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list outcomes %s", runID)
	}
	defer rows.Close()

	var out []model.EntityOutcome
	for rows.Next() {
		var o model.EntityOutcome
		var status string
		var degraded []byte
		if err := rows.Scan(&o.RunID, &o.DexNo, &o.Name, &status, &degraded, &o.Wrote, &o.Error, &o.ProcessedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan outcome")
		}
		o.Status = model.Status(status)
		if err := json.Unmarshal(degraded, &o.Degraded); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal degraded")
		}
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate outcomes")
}

func (s *PostgresStore) ResumePoint(ctx context.Context) (int, error) {
	runs, err := s.ListRuns(ctx, RunFilter{Limit: 1})
	if err != nil {
		return 0, err
	}
	if len(runs) == 0 {
		return 1, nil
	}
	latest := &runs[0]

	var last int
	err = s.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(dex_no), 0) FROM entity_outcomes WHERE run_id = $1`, latest.ID,
	).Scan(&last)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: resume point")
	}
	return resumeFrom(latest, last), nil
}

func (s *PostgresStore) GetCachedPage(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	err := s.pool.QueryRow(ctx,
		`SELECT body FROM page_cache WHERE url_hash = $1 AND expires_at > now()`,
		URLHash(url),
	).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get cached page")
	}
	return body, nil
}

func (s *PostgresStore) SetCachedPage(ctx context.Context, url string, body []byte, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO page_cache (url_hash, url, body, fetched_at, expires_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (url_hash) DO UPDATE SET body = EXCLUDED.body, fetched_at = EXCLUDED.fetched_at, expires_at = EXCLUDED.expires_at`,
		URLHash(url), url, body, now, now.Add(ttl),
	)
	return eris.Wrap(err, "postgres: set cached page")
}

func (s *PostgresStore) DeleteExpiredPages(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM page_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired pages")
	}
	return int(tag.RowsAffected()), nil
}

func scanPgRun(row pgx.Row) (*model.Run, error) {
	var r model.Run
	var status string
	var optsJSON, summaryJSON []byte

	err := row.Scan(&r.ID, &status, &optsJSON, &summaryJSON, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan run")
	}
	r.Status = model.RunStatus(status)
	if err := decodeRunJSON(&r, string(optsJSON), string(summaryJSON)); err != nil {
		return nil, err
	}
	return &r, nil
}
