package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/dex-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT 'running',
	options    TEXT NOT NULL,
	summary    TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS entity_outcomes (
	run_id       TEXT NOT NULL REFERENCES runs(id),
	dex_no       INTEGER NOT NULL,
	name         TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL,
	degraded     TEXT NOT NULL DEFAULT '[]',
	wrote        INTEGER NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT '',
	processed_at DATETIME NOT NULL,
	PRIMARY KEY (run_id, dex_no)
);

CREATE TABLE IF NOT EXISTS page_cache (
	url_hash   TEXT PRIMARY KEY,
	url        TEXT NOT NULL,
	body       BLOB NOT NULL,
	fetched_at DATETIME NOT NULL,
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_page_cache_expires_at ON page_cache(expires_at);
`

// Migrate creates the schema if it does not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, opts model.RunOptions) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	optsJSON, err := json.Marshal(opts)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal options")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, options, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, string(model.RunStatusRunning), string(optsJSON), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Status:    model.RunStatusRunning,
		Options:   opts,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) RecordOutcome(ctx context.Context, o model.EntityOutcome) error {
	degraded, err := json.Marshal(nonNil(o.Degraded))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal degraded")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO entity_outcomes (run_id, dex_no, name, status, degraded, wrote, error, processed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (run_id, dex_no) DO UPDATE SET
		   name = excluded.name, status = excluded.status, degraded = excluded.degraded,
		   wrote = excluded.wrote, error = excluded.error, processed_at = excluded.processed_at`,
		o.RunID, o.DexNo, o.Name, string(o.Status), string(degraded), o.Wrote, o.Error, o.ProcessedAt.UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: record outcome %s/%d", o.RunID, o.DexNo)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE runs SET updated_at = ? WHERE id = ?`, time.Now().UTC(), o.RunID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: touch run %s", o.RunID)
	}
	if err := checkRowsAffected(res, o.RunID); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit outcome")
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary model.RunSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal summary")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, summary = ?, updated_at = ? WHERE id = ?`,
		string(status), string(summaryJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, options, summary, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	r, err := scanRun(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	return r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, status, options, summary, created_at, updated_at FROM runs`
	var args []any
	if filter.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`
	args = append(args, limitOrDefault(filter.Limit), filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

func (s *SQLiteStore) ListOutcomes(ctx context.Context, runID string) ([]model.EntityOutcome, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, dex_no, name, status, degraded, wrote, error, processed_at
		 FROM entity_outcomes WHERE run_id = ? ORDER BY dex_no`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list outcomes %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.EntityOutcome
	for rows.Next() {
		var o model.EntityOutcome
		var degraded string
		if err := rows.Scan(&o.RunID, &o.DexNo, &o.Name, &o.Status, &degraded, &o.Wrote, &o.Error, &o.ProcessedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan outcome")
		}
		if err := json.Unmarshal([]byte(degraded), &o.Degraded); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal degraded")
		}
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate outcomes")
}

func (s *SQLiteStore) ResumePoint(ctx context.Context) (int, error) {
	runs, err := s.ListRuns(ctx, RunFilter{Limit: 1})
	if err != nil {
		return 0, err
	}
	if len(runs) == 0 {
		return 1, nil
	}
	latest := &runs[0]

	var last int
	err = s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(dex_no), 0) FROM entity_outcomes WHERE run_id = ?`, latest.ID,
	).Scan(&last)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: resume point")
	}
	return resumeFrom(latest, last), nil
}

func (s *SQLiteStore) GetCachedPage(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM page_cache WHERE url_hash = ? AND expires_at > ?`,
		URLHash(url), time.Now().UTC(),
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cached page")
	}
	return body, nil
}

func (s *SQLiteStore) SetCachedPage(ctx context.Context, url string, body []byte, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO page_cache (url_hash, url, body, fetched_at, expires_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (url_hash) DO UPDATE SET body = excluded.body, fetched_at = excluded.fetched_at, expires_at = excluded.expires_at`,
		URLHash(url), url, body, now, now.Add(ttl),
	)
	return eris.Wrap(err, "sqlite: set cached page")
}

func (s *SQLiteStore) DeleteExpiredPages(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM page_cache WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired pages")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: rows affected")
	}
	return int(n), nil
}

func checkRowsAffected(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrRunNotFound, "run %s", runID)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var optsJSON string
	var summaryJSON sql.NullString

	err := row.Scan(&r.ID, &r.Status, &optsJSON, &summaryJSON, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	if err := decodeRunJSON(&r, optsJSON, summaryJSON.String); err != nil {
		return nil, err
	}
	return &r, nil
}

func decodeRunJSON(r *model.Run, opts, summary string) error {
	if err := json.Unmarshal([]byte(opts), &r.Options); err != nil {
		return eris.Wrap(err, "unmarshal run options")
	}
	if strings.TrimSpace(summary) != "" {
		r.Summary = &model.RunSummary{}
		if err := json.Unmarshal([]byte(summary), r.Summary); err != nil {
			return eris.Wrap(err, "unmarshal run summary")
		}
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
