package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/audit-engine/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id             TEXT PRIMARY KEY,
	status         TEXT NOT NULL DEFAULT 'running',
	document_count INTEGER NOT NULL DEFAULT 0,
	scored_count   INTEGER NOT NULL DEFAULT 0,
	skipped_count  INTEGER NOT NULL DEFAULT 0,
	mean_aggregate REAL NOT NULL DEFAULT 0,
	started_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at   DATETIME
);

CREATE TABLE IF NOT EXISTS audit_reports (
	document_id  TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	rule_version TEXT NOT NULL,
	run_id       TEXT NOT NULL REFERENCES runs(id),
	report       TEXT NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (document_id, content_hash, rule_version)
);

CREATE TABLE IF NOT EXISTS authority_cache (
	entity     TEXT NOT NULL,
	domain     TEXT NOT NULL,
	record     TEXT NOT NULL,
	fetched_at DATETIME NOT NULL,
	expires_at DATETIME NOT NULL,
	PRIMARY KEY (entity, domain)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_audit_reports_document_id ON audit_reports(document_id);
CREATE INDEX IF NOT EXISTS idx_audit_reports_run_id ON audit_reports(run_id);
CREATE INDEX IF NOT EXISTS idx_authority_cache_expires_at ON authority_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveReport(ctx context.Context, runID string, report *model.AuditReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal report")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_reports (document_id, content_hash, rule_version, run_id, report, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (document_id, content_hash, rule_version) DO UPDATE SET run_id = excluded.run_id, report = excluded.report, created_at = excluded.created_at`,
		report.DocumentID, report.ContentHash, report.RuleVersion, runID, string(reportJSON), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save report %s", report.DocumentID)
}

func (s *SQLiteStore) SaveReports(ctx context.Context, runID string, reports []*model.AuditReport) error {
	if len(reports) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	for _, report := range reports {
		reportJSON, err := json.Marshal(report)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal report %s", report.DocumentID)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO audit_reports (document_id, content_hash, rule_version, run_id, report, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (document_id, content_hash, rule_version) DO UPDATE SET run_id = excluded.run_id, report = excluded.report, created_at = excluded.created_at`,
			report.DocumentID, report.ContentHash, report.RuleVersion, runID, string(reportJSON), now,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: save report %s", report.DocumentID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit reports")
}

func (s *SQLiteStore) GetReport(ctx context.Context, documentID, contentHash, ruleVersion string) (*model.AuditReport, error) {
	var reportJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT report FROM audit_reports
		 WHERE document_id = ? AND content_hash = ? AND rule_version = ?`,
		documentID, contentHash, ruleVersion,
	).Scan(&reportJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get report %s", documentID)
	}
	return unmarshalReport(reportJSON)
}

func (s *SQLiteStore) LatestReport(ctx context.Context, documentID string) (*model.AuditReport, error) {
	var reportJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT report FROM audit_reports
		 WHERE document_id = ?
		 ORDER BY created_at DESC LIMIT 1`,
		documentID,
	).Scan(&reportJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: latest report %s", documentID)
	}
	return unmarshalReport(reportJSON)
}

func (s *SQLiteStore) ListReports(ctx context.Context, limit int) ([]model.AuditReport, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT report FROM audit_reports ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list reports")
	}
	defer rows.Close()

	var reports []model.AuditReport
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan report")
		}
		r, err := unmarshalReport(reportJSON)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *r)
	}
	return reports, eris.Wrap(rows.Err(), "sqlite: list reports iterate")
}

func (s *SQLiteStore) CreateRun(ctx context.Context) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, started_at) VALUES (?, ?, ?)`,
		id, string(model.RunRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Status:    model.RunRunning,
		StartedAt: now,
	}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, stats RunStats) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, document_count = ?, scored_count = ?, skipped_count = ?,
		 mean_aggregate = ?, completed_at = ? WHERE id = ?`,
		string(status), stats.DocumentCount, stats.ScoredCount, stats.SkippedCount,
		stats.MeanAggregate, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, document_count, scored_count, skipped_count, mean_aggregate, started_at, completed_at
		 FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, status, document_count, scored_count, skipped_count, mean_aggregate, started_at, completed_at
	          FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) GetCachedAuthority(ctx context.Context, entity, domain string) (*model.EntityAuthorityRecord, error) {
	var recordJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM authority_cache
		 WHERE entity = ? AND domain = ? AND expires_at > datetime('now')`,
		entity, domain,
	).Scan(&recordJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cached authority")
	}

	var rec model.EntityAuthorityRecord
	if err := json.Unmarshal([]byte(recordJSON), &rec); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal authority record")
	}
	return &rec, nil
}

func (s *SQLiteStore) SetCachedAuthority(ctx context.Context, rec *model.EntityAuthorityRecord, ttl time.Duration) error {
	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal authority record")
	}
	expiresAt := time.Now().UTC().Add(ttl)

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO authority_cache (entity, domain, record, fetched_at, expires_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (entity, domain) DO UPDATE SET record = excluded.record, fetched_at = excluded.fetched_at, expires_at = excluded.expires_at`,
		rec.Entity, rec.Domain, string(recordJSON), rec.FetchedAt.UTC(), expiresAt,
	)
	return eris.Wrap(err, "sqlite: set cached authority")
}

func (s *SQLiteStore) DeleteExpiredAuthority(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM authority_cache WHERE expires_at <= datetime('now')`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired authority")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var completedAt sql.NullTime

	err := row.Scan(&r.ID, &r.Status, &r.DocumentCount, &r.ScoredCount, &r.SkippedCount,
		&r.MeanAggregate, &r.StartedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	if completedAt.Valid {
		t := completedAt.Time
		r.CompletedAt = &t
	}
	return &r, nil
}

func unmarshalReport(reportJSON string) (*model.AuditReport, error) {
	var r model.AuditReport
	if err := json.Unmarshal([]byte(reportJSON), &r); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal report")
	}
	return &r, nil
}
