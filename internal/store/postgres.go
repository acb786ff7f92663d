package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/audit-engine/internal/db"
	"github.com/sells-group/audit-engine/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_report":    `SELECT report FROM audit_reports WHERE document_id = $1 AND content_hash = $2 AND rule_version = $3`,
	"insert_run":    `INSERT INTO runs (id, status, started_at) VALUES ($1, $2, $3)`,
	"get_run":       `SELECT id, status, document_count, scored_count, skipped_count, mean_aggregate, started_at, completed_at FROM runs WHERE id = $1`,
	"get_authority": `SELECT record FROM authority_cache WHERE entity = $1 AND domain = $2 AND expires_at > now()`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need
// direct query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	status         TEXT NOT NULL DEFAULT 'running',
	document_count INTEGER NOT NULL DEFAULT 0,
	scored_count   INTEGER NOT NULL DEFAULT 0,
	skipped_count  INTEGER NOT NULL DEFAULT 0,
	mean_aggregate DOUBLE PRECISION NOT NULL DEFAULT 0,
	started_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at   TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS audit_reports (
	document_id  TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	rule_version TEXT NOT NULL,
	run_id       TEXT NOT NULL REFERENCES runs(id),
	report       JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (document_id, content_hash, rule_version)
);

CREATE TABLE IF NOT EXISTS authority_cache (
	entity     TEXT NOT NULL,
	domain     TEXT NOT NULL,
	record     JSONB NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (entity, domain)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_audit_reports_document_id ON audit_reports(document_id);
CREATE INDEX IF NOT EXISTS idx_audit_reports_run_id ON audit_reports(run_id);
CREATE INDEX IF NOT EXISTS idx_authority_cache_expires_at ON authority_cache(expires_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveReport(ctx context.Context, runID string, report *model.AuditReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal report")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO audit_reports (document_id, content_hash, rule_version, run_id, report, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (document_id, content_hash, rule_version)
		 DO UPDATE SET run_id = $4, report = $5, created_at = $6`,
		report.DocumentID, report.ContentHash, report.RuleVersion, runID, reportJSON, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save report %s", report.DocumentID)
}

// SaveReports bulk-upserts a run's reports via the COPY-based temp table path.
func (s *PostgresStore) SaveReports(ctx context.Context, runID string, reports []*model.AuditReport) error {
	if len(reports) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(reports))
	for _, report := range reports {
		reportJSON, err := json.Marshal(report)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal report %s", report.DocumentID)
		}
		rows = append(rows, []any{
			report.DocumentID, report.ContentHash, report.RuleVersion, runID, reportJSON, now,
		})
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "audit_reports",
		Columns:      []string{"document_id", "content_hash", "rule_version", "run_id", "report", "created_at"},
		ConflictKeys: []string{"document_id", "content_hash", "rule_version"},
	}, rows)
	return eris.Wrap(err, "postgres: save reports")
}

func (s *PostgresStore) GetReport(ctx context.Context, documentID, contentHash, ruleVersion string) (*model.AuditReport, error) {
	var reportJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT report FROM audit_reports WHERE document_id = $1 AND content_hash = $2 AND rule_version = $3`,
		documentID, contentHash, ruleVersion,
	).Scan(&reportJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get report %s", documentID)
	}

	var r model.AuditReport
	if err := json.Unmarshal(reportJSON, &r); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal report")
	}
	return &r, nil
}

func (s *PostgresStore) LatestReport(ctx context.Context, documentID string) (*model.AuditReport, error) {
	var reportJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT report FROM audit_reports WHERE document_id = $1 ORDER BY created_at DESC LIMIT 1`,
		documentID,
	).Scan(&reportJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: latest report %s", documentID)
	}

	var r model.AuditReport
	if err := json.Unmarshal(reportJSON, &r); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal report")
	}
	return &r, nil
}

func (s *PostgresStore) ListReports(ctx context.Context, limit int) ([]model.AuditReport, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx,
		`SELECT report FROM audit_reports ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list reports")
	}
	defer rows.Close()

	var reports []model.AuditReport
	for rows.Next() {
		var reportJSON []byte
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan report")
		}
		var r model.AuditReport
		if err := json.Unmarshal(reportJSON, &r); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal report")
		}
		reports = append(reports, r)
	}
	return reports, eris.Wrap(rows.Err(), "postgres: list reports iterate")
}

func (s *PostgresStore) CreateRun(ctx context.Context) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, status, started_at) VALUES ($1, $2, $3)`,
		id, string(model.RunRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Status:    model.RunRunning,
		StartedAt: now,
	}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, stats RunStats) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, document_count = $2, scored_count = $3, skipped_count = $4,
		 mean_aggregate = $5, completed_at = $6 WHERE id = $7`,
		string(status), stats.DocumentCount, stats.ScoredCount, stats.SkippedCount,
		stats.MeanAggregate, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var r model.Run
	var completedAt *time.Time

	err := s.pool.QueryRow(ctx,
		`SELECT id, status, document_count, scored_count, skipped_count, mean_aggregate, started_at, completed_at
		 FROM runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &r.Status, &r.DocumentCount, &r.ScoredCount, &r.SkippedCount,
		&r.MeanAggregate, &r.StartedAt, &completedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	r.CompletedAt = completedAt
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, status, document_count, scored_count, skipped_count, mean_aggregate, started_at, completed_at
	          FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var completedAt *time.Time
		if err := rows.Scan(&r.ID, &r.Status, &r.DocumentCount, &r.ScoredCount, &r.SkippedCount,
			&r.MeanAggregate, &r.StartedAt, &completedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.CompletedAt = completedAt
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) GetCachedAuthority(ctx context.Context, entity, domain string) (*model.EntityAuthorityRecord, error) {
	var recordJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT record FROM authority_cache WHERE entity = $1 AND domain = $2 AND expires_at > now()`,
		entity, domain,
	).Scan(&recordJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get cached authority")
	}

	var rec model.EntityAuthorityRecord
	if err := json.Unmarshal(recordJSON, &rec); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal authority record")
	}
	return &rec, nil
}

func (s *PostgresStore) SetCachedAuthority(ctx context.Context, rec *model.EntityAuthorityRecord, ttl time.Duration) error {
	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal authority record")
	}
	expiresAt := time.Now().UTC().Add(ttl)

	_, err = s.pool.Exec(ctx,
		`INSERT INTO authority_cache (entity, domain, record, fetched_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (entity, domain) DO UPDATE SET record = $3, fetched_at = $4, expires_at = $5`,
		rec.Entity, rec.Domain, recordJSON, rec.FetchedAt.UTC(), expiresAt,
	)
	return eris.Wrap(err, "postgres: set cached authority")
}

func (s *PostgresStore) DeleteExpiredAuthority(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM authority_cache WHERE expires_at <= now()`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired authority")
	}
	return int(tag.RowsAffected()), nil
}
