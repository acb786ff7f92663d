package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/audit-engine/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetReport_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT report FROM audit_reports WHERE document_id = \$1 AND content_hash = \$2 AND rule_version = \$3`).
		WithArgs("doc-1", "hash-a", "v1").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.GetReport(context.Background(), "doc-1", "hash-a", "v1")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetReport_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	reportJSON := []byte(`{"document_id":"doc-1","content_hash":"hash-a","rule_version":"v1","aggregate":91.5,"meets_target":true}`)
	mock.ExpectQuery(`SELECT report FROM audit_reports`).
		WithArgs("doc-1", "hash-a", "v1").
		WillReturnRows(pgxmock.NewRows([]string{"report"}).AddRow(reportJSON))

	got, err := s.GetReport(context.Background(), "doc-1", "hash-a", "v1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 91.5, got.Aggregate)
	assert.True(t, got.MeetsTarget)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveReport_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT`).
		WithArgs("doc-1", "hash-a", "v1", "run-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SaveReport(context.Background(), "run-1", &model.AuditReport{
		DocumentID:  "doc-1",
		ContentHash: "hash-a",
		RuleVersion: "v1",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveReports_BulkPath(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_audit_reports"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_audit_reports"},
		[]string{"document_id", "content_hash", "rule_version", "run_id", "report", "created_at"}).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "audit_reports" .+ ON CONFLICT`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	err := s.SaveReports(context.Background(), "run-1", []*model.AuditReport{
		{DocumentID: "doc-1", ContentHash: "hash-a", RuleVersion: "v1"},
		{DocumentID: "doc-2", ContentHash: "hash-b", RuleVersion: "v1"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status`).
		WithArgs("completed", 0, 0, 0, 0.0, pgxmock.AnyArg(), "no-such-run").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.CompleteRun(context.Background(), "no-such-run", model.RunCompleted, RunStats{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	started := time.Now().UTC().Add(-time.Minute)
	completed := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, status, document_count`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "status", "document_count", "scored_count", "skipped_count",
			"mean_aggregate", "started_at", "completed_at",
		}).AddRow("run-1", "completed", 5, 5, 0, 77.4, started, &completed))

	got, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunCompleted, got.Status)
	assert.Equal(t, 5, got.DocumentCount)
	require.NotNil(t, got.CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, status, document_count`).
		WithArgs("no-such-run").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.GetRun(context.Background(), "no-such-run")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCachedAuthority_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT record FROM authority_cache`).
		WithArgs("Unknown Co", "unknown.example").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.GetCachedAuthority(context.Background(), "Unknown Co", "unknown.example")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetCachedAuthority_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT`).
		WithArgs("Acme", "acme.example", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SetCachedAuthority(context.Background(), &model.EntityAuthorityRecord{
		Entity:    "Acme",
		Domain:    "acme.example",
		FetchedAt: time.Now().UTC(),
	}, 6*time.Hour)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
