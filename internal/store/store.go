package store

import (
	"context"
	"time"

	"github.com/sells-group/audit-engine/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// RunStats carries the aggregate counters recorded when a run completes.
type RunStats struct {
	DocumentCount int     `json:"document_count"`
	ScoredCount   int     `json:"scored_count"`
	SkippedCount  int     `json:"skipped_count"`
	MeanAggregate float64 `json:"mean_aggregate"`
}

// Store defines the persistence interface for the audit engine. Reports are
// keyed by (document_id, content_hash, rule_version) so an unchanged document
// under an unchanged rule set is served from the cache instead of rescored.
type Store interface {
	// Reports
	SaveReport(ctx context.Context, runID string, report *model.AuditReport) error
	SaveReports(ctx context.Context, runID string, reports []*model.AuditReport) error
	GetReport(ctx context.Context, documentID, contentHash, ruleVersion string) (*model.AuditReport, error)
	LatestReport(ctx context.Context, documentID string) (*model.AuditReport, error)
	ListReports(ctx context.Context, limit int) ([]model.AuditReport, error)

	// Runs
	CreateRun(ctx context.Context) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, stats RunStats) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Authority cache
	GetCachedAuthority(ctx context.Context, entity, domain string) (*model.EntityAuthorityRecord, error)
	SetCachedAuthority(ctx context.Context, rec *model.EntityAuthorityRecord, ttl time.Duration) error
	DeleteExpiredAuthority(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
