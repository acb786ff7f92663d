package model

import "time"

// CategoryScore is the weighted pass ratio for one category of one
// document, in [0,1]. Evaluated excludes rules whose predicate errored.
type CategoryScore struct {
	Category  Category `json:"category"`
	Score     float64  `json:"score"`
	Evaluated int      `json:"evaluated"`
	Failed    int      `json:"failed"`
	Errored   int      `json:"errored"`
}

// Issue is one actionable finding attached to a report.
type Issue struct {
	RuleID   string   `json:"rule_id"`
	Category Category `json:"category"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Evidence string   `json:"evidence,omitempty"`
}

// AuditReport is the scoring output for one document snapshot. It carries
// no timestamps: the same snapshot under the same rule version must
// marshal byte-identically.
type AuditReport struct {
	DocumentID     string          `json:"document_id"`
	ContentHash    string          `json:"content_hash"`
	RuleVersion    string          `json:"rule_version"`
	Results        []RuleResult    `json:"results"`
	CategoryScores []CategoryScore `json:"category_scores"`
	Aggregate      float64         `json:"aggregate"` // [0,100]
	Issues         []Issue         `json:"issues"`    // severity-sorted
	Facts          []EAVTriple     `json:"facts,omitempty"`
	MeetsTarget    bool            `json:"meets_target"`
}

// CategoryScoreFor returns the score entry for a category, if present.
func (r *AuditReport) CategoryScoreFor(c Category) (CategoryScore, bool) {
	for _, cs := range r.CategoryScores {
		if cs.Category == c {
			return cs, true
		}
	}
	return CategoryScore{}, false
}

// RunStatus tracks the lifecycle of an audit run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// Run records one audit invocation over a corpus snapshot.
type Run struct {
	ID            string     `json:"id"`
	Status        RunStatus  `json:"status"`
	DocumentCount int        `json:"document_count"`
	ScoredCount   int        `json:"scored_count"`
	SkippedCount  int        `json:"skipped_count"` // unchanged docs served from cache
	MeanAggregate float64    `json:"mean_aggregate"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}
