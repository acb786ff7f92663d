package model

// RoadmapItem is one prioritized remediation action. Derived output:
// regenerated on every run from the reports and corpus findings that
// produced it, never incrementally patched.
type RoadmapItem struct {
	Priority        int      `json:"priority"` // 1 = most urgent
	RuleID          string   `json:"rule_id,omitempty"`
	Category        Category `json:"category"`
	Severity        Severity `json:"severity"`
	Action          string   `json:"action"`
	AffectedDocs    []string `json:"affected_docs"`
	EstimatedImpact float64  `json:"estimated_impact"`
}
