// Package roadmap turns scorer, corpus, and authority outputs into one
// prioritized remediation list. Semantically equivalent issues recurring
// across documents merge into a single item naming the affected set.
package roadmap

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sells-group/audit-engine/internal/model"
)

// Build derives the roadmap for one run. Items are sorted by estimated
// impact descending, ties broken by severity, then category weight, then
// rule id; Priority is the resulting 1-based rank. The output is derived
// data: regenerated every run, never patched incrementally.
func Build(
	reports []*model.AuditReport,
	corpusReport *model.CorpusReport,
	records []*model.EntityAuthorityRecord,
	categoryWeights map[model.Category]float64,
) []model.RoadmapItem {
	var items []model.RoadmapItem

	items = append(items, mergeIssues(reports)...)
	if corpusReport != nil {
		items = append(items, corpusItems(corpusReport)...)
	}
	items = append(items, authorityItems(records)...)

	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.EstimatedImpact != b.EstimatedImpact {
			return a.EstimatedImpact > b.EstimatedImpact
		}
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		if categoryWeights[a.Category] != categoryWeights[b.Category] {
			return categoryWeights[a.Category] > categoryWeights[b.Category]
		}
		return a.RuleID < b.RuleID
	})

	for i := range items {
		items[i].Priority = i + 1
	}
	return items
}

// mergeIssues deduplicates per-document issues by rule id: the same
// missing-EAV issue on forty pages becomes one item affecting forty pages.
func mergeIssues(reports []*model.AuditReport) []model.RoadmapItem {
	type group struct {
		issue model.Issue
		docs  []string
	}
	groups := make(map[string]*group)

	for _, rep := range reports {
		for _, issue := range rep.Issues {
			g, ok := groups[issue.RuleID]
			if !ok {
				g = &group{issue: issue}
				groups[issue.RuleID] = g
			}
			g.docs = append(g.docs, rep.DocumentID)
		}
	}

	items := make([]model.RoadmapItem, 0, len(groups))
	for _, g := range groups {
		docs := dedupeSorted(g.docs)
		items = append(items, model.RoadmapItem{
			RuleID:          g.issue.RuleID,
			Category:        g.issue.Category,
			Severity:        g.issue.Severity,
			Action:          fmt.Sprintf("%s (%d documents affected)", g.issue.Message, len(docs)),
			AffectedDocs:    docs,
			EstimatedImpact: impact(g.issue.Severity, len(docs)),
		})
	}
	return items
}

func corpusItems(report *model.CorpusReport) []model.RoadmapItem {
	var items []model.RoadmapItem

	if len(report.Overlaps) > 0 {
		docSet := make(map[string]struct{})
		for _, p := range report.Overlaps {
			docSet[p.DocumentA] = struct{}{}
			docSet[p.DocumentB] = struct{}{}
		}
		docs := setToSorted(docSet)
		items = append(items, model.RoadmapItem{
			Category: model.CategoryCrossPage,
			Severity: model.SeverityCritical,
			Action: fmt.Sprintf("Consolidate or differentiate %d near-duplicate page pairs",
				len(report.Overlaps)),
			AffectedDocs:    docs,
			EstimatedImpact: impact(model.SeverityCritical, len(docs)),
		})
	}

	if len(report.AnchorViolations) > 0 {
		docSet := make(map[string]struct{})
		for _, v := range report.AnchorViolations {
			docSet[v.SourceID] = struct{}{}
		}
		docs := setToSorted(docSet)
		items = append(items, model.RoadmapItem{
			Category:        model.CategoryInternalLinking,
			Severity:        model.SeverityHigh,
			Action:          fmt.Sprintf("Diversify %d repeated anchor/target pairs", len(report.AnchorViolations)),
			AffectedDocs:    docs,
			EstimatedImpact: impact(model.SeverityHigh, len(docs)),
		})
	}

	if report.Coverage.Applicable {
		var missing []string
		for _, tc := range report.Coverage.Targets {
			if !tc.Covered {
				missing = append(missing, tc.Target.Entity+"/"+tc.Target.Attribute)
			}
		}
		if len(missing) > 0 {
			items = append(items, model.RoadmapItem{
				Category:        model.CategoryEAVQuality,
				Severity:        model.SeverityHigh,
				Action:          "Cover missing target facts: " + strings.Join(missing, ", "),
				AffectedDocs:    []string{},
				EstimatedImpact: impact(model.SeverityHigh, len(missing)),
			})
		}
	}

	return items
}

func authorityItems(records []*model.EntityAuthorityRecord) []model.RoadmapItem {
	var items []model.RoadmapItem
	for _, rec := range records {
		if rec.KnowledgeBase.State == model.SignalKnown && !rec.KnowledgeBase.Present {
			items = append(items, model.RoadmapItem{
				Category:        model.CategoryMacroContext,
				Severity:        model.SeverityMedium,
				Action:          fmt.Sprintf("Establish knowledge-base presence for entity %q", rec.Entity),
				AffectedDocs:    []string{},
				EstimatedImpact: impact(model.SeverityMedium, 1),
			})
		}
		if rec.Reputation.State == model.SignalKnown && rec.Reputation.Negative > rec.Reputation.Positive {
			items = append(items, model.RoadmapItem{
				Category:        model.CategoryMacroContext,
				Severity:        model.SeverityMedium,
				Action:          fmt.Sprintf("Address negative reputation signals for entity %q", rec.Entity),
				AffectedDocs:    []string{},
				EstimatedImpact: impact(model.SeverityMedium, 1),
			})
		}
	}
	return items
}

// impact estimates remediation value: severity rank scaled by reach.
func impact(sev model.Severity, affected int) float64 {
	if affected < 1 {
		affected = 1
	}
	return float64(sev.Rank()) * float64(affected)
}

func dedupeSorted(in []string) []string {
	set := make(map[string]struct{}, len(in))
	for _, s := range in {
		set[s] = struct{}{}
	}
	return setToSorted(set)
}

func setToSorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
