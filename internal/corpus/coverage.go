package corpus

import (
	"github.com/sells-group/audit-engine/internal/model"
	"github.com/sells-group/audit-engine/internal/normalize"
)

// coverage checks each target EAV triple against the fact statements the
// scorer extracted per document. A triple is covered when its entity and
// attribute tokens fuzzy-match one document's facts; the first matching
// document (in id order) is recorded as the supporting document. An empty
// target list means the step is not applicable, not zero coverage.
func (a *Analyzer) coverage(
	docs []model.Document,
	reports map[string]*model.AuditReport,
	targets []model.EAVTriple,
) model.CoverageResult {
	if len(targets) == 0 {
		return model.CoverageResult{Applicable: false}
	}

	result := model.CoverageResult{
		Applicable: true,
		Targets:    make([]model.TripleCoverage, 0, len(targets)),
	}

	for _, target := range targets {
		tc := model.TripleCoverage{Target: target}
		needle := target.Entity + " " + target.Attribute

		for _, doc := range docs {
			rep, ok := reports[doc.ID]
			if !ok {
				continue
			}
			for _, fact := range rep.Facts {
				statement := fact.Entity + " " + fact.Attribute + " " + fact.Value
				if normalize.TokenOverlap(needle, statement) >= a.cfg.CoverageThreshold {
					tc.Covered = true
					tc.CoveredBy = doc.ID
					break
				}
			}
			if tc.Covered {
				break
			}
		}

		if tc.Covered {
			result.Covered++
		}
		result.Targets = append(result.Targets, tc)
	}

	result.Percent = float64(result.Covered) / float64(len(targets))
	return result
}
