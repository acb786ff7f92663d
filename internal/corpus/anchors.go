package corpus

import (
	"sort"

	"github.com/sells-group/audit-engine/internal/model"
	"github.com/sells-group/audit-engine/internal/normalize"
)

// auditAnchors tallies every internal link per (normalized anchor, target)
// pair. Cross-corpus patterns and per-document violations are tracked
// separately: a violation fires when one source document repeats the same
// pair beyond the ceiling — exactly once per pair, not once per excess
// occurrence.
func (a *Analyzer) auditAnchors(docs []model.Document) ([]model.AnchorPattern, []model.AnchorViolation) {
	type key struct {
		anchor string
		target string
	}

	patterns := make(map[key]*model.AnchorPattern)
	var violations []model.AnchorViolation

	for _, doc := range docs {
		perDoc := make(map[key]int)
		for _, l := range doc.InternalLinks() {
			target := l.TargetID
			if target == "" {
				target = l.TargetURL
			}
			k := key{anchor: normalize.Fold(l.AnchorText), target: target}
			perDoc[k]++

			p, ok := patterns[k]
			if !ok {
				p = &model.AnchorPattern{Anchor: k.anchor, TargetID: k.target}
				patterns[k] = p
			}
			p.Occurrences++
			if len(p.SourceIDs) == 0 || p.SourceIDs[len(p.SourceIDs)-1] != doc.ID {
				p.SourceIDs = append(p.SourceIDs, doc.ID)
			}
		}

		for k, n := range perDoc {
			if n > a.cfg.RepetitionCeiling {
				violations = append(violations, model.AnchorViolation{
					SourceID: doc.ID,
					Anchor:   k.anchor,
					TargetID: k.target,
					Count:    n,
					Ceiling:  a.cfg.RepetitionCeiling,
				})
			}
		}
	}

	out := make([]model.AnchorPattern, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Anchor != out[j].Anchor {
			return out[i].Anchor < out[j].Anchor
		}
		return out[i].TargetID < out[j].TargetID
	})
	sort.Slice(violations, func(i, j int) bool {
		if violations[i].SourceID != violations[j].SourceID {
			return violations[i].SourceID < violations[j].SourceID
		}
		if violations[i].Anchor != violations[j].Anchor {
			return violations[i].Anchor < violations[j].Anchor
		}
		return violations[i].TargetID < violations[j].TargetID
	})
	return out, violations
}
