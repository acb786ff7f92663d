package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sells-group/audit-engine/internal/model"
	"github.com/sells-group/audit-engine/internal/normalize"
)

// factPattern matches simple declarative statements of the form
// "<subject> <copula/verb> <object>". Deliberately conservative: the goal
// is a deterministic local approximation of fact extraction, not NLP.
var factPattern = regexp.MustCompile(`(?i)^(.{2,80}?)\s+(is|are|was|were|has|have|lasts?|costs?|measures?|weighs?|requires?|provides?|contains?)\s+(.{2,120})$`)

var sentenceSplit = regexp.MustCompile(`[.!?]\s+|[.!?]$`)

// ExtractFacts scans the document body for EAV statements. The result is
// deterministic: sentence order follows paragraph order.
func ExtractFacts(doc *model.Document) []model.EAVTriple {
	var facts []model.EAVTriple
	for _, p := range doc.Paragraphs {
		for _, sentence := range sentenceSplit.Split(p.Text, -1) {
			sentence = strings.TrimSpace(sentence)
			if sentence == "" {
				continue
			}
			m := factPattern.FindStringSubmatch(sentence)
			if m == nil {
				continue
			}
			facts = append(facts, model.EAVTriple{
				Entity:    normalize.Fold(m[1]),
				Attribute: normalize.Fold(m[2]),
				Value:     normalize.Fold(m[3]),
			})
		}
	}
	return facts
}

// checkEAVDensity requires a minimum count of extractable fact statements.
// The extracted facts ride on the outcome so the scorer can attach them to
// the report for the coverage pass.
func checkEAVDensity(in Input) Outcome {
	minFacts := paramInt(in.Params, "min", 3)
	facts := ExtractFacts(in.Doc)
	out := Outcome{Facts: facts}
	if len(facts) >= minFacts {
		out.Passed = true
		return out
	}
	out.Message = fmt.Sprintf("%d extractable fact statements, minimum is %d", len(facts), minFacts)
	return out
}

var numericValue = regexp.MustCompile(`\d`)

// checkEAVValuePrecision requires that a share of extracted facts carry
// concrete (numeric) values rather than vague qualifiers.
func checkEAVValuePrecision(in Input) Outcome {
	minShare := paramFloat(in.Params, "min_share", 0.25)
	facts := ExtractFacts(in.Doc)
	if len(facts) == 0 {
		return Outcome{Passed: false, Message: "no extractable fact statements"}
	}
	precise := 0
	for _, f := range facts {
		if numericValue.MatchString(f.Value) {
			precise++
		}
	}
	share := float64(precise) / float64(len(facts))
	if share >= minShare {
		return Outcome{Passed: true, Facts: facts}
	}
	return Outcome{
		Facts:   facts,
		Message: fmt.Sprintf("%.0f%% of facts carry precise values, minimum %.0f%%", share*100, minShare*100),
	}
}
