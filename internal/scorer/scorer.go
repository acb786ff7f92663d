// Package scorer evaluates a rule set against one normalized document and
// produces an AuditReport. Rules are isolated: one misbehaving predicate
// is recorded and excluded from its category's denominator instead of
// aborting the run or zeroing the category.
package scorer

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/audit-engine/internal/fingerprint"
	"github.com/sells-group/audit-engine/internal/model"
	"github.com/sells-group/audit-engine/internal/resilience"
	"github.com/sells-group/audit-engine/internal/rules"
)

// Config holds run-scoped scoring parameters. The compliance target is
// explicit configuration, never ambient state.
type Config struct {
	ComplianceTarget float64 `yaml:"compliance_target" mapstructure:"compliance_target"`
}

// DefaultConfig returns the default scoring configuration.
func DefaultConfig() Config {
	return Config{ComplianceTarget: 0.85}
}

// Scorer scores documents against a validated rule set. Safe for
// concurrent use: the rule set is read-only.
type Scorer struct {
	ruleSet *model.RuleSet
	cfg     Config
}

// New creates a Scorer for the given rule set.
func New(ruleSet *model.RuleSet, cfg Config) *Scorer {
	if cfg.ComplianceTarget <= 0 {
		cfg.ComplianceTarget = DefaultConfig().ComplianceTarget
	}
	return &Scorer{ruleSet: ruleSet, cfg: cfg}
}

// RuleVersion returns the version of the loaded rule set. Reports are only
// comparable under the same version.
func (s *Scorer) RuleVersion() string { return s.ruleSet.Version }

// Score evaluates every applicable rule against doc. Corpus may be nil,
// in which case cross-page checks are skipped entirely. The output is
// deterministic: same snapshot and rule version marshal byte-identically.
func (s *Scorer) Score(ctx context.Context, doc *model.Document, corpus *model.CorpusSnapshot) (*model.AuditReport, error) {
	hash := doc.ContentHash
	if hash == "" {
		hash = fingerprint.Compute(doc)
	}

	report := &model.AuditReport{
		DocumentID:  doc.ID,
		ContentHash: hash,
		RuleVersion: s.ruleSet.Version,
	}

	ordered := make([]model.Rule, len(s.ruleSet.Rules))
	copy(ordered, s.ruleSet.Rules)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	type catTally struct {
		weightSum float64
		passedSum float64
		evaluated int
		failed    int
		errored   int
	}
	tallies := make(map[model.Category]*catTally)
	tally := func(c model.Category) *catTally {
		t, ok := tallies[c]
		if !ok {
			t = &catTally{}
			tallies[c] = t
		}
		return t
	}

	factSeen := make(map[model.EAVTriple]bool)

	for _, rule := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if rules.NeedsCorpus(rule.Check) && corpus == nil {
			continue
		}

		fn, ok := rules.Lookup(rule.Check)
		if !ok {
			// Validation guarantees this; treat it as an evaluation error
			// rather than trusting the invariant.
			fn = nil
		}

		out, evalErr := evaluate(fn, rules.Input{Doc: doc, Corpus: corpus, Params: rule.Params})
		t := tally(rule.Category)

		if evalErr != nil {
			ruleErr := &resilience.RuleEvaluationError{RuleID: rule.ID, DocumentID: doc.ID, Cause: evalErr}
			zap.L().Warn("scorer: rule evaluation failed",
				zap.String("rule", rule.ID),
				zap.String("document", doc.ID),
				zap.Error(evalErr),
			)
			t.errored++
			report.Results = append(report.Results, model.RuleResult{
				RuleID:     rule.ID,
				DocumentID: doc.ID,
				EvalError:  evalErr.Error(),
			})
			report.Issues = append(report.Issues, model.Issue{
				RuleID:   rule.ID,
				Category: rule.Category,
				Severity: model.SeverityMedium,
				Message:  "rule evaluation error: " + ruleErr.Error(),
			})
			continue
		}

		t.weightSum += rule.Weight
		t.evaluated++
		if out.Passed {
			t.passedSum += rule.Weight
		} else {
			t.failed++
			msg := rule.Message
			if msg == "" {
				msg = out.Message
			}
			report.Issues = append(report.Issues, model.Issue{
				RuleID:   rule.ID,
				Category: rule.Category,
				Severity: rule.Severity,
				Message:  msg,
				Evidence: out.Evidence,
			})
		}

		report.Results = append(report.Results, model.RuleResult{
			RuleID:     rule.ID,
			DocumentID: doc.ID,
			Passed:     out.Passed,
			Evidence:   out.Evidence,
			Message:    out.Message,
		})

		for _, f := range out.Facts {
			if !factSeen[f] {
				factSeen[f] = true
				report.Facts = append(report.Facts, f)
			}
		}
	}

	// Category scores in the fixed category order, only for categories the
	// rule set actually covers.
	var overallNum, overallDen float64
	for _, cat := range model.AllCategories() {
		t, ok := tallies[cat]
		if !ok {
			continue
		}
		cs := model.CategoryScore{
			Category:  cat,
			Evaluated: t.evaluated,
			Failed:    t.failed,
			Errored:   t.errored,
		}
		if t.weightSum > 0 {
			cs.Score = t.passedSum / t.weightSum
			catWeight := s.ruleSet.CategoryWeights[cat]
			overallNum += catWeight * cs.Score
			overallDen += catWeight
		}
		report.CategoryScores = append(report.CategoryScores, cs)
	}
	if overallDen > 0 {
		report.Aggregate = math.Round(overallNum/overallDen*100*100) / 100
	}
	report.MeetsTarget = report.Aggregate >= s.cfg.ComplianceTarget*100

	sortIssues(report.Issues)
	sortFacts(report.Facts)

	return report, nil
}

// evaluate runs one check, converting panics into errors so a broken
// predicate cannot take down the run.
func evaluate(fn rules.CheckFunc, in rules.Input) (out rules.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.New(fmt.Sprintf("check panicked: %v", r))
		}
	}()
	if fn == nil {
		return rules.Outcome{}, eris.New("check not registered")
	}
	return fn(in), nil
}

func sortIssues(issues []model.Issue) {
	sort.Slice(issues, func(i, j int) bool {
		if issues[i].Severity.Rank() != issues[j].Severity.Rank() {
			return issues[i].Severity.Rank() > issues[j].Severity.Rank()
		}
		return issues[i].RuleID < issues[j].RuleID
	})
}

func sortFacts(facts []model.EAVTriple) {
	sort.Slice(facts, func(i, j int) bool {
		if facts[i].Entity != facts[j].Entity {
			return facts[i].Entity < facts[j].Entity
		}
		if facts[i].Attribute != facts[j].Attribute {
			return facts[i].Attribute < facts[j].Attribute
		}
		return facts[i].Value < facts[j].Value
	})
}
