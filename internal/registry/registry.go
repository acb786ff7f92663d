// Package registry loads and validates the versioned declarative rule set
// the scorer evaluates. An invalid rule set is a configuration error that
// aborts the whole run before any scoring begins.
package registry

import (
	"math"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/audit-engine/internal/model"
	"github.com/sells-group/audit-engine/internal/resilience"
	"github.com/sells-group/audit-engine/internal/rules"
)

// ExpectedWeightTotal is what the category weights must sum to.
const ExpectedWeightTotal = 100.0

const weightEpsilon = 1e-6

// Load reads a rule set from a YAML file and validates it.
func Load(path string) (*model.RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: read rule set %s", path)
	}

	var rs model.RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, resilience.NewConfigurationError("rule set %s: %v", path, err)
	}

	if err := Validate(&rs); err != nil {
		return nil, err
	}

	zap.L().Info("registry: rule set loaded",
		zap.String("path", path),
		zap.String("version", rs.Version),
		zap.Int("rules", len(rs.Rules)),
	)
	return &rs, nil
}

// Validate checks rule-set integrity: version present, unique ids, known
// categories, severities, and checks, positive weights, and category
// weights summing to ExpectedWeightTotal. Any violation is fatal.
func Validate(rs *model.RuleSet) error {
	if rs.Version == "" {
		return resilience.NewConfigurationError("rule set has no version")
	}
	if len(rs.Rules) == 0 {
		return resilience.NewConfigurationError("rule set %s has no rules", rs.Version)
	}

	seen := make(map[string]bool, len(rs.Rules))
	for _, r := range rs.Rules {
		if r.ID == "" {
			return resilience.NewConfigurationError("rule with empty id")
		}
		if seen[r.ID] {
			return resilience.NewConfigurationError("duplicate rule id %q", r.ID)
		}
		seen[r.ID] = true

		if !model.ValidCategory(r.Category) {
			return resilience.NewConfigurationError("rule %s: unknown category %q", r.ID, r.Category)
		}
		if !model.ValidSeverity(r.Severity) {
			return resilience.NewConfigurationError("rule %s: unknown severity %q", r.ID, r.Severity)
		}
		if r.Weight <= 0 {
			return resilience.NewConfigurationError("rule %s: weight must be positive, got %v", r.ID, r.Weight)
		}
		if _, ok := rules.Lookup(r.Check); !ok {
			return resilience.NewConfigurationError("rule %s: unknown check %q", r.ID, r.Check)
		}
	}

	total := 0.0
	for cat, w := range rs.CategoryWeights {
		if !model.ValidCategory(cat) {
			return resilience.NewConfigurationError("category weight for unknown category %q", cat)
		}
		if w <= 0 {
			return resilience.NewConfigurationError("category %s: weight must be positive, got %v", cat, w)
		}
		total += w
	}
	if math.Abs(total-ExpectedWeightTotal) > weightEpsilon {
		return resilience.NewConfigurationError("category weights sum to %v, expected %v", total, ExpectedWeightTotal)
	}

	for _, r := range rs.Rules {
		if _, ok := rs.CategoryWeights[r.Category]; !ok {
			return resilience.NewConfigurationError("rule %s: category %s has no weight entry", r.ID, r.Category)
		}
	}

	return nil
}

// LoadTargets reads the optional target EAV triple list used by corpus
// coverage. A missing path is not an error: coverage is simply reported
// as not applicable.
func LoadTargets(path string) ([]model.EAVTriple, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: read targets %s", path)
	}
	var targets []model.EAVTriple
	if err := yaml.Unmarshal(data, &targets); err != nil {
		return nil, resilience.NewConfigurationError("targets %s: %v", path, err)
	}
	return targets, nil
}
