package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/audit-engine/internal/model"
	"github.com/sells-group/audit-engine/internal/resilience"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Validate(Default()))
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*model.RuleSet)
		want string
	}{
		{"missing version", func(rs *model.RuleSet) { rs.Version = "" }, "no version"},
		{"duplicate id", func(rs *model.RuleSet) {
			rs.Rules = append(rs.Rules, rs.Rules[0])
		}, "duplicate rule id"},
		{"unknown category", func(rs *model.RuleSet) {
			rs.Rules[0].Category = "vibes"
		}, "unknown category"},
		{"unknown severity", func(rs *model.RuleSet) {
			rs.Rules[0].Severity = "catastrophic"
		}, "unknown severity"},
		{"zero weight", func(rs *model.RuleSet) {
			rs.Rules[0].Weight = 0
		}, "weight must be positive"},
		{"unknown check", func(rs *model.RuleSet) {
			rs.Rules[0].Check = "no_such_check"
		}, "unknown check"},
		{"weights off total", func(rs *model.RuleSet) {
			rs.CategoryWeights[model.CategoryFormat] += 5
		}, "expected 100"},
		{"rule category without weight", func(rs *model.RuleSet) {
			total := rs.CategoryWeights[model.CategoryCrossPage]
			delete(rs.CategoryWeights, model.CategoryCrossPage)
			rs.CategoryWeights[model.CategoryFormat] += total
		}, "has no weight entry"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := Default()
			tt.mut(rs)
			err := Validate(rs)
			require.Error(t, err)

			var cfgErr *resilience.ConfigurationError
			require.ErrorAs(t, err, &cfgErr, "validation failures must be configuration errors")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := `
version: "2026.08"
categories:
  macro-context: 50
  metadata: 50
rules:
  - id: single-h1
    category: macro-context
    weight: 2
    severity: high
    check: single_h1
  - id: title-length
    category: metadata
    weight: 1
    severity: medium
    check: title_length
    params:
      min: 10
      max: 70
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rs, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "2026.08", rs.Version)
	assert.Len(t, rs.Rules, 2)
	assert.Equal(t, 10, rs.Rules[1].Params["min"])
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/rules.yaml")
	require.Error(t, err)
}

func TestLoadTargets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "targets.yaml")
	content := `
- entity: Sedum Roof
  attribute: lifespan
  value: "30-50 years"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	targets, err := LoadTargets(path)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, "Sedum Roof", targets[0].Entity)

	none, err := LoadTargets("")
	require.NoError(t, err)
	assert.Nil(t, none)
}
