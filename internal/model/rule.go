package model

// Category is one of the fixed rule categories. Every rule belongs to
// exactly one category; category weights come from the rule set, not code.
type Category string

const (
	CategoryMacroContext     Category = "macro-context"
	CategoryEAVQuality       Category = "eav-quality"
	CategoryMicroSemantics   Category = "micro-semantics"
	CategoryInfoDensity      Category = "information-density"
	CategoryContextualFlow   Category = "contextual-flow"
	CategoryInternalLinking  Category = "internal-linking"
	CategorySemanticDistance Category = "semantic-distance"
	CategoryFormat           Category = "format"
	CategoryHTMLTechnical    Category = "html-technical"
	CategoryMetadata         Category = "metadata"
	CategoryCostOfRetrieval  Category = "cost-of-retrieval"
	CategoryCrossPage        Category = "cross-page"
)

// AllCategories returns every defined category.
func AllCategories() []Category {
	return []Category{
		CategoryMacroContext,
		CategoryEAVQuality,
		CategoryMicroSemantics,
		CategoryInfoDensity,
		CategoryContextualFlow,
		CategoryInternalLinking,
		CategorySemanticDistance,
		CategoryFormat,
		CategoryHTMLTechnical,
		CategoryMetadata,
		CategoryCostOfRetrieval,
		CategoryCrossPage,
	}
}

// ValidCategory reports whether c is a defined category.
func ValidCategory(c Category) bool {
	for _, known := range AllCategories() {
		if c == known {
			return true
		}
	}
	return false
}

// Severity classifies how urgent a failed rule is.
type Severity string

const (
	SeverityBlocker  Severity = "blocker"
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Rank returns a numeric rank for sorting, highest severity first.
func (s Severity) Rank() int {
	switch s {
	case SeverityBlocker:
		return 5
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// ValidSeverity reports whether s is a defined severity.
func ValidSeverity(s Severity) bool {
	return s.Rank() > 0
}

// Rule is one declarative compliance rule. The Check name references a
// built-in evaluation predicate; rules are data, not code.
type Rule struct {
	ID       string         `yaml:"id" json:"id"`
	Category Category       `yaml:"category" json:"category"`
	Weight   float64        `yaml:"weight" json:"weight"`
	Severity Severity       `yaml:"severity" json:"severity"`
	Check    string         `yaml:"check" json:"check"`
	Message  string         `yaml:"message,omitempty" json:"message,omitempty"`
	Params   map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
}

// RuleSet is a versioned collection of rules plus the category weights
// used for the overall score rollup.
type RuleSet struct {
	Version         string               `yaml:"version" json:"version"`
	CategoryWeights map[Category]float64 `yaml:"categories" json:"categories"`
	Rules           []Rule               `yaml:"rules" json:"rules"`
}

// RulesByCategory groups the set's rules per category.
func (rs *RuleSet) RulesByCategory() map[Category][]Rule {
	out := make(map[Category][]Rule)
	for _, r := range rs.Rules {
		out[r.Category] = append(out[r.Category], r)
	}
	return out
}

// RuleResult is the outcome of evaluating one rule against one document
// snapshot. Immutable, keyed by (documentID, contentHash, ruleID, version).
type RuleResult struct {
	RuleID     string `json:"rule_id"`
	DocumentID string `json:"document_id"`
	Passed     bool   `json:"passed"`
	Evidence   string `json:"evidence,omitempty"`
	Message    string `json:"message,omitempty"`
	EvalError  string `json:"eval_error,omitempty"`
}

// Errored reports whether the rule's predicate failed to evaluate.
func (r RuleResult) Errored() bool {
	return r.EvalError != ""
}
