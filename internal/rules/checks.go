// Package rules holds the built-in evaluation predicates that declarative
// rule definitions reference by check name. Rules are data: adding a rule
// to the rule-set file reuses a named check here with its own params,
// weight, and severity.
package rules

import (
	"fmt"
	"sort"

	"github.com/sells-group/audit-engine/internal/model"
)

// Input is the evaluation context for one check against one document.
// Corpus is non-nil only for cross-page checks evaluated with snapshot
// context.
type Input struct {
	Doc    *model.Document
	Corpus *model.CorpusSnapshot
	Params map[string]any
}

// Outcome is a check's verdict. Facts carries extracted EAV statements
// from the eav-quality checks, consumed later by corpus coverage.
type Outcome struct {
	Passed   bool
	Evidence string
	Message  string
	Facts    []model.EAVTriple
}

// CheckFunc is the uniform evaluation contract: a pure function from
// document (plus optional corpus context) to an outcome. Checks must be
// deterministic and side-effect free.
type CheckFunc func(Input) Outcome

var builtins = map[string]CheckFunc{
	// macro-context
	"title_contains_entity": checkTitleContainsEntity,
	"single_h1":             checkSingleH1,

	// eav-quality
	"eav_density":         checkEAVDensity,
	"eav_value_precision": checkEAVValuePrecision,

	// micro-semantics
	"anchor_text_descriptive": checkAnchorTextDescriptive,

	// information-density
	"min_word_count":    checkMinWordCount,
	"lexical_diversity": checkLexicalDiversity,

	// contextual-flow
	"heading_hierarchy": checkHeadingHierarchy,

	// internal-linking
	"internal_link_count": checkInternalLinkCount,
	"anchor_repetition":   checkAnchorRepetition,

	// semantic-distance
	"entity_coherence": checkEntityCoherence,

	// format
	"paragraph_length": checkParagraphLength,
	"list_usage":       checkListUsage,

	// html-technical
	"image_alt_text":   checkImageAltText,
	"image_dimensions": checkImageDimensions,

	// metadata
	"title_length":            checkTitleLength,
	"structured_data_present": checkStructuredDataPresent,

	// cost-of-retrieval
	"url_depth":        checkURLDepth,
	"body_size_budget": checkBodySizeBudget,

	// cross-page (require corpus context)
	"orphan_page":     checkOrphanPage,
	"duplicate_title": checkDuplicateTitle,
	"hub_spoke_ratio": checkHubSpokeRatio,
}

var corpusChecks = map[string]bool{
	"orphan_page":     true,
	"duplicate_title": true,
	"hub_spoke_ratio": true,
}

// Lookup returns the built-in check registered under name.
func Lookup(name string) (CheckFunc, bool) {
	fn, ok := builtins[name]
	return fn, ok
}

// NeedsCorpus reports whether the named check requires corpus context.
// Such checks are skipped (not failed) when a document is scored alone.
func NeedsCorpus(name string) bool {
	return corpusChecks[name]
}

// Names returns all registered check names, sorted.
func Names() []string {
	out := make([]string, 0, len(builtins))
	for name := range builtins {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Register adds a check under name. Used by tests to inject misbehaving
// predicates; registering over a built-in name is rejected.
func Register(name string, fn CheckFunc) error {
	if _, exists := builtins[name]; exists {
		return fmt.Errorf("check %q already registered", name)
	}
	builtins[name] = fn
	return nil
}

// param helpers: rule params come from YAML as map[string]any.

func paramInt(params map[string]any, key string, def int) int {
	if v, ok := params[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		}
	}
	return def
}

func paramFloat(params map[string]any, key string, def float64) float64 {
	if v, ok := params[key]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		case int64:
			return float64(n)
		}
	}
	return def
}

func paramStrings(params map[string]any, key string, def []string) []string {
	v, ok := params[key]
	if !ok {
		return def
	}
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return def
}
