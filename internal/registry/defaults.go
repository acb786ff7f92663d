package registry

import "github.com/sells-group/audit-engine/internal/model"

// Default returns the built-in rule set used when no rule-set file is
// configured. Weights mirror the audit rulebook's category emphasis.
func Default() *model.RuleSet {
	return &model.RuleSet{
		Version: "builtin-1",
		CategoryWeights: map[model.Category]float64{
			model.CategoryMacroContext:     12,
			model.CategoryEAVQuality:       12,
			model.CategoryMicroSemantics:   8,
			model.CategoryInfoDensity:      10,
			model.CategoryContextualFlow:   8,
			model.CategoryInternalLinking:  10,
			model.CategorySemanticDistance: 8,
			model.CategoryFormat:           6,
			model.CategoryHTMLTechnical:    6,
			model.CategoryMetadata:         8,
			model.CategoryCostOfRetrieval:  4,
			model.CategoryCrossPage:        8,
		},
		Rules: []model.Rule{
			{ID: "title-entity-presence", Category: model.CategoryMacroContext, Weight: 3, Severity: model.SeverityCritical, Check: "title_contains_entity",
				Message: "Name the central entity in the title"},
			{ID: "single-h1", Category: model.CategoryMacroContext, Weight: 2, Severity: model.SeverityHigh, Check: "single_h1",
				Message: "Use exactly one H1"},

			{ID: "eav-density", Category: model.CategoryEAVQuality, Weight: 3, Severity: model.SeverityHigh, Check: "eav_density",
				Message: "State more extractable facts", Params: map[string]any{"min": 3}},
			{ID: "eav-value-precision", Category: model.CategoryEAVQuality, Weight: 2, Severity: model.SeverityMedium, Check: "eav_value_precision",
				Message: "Replace vague qualifiers with concrete values"},

			{ID: "anchor-descriptive", Category: model.CategoryMicroSemantics, Weight: 2, Severity: model.SeverityMedium, Check: "anchor_text_descriptive",
				Message: "Replace generic anchor text"},

			{ID: "min-word-count", Category: model.CategoryInfoDensity, Weight: 2, Severity: model.SeverityHigh, Check: "min_word_count",
				Message: "Expand thin content", Params: map[string]any{"min": 300}},
			{ID: "lexical-diversity", Category: model.CategoryInfoDensity, Weight: 1, Severity: model.SeverityLow, Check: "lexical_diversity",
				Message: "Vary vocabulary"},

			{ID: "heading-hierarchy", Category: model.CategoryContextualFlow, Weight: 2, Severity: model.SeverityHigh, Check: "heading_hierarchy",
				Message: "Fix heading level skips"},

			{ID: "internal-link-count", Category: model.CategoryInternalLinking, Weight: 2, Severity: model.SeverityMedium, Check: "internal_link_count",
				Message: "Add contextual internal links", Params: map[string]any{"min": 2}},
			{ID: "anchor-repetition", Category: model.CategoryInternalLinking, Weight: 2, Severity: model.SeverityHigh, Check: "anchor_repetition",
				Message: "Diversify repeated anchor/target pairs", Params: map[string]any{"ceiling": 3}},

			{ID: "entity-coherence", Category: model.CategorySemanticDistance, Weight: 2, Severity: model.SeverityMedium, Check: "entity_coherence",
				Message: "Keep headings close to the central entity"},

			{ID: "paragraph-length", Category: model.CategoryFormat, Weight: 1, Severity: model.SeverityLow, Check: "paragraph_length",
				Message: "Split long paragraphs"},
			{ID: "list-usage", Category: model.CategoryFormat, Weight: 1, Severity: model.SeverityLow, Check: "list_usage",
				Message: "Break long content into lists or tables"},

			{ID: "image-alt-text", Category: model.CategoryHTMLTechnical, Weight: 2, Severity: model.SeverityHigh, Check: "image_alt_text",
				Message: "Add alt text to images"},
			{ID: "image-dimensions", Category: model.CategoryHTMLTechnical, Weight: 1, Severity: model.SeverityLow, Check: "image_dimensions",
				Message: "Declare image dimensions"},

			{ID: "title-length", Category: model.CategoryMetadata, Weight: 2, Severity: model.SeverityMedium, Check: "title_length",
				Message: "Keep the title between 20 and 60 characters"},
			{ID: "structured-data", Category: model.CategoryMetadata, Weight: 2, Severity: model.SeverityMedium, Check: "structured_data_present",
				Message: "Add structured-data markup"},

			{ID: "url-depth", Category: model.CategoryCostOfRetrieval, Weight: 1, Severity: model.SeverityLow, Check: "url_depth",
				Message: "Flatten deep URL paths"},
			{ID: "body-size-budget", Category: model.CategoryCostOfRetrieval, Weight: 1, Severity: model.SeverityLow, Check: "body_size_budget",
				Message: "Trim oversized documents"},

			{ID: "orphan-page", Category: model.CategoryCrossPage, Weight: 2, Severity: model.SeverityHigh, Check: "orphan_page",
				Message: "Link to this page from the corpus"},
			{ID: "duplicate-title", Category: model.CategoryCrossPage, Weight: 2, Severity: model.SeverityCritical, Check: "duplicate_title",
				Message: "Deduplicate page titles"},
			{ID: "hub-spoke-ratio", Category: model.CategoryCrossPage, Weight: 1, Severity: model.SeverityMedium, Check: "hub_spoke_ratio",
				Message: "Reduce hub fan-out", Params: map[string]any{"max_spokes": 7}},
		},
	}
}
