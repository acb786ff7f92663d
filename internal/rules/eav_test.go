package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/audit-engine/internal/model"
)

func TestExtractFacts(t *testing.T) {
	doc := &model.Document{
		ID: "doc-1",
		Paragraphs: []model.Paragraph{
			{Text: "A sedum roof lasts 30-50 years. The substrate is lightweight."},
			{Text: "Why choose green? Because it looks good."},
		},
	}

	facts := ExtractFacts(doc)
	require.Len(t, facts, 2)

	assert.Equal(t, "a sedum roof", facts[0].Entity)
	assert.Equal(t, "lasts", facts[0].Attribute)
	assert.Equal(t, "30-50 years", facts[0].Value)

	assert.Equal(t, "the substrate", facts[1].Entity)
	assert.Equal(t, "is", facts[1].Attribute)
}

func TestExtractFactsDeterministic(t *testing.T) {
	doc := &model.Document{
		Paragraphs: []model.Paragraph{
			{Text: "Extensive roofs are thin. Intensive roofs are deep."},
		},
	}
	first := ExtractFacts(doc)
	second := ExtractFacts(doc)
	assert.Equal(t, first, second)
}

func TestEAVDensity(t *testing.T) {
	doc := &model.Document{
		Paragraphs: []model.Paragraph{
			{Text: "A sedum roof lasts 30-50 years. The substrate is lightweight. Drainage is essential."},
		},
	}

	out := checkEAVDensity(Input{Doc: doc, Params: map[string]any{"min": 3}})
	assert.True(t, out.Passed)
	assert.Len(t, out.Facts, 3, "facts must ride on the outcome")

	out = checkEAVDensity(Input{Doc: doc, Params: map[string]any{"min": 5}})
	assert.False(t, out.Passed)
	assert.Len(t, out.Facts, 3, "facts are attached even on failure")
}

func TestEAVValuePrecision(t *testing.T) {
	precise := &model.Document{
		Paragraphs: []model.Paragraph{
			{Text: "The roof lasts 40 years. The depth is 10 cm."},
		},
	}
	out := checkEAVValuePrecision(Input{Doc: precise})
	assert.True(t, out.Passed)

	vague := &model.Document{
		Paragraphs: []model.Paragraph{
			{Text: "The roof lasts a long time. The depth is quite shallow."},
		},
	}
	out = checkEAVValuePrecision(Input{Doc: vague, Params: map[string]any{"min_share": 0.25}})
	assert.False(t, out.Passed)

	empty := &model.Document{}
	out = checkEAVValuePrecision(Input{Doc: empty})
	assert.False(t, out.Passed)
}
