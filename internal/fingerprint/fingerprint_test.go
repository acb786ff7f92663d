package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/audit-engine/internal/model"
)

func sampleDoc() *model.Document {
	return &model.Document{
		ID:    "doc-1",
		URL:   "https://example.com/green-roofs",
		Title: "Green Roofs",
		Headings: []model.Heading{
			{Level: 1, Text: "Green Roofs", Position: 0},
			{Level: 2, Text: "Sedum Lifespan", Position: 1},
		},
		Paragraphs: []model.Paragraph{
			{Text: "A sedum roof lasts 30-50 years.", Offset: 0},
		},
		Links: []model.Link{
			{AnchorText: "roof types", TargetURL: "/types", Internal: true},
		},
	}
}

func TestComputeStable(t *testing.T) {
	a := Compute(sampleDoc())
	b := Compute(sampleDoc())
	assert.Equal(t, a, b, "same document must hash identically")
	assert.Len(t, a, 64)
}

func TestComputeSensitivity(t *testing.T) {
	base := Compute(sampleDoc())

	t.Run("text change", func(t *testing.T) {
		d := sampleDoc()
		d.Paragraphs[0].Text = "A sedum roof lasts 40-60 years."
		assert.NotEqual(t, base, Compute(d))
	})

	t.Run("heading level change", func(t *testing.T) {
		d := sampleDoc()
		d.Headings[1].Level = 3
		assert.NotEqual(t, base, Compute(d))
	})

	t.Run("link order does not matter", func(t *testing.T) {
		d := sampleDoc()
		d.Links = append(d.Links, model.Link{AnchorText: "contact", TargetURL: "/contact"})
		first := Compute(d)
		d.Links[0], d.Links[1] = d.Links[1], d.Links[0]
		assert.Equal(t, first, Compute(d))
	})

	t.Run("case and whitespace do not matter", func(t *testing.T) {
		d := sampleDoc()
		d.Paragraphs[0].Text = "A  Sedum roof LASTS 30-50 years."
		assert.Equal(t, base, Compute(d))
	})
}

func TestShouldRecompute(t *testing.T) {
	doc := sampleDoc()
	hash := Compute(doc)

	require.False(t, ShouldRecompute(doc, hash))
	require.True(t, ShouldRecompute(doc, ""))
	require.True(t, ShouldRecompute(doc, "stale"))
}
