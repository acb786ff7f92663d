package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/audit-engine/internal/model"
)

func docWith(mut func(*model.Document)) *model.Document {
	d := &model.Document{
		ID:            "doc-1",
		URL:           "https://example.com/green-roofs",
		Title:         "Green Roofs: Sedum Lifespan and Cost",
		CentralEntity: "green roofs",
		Headings: []model.Heading{
			{Level: 1, Text: "Green Roofs", Position: 0},
			{Level: 2, Text: "Sedum Roof Lifespan", Position: 1},
		},
		Paragraphs: []model.Paragraph{
			{Text: "A sedum roof lasts 30-50 years. Green roofs are durable.", Offset: 0},
		},
		Links: []model.Link{
			{AnchorText: "sedum varieties", TargetURL: "/sedum", Internal: true},
			{AnchorText: "installation guide", TargetURL: "/install", Internal: true},
		},
	}
	if mut != nil {
		mut(d)
	}
	return d
}

func TestLookup(t *testing.T) {
	for _, name := range Names() {
		fn, ok := Lookup(name)
		require.True(t, ok, name)
		require.NotNil(t, fn, name)
	}
	_, ok := Lookup("no_such_check")
	assert.False(t, ok)
}

func TestSingleH1(t *testing.T) {
	tests := []struct {
		name   string
		mut    func(*model.Document)
		passed bool
	}{
		{"exactly one", nil, true},
		{"none", func(d *model.Document) { d.Headings = d.Headings[1:] }, false},
		{"two", func(d *model.Document) {
			d.Headings = append(d.Headings, model.Heading{Level: 1, Text: "Another", Position: 2})
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := checkSingleH1(Input{Doc: docWith(tt.mut)})
			assert.Equal(t, tt.passed, out.Passed)
		})
	}
}

func TestHeadingHierarchy(t *testing.T) {
	out := checkHeadingHierarchy(Input{Doc: docWith(nil)})
	assert.True(t, out.Passed)

	skipping := docWith(func(d *model.Document) {
		d.Headings = append(d.Headings, model.Heading{Level: 4, Text: "Deep Dive", Position: 2})
	})
	out = checkHeadingHierarchy(Input{Doc: skipping})
	assert.False(t, out.Passed)
	assert.Contains(t, out.Message, "H2 to H4")
}

func TestAnchorRepetition(t *testing.T) {
	doc := docWith(func(d *model.Document) {
		d.Links = nil
		for range 4 {
			d.Links = append(d.Links, model.Link{
				AnchorText: "click here", TargetURL: "/target", Internal: true,
			})
		}
	})

	out := checkAnchorRepetition(Input{Doc: doc})
	assert.False(t, out.Passed, "4 repeats over ceiling 3 must fail")
	assert.Contains(t, out.Message, "click here")

	// Exactly at the ceiling passes.
	doc.Links = doc.Links[:3]
	out = checkAnchorRepetition(Input{Doc: doc})
	assert.True(t, out.Passed)
}

func TestAnchorRepetitionDeterministic(t *testing.T) {
	// Two offending pairs: the reported pair must be stable across calls.
	doc := docWith(func(d *model.Document) {
		d.Links = nil
		for range 4 {
			d.Links = append(d.Links, model.Link{
				AnchorText: "read more", TargetURL: "/target-b", Internal: true,
			})
			d.Links = append(d.Links, model.Link{
				AnchorText: "click here", TargetURL: "/target-a", Internal: true,
			})
		}
	})

	first := checkAnchorRepetition(Input{Doc: doc})
	require.False(t, first.Passed)
	assert.Equal(t, "anchor:click here", first.Evidence)
	for range 50 {
		assert.Equal(t, first, checkAnchorRepetition(Input{Doc: doc}))
	}
}

func TestAnchorTextDescriptive(t *testing.T) {
	out := checkAnchorTextDescriptive(Input{Doc: docWith(nil)})
	assert.True(t, out.Passed)

	generic := docWith(func(d *model.Document) {
		d.Links = append(d.Links, model.Link{AnchorText: "Click Here", TargetURL: "/x", Internal: true})
	})
	out = checkAnchorTextDescriptive(Input{Doc: generic})
	assert.False(t, out.Passed)
	assert.Equal(t, "link:2", out.Evidence)
}

func TestTitleContainsEntity(t *testing.T) {
	out := checkTitleContainsEntity(Input{Doc: docWith(nil)})
	assert.True(t, out.Passed)

	off := docWith(func(d *model.Document) { d.CentralEntity = "solar panels" })
	out = checkTitleContainsEntity(Input{Doc: off})
	assert.False(t, out.Passed)
}

func TestTitleLength(t *testing.T) {
	out := checkTitleLength(Input{Doc: docWith(nil), Params: map[string]any{"min": 10, "max": 80}})
	assert.True(t, out.Passed)

	out = checkTitleLength(Input{Doc: docWith(func(d *model.Document) { d.Title = "Hi" })})
	assert.False(t, out.Passed)
}

func TestImageAltText(t *testing.T) {
	doc := docWith(func(d *model.Document) {
		d.Images = []model.Image{
			{AltText: "sedum roof in summer", Filename: "sedum.jpg", Width: 800, Height: 600},
			{AltText: "  ", Filename: "bare.jpg"},
		}
	})
	out := checkImageAltText(Input{Doc: doc})
	assert.False(t, out.Passed)
	assert.Equal(t, "image:1", out.Evidence)
}

func TestURLDepth(t *testing.T) {
	out := checkURLDepth(Input{Doc: docWith(nil), Params: map[string]any{"max": 1}})
	assert.True(t, out.Passed)

	deep := docWith(func(d *model.Document) { d.URL = "https://example.com/a/b/c/d/e" })
	out = checkURLDepth(Input{Doc: deep, Params: map[string]any{"max": 4}})
	assert.False(t, out.Passed)
}

func TestCrossPageChecks(t *testing.T) {
	hub := docWith(nil)
	spoke := docWith(func(d *model.Document) {
		d.ID = "doc-2"
		d.Title = "Sedum Varieties"
		d.URL = "https://example.com/sedum"
		d.Links = []model.Link{
			{AnchorText: "green roofs", TargetURL: "/green-roofs", TargetID: "doc-1", Internal: true},
		}
	})
	corpus := model.NewCorpusSnapshot([]model.Document{*hub, *spoke})

	t.Run("orphan page", func(t *testing.T) {
		out := checkOrphanPage(Input{Doc: hub, Corpus: corpus})
		assert.True(t, out.Passed, "hub is linked from spoke")

		out = checkOrphanPage(Input{Doc: spoke, Corpus: corpus})
		assert.False(t, out.Passed, "nothing links to the spoke")
	})

	t.Run("duplicate title", func(t *testing.T) {
		out := checkDuplicateTitle(Input{Doc: hub, Corpus: corpus})
		assert.True(t, out.Passed)

		dupe := model.NewCorpusSnapshot([]model.Document{
			*hub,
			*docWith(func(d *model.Document) { d.ID = "doc-3" }),
		})
		out = checkDuplicateTitle(Input{Doc: hub, Corpus: dupe})
		assert.False(t, out.Passed)
	})

	t.Run("hub spoke ratio", func(t *testing.T) {
		out := checkHubSpokeRatio(Input{Doc: hub, Corpus: corpus, Params: map[string]any{"max_spokes": 7}})
		assert.True(t, out.Passed)

		out = checkHubSpokeRatio(Input{Doc: hub, Corpus: corpus, Params: map[string]any{"max_spokes": 1}})
		assert.False(t, out.Passed)
	})

	t.Run("corpus checks are flagged", func(t *testing.T) {
		assert.True(t, NeedsCorpus("orphan_page"))
		assert.True(t, NeedsCorpus("hub_spoke_ratio"))
		assert.False(t, NeedsCorpus("single_h1"))
	})
}
