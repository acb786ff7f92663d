package rules

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/sells-group/audit-engine/internal/normalize"
)

func checkTitleContainsEntity(in Input) Outcome {
	entity := in.Doc.CentralEntity
	if entity == "" {
		return Outcome{Passed: false, Message: "document declares no central entity"}
	}
	overlap := normalize.TokenOverlap(entity, in.Doc.Title)
	threshold := paramFloat(in.Params, "min_overlap", 0.5)
	if overlap >= threshold {
		return Outcome{Passed: true}
	}
	return Outcome{
		Passed:   false,
		Evidence: "title",
		Message:  fmt.Sprintf("title %q does not name central entity %q", in.Doc.Title, entity),
	}
}

func checkSingleH1(in Input) Outcome {
	count := 0
	pos := -1
	for _, h := range in.Doc.Headings {
		if h.Level == 1 {
			count++
			pos = h.Position
		}
	}
	switch count {
	case 1:
		return Outcome{Passed: true}
	case 0:
		return Outcome{Passed: false, Message: "no H1 heading"}
	default:
		return Outcome{
			Passed:   false,
			Evidence: fmt.Sprintf("heading:%d", pos),
			Message:  fmt.Sprintf("%d H1 headings, expected exactly one", count),
		}
	}
}

func checkAnchorTextDescriptive(in Input) Outcome {
	generic := paramStrings(in.Params, "generic_anchors", []string{
		"click here", "read more", "here", "more", "link", "this page",
	})
	genericSet := make(map[string]struct{}, len(generic))
	for _, g := range generic {
		genericSet[normalize.Fold(g)] = struct{}{}
	}
	for i, l := range in.Doc.Links {
		if _, bad := genericSet[normalize.Fold(l.AnchorText)]; bad {
			return Outcome{
				Passed:   false,
				Evidence: fmt.Sprintf("link:%d", i),
				Message:  fmt.Sprintf("generic anchor text %q", l.AnchorText),
			}
		}
	}
	return Outcome{Passed: true}
}

func checkMinWordCount(in Input) Outcome {
	minWords := paramInt(in.Params, "min", 300)
	n := in.Doc.WordCount()
	if n >= minWords {
		return Outcome{Passed: true}
	}
	return Outcome{
		Passed:  false,
		Message: fmt.Sprintf("body has %d words, minimum is %d", n, minWords),
	}
}

func checkLexicalDiversity(in Input) Outcome {
	minRatio := paramFloat(in.Params, "min_ratio", 0.3)
	tokens := normalize.Tokens(in.Doc.BodyText())
	if len(tokens) == 0 {
		return Outcome{Passed: false, Message: "empty body"}
	}
	distinct := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		distinct[t] = struct{}{}
	}
	ratio := float64(len(distinct)) / float64(len(tokens))
	if ratio >= minRatio {
		return Outcome{Passed: true}
	}
	return Outcome{
		Passed:  false,
		Message: fmt.Sprintf("lexical diversity %.2f below %.2f", ratio, minRatio),
	}
}

// checkHeadingHierarchy verifies the contextual vector: heading levels
// never skip downward (H2 may follow H1, H4 may not).
func checkHeadingHierarchy(in Input) Outcome {
	prev := 0
	for _, h := range in.Doc.Headings {
		if prev > 0 && h.Level > prev+1 {
			return Outcome{
				Passed:   false,
				Evidence: fmt.Sprintf("heading:%d", h.Position),
				Message:  fmt.Sprintf("heading level jumps from H%d to H%d at %q", prev, h.Level, h.Text),
			}
		}
		prev = h.Level
	}
	return Outcome{Passed: true}
}

func checkInternalLinkCount(in Input) Outcome {
	minLinks := paramInt(in.Params, "min", 2)
	n := len(in.Doc.InternalLinks())
	if n >= minLinks {
		return Outcome{Passed: true}
	}
	return Outcome{
		Passed:  false,
		Message: fmt.Sprintf("%d internal links, minimum is %d", n, minLinks),
	}
}

// checkAnchorRepetition fails when the same (anchor, target) pair repeats
// beyond the ceiling within this document. One failure regardless of how
// far the count exceeds the ceiling.
func checkAnchorRepetition(in Input) Outcome {
	ceiling := paramInt(in.Params, "ceiling", 3)
	counts := make(map[string]int)
	for _, l := range in.Doc.InternalLinks() {
		key := normalize.Fold(l.AnchorText) + "\x1f" + l.TargetURL
		counts[key]++
	}
	var offending []string
	for key, n := range counts {
		if n > ceiling {
			offending = append(offending, key)
		}
	}
	if len(offending) == 0 {
		return Outcome{Passed: true}
	}
	sort.Strings(offending)
	anchor := strings.SplitN(offending[0], "\x1f", 2)[0]
	return Outcome{
		Passed:   false,
		Evidence: fmt.Sprintf("anchor:%s", anchor),
		Message:  fmt.Sprintf("anchor %q repeats %d times to the same target (ceiling %d)", anchor, counts[offending[0]], ceiling),
	}
}

// checkEntityCoherence measures semantic distance between the central
// entity and the heading tree: the entity's tokens should appear across a
// minimum share of headings.
func checkEntityCoherence(in Input) Outcome {
	if in.Doc.CentralEntity == "" {
		return Outcome{Passed: false, Message: "document declares no central entity"}
	}
	minShare := paramFloat(in.Params, "min_share", 0.3)
	if len(in.Doc.Headings) == 0 {
		return Outcome{Passed: false, Message: "no headings"}
	}
	hits := 0
	for _, h := range in.Doc.Headings {
		if normalize.TokenOverlap(in.Doc.CentralEntity, h.Text) > 0 {
			hits++
		}
	}
	share := float64(hits) / float64(len(in.Doc.Headings))
	if share >= minShare {
		return Outcome{Passed: true}
	}
	return Outcome{
		Passed:  false,
		Message: fmt.Sprintf("central entity appears in %.0f%% of headings, minimum %.0f%%", share*100, minShare*100),
	}
}

func checkParagraphLength(in Input) Outcome {
	maxWords := paramInt(in.Params, "max_words", 150)
	for _, p := range in.Doc.Paragraphs {
		if n := len(strings.Fields(p.Text)); n > maxWords {
			return Outcome{
				Passed:   false,
				Evidence: fmt.Sprintf("offset:%d", p.Offset),
				Message:  fmt.Sprintf("paragraph of %d words exceeds %d", n, maxWords),
			}
		}
	}
	return Outcome{Passed: true}
}

// checkListUsage expects long documents to break content into list or
// table blocks.
func checkListUsage(in Input) Outcome {
	minWords := paramInt(in.Params, "min_words", 600)
	if in.Doc.WordCount() < minWords {
		return Outcome{Passed: true}
	}
	if len(in.Doc.Blocks) > 0 {
		return Outcome{Passed: true}
	}
	return Outcome{
		Passed:  false,
		Message: fmt.Sprintf("document over %d words has no list or table blocks", minWords),
	}
}

func checkImageAltText(in Input) Outcome {
	for i, img := range in.Doc.Images {
		if strings.TrimSpace(img.AltText) == "" {
			return Outcome{
				Passed:   false,
				Evidence: fmt.Sprintf("image:%d", i),
				Message:  fmt.Sprintf("image %q has no alt text", img.Filename),
			}
		}
	}
	return Outcome{Passed: true}
}

func checkImageDimensions(in Input) Outcome {
	for i, img := range in.Doc.Images {
		if img.Width == 0 || img.Height == 0 {
			return Outcome{
				Passed:   false,
				Evidence: fmt.Sprintf("image:%d", i),
				Message:  fmt.Sprintf("image %q has no declared dimensions", img.Filename),
			}
		}
	}
	return Outcome{Passed: true}
}

func checkTitleLength(in Input) Outcome {
	minLen := paramInt(in.Params, "min", 20)
	maxLen := paramInt(in.Params, "max", 60)
	n := len([]rune(in.Doc.Title))
	if n >= minLen && n <= maxLen {
		return Outcome{Passed: true}
	}
	return Outcome{
		Passed:   false,
		Evidence: "title",
		Message:  fmt.Sprintf("title length %d outside [%d, %d]", n, minLen, maxLen),
	}
}

func checkStructuredDataPresent(in Input) Outcome {
	required := paramStrings(in.Params, "types", nil)
	if len(required) == 0 {
		if len(in.Doc.StructuredData) > 0 {
			return Outcome{Passed: true}
		}
		return Outcome{Passed: false, Message: "no structured-data blocks"}
	}
	have := make(map[string]struct{}, len(in.Doc.StructuredData))
	for _, sd := range in.Doc.StructuredData {
		have[normalize.Fold(sd.Type)] = struct{}{}
	}
	for _, want := range required {
		if _, ok := have[normalize.Fold(want)]; !ok {
			return Outcome{
				Passed:  false,
				Message: fmt.Sprintf("missing structured-data block %q", want),
			}
		}
	}
	return Outcome{Passed: true}
}

// Cross-page checks below require corpus context.

func checkOrphanPage(in Input) Outcome {
	graph := in.Corpus.LinkGraph()
	for srcID, targets := range graph {
		if srcID == in.Doc.ID {
			continue
		}
		for _, t := range targets {
			if t == in.Doc.ID {
				return Outcome{Passed: true}
			}
		}
	}
	return Outcome{Passed: false, Message: "no inbound internal links from the corpus"}
}

func checkDuplicateTitle(in Input) Outcome {
	folded := normalize.Fold(in.Doc.Title)
	for _, other := range in.Corpus.Documents {
		if other.ID != in.Doc.ID && normalize.Fold(other.Title) == folded {
			return Outcome{
				Passed:   false,
				Evidence: "title",
				Message:  fmt.Sprintf("title duplicated by document %s", other.ID),
			}
		}
	}
	return Outcome{Passed: true}
}

// checkHubSpokeRatio enforces the configurable hub/spoke link-flow target:
// a hub page should not fan out to more spokes than the ratio allows.
func checkHubSpokeRatio(in Input) Outcome {
	ratio := paramInt(in.Params, "max_spokes", 7)
	outbound := len(in.Doc.InternalLinks())
	if outbound <= ratio {
		return Outcome{Passed: true}
	}
	return Outcome{
		Passed:  false,
		Message: fmt.Sprintf("%d outbound internal links exceed hub-spoke ceiling %d", outbound, ratio),
	}
}

// checkURLDepth limits how deep a document sits in the URL hierarchy;
// deep paths raise the cost of retrieval.
func checkURLDepth(in Input) Outcome {
	maxDepth := paramInt(in.Params, "max", 4)
	depth := urlDepth(in.Doc.URL)
	if depth <= maxDepth {
		return Outcome{Passed: true}
	}
	return Outcome{
		Passed:  false,
		Message: fmt.Sprintf("URL depth %d exceeds %d", depth, maxDepth),
	}
}

func checkBodySizeBudget(in Input) Outcome {
	maxWords := paramInt(in.Params, "max_words", 5000)
	n := in.Doc.WordCount()
	if n <= maxWords {
		return Outcome{Passed: true}
	}
	return Outcome{
		Passed:  false,
		Message: fmt.Sprintf("body of %d words exceeds retrieval budget %d", n, maxWords),
	}
}

func urlDepth(raw string) int {
	u, err := url.Parse(raw)
	if err != nil {
		return 0
	}
	depth := 0
	for _, seg := range strings.Split(u.Path, "/") {
		if seg != "" {
			depth++
		}
	}
	return depth
}
