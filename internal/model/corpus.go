package model

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// CorpusSnapshot is the full set of current document versions analyzed
// together in one run. Immutable input to the corpus analyzer.
type CorpusSnapshot struct {
	Documents []Document

	byID map[string]*Document
}

// NewCorpusSnapshot builds a snapshot with a document-id index. Documents
// are sorted by id so downstream iteration order is deterministic.
func NewCorpusSnapshot(docs []Document) *CorpusSnapshot {
	sorted := make([]Document, len(docs))
	copy(sorted, docs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	byID := make(map[string]*Document, len(sorted))
	for i := range sorted {
		byID[sorted[i].ID] = &sorted[i]
	}
	return &CorpusSnapshot{Documents: sorted, byID: byID}
}

// Lookup returns the document with the given id, if present.
func (s *CorpusSnapshot) Lookup(id string) (*Document, bool) {
	d, ok := s.byID[id]
	return d, ok
}

// Len returns the number of documents in the snapshot.
func (s *CorpusSnapshot) Len() int { return len(s.Documents) }

// Hash returns a stable digest over the snapshot's (id, contentHash)
// pairs. Used to seed deterministic sampling and to detect corpus change.
func (s *CorpusSnapshot) Hash() string {
	h := sha256.New()
	for _, d := range s.Documents {
		h.Write([]byte(d.ID))
		h.Write([]byte{0})
		h.Write([]byte(d.ContentHash))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// LinkGraph returns the internal-link adjacency keyed by document id.
// Traversal operates over ids with explicit snapshot lookup, never over
// object references.
func (s *CorpusSnapshot) LinkGraph() map[string][]string {
	graph := make(map[string][]string, len(s.Documents))
	for _, d := range s.Documents {
		var targets []string
		for _, l := range d.Links {
			if l.Internal && l.TargetID != "" {
				targets = append(targets, l.TargetID)
			}
		}
		sort.Strings(targets)
		graph[d.ID] = targets
	}
	return graph
}

// SpanPair locates one overlapping region in both documents of a pair,
// as character ranges into each document's BodyText.
type SpanPair struct {
	AStart int `json:"a_start"`
	AEnd   int `json:"a_end"`
	BStart int `json:"b_start"`
	BEnd   int `json:"b_end"`
}

// OverlapPair records near-duplicate content between two documents.
// Symmetric: created once per unordered pair, with DocumentA < DocumentB.
type OverlapPair struct {
	DocumentA  string     `json:"document_a"`
	DocumentB  string     `json:"document_b"`
	Similarity float64    `json:"similarity"`
	Spans      []SpanPair `json:"spans,omitempty"`
}

// AnchorPattern tallies one (normalized anchor, target) pair across the
// corpus. Finalized read-only after a run.
type AnchorPattern struct {
	Anchor      string   `json:"anchor"`
	TargetID    string   `json:"target_id"`
	Occurrences int      `json:"occurrences"`
	SourceIDs   []string `json:"source_ids"`
}

// AnchorViolation flags a single source document repeating the same
// anchor/target pair beyond the configured ceiling. Exactly one violation
// per offending pair, regardless of excess count.
type AnchorViolation struct {
	SourceID string `json:"source_id"`
	Anchor   string `json:"anchor"`
	TargetID string `json:"target_id"`
	Count    int    `json:"count"`
	Ceiling  int    `json:"ceiling"`
}

// EAVTriple is one (entity, attribute, value) fact statement, the atomic
// unit of factual content.
type EAVTriple struct {
	Entity    string `json:"entity"`
	Attribute string `json:"attribute"`
	Value     string `json:"value"`
}

// TripleCoverage maps one target triple to its coverage outcome.
type TripleCoverage struct {
	Target    EAVTriple `json:"target"`
	Covered   bool      `json:"covered"`
	CoveredBy string    `json:"covered_by,omitempty"`
}

// CoverageResult reports target-fact coverage across the corpus. An
// absent target list yields Applicable=false, never zero coverage.
type CoverageResult struct {
	Applicable bool             `json:"applicable"`
	Targets    []TripleCoverage `json:"targets,omitempty"`
	Covered    int              `json:"covered"`
	Percent    float64          `json:"percent"`
}

// CorpusReport is the cross-document output of one run.
type CorpusReport struct {
	RunID            string            `json:"run_id"`
	DocumentCount    int               `json:"document_count"`
	SampledCount     int               `json:"sampled_count"`
	SamplingRatio    float64           `json:"sampling_ratio"` // 1.0 when no degradation
	Overlaps         []OverlapPair     `json:"overlaps"`
	AnchorPatterns   []AnchorPattern   `json:"anchor_patterns"`
	AnchorViolations []AnchorViolation `json:"anchor_violations"`
	Coverage         CoverageResult    `json:"coverage"`
}
