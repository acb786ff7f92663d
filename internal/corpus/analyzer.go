// Package corpus implements the cross-document analyses of an audit run:
// near-duplicate detection over shingle sketches, anchor-text pattern
// auditing, and target-fact coverage. All analyses take an immutable
// CorpusSnapshot and are deterministic regardless of worker scheduling.
package corpus

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"math/rand/v2"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/audit-engine/internal/model"
	"github.com/sells-group/audit-engine/internal/resilience"
)

// Config tunes the corpus analyzer. Every threshold the rulebook leaves
// informal is an explicit parameter here.
type Config struct {
	ShingleSize         int     `yaml:"shingle_size" mapstructure:"shingle_size"`
	MinHashSize         int     `yaml:"minhash_size" mapstructure:"minhash_size"`
	Bands               int     `yaml:"bands" mapstructure:"bands"`
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	NaiveThreshold      int     `yaml:"naive_threshold" mapstructure:"naive_threshold"`
	RepetitionCeiling   int     `yaml:"repetition_ceiling" mapstructure:"repetition_ceiling"`
	CoverageThreshold   float64 `yaml:"coverage_threshold" mapstructure:"coverage_threshold"`
	MaxDocuments        int     `yaml:"max_documents" mapstructure:"max_documents"`
	Workers             int     `yaml:"workers" mapstructure:"workers"`
}

// DefaultConfig returns the analyzer defaults.
func DefaultConfig() Config {
	return Config{
		ShingleSize:         5,
		MinHashSize:         128,
		Bands:               32,
		SimilarityThreshold: 0.8,
		NaiveThreshold:      50,
		RepetitionCeiling:   3,
		CoverageThreshold:   0.6,
		MaxDocuments:        5000,
		Workers:             4,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ShingleSize <= 0 {
		c.ShingleSize = d.ShingleSize
	}
	if c.MinHashSize <= 0 {
		c.MinHashSize = d.MinHashSize
	}
	if c.Bands <= 0 {
		c.Bands = d.Bands
	}
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = d.SimilarityThreshold
	}
	if c.NaiveThreshold <= 0 {
		c.NaiveThreshold = d.NaiveThreshold
	}
	if c.RepetitionCeiling <= 0 {
		c.RepetitionCeiling = d.RepetitionCeiling
	}
	if c.CoverageThreshold <= 0 {
		c.CoverageThreshold = d.CoverageThreshold
	}
	if c.MaxDocuments <= 0 {
		c.MaxDocuments = d.MaxDocuments
	}
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	return c
}

// Analyzer runs the corpus-scoped analyses.
type Analyzer struct {
	cfg Config
}

// NewAnalyzer creates an Analyzer with cfg (zero fields get defaults).
func NewAnalyzer(cfg Config) *Analyzer {
	return &Analyzer{cfg: cfg.withDefaults()}
}

// Analyze runs overlap detection, the anchor audit, and target coverage
// over the snapshot. Facts per document come from the scorer's reports.
// A corpus over budget degrades to a deterministic sample instead of
// failing; cancellation discards all partial aggregates.
func (a *Analyzer) Analyze(
	ctx context.Context,
	snapshot *model.CorpusSnapshot,
	reports map[string]*model.AuditReport,
	targets []model.EAVTriple,
) (*model.CorpusReport, error) {
	docs, ratio := a.sample(snapshot)

	report := &model.CorpusReport{
		DocumentCount: snapshot.Len(),
		SampledCount:  len(docs),
		SamplingRatio: ratio,
	}

	overlaps, err := a.detectOverlaps(ctx, docs)
	if err != nil {
		return nil, err
	}
	report.Overlaps = overlaps

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report.AnchorPatterns, report.AnchorViolations = a.auditAnchors(docs)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report.Coverage = a.coverage(docs, reports, targets)

	return report, nil
}

// sample returns the analyzed documents and the sampling ratio. Corpora
// within budget pass through untouched; larger ones are reduced to a
// deterministic random subset seeded by the snapshot hash, so reruns on
// the same corpus sample identically.
func (a *Analyzer) sample(snapshot *model.CorpusSnapshot) ([]model.Document, float64) {
	docs := snapshot.Documents
	if len(docs) <= a.cfg.MaxDocuments {
		return docs, 1.0
	}

	budgetErr := &resilience.CorpusBudgetExceededError{Documents: len(docs), Budget: a.cfg.MaxDocuments}
	zap.L().Warn("corpus: budget exceeded, degrading to sample",
		zap.Int("documents", len(docs)),
		zap.Int("budget", a.cfg.MaxDocuments),
		zap.Error(budgetErr),
	)

	seed := seedFromHash(snapshot.Hash())
	rng := rand.New(rand.NewPCG(seed, seed^0x5bd1e995))

	idx := rng.Perm(len(docs))[:a.cfg.MaxDocuments]
	sort.Ints(idx)
	sampled := make([]model.Document, 0, len(idx))
	for _, i := range idx {
		sampled = append(sampled, docs[i])
	}
	return sampled, float64(len(sampled)) / float64(len(docs))
}

func seedFromHash(h string) uint64 {
	raw, err := hex.DecodeString(h)
	if err != nil || len(raw) < 8 {
		return 0x9e3779b97f4a7c15
	}
	return binary.LittleEndian.Uint64(raw[:8])
}

// detectOverlaps finds near-duplicate document pairs. Small corpora get
// full pairwise comparison; above NaiveThreshold documents are bucketed
// by minhash band keys and only same-bucket pairs are fully compared.
func (a *Analyzer) detectOverlaps(ctx context.Context, docs []model.Document) ([]model.OverlapPair, error) {
	shingled := make([]*shingledDoc, len(docs))
	for i := range docs {
		shingled[i] = shingle(docs[i].ID, docs[i].BodyText(), a.cfg.ShingleSize)
	}

	var candidates [][2]int
	if len(docs) <= a.cfg.NaiveThreshold {
		for i := 0; i < len(shingled); i++ {
			for j := i + 1; j < len(shingled); j++ {
				candidates = append(candidates, [2]int{i, j})
			}
		}
	} else {
		candidates = a.lshCandidates(shingled)
	}

	// Bucket-level comparisons are independent; the merge below is
	// order-independent (results are a set, sorted at the end).
	var mu sync.Mutex
	var pairs []model.OverlapPair

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Workers)
	for _, cand := range candidates {
		i, j := cand[0], cand[1]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sim := jaccard(shingled[i], shingled[j])
			if sim < a.cfg.SimilarityThreshold {
				return nil
			}
			pair := buildOverlapPair(shingled[i], shingled[j], sim)
			mu.Lock()
			pairs = append(pairs, pair)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].DocumentA != pairs[j].DocumentA {
			return pairs[i].DocumentA < pairs[j].DocumentA
		}
		return pairs[i].DocumentB < pairs[j].DocumentB
	})
	return pairs, nil
}

// lshCandidates buckets signatures by band key and emits each unordered
// same-bucket pair once.
func (a *Analyzer) lshCandidates(shingled []*shingledDoc) [][2]int {
	buckets := make(map[uint64][]int)
	for i, sd := range shingled {
		sig := minhashSignature(sd, a.cfg.MinHashSize)
		for _, key := range bandKeys(sig, a.cfg.Bands) {
			buckets[key] = append(buckets[key], i)
		}
	}

	seen := make(map[[2]int]struct{})
	var candidates [][2]int
	for _, members := range buckets {
		for x := 0; x < len(members); x++ {
			for y := x + 1; y < len(members); y++ {
				i, j := members[x], members[y]
				if i > j {
					i, j = j, i
				}
				key := [2]int{i, j}
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				candidates = append(candidates, key)
			}
		}
	}
	return candidates
}

// buildOverlapPair orders the pair lexicographically and aligns shared
// shingles back to character spans in both documents. Symmetric by
// construction: overlap(A,B) and overlap(B,A) produce the same pair.
func buildOverlapPair(a, b *shingledDoc, sim float64) model.OverlapPair {
	if a.docID > b.docID {
		a, b = b, a
	}

	var spans []model.SpanPair
	var cur *model.SpanPair
	for _, ref := range a.refs {
		bRef, shared := b.firstRef[ref.hash]
		if !shared {
			continue
		}
		if cur != nil && ref.start <= cur.AEnd+1 && bRef.start <= cur.BEnd+1 && bRef.start >= cur.BStart {
			if ref.end > cur.AEnd {
				cur.AEnd = ref.end
			}
			if bRef.end > cur.BEnd {
				cur.BEnd = bRef.end
			}
			continue
		}
		if cur != nil {
			spans = append(spans, *cur)
		}
		cur = &model.SpanPair{AStart: ref.start, AEnd: ref.end, BStart: bRef.start, BEnd: bRef.end}
	}
	if cur != nil {
		spans = append(spans, *cur)
	}

	return model.OverlapPair{
		DocumentA:  a.docID,
		DocumentB:  b.docID,
		Similarity: sim,
		Spans:      spans,
	}
}
