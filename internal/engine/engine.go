// Package engine orchestrates a full audit run: change detection, parallel
// document scoring, corpus analysis, authority aggregation, and roadmap
// generation, with results persisted through the store.
package engine

import (
	"context"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/audit-engine/internal/authority"
	"github.com/sells-group/audit-engine/internal/corpus"
	"github.com/sells-group/audit-engine/internal/fingerprint"
	"github.com/sells-group/audit-engine/internal/model"
	"github.com/sells-group/audit-engine/internal/roadmap"
	"github.com/sells-group/audit-engine/internal/scorer"
	"github.com/sells-group/audit-engine/internal/store"
)

// Config holds run orchestration parameters.
type Config struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{Workers: 4}
}

// Result is the complete output of one audit run.
type Result struct {
	Run          *model.Run                     `json:"run,omitempty"`
	Reports      []*model.AuditReport           `json:"reports"`
	CorpusReport *model.CorpusReport            `json:"corpus_report"`
	Authority    []*model.EntityAuthorityRecord `json:"authority,omitempty"`
	Roadmap      []model.RoadmapItem            `json:"roadmap"`
	ScoredCount  int                            `json:"scored_count"`
	SkippedCount int                            `json:"skipped_count"`
}

// Engine wires the scorer, corpus analyzer, and authority aggregator into
// one run. The store and aggregator are optional: a nil store disables the
// report cache and run records, a nil aggregator skips authority signals.
type Engine struct {
	cfg       Config
	ruleSet   *model.RuleSet
	scorer    *scorer.Scorer
	analyzer  *corpus.Analyzer
	authority *authority.Aggregator
	st        store.Store
}

// New creates an Engine.
func New(ruleSet *model.RuleSet, sc *scorer.Scorer, an *corpus.Analyzer, agg *authority.Aggregator, st store.Store, cfg Config) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	return &Engine{
		cfg:       cfg,
		ruleSet:   ruleSet,
		scorer:    sc,
		analyzer:  an,
		authority: agg,
		st:        st,
	}
}

// Run audits the corpus end to end. Unchanged documents (same content hash
// under the same rule version) are served from the stored report cache;
// corpus-scoped analyses always recompute. A cancelled context discards
// partial aggregates and marks the run cancelled.
func (e *Engine) Run(ctx context.Context, docs []model.Document, targets []model.EAVTriple) (*Result, error) {
	log := zap.L().With(zap.Int("documents", len(docs)))
	log.Info("engine: starting audit run")

	// Fingerprint up front so change detection and the snapshot hash see
	// the same content hashes.
	for i := range docs {
		if docs[i].ContentHash == "" {
			docs[i].ContentHash = fingerprint.Compute(&docs[i])
		}
	}
	snapshot := model.NewCorpusSnapshot(docs)

	result := &Result{}

	var run *model.Run
	if e.st != nil {
		var err error
		// The run row outlives the run context so a cancelled run is
		// still recorded.
		run, err = e.st.CreateRun(context.WithoutCancel(ctx))
		if err != nil {
			return nil, eris.Wrap(err, "engine: create run")
		}
		result.Run = run
	}

	finish := func(status model.RunStatus) {
		if e.st == nil || run == nil {
			return
		}
		stats := store.RunStats{
			DocumentCount: snapshot.Len(),
			ScoredCount:   result.ScoredCount,
			SkippedCount:  result.SkippedCount,
			MeanAggregate: meanAggregate(result.Reports),
		}
		// Completion is recorded even when the run context is gone.
		if err := e.st.CompleteRun(context.WithoutCancel(ctx), run.ID, status, stats); err != nil {
			log.Warn("engine: failed to record run completion", zap.Error(err))
		}
	}

	reports, fresh, skipped, err := e.scoreAll(ctx, snapshot)
	if err != nil {
		if ctx.Err() != nil {
			finish(model.RunCancelled)
			return nil, ctx.Err()
		}
		finish(model.RunFailed)
		return nil, err
	}
	result.Reports = reports
	result.ScoredCount = len(fresh)
	result.SkippedCount = skipped

	reportsByID := make(map[string]*model.AuditReport, len(reports))
	for _, r := range reports {
		reportsByID[r.DocumentID] = r
	}

	corpusReport, err := e.analyzer.Analyze(ctx, snapshot, reportsByID, targets)
	if err != nil {
		if ctx.Err() != nil {
			finish(model.RunCancelled)
			return nil, ctx.Err()
		}
		finish(model.RunFailed)
		return nil, eris.Wrap(err, "engine: corpus analysis")
	}
	if run != nil {
		corpusReport.RunID = run.ID
	}
	result.CorpusReport = corpusReport

	records, err := e.fetchAuthority(ctx, snapshot)
	if err != nil {
		finish(model.RunCancelled)
		return nil, err
	}
	result.Authority = records

	result.Roadmap = roadmap.Build(reports, corpusReport, records, e.ruleSet.CategoryWeights)

	if e.st != nil && run != nil {
		if err := e.st.SaveReports(ctx, run.ID, fresh); err != nil {
			log.Warn("engine: failed to persist reports", zap.Error(err))
		}
	}
	finish(model.RunCompleted)

	log.Info("engine: audit run complete",
		zap.Int("scored", result.ScoredCount),
		zap.Int("skipped", result.SkippedCount),
		zap.Int("overlaps", len(corpusReport.Overlaps)),
		zap.Int("roadmap_items", len(result.Roadmap)),
	)
	return result, nil
}

// scoreAll scores every document in the snapshot, serving unchanged ones
// from the report cache. Returns all reports in document-id order plus the
// freshly scored subset.
func (e *Engine) scoreAll(ctx context.Context, snapshot *model.CorpusSnapshot) (all, fresh []*model.AuditReport, skipped int, err error) {
	ruleVersion := e.scorer.RuleVersion()

	var mu sync.Mutex
	byID := make(map[string]*model.AuditReport, snapshot.Len())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)

	for i := range snapshot.Documents {
		doc := &snapshot.Documents[i]
		g.Go(func() error {
			if e.st != nil {
				cached, cacheErr := e.st.GetReport(gctx, doc.ID, doc.ContentHash, ruleVersion)
				if cacheErr != nil {
					// A broken cache read costs a rescore, not the run.
					zap.L().Warn("engine: report cache read failed",
						zap.String("document_id", doc.ID),
						zap.Error(cacheErr),
					)
				}
				if cached != nil {
					mu.Lock()
					byID[doc.ID] = cached
					skipped++
					mu.Unlock()
					return nil
				}
			}

			report, scoreErr := e.scorer.Score(gctx, doc, snapshot)
			if scoreErr != nil {
				return eris.Wrapf(scoreErr, "engine: score %s", doc.ID)
			}
			mu.Lock()
			byID[doc.ID] = report
			fresh = append(fresh, report)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, 0, err
	}

	all = make([]*model.AuditReport, 0, len(byID))
	for i := range snapshot.Documents {
		if r, ok := byID[snapshot.Documents[i].ID]; ok {
			all = append(all, r)
		}
	}
	sort.Slice(fresh, func(i, j int) bool { return fresh[i].DocumentID < fresh[j].DocumentID })
	return all, fresh, skipped, nil
}

// fetchAuthority resolves one authority record per distinct (entity, domain)
// pair in the corpus. Source failures degrade to unknown signals; only
// context cancellation aborts the run.
func (e *Engine) fetchAuthority(ctx context.Context, snapshot *model.CorpusSnapshot) ([]*model.EntityAuthorityRecord, error) {
	if e.authority == nil {
		return nil, nil
	}

	type pair struct{ entity, domain string }
	seen := make(map[pair]struct{})
	var pairs []pair
	for i := range snapshot.Documents {
		doc := &snapshot.Documents[i]
		if doc.CentralEntity == "" {
			continue
		}
		p := pair{doc.CentralEntity, doc.Domain}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].entity != pairs[j].entity {
			return pairs[i].entity < pairs[j].entity
		}
		return pairs[i].domain < pairs[j].domain
	})

	var records []*model.EntityAuthorityRecord
	for _, p := range pairs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if e.st != nil {
			cached, err := e.st.GetCachedAuthority(ctx, p.entity, p.domain)
			if err != nil {
				zap.L().Warn("engine: authority cache read failed", zap.String("entity", p.entity), zap.Error(err))
			} else if cached != nil {
				records = append(records, cached)
				continue
			}
		}

		rec, err := e.authority.Fetch(ctx, p.entity, p.domain)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			zap.L().Warn("engine: authority fetch failed", zap.String("entity", p.entity), zap.Error(err))
			continue
		}
		records = append(records, rec)

		if e.st != nil {
			if err := e.st.SetCachedAuthority(ctx, rec, e.authority.CacheTTL()); err != nil {
				zap.L().Warn("engine: authority cache write failed", zap.String("entity", p.entity), zap.Error(err))
			}
		}
	}
	return records, nil
}

func meanAggregate(reports []*model.AuditReport) float64 {
	if len(reports) == 0 {
		return 0
	}
	var sum float64
	for _, r := range reports {
		sum += r.Aggregate
	}
	return sum / float64(len(reports))
}
