package authority

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/audit-engine/internal/model"
	"github.com/sells-group/audit-engine/internal/resilience"
)

// Config tunes external authority lookups.
type Config struct {
	KnowledgeBaseURL string        `yaml:"knowledge_base_url" mapstructure:"knowledge_base_url"`
	ReputationURL    string        `yaml:"reputation_url" mapstructure:"reputation_url"`
	CoOccurrenceURL  string        `yaml:"co_occurrence_url" mapstructure:"co_occurrence_url"`
	CacheTTL         time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	LookupTimeout    time.Duration `yaml:"lookup_timeout" mapstructure:"lookup_timeout"`
	RatePerSecond    float64       `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	Burst            int           `yaml:"burst" mapstructure:"burst"`
	QueueDepth       int           `yaml:"queue_depth" mapstructure:"queue_depth"`
	BreakerThreshold int           `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerReset     time.Duration `yaml:"breaker_reset" mapstructure:"breaker_reset"`
}

// DefaultConfig returns the aggregator defaults.
func DefaultConfig() Config {
	return Config{
		CacheTTL:         6 * time.Hour,
		LookupTimeout:    10 * time.Second,
		RatePerSecond:    5,
		Burst:            5,
		QueueDepth:       16,
		BreakerThreshold: 5,
		BreakerReset:     30 * time.Second,
	}
}

// Aggregator fetches and caches entity authority records. Lookups for the
// same (entity, domain) collapse into one outstanding request; each source
// is independently rate-limited and circuit-protected.
type Aggregator struct {
	kb  KnowledgeBaseSource
	rep ReputationSource
	co  CoOccurrenceSource

	cfg      Config
	cache    *recordCache
	flight   singleflight.Group
	limiters map[string]*sourceLimiter
	breakers map[string]*resilience.CircuitBreaker
	retry    resilience.RetryConfig
	now      func() time.Time
}

// New creates an Aggregator over the three signal sources.
func New(kb KnowledgeBaseSource, rep ReputationSource, co CoOccurrenceSource, cfg Config) *Aggregator {
	def := DefaultConfig()
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = def.LookupTimeout
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = def.RatePerSecond
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = def.QueueDepth
	}

	a := &Aggregator{
		kb:       kb,
		rep:      rep,
		co:       co,
		cfg:      cfg,
		cache:    newRecordCache(cfg.CacheTTL),
		limiters: make(map[string]*sourceLimiter),
		breakers: make(map[string]*resilience.CircuitBreaker),
		retry:    resilience.DefaultRetryConfig(),
		now:      time.Now,
	}
	for _, name := range []string{SourceKnowledgeBase, SourceReputation, SourceCoOccurrence} {
		a.limiters[name] = newSourceLimiter(name, cfg.RatePerSecond, cfg.Burst, cfg.QueueDepth)
		a.breakers[name] = resilience.NewCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerReset)
	}
	return a
}

// CacheTTL reports the configured record lifetime, shared with any
// persistent cache layered on top of the in-memory one.
func (a *Aggregator) CacheTTL() time.Duration {
	return a.cfg.CacheTTL
}

// Fetch returns the authority record for (entity, domain), from cache when
// fresh. Source failures degrade confidence; Fetch itself fails only on
// context cancellation.
func (a *Aggregator) Fetch(ctx context.Context, entity, domain string) (*model.EntityAuthorityRecord, error) {
	if rec, ok := a.cache.get(entity, domain); ok {
		return rec, nil
	}

	v, err, _ := a.flight.Do(cacheKey(entity, domain), func() (any, error) {
		return a.fetchFresh(ctx, entity, domain)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.EntityAuthorityRecord), nil
}

func (a *Aggregator) fetchFresh(ctx context.Context, entity, domain string) (*model.EntityAuthorityRecord, error) {
	rec := &model.EntityAuthorityRecord{
		Entity:        entity,
		Domain:        domain,
		KnowledgeBase: model.KnowledgeBaseSignal{State: model.SignalUnknown},
		Reputation:    model.ReputationSignal{State: model.SignalUnknown},
		CoOccurrence:  model.CoOccurrenceSignal{State: model.SignalUnknown},
		FetchedAt:     a.now().UTC(),
	}

	// The three sources are independent: a failure on one never blocks or
	// fails the others, so the group collects no errors.
	var g errgroup.Group

	g.Go(func() error {
		sig, err := lookupSource(ctx, a, SourceKnowledgeBase, entity, domain, a.kb.Lookup)
		if err == nil {
			rec.KnowledgeBase = sig
		}
		return nil
	})
	g.Go(func() error {
		sig, err := lookupSource(ctx, a, SourceReputation, entity, domain, a.rep.Lookup)
		if err == nil {
			rec.Reputation = sig
		}
		return nil
	})
	g.Go(func() error {
		sig, err := lookupSource(ctx, a, SourceCoOccurrence, entity, domain, a.co.Lookup)
		if err == nil {
			rec.CoOccurrence = sig
		}
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec.Confidence = float64(rec.KnownSources()) / 3.0
	a.cache.set(rec)

	zap.L().Debug("authority: record fetched",
		zap.String("entity", entity),
		zap.String("domain", domain),
		zap.Float64("confidence", rec.Confidence),
	)
	return rec, nil
}

// lookupSource applies the per-source discipline around one lookup:
// rate-limit acquire, mandatory per-lookup timeout, circuit breaker, and
// transient retry. Any error is logged and reported back as unknown.
func lookupSource[T any](
	ctx context.Context,
	a *Aggregator,
	source, entity, domain string,
	lookup func(ctx context.Context, entity, domain string) (T, error),
) (T, error) {
	var zero T

	if err := a.limiters[source].acquire(ctx); err != nil {
		zap.L().Warn("authority: source lookup rejected",
			zap.String("source", source),
			zap.String("entity", entity),
			zap.Error(err),
		)
		return zero, err
	}

	sig, err := resilience.DoVal(ctx, a.retry, func(ctx context.Context) (T, error) {
		var out T
		execErr := a.breakers[source].Execute(ctx, func(ctx context.Context) error {
			lookupCtx, cancel := context.WithTimeout(ctx, a.cfg.LookupTimeout)
			defer cancel()
			var err error
			out, err = lookup(lookupCtx, entity, domain)
			return err
		})
		return out, execErr
	})
	if err != nil {
		zap.L().Warn("authority: source lookup failed, marking unknown",
			zap.String("source", source),
			zap.String("entity", entity),
			zap.Error(err),
		)
		return zero, err
	}
	return sig, nil
}

// PurgeExpired drops stale cache entries; used by the TTL refresh cycle.
func (a *Aggregator) PurgeExpired() int {
	return a.cache.purgeExpired()
}
