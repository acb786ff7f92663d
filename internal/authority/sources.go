// Package authority aggregates external entity-authority signals with
// caching, per-source rate limiting, and confidence degradation: a failed
// or timed-out source lowers the record's confidence, it never fails the
// run.
package authority

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/audit-engine/internal/model"
	"github.com/sells-group/audit-engine/internal/resilience"
)

// Source names used for rate limiting and logging.
const (
	SourceKnowledgeBase = "knowledge_base"
	SourceReputation    = "reputation"
	SourceCoOccurrence  = "co_occurrence"
)

// KnowledgeBaseSource checks entity presence in knowledge bases.
type KnowledgeBaseSource interface {
	Lookup(ctx context.Context, entity, domain string) (model.KnowledgeBaseSignal, error)
}

// ReputationSource tallies review/mention sentiment.
type ReputationSource interface {
	Lookup(ctx context.Context, entity, domain string) (model.ReputationSignal, error)
}

// CoOccurrenceSource lists entities co-occurring with the audited entity
// in news and reference material.
type CoOccurrenceSource interface {
	Lookup(ctx context.Context, entity, domain string) (model.CoOccurrenceSignal, error)
}

// HTTPKnowledgeBaseSource queries a knowledge-base lookup endpoint.
type HTTPKnowledgeBaseSource struct {
	BaseURL string
	Client  *http.Client
}

func (s *HTTPKnowledgeBaseSource) Lookup(ctx context.Context, entity, domain string) (model.KnowledgeBaseSignal, error) {
	var payload struct {
		Present bool   `json:"present"`
		Source  string `json:"source"`
	}
	if err := getJSON(ctx, s.Client, s.BaseURL+"/v1/entities", entity, domain, SourceKnowledgeBase, &payload); err != nil {
		return model.KnowledgeBaseSignal{State: model.SignalUnknown}, err
	}
	return model.KnowledgeBaseSignal{
		State:   model.SignalKnown,
		Present: payload.Present,
		Source:  payload.Source,
	}, nil
}

// HTTPReputationSource queries a review/reputation endpoint.
type HTTPReputationSource struct {
	BaseURL string
	Client  *http.Client
}

func (s *HTTPReputationSource) Lookup(ctx context.Context, entity, domain string) (model.ReputationSignal, error) {
	var payload struct {
		Positive int `json:"positive"`
		Negative int `json:"negative"`
		Neutral  int `json:"neutral"`
	}
	if err := getJSON(ctx, s.Client, s.BaseURL+"/v1/reputation", entity, domain, SourceReputation, &payload); err != nil {
		return model.ReputationSignal{State: model.SignalUnknown}, err
	}
	return model.ReputationSignal{
		State:    model.SignalKnown,
		Positive: payload.Positive,
		Negative: payload.Negative,
		Neutral:  payload.Neutral,
	}, nil
}

// HTTPCoOccurrenceSource queries a news co-occurrence endpoint.
type HTTPCoOccurrenceSource struct {
	BaseURL string
	Client  *http.Client
}

func (s *HTTPCoOccurrenceSource) Lookup(ctx context.Context, entity, domain string) (model.CoOccurrenceSignal, error) {
	var payload struct {
		Entities []string `json:"entities"`
	}
	if err := getJSON(ctx, s.Client, s.BaseURL+"/v1/cooccurrence", entity, domain, SourceCoOccurrence, &payload); err != nil {
		return model.CoOccurrenceSignal{State: model.SignalUnknown}, err
	}
	return model.CoOccurrenceSignal{
		State:    model.SignalKnown,
		Entities: payload.Entities,
	}, nil
}

// getJSON performs the shared GET request pattern: query params for
// entity and domain, transient classification for retryable statuses.
func getJSON(ctx context.Context, client *http.Client, endpoint, entity, domain, source string, out any) error {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return eris.Wrapf(err, "authority: parse %s endpoint", source)
	}
	q := u.Query()
	q.Set("entity", entity)
	q.Set("domain", domain)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return eris.Wrapf(err, "authority: build %s request", source)
	}

	resp, err := client.Do(req)
	if err != nil {
		return &resilience.ExternalAPIError{Source: source, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := &resilience.ExternalAPIError{
			Source:     source,
			StatusCode: resp.StatusCode,
			Cause:      fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(apiErr, resp.StatusCode)
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &resilience.ExternalAPIError{Source: source, Cause: err}
	}
	return nil
}
