package authority

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/audit-engine/internal/model"
	"github.com/sells-group/audit-engine/internal/resilience"
)

func testServer(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/entities", func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		fmt.Fprint(w, `{"present": true, "source": "wikidata"}`)
	})
	mux.HandleFunc("/v1/reputation", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"positive": 12, "negative": 2, "neutral": 5}`)
	})
	mux.HandleFunc("/v1/cooccurrence", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"entities": ["roofing", "insulation"]}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestAggregator(baseURL string) *Aggregator {
	cfg := DefaultConfig()
	cfg.KnowledgeBaseURL = baseURL
	cfg.ReputationURL = baseURL
	cfg.CoOccurrenceURL = baseURL
	return New(
		&HTTPKnowledgeBaseSource{BaseURL: baseURL},
		&HTTPReputationSource{BaseURL: baseURL},
		&HTTPCoOccurrenceSource{BaseURL: baseURL},
		cfg,
	)
}

func TestFetchAllSourcesHealthy(t *testing.T) {
	srv := testServer(t, nil)
	agg := newTestAggregator(srv.URL)

	rec, err := agg.Fetch(context.Background(), "Acme Roofing", "acme.example")
	require.NoError(t, err)

	assert.Equal(t, 1.0, rec.Confidence)
	assert.Equal(t, model.SignalKnown, rec.KnowledgeBase.State)
	assert.True(t, rec.KnowledgeBase.Present)
	assert.Equal(t, 12, rec.Reputation.Positive)
	assert.Equal(t, []string{"roofing", "insulation"}, rec.CoOccurrence.Entities)
}

func TestFetchDegradesOnSourceFailure(t *testing.T) {
	srv := testServer(t, nil)

	// Knowledge base deterministically fails; the other two answer.
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	t.Cleanup(failing.Close)

	cfg := DefaultConfig()
	agg := New(
		&HTTPKnowledgeBaseSource{BaseURL: failing.URL},
		&HTTPReputationSource{BaseURL: srv.URL},
		&HTTPCoOccurrenceSource{BaseURL: srv.URL},
		cfg,
	)

	rec, err := agg.Fetch(context.Background(), "Acme Roofing", "acme.example")
	require.NoError(t, err, "source failure must not fail the fetch")

	assert.Less(t, rec.Confidence, 1.0)
	assert.InDelta(t, 2.0/3.0, rec.Confidence, 1e-9)
	assert.Equal(t, model.SignalUnknown, rec.KnowledgeBase.State)
	assert.Equal(t, model.SignalKnown, rec.Reputation.State)
}

func TestFetchServesFromCache(t *testing.T) {
	var hits atomic.Int64
	srv := testServer(t, &hits)
	agg := newTestAggregator(srv.URL)

	_, err := agg.Fetch(context.Background(), "Acme", "acme.example")
	require.NoError(t, err)
	_, err = agg.Fetch(context.Background(), "Acme", "acme.example")
	require.NoError(t, err)

	assert.Equal(t, int64(1), hits.Load(), "second fetch must hit the cache")
}

func TestFetchCancelled(t *testing.T) {
	srv := testServer(t, nil)
	agg := newTestAggregator(srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := agg.Fetch(ctx, "Acme", "acme.example")
	require.ErrorIs(t, err, context.Canceled)
}

func TestSourceLimiterFailsFastWhenQueueFull(t *testing.T) {
	l := newSourceLimiter("test", 1, 1, 2)

	// Fill the waiter queue.
	l.waiters <- struct{}{}
	l.waiters <- struct{}{}

	err := l.acquire(context.Background())
	require.Error(t, err)

	var rle *resilience.RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, "test", rle.Source)
}

func TestCacheTTLExpiry(t *testing.T) {
	c := newRecordCache(time.Minute)
	base := time.Now()
	c.now = func() time.Time { return base }

	c.set(&model.EntityAuthorityRecord{Entity: "Acme", Domain: "acme.example"})

	_, ok := c.get("Acme", "acme.example")
	assert.True(t, ok)

	c.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, ok = c.get("Acme", "acme.example")
	assert.False(t, ok, "entry must expire after TTL")

	assert.Equal(t, 1, c.purgeExpired())
}

func TestFetchTimeoutMarksUnknown(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(slow.Close)
	srv := testServer(t, nil)

	cfg := DefaultConfig()
	cfg.LookupTimeout = 50 * time.Millisecond
	agg := New(
		&HTTPKnowledgeBaseSource{BaseURL: slow.URL},
		&HTTPReputationSource{BaseURL: srv.URL},
		&HTTPCoOccurrenceSource{BaseURL: srv.URL},
		cfg,
	)

	rec, err := agg.Fetch(context.Background(), "Acme", "acme.example")
	require.NoError(t, err, "timeout is not escalated to a failure")
	assert.Equal(t, model.SignalUnknown, rec.KnowledgeBase.State)
	assert.Less(t, rec.Confidence, 1.0)
}
