package authority

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/sells-group/audit-engine/internal/resilience"
)

// sourceLimiter enforces one external source's token-bucket budget.
// Requests beyond the bucket queue behind rate.Limiter.Wait up to
// queueDepth concurrent waiters; the next request fails fast with a
// RateLimitError instead of blocking indefinitely.
type sourceLimiter struct {
	name    string
	limiter *rate.Limiter
	waiters chan struct{}
}

func newSourceLimiter(name string, perSecond float64, burst, queueDepth int) *sourceLimiter {
	if perSecond <= 0 {
		perSecond = 5
	}
	if burst <= 0 {
		burst = int(perSecond)
		if burst < 1 {
			burst = 1
		}
	}
	if queueDepth <= 0 {
		queueDepth = 16
	}
	return &sourceLimiter{
		name:    name,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		waiters: make(chan struct{}, queueDepth),
	}
}

// acquire blocks until a token is available or the context ends. If the
// waiter queue is already full the call fails immediately.
func (l *sourceLimiter) acquire(ctx context.Context) error {
	select {
	case l.waiters <- struct{}{}:
	default:
		return &resilience.RateLimitError{Source: l.name}
	}
	defer func() { <-l.waiters }()
	return l.limiter.Wait(ctx)
}
