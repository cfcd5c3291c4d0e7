// internal/llmclient/ratelimit.go
package llmclient

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/visionfill/api/schemas"
)

// RateLimitedClient throttles calls to an underlying LLMClient so a run
// stays under the provider's per-minute quota.
type RateLimitedClient struct {
	next    schemas.LLMClient
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewRateLimitedClient allows requestsPerMinute calls per minute with a
// burst of one.
func NewRateLimitedClient(next schemas.LLMClient, requestsPerMinute int, logger *zap.Logger) *RateLimitedClient {
	return &RateLimitedClient{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1),
		logger:  logger.Named("llm_ratelimit"),
	}
}

// Generate waits for a token and then delegates.
func (r *RateLimitedClient) Generate(ctx context.Context, req schemas.GenerationRequest) (*schemas.GenerationResponse, error) {
	start := time.Now()
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait aborted: %w", err)
	}
	if waited := time.Since(start); waited > 100*time.Millisecond {
		r.logger.Debug("Throttled LLM request.", zap.Duration("waited", waited))
	}
	return r.next.Generate(ctx, req)
}

// Close closes the wrapped client.
func (r *RateLimitedClient) Close() error {
	return r.next.Close()
}
