// internal/llmclient/limiter.go
package llmclient

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/xkilldash9x/loopguard/api/schemas"
)

// RateLimited bounds how often the wrapped client is called.
type RateLimited struct {
	next    schemas.LLMClient
	limiter *rate.Limiter
}

// NewRateLimited allows requestsPerMinute calls with a burst of one.
// A non-positive rate returns next unchanged.
func NewRateLimited(next schemas.LLMClient, requestsPerMinute int) schemas.LLMClient {
	if requestsPerMinute <= 0 {
		return next
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1),
	}
}

func (r *RateLimited) GeneratePrompt(ctx context.Context, req schemas.PromptRequest) (schemas.LLMPromptResponse, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return schemas.LLMPromptResponse{}, fmt.Errorf("llm rate limiter: %w", err)
	}
	return r.next.GeneratePrompt(ctx, req)
}
