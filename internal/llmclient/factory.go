// internal/llmclient/factory.go
package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/loopguard/api/schemas"
	"github.com/xkilldash9x/loopguard/internal/config"
)

// NewClient creates the LLMClient selected by the configuration. Real
// providers are wrapped in a rate limiter.
func NewClient(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	if cfg.Fake {
		return NewMockClient(), nil
	}

	var (
		client schemas.LLMClient
		err    error
	)
	switch cfg.Provider {
	case config.ProviderMock:
		return NewMockClient(), nil
	case config.ProviderGemini:
		client, err = NewGeminiClient(ctx, cfg, logger)
	case config.ProviderOpenAI:
		client, err = NewOpenAIClient(cfg, logger)
	default:
		return nil, fmt.Errorf("%w: '%s'. Supported: [%s, %s, %s]", ErrUnknownProvider, cfg.Provider,
			config.ProviderMock, config.ProviderGemini, config.ProviderOpenAI)
	}
	if err != nil {
		return nil, err
	}
	return NewRateLimited(client, cfg.RequestsPerMinute), nil
}
