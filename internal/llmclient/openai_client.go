// internal/llmclient/openai_client.go
package llmclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/xkilldash9x/loopguard/api/schemas"
	"github.com/xkilldash9x/loopguard/internal/config"
)

// chatModel is the part of a langchaingo model the client calls.
type chatModel interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// OpenAIClient implements schemas.LLMClient against any OpenAI-compatible
// chat completion endpoint.
type OpenAIClient struct {
	model          chatModel
	logger         *zap.Logger
	config         config.LLMConfig
	backoffFactory func() backoff.BackOff
}

// NewOpenAIClient initializes the client.
func NewOpenAIClient(cfg config.LLMConfig, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
	}
	if base := baseURL(cfg.Endpoint); base != "" {
		opts = append(opts, openai.WithBaseURL(base))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}
	return newOpenAIClient(llm, cfg, logger), nil
}

func newOpenAIClient(model chatModel, cfg config.LLMConfig, logger *zap.Logger) *OpenAIClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxElapsed := cfg.MaxRetryElapsed
	return &OpenAIClient{
		model:  model,
		logger: logger.Named("llm_client.openai"),
		config: cfg,
		backoffFactory: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = maxElapsed
			b.MaxInterval = 10 * time.Second
			return b
		},
	}
}

// baseURL accepts either an API base or a full chat completions URL.
func baseURL(endpoint string) string {
	return strings.TrimSuffix(strings.TrimRight(endpoint, "/"), "/chat/completions")
}

// GeneratePrompt sends the regions to the model and decodes the JSON reply.
func (c *OpenAIClient) GeneratePrompt(ctx context.Context, req schemas.PromptRequest) (schemas.LLMPromptResponse, error) {
	messages := buildMessages(req)
	opts := []llms.CallOption{
		llms.WithMaxTokens(c.config.MaxTokens),
		llms.WithTemperature(float64(c.config.Temperature)),
	}

	var result schemas.LLMPromptResponse
	operation := func() error {
		startTime := time.Now()
		resp, err := c.model.GenerateContent(ctx, messages, opts...)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			c.logger.Warn("LLM request failed, retrying...", zap.Error(err))
			return err
		}
		if len(resp.Choices) == 0 {
			return backoff.Permanent(fmt.Errorf("%w: no choices returned", ErrEmptyResponse))
		}
		choice := resp.Choices[0]
		c.logger.Info("LLM generation complete (OpenAI)",
			zap.Duration("duration", time.Since(startTime)),
			zap.String("stop_reason", choice.StopReason))

		parsed, err := ParseResponse(choice.Content)
		if err != nil {
			return backoff.Permanent(err)
		}
		result = parsed
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(c.backoffFactory(), ctx)); err != nil {
		return schemas.LLMPromptResponse{}, err
	}
	return result, nil
}

func buildMessages(req schemas.PromptRequest) []llms.MessageContent {
	user := []llms.ContentPart{llms.TextContent{Text: buildUserText(req)}}
	for _, img := range req.Images {
		user = append(user, llms.BinaryPart("image/png", img))
	}
	return []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextContent{Text: BuildSystemMessage(req)}},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: user,
		},
	}
}
