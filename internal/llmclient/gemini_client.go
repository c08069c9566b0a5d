// internal/llmclient/gemini_client.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/xkilldash9x/loopguard/api/schemas"
	"github.com/xkilldash9x/loopguard/internal/config"
)

// contentGenerator is the slice of the genai Models service the client uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiClient implements schemas.LLMClient on the Gemini API.
type GeminiClient struct {
	models         contentGenerator
	logger         *zap.Logger
	config         config.LLMConfig
	backoffFactory func() backoff.BackOff
}

// NewGeminiClient initializes the client.
func NewGeminiClient(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.APITimeout},
	}
	if cfg.Endpoint != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Endpoint}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return newGeminiClient(client.Models, cfg, logger), nil
}

func newGeminiClient(models contentGenerator, cfg config.LLMConfig, logger *zap.Logger) *GeminiClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxElapsed := cfg.MaxRetryElapsed
	return &GeminiClient{
		models: models,
		logger: logger.Named("llm_client.gemini"),
		config: cfg,
		backoffFactory: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = maxElapsed
			b.MaxInterval = 10 * time.Second
			return b
		},
	}
}

// GeneratePrompt sends the regions to Gemini and decodes the JSON reply,
// retrying transient API errors.
func (c *GeminiClient) GeneratePrompt(ctx context.Context, req schemas.PromptRequest) (schemas.LLMPromptResponse, error) {
	contents, genConfig := c.buildRequest(req)

	var result schemas.LLMPromptResponse
	operation := func() error {
		startTime := time.Now()
		resp, err := c.models.GenerateContent(ctx, c.config.Model, contents, genConfig)
		duration := time.Since(startTime)
		if err != nil {
			return c.handleAPIError(err)
		}

		if len(resp.Candidates) == 0 {
			if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
				return backoff.Permanent(fmt.Errorf("gemini API blocked the request (Reason: %s)", resp.PromptFeedback.BlockReason))
			}
			return backoff.Permanent(fmt.Errorf("gemini API returned no candidates"))
		}
		candidate := resp.Candidates[0]
		if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
			if candidate.FinishReason == genai.FinishReasonSafety || candidate.FinishReason == genai.FinishReasonBlocklist {
				return backoff.Permanent(fmt.Errorf("gemini API blocked the request (Reason: %s)", candidate.FinishReason))
			}
			return fmt.Errorf("%w (Reason: %s)", ErrEmptyResponse, candidate.FinishReason)
		}

		fields := []zap.Field{zap.Duration("duration", duration)}
		if u := resp.UsageMetadata; u != nil {
			fields = append(fields,
				zap.Int32("prompt_tokens", u.PromptTokenCount),
				zap.Int32("completion_tokens", u.CandidatesTokenCount),
				zap.Int32("total_tokens", u.TotalTokenCount))
		}
		c.logger.Info("LLM generation complete (Gemini)", fields...)

		parsed, err := ParseResponse(resp.Text())
		if err != nil {
			// The model answered; asking again rarely fixes malformed output.
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

func (c *GeminiClient) buildRequest(req schemas.PromptRequest) ([]*genai.Content, *genai.GenerateContentConfig) {
	parts := []*genai.Part{genai.NewPartFromText(buildUserText(req))}
	for _, img := range req.Images {
		parts = append(parts, genai.NewPartFromBytes(img, "image/png"))
	}

	genConfig := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(BuildSystemMessage(req), genai.RoleUser),
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr(c.config.Temperature),
		MaxOutputTokens:   int32(c.config.MaxTokens),
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, genConfig
}

// handleAPIError classifies an API failure as transient or permanent.
func (c *GeminiClient) handleAPIError(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		c.logger.Warn("Network error during LLM request, retrying...", zap.Error(err))
		return err
	}
	c.logger.Error("Gemini API returned error status", zap.Int("status", apiErr.Code), zap.String("message", apiErr.Message))
	switch apiErr.Code {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusInternalServerError:
		return err
	default:
		return backoff.Permanent(err)
	}
}
