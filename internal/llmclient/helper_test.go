package llmclient

import (
	"context"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/mock"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/genai"

	"github.com/xkilldash9x/loopguard/api/schemas"
	"github.com/xkilldash9x/loopguard/internal/config"
)

// mockGenerator is a testify mock of the genai Models service.
type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	args := m.Called(ctx, model, contents, cfg)
	resp, _ := args.Get(0).(*genai.GenerateContentResponse)
	return resp, args.Error(1)
}

// mockChatModel is a testify mock of a langchaingo model.
type mockChatModel struct {
	mock.Mock
}

func (m *mockChatModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	args := m.Called(ctx, messages)
	resp, _ := args.Get(0).(*llms.ContentResponse)
	return resp, args.Error(1)
}

// setupTestLogger is a helper to create a zap logger for testing with an observer.
func setupTestLogger(t *testing.T) (*zap.Logger, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	return zap.New(core), logs
}

// getValidLLMConfig returns a valid LLMConfig for testing purposes.
func getValidLLMConfig() config.LLMConfig {
	return config.LLMConfig{
		Provider:        config.ProviderGemini,
		APIKey:          "test-api-key",
		Model:           "test-model",
		APITimeout:      5 * time.Second,
		Temperature:     0.7,
		MaxTokens:       300,
		MaxRetryElapsed: 5 * time.Second,
	}
}

// fastBackoff keeps retry tests quick.
func fastBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Millisecond
	b.MaxInterval = 5 * time.Millisecond
	b.MaxElapsedTime = 2 * time.Second
	return b
}

func createTestRequest() schemas.PromptRequest {
	return schemas.PromptRequest{
		Regions:      []schemas.Region{{ID: "term", Name: "Terminal"}, {ID: "chat"}},
		Images:       [][]byte{{0x89, 'P', 'N', 'G'}, {0x89, 'P', 'N', 'G', 1}},
		RiskGuidance: "Risk Assessment Guidelines: keep it low.",
	}
}

const validReply = `{"continuation_prompt":"run the tests","continuation_prompt_risk":0.2,"task_complete":false,"task_complete_reason":null}`
