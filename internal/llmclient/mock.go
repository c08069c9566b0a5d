// internal/llmclient/mock.go
package llmclient

import (
	"context"
	"sync"

	"github.com/xkilldash9x/loopguard/api/schemas"
)

// MockClient is a deterministic LLM used by the fake backend, the soak
// harness and tests. It records every request.
type MockClient struct {
	mu       sync.Mutex
	response schemas.LLMPromptResponse
	err      error
	requests []schemas.PromptRequest
}

// NewMockClient returns a client that always proposes "continue" at risk 0.1.
func NewMockClient() *MockClient {
	prompt := "continue"
	return &MockClient{
		response: schemas.LLMPromptResponse{ContinuationPrompt: &prompt, ContinuationPromptRisk: 0.1},
	}
}

// SetResponse replaces the canned response.
func (m *MockClient) SetResponse(resp schemas.LLMPromptResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = resp
	m.err = nil
}

// SetError makes every following call fail with err.
func (m *MockClient) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockClient) GeneratePrompt(_ context.Context, req schemas.PromptRequest) (schemas.LLMPromptResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return schemas.LLMPromptResponse{}, m.err
	}
	return m.response, nil
}

// Requests returns a copy of the recorded requests.
func (m *MockClient) Requests() []schemas.PromptRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]schemas.PromptRequest, len(m.requests))
	copy(out, m.requests)
	return out
}
