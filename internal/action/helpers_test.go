package action

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/xkilldash9x/loopguard/api/schemas"
)

// mockAutomation is a testify mock of the input backend.
type mockAutomation struct {
	mock.Mock
}

func (m *mockAutomation) MoveCursor(ctx context.Context, x, y int) error {
	return m.Called(x, y).Error(0)
}

func (m *mockAutomation) Click(ctx context.Context, button schemas.MouseButton) error {
	return m.Called(button).Error(0)
}

func (m *mockAutomation) TypeText(ctx context.Context, text string) error {
	return m.Called(text).Error(0)
}

func (m *mockAutomation) Key(ctx context.Context, name string) error {
	return m.Called(name).Error(0)
}

// stubCapture hashes regions from a fixed table and returns solid frames.
type stubCapture struct {
	hashes     map[string]uint64
	captureErr error
}

func (s *stubCapture) HashRegion(r schemas.Region, _ int) uint64 {
	return s.hashes[r.ID]
}

func (s *stubCapture) CaptureRegion(_ context.Context, r schemas.Region) (schemas.Frame, error) {
	if s.captureErr != nil {
		return schemas.Frame{}, s.captureErr
	}
	img := image.NewRGBA(image.Rect(0, 0, r.Rect.Width, r.Rect.Height))
	return schemas.Frame{Width: r.Rect.Width, Height: r.Rect.Height, Stride: img.Stride, Bytes: img.Pix, Timestamp: time.Now()}, nil
}

func (s *stubCapture) Displays(context.Context) ([]schemas.DisplayInfo, error) {
	return nil, nil
}

// stubOCR returns canned text per region and counts cached lookups.
type stubOCR struct {
	text   map[string]string
	err    error
	hashes []uint64
}

func (s *stubOCR) ExtractText(_ context.Context, r schemas.Region) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.text[r.ID], nil
}

func (s *stubOCR) ExtractTextCached(ctx context.Context, r schemas.Region, hash uint64) (string, error) {
	s.hashes = append(s.hashes, hash)
	return s.ExtractText(ctx, r)
}

// stubLLM records requests and replies with a fixed response.
type stubLLM struct {
	mu       sync.Mutex
	resp     schemas.LLMPromptResponse
	err      error
	requests []schemas.PromptRequest
}

func (s *stubLLM) GeneratePrompt(_ context.Context, req schemas.PromptRequest) (schemas.LLMPromptResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	return s.resp, s.err
}

// recordingAlarm counts alarm calls.
type recordingAlarm struct {
	interventions []string
	ended         []string
}

func (a *recordingAlarm) InterventionNeeded(reason string) { a.interventions = append(a.interventions, reason) }
func (a *recordingAlarm) ProfileEnded(reason string)       { a.ended = append(a.ended, reason) }

// funcAction is an Action built from a closure.
type funcAction struct {
	name string
	fn   func(actx *Context) error
}

func (f funcAction) Name() string { return f.name }

func (f funcAction) Execute(_ context.Context, _ schemas.Automation, actx *Context) error {
	if f.fn == nil {
		return nil
	}
	return f.fn(actx)
}

func ptr[T any](v T) *T { return &v }
