// Filename: internal/humanoid/executor.go
package humanoid

import (
	"context"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
)

// Executor defines the contract for the browser calls a movement makes,
// allowing for mocking during tests.
type Executor interface {
	// Sleep pauses execution for a given duration (context-aware).
	Sleep(ctx context.Context, d time.Duration) error

	// DispatchMouseEvent sends a raw low-level mouse event.
	DispatchMouseEvent(ctx context.Context, p *input.DispatchMouseEventParams) error
}

// CDPExecutor is the production implementation of the Executor interface.
// The context passed to it must carry a chromedp target.
type CDPExecutor struct{}

// NewCDPExecutor creates a new production-ready executor.
func NewCDPExecutor() *CDPExecutor {
	return &CDPExecutor{}
}

func (e *CDPExecutor) Sleep(ctx context.Context, d time.Duration) error {
	return chromedp.Sleep(d).Do(ctx)
}

func (e *CDPExecutor) DispatchMouseEvent(ctx context.Context, p *input.DispatchMouseEventParams) error {
	return p.Do(ctx)
}
