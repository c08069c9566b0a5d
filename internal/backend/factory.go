// internal/backend/factory.go
package backend

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/loopguard/api/schemas"
	"github.com/xkilldash9x/loopguard/internal/config"
)

// Backend is a screen plus an input device.
type Backend interface {
	schemas.ScreenCapture
	schemas.Automation
	Close() error
}

// New creates the backend selected by cfg.Kind.
func New(ctx context.Context, cfg config.BackendConfig, logger *zap.Logger) (Backend, error) {
	switch strings.ToLower(cfg.Kind) {
	case config.BackendFake:
		return NewFake(cfg.Fake, logger), nil
	case config.BackendBrowser:
		b, err := NewBrowser(ctx, cfg.Browser, logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown backend kind '%s'", cfg.Kind)
	}
}
