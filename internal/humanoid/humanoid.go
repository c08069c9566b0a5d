// -- internal/humanoid/humanoid.go --
package humanoid

import (
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/loopguard/internal/config"
)

// Humanoid moves the pointer along planned, human-like paths and tracks
// where it left it.
type Humanoid struct {
	cfg      config.HumanoidConfig
	executor Executor
	logger   *zap.Logger

	mu         sync.Mutex
	rng        *rand.Rand
	currentPos Vector2D
}

// New creates a new Humanoid. A nil rng is seeded from the clock.
func New(cfg config.HumanoidConfig, executor Executor, logger *zap.Logger, rng *rand.Rand) *Humanoid {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Steps < 2 {
		cfg.Steps = 2
	}
	return &Humanoid{
		cfg:      cfg,
		executor: executor,
		logger:   logger.Named("humanoid"),
		rng:      rng,
	}
}

// Position returns the last pointer position this instance dispatched.
func (h *Humanoid) Position() Vector2D {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.currentPos
}

// SetPosition records a pointer position reached by other means.
func (h *Humanoid) SetPosition(p Vector2D) {
	h.mu.Lock()
	h.currentPos = p
	h.mu.Unlock()
}
