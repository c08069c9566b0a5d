// internal/runner/manager.go
package runner

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Manager keeps at most one active runner per profile.
type Manager struct {
	logger *zap.Logger

	mu      sync.Mutex
	runners map[string]*Runner
}

// NewManager creates an empty manager.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		logger:  logger.Named("runner_manager"),
		runners: make(map[string]*Runner),
	}
}

// Start launches r, first stopping and draining any runner already active
// for the same profile.
func (m *Manager) Start(ctx context.Context, r *Runner) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.runners[r.ProfileID()]; ok {
		m.logger.Info("Replacing active runner.", zap.String("profile_id", r.ProfileID()), zap.String("previous_run_id", prev.RunID()))
		prev.Stop(false)
		delete(m.runners, r.ProfileID())
	}
	if err := r.Start(ctx); err != nil {
		return err
	}
	m.runners[r.ProfileID()] = r
	return nil
}

// Stop stops the runner of a profile and waits for it to drain.
func (m *Manager) Stop(profileID string, panicStop bool) error {
	m.mu.Lock()
	r, ok := m.runners[profileID]
	delete(m.runners, profileID)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w '%s'", ErrNotRunning, profileID)
	}
	r.Stop(panicStop)
	return nil
}

// StopAll stops every runner concurrently and waits for all of them.
func (m *Manager) StopAll(panicStop bool) {
	m.mu.Lock()
	runners := m.runners
	m.runners = make(map[string]*Runner)
	m.mu.Unlock()

	var g errgroup.Group
	for _, r := range runners {
		g.Go(func() error {
			r.Stop(panicStop)
			return nil
		})
	}
	_ = g.Wait()
	m.logger.Info("All runners stopped.", zap.Int("count", len(runners)), zap.Bool("panic", panicStop))
}

// Get returns the runner registered for a profile, finished or not.
func (m *Manager) Get(profileID string) (*Runner, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runners[profileID]
	return r, ok
}

// Running lists the profiles whose runner loop is still active, sorted.
func (m *Manager) Running() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, r := range m.runners {
		select {
		case <-r.Done():
		default:
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
