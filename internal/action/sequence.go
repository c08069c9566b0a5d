// internal/action/sequence.go
package action

import (
	"context"
	"fmt"
	"time"

	"github.com/xkilldash9x/loopguard/api/schemas"
	"go.uber.org/zap"
)

// DefaultDelay gives the window manager time to settle focus between inputs.
const DefaultDelay = 50 * time.Millisecond

// Sequence runs actions strictly in order and aborts on the first failure.
type Sequence struct {
	actions []Action
	delay   time.Duration
	logger  *zap.Logger
}

// SequenceOption configures a Sequence.
type SequenceOption func(*Sequence)

// WithDelay sets the pause between consecutive actions. Zero disables it.
func WithDelay(d time.Duration) SequenceOption {
	return func(s *Sequence) {
		if d >= 0 {
			s.delay = d
		}
	}
}

// WithSequenceLogger attaches a logger.
func WithSequenceLogger(logger *zap.Logger) SequenceOption {
	return func(s *Sequence) {
		if logger != nil {
			s.logger = logger.Named("actions")
		}
	}
}

// NewSequence builds a sequence over the given actions.
func NewSequence(actions []Action, opts ...SequenceOption) *Sequence {
	s := &Sequence{
		actions: actions,
		delay:   DefaultDelay,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Len returns the number of actions.
func (s *Sequence) Len() int { return len(s.actions) }

// Names lists the action names in order.
func (s *Sequence) Names() []string {
	names := make([]string, len(s.actions))
	for i, a := range s.actions {
		names[i] = a.Name()
	}
	return names
}

// Run executes the actions and reports whether all of them succeeded.
// ActionStarted and ActionCompleted bracket every action that runs. The first
// failure emits an Error event and ActionCompleted{false}, and no later
// action is started.
func (s *Sequence) Run(ctx context.Context, automation schemas.Automation, actx *Context, sink schemas.EventSink) bool {
	for i, a := range s.actions {
		name := a.Name()
		sink.Emit(schemas.ActionStarted{Action: name})

		err := a.Execute(ctx, automation, actx)
		for _, e := range actx.takeEvents() {
			sink.Emit(e)
		}
		if err != nil {
			s.logger.Warn("Action failed, aborting sequence.",
				zap.String("action", name),
				zap.Int("index", i),
				zap.Error(err))
			sink.Emit(schemas.ErrorEvent{Message: fmt.Sprintf("action '%s': %s", name, err)})
			sink.Emit(schemas.ActionCompleted{Action: name, Success: false})
			return false
		}
		sink.Emit(schemas.ActionCompleted{Action: name, Success: true})

		if i < len(s.actions)-1 && s.delay > 0 {
			s.pause(ctx)
		}
	}
	return true
}

// pause waits for the inter-action delay or until ctx is done. A cancelled
// context makes the next automation call fail, which aborts the sequence.
func (s *Sequence) pause(ctx context.Context) {
	timer := time.NewTimer(s.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
