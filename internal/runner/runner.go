// internal/runner/runner.go

// Package runner hosts monitors on worker goroutines. A Runner owns exactly
// one monitor and is the only goroutine that touches it while running.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/loopguard/api/schemas"
	"github.com/xkilldash9x/loopguard/internal/monitor"
)

// DefaultCadence is the scheduler tick of the host loop. The trigger decides
// whether a tick does any work.
const DefaultCadence = 100 * time.Millisecond

var (
	ErrAlreadyRunning = errors.New("runner already started")
	ErrNotRunning     = errors.New("no runner for profile")
)

// Runner drives one monitor: check for cancellation, tick, sleep, repeat.
type Runner struct {
	runID      string
	profileID  string
	monitor    *monitor.Monitor
	regions    []schemas.Region
	capture    schemas.ScreenCapture
	automation schemas.Automation
	sink       schemas.EventSink
	alarm      schemas.Alarm
	cadence    time.Duration
	clock      func() time.Time
	logger     *zap.Logger

	started   atomic.Bool
	cancel    atomic.Bool
	panicStop atomic.Bool
	stopOnce  sync.Once
	stopCh    chan struct{}
	done      chan struct{}

	// Written by the loop goroutine before done is closed.
	lastTrip   string
	stopReason string
}

// Option configures a Runner.
type Option func(*Runner)

// WithCadence sets the host tick interval.
func WithCadence(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.cadence = d
		}
	}
}

// WithClock replaces time.Now as the tick timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(r *Runner) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithAlarm notifies the operator when the monitor stops on its own.
func WithAlarm(alarm schemas.Alarm) Option {
	return func(r *Runner) {
		r.alarm = alarm
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRunID overrides the generated run id.
func WithRunID(id string) Option {
	return func(r *Runner) {
		if id != "" {
			r.runID = id
		}
	}
}

// New creates a runner for a built monitor. The sink receives every event
// the monitor emits, in order.
func New(profileID string, m *monitor.Monitor, regions []schemas.Region, capture schemas.ScreenCapture, automation schemas.Automation, sink schemas.EventSink, opts ...Option) (*Runner, error) {
	switch {
	case m == nil:
		return nil, errors.New("monitor cannot be nil")
	case capture == nil:
		return nil, errors.New("screen capture cannot be nil")
	case automation == nil:
		return nil, errors.New("automation cannot be nil")
	case sink == nil:
		return nil, errors.New("event sink cannot be nil")
	}
	r := &Runner{
		runID:      uuid.New().String(),
		profileID:  profileID,
		monitor:    m,
		regions:    regions,
		capture:    capture,
		automation: automation,
		cadence:    DefaultCadence,
		clock:      time.Now,
		logger:     zap.NewNop(),
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.sink = schemas.SinkFunc(func(e schemas.Event) {
		if trip, ok := e.(schemas.WatchdogTripped); ok {
			r.lastTrip = trip.Reason
		}
		sink.Emit(e)
	})
	r.logger = r.logger.With(zap.String("component", "runner"), zap.String("profile_id", profileID), zap.String("run_id", r.runID))
	return r, nil
}

func (r *Runner) RunID() string     { return r.runID }
func (r *Runner) ProfileID() string { return r.profileID }

// Done is closed once the loop has exited and the monitor is finalized.
func (r *Runner) Done() <-chan struct{} { return r.done }

// StopReason describes why the run ended. Valid after Done is closed.
func (r *Runner) StopReason() string { return r.stopReason }

// Monitor returns the hosted monitor. It may only be inspected after Done
// is closed.
func (r *Runner) Monitor() *monitor.Monitor { return r.monitor }

// Start starts the monitor and launches the loop goroutine. The loop ends
// when Stop is called, ctx is done or the monitor stops itself.
func (r *Runner) Start(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, r.runID)
	}
	r.monitor.Start(r.sink)
	r.logger.Info("Runner started.", zap.Duration("cadence", r.cadence))
	go r.loop(ctx)
	return nil
}

// Stop asks the loop to exit and waits until it has. A panic stop is
// reported as an operator-forced watchdog trip. Stop on a runner that was
// never started only marks it stopped.
func (r *Runner) Stop(panicStop bool) {
	if panicStop {
		r.panicStop.Store(true)
	}
	r.cancel.Store(true)
	r.stopOnce.Do(func() { close(r.stopCh) })
	if !r.started.Load() {
		return
	}
	<-r.done
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.done)

	panicked := false
	defer func() {
		if rec := recover(); rec != nil {
			panicked = true
			r.logger.Error("Runner loop panicked.", zap.Any("panic", rec), zap.Stack("stack"))
			r.sink.Emit(schemas.ErrorEvent{Message: fmt.Sprintf("runner panic: %v", rec)})
		}
		r.finalize(panicked)
	}()

	ticker := time.NewTicker(r.cadence)
	defer ticker.Stop()

	for {
		if r.cancel.Load() || ctx.Err() != nil {
			return
		}
		r.monitor.Tick(ctx, r.clock(), r.regions, r.capture, r.automation, r.sink)
		if !r.monitor.IsRunning() {
			return
		}

		select {
		case <-ticker.C:
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// finalize runs exactly once, on the loop goroutine.
func (r *Runner) finalize(panicked bool) {
	selfStopped := !r.monitor.IsRunning()
	panicStop := panicked || r.panicStop.Load()
	r.monitor.FinalizeShutdown(r.sink, panicStop)

	switch {
	case selfStopped:
		r.stopReason = r.lastTrip
		if r.stopReason == "" {
			r.stopReason = monitor.ReasonTerminationRequested
		}
		if r.alarm != nil {
			r.alarm.ProfileEnded(r.stopReason)
		}
	case panicStop:
		r.stopReason = monitor.ReasonPanicStop
	default:
		r.stopReason = "stopped"
	}
	r.logger.Info("Runner finished.", zap.String("reason", r.stopReason), zap.Int("activations", r.monitor.Activations()))
}
