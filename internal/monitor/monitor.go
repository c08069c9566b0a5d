// internal/monitor/monitor.go
package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/xkilldash9x/loopguard/api/schemas"
	"github.com/xkilldash9x/loopguard/internal/action"
	"go.uber.org/zap"
)

// Monitor is the supervisory state machine of one profile run. It composes a
// Trigger, a Condition, an action Sequence and Guardrails, and advances one
// step per Tick.
//
// A Monitor is not safe for concurrent use. The host owns it from a single
// goroutine and publishes copies of emitted events to anyone else.
type Monitor struct {
	trigger    Trigger
	condition  Condition
	actions    *action.Sequence
	guardrails Guardrails
	matcher    *terminationMatcher
	ocr        schemas.TextExtractor
	clock      func() time.Time
	logger     *zap.Logger

	state              schemas.MonitorState
	startedAt          time.Time
	activations        int
	lastActivationAt   time.Time
	activationLog      []time.Time
	actx               *action.Context
	lastActionProgress time.Time
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock replaces time.Now as the source of the start timestamp.
func WithClock(clock func() time.Time) Option {
	return func(m *Monitor) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithOCR sets the text extractor used by the OCR termination scan.
func WithOCR(ocr schemas.TextExtractor) Option {
	return func(m *Monitor) {
		m.ocr = ocr
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Monitor) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// New assembles a stopped monitor.
func New(trigger Trigger, condition Condition, actions *action.Sequence, guardrails Guardrails, opts ...Option) (*Monitor, error) {
	if trigger == nil {
		return nil, errors.New("trigger cannot be nil")
	}
	if condition == nil {
		return nil, errors.New("condition cannot be nil")
	}
	if actions == nil {
		return nil, errors.New("action sequence cannot be nil")
	}
	m := &Monitor{
		trigger:    trigger,
		condition:  condition,
		actions:    actions,
		guardrails: guardrails,
		matcher:    newTerminationMatcher(guardrails),
		clock:      time.Now,
		logger:     zap.NewNop(),
		state:      schemas.StateStopped,
		actx:       action.NewContext(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.Named("monitor")

	if guardrails.OCRScanEnabled() && m.ocr == nil {
		return nil, &action.Error{Kind: action.ErrOCRUnavailable, Msg: "OCR termination guardrails require an OCR backend"}
	}
	return m, nil
}

// Start resets all run state and enters Running.
func (m *Monitor) Start(sink schemas.EventSink) {
	m.startedAt = m.clock()
	m.activations = 0
	m.lastActivationAt = time.Time{}
	m.activationLog = m.activationLog[:0]
	m.actx = action.NewContext()
	m.lastActionProgress = time.Time{}
	m.state = schemas.StateRunning

	m.logger.Info("Monitor started.", zap.Strings("actions", m.actions.Names()))
	sink.Emit(schemas.MonitorStateChanged{State: schemas.StateRunning})
}

// Stop enters Stopped. Activations and the action context are kept for
// inspection.
func (m *Monitor) Stop(sink schemas.EventSink) {
	m.startedAt = time.Time{}
	m.lastActivationAt = time.Time{}
	m.state = schemas.StateStopped

	m.logger.Info("Monitor stopped.", zap.Int("activations", m.activations))
	sink.Emit(schemas.MonitorStateChanged{State: schemas.StateStopped})
}

// FinalizeShutdown stops a running monitor on behalf of the host. A panic
// stop is reported as a "panic_stop" watchdog trip first. It does nothing
// when the monitor is already stopped.
func (m *Monitor) FinalizeShutdown(sink schemas.EventSink, panicStop bool) {
	if !m.IsRunning() {
		return
	}
	if panicStop {
		m.logger.Warn("Operator forced stop.")
		sink.Emit(schemas.WatchdogTripped{Reason: ReasonPanicStop})
	}
	m.Stop(sink)
}

// Tick advances the state machine by one scheduling step. It is a no-op
// while stopped. The first matching exit below wins.
func (m *Monitor) Tick(ctx context.Context, now time.Time, regions []schemas.Region, capture schemas.ScreenCapture, automation schemas.Automation, sink schemas.EventSink) {
	if !m.IsRunning() {
		return
	}

	nextCheckMs := m.trigger.TimeUntilNextMs(now)
	cooldownRemainingMs := m.cooldownRemainingMs(now)
	tick := func(met bool) {
		sink.Emit(schemas.MonitorTick{
			NextCheckMs:         nextCheckMs,
			CooldownRemainingMs: cooldownRemainingMs,
			ConditionMet:        met,
		})
	}

	if m.guardrails.MaxRuntime > 0 && now.Sub(m.startedAt) > m.guardrails.MaxRuntime {
		m.trip(sink, ReasonMaxRuntime, true)
		return
	}

	if m.guardrails.HeartbeatTimeout > 0 && !m.lastActionProgress.IsZero() &&
		now.Sub(m.lastActionProgress) > m.guardrails.HeartbeatTimeout {
		m.trip(sink, ReasonHeartbeatStalled, true)
		return
	}

	if !m.trigger.ShouldFire(now) {
		tick(false)
		return
	}
	sink.Emit(schemas.TriggerFired{})

	if !m.lastActivationAt.IsZero() && now.Sub(m.lastActivationAt) < m.guardrails.Cooldown {
		tick(false)
		return
	}

	met := m.condition.Evaluate(now, regions, capture)
	sink.Emit(schemas.ConditionEvaluated{Result: met})
	tick(met)
	if !met {
		return
	}

	if m.guardrails.OCRScanEnabled() {
		if reason, ok := m.scanForTermination(ctx, regions, capture); ok {
			m.trip(sink, reason, true)
			return
		}
	}

	if limit := m.guardrails.MaxActivationsPerHour; limit > 0 {
		m.evictActivations(now)
		if len(m.activationLog) >= limit {
			// Transient: the monitor keeps running until the window clears.
			m.trip(sink, ReasonMaxActivationsPerHour, false)
			return
		}
	}

	m.lastActionProgress = now
	if m.actions.Run(ctx, automation, m.actx, sink) {
		m.activations++
		m.lastActivationAt = now
		if m.guardrails.MaxActivationsPerHour > 0 {
			m.activationLog = append(m.activationLog, now)
		}
		m.logger.Debug("Activation complete.", zap.Int("activations", m.activations))
	}

	if m.actx.TerminationRequested() {
		reason, ok := m.actx.TerminationReason()
		if !ok {
			reason = ReasonTerminationRequested
		}
		m.trip(sink, reason, true)
	}
}

func (m *Monitor) trip(sink schemas.EventSink, reason string, fatal bool) {
	m.logger.Warn("Watchdog tripped.", zap.String("reason", reason), zap.Bool("fatal", fatal))
	sink.Emit(schemas.WatchdogTripped{Reason: reason})
	if fatal {
		m.Stop(sink)
	}
}

func (m *Monitor) cooldownRemainingMs(now time.Time) uint64 {
	if m.lastActivationAt.IsZero() {
		return 0
	}
	elapsed := now.Sub(m.lastActivationAt)
	if elapsed >= m.guardrails.Cooldown {
		return 0
	}
	return uint64((m.guardrails.Cooldown - elapsed).Milliseconds())
}

// evictActivations drops log entries older than the rolling window.
func (m *Monitor) evictActivations(now time.Time) {
	i := 0
	for i < len(m.activationLog) && now.Sub(m.activationLog[i]) > rateWindow {
		i++
	}
	if i > 0 {
		m.activationLog = append(m.activationLog[:0], m.activationLog[i:]...)
	}
}

// scanForTermination reads each configured region and matches the text
// against the termination policy. Unknown regions and OCR failures are
// logged and skipped.
func (m *Monitor) scanForTermination(ctx context.Context, regions []schemas.Region, capture schemas.ScreenCapture) (string, bool) {
	for _, id := range m.guardrails.OCRRegionIDs {
		r, ok := schemas.FindRegion(regions, id)
		if !ok {
			m.logger.Warn("OCR termination region not found.", zap.String("region_id", id))
			continue
		}
		text, err := m.ocr.ExtractTextCached(ctx, r, capture.HashRegion(r, 1))
		if err != nil {
			m.logger.Warn("OCR extraction failed.", zap.String("region_id", id), zap.Error(err))
			continue
		}
		m.logger.Debug("OCR text extracted.", zap.String("region", r.Label()), zap.String("text", truncate(text, 100)))

		if reason, ok := m.matcher.match(text); ok {
			return reason, true
		}
	}
	return "", false
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// State returns the lifecycle state.
func (m *Monitor) State() schemas.MonitorState { return m.state }

// IsRunning reports whether the monitor is in the Running state.
func (m *Monitor) IsRunning() bool { return m.state == schemas.StateRunning }

// Activations counts successful action-sequence runs since the last Start.
func (m *Monitor) Activations() int { return m.activations }

// Context returns the action context of the current or last run.
func (m *Monitor) Context() *action.Context { return m.actx }

// StartedAt returns the start time of the current run.
func (m *Monitor) StartedAt() (time.Time, bool) {
	return m.startedAt, !m.startedAt.IsZero()
}

// Guardrails returns the configured policy.
func (m *Monitor) Guardrails() Guardrails { return m.guardrails }
