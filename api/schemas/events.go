// api/schemas/events.go
package schemas

import (
	"fmt"
	"sync"

	json "github.com/json-iterator/go"
)

// EventType is the discriminator of an Event.
type EventType string

const (
	EventTriggerFired              EventType = "TriggerFired"
	EventConditionEvaluated        EventType = "ConditionEvaluated"
	EventActionStarted             EventType = "ActionStarted"
	EventActionCompleted           EventType = "ActionCompleted"
	EventMonitorStateChanged       EventType = "MonitorStateChanged"
	EventWatchdogTripped           EventType = "WatchdogTripped"
	EventError                     EventType = "Error"
	EventMonitorTick               EventType = "MonitorTick"
	EventTerminationCheckTriggered EventType = "TerminationCheckTriggered"
)

// MonitorState is the lifecycle state of a monitor.
type MonitorState string

const (
	StateStopped MonitorState = "Stopped"
	StateRunning MonitorState = "Running"
	// StateStopping is reserved for a graceful drain; no transition uses it yet.
	StateStopping MonitorState = "Stopping"
)

// Event is an immutable observability record. The set of implementations is
// closed; every variant is a plain value type.
type Event interface {
	Kind() EventType
	isEvent()
}

type TriggerFired struct{}

type ConditionEvaluated struct {
	Result bool `json:"result"`
}

type ActionStarted struct {
	Action string `json:"action"`
}

type ActionCompleted struct {
	Action  string `json:"action"`
	Success bool   `json:"success"`
}

type MonitorStateChanged struct {
	State MonitorState `json:"state"`
}

// WatchdogTripped reports a guardrail firing with a named reason.
type WatchdogTripped struct {
	Reason string `json:"reason"`
}

// ErrorEvent carries an action or collaborator failure message.
type ErrorEvent struct {
	Message string `json:"message"`
}

// MonitorTick is emitted on every evaluated tick for status display.
type MonitorTick struct {
	NextCheckMs         uint64 `json:"next_check_ms"`
	CooldownRemainingMs uint64 `json:"cooldown_remaining_ms"`
	ConditionMet        bool   `json:"condition_met"`
}

// TerminationCheckTriggered is emitted when a termination check matches.
type TerminationCheckTriggered struct {
	CheckType string `json:"check_type"`
	Reason    string `json:"reason"`
}

func (TriggerFired) Kind() EventType              { return EventTriggerFired }
func (ConditionEvaluated) Kind() EventType        { return EventConditionEvaluated }
func (ActionStarted) Kind() EventType             { return EventActionStarted }
func (ActionCompleted) Kind() EventType           { return EventActionCompleted }
func (MonitorStateChanged) Kind() EventType       { return EventMonitorStateChanged }
func (WatchdogTripped) Kind() EventType           { return EventWatchdogTripped }
func (ErrorEvent) Kind() EventType                { return EventError }
func (MonitorTick) Kind() EventType               { return EventMonitorTick }
func (TerminationCheckTriggered) Kind() EventType { return EventTerminationCheckTriggered }

func (TriggerFired) isEvent()              {}
func (ConditionEvaluated) isEvent()        {}
func (ActionStarted) isEvent()             {}
func (ActionCompleted) isEvent()           {}
func (MonitorStateChanged) isEvent()       {}
func (WatchdogTripped) isEvent()           {}
func (ErrorEvent) isEvent()                {}
func (MonitorTick) isEvent()               {}
func (TerminationCheckTriggered) isEvent() {}

// envelope is the wire shape of an event: {"type": ..., "data": {...}}.
type envelope struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MarshalEvent encodes an event together with its type tag.
func MarshalEvent(e Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s event: %w", e.Kind(), err)
	}
	return json.Marshal(envelope{Type: e.Kind(), Data: data})
}

// UnmarshalEvent decodes an event produced by MarshalEvent.
func UnmarshalEvent(b []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("failed to decode event envelope: %w", err)
	}
	return DecodeEvent(env.Type, env.Data)
}

// DecodeEvent decodes the payload of an event of the given type.
func DecodeEvent(t EventType, data []byte) (Event, error) {
	var (
		e   Event
		err error
	)
	switch t {
	case EventTriggerFired:
		return TriggerFired{}, nil
	case EventConditionEvaluated:
		var v ConditionEvaluated
		err = json.Unmarshal(data, &v)
		e = v
	case EventActionStarted:
		var v ActionStarted
		err = json.Unmarshal(data, &v)
		e = v
	case EventActionCompleted:
		var v ActionCompleted
		err = json.Unmarshal(data, &v)
		e = v
	case EventMonitorStateChanged:
		var v MonitorStateChanged
		err = json.Unmarshal(data, &v)
		e = v
	case EventWatchdogTripped:
		var v WatchdogTripped
		err = json.Unmarshal(data, &v)
		e = v
	case EventError:
		var v ErrorEvent
		err = json.Unmarshal(data, &v)
		e = v
	case EventMonitorTick:
		var v MonitorTick
		err = json.Unmarshal(data, &v)
		e = v
	case EventTerminationCheckTriggered:
		var v TerminationCheckTriggered
		err = json.Unmarshal(data, &v)
		e = v
	default:
		return nil, fmt.Errorf("unknown event type %q", t)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s event: %w", t, err)
	}
	return e, nil
}

// EventSink receives events in emission order.
type EventSink interface {
	Emit(e Event)
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(e Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// EventLog is an append-only in-memory sink. It is safe for concurrent use.
type EventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *EventLog) Emit(e Event) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

// Events returns a copy of everything emitted so far.
func (l *EventLog) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Drain returns the buffered events and empties the log.
func (l *EventLog) Drain() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.events
	l.events = nil
	return out
}

func (l *EventLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}
