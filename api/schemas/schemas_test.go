package schemas

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventRoundTrip(t *testing.T) {
	events := []Event{
		TriggerFired{},
		ConditionEvaluated{Result: true},
		ActionStarted{Action: "Type"},
		ActionCompleted{Action: "Type", Success: false},
		MonitorStateChanged{State: StateRunning},
		WatchdogTripped{Reason: "max_runtime"},
		ErrorEvent{Message: "action 'Click': boom"},
		MonitorTick{NextCheckMs: 4900, CooldownRemainingMs: 10, ConditionMet: true},
		TerminationCheckTriggered{CheckType: "context", Reason: "done"},
	}

	var decoded []Event
	for _, e := range events {
		b, err := MarshalEvent(e)
		require.NoError(t, err)
		got, err := UnmarshalEvent(b)
		require.NoError(t, err, string(b))
		decoded = append(decoded, got)
	}
	if diff := cmp.Diff(events, decoded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestMarshalEventShape(t *testing.T) {
	b, err := MarshalEvent(MonitorTick{NextCheckMs: 100})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"MonitorTick","data":{"next_check_ms":100,"cooldown_remaining_ms":0,"condition_met":false}}`, string(b))
}

func TestUnmarshalEventUnknownType(t *testing.T) {
	_, err := UnmarshalEvent([]byte(`{"type":"Bogus","data":{}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown event type "Bogus"`)
}

func TestEventLog(t *testing.T) {
	var log EventLog
	log.Emit(TriggerFired{})
	log.Emit(ConditionEvaluated{Result: true})

	assert.Equal(t, 2, log.Len())
	snapshot := log.Events()
	snapshot[0] = nil
	assert.Equal(t, TriggerFired{}, log.Events()[0], "Events returns a copy")

	drained := log.Drain()
	assert.Len(t, drained, 2)
	assert.Zero(t, log.Len())
}

func TestParseHelpers(t *testing.T) {
	b, err := ParseMouseButton("")
	require.NoError(t, err)
	assert.Equal(t, MouseLeft, b)
	b, err = ParseMouseButton("Right")
	require.NoError(t, err)
	assert.Equal(t, MouseRight, b)
	_, err = ParseMouseButton("thumb")
	assert.Error(t, err)

	m, err := ParseOCRMode("Vision")
	require.NoError(t, err)
	assert.Equal(t, OCRVision, m)
	m, err = ParseOCRMode("")
	require.NoError(t, err)
	assert.Equal(t, OCRLocal, m)
	_, err = ParseOCRMode("none")
	assert.Error(t, err)
}

func TestFindRegion(t *testing.T) {
	regions := []Region{{ID: "a", Name: "Terminal"}, {ID: "b"}}
	r, ok := FindRegion(regions, "b")
	require.True(t, ok)
	assert.Equal(t, "b", r.Label())
	_, ok = FindRegion(regions, "zz")
	assert.False(t, ok)
	assert.Equal(t, "Terminal", regions[0].Label())
}

type clickOnly struct{ clicks, keys int }

func (c *clickOnly) MoveCursor(context.Context, int, int) error { return nil }
func (c *clickOnly) Click(context.Context, MouseButton) error   { c.clicks++; return nil }
func (c *clickOnly) TypeText(context.Context, string) error     { return nil }
func (c *clickOnly) Key(context.Context, string) error          { c.keys++; return nil }

func TestPressReleaseFallbacks(t *testing.T) {
	ctx := context.Background()
	a := &clickOnly{}

	require.NoError(t, MouseDown(ctx, a, MouseLeft))
	require.NoError(t, MouseUp(ctx, a, MouseLeft))
	require.NoError(t, KeyDown(ctx, a, "Shift"))
	require.NoError(t, KeyUp(ctx, a, "Shift"))

	assert.Equal(t, 1, a.clicks, "MouseDown falls back to a click and MouseUp is a no-op")
	assert.Equal(t, 1, a.keys, "KeyDown falls back to a key press and KeyUp is a no-op")
}
