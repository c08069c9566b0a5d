package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/loopguard/api/schemas"
	"github.com/xkilldash9x/loopguard/internal/backend"
	"github.com/xkilldash9x/loopguard/internal/config"
	"github.com/xkilldash9x/loopguard/internal/monitor"
)

func newIdleRunner(t *testing.T, profileID string, log *schemas.EventLog) *Runner {
	t.Helper()
	fake := backend.NewFake(config.FakeConfig{}, nil)
	r, err := New(profileID, newMonitor(t, monitor.Guardrails{}, nil), []schemas.Region{region}, fake, fake, log, WithCadence(2*time.Millisecond))
	require.NoError(t, err)
	return r
}

func TestManagerOneRunnerPerProfile(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := NewManager(zaptest.NewLogger(t))
	ctx := context.Background()

	var firstLog, secondLog schemas.EventLog
	first := newIdleRunner(t, "ci", &firstLog)
	second := newIdleRunner(t, "ci", &secondLog)

	require.NoError(t, m.Start(ctx, first))
	require.NoError(t, m.Start(ctx, second))

	select {
	case <-first.Done():
	default:
		t.Fatal("the previous runner must be drained before the new one starts")
	}
	assert.Equal(t, schemas.MonitorStateChanged{State: schemas.StateStopped}, firstLog.Events()[firstLog.Len()-1])

	got, ok := m.Get("ci")
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Equal(t, []string{"ci"}, m.Running())

	require.NoError(t, m.Stop("ci", false))
	assert.Empty(t, m.Running())
	assert.ErrorIs(t, m.Stop("ci", false), ErrNotRunning)
}

func TestManagerStopAll(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := NewManager(nil)
	ctx := context.Background()
	logs := map[string]*schemas.EventLog{"a": {}, "b": {}, "c": {}}
	for id, log := range logs {
		require.NoError(t, m.Start(ctx, newIdleRunner(t, id, log)))
	}
	assert.Equal(t, []string{"a", "b", "c"}, m.Running())

	m.StopAll(true)
	assert.Empty(t, m.Running())
	for id, log := range logs {
		events := log.Events()
		assert.Equal(t, schemas.WatchdogTripped{Reason: monitor.ReasonPanicStop}, events[len(events)-2], id)
	}
}

func TestManagerRunningSkipsFinishedRunners(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := NewManager(nil)
	var log schemas.EventLog
	r := newIdleRunner(t, "ci", &log)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, m.Start(ctx, r))

	cancel()
	waitDone(t, r)
	assert.Empty(t, m.Running())

	_, ok := m.Get("ci")
	assert.True(t, ok, "a finished runner stays inspectable until replaced or stopped")
	m.StopAll(false)
}
