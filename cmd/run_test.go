package cmd

import (
	"bufio"
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/loopguard/api/schemas"
	"github.com/xkilldash9x/loopguard/internal/config"
	"github.com/xkilldash9x/loopguard/internal/journal"
	"github.com/xkilldash9x/loopguard/internal/monitor"
	"github.com/xkilldash9x/loopguard/internal/profile"
)

// shortRunYAML stops itself on max_runtime after roughly 80ms.
const shortRunYAML = `
version: 1
profiles:
  - id: ci
    name: CI
    regions:
      - id: term
        rect: {x: 0, y: 0, width: 8, height: 8}
    trigger: {type: IntervalTrigger, check_interval_sec: 0.01}
    condition: {type: RegionCondition, consecutive_checks: 1}
    actions:
      - {type: Type, text: continue}
      - {type: Key, key: Enter}
    guardrails:
      cooldown_ms: 0
      max_runtime_ms: 80
`

func readJournal(t *testing.T, path string) []schemas.Event {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var events []schemas.Event
	var lastSeq uint64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		rec, ev, err := journal.DecodeRecord(scanner.Bytes())
		require.NoError(t, err)
		assert.Equal(t, "ci", rec.ProfileID)
		assert.Greater(t, rec.Seq, lastSeq)
		lastSeq = rec.Seq
		events = append(events, ev)
	}
	require.NoError(t, scanner.Err())
	return events
}

func TestRunCmd(t *testing.T) {
	env := newTestEnv(t)
	env.writeProfiles(t, shortRunYAML)

	out, err := env.executeCommand(t, "run", "ci")
	require.NoError(t, err)
	fields := strings.Split(strings.TrimSpace(out), "\t")
	require.Len(t, fields, 4)
	assert.Equal(t, "ci", fields[0])
	assert.True(t, strings.HasPrefix(fields[1], "run="))
	assert.Equal(t, "stopped_by="+monitor.ReasonMaxRuntime, fields[3])

	events := readJournal(t, env.journalPath)
	require.GreaterOrEqual(t, len(events), 3)
	assert.Equal(t, schemas.MonitorStateChanged{State: schemas.StateRunning}, events[0])
	assert.Equal(t, []schemas.Event{
		schemas.WatchdogTripped{Reason: monitor.ReasonMaxRuntime},
		schemas.MonitorStateChanged{State: schemas.StateStopped},
	}, events[len(events)-2:])
	assert.Contains(t, events, schemas.ActionCompleted{Action: "Type", Success: true})
}

func TestRunCmd_PrintEvents(t *testing.T) {
	env := newTestEnv(t)
	env.writeProfiles(t, shortRunYAML)

	out, err := env.executeCommand(t, "run", "ci", "--print-events")
	require.NoError(t, err)
	assert.Contains(t, out, `"type":"MonitorStateChanged"`)
	assert.Contains(t, out, `"reason":"max_runtime"`)
	assert.Contains(t, out, "stopped_by=max_runtime")
}

func TestRunCmd_Errors(t *testing.T) {
	env := newTestEnv(t)
	env.writeProfiles(t, shortRunYAML)

	_, err := env.executeCommand(t, "run")
	assert.Error(t, err, "a profile id is required")

	_, err = env.executeCommand(t, "run", "nope")
	assert.ErrorIs(t, err, profile.ErrProfileNotFound)
}

func TestRunProfiles_CancelStopsGracefully(t *testing.T) {
	defer goleak.VerifyNone(t, leakOptions...)

	cfg := config.NewDefaultConfig()
	cfg.Runner.TickInterval = 5 * time.Millisecond
	cfg.Runner.ActionDelay = 0
	cfg.Alarm.Enabled = false
	cfg.Journal.Enabled = false

	p := profile.DefaultProfile()
	p.ID = "idle"
	p.Regions = []schemas.Region{{ID: "term", Rect: schemas.Rect{Width: 4, Height: 4}}}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	results, err := runProfiles(ctx, cfg, []profile.Profile{p}, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "idle", results[0].ProfileID)
	assert.Equal(t, "stopped", results[0].StopReason)
	assert.Equal(t, 1, results[0].Activations, "only the first check runs inside the 5s interval")
}

func TestRunProfiles_BuildError(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Alarm.Enabled = false
	cfg.Journal.Enabled = false

	p := profile.DefaultProfile()
	p.Trigger.Type = "CronTrigger"

	_, err := runProfiles(context.Background(), cfg, []profile.Profile{p}, nil, zaptest.NewLogger(t))
	assert.ErrorIs(t, err, profile.ErrUnknownTriggerType)
}
