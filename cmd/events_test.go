package cmd

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/loopguard/api/schemas"
	"github.com/xkilldash9x/loopguard/internal/journal"
)

func TestEventsTail(t *testing.T) {
	env := newTestEnv(t)
	env.writeProfiles(t, shortRunYAML)
	_, err := env.executeCommand(t, "run", "ci")
	require.NoError(t, err)

	out, err := env.executeCommand(t, "events", "tail", "--type", "WatchdogTripped,MonitorStateChanged")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasSuffix(lines[0], "MonitorStateChanged Running"), lines[0])
	assert.True(t, strings.HasSuffix(lines[1], "WatchdogTripped reason=max_runtime"), lines[1])
	assert.True(t, strings.HasSuffix(lines[2], "MonitorStateChanged Stopped"), lines[2])

	out, err = env.executeCommand(t, "events", "tail", "--profile", "someone-else")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestEventsTail_MissingJournal(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.executeCommand(t, "events", "tail")
	assert.ErrorContains(t, err, "failed to tail journal")
}

func TestFormatRecord(t *testing.T) {
	rec := journal.Record{
		ProfileID: "ci",
		Seq:       7,
		At:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Type:      string(schemas.EventActionCompleted),
	}
	assert.Equal(t, "2026-03-01T12:00:00.000Z ci #7 ActionCompleted Type success=false",
		formatRecord(rec, schemas.ActionCompleted{Action: "Type"}))

	rec.Type = string(schemas.EventTriggerFired)
	assert.Equal(t, "2026-03-01T12:00:00.000Z ci #7 TriggerFired", formatRecord(rec, schemas.TriggerFired{}))
}

func TestTailFilter(t *testing.T) {
	f := tailFilter{runID: "r1", types: map[string]struct{}{"Error": {}}}
	assert.True(t, f.match(journal.Record{RunID: "r1", Type: "Error"}))
	assert.False(t, f.match(journal.Record{RunID: "r2", Type: "Error"}))
	assert.False(t, f.match(journal.Record{RunID: "r1", Type: "MonitorTick"}))
}
