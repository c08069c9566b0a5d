package cmd

import (
	"testing"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/loopguard/internal/soak"
)

func TestSoakCmd(t *testing.T) {
	env := newTestEnv(t)
	out, err := env.executeCommand(t, "soak", "--ticks", "500", "--max-runtime", "1s")
	require.NoError(t, err)

	var report soak.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, uint64(500), report.TickBudget)
	assert.Equal(t, "max_runtime", report.StoppedBy)
	assert.Contains(t, report.GuardrailTrips, "max_runtime")
	assert.Zero(t, report.ActionFailures)
	assert.LessOrEqual(t, report.TicksExecuted, report.TickBudget)
}

func TestSoakCmd_RejectsArgs(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.executeCommand(t, "soak", "extra")
	assert.Error(t, err)
}
