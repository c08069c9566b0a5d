package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/loopguard/internal/profile"
)

const twoProfilesYAML = `
version: 1
profiles:
  - id: good
    name: Good one
    regions:
      - id: term
        rect: {x: 0, y: 0, width: 8, height: 8}
    trigger: {type: IntervalTrigger, check_interval_sec: 1}
    condition: {type: RegionCondition, consecutive_checks: 2}
    actions:
      - {type: Type, text: continue}
      - {type: Key, key: Enter}
  - id: bad
    name: Needs OCR
    regions:
      - id: term
        rect: {x: 0, y: 0, width: 8, height: 8}
    trigger: {type: IntervalTrigger, check_interval_sec: 1}
    condition: {type: RegionCondition, consecutive_checks: 1}
    actions: []
    guardrails:
      cooldown_ms: 0
      ocr_mode: local
      failure_keywords: [error]
      ocr_region_ids: [term]
`

func TestProfilesList(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.executeCommand(t, "profiles", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No profiles in")

	env.writeProfiles(t, twoProfilesYAML)
	out, err = env.executeCommand(t, "profiles", "list")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"ID", "NAME", "REGIONS", "ACTIONS", "INTERVAL"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"good", "Good", "one", "1", "2", "1s"}, strings.Fields(lines[1]))
}

func TestProfilesValidate(t *testing.T) {
	env := newTestEnv(t)
	env.writeProfiles(t, twoProfilesYAML)

	out, err := env.executeCommand(t, "profiles", "validate")
	require.Error(t, err)
	assert.EqualError(t, err, "1 of 2 profiles are invalid")
	assert.Contains(t, out, "good\tok")
	assert.Contains(t, out, "bad\tinvalid\t")
	assert.Contains(t, out, profile.ErrOCRUnavailable.Error())

	out, err = env.executeCommand(t, "profiles", "validate", "good")
	require.NoError(t, err)
	assert.Equal(t, "good\tok\n", out)

	_, err = env.executeCommand(t, "profiles", "validate", "missing")
	assert.ErrorIs(t, err, profile.ErrProfileNotFound)
}

func TestProfilesInit(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.executeCommand(t, "profiles", "init", "--id", "ci", "--name", "CI")
	require.NoError(t, err)
	assert.Equal(t, "ci\n", out)

	doc, err := profile.Load(env.profilesPath)
	require.NoError(t, err)
	p, err := doc.Find("ci")
	require.NoError(t, err)
	assert.Equal(t, "CI", p.Name)
	assert.Equal(t, 5.0, p.Trigger.CheckIntervalSec)

	_, err = env.executeCommand(t, "profiles", "init", "--id", "ci")
	assert.ErrorContains(t, err, "already exists")

	_, err = env.executeCommand(t, "profiles", "init", "--id", "ci", "--force")
	require.NoError(t, err)

	out, err = env.executeCommand(t, "profiles", "init")
	require.NoError(t, err)
	generated := strings.TrimSpace(out)
	assert.Len(t, generated, 36)

	doc, err = profile.Load(env.profilesPath)
	require.NoError(t, err)
	assert.Len(t, doc.Profiles, 2)
}
