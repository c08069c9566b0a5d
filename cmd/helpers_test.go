// File: cmd/helpers_test.go
package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// testEnv is an isolated config, profile document and journal location.
type testEnv struct {
	dir          string
	configPath   string
	profilesPath string
	journalPath  string
}

// newTestEnv writes a config file that uses the fake backend, the mock LLM, no
// alarms and a journal inside a temp dir.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("LOOPGUARD_BACKEND", "")
	t.Setenv("LOOPGUARD_FAKE_LLM", "")

	dir := t.TempDir()
	env := &testEnv{
		dir:          dir,
		configPath:   filepath.Join(dir, "loopguard.yaml"),
		profilesPath: filepath.Join(dir, "profiles.yaml"),
		journalPath:  filepath.Join(dir, "journal", "events.jsonl"),
	}
	content := fmt.Sprintf(`
logger:
  level: error
runner:
  tick_interval: 5ms
  action_delay: 0s
backend:
  kind: fake
llm:
  provider: mock
alarm:
  enabled: false
journal:
  enabled: true
  path: %s
profiles:
  path: %s
`, env.journalPath, env.profilesPath)
	require.NoError(t, os.WriteFile(env.configPath, []byte(content), 0o644))
	return env
}

func (e *testEnv) writeProfiles(t *testing.T, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(e.profilesPath, []byte(content), 0o644))
}

// executeCommand runs a fresh command tree with the env's config file.
func (e *testEnv) executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeCommand(t, append([]string{"--config", e.configPath}, args...)...)
}

// executeCommand runs a fresh command tree and returns its combined output.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}
