// File: cmd/main_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/visionfill/internal/observability"
)

const testProfileJSON = `{
  "personal_info": {
    "first_name": "Ada",
    "last_name": "Lovelace",
    "email": "ada@example.com",
    "address": {"city": "London", "state": "Greater London"}
  },
  "professional_links": {"github": "https://github.com/ada"},
  "skills": {"languages": ["Go", "Python"]},
  "cover_letter": "I would love to join."
}`

// resetForTest clears package state shared between command runs.
func resetForTest(t *testing.T) {
	t.Helper()
	cfgFile = ""
	envFile = ""
	observability.ResetForTest()

	orig := newRunComponents
	t.Cleanup(func() {
		newRunComponents = orig
		observability.ResetForTest()
	})
}

// writeFile writes content under dir and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// writeTestConfig writes a quiet, fast config pointing at a valid profile
// and returns its path.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	profilePath := writeFile(t, dir, "profile.json", testProfileJSON)
	shots := filepath.Join(dir, "screenshots")

	yaml := strings.Join([]string{
		"logger:",
		"  level: fatal",
		`  log_file: ""`,
		"browser:",
		"  post_load_wait: 0s",
		"agent:",
		"  action_delay: 0s",
		"  wait_interval: 1ms",
		"screenshot:",
		"  dir: " + shots,
		"files:",
		"  profile: " + profilePath,
		"",
	}, "\n")
	return writeFile(t, dir, "config.yaml", yaml)
}

// executeRoot runs a fresh command tree and returns its combined output.
func executeRoot(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}
