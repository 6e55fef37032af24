package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const projectConfig = `
ledger_path: state/history.db
variants:
  - name: release
    template: sdk.rbxmx.tmp
    output: release/sdk.rbxmx
    fragment_dir: src
    entries:
      - token: "{{Init_BODY}}"
        source: init.lua
      - token: "{{Logger_BODY}}"
        source: Logger.lua
`

// setupProject writes a config, a template and two fragments into a temp
// dir and returns the config path.
func setupProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"sdk.rbxmx.tmp":  "<Model>{{Init_BODY}}|{{Logger_BODY}}</Model>",
		"src/init.lua":   "local Logger = require(script.Logger)\nreturn {}",
		"src/Logger.lua": "return { info = print }",
		"stitch.yaml":    projectConfig,
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return filepath.Join(dir, "stitch.yaml")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestBuildCommand(t *testing.T) {
	cfgPath := setupProject(t)
	dir := filepath.Dir(cfgPath)

	out, err := run(t, "build", "--config", cfgPath, "--log-level", "error")
	require.NoError(t, err)
	output := filepath.Join(dir, "release", "sdk.rbxmx")
	assert.Contains(t, out, "done: "+output)

	got, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "<Model>local Logger = require(script.Logger)\nreturn {}|return { info = print }</Model>", string(got))
}

func TestBuildCommandMissingFragment(t *testing.T) {
	cfgPath := setupProject(t)
	dir := filepath.Dir(cfgPath)
	require.NoError(t, os.Remove(filepath.Join(dir, "src", "Logger.lua")))

	_, err := run(t, "build", "--config", cfgPath, "--log-level", "error")
	require.Error(t, err)
	assert.Contains(t, err.Error(), filepath.Join(dir, "src", "Logger.lua"))
	assert.Contains(t, err.Error(), "not found")

	_, statErr := os.Stat(filepath.Join(dir, "release", "sdk.rbxmx"))
	assert.True(t, os.IsNotExist(statErr), "no output should be written")
}

func TestBuildCommandWritesNothingWhenAVariantFails(t *testing.T) {
	cfgPath := setupProject(t)
	dir := filepath.Dir(cfgPath)
	cfg := projectConfig + `  - name: studio
    template: sdk.rbxmx.tmp
    output: studio/sdk.rbxmx
    fragment_dir: src
    entries:
      - token: "{{Init_BODY}}"
        source: missing.lua
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0644))

	_, err := run(t, "build", "--config", cfgPath, "--log-level", "error")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `variant "studio"`)

	for _, out := range []string{"release", "studio"} {
		_, statErr := os.Stat(filepath.Join(dir, out, "sdk.rbxmx"))
		assert.True(t, os.IsNotExist(statErr), "%s output should not be written", out)
	}
}

func TestBuildCommandStrict(t *testing.T) {
	cfgPath := setupProject(t)
	dir := filepath.Dir(cfgPath)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sdk.rbxmx.tmp"), []byte("<Model>{{Init_BODY}}</Model>"), 0644))

	_, err := run(t, "build", "--config", cfgPath, "--log-level", "error")
	require.NoError(t, err)

	_, err = run(t, "build", "--config", cfgPath, "--log-level", "error", "--strict")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "{{Logger_BODY}}")
}

func TestUnknownVariant(t *testing.T) {
	cfgPath := setupProject(t)
	_, err := run(t, "build", "--config", cfgPath, "--variant", "studio")
	assert.ErrorContains(t, err, `unknown variant "studio"`)
}

func TestCheckCommand(t *testing.T) {
	cfgPath := setupProject(t)
	dir := filepath.Dir(cfgPath)

	out, err := run(t, "check", "--config", cfgPath, "--log-level", "error")
	require.Error(t, err)
	assert.Contains(t, out, "stale: ")

	_, err = run(t, "build", "--config", cfgPath, "--log-level", "error")
	require.NoError(t, err)

	out, err = run(t, "check", "--config", cfgPath, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "ok: "+filepath.Join(dir, "release", "sdk.rbxmx"))
}

func TestLintCommand(t *testing.T) {
	cfgPath := setupProject(t)
	dir := filepath.Dir(cfgPath)

	out, err := run(t, "lint", "--config", cfgPath, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "ok: 2 Lua fragments")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "Logger.lua"), []byte("return {"), 0644))
	out, err = run(t, "lint", "--config", cfgPath, "--log-level", "error")
	require.Error(t, err)
	assert.Contains(t, out, "Logger.lua")
}

func TestHistoryCommand(t *testing.T) {
	cfgPath := setupProject(t)
	dir := filepath.Dir(cfgPath)

	for i := 0; i < 2; i++ {
		_, err := run(t, "build", "--config", cfgPath, "--log-level", "error", "--record")
		require.NoError(t, err)
	}
	_, err := os.Stat(filepath.Join(dir, "state", "history.db"))
	require.NoError(t, err)

	out, err := run(t, "history", "--config", cfgPath, "--log-level", "error")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 3, "header plus two runs:\n%s", out)
	assert.Contains(t, lines[0], "VARIANT")

	out, err = run(t, "history", "release", "--config", cfgPath, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "{{Init_BODY}}")
	assert.Contains(t, out, "Logger.lua")
}

func TestInitCommand(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "stitch.json")

	out, err := run(t, "init", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+cfgPath)

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "{{GameAnalytics_BODY}}")

	_, err = run(t, "init", "--config", cfgPath)
	assert.ErrorContains(t, err, "already exists")

	_, err = run(t, "init", "--config", cfgPath, "--force")
	assert.NoError(t, err)
}
