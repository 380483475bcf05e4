package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stufflebeam/orbeon-forms/pkg/config"
	"github.com/stufflebeam/orbeon-forms/pkg/testsupport"
)

const greetingForm = `<xh:html xmlns:xh="http://www.w3.org/1999/xhtml" xmlns:xf="http://www.w3.org/2002/xforms">
  <xh:body><xf:output id="greeting" ref="greeting"/></xh:body>
</xh:html>`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func setup(t *testing.T) (configPath, dataPath string) {
	t.Helper()
	for _, key := range []string{config.EnvLogLevel, config.EnvLogFormat, config.EnvWebAppRoot} {
		t.Setenv(key, "")
	}
	root := testsupport.WriteWebApp(t, map[string]string{"forms/greeting.xhtml": greetingForm})

	dir := t.TempDir()
	configPath = filepath.Join(dir, "formproc.yaml")
	cfg := "resources:\n  kind: webapp\n  options:\n    webapp.root: " + root + "\n"
	require.NoError(t, os.WriteFile(configPath, []byte(cfg), 0o600))

	dataPath = filepath.Join(dir, "greeting.json")
	require.NoError(t, os.WriteFile(dataPath, []byte(`{"greeting":"hello"}`), 0o600))
	return configPath, dataPath
}

func TestRenderToStdout(t *testing.T) {
	configPath, dataPath := setup(t)
	out, err := run(t, "--config", configPath, "--log-level", "error", "render", "forms/greeting.xhtml", "--data", dataPath)
	require.NoError(t, err)
	require.Contains(t, out, "hello")
	require.True(t, strings.HasPrefix(out, "<!DOCTYPE html>"))
}

func TestRenderToFile(t *testing.T) {
	configPath, dataPath := setup(t)
	target := filepath.Join(t.TempDir(), "greeting.html")

	out, err := run(t, "--config", configPath, "render", "forms/greeting.xhtml", "--data", dataPath, "--output", target)
	require.NoError(t, err)
	require.Empty(t, out)

	written, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Contains(t, string(written), "hello")
}

func TestRenderMissingFormLeavesNoFile(t *testing.T) {
	configPath, _ := setup(t)
	target := filepath.Join(t.TempDir(), "missing.html")

	_, err := run(t, "--config", configPath, "render", "forms/missing.xhtml", "--output", target)
	require.Error(t, err)
	_, statErr := os.Stat(target)
	require.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestResourceCat(t *testing.T) {
	configPath, _ := setup(t)
	out, err := run(t, "--config", configPath, "resource", "cat", "forms/greeting.xhtml")
	require.NoError(t, err)
	require.Equal(t, greetingForm, out)

	_, err = run(t, "--config", configPath, "resource")
	require.ErrorContains(t, err, "requires a subcommand")
}

func TestEventsListing(t *testing.T) {
	out, err := run(t, "events")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 10)
	require.True(t, strings.HasPrefix(lines[0], "NAME"))
	require.True(t, strings.HasPrefix(lines[1], "DOMActivate"))
	require.Regexp(t, `^xxforms-load\s+document\s+false\s+false\s+true$`, lines[9])
}

func TestBadConfig(t *testing.T) {
	_, err := run(t, "--config", filepath.Join(t.TempDir(), "nope.toml"), "resource", "cat", "x")
	require.Error(t, err)
}
