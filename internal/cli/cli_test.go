package cli

import (
	"bytes"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/nuitester/internal/client"
	"github.com/GriffinCanCode/nuitester/internal/infrastructure/config"
	"github.com/GriffinCanCode/nuitester/internal/infrastructure/server"
)

func startServer(t *testing.T) string {
	t.Helper()
	cfg := config.Default()
	cfg.Logging.Level = "error"
	cfg.Logging.Development = true
	cfg.RateLimit.Enabled = false
	cfg.Shim.SelfTest = false

	srv, err := server.NewServer(cfg)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return ts.URL
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.Execute()
	return out.String(), err
}

func siteDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	site := filepath.Join(dir, "site")
	require.NoError(t, os.MkdirAll(filepath.Join(site, "ui", "node_modules"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(site, "ui", "index.html"), []byte("<html><body>hi</body></html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(site, "ui", "node_modules", "x.js"), []byte("x"), 0o644))
	t.Chdir(dir)
	return site
}

func TestPushSavesAndReusesWorkspace(t *testing.T) {
	url := startServer(t)
	site := siteDir(t)

	out, err := run(t, "push", site, "--server", url, "--name", "demo", "--save")
	require.NoError(t, err)
	assert.Contains(t, out, "Pushed 1 files")
	assert.Contains(t, out, "Entry:   ui/index.html")

	p, err := LoadProject(ProjectFileNames[0])
	require.NoError(t, err)
	require.NotEmpty(t, p.Workspace)
	assert.Equal(t, "demo", p.Name)

	out, err = run(t, "push", site, "--server", url, "--json")
	require.NoError(t, err)
	var res client.UploadResult
	require.NoError(t, sonic.UnmarshalString(out, &res))
	assert.Equal(t, p.Workspace, res.Workspace.ID.String())

	out, err = run(t, "push", site, "--server", url, "--new", "--json")
	require.NoError(t, err)
	require.NoError(t, sonic.UnmarshalString(out, &res))
	assert.NotEqual(t, p.Workspace, res.Workspace.ID.String())
}

func TestPushDryRun(t *testing.T) {
	site := siteDir(t)

	out, err := run(t, "push", site, "--dry-run", "--server", "http://127.0.0.1:1")
	require.NoError(t, err)
	assert.Contains(t, out, "ui/index.html")
	assert.NotContains(t, out, "node_modules")
	assert.Contains(t, out, "1 files")
}

func TestWorkspaceCommands(t *testing.T) {
	url := startServer(t)
	site := siteDir(t)

	_, err := run(t, "push", site, "--server", url, "--save")
	require.NoError(t, err)

	out, err := run(t, "snapshot", "--server", url)
	require.NoError(t, err)
	assert.Contains(t, out, "Saved version 2")

	out, err = run(t, "snapshot", "--list", "--server", url)
	require.NoError(t, err)
	assert.Contains(t, out, "v1")
	assert.Contains(t, out, "v2")

	out, err = run(t, "export", "-o", "build.tar.gz", "--format", "tar.gz", "--version", "1", "--server", url)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote build.tar.gz")
	info, err := os.Stat("build.tar.gz")
	require.NoError(t, err)
	assert.NotZero(t, info.Size())

	_, err = run(t, "export", "--format", "rar", "--server", url)
	assert.Error(t, err)

	out, err = run(t, "send", ".", `{"type":"open"}`, "--server", url)
	require.NoError(t, err)
	assert.Contains(t, out, "No preview is open")

	out, err = run(t, "invoke", ".", "close", "--server", url)
	require.NoError(t, err)
	assert.Contains(t, out, "message dropped")

	out, err = run(t, "logs", "--server", url)
	require.NoError(t, err)
	assert.Contains(t, out, "Loaded 1 files, entry ui/index.html")

	out, err = run(t, "status", "--server", url)
	require.NoError(t, err)
	assert.Contains(t, out, "healthy")
}

func TestCommandArgumentErrors(t *testing.T) {
	url := startServer(t)
	t.Chdir(t.TempDir())

	tests := []struct {
		name string
		args []string
	}{
		{"no default workspace", []string{"logs"}},
		{"payload not json", []string{"send", "ws_x", "not json"}},
		{"invoke data not json", []string{"invoke", "ws_x", "close", "{bad"}},
		{"unknown workspace", []string{"snapshot", "ws_missing"}},
		{"too many args", []string{"push", "a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, append(tt.args, "--server", url)...)
			assert.Error(t, err)
		})
	}
}

func TestServerURLPrecedence(t *testing.T) {
	t.Setenv(serverEnv, "http://from-env:1")

	a := &app{project: &Project{}}
	assert.Equal(t, "http://from-env:1", a.serverURL())

	a.project.Server = "http://from-project:1"
	assert.Equal(t, "http://from-project:1", a.serverURL())

	a.server = "http://from-flag:1"
	assert.Equal(t, "http://from-flag:1", a.serverURL())
}
