package client

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/nuitester/internal/domain/workspace"
	"github.com/GriffinCanCode/nuitester/internal/infrastructure/config"
	"github.com/GriffinCanCode/nuitester/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/nuitester/internal/infrastructure/server"
)

func startServer(t *testing.T) *Client {
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

	opts := DefaultOptions()
	opts.BaseURL = ts.URL
	opts.MinWait = time.Millisecond
	opts.MaxWait = 5 * time.Millisecond
	return New(opts)
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for p, content := range files {
		full := filepath.Join(root, filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return root
}

func TestPushExportRoundTrip(t *testing.T) {
	c := startServer(t)
	ctx := context.Background()

	root := writeTree(t, map[string]string{
		"ui/index.html":            `<html><body><img src="a.png"></body></html>`,
		"ui/a.png":                 "png",
		"ui/node_modules/lib/x.js": "x",
		".git/HEAD":                "ref",
		"ui/.DS_Store":             "junk",
	})
	files, err := Collect(ctx, root, workspace.DefaultIgnore)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "ui/a.png", files[0].Path)
	assert.Equal(t, "ui/index.html", files[1].Path)

	ws, err := c.CreateWorkspace(ctx, "demo")
	require.NoError(t, err)
	wid := ws.ID.String()

	res, err := c.Upload(ctx, wid, files)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Uploaded)
	assert.Equal(t, "ui/index.html", res.Workspace.Entry)
	require.NotNil(t, res.Workspace.Preview)

	before, err := c.Versions(ctx, wid)
	require.NoError(t, err)
	v, err := c.Snapshot(ctx, wid)
	require.NoError(t, err)
	assert.Equal(t, len(before)+1, v.ID)
	assert.Equal(t, 2, v.FileCount)

	var buf bytes.Buffer
	name, err := c.Export(ctx, wid, v.ID, "tar.gz", &buf)
	require.NoError(t, err)
	assert.Equal(t, "nui_build.tar.gz", name)
	assert.NotZero(t, buf.Len())

	buf.Reset()
	name, err = c.Export(ctx, wid, 0, "", &buf)
	require.NoError(t, err)
	assert.Equal(t, "nui_build.zip", name)

	_, err = c.Export(ctx, wid, 0, "rar", &buf)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
}

func TestMessagesAndLogs(t *testing.T) {
	c := startServer(t)
	ctx := context.Background()

	ws, err := c.CreateWorkspace(ctx, "")
	require.NoError(t, err)
	wid := ws.ID.String()

	n, err := c.Send(ctx, wid, `{"type":"open"}`)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = c.Invoke(ctx, wid, "close", `{}`)
	require.NoError(t, err)
	assert.Zero(t, n)

	page, err := c.Logs(ctx, wid, 0)
	require.NoError(t, err)
	require.NotEmpty(t, page.Entries)
	assert.Equal(t, page.Entries[len(page.Entries)-1].Seq, page.LastSeq)

	later, err := c.Logs(ctx, wid, page.LastSeq)
	require.NoError(t, err)
	assert.Empty(t, later.Entries)

	text, err := c.LogsText(ctx, wid)
	require.NoError(t, err)
	assert.NotEmpty(t, text)

	n, err = c.Invoke(ctx, wid, "ui/close", "{}")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = c.Invoke(ctx, wid, "", "{}")
	assert.Error(t, err)
}

func TestWorkspaceNotFound(t *testing.T) {
	c := startServer(t)

	_, err := c.GetWorkspace(context.Background(), "ws_missing")
	assert.True(t, IsNotFound(err))
	assert.False(t, IsNotFound(errors.New("other")))
}

func TestRetriesOverloadedResponses(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","version":"0.1.0"}`)) //nolint:errcheck
	}))
	defer ts.Close()

	opts := DefaultOptions()
	opts.BaseURL = ts.URL
	opts.MinWait = time.Millisecond
	opts.MaxWait = 5 * time.Millisecond
	h, err := New(opts).Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", h.Status)
	assert.EqualValues(t, 3, calls.Load())
}

func TestBreakerOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"boom"}`)) //nolint:errcheck
	}))
	defer ts.Close()

	opts := DefaultOptions()
	opts.BaseURL = ts.URL
	opts.Retries = 0
	c := New(opts)

	for range 5 {
		_, err := c.Health(context.Background())
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "boom", apiErr.Message)
	}
	_, err := c.Health(context.Background())
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.EqualValues(t, 5, calls.Load())
}

func TestCollectPrunesIgnoredDirectories(t *testing.T) {
	root := writeTree(t, map[string]string{
		"index.html":          "<html></html>",
		"dist/app.js.map":     "{}",
		"dist/app.js":         "x",
		"node_modules/a/b.js": "b",
	})

	files, err := Collect(context.Background(), root, []string{"**/node_modules/**", "**/*.map"})
	require.NoError(t, err)

	var paths []string
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	assert.Equal(t, []string{"dist/app.js", "index.html"}, paths)
	assert.EqualValues(t, len("x")+len("<html></html>"), TotalSize(files))

	_, err = Collect(context.Background(), root, []string{"[oops"})
	assert.Error(t, err)
	_, err = Collect(context.Background(), filepath.Join(root, "index.html"), nil)
	assert.Error(t, err)
}
