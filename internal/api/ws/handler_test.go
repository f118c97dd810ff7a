package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/nuitester/internal/domain/protocol"
	"github.com/GriffinCanCode/nuitester/internal/domain/vfs"
	"github.com/GriffinCanCode/nuitester/internal/domain/workspace"
	"github.com/GriffinCanCode/nuitester/internal/infrastructure/monitoring"
)

type fixture struct {
	t       *testing.T
	server  *httptest.Server
	manager *workspace.Manager
	metrics *monitoring.Metrics
	ws      *workspace.Workspace
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	metrics := monitoring.NewMetrics()
	manager := workspace.NewManager(workspace.Config{}, nil).WithMetrics(metrics)
	t.Cleanup(manager.Close)

	router := gin.New()
	NewHandler(manager, metrics, nil, nil).Register(router)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	w, err := manager.Create(context.Background(), "ws")
	require.NoError(t, err)
	_, err = w.Upload(context.Background(), []vfs.Record{
		{Path: "index.html", Content: []byte("<html><body><p>hi</p></body></html>")},
	})
	require.NoError(t, err)

	return &fixture{t: t, server: server, manager: manager, metrics: metrics, ws: w}
}

func (f *fixture) dial(endpoint string) *websocket.Conn {
	f.t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/workspaces/" + f.ws.ID().String() + "/" + endpoint
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(f.t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	f.t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

// readUntil skips log pushes and other noise until a message of type want.
func readUntil(t *testing.T, conn *websocket.Conn, want string) map[string]any {
	t.Helper()
	for i := 0; i < 20; i++ {
		msg := readJSON(t, conn)
		if msg["type"] == want {
			return msg
		}
	}
	t.Fatalf("no %q message", want)
	return nil
}

func (f *fixture) messages() []string {
	var out []string
	for _, e := range f.ws.Logs() {
		out = append(out, e.Message)
	}
	return out
}

func TestBridgeDeliversOutbound(t *testing.T) {
	f := newFixture(t)
	bridge := f.dial("bridge")

	require.Eventually(t, func() bool { return f.ws.Summary().Bridges == 1 }, time.Second, 5*time.Millisecond)

	n, err := f.ws.Invoke("save", `{"a":1}`)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, bridge.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := bridge.ReadMessage()
	require.NoError(t, err)
	msg, err := protocol.Decode(raw)
	require.NoError(t, err)
	invoke, ok := msg.(protocol.Invoke)
	require.True(t, ok)
	assert.Equal(t, "save", invoke.Name)
	assert.JSONEq(t, `{"a":1}`, string(invoke.Data))
}

func TestBridgeRoutesInbound(t *testing.T) {
	f := newFixture(t)
	bridge := f.dial("bridge")

	raw, err := protocol.Encode(protocol.Console{Level: "warn", Args: []json.RawMessage{json.RawMessage(`"low fuel"`)}})
	require.NoError(t, err)
	require.NoError(t, bridge.WriteMessage(websocket.TextMessage, raw))
	require.NoError(t, bridge.WriteMessage(websocket.TextMessage, []byte(`{"hello":"world"}`)))

	require.Eventually(t, func() bool {
		for _, m := range f.messages() {
			if m == "low fuel" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return f.ws.Diagnostics().Dropped[workspace.DropUnmarked] == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBridgeDetachesOnDisconnect(t *testing.T) {
	f := newFixture(t)
	bridge := f.dial("bridge")
	require.Eventually(t, func() bool { return f.ws.Summary().Bridges == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, bridge.Close())
	require.Eventually(t, func() bool {
		return f.ws.Summary().Bridges == 0 && f.metrics.Snapshot().ActiveConnections == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDeleteClosesSockets(t *testing.T) {
	f := newFixture(t)
	bridge := f.dial("bridge")
	stream := f.dial("stream")
	readUntil(t, stream, "backlog")

	require.NoError(t, f.manager.Delete(context.Background(), f.ws.ID().String()))

	for _, conn := range []*websocket.Conn{bridge, stream} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var err error
		for err == nil {
			_, _, err = conn.ReadMessage()
		}
		assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), err.Error())
	}
}

func TestUnknownWorkspace(t *testing.T) {
	f := newFixture(t)
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/workspaces/nope/bridge"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStreamWelcomeAndBacklog(t *testing.T) {
	f := newFixture(t)
	_, err := f.ws.SendMessage(`{"early":true}`)
	require.NoError(t, err)

	stream := f.dial("stream")
	welcome := readJSON(t, stream)
	assert.Equal(t, "welcome", welcome["type"])
	assert.NotEmpty(t, welcome["conn_id"])

	backlog := readJSON(t, stream)
	require.Equal(t, "backlog", backlog["type"])
	entries := backlog["entries"].([]any)
	last := entries[len(entries)-1].(map[string]any)
	assert.Equal(t, `SendNUIMessage {"early":true}`, last["message"])
}

func TestStreamCommands(t *testing.T) {
	f := newFixture(t)
	stream := f.dial("stream")
	readUntil(t, stream, "backlog")

	require.NoError(t, stream.WriteJSON(Command{Type: "invoke", ID: "1", Name: "getSettings"}))
	ack := readUntil(t, stream, "ack")
	assert.Equal(t, "invoke", ack["command"])
	assert.Equal(t, "1", ack["id"])
	assert.EqualValues(t, 0, ack["delivered"])

	// the invoke was logged and pushed to the stream
	require.NoError(t, stream.WriteJSON(Command{Type: "send", ID: "2", Payload: "{bad"}))
	failed := readUntil(t, stream, "error")
	assert.Equal(t, "send", failed["command"])
	assert.Contains(t, failed["message"], "invalid JSON")

	require.NoError(t, stream.WriteJSON(Command{Type: "save", ID: "3"}))
	saved := readUntil(t, stream, "ack")
	assert.EqualValues(t, 2, saved["version"].(map[string]any)["id"])

	require.NoError(t, stream.WriteJSON(Command{Type: "teleport"}))
	unknown := readUntil(t, stream, "error")
	assert.Equal(t, "unknown message type", unknown["message"])

	require.NoError(t, stream.WriteJSON(Command{Type: "ping", ID: "4"}))
	pong := readUntil(t, stream, "pong")
	assert.Equal(t, "4", pong["id"])

	assert.Contains(t, f.messages(), "Invoke NUI callback getSettings with {}")
}

func TestStreamPushesLiveEntries(t *testing.T) {
	f := newFixture(t)
	stream := f.dial("stream")
	readUntil(t, stream, "backlog")

	_, err := f.ws.SendMessage(`[1,2]`)
	require.NoError(t, err)

	msg := readUntil(t, stream, "log")
	entry := msg["entry"].(map[string]any)
	assert.Equal(t, "SendNUIMessage [1,2]", entry["message"])
	assert.Equal(t, "out", entry["type"])
}
