package ws

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/nuitester/internal/domain/console"
	"github.com/GriffinCanCode/nuitester/internal/domain/workspace"
	"github.com/GriffinCanCode/nuitester/internal/shared/utils"
)

// subscriptionBuffer is how many entries a slow host page may lag behind
// before it starts missing live entries.
const subscriptionBuffer = 256

// Command is a message from the host page.
type Command struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Payload string `json:"payload,omitempty"`
	Name    string `json:"name,omitempty"`
	Data    string `json:"data,omitempty"`
	Enabled bool   `json:"enabled,omitempty"`
}

// HandleStream serves the host side: the console log is pushed as it
// grows and commands come back on the same socket.
func (h *Handler) HandleStream(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.String("endpoint", endpointStream), zap.Error(err))
		return
	}
	conn := newConn(ws)
	defer conn.shutdown(websocket.CloseNormalClosure, "")
	defer h.track(endpointStream)()

	reqCtx := c.Request.Context()
	logger := h.logger.With(zap.String("workspace", w.ID().String()), zap.String("conn", conn.id))

	// subscribe before reading the backlog so nothing falls in between
	entries, unsubscribe := w.SubscribeLogs(subscriptionBuffer)
	defer unsubscribe()
	backlog := w.Logs()
	var lastSeq uint64
	if len(backlog) > 0 {
		lastSeq = backlog[len(backlog)-1].Seq
	}

	h.send(conn, map[string]interface{}{
		"type":      "welcome",
		"conn_id":   conn.id,
		"workspace": w.Summary(),
		"timestamp": time.Now().Unix(),
	})
	h.send(conn, map[string]interface{}{
		"type":    "backlog",
		"entries": backlog,
	})

	stop := conn.keepAlive(w.Done())
	defer stop()
	go h.forward(conn, entries, lastSeq)

	for {
		var cmd Command
		if err := ws.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("Stream read error", zap.Error(err))
			}
			return
		}
		h.recordMessage("in", endpointStream)
		h.handleCommand(reqCtx, conn, w, cmd)
	}
}

// forward pushes live entries until the subscription ends, which happens
// when the workspace closes or the handler unsubscribes.
func (h *Handler) forward(conn *conn, entries <-chan console.Entry, after uint64) {
	for e := range entries {
		if e.Seq <= after {
			continue
		}
		if err := h.send(conn, map[string]interface{}{"type": "log", "entry": e}); err != nil {
			return
		}
	}
}

func (h *Handler) handleCommand(ctx context.Context, conn *conn, w *workspace.Workspace, cmd Command) {
	if cmd.Type == "ping" {
		h.send(conn, map[string]interface{}{"type": "pong", "id": cmd.ID})
		return
	}

	var result map[string]interface{}
	err := h.trace(ctx, "ws."+cmd.Type, func(ctx context.Context) error {
		var err error
		result, err = h.run(ctx, w, cmd)
		return err
	})
	if err != nil {
		h.sendError(conn, cmd, err.Error())
		return
	}
	ack := map[string]interface{}{
		"type":      "ack",
		"command":   cmd.Type,
		"id":        cmd.ID,
		"timestamp": time.Now().Unix(),
	}
	for k, v := range result {
		ack[k] = v
	}
	h.send(conn, ack)
}

func (h *Handler) run(ctx context.Context, w *workspace.Workspace, cmd Command) (map[string]interface{}, error) {
	switch cmd.Type {
	case "send":
		if err := utils.ValidatePayload(cmd.Payload); err != nil {
			return nil, err
		}
		n, err := w.SendMessage(cmd.Payload)
		return map[string]interface{}{"delivered": n}, err
	case "invoke":
		if err := utils.ValidatePayload(cmd.Data); err != nil {
			return nil, err
		}
		n, err := w.Invoke(cmd.Name, cmd.Data)
		return map[string]interface{}{"delivered": n}, err
	case "edit_mode":
		n, err := w.ToggleEdit(cmd.Enabled)
		return map[string]interface{}{"delivered": n, "enabled": cmd.Enabled}, err
	case "export_edits":
		n, err := w.RequestExport()
		return map[string]interface{}{"delivered": n}, err
	case "rebuild":
		p, err := w.Rebuild()
		return map[string]interface{}{"preview": p}, err
	case "save":
		sum, p, err := w.SaveAndUpdate(ctx)
		return map[string]interface{}{"version": sum, "preview": p}, err
	case "clear_logs":
		w.ClearLogs()
		return nil, nil
	}
	return nil, errUnknownCommand
}

func (h *Handler) trace(ctx context.Context, name string, fn func(context.Context) error) error {
	if h.tracer == nil {
		return fn(ctx)
	}
	return h.tracer.Trace(ctx, name, fn)
}

func (h *Handler) send(conn *conn, data interface{}) error {
	if err := conn.writeJSON(data); err != nil {
		return err
	}
	if m, ok := data.(map[string]interface{}); ok {
		if t, ok := m["type"].(string); ok {
			h.recordMessage("out", t)
		}
	}
	return nil
}

func (h *Handler) sendError(conn *conn, cmd Command, msg string) error {
	return h.send(conn, map[string]interface{}{
		"type":      "error",
		"command":   cmd.Type,
		"id":        cmd.ID,
		"message":   msg,
		"timestamp": time.Now().Unix(),
	})
}
