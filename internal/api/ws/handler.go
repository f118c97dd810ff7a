package ws

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/nuitester/internal/domain/protocol"
	"github.com/GriffinCanCode/nuitester/internal/domain/workspace"
	"github.com/GriffinCanCode/nuitester/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/nuitester/internal/infrastructure/tracing"
)

const (
	endpointBridge = "bridge"
	endpointStream = "stream"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// the sandboxed preview has an opaque origin
		return true
	},
}

// Handler manages WebSocket connections
type Handler struct {
	manager *workspace.Manager
	metrics *monitoring.Metrics
	tracer  *tracing.Tracer
	logger  *zap.Logger
}

// NewHandler creates a new WebSocket handler. metrics and tracer may be nil.
func NewHandler(manager *workspace.Manager, metrics *monitoring.Metrics, tracer *tracing.Tracer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		manager: manager,
		metrics: metrics,
		tracer:  tracer,
		logger:  logger,
	}
}

// Register mounts both endpoints.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/workspaces/:id/bridge", h.HandleBridge)
	r.GET("/workspaces/:id/stream", h.HandleStream)
}

// HandleBridge serves the sandbox side. Every text frame is an envelope
// routed through the workspace; outbound envelopes are written back as
// they are delivered.
func (h *Handler) HandleBridge(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.String("endpoint", endpointBridge), zap.Error(err))
		return
	}
	conn := newConn(ws)
	defer conn.shutdown(websocket.CloseNormalClosure, "")
	defer h.track(endpointBridge)()

	logger := h.logger.With(zap.String("workspace", w.ID().String()), zap.String("conn", conn.id))
	detach := w.AttachBridge(bridgeConn{conn: conn, onSend: func(kind protocol.Kind) {
		h.recordMessage("out", string(kind))
	}})
	defer detach()
	stop := conn.keepAlive(w.Done())
	defer stop()

	logger.Debug("Bridge connected")
	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("Bridge read error", zap.Error(err))
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		h.recordMessage("in", endpointBridge)
		// drops are counted by the workspace
		if err := w.HandleInbound(data); err != nil && !errors.Is(err, workspace.ErrDropped) {
			logger.Debug("Inbound message rejected", zap.Error(err))
		}
	}
}

func (h *Handler) workspace(c *gin.Context) (*workspace.Workspace, bool) {
	w, err := h.manager.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return nil, false
	}
	return w, true
}

func (h *Handler) track(endpoint string) func() {
	if h.metrics == nil {
		return func() {}
	}
	h.metrics.IncWSConnections(endpoint)
	return func() { h.metrics.DecWSConnections(endpoint) }
}

func (h *Handler) recordMessage(direction, msgType string) {
	if h.metrics != nil {
		h.metrics.RecordWSMessage(direction, msgType)
	}
}
