package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/nuitester/internal/domain/workspace"
	"github.com/GriffinCanCode/nuitester/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/nuitester/internal/shared/utils"
)

// Version is reported by the root and health endpoints.
const Version = "0.1.0"

// Handlers contains all HTTP handlers
type Handlers struct {
	manager *workspace.Manager
	metrics *HandlerMetrics
	limits  workspace.Limits
	logger  *zap.Logger
	started time.Time

	shimMu  sync.RWMutex
	shimErr error // Protected by shimMu
	shimRan bool  // Protected by shimMu
}

// NewHandlers creates a new handler set
func NewHandlers(manager *workspace.Manager, limits workspace.Limits, metrics *monitoring.Metrics, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		manager: manager,
		metrics: NewHandlerMetrics(metrics),
		limits:  limits,
		logger:  logger,
		started: time.Now(),
	}
}

// SetShimStatus records the outcome of the bridge shim self-test.
func (h *Handlers) SetShimStatus(err error) {
	h.shimMu.Lock()
	h.shimErr = err
	h.shimRan = true
	h.shimMu.Unlock()
}

// Root handles health check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "NUI Tester",
		"version": Version,
	})
}

// Health reports liveness and whether the bridge shim passed its self-test.
// A failed self-test degrades the service but keeps it up.
func (h *Handlers) Health(c *gin.Context) {
	h.shimMu.RLock()
	shim := gin.H{"checked": h.shimRan, "ok": h.shimRan && h.shimErr == nil}
	if h.shimErr != nil {
		shim["error"] = h.shimErr.Error()
	}
	degraded := h.shimErr != nil
	h.shimMu.RUnlock()

	status := "healthy"
	if degraded {
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     status,
		"version":    Version,
		"uptime":     time.Since(h.started).Round(time.Second).String(),
		"workspaces": h.manager.Count(),
		"resources":  h.manager.Host().Live(),
		"shim":       shim,
	})
}

type createRequest struct {
	Name string `json:"name"`
}

// CreateWorkspace opens a new empty workspace
func (h *Handlers) CreateWorkspace(c *gin.Context) {
	defer h.metrics.Track("create")()

	var req createRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
			return
		}
	}
	if err := utils.ValidateName(req.Name, "name"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	w, err := h.manager.Create(c.Request.Context(), req.Name)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.summary(w))
}

// ListWorkspaces lists every open workspace
func (h *Handlers) ListWorkspaces(c *gin.Context) {
	list := h.manager.List()
	c.JSON(http.StatusOK, gin.H{
		"workspaces": list,
		"count":      len(list),
	})
}

// GetWorkspace returns the summary of one workspace
func (h *Handlers) GetWorkspace(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.summary(w))
}

// DeleteWorkspace closes a workspace and releases its resources
func (h *Handlers) DeleteWorkspace(c *gin.Context) {
	defer h.metrics.Track("delete")()

	wid := c.Param("id")
	if err := h.manager.Delete(c.Request.Context(), wid); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"workspace_id": wid,
	})
}

// workspace resolves the :id parameter, replying 404 when it is unknown.
func (h *Handlers) workspace(c *gin.Context) (*workspace.Workspace, bool) {
	w, err := h.manager.Get(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	return w, true
}

// workspaceSummary adds the URLs a host page needs to a summary.
type workspaceSummary struct {
	workspace.Summary
	BridgePath  string `json:"bridge_path"`
	PreviewPath string `json:"preview_path"`
	StreamPath  string `json:"stream_path"`
}

func (h *Handlers) summary(w *workspace.Workspace) workspaceSummary {
	base := "/workspaces/" + w.ID().String()
	return workspaceSummary{
		Summary:     w.Summary(),
		BridgePath:  workspace.BridgePath(w.ID()),
		PreviewPath: base + "/preview",
		StreamPath:  base + "/stream",
	}
}
