package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/nuitester/internal/shared/utils"
)

type sendRequest struct {
	Payload string `json:"payload"`
}

type invokeRequest struct {
	Name string `json:"name"`
	Data string `json:"data"`
}

type editModeRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// Send forwards a JSON payload to the sandbox as SendNUIMessage would.
// Invalid JSON is logged to the workspace console and answered with 400.
func (h *Handlers) Send(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	if err := utils.ValidatePayload(req.Payload); err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		return
	}

	done := h.metrics.TrackResult("send")
	n, err := w.SendMessage(req.Payload)
	done(err)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"delivered": n})
}

// Invoke triggers a NUI callback registered in the sandbox
func (h *Handlers) Invoke(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	var req invokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	if err := utils.ValidatePayload(req.Data); err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		return
	}
	// the workspace validates the name so that rejections reach the console
	done := h.metrics.TrackResult("invoke")
	n, err := w.Invoke(req.Name, req.Data)
	done(err)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"delivered": n})
}

// EditMode switches the sandbox's edit mode
func (h *Handlers) EditMode(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	var req editModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "enabled is required"})
		return
	}
	n, err := w.ToggleEdit(*req.Enabled)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"enabled":   *req.Enabled,
		"delivered": n,
	})
}

// ExportEdits asks the sandbox for its edited document. The result comes
// back asynchronously over the bridge and is written into the entry.
func (h *Handlers) ExportEdits(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	n, err := w.RequestExport()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"delivered": n})
}
