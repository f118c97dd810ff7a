package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/nuitester/internal/shared/id"
)

// SandboxPolicy is sent with every document rendered in the preview. It
// keeps the preview isolated from the host page while letting its own
// scripts, storage and popups work.
const SandboxPolicy = "sandbox allow-scripts allow-same-origin allow-popups"

// Preview serves the instrumented document, or 204 for the empty state.
func (h *Handlers) Preview(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	p := w.Preview()
	if p == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.Header("Content-Security-Policy", SandboxPolicy)
	c.Header("Cache-Control", "no-store")
	c.Header("X-Preview-Generation", strconv.FormatUint(p.Generation, 10))
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(p.HTML))
}

// Resource serves the bytes behind a live handle. Released handles are
// gone for good, so they answer 404.
func (h *Handlers) Resource(c *gin.Context) {
	hid, err := id.ParseHandleID(c.Param("handle"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
		return
	}
	res, ok := h.manager.Host().Open(hid)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
		return
	}
	if notModified(c, res.Data) {
		return
	}
	// handles are write-once
	c.Header("Cache-Control", "private, max-age=31536000, immutable")
	if isHTML(res.MimeType) {
		c.Header("Content-Security-Policy", SandboxPolicy)
	}
	c.Data(http.StatusOK, res.MimeType, res.Data)
}

// Rebuild resolves every file again and re-renders the preview
func (h *Handlers) Rebuild(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	done := h.metrics.TrackResult("rebuild")
	p, err := w.Rebuild()
	done(err)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"preview": p})
}

// Save snapshots the live files and rebuilds, as the editor's save button
func (h *Handlers) Save(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	done := h.metrics.TrackResult("save")
	sum, p, err := w.SaveAndUpdate(c.Request.Context())
	done(err)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"version": sum,
		"preview": p,
	})
}

// References reports how each reference of the entry resolves
func (h *Handlers) References(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	refs, err := w.References()
	if err != nil {
		h.fail(c, err)
		return
	}
	entry, _ := w.Entry()
	c.JSON(http.StatusOK, gin.H{
		"entry":      entry,
		"references": refs,
		"count":      len(refs),
	})
}

// Diagnostics exposes the workspace counters
func (h *Handlers) Diagnostics(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, w.Diagnostics())
}
