package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/nuitester/internal/domain/workspace"
	"github.com/GriffinCanCode/nuitester/internal/shared/utils"
)

const (
	// multipartOverhead is allowed on top of the upload limit for part
	// headers and boundaries.
	multipartOverhead = 1 << 20
	// maxImportBytes caps archive bodies when no upload limit is set.
	maxImportBytes = 256 << 20
)

// Upload replaces the workspace content with a multipart upload. Folder
// uploads carry a "paths" field per file with its relative path.
func (h *Handlers) Upload(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	done := h.metrics.TrackResult("upload")

	if h.limits.MaxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.limits.MaxBytes+multipartOverhead)
	}
	form, err := c.MultipartForm()
	if err != nil {
		err = bodyError(err)
		done(err)
		h.fail(c, err)
		return
	}
	defer form.RemoveAll() //nolint:errcheck

	records, err := workspace.ReadUploads(c.Request.Context(), form, h.limits)
	if err == nil {
		_, err = w.Upload(c.Request.Context(), records)
	}
	done(err)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"uploaded":  len(records),
		"workspace": h.summary(w),
	})
}

// Import replaces the workspace content with an archive body.
func (h *Handlers) Import(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	done := h.metrics.TrackResult("import")

	limit := h.limits.MaxBytes
	if limit <= 0 {
		limit = maxImportBytes
	}
	data, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, limit))
	if err == nil && len(data) == 0 {
		err = fmt.Errorf("%w: empty archive", workspace.ErrInvalidInput)
	}
	if err != nil {
		err = bodyError(err)
		done(err)
		h.fail(c, err)
		return
	}

	_, err = w.Import(c.Request.Context(), data)
	done(err)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"workspace": h.summary(w)})
}

// ListFiles lists file metadata ordered by path
func (h *Handlers) ListFiles(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	files := w.Files()
	entry, _ := w.Entry()
	c.JSON(http.StatusOK, gin.H{
		"files": files,
		"count": len(files),
		"entry": entry,
	})
}

// GetFile returns the raw content of one file for the code surface.
func (h *Handlers) GetFile(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	f, err := w.File(filePath(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	data := f.Bytes()
	if notModified(c, data) {
		return
	}
	c.Header("X-Content-Type-Options", "nosniff")
	if isHTML(f.MimeType) {
		// the raw source is never a live document
		c.Header("Content-Security-Policy", "sandbox")
	}
	c.Data(http.StatusOK, f.MimeType, data)
}

// PutFile writes one file from the code surface. The preview is only
// rebuilt by an explicit rebuild or save.
func (h *Handlers) PutFile(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	content, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, utils.MaxFileSize))
	if err != nil {
		h.fail(c, bodyError(err))
		return
	}
	f, err := w.PutFile(c.Request.Context(), filePath(c), content)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

// DeleteFile removes one file
func (h *Handlers) DeleteFile(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	if err := w.DeleteFile(c.Request.Context(), filePath(c)); err != nil {
		h.fail(c, err)
		return
	}
	entry, _ := w.Entry()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"entry":   entry,
	})
}

type entryRequest struct {
	Path string `json:"path" binding:"required"`
}

// SetEntry selects the entry document explicitly
func (h *Handlers) SetEntry(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	var req entryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	if err := w.SetEntry(c.Request.Context(), req.Path); err != nil {
		h.fail(c, err)
		return
	}
	entry, _ := w.Entry()
	c.JSON(http.StatusOK, gin.H{"entry": entry})
}

func filePath(c *gin.Context) string {
	return strings.TrimPrefix(c.Param("path"), "/")
}

// bodyError classifies a failure reading a request body.
func bodyError(err error) error {
	var tooBig *http.MaxBytesError
	switch {
	case errors.As(err, &tooBig):
		return fmt.Errorf("%w: %v", workspace.ErrUploadTooLarge, err)
	case errors.Is(err, workspace.ErrInvalidInput):
		return err
	}
	return fmt.Errorf("%w: %v", workspace.ErrInvalidInput, err)
}

// notModified answers a conditional GET. It sets the ETag either way.
func notModified(c *gin.Context, data []byte) bool {
	etag := utils.ETag(data)
	c.Header("ETag", etag)
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}

func isHTML(mimeType string) bool {
	return strings.HasPrefix(mimeType, "text/html")
}
