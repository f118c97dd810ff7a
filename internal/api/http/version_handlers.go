package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/nuitester/internal/domain/version"
	"github.com/GriffinCanCode/nuitester/internal/domain/workspace"
)

// ListVersions lists the snapshots of a workspace
func (h *Handlers) ListVersions(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	versions := w.Versions()
	c.JSON(http.StatusOK, gin.H{
		"versions": versions,
		"count":    len(versions),
	})
}

// CreateVersion snapshots the live files
func (h *Handlers) CreateVersion(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	done := h.metrics.TrackResult("snapshot")
	sum, err := w.Snapshot(c.Request.Context())
	done(err)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, sum)
}

// RevertVersion copies a snapshot back into the live files. The preview
// is rebuilt unless ?rebuild=false.
func (h *Handlers) RevertVersion(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	vid, err := versionParam(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	rebuild := true
	if v := c.Query("rebuild"); v != "" {
		if rebuild, err = strconv.ParseBool(v); err != nil {
			h.fail(c, fmt.Errorf("%w: rebuild must be a boolean", workspace.ErrInvalidInput))
			return
		}
	}

	done := h.metrics.TrackResult("revert")
	err = w.Revert(c.Request.Context(), vid, rebuild)
	done(err)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"version": vid,
		"rebuilt": rebuild,
		"preview": w.Preview(),
	})
}

// VersionArchive downloads a snapshot as an archive
func (h *Handlers) VersionArchive(c *gin.Context) {
	vid, err := versionParam(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.archive(c, vid)
}

// LiveArchive downloads the live files as an archive
func (h *Handlers) LiveArchive(c *gin.Context) {
	h.archive(c, 0)
}

func (h *Handlers) archive(c *gin.Context, vid int) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	format, err := version.ParseFormat(c.Query("format"))
	if err != nil {
		h.fail(c, err)
		return
	}

	done := h.metrics.TrackResult("export")
	var buf bytes.Buffer
	err = w.Export(&buf, vid, format)
	done(err)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.FileName()))
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}

func versionParam(c *gin.Context) (int, error) {
	vid, err := strconv.Atoi(c.Param("vid"))
	if err != nil || vid < 1 {
		return 0, fmt.Errorf("%w: version must be a positive integer", workspace.ErrInvalidInput)
	}
	return vid, nil
}
