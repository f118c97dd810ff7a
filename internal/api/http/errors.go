package http

import (
	"errors"
	"net/http"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/nuitester/internal/domain/version"
	"github.com/GriffinCanCode/nuitester/internal/domain/vfs"
	"github.com/GriffinCanCode/nuitester/internal/domain/workspace"
	"github.com/GriffinCanCode/nuitester/internal/infrastructure/resilience"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var tooBig *http.MaxBytesError
	switch {
	case errors.Is(err, workspace.ErrNotFound),
		errors.Is(err, workspace.ErrFileNotFound),
		errors.Is(err, workspace.ErrNoEntry),
		errors.Is(err, version.ErrSnapshotNotFound):
		return http.StatusNotFound
	case errors.Is(err, workspace.ErrInvalidInput),
		errors.Is(err, workspace.ErrInvalidJSON),
		errors.Is(err, vfs.ErrInvalidPath),
		errors.Is(err, version.ErrUnsupportedFormat),
		errors.Is(err, doublestar.ErrBadPattern):
		return http.StatusBadRequest
	case errors.Is(err, workspace.ErrTooManyFiles),
		errors.Is(err, workspace.ErrUploadTooLarge),
		errors.Is(err, version.ErrArchiveTooLarge),
		errors.As(err, &tooBig):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, workspace.ErrClosed):
		return http.StatusGone
	case errors.Is(err, resilience.ErrCircuitOpen),
		errors.Is(err, resilience.ErrTooManyRequests):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// fail replies with the mapped status and records err on the context for
// tracing. Server errors are logged.
func (h *Handlers) fail(c *gin.Context, err error) {
	status := statusFor(err)
	_ = c.Error(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.String("workspace", c.Param("id")),
			zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
