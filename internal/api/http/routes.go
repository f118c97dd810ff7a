package http

import (
	"github.com/gin-gonic/gin"
)

// Register mounts every REST route. WebSocket endpoints are mounted by the
// ws package on the same group.
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.GET("/res/:handle/*name", h.Resource)

	r.POST("/workspaces", h.CreateWorkspace)
	r.GET("/workspaces", h.ListWorkspaces)

	ws := r.Group("/workspaces/:id")
	{
		ws.GET("", h.GetWorkspace)
		ws.DELETE("", h.DeleteWorkspace)

		ws.POST("/upload", h.Upload)
		ws.POST("/import", h.Import)
		ws.GET("/files", h.ListFiles)
		ws.GET("/files/*path", h.GetFile)
		ws.PUT("/files/*path", h.PutFile)
		ws.DELETE("/files/*path", h.DeleteFile)
		ws.PUT("/entry", h.SetEntry)

		ws.POST("/rebuild", h.Rebuild)
		ws.POST("/save", h.Save)
		ws.GET("/preview", h.Preview)
		ws.GET("/references", h.References)
		ws.GET("/diagnostics", h.Diagnostics)

		ws.GET("/logs", h.GetLogs)
		ws.DELETE("/logs", h.ClearLogs)

		ws.POST("/send", h.Send)
		ws.POST("/invoke", h.Invoke)
		ws.POST("/edit-mode", h.EditMode)
		ws.POST("/export-edits", h.ExportEdits)

		ws.GET("/versions", h.ListVersions)
		ws.POST("/versions", h.CreateVersion)
		ws.POST("/versions/:vid/revert", h.RevertVersion)
		ws.GET("/versions/:vid/archive", h.VersionArchive)
		ws.GET("/archive", h.LiveArchive)
	}
}
