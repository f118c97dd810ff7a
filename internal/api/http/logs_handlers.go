package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/nuitester/internal/domain/console"
)

// GetLogs returns the workspace console log. ?since=<seq> returns only
// newer entries; ?format=text or ?format=html render it the way the
// console panel shows it.
func (h *Handlers) GetLogs(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}

	var entries []console.Entry
	if s := c.Query("since"); s != "" {
		seq, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be a sequence number"})
			return
		}
		entries = w.LogsSince(seq)
	} else {
		entries = w.Logs()
	}

	switch c.Query("format") {
	case "text":
		c.String(http.StatusOK, console.RenderText(entries))
	case "html":
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(console.RenderHTML(entries)))
	case "", "json":
		var last uint64
		if len(entries) > 0 {
			last = entries[len(entries)-1].Seq
		}
		c.JSON(http.StatusOK, gin.H{
			"entries":  entries,
			"count":    len(entries),
			"last_seq": last,
		})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid log format"})
	}
}

// ClearLogs empties the workspace console log
func (h *Handlers) ClearLogs(c *gin.Context) {
	w, ok := h.workspace(c)
	if !ok {
		return
	}
	w.ClearLogs()
	h.logger.Debug("Console cleared", zap.String("workspace", w.ID().String()))
	c.Status(http.StatusNoContent)
}
