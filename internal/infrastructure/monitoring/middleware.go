package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware records request count, latency and sizes per route template.
// WebSocket upgrades are skipped: their duration is the socket lifetime,
// which the connection gauge already covers.
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.IsWebsocket() {
			c.Next()
			return
		}
		start := time.Now()
		reqSize := max(c.Request.ContentLength, 0)

		c.Next()

		// templates keep workspace and handle ids out of the labels
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordHTTPRequest(
			c.Request.Method,
			route,
			strconv.Itoa(c.Writer.Status()),
			time.Since(start),
			reqSize,
			int64(max(c.Writer.Size(), 0)),
		)
	}
}

// Timer times one call to a dependency or a workspace operation.
type Timer struct {
	start   time.Time
	metrics *Metrics
	service string
	method  string
}

// NewTimer starts a timer. A nil metrics makes Stop a no-op.
func NewTimer(metrics *Metrics, service, method string) *Timer {
	return &Timer{start: time.Now(), metrics: metrics, service: service, method: method}
}

// Stop records the elapsed time under status.
func (t *Timer) Stop(status string) {
	if t.metrics == nil {
		return
	}
	t.metrics.RecordServiceCall(t.service, t.method, status, time.Since(t.start))
}

// StopErr records "success" or "error" depending on err.
func (t *Timer) StopErr(err error) {
	if err != nil {
		t.Stop("error")
		return
	}
	t.Stop("success")
}
