package http

import (
	"github.com/GriffinCanCode/nuitester/internal/infrastructure/monitoring"
)

// HandlerMetrics times workspace operations per handler
type HandlerMetrics struct {
	metrics *monitoring.Metrics
}

// NewHandlerMetrics creates a metrics wrapper. A nil metrics disables it.
func NewHandlerMetrics(metrics *monitoring.Metrics) *HandlerMetrics {
	return &HandlerMetrics{metrics: metrics}
}

// Track times an operation that has no failure mode of its own
func (hm *HandlerMetrics) Track(operation string) func() {
	done := hm.TrackResult(operation)
	return func() { done(nil) }
}

// TrackResult times an operation and labels it by outcome
func (hm *HandlerMetrics) TrackResult(operation string) func(err error) {
	return monitoring.NewTimer(hm.metrics, "workspace", operation).StopErr
}
