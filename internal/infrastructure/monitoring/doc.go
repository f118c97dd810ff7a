/*
Package monitoring provides metrics collection for the preview server.

# Overview

Metrics are Prometheus collectors registered on a registry owned by the
Metrics value, so tests and embedded servers can create as many collectors
as they like without clashing on the global registry.

# Features

- HTTP request metrics (latency, throughput, size) keyed by route template
- Preview builds, live resource handles and snapshots
- Document rewrite reference counts and parse failures
- Bridge protocol messages by direction and kind, drops by reason
- WebSocket connections per endpoint
- Go runtime and process collectors, uptime

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics, "sqlite", "save_snapshot")
	err := save()
	timer.StopErr(err)
*/
package monitoring
