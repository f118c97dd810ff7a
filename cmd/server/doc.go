// Package main is the entry point of the NUI tester server.
//
// The server hosts workspaces: upload a FiveM-style NUI bundle, preview it
// with its assets resolved and the emulated NUI API injected, then drive it
// from the host page or nuictl.
//
// Configuration:
//   - Environment variables (PORT, LOG_LEVEL, STORAGE_ENABLED, ...)
//   - CLI flags (override env vars)
//
// Usage:
//
//	./server -port 8000
//	./server -dev -persist -db ./nuitester.db
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
