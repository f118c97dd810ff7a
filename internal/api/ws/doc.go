// Package ws provides the two WebSocket endpoints of a workspace.
//
// The bridge endpoint (/workspaces/:id/bridge) is dialed by the shim inside
// the preview. Frames are protocol envelopes in both directions: console,
// callback and editedHtml come in; send, invoke, toggleEdit and exportHtml
// go out. Each connection is attached to the workspace as a Bridge for as
// long as it is open.
//
// The stream endpoint (/workspaces/:id/stream) is dialed by the host page.
//
// Message Types (Server → Client):
//   - welcome: connection id and workspace summary
//   - backlog: the log as it stood on connect
//   - log: one new console entry
//   - ack: a command finished, with its result
//   - pong: reply to ping
//   - error: a command failed
//
// Message Types (Client → Server):
//   - send, invoke, edit_mode, export_edits
//   - rebuild, save, clear_logs
//   - ping
//
// Both endpoints close with 1001 when the workspace is deleted.
//
// Example Usage:
//
//	handler := ws.NewHandler(manager, metrics, tracer, logger)
//	handler.Register(router)
package ws
