// Package rewrite instruments an uploaded entry document for preview.
//
// Every src and href attribute is resolved against the current handle
// generation, trying the literal value first and the value under the UI
// folder second. Absolute network URLs, data: and blob: URLs and existing
// handle URLs are left alone. The bridge shim is appended as the last
// element of body, so inline scripts earlier in the document run before
// console interception is active.
//
// Rewriting never returns an error. A document that cannot be processed is
// returned unchanged and counted in Diagnostics.
package rewrite
