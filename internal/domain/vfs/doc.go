// Package vfs holds an uploaded UI bundle in memory.
//
// Paths are the identity of a file: they are normalized to forward slashes
// on every write and read, so "ui\\index.html" and "ui/index.html" name the
// same file. Mime types come from the extension only; content sniffing is
// used solely to flag binary files for editors.
//
// Example Usage:
//
//	store := vfs.NewStore()
//	store.Put("ui/index.html", html, "")
//	entry, ok := store.DetectEntry()
package vfs
