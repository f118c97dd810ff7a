package vfs

import (
	"errors"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ErrInvalidPath is returned for paths that cannot be stored.
var ErrInvalidPath = errors.New("invalid path")

// VirtualFile is one uploaded file held in memory.
type VirtualFile struct {
	Path      string `json:"path"`
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes"`
	MimeType  string `json:"mime_type"`
	Binary    bool   `json:"binary"`
	Content   string `json:"-"`
}

// Bytes returns the raw content.
func (f VirtualFile) Bytes() []byte {
	return []byte(f.Content)
}

// extension -> mime type for the asset kinds a NUI bundle ships
var mimeByExt = map[string]string{
	"html": "text/html",
	"css":  "text/css",
	"js":   "application/javascript",
	"json": "application/json",
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"svg":  "image/svg+xml",
	"webp": "image/webp",
	"lua":  "text/plain",
}

// DefaultMimeType is used for unrecognized extensions.
const DefaultMimeType = "application/octet-stream"

// MimeFromPath derives the mime type from the file extension.
func MimeFromPath(p string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
	if m, ok := mimeByExt[ext]; ok {
		return m
	}
	return DefaultMimeType
}

// NormalizePath converts backslashes, strips leading "./" and "/" and
// rejects empty paths or paths escaping the root.
func NormalizePath(p string) (string, error) {
	p = strings.ReplaceAll(p, "\\", "/")
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	p = strings.TrimLeft(p, "/")
	if p == "" {
		return "", ErrInvalidPath
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", ErrInvalidPath
		}
	}
	return p, nil
}

// isBinary sniffs content. Anything not descending from text/plain counts
// as binary so editors can refuse it.
func isBinary(content []byte) bool {
	if len(content) == 0 {
		return false
	}
	for m := mimetype.Detect(content); m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return false
		}
	}
	return true
}

// Record is a file as supplied by an upload or an archive, before it is
// stored.
type Record struct {
	Path    string
	Name    string
	Content []byte
}
