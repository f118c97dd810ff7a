// Package id provides centralized ID generation for the tester backend.
//
// Every identifier is a ULID with a type prefix:
//   - ws_*:   workspaces (one per uploaded bundle session)
//   - res_*:  ephemeral resource handles, embedded in preview URLs
//   - req_*:  HTTP requests and trace spans
//
// ULIDs sort by creation time, so listings ordered by ID are also ordered
// by age.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ============================================================================
// Type-Safe ID Wrappers
// ============================================================================

// WorkspaceID identifies a preview workspace
type WorkspaceID string

// HandleID identifies an ephemeral resource handle
type HandleID string

// RequestID identifies an API request
type RequestID string

// ============================================================================
// ID Prefixes
// ============================================================================

const (
	WorkspacePrefix = "ws"
	HandlePrefix    = "res"
	RequestPrefix   = "req"
)

// ============================================================================
// ULID Generator
// ============================================================================

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
// Tests use it for deterministic IDs.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// ============================================================================
// Typed ID Generators
// ============================================================================

// NewWorkspaceID generates a new workspace ID
func NewWorkspaceID() WorkspaceID {
	return WorkspaceID(Default().GenerateWithPrefix(WorkspacePrefix))
}

// NewHandleID generates a new resource handle ID
func NewHandleID() HandleID {
	return HandleID(Default().GenerateWithPrefix(HandlePrefix))
}

// NewRequestID generates a new request ID
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

// ============================================================================
// Conversion and Validation
// ============================================================================

func (id WorkspaceID) String() string { return string(id) }
func (id HandleID) String() string    { return string(id) }
func (id RequestID) String() string   { return string(id) }

// isULID checks if an ID string is a valid bare ULID
func isULID(id string) bool {
	_, err := ulid.Parse(id)
	return err == nil
}

// HasPrefix reports whether s is "<prefix>_<ulid>".
func HasPrefix(s, prefix string) bool {
	rest, ok := strings.CutPrefix(s, prefix+"_")
	return ok && isULID(rest)
}

// ParseWorkspaceID validates a client supplied workspace ID.
func ParseWorkspaceID(s string) (WorkspaceID, error) {
	if !HasPrefix(s, WorkspacePrefix) {
		return "", fmt.Errorf("invalid workspace id %q", s)
	}
	return WorkspaceID(s), nil
}

// ParseHandleID validates a handle ID taken from a resource URL.
func ParseHandleID(s string) (HandleID, error) {
	if !HasPrefix(s, HandlePrefix) {
		return "", fmt.Errorf("invalid handle id %q", s)
	}
	return HandleID(s), nil
}
