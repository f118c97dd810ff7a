package resource

import (
	"errors"
	"net/url"
	"strings"
	"sync"

	"github.com/GriffinCanCode/nuitester/internal/shared/id"
)

var (
	// ErrReleased is returned when allocating on a released generation.
	ErrReleased = errors.New("generation released")
	// ErrClosed is returned when the host no longer accepts allocations.
	ErrClosed = errors.New("resource host closed")
)

// DefaultBasePath is the URL prefix handles are served under.
const DefaultBasePath = "/res"

// Handle is an addressable, write-once reference to resource bytes.
type Handle struct {
	ID       id.HandleID `json:"id"`
	URL      string      `json:"url"`
	Name     string      `json:"name"`
	MimeType string      `json:"mime_type"`
}

// Resource is the content behind a live handle.
type Resource struct {
	Handle
	Data []byte
}

// Host allocates and releases handles. The preview server implements it
// in memory; any other addressable store can stand in.
type Host interface {
	Allocate(data []byte, mimeType, name string) (Handle, error)
	Release(h Handle)
	Open(hid id.HandleID) (Resource, bool)
	Owns(ref string) bool
	Live() int
}

// MemoryHost keeps resource bytes in a map keyed by handle ID.
type MemoryHost struct {
	mu        sync.RWMutex
	base      string
	resources map[id.HandleID]Resource
	closed    bool
}

// NewMemoryHost creates a host serving under basePath ("" means /res).
func NewMemoryHost(basePath string) *MemoryHost {
	if basePath == "" {
		basePath = DefaultBasePath
	}
	return &MemoryHost{
		base:      strings.TrimRight(basePath, "/"),
		resources: make(map[id.HandleID]Resource),
	}
}

// Allocate stores a copy of data and returns its handle.
func (m *MemoryHost) Allocate(data []byte, mimeType, name string) (Handle, error) {
	hid := id.NewHandleID()
	h := Handle{
		ID:       hid,
		URL:      m.base + "/" + string(hid) + "/" + url.PathEscape(name),
		Name:     name,
		MimeType: mimeType,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Handle{}, ErrClosed
	}
	m.resources[hid] = Resource{Handle: h, Data: append([]byte(nil), data...)}
	return h, nil
}

// Release drops the handle. Releasing twice is a no-op.
func (m *MemoryHost) Release(h Handle) {
	m.mu.Lock()
	delete(m.resources, h.ID)
	m.mu.Unlock()
}

// Open returns the resource behind a live handle.
func (m *MemoryHost) Open(hid id.HandleID) (Resource, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.resources[hid]
	return r, ok
}

// Owns reports whether ref has the shape of a handle URL from this host,
// live or not. Such references are never resolved a second time.
func (m *MemoryHost) Owns(ref string) bool {
	rest, ok := strings.CutPrefix(ref, m.base+"/")
	if !ok {
		return false
	}
	seg, _, _ := strings.Cut(rest, "/")
	return id.HasPrefix(seg, id.HandlePrefix)
}

// Live returns the number of allocated handles.
func (m *MemoryHost) Live() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.resources)
}

// Close releases everything and refuses further allocations.
func (m *MemoryHost) Close() {
	m.mu.Lock()
	m.closed = true
	m.resources = make(map[id.HandleID]Resource)
	m.mu.Unlock()
}
