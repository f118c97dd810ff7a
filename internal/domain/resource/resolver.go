package resource

import (
	"fmt"
	"sort"
	"sync"

	"github.com/GriffinCanCode/nuitester/internal/domain/vfs"
)

// Generation is the set of handles produced by one build.
type Generation struct {
	Seq uint64

	mu       sync.Mutex
	host     Host
	handles  map[string]Handle
	attached []Handle
	released bool
}

// Lookup returns the handle allocated for path.
func (g *Generation) Lookup(path string) (Handle, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.released {
		return Handle{}, false
	}
	h, ok := g.handles[path]
	return h, ok
}

// URL is a Lookup shortcut returning only the handle URL.
func (g *Generation) URL(path string) (string, bool) {
	h, ok := g.Lookup(path)
	return h.URL, ok
}

// Paths returns the file paths covered by this generation, sorted.
func (g *Generation) Paths() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	paths := make([]string, 0, len(g.handles))
	for p := range g.handles {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Len returns the number of file handles, excluding attached ones.
func (g *Generation) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.handles)
}

// Reverse maps every handle URL back to its file path.
func (g *Generation) Reverse() map[string]string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]string, len(g.handles))
	for p, h := range g.handles {
		out[h.URL] = p
	}
	return out
}

// Attach allocates an extra handle owned by this generation, used for the
// rendered document itself.
func (g *Generation) Attach(data []byte, mimeType, name string) (Handle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.released {
		return Handle{}, ErrReleased
	}
	h, err := g.host.Allocate(data, mimeType, name)
	if err != nil {
		return Handle{}, err
	}
	g.attached = append(g.attached, h)
	return h, nil
}

// Released reports whether the generation has been invalidated.
func (g *Generation) Released() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.released
}

func (g *Generation) release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.released {
		return
	}
	g.released = true
	for _, h := range g.handles {
		g.host.Release(h)
	}
	for _, h := range g.attached {
		g.host.Release(h)
	}
}

// Resolver builds handle generations for one workspace and keeps at most
// one of them live.
type Resolver struct {
	host Host

	mu      sync.Mutex
	current *Generation
	seq     uint64
}

// NewResolver creates a resolver allocating on host.
func NewResolver(host Host) *Resolver {
	return &Resolver{host: host}
}

// Host returns the backing host.
func (r *Resolver) Host() Host {
	return r.host
}

// Build allocates one handle per file in store, every file included. The
// previous generation is released once the new one is complete. On error
// nothing changes: partial allocations are rolled back and the previous
// generation stays live.
func (r *Resolver) Build(store *vfs.Store) (*Generation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	gen := &Generation{
		Seq:     r.seq,
		host:    r.host,
		handles: make(map[string]Handle, store.Len()),
	}
	for _, f := range store.ListSorted() {
		h, err := r.host.Allocate(f.Bytes(), f.MimeType, f.Name)
		if err != nil {
			gen.release()
			return nil, fmt.Errorf("allocate %s: %w", f.Path, err)
		}
		gen.handles[f.Path] = h
	}

	prev := r.current
	r.current = gen
	if prev != nil {
		prev.release()
	}
	return gen, nil
}

// Current returns the live generation, or nil.
func (r *Resolver) Current() *Generation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Release invalidates every handle of gen. Safe to call repeatedly and on
// generations that were already superseded.
func (r *Resolver) Release(gen *Generation) {
	if gen == nil {
		return
	}
	r.mu.Lock()
	if r.current == gen {
		r.current = nil
	}
	r.mu.Unlock()
	gen.release()
}

// ReleaseAll releases the live generation, if any.
func (r *Resolver) ReleaseAll() {
	r.Release(r.Current())
}
