package vfs

import (
	"path"
	"regexp"
	"sort"
	"sync"
)

var (
	uiEntryPattern  = regexp.MustCompile(`(?i)(^|/)ui/index\.html$`)
	anyEntryPattern = regexp.MustCompile(`(?i)(^|/)index\.html$`)
)

// Store is a path-keyed set of virtual files. It hands out copies only.
type Store struct {
	mu    sync.RWMutex
	files map[string]VirtualFile
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{files: make(map[string]VirtualFile)}
}

// Put upserts a file and recomputes its metadata. An empty name defaults to
// the base name of the normalized path.
func (s *Store) Put(p string, content []byte, name string) (VirtualFile, error) {
	norm, err := NormalizePath(p)
	if err != nil {
		return VirtualFile{}, err
	}
	if name == "" {
		name = path.Base(norm)
	}

	f := VirtualFile{
		Path:      norm,
		Name:      name,
		SizeBytes: int64(len(content)),
		MimeType:  MimeFromPath(norm),
		Binary:    isBinary(content),
		Content:   string(content),
	}

	s.mu.Lock()
	s.files[norm] = f
	s.mu.Unlock()
	return f, nil
}

// SetContent replaces the content of an existing file, keeping its name.
// Returns false when the path is unknown.
func (s *Store) SetContent(p string, content []byte) bool {
	norm, err := NormalizePath(p)
	if err != nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[norm]
	if !ok {
		return false
	}
	f.Content = string(content)
	f.SizeBytes = int64(len(content))
	f.Binary = isBinary(content)
	s.files[norm] = f
	return true
}

// Get returns a file by path. Unknown or invalid paths report absence.
func (s *Store) Get(p string) (VirtualFile, bool) {
	norm, err := NormalizePath(p)
	if err != nil {
		return VirtualFile{}, false
	}
	s.mu.RLock()
	f, ok := s.files[norm]
	s.mu.RUnlock()
	return f, ok
}

// Delete removes a file. Returns false when nothing was removed.
func (s *Store) Delete(p string) bool {
	norm, err := NormalizePath(p)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[norm]; !ok {
		return false
	}
	delete(s.files, norm)
	return true
}

// Len returns the number of files.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

// TotalBytes sums the size of every file.
func (s *Store) TotalBytes() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for _, f := range s.files {
		total += f.SizeBytes
	}
	return total
}

// Paths returns all paths in ascending order.
func (s *Store) Paths() []string {
	s.mu.RLock()
	paths := make([]string, 0, len(s.files))
	for p := range s.files {
		paths = append(paths, p)
	}
	s.mu.RUnlock()
	sort.Strings(paths)
	return paths
}

// ListSorted returns every file ordered by path ascending.
func (s *Store) ListSorted() []VirtualFile {
	s.mu.RLock()
	files := make([]VirtualFile, 0, len(s.files))
	for _, f := range s.files {
		files = append(files, f)
	}
	s.mu.RUnlock()
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files
}

// DetectEntry picks the document to render: the shortest path ending in
// ui/index.html, else the shortest ending in index.html. Ties go to the
// lexicographically smaller path, so the result never depends on insertion
// order.
func (s *Store) DetectEntry() (string, bool) {
	paths := s.Paths()
	if p, ok := shortestMatch(paths, uiEntryPattern); ok {
		return p, true
	}
	return shortestMatch(paths, anyEntryPattern)
}

func shortestMatch(sorted []string, re *regexp.Regexp) (string, bool) {
	best := ""
	found := false
	for _, p := range sorted {
		if !re.MatchString(p) {
			continue
		}
		if !found || len(p) < len(best) {
			best, found = p, true
		}
	}
	return best, found
}

// Clone returns a deep copy of the store.
func (s *Store) Clone() *Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := &Store{files: make(map[string]VirtualFile, len(s.files))}
	for k, v := range s.files {
		c.files[k] = v
	}
	return c
}

// Snapshot returns a copy of the underlying map.
func (s *Store) Snapshot() map[string]VirtualFile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]VirtualFile, len(s.files))
	for k, v := range s.files {
		out[k] = v
	}
	return out
}

// Replace swaps the whole content of the store for a copy of files.
func (s *Store) Replace(files map[string]VirtualFile) {
	next := make(map[string]VirtualFile, len(files))
	for k, v := range files {
		next[k] = v
	}
	s.mu.Lock()
	s.files = next
	s.mu.Unlock()
}

// Clear removes every file.
func (s *Store) Clear() {
	s.Replace(nil)
}
