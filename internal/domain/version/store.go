package version

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/GriffinCanCode/nuitester/internal/domain/vfs"
)

// ErrSnapshotNotFound is returned for unknown version ids.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Snapshot is an immutable copy of a workspace's files.
type Snapshot struct {
	ID        int
	Timestamp time.Time
	Files     map[string]vfs.VirtualFile
}

// clone copies the file map so callers never share it with the history.
func (s Snapshot) clone() Snapshot {
	s.Files = maps.Clone(s.Files)
	return s
}

// Sorted returns the files ordered by path.
func (s Snapshot) Sorted() []vfs.VirtualFile {
	out := make([]vfs.VirtualFile, 0, len(s.Files))
	for _, f := range s.Files {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Summary describes a snapshot without its content.
type Summary struct {
	ID         int       `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	FileCount  int       `json:"file_count"`
	TotalBytes int64     `json:"total_bytes"`
}

// Summary returns the listing form of the snapshot.
func (s Snapshot) Summary() Summary {
	sum := Summary{ID: s.ID, Timestamp: s.Timestamp, FileCount: len(s.Files)}
	for _, f := range s.Files {
		sum.TotalBytes += f.SizeBytes
	}
	return sum
}

// Persister stores snapshots durably for one workspace.
type Persister interface {
	SaveSnapshot(ctx context.Context, snap Snapshot) error
	ClearSnapshots(ctx context.Context) error
}

// Option configures a Store.
type Option func(*Store)

// WithPersister mirrors every snapshot to p.
func WithPersister(p Persister) Option {
	return func(s *Store) { s.persist = p }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store keeps the ordered version history of one workspace.
type Store struct {
	mu      sync.RWMutex
	snaps   []Snapshot
	persist Persister
	now     func() time.Time
}

// NewStore creates an empty history.
func NewStore(opts ...Option) *Store {
	s := &Store{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot records the current content of files under id max+1.
func (s *Store) Snapshot(ctx context.Context, files *vfs.Store) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:        s.nextID(),
		Timestamp: s.now().UTC(),
		Files:     files.Snapshot(),
	}
	if s.persist != nil {
		if err := s.persist.SaveSnapshot(ctx, snap); err != nil {
			return Snapshot{}, fmt.Errorf("persist snapshot %d: %w", snap.ID, err)
		}
	}
	s.snaps = append(s.snaps, snap)
	return snap.clone(), nil
}

// Reset drops the history and records files as version 1.
func (s *Store) Reset(ctx context.Context, files *vfs.Store) (Snapshot, error) {
	s.mu.Lock()
	if s.persist != nil {
		if err := s.persist.ClearSnapshots(ctx); err != nil {
			s.mu.Unlock()
			return Snapshot{}, fmt.Errorf("clear snapshots: %w", err)
		}
	}
	s.snaps = nil
	s.mu.Unlock()
	return s.Snapshot(ctx, files)
}

// Revert copies snapshot id back into live. It does not rebuild anything.
func (s *Store) Revert(id int, live *vfs.Store) error {
	snap, ok := s.Get(id)
	if !ok {
		return fmt.Errorf("version %d: %w", id, ErrSnapshotNotFound)
	}
	live.Replace(snap.Files)
	return nil
}

// Get returns snapshot id.
func (s *Store) Get(id int) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, snap := range s.snaps {
		if snap.ID == id {
			return snap.clone(), true
		}
	}
	return Snapshot{}, false
}

// Latest returns the snapshot with the highest id.
func (s *Store) Latest() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.snaps) == 0 {
		return Snapshot{}, false
	}
	return s.snaps[len(s.snaps)-1].clone(), true
}

// List returns summaries in ascending id order.
func (s *Store) List() []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Summary, 0, len(s.snaps))
	for _, snap := range s.snaps {
		out = append(out, snap.Summary())
	}
	return out
}

// Len returns the number of snapshots.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snaps)
}

// Load replaces the history with previously persisted snapshots without
// writing them back.
func (s *Store) Load(snaps []Snapshot) {
	sorted := make([]Snapshot, 0, len(snaps))
	for _, snap := range snaps {
		sorted = append(sorted, snap.clone())
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	s.mu.Lock()
	s.snaps = sorted
	s.mu.Unlock()
}

func (s *Store) nextID() int {
	max := 0
	for _, snap := range s.snaps {
		if snap.ID > max {
			max = snap.ID
		}
	}
	return max + 1
}
