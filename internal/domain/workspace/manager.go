package workspace

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/nuitester/internal/domain/resource"
	"github.com/GriffinCanCode/nuitester/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/nuitester/internal/shared/id"
)

// Manager owns every open workspace and the resource host they share.
type Manager struct {
	mu         sync.RWMutex
	workspaces map[id.WorkspaceID]*Workspace // Protected by mu

	cfg     Config
	host    *resource.MemoryHost
	logger  *zap.Logger
	metrics *monitoring.Metrics
	repo    Repository
}

// NewManager creates a manager serving resources under resource.DefaultBasePath.
func NewManager(cfg Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		workspaces: make(map[id.WorkspaceID]*Workspace),
		cfg:        cfg,
		host:       resource.NewMemoryHost(resource.DefaultBasePath),
		logger:     logger,
	}
}

// WithMetrics adds metrics tracking to the manager
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// WithRepository persists workspaces created from now on
func (m *Manager) WithRepository(repo Repository) *Manager {
	m.repo = repo
	return m
}

// Host returns the resource host backing every workspace.
func (m *Manager) Host() *resource.MemoryHost {
	return m.host
}

// Create opens a new empty workspace.
func (m *Manager) Create(ctx context.Context, name string) (*Workspace, error) {
	w, err := m.open(Record{Name: name})
	if err != nil {
		return nil, err
	}
	w.saveRecord(ctx)

	if m.metrics != nil {
		m.metrics.IncWorkspacesTotal()
	}
	m.logger.Info("Workspace created", zap.String("workspace", w.ID().String()), zap.String("name", name))
	return w, nil
}

// Get returns the workspace with the given id.
func (m *Manager) Get(wid string) (*Workspace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	w, ok := m.workspaces[id.WorkspaceID(wid)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", wid, ErrNotFound)
	}
	return w, nil
}

// List returns summaries ordered by creation.
func (m *Manager) List() []Summary {
	m.mu.RLock()
	all := make([]*Workspace, 0, len(m.workspaces))
	for _, w := range m.workspaces {
		all = append(all, w)
	}
	m.mu.RUnlock()

	out := make([]Summary, 0, len(all))
	for _, w := range all {
		out = append(out, w.Summary())
	}
	// ULIDs sort by creation time
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of open workspaces.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.workspaces)
}

// Delete closes a workspace, releases its handles and forgets it.
func (m *Manager) Delete(ctx context.Context, wid string) error {
	m.mu.Lock()
	w, ok := m.workspaces[id.WorkspaceID(wid)]
	if ok {
		delete(m.workspaces, w.ID())
	}
	count := len(m.workspaces)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%s: %w", wid, ErrNotFound)
	}
	w.Close()
	if m.repo != nil {
		if err := m.repo.DeleteWorkspace(ctx, w.ID()); err != nil {
			m.logger.Warn("Failed to delete persisted workspace", zap.String("workspace", wid), zap.Error(err))
		}
	}
	if m.metrics != nil {
		m.metrics.SetWorkspacesActive(count)
	}
	m.logger.Info("Workspace deleted", zap.String("workspace", wid))
	return nil
}

// Restore reopens every persisted workspace at its latest snapshot.
func (m *Manager) Restore(ctx context.Context) (int, error) {
	if m.repo == nil {
		return 0, nil
	}
	recs, err := m.repo.ListWorkspaces(ctx)
	if err != nil {
		return 0, fmt.Errorf("list workspaces: %w", err)
	}

	restored := 0
	for _, rec := range recs {
		snaps, err := m.repo.LoadSnapshots(ctx, rec.ID)
		if err != nil {
			m.logger.Warn("Skipping workspace with unreadable snapshots", zap.String("workspace", rec.ID.String()), zap.Error(err))
			continue
		}
		w, err := m.open(rec)
		if err != nil {
			return restored, err
		}
		if err := w.restore(snaps); err != nil {
			m.logger.Warn("Workspace restored without preview", zap.String("workspace", rec.ID.String()), zap.Error(err))
		}
		restored++
	}
	m.logger.Info("Workspaces restored", zap.Int("count", restored))
	return restored, nil
}

// Close closes every workspace. Persisted state is kept.
func (m *Manager) Close() {
	m.mu.Lock()
	all := m.workspaces
	m.workspaces = make(map[id.WorkspaceID]*Workspace)
	m.mu.Unlock()

	for _, w := range all {
		w.Close()
	}
	if m.metrics != nil {
		m.metrics.SetWorkspacesActive(0)
	}
}

func (m *Manager) open(rec Record) (*Workspace, error) {
	opts := []Option{WithLogger(m.logger)}
	if m.metrics != nil {
		opts = append(opts, WithMetrics(m.metrics))
	}
	if m.repo != nil {
		opts = append(opts, WithRepository(m.repo))
	}
	w, err := New(rec, m.host, m.cfg, opts...)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.workspaces[w.ID()] = w
	count := len(m.workspaces)
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.SetWorkspacesActive(count)
	}
	return w, nil
}
