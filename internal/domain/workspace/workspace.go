package workspace

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"path"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/nuitester/internal/domain/console"
	"github.com/GriffinCanCode/nuitester/internal/domain/protocol"
	"github.com/GriffinCanCode/nuitester/internal/domain/resource"
	"github.com/GriffinCanCode/nuitester/internal/domain/rewrite"
	"github.com/GriffinCanCode/nuitester/internal/domain/shim"
	"github.com/GriffinCanCode/nuitester/internal/domain/version"
	"github.com/GriffinCanCode/nuitester/internal/domain/vfs"
	"github.com/GriffinCanCode/nuitester/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/nuitester/internal/shared/id"
)

var (
	// ErrNotFound is returned for unknown workspace ids.
	ErrNotFound = errors.New("workspace not found")
	// ErrFileNotFound is returned for paths missing from the store.
	ErrFileNotFound = errors.New("file not found")
	// ErrNoEntry is returned when an operation needs an entry document.
	ErrNoEntry = errors.New("workspace has no entry document")
	// ErrInvalidJSON is returned for host payloads that do not parse.
	ErrInvalidJSON = errors.New("invalid JSON")
	// ErrInvalidInput covers other malformed user input.
	ErrInvalidInput = errors.New("invalid input")
	// ErrClosed is returned by operations on a closed workspace.
	ErrClosed = errors.New("workspace closed")
)

// Config holds the settings every workspace of a server shares.
type Config struct {
	UIFolder     string
	ResourceName string
	LogRetention int
	Limits       Limits
}

// Record is the durable identity of a workspace.
type Record struct {
	ID        id.WorkspaceID `json:"id"`
	Name      string         `json:"name"`
	Entry     string         `json:"entry"`
	CreatedAt time.Time      `json:"created_at"`
}

// Repository persists workspace records and their snapshots.
type Repository interface {
	SaveWorkspace(ctx context.Context, rec Record) error
	DeleteWorkspace(ctx context.Context, wid id.WorkspaceID) error
	ListWorkspaces(ctx context.Context) ([]Record, error)
	LoadSnapshots(ctx context.Context, wid id.WorkspaceID) ([]version.Snapshot, error)
	Snapshots(wid id.WorkspaceID) version.Persister
}

// Preview describes the instrumented document of the live build.
type Preview struct {
	Entry       string    `json:"entry"`
	URL         string    `json:"url"`
	Generation  uint64    `json:"generation"`
	BuiltAt     time.Time `json:"built_at"`
	Resolved    int       `json:"resolved"`
	Unresolved  int       `json:"unresolved"`
	Skipped     int       `json:"skipped"`
	ParseFailed bool      `json:"parse_failed"`
	HTML        string    `json:"-"`
}

// Summary is the listing form of a workspace.
type Summary struct {
	Record
	Files      int      `json:"files"`
	TotalBytes int64    `json:"total_bytes"`
	Versions   int      `json:"versions"`
	EditMode   bool     `json:"edit_mode"`
	Bridges    int      `json:"bridges"`
	Preview    *Preview `json:"preview"`
}

// Workspace is one uploaded bundle and everything derived from it. Every
// mutation goes through its methods and is serialized by mu.
type Workspace struct {
	rec     Record
	logger  *zap.Logger
	metrics *monitoring.Metrics
	repo    Repository
	limits  Limits

	mu          sync.Mutex
	store       *vfs.Store
	resolver    *resource.Resolver
	rewriter    *rewrite.Rewriter
	shimSource  string
	preview     *Preview
	// originals maps every handle URL any build has written back to the
	// attribute value it replaced. Open previews can hold an older
	// generation, so entries outlive the handles they name.
	originals   map[string]string
	liveHandles int
	versions    *version.Store
	log         *console.Log
	editMode    bool
	counters    counters
	closed      bool
	done        chan struct{}

	bridgeMu   sync.Mutex
	bridges    map[int]Bridge
	nextBridge int
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Workspace) { w.logger = logger }
}

// WithMetrics records builds, messages and snapshots.
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(w *Workspace) { w.metrics = metrics }
}

// WithRepository persists the workspace record and its snapshots.
func WithRepository(repo Repository) Option {
	return func(w *Workspace) { w.repo = repo }
}

// New creates an empty workspace whose resources are allocated on host.
func New(rec Record, host resource.Host, cfg Config, opts ...Option) (*Workspace, error) {
	if rec.ID == "" {
		rec.ID = id.NewWorkspaceID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	w := &Workspace{
		rec:       rec,
		logger:    zap.NewNop(),
		limits:    cfg.Limits,
		store:     vfs.NewStore(),
		log:       console.NewLog(cfg.LogRetention),
		done:      make(chan struct{}),
		bridges:   make(map[int]Bridge),
		originals: make(map[string]string),
		counters: counters{
			inbound:  make(map[protocol.Kind]uint64),
			outbound: make(map[protocol.Kind]uint64),
			dropped:  make(map[string]uint64),
		},
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(zap.String("workspace", rec.ID.String()))

	src, err := shim.Render(shim.Options{
		ResourceName: cfg.ResourceName,
		BridgeURL:    BridgePath(rec.ID),
	})
	if err != nil {
		return nil, fmt.Errorf("render shim: %w", err)
	}
	w.shimSource = src
	w.resolver = resource.NewResolver(host)
	w.rewriter = rewrite.New(rewrite.Config{UIFolder: cfg.UIFolder, Owns: host.Owns})

	var vopts []version.Option
	if w.repo != nil {
		vopts = append(vopts, version.WithPersister(w.repo.Snapshots(rec.ID)))
	}
	w.versions = version.NewStore(vopts...)
	return w, nil
}

// BridgePath is the WebSocket path the shim of workspace wid connects to.
func BridgePath(wid id.WorkspaceID) string {
	return "/workspaces/" + wid.String() + "/bridge"
}

// ID returns the workspace id.
func (w *Workspace) ID() id.WorkspaceID { return w.rec.ID }

// Done is closed when the workspace is closed.
func (w *Workspace) Done() <-chan struct{} { return w.done }

// Summary describes the workspace.
func (w *Workspace) Summary() Summary {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := Summary{
		Record:     w.rec,
		Files:      w.store.Len(),
		TotalBytes: w.store.TotalBytes(),
		Versions:   w.versions.Len(),
		EditMode:   w.editMode,
		Bridges:    w.bridgeCount(),
	}
	if w.preview != nil {
		p := *w.preview
		s.Preview = &p
	}
	return s
}

// Upload replaces every file with records, detects the entry, restarts the
// version history at 1 and rebuilds. Records are validated before anything
// is changed.
func (w *Workspace) Upload(ctx context.Context, records []vfs.Record) (Summary, error) {
	if err := w.upload(ctx, records); err != nil {
		return Summary{}, err
	}
	return w.Summary(), nil
}

func (w *Workspace) upload(ctx context.Context, records []vfs.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}

	if err := w.limits.Check(records); err != nil {
		w.appendLog(console.TypeError, "Upload rejected: "+err.Error())
		return err
	}
	staged := vfs.NewStore()
	for _, r := range records {
		if _, err := staged.Put(r.Path, r.Content, r.Name); err != nil {
			w.appendLog(console.TypeError, fmt.Sprintf("Upload rejected: %s: %v", r.Path, err))
			return fmt.Errorf("%w: %s: %v", ErrInvalidInput, r.Path, err)
		}
	}

	w.store.Replace(staged.Snapshot())
	w.rec.Entry, _ = w.store.DetectEntry()
	w.editMode = false
	w.saveRecord(ctx)

	if _, err := w.versions.Reset(ctx, w.store); err != nil {
		w.logger.Warn("Failed to record initial version", zap.Error(err))
	} else {
		w.recordSnapshot()
	}

	if w.rec.Entry != "" {
		w.appendLog(console.TypeInfo, fmt.Sprintf("Loaded %d files, entry %s", w.store.Len(), w.rec.Entry))
	} else {
		w.appendLog(console.TypeWarn, fmt.Sprintf("Loaded %d files, no index.html found", w.store.Len()))
	}
	return w.rebuildLocked()
}

// Files lists every file ordered by path.
func (w *Workspace) Files() []vfs.VirtualFile {
	return w.store.ListSorted()
}

// File returns one file.
func (w *Workspace) File(p string) (vfs.VirtualFile, error) {
	norm, err := vfs.NormalizePath(p)
	if err != nil {
		return vfs.VirtualFile{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	f, ok := w.store.Get(norm)
	if !ok {
		return vfs.VirtualFile{}, fmt.Errorf("%s: %w", norm, ErrFileNotFound)
	}
	return f, nil
}

// PutFile writes one file from the code surface. It does not rebuild.
func (w *Workspace) PutFile(ctx context.Context, p string, content []byte) (vfs.VirtualFile, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return vfs.VirtualFile{}, ErrClosed
	}

	f, err := w.store.Put(p, content, "")
	if err != nil {
		return vfs.VirtualFile{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if w.rec.Entry == "" {
		if entry, ok := w.store.DetectEntry(); ok {
			w.rec.Entry = entry
			w.saveRecord(ctx)
		}
	}
	return f, nil
}

// DeleteFile removes one file. Deleting the entry falls back to detection.
func (w *Workspace) DeleteFile(ctx context.Context, p string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}

	norm, err := vfs.NormalizePath(p)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !w.store.Delete(norm) {
		return fmt.Errorf("%s: %w", norm, ErrFileNotFound)
	}
	if norm == w.rec.Entry {
		w.rec.Entry, _ = w.store.DetectEntry()
		w.saveRecord(ctx)
	}
	return nil
}

// Entry returns the selected entry path.
func (w *Workspace) Entry() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rec.Entry, w.rec.Entry != ""
}

// SetEntry selects the entry document explicitly. It does not rebuild.
func (w *Workspace) SetEntry(ctx context.Context, p string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}

	norm, err := vfs.NormalizePath(p)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if _, ok := w.store.Get(norm); !ok {
		return fmt.Errorf("%s: %w", norm, ErrFileNotFound)
	}
	w.rec.Entry = norm
	w.saveRecord(ctx)
	return nil
}

// Rebuild resolves every file again and re-renders the preview.
func (w *Workspace) Rebuild() (*Preview, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, ErrClosed
	}
	if err := w.rebuildLocked(); err != nil {
		return nil, err
	}
	return w.previewCopy(), nil
}

// Preview returns the live preview, or nil for the empty state.
func (w *Workspace) Preview() *Preview {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.previewCopy()
}

// References reports how every reference of the entry resolves against
// the live build.
func (w *Workspace) References() ([]rewrite.Reference, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.rec.Entry == "" {
		return nil, ErrNoEntry
	}
	entry, ok := w.store.Get(w.rec.Entry)
	if !ok {
		return nil, ErrNoEntry
	}
	var lookup rewrite.Lookup = rewrite.LookupFunc(func(string) (string, bool) { return "", false })
	if gen := w.resolver.Current(); gen != nil {
		lookup = gen
	}
	return w.rewriter.References(entry.Content, lookup)
}

// Close releases every handle and ends log subscriptions.
func (w *Workspace) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	w.clearPreviewLocked()
	w.log.Close()
	close(w.done)
}

func (w *Workspace) previewCopy() *Preview {
	if w.preview == nil {
		return nil
	}
	p := *w.preview
	return &p
}

// rebuildLocked builds a new handle generation and preview. A missing
// entry yields the empty state and releases every handle.
func (w *Workspace) rebuildLocked() error {
	start := time.Now()

	entry, ok := w.store.Get(w.rec.Entry)
	if w.rec.Entry == "" || !ok {
		w.clearPreviewLocked()
		return nil
	}

	gen, err := w.resolver.Build(w.store)
	if err != nil {
		w.counters.buildFailures++
		if w.metrics != nil {
			w.metrics.RecordBuild("error", time.Since(start))
		}
		return fmt.Errorf("rebuild: %w", err)
	}

	res := w.rewriter.Rewrite(entry.Content, gen, w.shimSource)
	doc, err := gen.Attach([]byte(res.HTML), "text/html", path.Base(entry.Path))
	if err != nil {
		w.counters.buildFailures++
		// Build already released the generation the old preview points at
		w.clearPreviewLocked()
		if w.metrics != nil {
			w.metrics.RecordBuild("error", time.Since(start))
		}
		return fmt.Errorf("rebuild: attach document: %w", err)
	}
	w.setLiveHandles(gen.Len() + 1)

	w.preview = &Preview{
		Entry:       entry.Path,
		URL:         doc.URL,
		Generation:  gen.Seq,
		BuiltAt:     time.Now().UTC(),
		Resolved:    res.Resolved,
		Unresolved:  res.Unresolved,
		Skipped:     res.Skipped,
		ParseFailed: res.ParseFailed,
		HTML:        res.HTML,
	}
	maps.Copy(w.originals, res.Originals)
	w.counters.builds++

	if w.metrics != nil {
		w.metrics.RecordBuild("success", time.Since(start))
		w.metrics.RecordRewrite(res.Resolved, res.Unresolved, res.Skipped, res.ParseFailed)
	}
	w.logger.Debug("Preview rebuilt",
		zap.String("entry", entry.Path),
		zap.Uint64("generation", gen.Seq),
		zap.Int("resolved", res.Resolved),
		zap.Int("unresolved", res.Unresolved),
		zap.Bool("parse_failed", res.ParseFailed),
		zap.Duration("took", time.Since(start)))
	return nil
}

func (w *Workspace) clearPreviewLocked() {
	w.resolver.ReleaseAll()
	w.preview = nil
	w.setLiveHandles(0)
}

func (w *Workspace) setLiveHandles(n int) {
	if w.metrics != nil {
		w.metrics.AddHandles(n - w.liveHandles)
	}
	w.liveHandles = n
}

func (w *Workspace) appendLog(t console.EntryType, message string) {
	w.log.Append(t, message)
	if w.metrics != nil {
		w.metrics.RecordLogEntry(string(t))
	}
}

func (w *Workspace) recordSnapshot() {
	if w.metrics != nil {
		w.metrics.IncSnapshots()
	}
}

// saveRecord is best effort: the in-memory workspace stays authoritative.
func (w *Workspace) saveRecord(ctx context.Context) {
	if w.repo == nil {
		return
	}
	if err := w.repo.SaveWorkspace(ctx, w.rec); err != nil {
		w.logger.Warn("Failed to persist workspace", zap.Error(err))
	}
}
