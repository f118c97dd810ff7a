package workspace

import (
	"context"
	"fmt"
	"io"

	"github.com/GriffinCanCode/nuitester/internal/domain/console"
	"github.com/GriffinCanCode/nuitester/internal/domain/version"
	"github.com/GriffinCanCode/nuitester/internal/domain/vfs"
)

// Versions lists the snapshots of the workspace.
func (w *Workspace) Versions() []version.Summary {
	return w.versions.List()
}

// Snapshot records the live files as a new version.
func (w *Workspace) Snapshot(ctx context.Context) (version.Summary, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return version.Summary{}, ErrClosed
	}
	return w.snapshotLocked(ctx)
}

// SaveAndUpdate snapshots the live files and rebuilds the preview, the
// action behind the code surface's save button.
func (w *Workspace) SaveAndUpdate(ctx context.Context) (version.Summary, *Preview, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return version.Summary{}, nil, ErrClosed
	}

	sum, err := w.snapshotLocked(ctx)
	if err != nil {
		return version.Summary{}, nil, err
	}
	if err := w.rebuildLocked(); err != nil {
		return sum, nil, err
	}
	return sum, w.previewCopy(), nil
}

// Revert copies version vid back into the live store. The entry selection
// is kept even when the version lacks that file, in which case the next
// build shows the empty state. rebuild controls whether the preview is
// rebuilt right away.
func (w *Workspace) Revert(ctx context.Context, vid int, rebuild bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}

	if err := w.versions.Revert(vid, w.store); err != nil {
		return err
	}
	w.appendLog(console.TypeInfo, fmt.Sprintf("Reverted to version %d", vid))
	if !rebuild {
		return nil
	}
	return w.rebuildLocked()
}

// Export writes version vid as an archive, or the live files when vid is 0.
func (w *Workspace) Export(out io.Writer, vid int, format version.Format) error {
	files, err := w.exportFiles(vid)
	if err != nil {
		return err
	}
	return version.ExportArchive(out, files, format)
}

func (w *Workspace) exportFiles(vid int) ([]vfs.VirtualFile, error) {
	if vid == 0 {
		return w.store.ListSorted(), nil
	}
	snap, ok := w.versions.Get(vid)
	if !ok {
		return nil, fmt.Errorf("version %d: %w", vid, version.ErrSnapshotNotFound)
	}
	return snap.Sorted(), nil
}

// Import replaces the workspace content with an archive, as an upload
// would.
func (w *Workspace) Import(ctx context.Context, data []byte) (Summary, error) {
	records, err := version.ImportArchive(data, version.ImportLimits{
		MaxFiles: w.limits.MaxFiles,
		MaxBytes: w.limits.MaxBytes,
	})
	if err != nil {
		w.logInput(console.TypeError, "Import failed: "+err.Error())
		return Summary{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	records, err = w.limits.Filter(records)
	if err != nil {
		return Summary{}, err
	}
	return w.Upload(ctx, records)
}

// restore loads persisted snapshots and makes the latest one live.
func (w *Workspace) restore(snaps []version.Snapshot) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.versions.Load(snaps)
	latest, ok := w.versions.Latest()
	if !ok {
		return nil
	}
	if err := w.versions.Revert(latest.ID, w.store); err != nil {
		return err
	}
	return w.rebuildLocked()
}

func (w *Workspace) snapshotLocked(ctx context.Context) (version.Summary, error) {
	snap, err := w.versions.Snapshot(ctx, w.store)
	if err != nil {
		return version.Summary{}, err
	}
	w.recordSnapshot()
	return snap.Summary(), nil
}
