package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/GriffinCanCode/nuitester/internal/domain/version"
	"github.com/GriffinCanCode/nuitester/internal/domain/vfs"
	"github.com/GriffinCanCode/nuitester/internal/domain/workspace"
	"github.com/GriffinCanCode/nuitester/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/nuitester/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/nuitester/internal/shared/id"
)

var _ workspace.Repository = (*Store)(nil)

// ErrPathRequired is returned by Open without a database path.
var ErrPathRequired = errors.New("database path is required")

// Config contains SQLite connection configuration.
type Config struct {
	// Path is the database file path. ":memory:" keeps everything in
	// memory for the lifetime of the Store.
	Path string

	// WAL enables Write-Ahead Logging mode for concurrent reads.
	WAL bool
}

// Store persists workspace records and their snapshots in SQLite. Every
// snapshot file is one row holding a zstd-compressed blob.
type Store struct {
	db      *sql.DB
	enc     *zstd.Encoder
	dec     *zstd.Decoder
	breaker *resilience.Breaker
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// Open opens or creates the database and runs migrations.
func Open(cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.Path == "" {
		return nil, ErrPathRequired
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serializes writes; one connection also keeps :memory: shared
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}

	s := &Store{
		db:     db,
		enc:    enc,
		dec:    dec,
		logger: logger,
	}
	s.breaker = resilience.New("sqlite", resilience.Settings{
		Cooldown: 30 * time.Second,
		OnStateChange: func(name string, from, to resilience.State) {
			s.logger.Warn("Storage breaker changed state",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		},
	})

	if err := s.configurePragmas(ctx, cfg.WAL); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to configure pragmas: %w", err)
	}
	if err := s.migrate(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

// WithMetrics records storage calls as service calls.
func (s *Store) WithMetrics(metrics *monitoring.Metrics) *Store {
	s.metrics = metrics
	return s
}

// Close closes the database.
func (s *Store) Close() error {
	s.dec.Close()
	_ = s.enc.Close()
	return s.db.Close()
}

func (s *Store) configurePragmas(ctx context.Context, wal bool) error {
	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	if wal {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, pragma := range pragmas {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS workspaces (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			entry TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			workspace_id TEXT NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
			version INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (workspace_id, version)
		)`,
		`CREATE TABLE IF NOT EXISTS snapshot_files (
			workspace_id TEXT NOT NULL,
			version INTEGER NOT NULL,
			path TEXT NOT NULL,
			name TEXT NOT NULL,
			size INTEGER NOT NULL,
			content BLOB NOT NULL,
			PRIMARY KEY (workspace_id, version, path),
			FOREIGN KEY (workspace_id, version)
				REFERENCES snapshots(workspace_id, version) ON DELETE CASCADE
		)`,
	}
	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// SaveWorkspace inserts or updates a workspace record.
func (s *Store) SaveWorkspace(ctx context.Context, rec workspace.Record) error {
	return s.write(ctx, "save_workspace", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO workspaces (id, name, entry, created_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET name = excluded.name, entry = excluded.entry`,
			rec.ID.String(), rec.Name, rec.Entry, rec.CreatedAt.UTC().Format(time.RFC3339Nano))
		return err
	})
}

// DeleteWorkspace removes a workspace and every snapshot of it.
func (s *Store) DeleteWorkspace(ctx context.Context, wid id.WorkspaceID) error {
	return s.write(ctx, "delete_workspace", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM workspaces WHERE id = ?`, wid.String())
		return err
	})
}

// ListWorkspaces returns every record ordered by id, which is creation
// order.
func (s *Store) ListWorkspaces(ctx context.Context) ([]workspace.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, entry, created_at FROM workspaces ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	defer rows.Close()

	var out []workspace.Record
	for rows.Next() {
		var (
			rec     workspace.Record
			wid     string
			created string
		)
		if err := rows.Scan(&wid, &rec.Name, &rec.Entry, &created); err != nil {
			return nil, fmt.Errorf("scan workspace: %w", err)
		}
		rec.ID = id.WorkspaceID(wid)
		if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("workspace %s: created_at: %w", wid, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// LoadSnapshots returns every snapshot of wid ordered by version.
func (s *Store) LoadSnapshots(ctx context.Context, wid id.WorkspaceID) ([]version.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.version, s.created_at, f.path, f.name, f.content
		 FROM snapshots s LEFT JOIN snapshot_files f
		   ON f.workspace_id = s.workspace_id AND f.version = s.version
		 WHERE s.workspace_id = ?
		 ORDER BY s.version, f.path`, wid.String())
	if err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}
	defer rows.Close()

	var (
		out     []version.Snapshot
		current *version.Snapshot
		files   *vfs.Store
	)
	flush := func() {
		if current != nil {
			current.Files = files.Snapshot()
			out = append(out, *current)
		}
	}
	for rows.Next() {
		var (
			vid     int
			created string
			p, name sql.NullString
			blob    []byte
		)
		if err := rows.Scan(&vid, &created, &p, &name, &blob); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if current == nil || current.ID != vid {
			flush()
			ts, err := time.Parse(time.RFC3339Nano, created)
			if err != nil {
				return nil, fmt.Errorf("snapshot %d: created_at: %w", vid, err)
			}
			current = &version.Snapshot{ID: vid, Timestamp: ts}
			files = vfs.NewStore()
		}
		if !p.Valid {
			continue
		}
		content, err := s.dec.DecodeAll(blob, nil)
		if err != nil {
			return nil, fmt.Errorf("snapshot %d: %s: %w", vid, p.String, err)
		}
		if _, err := files.Put(p.String, content, name.String); err != nil {
			return nil, fmt.Errorf("snapshot %d: %w", vid, err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	flush()
	return out, nil
}

// Snapshots returns the version.Persister of one workspace.
func (s *Store) Snapshots(wid id.WorkspaceID) version.Persister {
	return snapshots{store: s, wid: wid}
}

type snapshots struct {
	store *Store
	wid   id.WorkspaceID
}

func (p snapshots) SaveSnapshot(ctx context.Context, snap version.Snapshot) error {
	s := p.store
	return s.write(ctx, "save_snapshot", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO snapshots (workspace_id, version, created_at) VALUES (?, ?, ?)`,
			p.wid.String(), snap.ID, snap.Timestamp.UTC().Format(time.RFC3339Nano)); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO snapshot_files (workspace_id, version, path, name, size, content)
			 VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, f := range snap.Sorted() {
			blob := s.enc.EncodeAll(f.Bytes(), nil)
			if _, err := stmt.ExecContext(ctx, p.wid.String(), snap.ID, f.Path, f.Name, f.SizeBytes, blob); err != nil {
				return fmt.Errorf("%s: %w", f.Path, err)
			}
		}
		return nil
	})
}

func (p snapshots) ClearSnapshots(ctx context.Context) error {
	return p.store.write(ctx, "clear_snapshots", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE workspace_id = ?`, p.wid.String())
		return err
	})
}

// write runs fn in a transaction behind the breaker.
func (s *Store) write(ctx context.Context, method string, fn func(tx *sql.Tx) error) error {
	timer := monitoring.NewTimer(s.metrics, "sqlite", method)
	err := s.breaker.Do(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})

	timer.StopErr(err)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}
