package workspace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/nuitester/internal/domain/vfs"
)

var (
	// ErrTooManyFiles is returned when an upload exceeds Limits.MaxFiles.
	ErrTooManyFiles = errors.New("too many files")
	// ErrUploadTooLarge is returned when an upload exceeds Limits.MaxBytes.
	ErrUploadTooLarge = errors.New("upload too large")
)

// DefaultIgnore lists paths no UI bundle needs.
var DefaultIgnore = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/.DS_Store",
	"**/Thumbs.db",
}

// uploadConcurrency bounds how many multipart parts are read at once.
const uploadConcurrency = 8

// Limits bound what an upload may contain. Zero values disable a limit.
type Limits struct {
	MaxFiles int
	MaxBytes int64
	Ignore   []string
}

// Validate checks the ignore patterns.
func (l Limits) Validate() error {
	for _, p := range l.Ignore {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid ignore pattern %q: %w", p, doublestar.ErrBadPattern)
		}
	}
	return nil
}

// Ignored reports whether p matches an ignore pattern.
func (l Limits) Ignored(p string) bool {
	for _, pattern := range l.Ignore {
		if ok, _ := doublestar.Match(pattern, p); ok {
			return true
		}
	}
	return false
}

// Check enforces the count and size limits.
func (l Limits) Check(records []vfs.Record) error {
	if l.MaxFiles > 0 && len(records) > l.MaxFiles {
		return fmt.Errorf("%w: %d files, limit %d", ErrTooManyFiles, len(records), l.MaxFiles)
	}
	var total int64
	for _, r := range records {
		total += int64(len(r.Content))
	}
	if l.MaxBytes > 0 && total > l.MaxBytes {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrUploadTooLarge, total, l.MaxBytes)
	}
	return nil
}

// Filter drops ignored records and normalizes the rest. A path that cannot
// be normalized fails the whole batch.
func (l Limits) Filter(records []vfs.Record) ([]vfs.Record, error) {
	out := records[:0:0]
	for _, r := range records {
		p, err := vfs.NormalizePath(r.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidInput, r.Path, err)
		}
		if l.Ignored(p) {
			continue
		}
		r.Path = p
		if r.Name == "" {
			r.Name = path.Base(p)
		}
		out = append(out, r)
	}
	return out, nil
}

// ReadUploads reads the "files" parts of a multipart form. Relative paths
// come from the matching "paths" values when the client sends them (folder
// uploads), else from the part file names. Parts are read concurrently;
// nothing is returned unless every part was read and the limits hold.
func ReadUploads(ctx context.Context, form *multipart.Form, limits Limits) ([]vfs.Record, error) {
	if form == nil {
		return nil, nil
	}
	headers := form.File["files"]
	paths := form.Value["paths"]

	records := make([]vfs.Record, len(headers))
	for i, fh := range headers {
		p := fh.Filename
		if i < len(paths) && paths[i] != "" {
			p = paths[i]
		}
		records[i] = vfs.Record{Path: p, Name: path.Base(fh.Filename)}
	}

	records, err := filterHeaders(records, &headers, limits)
	if err != nil {
		return nil, err
	}
	var declared int64
	for _, fh := range headers {
		declared += fh.Size
	}
	if limits.MaxFiles > 0 && len(records) > limits.MaxFiles {
		return nil, fmt.Errorf("%w: %d files, limit %d", ErrTooManyFiles, len(records), limits.MaxFiles)
	}
	if limits.MaxBytes > 0 && declared > limits.MaxBytes {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrUploadTooLarge, declared, limits.MaxBytes)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)
	for i := range records {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			content, err := readPart(headers[i])
			if err != nil {
				return fmt.Errorf("read %s: %w", records[i].Path, err)
			}
			records[i].Content = content
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := limits.Check(records); err != nil {
		return nil, err
	}
	return records, nil
}

// filterHeaders applies Filter and keeps headers aligned with the records
// that survive.
func filterHeaders(records []vfs.Record, headers *[]*multipart.FileHeader, limits Limits) ([]vfs.Record, error) {
	kept := make([]vfs.Record, 0, len(records))
	keptHeaders := make([]*multipart.FileHeader, 0, len(records))
	for i, r := range records {
		filtered, err := limits.Filter([]vfs.Record{r})
		if err != nil {
			return nil, err
		}
		if len(filtered) == 0 {
			continue
		}
		kept = append(kept, filtered[0])
		keptHeaders = append(keptHeaders, (*headers)[i])
	}
	*headers = keptHeaders
	return kept, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
