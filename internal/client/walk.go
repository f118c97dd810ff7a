package client

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"

	"github.com/GriffinCanCode/nuitester/internal/domain/workspace"
)

// LocalFile is a file found under a pushed folder.
type LocalFile struct {
	// Path is relative to the folder, '/'-separated
	Path string
	// Abs is where the content is read from when Content is nil
	Abs     string
	Size    int64
	Content []byte
}

func (f LocalFile) read() ([]byte, error) {
	if f.Content != nil {
		return f.Content, nil
	}
	content, err := os.ReadFile(f.Abs)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Path, err)
	}
	return content, nil
}

// Collect walks root and returns every regular file not matched by an
// ignore pattern, sorted by path. Directories matched by a pattern ending
// in "/**" are not descended into.
func Collect(ctx context.Context, root string, ignore []string) ([]LocalFile, error) {
	limits := workspace.Limits{Ignore: ignore}
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	prunes := make([]string, 0, len(ignore))
	for _, p := range ignore {
		if strings.HasSuffix(p, "/**") {
			prunes = append(prunes, strings.TrimSuffix(p, "/**"))
		}
	}

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	var (
		mu    sync.Mutex
		files []LocalFile
	)
	conf := fastwalk.Config{Follow: false}
	err = fastwalk.Walk(&conf, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil || rel == "." {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			for _, pattern := range prunes {
				if ok, _ := doublestar.Match(pattern, rel); ok {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if !d.Type().IsRegular() || limits.Ignored(rel) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}

		mu.Lock()
		files = append(files, LocalFile{Path: rel, Abs: p, Size: fi.Size()})
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// TotalSize sums the sizes of files.
func TotalSize(files []LocalFile) int64 {
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return total
}
