package version

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"

	"github.com/GriffinCanCode/nuitester/internal/domain/vfs"
)

// Format is an archive container.
type Format string

const (
	FormatZip    Format = "zip"
	FormatTarGz  Format = "tar.gz"
	FormatTarZst Format = "tar.zst"
)

// ArchiveBaseName is the file name archives are offered under.
const ArchiveBaseName = "nui_build"

// ModTime is stamped on every archive entry so exports are reproducible.
var ModTime = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

var (
	ErrUnsupportedFormat = errors.New("unsupported archive format")
	ErrArchiveTooLarge   = errors.New("archive exceeds import limits")
)

// ParseFormat maps a query value to a Format. Empty means zip.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "", "zip":
		return FormatZip, nil
	case "tar.gz", "tgz", "gz", "gzip":
		return FormatTarGz, nil
	case "tar.zst", "zst", "zstd":
		return FormatTarZst, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// FileName returns the download name for the format.
func (f Format) FileName() string {
	return ArchiveBaseName + "." + string(f)
}

// ContentType returns the media type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatTarGz:
		return "application/gzip"
	case FormatTarZst:
		return "application/zstd"
	default:
		return "application/zip"
	}
}

// ExportArchive writes files to w in path order.
func ExportArchive(w io.Writer, files []vfs.VirtualFile, format Format) error {
	switch format {
	case FormatZip, "":
		return writeZip(w, files)
	case FormatTarGz:
		gz, err := gzip.NewWriterLevel(w, gzip.BestCompression)
		if err != nil {
			return err
		}
		if err := writeTar(gz, files); err != nil {
			return err
		}
		return gz.Close()
	case FormatTarZst:
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return err
		}
		if err := writeTar(enc, files); err != nil {
			enc.Close()
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

func writeZip(w io.Writer, files []vfs.VirtualFile) error {
	zw := zip.NewWriter(w)
	for _, f := range files {
		hdr := &zip.FileHeader{
			Name:     f.Path,
			Method:   zip.Deflate,
			Modified: ModTime,
		}
		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("zip %s: %w", f.Path, err)
		}
		if _, err := io.WriteString(fw, f.Content); err != nil {
			return fmt.Errorf("zip %s: %w", f.Path, err)
		}
	}
	return zw.Close()
}

func writeTar(w io.Writer, files []vfs.VirtualFile) error {
	tw := tar.NewWriter(w)
	for _, f := range files {
		hdr := &tar.Header{
			Name:     f.Path,
			Mode:     0o644,
			Size:     int64(len(f.Content)),
			ModTime:  ModTime,
			Typeflag: tar.TypeReg,
			Format:   tar.FormatPAX,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("tar %s: %w", f.Path, err)
		}
		if _, err := io.WriteString(tw, f.Content); err != nil {
			return fmt.Errorf("tar %s: %w", f.Path, err)
		}
	}
	return tw.Close()
}

// ImportLimits bound what ImportArchive accepts. Zero means unlimited.
type ImportLimits struct {
	MaxFiles int
	MaxBytes int64
}

// ImportArchive reads a zip, tar.gz or tar.zst archive. The container is
// detected from content, not from a name.
func ImportArchive(data []byte, limits ImportLimits) ([]vfs.Record, error) {
	mt := mimetype.Detect(data)
	switch {
	case mt.Is("application/zip"):
		return readZip(data, limits)
	case mt.Is("application/gzip"):
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer gz.Close()
		return readTar(gz, limits)
	case mt.Is("application/zstd"):
		dec, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		defer dec.Close()
		return readTar(dec, limits)
	case mt.Is("application/x-tar"):
		return readTar(bytes.NewReader(data), limits)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, mt.String())
}

type collector struct {
	limits  ImportLimits
	total   int64
	records []vfs.Record
}

func (c *collector) add(name string, r io.Reader) error {
	p, err := vfs.NormalizePath(name)
	if err != nil {
		return fmt.Errorf("entry %q: %w", name, err)
	}
	if c.limits.MaxFiles > 0 && len(c.records) >= c.limits.MaxFiles {
		return fmt.Errorf("%w: more than %d files", ErrArchiveTooLarge, c.limits.MaxFiles)
	}
	if c.limits.MaxBytes > 0 {
		r = io.LimitReader(r, c.limits.MaxBytes-c.total+1)
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("entry %q: %w", name, err)
	}
	c.total += int64(len(content))
	if c.limits.MaxBytes > 0 && c.total > c.limits.MaxBytes {
		return fmt.Errorf("%w: more than %d bytes", ErrArchiveTooLarge, c.limits.MaxBytes)
	}
	c.records = append(c.records, vfs.Record{Path: p, Name: path.Base(p), Content: content})
	return nil
}

func readZip(data []byte, limits ImportLimits) ([]vfs.Record, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("zip: %w", err)
	}
	c := &collector{limits: limits}
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			return nil, fmt.Errorf("zip %s: %w", zf.Name, err)
		}
		err = c.add(zf.Name, rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
	}
	return c.records, nil
}

func readTar(r io.Reader, limits ImportLimits) ([]vfs.Record, error) {
	tr := tar.NewReader(r)
	c := &collector{limits: limits}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return c.records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("tar: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if err := c.add(hdr.Name, tr); err != nil {
			return nil, err
		}
	}
}
