// Package source reads spreadsheets (CSV, TSV and XLSX, from disk or S3)
// into core.Tables with cleaned headers.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/sheetload/internal/core"
	"github.com/JonMunkholm/sheetload/internal/logging"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrFileTooLarge      = errors.New("file too large")
	ErrSheetNotFound     = errors.New("sheet not found")
	ErrEmptySheet        = errors.New("empty sheet")
)

// errStop ends a Scan early without error.
var errStop = errors.New("stop scan")

// File is a spreadsheet that can be opened more than once.
type File struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

// BytesFile wraps in-memory content, e.g. an HTTP upload.
func BytesFile(name string, data []byte) *File {
	return &File{
		Name: name,
		Size: int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// LocalFile opens a file on disk.
func LocalFile(path string) (*File, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("read sheet: %w", err)
	}
	if st.IsDir() {
		return nil, fmt.Errorf("read sheet: %s is a directory", path)
	}
	return &File{
		Name: filepath.Base(path),
		Size: st.Size(),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// Format parses one file type.
type Format interface {
	Sheets(ctx context.Context, f *File) ([]string, error)
	// Scan calls fn with every record of sheet, header first. An empty
	// sheet name selects the first sheet.
	Scan(ctx context.Context, f *File, sheet string, fn func(record []string) error) error
}

// Options configures a Registry.
type Options struct {
	// MaxFileSize bounds the bytes read from one file (0 = unbounded).
	MaxFileSize int64
	// MaxRows caps data rows read from a sheet (0 = unbounded).
	MaxRows int
}

// Registry picks a Format by file extension and implements core.Source.
type Registry struct {
	formats map[string]Format
	opts    Options
	s3      *S3Fetcher
}

var _ core.Source = (*Registry)(nil)

// NewRegistry creates a registry with the built-in formats.
func NewRegistry(opts Options) *Registry {
	r := &Registry{formats: make(map[string]Format), opts: opts}
	r.Register(CSV{}, ".csv", ".txt")
	r.Register(CSV{Comma: '\t'}, ".tsv", ".tab")
	r.Register(XLSX{}, ".xlsx", ".xlsm")
	return r
}

// Register adds or replaces the format for the given extensions.
func (r *Registry) Register(f Format, exts ...string) {
	for _, e := range exts {
		r.formats[strings.ToLower(e)] = f
	}
}

// UseS3 enables s3://bucket/key paths.
func (r *Registry) UseS3(f *S3Fetcher) {
	r.s3 = f
}

func (r *Registry) format(name string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if f, ok := r.formats[ext]; ok {
		return f, nil
	}
	if ext == ".xls" {
		return nil, fmt.Errorf("%w: %s is a legacy Excel file, save it as .xlsx", ErrUnsupportedFormat, name)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
}

// locate resolves a local path or s3:// URL to a File, enforcing the size
// limit up front when the size is known.
func (r *Registry) locate(ctx context.Context, path string) (*File, error) {
	if _, err := r.format(path); err != nil {
		return nil, err
	}
	var (
		f   *File
		err error
	)
	if IsS3Path(path) {
		if r.s3 == nil {
			return nil, fmt.Errorf("read sheet: s3 paths are not enabled")
		}
		f, err = r.s3.Fetch(ctx, path, r.opts.MaxFileSize)
	} else {
		f, err = LocalFile(path)
	}
	if err != nil {
		return nil, err
	}
	if r.opts.MaxFileSize > 0 && f.Size > r.opts.MaxFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrFileTooLarge, f.Name, f.Size, r.opts.MaxFileSize)
	}
	return f, nil
}

func (r *Registry) ListSheets(ctx context.Context, path string) ([]string, error) {
	f, err := r.locate(ctx, path)
	if err != nil {
		return nil, err
	}
	return r.SheetsOf(ctx, f)
}

func (r *Registry) ReadSheet(ctx context.Context, path, sheet string, rowLimit int) (*core.Table, error) {
	f, err := r.locate(ctx, path)
	if err != nil {
		return nil, err
	}
	return r.Read(ctx, f, sheet, rowLimit)
}

// SheetsOf lists the sheets of an already located file.
func (r *Registry) SheetsOf(ctx context.Context, f *File) ([]string, error) {
	format, err := r.format(f.Name)
	if err != nil {
		return nil, err
	}
	return format.Sheets(ctx, r.limited(f))
}

// Read reads one sheet of f. rowLimit <= 0 reads up to MaxRows.
func (r *Registry) Read(ctx context.Context, f *File, sheet string, rowLimit int) (*core.Table, error) {
	format, err := r.format(f.Name)
	if err != nil {
		return nil, err
	}
	if r.opts.MaxFileSize > 0 && f.Size > r.opts.MaxFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrFileTooLarge, f.Name, f.Size, r.opts.MaxFileSize)
	}

	limit := rowLimit
	if r.opts.MaxRows > 0 && (limit <= 0 || limit > r.opts.MaxRows) {
		limit = r.opts.MaxRows
	}

	b := newBuilder(limit)
	err = format.Scan(ctx, r.limited(f), sheet, b.add)
	if err != nil && !errors.Is(err, errStop) {
		return nil, err
	}
	if b.header == nil {
		return nil, fmt.Errorf("%w: %s has no header row", ErrEmptySheet, f.Name)
	}
	if b.truncated && (rowLimit <= 0 || rowLimit > limit) {
		logging.FromContext(ctx).Warn("sheet truncated at row limit",
			"file", f.Name,
			"sheet", sheet,
			"max_rows", limit,
		)
	}
	return b.table(), nil
}

// limited returns f with reads bounded by MaxFileSize.
func (r *Registry) limited(f *File) *File {
	if r.opts.MaxFileSize <= 0 {
		return f
	}
	limit := r.opts.MaxFileSize
	return &File{
		Name: f.Name,
		Size: f.Size,
		Open: func() (io.ReadCloser, error) {
			rc, err := f.Open()
			if err != nil {
				return nil, err
			}
			return struct {
				io.Reader
				io.Closer
			}{&sizeLimiter{r: rc, max: limit, name: f.Name}, rc}, nil
		},
	}
}

// sheetName is the single sheet name of a text file: its base name
// without extension.
func sheetName(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
