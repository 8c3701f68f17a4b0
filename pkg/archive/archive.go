// Package archive extracts Fix containers to directories and builds them
// back from directories of textures.
package archive

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goopsie/fixTools/pkg/fix"
)

// DefaultExtension is the payload file extension used by Extract and Build.
const DefaultExtension = "dds"

var (
	// ErrNoRecords is returned when extracting a container with no records.
	ErrNoRecords = errors.New("no records loaded")
	// ErrNoPayloads is returned when a build directory holds no payload files.
	ErrNoPayloads = errors.New("no payload files found")
)

// config holds extraction and build options.
type config struct {
	extension string
	observer  fix.Observer
	base      fix.OffsetBase
}

// Option configures Extract and Build behavior.
type Option func(*config)

// WithExtension sets the payload file extension, without the leading dot.
// An empty extension makes Extract write bare numbered files.
func WithExtension(ext string) Option {
	return func(c *config) {
		c.extension = strings.TrimPrefix(ext, ".")
	}
}

// WithObserver registers a callback for per-record progress events.
func WithObserver(fn fix.Observer) Option {
	return func(c *config) {
		c.observer = fn
	}
}

// WithOffsetBase sets the offset base used to read or write containers.
func WithOffsetBase(base fix.OffsetBase) Option {
	return func(c *config) {
		c.base = base
	}
}

func newConfig(opts []Option) *config {
	cfg := &config{extension: DefaultExtension, base: fix.FileOffsets}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func (c *config) fixOptions() []fix.Option {
	return []fix.Option{fix.WithOffsetBase(c.base), fix.WithObserver(c.observer)}
}

func (c *config) emit(e fix.Event) {
	if c.observer != nil {
		c.observer(e)
	}
}

// FileName returns the name Extract gives the record at position i.
func FileName(i int, ext string) string {
	name := strconv.Itoa(i)
	if ext != "" {
		name += "." + ext
	}
	return name
}

// Extract writes every record payload of c to outputDir as a numbered file,
// in sequence order. The directory is created if needed. The first write
// failure aborts the extraction.
func Extract(c *fix.Container, outputDir string, opts ...Option) error {
	cfg := newConfig(opts)

	if c == nil || c.Len() == 0 {
		return ErrNoRecords
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	for i, rec := range c.Records() {
		path := filepath.Join(outputDir, FileName(i, cfg.extension))
		if err := os.WriteFile(path, rec.Payload(), 0644); err != nil {
			return fmt.Errorf("write file %s: %w", path, err)
		}

		id, hasID := rec.ID()
		cfg.emit(fix.Event{
			Kind:     fix.EventExtract,
			Position: i,
			ID:       id,
			HasID:    hasID,
			Size:     rec.Size(),
			Offset:   rec.Offset(),
			Path:     path,
		})
	}

	return nil
}

// ExtractFile parses the container at src and extracts it to outputDir.
func ExtractFile(src, outputDir string, opts ...Option) (*fix.Container, error) {
	cfg := newConfig(opts)

	c, err := fix.ReadFile(src, cfg.fixOptions()...)
	if err != nil {
		return nil, fmt.Errorf("read container: %w", err)
	}

	if err := Extract(c, outputDir, opts...); err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	return c, nil
}

// ScanDir lists the payload files in inputDir in directory order.
// Subdirectories are not descended into.
func ScanDir(inputDir, ext string) ([]string, error) {
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", fix.ErrNotFound, inputDir)
		}
		return nil, fmt.Errorf("read directory: %w", err)
	}

	want := "." + strings.TrimPrefix(ext, ".")
	var paths []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if !strings.EqualFold(filepath.Ext(entry.Name()), want) {
			continue
		}
		paths = append(paths, filepath.Join(inputDir, entry.Name()))
	}
	return paths, nil
}

// Build appends every payload file of inputDir to a new container and
// writes it to dest. Nothing is written when no payload file is found.
func Build(inputDir, dest string, opts ...Option) (*fix.Container, error) {
	cfg := newConfig(opts)

	paths, err := ScanDir(inputDir, cfg.extension)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoPayloads, inputDir)
	}
	if len(paths) > fix.MaxRecords {
		return nil, fmt.Errorf("%w: %d payload files in %s, at most %d fit", fix.ErrTooManyRecords, len(paths), inputDir, fix.MaxRecords)
	}

	c := fix.New(cfg.fixOptions()...)
	for _, path := range paths {
		if _, err := c.AppendFile(path); err != nil {
			return nil, fmt.Errorf("load payload: %w", err)
		}
	}

	if err := fix.WriteFile(dest, c); err != nil {
		return nil, fmt.Errorf("write container: %w", err)
	}
	return c, nil
}
