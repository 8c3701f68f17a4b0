// Package pack reads Pack texture containers.
//
// A Pack starts with an identifier, an entry count and one absolute offset
// per entry. Each entry is a 16-byte header followed by its data.
package pack

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/goopsie/fixTools/internal/stream"
	"github.com/goopsie/fixTools/pkg/archive"
	"github.com/goopsie/fixTools/pkg/fix"
)

// EntryHeaderSize is the binary size of an entry header.
const EntryHeaderSize = 16 // 4 + 4 + 4 + 4 bytes

// ErrNoEntries is returned when extracting a pack with no entries.
var ErrNoEntries = errors.New("no entries loaded")

// EntryHeader precedes every entry's data.
type EntryHeader struct {
	Size   uint32
	Marker int32 // -1 in every known file
	ID     uint32
	Format uint32 // 0: TGA, otherwise DDS
}

// Entry is one texture stored in a pack.
type Entry struct {
	EntryHeader
	Data []byte
}

// Extension returns the file extension matching the entry format.
func (e *Entry) Extension() string {
	if e.Format == 0 {
		return "tga"
	}
	return "dds"
}

// Pack is a parsed Pack file.
type Pack struct {
	ID      uint32
	Entries []Entry
}

// Read parses a pack from r, positioned at the start of the file.
func Read(r io.ReadSeeker) (*Pack, error) {
	size, err := stream.Size(r)
	if err != nil {
		return nil, fmt.Errorf("get size: %w", err)
	}

	p := &Pack{}
	if p.ID, err = stream.ReadInt[uint32](r); err != nil {
		return nil, fmt.Errorf("read id: %w", err)
	}
	count, err := stream.ReadInt[uint32](r)
	if err != nil {
		return nil, fmt.Errorf("read entry count: %w", err)
	}
	if int64(count)*4 > size-8 {
		return nil, fmt.Errorf("entry count %d exceeds file size %d: %w", count, size, io.ErrUnexpectedEOF)
	}

	offsets := make([]uint32, count)
	for i := range offsets {
		if offsets[i], err = stream.ReadInt[uint32](r); err != nil {
			return nil, fmt.Errorf("read offset %d: %w", i, err)
		}
	}

	p.Entries = make([]Entry, 0, count)
	for i, off := range offsets {
		if err := stream.SeekTo(r, int64(off)); err != nil {
			return nil, fmt.Errorf("seek entry %d to 0x%x: %w", i, off, err)
		}
		header, err := stream.ReadValue[EntryHeader](r)
		if err != nil {
			return nil, fmt.Errorf("read entry %d header: %w", i, err)
		}
		if int64(off)+EntryHeaderSize+int64(header.Size) > size {
			return nil, fmt.Errorf("entry %d data exceeds file size: %w", i, io.ErrUnexpectedEOF)
		}
		data, err := stream.ReadN(r, int(header.Size))
		if err != nil {
			return nil, fmt.Errorf("read entry %d data: %w", i, err)
		}
		p.Entries = append(p.Entries, Entry{EntryHeader: header, Data: data})
	}

	return p, nil
}

// ReadFile parses the pack stored at path.
func ReadFile(path string) (*Pack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", fix.ErrNotFound, path)
		}
		return nil, fmt.Errorf("read pack: %w", err)
	}

	p, err := Read(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return p, nil
}

// Extract writes every entry to outputDir as <position>.<tga|dds>.
func (p *Pack) Extract(outputDir string, observe fix.Observer) error {
	if len(p.Entries) == 0 {
		return ErrNoEntries
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	for i := range p.Entries {
		e := &p.Entries[i]
		path := filepath.Join(outputDir, archive.FileName(i, e.Extension()))
		if err := os.WriteFile(path, e.Data, 0644); err != nil {
			return fmt.Errorf("write file %s: %w", path, err)
		}
		if observe != nil {
			observe(fix.Event{Kind: fix.EventExtract, Position: i, ID: e.ID, HasID: true, Size: e.Size, Path: path})
		}
	}
	return nil
}
