// Package udas reads Udas segment containers.
//
// Layout: an opaque 0x400-byte header, a segment count, 12 bytes of
// padding, one offset per segment (relative to the end of the header),
// then one 4-byte tag per segment: three ASCII characters and a NUL.
// A segment runs from its offset to the next segment's offset; the last
// one runs to the end of the file.
package udas

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

// HeaderSize is the size of the opaque leading header. Segment offsets are
// stored relative to its end.
const HeaderSize = 0x400

const (
	tagSize     = 4
	paddingSize = 0xC
)

// ErrNoSegments is returned when extracting a file with no segments.
var ErrNoSegments = errors.New("no segments loaded")

// Segment is one tagged region of a Udas file.
type Segment struct {
	Tag    string
	Offset int64 // Absolute file offset
	Data   []byte
}

// Udas is a parsed Udas file.
type Udas struct {
	Header   []byte
	Segments []Segment
}

// Read parses a Udas file from r, positioned at the start of the file.
func Read(r io.ReadSeeker) (*Udas, error) {
	size, err := stream.Size(r)
	if err != nil {
		return nil, fmt.Errorf("get size: %w", err)
	}

	u := &Udas{}
	if u.Header, err = stream.ReadN(r, HeaderSize); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	count, err := stream.ReadInt[uint32](r)
	if err != nil {
		return nil, fmt.Errorf("read segment count: %w", err)
	}
	if err := stream.Skip(r, paddingSize); err != nil {
		return nil, fmt.Errorf("skip padding: %w", err)
	}

	tableEnd := int64(HeaderSize+4+paddingSize) + int64(count)*(4+tagSize)
	if tableEnd > size {
		return nil, fmt.Errorf("segment count %d exceeds file size %d: %w", count, size, io.ErrUnexpectedEOF)
	}

	bounds := make([]int64, count+1)
	for i := 0; i < int(count); i++ {
		off, err := stream.ReadInt[uint32](r)
		if err != nil {
			return nil, fmt.Errorf("read offset %d: %w", i, err)
		}
		bounds[i] = int64(off) + HeaderSize
	}
	bounds[count] = size

	for i := 0; i < int(count); i++ {
		if bounds[i] < tableEnd || bounds[i] > bounds[i+1] {
			return nil, fmt.Errorf("segment %d offset 0x%x out of order or range", i, bounds[i])
		}
	}

	u.Segments = make([]Segment, count)
	for i := range u.Segments {
		raw, err := stream.ReadN(r, tagSize)
		if err != nil {
			return nil, fmt.Errorf("read tag %d: %w", i, err)
		}
		tag, err := parseTag(raw)
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}
		u.Segments[i].Tag = tag
	}

	for i := range u.Segments {
		seg := &u.Segments[i]
		seg.Offset = bounds[i]
		if _, err := r.Seek(seg.Offset, io.SeekStart); err != nil {
			return nil, fmt.Errorf("seek segment %d: %w", i, err)
		}
		if seg.Data, err = stream.ReadN(r, int(bounds[i+1]-bounds[i])); err != nil {
			return nil, fmt.Errorf("read segment %d: %w", i, err)
		}
	}

	return u, nil
}

// parseTag decodes a 3-character tag followed by a NUL terminator.
func parseTag(raw []byte) (string, error) {
	name := bytes.TrimRight(raw[:tagSize-1], "\x00 ")
	if len(name) == 0 {
		return "", fmt.Errorf("empty tag")
	}
	for _, c := range name {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_') {
			return "", fmt.Errorf("invalid tag %q", raw)
		}
	}
	return string(name), nil
}

// ReadFile parses the Udas file stored at path.
func ReadFile(path string) (*Udas, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", fix.ErrNotFound, path)
		}
		return nil, fmt.Errorf("read udas: %w", err)
	}

	u, err := Read(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return u, nil
}

// Extract writes every segment to outputDir as <position>.<tag>.
func (u *Udas) Extract(outputDir string, observe fix.Observer) error {
	if len(u.Segments) == 0 {
		return ErrNoSegments
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	for i, seg := range u.Segments {
		path := filepath.Join(outputDir, archive.FileName(i, seg.Tag))
		if err := os.WriteFile(path, seg.Data, 0644); err != nil {
			return fmt.Errorf("write file %s: %w", path, err)
		}
		if observe != nil {
			observe(fix.Event{Kind: fix.EventExtract, Position: i, Size: uint32(len(seg.Data)), Offset: uint32(seg.Offset), Path: path})
		}
	}
	return nil
}
