package fix

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/edsrzf/mmap-go"

	"github.com/goopsie/fixTools/internal/stream"
)

// Parse reads a container from r, which must be positioned at the start of
// the file. Every payload is loaded into memory; on error no container is
// returned.
func Parse(r io.ReadSeeker, opts ...Option) (*Container, error) {
	c := New(opts...)

	end, err := stream.Size(r)
	if err != nil {
		return nil, fmt.Errorf("get size: %w", err)
	}

	entries, err := scanTable(r, &c.opts, end)
	if err != nil {
		return nil, err
	}

	tableLen := int64(len(entries)) * EntrySize
	c.records = make([]*Record, 0, len(entries))
	for i, e := range entries {
		start := e.start(c.opts.base, tableLen)
		if start+int64(e.Size) > end {
			return nil, fmt.Errorf("%w: record %d needs %d bytes at 0x%x, source is %d bytes",
				ErrTruncated, i, e.Size, start, end)
		}
		if _, err := r.Seek(start, io.SeekStart); err != nil {
			return nil, fmt.Errorf("seek record %d: %w", i, err)
		}
		payload, err := stream.ReadN(r, int(e.Size))
		if err != nil {
			if stream.IsShort(err) {
				return nil, fmt.Errorf("%w: record %d: %v", ErrTruncated, i, err)
			}
			return nil, fmt.Errorf("read record %d: %w", i, err)
		}

		c.records = append(c.records, &Record{
			id:      e.Index,
			hasID:   true,
			size:    e.Size,
			offset:  e.Offset,
			payload: payload,
		})
		c.opts.emit(Event{Kind: EventLoad, Position: i, ID: e.Index, HasID: true, Size: e.Size, Offset: e.Offset})
	}

	return c, nil
}

// scanTable reads header entries until the table terminator. The table ends
// at the DDS signature of the first payload. Without one, it ends where the
// earliest declared payload begins for file-relative offsets, and for
// payload-relative offsets once the entries read so far lay out contiguous
// payloads that exactly fill the rest of a source of end bytes.
func scanTable(r io.ReadSeeker, o *options, end int64) ([]Entry, error) {
	var (
		entries      []Entry
		buf          [EntrySize]byte
		payloadStart int64 = -1
		// next is the offset a contiguous payload layout expects for the
		// following entry; -1 once the layout is broken.
		next int64
	)

	for i := 0; i < MaxEntries; i++ {
		pos := int64(i) * EntrySize
		if pos > 0 && pos == payloadStart {
			return entries, nil
		}

		if _, err := io.ReadFull(r, buf[:4]); err != nil {
			return nil, scanError(i, err)
		}
		if binary.LittleEndian.Uint32(buf[:4]) == Sentinel {
			// Leave the signature for the payload reader.
			if _, err := r.Seek(-4, io.SeekCurrent); err != nil {
				return nil, fmt.Errorf("rewind sentinel: %w", err)
			}
			return entries, nil
		}
		if _, err := io.ReadFull(r, buf[4:]); err != nil {
			return nil, scanError(i, err)
		}

		var e Entry
		e.DecodeFrom(buf[:])
		entries = append(entries, e)
		o.emit(Event{Kind: EventEntry, Position: i, ID: e.Index, HasID: true, Size: e.Size, Offset: e.Offset})

		switch o.base {
		case FileOffsets:
			if payloadStart < 0 || int64(e.Offset) < payloadStart {
				payloadStart = int64(e.Offset)
			}
		case PayloadOffsets:
			if next >= 0 && int64(e.Offset) == next {
				next += int64(e.Size)
			} else {
				next = -1
			}
			if next >= 0 && int64(len(entries))*EntrySize+next == end {
				return entries, nil
			}
		}
	}

	return nil, fmt.Errorf("%w: no terminator within %d entries", ErrMalformedHeader, MaxEntries)
}

func scanError(i int, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: header entry %d", ErrTruncated, i)
	}
	return fmt.Errorf("read header entry %d: %w", i, err)
}

// ParseBytes parses a container held in memory.
func ParseBytes(data []byte, opts ...Option) (*Container, error) {
	return Parse(bytes.NewReader(data), opts...)
}

// ReadFile parses the container stored at path. The file is mapped
// read-only for the duration of the parse; payloads are copied out.
func ReadFile(path string, opts ...Option) (*Container, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("stat: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrTruncated, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("map %s: %w", path, err)
	}
	defer m.Unmap()

	c, err := ParseBytes(m, opts...)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return c, nil
}
