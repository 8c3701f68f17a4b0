package fix

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
)

// Record is one payload held by a Container.
type Record struct {
	id      uint32
	hasID   bool
	size    uint32
	offset  uint32
	payload []byte
}

// ID returns the record identifier. A record appended since the last
// rebuild has none.
func (r *Record) ID() (uint32, bool) {
	return r.id, r.hasID
}

// Size returns the payload size recorded in the header. It matches
// len(Payload()) after a rebuild.
func (r *Record) Size() uint32 {
	return r.size
}

// Offset returns the header offset, measured per the container's OffsetBase.
func (r *Record) Offset() uint32 {
	return r.offset
}

// Payload returns the record data. The slice is owned by the record and
// must not be modified.
func (r *Record) Payload() []byte {
	return r.payload
}

// Entry returns the header table row for the record.
func (r *Record) Entry() Entry {
	return Entry{Index: r.id, Size: r.size, Offset: r.offset}
}

// Container is an ordered set of records. The order is the on-disk order.
// A Container is not safe for concurrent use.
type Container struct {
	records []*Record
	opts    options
}

// New creates an empty container.
func New(opts ...Option) *Container {
	return &Container{opts: newOptions(opts)}
}

// OffsetBase returns the base used when reading and writing offsets.
func (c *Container) OffsetBase() OffsetBase {
	return c.opts.base
}

// Len returns the number of records.
func (c *Container) Len() int {
	return len(c.records)
}

// Record returns the record at position i.
func (c *Container) Record(i int) *Record {
	return c.records[i]
}

// Records returns the records in sequence order.
func (c *Container) Records() []*Record {
	out := make([]*Record, len(c.records))
	copy(out, c.records)
	return out
}

// HeaderSize returns the byte length of the entry table.
func (c *Container) HeaderSize() int {
	return len(c.records) * EntrySize
}

// Append adds a copy of payload as a new record at the end of the sequence.
// Its identifier, size and offset are assigned by the next Rebuild.
func (c *Container) Append(payload []byte) *Record {
	data := make([]byte, len(payload))
	copy(data, payload)

	rec := &Record{payload: data}
	c.records = append(c.records, rec)
	c.opts.emit(Event{Kind: EventAppend, Position: len(c.records) - 1, Size: uint32(len(data))})
	return rec
}

// AppendFile reads the file at path and appends its contents.
func (c *Container) AppendFile(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	rec := &Record{payload: data}
	c.records = append(c.records, rec)
	c.opts.emit(Event{Kind: EventAdd, Position: len(c.records) - 1, Size: uint32(len(data)), Path: path})
	return rec, nil
}

// Remove deletes the first record whose identifier equals id. Removing an
// identifier that is not present leaves the container unchanged and
// reports false.
func (c *Container) Remove(id uint32) bool {
	for i, rec := range c.records {
		if !rec.hasID || rec.id != id {
			continue
		}
		last := len(c.records) - 1
		copy(c.records[i:], c.records[i+1:])
		c.records[last] = nil
		c.records = c.records[:last]
		c.opts.emit(Event{Kind: EventRemove, Position: i, ID: id, HasID: true, Size: rec.size, Offset: rec.offset})
		return true
	}
	return false
}

// Rebuild recomputes every header field from the current sequence. Any
// previously stored identifier, size or offset is discarded.
func (c *Container) Rebuild() {
	var offset uint32
	if c.opts.base == FileOffsets {
		offset = uint32(c.HeaderSize())
	}

	for i, rec := range c.records {
		rec.id = uint32(i)
		rec.hasID = true
		rec.size = uint32(len(rec.payload))
		rec.offset = offset
		offset += rec.size
		c.opts.emit(Event{Kind: EventRebuild, Position: i, ID: rec.id, HasID: true, Size: rec.size, Offset: rec.offset})
	}
}

// WriteTo rebuilds the header and writes the container to w.
func (c *Container) WriteTo(w io.Writer) (int64, error) {
	if err := c.checkWritable(); err != nil {
		return 0, err
	}
	c.Rebuild()

	var written int64
	buf := make([]byte, EntrySize)
	for i, rec := range c.records {
		entry := rec.Entry()
		entry.EncodeTo(buf)
		n, err := w.Write(buf)
		written += int64(n)
		if err != nil {
			return written, fmt.Errorf("write entry %d: %w", i, err)
		}
	}

	for i, rec := range c.records {
		n, err := w.Write(rec.payload)
		written += int64(n)
		if err != nil {
			return written, fmt.Errorf("write payload %d: %w", i, err)
		}
	}

	return written, nil
}

// checkWritable reports whether the container can be written in a form
// Parse accepts.
func (c *Container) checkWritable() error {
	if n := len(c.records); n > MaxRecords {
		return fmt.Errorf("%w: %d exceeds %d", ErrTooManyRecords, n, MaxRecords)
	}
	if size := c.Size(); size > math.MaxUint32 {
		return fmt.Errorf("container too large: %d bytes exceeds %d", size, uint32(math.MaxUint32))
	}
	return nil
}

// Size returns the serialized length of the container.
func (c *Container) Size() int64 {
	size := int64(c.HeaderSize())
	for _, rec := range c.records {
		size += int64(len(rec.payload))
	}
	return size
}

// MarshalBinary rebuilds the header and encodes the container.
func (c *Container) MarshalBinary() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, c.Size()))
	if _, err := c.WriteTo(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile rebuilds c and writes it to path, replacing any existing file.
// A container too large to write is rejected before path is touched. A
// failed write leaves path in an undefined state.
func WriteFile(path string, c *Container) (err error) {
	if err := c.checkWritable(); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close file: %w", cerr)
		}
	}()

	bw := bufio.NewWriter(f)
	if _, err := c.WriteTo(bw); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}
