// Package fix reads, edits and writes Fix texture containers.
//
// A Fix file is a table of 12-byte entries (index, size, offset) followed
// by the concatenated payloads. The table carries no count: it ends where
// the first payload begins, which in shipped archives is the signature
// of a DDS image.
package fix

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/goopsie/fixTools/pkg/texture"
)

// Sentinel is the 4-byte value that ends the entry table ("DDS ").
const Sentinel = texture.DDS_MAGIC

// EntrySize is the binary size of one header table entry.
const EntrySize = 12 // 4 + 4 + 4 bytes

// MaxEntries bounds the header scan. There is no count field, so this is
// the only guard against scanning a corrupt file forever.
const MaxEntries = 0x100

// MaxRecords is the largest container that can be written and read back:
// the terminator itself must fall within the MaxEntries bound.
const MaxRecords = MaxEntries - 1

var (
	// ErrNotFound is returned when a source file does not exist.
	ErrNotFound = errors.New("file not found")
	// ErrMalformedHeader is returned when no table terminator is found
	// within MaxEntries entries.
	ErrMalformedHeader = errors.New("malformed header")
	// ErrTruncated is returned when the source ends inside an entry or a payload.
	ErrTruncated = errors.New("truncated read")
	// ErrTooManyRecords is returned when writing a container whose table
	// would not be terminated within MaxEntries entries.
	ErrTooManyRecords = errors.New("too many records")
)

// OffsetBase selects what an entry offset is measured from.
type OffsetBase int

const (
	// FileOffsets count from the first byte of the file, header included.
	FileOffsets OffsetBase = iota
	// PayloadOffsets count from the first byte after the entry table.
	PayloadOffsets
)

// String returns the offset base name.
func (b OffsetBase) String() string {
	switch b {
	case FileOffsets:
		return "file"
	case PayloadOffsets:
		return "payload"
	default:
		return fmt.Sprintf("OffsetBase(%d)", int(b))
	}
}

// Entry is one row of the header table as stored on disk.
type Entry struct {
	Index  uint32
	Size   uint32
	Offset uint32
}

// EncodeTo writes the entry to the given buffer.
// The buffer must be at least EntrySize bytes.
func (e *Entry) EncodeTo(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], e.Index)
	binary.LittleEndian.PutUint32(buf[4:8], e.Size)
	binary.LittleEndian.PutUint32(buf[8:12], e.Offset)
}

// DecodeFrom reads the entry from the given buffer.
func (e *Entry) DecodeFrom(buf []byte) {
	e.Index = binary.LittleEndian.Uint32(buf[0:4])
	e.Size = binary.LittleEndian.Uint32(buf[4:8])
	e.Offset = binary.LittleEndian.Uint32(buf[8:12])
}

// MarshalBinary encodes the entry to binary format.
func (e *Entry) MarshalBinary() ([]byte, error) {
	buf := make([]byte, EntrySize)
	e.EncodeTo(buf)
	return buf, nil
}

// UnmarshalBinary decodes the entry from binary format.
func (e *Entry) UnmarshalBinary(data []byte) error {
	if len(data) < EntrySize {
		return fmt.Errorf("entry data too short: need %d, got %d", EntrySize, len(data))
	}
	e.DecodeFrom(data)
	return nil
}

// start returns the absolute file position of the entry's payload for a
// table of tableLen bytes.
func (e *Entry) start(base OffsetBase, tableLen int64) int64 {
	if base == PayloadOffsets {
		return tableLen + int64(e.Offset)
	}
	return int64(e.Offset)
}
