package archive

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/goopsie/fixTools/pkg/fix"
	"github.com/goopsie/fixTools/pkg/texture"
)

// Entry describes one record of a container.
type Entry struct {
	Position int
	ID       uint32
	HasID    bool
	Size     uint32
	Offset   uint32
	Digest   [blake2b.Size256]byte
	Texture  *texture.Header // nil unless the payload is a readable DDS image
}

// DigestString returns the payload digest in hex.
func (e *Entry) DigestString() string {
	return hex.EncodeToString(e.Digest[:])
}

// String returns a human-readable representation.
func (e *Entry) String() string {
	id := "-"
	if e.HasID {
		id = fmt.Sprint(e.ID)
	}
	s := fmt.Sprintf("%4d  id=%-4s offset=0x%08x size=%-10d blake2b=%s", e.Position, id, e.Offset, e.Size, e.DigestString()[:16])
	if e.Texture != nil {
		s += "  " + e.Texture.String()
	}
	return s
}

// Summarize describes every record of c with its header fields as they
// currently stand, a BLAKE2b-256 digest of the payload and, for DDS
// payloads, the texture dimensions.
func Summarize(c *fix.Container) []Entry {
	entries := make([]Entry, 0, c.Len())
	for i, rec := range c.Records() {
		id, hasID := rec.ID()
		e := Entry{
			Position: i,
			ID:       id,
			HasID:    hasID,
			Size:     rec.Size(),
			Offset:   rec.Offset(),
			Digest:   blake2b.Sum256(rec.Payload()),
		}

		if texture.IsDDS(rec.Payload()) {
			h := &texture.Header{}
			if err := h.UnmarshalBinary(rec.Payload()); err == nil {
				e.Texture = h
			}
		}
		entries = append(entries, e)
	}
	return entries
}
