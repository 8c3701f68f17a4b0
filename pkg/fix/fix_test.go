package fix

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// ddsPayload returns a payload that starts with the DDS signature.
func ddsPayload(body string) []byte {
	return append([]byte("DDS "), body...)
}

func entryBytes(entries ...Entry) []byte {
	var buf []byte
	for _, e := range entries {
		b, _ := e.MarshalBinary()
		buf = append(buf, b...)
	}
	return buf
}

func TestEntry(t *testing.T) {
	t.Run("MarshalUnmarshal", func(t *testing.T) {
		original := &Entry{Index: 7, Size: 1024, Offset: 0x400}

		data, err := original.MarshalBinary()
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if len(data) != EntrySize {
			t.Fatalf("entry size: got %d, want %d", len(data), EntrySize)
		}

		decoded := &Entry{}
		if err := decoded.UnmarshalBinary(data); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if *decoded != *original {
			t.Errorf("mismatch: got %+v, want %+v", decoded, original)
		}
	})

	t.Run("LittleEndian", func(t *testing.T) {
		data, _ := (&Entry{Index: 1, Size: 2, Offset: 3}).MarshalBinary()
		want := []byte{1, 0, 0, 0, 2, 0, 0, 0, 3, 0, 0, 0}
		if !bytes.Equal(data, want) {
			t.Errorf("got % x, want % x", data, want)
		}
	})

	t.Run("TooShort", func(t *testing.T) {
		if err := (&Entry{}).UnmarshalBinary(make([]byte, 8)); err == nil {
			t.Error("expected error for short entry")
		}
	})
}

func TestBuildScenario(t *testing.T) {
	t.Run("FileOffsets", func(t *testing.T) {
		c := New()
		c.Append([]byte("AAA"))
		c.Append([]byte("BB"))

		data, err := c.MarshalBinary()
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}

		want := entryBytes(Entry{0, 3, 24}, Entry{1, 2, 27})
		want = append(want, "AAABB"...)
		if !bytes.Equal(data, want) {
			t.Fatalf("got % x, want % x", data, want)
		}

		parsed, err := ParseBytes(data)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if parsed.Len() != 2 {
			t.Fatalf("records: got %d, want 2", parsed.Len())
		}
		if got := string(parsed.Record(0).Payload()); got != "AAA" {
			t.Errorf("record 0: got %q, want AAA", got)
		}
		if got := string(parsed.Record(1).Payload()); got != "BB" {
			t.Errorf("record 1: got %q, want BB", got)
		}
	})

	t.Run("PayloadOffsets", func(t *testing.T) {
		c := New(WithOffsetBase(PayloadOffsets))
		c.Append([]byte("AAA"))
		c.Append([]byte("BB"))

		data, err := c.MarshalBinary()
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}

		want := entryBytes(Entry{0, 3, 0}, Entry{1, 2, 3})
		want = append(want, "AAABB"...)
		if !bytes.Equal(data, want) {
			t.Fatalf("got % x, want % x", data, want)
		}

		parsed, err := ParseBytes(data, WithOffsetBase(PayloadOffsets))
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if parsed.Len() != 2 {
			t.Fatalf("records: got %d, want 2", parsed.Len())
		}
		if got := string(parsed.Record(0).Payload()); got != "AAA" {
			t.Errorf("record 0: got %q, want AAA", got)
		}
		if got := string(parsed.Record(1).Payload()); got != "BB" {
			t.Errorf("record 1: got %q, want BB", got)
		}
	})
}

func TestRoundTrip(t *testing.T) {
	sets := map[string][][]byte{
		"DDS": {
			ddsPayload("first texture"),
			ddsPayload(""),
			ddsPayload("third, somewhat longer texture body"),
			{},
		},
		"Raw": {
			[]byte("not a texture"),
			{},
			[]byte("x"),
			ddsPayload("late signature"),
		},
		"EmptyFirst": {
			{},
			[]byte("after an empty record"),
		},
	}

	for _, base := range []OffsetBase{FileOffsets, PayloadOffsets} {
		for name, payloads := range sets {
			t.Run(base.String()+"/"+name, func(t *testing.T) {
				c := New(WithOffsetBase(base))
				for _, p := range payloads {
					c.Append(p)
				}

				data, err := c.MarshalBinary()
				if err != nil {
					t.Fatalf("marshal: %v", err)
				}

				parsed, err := ParseBytes(data, WithOffsetBase(base))
				if err != nil {
					t.Fatalf("parse: %v", err)
				}
				if parsed.Len() != len(payloads) {
					t.Fatalf("records: got %d, want %d", parsed.Len(), len(payloads))
				}
				for i, rec := range parsed.Records() {
					if !bytes.Equal(rec.Payload(), payloads[i]) {
						t.Errorf("record %d payload: got %q, want %q", i, rec.Payload(), payloads[i])
					}
					id, ok := rec.ID()
					if !ok || id != uint32(i) {
						t.Errorf("record %d id: got %d (%v), want %d", i, id, ok, i)
					}
				}
			})
		}
	}
}

func TestRecordLimit(t *testing.T) {
	fill := func(base OffsetBase, n int) *Container {
		c := New(WithOffsetBase(base))
		for i := 0; i < n; i++ {
			c.Append([]byte{byte(i)})
		}
		return c
	}

	for _, base := range []OffsetBase{FileOffsets, PayloadOffsets} {
		t.Run(base.String()+"/Largest", func(t *testing.T) {
			data, err := fill(base, MaxRecords).MarshalBinary()
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			parsed, err := ParseBytes(data, WithOffsetBase(base))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if parsed.Len() != MaxRecords {
				t.Errorf("records: got %d, want %d", parsed.Len(), MaxRecords)
			}
		})

		t.Run(base.String()+"/TooMany", func(t *testing.T) {
			var buf bytes.Buffer
			n, err := fill(base, MaxRecords+1).WriteTo(&buf)
			if !errors.Is(err, ErrTooManyRecords) {
				t.Errorf("got %v, want ErrTooManyRecords", err)
			}
			if n != 0 || buf.Len() != 0 {
				t.Errorf("wrote %d bytes before failing", buf.Len())
			}
		})
	}

	t.Run("WriteFileUntouched", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "big.fix")
		if err := WriteFile(path, fill(FileOffsets, MaxEntries)); !errors.Is(err, ErrTooManyRecords) {
			t.Errorf("got %v, want ErrTooManyRecords", err)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("file should not exist: %v", err)
		}
	})
}

func TestRebuild(t *testing.T) {
	newContainer := func(base OffsetBase) *Container {
		c := New(WithOffsetBase(base))
		for _, s := range []string{"one", "", "three", "four!"} {
			c.Append([]byte(s))
		}
		return c
	}

	t.Run("Invariant", func(t *testing.T) {
		for _, base := range []OffsetBase{FileOffsets, PayloadOffsets} {
			c := newContainer(base)
			c.Rebuild()

			first := uint32(c.Len() * EntrySize)
			if base == PayloadOffsets {
				first = 0
			}
			if got := c.Record(0).Offset(); got != first {
				t.Errorf("%s: first offset got %d, want %d", base, got, first)
			}
			for i := 0; i < c.Len(); i++ {
				rec := c.Record(i)
				if id, ok := rec.ID(); !ok || id != uint32(i) {
					t.Errorf("%s: record %d id got %d (%v)", base, i, id, ok)
				}
				if rec.Size() != uint32(len(rec.Payload())) {
					t.Errorf("%s: record %d size got %d, want %d", base, i, rec.Size(), len(rec.Payload()))
				}
				if i+1 < c.Len() {
					next := c.Record(i + 1)
					if next.Offset() != rec.Offset()+rec.Size() {
						t.Errorf("%s: record %d offset got %d, want %d", base, i+1, next.Offset(), rec.Offset()+rec.Size())
					}
				}
			}
		}
	})

	t.Run("Idempotent", func(t *testing.T) {
		c := newContainer(FileOffsets)
		c.Rebuild()
		first := make([]Entry, c.Len())
		for i, rec := range c.Records() {
			first[i] = rec.Entry()
		}

		c.Rebuild()
		for i, rec := range c.Records() {
			if rec.Entry() != first[i] {
				t.Errorf("record %d: got %+v, want %+v", i, rec.Entry(), first[i])
			}
		}
	})

	t.Run("DiscardsParsedFields", func(t *testing.T) {
		// Stale ids, and a gap between the two payloads.
		data := entryBytes(Entry{40, 8, 24}, Entry{41, 4, 40})
		data = append(data, ddsPayload("ABCD")...)
		data = append(data, make([]byte, 8)...)
		data = append(data, "XXXX"...)

		c, err := ParseBytes(data)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		c.Rebuild()

		want := []Entry{{0, 8, 24}, {1, 4, 32}}
		for i, rec := range c.Records() {
			if rec.Entry() != want[i] {
				t.Errorf("record %d: got %+v, want %+v", i, rec.Entry(), want[i])
			}
		}
	})
}

func TestAppend(t *testing.T) {
	t.Run("Unassigned", func(t *testing.T) {
		c := New()
		rec := c.Append([]byte("payload"))
		if _, ok := rec.ID(); ok {
			t.Error("appended record should have no id before rebuild")
		}

		c.Rebuild()
		if id, ok := rec.ID(); !ok || id != 0 {
			t.Errorf("id after rebuild: got %d (%v), want 0", id, ok)
		}
	})

	t.Run("CopiesPayload", func(t *testing.T) {
		src := []byte("abc")
		c := New()
		rec := c.Append(src)
		src[0] = 'z'
		if string(rec.Payload()) != "abc" {
			t.Errorf("payload aliased caller buffer: got %q", rec.Payload())
		}
	})

	t.Run("EmptyPayload", func(t *testing.T) {
		c := New()
		c.Append(nil)
		c.Rebuild()
		if c.Record(0).Size() != 0 {
			t.Errorf("size: got %d, want 0", c.Record(0).Size())
		}
	})

	t.Run("File", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "0.dds")
		if err := os.WriteFile(path, ddsPayload("file"), 0644); err != nil {
			t.Fatal(err)
		}

		c := New()
		if _, err := c.AppendFile(path); err != nil {
			t.Fatalf("append file: %v", err)
		}
		if !bytes.Equal(c.Record(0).Payload(), ddsPayload("file")) {
			t.Errorf("payload: got %q", c.Record(0).Payload())
		}

		if _, err := c.AppendFile(filepath.Join(dir, "missing.dds")); !errors.Is(err, ErrNotFound) {
			t.Errorf("missing file: got %v, want ErrNotFound", err)
		}
		if c.Len() != 1 {
			t.Errorf("records: got %d, want 1", c.Len())
		}
	})
}

func TestRemove(t *testing.T) {
	build := func() *Container {
		c := New()
		for _, s := range []string{"a", "bb", "ccc"} {
			c.Append([]byte(s))
		}
		c.Rebuild()
		return c
	}

	t.Run("Present", func(t *testing.T) {
		c := build()
		if !c.Remove(1) {
			t.Fatal("expected removal")
		}
		if c.Len() != 2 {
			t.Fatalf("records: got %d, want 2", c.Len())
		}

		c.Rebuild()
		want := []string{"a", "ccc"}
		for i, rec := range c.Records() {
			if id, _ := rec.ID(); id != uint32(i) {
				t.Errorf("record %d id: got %d", i, id)
			}
			if string(rec.Payload()) != want[i] {
				t.Errorf("record %d payload: got %q, want %q", i, rec.Payload(), want[i])
			}
		}
	})

	t.Run("Absent", func(t *testing.T) {
		c := build()
		if c.Remove(9) {
			t.Error("removing an absent id should report false")
		}
		if c.Len() != 3 {
			t.Errorf("records: got %d, want 3", c.Len())
		}
		for i, want := range []string{"a", "bb", "ccc"} {
			if string(c.Record(i).Payload()) != want {
				t.Errorf("record %d changed: %q", i, c.Record(i).Payload())
			}
		}
	})

	t.Run("ReleasesRecord", func(t *testing.T) {
		c := build()
		c.Remove(0)
		if tail := c.records[:3][2]; tail != nil {
			t.Errorf("vacated slot still holds %q", tail.Payload())
		}
	})

	t.Run("IgnoresUnassigned", func(t *testing.T) {
		c := New()
		c.Append([]byte("new"))
		if c.Remove(0) {
			t.Error("record without id must not match")
		}
	})

	t.Run("ParsedThenRebuilt", func(t *testing.T) {
		src := New()
		src.Append(ddsPayload("first"))
		src.Append(ddsPayload("second"))
		data, err := src.MarshalBinary()
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}

		c, err := ParseBytes(data)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		c.Remove(0)
		c.Rebuild()

		if c.Len() != 1 {
			t.Fatalf("records: got %d, want 1", c.Len())
		}
		want := Entry{Index: 0, Size: uint32(len(ddsPayload("second"))), Offset: 12}
		if got := c.Record(0).Entry(); got != want {
			t.Errorf("entry: got %+v, want %+v", got, want)
		}
	})
}

func TestParse(t *testing.T) {
	t.Run("Sentinel", func(t *testing.T) {
		// Absolute offsets as found in shipped archives; the first payload
		// carries the DDS signature that ends the table.
		first := ddsPayload("one")
		second := ddsPayload("two!")
		table := entryBytes(
			Entry{0, uint32(len(first)), 24},
			Entry{1, uint32(len(second)), 24 + uint32(len(first))},
		)
		data := append(table, first...)
		data = append(data, second...)

		var events []Event
		c, err := ParseBytes(data, WithObserver(func(e Event) { events = append(events, e) }))
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if c.Len() != 2 {
			t.Fatalf("records: got %d, want 2", c.Len())
		}
		if !bytes.Equal(c.Record(1).Payload(), second) {
			t.Errorf("record 1: got %q, want %q", c.Record(1).Payload(), second)
		}
		if len(events) != 4 {
			t.Errorf("events: got %d, want 4", len(events))
		}
	})

	t.Run("SentinelOnly", func(t *testing.T) {
		c, err := ParseBytes(ddsPayload("orphan"))
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if c.Len() != 0 {
			t.Errorf("records: got %d, want 0", c.Len())
		}
	})

	t.Run("NoSentinel", func(t *testing.T) {
		var data []byte
		for i := 0; i < MaxEntries+10; i++ {
			data = append(data, entryBytes(Entry{uint32(i), 0, 0xFFFFFF})...)
		}
		_, err := ParseBytes(data)
		if !errors.Is(err, ErrMalformedHeader) {
			t.Errorf("got %v, want ErrMalformedHeader", err)
		}
	})

	t.Run("BoundIsExact", func(t *testing.T) {
		var data []byte
		for i := 0; i < MaxEntries; i++ {
			data = append(data, entryBytes(Entry{uint32(i), 0, 0xFFFFFF})...)
		}
		data = append(data, ddsPayload("")...)
		if _, err := ParseBytes(data); !errors.Is(err, ErrMalformedHeader) {
			t.Errorf("got %v, want ErrMalformedHeader", err)
		}
	})

	t.Run("TruncatedTable", func(t *testing.T) {
		data := entryBytes(Entry{0, 4, 12})[:8]
		if _, err := ParseBytes(data); !errors.Is(err, ErrTruncated) {
			t.Errorf("got %v, want ErrTruncated", err)
		}
	})

	t.Run("TruncatedPayload", func(t *testing.T) {
		data := entryBytes(Entry{0, 64, 12})
		data = append(data, ddsPayload("short")...)
		c, err := ParseBytes(data)
		if !errors.Is(err, ErrTruncated) {
			t.Errorf("got %v, want ErrTruncated", err)
		}
		if c != nil {
			t.Error("no container should be returned on failure")
		}
	})

	t.Run("Empty", func(t *testing.T) {
		if _, err := ParseBytes(nil); !errors.Is(err, ErrTruncated) {
			t.Errorf("got %v, want ErrTruncated", err)
		}
	})

	t.Run("PayloadBase", func(t *testing.T) {
		first := ddsPayload("rel")
		data := entryBytes(Entry{5, uint32(len(first)), 0})
		data = append(data, first...)

		c, err := ParseBytes(data, WithOffsetBase(PayloadOffsets))
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if id, _ := c.Record(0).ID(); id != 5 {
			t.Errorf("id: got %d, want 5", id)
		}
		if !bytes.Equal(c.Record(0).Payload(), first) {
			t.Errorf("payload: got %q", c.Record(0).Payload())
		}
	})

	t.Run("PayloadBaseGap", func(t *testing.T) {
		// Payloads that do not exactly fill the file leave the table
		// unterminated.
		data := entryBytes(Entry{0, 3, 0}, Entry{1, 2, 4})
		data = append(data, "AAA-BB"...)
		if _, err := ParseBytes(data, WithOffsetBase(PayloadOffsets)); !errors.Is(err, ErrTruncated) {
			t.Errorf("got %v, want ErrTruncated", err)
		}
	})

	t.Run("SentinelLeftUnconsumed", func(t *testing.T) {
		data := entryBytes(Entry{0, 4, 12})
		data = append(data, ddsPayload("")...)

		r := bytes.NewReader(data)
		o := newOptions([]Option{WithOffsetBase(PayloadOffsets)})
		entries, err := scanTable(r, &o, int64(len(data)))
		if err != nil {
			t.Fatalf("scan: %v", err)
		}
		if len(entries) != 1 {
			t.Fatalf("entries: got %d, want 1", len(entries))
		}
		if r.Len() != 4 {
			t.Errorf("unread bytes: got %d, want 4", r.Len())
		}
		rest := make([]byte, 4)
		r.Read(rest)
		if binary.LittleEndian.Uint32(rest) != Sentinel {
			t.Errorf("next bytes: got % x", rest)
		}
	})
}

func TestFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "textures.fix")

	c := New()
	c.Append(ddsPayload("alpha"))
	c.Append(ddsPayload("beta"))
	if err := WriteFile(path, c); err != nil {
		t.Fatalf("write: %v", err)
	}

	loaded, err := ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if loaded.Len() != 2 {
		t.Fatalf("records: got %d, want 2", loaded.Len())
	}
	if !bytes.Equal(loaded.Record(0).Payload(), ddsPayload("alpha")) {
		t.Errorf("record 0: got %q", loaded.Record(0).Payload())
	}

	t.Run("NotFound", func(t *testing.T) {
		if _, err := ReadFile(filepath.Join(dir, "missing.fix")); !errors.Is(err, ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
	})

	t.Run("EmptyFile", func(t *testing.T) {
		empty := filepath.Join(dir, "empty.fix")
		if err := os.WriteFile(empty, nil, 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := ReadFile(empty); !errors.Is(err, ErrTruncated) {
			t.Errorf("got %v, want ErrTruncated", err)
		}
	})
}

func TestEventString(t *testing.T) {
	e := Event{Kind: EventRebuild, Position: 2, ID: 2, HasID: true, Size: 16, Offset: 0x30}
	if got, want := e.String(), "rebuild[2] id=2 [0x30:0x10]"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	e = Event{Kind: EventAppend, Position: 0, Size: 1, Path: "a.dds"}
	if got, want := e.String(), "append[0] id=- [0x0:0x1] a.dds"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
