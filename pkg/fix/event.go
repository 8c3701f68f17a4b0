package fix

import "fmt"

// EventKind identifies what an Event reports.
type EventKind int

const (
	EventEntry   EventKind = iota // header entry scanned
	EventLoad                     // payload read from the source
	EventAppend                   // record appended
	EventRemove                   // record removed
	EventRebuild                  // record header fields recomputed
	EventExtract                  // payload written to Path
	EventAdd                      // file at Path appended as a record
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case EventEntry:
		return "entry"
	case EventLoad:
		return "load"
	case EventAppend:
		return "append"
	case EventRemove:
		return "remove"
	case EventRebuild:
		return "rebuild"
	case EventExtract:
		return "extract"
	case EventAdd:
		return "add"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is a progress report about a single record.
type Event struct {
	Kind     EventKind
	Position int    // Position in the container sequence
	ID       uint32 // Record identifier, valid when HasID is set
	HasID    bool
	Size     uint32
	Offset   uint32
	Path     string // File involved, if any
}

// String returns a human-readable representation.
func (e Event) String() string {
	id := "-"
	if e.HasID {
		id = fmt.Sprint(e.ID)
	}
	s := fmt.Sprintf("%s[%d] id=%s [0x%x:0x%x]", e.Kind, e.Position, id, e.Offset, e.Size)
	if e.Path != "" {
		s += " " + e.Path
	}
	return s
}

// Observer receives progress events. It is called synchronously.
type Observer func(Event)

// Option configures a Container or a parse.
type Option func(*options)

type options struct {
	base     OffsetBase
	observer Observer
}

// WithOffsetBase sets how entry offsets are read and written.
// The default is FileOffsets.
func WithOffsetBase(base OffsetBase) Option {
	return func(o *options) {
		o.base = base
	}
}

// WithObserver registers a callback for progress events.
func WithObserver(fn Observer) Option {
	return func(o *options) {
		o.observer = fn
	}
}

func newOptions(opts []Option) options {
	o := options{base: FileOffsets}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o *options) emit(e Event) {
	if o.observer != nil {
		o.observer(e)
	}
}
