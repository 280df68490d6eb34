package watcher

import "time"

// Operation is the kind of change seen for a path.
type Operation int

const (
	// OpCreate indicates a new file or directory was created.
	OpCreate Operation = iota
	// OpModify indicates an existing file was written.
	OpModify
	// OpDelete indicates a file or directory was removed or renamed away.
	OpDelete
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one debounced change.
type FileEvent struct {
	// Path is relative to the watched root, with forward slashes.
	Path      string
	Operation Operation
	IsDir     bool
	Timestamp time.Time
}

// Options configures an FSWatcher.
type Options struct {
	// DebounceWindow is how long a path must stay quiet before its event is
	// emitted (0 = 500ms).
	DebounceWindow time.Duration

	// EventBufferSize is the depth of the batch channel (0 = 64).
	EventBufferSize int
}

// WithDefaults fills zero fields.
func (o Options) WithDefaults() Options {
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = 500 * time.Millisecond
	}
	if o.EventBufferSize <= 0 {
		o.EventBufferSize = 64
	}
	return o
}
