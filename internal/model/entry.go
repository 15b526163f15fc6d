package model

import "time"

// LogEntry is a structured log record. This is the unit of work flowing
// through every pipeline component.
//
// Level and Message are always present; everything else is best-effort and
// may be zero when the producer did not supply it.
type LogEntry struct {
	Time     time.Time         `json:"timestamp"`
	Level    Level             `json:"level"`
	Message  string            `json:"message"`
	File     string            `json:"file,omitempty"`
	Line     int               `json:"line,omitempty"`
	Function string            `json:"function,omitempty"`
	PID      int               `json:"process_id,omitempty"`
	TID      int               `json:"thread_id,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`

	// Aggregation metadata. Count is zero for ordinary entries; an entry
	// produced by collapsing duplicates carries the original count and the
	// collapsed entries.
	Count     int        `json:"count,omitempty"`
	Originals []LogEntry `json:"original_logs,omitempty"`
}

// NewEntry builds a minimal entry stamped with the current time.
func NewEntry(level, message string) LogEntry {
	return LogEntry{
		Time:    time.Now(),
		Level:   ParseLevel(level),
		Message: message,
	}
}

// Clone returns a deep copy. Components hand copies across boundaries, never
// live references.
func (e LogEntry) Clone() LogEntry {
	out := e
	if e.Extra != nil {
		out.Extra = make(map[string]string, len(e.Extra))
		for k, v := range e.Extra {
			out.Extra[k] = v
		}
	}
	if e.Originals != nil {
		out.Originals = make([]LogEntry, len(e.Originals))
		copy(out.Originals, e.Originals)
	}
	return out
}

// SetExtra attaches a key/value pair, allocating the map on first use.
func (e *LogEntry) SetExtra(key, value string) {
	if e.Extra == nil {
		e.Extra = make(map[string]string, 4)
	}
	e.Extra[key] = value
}
