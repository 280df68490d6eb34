package logging

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
)

// Entry is one parsed log line.
type Entry struct {
	Time    string
	Level   string
	Msg     string
	Attrs   map[string]any
	Raw     string
	invalid bool
}

// ParseLine decodes a JSON log line. Lines that are not JSON are kept raw.
func ParseLine(line string) Entry {
	var fields map[string]any
	if err := json.Unmarshal([]byte(line), &fields); err != nil {
		return Entry{Raw: line, invalid: true}
	}
	e := Entry{Raw: line, Attrs: make(map[string]any)}
	for k, v := range fields {
		switch k {
		case slog.TimeKey:
			e.Time, _ = v.(string)
		case slog.LevelKey:
			e.Level, _ = v.(string)
		case slog.MessageKey:
			e.Msg, _ = v.(string)
		default:
			e.Attrs[k] = v
		}
	}
	return e
}

// AtLeast reports whether the entry's level is at or above min. Raw lines
// always pass.
func (e Entry) AtLeast(min slog.Level) bool {
	if e.invalid {
		return true
	}
	return LevelFromString(e.Level) >= min
}

// String renders the entry as "time LEVEL msg k=v ...", attrs sorted by key.
func (e Entry) String() string {
	if e.invalid {
		return e.Raw
	}
	var b strings.Builder
	ts := e.Time
	if len(ts) >= 19 {
		ts = strings.Replace(ts[:19], "T", " ", 1)
	}
	fmt.Fprintf(&b, "%s %-5s %s", ts, e.Level, e.Msg)

	keys := make([]string, 0, len(e.Attrs))
	for k := range e.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Attrs[k])
	}
	return b.String()
}

// Tail returns the last n entries of the log at path whose level is at
// least min. n <= 0 returns every matching entry.
func Tail(path string, n int, min slog.Level) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var entries []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if e := ParseLine(line); e.AtLeast(min) {
			entries = append(entries, e)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}
	if n > 0 && len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	return entries, nil
}
