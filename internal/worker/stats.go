package worker

import (
	"sync"
	"time"
)

// StatsSnapshot is an immutable copy of worker counters.
type StatsSnapshot struct {
	Processed   int64         `json:"processed"`
	Indexed     int64         `json:"indexed"`
	Skipped     int64         `json:"skipped"`
	Removed     int64         `json:"removed"`
	Failed      int64         `json:"failed"`
	EmbedCalls  int64         `json:"embed_calls"`
	EmbedTime   time.Duration `json:"embed_nanos"`
	LastError   string        `json:"last_error,omitempty"`
	LastEventAt time.Time     `json:"last_event_at,omitzero"`
}

// AvgEmbed returns the mean embedding time per indexed file.
func (s StatsSnapshot) AvgEmbed() time.Duration {
	if s.EmbedCalls == 0 {
		return 0
	}
	return s.EmbedTime / time.Duration(s.EmbedCalls)
}

// Stats tracks worker counters. It is safe for concurrent use.
type Stats struct {
	mu sync.RWMutex
	s  StatsSnapshot
}

func (st *Stats) record(fn func(s *StatsSnapshot)) StatsSnapshot {
	st.mu.Lock()
	defer st.mu.Unlock()
	fn(&st.s)
	st.s.LastEventAt = time.Now()
	return st.s
}

// Snapshot returns the current counters.
func (st *Stats) Snapshot() StatsSnapshot {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.s
}
