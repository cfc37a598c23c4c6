package models

import "time"

// SourceCounts counts records per attribution class in one snapshot.
type SourceCounts map[Attribution]int

// Snapshot is one complete build of the token view.
type Snapshot struct {
	Records      []TokenRecord `json:"records"`
	BuiltAt      time.Time     `json:"built_at"`
	Success      bool          `json:"success"`
	SourceCounts SourceCounts  `json:"source_counts"`
	RefreshID    string        `json:"refresh_id,omitempty"`
}

// Clone returns a copy that shares no mutable state with s.
func (s *Snapshot) Clone() Snapshot {
	if s == nil {
		return Snapshot{Records: []TokenRecord{}, SourceCounts: SourceCounts{}}
	}
	out := *s
	out.Records = make([]TokenRecord, len(s.Records))
	copy(out.Records, s.Records)
	out.SourceCounts = make(SourceCounts, len(s.SourceCounts))
	for k, v := range s.SourceCounts {
		out.SourceCounts[k] = v
	}
	return out
}

// CacheState is the state of the snapshot slot.
type CacheState string

const (
	StateEmpty      CacheState = "empty"
	StateServing    CacheState = "serving"
	StateRefreshing CacheState = "refreshing"
)

// TTLState tells whether the served snapshot is within its TTL.
type TTLState string

const (
	TTLStateEmpty TTLState = "empty"
	TTLStateFresh TTLState = "fresh"
	TTLStateStale TTLState = "stale"
)

// Status summarises the snapshot slot for the routing layer.
type Status struct {
	State              CacheState   `json:"state"`
	BuiltAt            *time.Time   `json:"built_at"`
	TTLState           TTLState     `json:"ttl_state"`
	LastRefreshSuccess bool         `json:"last_refresh_success"`
	LastRefreshAt      *time.Time   `json:"last_refresh_at,omitempty"`
	LastError          string       `json:"last_error,omitempty"`
	SourceCounts       SourceCounts `json:"source_counts"`
	RecordCount        int          `json:"record_count"`
	RefreshID          string       `json:"refresh_id,omitempty"`
}
