package registry

import (
	"time"
)

// State is the lifecycle state of a training session.
type State string

const (
	StateCreating     State = "creating"
	StateContentReady State = "content_ready"
	StateRangeReady   State = "range_ready"
	StateActive       State = "active"
	StateEnding       State = "ending"
	StateEnded        State = "ended"
	StateFailed       State = "failed"
)

// Terminal reports whether no further workflow steps apply to the state.
func (s State) Terminal() bool {
	return s == StateEnded || s == StateFailed
}

// Valid reports whether s is one of the known lifecycle states.
func (s State) Valid() bool {
	switch s {
	case StateCreating, StateContentReady, StateRangeReady, StateActive,
		StateEnding, StateEnded, StateFailed:
		return true
	}
	return false
}

// Endpoints is the notification payload handed to trainees once a
// session is active.
type Endpoints struct {
	LearningPlatformURL  string   `json:"learning_platform_url"`
	RangeAccessEndpoints []string `json:"range_access_endpoints"`
}

// Session is one orchestrated training instance, from creation through
// teardown. Records in terminal states are retained for audit.
type Session struct {
	ID           int        `json:"id"`
	Name         string     `json:"name"`
	Trainer      string     `json:"trainer"`
	State        State      `json:"state"`
	ContentRef   string     `json:"content_ref"`
	TopologyRef  string     `json:"topology_ref"`
	Progression  string     `json:"progression,omitempty"`
	TraineeCount int        `json:"trainee_count"`
	ActivityIDs  []string   `json:"activity_ids,omitempty"`
	RangeID      string     `json:"range_id,omitempty"`
	Endpoints    *Endpoints `json:"endpoints,omitempty"`
	Error        string     `json:"error,omitempty"`
	CleanupError string     `json:"cleanup_error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
}

// Summary is the serialized form returned by session listings.
type Summary struct {
	ID        int        `json:"id"`
	Name      string     `json:"name"`
	Trainer   string     `json:"trainer"`
	State     State      `json:"state"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Summary returns the listing view of the session.
func (s *Session) Summary() Summary {
	return Summary{
		ID:        s.ID,
		Name:      s.Name,
		Trainer:   s.Trainer,
		State:     s.State,
		Error:     s.Error,
		CreatedAt: s.CreatedAt,
		EndedAt:   s.EndedAt,
	}
}

// clone returns a deep copy so callers never share mutable state with
// the registry.
func (s *Session) clone() *Session {
	c := *s
	if s.ActivityIDs != nil {
		c.ActivityIDs = append([]string(nil), s.ActivityIDs...)
	}
	if s.Endpoints != nil {
		e := *s.Endpoints
		e.RangeAccessEndpoints = append([]string(nil), s.Endpoints.RangeAccessEndpoints...)
		c.Endpoints = &e
	}
	if s.EndedAt != nil {
		t := *s.EndedAt
		c.EndedAt = &t
	}
	return &c
}
