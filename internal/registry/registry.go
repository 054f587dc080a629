package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrCapacity is returned by Insert when the configured limit of live
// (non-terminal) sessions has been reached.
var ErrCapacity = errors.New("session capacity reached")

type entry struct {
	mu  sync.Mutex
	rec Session
}

// Registry is the single source of truth for session existence and
// state. Updates on one id are serialized; updates on distinct ids
// proceed concurrently. Ids are assigned monotonically and never
// reused, even after a session reaches a terminal state.
type Registry struct {
	mu       sync.RWMutex
	sessions map[int]*entry
	nextID   int
	maxLive  int
	journal  *Journal
	logger   *logrus.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithJournal attaches a write-through journal. Journal failures are
// logged and never fail the in-memory mutation.
func WithJournal(j *Journal) Option {
	return func(r *Registry) { r.journal = j }
}

// WithMaxLive caps the number of concurrently live (non-terminal)
// sessions. Zero means unlimited.
func WithMaxLive(n int) Option {
	return func(r *Registry) { r.maxLive = n }
}

// WithLogger sets the logger used for journal failures.
func WithLogger(l *logrus.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithStartAfter makes id allocation resume after the given id,
// typically the journal's LastID, so ids stay unique across restarts.
func WithStartAfter(id int) Option {
	return func(r *Registry) {
		if id >= r.nextID {
			r.nextID = id + 1
		}
	}
}

// New creates an empty registry. The first assigned id is 1.
func New(opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[int]*entry),
		nextID:   1,
		logger:   logrus.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Insert assigns a fresh id to the session, stamps its creation time,
// and makes it visible to Get and Scan. The passed record is not
// retained.
func (r *Registry) Insert(s *Session) (int, error) {
	r.mu.Lock()
	if r.maxLive > 0 {
		live := 0
		for _, e := range r.sessions {
			e.mu.Lock()
			if !e.rec.State.Terminal() {
				live++
			}
			e.mu.Unlock()
		}
		if live >= r.maxLive {
			r.mu.Unlock()
			return 0, fmt.Errorf("%w (max %d)", ErrCapacity, r.maxLive)
		}
	}

	rec := *s.clone()
	rec.ID = r.nextID
	r.nextID++
	if rec.Name == "" {
		rec.Name = fmt.Sprintf("Training Session #%d", rec.ID)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	r.sessions[rec.ID] = &entry{rec: rec}
	r.mu.Unlock()

	r.record(&rec)
	return rec.ID, nil
}

// Get returns a copy of the session with the given id.
func (r *Registry) Get(id int) (*Session, bool) {
	r.mu.RLock()
	e, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec.clone(), true
}

// Update applies fn to the session under its per-id lock. If fn
// returns an error the record is left unchanged. The updated copy is
// returned on success.
func (r *Registry) Update(id int, fn func(*Session) error) (*Session, error) {
	r.mu.RLock()
	e, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session %d not in registry", id)
	}

	e.mu.Lock()
	scratch := e.rec.clone()
	if err := fn(scratch); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	scratch.ID = id // id is immutable
	e.rec = *scratch
	out := scratch.clone()
	// Journaled under the per-id lock so journal order matches update
	// order for the id.
	r.record(out)
	e.mu.Unlock()

	return out, nil
}

// Scan returns copies of all sessions matching pred (all sessions when
// pred is nil), ordered by id. The result is a snapshot: each record
// reflects either the pre- or post-state of any concurrent update,
// never a partial one.
func (r *Registry) Scan(pred func(*Session) bool) []*Session {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.sessions))
	for _, e := range r.sessions {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	var out []*Session
	for _, e := range entries {
		e.mu.Lock()
		rec := e.rec.clone()
		e.mu.Unlock()
		if pred == nil || pred(rec) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) record(s *Session) {
	if r.journal == nil {
		return
	}
	if err := r.journal.Record(s); err != nil {
		r.logger.WithError(err).WithField("session_id", s.ID).
			Warn("failed to journal session record")
	}
}
