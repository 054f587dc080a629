package registry

import (
	"database/sql"
	"encoding/json"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Journal is a write-through audit log of session records backed by
// sqlite. The in-memory registry stays the source of truth; the
// journal keeps terminal sessions inspectable across restarts.
type Journal struct {
	db *sql.DB
}

// InitDB opens (creating if needed) the journal database at path and
// applies the schema.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY,
		name TEXT,
		trainer TEXT,
		state TEXT NOT NULL,
		content_ref TEXT,
		topology_ref TEXT,
		progression TEXT,
		trainee_count INTEGER,
		activity_ids TEXT,
		range_id TEXT,
		endpoints TEXT,
		error TEXT,
		cleanup_error TEXT,
		created_at TIMESTAMP,
		ended_at TIMESTAMP
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// NewJournal wraps an initialized database handle.
func NewJournal(db *sql.DB) *Journal {
	return &Journal{db: db}
}

// Record upserts the current state of a session.
func (j *Journal) Record(s *Session) error {
	var endpoints []byte
	if s.Endpoints != nil {
		var err error
		endpoints, err = json.Marshal(s.Endpoints)
		if err != nil {
			return err
		}
	}

	query := `INSERT OR REPLACE INTO sessions
		(id, name, trainer, state, content_ref, topology_ref, progression, trainee_count,
		 activity_ids, range_id, endpoints, error, cleanup_error, created_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := j.db.Exec(query,
		s.ID, s.Name, s.Trainer, string(s.State), s.ContentRef, s.TopologyRef,
		s.Progression, s.TraineeCount, strings.Join(s.ActivityIDs, ","),
		s.RangeID, string(endpoints), s.Error, s.CleanupError, s.CreatedAt, s.EndedAt)
	return err
}

// List returns all journaled sessions ordered by id.
func (j *Journal) List() ([]*Session, error) {
	query := `SELECT id, name, trainer, state, content_ref, topology_ref, progression,
		trainee_count, activity_ids, range_id, endpoints, error, cleanup_error,
		created_at, ended_at FROM sessions ORDER BY id`
	rows, err := j.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		s := &Session{}
		var state, activityIDs, endpoints string
		var endedAt sql.NullTime
		if err := rows.Scan(&s.ID, &s.Name, &s.Trainer, &state, &s.ContentRef,
			&s.TopologyRef, &s.Progression, &s.TraineeCount, &activityIDs,
			&s.RangeID, &endpoints, &s.Error, &s.CleanupError, &s.CreatedAt,
			&endedAt); err != nil {
			return nil, err
		}
		s.State = State(state)
		if activityIDs != "" {
			s.ActivityIDs = strings.Split(activityIDs, ",")
		}
		if endpoints != "" {
			e := &Endpoints{}
			if err := json.Unmarshal([]byte(endpoints), e); err != nil {
				return nil, err
			}
			s.Endpoints = e
		}
		if endedAt.Valid {
			t := endedAt.Time
			s.EndedAt = &t
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// LastID returns the highest session id ever journaled, so id
// allocation can stay monotonic across restarts. Returns 0 for an
// empty journal.
func (j *Journal) LastID() (int, error) {
	var id sql.NullInt64
	err := j.db.QueryRow(`SELECT MAX(id) FROM sessions`).Scan(&id)
	if err != nil {
		return 0, err
	}
	return int(id.Int64), nil
}
