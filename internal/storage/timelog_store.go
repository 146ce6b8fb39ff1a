package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lifesync-hq/lifesync/internal/core"
)

// TimeLogStore handles time log persistence, plus the project and
// goal lookup tables the time tracker populates.
type TimeLogStore struct {
	db *DB
}

// NewTimeLogStore creates a new time log store
func NewTimeLogStore(db *DB) *TimeLogStore {
	return &TimeLogStore{db: db}
}

// Upsert inserts or updates a time log keyed by (source, source_id).
func (s *TimeLogStore) Upsert(t *core.TimeLog) (core.UpsertOutcome, error) {
	existing, err := s.GetBySourceID(t.Source, t.SourceID)
	if err != nil && err != core.ErrRecordNotFound {
		return core.UpsertUnchanged, err
	}

	now := time.Now().UTC()
	goalIDs, _ := json.Marshal(t.GoalIDs)
	if t.GoalIDs == nil {
		goalIDs = []byte("[]")
	}

	if existing == nil {
		t.CreatedAt = now
		t.UpdatedAt = now
		res, err := s.db.conn.Exec(`
			INSERT INTO time_logs (
				source, source_id, start_time, end_time, project_id, goal_ids,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			t.Source, t.SourceID, t.Start, t.End, t.ProjectID, string(goalIDs),
			t.CreatedAt, t.UpdatedAt,
		)
		if err != nil {
			return core.UpsertUnchanged, fmt.Errorf("insert time log: %w", err)
		}
		t.ID, _ = res.LastInsertId()
		return core.UpsertCreated, nil
	}

	if timeLogEqual(existing, t) {
		t.ID = existing.ID
		return core.UpsertUnchanged, nil
	}

	t.ID = existing.ID
	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = now
	_, err = s.db.conn.Exec(`
		UPDATE time_logs SET
			start_time = ?, end_time = ?, project_id = ?, goal_ids = ?, updated_at = ?
		WHERE id = ?
	`, t.Start, t.End, t.ProjectID, string(goalIDs), t.UpdatedAt, t.ID)
	if err != nil {
		return core.UpsertUnchanged, fmt.Errorf("update time log: %w", err)
	}
	return core.UpsertUpdated, nil
}

// GetBySourceID returns the time log for (source, source_id).
func (s *TimeLogStore) GetBySourceID(source core.Provider, sourceID string) (*core.TimeLog, error) {
	t := &core.TimeLog{}
	var projectID sql.NullInt64
	var goalIDs string

	err := s.db.conn.QueryRow(`
		SELECT id, source, source_id, start_time, end_time, project_id, goal_ids,
		       created_at, updated_at
		FROM time_logs WHERE source = ? AND source_id = ?
	`, source, sourceID).Scan(
		&t.ID, &t.Source, &t.SourceID, &t.Start, &t.End, &projectID, &goalIDs,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, core.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query time log: %w", err)
	}

	if projectID.Valid {
		v := projectID.Int64
		t.ProjectID = &v
	}
	json.Unmarshal([]byte(goalIDs), &t.GoalIDs)

	return t, nil
}

// CreateManual inserts a hand-entered time log.
func (s *TimeLogStore) CreateManual(t *core.TimeLog) error {
	t.Source = core.SourceManual
	t.SourceID = newManualID()
	_, err := s.Upsert(t)
	return err
}

// CountBySource returns how many time log rows a source has.
func (s *TimeLogStore) CountBySource(source core.Provider) (int, error) {
	var count int
	err := s.db.conn.QueryRow(
		`SELECT COUNT(*) FROM time_logs WHERE source = ?`, source,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count time logs: %w", err)
	}
	return count, nil
}

// SaveProject creates or renames a project imported from the tracker.
func (s *TimeLogStore) SaveProject(p *core.Project) error {
	_, err := s.db.conn.Exec(`
		INSERT INTO projects (id, name) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name
	`, p.ID, p.Name)
	if err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	return nil
}

// SaveGoal creates or renames a goal imported from the tracker's tags.
// Goals key on the tracker's tag id so tag renames update in place.
func (s *TimeLogStore) SaveGoal(g *core.Goal) error {
	_, err := s.db.conn.Exec(`
		INSERT INTO goals (id, name) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name
	`, g.ID, g.Name)
	if err != nil {
		return fmt.Errorf("save goal: %w", err)
	}
	return nil
}

func timeLogEqual(a, b *core.TimeLog) bool {
	if !a.Start.Equal(b.Start) || !a.End.Equal(b.End) || !int64PtrEqual(a.ProjectID, b.ProjectID) {
		return false
	}
	if len(a.GoalIDs) != len(b.GoalIDs) {
		return false
	}
	for i := range a.GoalIDs {
		if a.GoalIDs[i] != b.GoalIDs[i] {
			return false
		}
	}
	return true
}
