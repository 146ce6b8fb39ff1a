// Package storage provides persistence for lifesync.
package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lifesync-hq/lifesync/internal/core"
)

// WorkoutStore handles workout persistence
type WorkoutStore struct {
	db *DB
}

// NewWorkoutStore creates a new workout store
func NewWorkoutStore(db *DB) *WorkoutStore {
	return &WorkoutStore{db: db}
}

// Upsert inserts or updates a workout keyed by (source, source_id).
// An existing row with an identical payload is left untouched and
// reported as unchanged; created_at is never overwritten.
func (s *WorkoutStore) Upsert(w *core.Workout) (core.UpsertOutcome, error) {
	existing, err := s.GetBySourceID(w.Source, w.SourceID)
	if err != nil && err != core.ErrRecordNotFound {
		return core.UpsertUnchanged, err
	}

	now := time.Now().UTC()

	if existing == nil {
		w.CreatedAt = now
		w.UpdatedAt = now
		res, err := s.db.conn.Exec(`
			INSERT INTO workouts (
				source, source_id, start_time, end_time, sport_id,
				average_heart_rate, max_heart_rate, calories_burned,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			w.Source, w.SourceID, w.Start, w.End, w.SportID,
			w.AverageHeartRate, w.MaxHeartRate, w.CaloriesBurned,
			w.CreatedAt, w.UpdatedAt,
		)
		if err != nil {
			return core.UpsertUnchanged, fmt.Errorf("insert workout: %w", err)
		}
		w.ID, _ = res.LastInsertId()
		return core.UpsertCreated, nil
	}

	if workoutEqual(existing, w) {
		w.ID = existing.ID
		return core.UpsertUnchanged, nil
	}

	w.ID = existing.ID
	w.CreatedAt = existing.CreatedAt
	w.UpdatedAt = now
	_, err = s.db.conn.Exec(`
		UPDATE workouts SET
			start_time = ?, end_time = ?, sport_id = ?,
			average_heart_rate = ?, max_heart_rate = ?, calories_burned = ?,
			updated_at = ?
		WHERE id = ?
	`,
		w.Start, w.End, w.SportID,
		w.AverageHeartRate, w.MaxHeartRate, w.CaloriesBurned,
		w.UpdatedAt, w.ID,
	)
	if err != nil {
		return core.UpsertUnchanged, fmt.Errorf("update workout: %w", err)
	}
	return core.UpsertUpdated, nil
}

// GetBySourceID returns the workout for (source, source_id). The
// lookup key is always both fields; source_id alone is ambiguous
// across providers.
func (s *WorkoutStore) GetBySourceID(source core.Provider, sourceID string) (*core.Workout, error) {
	w := &core.Workout{}
	var avgHR, maxHR sql.NullInt64
	var calories sql.NullFloat64

	err := s.db.conn.QueryRow(`
		SELECT id, source, source_id, start_time, end_time, sport_id,
		       average_heart_rate, max_heart_rate, calories_burned,
		       created_at, updated_at
		FROM workouts WHERE source = ? AND source_id = ?
	`, source, sourceID).Scan(
		&w.ID, &w.Source, &w.SourceID, &w.Start, &w.End, &w.SportID,
		&avgHR, &maxHR, &calories,
		&w.CreatedAt, &w.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, core.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query workout: %w", err)
	}

	if avgHR.Valid {
		v := int(avgHR.Int64)
		w.AverageHeartRate = &v
	}
	if maxHR.Valid {
		v := int(maxHR.Int64)
		w.MaxHeartRate = &v
	}
	if calories.Valid {
		v := calories.Float64
		w.CaloriesBurned = &v
	}

	return w, nil
}

// CreateManual inserts a hand-entered workout with a generated
// source_id under the Manual source.
func (s *WorkoutStore) CreateManual(w *core.Workout) error {
	w.Source = core.SourceManual
	w.SourceID = newManualID()
	_, err := s.Upsert(w)
	return err
}

// CountBySource returns how many workout rows a source has.
func (s *WorkoutStore) CountBySource(source core.Provider) (int, error) {
	var count int
	err := s.db.conn.QueryRow(
		`SELECT COUNT(*) FROM workouts WHERE source = ?`, source,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count workouts: %w", err)
	}
	return count, nil
}

func workoutEqual(a, b *core.Workout) bool {
	return a.Start.Equal(b.Start) &&
		a.End.Equal(b.End) &&
		a.SportID == b.SportID &&
		intPtrEqual(a.AverageHeartRate, b.AverageHeartRate) &&
		intPtrEqual(a.MaxHeartRate, b.MaxHeartRate) &&
		floatPtrEqual(a.CaloriesBurned, b.CaloriesBurned)
}
