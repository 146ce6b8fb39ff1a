package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lifesync-hq/lifesync/internal/core"
)

// WeighInStore handles weigh-in persistence
type WeighInStore struct {
	db *DB
}

// NewWeighInStore creates a new weigh-in store
func NewWeighInStore(db *DB) *WeighInStore {
	return &WeighInStore{db: db}
}

// Upsert inserts or updates a weigh-in keyed by (source, source_id).
func (s *WeighInStore) Upsert(w *core.WeighIn) (core.UpsertOutcome, error) {
	existing, err := s.GetBySourceID(w.Source, w.SourceID)
	if err != nil && err != core.ErrRecordNotFound {
		return core.UpsertUnchanged, err
	}

	now := time.Now().UTC()

	if existing == nil {
		w.CreatedAt = now
		w.UpdatedAt = now
		res, err := s.db.conn.Exec(`
			INSERT INTO weigh_ins (
				source, source_id, measured_at, weight_lbs, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?)
		`,
			w.Source, w.SourceID, w.MeasuredAt, w.WeightLbs, w.CreatedAt, w.UpdatedAt,
		)
		if err != nil {
			return core.UpsertUnchanged, fmt.Errorf("insert weigh-in: %w", err)
		}
		w.ID, _ = res.LastInsertId()
		return core.UpsertCreated, nil
	}

	if existing.MeasuredAt.Equal(w.MeasuredAt) && existing.WeightLbs == w.WeightLbs {
		w.ID = existing.ID
		return core.UpsertUnchanged, nil
	}

	w.ID = existing.ID
	w.CreatedAt = existing.CreatedAt
	w.UpdatedAt = now
	_, err = s.db.conn.Exec(`
		UPDATE weigh_ins SET measured_at = ?, weight_lbs = ?, updated_at = ?
		WHERE id = ?
	`, w.MeasuredAt, w.WeightLbs, w.UpdatedAt, w.ID)
	if err != nil {
		return core.UpsertUnchanged, fmt.Errorf("update weigh-in: %w", err)
	}
	return core.UpsertUpdated, nil
}

// GetBySourceID returns the weigh-in for (source, source_id).
func (s *WeighInStore) GetBySourceID(source core.Provider, sourceID string) (*core.WeighIn, error) {
	w := &core.WeighIn{}

	err := s.db.conn.QueryRow(`
		SELECT id, source, source_id, measured_at, weight_lbs, created_at, updated_at
		FROM weigh_ins WHERE source = ? AND source_id = ?
	`, source, sourceID).Scan(
		&w.ID, &w.Source, &w.SourceID, &w.MeasuredAt, &w.WeightLbs,
		&w.CreatedAt, &w.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, core.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query weigh-in: %w", err)
	}

	return w, nil
}

// CreateManual inserts a hand-entered weigh-in.
func (s *WeighInStore) CreateManual(w *core.WeighIn) error {
	w.Source = core.SourceManual
	w.SourceID = newManualID()
	_, err := s.Upsert(w)
	return err
}

// CountBySource returns how many weigh-in rows a source has.
func (s *WeighInStore) CountBySource(source core.Provider) (int, error) {
	var count int
	err := s.db.conn.QueryRow(
		`SELECT COUNT(*) FROM weigh_ins WHERE source = ?`, source,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count weigh-ins: %w", err)
	}
	return count, nil
}
