package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lifesync-hq/lifesync/internal/core"
)

// NutritionStore handles nutrition entry persistence
type NutritionStore struct {
	db *DB
}

// NewNutritionStore creates a new nutrition store
func NewNutritionStore(db *DB) *NutritionStore {
	return &NutritionStore{db: db}
}

// Upsert inserts or updates a nutrition entry keyed by
// (source, source_id). For synced daily aggregates the source_id is
// the calendar date, so re-syncing a day overwrites its totals.
func (s *NutritionStore) Upsert(n *core.NutritionEntry) (core.UpsertOutcome, error) {
	existing, err := s.GetBySourceID(n.Source, n.SourceID)
	if err != nil && err != core.ErrRecordNotFound {
		return core.UpsertUnchanged, err
	}

	now := time.Now().UTC()

	if existing == nil {
		n.CreatedAt = now
		n.UpdatedAt = now
		res, err := s.db.conn.Exec(`
			INSERT INTO nutrition_entries (
				source, source_id, consumed_on, calories, fat, carbs, protein,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			n.Source, n.SourceID, n.ConsumedOn, n.Calories, n.Fat, n.Carbs, n.Protein,
			n.CreatedAt, n.UpdatedAt,
		)
		if err != nil {
			return core.UpsertUnchanged, fmt.Errorf("insert nutrition entry: %w", err)
		}
		n.ID, _ = res.LastInsertId()
		return core.UpsertCreated, nil
	}

	if nutritionEqual(existing, n) {
		n.ID = existing.ID
		return core.UpsertUnchanged, nil
	}

	n.ID = existing.ID
	n.CreatedAt = existing.CreatedAt
	n.UpdatedAt = now
	_, err = s.db.conn.Exec(`
		UPDATE nutrition_entries SET
			consumed_on = ?, calories = ?, fat = ?, carbs = ?, protein = ?, updated_at = ?
		WHERE id = ?
	`, n.ConsumedOn, n.Calories, n.Fat, n.Carbs, n.Protein, n.UpdatedAt, n.ID)
	if err != nil {
		return core.UpsertUnchanged, fmt.Errorf("update nutrition entry: %w", err)
	}
	return core.UpsertUpdated, nil
}

// GetBySourceID returns the nutrition entry for (source, source_id).
func (s *NutritionStore) GetBySourceID(source core.Provider, sourceID string) (*core.NutritionEntry, error) {
	n := &core.NutritionEntry{}

	err := s.db.conn.QueryRow(`
		SELECT id, source, source_id, consumed_on, calories, fat, carbs, protein,
		       created_at, updated_at
		FROM nutrition_entries WHERE source = ? AND source_id = ?
	`, source, sourceID).Scan(
		&n.ID, &n.Source, &n.SourceID, &n.ConsumedOn,
		&n.Calories, &n.Fat, &n.Carbs, &n.Protein,
		&n.CreatedAt, &n.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, core.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query nutrition entry: %w", err)
	}

	return n, nil
}

// CreateManual inserts a hand-entered nutrition entry.
func (s *NutritionStore) CreateManual(n *core.NutritionEntry) error {
	n.Source = core.SourceManual
	n.SourceID = newManualID()
	_, err := s.Upsert(n)
	return err
}

// CountBySource returns how many nutrition rows a source has.
func (s *NutritionStore) CountBySource(source core.Provider) (int, error) {
	var count int
	err := s.db.conn.QueryRow(
		`SELECT COUNT(*) FROM nutrition_entries WHERE source = ?`, source,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count nutrition entries: %w", err)
	}
	return count, nil
}

func nutritionEqual(a, b *core.NutritionEntry) bool {
	return a.ConsumedOn == b.ConsumedOn &&
		a.Calories == b.Calories &&
		a.Fat == b.Fat &&
		a.Carbs == b.Carbs &&
		a.Protein == b.Protein
}
