package whoop

import (
	"context"

	"github.com/lifesync-hq/lifesync/internal/core"
	"github.com/lifesync-hq/lifesync/internal/logging"
	"github.com/lifesync-hq/lifesync/internal/storage"
)

// Syncer drives one Whoop sync run: authenticate, fetch, map, upsert.
type Syncer struct {
	client   *Client
	workouts *storage.WorkoutStore
	log      *logging.Logger
}

// NewSyncer creates the Whoop sync command.
func NewSyncer(client *Client, workouts *storage.WorkoutStore) *Syncer {
	return &Syncer{
		client:   client,
		workouts: workouts,
		log:      logging.WithField("source", core.ProviderWhoop),
	}
}

// Provider returns the provider this syncer serves.
func (s *Syncer) Provider() core.Provider {
	return core.ProviderWhoop
}

// Sync fetches the window and upserts each mapped workout. A fetch or
// auth failure aborts the run with zero counts; a single record's
// upsert failure only marks that record skipped.
func (s *Syncer) Sync(ctx context.Context, window core.Window) *core.SyncResult {
	records, err := s.client.FetchWorkouts(ctx, window)
	if err != nil {
		return core.FailedSyncResult(core.ProviderWhoop, err)
	}

	s.log.Debug("fetched %d workouts", len(records))

	result := core.NewSyncResult(core.ProviderWhoop)
	for _, raw := range records {
		w, ok := MapWorkout(raw)
		if !ok {
			s.log.Debug("skipping workout %q: not yet scored or malformed", raw.ID)
			result.Skipped++
			continue
		}

		outcome, err := s.workouts.Upsert(w)
		if err != nil {
			s.log.Warn("upsert workout %s: %v", w.SourceID, err)
			result.Skipped++
			continue
		}
		result.Apply(outcome)
	}

	return result
}
