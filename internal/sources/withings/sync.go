package withings

import (
	"context"

	"github.com/lifesync-hq/lifesync/internal/core"
	"github.com/lifesync-hq/lifesync/internal/logging"
	"github.com/lifesync-hq/lifesync/internal/storage"
)

// Syncer drives one Withings sync run: authenticate, fetch, map, upsert.
type Syncer struct {
	client   *Client
	weighIns *storage.WeighInStore
	log      *logging.Logger
}

// NewSyncer creates the Withings sync command.
func NewSyncer(client *Client, weighIns *storage.WeighInStore) *Syncer {
	return &Syncer{
		client:   client,
		weighIns: weighIns,
		log:      logging.WithField("source", core.ProviderWithings),
	}
}

// Provider returns the provider this syncer serves.
func (s *Syncer) Provider() core.Provider {
	return core.ProviderWithings
}

// Sync fetches the window and upserts each mapped weigh-in. A fetch or
// auth failure aborts the run with zero counts; a single group's upsert
// failure only marks that group skipped.
func (s *Syncer) Sync(ctx context.Context, window core.Window) *core.SyncResult {
	groups, err := s.client.FetchMeasurements(ctx, window)
	if err != nil {
		return core.FailedSyncResult(core.ProviderWithings, err)
	}

	s.log.Debug("fetched %d measurement groups", len(groups))

	result := core.NewSyncResult(core.ProviderWithings)
	for _, raw := range groups {
		w, ok := MapWeighIn(raw)
		if !ok {
			s.log.Debug("skipping measurement group %d: no weight measure", raw.GrpID)
			result.Skipped++
			continue
		}

		outcome, err := s.weighIns.Upsert(w)
		if err != nil {
			s.log.Warn("upsert weigh-in %s: %v", w.SourceID, err)
			result.Skipped++
			continue
		}
		result.Apply(outcome)
	}

	return result
}
