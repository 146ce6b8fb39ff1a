package cronometer

import (
	"context"
	"fmt"

	"github.com/lifesync-hq/lifesync/internal/core"
	"github.com/lifesync-hq/lifesync/internal/logging"
	"github.com/lifesync-hq/lifesync/internal/storage"
)

// Syncer drives one Cronometer sync run through the export helper.
type Syncer struct {
	bridge  *Bridge
	creds   *storage.CredentialStore
	entries *storage.NutritionStore
	log     *logging.Logger
}

// NewSyncer creates the Cronometer sync command.
func NewSyncer(bridge *Bridge, creds *storage.CredentialStore, entries *storage.NutritionStore) *Syncer {
	return &Syncer{
		bridge:  bridge,
		creds:   creds,
		entries: entries,
		log:     logging.WithField("source", core.ProviderCronometer),
	}
}

// Provider returns the provider this syncer serves.
func (s *Syncer) Provider() core.Provider {
	return core.ProviderCronometer
}

// Sync runs the export helper for the window and upserts each day's
// totals. Missing credentials fail before the helper ever runs, so a
// misconfigured account never shells out.
func (s *Syncer) Sync(ctx context.Context, window core.Window) *core.SyncResult {
	cred, err := s.creds.Get(core.ProviderCronometer)
	if err != nil {
		return core.FailedSyncResult(core.ProviderCronometer, err)
	}
	if cred.Username == "" || cred.Password == "" {
		err := fmt.Errorf("%w: cronometer credential missing username or password", core.ErrAuthFailed)
		return core.FailedSyncResult(core.ProviderCronometer, err)
	}

	records, err := s.bridge.Export(ctx, cred, window)
	if err != nil {
		return core.FailedSyncResult(core.ProviderCronometer, err)
	}

	s.log.Debug("helper exported %d day records", len(records))

	result := core.NewSyncResult(core.ProviderCronometer)
	for _, rec := range records {
		e, ok := MapNutritionEntry(rec)
		if !ok {
			result.Skipped++
			continue
		}

		outcome, err := s.entries.Upsert(e)
		if err != nil {
			s.log.Warn("upsert nutrition entry %s: %v", e.SourceID, err)
			result.Skipped++
			continue
		}
		result.Apply(outcome)
	}

	return result
}
