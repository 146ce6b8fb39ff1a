package toggl

import (
	"context"
	"strconv"

	"github.com/lifesync-hq/lifesync/internal/core"
	"github.com/lifesync-hq/lifesync/internal/logging"
	"github.com/lifesync-hq/lifesync/internal/storage"
)

func formatEntryID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// Syncer drives one Toggl sync run. Toggl projects become projects and
// Toggl tags become goals, auto-created as entries reference them.
type Syncer struct {
	client   *Client
	timeLogs *storage.TimeLogStore
	log      *logging.Logger
}

// NewSyncer creates the Toggl sync command.
func NewSyncer(client *Client, timeLogs *storage.TimeLogStore) *Syncer {
	return &Syncer{
		client:   client,
		timeLogs: timeLogs,
		log:      logging.WithField("source", core.ProviderToggl),
	}
}

// Provider returns the provider this syncer serves.
func (s *Syncer) Provider() core.Provider {
	return core.ProviderToggl
}

// Sync fetches projects, tags, and the window's time entries, then
// upserts each mapped entry. Projects and goals referenced by an entry
// are saved first so the time log always lands with its groupings in
// place.
func (s *Syncer) Sync(ctx context.Context, window core.Window) *core.SyncResult {
	projects, err := s.client.FetchProjects(ctx)
	if err != nil {
		return core.FailedSyncResult(core.ProviderToggl, err)
	}
	projectNames := make(map[int64]string, len(projects))
	for _, p := range projects {
		projectNames[p.ID] = p.Name
	}

	tags, err := s.client.FetchTags(ctx)
	if err != nil {
		return core.FailedSyncResult(core.ProviderToggl, err)
	}
	tagIDs := make(map[string]string, len(tags))
	for _, t := range tags {
		tagIDs[t.Name] = strconv.FormatInt(t.ID, 10)
	}

	entries, err := s.client.FetchTimeEntries(ctx, window, tags)
	if err != nil {
		return core.FailedSyncResult(core.ProviderToggl, err)
	}

	s.log.Debug("fetched %d time entries", len(entries))

	result := core.NewSyncResult(core.ProviderToggl)
	for _, raw := range entries {
		t, ok := MapTimeLog(raw, tagIDs)
		if !ok {
			s.log.Debug("skipping entry %d: running or missing fields", raw.ID)
			result.Skipped++
			continue
		}

		if err := s.saveGroupings(t, raw, projectNames, tags); err != nil {
			s.log.Warn("save groupings for entry %s: %v", t.SourceID, err)
			result.Skipped++
			continue
		}

		outcome, err := s.timeLogs.Upsert(t)
		if err != nil {
			s.log.Warn("upsert time log %s: %v", t.SourceID, err)
			result.Skipped++
			continue
		}
		result.Apply(outcome)
	}

	return result
}

// saveGroupings auto-creates the project and goals an entry points at.
// Goals are keyed by tag id so a renamed tag updates in place instead
// of forking a duplicate.
func (s *Syncer) saveGroupings(t *core.TimeLog, raw TimeEntry, projectNames map[int64]string, tags []Tag) error {
	if t.ProjectID != nil {
		if name, ok := projectNames[*t.ProjectID]; ok {
			if err := s.timeLogs.SaveProject(&core.Project{ID: *t.ProjectID, Name: name}); err != nil {
				return err
			}
		}
	}

	for _, tag := range tags {
		for _, name := range raw.Tags {
			if tag.Name == name {
				goal := &core.Goal{ID: strconv.FormatInt(tag.ID, 10), Name: tag.Name}
				if err := s.timeLogs.SaveGoal(goal); err != nil {
					return err
				}
			}
		}
	}

	return nil
}
