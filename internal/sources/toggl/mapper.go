package toggl

import (
	"time"

	"github.com/lifesync-hq/lifesync/internal/core"
)

// MapTimeLog turns a flattened entry into a canonical time log.
// Entries without an id, start, stop, or project are skipped; that
// covers the running timer, which has no stop time until the user
// punches out. tagIDs maps tag names back to their stable ids, which
// survive tag renames.
func MapTimeLog(raw TimeEntry, tagIDs map[string]string) (*core.TimeLog, bool) {
	if raw.ID == 0 || raw.Start == "" || raw.Stop == "" || raw.ProjectID == nil {
		return nil, false
	}

	start, err := time.Parse(time.RFC3339, raw.Start)
	if err != nil {
		return nil, false
	}
	stop, err := time.Parse(time.RFC3339, raw.Stop)
	if err != nil {
		return nil, false
	}

	goalIDs := make([]string, 0, len(raw.Tags))
	for _, name := range raw.Tags {
		if id, ok := tagIDs[name]; ok {
			goalIDs = append(goalIDs, id)
		}
	}

	return &core.TimeLog{
		Source:    core.ProviderToggl,
		SourceID:  formatEntryID(raw.ID),
		Start:     start.UTC(),
		End:       stop.UTC(),
		ProjectID: raw.ProjectID,
		GoalIDs:   goalIDs,
	}, true
}
