package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/lifesync-hq/lifesync/internal/core"
	"github.com/lifesync-hq/lifesync/internal/logging"
)

// Orchestrator fans a sync run out over the configured providers and
// collects their results into one report. It holds no provider logic.
type Orchestrator struct {
	syncers []Syncer
	log     *logging.Logger
}

// NewOrchestrator creates an orchestrator over the given syncers.
func NewOrchestrator(syncers ...Syncer) *Orchestrator {
	return &Orchestrator{
		syncers: syncers,
		log:     logging.WithField("component", "orchestrator"),
	}
}

// Run syncs each selected provider sequentially and returns the
// aggregated report. `only` restricts the run to a single provider;
// empty means all. One provider's failure never prevents the others
// from running: panics and errors become failed results in the report.
func (o *Orchestrator) Run(ctx context.Context, window core.Window, only core.Provider) *core.Report {
	report := core.NewReport(window)

	for _, s := range o.syncers {
		if only != "" && s.Provider() != only {
			continue
		}

		log := o.log.WithField("source", s.Provider())
		log.Info("sync started")
		started := time.Now()

		result := o.runOne(ctx, s, window)
		report.Add(result)

		log = log.WithField("duration", time.Since(started).Round(time.Millisecond))
		if result.Succeeded {
			log.Info("sync finished: %s", result.Summary())
		} else {
			log.Error("sync failed: %s", result.ErrorMessage)
		}
	}

	report.FinishedAt = time.Now().UTC()
	return report
}

// runOne isolates a single provider run, converting a panic into a
// failed result.
func (o *Orchestrator) runOne(ctx context.Context, s Syncer, window core.Window) (result *core.SyncResult) {
	defer func() {
		if r := recover(); r != nil {
			result = core.FailedSyncResult(s.Provider(), fmt.Errorf("panic: %v", r))
		}
	}()
	return s.Sync(ctx, window)
}
