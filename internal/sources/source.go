// Package sources defines the interface for provider sync commands
// and the orchestrator that runs them.
package sources

import (
	"context"

	"github.com/lifesync-hq/lifesync/internal/core"
)

// Syncer is one provider's sync command. Implementations authenticate,
// fetch a window of raw records, map them to canonical entries, and
// upsert each one.
//
// Sync never returns an error: every failure mode is folded into the
// SyncResult so the caller can aggregate without unwinding.
type Syncer interface {
	Provider() core.Provider
	Sync(ctx context.Context, window core.Window) *core.SyncResult
}
