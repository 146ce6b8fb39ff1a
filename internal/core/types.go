// Package core defines the fundamental types for lifesync.
// Every synced record, credential, and sync outcome is expressed in
// terms of these types; provider packages translate into them.
package core

import (
	"fmt"
	"strings"
	"time"
)

// -----------------------------------------------------------------------------
// PROVIDER - An external system supplying records
// -----------------------------------------------------------------------------

// Provider is a type-safe identifier for data sources.
// Its string form is also the `source` value stored on every row, so
// casing is fixed and must never vary.
type Provider string

const (
	ProviderWhoop      Provider = "Whoop"
	ProviderWithings   Provider = "Withings"
	ProviderToggl      Provider = "Toggl"
	ProviderCronometer Provider = "Cronometer"

	// SourceManual marks rows entered by hand. Manual rows carry a
	// generated UUID as source_id so they can never collide with
	// provider-assigned ids.
	SourceManual Provider = "Manual"
)

// Providers lists every syncable provider in orchestration order.
func Providers() []Provider {
	return []Provider{ProviderWhoop, ProviderWithings, ProviderToggl, ProviderCronometer}
}

// ParseProvider resolves a case-insensitive name to a Provider.
func ParseProvider(name string) (Provider, error) {
	for _, p := range Providers() {
		if strings.EqualFold(name, string(p)) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownProvider, name)
}

func (p Provider) String() string {
	return string(p)
}

// -----------------------------------------------------------------------------
// WINDOW - The inclusive date range a sync run requests
// -----------------------------------------------------------------------------

// Window is the time range requested from a provider.
type Window struct {
	Start time.Time
	End   time.Time
}

// WindowForDays returns a window covering the last n days, ending now.
func WindowForDays(days int) Window {
	end := time.Now().UTC()
	return Window{Start: end.AddDate(0, 0, -days), End: end}
}

// StartDate and EndDate render the window bounds as ISO calendar dates.
func (w Window) StartDate() string { return w.Start.Format("2006-01-02") }
func (w Window) EndDate() string   { return w.End.Format("2006-01-02") }

// -----------------------------------------------------------------------------
// CREDENTIAL - Auth material for one provider
// -----------------------------------------------------------------------------

// Credential holds everything needed to authenticate against one
// provider. At most one Credential exists per provider. OAuth
// providers use the client/token fields; static-token providers use
// APIToken; the process bridge uses Username/Password.
type Credential struct {
	Provider Provider

	// OAuth application credentials
	ClientID     string
	ClientSecret string
	RedirectURI  string

	// OAuth tokens
	AccessToken  string
	RefreshToken string
	// TokenExpiresAt is nil when the token lifetime is unknown or no
	// token has been fetched yet.
	TokenExpiresAt *time.Time

	// Static-token providers
	APIToken    string
	WorkspaceID string

	// Process-bridge providers
	Username string
	Password string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TokenExpiringWithin reports whether the access token is expired or
// will expire within the buffer. An unknown expiry counts as expired
// so the caller refreshes rather than trusting a stale token.
func (c *Credential) TokenExpiringWithin(buffer time.Duration) bool {
	if c.TokenExpiresAt == nil {
		return true
	}
	return time.Now().Add(buffer).After(*c.TokenExpiresAt)
}

// -----------------------------------------------------------------------------
// DOMAIN ENTRIES - Canonical shapes for every synced record
// -----------------------------------------------------------------------------

// Workout is one exercise session.
type Workout struct {
	ID       int64
	Source   Provider
	SourceID string

	Start            time.Time
	End              time.Time
	SportID          int
	AverageHeartRate *int
	MaxHeartRate     *int
	CaloriesBurned   *float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// WeighIn is one body weight measurement, in pounds.
type WeighIn struct {
	ID       int64
	Source   Provider
	SourceID string

	MeasuredAt time.Time
	WeightLbs  float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TimeLog is one tracked stretch of time, optionally attached to a
// project and a set of goals.
type TimeLog struct {
	ID       int64
	Source   Provider
	SourceID string

	Start     time.Time
	End       time.Time
	ProjectID *int64
	GoalIDs   []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Duration returns the logged span.
func (t *TimeLog) Duration() time.Duration {
	return t.End.Sub(t.Start)
}

// Project is a time-log grouping imported from the time tracker.
type Project struct {
	ID   int64
	Name string
}

// Goal is a time-log label imported from the time tracker's tags.
type Goal struct {
	ID   string
	Name string
}

// NutritionEntry is one day's macro totals.
type NutritionEntry struct {
	ID       int64
	Source   Provider
	SourceID string

	// ConsumedOn is the calendar date, rendered 2006-01-02. Nutrition
	// providers aggregate per day, so no time component exists.
	ConsumedOn string
	Calories   float64
	Fat        float64
	Carbs      float64
	Protein    float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// -----------------------------------------------------------------------------
// UPSERT OUTCOME
// -----------------------------------------------------------------------------

// UpsertOutcome says what an upsert did to the store.
type UpsertOutcome int

const (
	// UpsertCreated means no row existed for (source, source_id).
	UpsertCreated UpsertOutcome = iota
	// UpsertUpdated means the row existed and at least one payload
	// field changed.
	UpsertUpdated
	// UpsertUnchanged means the row existed and the payload was
	// identical; nothing was written.
	UpsertUnchanged
)

// -----------------------------------------------------------------------------
// SYNC RESULT & REPORT
// -----------------------------------------------------------------------------

// SyncResult is the structured outcome of one provider's sync run.
// It is never persisted; the orchestrator consumes it immediately.
type SyncResult struct {
	Source       Provider `json:"source"`
	Succeeded    bool     `json:"succeeded"`
	Created      int      `json:"created"`
	Updated      int      `json:"updated"`
	Skipped      int      `json:"skipped"`
	ErrorMessage string   `json:"error_message,omitempty"`
	// AuthError distinguishes "re-authorize" from "investigate".
	AuthError bool `json:"auth_error"`
}

// NewSyncResult returns a zeroed successful result for a provider.
func NewSyncResult(source Provider) *SyncResult {
	return &SyncResult{Source: source, Succeeded: true}
}

// FailedSyncResult returns a terminal failure with zero counts.
func FailedSyncResult(source Provider, err error) *SyncResult {
	return &SyncResult{
		Source:       source,
		Succeeded:    false,
		ErrorMessage: err.Error(),
		AuthError:    IsAuthError(err),
	}
}

// Apply folds one upsert outcome into the running counts.
func (r *SyncResult) Apply(outcome UpsertOutcome) {
	switch outcome {
	case UpsertCreated:
		r.Created++
	case UpsertUpdated:
		r.Updated++
	default:
		r.Skipped++
	}
}

// Total is the number of records the run looked at.
func (r *SyncResult) Total() int {
	return r.Created + r.Updated + r.Skipped
}

// Summary renders one human line; it is display-only and never parsed.
func (r *SyncResult) Summary() string {
	if !r.Succeeded {
		if r.AuthError {
			return fmt.Sprintf("auth error: %s", r.ErrorMessage)
		}
		return fmt.Sprintf("failed: %s", r.ErrorMessage)
	}
	if r.Total() == 0 {
		return "no records"
	}
	return fmt.Sprintf("%d created, %d updated, %d skipped", r.Created, r.Updated, r.Skipped)
}

// Report aggregates one orchestrator run, keyed by provider.
type Report struct {
	Window     Window                   `json:"-"`
	StartedAt  time.Time                `json:"started_at"`
	FinishedAt time.Time                `json:"finished_at"`
	Results    map[Provider]*SyncResult `json:"results"`
}

// NewReport returns an empty report for a window.
func NewReport(window Window) *Report {
	return &Report{
		Window:    window,
		StartedAt: time.Now().UTC(),
		Results:   make(map[Provider]*SyncResult),
	}
}

// Add records one provider's result.
func (r *Report) Add(result *SyncResult) {
	r.Results[result.Source] = result
}

// AllSucceeded reports whether every provider that ran succeeded.
func (r *Report) AllSucceeded() bool {
	for _, res := range r.Results {
		if !res.Succeeded {
			return false
		}
	}
	return true
}
