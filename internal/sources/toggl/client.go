package toggl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/lifesync-hq/lifesync/internal/core"
	"github.com/lifesync-hq/lifesync/internal/storage"
)

const (
	defaultTrackURL   = "https://api.track.toggl.com/api/v9"
	defaultReportsURL = "https://api.track.toggl.com/reports/api/v3"
)

// TimeEntry is a flattened time entry. The Reports API groups entries
// by project and tags; Client.FetchTimeEntries unrolls the groups so
// every entry carries its own project and tag names.
type TimeEntry struct {
	ID        int64
	ProjectID *int64
	Tags      []string
	Start     string
	Stop      string
}

// Tag is a workspace tag. Tags label time entries; the Reports API
// refers to them by id while the Track API uses names.
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// RawProject is a workspace project as the Track API returns it.
type RawProject struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type reportGroup struct {
	ProjectID   *int64        `json:"project_id"`
	TagIDs      []int64       `json:"tag_ids"`
	TimeEntries []reportEntry `json:"time_entries"`
}

type reportEntry struct {
	ID      int64   `json:"id"`
	Seconds int64   `json:"seconds"`
	Start   string  `json:"start"`
	Stop    *string `json:"stop"`
}

type runningEntry struct {
	ID        int64    `json:"id"`
	ProjectID *int64   `json:"project_id"`
	Tags      []string `json:"tags"`
	Start     string   `json:"start"`
	Stop      *string  `json:"stop"`
}

// Client fetches time entries, projects, and tags from Toggl Track.
// Completed entries come from the Reports API v3, which has a far more
// generous rate limit than the Track /me endpoints.
type Client struct {
	creds      *storage.CredentialStore
	trackURL   string
	reportsURL string
	http       *http.Client
}

// NewClient creates a Toggl API client.
func NewClient(creds *storage.CredentialStore) *Client {
	return &Client{
		creds:      creds,
		trackURL:   defaultTrackURL,
		reportsURL: defaultReportsURL,
		http:       &http.Client{Timeout: 30 * time.Second},
	}
}

// credential loads the stored Toggl credential. A credential missing
// its token or workspace id cannot authenticate anything.
func (c *Client) credential() (*core.Credential, error) {
	cred, err := c.creds.Get(core.ProviderToggl)
	if err != nil {
		return nil, err
	}
	if cred.APIToken == "" || cred.WorkspaceID == "" {
		return nil, fmt.Errorf("%w: toggl credential missing api token or workspace id", core.ErrAuthFailed)
	}
	return cred, nil
}

// FetchTimeEntries returns completed entries in the window from the
// Reports API, flattened, plus the currently running timer if any.
// tags maps the Reports API's tag ids back to names.
func (c *Client) FetchTimeEntries(ctx context.Context, window core.Window, tags []Tag) ([]TimeEntry, error) {
	cred, err := c.credential()
	if err != nil {
		return nil, err
	}

	tagNames := make(map[int64]string, len(tags))
	for _, t := range tags {
		tagNames[t.ID] = t.Name
	}

	payload, err := json.Marshal(map[string]string{
		"start_date": window.StartDate(),
		"end_date":   window.EndDate(),
	})
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/workspace/%s/search/time_entries", c.reportsURL, cred.WorkspaceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(cred.APIToken, "api_token")

	var groups []reportGroup
	if err := c.do(req, &groups); err != nil {
		return nil, err
	}

	var entries []TimeEntry
	for _, group := range groups {
		names := make([]string, 0, len(group.TagIDs))
		for _, id := range group.TagIDs {
			if name, ok := tagNames[id]; ok {
				names = append(names, name)
			}
		}
		for _, raw := range group.TimeEntries {
			stop := ""
			if raw.Stop != nil {
				stop = *raw.Stop
			}
			entries = append(entries, TimeEntry{
				ID:        raw.ID,
				ProjectID: group.ProjectID,
				Tags:      names,
				Start:     raw.Start,
				Stop:      stop,
			})
		}
	}

	if running, err := c.fetchRunning(ctx, cred); err == nil && running != nil {
		entries = append(entries, *running)
	}

	return entries, nil
}

// fetchRunning returns the currently running timer, or nil when no
// timer is running. Running timers have no stop time yet.
func (c *Client) fetchRunning(ctx context.Context, cred *core.Credential) (*TimeEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.trackURL+"/me/time_entries/current", nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(cred.APIToken, "api_token")

	var raw *runningEntry
	if err := c.do(req, &raw); err != nil {
		return nil, err
	}
	if raw == nil || raw.ID == 0 {
		return nil, nil
	}

	stop := ""
	if raw.Stop != nil {
		stop = *raw.Stop
	}
	return &TimeEntry{
		ID:        raw.ID,
		ProjectID: raw.ProjectID,
		Tags:      raw.Tags,
		Start:     raw.Start,
		Stop:      stop,
	}, nil
}

// FetchTags returns every tag in the workspace.
func (c *Client) FetchTags(ctx context.Context) ([]Tag, error) {
	cred, err := c.credential()
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/workspaces/%s/tags", c.trackURL, cred.WorkspaceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(cred.APIToken, "api_token")

	var tags []Tag
	if err := c.do(req, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// FetchProjects returns every project in the workspace.
func (c *Client) FetchProjects(ctx context.Context) ([]RawProject, error) {
	cred, err := c.credential()
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/workspaces/%s/projects", c.trackURL, cred.WorkspaceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(cred.APIToken, "api_token")

	var projects []RawProject
	if err := c.do(req, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrTransient, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp.StatusCode); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding toggl response: %v", core.ErrBadResponse, err)
	}
	return nil
}

// checkStatus maps an HTTP status to the error taxonomy. API tokens
// are static, so any rejection means the token itself is bad and the
// user has to supply a new one.
func checkStatus(status int) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: toggl rejected api token (HTTP %d)", core.ErrAuthFailed, status)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: toggl rate limit hit", core.ErrRateLimited)
	case status >= 500:
		return fmt.Errorf("%w: toggl server error (HTTP %d)", core.ErrTransient, status)
	default:
		return fmt.Errorf("%w: unexpected toggl status %d", core.ErrBadResponse, status)
	}
}
