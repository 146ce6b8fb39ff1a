package whoop

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/lifesync-hq/lifesync/internal/core"
)

const pageSize = 25

// WorkoutRecord is the raw workout shape from the Whoop API v2.
type WorkoutRecord struct {
	ID      string        `json:"id"`
	Start   string        `json:"start"`
	End     string        `json:"end"`
	SportID int           `json:"sport_id"`
	Score   *WorkoutScore `json:"score"`
}

// WorkoutScore is the computed metrics block. Whoop omits it until
// the workout has been scored.
type WorkoutScore struct {
	AverageHeartRate int     `json:"average_heart_rate"`
	MaxHeartRate     int     `json:"max_heart_rate"`
	Kilojoule        float64 `json:"kilojoule"`
}

type workoutPage struct {
	Records   []WorkoutRecord `json:"records"`
	NextToken string          `json:"next_token"`
}

// Client fetches workouts from the Whoop API.
type Client struct {
	auth    *Authenticator
	baseURL string
	http    *http.Client
}

// NewClient creates a Whoop API client.
func NewClient(auth *Authenticator) *Client {
	return &Client{
		auth:    auth,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// FetchWorkouts returns every workout in the window, following the
// remote cursor across pages. The loop terminates when the remote
// returns no further cursor or an empty page, never on a page count.
func (c *Client) FetchWorkouts(ctx context.Context, window core.Window) ([]WorkoutRecord, error) {
	token, err := c.auth.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	var all []WorkoutRecord
	nextToken := ""

	for {
		page, err := c.fetchPage(ctx, token, window, nextToken)
		if err != nil {
			if !core.IsAuthError(err) {
				return nil, err
			}
			// One retry on a fresh token; a rejection after refresh
			// stays an auth error.
			token, err = c.auth.ForceRefresh(ctx)
			if err != nil {
				return nil, err
			}
			page, err = c.fetchPage(ctx, token, window, nextToken)
			if err != nil {
				return nil, err
			}
		}

		all = append(all, page.Records...)

		if page.NextToken == "" || len(page.Records) == 0 {
			break
		}
		nextToken = page.NextToken
	}

	return all, nil
}

func (c *Client) fetchPage(ctx context.Context, token string, window core.Window, nextToken string) (*workoutPage, error) {
	params := url.Values{}
	params.Set("start", window.Start.UTC().Format("2006-01-02T15:04:05.000Z"))
	params.Set("end", window.End.UTC().Format("2006-01-02T15:04:05.000Z"))
	params.Set("limit", strconv.Itoa(pageSize))
	if nextToken != "" {
		params.Set("nextToken", nextToken)
	}

	endpoint := c.baseURL + "/developer/v2/activity/workout?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrTransient, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	var page workoutPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("%w: decode workout page: %v", core.ErrBadResponse, err)
	}
	return &page, nil
}

func checkStatus(status int) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: whoop returned %d", core.ErrAuthFailed, status)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: whoop returned 429", core.ErrRateLimited)
	case status >= 500:
		return fmt.Errorf("%w: whoop returned %d", core.ErrTransient, status)
	default:
		return fmt.Errorf("%w: whoop returned %d", core.ErrBadResponse, status)
	}
}
