package withings

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

const (
	measTypeWeight = 1 // Withings measure type for body weight
	measCategory   = 1 // real measurements, not objectives
)

// MeasureGroup is one raw measurement group from the Withings API.
type MeasureGroup struct {
	GrpID    int64     `json:"grpid"`
	Date     int64     `json:"date"` // unix seconds
	Measures []Measure `json:"measures"`
}

// Measure is one value inside a group. The real value is
// Value * 10^Unit.
type Measure struct {
	Value int64 `json:"value"`
	Type  int   `json:"type"`
	Unit  int   `json:"unit"`
}

type measureBody struct {
	MeasureGroups []MeasureGroup `json:"measuregrps"`
	More          int            `json:"more"`
	Offset        int            `json:"offset"`
}

// Client fetches weight measurements from the Withings API.
type Client struct {
	auth    *Authenticator
	baseURL string
	http    *http.Client
}

// NewClient creates a Withings API client.
func NewClient(auth *Authenticator) *Client {
	return &Client{
		auth:    auth,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// FetchMeasurements returns every weight measurement group in the
// window, following the remote's more/offset pagination until it
// signals no further data.
func (c *Client) FetchMeasurements(ctx context.Context, window core.Window) ([]MeasureGroup, error) {
	token, err := c.auth.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	var all []MeasureGroup
	offset := 0

	for {
		body, err := c.fetchPage(ctx, token, window, offset)
		if err != nil {
			if !core.IsAuthError(err) {
				return nil, err
			}
			token, err = c.auth.ForceRefresh(ctx)
			if err != nil {
				return nil, err
			}
			body, err = c.fetchPage(ctx, token, window, offset)
			if err != nil {
				return nil, err
			}
		}

		all = append(all, body.MeasureGroups...)

		if body.More == 0 || len(body.MeasureGroups) == 0 {
			break
		}
		offset += len(body.MeasureGroups)
	}

	return all, nil
}

func (c *Client) fetchPage(ctx context.Context, token string, window core.Window, offset int) (*measureBody, error) {
	params := url.Values{}
	params.Set("action", "getmeas")
	params.Set("meastype", strconv.Itoa(measTypeWeight))
	params.Set("category", strconv.Itoa(measCategory))
	params.Set("startdate", strconv.FormatInt(window.Start.Unix(), 10))
	params.Set("enddate", strconv.FormatInt(window.End.Unix(), 10))
	params.Set("offset", strconv.Itoa(offset))

	endpoint := c.baseURL + "/measure?" + params.Encode()
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

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: withings returned %d", core.ErrAuthFailed, resp.StatusCode)
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: withings returned %d", core.ErrTransient, resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: decode measure response: %v", core.ErrBadResponse, err)
	}

	// Withings reports most failures through the envelope status on
	// an HTTP 200. Status 401 means an invalid token, 601 means too
	// many requests.
	switch env.Status {
	case 0:
	case 401:
		return nil, fmt.Errorf("%w: withings status 401: %s", core.ErrAuthFailed, env.Error)
	case 601:
		return nil, fmt.Errorf("%w: withings status 601", core.ErrRateLimited)
	default:
		return nil, fmt.Errorf("%w: withings status %d: %s", core.ErrBadResponse, env.Status, env.Error)
	}

	var body measureBody
	if err := json.Unmarshal(env.Body, &body); err != nil {
		return nil, fmt.Errorf("%w: decode measure body: %v", core.ErrBadResponse, err)
	}
	return &body, nil
}
