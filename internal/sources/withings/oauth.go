// Package withings implements the Withings body weight source.
//
// Withings speaks OAuth2 but wraps every token response in its own
// status/body envelope, so the token flow is implemented directly
// against its endpoints rather than through an oauth2.Config.
package withings

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/lifesync-hq/lifesync/internal/core"
	"github.com/lifesync-hq/lifesync/internal/storage"
)

const (
	defaultBaseURL  = "https://wbsapi.withings.net"
	defaultAuthURL  = "https://account.withings.com/oauth2_user/authorize2"
	defaultTokenURL = defaultBaseURL + "/v2/oauth2"

	scope = "user.metrics"

	refreshBuffer = 60 * time.Second
)

// envelope is the wrapper Withings puts around every response body.
// A zero status means success.
type envelope struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
	Error  string          `json:"error"`
}

type tokenBody struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// Authenticator manages the Withings OAuth2 token lifecycle. Withings
// rotates the refresh token on every refresh, so persisting before
// returning is load-bearing: losing a rotated refresh token strands
// the account until re-authorization.
type Authenticator struct {
	creds    *storage.CredentialStore
	authURL  string
	tokenURL string
	client   *http.Client

	mu sync.Mutex
}

// NewAuthenticator creates an authenticator backed by the credential
// store.
func NewAuthenticator(creds *storage.CredentialStore) *Authenticator {
	return &Authenticator{
		creds:    creds,
		authURL:  defaultAuthURL,
		tokenURL: defaultTokenURL,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// AuthURL returns the URL for user authorization.
func (a *Authenticator) AuthURL(state string) (string, error) {
	cred, err := a.creds.Get(core.ProviderWithings)
	if err != nil {
		return "", err
	}

	params := url.Values{}
	params.Set("response_type", "code")
	params.Set("client_id", cred.ClientID)
	params.Set("redirect_uri", cred.RedirectURI)
	params.Set("scope", scope)
	params.Set("state", state)

	return a.authURL + "?" + params.Encode(), nil
}

// Exchange trades an authorization code for tokens and persists them.
func (a *Authenticator) Exchange(ctx context.Context, code string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	cred, err := a.creds.Get(core.ProviderWithings)
	if err != nil {
		return err
	}

	form := url.Values{}
	form.Set("action", "requesttoken")
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", cred.ClientID)
	form.Set("client_secret", cred.ClientSecret)
	form.Set("code", code)
	form.Set("redirect_uri", cred.RedirectURI)

	body, err := a.tokenRequest(ctx, form)
	if err != nil {
		return fmt.Errorf("%w: exchange code: %v", core.ErrAuthFailed, err)
	}

	return a.creds.UpdateTokens(cred, body.AccessToken, body.RefreshToken, body.ExpiresIn)
}

// AccessToken returns a usable access token, refreshing proactively
// when the stored one is missing or expires within the buffer.
func (a *Authenticator) AccessToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cred, err := a.creds.Get(core.ProviderWithings)
	if err != nil {
		return "", err
	}

	if cred.AccessToken != "" && !cred.TokenExpiringWithin(refreshBuffer) {
		return cred.AccessToken, nil
	}

	return a.refresh(ctx, cred)
}

// ForceRefresh refreshes regardless of expiry. Used after a remote
// rejection of the current token.
func (a *Authenticator) ForceRefresh(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cred, err := a.creds.Get(core.ProviderWithings)
	if err != nil {
		return "", err
	}
	return a.refresh(ctx, cred)
}

func (a *Authenticator) refresh(ctx context.Context, cred *core.Credential) (string, error) {
	if cred.RefreshToken == "" {
		return "", fmt.Errorf("%w: no refresh token, authorize with `lifesync auth withings`", core.ErrAuthFailed)
	}

	form := url.Values{}
	form.Set("action", "requesttoken")
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", cred.ClientID)
	form.Set("client_secret", cred.ClientSecret)
	form.Set("refresh_token", cred.RefreshToken)

	body, err := a.tokenRequest(ctx, form)
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrTokenRefresh, err)
	}

	if err := a.creds.UpdateTokens(cred, body.AccessToken, body.RefreshToken, body.ExpiresIn); err != nil {
		return "", err
	}
	return body.AccessToken, nil
}

func (a *Authenticator) tokenRequest(ctx context.Context, form url.Values) (*tokenBody, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode token response: %v", err)
	}
	if env.Status != 0 {
		return nil, fmt.Errorf("withings status %d: %s", env.Status, env.Error)
	}

	var body tokenBody
	if err := json.Unmarshal(env.Body, &body); err != nil {
		return nil, fmt.Errorf("decode token body: %v", err)
	}
	if body.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access_token")
	}
	return &body, nil
}
