// Package whoop implements the Whoop workout source.
package whoop

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/lifesync-hq/lifesync/internal/core"
	"github.com/lifesync-hq/lifesync/internal/storage"
)

const (
	defaultBaseURL = "https://api.prod.whoop.com"

	// refreshBuffer is how close to expiry a token may get before a
	// fetch refreshes it proactively instead of waiting for a 401.
	refreshBuffer = 60 * time.Second
)

var scopes = []string{
	"offline", // for the refresh token
	"read:profile",
	"read:workout",
	"read:cycles",
	"read:recovery",
	"read:sleep",
}

// Authenticator manages the Whoop OAuth2 token lifecycle. Refreshed
// tokens are persisted through the credential store before they are
// handed to any caller.
type Authenticator struct {
	creds    *storage.CredentialStore
	endpoint oauth2.Endpoint
	client   *http.Client

	// mu serializes check-expiry-then-refresh so concurrent fetches
	// cannot race to persist two different token pairs.
	mu sync.Mutex
}

// NewAuthenticator creates an authenticator backed by the credential
// store.
func NewAuthenticator(creds *storage.CredentialStore) *Authenticator {
	return &Authenticator{
		creds: creds,
		endpoint: oauth2.Endpoint{
			AuthURL:  defaultBaseURL + "/oauth/oauth2/auth",
			TokenURL: defaultBaseURL + "/oauth/oauth2/token",
		},
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (a *Authenticator) config(cred *core.Credential) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
		RedirectURL:  cred.RedirectURI,
		Scopes:       scopes,
		Endpoint:     a.endpoint,
	}
}

// AuthURL returns the URL for user authorization.
func (a *Authenticator) AuthURL(state string) (string, error) {
	cred, err := a.creds.Get(core.ProviderWhoop)
	if err != nil {
		return "", err
	}
	return a.config(cred).AuthCodeURL(state), nil
}

// Exchange trades an authorization code for tokens and persists them.
func (a *Authenticator) Exchange(ctx context.Context, code string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	cred, err := a.creds.Get(core.ProviderWhoop)
	if err != nil {
		return err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.client)
	token, err := a.config(cred).Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("%w: exchange code: %v", core.ErrAuthFailed, err)
	}

	return a.persist(cred, token)
}

// AccessToken returns a usable access token, refreshing first when
// the stored one is missing or expires within the buffer. The new
// token pair is durably persisted before this returns.
func (a *Authenticator) AccessToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cred, err := a.creds.Get(core.ProviderWhoop)
	if err != nil {
		return "", err
	}

	if cred.AccessToken != "" && !cred.TokenExpiringWithin(refreshBuffer) {
		return cred.AccessToken, nil
	}

	return a.refresh(ctx, cred)
}

// ForceRefresh discards the current access token and refreshes,
// regardless of expiry. Used after a remote 401.
func (a *Authenticator) ForceRefresh(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cred, err := a.creds.Get(core.ProviderWhoop)
	if err != nil {
		return "", err
	}
	return a.refresh(ctx, cred)
}

func (a *Authenticator) refresh(ctx context.Context, cred *core.Credential) (string, error) {
	if cred.RefreshToken == "" {
		return "", fmt.Errorf("%w: no refresh token, authorize with `lifesync auth whoop`", core.ErrAuthFailed)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.client)
	source := a.config(cred).TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken})

	token, err := source.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrTokenRefresh, err)
	}

	if err := a.persist(cred, token); err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

func (a *Authenticator) persist(cred *core.Credential, token *oauth2.Token) error {
	expiresIn := 0
	if !token.Expiry.IsZero() {
		expiresIn = int(time.Until(token.Expiry).Seconds())
	}
	return a.creds.UpdateTokens(cred, token.AccessToken, token.RefreshToken, expiresIn)
}
