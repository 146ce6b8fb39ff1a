// Package storage provides persistence for lifesync.
package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lifesync-hq/lifesync/internal/core"
)

// Bootstrap supplies a statically configured credential for a provider
// that has no persisted row yet. It may return nil.
type Bootstrap func(core.Provider) *core.Credential

// CredentialStore manages credential persistence. It is the only
// place tokens are read or written.
type CredentialStore struct {
	db        *DB
	bootstrap Bootstrap
}

// NewCredentialStore creates a new credential store. The bootstrap
// function may be nil when no static configuration exists.
func NewCredentialStore(db *DB, bootstrap Bootstrap) *CredentialStore {
	return &CredentialStore{db: db, bootstrap: bootstrap}
}

// Get retrieves the credential for a provider. The persisted row wins;
// static configuration is consulted only when no row exists, so a
// provider can authorize for the first time. Returns
// core.ErrCredentialNotFound when neither source has anything.
func (s *CredentialStore) Get(provider core.Provider) (*core.Credential, error) {
	cred, err := s.getRow(provider)
	if err == nil {
		return cred, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("query credential: %w", err)
	}

	if s.bootstrap != nil {
		if boot := s.bootstrap(provider); boot != nil {
			return boot, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", core.ErrCredentialNotFound, provider)
}

// Exists reports whether a persisted row exists for the provider.
func (s *CredentialStore) Exists(provider core.Provider) (bool, error) {
	var count int
	err := s.db.conn.QueryRow(
		`SELECT COUNT(*) FROM credentials WHERE provider = ?`, provider,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check exists: %w", err)
	}
	return count > 0, nil
}

// Save creates or replaces the persisted credential for a provider.
// Called when an authorization flow completes; from then on the store
// is authoritative over any static configuration.
func (s *CredentialStore) Save(cred *core.Credential) error {
	now := time.Now().UTC()
	_, err := s.db.conn.Exec(`
		INSERT INTO credentials (
			provider, client_id, client_secret, redirect_uri,
			access_token, refresh_token, token_expires_at,
			api_token, workspace_id, username, password,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (provider) DO UPDATE SET
			client_id        = excluded.client_id,
			client_secret    = excluded.client_secret,
			redirect_uri     = excluded.redirect_uri,
			access_token     = excluded.access_token,
			refresh_token    = excluded.refresh_token,
			token_expires_at = excluded.token_expires_at,
			api_token        = excluded.api_token,
			workspace_id     = excluded.workspace_id,
			username         = excluded.username,
			password         = excluded.password,
			updated_at       = excluded.updated_at
	`,
		cred.Provider, cred.ClientID, cred.ClientSecret, cred.RedirectURI,
		cred.AccessToken, cred.RefreshToken, cred.TokenExpiresAt,
		cred.APIToken, cred.WorkspaceID, cred.Username, cred.Password,
		now, now,
	)
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

// UpdateTokens persists a refreshed token pair. The expiry is computed
// here, from expiresIn seconds, before anything touches the database.
// The write is durable before the caller sees the new token: a crash
// after refresh never leaves the system holding a token it cannot
// reconstruct.
//
// If the provider has no persisted row yet (env bootstrap), the full
// credential is inserted so the store becomes authoritative.
func (s *CredentialStore) UpdateTokens(cred *core.Credential, accessToken, refreshToken string, expiresIn int) error {
	now := time.Now().UTC()

	cred.AccessToken = accessToken
	if refreshToken != "" {
		cred.RefreshToken = refreshToken
	}
	if expiresIn > 0 {
		expiry := now.Add(time.Duration(expiresIn) * time.Second)
		cred.TokenExpiresAt = &expiry
	}

	exists, err := s.Exists(cred.Provider)
	if err != nil {
		return err
	}
	if !exists {
		return s.Save(cred)
	}

	_, err = s.db.conn.Exec(`
		UPDATE credentials SET
			access_token     = ?,
			refresh_token    = ?,
			token_expires_at = ?,
			updated_at       = ?
		WHERE provider = ?
	`,
		cred.AccessToken, cred.RefreshToken, cred.TokenExpiresAt, now, cred.Provider,
	)
	if err != nil {
		return fmt.Errorf("update tokens: %w", err)
	}
	return nil
}

// Delete removes the persisted credential for a provider.
func (s *CredentialStore) Delete(provider core.Provider) error {
	_, err := s.db.conn.Exec(`DELETE FROM credentials WHERE provider = ?`, provider)
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

func (s *CredentialStore) getRow(provider core.Provider) (*core.Credential, error) {
	cred := &core.Credential{}
	var expiresAt sql.NullTime

	err := s.db.conn.QueryRow(`
		SELECT provider, client_id, client_secret, redirect_uri,
		       access_token, refresh_token, token_expires_at,
		       api_token, workspace_id, username, password,
		       created_at, updated_at
		FROM credentials WHERE provider = ?
	`, provider).Scan(
		&cred.Provider, &cred.ClientID, &cred.ClientSecret, &cred.RedirectURI,
		&cred.AccessToken, &cred.RefreshToken, &expiresAt,
		&cred.APIToken, &cred.WorkspaceID, &cred.Username, &cred.Password,
		&cred.CreatedAt, &cred.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if expiresAt.Valid {
		t := expiresAt.Time
		cred.TokenExpiresAt = &t
	}

	return cred, nil
}
