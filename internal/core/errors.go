// Package core defines the fundamental types and errors for lifesync.
package core

import "errors"

// Core errors that can occur across the system. Provider clients wrap
// these with fmt.Errorf and %w; the sync commands classify with
// errors.Is at the boundary where failures become SyncResults.
var (
	// Credential errors
	ErrCredentialNotFound = errors.New("credential not found")
	ErrUnknownProvider    = errors.New("unknown provider")

	// Auth errors: the stored credential is unusable and needs
	// operator re-authorization. Never retried automatically.
	ErrAuthFailed   = errors.New("authentication failed")
	ErrTokenRefresh = errors.New("token refresh rejected")

	// Transient errors: safe to retry on the next scheduled run.
	ErrTransient   = errors.New("transient network failure")
	ErrRateLimited = errors.New("rate limited")

	// Parse errors: the remote or helper response does not match the
	// expected shape.
	ErrBadResponse = errors.New("malformed response")

	// Storage errors
	ErrRecordNotFound = errors.New("record not found")

	// Process bridge errors
	ErrBridgeFailed  = errors.New("helper process failed")
	ErrBridgeTimeout = errors.New("helper process timed out")
)

// IsAuthError reports whether err means the operator must
// re-authorize rather than investigate a data problem.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuthFailed) ||
		errors.Is(err, ErrTokenRefresh) ||
		errors.Is(err, ErrCredentialNotFound)
}

// IsTransient reports whether err is expected to clear on its own by
// the next scheduled run.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrRateLimited)
}
