package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Session state errors
	ErrSessionExpired  = errors.New("session expired")
	ErrSessionInactive = errors.New("session inactive")

	// OAuth handshake errors
	ErrStateNotFound      = errors.New("oauth state not found or expired")
	ErrRedirectNotAllowed = errors.New("redirect uri not in allowlist")
	ErrEmailNotVerified   = errors.New("provider email not verified")

	// Vault errors
	ErrInvalidPassphrase   = errors.New("invalid passphrase")
	ErrInvalidRecoveryCode = errors.New("invalid or already used recovery code")
	ErrElevatedLock        = errors.New("vault lock requires elevated unlock")
	ErrFreshAuthRequired   = errors.New("fresh authentication required")
)
