package auth

import "errors"

// Sentinel errors for credential providers.
var (
	// ErrMissingCredentials indicates the provider holds no credential.
	ErrMissingCredentials = errors.New("auth: missing credentials")

	// ErrInvalidCredentials indicates the credential cannot be used.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrTokenExpired indicates the token is past its expiry.
	ErrTokenExpired = errors.New("auth: token expired")

	// ErrTokenMalformed indicates the token could not be parsed.
	ErrTokenMalformed = errors.New("auth: token malformed")

	// ErrNoTokenSource indicates a refresh was needed but no source is configured.
	ErrNoTokenSource = errors.New("auth: no token source configured")
)
