// Package common defines shared constants and sentinel errors used across
// the gatekeeper server layers. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("already exists")

	// Service-level errors.
	ErrorInternal             = errors.New("internal error")
	ErrorAuthenticationFailed = errors.New("authentication failed")
	ErrorUnauthorized         = errors.New("unauthorized")
	ErrorForbidden            = errors.New("forbidden")
	ErrorValidation           = errors.New("validation error")

	// Operations that exist in the contract but are refused on purpose.
	ErrorUnsupported    = errors.New("unsupported operation")
	ErrorNotImplemented = errors.New("not implemented")

	// Session cookie errors (invalid signature, malformed, expired).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
