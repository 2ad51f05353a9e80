package errors

import (
	"errors"
)

var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrAccountLocked        = errors.New("account locked")
	ErrAccountInactive      = errors.New("account inactive")
	ErrTooManyAttemptsIP    = errors.New("too many attempts from ip")
	ErrTooManyAttemptsEmail = errors.New("too many attempts for email")
	ErrEmailAlreadyInUse    = errors.New("email already in use")
	ErrUserNotFound         = errors.New("user not found")

	// ErrInvalidToken covers malformed, expired, signature-invalid and
	// family-mismatched tokens alike; callers must not be able to tell a
	// detected replay apart from ordinary expiry.
	ErrInvalidToken = errors.New("invalid or expired token")

	ErrOneTimeTokenInvalid = errors.New("one-time token invalid")
	ErrOneTimeTokenExpired = errors.New("one-time token expired")

	ErrSessionNotFound = errors.New("session not found")
)

// Codes returned in the {error, code} response body.
const (
	CodeInvalidInput       = "INVALID_INPUT"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeAccountLocked      = "ACCOUNT_LOCKED"
	CodeAccountInactive    = "ACCOUNT_INACTIVE"
	CodeTooManyAttempts    = "TOO_MANY_ATTEMPTS"
	CodeEmailInUse         = "EMAIL_IN_USE"
	CodeTokenInvalid       = "TOKEN_INVALID"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeInternal           = "INTERNAL_ERROR"
)
