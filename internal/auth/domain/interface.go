package domain

//go:generate mockgen -destination=../../mocks/mock_repositories.go -package=mocks github.com/Renagang21/o4o-auth-service/internal/auth/domain UserRepository,AttemptRepository,OneTimeTokenRepository,SessionStore

import (
	"context"
	"time"
)

// UserRepository owns User records. Lookups return (nil, nil) when no row
// matches so callers can distinguish absence from storage failure.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, user *User) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error

	// IncrementFailedLogins adds one to the consecutive-failure counter and
	// returns the new value.
	IncrementFailedLogins(ctx context.Context, userID string) (int, error)
	SetLock(ctx context.Context, userID string, until time.Time) error
	// ResetLoginState zeroes the failure counter and clears any lock.
	ResetLoginState(ctx context.Context, userID string) error
	SetLastLogin(ctx context.Context, userID string, at time.Time) error

	// SetTokenFamily starts a fresh refresh-token lineage: stores the family
	// id and resets the generation to zero.
	SetTokenFamily(ctx context.Context, userID, family string) error
	// AdvanceTokenGeneration is the rotation compare-and-swap: it increments
	// the generation only if the stored (family, generation) pair still
	// matches, and reports whether the swap won.
	AdvanceTokenGeneration(ctx context.Context, userID, family string, generation int) (bool, error)
	// ClearTokenFamily revokes every outstanding refresh token at once.
	ClearTokenFamily(ctx context.Context, userID string) error

	// MarkEmailVerified sets the verified flag and promotes a pending
	// account to active.
	MarkEmailVerified(ctx context.Context, userID string) error
}

// AttemptRepository owns the append-only login attempt log.
type AttemptRepository interface {
	Insert(ctx context.Context, attempt *LoginAttempt) error
	CountFailuresByIP(ctx context.Context, ip string, since time.Time) (int, error)
	CountFailuresByEmail(ctx context.Context, email string, since time.Time) (int, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// OneTimeTokenRepository owns hashed single-use tokens.
type OneTimeTokenRepository interface {
	// InvalidateActive marks every unused token of the given kind for the
	// user as used, so at most one live token of a kind exists per user.
	InvalidateActive(ctx context.Context, userID, kind string) error
	Store(ctx context.Context, token *OneTimeToken) error
	// Consume marks the token matching (hash, kind) used and returns it.
	// The test-unused-and-mark-used step is a single storage operation;
	// a second call for the same token returns (nil, nil).
	Consume(ctx context.Context, tokenHash, kind string) (*OneTimeToken, error)
}

// SessionStore tracks SSO sessions per user across devices and subdomains.
type SessionStore interface {
	Create(ctx context.Context, session *Session) error
	Get(ctx context.Context, sessionID string) (*Session, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	ListByUser(ctx context.Context, userID string) ([]Session, error)
	// EnforceLimit evicts oldest-first until a new session can be created
	// without exceeding the cap. It returns the number evicted.
	EnforceLimit(ctx context.Context, userID string) (int, error)
	Remove(ctx context.Context, sessionID, userID string) error
	RemoveAll(ctx context.Context, userID string) (int, error)
}
