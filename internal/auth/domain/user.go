package domain

import "time"

type User struct {
	ID              string
	Email           string
	PasswordHash    string
	Role            string
	Status          string
	EmailVerified   bool
	FailedLogins    int
	LockedUntil     *time.Time
	TokenFamily     *string
	TokenGeneration int
	LastLoginAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Locked reports whether the account is under a lockout at the given instant.
func (u *User) Locked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

type LoginAttempt struct {
	ID            string
	Email         string
	IPAddress     string
	UserAgent     string
	Success       bool
	FailureReason string
	AttemptTime   time.Time
}

// OneTimeToken is the stored form of a password-reset or email-verification
// token. Only the SHA-256 hash of the issued value is kept.
type OneTimeToken struct {
	ID        string
	UserID    string
	Kind      string
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Session is one logged-in device/browser, shared across subdomains for SSO.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	UserAgent string    `json:"user_agent"`
	IPAddress string    `json:"ip_address"`
	CreatedAt time.Time `json:"created_at"`
}
