package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Renagang21/o4o-auth-service/internal/auth/domain"
)

// DB is the subset of pgxpool.Pool the repository uses, kept narrow so tests
// can substitute pgxmock.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository implements domain.UserRepository, domain.AttemptRepository and
// domain.OneTimeTokenRepository on Postgres. Every call runs under a bounded
// timeout so a stalled store fails the request closed.
type Repository struct {
	db      DB
	timeout time.Duration
}

func NewRepository(db DB, timeout time.Duration) *Repository {
	return &Repository{db: db, timeout: timeout}
}

func (r *Repository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

const userColumns = `id, email, password_hash, role, status, email_verified,
	failed_logins, locked_until, token_family, token_generation, last_login_at,
	created_at, updated_at`

func (r *Repository) scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Role,
		&user.Status, &user.EmailVerified, &user.FailedLogins, &user.LockedUntil,
		&user.TokenFamily, &user.TokenGeneration, &user.LastLoginAt,
		&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &user, nil
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 LIMIT 1`
	return r.scanUser(r.db.QueryRow(ctx, query, email))
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 LIMIT 1`
	return r.scanUser(r.db.QueryRow(ctx, query, id))
}

func (r *Repository) Create(ctx context.Context, user *domain.User) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, role, status, email_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, user.ID, user.Email, user.PasswordHash, user.Role, user.Status,
		user.EmailVerified, user.CreatedAt, user.UpdatedAt)

	return err
}

func (r *Repository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1
	`, userID, passwordHash)

	return err
}

func (r *Repository) IncrementFailedLogins(ctx context.Context, userID string) (int, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var count int
	err := r.db.QueryRow(ctx, `
		UPDATE users SET failed_logins = failed_logins + 1, updated_at = now()
		WHERE id = $1
		RETURNING failed_logins
	`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("increment failed logins: %w", err)
	}

	return count, nil
}

func (r *Repository) SetLock(ctx context.Context, userID string, until time.Time) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		UPDATE users SET locked_until = $2, updated_at = now() WHERE id = $1
	`, userID, until)

	return err
}

func (r *Repository) ResetLoginState(ctx context.Context, userID string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		UPDATE users SET failed_logins = 0, locked_until = NULL, updated_at = now() WHERE id = $1
	`, userID)

	return err
}

func (r *Repository) SetLastLogin(ctx context.Context, userID string, at time.Time) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		UPDATE users SET last_login_at = $2, updated_at = now() WHERE id = $1
	`, userID, at)

	return err
}

func (r *Repository) SetTokenFamily(ctx context.Context, userID, family string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		UPDATE users SET token_family = $2, token_generation = 0, updated_at = now() WHERE id = $1
	`, userID, family)

	return err
}

// AdvanceTokenGeneration performs the rotation compare-and-swap in a single
// statement. Two racing rotations on the same token produce exactly one
// affected row; the loser sees false.
func (r *Repository) AdvanceTokenGeneration(ctx context.Context, userID, family string, generation int) (bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
		UPDATE users SET token_generation = token_generation + 1, updated_at = now()
		WHERE id = $1 AND token_family = $2 AND token_generation = $3
	`, userID, family, generation)
	if err != nil {
		return false, fmt.Errorf("advance token generation: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

func (r *Repository) ClearTokenFamily(ctx context.Context, userID string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		UPDATE users SET token_family = NULL, token_generation = 0, updated_at = now() WHERE id = $1
	`, userID)

	return err
}

func (r *Repository) MarkEmailVerified(ctx context.Context, userID string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		UPDATE users SET email_verified = TRUE,
			status = CASE WHEN status = 'pending' THEN 'active' ELSE status END,
			updated_at = now()
		WHERE id = $1
	`, userID)

	return err
}

func (r *Repository) Insert(ctx context.Context, attempt *domain.LoginAttempt) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		INSERT INTO login_attempts (id, email, ip_address, user_agent, successful, failure_reason, attempt_time)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, now())
	`, attempt.Email, attempt.IPAddress, attempt.UserAgent, attempt.Success, attempt.FailureReason)

	return err
}

func (r *Repository) CountFailuresByIP(ctx context.Context, ip string, since time.Time) (int, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var count int
	err := r.db.QueryRow(ctx, `
		SELECT count(*) FROM login_attempts
		WHERE ip_address = $1 AND successful = FALSE AND attempt_time >= $2
	`, ip, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count failures by ip: %w", err)
	}

	return count, nil
}

func (r *Repository) CountFailuresByEmail(ctx context.Context, email string, since time.Time) (int, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var count int
	err := r.db.QueryRow(ctx, `
		SELECT count(*) FROM login_attempts
		WHERE email = $1 AND successful = FALSE AND attempt_time >= $2
	`, email, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count failures by email: %w", err)
	}

	return count, nil
}

func (r *Repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.Exec(ctx, `DELETE FROM login_attempts WHERE attempt_time < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge login attempts: %w", err)
	}

	return tag.RowsAffected(), nil
}

func (r *Repository) InvalidateActive(ctx context.Context, userID, kind string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		UPDATE one_time_tokens SET used_at = now()
		WHERE user_id = $1 AND kind = $2 AND used_at IS NULL
	`, userID, kind)

	return err
}

func (r *Repository) Store(ctx context.Context, token *domain.OneTimeToken) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		INSERT INTO one_time_tokens (id, user_id, kind, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, token.ID, token.UserID, token.Kind, token.TokenHash, token.ExpiresAt, token.CreatedAt)

	return err
}

// Consume marks the matching unused token used and returns it in one
// statement, so two near-simultaneous consumers cannot both succeed.
func (r *Repository) Consume(ctx context.Context, tokenHash, kind string) (*domain.OneTimeToken, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE one_time_tokens SET used_at = now()
		WHERE token_hash = $1 AND kind = $2 AND used_at IS NULL
		RETURNING id, user_id, kind, token_hash, expires_at, used_at, created_at
	`
	var token domain.OneTimeToken
	err := r.db.QueryRow(ctx, query, tokenHash, kind).Scan(&token.ID, &token.UserID,
		&token.Kind, &token.TokenHash, &token.ExpiresAt, &token.UsedAt, &token.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("consume one-time token: %w", err)
	}

	return &token, nil
}
