package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Renagang21/o4o-auth-service/config"
	"github.com/Renagang21/o4o-auth-service/internal/auth/domain"
	"github.com/Renagang21/o4o-auth-service/internal/auth/dto"
	autherror "github.com/Renagang21/o4o-auth-service/internal/errors"
	"github.com/Renagang21/o4o-auth-service/internal/mailer"
	"github.com/Renagang21/o4o-auth-service/pkg/constant"
)

// AuthService drives the login, logout, registration and recovery flows,
// delegating to the token, login-security, session and one-time-token
// services.
type AuthService struct {
	users    domain.UserRepository
	tokens   TokenIssuer
	security *LoginSecurityService
	sessions domain.SessionStore
	oneTime  *OneTimeTokenService
	mailer   mailer.Mailer
	cfg      *config.Config
	logger   *slog.Logger
}

func NewAuthService(users domain.UserRepository, tokens TokenIssuer, security *LoginSecurityService,
	sessions domain.SessionStore, oneTime *OneTimeTokenService, m mailer.Mailer,
	cfg *config.Config, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:    users,
		tokens:   tokens,
		security: security,
		sessions: sessions,
		oneTime:  oneTime,
		mailer:   m,
		cfg:      cfg,
		logger:   logger,
	}
}

func toUserOutput(user *domain.User) dto.UserOutput {
	return dto.UserOutput{
		ID:            user.ID,
		Email:         user.Email,
		Role:          user.Role,
		Status:        user.Status,
		EmailVerified: user.EmailVerified,
		CreatedAt:     user.CreatedAt,
	}
}

// Register creates a pending account and sends the verification email. The
// account stays pending until the verification token is consumed.
func (s *AuthService) Register(ctx context.Context, input dto.RegisterInput) (*domain.User, error) {
	existing, err := s.users.GetByEmail(ctx, input.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, autherror.ErrEmailAlreadyInUse
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        input.Email,
		PasswordHash: string(hashed),
		Role:         constant.DefaultUserRole,
		Status:       constant.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	token, err := s.oneTime.Issue(ctx, user.ID, constant.TokenKindEmailVerification)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to issue verification token", "user_id", user.ID, "error", err)
		return user, nil
	}
	if err := s.mailer.SendEmailVerification(ctx, user.Email, token); err != nil {
		s.logger.WarnContext(ctx, "failed to send verification email", "user_id", user.ID, "error", err)
	}

	return user, nil
}

// Login runs the throttling gate before the password comparison, then on
// success resets the lock state, enforces the concurrent-session cap, starts
// a new SSO session and issues a fresh token family.
func (s *AuthService) Login(ctx context.Context, input dto.LoginInput) (*dto.LoginResult, error) {
	check, err := s.security.IsAllowed(ctx, input.Email, input.IPAddress)
	if err != nil {
		// Fail closed: a stalled or broken store denies access.
		return nil, fmt.Errorf("login gate check: %w", err)
	}
	if !check.Allowed {
		s.security.RecordAttempt(ctx, input.Email, input.IPAddress, input.UserAgent, false, check.Reason)
		switch check.Reason {
		case constant.ReasonAccountLocked:
			return nil, autherror.ErrAccountLocked
		case constant.ReasonTooManyFromIP:
			return nil, autherror.ErrTooManyAttemptsIP
		default:
			return nil, autherror.ErrTooManyAttemptsEmail
		}
	}

	user, err := s.users.GetByEmail(ctx, input.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		s.security.RecordAttempt(ctx, input.Email, input.IPAddress, input.UserAgent, false, constant.ReasonAccountNotFound)
		return nil, autherror.ErrInvalidCredentials
	}

	if user.Locked(time.Now()) {
		s.security.RecordAttempt(ctx, input.Email, input.IPAddress, input.UserAgent, false, constant.ReasonAccountLocked)
		return nil, autherror.ErrAccountLocked
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)) != nil {
		if err := s.security.HandleFailure(ctx, user); err != nil {
			s.logger.ErrorContext(ctx, "failed to record login failure", "user_id", user.ID, "error", err)
		}
		s.security.RecordAttempt(ctx, input.Email, input.IPAddress, input.UserAgent, false, constant.ReasonInvalidPassword)
		return nil, autherror.ErrInvalidCredentials
	}

	if user.Status != constant.StatusActive {
		s.security.RecordAttempt(ctx, input.Email, input.IPAddress, input.UserAgent, false, constant.ReasonAccountInactive)
		return nil, autherror.ErrAccountInactive
	}

	if err := s.security.HandleSuccess(ctx, user); err != nil {
		return nil, err
	}
	s.security.RecordAttempt(ctx, input.Email, input.IPAddress, input.UserAgent, true, "")

	// Make room before creating the session so login never fails on the cap.
	if _, err := s.sessions.EnforceLimit(ctx, user.ID); err != nil {
		s.logger.WarnContext(ctx, "failed to enforce session limit", "user_id", user.ID, "error", err)
	}

	sess := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		UserAgent: input.UserAgent,
		IPAddress: input.IPAddress,
		CreatedAt: time.Now(),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		s.logger.WarnContext(ctx, "failed to create sso session", "user_id", user.ID, "error", err)
	}

	tokens, err := s.tokens.Issue(ctx, user)
	if err != nil {
		return nil, err
	}

	return &dto.LoginResult{
		User:      toUserOutput(user),
		Tokens:    *tokens,
		SessionID: sess.ID,
	}, nil
}

// Refresh rotates the refresh token; replay handling lives in the token
// service, which also gets the caller's device metadata for its telemetry.
func (s *AuthService) Refresh(ctx context.Context, input dto.RefreshInput) (*dto.TokenPair, error) {
	return s.tokens.Rotate(ctx, input)
}

// Logout revokes the user's refresh-token family and drops one SSO session.
// Best-effort: an already-invalid token still clears what it can.
func (s *AuthService) Logout(ctx context.Context, userID, sessionID string) error {
	if err := s.tokens.RevokeFamily(ctx, userID); err != nil {
		return fmt.Errorf("revoke token family: %w", err)
	}
	if sessionID != "" {
		if err := s.sessions.Remove(ctx, sessionID, userID); err != nil {
			s.logger.WarnContext(ctx, "failed to remove session on logout", "user_id", userID, "error", err)
		}
	}

	return nil
}

// LogoutAll revokes the family and removes every SSO session for the user.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) error {
	if err := s.tokens.RevokeFamily(ctx, userID); err != nil {
		return fmt.Errorf("revoke token family: %w", err)
	}

	removed, err := s.sessions.RemoveAll(ctx, userID)
	if err != nil {
		return fmt.Errorf("remove user sessions: %w", err)
	}
	s.logger.InfoContext(ctx, "logged out everywhere", "user_id", userID, "sessions_removed", removed)

	return nil
}

// ForgotPassword never reveals whether the email exists; the caller always
// sees the same outcome.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}

	token, err := s.oneTime.Issue(ctx, user.ID, constant.TokenKindPasswordReset)
	if err != nil {
		return err
	}

	return s.mailer.SendPasswordReset(ctx, user.Email, token)
}

// ResetPassword consumes the reset token, replaces the password hash, clears
// the lock state and revokes every outstanding refresh token: a successful
// reset means the old credential can no longer be under attack.
func (s *AuthService) ResetPassword(ctx context.Context, input dto.ResetPasswordInput) error {
	userID, err := s.oneTime.Consume(ctx, input.Token, constant.TokenKindPasswordReset)
	if err != nil {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	if err := s.users.UpdatePassword(ctx, userID, string(hashed)); err != nil {
		return err
	}
	if err := s.users.ResetLoginState(ctx, userID); err != nil {
		return err
	}
	if err := s.tokens.RevokeFamily(ctx, userID); err != nil {
		s.logger.WarnContext(ctx, "failed to revoke token family after reset", "user_id", userID, "error", err)
	}

	return nil
}

// VerifyEmail consumes the verification token, marks the address verified
// and promotes a pending account to active.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	userID, err := s.oneTime.Consume(ctx, token, constant.TokenKindEmailVerification)
	if err != nil {
		return err
	}

	return s.users.MarkEmailVerified(ctx, userID)
}

// ResendVerification mirrors ForgotPassword's anti-enumeration shape.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil || user.EmailVerified {
		return nil
	}

	token, err := s.oneTime.Issue(ctx, user.ID, constant.TokenKindEmailVerification)
	if err != nil {
		return err
	}

	return s.mailer.SendEmailVerification(ctx, user.Email, token)
}

// Sessions lists the user's live SSO sessions.
func (s *AuthService) Sessions(ctx context.Context, userID string) ([]dto.SessionOutput, error) {
	sessions, err := s.sessions.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]dto.SessionOutput, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, dto.SessionOutput{
			ID:        sess.ID,
			IPAddress: sess.IPAddress,
			UserAgent: sess.UserAgent,
			CreatedAt: sess.CreatedAt,
		})
	}

	return out, nil
}

// ForceLogout is the admin override for LogoutAll.
func (s *AuthService) ForceLogout(ctx context.Context, userID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return autherror.ErrUserNotFound
	}

	return s.LogoutAll(ctx, user.ID)
}
