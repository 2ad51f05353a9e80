package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Renagang21/o4o-auth-service/config"
	"github.com/Renagang21/o4o-auth-service/internal/auth/domain"
	"github.com/Renagang21/o4o-auth-service/internal/auth/dto"
	autherror "github.com/Renagang21/o4o-auth-service/internal/errors"
	"github.com/Renagang21/o4o-auth-service/internal/mailer"
	"github.com/Renagang21/o4o-auth-service/pkg/constant"
)

// LoginSecurityService gates credential checks with per-IP and per-email
// rolling-window limits, maintains the per-account lockout state, and runs
// abuse detection over the attempt log.
type LoginSecurityService struct {
	users    domain.UserRepository
	attempts domain.AttemptRepository
	mailer   mailer.Mailer
	cfg      *config.Config
	logger   *slog.Logger
}

func NewLoginSecurityService(users domain.UserRepository, attempts domain.AttemptRepository,
	m mailer.Mailer, cfg *config.Config, logger *slog.Logger) *LoginSecurityService {
	return &LoginSecurityService{
		users:    users,
		attempts: attempts,
		mailer:   m,
		cfg:      cfg,
		logger:   logger,
	}
}

// IsAllowed runs before any password comparison. The IP and email limits are
// checked independently and both must pass: one bounds credential stuffing
// from a single address, the other a distributed attack on one account. A
// window gate trips only once its cap is exceeded, so an account sitting
// exactly at the cap still reaches the lock check and reports the lock. Any
// storage failure denies the attempt.
func (s *LoginSecurityService) IsAllowed(ctx context.Context, email, ip string) (dto.LoginCheck, error) {
	since := time.Now().Add(-s.cfg.AttemptWindow)

	ipFailures, err := s.attempts.CountFailuresByIP(ctx, ip, since)
	if err != nil {
		return dto.LoginCheck{}, fmt.Errorf("count ip failures: %w", err)
	}
	if ipFailures > s.cfg.MaxAttemptsPerIP {
		return dto.LoginCheck{Allowed: false, Reason: constant.ReasonTooManyFromIP}, nil
	}

	emailFailures, err := s.attempts.CountFailuresByEmail(ctx, email, since)
	if err != nil {
		return dto.LoginCheck{}, fmt.Errorf("count email failures: %w", err)
	}
	if emailFailures > s.cfg.MaxAttemptsPerEmail {
		return dto.LoginCheck{Allowed: false, Reason: constant.ReasonTooManyForEmail}, nil
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return dto.LoginCheck{}, fmt.Errorf("load user for gate check: %w", err)
	}
	if user != nil && user.Locked(time.Now()) {
		return dto.LoginCheck{Allowed: false, Reason: constant.ReasonAccountLocked}, nil
	}

	return dto.LoginCheck{Allowed: true}, nil
}

// RecordAttempt appends to the attempt log. Failures additionally feed the
// suspicious-activity checks. Logging failures are non-fatal to the login
// flow; the caller's result never depends on the append succeeding.
func (s *LoginSecurityService) RecordAttempt(ctx context.Context, email, ip, userAgent string, success bool, reason string) {
	attempt := &domain.LoginAttempt{
		Email:         email,
		IPAddress:     ip,
		UserAgent:     userAgent,
		Success:       success,
		FailureReason: reason,
	}
	if err := s.attempts.Insert(ctx, attempt); err != nil {
		s.logger.WarnContext(ctx, "failed to record login attempt", "email", email, "error", err)
	}

	if !success {
		s.checkSuspiciousActivity(ctx, email, ip)
	}
}

// HandleFailure advances the consecutive-failure counter and locks the
// account once the cap is reached.
func (s *LoginSecurityService) HandleFailure(ctx context.Context, user *domain.User) error {
	count, err := s.users.IncrementFailedLogins(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("increment failed logins: %w", err)
	}

	if count >= s.cfg.MaxFailedLogins {
		until := time.Now().Add(s.cfg.LockoutDuration)
		if err := s.users.SetLock(ctx, user.ID, until); err != nil {
			return fmt.Errorf("lock account: %w", err)
		}
		s.logger.WarnContext(ctx, "account locked after repeated failures",
			"user_id", user.ID, "failures", count, "locked_until", until)
	}

	return nil
}

// HandleSuccess resets the failure counter, clears any lock and stamps the
// last login time.
func (s *LoginSecurityService) HandleSuccess(ctx context.Context, user *domain.User) error {
	if err := s.users.ResetLoginState(ctx, user.ID); err != nil {
		return fmt.Errorf("reset login state: %w", err)
	}
	if err := s.users.SetLastLogin(ctx, user.ID, time.Now()); err != nil {
		s.logger.WarnContext(ctx, "failed to stamp last login", "user_id", user.ID, "error", err)
	}

	return nil
}

// LockAccount is the administrative override: it locks regardless of the
// counter state.
func (s *LoginSecurityService) LockAccount(ctx context.Context, email string, duration time.Duration) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return autherror.ErrUserNotFound
	}

	return s.users.SetLock(ctx, user.ID, time.Now().Add(duration))
}

// UnlockAccount clears the lock and the failure counter.
func (s *LoginSecurityService) UnlockAccount(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return autherror.ErrUserNotFound
	}

	return s.users.ResetLoginState(ctx, user.ID)
}

// PurgeAttempts drops attempt rows past the retention horizon.
func (s *LoginSecurityService) PurgeAttempts(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.cfg.AttemptRetention)

	return s.attempts.DeleteOlderThan(ctx, cutoff)
}

func (s *LoginSecurityService) checkSuspiciousActivity(ctx context.Context, email, ip string) {
	hourAgo := time.Now().Add(-time.Hour)

	ipFailures, err := s.attempts.CountFailuresByIP(ctx, ip, hourAgo)
	if err != nil {
		s.logger.WarnContext(ctx, "suspicious-activity ip check failed", "ip", ip, "error", err)
	} else if ipFailures > s.cfg.SuspiciousIPThreshold {
		s.logger.WarnContext(ctx, "suspicious login activity from ip", "ip", ip, "failures_last_hour", ipFailures)
	}

	emailFailures, err := s.attempts.CountFailuresByEmail(ctx, email, hourAgo)
	if err != nil {
		s.logger.WarnContext(ctx, "suspicious-activity email check failed", "email", email, "error", err)
		return
	}
	if emailFailures > 3*s.cfg.MaxAttemptsPerEmail {
		user, err := s.users.GetByEmail(ctx, email)
		if err != nil || user == nil {
			return
		}
		alert := "We noticed repeated failed login attempts on your account. " +
			"If this wasn't you, consider resetting your password."
		if err := s.mailer.SendSecurityAlert(ctx, user.Email, alert); err != nil {
			s.logger.WarnContext(ctx, "failed to send security alert", "email", email, "error", err)
		}
	}
}
