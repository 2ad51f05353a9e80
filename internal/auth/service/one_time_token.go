package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Renagang21/o4o-auth-service/internal/auth/domain"
	autherror "github.com/Renagang21/o4o-auth-service/internal/errors"
	"github.com/Renagang21/o4o-auth-service/pkg/constant"
)

// OneTimeTokenService issues and consumes the hashed single-use tokens
// behind password reset and email verification. Plaintext values exist only
// in the issue response; storage sees the SHA-256 hash.
type OneTimeTokenService struct {
	tokens          domain.OneTimeTokenRepository
	resetTTL        time.Duration
	verificationTTL time.Duration
	logger          *slog.Logger
}

func NewOneTimeTokenService(tokens domain.OneTimeTokenRepository,
	resetTTL, verificationTTL time.Duration, logger *slog.Logger) *OneTimeTokenService {
	return &OneTimeTokenService{
		tokens:          tokens,
		resetTTL:        resetTTL,
		verificationTTL: verificationTTL,
		logger:          logger,
	}
}

func hashToken(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

func (s *OneTimeTokenService) ttlFor(kind string) (time.Duration, error) {
	switch kind {
	case constant.TokenKindPasswordReset:
		return s.resetTTL, nil
	case constant.TokenKindEmailVerification:
		return s.verificationTTL, nil
	default:
		return 0, fmt.Errorf("unknown one-time token kind %q", kind)
	}
}

// Issue creates a fresh token of the given kind and invalidates every prior
// unused token of that kind for the user, so at most one is live at a time.
// The returned plaintext is handed to the email collaborator and never
// stored.
func (s *OneTimeTokenService) Issue(ctx context.Context, userID, kind string) (string, error) {
	ttl, err := s.ttlFor(kind)
	if err != nil {
		return "", err
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate one-time token: %w", err)
	}
	plaintext := hex.EncodeToString(raw)

	if err := s.tokens.InvalidateActive(ctx, userID, kind); err != nil {
		return "", fmt.Errorf("invalidate prior tokens: %w", err)
	}

	now := time.Now()
	token := &domain.OneTimeToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      kind,
		TokenHash: hashToken(plaintext),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := s.tokens.Store(ctx, token); err != nil {
		return "", fmt.Errorf("store one-time token: %w", err)
	}

	return plaintext, nil
}

// Consume validates and burns a token in one pass. The mark-used step is a
// single storage operation, so a second consumer of the same value loses
// even under concurrency. Expired tokens are already burned by the time the
// expiry is noticed, which is fine: they were unusable anyway.
func (s *OneTimeTokenService) Consume(ctx context.Context, plaintext, kind string) (string, error) {
	if _, err := s.ttlFor(kind); err != nil {
		return "", err
	}

	token, err := s.tokens.Consume(ctx, hashToken(plaintext), kind)
	if err != nil {
		return "", fmt.Errorf("consume one-time token: %w", err)
	}
	if token == nil {
		return "", autherror.ErrOneTimeTokenInvalid
	}
	if time.Now().After(token.ExpiresAt) {
		s.logger.InfoContext(ctx, "expired one-time token presented", "kind", kind, "user_id", token.UserID)
		return "", autherror.ErrOneTimeTokenExpired
	}

	return token.UserID, nil
}
