package service

//go:generate mockgen -destination=../../mocks/mock_token_issuer.go -package=mocks github.com/Renagang21/o4o-auth-service/internal/auth/service TokenIssuer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Renagang21/o4o-auth-service/internal/auth/authz"
	"github.com/Renagang21/o4o-auth-service/internal/auth/domain"
	"github.com/Renagang21/o4o-auth-service/internal/auth/dto"
	autherror "github.com/Renagang21/o4o-auth-service/internal/errors"
	"github.com/Renagang21/o4o-auth-service/pkg/constant"
)

type TokenIssuer interface {
	Issue(ctx context.Context, user *domain.User) (*dto.TokenPair, error)
	VerifyAccess(tokenString string) (*AccessClaims, error)
	VerifyRefresh(tokenString string) (*RefreshClaims, error)
	Rotate(ctx context.Context, input dto.RefreshInput) (*dto.TokenPair, error)
	RevokeFamily(ctx context.Context, userID string) error
	AccessTokenTTL() time.Duration
	RefreshTokenTTL() time.Duration
}

type AccessClaims struct {
	jwt.RegisteredClaims
	UserID      string   `json:"user_id"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions,omitempty"`
}

type RefreshClaims struct {
	jwt.RegisteredClaims
	UserID      string `json:"user_id"`
	TokenFamily string `json:"token_family"`
	Generation  int    `json:"token_generation"`
}

// TokenService signs and verifies access/refresh token pairs. A refresh token
// belongs to a family created at login; the family id survives rotations and
// is only replaced by a fresh login or an explicit revocation. Each rotation
// bumps a generation counter, so a replayed token from earlier in the chain
// no longer matches the stored state.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	users         domain.UserRepository
	matrix        *authz.Matrix
	logger        *slog.Logger
}

func NewTokenService(accessSecret, refreshSecret string, accessExpiry, refreshExpiry time.Duration,
	users domain.UserRepository, matrix *authz.Matrix, logger *slog.Logger) *TokenService {
	return &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
		users:         users,
		matrix:        matrix,
		logger:        logger,
	}
}

func (ts *TokenService) AccessTokenTTL() time.Duration  { return ts.accessExpiry }
func (ts *TokenService) RefreshTokenTTL() time.Duration { return ts.refreshExpiry }

func (ts *TokenService) sign(claims jwt.Claims, secret []byte) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (ts *TokenService) pair(user *domain.User, family string, generation int) (*dto.TokenPair, error) {
	now := time.Now()

	accessClaims := AccessClaims{
		UserID:      user.ID,
		Email:       user.Email,
		Role:        user.Role,
		Permissions: ts.matrix.PermissionsFor(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.accessExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	refreshClaims := RefreshClaims{
		UserID:      user.ID,
		TokenFamily: family,
		Generation:  generation,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.refreshExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	accessToken, err := ts.sign(accessClaims, ts.accessSecret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshToken, err := ts.sign(refreshClaims, ts.refreshSecret)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	return &dto.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(ts.accessExpiry.Seconds()),
	}, nil
}

// Issue starts a new token family for the user and persists it, replacing
// any previous family so earlier refresh tokens stop rotating.
func (ts *TokenService) Issue(ctx context.Context, user *domain.User) (*dto.TokenPair, error) {
	family := uuid.NewString()

	tokens, err := ts.pair(user, family, 0)
	if err != nil {
		return nil, err
	}

	if err := ts.users.SetTokenFamily(ctx, user.ID, family); err != nil {
		return nil, fmt.Errorf("persist token family: %w", err)
	}

	return tokens, nil
}

// VerifyAccess checks signature and expiry only; it never touches storage
// and returns a typed error for any bad input.
func (ts *TokenService) VerifyAccess(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return ts.accessSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, autherror.ErrInvalidToken
	}

	return claims, nil
}

// VerifyRefresh checks the refresh token's signature and expiry without any
// storage lookup. Callers needing replay protection must go through Rotate.
func (ts *TokenService) VerifyRefresh(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return ts.refreshSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, autherror.ErrInvalidToken
	}

	return claims, nil
}

// Rotate exchanges a valid refresh token for a fresh pair. The stored
// (family, generation) pair is advanced with a compare-and-swap, so when two
// rotations race on the same token exactly one wins; the loser, and any
// replayed token, gets the same generic invalid-token error as an expired
// one. A failed swap within the live family revokes the whole family.
func (ts *TokenService) Rotate(ctx context.Context, input dto.RefreshInput) (*dto.TokenPair, error) {
	claims, err := ts.VerifyRefresh(input.RefreshToken)
	if err != nil {
		return nil, err
	}

	user, err := ts.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user for rotation: %w", err)
	}
	if user == nil || user.Status != constant.StatusActive || user.TokenFamily == nil {
		return nil, autherror.ErrInvalidToken
	}
	if *user.TokenFamily != claims.TokenFamily {
		// A fresh login already replaced the family. A leftover token from
		// the old lineage is stale, not a replay; the live lineage stays.
		ts.logger.InfoContext(ctx, "stale refresh token from superseded family",
			"user_id", user.ID, "family", claims.TokenFamily)
		return nil, autherror.ErrInvalidToken
	}

	ok, err := ts.users.AdvanceTokenGeneration(ctx, user.ID, claims.TokenFamily, claims.Generation)
	if err != nil {
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}
	if !ok {
		// Same family, stale generation: this token was already rotated
		// once. Treat as replay, revoke the chain and force re-login.
		ts.logger.WarnContext(ctx, "refresh token replay detected, revoking family",
			"user_id", user.ID, "family", claims.TokenFamily, "generation", claims.Generation,
			"ip", input.IPAddress, "user_agent", input.UserAgent)
		if err := ts.users.ClearTokenFamily(ctx, user.ID); err != nil {
			ts.logger.ErrorContext(ctx, "failed to revoke token family", "user_id", user.ID, "error", err)
		}
		return nil, autherror.ErrInvalidToken
	}

	return ts.pair(user, claims.TokenFamily, claims.Generation+1)
}

// RevokeFamily invalidates every outstanding refresh token for the user with
// a single field update.
func (ts *TokenService) RevokeFamily(ctx context.Context, userID string) error {
	return ts.users.ClearTokenFamily(ctx, userID)
}
