package service_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Renagang21/o4o-auth-service/internal/auth/domain"
	"github.com/Renagang21/o4o-auth-service/internal/auth/service"
	autherror "github.com/Renagang21/o4o-auth-service/internal/errors"
	"github.com/Renagang21/o4o-auth-service/internal/mocks"
	"github.com/Renagang21/o4o-auth-service/pkg/constant"
)

func newOneTimeTokenService(repo domain.OneTimeTokenRepository) *service.OneTimeTokenService {
	return service.NewOneTimeTokenService(repo, time.Hour, 24*time.Hour, slog.Default())
}

func TestOneTimeToken_Issue(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockOneTimeTokenRepository(ctrl)
	svc := newOneTimeTokenService(repo)

	var stored *domain.OneTimeToken
	repo.EXPECT().InvalidateActive(gomock.Any(), "u1", constant.TokenKindPasswordReset).Return(nil)
	repo.EXPECT().Store(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, token *domain.OneTimeToken) error {
			stored = token
			return nil
		})

	plaintext, err := svc.Issue(context.Background(), "u1", constant.TokenKindPasswordReset)
	require.NoError(t, err)
	require.Len(t, plaintext, 64)

	require.NotNil(t, stored)
	assert.Equal(t, "u1", stored.UserID)
	assert.Equal(t, constant.TokenKindPasswordReset, stored.Kind)
	assert.WithinDuration(t, time.Now().Add(time.Hour), stored.ExpiresAt, 5*time.Second)

	// Only the hash reaches storage.
	sum := sha256.Sum256([]byte(plaintext))
	assert.Equal(t, hex.EncodeToString(sum[:]), stored.TokenHash)
	assert.NotEqual(t, plaintext, stored.TokenHash)
}

func TestOneTimeToken_Issue_UnknownKind(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockOneTimeTokenRepository(ctrl)
	svc := newOneTimeTokenService(repo)

	_, err := svc.Issue(context.Background(), "u1", "magic_link")
	assert.Error(t, err)
}

func TestOneTimeToken_Consume(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockOneTimeTokenRepository(ctrl)
	svc := newOneTimeTokenService(repo)

	const plaintext = "aaaabbbbccccdddd"
	sum := sha256.Sum256([]byte(plaintext))
	hash := hex.EncodeToString(sum[:])

	repo.EXPECT().Consume(gomock.Any(), hash, constant.TokenKindEmailVerification).
		Return(&domain.OneTimeToken{
			UserID:    "u1",
			Kind:      constant.TokenKindEmailVerification,
			TokenHash: hash,
			ExpiresAt: time.Now().Add(time.Hour),
		}, nil)

	userID, err := svc.Consume(context.Background(), plaintext, constant.TokenKindEmailVerification)
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)
}

func TestOneTimeToken_Consume_SecondUseFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockOneTimeTokenRepository(ctrl)
	svc := newOneTimeTokenService(repo)

	const plaintext = "aaaabbbbccccdddd"
	sum := sha256.Sum256([]byte(plaintext))
	hash := hex.EncodeToString(sum[:])

	gomock.InOrder(
		repo.EXPECT().Consume(gomock.Any(), hash, constant.TokenKindPasswordReset).
			Return(&domain.OneTimeToken{UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}, nil),
		// The row is already marked used, so the second attempt finds nothing.
		repo.EXPECT().Consume(gomock.Any(), hash, constant.TokenKindPasswordReset).
			Return(nil, nil),
	)

	_, err := svc.Consume(context.Background(), plaintext, constant.TokenKindPasswordReset)
	require.NoError(t, err)

	_, err = svc.Consume(context.Background(), plaintext, constant.TokenKindPasswordReset)
	assert.ErrorIs(t, err, autherror.ErrOneTimeTokenInvalid)
}

func TestOneTimeToken_Consume_Expired(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockOneTimeTokenRepository(ctrl)
	svc := newOneTimeTokenService(repo)

	repo.EXPECT().Consume(gomock.Any(), gomock.Any(), constant.TokenKindPasswordReset).
		Return(&domain.OneTimeToken{UserID: "u1", ExpiresAt: time.Now().Add(-time.Minute)}, nil)

	_, err := svc.Consume(context.Background(), "whatever", constant.TokenKindPasswordReset)
	assert.ErrorIs(t, err, autherror.ErrOneTimeTokenExpired)
}

func TestOneTimeToken_Consume_UnknownValue(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockOneTimeTokenRepository(ctrl)
	svc := newOneTimeTokenService(repo)

	repo.EXPECT().Consume(gomock.Any(), gomock.Any(), constant.TokenKindEmailVerification).Return(nil, nil)

	_, err := svc.Consume(context.Background(), "never-issued", constant.TokenKindEmailVerification)
	assert.ErrorIs(t, err, autherror.ErrOneTimeTokenInvalid)
}
