package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Renagang21/o4o-auth-service/config"
	"github.com/Renagang21/o4o-auth-service/internal/auth/authz"
	"github.com/Renagang21/o4o-auth-service/internal/auth/domain"
	"github.com/Renagang21/o4o-auth-service/internal/auth/handler"
	"github.com/Renagang21/o4o-auth-service/internal/auth/service"
	"github.com/Renagang21/o4o-auth-service/internal/mocks"
	"github.com/Renagang21/o4o-auth-service/pkg/constant"
)

const testPassword = "correct horse battery staple"

type appFixture struct {
	t        *testing.T
	app      *fiber.App
	users    *mocks.MockUserRepository
	attempts *mocks.MockAttemptRepository
	oneTime  *mocks.MockOneTimeTokenRepository
	sessions *mocks.MockSessionStore
	mailer   *mocks.MockMailer
	tokens   *service.TokenService
	cfg      *config.Config
}

func newAppFixture(t *testing.T) *appFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	cfg := &config.Config{
		Env:                   "test",
		AccessTokenSecret:     "test-access-secret-key-0123456789ab",
		RefreshTokenSecret:    "test-refresh-secret-key-0123456789a",
		AccessTokenTTL:        15 * time.Minute,
		RefreshTokenTTL:       168 * time.Hour,
		MaxFailedLogins:       5,
		LockoutDuration:       30 * time.Minute,
		AttemptWindow:         15 * time.Minute,
		MaxAttemptsPerIP:      10,
		MaxAttemptsPerEmail:   5,
		SuspiciousIPThreshold: 20,
		AttemptRetention:      720 * time.Hour,
		MaxSessionsPerUser:    5,
		ResetTokenTTL:         time.Hour,
		VerificationTokenTTL:  24 * time.Hour,
	}

	f := &appFixture{
		t:        t,
		users:    mocks.NewMockUserRepository(ctrl),
		attempts: mocks.NewMockAttemptRepository(ctrl),
		oneTime:  mocks.NewMockOneTimeTokenRepository(ctrl),
		sessions: mocks.NewMockSessionStore(ctrl),
		mailer:   mocks.NewMockMailer(ctrl),
		cfg:      cfg,
	}

	logger := slog.Default()
	matrix := authz.NewMatrix()
	f.tokens = service.NewTokenService(cfg.AccessTokenSecret, cfg.RefreshTokenSecret,
		cfg.AccessTokenTTL, cfg.RefreshTokenTTL, f.users, matrix, logger)
	security := service.NewLoginSecurityService(f.users, f.attempts, f.mailer, cfg, logger)
	oneTime := service.NewOneTimeTokenService(f.oneTime, cfg.ResetTokenTTL, cfg.VerificationTokenTTL, logger)
	auth := service.NewAuthService(f.users, f.tokens, security, f.sessions, oneTime, f.mailer, cfg, logger)

	f.app = fiber.New()
	h := handler.NewAuthHandler(auth, security, f.tokens, cfg)
	handler.RegisterRoutes(f.app, h, f.tokens, matrix, cfg)

	return f
}

func (f *appFixture) postJSON(path string, body any) *http.Response {
	f.t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(f.t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := f.app.Test(req, -1)
	require.NoError(f.t, err)

	return resp
}

func (f *appFixture) do(req *http.Request) *http.Response {
	f.t.Helper()

	resp, err := f.app.Test(req, -1)
	require.NoError(f.t, err)

	return resp
}

func (f *appFixture) activeUser() *domain.User {
	hashed, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(f.t, err)

	return &domain.User{
		ID:           "u1",
		Email:        "test@example.com",
		PasswordHash: string(hashed),
		Role:         constant.RoleCustomer,
		Status:       constant.StatusActive,
	}
}

// issueTokens mints a real pair for the user, capturing the persisted family.
func (f *appFixture) issueTokens(user *domain.User) (pair struct{ Access, Refresh string }, family string) {
	f.t.Helper()

	f.users.EXPECT().SetTokenFamily(gomock.Any(), user.ID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, fam string) error {
			family = fam
			return nil
		})

	issued, err := f.tokens.Issue(context.Background(), user)
	require.NoError(f.t, err)
	pair.Access = issued.AccessToken
	pair.Refresh = issued.RefreshToken

	return pair, family
}

func cookieValue(resp *http.Response, name string) string {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c.Value
		}
	}

	return ""
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return string(data)
}

func (f *appFixture) expectGatePass(user *domain.User) {
	f.attempts.EXPECT().CountFailuresByIP(gomock.Any(), gomock.Any(), gomock.Any()).Return(0, nil)
	f.attempts.EXPECT().CountFailuresByEmail(gomock.Any(), gomock.Any(), gomock.Any()).Return(0, nil)
	f.users.EXPECT().GetByEmail(gomock.Any(), gomock.Any()).Return(user, nil)
}

func (f *appFixture) expectFailureBookkeeping() {
	f.attempts.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil)
	f.attempts.EXPECT().CountFailuresByIP(gomock.Any(), gomock.Any(), gomock.Any()).Return(1, nil)
	f.attempts.EXPECT().CountFailuresByEmail(gomock.Any(), gomock.Any(), gomock.Any()).Return(1, nil)
}

func TestLoginEndpoint_Success(t *testing.T) {
	f := newAppFixture(t)
	user := f.activeUser()

	f.expectGatePass(user)
	f.users.EXPECT().GetByEmail(gomock.Any(), user.Email).Return(user, nil)
	f.users.EXPECT().ResetLoginState(gomock.Any(), user.ID).Return(nil)
	f.users.EXPECT().SetLastLogin(gomock.Any(), user.ID, gomock.Any()).Return(nil)
	f.attempts.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil)
	f.sessions.EXPECT().EnforceLimit(gomock.Any(), user.ID).Return(0, nil)
	f.sessions.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	f.users.EXPECT().SetTokenFamily(gomock.Any(), user.ID, gomock.Any()).Return(nil)

	resp := f.postJSON("/api/v1/auth/login", fiber.Map{
		"email":    user.Email,
		"password": testPassword,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	access := cookieValue(resp, "accessToken")
	require.NotEmpty(t, access)
	assert.NotEmpty(t, cookieValue(resp, "refreshToken"))
	assert.NotEmpty(t, cookieValue(resp, "sessionId"))

	claims, err := f.tokens.VerifyAccess(access)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
}

// Wrong password and unknown account must be indistinguishable in status and
// body, so login responses give away nothing about registered addresses.
func TestLoginEndpoint_UniformFailureResponse(t *testing.T) {
	f := newAppFixture(t)
	user := f.activeUser()

	f.expectGatePass(user)
	f.users.EXPECT().GetByEmail(gomock.Any(), user.Email).Return(user, nil)
	f.users.EXPECT().IncrementFailedLogins(gomock.Any(), user.ID).Return(1, nil)
	f.expectFailureBookkeeping()

	wrongPassword := f.postJSON("/api/v1/auth/login", fiber.Map{
		"email":    user.Email,
		"password": "not-the-password",
	})

	f.expectGatePass(nil)
	f.users.EXPECT().GetByEmail(gomock.Any(), "ghost@example.com").Return(nil, nil)
	f.expectFailureBookkeeping()

	unknownEmail := f.postJSON("/api/v1/auth/login", fiber.Map{
		"email":    "ghost@example.com",
		"password": "whatever-password",
	})

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.StatusCode)
	assert.Equal(t, wrongPassword.StatusCode, unknownEmail.StatusCode)
	assert.JSONEq(t, readBody(t, wrongPassword), readBody(t, unknownEmail))
}

func TestLoginEndpoint_Locked(t *testing.T) {
	f := newAppFixture(t)
	user := f.activeUser()
	until := time.Now().Add(20 * time.Minute)
	user.LockedUntil = &until

	f.expectGatePass(user)
	f.expectFailureBookkeeping()

	resp := f.postJSON("/api/v1/auth/login", fiber.Map{
		"email":    user.Email,
		"password": testPassword,
	})
	assert.Equal(t, http.StatusLocked, resp.StatusCode)
}

func TestLoginEndpoint_Throttled(t *testing.T) {
	f := newAppFixture(t)

	f.attempts.EXPECT().CountFailuresByIP(gomock.Any(), gomock.Any(), gomock.Any()).Return(11, nil)
	f.expectFailureBookkeeping()

	resp := f.postJSON("/api/v1/auth/login", fiber.Map{
		"email":    "test@example.com",
		"password": testPassword,
	})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestRefreshEndpoint_RotatesCookie(t *testing.T) {
	f := newAppFixture(t)
	user := f.activeUser()
	pair, family := f.issueTokens(user)

	rotatedUser := *user
	rotatedUser.TokenFamily = &family
	f.users.EXPECT().GetByID(gomock.Any(), user.ID).Return(&rotatedUser, nil)
	f.users.EXPECT().AdvanceTokenGeneration(gomock.Any(), user.ID, family, 0).Return(true, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: pair.Refresh})

	resp := f.do(req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	newRefresh := cookieValue(resp, "refreshToken")
	require.NotEmpty(t, newRefresh)
	assert.NotEqual(t, pair.Refresh, newRefresh)

	claims, err := f.tokens.VerifyRefresh(newRefresh)
	require.NoError(t, err)
	assert.Equal(t, family, claims.TokenFamily)
	assert.Equal(t, 1, claims.Generation)
}

func TestRefreshEndpoint_ReplayClearsCookies(t *testing.T) {
	f := newAppFixture(t)
	user := f.activeUser()
	pair, family := f.issueTokens(user)

	staleUser := *user
	staleUser.TokenFamily = &family
	staleUser.TokenGeneration = 1
	f.users.EXPECT().GetByID(gomock.Any(), user.ID).Return(&staleUser, nil)
	f.users.EXPECT().AdvanceTokenGeneration(gomock.Any(), user.ID, family, 0).Return(false, nil)
	f.users.EXPECT().ClearTokenFamily(gomock.Any(), user.ID).Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: pair.Refresh})

	resp := f.do(req)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, cookieValue(resp, "refreshToken"))
}

func TestSessionsEndpoint_RequiresAuth(t *testing.T) {
	f := newAppFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/sessions", nil)
	resp := f.do(req)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSessionsEndpoint_BearerToken(t *testing.T) {
	f := newAppFixture(t)
	user := f.activeUser()
	pair, _ := f.issueTokens(user)

	f.sessions.EXPECT().ListByUser(gomock.Any(), user.ID).Return([]domain.Session{
		{ID: "s1", UserID: user.ID, IPAddress: "203.0.113.7", CreatedAt: time.Now()},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/sessions", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+pair.Access)

	resp := f.do(req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), `"s1"`)
}

// A browser with only a live refresh cookie gets a silent rotation instead of
// a 401 on protected routes.
func TestSessionsEndpoint_RefreshOnDemand(t *testing.T) {
	f := newAppFixture(t)
	user := f.activeUser()
	pair, family := f.issueTokens(user)

	rotatedUser := *user
	rotatedUser.TokenFamily = &family
	f.users.EXPECT().GetByID(gomock.Any(), user.ID).Return(&rotatedUser, nil)
	f.users.EXPECT().AdvanceTokenGeneration(gomock.Any(), user.ID, family, 0).Return(true, nil)
	f.sessions.EXPECT().ListByUser(gomock.Any(), user.ID).Return([]domain.Session{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/sessions", nil)
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: pair.Refresh})

	resp := f.do(req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, cookieValue(resp, "accessToken"))
}

func TestLogoutEndpoint_RefreshCookieOnly(t *testing.T) {
	f := newAppFixture(t)
	user := f.activeUser()
	pair, _ := f.issueTokens(user)

	// The optional-auth rotation finds the family already revoked, so the
	// handler falls back to reading the user id straight off the refresh
	// cookie and still clears everything.
	f.users.EXPECT().GetByID(gomock.Any(), user.ID).Return(user, nil)
	f.users.EXPECT().ClearTokenFamily(gomock.Any(), user.ID).Return(nil)
	f.sessions.EXPECT().Remove(gomock.Any(), "sess-1", user.ID).Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: pair.Refresh})
	req.AddCookie(&http.Cookie{Name: "sessionId", Value: "sess-1"})

	resp := f.do(req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Cleared, not reissued.
	for _, c := range resp.Cookies() {
		assert.Empty(t, c.Value, c.Name)
	}
}

func TestLogoutEndpoint_AnonymousStillSucceeds(t *testing.T) {
	f := newAppFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	resp := f.do(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestForgotPasswordEndpoint_UniformResponse(t *testing.T) {
	f := newAppFixture(t)
	user := f.activeUser()

	f.users.EXPECT().GetByEmail(gomock.Any(), user.Email).Return(user, nil)
	f.oneTime.EXPECT().InvalidateActive(gomock.Any(), user.ID, constant.TokenKindPasswordReset).Return(nil)
	f.oneTime.EXPECT().Store(gomock.Any(), gomock.Any()).Return(nil)
	f.mailer.EXPECT().SendPasswordReset(gomock.Any(), user.Email, gomock.Any()).Return(nil)

	known := f.postJSON("/api/v1/auth/forgot-password", fiber.Map{"email": user.Email})

	f.users.EXPECT().GetByEmail(gomock.Any(), "ghost@example.com").Return(nil, nil)
	unknown := f.postJSON("/api/v1/auth/forgot-password", fiber.Map{"email": "ghost@example.com"})

	assert.Equal(t, http.StatusOK, known.StatusCode)
	assert.Equal(t, known.StatusCode, unknown.StatusCode)
	assert.JSONEq(t, readBody(t, known), readBody(t, unknown))
}

func TestVerifyEmailEndpoint_QueryToken(t *testing.T) {
	f := newAppFixture(t)

	f.oneTime.EXPECT().Consume(gomock.Any(), gomock.Any(), constant.TokenKindEmailVerification).
		Return(&domain.OneTimeToken{UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}, nil)
	f.users.EXPECT().MarkEmailVerified(gomock.Any(), "u1").Return(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/verify-email?token=abc123", nil)
	resp := f.do(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdminLockEndpoint_Authorization(t *testing.T) {
	f := newAppFixture(t)

	customer := f.activeUser()
	customerPair, _ := f.issueTokens(customer)

	admin := f.activeUser()
	admin.ID = "admin-1"
	admin.Role = constant.RoleAdmin
	adminPair, _ := f.issueTokens(admin)

	t.Run("customer is forbidden", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/accounts/lock", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+customerPair.Access)

		resp := f.do(req)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("admin locks the account", func(t *testing.T) {
		target := &domain.User{ID: "u9", Email: "victim@example.com"}
		f.users.EXPECT().GetByEmail(gomock.Any(), target.Email).Return(target, nil)
		f.users.EXPECT().SetLock(gomock.Any(), target.ID, gomock.Any()).Return(nil)

		payload, err := json.Marshal(fiber.Map{"email": target.Email, "minutes": 60})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/accounts/lock", bytes.NewReader(payload))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+adminPair.Access)

		resp := f.do(req)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestAdminForceLogoutEndpoint(t *testing.T) {
	f := newAppFixture(t)

	admin := f.activeUser()
	admin.ID = "admin-1"
	admin.Role = constant.RoleAdmin
	adminPair, _ := f.issueTokens(admin)

	target := &domain.User{ID: "u9", Email: "victim@example.com"}
	f.users.EXPECT().GetByID(gomock.Any(), target.ID).Return(target, nil)
	f.users.EXPECT().ClearTokenFamily(gomock.Any(), target.ID).Return(nil)
	f.sessions.EXPECT().RemoveAll(gomock.Any(), target.ID).Return(2, nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/user/u9/sessions", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+adminPair.Access)

	resp := f.do(req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
