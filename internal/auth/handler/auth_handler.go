package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Renagang21/o4o-auth-service/config"
	"github.com/Renagang21/o4o-auth-service/internal/auth/dto"
	"github.com/Renagang21/o4o-auth-service/internal/auth/service"
	autherror "github.com/Renagang21/o4o-auth-service/internal/errors"
)

type AuthHandler struct {
	auth     *service.AuthService
	security *service.LoginSecurityService
	tokens   service.TokenIssuer
	cfg      *config.Config
}

func NewAuthHandler(auth *service.AuthService, security *service.LoginSecurityService,
	tokens service.TokenIssuer, cfg *config.Config) *AuthHandler {
	return &AuthHandler{auth: auth, security: security, tokens: tokens, cfg: cfg}
}

// respondError maps service sentinels onto the stable {error, code} shape.
// Internal detail stays in the logs.
func respondError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, autherror.ErrInvalidCredentials):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "invalid credentials", "code": autherror.CodeInvalidCredentials,
		})
	case errors.Is(err, autherror.ErrAccountLocked):
		return c.Status(fiber.StatusLocked).JSON(fiber.Map{
			"error": "account temporarily locked, try again later", "code": autherror.CodeAccountLocked,
		})
	case errors.Is(err, autherror.ErrTooManyAttemptsIP), errors.Is(err, autherror.ErrTooManyAttemptsEmail):
		// Deliberately does not say which gate tripped.
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": "too many attempts, try again later", "code": autherror.CodeTooManyAttempts,
		})
	case errors.Is(err, autherror.ErrAccountInactive):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "account is not active", "code": autherror.CodeAccountInactive,
		})
	case errors.Is(err, autherror.ErrEmailAlreadyInUse):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "email already in use", "code": autherror.CodeEmailInUse,
		})
	case errors.Is(err, autherror.ErrInvalidToken):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "invalid or expired token", "code": autherror.CodeTokenInvalid,
		})
	case errors.Is(err, autherror.ErrOneTimeTokenInvalid), errors.Is(err, autherror.ErrOneTimeTokenExpired):
		// Used and expired are indistinguishable to the caller.
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid or expired token", "code": autherror.CodeTokenInvalid,
		})
	case errors.Is(err, autherror.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "user not found", "code": autherror.CodeInvalidInput,
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal error", "code": autherror.CodeInternal,
		})
	}
}

func badInput(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "invalid input", "code": autherror.CodeInvalidInput,
	})
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var input dto.RegisterInput
	if err := c.BodyParser(&input); err != nil || input.Email == "" || len(input.Password) < 8 {
		return badInput(c)
	}

	user, err := h.auth.Register(c.UserContext(), input)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":    user.ID,
		"email": user.Email,
	})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var input dto.LoginInput
	if err := c.BodyParser(&input); err != nil || input.Email == "" || input.Password == "" {
		return badInput(c)
	}

	input.IPAddress = c.IP()
	input.UserAgent = string(c.Request().Header.UserAgent())

	result, err := h.auth.Login(c.UserContext(), input)
	if err != nil {
		return respondError(c, err)
	}

	setAuthCookies(c, h.cfg, &result.Tokens)
	setSessionCookie(c, h.cfg, result.SessionID)

	return c.Status(fiber.StatusOK).JSON(result)
}

// Refresh accepts the refresh token from the cookie or, for non-browser
// clients, the request body.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var input dto.RefreshInput
	_ = c.BodyParser(&input)
	if cookie := c.Cookies(refreshCookieName); cookie != "" {
		input.RefreshToken = cookie
	}
	if input.RefreshToken == "" {
		return badInput(c)
	}

	input.IPAddress = c.IP()
	input.UserAgent = string(c.Request().Header.UserAgent())

	tokens, err := h.auth.Refresh(c.UserContext(), input)
	if err != nil {
		clearAuthCookies(c, h.cfg)
		return respondError(c, err)
	}

	setAuthCookies(c, h.cfg, tokens)

	return c.Status(fiber.StatusOK).JSON(tokens)
}

// Logout is best-effort: it clears whatever state it can still attribute to
// a user, and always removes the cookies. An expired access token with a
// live refresh cookie still revokes the family.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	userID := ""
	if claims := Identity(c); claims != nil {
		userID = claims.UserID
	} else if refresh := c.Cookies(refreshCookieName); refresh != "" {
		if claims, err := h.tokens.VerifyRefresh(refresh); err == nil {
			userID = claims.UserID
		}
	}

	if userID != "" {
		if err := h.auth.Logout(c.UserContext(), userID, c.Cookies(sessionCookieName)); err != nil {
			clearAuthCookies(c, h.cfg)
			return respondError(c, err)
		}
	}

	clearAuthCookies(c, h.cfg)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
}

func (h *AuthHandler) LogoutAll(c *fiber.Ctx) error {
	claims := Identity(c)

	if err := h.auth.LogoutAll(c.UserContext(), claims.UserID); err != nil {
		return respondError(c, err)
	}

	clearAuthCookies(c, h.cfg)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
}

// ForgotPassword returns the same body whether or not the account exists.
func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var input dto.ForgotPasswordInput
	if err := c.BodyParser(&input); err != nil || input.Email == "" {
		return badInput(c)
	}

	if err := h.auth.ForgotPassword(c.UserContext(), input.Email); err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "if the account exists, a reset email has been sent",
	})
}

func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var input dto.ResetPasswordInput
	if err := c.BodyParser(&input); err != nil || input.Token == "" || len(input.NewPassword) < 8 {
		return badInput(c)
	}

	if err := h.auth.ResetPassword(c.UserContext(), input); err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
}

// VerifyEmail takes the token from the query string (emailed links) or the
// body (API clients).
func (h *AuthHandler) VerifyEmail(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		var input dto.VerifyEmailInput
		_ = c.BodyParser(&input)
		token = input.Token
	}
	if token == "" {
		return badInput(c)
	}

	if err := h.auth.VerifyEmail(c.UserContext(), token); err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
}

func (h *AuthHandler) ResendVerification(c *fiber.Ctx) error {
	var input dto.ResendVerificationInput
	if err := c.BodyParser(&input); err != nil || input.Email == "" {
		return badInput(c)
	}

	if err := h.auth.ResendVerification(c.UserContext(), input.Email); err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "if the account exists, a verification email has been sent",
	})
}

// Sessions lists the caller's own live SSO sessions.
func (h *AuthHandler) Sessions(c *fiber.Ctx) error {
	claims := Identity(c)

	sessions, err := h.auth.Sessions(c.UserContext(), claims.UserID)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"sessions": sessions})
}

// Admin endpoints.

func (h *AuthHandler) LockAccount(c *fiber.Ctx) error {
	var input dto.LockAccountInput
	if err := c.BodyParser(&input); err != nil || input.Email == "" || input.Minutes <= 0 {
		return badInput(c)
	}

	if err := h.security.LockAccount(c.UserContext(), input.Email, time.Duration(input.Minutes)*time.Minute); err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
}

func (h *AuthHandler) UnlockAccount(c *fiber.Ctx) error {
	var input dto.UnlockAccountInput
	if err := c.BodyParser(&input); err != nil || input.Email == "" {
		return badInput(c)
	}

	if err := h.security.UnlockAccount(c.UserContext(), input.Email); err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
}

func (h *AuthHandler) ForceLogout(c *fiber.Ctx) error {
	userID := c.Params("id")
	if userID == "" {
		return badInput(c)
	}

	if err := h.auth.ForceLogout(c.UserContext(), userID); err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
}
