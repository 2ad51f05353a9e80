package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Renagang21/o4o-auth-service/config"
	"github.com/Renagang21/o4o-auth-service/internal/auth/dto"
)

const (
	accessCookieName  = "accessToken"
	refreshCookieName = "refreshToken"
	sessionCookieName = "sessionId"
)

func setAuthCookies(c *fiber.Ctx, cfg *config.Config, tokens *dto.TokenPair) {
	secure := cfg.IsProduction()

	c.Cookie(&fiber.Cookie{
		Name:     accessCookieName,
		Value:    tokens.AccessToken,
		MaxAge:   int(cfg.AccessTokenTTL.Seconds()),
		HTTPOnly: true,
		Secure:   secure,
		SameSite: fiber.CookieSameSiteStrictMode,
		Path:     "/",
	})
	c.Cookie(&fiber.Cookie{
		Name:     refreshCookieName,
		Value:    tokens.RefreshToken,
		MaxAge:   int(cfg.RefreshTokenTTL.Seconds()),
		HTTPOnly: true,
		Secure:   secure,
		SameSite: fiber.CookieSameSiteStrictMode,
		Path:     "/",
	})
}

// setSessionCookie is lax and domain-scoped so sibling subdomains can read
// the SSO session.
func setSessionCookie(c *fiber.Ctx, cfg *config.Config, sessionID string) {
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		MaxAge:   int(cfg.RefreshTokenTTL.Seconds()),
		HTTPOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
		Domain:   cfg.CookieDomain,
		Path:     "/",
	})
}

func clearAuthCookies(c *fiber.Ctx, cfg *config.Config) {
	expired := time.Now().Add(-time.Hour)
	for _, name := range []string{accessCookieName, refreshCookieName} {
		c.Cookie(&fiber.Cookie{
			Name:     name,
			Value:    "",
			Expires:  expired,
			HTTPOnly: true,
			Secure:   cfg.IsProduction(),
			SameSite: fiber.CookieSameSiteStrictMode,
			Path:     "/",
		})
	}
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Expires:  expired,
		HTTPOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
		Domain:   cfg.CookieDomain,
		Path:     "/",
	})
}
