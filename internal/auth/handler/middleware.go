package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Renagang21/o4o-auth-service/config"
	"github.com/Renagang21/o4o-auth-service/internal/auth/authz"
	"github.com/Renagang21/o4o-auth-service/internal/auth/dto"
	"github.com/Renagang21/o4o-auth-service/internal/auth/service"
	autherror "github.com/Renagang21/o4o-auth-service/internal/errors"
)

const identityKey = "auth.identity"

// credentialExtractor pulls a candidate access token out of the request, or
// returns "" when its source is absent.
type credentialExtractor func(c *fiber.Ctx) string

func accessFromCookie(c *fiber.Ctx) string {
	return c.Cookies(accessCookieName)
}

// accessFromBearer serves non-browser clients.
func accessFromBearer(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return header[7:]
	}

	return ""
}

// accessExtractors is the ordered strategy list; first hit wins.
var accessExtractors = []credentialExtractor{accessFromCookie, accessFromBearer}

// Identity returns the authenticated claims attached by the auth middleware,
// or nil for unauthenticated requests.
func Identity(c *fiber.Ctx) *service.AccessClaims {
	claims, _ := c.Locals(identityKey).(*service.AccessClaims)
	return claims
}

func authenticate(c *fiber.Ctx, tokens service.TokenIssuer, cfg *config.Config) *service.AccessClaims {
	for _, extract := range accessExtractors {
		raw := extract(c)
		if raw == "" {
			continue
		}
		if claims, err := tokens.VerifyAccess(raw); err == nil {
			return claims
		}
		// An invalid token from one source does not shadow the refresh
		// fallback below.
	}

	// Refresh-on-demand: a browser whose access token aged out mid-session
	// gets a silent rotation instead of a 401.
	refresh := c.Cookies(refreshCookieName)
	if refresh == "" {
		return nil
	}

	pair, err := tokens.Rotate(c.UserContext(), dto.RefreshInput{
		RefreshToken: refresh,
		IPAddress:    c.IP(),
		UserAgent:    string(c.Request().Header.UserAgent()),
	})
	if err != nil {
		return nil
	}
	claims, err := tokens.VerifyAccess(pair.AccessToken)
	if err != nil {
		return nil
	}
	setAuthCookies(c, cfg, pair)

	return claims
}

// RequireAuth is the gateway middleware: extract credentials cookie-first,
// refresh on demand, and reject with a machine-readable 401 otherwise.
func RequireAuth(tokens service.TokenIssuer, cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := authenticate(c, tokens, cfg)
		if claims == nil {
			clearAuthCookies(c, cfg)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "authentication required",
				"code":  autherror.CodeUnauthorized,
			})
		}

		c.Locals(identityKey, claims)

		return c.Next()
	}
}

// OptionalAuth attaches an identity when one can be established and
// otherwise lets the request continue anonymously.
func OptionalAuth(tokens service.TokenIssuer, cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if claims := authenticate(c, tokens, cfg); claims != nil {
			c.Locals(identityKey, claims)
		}

		return c.Next()
	}
}

// RequireRole gates a route on the identity's role. It runs after the auth
// middleware and never touches token machinery.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := Identity(c)
		if claims == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "authentication required",
				"code":  autherror.CodeUnauthorized,
			})
		}
		for _, role := range roles {
			if claims.Role == role {
				return c.Next()
			}
		}

		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "insufficient role",
			"code":  autherror.CodeForbidden,
		})
	}
}

// RequirePermission gates a route on a single permission from the matrix.
func RequirePermission(matrix *authz.Matrix, permission string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := Identity(c)
		if claims == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "authentication required",
				"code":  autherror.CodeUnauthorized,
			})
		}
		if !matrix.Has(claims.Role, permission) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "insufficient permissions",
				"code":  autherror.CodeForbidden,
			})
		}

		return c.Next()
	}
}
