package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Renagang21/o4o-auth-service/config"
	"github.com/Renagang21/o4o-auth-service/internal/auth/authz"
	"github.com/Renagang21/o4o-auth-service/internal/auth/service"
	"github.com/Renagang21/o4o-auth-service/pkg/constant"
)

func RegisterRoutes(app *fiber.App, h *AuthHandler, tokens service.TokenIssuer,
	matrix *authz.Matrix, cfg *config.Config) {
	auth := app.Group("/api/v1/auth")

	auth.Post("/register", h.Register)
	auth.Post("/login", h.Login)
	auth.Post("/refresh", h.Refresh)
	auth.Post("/logout", OptionalAuth(tokens, cfg), h.Logout)
	auth.Post("/logout-all", RequireAuth(tokens, cfg), h.LogoutAll)

	auth.Post("/forgot-password", h.ForgotPassword)
	auth.Post("/reset-password", h.ResetPassword)
	auth.Get("/verify-email", h.VerifyEmail)
	auth.Post("/verify-email", h.VerifyEmail)
	auth.Post("/resend-verification", h.ResendVerification)

	auth.Get("/sessions", RequireAuth(tokens, cfg), h.Sessions)

	admin := app.Group("/api/v1/admin", RequireAuth(tokens, cfg), RequireRole(constant.RoleAdmin))
	admin.Post("/accounts/lock", RequirePermission(matrix, "accounts:lock"), h.LockAccount)
	admin.Post("/accounts/unlock", RequirePermission(matrix, "accounts:lock"), h.UnlockAccount)
	admin.Delete("/user/:id/sessions", RequirePermission(matrix, "sessions:revoke"), h.ForceLogout)
}
