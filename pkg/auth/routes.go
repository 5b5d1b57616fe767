package auth

import (
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutes registers all auth routes and returns the auth service so
// the server can build middleware for the protected route groups.
func RegisterRoutes(e *echo.Echo, db *bun.DB, jwtSecret string) *Service {
	authService := NewService(db, jwtSecret)
	authMiddleware := NewMiddleware(authService)

	h := &handler{
		authService: authService,
	}

	auth := e.Group("/auth")
	auth.POST("/register", h.register)
	auth.POST("/login", h.login)
	auth.GET("/me", h.me, authMiddleware.Authenticate)
	auth.POST("/password", h.changePassword, authMiddleware.Authenticate)

	return authService
}
