package auth

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shelfmark/shelfmark/pkg/errcodes"
	"github.com/shelfmark/shelfmark/pkg/models"
)

const (
	// UserIDHeader carries the caller's claimed user id. It must match the id
	// embedded in the token; requiring both stops a stolen token from being
	// replayed against another account's id.
	UserIDHeader = "X-User-ID"

	bearerPrefix = "Bearer "
)

// Middleware provides authentication middleware.
type Middleware struct {
	authService *Service
}

func NewMiddleware(authService *Service) *Middleware {
	return &Middleware{
		authService: authService,
	}
}

// Authenticate extracts and validates the bearer token, cross-checks it
// against the claimed user id header, and verifies the user still exists.
// Every failure mode is a plain 401.
func (m *Middleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if authHeader == "" {
			return errcodes.Unauthorized("Authentication required")
		}
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			return errcodes.Unauthorized("Invalid authorization header")
		}
		token := strings.TrimPrefix(authHeader, bearerPrefix)
		if token == "" {
			return errcodes.Unauthorized("Authentication required")
		}

		claims, err := m.authService.ValidateToken(token)
		if err != nil {
			return errcodes.Unauthorized("Invalid or expired token")
		}

		claimedID, err := strconv.Atoi(c.Request().Header.Get(UserIDHeader))
		if err != nil || claimedID != claims.UserID {
			return errcodes.Unauthorized("User ID mismatch")
		}

		// Verify the user still exists
		user, err := m.authService.GetUserByID(ctx, claims.UserID)
		if err != nil {
			return errcodes.Unauthorized("User not found")
		}

		c.Set("user_id", user.ID)
		c.Set("user", user)

		return next(c)
	}
}

// UserFromContext retrieves the authenticated user from the Echo context.
func UserFromContext(c echo.Context) (*models.User, bool) {
	user, ok := c.Get("user").(*models.User)
	return user, ok
}

// UserIDFromContext retrieves the authenticated user ID from the Echo context.
func UserIDFromContext(c echo.Context) (int, bool) {
	userID, ok := c.Get("user_id").(int)
	return userID, ok
}
