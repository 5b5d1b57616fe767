package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	authService *Service
}

// register creates a new user and immediately issues a session token.
func (h *handler) register(c echo.Context) error {
	ctx := c.Request().Context()

	params := RegisterPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	user, err := h.authService.Register(ctx, params.Email, params.Password)
	if err != nil {
		return err
	}

	token, expiresAt, err := h.authService.GenerateToken(user)
	if err != nil {
		return errors.WithStack(err)
	}

	return c.JSON(http.StatusCreated, SessionResponse{
		Success:   true,
		Message:   "User registered successfully",
		User:      user,
		Token:     token,
		ExpiresAt: expiresAt,
	})
}

// login handles user login.
func (h *handler) login(c echo.Context) error {
	ctx := c.Request().Context()

	params := LoginPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	user, err := h.authService.Authenticate(ctx, params.Email, params.Password)
	if err != nil {
		return err
	}

	token, expiresAt, err := h.authService.GenerateToken(user)
	if err != nil {
		return errors.WithStack(err)
	}

	return c.JSON(http.StatusOK, SessionResponse{
		Success:   true,
		Message:   "Login successful",
		User:      user,
		Token:     token,
		ExpiresAt: expiresAt,
	})
}

// me returns the current authenticated user.
func (h *handler) me(c echo.Context) error {
	user, ok := UserFromContext(c)
	if !ok {
		return errors.New("me handler called without authentication")
	}

	return c.JSON(http.StatusOK, MeResponse{
		Success: true,
		User:    user,
	})
}

// changePassword verifies the current password and stores a new one.
func (h *handler) changePassword(c echo.Context) error {
	ctx := c.Request().Context()

	params := ChangePasswordPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	userID, ok := UserIDFromContext(c)
	if !ok {
		return errors.New("changePassword handler called without authentication")
	}

	err := h.authService.ChangePassword(ctx, userID, params.CurrentPassword, params.NewPassword)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Password changed successfully",
	})
}
