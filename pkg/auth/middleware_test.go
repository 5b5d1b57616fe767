package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/shelfmark/shelfmark/pkg/errcodes"
	"github.com/shelfmark/shelfmark/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string, userID int, expiresAt time.Time) string {
	t.Helper()

	claims := JWTClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestMiddlewareAuthenticate(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := NewService(db, "test-jwt-secret")
	mw := NewMiddleware(svc)

	user, err := svc.Register(context.Background(), "reader@example.com", "password123")
	require.NoError(t, err)
	token, _, err := svc.GenerateToken(user)
	require.NoError(t, err)

	tests := []struct {
		name       string
		authHeader string
		userHeader string
		errMsg     string
	}{
		{
			name:   "missing authorization header",
			errMsg: "Authentication required",
		},
		{
			name:       "not a bearer token",
			authHeader: "Basic dXNlcjpwYXNz",
			userHeader: strconv.Itoa(user.ID),
			errMsg:     "Invalid authorization header",
		},
		{
			name:       "empty bearer token",
			authHeader: "Bearer ",
			userHeader: strconv.Itoa(user.ID),
			errMsg:     "Authentication required",
		},
		{
			name:       "garbage token",
			authHeader: "Bearer not-a-token",
			userHeader: strconv.Itoa(user.ID),
			errMsg:     "Invalid or expired token",
		},
		{
			name:       "expired token",
			authHeader: "Bearer " + signToken(t, "test-jwt-secret", user.ID, time.Now().Add(-time.Minute)),
			userHeader: strconv.Itoa(user.ID),
			errMsg:     "Invalid or expired token",
		},
		{
			name:       "missing user id header",
			authHeader: "Bearer " + token,
			errMsg:     "User ID mismatch",
		},
		{
			name:       "user id header does not match token",
			authHeader: "Bearer " + token,
			userHeader: strconv.Itoa(user.ID + 1),
			errMsg:     "User ID mismatch",
		},
		{
			name:       "token for a deleted user",
			authHeader: "Bearer " + signToken(t, "test-jwt-secret", user.ID+100, time.Now().Add(time.Hour)),
			userHeader: strconv.Itoa(user.ID + 100),
			errMsg:     "User not found",
		},
	}

	e := echo.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.authHeader != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.authHeader)
			}
			if tt.userHeader != "" {
				req.Header.Set(UserIDHeader, tt.userHeader)
			}
			c := e.NewContext(req, httptest.NewRecorder())

			err := mw.Authenticate(func(c echo.Context) error {
				return nil
			})(c)
			require.Error(t, err)

			var codeErr *errcodes.Error
			require.ErrorAs(t, err, &codeErr)
			assert.Equal(t, http.StatusUnauthorized, codeErr.HTTPCode)
			assert.Equal(t, tt.errMsg, codeErr.Message)
		})
	}
}

func TestMiddlewareAuthenticate_Success(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := NewService(db, "test-jwt-secret")
	mw := NewMiddleware(svc)

	user, err := svc.Register(context.Background(), "reader@example.com", "password123")
	require.NoError(t, err)
	token, _, err := svc.GenerateToken(user)
	require.NoError(t, err)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, fmt.Sprintf("Bearer %s", token))
	req.Header.Set(UserIDHeader, strconv.Itoa(user.ID))
	c := e.NewContext(req, httptest.NewRecorder())

	called := false
	err = mw.Authenticate(func(c echo.Context) error {
		called = true
		return nil
	})(c)
	require.NoError(t, err)
	assert.True(t, called)

	userID, ok := UserIDFromContext(c)
	require.True(t, ok)
	assert.Equal(t, user.ID, userID)

	ctxUser, ok := UserFromContext(c)
	require.True(t, ok)
	assert.Equal(t, user.ID, ctxUser.ID)
	assert.IsType(t, &models.User{}, ctxUser)
}
