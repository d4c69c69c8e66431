package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(time.Hour, 2)

	require.True(t, limiter.Allow("alice"))
	require.True(t, limiter.Allow("alice"))
	require.False(t, limiter.Allow("alice"))

	// independent per key
	require.True(t, limiter.Allow("bob"))
}

func TestJWTAuth(t *testing.T) {
	const secret = "test-secret"

	handler := func(c echo.Context) error {
		claims, ok := UserFromContext(c)
		require.True(t, ok)
		return c.String(http.StatusOK, claims.UserID)
	}

	invoke := func(authorization string) *httptest.ResponseRecorder {
		e := echo.New()
		request := httptest.NewRequest(http.MethodGet, "/", nil)
		if authorization != "" {
			request.Header.Set(echo.HeaderAuthorization, authorization)
		}
		recorder := httptest.NewRecorder()
		c := e.NewContext(request, recorder)

		err := JWTAuth(secret)(handler)(c)
		if err != nil {
			e.HTTPErrorHandler(err, c)
		}
		return recorder
	}

	t.Run("ValidToken", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &UserClaims{
			UserID: "alice",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}).SignedString([]byte(secret))
		require.NoError(t, err)

		recorder := invoke("Bearer " + token)
		require.Equal(t, http.StatusOK, recorder.Code)
		require.Equal(t, "alice", recorder.Body.String())
	})

	t.Run("MissingHeader", func(t *testing.T) {
		recorder := invoke("")
		require.Equal(t, http.StatusUnauthorized, recorder.Code)
	})

	t.Run("ExpiredToken", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &UserClaims{
			UserID: "alice",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			},
		}).SignedString([]byte(secret))
		require.NoError(t, err)

		recorder := invoke("Bearer " + token)
		require.Equal(t, http.StatusUnauthorized, recorder.Code)
	})

	t.Run("MissingUserID", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &UserClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}).SignedString([]byte(secret))
		require.NoError(t, err)

		recorder := invoke("Bearer " + token)
		require.Equal(t, http.StatusUnauthorized, recorder.Code)
	})
}
