package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthRouter(a *Auth) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/whoami", a.Middleware(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": OwnerID(c), "email": OwnerEmail(c)})
	})
	return router
}

func TestSignAndVerifyRoundtrip(t *testing.T) {
	auth := NewAuth("test-secret")
	router := newAuthRouter(auth)

	token, err := auth.Sign("owner-42", "user@example.com")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "owner-42")
	assert.Contains(t, w.Body.String(), "user@example.com")
}

func TestMissingAuthorizationHeader(t *testing.T) {
	router := newAuthRouter(NewAuth("test-secret"))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMalformedAuthorizationHeader(t *testing.T) {
	router := newAuthRouter(NewAuth("test-secret"))

	for _, header := range []string{"Bearer", "Bearer ", "Basic abc", "token-without-scheme"} {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", header)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code, "header %q", header)
	}
}

func TestWrongSecretRejected(t *testing.T) {
	router := newAuthRouter(NewAuth("test-secret"))

	token, err := NewAuth("another-secret").Sign("owner-42", "user@example.com")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestExpiredTokenRejected(t *testing.T) {
	auth := NewAuth("test-secret")
	router := newAuthRouter(auth)

	past := time.Now().UTC().Add(-48 * time.Hour)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "owner-42",
			IssuedAt:  jwt.NewNumericDate(past),
			ExpiresAt: jwt.NewNumericDate(past.Add(tokenExpiry)),
		},
		Email: "user@example.com",
	})
	signed, err := token.SignedString(auth.secret)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUnsignedTokenRejected(t *testing.T) {
	auth := NewAuth("test-secret")
	router := newAuthRouter(auth)

	token := jwt.NewWithClaims(jwt.SigningMethodNone, sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "owner-42"},
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
