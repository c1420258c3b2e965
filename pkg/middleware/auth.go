package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ownerIDKey    = "owner_id"
	ownerEmailKey = "owner_email"

	tokenExpiry = 24 * time.Hour
)

// sessionClaims is the token payload the auth provider issues. The subject
// carries the opaque owner id; the core never sees credentials.
type sessionClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// Auth validates bearer session tokens and exposes the caller's owner id
// and email to downstream handlers.
type Auth struct {
	secret []byte
}

// NewAuth creates the auth middleware with an HS256 signing secret.
func NewAuth(secret string) *Auth {
	return &Auth{secret: []byte(secret)}
}

// Sign issues a session token for an owner. The server itself only verifies
// tokens; signing lives here so tests and tooling share one token format.
func (a *Auth) Sign(ownerID, email string) (string, error) {
	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ownerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenExpiry)),
		},
		Email: email,
	})
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Middleware returns the gin handler enforcing authentication.
func (a *Auth) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or malformed Authorization header"})
			c.Abort()
			return
		}

		claims := &sessionClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return a.secret, nil
		})
		if err != nil || claims.Subject == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session token"})
			c.Abort()
			return
		}

		c.Set(ownerIDKey, claims.Subject)
		c.Set(ownerEmailKey, claims.Email)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// OwnerID returns the authenticated caller's owner id.
func OwnerID(c *gin.Context) string {
	return c.GetString(ownerIDKey)
}

// OwnerEmail returns the authenticated caller's email, empty if the token
// carried none.
func OwnerEmail(c *gin.Context) string {
	return c.GetString(ownerEmailKey)
}
