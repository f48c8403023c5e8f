package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"todola/backend/internal/auth"
	"todola/backend/internal/models"
)

// Context keys set by Authenticate.
const (
	KeyUserID   = "user_id"
	KeyIdentity = "identity"
	KeyClaims   = "claims"
)

type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*auth.Claims, error)
}

// Authenticate requires a bearer access token issued by the auth service
// and a session that has not been signed out.
func Authenticate(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "missing_token",
				"message": "Authorization header is required",
			})
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_token_format",
				"message": "Authorization header must use Bearer token",
			})
			return
		}

		tokenStr := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

		claims, err := verifier.VerifyToken(c.Request.Context(), tokenStr)
		if err != nil {
			var authErr *auth.AuthError
			if errors.As(err, &authErr) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error":   authErr.Code,
					"message": authErr.Message,
				})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_token",
				"message": "Token validation failed",
			})
			return
		}

		c.Set(KeyUserID, claims.UID)
		c.Set(KeyIdentity, claims.Identity())
		c.Set(KeyClaims, claims)
		c.Next()
	}
}

// IdentityFrom returns the identity Authenticate stored, or nil.
func IdentityFrom(c *gin.Context) *models.Identity {
	v, ok := c.Get(KeyIdentity)
	if !ok {
		return nil
	}
	identity, _ := v.(*models.Identity)
	return identity
}

func ClaimsFrom(c *gin.Context) *auth.Claims {
	v, ok := c.Get(KeyClaims)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.Claims)
	return claims
}
