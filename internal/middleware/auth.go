package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/raktaseva/blood-api/internal/model"
	"github.com/raktaseva/blood-api/pkg/auth"
)

const ContextSession = "session"

type AuthMiddleware struct {
	jwt auth.JWTService
}

func NewAuthMiddleware(jwt auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

// Authenticate validates the bearer token and stores the caller session
// in the gin context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := m.claimsFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   gin.H{"code": http.StatusUnauthorized, "message": "unauthorized"},
			})
			return
		}

		c.Set(ContextSession, &model.Session{
			UserID: claims.UserID,
			Email:  claims.Email,
			Role:   claims.Role,
		})
		c.Next()
	}
}

// OptionalAuth attaches a session when a valid token is present but lets
// anonymous callers through; emergency requests may be filed without an
// account.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, ok := m.claimsFrom(c); ok {
			c.Set(ContextSession, &model.Session{
				UserID: claims.UserID,
				Email:  claims.Email,
				Role:   claims.Role,
			})
		}
		c.Next()
	}
}

// RequireRole gates a route to the named roles. Admins always pass.
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := SessionFrom(c)
		if sess == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   gin.H{"code": http.StatusUnauthorized, "message": "unauthorized"},
			})
			return
		}
		if sess.Role != model.RoleAdmin && !contains(roles, sess.Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   gin.H{"code": http.StatusForbidden, "message": "insufficient role"},
			})
			return
		}
		c.Next()
	}
}

// SessionFrom extracts the authenticated session, nil for anonymous
// callers.
func SessionFrom(c *gin.Context) *model.Session {
	if v, ok := c.Get(ContextSession); ok {
		if sess, ok := v.(*model.Session); ok {
			return sess
		}
	}
	return nil
}

func (m *AuthMiddleware) claimsFrom(c *gin.Context) (*auth.Claims, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return nil, false
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, false
	}
	claims, err := m.jwt.ValidateToken(parts[1])
	if err != nil {
		return nil, false
	}
	return claims, true
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
