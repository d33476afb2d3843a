package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ClaimsKey is the gin context key the middleware stores claims under.
const ClaimsKey = "claims"

// FacultyAuth enforces bearer JWT tokens signed with HS256 on faculty routes.
func FacultyAuth(signingKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := Parse(tokenStr, signingKey, issuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// Username returns the authenticated faculty username from the context.
func Username(c *gin.Context) string {
	claimsAny, ok := c.Get(ClaimsKey)
	if !ok {
		return ""
	}
	claims, _ := claimsAny.(Claims)
	return claims.Username
}
