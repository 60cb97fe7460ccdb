package middleware

import (
	"net/http"
	"strings"

	"github.com/Quint4n4/MenuInteractivo/internal/utils"

	"github.com/gin-gonic/gin"
)

const claimsKey = "claims"

// JWTAuth requires a valid "Authorization: Bearer" token and stores its
// claims on the context.
func JWTAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "Missing bearer token",
				"error":   "UNAUTHORIZED",
			})
			return
		}

		claims, err := utils.ParseToken(secret, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "Invalid or expired token",
				"error":   "UNAUTHORIZED",
			})
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// StaffOnly must run after JWTAuth.
func StaffOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok || !claims.IsStaff() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"message": "Staff access required",
				"error":   "FORBIDDEN",
			})
			return
		}
		c.Next()
	}
}

func Claims(c *gin.Context) (*utils.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*utils.Claims)
	return claims, ok
}
