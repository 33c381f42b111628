package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mossy-p/voice-broker/internal/token"
)

// Context keys set by MediaAuth.
const (
	IdentityKey = "identity"
	NameKey     = "participant_name"
	MetadataKey = "participant_metadata"
)

// MediaAuth validates the access credential for the room named by the :room
// path parameter. Browsers cannot set headers on WebSocket requests, so the
// credential may come from the access_token query parameter as well as a
// Bearer Authorization header.
func MediaAuth(issuer *token.Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.Query("access_token")
		if tokenString == "" {
			authHeader := c.GetHeader("Authorization")
			if authHeader == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "Access token required",
				})
				return
			}

			// Extract token from "Bearer <token>"
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "Invalid authorization header format",
				})
				return
			}
			tokenString = parts[1]
		}

		claims, err := issuer.Verify(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid token",
			})
			return
		}

		if !claims.Video.Allows(c.Param("room")) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Token does not grant access to this room",
			})
			return
		}

		c.Set(IdentityKey, claims.Subject)
		c.Set(NameKey, claims.Name)
		c.Set(MetadataKey, claims.Metadata)
		c.Next()
	}
}
