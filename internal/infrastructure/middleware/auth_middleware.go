package middleware

import (
	"net/http"
	"strings"

	"parlor/internal/core/services"

	"github.com/gin-gonic/gin"
)

// RoomAuthMiddleware validates the bearer room token and, when the route
// carries a :room parameter, checks the token was issued for that room.
func RoomAuthMiddleware(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := bearerClaims(c, authService)
		if !ok {
			return
		}

		if room := c.Param("room"); room != "" && room != claims.Room {
			c.JSON(http.StatusForbidden, gin.H{"error": "token issued for another room"})
			c.Abort()
			return
		}

		c.Set("room", claims.Room)
		c.Set("display_name", claims.DisplayName)
		c.Next()
	}
}

// OptionalRoomAuthMiddleware attaches room claims when a valid token is
// present but lets anonymous requests through.
func OptionalRoomAuthMiddleware(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			if claims, err := authService.ValidateToken(parts[1]); err == nil {
				c.Set("room", claims.Room)
				c.Set("display_name", claims.DisplayName)
			}
		}
		c.Next()
	}
}

func bearerClaims(c *gin.Context, authService services.AuthService) (*services.RoomClaims, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
		c.Abort()
		return nil, false
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
		c.Abort()
		return nil, false
	}

	claims, err := authService.ValidateToken(parts[1])
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		c.Abort()
		return nil, false
	}
	return claims, true
}
