package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/melodix/backend/internal/auth"
)

// AuthRequired validates the Bearer token and loads the user into the context.
// Sets "user", "user_id" and "user_role" for downstream handlers.
func AuthRequired(authService auth.ServiceInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "no token provided"})
			c.Abort()
			return
		}

		token := strings.TrimPrefix(header, "Bearer ")
		if token == header || token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			c.Abort()
			return
		}

		user, err := authService.ValidateToken(token)
		if err != nil {
			status := http.StatusUnauthorized
			msg := "invalid token"
			switch err {
			case auth.ErrAccountBanned:
				status = http.StatusForbidden
				msg = "account is banned"
			case auth.ErrAccountInactive:
				status = http.StatusForbidden
				msg = "account is inactive"
			}
			c.JSON(status, gin.H{"error": msg})
			c.Abort()
			return
		}

		c.Set("user", user)
		c.Set("user_id", user.ID)
		c.Set("user_role", user.Role)
		c.Next()
	}
}
