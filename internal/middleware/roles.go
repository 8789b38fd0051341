package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/melodix/backend/internal/models"
)

// RequireStaff ensures the authenticated user is staff or admin.
// Must run after AuthRequired.
func RequireStaff() gin.HandlerFunc {
	return requireRole(func(role models.Role) bool {
		return role.Privileged()
	}, "staff_access_required")
}

// RequireAdmin ensures the authenticated user is an admin.
// Must run after AuthRequired.
func RequireAdmin() gin.HandlerFunc {
	return requireRole(func(role models.Role) bool {
		return role == models.RoleAdmin
	}, "admin_access_required")
}

func requireRole(allowed func(models.Role) bool, errCode string) gin.HandlerFunc {
	return func(c *gin.Context) {
		roleVal, exists := c.Get("user_role")
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		role, ok := roleVal.(models.Role)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_user_context"})
			c.Abort()
			return
		}

		if !allowed(role) {
			c.JSON(http.StatusForbidden, gin.H{"error": errCode})
			c.Abort()
			return
		}

		c.Next()
	}
}
