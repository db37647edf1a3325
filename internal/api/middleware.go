package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bookease/bookease-backend/internal/auth"
	"github.com/bookease/bookease-backend/internal/pkg/response"
	"github.com/bookease/bookease-backend/internal/user"
)

// RequireSystemAdmin lets through active system admins only, reading the
// account on every request. It MUST be used after auth.AuthRequired.
func RequireSystemAdmin(userService user.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := auth.GetUserID(c)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorResponse{Error: "unauthorized"})
			return
		}

		u, err := userService.GetByID(c.Request.Context(), userID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorResponse{Error: "user not found"})
			return
		}

		if !u.IsActive || !u.IsSystemAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, response.ErrorResponse{Error: "forbidden: system admin access required"})
			return
		}

		c.Next()
	}
}
