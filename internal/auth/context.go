package auth

import "github.com/gin-gonic/gin"

// Gin context keys set by the auth middlewares.
const (
	ctxUserID    = "auth.userID"
	ctxUserEmail = "auth.userEmail"
)

func setClaims(c *gin.Context, claims *Claims) {
	c.Set(ctxUserID, claims.UserID)
	c.Set(ctxUserEmail, claims.Email)
}

// GetUserID returns the authenticated user's ID, or "" for guests.
func GetUserID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

// GetUserEmail returns the authenticated user's email, or "" for guests.
func GetUserEmail(c *gin.Context) string {
	return c.GetString(ctxUserEmail)
}
