// Package middleware provides the gin middleware chain: request ids,
// credential checks and quota headers.
package middleware

import (
	"fmt"
	"strings"

	"videoextract/internal/model"
	"videoextract/internal/security"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const authContextKey = "auth_context"

// RequestID assigns every request a UUID, echoed in the X-Request-ID header.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// extractCredential pulls the API key from the request. Bearer token wins
// over the X-API-Key header, which wins over the api_key query parameter.
func extractCredential(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if k := c.GetHeader("X-API-Key"); k != "" {
		return k
	}
	return c.Query("api_key")
}

// Auth authenticates every request against the security gate and stamps
// quota headers on admission.
func Auth(gate *security.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth, err := gate.Authenticate(extractCredential(c), c.ClientIP())
		if err != nil {
			if err.Code == model.ErrRateLimited && err.RetryAfter > 0 {
				c.Header("Retry-After", fmt.Sprintf("%d", err.RetryAfter))
			}
			abortWithError(c, err)
			return
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", auth.Limit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", auth.Remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", auth.Reset.Unix()))

		c.Set(authContextKey, auth)
		c.Next()
	}
}

// RequirePermission gates a route group on one key permission.
func RequirePermission(gate *security.Gate, perm string) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := AuthFrom(c)
		if auth == nil {
			abortWithError(c, model.NewError(model.ErrUnauthenticated, "API key required"))
			return
		}
		if err := gate.CheckPermission(auth, perm); err != nil {
			abortWithError(c, err)
			return
		}
		c.Next()
	}
}

// AuthFrom returns the AuthContext stored by Auth, or nil.
func AuthFrom(c *gin.Context) *security.AuthContext {
	if v, ok := c.Get(authContextKey); ok {
		if auth, ok := v.(*security.AuthContext); ok {
			return auth
		}
	}
	return nil
}

func abortWithError(c *gin.Context, err *model.Error) {
	c.AbortWithStatusJSON(err.Status, model.ErrorResponse{
		Error:   string(err.Code),
		Message: err.Message,
		Code:    err.Status,
	})
}
