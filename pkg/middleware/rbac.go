package middleware

import (
	"strings"

	"dpchat/backend/pkg/errors"
	"dpchat/backend/pkg/jwt"
	"dpchat/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ClaimsKey is where JWTAuthMiddleware stores the validated claims
const ClaimsKey = "claims"

// JWTAuthMiddleware checks that the request has a valid bearer JWT and adds claims to the context
func JWTAuthMiddleware(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Error(errors.NewUnauthorizedError(errors.CodeUnauthorized, "Authorization header is required"))
			c.Abort()
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))

		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			logger.FromGin(c).Warn("Invalid JWT token", "error", err.Error())
			c.Error(errors.NewUnauthorizedError(errors.CodeUnauthorized, "Invalid or expired token"))
			c.Abort()
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// RequireRole returns a middleware that requires the caller to hold role
func RequireRole(role jwt.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, exists := c.Get(ClaimsKey)
		if !exists {
			c.Error(errors.NewUnauthorizedError(errors.CodeUnauthorized, "Authentication required"))
			c.Abort()
			return
		}

		claims, ok := v.(*jwt.Claims)
		if !ok {
			c.Error(errors.NewInternalServerError(errors.CodeInternal, "Invalid JWT claims format"))
			c.Abort()
			return
		}

		if !claims.HasRole(role) {
			c.Error(errors.NewForbiddenError(errors.CodeForbidden, "Your role does not allow this operation"))
			c.Abort()
			return
		}

		c.Next()
	}
}
