package auth

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"pulse/internal/constants"
	"pulse/pkg/errors"
	"pulse/pkg/logging"
)

// Authenticate requires a valid bearer access token and stores the user id
// and roles on the gin and request contexts.
func Authenticate(tokens *TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				errors.ToErrorResponse(errors.ErrUnauthorized.WithMessage("missing bearer token")))
			return
		}

		claims, err := tokens.ValidateAccessToken(token)
		if err != nil {
			c.AbortWithStatusJSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(err))
			return
		}

		c.Set(constants.ContextUserID, claims.Subject)
		c.Set(constants.ContextRoles, claims.Roles)
		c.Request = c.Request.WithContext(logging.WithUserID(c.Request.Context(), claims.Subject))

		c.Next()
	}
}

// RequireRoles lets the request through when the caller has at least one
// of roles. It must run after Authenticate.
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, role := range CurrentRoles(c) {
			if slices.Contains(roles, role) {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden,
			errors.ToErrorResponse(errors.ErrForbidden.WithMessage("insufficient role")))
	}
}

func CurrentUserID(c *gin.Context) string {
	return c.GetString(constants.ContextUserID)
}

func CurrentRoles(c *gin.Context) []string {
	return c.GetStringSlice(constants.ContextRoles)
}
