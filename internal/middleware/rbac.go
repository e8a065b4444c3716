package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/examvault/internal/model"
	"github.com/stemsi/examvault/internal/response"
)

// RequireRole admits only tokens issued to the given role. Must run after
// RequireJWT.
func RequireRole(role model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}
		if claims.Role != role {
			response.AbortFail(c, http.StatusForbidden, roleDenied(role))
			return
		}
		c.Next()
	}
}

func roleDenied(role model.Role) response.ErrCode {
	switch role {
	case model.RoleInstitute:
		return response.ErrInstituteOnly
	case model.RoleAdmin:
		return response.ErrAdminAccessOnly
	case model.RoleStudent:
		return response.ErrStudentAccessOnly
	default:
		return response.ErrForbidden
	}
}
