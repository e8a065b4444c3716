package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/examvault/internal/middleware"
	"github.com/stemsi/examvault/internal/model"
	"github.com/stemsi/examvault/internal/response"
	"github.com/stemsi/examvault/internal/validator"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService  AuthService
	log          zerolog.Logger
	cookieMaxAge int
	secureCookie bool
}

// NewAuthHandler creates a new AuthHandler. cookieMaxAge is in seconds.
func NewAuthHandler(authService AuthService, log zerolog.Logger, cookieMaxAge int, secureCookie bool) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		log:          log.With().Str("component", "auth_handler").Logger(),
		cookieMaxAge: cookieMaxAge,
		secureCookie: secureCookie,
	}
}

// Login godoc
// POST /api/v1/auth/login
// Validates email + password for any role and returns a JWT, also set as
// an HttpOnly cookie.
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	token, user, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		failService(c, h.log, err)
		return
	}

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.TokenCookie, token, h.cookieMaxAge, "/", "", h.secureCookie, true)

	response.Success(c, http.StatusOK, gin.H{
		"token": token,
		"user":  user,
	})
}

// Logout godoc
// POST /api/v1/auth/logout
// Revokes the current token and clears the cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	if err := h.authService.Logout(c.Request.Context(), claims); err != nil {
		failService(c, h.log, err)
		return
	}

	c.SetCookie(middleware.TokenCookie, "", -1, "/", "", h.secureCookie, true)
	response.Success(c, http.StatusOK, gin.H{})
}

// Me godoc
// GET /api/v1/auth/me
// Returns the profile of the currently authenticated account.
func (h *AuthHandler) Me(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	user, err := h.authService.Me(c.Request.Context(), claims.UserID)
	if err != nil {
		failService(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": user})
}
