package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prperemyshlev/access-service/internal/dto"
	"github.com/prperemyshlev/access-service/internal/service"
	"github.com/prperemyshlev/access-service/internal/utils"
	"go.uber.org/zap"
)

const (
	refreshCookie     = "refresh_token"
	refreshCookiePath = "/api/v1/auth"

	oauthStateCookie     = "oauth_state"
	oauthStateCookiePath = "/api/v1/auth/oauth"
	oauthStateMaxAge     = 600
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	authService  service.AuthService
	secureCookie bool
	logger       *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService service.AuthService, secureCookie bool, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		secureCookie: secureCookie,
		logger:       logger.Named("auth_handler"),
	}
}

// SignUp handles user registration
// @Summary Sign up
// @Description Create an account and sign in
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.SignUpRequest true "Sign-up request"
// @Success 201 {object} dto.AuthResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /auth/sign-up [post]
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req dto.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
		return
	}

	result, err := h.authService.SignUp(c.Request.Context(), &req, c.Request.UserAgent())
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.setRefreshCookie(c, result.RefreshToken, result.ExpiresIn)
	c.JSON(http.StatusCreated, result.AuthResponse)
}

// SignIn handles password sign-in
// @Summary Sign in
// @Description Authenticate with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.SignInRequest true "Sign-in request"
// @Success 200 {object} dto.AuthResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/sign-in [post]
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req dto.SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
		return
	}

	result, err := h.authService.SignIn(c.Request.Context(), &req, c.Request.UserAgent())
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.setRefreshCookie(c, result.RefreshToken, result.ExpiresIn)
	c.JSON(http.StatusOK, result.AuthResponse)
}

// Refresh rotates the refresh token kept in the cookie
// @Summary Refresh tokens
// @Tags auth
// @Produce json
// @Success 200 {object} dto.AuthResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	refreshToken, err := c.Cookie(refreshCookie)
	if err != nil || refreshToken == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Bad request",
			Message: "Refresh token not found in cookie",
		})
		return
	}

	result, err := h.authService.Refresh(c.Request.Context(), refreshToken, c.Request.UserAgent())
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.setRefreshCookie(c, result.RefreshToken, result.ExpiresIn)
	c.JSON(http.StatusOK, result.AuthResponse)
}

// SignOut revokes the caller's tokens
// @Summary Sign out
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.SuccessResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/sign-out [post]
func (h *AuthHandler) SignOut(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		abortUnauthorized(c, "User not found in context")
		return
	}

	refreshToken, _ := c.Cookie(refreshCookie)

	if err := h.authService.SignOut(c.Request.Context(), claims, refreshToken); err != nil {
		h.respondError(c, err)
		return
	}

	h.setRefreshCookie(c, "", -1)
	c.JSON(http.StatusOK, dto.SuccessResponse{
		Message: "Signed out successfully",
	})
}

// OAuthStart redirects the browser to the Google consent screen
// @Summary Start Google sign-in
// @Tags auth
// @Success 307
// @Failure 404 {object} dto.ErrorResponse
// @Router /auth/oauth/google [get]
func (h *AuthHandler) OAuthStart(c *gin.Context) {
	state := uuid.NewString()

	target, err := h.authService.OAuthURL(state)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateCookie, state, oauthStateMaxAge, oauthStateCookiePath, "", h.secureCookie, true)
	c.Redirect(http.StatusTemporaryRedirect, target)
}

// OAuthCallback completes Google sign-in
// @Summary Google sign-in callback
// @Tags auth
// @Produce json
// @Param state query string true "OAuth state"
// @Param code query string true "Authorization code"
// @Success 200 {object} dto.AuthResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/oauth/google/callback [get]
func (h *AuthHandler) OAuthCallback(c *gin.Context) {
	expected, err := c.Cookie(oauthStateCookie)
	if err != nil || expected == "" || c.Query("state") != expected {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Bad request",
			Message: "OAuth state mismatch",
		})
		return
	}
	c.SetCookie(oauthStateCookie, "", -1, oauthStateCookiePath, "", h.secureCookie, true)

	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Bad request",
			Message: "Authorization code is required",
		})
		return
	}

	result, err := h.authService.SignInWithOAuth(c.Request.Context(), code, c.Request.UserAgent())
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.setRefreshCookie(c, result.RefreshToken, result.ExpiresIn)
	c.JSON(http.StatusOK, result.AuthResponse)
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookie, token, maxAge, refreshCookiePath, "", h.secureCookie, true)
}

// respondError maps identity errors onto HTTP statuses. Anything it does
// not recognise is logged and reported as a 500 without details.
func (h *AuthHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUserExists):
		c.JSON(http.StatusConflict, dto.ErrorResponse{Error: "Conflict", Message: err.Error()})
	case errors.Is(err, utils.ErrInvalidEmail), errors.Is(err, utils.ErrWeakPassword):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Message: err.Error()})
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidRefreshToken),
		errors.Is(err, service.ErrTokenRevoked),
		errors.Is(err, service.ErrUnverifiedEmail),
		errors.Is(err, utils.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "Unauthorized", Message: err.Error()})
	case errors.Is(err, service.ErrInactiveUser):
		c.JSON(http.StatusForbidden, dto.ErrorResponse{Error: "Forbidden", Message: err.Error()})
	case errors.Is(err, service.ErrOAuthDisabled):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "Not found", Message: err.Error()})
	default:
		h.logger.Error("auth request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Internal server error",
			Message: "Something went wrong",
		})
	}
}
