package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pulse/internal/logger"
	"pulse/pkg/errors"
	"pulse/pkg/metrics"
)

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type GoogleRequest struct {
	Token string `json:"token" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type RefreshResponse struct {
	AccessToken string `json:"access_token"`
}

type Handler struct {
	service   *Service
	logger    logger.Logger
	clientURL string
}

func NewHandler(service *Service, log logger.Logger, clientURL string) *Handler {
	return &Handler{service: service, logger: log, clientURL: clientURL}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	group := router.Group("/api/v1/auth")
	{
		group.POST("/register", h.Register)
		group.POST("/login", h.Login)
		group.POST("/google", h.Google)
		group.POST("/refresh", h.Refresh)
		group.GET("/verify/:token", h.VerifyEmail)
		group.GET("/change-email/:token", h.ChangeEmail)
	}
}

// Register godoc
// @Summary      Register with email and password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      RegisterRequest  true  "Credentials"
// @Success      201   {object}  Session
// @Failure      400   {object}  errors.ErrorResponse
// @Router       /auth/register [post]
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if !h.bind(c, &req) {
		return
	}

	origin := c.GetHeader("Origin")
	if origin == "" {
		origin = h.clientURL
	}

	session, err := h.service.Register(c.Request.Context(), req.Email, req.Password, origin)
	h.respondSession(c, "register", http.StatusCreated, session, err)
}

// Login godoc
// @Summary      Sign in with email and password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      LoginRequest  true  "Credentials"
// @Success      200   {object}  Session
// @Failure      401   {object}  errors.ErrorResponse
// @Router       /auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if !h.bind(c, &req) {
		return
	}

	session, err := h.service.Login(c.Request.Context(), req.Email, req.Password)
	h.respondSession(c, "password", http.StatusOK, session, err)
}

// Google godoc
// @Summary      Sign in with a Google ID token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      GoogleRequest  true  "ID token"
// @Success      200   {object}  Session
// @Failure      401   {object}  errors.ErrorResponse
// @Failure      503   {object}  errors.ErrorResponse
// @Router       /auth/google [post]
func (h *Handler) Google(c *gin.Context) {
	var req GoogleRequest
	if !h.bind(c, &req) {
		return
	}

	session, err := h.service.Google(c.Request.Context(), req.Token)
	h.respondSession(c, "google", http.StatusOK, session, err)
}

// Refresh godoc
// @Summary      Exchange a refresh token for an access token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      RefreshRequest  true  "Refresh token"
// @Success      200   {object}  RefreshResponse
// @Failure      401   {object}  errors.ErrorResponse
// @Router       /auth/refresh [post]
func (h *Handler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if !h.bind(c, &req) {
		return
	}

	token, err := h.service.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		metrics.IncAuthAttempt("refresh", "failure")
		h.handleError(c, err)
		return
	}

	metrics.IncAuthAttempt("refresh", "success")
	c.JSON(http.StatusOK, RefreshResponse{AccessToken: token})
}

// VerifyEmail godoc
// @Summary      Activate an account
// @Tags         auth
// @Param        token  path  string  true  "Verification token"
// @Success      204    "No Content"
// @Failure      400    {object}  errors.ErrorResponse
// @Router       /auth/verify/{token} [get]
func (h *Handler) VerifyEmail(c *gin.Context) {
	if err := h.service.VerifyEmail(c.Request.Context(), c.Param("token")); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ChangeEmail godoc
// @Summary      Apply a pending email change
// @Tags         auth
// @Param        token  path  string  true  "Email change token"
// @Success      204    "No Content"
// @Failure      400    {object}  errors.ErrorResponse
// @Router       /auth/change-email/{token} [get]
func (h *Handler) ChangeEmail(c *gin.Context) {
	if err := h.service.ChangeEmail(c.Request.Context(), c.Param("token")); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return false
	}
	return true
}

func (h *Handler) respondSession(c *gin.Context, method string, status int, session *Session, err error) {
	if err != nil {
		metrics.IncAuthAttempt(method, "failure")
		h.handleError(c, err)
		return
	}
	metrics.IncAuthAttempt(method, "success")
	c.JSON(status, session)
}

func (h *Handler) handleError(c *gin.Context, err error) {
	status := errors.ToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorwCtx(c.Request.Context(), "Auth request failed", "error", err, "path", c.Request.URL.Path)
	}
	c.JSON(status, errors.ToErrorResponse(err))
}
