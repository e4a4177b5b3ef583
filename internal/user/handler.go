package user

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pulse/internal/constants"
	"pulse/internal/logger"
	"pulse/pkg/errors"
)

// Guards are the authentication middlewares the routes are mounted with.
type Guards struct {
	Authenticate gin.HandlerFunc
	Member       gin.HandlerFunc
	Admin        gin.HandlerFunc
}

type BaseHandler struct {
	Service Service
	Logger  logger.Logger
}

func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	status := errors.ToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	} else {
		h.Logger.WarnwCtx(c.Request.Context(), "Request rejected", "error", err, "path", c.Request.URL.Path)
	}

	c.JSON(status, errors.ToErrorResponse(err))
}

type Handler struct {
	BaseHandler
	selfhosted bool
	clientURL  string
}

func NewHandler(service Service, log logger.Logger, selfhosted bool, clientURL string) *Handler {
	return &Handler{
		BaseHandler: BaseHandler{
			Service: service,
			Logger:  log,
		},
		selfhosted: selfhosted,
		clientURL:  clientURL,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine, guards Guards) {
	users := router.Group("/api/v1/user", guards.Authenticate, h.rejectSelfhosted)
	{
		users.GET("", guards.Admin, h.List)
		users.GET("/search", guards.Admin, h.Search)
		users.POST("", guards.Admin, h.Create)
		users.DELETE("/:id", guards.Admin, h.Delete)
		users.DELETE("", guards.Member, h.DeleteSelf)
		users.POST("/confirm_email", guards.Member, h.SendEmailConfirmation)
		users.PUT("/:id", guards.Admin, h.Update)
		users.PUT("", guards.Member, h.UpdateSelf)
		users.GET("/export", guards.Member, h.Export)
	}
}

// rejectSelfhosted disables account management on self-hosted installs.
func (h *Handler) rejectSelfhosted(c *gin.Context) {
	if h.selfhosted {
		c.AbortWithStatusJSON(http.StatusForbidden,
			errors.ToErrorResponse(errors.ErrForbidden.WithMessage("This API is not available in the self-hosted mode")))
		return
	}
	c.Next()
}

func (h *Handler) origin(c *gin.Context) string {
	if origin := c.GetHeader("Origin"); origin != "" {
		return origin
	}
	return h.clientURL
}

func currentUserID(c *gin.Context) string {
	return c.GetString(constants.ContextUserID)
}

// List godoc
// @Summary      List users
// @Tags         user
// @Produce      json
// @Param        take  query     int  false  "Page size"
// @Param        skip  query     int  false  "Offset"
// @Success      200   {object}  Page
// @Failure      403   {object}  errors.ErrorResponse
// @Router       /user [get]
func (h *Handler) List(c *gin.Context) {
	take := parseIntQuery(c, "take", constants.DefaultLimit)
	if take <= 0 || take > constants.MaxLimit {
		take = constants.DefaultLimit
	}
	skip := max(parseIntQuery(c, "skip", 0), 0)

	page, err := h.Service.List(c.Request.Context(), take, skip)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// Search godoc
// @Summary      Search users by email or id
// @Tags         user
// @Produce      json
// @Param        query  query     string  false  "Search text"
// @Success      200    {array}   User
// @Router       /user/search [get]
func (h *Handler) Search(c *gin.Context) {
	users, err := h.Service.Search(c.Request.Context(), c.Query("query"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// Create godoc
// @Summary      Create an active user
// @Tags         user
// @Accept       json
// @Produce      json
// @Param        user  body      CreateUserRequest  true  "User"
// @Success      201   {object}  User
// @Failure      400   {object}  errors.ErrorResponse
// @Router       /user [post]
func (h *Handler) Create(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	user, err := h.Service.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// Delete godoc
// @Summary      Delete a user with their projects and analytics
// @Tags         user
// @Param        id   path  string  true  "User ID"
// @Success      204  "No Content"
// @Failure      400  {object}  errors.ErrorResponse
// @Router       /user/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	h.delete(c, c.Param("id"))
}

// DeleteSelf godoc
// @Summary      Delete the current account
// @Tags         user
// @Success      204  "No Content"
// @Failure      400  {object}  errors.ErrorResponse
// @Router       /user [delete]
func (h *Handler) DeleteSelf(c *gin.Context) {
	h.delete(c, currentUserID(c))
}

func (h *Handler) delete(c *gin.Context, id string) {
	if err := h.Service.Delete(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SendEmailConfirmation godoc
// @Summary      Send a new email verification link
// @Tags         user
// @Produce      json
// @Success      200  {boolean}  bool
// @Router       /user/confirm_email [post]
func (h *Handler) SendEmailConfirmation(c *gin.Context) {
	sent, err := h.Service.SendEmailConfirmation(c.Request.Context(), currentUserID(c), h.origin(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, sent)
}

// Update godoc
// @Summary      Update or create a user
// @Tags         user
// @Accept       json
// @Produce      json
// @Param        id    path      string             true  "User ID"
// @Param        user  body      UpdateUserRequest  true  "Fields to change"
// @Success      200   {object}  User
// @Failure      400   {object}  errors.ErrorResponse
// @Router       /user/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	user, err := h.Service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateSelf godoc
// @Summary      Change the current user's password or email
// @Tags         user
// @Accept       json
// @Produce      json
// @Param        user  body      UpdateProfileRequest  true  "Fields to change"
// @Success      200   {object}  User
// @Failure      400   {object}  errors.ErrorResponse
// @Router       /user [put]
func (h *Handler) UpdateSelf(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	user, err := h.Service.UpdateProfile(c.Request.Context(), currentUserID(c), req, h.origin(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Export godoc
// @Summary      Mail the current user's personal data
// @Tags         user
// @Produce      json
// @Success      200  {object}  User
// @Failure      405  {object}  errors.ErrorResponse
// @Router       /user/export [get]
func (h *Handler) Export(c *gin.Context) {
	user, err := h.Service.Export(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func parseIntQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
