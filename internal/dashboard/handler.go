package dashboard

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"pulse/internal/constants"
	"pulse/internal/filters"
	"pulse/internal/logger"
	"pulse/pkg/errors"
)

type ApplyRequest struct {
	ViewQuery
	URL      string         `json:"url" binding:"required"`
	Items    []filters.Item `json:"items" binding:"dive"`
	Override bool           `json:"override"`
	Suffix   string         `json:"suffix"`
}

type ToggleRequest struct {
	ViewQuery
	URL         string `json:"url" binding:"required"`
	Column      string `json:"column" binding:"required"`
	Filter      string `json:"filter" binding:"required"`
	IsExclusive bool   `json:"isExclusive"`
	Suffix      string `json:"suffix"`
}

type PreferenceRequest struct {
	Period     string `json:"period" binding:"required,period"`
	TimeBucket string `json:"timeBucket" binding:"required,timebucket"`
}

// PreferenceStore is the read/write side of view preferences used by the
// preference routes.
type PreferenceStore interface {
	All(ctx context.Context, userID string) (map[string]filters.ViewPreference, error)
	Set(ctx context.Context, userID, view string, pref filters.ViewPreference) error
	Delete(ctx context.Context, userID, view string) error
}

type Handler struct {
	service *Service
	prefs   PreferenceStore
	logger  logger.Logger
}

func NewHandler(service *Service, prefs PreferenceStore, log logger.Logger) *Handler {
	return &Handler{service: service, prefs: prefs, logger: log}
}

// RegisterRoutes mounts the dashboard routes behind authenticate.
func (h *Handler) RegisterRoutes(router *gin.Engine, authenticate gin.HandlerFunc) {
	projects := router.Group("/api/v1/projects/:pid", authenticate)
	{
		projects.GET("/traffic", h.Traffic)
		projects.POST("/filters/apply", h.Apply)
		projects.POST("/filters/toggle", h.Toggle)
	}

	prefs := router.Group("/api/v1/user/preferences/views", authenticate)
	{
		prefs.GET("", h.ListPreferences)
		prefs.PUT("/:view", h.SetPreference)
		prefs.DELETE("/:view", h.DeletePreference)
	}
}

// Traffic godoc
// @Summary      Traffic of a project for the filters in the URL
// @Tags         dashboard
// @Produce      json
// @Param        pid         path      string  true   "Project ID"
// @Param        period      query     string  false  "Period"
// @Param        timeBucket  query     string  false  "Time bucket"
// @Param        from        query     string  false  "Custom period start (YYYY-MM-DD)"
// @Param        to          query     string  false  "Custom period end (YYYY-MM-DD)"
// @Success      200         {object}  View
// @Failure      400         {object}  errors.ErrorResponse
// @Failure      404         {object}  errors.ErrorResponse
// @Failure      409         {object}  errors.ErrorResponse
// @Router       /projects/{pid}/traffic [get]
func (h *Handler) Traffic(c *gin.Context) {
	var q ViewQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.handleError(c, bindingError(err))
		return
	}

	view, err := h.service.Traffic(c.Request.Context(), currentUserID(c), c.Param("pid"), c.Request.URL.String(), q)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Apply godoc
// @Summary      Apply a set of filters to a view
// @Tags         dashboard
// @Accept       json
// @Produce      json
// @Param        pid   path      string        true  "Project ID"
// @Param        body  body      ApplyRequest  true  "Filters"
// @Success      200   {object}  ApplyResult
// @Failure      400   {object}  errors.ErrorResponse
// @Failure      404   {object}  errors.ErrorResponse
// @Router       /projects/{pid}/filters/apply [post]
func (h *Handler) Apply(c *gin.Context) {
	var req ApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleError(c, bindingError(err))
		return
	}

	result, err := h.service.Apply(c.Request.Context(), currentUserID(c), c.Param("pid"), req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Toggle godoc
// @Summary      Add or remove one filter value
// @Tags         dashboard
// @Accept       json
// @Produce      json
// @Param        pid   path      string         true  "Project ID"
// @Param        body  body      ToggleRequest  true  "Filter"
// @Success      200   {object}  ToggleResult
// @Failure      400   {object}  errors.ErrorResponse
// @Failure      404   {object}  errors.ErrorResponse
// @Router       /projects/{pid}/filters/toggle [post]
func (h *Handler) Toggle(c *gin.Context) {
	var req ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleError(c, bindingError(err))
		return
	}

	result, err := h.service.Toggle(c.Request.Context(), currentUserID(c), c.Param("pid"), req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListPreferences godoc
// @Summary      Stored view preferences of the current user
// @Tags         preferences
// @Produce      json
// @Success      200  {object}  map[string]filters.ViewPreference
// @Failure      503  {object}  errors.ErrorResponse
// @Router       /user/preferences/views [get]
func (h *Handler) ListPreferences(c *gin.Context) {
	prefs, err := h.prefs.All(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

// SetPreference godoc
// @Summary      Store the period and time bucket of a view
// @Tags         preferences
// @Accept       json
// @Param        view  path  string             true  "View ID"
// @Param        body  body  PreferenceRequest  true  "Preference"
// @Success      204   "No Content"
// @Failure      400   {object}  errors.ErrorResponse
// @Router       /user/preferences/views/{view} [put]
func (h *Handler) SetPreference(c *gin.Context) {
	var req PreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleError(c, bindingError(err))
		return
	}

	pref := filters.ViewPreference{Period: req.Period, TimeBucket: req.TimeBucket}
	if err := h.prefs.Set(c.Request.Context(), currentUserID(c), c.Param("view"), pref); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeletePreference godoc
// @Summary      Forget the preference of a view
// @Tags         preferences
// @Param        view  path  string  true  "View ID"
// @Success      204   "No Content"
// @Router       /user/preferences/views/{view} [delete]
func (h *Handler) DeletePreference(c *gin.Context) {
	if err := h.prefs.Delete(c.Request.Context(), currentUserID(c), c.Param("view")); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) handleError(c *gin.Context, err error) {
	status := errors.ToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorwCtx(c.Request.Context(), "Dashboard request failed", "error", err, "path", c.Request.URL.Path)
	} else {
		h.logger.DebugwCtx(c.Request.Context(), "Dashboard request rejected", "error", err, "path", c.Request.URL.Path)
	}
	c.JSON(status, errors.ToErrorResponse(err))
}

func currentUserID(c *gin.Context) string {
	return c.GetString(constants.ContextUserID)
}
