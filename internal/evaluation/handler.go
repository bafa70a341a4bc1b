package evaluation

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"compass/internal/logger"
	"compass/internal/rules"
	"compass/pkg/cel"
	"compass/pkg/errors"
)

type Handler struct {
	service *Service
	logger  logger.Logger
}

func NewHandler(service *Service, log logger.Logger) *Handler {
	return &Handler{service: service, logger: log}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		v1.POST("/resolve", h.Resolve)
		v1.POST("/reminders/preview", h.PreviewReminders)
		v1.POST("/retention/next", h.NextRetention)
		v1.POST("/folders/preview", h.PreviewFolders)
		v1.POST("/rules/validate", h.ValidateRule)
		v1.GET("/conditions/examples", h.ConditionExamples)
	}
}

func (h *Handler) handleError(c *gin.Context, err error) {
	status := errors.ToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	} else {
		h.logger.DebugwCtx(c.Request.Context(), "Request rejected", "error", err, "path", c.Request.URL.Path)
	}
	c.JSON(status, errors.ToErrorResponse(err))
}

func (h *Handler) bind(c *gin.Context, into interface{}) bool {
	if err := c.ShouldBindJSON(into); err != nil {
		h.handleError(c, errors.ErrValidation.WithCause(err).WithDetail("message", err.Error()))
		return false
	}
	return true
}

// Resolve godoc
// @Summary      Resolve the effective rule
// @Description  Picks the most specific active rule of a category for a target
// @Tags         evaluation
// @Accept       json
// @Produce      json
// @Param        request  body      ResolveRequest  true  "Category and target"
// @Success      200      {object}  ResolveResponse
// @Failure      400      {object}  map[string]interface{}
// @Failure      503      {object}  map[string]interface{}
// @Router       /resolve [post]
func (h *Handler) Resolve(c *gin.Context) {
	var req ResolveRequest
	if !h.bind(c, &req) {
		return
	}
	resp, err := h.service.Resolve(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// PreviewReminders godoc
// @Summary      Preview reminder dates
// @Description  Generates the reminder events of a task from its resolved rule or from ad-hoc tokens
// @Tags         evaluation
// @Accept       json
// @Produce      json
// @Param        request  body      ReminderPreviewRequest  true  "Task and due date"
// @Success      200      {object}  ScheduleResponse
// @Failure      400      {object}  map[string]interface{}
// @Failure      404      {object}  map[string]interface{}
// @Failure      422      {object}  map[string]interface{}
// @Router       /reminders/preview [post]
func (h *Handler) PreviewReminders(c *gin.Context) {
	var req ReminderPreviewRequest
	if !h.bind(c, &req) {
		return
	}
	resp, err := h.service.PreviewReminders(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// NextRetention godoc
// @Summary      Preview retention executions
// @Description  Chains the next retention executions of a document from an anchor date
// @Tags         evaluation
// @Accept       json
// @Produce      json
// @Param        request  body      RetentionNextRequest  true  "Document and anchor"
// @Success      200      {object}  ScheduleResponse
// @Failure      400      {object}  map[string]interface{}
// @Failure      404      {object}  map[string]interface{}
// @Failure      422      {object}  map[string]interface{}
// @Router       /retention/next [post]
func (h *Handler) NextRetention(c *gin.Context) {
	var req RetentionNextRequest
	if !h.bind(c, &req) {
		return
	}
	resp, err := h.service.NextRetention(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// PreviewFolders godoc
// @Summary      Preview folder creation
// @Description  Runs the folder trigger engine for a taxonomy event without publishing
// @Tags         evaluation
// @Accept       json
// @Produce      json
// @Param        request  body      FolderPreviewRequest  true  "Taxonomy event"
// @Success      200      {object}  FolderPreviewResponse
// @Failure      400      {object}  map[string]interface{}
// @Router       /folders/preview [post]
func (h *Handler) PreviewFolders(c *gin.Context) {
	var req FolderPreviewRequest
	if !h.bind(c, &req) {
		return
	}
	resp, err := h.service.PreviewFolders(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ValidateRule godoc
// @Summary      Validate a rule definition
// @Description  Reports every problem in a rule before it is stored
// @Tags         evaluation
// @Accept       json
// @Produce      json
// @Param        rule  body      rules.Rule  true  "Rule definition"
// @Success      200   {object}  ValidateRuleResponse
// @Success      422   {object}  ValidateRuleResponse
// @Failure      400   {object}  map[string]interface{}
// @Router       /rules/validate [post]
func (h *Handler) ValidateRule(c *gin.Context) {
	var rule rules.Rule
	if !h.bind(c, &rule) {
		return
	}
	resp := h.service.ValidateRule(c.Request.Context(), rule)
	status := http.StatusOK
	if !resp.Valid {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, resp)
}

// ConditionExamples godoc
// @Summary      List condition examples
// @Description  Returns sample guard expressions accepted in a rule's condition field
// @Tags         evaluation
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /conditions/examples [get]
func (h *Handler) ConditionExamples(c *gin.Context) {
	c.JSON(http.StatusOK, cel.ConditionExamples)
}
