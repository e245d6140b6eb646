package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openlms/attempt-service/internal/middleware"
	"github.com/openlms/attempt-service/internal/services"
	"github.com/openlms/attempt-service/internal/utils"
)

type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
	validator      *utils.Validator
}

func NewAttemptHandler(
	attemptService services.AttemptService,
	validator *utils.Validator,
	logger utils.Logger,
) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
		validator:      validator,
	}
}

// StartAttempt starts a new attempt for an assessment
// @Summary Start attempt
// @Description Fetches the assessment and starts a fresh attempt session
// @Tags attempts
// @Accept json
// @Produce json
// @Param request body services.StartAttemptRequest true "Assessment to attempt"
// @Success 201 {object} services.AttemptView
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /attempts [post]
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	var req services.StartAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Starting attempt", "assessment_id", req.AssessmentID)

	view, err := h.attemptService.Start(c.Request.Context(), &req, middleware.RoleID(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, view)
}

// GetAttempt returns the current view of an attempt
// @Summary Get attempt
// @Tags attempts
// @Produce json
// @Param id path string true "Attempt ID"
// @Success 200 {object} services.AttemptView
// @Failure 404 {object} ErrorResponse
// @Router /attempts/{id} [get]
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	view, err := h.attemptService.Get(c.Request.Context(), c.Param("id"), middleware.RoleID(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// SubmitAnswer records an answer for a question of the attempt
// @Summary Answer question
// @Description Records or overwrites the answer for one question
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path string true "Attempt ID"
// @Param request body services.AnswerRequest true "Answer"
// @Success 200 {object} services.AttemptView
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /attempts/{id}/answer [post]
func (h *AttemptHandler) SubmitAnswer(c *gin.Context) {
	var req services.AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	view, err := h.attemptService.Answer(c.Request.Context(), c.Param("id"), middleware.RoleID(c), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// JumpToQuestion moves the attempt focus to another question
// @Summary Jump to question
// @Description Moves the focus index; out-of-range indexes are ignored
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path string true "Attempt ID"
// @Param request body services.JumpRequest true "Target question index"
// @Success 200 {object} services.AttemptView
// @Failure 400 {object} ErrorResponse
// @Router /attempts/{id}/jump [post]
func (h *AttemptHandler) JumpToQuestion(c *gin.Context) {
	var req services.JumpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	view, err := h.attemptService.Jump(c.Request.Context(), c.Param("id"), middleware.RoleID(c), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// RequestSubmit moves the attempt to the submit confirmation step
// @Summary Request submission
// @Tags attempts
// @Produce json
// @Param id path string true "Attempt ID"
// @Success 200 {object} services.AttemptView
// @Failure 409 {object} ErrorResponse
// @Router /attempts/{id}/submit/request [post]
func (h *AttemptHandler) RequestSubmit(c *gin.Context) {
	h.LogRequest(c, "Requesting submission", "attempt_id", c.Param("id"))

	view, err := h.attemptService.RequestSubmit(c.Request.Context(), c.Param("id"), middleware.RoleID(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// CancelSubmit returns a confirming or failed attempt to answering
// @Summary Cancel submission
// @Tags attempts
// @Produce json
// @Param id path string true "Attempt ID"
// @Success 200 {object} services.AttemptView
// @Failure 409 {object} ErrorResponse
// @Router /attempts/{id}/submit/cancel [post]
func (h *AttemptHandler) CancelSubmit(c *gin.Context) {
	view, err := h.attemptService.CancelSubmit(c.Request.Context(), c.Param("id"), middleware.RoleID(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// SubmitAttempt performs the confirmed, single-shot submission
// @Summary Submit attempt
// @Description Scores (choices) or archives (essay) the attempt and finalizes it
// @Tags attempts
// @Produce json
// @Param id path string true "Attempt ID"
// @Success 200 {object} services.AttemptView
// @Failure 409 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /attempts/{id}/submit [post]
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	h.LogRequest(c, "Submitting attempt", "attempt_id", c.Param("id"))

	view, err := h.attemptService.Submit(c.Request.Context(), c.Param("id"), middleware.RoleID(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// RestartAttempt starts a fresh attempt over the same assessment
// @Summary Restart attempt
// @Description Creates a new attempt with empty answers; only valid once submitted
// @Tags attempts
// @Produce json
// @Param id path string true "Attempt ID"
// @Success 201 {object} services.AttemptView
// @Failure 409 {object} ErrorResponse
// @Router /attempts/{id}/restart [post]
func (h *AttemptHandler) RestartAttempt(c *gin.Context) {
	h.LogRequest(c, "Restarting attempt", "attempt_id", c.Param("id"))

	view, err := h.attemptService.Restart(c.Request.Context(), c.Param("id"), middleware.RoleID(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, view)
}

func (h *AttemptHandler) handleServiceError(c *gin.Context, err error) {
	// Handle custom error types first
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return
	}

	var validationError *services.ValidationError
	if errors.As(err, &validationError) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationError,
		})
		return
	}

	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Access denied",
			Details: map[string]interface{}{
				"resource": permissionError.Resource,
				"action":   permissionError.Action,
				"reason":   permissionError.Reason,
			},
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrAssessmentNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Assessment not found",
		})
	case errors.Is(err, services.ErrAttemptNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Attempt not found",
		})
	case errors.Is(err, services.ErrAttemptAccessDenied):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Access denied to attempt",
		})
	case errors.Is(err, services.ErrAssessmentHasNoQuestions):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: "Assessment has no questions",
		})
	case errors.Is(err, services.ErrAttemptAlreadySubmitted):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Attempt already submitted",
		})
	case errors.Is(err, services.ErrAttemptNotSubmitted):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Attempt not submitted yet",
		})
	case errors.Is(err, services.ErrAttemptNotAnswering):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Attempt is not accepting answers",
		})
	case errors.Is(err, services.ErrAttemptNotConfirming):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Attempt is not awaiting submit confirmation",
		})
	case errors.Is(err, services.ErrSubmissionInFlight):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Submission already in progress",
		})
	case errors.Is(err, services.ErrSubmitFailed):
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Message: "Submission failed; answers preserved for retry",
			Details: err.Error(),
		})
	case errors.Is(err, services.ErrValidationFailed):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: err.Error(),
		})
	default:
		h.LogError(c, err, "Unhandled service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
