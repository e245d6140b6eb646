package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/openlms/attempt-service/internal/services"
	"github.com/openlms/attempt-service/internal/utils"
)

type ArchiveHandler struct {
	BaseHandler
	archiveService services.ArchiveService
	validator      *utils.Validator
}

func NewArchiveHandler(
	archiveService services.ArchiveService,
	validator *utils.Validator,
	logger utils.Logger,
) *ArchiveHandler {
	return &ArchiveHandler{
		BaseHandler:    NewBaseHandler(logger),
		archiveService: archiveService,
		validator:      validator,
	}
}

// GetSubmission returns one learner's archived submission
// @Summary Get archived submission
// @Tags submissions
// @Produce json
// @Param assessment_id path int true "Assessment ID"
// @Param role_id path string true "Role ID"
// @Success 200 {object} models.ArchivedSubmission
// @Failure 404 {object} ErrorResponse
// @Router /assessments/{assessment_id}/submissions/{role_id} [get]
func (h *ArchiveHandler) GetSubmission(c *gin.Context) {
	assessmentID := h.parseAssessmentID(c)
	if assessmentID == 0 {
		return
	}

	sub, err := h.archiveService.GetSubmission(c.Request.Context(), assessmentID, c.Param("role_id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, sub)
}

// ListSubmissions lists all archived submissions for an assessment
// @Summary List archived submissions
// @Tags submissions
// @Produce json
// @Param assessment_id path int true "Assessment ID"
// @Success 200 {object} SuccessResponse
// @Router /assessments/{assessment_id}/submissions [get]
func (h *ArchiveHandler) ListSubmissions(c *gin.Context) {
	assessmentID := h.parseAssessmentID(c)
	if assessmentID == 0 {
		return
	}

	subs, err := h.archiveService.ListSubmissions(c.Request.Context(), assessmentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Submissions retrieved",
		Data:    subs,
	})
}

// ExportSubmissions exports archived submissions as an Excel workbook
// @Summary Export archived submissions
// @Tags submissions
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param assessment_id path int true "Assessment ID"
// @Success 200 {file} binary
// @Router /assessments/{assessment_id}/submissions/export [get]
func (h *ArchiveHandler) ExportSubmissions(c *gin.Context) {
	assessmentID := h.parseAssessmentID(c)
	if assessmentID == 0 {
		return
	}

	h.LogRequest(c, "Exporting submissions", "assessment_id", assessmentID)

	data, err := h.archiveService.ExportSubmissionsToExcel(c.Request.Context(), assessmentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := "submissions-" + strconv.FormatInt(assessmentID, 10) + ".xlsx"
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func (h *ArchiveHandler) parseAssessmentID(c *gin.Context) int64 {
	id, err := strconv.ParseInt(c.Param("assessment_id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid assessment_id",
		})
		return 0
	}
	return id
}

func (h *ArchiveHandler) handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrSubmissionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Archived submission not found",
		})
	default:
		h.LogError(c, err, "Unhandled service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
