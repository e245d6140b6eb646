package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/openlms/attempt-service/internal/middleware"
	"github.com/openlms/attempt-service/internal/services"
	"github.com/openlms/attempt-service/internal/utils"
)

type HandlerManager struct {
	attemptHandler *AttemptHandler
	archiveHandler *ArchiveHandler
	authenticator  *middleware.Authenticator
}

func NewHandlerManager(
	attemptService services.AttemptService,
	archiveService services.ArchiveService,
	authenticator *middleware.Authenticator,
	validator *utils.Validator,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		attemptHandler: NewAttemptHandler(attemptService, validator, logger),
		archiveHandler: NewArchiveHandler(archiveService, validator, logger),
		authenticator:  authenticator,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "attempt-service",
		})
	})

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(hm.authenticator.RequireAuth())
	{
		// Attempt routes
		attempts := v1.Group("/attempts")
		{
			attempts.POST("", hm.attemptHandler.StartAttempt)
			attempts.GET("/:id", hm.attemptHandler.GetAttempt)
			attempts.POST("/:id/answer", hm.attemptHandler.SubmitAnswer)
			attempts.POST("/:id/jump", hm.attemptHandler.JumpToQuestion)
			attempts.POST("/:id/submit/request", hm.attemptHandler.RequestSubmit)
			attempts.POST("/:id/submit/cancel", hm.attemptHandler.CancelSubmit)
			attempts.POST("/:id/submit", hm.attemptHandler.SubmitAttempt)
			attempts.POST("/:id/restart", hm.attemptHandler.RestartAttempt)
		}

		// Submission archive routes
		assessments := v1.Group("/assessments")
		{
			assessments.GET("/:assessment_id/submissions", hm.archiveHandler.ListSubmissions)
			assessments.GET("/:assessment_id/submissions/export", hm.archiveHandler.ExportSubmissions)
			assessments.GET("/:assessment_id/submissions/:role_id", hm.archiveHandler.GetSubmission)
		}
	}
}
