package api

import (
	"net/http"

	"ecotrack/waste-app/internal/domain"
	"ecotrack/waste-app/internal/service"
	"ecotrack/waste-app/internal/session"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authService service.AuthService,
	draftService *service.DraftService,
	recordService *service.RecordService,
	refService *service.ReferenceService,
	sessionManager *session.Manager,
) {

	authHandler := NewAuthHandler(authService)
	sessionHandler := NewSessionHandler(sessionManager, draftService, refService)
	recordHandler := NewRecordHandler(recordService)
	referenceHandler := NewReferenceHandler(refService)

	authMiddleware := AuthMiddleware(jwtSecret)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}
	}

	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", func(c *gin.Context) {
			userIDStr, err := getUserIDFromContext(c)
			if err != nil {
				abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
				return
			}
			role, _ := getUserRoleFromContext(c)
			c.JSON(http.StatusOK, gin.H{"userId": userIDStr, "role": role})
		})

		// Reference data for the wizard dropdowns.
		protected.GET("/references", referenceHandler.GetReferenceData)

		// --- Wizard Sessions ---
		// Operators build drafts through a server-held session. Every action
		// goes through the session id; ownership is checked on each call.
		sessionGroup := protected.Group("/sessions")
		sessionGroup.Use(RoleMiddleware(domain.RoleOperator, domain.RoleAdmin))
		{
			sessionGroup.POST("", sessionHandler.OpenSession)
			sessionGroup.GET("/:sessionId", sessionHandler.GetState)
			sessionGroup.GET("/:sessionId/review", sessionHandler.Review)
			sessionGroup.POST("/:sessionId/fields", sessionHandler.ChangeField)
			sessionGroup.POST("/:sessionId/next", sessionHandler.Next)
			sessionGroup.POST("/:sessionId/back", sessionHandler.Back)
			sessionGroup.POST("/:sessionId/save", sessionHandler.SaveDraft)
			sessionGroup.POST("/:sessionId/submit", sessionHandler.Submit)
			sessionGroup.POST("/:sessionId/redo", sessionHandler.Redo)
			sessionGroup.DELETE("/:sessionId", sessionHandler.Cancel)

			sessionGroup.POST("/:sessionId/attachments", sessionHandler.AddAttachments)
			sessionGroup.PUT("/:sessionId/attachments/:category", sessionHandler.SetSingleAttachment)
			sessionGroup.DELETE("/:sessionId/attachments/:category/:identity", sessionHandler.DeleteAttachment)
		}

		// --- Records ---
		recordGroup := protected.Group("/records")
		{
			// Operators see their own records; approvers work the queue.
			recordGroup.GET("/mine", RoleMiddleware(domain.RoleOperator, domain.RoleAdmin), recordHandler.ListMyRecords)
			recordGroup.GET("/submitted", RoleMiddleware(domain.RoleApprover, domain.RoleAdmin), recordHandler.ListSubmitted)
			recordGroup.GET("/:recordId", recordHandler.GetRecord)
			recordGroup.POST("/:recordId/approve", RoleMiddleware(domain.RoleApprover, domain.RoleAdmin), recordHandler.Approve)
			recordGroup.POST("/:recordId/reject", RoleMiddleware(domain.RoleApprover, domain.RoleAdmin), recordHandler.Reject)
		}
	}
}
