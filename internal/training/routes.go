package training

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mpalomaki/nick/pkg/models"
)

// Routes registers the training endpoints on the given router group
func Routes(router *gin.RouterGroup, service TrainingService, logger *zap.Logger, auth gin.HandlerFunc, requireRole func(...string) gin.HandlerFunc) {
	handler := NewHandler(service, logger)

	// Public certificate lookup for printed serial codes.
	router.GET("/training/certificates/:serial", handler.VerifyCertificate)

	sessions := router.Group("/training/sessions")
	sessions.Use(auth)
	{
		sessions.GET("", handler.ListSessions)
		sessions.POST("", requireRole(models.RoleTrainer, models.RoleQualityManager), handler.CreateSession)
		sessions.GET("/:id", handler.GetSession)
		sessions.POST("/:id/cancel", requireRole(models.RoleTrainer, models.RoleQualityManager), handler.CancelSession)
		sessions.POST("/:id/enroll", handler.Enroll)
		sessions.POST("/:id/attendance", requireRole(models.RoleTrainer), handler.MarkAttendance)
	}

	training := router.Group("/training")
	training.Use(auth)
	{
		training.GET("/certificates", handler.ListCertificates)
		training.POST("/confirmations", handler.ConfirmRead)
		training.GET("/confirmations/documents/:id", handler.ConfirmationStatus)
	}
}
