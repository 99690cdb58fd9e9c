package documents

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mpalomaki/nick/pkg/models"
)

// Routes configures all register and lifecycle routes
func Routes(router *gin.RouterGroup, service DocumentService, logger *zap.Logger, auth gin.HandlerFunc, requireRole func(...string) gin.HandlerFunc) {
	handler := NewHandler(service, logger)

	group := router.Group("/documents", auth)
	{
		group.GET("", handler.List)
		group.POST("", requireRole(models.RoleEditor, models.RoleQualityManager), handler.Create)
		group.GET("/:id", handler.Get)
		group.GET("/:id/versions", handler.Versions)
		group.GET("/:id/transitions", handler.Transitions)

		draft := group.Group("/:id/draft", requireRole(models.RoleEditor, models.RoleQualityManager))
		{
			draft.POST("", handler.CreateDraft)
			draft.PUT("", handler.UpdateDraft)
			draft.DELETE("", handler.DeleteDraft)
		}

		group.POST("/:id/submit", requireRole(models.RoleEditor, models.RoleQualityManager), handler.Submit)
		group.POST("/:id/approve", requireRole(models.RoleQualityManager), handler.Approve)
		group.POST("/:id/reject", requireRole(models.RoleReviewer, models.RoleQualityManager), handler.Reject)
		group.POST("/:id/retire", requireRole(models.RoleQualityManager), handler.Retire)
	}
}
