package links

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mpalomaki/nick/pkg/models"
)

// Routes registers the cross-linking endpoints on the given router group
func Routes(router *gin.RouterGroup, service LinkService, logger *zap.Logger, auth gin.HandlerFunc, requireRole func(...string) gin.HandlerFunc) {
	handler := NewHandler(service, logger)

	links := router.Group("/links")
	links.Use(auth)
	{
		links.POST("", requireRole(models.RoleEditor, models.RoleQualityManager), handler.Create)
		links.GET("/documents/:id", handler.ForDocument)
		links.DELETE("/:id", handler.Delete)
	}
}
