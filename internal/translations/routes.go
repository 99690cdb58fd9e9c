package translations

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mpalomaki/nick/pkg/models"
)

// Routes registers the translation endpoints on the given router group
func Routes(router *gin.RouterGroup, service TranslationService, logger *zap.Logger, auth gin.HandlerFunc, requireRole func(...string) gin.HandlerFunc) {
	handler := NewHandler(service, logger)

	translations := router.Group("/translations")
	translations.Use(auth)
	{
		translations.GET("/languages", handler.ListLanguages)
		translations.GET("/groups", handler.ListGroups)
		translations.POST("/groups", requireRole(models.RoleEditor, models.RoleQualityManager), handler.CreateGroup)
		translations.GET("/groups/:id", handler.GetGroup)
		translations.POST("/groups/:id/items", requireRole(models.RoleEditor, models.RoleQualityManager), handler.LinkItem)
		translations.DELETE("/groups/:id/items/:lang", requireRole(models.RoleEditor, models.RoleQualityManager), handler.UnlinkItem)
	}
}
