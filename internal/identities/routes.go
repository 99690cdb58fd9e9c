package identities

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mpalomaki/nick/pkg/models"
)

// Routes configures all identity-related routes
func Routes(router *gin.RouterGroup, service IdentityService, logger *zap.Logger, auth gin.HandlerFunc, requireRole func(...string) gin.HandlerFunc) {
	handler := NewHandler(service, logger)

	group := router.Group("/identities")
	{
		group.POST("/login", handler.Login)
		group.GET("/me", auth, handler.Me)

		admin := group.Group("/users", auth, requireRole(models.RoleAdmin))
		{
			admin.GET("", handler.ListUsers)
			admin.POST("", handler.CreateUser)
			admin.POST("/:id/roles", handler.GrantRole)
		}
	}
}
