package server

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/mpalomaki/nick/internal/config"
	"github.com/mpalomaki/nick/internal/documents"
	"github.com/mpalomaki/nick/internal/identities"
	"github.com/mpalomaki/nick/internal/links"
	"github.com/mpalomaki/nick/internal/training"
	"github.com/mpalomaki/nick/internal/translations"
	"github.com/mpalomaki/nick/pkg/apiutil"
)

// Server represents the HTTP server
type Server struct {
	logger          *zap.Logger
	cfg             *config.Config
	identitiesSvc   identities.IdentityService
	documentsSvc    documents.DocumentService
	trainingSvc     training.TrainingService
	translationsSvc translations.TranslationService
	linksSvc        links.LinkService
}

// NewServer creates a new HTTP server
func NewServer(
	logger *zap.Logger,
	cfg *config.Config,
	identitiesSvc identities.IdentityService,
	documentsSvc documents.DocumentService,
	trainingSvc training.TrainingService,
	translationsSvc translations.TranslationService,
	linksSvc links.LinkService,
) *Server {
	return &Server{
		logger:          logger,
		cfg:             cfg,
		identitiesSvc:   identitiesSvc,
		documentsSvc:    documentsSvc,
		trainingSvc:     trainingSvc,
		translationsSvc: translationsSvc,
		linksSvc:        linksSvc,
	}
}

// Router creates a new HTTP router
func (s *Server) Router() *gin.Engine {
	router := gin.New()

	router.Use(ginzap.Ginzap(s.logger, "2006-01-02T15:04:05Z07:00", true))
	router.Use(ginzap.RecoveryWithZap(s.logger, true))
	router.Use(otelgin.Middleware("nick"))
	router.Use(apiutil.MetricsMiddleware())

	corsCfg := cors.DefaultConfig()
	if len(s.cfg.Server.AllowedOrigins) == 1 && s.cfg.Server.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.cfg.Server.AllowedOrigins
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization", "X-Trace-ID")
	router.Use(cors.New(corsCfg))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			auth := s.authMiddleware()
			identities.Routes(v1, s.identitiesSvc, s.logger, auth, s.requireRole)
			documents.Routes(v1, s.documentsSvc, s.logger, auth, s.requireRole)
			training.Routes(v1, s.trainingSvc, s.logger, auth, s.requireRole)
			translations.Routes(v1, s.translationsSvc, s.logger, auth, s.requireRole)
			links.Routes(v1, s.linksSvc, s.logger, auth, s.requireRole)
		}
	}

	return router
}

// authMiddleware creates a middleware for authentication
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			apiutil.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Missing authorization header")
			c.Abort()
			return
		}
		token = strings.TrimPrefix(token, "Bearer ")

		claims, err := s.identitiesSvc.ValidateToken(token)
		if err != nil {
			apiutil.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token")
			c.Abort()
			return
		}

		c.Set("userID", claims.UserID)
		c.Set("userEmail", claims.Email)
		c.Set("roles", claims.Roles)
		c.Next()
	}
}

// requireRole creates a middleware that admits only callers holding one of
// the given roles. It must run after authMiddleware.
func (s *Server) requireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		held, _ := c.MustGet("roles").([]string)
		for _, want := range roles {
			for _, r := range held {
				if r == want {
					c.Next()
					return
				}
			}
		}
		apiutil.Error(c, http.StatusForbidden, "FORBIDDEN", "Insufficient role for this operation")
		c.Abort()
	}
}
