package identities

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mpalomaki/nick/pkg/apiutil"
	"github.com/mpalomaki/nick/pkg/logger"
	"github.com/mpalomaki/nick/pkg/models"
)

// Handler provides HTTP handlers for identity operations
type Handler struct {
	service IdentityService
	logger  *zap.Logger
}

// NewHandler creates a new identities handler
func NewHandler(service IdentityService, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Login authenticates a user and returns a bearer token
func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiutil.BindError(c, err)
		return
	}

	resp, err := h.service.Login(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInactiveUser):
			apiutil.Error(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
		default:
			logger.WithTrace(h.logger, apiutil.TraceID(c)).Error("Login failed", zap.Error(err))
			apiutil.Error(c, http.StatusInternalServerError, "LOGIN_FAILED", "Failed to process login")
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Me returns the authenticated user's profile
func (h *Handler) Me(c *gin.Context) {
	userID := c.MustGet("userID").(uuid.UUID)

	user, err := h.service.GetUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			apiutil.Error(c, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
			return
		}
		h.logger.Error("Failed to fetch current user", zap.Error(err))
		apiutil.Error(c, http.StatusInternalServerError, "RETRIEVAL_FAILED", "Failed to fetch user")
		return
	}

	c.JSON(http.StatusOK, user)
}

// ListUsers returns a page of users (admin only)
func (h *Handler) ListUsers(c *gin.Context) {
	p := apiutil.ParsePagination(c)

	users, total, err := h.service.ListUsers(c.Request.Context(), p.Limit, p.Offset)
	if err != nil {
		h.logger.Error("Failed to list users", zap.Error(err))
		apiutil.Error(c, http.StatusInternalServerError, "RETRIEVAL_FAILED", "Failed to list users")
		return
	}

	c.JSON(http.StatusOK, p.Envelope(users, total))
}

// CreateUser provisions a new user (admin only)
func (h *Handler) CreateUser(c *gin.Context) {
	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiutil.BindError(c, err)
		return
	}

	user, err := h.service.CreateUser(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			apiutil.Error(c, http.StatusConflict, "EMAIL_TAKEN", "Email already registered")
			return
		}
		h.logger.Error("Failed to create user", zap.Error(err))
		apiutil.Error(c, http.StatusInternalServerError, "CREATE_FAILED", "Failed to create user")
		return
	}

	c.JSON(http.StatusCreated, user)
}

// GrantRole adds a role to a user (admin only)
func (h *Handler) GrantRole(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apiutil.Error(c, http.StatusBadRequest, "INVALID_USER_ID", "Invalid user ID format")
		return
	}

	var req models.GrantRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiutil.BindError(c, err)
		return
	}

	if err := h.service.GrantRole(c.Request.Context(), userID, req.Role); err != nil {
		if errors.Is(err, ErrNotFound) {
			apiutil.Error(c, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
			return
		}
		h.logger.Error("Failed to grant role", zap.Error(err))
		apiutil.Error(c, http.StatusInternalServerError, "GRANT_FAILED", "Failed to grant role")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "role granted", "role": req.Role})
}
