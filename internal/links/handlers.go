package links

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

// Handler provides HTTP handlers for document cross-linking
type Handler struct {
	service LinkService
	logger  *zap.Logger
}

// NewHandler creates a new links handler
func NewHandler(service LinkService, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrLinkNotFound):
		apiutil.Error(c, http.StatusNotFound, "LINK_NOT_FOUND", "Link not found")
	case errors.Is(err, ErrDocumentNotFound):
		apiutil.Error(c, http.StatusNotFound, "DOCUMENT_NOT_FOUND", "Document not found")
	case errors.Is(err, ErrNotAuthor):
		apiutil.Error(c, http.StatusForbidden, "FORBIDDEN", "Only the link author or a quality manager may delete")
	case errors.Is(err, ErrDuplicateLink):
		apiutil.Error(c, http.StatusConflict, "DUPLICATE_LINK", "An identical link already exists")
	case errors.Is(err, ErrSelfLink):
		apiutil.Error(c, http.StatusUnprocessableEntity, "SELF_LINK", "A document cannot link to itself")
	case errors.Is(err, ErrUnknownKind):
		apiutil.Error(c, http.StatusUnprocessableEntity, "UNKNOWN_KIND", "Link kind must be references, supersedes or implements")
	default:
		logger.WithTrace(h.logger, apiutil.TraceID(c)).Error("Link operation failed", zap.Error(err))
		apiutil.Error(c, http.StatusInternalServerError, "OPERATION_FAILED", "Failed to process request")
	}
}

// Create records a typed cross-reference between two documents
func (h *Handler) Create(c *gin.Context) {
	var req models.CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiutil.BindError(c, err)
		return
	}

	actorID := c.MustGet("userID").(uuid.UUID)
	link, err := h.service.Create(c.Request.Context(), actorID, &req)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, link)
}

// ForDocument returns outgoing and incoming links of a document
func (h *Handler) ForDocument(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apiutil.Error(c, http.StatusBadRequest, "INVALID_DOCUMENT_ID", "Invalid document ID format")
		return
	}

	result, err := h.service.ForDocument(c.Request.Context(), id)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Delete removes a link
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apiutil.Error(c, http.StatusBadRequest, "INVALID_LINK_ID", "Invalid link ID format")
		return
	}

	actorID := c.MustGet("userID").(uuid.UUID)
	roles, _ := c.MustGet("roles").([]string)
	isQM := false
	for _, r := range roles {
		if r == models.RoleQualityManager {
			isQM = true
			break
		}
	}

	if err := h.service.Delete(c.Request.Context(), id, actorID, isQM); err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "link removed"})
}
