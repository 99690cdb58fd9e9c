package translations

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

// Handler provides HTTP handlers for translation browsing
type Handler struct {
	service TranslationService
	logger  *zap.Logger
}

// NewHandler creates a new translations handler
func NewHandler(service TranslationService, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrGroupNotFound):
		apiutil.Error(c, http.StatusNotFound, "GROUP_NOT_FOUND", "Translation group not found")
	case errors.Is(err, ErrItemNotFound):
		apiutil.Error(c, http.StatusNotFound, "ITEM_NOT_FOUND", "No translation for that language in the group")
	case errors.Is(err, ErrDocumentNotFound):
		apiutil.Error(c, http.StatusNotFound, "DOCUMENT_NOT_FOUND", "Document not found")
	case errors.Is(err, ErrSlotTaken):
		apiutil.Error(c, http.StatusConflict, "SLOT_TAKEN", "The group already has a translation for that language")
	case errors.Is(err, ErrAlreadyGrouped):
		apiutil.Error(c, http.StatusConflict, "ALREADY_GROUPED", "Document already belongs to a translation group")
	case errors.Is(err, ErrUnknownLanguage):
		apiutil.Error(c, http.StatusUnprocessableEntity, "UNKNOWN_LANGUAGE", "Language is unknown or disabled")
	default:
		logger.WithTrace(h.logger, apiutil.TraceID(c)).Error("Translation operation failed", zap.Error(err))
		apiutil.Error(c, http.StatusInternalServerError, "OPERATION_FAILED", "Failed to process request")
	}
}

// ListLanguages returns the enabled language catalog
func (h *Handler) ListLanguages(c *gin.Context) {
	languages, err := h.service.ListLanguages(c.Request.Context())
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"languages": languages})
}

// CreateGroup opens a new translation group
func (h *Handler) CreateGroup(c *gin.Context) {
	var req models.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiutil.BindError(c, err)
		return
	}

	group, err := h.service.CreateGroup(c.Request.Context(), &req)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, group)
}

// ListGroups browses translation groups, optionally filtered to gaps in a language
func (h *Handler) ListGroups(c *gin.Context) {
	p := apiutil.ParsePagination(c)

	filter := GroupFilter{
		Language:    c.Query("language"),
		MissingOnly: c.Query("missing") == "true",
	}
	if filter.MissingOnly && filter.Language == "" {
		apiutil.Error(c, http.StatusBadRequest, "MISSING_LANGUAGE", "The missing filter requires a language")
		return
	}

	groups, total, err := h.service.ListGroups(c.Request.Context(), filter, p.Limit, p.Offset)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, p.Envelope(groups, total))
}

// GetGroup returns a group with its per-language entries
func (h *Handler) GetGroup(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apiutil.Error(c, http.StatusBadRequest, "INVALID_GROUP_ID", "Invalid group ID format")
		return
	}

	detail, err := h.service.GetGroup(c.Request.Context(), id)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

// LinkItem attaches a document as a group's translation for a language
func (h *Handler) LinkItem(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apiutil.Error(c, http.StatusBadRequest, "INVALID_GROUP_ID", "Invalid group ID format")
		return
	}

	var req models.LinkTranslationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiutil.BindError(c, err)
		return
	}

	item, err := h.service.LinkItem(c.Request.Context(), id, &req)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, item)
}

// UnlinkItem removes a group's entry for a language
func (h *Handler) UnlinkItem(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apiutil.Error(c, http.StatusBadRequest, "INVALID_GROUP_ID", "Invalid group ID format")
		return
	}

	if err := h.service.UnlinkItem(c.Request.Context(), id, c.Param("lang")); err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "translation unlinked"})
}
