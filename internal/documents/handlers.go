package documents

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

// Handler provides HTTP handlers for the QMS register
type Handler struct {
	service DocumentService
	logger  *zap.Logger
}

// NewHandler creates a new documents handler
func NewHandler(service DocumentService, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) actorID(c *gin.Context) uuid.UUID {
	return c.MustGet("userID").(uuid.UUID)
}

// writeServiceError maps service sentinels onto the endpoint status codes.
func (h *Handler) writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		apiutil.Error(c, http.StatusNotFound, "DOCUMENT_NOT_FOUND", "Document not found")
	case errors.Is(err, ErrDuplicateCode):
		apiutil.Error(c, http.StatusConflict, "DUPLICATE_CODE", "Document code already registered")
	case errors.Is(err, ErrDraftExists):
		apiutil.Error(c, http.StatusConflict, "DRAFT_EXISTS", "Document already has a draft")
	case errors.Is(err, ErrDraftInReview):
		apiutil.Error(c, http.StatusConflict, "DRAFT_IN_REVIEW", "Draft is in review and cannot be edited")
	case errors.Is(err, ErrNotInReview):
		apiutil.Error(c, http.StatusConflict, "NOT_IN_REVIEW", "Document is not in review")
	case errors.Is(err, ErrNotEffective):
		apiutil.Error(c, http.StatusConflict, "NOT_EFFECTIVE", "Document is not effective")
	case errors.Is(err, ErrNoDraft):
		apiutil.Error(c, http.StatusNotFound, "NO_DRAFT", "Document has no draft")
	case errors.Is(err, ErrInvalidCode):
		apiutil.Error(c, http.StatusUnprocessableEntity, "INVALID_CODE", "Document code is malformed")
	case errors.Is(err, ErrEvidenceIncomplete):
		apiutil.Error(c, http.StatusUnprocessableEntity, "EVIDENCE_INCOMPLETE", "Transition evidence is incomplete")
	case errors.Is(err, ErrSelfApproval):
		apiutil.Error(c, http.StatusUnprocessableEntity, "SELF_APPROVAL", "Draft author may not approve their own draft")
	default:
		logger.WithTrace(h.logger, apiutil.TraceID(c)).Error("Document operation failed", zap.Error(err))
		apiutil.Error(c, http.StatusInternalServerError, "OPERATION_FAILED", "Failed to process request")
	}
}

// List returns a page of the document register
func (h *Handler) List(c *gin.Context) {
	p := apiutil.ParsePagination(c)

	f := ListFilter{
		Status:   c.Query("status"),
		Category: c.Query("category"),
		Query:    c.Query("q"),
	}
	if owner := c.Query("owner"); owner != "" {
		ownerID, err := uuid.Parse(owner)
		if err != nil {
			apiutil.Error(c, http.StatusBadRequest, "INVALID_OWNER_ID", "Invalid owner ID format")
			return
		}
		f.OwnerID = &ownerID
	}

	docs, total, err := h.service.List(c.Request.Context(), f, p.Limit, p.Offset)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, p.Envelope(docs, total))
}

// Create registers a new controlled document
func (h *Handler) Create(c *gin.Context) {
	var req models.CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiutil.BindError(c, err)
		return
	}

	doc, err := h.service.Create(c.Request.Context(), h.actorID(c), &req)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, doc)
}

// Get returns a single register entry with its effective version, open
// draft and recent transitions
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apiutil.Error(c, http.StatusBadRequest, "INVALID_DOCUMENT_ID", "Invalid document ID format")
		return
	}

	detail, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

// Versions returns the version history of a document
func (h *Handler) Versions(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apiutil.Error(c, http.StatusBadRequest, "INVALID_DOCUMENT_ID", "Invalid document ID format")
		return
	}

	versions, err := h.service.Versions(c.Request.Context(), id)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"versions": versions})
}

// Transitions returns the audit log of a document
func (h *Handler) Transitions(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apiutil.Error(c, http.StatusBadRequest, "INVALID_DOCUMENT_ID", "Invalid document ID format")
		return
	}

	p := apiutil.ParsePagination(c)
	transitions, total, err := h.service.Transitions(c.Request.Context(), id, p.Limit, p.Offset)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, p.Envelope(transitions, total))
}

// CreateDraft opens a revision draft
func (h *Handler) CreateDraft(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apiutil.Error(c, http.StatusBadRequest, "INVALID_DOCUMENT_ID", "Invalid document ID format")
		return
	}

	draft, err := h.service.CreateDraft(c.Request.Context(), id, h.actorID(c))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, draft)
}

// UpdateDraft edits the open draft
func (h *Handler) UpdateDraft(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apiutil.Error(c, http.StatusBadRequest, "INVALID_DOCUMENT_ID", "Invalid document ID format")
		return
	}

	var req models.UpdateDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiutil.BindError(c, err)
		return
	}

	draft, err := h.service.UpdateDraft(c.Request.Context(), id, h.actorID(c), &req)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, draft)
}

// DeleteDraft discards the open draft
func (h *Handler) DeleteDraft(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apiutil.Error(c, http.StatusBadRequest, "INVALID_DOCUMENT_ID", "Invalid document ID format")
		return
	}

	if err := h.service.DeleteDraft(c.Request.Context(), id, h.actorID(c)); err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "draft discarded"})
}

// Submit moves the draft into review with its evidence
func (h *Handler) Submit(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apiutil.Error(c, http.StatusBadRequest, "INVALID_DOCUMENT_ID", "Invalid document ID format")
		return
	}

	var req models.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiutil.BindError(c, err)
		return
	}

	transition, err := h.service.Submit(c.Request.Context(), id, h.actorID(c), &req)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, transition)
}

// Approve makes the in-review draft the effective version
func (h *Handler) Approve(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apiutil.Error(c, http.StatusBadRequest, "INVALID_DOCUMENT_ID", "Invalid document ID format")
		return
	}

	var req models.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiutil.BindError(c, err)
		return
	}

	version, err := h.service.Approve(c.Request.Context(), id, h.actorID(c), req.ReviewNote)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, version)
}

// Reject sends the in-review draft back to editing
func (h *Handler) Reject(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apiutil.Error(c, http.StatusBadRequest, "INVALID_DOCUMENT_ID", "Invalid document ID format")
		return
	}

	var req models.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiutil.BindError(c, err)
		return
	}

	if err := h.service.Reject(c.Request.Context(), id, h.actorID(c), req.ReviewNote); err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "draft rejected"})
}

// Retire removes an effective document from circulation
func (h *Handler) Retire(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apiutil.Error(c, http.StatusBadRequest, "INVALID_DOCUMENT_ID", "Invalid document ID format")
		return
	}

	if err := h.service.Retire(c.Request.Context(), id, h.actorID(c)); err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "document retired"})
}
