package training

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

// Handler provides HTTP handlers for training operations
type Handler struct {
	service TrainingService
	logger  *zap.Logger
}

// NewHandler creates a new training handler
func NewHandler(service TrainingService, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) actorID(c *gin.Context) uuid.UUID {
	return c.MustGet("userID").(uuid.UUID)
}

func hasAnyRole(c *gin.Context, roles ...string) bool {
	held, _ := c.MustGet("roles").([]string)
	for _, want := range roles {
		for _, r := range held {
			if r == want {
				return true
			}
		}
	}
	return false
}

func (h *Handler) writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		apiutil.Error(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Training session not found")
	case errors.Is(err, ErrDocumentNotFound):
		apiutil.Error(c, http.StatusNotFound, "DOCUMENT_NOT_FOUND", "Document not found")
	case errors.Is(err, ErrCertificateNotFound):
		apiutil.Error(c, http.StatusNotFound, "CERTIFICATE_NOT_FOUND", "Certificate not found")
	case errors.Is(err, ErrAlreadyEnrolled):
		apiutil.Error(c, http.StatusConflict, "ALREADY_ENROLLED", "User is already enrolled")
	case errors.Is(err, ErrAlreadyConfirmed):
		apiutil.Error(c, http.StatusConflict, "ALREADY_CONFIRMED", "Version already confirmed")
	case errors.Is(err, ErrSessionCompleted):
		apiutil.Error(c, http.StatusConflict, "SESSION_COMPLETED", "Session is no longer scheduled")
	case errors.Is(err, ErrVersionNotEffective):
		apiutil.Error(c, http.StatusUnprocessableEntity, "VERSION_NOT_EFFECTIVE", "Document version is not effective")
	case errors.Is(err, ErrSessionNotScheduled):
		apiutil.Error(c, http.StatusUnprocessableEntity, "SESSION_NOT_SCHEDULED", "Session is not scheduled")
	case errors.Is(err, ErrCapacityReached):
		apiutil.Error(c, http.StatusUnprocessableEntity, "CAPACITY_REACHED", "Session capacity reached")
	case errors.Is(err, ErrNotEnrolled):
		apiutil.Error(c, http.StatusUnprocessableEntity, "NOT_ENROLLED", "User is not enrolled in the session")
	default:
		logger.WithTrace(h.logger, apiutil.TraceID(c)).Error("Training operation failed", zap.Error(err))
		apiutil.Error(c, http.StatusInternalServerError, "OPERATION_FAILED", "Failed to process request")
	}
}

// ListSessions returns a page of training sessions
func (h *Handler) ListSessions(c *gin.Context) {
	p := apiutil.ParsePagination(c)

	f := SessionFilter{Status: c.Query("status")}
	if version := c.Query("document_version"); version != "" {
		versionID, err := uuid.Parse(version)
		if err != nil {
			apiutil.Error(c, http.StatusBadRequest, "INVALID_VERSION_ID", "Invalid document version ID format")
			return
		}
		f.DocumentVersionID = &versionID
	}

	sessions, total, err := h.service.ListSessions(c.Request.Context(), f, p.Limit, p.Offset)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, p.Envelope(sessions, total))
}

// CreateSession schedules a training session
func (h *Handler) CreateSession(c *gin.Context) {
	var req models.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiutil.BindError(c, err)
		return
	}

	session, err := h.service.CreateSession(c.Request.Context(), h.actorID(c), &req)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, session)
}

// GetSession returns a session with its enrollments
func (h *Handler) GetSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apiutil.Error(c, http.StatusBadRequest, "INVALID_SESSION_ID", "Invalid session ID format")
		return
	}

	session, enrollments, err := h.service.GetSession(c.Request.Context(), id)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": session, "enrollments": enrollments})
}

// CancelSession cancels a scheduled session
func (h *Handler) CancelSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apiutil.Error(c, http.StatusBadRequest, "INVALID_SESSION_ID", "Invalid session ID format")
		return
	}

	if err := h.service.CancelSession(c.Request.Context(), id, h.actorID(c)); err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "session cancelled"})
}

// Enroll signs the caller up for a session
func (h *Handler) Enroll(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apiutil.Error(c, http.StatusBadRequest, "INVALID_SESSION_ID", "Invalid session ID format")
		return
	}

	enrollment, err := h.service.Enroll(c.Request.Context(), id, h.actorID(c))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, enrollment)
}

// MarkAttendance completes a session and issues certificates
func (h *Handler) MarkAttendance(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apiutil.Error(c, http.StatusBadRequest, "INVALID_SESSION_ID", "Invalid session ID format")
		return
	}

	var req models.AttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiutil.BindError(c, err)
		return
	}

	certificates, err := h.service.MarkAttendance(c.Request.Context(), id, h.actorID(c), req.AttendedUserIDs)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"certificates": certificates})
}

// ListCertificates returns the caller's certificates. Admins may pass
// ?user= to inspect another user's record.
func (h *Handler) ListCertificates(c *gin.Context) {
	p := apiutil.ParsePagination(c)

	userID := h.actorID(c)
	if other := c.Query("user"); other != "" {
		if !hasAnyRole(c, models.RoleAdmin, models.RoleQualityManager) {
			apiutil.Error(c, http.StatusForbidden, "FORBIDDEN", "Not allowed to view other users' certificates")
			return
		}
		otherID, err := uuid.Parse(other)
		if err != nil {
			apiutil.Error(c, http.StatusBadRequest, "INVALID_USER_ID", "Invalid user ID format")
			return
		}
		userID = otherID
	}

	certs, total, err := h.service.ListCertificates(c.Request.Context(), userID, p.Limit, p.Offset)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, p.Envelope(certs, total))
}

// VerifyCertificate is the public serial lookup
func (h *Handler) VerifyCertificate(c *gin.Context) {
	cert, valid, err := h.service.VerifyCertificate(c.Request.Context(), c.Param("serial"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	status := "valid"
	if !valid {
		status = "expired"
	}
	c.JSON(http.StatusOK, gin.H{"certificate": cert, "status": status})
}

// ConfirmRead records a read-and-understood acknowledgement
func (h *Handler) ConfirmRead(c *gin.Context) {
	var req models.ConfirmReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiutil.BindError(c, err)
		return
	}

	confirmation, err := h.service.ConfirmRead(c.Request.Context(), h.actorID(c), req.DocumentVersionID)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, confirmation)
}

// ConfirmationStatus reports acknowledgement coverage for a document
func (h *Handler) ConfirmationStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apiutil.Error(c, http.StatusBadRequest, "INVALID_DOCUMENT_ID", "Invalid document ID format")
		return
	}

	status, err := h.service.ConfirmationStatus(c.Request.Context(), id)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}
