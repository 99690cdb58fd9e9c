package training

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mpalomaki/nick/internal/database"
	"github.com/mpalomaki/nick/pkg/metrics"
	"github.com/mpalomaki/nick/pkg/models"
)

// Service-level sentinel errors
var (
	ErrSessionNotFound     = errors.New("training session not found")
	ErrDocumentNotFound    = errors.New("document not found")
	ErrCertificateNotFound = errors.New("certificate not found")
	ErrVersionNotEffective = errors.New("document version is not effective")
	ErrSessionNotScheduled = errors.New("session is not scheduled")
	ErrSessionCompleted    = errors.New("session is already completed")
	ErrCapacityReached     = errors.New("session capacity reached")
	ErrAlreadyEnrolled     = errors.New("user is already enrolled")
	ErrNotEnrolled         = errors.New("user is not enrolled in the session")
	ErrAlreadyConfirmed    = errors.New("version already confirmed")
)

// SessionFilter narrows the session listing.
type SessionFilter struct {
	Status            string
	DocumentVersionID *uuid.UUID
}

// ConfirmationStatus reports who has and has not acknowledged a document's
// effective version.
type ConfirmationStatus struct {
	DocumentVersionID uuid.UUID   `json:"document_version_id"`
	Confirmed         []uuid.UUID `json:"confirmed"`
	Pending           []uuid.UUID `json:"pending"`
}

// TrainingService defines training and certification operations
type TrainingService interface {
	ListSessions(ctx context.Context, f SessionFilter, limit, offset int) ([]*models.TrainingSession, int64, error)
	CreateSession(ctx context.Context, trainerID uuid.UUID, req *models.CreateSessionRequest) (*models.TrainingSession, error)
	GetSession(ctx context.Context, id uuid.UUID) (*models.TrainingSession, []*models.Enrollment, error)
	CancelSession(ctx context.Context, id, actorID uuid.UUID) error
	Enroll(ctx context.Context, sessionID, userID uuid.UUID) (*models.Enrollment, error)
	MarkAttendance(ctx context.Context, sessionID, trainerID uuid.UUID, attended []uuid.UUID) ([]*models.Certificate, error)
	ListCertificates(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Certificate, int64, error)
	VerifyCertificate(ctx context.Context, serial string) (*models.Certificate, bool, error)
	ConfirmRead(ctx context.Context, userID, versionID uuid.UUID) (*models.ReadConfirmation, error)
	ConfirmationStatus(ctx context.Context, documentID uuid.UUID) (*ConfirmationStatus, error)
}

// Service implements TrainingService
type Service struct {
	logger *zap.Logger
	db     *gorm.DB
}

// NewService creates a new training service
func NewService(logger *zap.Logger, db *gorm.DB) (*Service, error) {
	return &Service{logger: logger, db: db}, nil
}

// effectiveVersion loads a version and checks it is the live snapshot.
func (s *Service) effectiveVersion(tx *gorm.DB, versionID uuid.UUID) (*models.DocumentVersion, error) {
	var version models.DocumentVersion
	if err := tx.First(&version, "id = ?", versionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVersionNotEffective
		}
		return nil, fmt.Errorf("failed to fetch document version: %w", err)
	}
	if version.SupersededAt != nil {
		return nil, ErrVersionNotEffective
	}
	return &version, nil
}

// ListSessions returns a page of sessions, optionally filtered
func (s *Service) ListSessions(ctx context.Context, f SessionFilter, limit, offset int) ([]*models.TrainingSession, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.TrainingSession{})
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.DocumentVersionID != nil {
		query = query.Where("document_version_id = ?", *f.DocumentVersionID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count sessions: %w", err)
	}

	var sessions []*models.TrainingSession
	if err := query.Order("scheduled_at DESC").Limit(limit).Offset(offset).Find(&sessions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, total, nil
}

// CreateSession schedules a training on an effective document version
func (s *Service) CreateSession(ctx context.Context, trainerID uuid.UUID, req *models.CreateSessionRequest) (*models.TrainingSession, error) {
	if _, err := s.effectiveVersion(s.db.WithContext(ctx), req.DocumentVersionID); err != nil {
		return nil, err
	}

	session := &models.TrainingSession{
		ID:                uuid.New(),
		DocumentVersionID: req.DocumentVersionID,
		Title:             req.Title,
		TrainerID:         trainerID,
		ScheduledAt:       req.ScheduledAt,
		Capacity:          req.Capacity,
		ValidityMonths:    req.ValidityMonths,
		Status:            models.SessionStatusScheduled,
	}
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Info("Training session scheduled",
		zap.String("session_id", session.ID.String()),
		zap.String("document_version_id", req.DocumentVersionID.String()))
	return session, nil
}

// GetSession returns a session with its enrollments
func (s *Service) GetSession(ctx context.Context, id uuid.UUID) (*models.TrainingSession, []*models.Enrollment, error) {
	var session models.TrainingSession
	if err := s.db.WithContext(ctx).First(&session, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrSessionNotFound
		}
		return nil, nil, fmt.Errorf("failed to fetch session: %w", err)
	}

	var enrollments []*models.Enrollment
	if err := s.db.WithContext(ctx).Where("session_id = ?", id).Order("enrolled_at ASC").Find(&enrollments).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	return &session, enrollments, nil
}

// CancelSession cancels a scheduled session
func (s *Service) CancelSession(ctx context.Context, id, actorID uuid.UUID) error {
	res := s.db.WithContext(ctx).Model(&models.TrainingSession{}).
		Where("id = ? AND status = ?", id, models.SessionStatusScheduled).
		Update("status", models.SessionStatusCancelled)
	if res.Error != nil {
		return fmt.Errorf("failed to cancel session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var session models.TrainingSession
		if err := s.db.WithContext(ctx).First(&session, "id = ?", id).Error; err != nil {
			return ErrSessionNotFound
		}
		return ErrSessionCompleted
	}

	s.logger.Info("Training session cancelled", zap.String("session_id", id.String()), zap.String("actor_id", actorID.String()))
	return nil
}

// Enroll signs a user up for a scheduled session
func (s *Service) Enroll(ctx context.Context, sessionID, userID uuid.UUID) (*models.Enrollment, error) {
	var enrollment *models.Enrollment

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session models.TrainingSession
		if err := tx.First(&session, "id = ?", sessionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSessionNotFound
			}
			return fmt.Errorf("failed to fetch session: %w", err)
		}
		if session.Status != models.SessionStatusScheduled {
			return ErrSessionNotScheduled
		}

		if session.Capacity > 0 {
			var count int64
			if err := tx.Model(&models.Enrollment{}).Where("session_id = ?", sessionID).Count(&count).Error; err != nil {
				return fmt.Errorf("failed to count enrollments: %w", err)
			}
			if count >= int64(session.Capacity) {
				return ErrCapacityReached
			}
		}

		enrollment = &models.Enrollment{
			ID:         uuid.New(),
			SessionID:  sessionID,
			UserID:     userID,
			Status:     models.EnrollmentStatusEnrolled,
			EnrolledAt: time.Now().UTC(),
		}
		if err := tx.Create(enrollment).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return ErrAlreadyEnrolled
			}
			return fmt.Errorf("failed to create enrollment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return enrollment, nil
}

// MarkAttendance records who attended, completes the session and issues a
// certificate per attendee, all in one transaction.
func (s *Service) MarkAttendance(ctx context.Context, sessionID, trainerID uuid.UUID, attended []uuid.UUID) ([]*models.Certificate, error) {
	attendedSet := make(map[uuid.UUID]bool, len(attended))
	for _, id := range attended {
		attendedSet[id] = true
	}

	var certificates []*models.Certificate

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session models.TrainingSession
		if err := tx.First(&session, "id = ?", sessionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSessionNotFound
			}
			return fmt.Errorf("failed to fetch session: %w", err)
		}
		if session.Status != models.SessionStatusScheduled {
			return ErrSessionNotScheduled
		}

		var enrollments []*models.Enrollment
		if err := tx.Where("session_id = ?", sessionID).Find(&enrollments).Error; err != nil {
			return fmt.Errorf("failed to list enrollments: %w", err)
		}

		enrolled := make(map[uuid.UUID]bool, len(enrollments))
		for _, e := range enrollments {
			enrolled[e.UserID] = true
		}
		for userID := range attendedSet {
			if !enrolled[userID] {
				return fmt.Errorf("%w: %s", ErrNotEnrolled, userID)
			}
		}

		now := time.Now().UTC()
		for _, e := range enrollments {
			status := models.EnrollmentStatusNoShow
			if attendedSet[e.UserID] {
				status = models.EnrollmentStatusAttended
			}
			if err := tx.Model(e).Update("status", status).Error; err != nil {
				return fmt.Errorf("failed to update enrollment: %w", err)
			}

			if status != models.EnrollmentStatusAttended {
				continue
			}

			cert := &models.Certificate{
				ID:                uuid.New(),
				UserID:            e.UserID,
				SessionID:         sessionID,
				DocumentVersionID: session.DocumentVersionID,
				SerialCode:        newSerialCode(),
				IssuedAt:          now,
			}
			if session.ValidityMonths > 0 {
				expires := now.AddDate(0, session.ValidityMonths, 0)
				cert.ExpiresAt = &expires
			}
			if err := tx.Create(cert).Error; err != nil {
				return fmt.Errorf("failed to issue certificate: %w", err)
			}
			certificates = append(certificates, cert)
		}

		return tx.Model(&session).Update("status", models.SessionStatusCompleted).Error
	})
	if err != nil {
		return nil, err
	}

	metrics.CertificatesIssued.Add(float64(len(certificates)))
	s.logger.Info("Session completed",
		zap.String("session_id", sessionID.String()),
		zap.Int("certificates", len(certificates)))
	return certificates, nil
}

// ListCertificates returns a user's certificates, newest first
func (s *Service) ListCertificates(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Certificate, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Certificate{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count certificates: %w", err)
	}

	var certs []*models.Certificate
	if err := query.Order("issued_at DESC").Limit(limit).Offset(offset).Find(&certs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list certificates: %w", err)
	}
	return certs, total, nil
}

// VerifyCertificate looks up a certificate by serial and reports validity
func (s *Service) VerifyCertificate(ctx context.Context, serial string) (*models.Certificate, bool, error) {
	var cert models.Certificate
	if err := s.db.WithContext(ctx).First(&cert, "serial_code = ?", strings.ToUpper(strings.TrimSpace(serial))).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, ErrCertificateNotFound
		}
		return nil, false, fmt.Errorf("failed to fetch certificate: %w", err)
	}

	valid := cert.ExpiresAt == nil || cert.ExpiresAt.After(time.Now())
	return &cert, valid, nil
}

// ConfirmRead records a read-and-understood acknowledgement
func (s *Service) ConfirmRead(ctx context.Context, userID, versionID uuid.UUID) (*models.ReadConfirmation, error) {
	if _, err := s.effectiveVersion(s.db.WithContext(ctx), versionID); err != nil {
		return nil, err
	}

	confirmation := &models.ReadConfirmation{
		ID:                uuid.New(),
		UserID:            userID,
		DocumentVersionID: versionID,
		ConfirmedAt:       time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(confirmation).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrAlreadyConfirmed
		}
		return nil, fmt.Errorf("failed to record confirmation: %w", err)
	}
	return confirmation, nil
}

// ConfirmationStatus reports confirmation coverage of a document's effective
// version across its distribution list.
func (s *Service) ConfirmationStatus(ctx context.Context, documentID uuid.UUID) (*ConfirmationStatus, error) {
	var doc models.Document
	if err := s.db.WithContext(ctx).First(&doc, "id = ?", documentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to fetch document: %w", err)
	}
	if doc.EffectiveVersionID == nil {
		return nil, ErrVersionNotEffective
	}

	// Distribution list comes from the approval evidence.
	var approval models.Transition
	if err := s.db.WithContext(ctx).
		Where("document_id = ? AND to_status = ?", documentID, models.DocumentStatusEffective).
		Order("created_at DESC").First(&approval).Error; err != nil {
		return nil, fmt.Errorf("failed to load approval evidence: %w", err)
	}

	status := &ConfirmationStatus{DocumentVersionID: *doc.EffectiveVersionID}
	if approval.Evidence == nil {
		return status, nil
	}

	var confirmations []models.ReadConfirmation
	if err := s.db.WithContext(ctx).
		Where("document_version_id = ?", *doc.EffectiveVersionID).
		Find(&confirmations).Error; err != nil {
		return nil, fmt.Errorf("failed to list confirmations: %w", err)
	}
	confirmed := make(map[uuid.UUID]bool, len(confirmations))
	for _, conf := range confirmations {
		confirmed[conf.UserID] = true
	}

	for _, userID := range approval.Evidence.DistributionList {
		if confirmed[userID] {
			status.Confirmed = append(status.Confirmed, userID)
		} else {
			status.Pending = append(status.Pending, userID)
		}
	}
	return status, nil
}

// newSerialCode derives a short human-checkable certificate serial.
func newSerialCode() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return fmt.Sprintf("NICK-%s-%s", raw[:4], raw[4:12])
}
