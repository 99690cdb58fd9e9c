package models

import (
	"time"

	"github.com/google/uuid"
)

// Training session statuses
const (
	SessionStatusScheduled = "scheduled"
	SessionStatusCompleted = "completed"
	SessionStatusCancelled = "cancelled"
)

// Enrollment statuses
const (
	EnrollmentStatusEnrolled = "enrolled"
	EnrollmentStatusAttended = "attended"
	EnrollmentStatusNoShow   = "no_show"
)

// TrainingSession represents a scheduled training on an effective document version
type TrainingSession struct {
	ID                uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	DocumentVersionID uuid.UUID `json:"document_version_id" gorm:"type:uuid;index"`
	Title             string    `json:"title" validate:"required,min=1,max=255"`
	TrainerID         uuid.UUID `json:"trainer_id" gorm:"type:uuid;index"`
	ScheduledAt       time.Time `json:"scheduled_at"`
	Capacity          int       `json:"capacity" validate:"min=0"`
	ValidityMonths    int       `json:"validity_months" validate:"min=0,max=120"`
	Status            string    `json:"status" gorm:"index" validate:"required,oneof=scheduled completed cancelled"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Enrollment represents a user's signup for a training session
type Enrollment struct {
	ID         uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	SessionID  uuid.UUID `json:"session_id" gorm:"type:uuid;index:idx_session_user,unique"`
	UserID     uuid.UUID `json:"user_id" gorm:"type:uuid;index:idx_session_user,unique"`
	Status     string    `json:"status" validate:"required,oneof=enrolled attended no_show"`
	EnrolledAt time.Time `json:"enrolled_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Certificate proves completed training against a specific document version
type Certificate struct {
	ID                uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	UserID            uuid.UUID  `json:"user_id" gorm:"type:uuid;index"`
	SessionID         uuid.UUID  `json:"session_id" gorm:"type:uuid;index"`
	DocumentVersionID uuid.UUID  `json:"document_version_id" gorm:"type:uuid;index"`
	SerialCode        string     `json:"serial_code" gorm:"uniqueIndex"`
	IssuedAt          time.Time  `json:"issued_at"`
	ExpiresAt         *time.Time `json:"expires_at"`
}

// ReadConfirmation records a read-and-understood acknowledgement of an
// effective document version.
type ReadConfirmation struct {
	ID                uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	UserID            uuid.UUID `json:"user_id" gorm:"type:uuid;index:idx_user_version,unique"`
	DocumentVersionID uuid.UUID `json:"document_version_id" gorm:"type:uuid;index:idx_user_version,unique"`
	ConfirmedAt       time.Time `json:"confirmed_at"`
}

// CreateSessionRequest is the payload for scheduling a training session
type CreateSessionRequest struct {
	DocumentVersionID uuid.UUID `json:"document_version_id" binding:"required"`
	Title             string    `json:"title" binding:"required,min=1,max=255"`
	ScheduledAt       time.Time `json:"scheduled_at" binding:"required"`
	Capacity          int       `json:"capacity" binding:"omitempty,min=0"`
	ValidityMonths    int       `json:"validity_months" binding:"omitempty,min=0,max=120"`
}

// AttendanceRequest marks which enrolled users attended a session
type AttendanceRequest struct {
	AttendedUserIDs []uuid.UUID `json:"attended_user_ids" binding:"required"`
}

// ConfirmReadRequest acknowledges an effective document version
type ConfirmReadRequest struct {
	DocumentVersionID uuid.UUID `json:"document_version_id" binding:"required"`
}
