package models

import (
	"time"

	"github.com/google/uuid"
)

// Document lifecycle statuses
const (
	DocumentStatusDraft     = "draft"
	DocumentStatusInReview  = "in_review"
	DocumentStatusEffective = "effective"
	DocumentStatusRetired   = "retired"
)

// Draft statuses
const (
	DraftStatusEditing  = "editing"
	DraftStatusInReview = "in_review"
)

// User roles
const (
	RoleReader         = "reader"
	RoleEditor         = "editor"
	RoleReviewer       = "reviewer"
	RoleTrainer        = "trainer"
	RoleQualityManager = "qualitymanager"
	RoleAdmin          = "admin"
)

// User represents a platform user
type User struct {
	ID           uuid.UUID `json:"id" gorm:"primaryKey;type:uuid" validate:"required,uuid"`
	Email        string    `json:"email" gorm:"uniqueIndex" validate:"required,email,max=254"`
	Name         string    `json:"name" validate:"required,min=1,max=100"`
	PasswordHash string    `json:"-" gorm:"column:password_hash"`
	Roles        []string  `json:"roles" gorm:"type:text;serializer:json"`
	Active       bool      `json:"active" gorm:"default:true"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasRole reports whether the user holds the given role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Document represents a controlled document in the QMS register
type Document struct {
	ID                 uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid" validate:"required,uuid"`
	Code               string     `json:"code" gorm:"uniqueIndex" validate:"required,doc_code"`
	Title              string     `json:"title" validate:"required,min=1,max=255"`
	Category           string     `json:"category" gorm:"index" validate:"omitempty,max=100"`
	OwnerID            uuid.UUID  `json:"owner_id" gorm:"type:uuid;index" validate:"required,uuid"`
	ReaderGroup        string     `json:"reader_group" validate:"omitempty,max=100"`
	Status             string     `json:"status" gorm:"index" validate:"required,oneof=draft in_review effective retired"`
	EffectiveVersionID *uuid.UUID `json:"effective_version_id" gorm:"type:uuid"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// DocumentVersion is an immutable snapshot of approved document content.
// Rows are only ever inserted and superseded, never updated in place.
type DocumentVersion struct {
	ID           uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	DocumentID   uuid.UUID  `json:"document_id" gorm:"type:uuid;index:idx_doc_version,unique"`
	VersionNo    int        `json:"version_no" gorm:"index:idx_doc_version,unique"`
	Title        string     `json:"title"`
	Body         string     `json:"body" gorm:"type:text"`
	ChangeNote   string     `json:"change_note"`
	ApprovedBy   uuid.UUID  `json:"approved_by" gorm:"type:uuid"`
	EffectiveAt  time.Time  `json:"effective_at"`
	SupersededAt *time.Time `json:"superseded_at"`
}

// Draft is the single editable pending revision of a document.
// The unique index on DocumentID enforces at most one draft per document.
type Draft struct {
	ID         uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	DocumentID uuid.UUID `json:"document_id" gorm:"type:uuid;uniqueIndex"`
	Title      string    `json:"title"`
	Body       string    `json:"body" gorm:"type:text"`
	ChangeNote string    `json:"change_note"`
	AuthorID   uuid.UUID `json:"author_id" gorm:"type:uuid"`
	Status     string    `json:"status" validate:"required,oneof=editing in_review"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Evidence is the structured justification attached to a lifecycle transition.
type Evidence struct {
	ReviewerIDs      []uuid.UUID `json:"reviewer_ids,omitempty"`
	ReviewNote       string      `json:"review_note,omitempty"`
	TrainingRequired bool        `json:"training_required,omitempty"`
	DistributionList []uuid.UUID `json:"distribution_list,omitempty"`
}

// Transition is an audit-logged change of a document's status/version.
type Transition struct {
	ID         uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	DocumentID uuid.UUID  `json:"document_id" gorm:"type:uuid;index"`
	DraftID    *uuid.UUID `json:"draft_id" gorm:"type:uuid"`
	FromStatus string     `json:"from_status"`
	ToStatus   string     `json:"to_status"`
	ActorID    uuid.UUID  `json:"actor_id" gorm:"type:uuid"`
	VersionNo  *int       `json:"version_no"`
	Evidence   *Evidence  `json:"evidence" gorm:"type:text;serializer:json"`
	CreatedAt  time.Time  `json:"created_at"`
}

// CreateDocumentRequest is the payload for registering a new document
type CreateDocumentRequest struct {
	Code        string `json:"code" binding:"required"`
	Title       string `json:"title" binding:"required,min=1,max=255"`
	Category    string `json:"category" binding:"omitempty,max=100"`
	ReaderGroup string `json:"reader_group" binding:"omitempty,max=100"`
	Body        string `json:"body"`
}

// UpdateDraftRequest is the payload for editing an open draft
type UpdateDraftRequest struct {
	Title      *string `json:"title" binding:"omitempty,min=1,max=255"`
	Body       *string `json:"body"`
	ChangeNote *string `json:"change_note" binding:"omitempty,max=1000"`
}

// SubmitRequest carries the evidence for a draft review submission
type SubmitRequest struct {
	ReviewerIDs      []uuid.UUID `json:"reviewer_ids" binding:"required,min=1"`
	TrainingRequired bool        `json:"training_required"`
	DistributionList []uuid.UUID `json:"distribution_list"`
}

// ReviewRequest carries the evidence for an approve/reject decision
type ReviewRequest struct {
	ReviewNote string `json:"review_note" binding:"omitempty,max=2000"`
}
