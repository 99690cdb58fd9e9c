package models

import (
	"time"

	"github.com/google/uuid"
)

// Cross-link kinds
const (
	LinkKindReferences = "references"
	LinkKindSupersedes = "supersedes"
	LinkKindImplements = "implements"
)

// DocumentLink is a typed cross-reference between two controlled documents
type DocumentLink struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	SourceID  uuid.UUID `json:"source_id" gorm:"type:uuid;index:idx_link,unique;index"`
	TargetID  uuid.UUID `json:"target_id" gorm:"type:uuid;index:idx_link,unique;index"`
	Kind      string    `json:"kind" gorm:"index:idx_link,unique" validate:"required,oneof=references supersedes implements"`
	Note      string    `json:"note" validate:"omitempty,max=500"`
	CreatedBy uuid.UUID `json:"created_by" gorm:"type:uuid"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateLinkRequest is the payload for cross-linking two documents
type CreateLinkRequest struct {
	SourceID uuid.UUID `json:"source_id" binding:"required"`
	TargetID uuid.UUID `json:"target_id" binding:"required"`
	Kind     string    `json:"kind" binding:"required"`
	Note     string    `json:"note" binding:"omitempty,max=500"`
}
