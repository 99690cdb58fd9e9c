package models

import (
	"time"

	"github.com/google/uuid"
)

// Language is an entry in the localization catalog
type Language struct {
	Code      string    `json:"code" gorm:"primaryKey;size:16" validate:"required,bcp47_language_tag"`
	Name      string    `json:"name" validate:"required,min=1,max=100"`
	Enabled   bool      `json:"enabled" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at"`
}

// TranslationGroup ties together the translations of one logical document
type TranslationGroup struct {
	ID            uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	CanonicalCode string    `json:"canonical_code" gorm:"index"`
	CreatedAt     time.Time `json:"created_at"`
}

// TranslationItem links one document as the translation of its group for a
// language. A document may belong to at most one group.
type TranslationItem struct {
	ID           uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	GroupID      uuid.UUID `json:"group_id" gorm:"type:uuid;index:idx_group_lang,unique"`
	LanguageCode string    `json:"language_code" gorm:"size:16;index:idx_group_lang,unique"`
	DocumentID   uuid.UUID `json:"document_id" gorm:"type:uuid;uniqueIndex"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateGroupRequest opens a new translation group
type CreateGroupRequest struct {
	CanonicalCode string `json:"canonical_code" binding:"required,max=32"`
}

// LinkTranslationRequest attaches a document to a group's language slot
type LinkTranslationRequest struct {
	LanguageCode string    `json:"language_code" binding:"required,max=16"`
	DocumentID   uuid.UUID `json:"document_id" binding:"required"`
}
