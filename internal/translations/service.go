package translations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mpalomaki/nick/internal/database"
	"github.com/mpalomaki/nick/pkg/models"
)

var (
	// ErrGroupNotFound is returned when the translation group does not exist
	ErrGroupNotFound = errors.New("translation group not found")
	// ErrItemNotFound is returned when the group has no entry for the language
	ErrItemNotFound = errors.New("translation item not found")
	// ErrDocumentNotFound is returned when the referenced document does not exist
	ErrDocumentNotFound = errors.New("document not found")
	// ErrUnknownLanguage is returned for languages missing from the catalog or disabled
	ErrUnknownLanguage = errors.New("unknown or disabled language")
	// ErrSlotTaken is returned when the group already has an entry for the language
	ErrSlotTaken = errors.New("language slot already taken")
	// ErrAlreadyGrouped is returned when the document already belongs to a group
	ErrAlreadyGrouped = errors.New("document already belongs to a translation group")
)

// GroupSummary is one row of the group browse listing. When a language
// filter is applied, HasLanguage reports whether the group covers it.
type GroupSummary struct {
	Group       models.TranslationGroup `json:"group"`
	ItemCount   int64                   `json:"item_count"`
	HasLanguage *bool                   `json:"has_language,omitempty"`
}

// GroupDetail is a group with its per-language entries resolved to documents
type GroupDetail struct {
	Group models.TranslationGroup `json:"group"`
	Items []GroupItem             `json:"items"`
}

// GroupItem pairs a language slot with its document
type GroupItem struct {
	Item     models.TranslationItem `json:"item"`
	Document models.Document        `json:"document"`
}

// GroupFilter narrows the group browse listing
type GroupFilter struct {
	Language    string // restrict HasLanguage reporting to this language
	MissingOnly bool   // only groups lacking the filtered language
}

// TranslationService exposes localization browsing and group maintenance
type TranslationService interface {
	ListLanguages(ctx context.Context) ([]models.Language, error)
	CreateGroup(ctx context.Context, req *models.CreateGroupRequest) (*models.TranslationGroup, error)
	ListGroups(ctx context.Context, filter GroupFilter, limit, offset int) ([]GroupSummary, int64, error)
	GetGroup(ctx context.Context, groupID uuid.UUID) (*GroupDetail, error)
	LinkItem(ctx context.Context, groupID uuid.UUID, req *models.LinkTranslationRequest) (*models.TranslationItem, error)
	UnlinkItem(ctx context.Context, groupID uuid.UUID, languageCode string) error
}

// Service implements TranslationService backed by gorm
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewService creates a translation service
func NewService(logger *zap.Logger, db *gorm.DB) (*Service, error) {
	return &Service{db: db, logger: logger}, nil
}

// ListLanguages returns the enabled language catalog ordered by code
func (s *Service) ListLanguages(ctx context.Context) ([]models.Language, error) {
	var languages []models.Language
	err := s.db.WithContext(ctx).
		Where("enabled = ?", true).
		Order("code ASC").
		Find(&languages).Error
	if err != nil {
		return nil, err
	}
	return languages, nil
}

// CreateGroup opens a new, empty translation group
func (s *Service) CreateGroup(ctx context.Context, req *models.CreateGroupRequest) (*models.TranslationGroup, error) {
	group := &models.TranslationGroup{
		ID:            uuid.New(),
		CanonicalCode: req.CanonicalCode,
		CreatedAt:     time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(group).Error; err != nil {
		return nil, err
	}
	return group, nil
}

// ListGroups browses translation groups. With a language filter each row
// reports coverage for that language; MissingOnly keeps only the gaps.
func (s *Service) ListGroups(ctx context.Context, filter GroupFilter, limit, offset int) ([]GroupSummary, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.TranslationGroup{})

	if filter.Language != "" && filter.MissingOnly {
		query = query.Where(
			"id NOT IN (?)",
			s.db.Model(&models.TranslationItem{}).
				Select("group_id").
				Where("language_code = ?", filter.Language),
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var groups []models.TranslationGroup
	err := query.Order("canonical_code ASC").
		Limit(limit).Offset(offset).
		Find(&groups).Error
	if err != nil {
		return nil, 0, err
	}

	summaries := make([]GroupSummary, 0, len(groups))
	for _, group := range groups {
		summary := GroupSummary{Group: group}
		if err := s.db.WithContext(ctx).Model(&models.TranslationItem{}).
			Where("group_id = ?", group.ID).
			Count(&summary.ItemCount).Error; err != nil {
			return nil, 0, err
		}
		if filter.Language != "" {
			var n int64
			if err := s.db.WithContext(ctx).Model(&models.TranslationItem{}).
				Where("group_id = ? AND language_code = ?", group.ID, filter.Language).
				Count(&n).Error; err != nil {
				return nil, 0, err
			}
			has := n > 0
			summary.HasLanguage = &has
		}
		summaries = append(summaries, summary)
	}

	return summaries, total, nil
}

// GetGroup returns a group with every language entry and its document
func (s *Service) GetGroup(ctx context.Context, groupID uuid.UUID) (*GroupDetail, error) {
	var group models.TranslationGroup
	err := s.db.WithContext(ctx).First(&group, "id = ?", groupID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}

	var items []models.TranslationItem
	err = s.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("language_code ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}

	detail := &GroupDetail{Group: group, Items: make([]GroupItem, 0, len(items))}
	for _, item := range items {
		var doc models.Document
		if err := s.db.WithContext(ctx).First(&doc, "id = ?", item.DocumentID).Error; err != nil {
			return nil, err
		}
		detail.Items = append(detail.Items, GroupItem{Item: item, Document: doc})
	}

	return detail, nil
}

// LinkItem attaches a document as the group's translation for a language
func (s *Service) LinkItem(ctx context.Context, groupID uuid.UUID, req *models.LinkTranslationRequest) (*models.TranslationItem, error) {
	var item *models.TranslationItem

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var group models.TranslationGroup
		if err := tx.First(&group, "id = ?", groupID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrGroupNotFound
			}
			return err
		}

		var language models.Language
		if err := tx.First(&language, "code = ?", req.LanguageCode).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUnknownLanguage
			}
			return err
		}
		if !language.Enabled {
			return ErrUnknownLanguage
		}

		var doc models.Document
		if err := tx.First(&doc, "id = ?", req.DocumentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrDocumentNotFound
			}
			return err
		}

		// Distinguish the two 409s before relying on the indexes.
		var n int64
		if err := tx.Model(&models.TranslationItem{}).
			Where("group_id = ? AND language_code = ?", groupID, req.LanguageCode).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrSlotTaken
		}
		if err := tx.Model(&models.TranslationItem{}).
			Where("document_id = ?", req.DocumentID).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrAlreadyGrouped
		}

		item = &models.TranslationItem{
			ID:           uuid.New(),
			GroupID:      groupID,
			LanguageCode: req.LanguageCode,
			DocumentID:   req.DocumentID,
			CreatedAt:    time.Now(),
		}
		if err := tx.Create(item).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return ErrSlotTaken
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Translation linked",
		zap.String("group_id", groupID.String()),
		zap.String("language", req.LanguageCode),
		zap.String("document_id", req.DocumentID.String()))

	return item, nil
}

// UnlinkItem removes a language entry. The group itself is deleted when
// the last entry goes.
func (s *Service) UnlinkItem(ctx context.Context, groupID uuid.UUID, languageCode string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var group models.TranslationGroup
		if err := tx.First(&group, "id = ?", groupID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrGroupNotFound
			}
			return err
		}

		result := tx.Where("group_id = ? AND language_code = ?", groupID, languageCode).
			Delete(&models.TranslationItem{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrItemNotFound
		}

		var remaining int64
		if err := tx.Model(&models.TranslationItem{}).
			Where("group_id = ?", groupID).
			Count(&remaining).Error; err != nil {
			return err
		}
		if remaining == 0 {
			return tx.Delete(&models.TranslationGroup{}, "id = ?", groupID).Error
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Translation unlinked",
		zap.String("group_id", groupID.String()),
		zap.String("language", languageCode))

	return nil
}
