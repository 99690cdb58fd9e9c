package links

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
	// ErrLinkNotFound is returned when the link does not exist
	ErrLinkNotFound = errors.New("link not found")
	// ErrDocumentNotFound is returned when an endpoint document does not exist
	ErrDocumentNotFound = errors.New("document not found")
	// ErrSelfLink is returned for links pointing a document at itself
	ErrSelfLink = errors.New("document cannot link to itself")
	// ErrUnknownKind is returned for unrecognized link kinds
	ErrUnknownKind = errors.New("unknown link kind")
	// ErrDuplicateLink is returned when the same typed link already exists
	ErrDuplicateLink = errors.New("link already exists")
	// ErrNotAuthor is returned when a non-author without the manager role deletes
	ErrNotAuthor = errors.New("only the link author or a quality manager may delete")
)

// DocumentLinks holds both directions of a document's cross-references
type DocumentLinks struct {
	Outgoing []models.DocumentLink `json:"outgoing"`
	Incoming []models.DocumentLink `json:"incoming"`
}

// LinkService manages typed cross-references between documents
type LinkService interface {
	Create(ctx context.Context, actorID uuid.UUID, req *models.CreateLinkRequest) (*models.DocumentLink, error)
	ForDocument(ctx context.Context, documentID uuid.UUID) (*DocumentLinks, error)
	Delete(ctx context.Context, linkID, actorID uuid.UUID, isQualityManager bool) error
}

// Service implements LinkService backed by gorm
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewService creates a link service
func NewService(logger *zap.Logger, db *gorm.DB) (*Service, error) {
	return &Service{db: db, logger: logger}, nil
}

func validKind(kind string) bool {
	switch kind {
	case models.LinkKindReferences, models.LinkKindSupersedes, models.LinkKindImplements:
		return true
	}
	return false
}

// Create records a typed link between two existing documents
func (s *Service) Create(ctx context.Context, actorID uuid.UUID, req *models.CreateLinkRequest) (*models.DocumentLink, error) {
	if req.SourceID == req.TargetID {
		return nil, ErrSelfLink
	}
	if !validKind(req.Kind) {
		return nil, ErrUnknownKind
	}

	var link *models.DocumentLink
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Document{}).
			Where("id IN ?", []uuid.UUID{req.SourceID, req.TargetID}).
			Count(&n).Error; err != nil {
			return err
		}
		if n != 2 {
			return ErrDocumentNotFound
		}

		link = &models.DocumentLink{
			ID:        uuid.New(),
			SourceID:  req.SourceID,
			TargetID:  req.TargetID,
			Kind:      req.Kind,
			Note:      req.Note,
			CreatedBy: actorID,
			CreatedAt: time.Now(),
		}
		if err := tx.Create(link).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return ErrDuplicateLink
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Document link created",
		zap.String("source_id", req.SourceID.String()),
		zap.String("target_id", req.TargetID.String()),
		zap.String("kind", req.Kind))

	return link, nil
}

// ForDocument returns both directions of a document's links
func (s *Service) ForDocument(ctx context.Context, documentID uuid.UUID) (*DocumentLinks, error) {
	var doc models.Document
	err := s.db.WithContext(ctx).Select("id").First(&doc, "id = ?", documentID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}

	result := &DocumentLinks{
		Outgoing: []models.DocumentLink{},
		Incoming: []models.DocumentLink{},
	}
	err = s.db.WithContext(ctx).
		Where("source_id = ?", documentID).
		Order("created_at DESC").
		Find(&result.Outgoing).Error
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).
		Where("target_id = ?", documentID).
		Order("created_at DESC").
		Find(&result.Incoming).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Delete removes a link. Only the author or a quality manager may do so.
func (s *Service) Delete(ctx context.Context, linkID, actorID uuid.UUID, isQualityManager bool) error {
	var link models.DocumentLink
	err := s.db.WithContext(ctx).First(&link, "id = ?", linkID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrLinkNotFound
		}
		return err
	}

	if link.CreatedBy != actorID && !isQualityManager {
		return ErrNotAuthor
	}

	return s.db.WithContext(ctx).Delete(&models.DocumentLink{}, "id = ?", linkID).Error
}
