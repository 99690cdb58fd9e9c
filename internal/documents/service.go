package documents

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mpalomaki/nick/internal/cache"
	"github.com/mpalomaki/nick/internal/database"
	"github.com/mpalomaki/nick/internal/events"
	"github.com/mpalomaki/nick/internal/identities"
	"github.com/mpalomaki/nick/pkg/apiutil"
	"github.com/mpalomaki/nick/pkg/models"
)

// Service-level sentinel errors
var (
	ErrNotFound           = errors.New("document not found")
	ErrDuplicateCode      = errors.New("document code already registered")
	ErrInvalidCode        = errors.New("malformed document code")
	ErrDraftExists        = errors.New("document already has a draft")
	ErrNoDraft            = errors.New("document has no draft")
	ErrDraftInReview      = errors.New("draft is in review")
	ErrNotInReview        = errors.New("document is not in review")
	ErrNotEffective       = errors.New("document is not effective")
	ErrEvidenceIncomplete = errors.New("transition evidence is incomplete")
	ErrSelfApproval       = errors.New("draft author may not approve their own draft")
)

// cachePrefix namespaces register-list cache entries.
const cachePrefix = "nick:documents:list:"

// ListFilter narrows the register listing.
type ListFilter struct {
	Status   string
	Category string
	OwnerID  *uuid.UUID
	Query    string
}

// DocumentDetail is the aggregate returned for a single register entry.
type DocumentDetail struct {
	Document          *models.Document        `json:"document"`
	EffectiveVersion  *models.DocumentVersion `json:"effective_version,omitempty"`
	Draft             *models.Draft           `json:"draft,omitempty"`
	RecentTransitions []*models.Transition    `json:"recent_transitions"`
}

// DocumentService defines QMS register and lifecycle operations
type DocumentService interface {
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*models.Document, int64, error)
	Create(ctx context.Context, actorID uuid.UUID, req *models.CreateDocumentRequest) (*models.Document, error)
	Get(ctx context.Context, id uuid.UUID) (*DocumentDetail, error)
	GetVersion(ctx context.Context, versionID uuid.UUID) (*models.DocumentVersion, error)
	Versions(ctx context.Context, id uuid.UUID) ([]*models.DocumentVersion, error)
	Transitions(ctx context.Context, id uuid.UUID, limit, offset int) ([]*models.Transition, int64, error)

	CreateDraft(ctx context.Context, docID, actorID uuid.UUID) (*models.Draft, error)
	UpdateDraft(ctx context.Context, docID, actorID uuid.UUID, req *models.UpdateDraftRequest) (*models.Draft, error)
	DeleteDraft(ctx context.Context, docID, actorID uuid.UUID) error

	Submit(ctx context.Context, docID, actorID uuid.UUID, req *models.SubmitRequest) (*models.Transition, error)
	Approve(ctx context.Context, docID, actorID uuid.UUID, note string) (*models.DocumentVersion, error)
	Reject(ctx context.Context, docID, actorID uuid.UUID, note string) error
	Retire(ctx context.Context, docID, actorID uuid.UUID) error
}

// Service implements DocumentService
type Service struct {
	logger     *zap.Logger
	db         *gorm.DB
	cache      *cache.Cache
	publisher  *events.Publisher
	identities identities.IdentityService
}

// NewService creates a new document service. Cache and publisher may be nil.
func NewService(logger *zap.Logger, db *gorm.DB, c *cache.Cache, pub *events.Publisher, ids identities.IdentityService) (*Service, error) {
	return &Service{
		logger:     logger,
		db:         db,
		cache:      c,
		publisher:  pub,
		identities: ids,
	}, nil
}

type listPage struct {
	Items []*models.Document `json:"items"`
	Total int64              `json:"total"`
}

// List returns a page of the register, optionally filtered. Results are
// served from the redis cache when one is configured.
func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*models.Document, int64, error) {
	key := fmt.Sprintf("%s%s:%s:%v:%s:%d:%d", cachePrefix, f.Status, f.Category, f.OwnerID, f.Query, limit, offset)
	var cached listPage
	if s.cache.Get(ctx, key, &cached) {
		return cached.Items, cached.Total, nil
	}

	query := s.db.WithContext(ctx).Model(&models.Document{})
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.Category != "" {
		query = query.Where("category = ?", f.Category)
	}
	if f.OwnerID != nil {
		query = query.Where("owner_id = ?", *f.OwnerID)
	}
	if f.Query != "" {
		like := "%" + f.Query + "%"
		query = query.Where("code LIKE ? OR title LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count documents: %w", err)
	}

	var docs []*models.Document
	if err := query.Order("code ASC").Limit(limit).Offset(offset).Find(&docs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list documents: %w", err)
	}

	s.cache.Set(ctx, key, listPage{Items: docs, Total: total})
	return docs, total, nil
}

// Create registers a new controlled document with its initial draft
func (s *Service) Create(ctx context.Context, actorID uuid.UUID, req *models.CreateDocumentRequest) (*models.Document, error) {
	if !apiutil.ValidDocCode(req.Code) {
		return nil, ErrInvalidCode
	}

	doc := &models.Document{
		ID:          uuid.New(),
		Code:        req.Code,
		Title:       req.Title,
		Category:    req.Category,
		OwnerID:     actorID,
		ReaderGroup: req.ReaderGroup,
		Status:      models.DocumentStatusDraft,
	}
	draft := &models.Draft{
		ID:         uuid.New(),
		DocumentID: doc.ID,
		Title:      req.Title,
		Body:       apiutil.SanitizeHTML(req.Body),
		AuthorID:   actorID,
		Status:     models.DraftStatusEditing,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(doc).Error; err != nil {
			return err
		}
		return tx.Create(draft).Error
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrDuplicateCode
		}
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	s.cache.InvalidatePrefix(ctx, cachePrefix)
	s.logger.Info("Document registered",
		zap.String("document_id", doc.ID.String()),
		zap.String("code", doc.Code))
	return doc, nil
}

// Get returns the full register entry for a document
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*DocumentDetail, error) {
	doc, err := s.getDocument(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}

	detail := &DocumentDetail{Document: doc}

	if doc.EffectiveVersionID != nil {
		var version models.DocumentVersion
		if err := s.db.WithContext(ctx).First(&version, "id = ?", *doc.EffectiveVersionID).Error; err == nil {
			detail.EffectiveVersion = &version
		}
	}

	var draft models.Draft
	if err := s.db.WithContext(ctx).First(&draft, "document_id = ?", id).Error; err == nil {
		detail.Draft = &draft
	}

	if err := s.db.WithContext(ctx).
		Where("document_id = ?", id).
		Order("created_at DESC").Limit(10).
		Find(&detail.RecentTransitions).Error; err != nil {
		return nil, fmt.Errorf("failed to load transitions: %w", err)
	}

	return detail, nil
}

// GetVersion fetches a single immutable version snapshot
func (s *Service) GetVersion(ctx context.Context, versionID uuid.UUID) (*models.DocumentVersion, error) {
	var version models.DocumentVersion
	if err := s.db.WithContext(ctx).First(&version, "id = ?", versionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch version: %w", err)
	}
	return &version, nil
}

// Versions returns the full version history, newest first
func (s *Service) Versions(ctx context.Context, id uuid.UUID) ([]*models.DocumentVersion, error) {
	if _, err := s.getDocument(s.db.WithContext(ctx), id); err != nil {
		return nil, err
	}
	var versions []*models.DocumentVersion
	if err := s.db.WithContext(ctx).
		Where("document_id = ?", id).
		Order("version_no DESC").
		Find(&versions).Error; err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	return versions, nil
}

// Transitions returns the audit log for a document, newest first
func (s *Service) Transitions(ctx context.Context, id uuid.UUID, limit, offset int) ([]*models.Transition, int64, error) {
	if _, err := s.getDocument(s.db.WithContext(ctx), id); err != nil {
		return nil, 0, err
	}

	query := s.db.WithContext(ctx).Model(&models.Transition{}).Where("document_id = ?", id)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count transitions: %w", err)
	}

	var transitions []*models.Transition
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&transitions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list transitions: %w", err)
	}
	return transitions, total, nil
}

// CreateDraft opens a new revision draft, prefilled from the effective
// version when one exists.
func (s *Service) CreateDraft(ctx context.Context, docID, actorID uuid.UUID) (*models.Draft, error) {
	var draft *models.Draft

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc, err := s.getDocument(tx, docID)
		if err != nil {
			return err
		}

		var existing models.Draft
		if err := tx.First(&existing, "document_id = ?", docID).Error; err == nil {
			return ErrDraftExists
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check for draft: %w", err)
		}

		draft = &models.Draft{
			ID:         uuid.New(),
			DocumentID: docID,
			Title:      doc.Title,
			AuthorID:   actorID,
			Status:     models.DraftStatusEditing,
		}
		if doc.EffectiveVersionID != nil {
			var version models.DocumentVersion
			if err := tx.First(&version, "id = ?", *doc.EffectiveVersionID).Error; err != nil {
				return fmt.Errorf("failed to load effective version: %w", err)
			}
			draft.Title = version.Title
			draft.Body = version.Body
		}
		if err := tx.Create(draft).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return ErrDraftExists
			}
			return fmt.Errorf("failed to create draft: %w", err)
		}

		// Opening a revision draft moves the register head back to draft.
		if doc.Status != models.DocumentStatusDraft {
			if _, err := s.transition(tx, doc, models.DocumentStatusDraft, actorID, &draft.ID, nil, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.InvalidatePrefix(ctx, cachePrefix)
	return draft, nil
}

// UpdateDraft edits an open draft. Fails while the draft is in review.
func (s *Service) UpdateDraft(ctx context.Context, docID, actorID uuid.UUID, req *models.UpdateDraftRequest) (*models.Draft, error) {
	var draft models.Draft
	if err := s.db.WithContext(ctx).First(&draft, "document_id = ?", docID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if _, derr := s.getDocument(s.db.WithContext(ctx), docID); derr != nil {
				return nil, derr
			}
			return nil, ErrNoDraft
		}
		return nil, fmt.Errorf("failed to fetch draft: %w", err)
	}

	if draft.Status == models.DraftStatusInReview {
		return nil, ErrDraftInReview
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.Body != nil {
		updates["body"] = apiutil.SanitizeHTML(*req.Body)
	}
	if req.ChangeNote != nil {
		updates["change_note"] = *req.ChangeNote
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&draft).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update draft: %w", err)
		}
	}

	return &draft, nil
}

// DeleteDraft discards the open draft. Fails while the draft is in review.
// A document that already has an effective version returns to effective
// status.
func (s *Service) DeleteDraft(ctx context.Context, docID, actorID uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc, err := s.getDocument(tx, docID)
		if err != nil {
			return err
		}

		var draft models.Draft
		if err := tx.First(&draft, "document_id = ?", docID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoDraft
			}
			return fmt.Errorf("failed to fetch draft: %w", err)
		}

		if draft.Status == models.DraftStatusInReview {
			return ErrDraftInReview
		}

		if err := tx.Delete(&draft).Error; err != nil {
			return fmt.Errorf("failed to delete draft: %w", err)
		}

		if doc.EffectiveVersionID != nil && doc.Status == models.DocumentStatusDraft {
			if _, err := s.transition(tx, doc, models.DocumentStatusEffective, actorID, nil, nil, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.cache.InvalidatePrefix(ctx, cachePrefix)
	return nil
}

// getDocument fetches a document, translating gorm's missing-row error.
func (s *Service) getDocument(tx *gorm.DB, id uuid.UUID) (*models.Document, error) {
	var doc models.Document
	if err := tx.First(&doc, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch document: %w", err)
	}
	return &doc, nil
}
