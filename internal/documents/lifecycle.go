package documents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mpalomaki/nick/internal/events"
	"github.com/mpalomaki/nick/pkg/metrics"
	"github.com/mpalomaki/nick/pkg/models"
)

// transition moves doc to toStatus and appends the audit row, both under the
// caller's transaction. The UPDATE is guarded by the expected current status
// so concurrent requests cannot double-apply a transition.
func (s *Service) transition(tx *gorm.DB, doc *models.Document, toStatus string, actorID uuid.UUID, draftID *uuid.UUID, versionNo *int, evidence *models.Evidence) (*models.Transition, error) {
	fromStatus := doc.Status

	res := tx.Model(&models.Document{}).
		Where("id = ? AND status = ?", doc.ID, fromStatus).
		Update("status", toStatus)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update document status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("document %s left status %s concurrently", doc.ID, fromStatus)
	}
	doc.Status = toStatus

	row := &models.Transition{
		ID:         uuid.New(),
		DocumentID: doc.ID,
		DraftID:    draftID,
		FromStatus: fromStatus,
		ToStatus:   toStatus,
		ActorID:    actorID,
		VersionNo:  versionNo,
		Evidence:   evidence,
	}
	if err := tx.Create(row).Error; err != nil {
		return nil, fmt.Errorf("failed to record transition: %w", err)
	}

	metrics.LifecycleTransitions.WithLabelValues(toStatus).Inc()
	return row, nil
}

// publish emits the transition event after the transaction has committed.
func (s *Service) publish(ctx context.Context, doc *models.Document, fromStatus string, versionNo *int, actorID uuid.UUID) {
	s.publisher.PublishTransition(ctx, events.TransitionEvent{
		DocumentID: doc.ID,
		Code:       doc.Code,
		FromStatus: fromStatus,
		ToStatus:   doc.Status,
		VersionNo:  versionNo,
		ActorID:    actorID,
		OccurredAt: time.Now().UTC(),
	})
}

// Submit moves the open draft into review. The evidence gate requires at
// least one named reviewer.
func (s *Service) Submit(ctx context.Context, docID, actorID uuid.UUID, req *models.SubmitRequest) (*models.Transition, error) {
	if len(req.ReviewerIDs) == 0 {
		return nil, ErrEvidenceIncomplete
	}

	var (
		doc        *models.Document
		fromStatus string
		row        *models.Transition
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		doc, err = s.getDocument(tx, docID)
		if err != nil {
			return err
		}
		fromStatus = doc.Status

		var draft models.Draft
		if err := tx.First(&draft, "document_id = ?", docID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoDraft
			}
			return fmt.Errorf("failed to fetch draft: %w", err)
		}
		if draft.Status != models.DraftStatusEditing {
			return ErrDraftInReview
		}
		if strings.TrimSpace(draft.Title) == "" {
			return ErrEvidenceIncomplete
		}

		if err := tx.Model(&draft).Update("status", models.DraftStatusInReview).Error; err != nil {
			return fmt.Errorf("failed to update draft status: %w", err)
		}

		evidence := &models.Evidence{
			ReviewerIDs:      req.ReviewerIDs,
			TrainingRequired: req.TrainingRequired,
			DistributionList: req.DistributionList,
		}
		row, err = s.transition(tx, doc, models.DocumentStatusInReview, actorID, &draft.ID, nil, evidence)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.cache.InvalidatePrefix(ctx, cachePrefix)
	s.publish(ctx, doc, fromStatus, nil, actorID)
	s.logger.Info("Draft submitted for review",
		zap.String("document_id", docID.String()),
		zap.Int("reviewers", len(req.ReviewerIDs)))
	return row, nil
}

// Approve moves an in-review document to effective. Inside one transaction
// it re-validates the evidence gate, snapshots the draft into a new
// immutable version, supersedes the previous effective version, deletes the
// draft, grants the reader group to the distribution list and appends the
// audit row.
func (s *Service) Approve(ctx context.Context, docID, actorID uuid.UUID, note string) (*models.DocumentVersion, error) {
	var (
		version    *models.DocumentVersion
		doc        *models.Document
		fromStatus string
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		doc, err = s.getDocument(tx, docID)
		if err != nil {
			return err
		}
		fromStatus = doc.Status
		if doc.Status != models.DocumentStatusInReview {
			return ErrNotInReview
		}

		var draft models.Draft
		if err := tx.First(&draft, "document_id = ?", docID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoDraft
			}
			return fmt.Errorf("failed to fetch draft: %w", err)
		}
		if draft.AuthorID == actorID {
			return ErrSelfApproval
		}

		// Evidence gate: the submit transition must carry named reviewers.
		var submitRow models.Transition
		if err := tx.Where("document_id = ? AND to_status = ?", docID, models.DocumentStatusInReview).
			Order("created_at DESC").First(&submitRow).Error; err != nil {
			return fmt.Errorf("failed to load submit evidence: %w", err)
		}
		if submitRow.Evidence == nil || len(submitRow.Evidence.ReviewerIDs) == 0 {
			return ErrEvidenceIncomplete
		}

		// Next version number, strictly ascending per document.
		var maxNo int
		if err := tx.Model(&models.DocumentVersion{}).
			Where("document_id = ?", docID).
			Select("COALESCE(MAX(version_no), 0)").
			Scan(&maxNo).Error; err != nil {
			return fmt.Errorf("failed to determine version number: %w", err)
		}
		versionNo := maxNo + 1
		now := time.Now().UTC()

		version = &models.DocumentVersion{
			ID:          uuid.New(),
			DocumentID:  docID,
			VersionNo:   versionNo,
			Title:       draft.Title,
			Body:        draft.Body,
			ChangeNote:  draft.ChangeNote,
			ApprovedBy:  actorID,
			EffectiveAt: now,
		}
		if err := tx.Create(version).Error; err != nil {
			return fmt.Errorf("failed to snapshot version: %w", err)
		}

		if doc.EffectiveVersionID != nil {
			if err := tx.Model(&models.DocumentVersion{}).
				Where("id = ?", *doc.EffectiveVersionID).
				Update("superseded_at", now).Error; err != nil {
				return fmt.Errorf("failed to supersede previous version: %w", err)
			}
		}

		if err := tx.Delete(&draft).Error; err != nil {
			return fmt.Errorf("failed to remove draft: %w", err)
		}

		if err := tx.Model(&models.Document{}).
			Where("id = ?", docID).
			Updates(map[string]interface{}{
				"effective_version_id": version.ID,
				"title":                draft.Title,
			}).Error; err != nil {
			return fmt.Errorf("failed to update effective pointer: %w", err)
		}
		doc.EffectiveVersionID = &version.ID
		doc.Title = draft.Title

		// Reader grants for the distribution list commit with the approval.
		readerRole := doc.ReaderGroup
		if readerRole == "" {
			readerRole = models.RoleReader
		}
		for _, userID := range submitRow.Evidence.DistributionList {
			if err := s.identities.GrantRoleTx(tx, userID, readerRole); err != nil {
				return fmt.Errorf("failed to grant reader role to %s: %w", userID, err)
			}
		}

		evidence := &models.Evidence{
			ReviewerIDs:      submitRow.Evidence.ReviewerIDs,
			ReviewNote:       note,
			TrainingRequired: submitRow.Evidence.TrainingRequired,
			DistributionList: submitRow.Evidence.DistributionList,
		}
		_, err = s.transition(tx, doc, models.DocumentStatusEffective, actorID, &draft.ID, &versionNo, evidence)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.cache.InvalidatePrefix(ctx, cachePrefix)
	s.publish(ctx, doc, fromStatus, &version.VersionNo, actorID)
	s.logger.Info("Document approved",
		zap.String("document_id", docID.String()),
		zap.String("code", doc.Code),
		zap.Int("version_no", version.VersionNo))
	return version, nil
}

// Reject sends an in-review draft back to editing. A review note is
// mandatory so the author knows what to fix.
func (s *Service) Reject(ctx context.Context, docID, actorID uuid.UUID, note string) error {
	if strings.TrimSpace(note) == "" {
		return ErrEvidenceIncomplete
	}

	var (
		doc        *models.Document
		fromStatus string
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		doc, err = s.getDocument(tx, docID)
		if err != nil {
			return err
		}
		fromStatus = doc.Status
		if doc.Status != models.DocumentStatusInReview {
			return ErrNotInReview
		}

		var draft models.Draft
		if err := tx.First(&draft, "document_id = ?", docID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoDraft
			}
			return fmt.Errorf("failed to fetch draft: %w", err)
		}

		if err := tx.Model(&draft).Update("status", models.DraftStatusEditing).Error; err != nil {
			return fmt.Errorf("failed to reopen draft: %w", err)
		}

		evidence := &models.Evidence{ReviewNote: note}
		_, err = s.transition(tx, doc, models.DocumentStatusDraft, actorID, &draft.ID, nil, evidence)
		return err
	})
	if err != nil {
		return err
	}

	s.cache.InvalidatePrefix(ctx, cachePrefix)
	s.publish(ctx, doc, fromStatus, nil, actorID)
	s.logger.Info("Draft rejected", zap.String("document_id", docID.String()))
	return nil
}

// Retire removes an effective document from circulation. The effective
// version is superseded but stays readable as history.
func (s *Service) Retire(ctx context.Context, docID, actorID uuid.UUID) error {
	var (
		doc        *models.Document
		fromStatus string
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		doc, err = s.getDocument(tx, docID)
		if err != nil {
			return err
		}
		fromStatus = doc.Status
		if doc.Status != models.DocumentStatusEffective {
			return ErrNotEffective
		}

		if doc.EffectiveVersionID != nil {
			if err := tx.Model(&models.DocumentVersion{}).
				Where("id = ? AND superseded_at IS NULL", *doc.EffectiveVersionID).
				Update("superseded_at", time.Now().UTC()).Error; err != nil {
				return fmt.Errorf("failed to supersede effective version: %w", err)
			}
		}

		_, err = s.transition(tx, doc, models.DocumentStatusRetired, actorID, nil, nil, nil)
		return err
	})
	if err != nil {
		return err
	}

	s.cache.InvalidatePrefix(ctx, cachePrefix)
	s.publish(ctx, doc, fromStatus, nil, actorID)
	s.logger.Info("Document retired", zap.String("document_id", docID.String()), zap.String("code", doc.Code))
	return nil
}
