package documents_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mpalomaki/nick/internal/database"
	"github.com/mpalomaki/nick/internal/documents"
	"github.com/mpalomaki/nick/internal/identities"
	"github.com/mpalomaki/nick/pkg/models"
)

func setupDocumentsTest(t *testing.T) (*gorm.DB, documents.DocumentService, identities.IdentityService) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to open in-memory sqlite DB")
	require.NoError(t, database.Migrate(db), "failed to migrate models")

	logger := zap.NewNop()
	ids, err := identities.NewService(logger, db, "test-secret", time.Hour, "nick")
	require.NoError(t, err)

	svc, err := documents.NewService(logger, db, nil, nil, ids)
	require.NoError(t, err)
	return db, svc, ids
}

func newUser(t *testing.T, ids identities.IdentityService, email string, roles ...string) *models.User {
	user, err := ids.CreateUser(context.Background(), &models.CreateUserRequest{
		Email:    email,
		Name:     "Test User",
		Password: "password123",
		Roles:    roles,
	})
	require.NoError(t, err)
	return user
}

func TestCreateDocument(t *testing.T) {
	_, svc, ids := setupDocumentsTest(t)
	ctx := context.Background()
	owner := newUser(t, ids, "owner@example.com", models.RoleEditor)

	doc, err := svc.Create(ctx, owner.ID, &models.CreateDocumentRequest{
		Code:  "SOP-100",
		Title: "Cleaning Procedure",
		Body:  "<p>Wipe the benches.</p>",
	})
	require.NoError(t, err)
	assert.Equal(t, "SOP-100", doc.Code)
	assert.Equal(t, models.DocumentStatusDraft, doc.Status)
	assert.Equal(t, owner.ID, doc.OwnerID)

	// The register entry starts with an open draft.
	detail, err := svc.Get(ctx, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.Draft)
	assert.Equal(t, models.DraftStatusEditing, detail.Draft.Status)
	assert.Nil(t, detail.EffectiveVersion)

	// Duplicate codes are rejected.
	_, err = svc.Create(ctx, owner.ID, &models.CreateDocumentRequest{Code: "SOP-100", Title: "Duplicate"})
	assert.ErrorIs(t, err, documents.ErrDuplicateCode)

	// Malformed codes never reach the database.
	_, err = svc.Create(ctx, owner.ID, &models.CreateDocumentRequest{Code: "sop 100", Title: "Bad code"})
	assert.ErrorIs(t, err, documents.ErrInvalidCode)
}

func TestCreateStripsScriptTags(t *testing.T) {
	_, svc, ids := setupDocumentsTest(t)
	ctx := context.Background()
	owner := newUser(t, ids, "owner@example.com", models.RoleEditor)

	doc, err := svc.Create(ctx, owner.ID, &models.CreateDocumentRequest{
		Code:  "SOP-101",
		Title: "Sanitized",
		Body:  `<p>ok</p><script>alert(1)</script>`,
	})
	require.NoError(t, err)

	detail, err := svc.Get(ctx, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.Draft)
	assert.Contains(t, detail.Draft.Body, "<p>ok</p>")
	assert.NotContains(t, detail.Draft.Body, "<script>")
}

func TestListFilters(t *testing.T) {
	_, svc, ids := setupDocumentsTest(t)
	ctx := context.Background()
	owner := newUser(t, ids, "owner@example.com", models.RoleEditor)

	for _, c := range []struct{ code, title, category string }{
		{"SOP-1", "Cleaning", "operations"},
		{"SOP-2", "Calibration", "operations"},
		{"POL-1", "Quality Policy", "policy"},
	} {
		_, err := svc.Create(ctx, owner.ID, &models.CreateDocumentRequest{Code: c.code, Title: c.title, Category: c.category})
		require.NoError(t, err)
	}

	docs, total, err := svc.List(ctx, documents.ListFilter{}, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, docs, 3)

	docs, total, err = svc.List(ctx, documents.ListFilter{Category: "policy"}, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "POL-1", docs[0].Code)

	docs, _, err = svc.List(ctx, documents.ListFilter{Query: "Calib"}, 20, 0)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "SOP-2", docs[0].Code)

	docs, _, err = svc.List(ctx, documents.ListFilter{Status: models.DocumentStatusDraft}, 2, 0)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestDraftUniqueness(t *testing.T) {
	_, svc, ids := setupDocumentsTest(t)
	ctx := context.Background()
	owner := newUser(t, ids, "owner@example.com", models.RoleEditor)

	doc, err := svc.Create(ctx, owner.ID, &models.CreateDocumentRequest{Code: "SOP-10", Title: "One draft only"})
	require.NoError(t, err)

	_, err = svc.CreateDraft(ctx, doc.ID, owner.ID)
	assert.ErrorIs(t, err, documents.ErrDraftExists)
}

func TestUpdateDraft(t *testing.T) {
	_, svc, ids := setupDocumentsTest(t)
	ctx := context.Background()
	owner := newUser(t, ids, "owner@example.com", models.RoleEditor)

	doc, err := svc.Create(ctx, owner.ID, &models.CreateDocumentRequest{Code: "SOP-11", Title: "Original"})
	require.NoError(t, err)

	title := "Revised"
	note := "clarified section 3"
	draft, err := svc.UpdateDraft(ctx, doc.ID, owner.ID, &models.UpdateDraftRequest{Title: &title, ChangeNote: &note})
	require.NoError(t, err)
	assert.Equal(t, "Revised", draft.Title)

	_, err = svc.UpdateDraft(ctx, uuid.New(), owner.ID, &models.UpdateDraftRequest{Title: &title})
	assert.ErrorIs(t, err, documents.ErrNotFound)
}

func TestSubmitEvidenceGate(t *testing.T) {
	_, svc, ids := setupDocumentsTest(t)
	ctx := context.Background()
	owner := newUser(t, ids, "owner@example.com", models.RoleEditor)
	reviewer := newUser(t, ids, "reviewer@example.com", models.RoleReviewer)

	doc, err := svc.Create(ctx, owner.ID, &models.CreateDocumentRequest{Code: "SOP-12", Title: "Gated"})
	require.NoError(t, err)

	// No reviewers, no review.
	_, err = svc.Submit(ctx, doc.ID, owner.ID, &models.SubmitRequest{})
	assert.ErrorIs(t, err, documents.ErrEvidenceIncomplete)

	row, err := svc.Submit(ctx, doc.ID, owner.ID, &models.SubmitRequest{ReviewerIDs: []uuid.UUID{reviewer.ID}})
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusDraft, row.FromStatus)
	assert.Equal(t, models.DocumentStatusInReview, row.ToStatus)
	require.NotNil(t, row.Evidence)
	assert.Equal(t, []uuid.UUID{reviewer.ID}, row.Evidence.ReviewerIDs)

	// The draft is frozen while in review.
	title := "sneaky edit"
	_, err = svc.UpdateDraft(ctx, doc.ID, owner.ID, &models.UpdateDraftRequest{Title: &title})
	assert.ErrorIs(t, err, documents.ErrDraftInReview)

	// Resubmitting an in-review draft is a conflict.
	_, err = svc.Submit(ctx, doc.ID, owner.ID, &models.SubmitRequest{ReviewerIDs: []uuid.UUID{reviewer.ID}})
	assert.ErrorIs(t, err, documents.ErrDraftInReview)
}

func TestApprove(t *testing.T) {
	db, svc, ids := setupDocumentsTest(t)
	ctx := context.Background()
	author := newUser(t, ids, "author@example.com", models.RoleEditor)
	reviewer := newUser(t, ids, "reviewer@example.com", models.RoleReviewer)
	qm := newUser(t, ids, "qm@example.com", models.RoleQualityManager)
	reader := newUser(t, ids, "reader@example.com")

	doc, err := svc.Create(ctx, author.ID, &models.CreateDocumentRequest{
		Code:  "SOP-20",
		Title: "Approval flow",
		Body:  "<p>v1 content</p>",
	})
	require.NoError(t, err)

	// Approving outside review is a conflict.
	_, err = svc.Approve(ctx, doc.ID, qm.ID, "")
	assert.ErrorIs(t, err, documents.ErrNotInReview)

	_, err = svc.Submit(ctx, doc.ID, author.ID, &models.SubmitRequest{
		ReviewerIDs:      []uuid.UUID{reviewer.ID},
		DistributionList: []uuid.UUID{reader.ID},
	})
	require.NoError(t, err)

	// Authors cannot wave their own drafts through.
	_, err = svc.Approve(ctx, doc.ID, author.ID, "lgtm")
	assert.ErrorIs(t, err, documents.ErrSelfApproval)

	version, err := svc.Approve(ctx, doc.ID, qm.ID, "reviewed against ISO checklist")
	require.NoError(t, err)
	assert.Equal(t, 1, version.VersionNo)
	assert.Equal(t, qm.ID, version.ApprovedBy)
	assert.Contains(t, version.Body, "v1 content")

	detail, err := svc.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusEffective, detail.Document.Status)
	require.NotNil(t, detail.Document.EffectiveVersionID)
	assert.Equal(t, version.ID, *detail.Document.EffectiveVersionID)
	assert.Nil(t, detail.Draft, "draft must be consumed by approval")

	// Distribution-list users gain read access in the same transaction.
	granted, err := ids.GetUser(ctx, reader.ID)
	require.NoError(t, err)
	assert.True(t, granted.HasRole(models.RoleReader))

	// The audit trail carries the merged evidence.
	var approval models.Transition
	require.NoError(t, db.Where("document_id = ? AND to_status = ?", doc.ID, models.DocumentStatusEffective).First(&approval).Error)
	require.NotNil(t, approval.Evidence)
	assert.Equal(t, "reviewed against ISO checklist", approval.Evidence.ReviewNote)
	assert.Equal(t, []uuid.UUID{reviewer.ID}, approval.Evidence.ReviewerIDs)
}

func TestRevisionCycle(t *testing.T) {
	_, svc, ids := setupDocumentsTest(t)
	ctx := context.Background()
	author := newUser(t, ids, "author@example.com", models.RoleEditor)
	reviewer := newUser(t, ids, "reviewer@example.com", models.RoleReviewer)
	qm := newUser(t, ids, "qm@example.com", models.RoleQualityManager)

	doc, err := svc.Create(ctx, author.ID, &models.CreateDocumentRequest{Code: "SOP-30", Title: "Rev A", Body: "<p>first</p>"})
	require.NoError(t, err)
	_, err = svc.Submit(ctx, doc.ID, author.ID, &models.SubmitRequest{ReviewerIDs: []uuid.UUID{reviewer.ID}})
	require.NoError(t, err)
	v1, err := svc.Approve(ctx, doc.ID, qm.ID, "")
	require.NoError(t, err)

	// A new revision draft reopens the lifecycle and prefills from v1.
	draft, err := svc.CreateDraft(ctx, doc.ID, author.ID)
	require.NoError(t, err)
	assert.Contains(t, draft.Body, "first")

	detail, err := svc.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusDraft, detail.Document.Status)

	body := "<p>second</p>"
	_, err = svc.UpdateDraft(ctx, doc.ID, author.ID, &models.UpdateDraftRequest{Body: &body})
	require.NoError(t, err)
	_, err = svc.Submit(ctx, doc.ID, author.ID, &models.SubmitRequest{ReviewerIDs: []uuid.UUID{reviewer.ID}})
	require.NoError(t, err)
	v2, err := svc.Approve(ctx, doc.ID, qm.ID, "")
	require.NoError(t, err)

	assert.Equal(t, 2, v2.VersionNo)

	versions, err := svc.Versions(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 2, versions[0].VersionNo, "newest first")

	// v1 is superseded but still readable history.
	old, err := svc.GetVersion(ctx, v1.ID)
	require.NoError(t, err)
	assert.NotNil(t, old.SupersededAt)
	assert.Nil(t, versions[0].SupersededAt)
}

func TestDeleteDraftRevertsToEffective(t *testing.T) {
	_, svc, ids := setupDocumentsTest(t)
	ctx := context.Background()
	author := newUser(t, ids, "author@example.com", models.RoleEditor)
	reviewer := newUser(t, ids, "reviewer@example.com", models.RoleReviewer)
	qm := newUser(t, ids, "qm@example.com", models.RoleQualityManager)

	doc, err := svc.Create(ctx, author.ID, &models.CreateDocumentRequest{Code: "SOP-40", Title: "Discard me"})
	require.NoError(t, err)

	// Discarding the only draft of an unapproved document leaves it in draft.
	require.NoError(t, svc.DeleteDraft(ctx, doc.ID, author.ID))
	err = svc.DeleteDraft(ctx, doc.ID, author.ID)
	assert.ErrorIs(t, err, documents.ErrNoDraft)

	_, err = svc.CreateDraft(ctx, doc.ID, author.ID)
	require.NoError(t, err)
	_, err = svc.Submit(ctx, doc.ID, author.ID, &models.SubmitRequest{ReviewerIDs: []uuid.UUID{reviewer.ID}})
	require.NoError(t, err)
	_, err = svc.Approve(ctx, doc.ID, qm.ID, "")
	require.NoError(t, err)

	// Open and discard a revision draft: the head returns to effective.
	_, err = svc.CreateDraft(ctx, doc.ID, author.ID)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteDraft(ctx, doc.ID, author.ID))

	detail, err := svc.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusEffective, detail.Document.Status)
}

func TestDeleteDraftBlockedInReview(t *testing.T) {
	_, svc, ids := setupDocumentsTest(t)
	ctx := context.Background()
	author := newUser(t, ids, "author@example.com", models.RoleEditor)
	reviewer := newUser(t, ids, "reviewer@example.com", models.RoleReviewer)

	doc, err := svc.Create(ctx, author.ID, &models.CreateDocumentRequest{Code: "SOP-45", Title: "Under review"})
	require.NoError(t, err)
	_, err = svc.Submit(ctx, doc.ID, author.ID, &models.SubmitRequest{ReviewerIDs: []uuid.UUID{reviewer.ID}})
	require.NoError(t, err)

	// A submitted draft is frozen: it leaves review via approve or reject,
	// never by deletion.
	err = svc.DeleteDraft(ctx, doc.ID, author.ID)
	assert.ErrorIs(t, err, documents.ErrDraftInReview)

	detail, err := svc.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusInReview, detail.Document.Status)
	require.NotNil(t, detail.Draft)

	// The review can still conclude normally.
	require.NoError(t, svc.Reject(ctx, doc.ID, reviewer.ID, "needs another pass"))
	require.NoError(t, svc.DeleteDraft(ctx, doc.ID, author.ID))
}

func TestReject(t *testing.T) {
	_, svc, ids := setupDocumentsTest(t)
	ctx := context.Background()
	author := newUser(t, ids, "author@example.com", models.RoleEditor)
	reviewer := newUser(t, ids, "reviewer@example.com", models.RoleReviewer)

	doc, err := svc.Create(ctx, author.ID, &models.CreateDocumentRequest{Code: "SOP-50", Title: "Rejected"})
	require.NoError(t, err)
	_, err = svc.Submit(ctx, doc.ID, author.ID, &models.SubmitRequest{ReviewerIDs: []uuid.UUID{reviewer.ID}})
	require.NoError(t, err)

	// A rejection without a note helps nobody.
	err = svc.Reject(ctx, doc.ID, reviewer.ID, "   ")
	assert.ErrorIs(t, err, documents.ErrEvidenceIncomplete)

	require.NoError(t, svc.Reject(ctx, doc.ID, reviewer.ID, "section 2 contradicts SOP-1"))

	detail, err := svc.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusDraft, detail.Document.Status)
	require.NotNil(t, detail.Draft)
	assert.Equal(t, models.DraftStatusEditing, detail.Draft.Status, "draft reopens for editing")

	// Rejecting twice is a conflict.
	err = svc.Reject(ctx, doc.ID, reviewer.ID, "again")
	assert.ErrorIs(t, err, documents.ErrNotInReview)
}

func TestRetire(t *testing.T) {
	_, svc, ids := setupDocumentsTest(t)
	ctx := context.Background()
	author := newUser(t, ids, "author@example.com", models.RoleEditor)
	reviewer := newUser(t, ids, "reviewer@example.com", models.RoleReviewer)
	qm := newUser(t, ids, "qm@example.com", models.RoleQualityManager)

	doc, err := svc.Create(ctx, author.ID, &models.CreateDocumentRequest{Code: "SOP-60", Title: "Retire me"})
	require.NoError(t, err)

	// Only effective documents can retire.
	err = svc.Retire(ctx, doc.ID, qm.ID)
	assert.ErrorIs(t, err, documents.ErrNotEffective)

	_, err = svc.Submit(ctx, doc.ID, author.ID, &models.SubmitRequest{ReviewerIDs: []uuid.UUID{reviewer.ID}})
	require.NoError(t, err)
	v1, err := svc.Approve(ctx, doc.ID, qm.ID, "")
	require.NoError(t, err)

	require.NoError(t, svc.Retire(ctx, doc.ID, qm.ID))

	detail, err := svc.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusRetired, detail.Document.Status)

	retired, err := svc.GetVersion(ctx, v1.ID)
	require.NoError(t, err)
	assert.NotNil(t, retired.SupersededAt, "retired content leaves circulation")
}

func TestTransitionAudit(t *testing.T) {
	_, svc, ids := setupDocumentsTest(t)
	ctx := context.Background()
	author := newUser(t, ids, "author@example.com", models.RoleEditor)
	reviewer := newUser(t, ids, "reviewer@example.com", models.RoleReviewer)
	qm := newUser(t, ids, "qm@example.com", models.RoleQualityManager)

	doc, err := svc.Create(ctx, author.ID, &models.CreateDocumentRequest{Code: "SOP-70", Title: "Audited"})
	require.NoError(t, err)
	_, err = svc.Submit(ctx, doc.ID, author.ID, &models.SubmitRequest{ReviewerIDs: []uuid.UUID{reviewer.ID}})
	require.NoError(t, err)
	_, err = svc.Approve(ctx, doc.ID, qm.ID, "")
	require.NoError(t, err)

	transitions, total, err := svc.Transitions(ctx, doc.ID, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, transitions, 2)

	for _, row := range transitions {
		assert.Equal(t, doc.ID, row.DocumentID)
		assert.NotEqual(t, uuid.Nil, row.ActorID)
	}

	_, _, err = svc.Transitions(ctx, uuid.New(), 20, 0)
	assert.ErrorIs(t, err, documents.ErrNotFound)
}
