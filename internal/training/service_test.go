package training_test

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
	"github.com/mpalomaki/nick/internal/training"
	"github.com/mpalomaki/nick/pkg/models"
)

func setupTrainingTest(t *testing.T) (*gorm.DB, training.TrainingService) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to open in-memory sqlite DB")
	require.NoError(t, database.Migrate(db), "failed to migrate models")

	svc, err := training.NewService(zap.NewNop(), db)
	require.NoError(t, err)
	return db, svc
}

// seedEffectiveVersion inserts a document with one effective version and
// returns both.
func seedEffectiveVersion(t *testing.T, db *gorm.DB) (*models.Document, *models.DocumentVersion) {
	version := &models.DocumentVersion{
		ID:          uuid.New(),
		DocumentID:  uuid.New(),
		VersionNo:   1,
		Title:       "Working at heights",
		Body:        "<p>Always clip in.</p>",
		ApprovedBy:  uuid.New(),
		EffectiveAt: time.Now().UTC(),
	}
	doc := &models.Document{
		ID:                 version.DocumentID,
		Code:               "SOP-900",
		Title:              version.Title,
		OwnerID:            uuid.New(),
		Status:             models.DocumentStatusEffective,
		EffectiveVersionID: &version.ID,
	}
	require.NoError(t, db.Create(doc).Error)
	require.NoError(t, db.Create(version).Error)
	return doc, version
}

func newScheduledSession(t *testing.T, svc training.TrainingService, versionID uuid.UUID, capacity int) *models.TrainingSession {
	session, err := svc.CreateSession(context.Background(), uuid.New(), &models.CreateSessionRequest{
		DocumentVersionID: versionID,
		Title:             "Safety refresher",
		ScheduledAt:       time.Now().Add(24 * time.Hour),
		Capacity:          capacity,
		ValidityMonths:    12,
	})
	require.NoError(t, err)
	return session
}

func TestCreateSessionRequiresEffectiveVersion(t *testing.T) {
	db, svc := setupTrainingTest(t)
	ctx := context.Background()
	_, version := seedEffectiveVersion(t, db)

	session := newScheduledSession(t, svc, version.ID, 10)
	assert.Equal(t, models.SessionStatusScheduled, session.Status)

	// Unknown version.
	_, err := svc.CreateSession(ctx, uuid.New(), &models.CreateSessionRequest{
		DocumentVersionID: uuid.New(),
		Title:             "Ghost session",
		ScheduledAt:       time.Now(),
	})
	assert.ErrorIs(t, err, training.ErrVersionNotEffective)

	// Superseded version.
	now := time.Now().UTC()
	require.NoError(t, db.Model(version).Update("superseded_at", now).Error)
	_, err = svc.CreateSession(ctx, uuid.New(), &models.CreateSessionRequest{
		DocumentVersionID: version.ID,
		Title:             "Stale session",
		ScheduledAt:       time.Now(),
	})
	assert.ErrorIs(t, err, training.ErrVersionNotEffective)
}

func TestEnroll(t *testing.T) {
	db, svc := setupTrainingTest(t)
	ctx := context.Background()
	_, version := seedEffectiveVersion(t, db)
	session := newScheduledSession(t, svc, version.ID, 2)

	alice := uuid.New()
	enrollment, err := svc.Enroll(ctx, session.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusEnrolled, enrollment.Status)

	// Enrolling twice is a conflict.
	_, err = svc.Enroll(ctx, session.ID, alice)
	assert.ErrorIs(t, err, training.ErrAlreadyEnrolled)

	// Capacity is enforced.
	_, err = svc.Enroll(ctx, session.ID, uuid.New())
	require.NoError(t, err)
	_, err = svc.Enroll(ctx, session.ID, uuid.New())
	assert.ErrorIs(t, err, training.ErrCapacityReached)

	_, err = svc.Enroll(ctx, uuid.New(), alice)
	assert.ErrorIs(t, err, training.ErrSessionNotFound)
}

func TestCancelSession(t *testing.T) {
	db, svc := setupTrainingTest(t)
	ctx := context.Background()
	_, version := seedEffectiveVersion(t, db)
	session := newScheduledSession(t, svc, version.ID, 0)

	require.NoError(t, svc.CancelSession(ctx, session.ID, uuid.New()))

	got, _, err := svc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCancelled, got.Status)

	// Cancelled sessions accept no enrollments and no second cancel.
	_, err = svc.Enroll(ctx, session.ID, uuid.New())
	assert.ErrorIs(t, err, training.ErrSessionNotScheduled)
	err = svc.CancelSession(ctx, session.ID, uuid.New())
	assert.ErrorIs(t, err, training.ErrSessionCompleted)

	err = svc.CancelSession(ctx, uuid.New(), uuid.New())
	assert.ErrorIs(t, err, training.ErrSessionNotFound)
}

func TestMarkAttendanceIssuesCertificates(t *testing.T) {
	db, svc := setupTrainingTest(t)
	ctx := context.Background()
	_, version := seedEffectiveVersion(t, db)
	session := newScheduledSession(t, svc, version.ID, 0)

	alice := uuid.New()
	bob := uuid.New()
	_, err := svc.Enroll(ctx, session.ID, alice)
	require.NoError(t, err)
	_, err = svc.Enroll(ctx, session.ID, bob)
	require.NoError(t, err)

	// Attendance for someone who never enrolled fails the whole call.
	_, err = svc.MarkAttendance(ctx, session.ID, session.TrainerID, []uuid.UUID{uuid.New()})
	assert.ErrorIs(t, err, training.ErrNotEnrolled)

	certs, err := svc.MarkAttendance(ctx, session.ID, session.TrainerID, []uuid.UUID{alice})
	require.NoError(t, err)
	require.Len(t, certs, 1)
	assert.Equal(t, alice, certs[0].UserID)
	assert.Equal(t, version.ID, certs[0].DocumentVersionID)
	require.NotNil(t, certs[0].ExpiresAt, "12-month validity sets an expiry")

	got, enrollments, err := svc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCompleted, got.Status)
	byUser := map[uuid.UUID]string{}
	for _, e := range enrollments {
		byUser[e.UserID] = e.Status
	}
	assert.Equal(t, models.EnrollmentStatusAttended, byUser[alice])
	assert.Equal(t, models.EnrollmentStatusNoShow, byUser[bob])

	// A completed session cannot be completed again.
	_, err = svc.MarkAttendance(ctx, session.ID, session.TrainerID, []uuid.UUID{bob})
	assert.ErrorIs(t, err, training.ErrSessionNotScheduled)
}

func TestVerifyCertificate(t *testing.T) {
	db, svc := setupTrainingTest(t)
	ctx := context.Background()
	_, version := seedEffectiveVersion(t, db)
	session := newScheduledSession(t, svc, version.ID, 0)

	alice := uuid.New()
	_, err := svc.Enroll(ctx, session.ID, alice)
	require.NoError(t, err)
	certs, err := svc.MarkAttendance(ctx, session.ID, session.TrainerID, []uuid.UUID{alice})
	require.NoError(t, err)
	require.Len(t, certs, 1)

	// Serial lookup is forgiving about case and whitespace.
	cert, valid, err := svc.VerifyCertificate(ctx, "  "+certs[0].SerialCode+" ")
	require.NoError(t, err)
	assert.True(t, valid)
	assert.Equal(t, certs[0].ID, cert.ID)

	_, _, err = svc.VerifyCertificate(ctx, "NICK-0000-00000000")
	assert.ErrorIs(t, err, training.ErrCertificateNotFound)

	// Expired certificates verify as invalid, not missing.
	past := time.Now().Add(-time.Hour)
	require.NoError(t, db.Model(&models.Certificate{}).Where("id = ?", certs[0].ID).Update("expires_at", past).Error)
	_, valid, err = svc.VerifyCertificate(ctx, certs[0].SerialCode)
	require.NoError(t, err)
	assert.False(t, valid)

	certList, total, err := svc.ListCertificates(ctx, alice, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, certList, 1)
}

func TestConfirmRead(t *testing.T) {
	db, svc := setupTrainingTest(t)
	ctx := context.Background()
	_, version := seedEffectiveVersion(t, db)

	alice := uuid.New()
	confirmation, err := svc.ConfirmRead(ctx, alice, version.ID)
	require.NoError(t, err)
	assert.Equal(t, version.ID, confirmation.DocumentVersionID)

	_, err = svc.ConfirmRead(ctx, alice, version.ID)
	assert.ErrorIs(t, err, training.ErrAlreadyConfirmed)

	_, err = svc.ConfirmRead(ctx, alice, uuid.New())
	assert.ErrorIs(t, err, training.ErrVersionNotEffective)
}

func TestConfirmationStatus(t *testing.T) {
	db, svc := setupTrainingTest(t)
	ctx := context.Background()
	doc, version := seedEffectiveVersion(t, db)

	alice := uuid.New()
	bob := uuid.New()

	// The distribution list lives in the approval transition's evidence.
	require.NoError(t, db.Create(&models.Transition{
		ID:         uuid.New(),
		DocumentID: doc.ID,
		FromStatus: models.DocumentStatusInReview,
		ToStatus:   models.DocumentStatusEffective,
		ActorID:    uuid.New(),
		Evidence: &models.Evidence{
			ReviewerIDs:      []uuid.UUID{uuid.New()},
			DistributionList: []uuid.UUID{alice, bob},
		},
	}).Error)

	_, err := svc.ConfirmRead(ctx, alice, version.ID)
	require.NoError(t, err)

	status, err := svc.ConfirmationStatus(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, version.ID, status.DocumentVersionID)
	assert.Equal(t, []uuid.UUID{alice}, status.Confirmed)
	assert.Equal(t, []uuid.UUID{bob}, status.Pending)

	_, err = svc.ConfirmationStatus(ctx, uuid.New())
	assert.ErrorIs(t, err, training.ErrDocumentNotFound)
}
