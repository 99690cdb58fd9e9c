package translations_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mpalomaki/nick/internal/database"
	"github.com/mpalomaki/nick/internal/translations"
	"github.com/mpalomaki/nick/pkg/models"
)

func setupTranslationsTest(t *testing.T) (*gorm.DB, translations.TranslationService) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to open in-memory sqlite DB")
	require.NoError(t, database.Migrate(db), "failed to migrate models")

	svc, err := translations.NewService(zap.NewNop(), db)
	require.NoError(t, err)

	for _, lang := range []models.Language{
		{Code: "en", Name: "English", Enabled: true},
		{Code: "fi", Name: "Finnish", Enabled: true},
		{Code: "sv", Name: "Swedish", Enabled: false},
	} {
		require.NoError(t, db.Create(&lang).Error)
	}
	return db, svc
}

func seedDoc(t *testing.T, db *gorm.DB, code string) *models.Document {
	doc := &models.Document{
		ID:      uuid.New(),
		Code:    code,
		Title:   code,
		OwnerID: uuid.New(),
		Status:  models.DocumentStatusEffective,
	}
	require.NoError(t, db.Create(doc).Error)
	return doc
}

func TestListLanguages(t *testing.T) {
	_, svc := setupTranslationsTest(t)

	languages, err := svc.ListLanguages(context.Background())
	require.NoError(t, err)
	require.Len(t, languages, 2, "disabled languages stay out of the catalog")
	assert.Equal(t, "en", languages[0].Code)
	assert.Equal(t, "fi", languages[1].Code)
}

func TestLinkItem(t *testing.T) {
	db, svc := setupTranslationsTest(t)
	ctx := context.Background()

	group, err := svc.CreateGroup(ctx, &models.CreateGroupRequest{CanonicalCode: "SOP-1"})
	require.NoError(t, err)

	en := seedDoc(t, db, "SOP-1")
	fi := seedDoc(t, db, "SOP-1-FI")

	item, err := svc.LinkItem(ctx, group.ID, &models.LinkTranslationRequest{LanguageCode: "en", DocumentID: en.ID})
	require.NoError(t, err)
	assert.Equal(t, "en", item.LanguageCode)

	// One document per language slot.
	_, err = svc.LinkItem(ctx, group.ID, &models.LinkTranslationRequest{LanguageCode: "en", DocumentID: fi.ID})
	assert.ErrorIs(t, err, translations.ErrSlotTaken)

	// One group per document.
	other, err := svc.CreateGroup(ctx, &models.CreateGroupRequest{CanonicalCode: "SOP-2"})
	require.NoError(t, err)
	_, err = svc.LinkItem(ctx, other.ID, &models.LinkTranslationRequest{LanguageCode: "en", DocumentID: en.ID})
	assert.ErrorIs(t, err, translations.ErrAlreadyGrouped)

	// Unknown and disabled languages are rejected alike.
	_, err = svc.LinkItem(ctx, group.ID, &models.LinkTranslationRequest{LanguageCode: "de", DocumentID: fi.ID})
	assert.ErrorIs(t, err, translations.ErrUnknownLanguage)
	_, err = svc.LinkItem(ctx, group.ID, &models.LinkTranslationRequest{LanguageCode: "sv", DocumentID: fi.ID})
	assert.ErrorIs(t, err, translations.ErrUnknownLanguage)

	_, err = svc.LinkItem(ctx, group.ID, &models.LinkTranslationRequest{LanguageCode: "fi", DocumentID: uuid.New()})
	assert.ErrorIs(t, err, translations.ErrDocumentNotFound)

	_, err = svc.LinkItem(ctx, uuid.New(), &models.LinkTranslationRequest{LanguageCode: "fi", DocumentID: fi.ID})
	assert.ErrorIs(t, err, translations.ErrGroupNotFound)
}

func TestGetGroup(t *testing.T) {
	db, svc := setupTranslationsTest(t)
	ctx := context.Background()

	group, err := svc.CreateGroup(ctx, &models.CreateGroupRequest{CanonicalCode: "SOP-1"})
	require.NoError(t, err)
	en := seedDoc(t, db, "SOP-1")
	fi := seedDoc(t, db, "SOP-1-FI")
	_, err = svc.LinkItem(ctx, group.ID, &models.LinkTranslationRequest{LanguageCode: "fi", DocumentID: fi.ID})
	require.NoError(t, err)
	_, err = svc.LinkItem(ctx, group.ID, &models.LinkTranslationRequest{LanguageCode: "en", DocumentID: en.ID})
	require.NoError(t, err)

	detail, err := svc.GetGroup(ctx, group.ID)
	require.NoError(t, err)
	require.Len(t, detail.Items, 2)
	assert.Equal(t, "en", detail.Items[0].Item.LanguageCode, "entries sort by language")
	assert.Equal(t, en.ID, detail.Items[0].Document.ID)

	_, err = svc.GetGroup(ctx, uuid.New())
	assert.ErrorIs(t, err, translations.ErrGroupNotFound)
}

func TestListGroupsLanguageGaps(t *testing.T) {
	db, svc := setupTranslationsTest(t)
	ctx := context.Background()

	full, err := svc.CreateGroup(ctx, &models.CreateGroupRequest{CanonicalCode: "SOP-1"})
	require.NoError(t, err)
	gap, err := svc.CreateGroup(ctx, &models.CreateGroupRequest{CanonicalCode: "SOP-2"})
	require.NoError(t, err)

	_, err = svc.LinkItem(ctx, full.ID, &models.LinkTranslationRequest{LanguageCode: "fi", DocumentID: seedDoc(t, db, "SOP-1-FI").ID})
	require.NoError(t, err)
	_, err = svc.LinkItem(ctx, gap.ID, &models.LinkTranslationRequest{LanguageCode: "en", DocumentID: seedDoc(t, db, "SOP-2").ID})
	require.NoError(t, err)

	groups, total, err := svc.ListGroups(ctx, translations.GroupFilter{Language: "fi"}, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, groups, 2)
	require.NotNil(t, groups[0].HasLanguage)
	assert.True(t, *groups[0].HasLanguage, "SOP-1 covers Finnish")
	assert.False(t, *groups[1].HasLanguage, "SOP-2 does not")

	// MissingOnly narrows the listing to the gaps.
	groups, total, err = svc.ListGroups(ctx, translations.GroupFilter{Language: "fi", MissingOnly: true}, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, groups, 1)
	assert.Equal(t, gap.ID, groups[0].Group.ID)
}

func TestUnlinkItem(t *testing.T) {
	db, svc := setupTranslationsTest(t)
	ctx := context.Background()

	group, err := svc.CreateGroup(ctx, &models.CreateGroupRequest{CanonicalCode: "SOP-1"})
	require.NoError(t, err)
	_, err = svc.LinkItem(ctx, group.ID, &models.LinkTranslationRequest{LanguageCode: "en", DocumentID: seedDoc(t, db, "SOP-1").ID})
	require.NoError(t, err)
	_, err = svc.LinkItem(ctx, group.ID, &models.LinkTranslationRequest{LanguageCode: "fi", DocumentID: seedDoc(t, db, "SOP-1-FI").ID})
	require.NoError(t, err)

	require.NoError(t, svc.UnlinkItem(ctx, group.ID, "en"))
	detail, err := svc.GetGroup(ctx, group.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Items, 1)

	err = svc.UnlinkItem(ctx, group.ID, "en")
	assert.ErrorIs(t, err, translations.ErrItemNotFound)

	// Removing the last entry removes the group itself.
	require.NoError(t, svc.UnlinkItem(ctx, group.ID, "fi"))
	_, err = svc.GetGroup(ctx, group.ID)
	assert.ErrorIs(t, err, translations.ErrGroupNotFound)
}
