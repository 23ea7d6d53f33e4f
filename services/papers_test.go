package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/codessneha/SciScope/models"
	"github.com/codessneha/SciScope/providers"
)

func newPaperService(t *testing.T, provs ...providers.Provider) (*PaperService, *models.User) {
	t.Helper()
	db := testDB(t)
	user := testUser(t, db, "alice@example.com", models.RoleUser)
	return NewPaperService(db, zap.NewNop(), provs, &fakeML{}, nil), user
}

func TestUpsertCreatesAndDeduplicates(t *testing.T) {
	svc, user := newPaperService(t)

	candidate := &models.Paper{
		Title:    "Attention Is All You Need",
		Abstract: "We propose the Transformer.",
		ArxivID:  strPtr("1706.03762"),
		Source:   models.SourceArxiv,
	}
	created, wasNew, err := svc.Upsert(candidate, user)
	require.NoError(t, err)
	assert.True(t, wasNew)
	require.NotNil(t, created.AddedBy)
	assert.Equal(t, user.ID, *created.AddedBy)

	// Zweiter Upsert derselben externen ID darf nichts überschreiben.
	again, wasNew, err := svc.Upsert(&models.Paper{
		Title:   "A different title for the same paper",
		ArxivID: strPtr("1706.03762"),
		Source:  models.SourceArxiv,
	}, user)
	require.NoError(t, err)
	assert.False(t, wasNew)
	assert.Equal(t, created.ID, again.ID)
	assert.Equal(t, "Attention Is All You Need", again.Title)

	var count int64
	require.NoError(t, svc.DB.Model(&models.Paper{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestUpsertAcrossSourcesKeepsSeparateRecords(t *testing.T) {
	svc, user := newPaperService(t)

	_, wasNew, err := svc.Upsert(&models.Paper{
		Title:   "Paper A",
		ArxivID: strPtr("2401.00001"),
		Source:  models.SourceArxiv,
	}, user)
	require.NoError(t, err)
	assert.True(t, wasNew)

	// Gleicher Titel, aber andere Quelle mit eigener ID: kein Duplikat.
	_, wasNew, err = svc.Upsert(&models.Paper{
		Title:             "Paper A",
		SemanticScholarID: strPtr("abc123"),
		Source:            models.SourceSemanticScholar,
	}, user)
	require.NoError(t, err)
	assert.True(t, wasNew)
}

func TestUpsertMatchesEitherExternalID(t *testing.T) {
	svc, user := newPaperService(t)

	existing := &models.Paper{
		Title:             "Known via Semantic Scholar",
		SemanticScholarID: strPtr("SS-1"),
		Source:            models.SourceSemanticScholar,
	}
	require.NoError(t, svc.DB.Create(existing).Error)

	// Kandidat trägt beide IDs; bekannt ist nur die Semantic-Scholar-ID.
	got, wasNew, err := svc.Upsert(&models.Paper{
		Title:             "Same paper, now with arXiv id",
		ArxivID:           strPtr("2501.00001"),
		SemanticScholarID: strPtr("SS-1"),
		Source:            models.SourceArxiv,
	}, user)
	require.NoError(t, err)
	assert.False(t, wasNew)
	assert.Equal(t, existing.ID, got.ID)
	assert.Equal(t, "Known via Semantic Scholar", got.Title)

	var count int64
	require.NoError(t, svc.DB.Model(&models.Paper{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestUpsertSurvivesLostInsertRace(t *testing.T) {
	svc, user := newPaperService(t)

	// Der "Gewinner" legt den Datensatz zwischen Lookup und Insert an, so
	// dass das Insert deterministisch an der Uniqueness scheitert.
	var raced bool
	require.NoError(t, svc.DB.Callback().Create().Before("gorm:create").
		Register("race_winner", func(tx *gorm.DB) {
			if raced {
				return
			}
			if _, ok := tx.Statement.Dest.(*models.Paper); !ok {
				return
			}
			raced = true
			winner := models.Paper{
				Title:   "Winner",
				ArxivID: strPtr("2501.99999"),
				Source:  models.SourceArxiv,
			}
			require.NoError(t, svc.DB.Create(&winner).Error)
		}))

	got, wasNew, err := svc.Upsert(&models.Paper{
		Title:   "Loser",
		ArxivID: strPtr("2501.99999"),
		Source:  models.SourceArxiv,
	}, user)
	require.NoError(t, err)
	assert.False(t, wasNew)
	assert.Equal(t, "Winner", got.Title)

	var count int64
	require.NoError(t, svc.DB.Model(&models.Paper{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestUpsertRequiresExternalID(t *testing.T) {
	svc, user := newPaperService(t)

	_, _, err := svc.Upsert(&models.Paper{Title: "No IDs"}, user)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestFetchByExternalIDPrefersLocalRecord(t *testing.T) {
	provider := &stubProvider{name: models.SourceArxiv}
	svc, user := newPaperService(t, provider)

	local := testPaper(t, svc.DB, "Local Paper", "Already stored.", user)

	got, wasNew, err := svc.FetchByExternalID(context.Background(), models.SourceArxiv, *local.ArxivID, user)
	require.NoError(t, err)
	assert.False(t, wasNew)
	assert.Equal(t, local.ID, got.ID)
}

func TestFetchByExternalIDImportsFromProvider(t *testing.T) {
	provider := &stubProvider{
		name: models.SourceArxiv,
		paper: &models.Paper{
			Title:    "Fresh From arXiv",
			Abstract: "Catalog copy.",
			ArxivID:  strPtr("2402.11111"),
			Source:   models.SourceArxiv,
		},
	}
	svc, user := newPaperService(t, provider)

	got, wasNew, err := svc.FetchByExternalID(context.Background(), models.SourceArxiv, "2402.11111", user)
	require.NoError(t, err)
	assert.True(t, wasNew)
	assert.NotZero(t, got.ID)
	require.NotNil(t, got.AddedBy)
	assert.Equal(t, user.ID, *got.AddedBy)
}

func TestFetchByExternalIDUnknownID(t *testing.T) {
	provider := &stubProvider{name: models.SourceArxiv} // GetByID liefert (nil, nil)
	svc, user := newPaperService(t, provider)

	_, _, err := svc.FetchByExternalID(context.Background(), models.SourceArxiv, "0000.00000", user)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFetchByExternalIDProviderDown(t *testing.T) {
	provider := &stubProvider{name: models.SourceArxiv, err: errors.New("connection refused")}
	svc, user := newPaperService(t, provider)

	_, _, err := svc.FetchByExternalID(context.Background(), models.SourceArxiv, "2402.11111", user)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestFetchByExternalIDUnknownSource(t *testing.T) {
	svc, user := newPaperService(t)

	_, _, err := svc.FetchByExternalID(context.Background(), "pubmed", "12345", user)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSearchExternalValidation(t *testing.T) {
	provider := &stubProvider{name: models.SourceArxiv}
	svc, _ := newPaperService(t, provider)

	_, err := svc.SearchExternal(context.Background(), models.SourceArxiv, "", 10)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.SearchExternal(context.Background(), "pubmed", "cancer", 10)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPaperOwnership(t *testing.T) {
	svc, owner := newPaperService(t)
	stranger := testUser(t, svc.DB, "bob@example.com", models.RoleUser)
	admin := testUser(t, svc.DB, "root@example.com", models.RoleAdmin)

	paper := testPaper(t, svc.DB, "Owned Paper", "Abstract.", owner)

	_, err := svc.Update(paper.ID, stranger, map[string]any{"title": "Hijacked"})
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.ErrorIs(t, svc.Delete(paper.ID, stranger), ErrUnauthorized)

	updated, err := svc.Update(paper.ID, admin, map[string]any{"title": "Renamed by admin"})
	require.NoError(t, err)
	assert.Equal(t, "Renamed by admin", updated.Title)

	require.NoError(t, svc.Delete(paper.ID, owner))
	_, err = svc.Get(paper.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListPaginates(t *testing.T) {
	svc, user := newPaperService(t)
	for i := 0; i < 5; i++ {
		testPaper(t, svc.DB, "Paper", "Abstract.", user)
	}

	page, total, err := svc.List(1, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	assert.Len(t, page, 2)

	last, total, err := svc.List(3, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	assert.Len(t, last, 1)
}
