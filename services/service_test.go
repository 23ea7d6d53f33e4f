package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/codessneha/SciScope/inference"
	"github.com/codessneha/SciScope/models"
)

// testDB öffnet eine frische In-Memory-Datenbank pro Test. cache=shared ist
// nötig, damit alle Connections des Pools dieselbe Datenbank sehen.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Paper{},
		&models.ChatSession{},
		&models.Message{},
		&models.KnowledgeGraph{},
	))
	return db
}

func testUser(t *testing.T, db *gorm.DB, email, role string) *models.User {
	t.Helper()
	user := &models.User{Name: "Testuser", Email: email, PasswordHash: "irrelevant", Role: role}
	require.NoError(t, db.Create(user).Error)
	return user
}

var paperSeq uint32

func testPaper(t *testing.T, db *gorm.DB, title, abstract string, addedBy *models.User) *models.Paper {
	t.Helper()
	arxivID := fmt.Sprintf("2401.%05d", atomic.AddUint32(&paperSeq, 1))
	paper := &models.Paper{
		Title:    title,
		Abstract: abstract,
		ArxivID:  &arxivID,
		Source:   models.SourceArxiv,
	}
	if addedBy != nil {
		paper.AddedBy = &addedBy.ID
	}
	require.NoError(t, db.Create(paper).Error)
	return paper
}

func strPtr(s string) *string { return &s }

// fakeML ersetzt den ML-Service in den Tests und zeichnet auf, was die
// Services ihm übergeben.
type fakeML struct {
	embeddingID string
	answer      *inference.Answer
	extraction  *inference.GraphExtraction
	hits        []inference.SearchHit
	err         error

	gotQuestion  string
	gotSummaries []inference.PaperSummary
	calls        int
}

func (f *fakeML) GenerateEmbedding(_ context.Context, _ uint, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.embeddingID, nil
}

func (f *fakeML) GenerateAnswer(_ context.Context, question string, papers []inference.PaperSummary) (*inference.Answer, error) {
	f.calls++
	f.gotQuestion = question
	f.gotSummaries = papers
	if f.err != nil {
		return nil, f.err
	}
	return f.answer, nil
}

func (f *fakeML) ExtractGraph(_ context.Context, papers []inference.PaperSummary) (*inference.GraphExtraction, error) {
	f.calls++
	f.gotSummaries = papers
	if f.err != nil {
		return nil, f.err
	}
	return f.extraction, nil
}

func (f *fakeML) SemanticSearch(_ context.Context, _ string, _ int) ([]inference.SearchHit, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

// stubProvider ist ein Katalog-Adapter mit festen Antworten.
type stubProvider struct {
	name    string
	results []*models.Paper
	paper   *models.Paper
	err     error
}

func (p *stubProvider) Search(_ context.Context, _ string, _ int) ([]*models.Paper, error) {
	return p.results, p.err
}

func (p *stubProvider) GetByID(_ context.Context, _ string) (*models.Paper, error) {
	return p.paper, p.err
}

func (p *stubProvider) Name() string { return p.name }
