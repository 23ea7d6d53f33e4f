package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/codessneha/SciScope/config"
	"github.com/codessneha/SciScope/models"
)

func TestArchiveWithoutPDFLinkMarksPaper(t *testing.T) {
	db := testDB(t)
	user := testUser(t, db, "alice@example.com", models.RoleUser)
	paper := testPaper(t, db, "No PDF", "Abstract.", user)

	svc := NewArchiveService(&config.Config{}, db, nil, zap.NewNop())
	require.NoError(t, svc.Archive(context.Background(), paper.ID))

	var reloaded models.Paper
	require.NoError(t, db.First(&reloaded, paper.ID).Error)
	assert.True(t, reloaded.NoPDFFound)
	assert.False(t, reloaded.CloudStored)
}

func TestArchiveSkipsAlreadyStoredPaper(t *testing.T) {
	db := testDB(t)
	user := testUser(t, db, "alice@example.com", models.RoleUser)
	paper := testPaper(t, db, "Stored", "Abstract.", user)
	require.NoError(t, db.Model(paper).Update("cloud_stored", true).Error)

	// S3-Client ist nil; würde der Upload laufen, käme es zum Panic.
	svc := NewArchiveService(&config.Config{}, db, nil, zap.NewNop())
	require.NoError(t, svc.Archive(context.Background(), paper.ID))
}

func TestDownloadPDFRejectsNonPDFContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>not a pdf</html>"))
	}))
	t.Cleanup(server.Close)

	svc := NewArchiveService(&config.Config{}, testDB(t), nil, zap.NewNop())
	_, err := svc.downloadPDF(context.Background(), server.URL+"/paper")
	assert.Error(t, err)
}

func TestDownloadPDFAcceptsPDFContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.7"))
	}))
	t.Cleanup(server.Close)

	svc := NewArchiveService(&config.Config{}, testDB(t), nil, zap.NewNop())
	data, err := svc.downloadPDF(context.Background(), server.URL+"/paper")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7"), data)
}
