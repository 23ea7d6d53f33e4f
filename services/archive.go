package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/codessneha/SciScope/config"
	"github.com/codessneha/SciScope/models"
	"github.com/codessneha/SciScope/storage"
)

// ArchiveService legt Paper-PDFs im S3-Archiv ab. Die Archivierung läuft als
// losgelöster Job nach der Antwort an den Client; ihr Ausgang ist erst beim
// nächsten Lesen des Papers sichtbar.
type ArchiveService struct {
	Config   *config.Config
	DB       *gorm.DB
	S3Client *s3.Client
	Logger   *zap.Logger

	client *http.Client
}

// NewArchiveService erstellt einen neuen ArchiveService.
func NewArchiveService(cfg *config.Config, db *gorm.DB, s3Client *s3.Client, logger *zap.Logger) *ArchiveService {
	return &ArchiveService{
		Config:   cfg,
		DB:       db,
		S3Client: s3Client,
		Logger:   logger,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

// Archive lädt die PDF eines Papers herunter und legt sie im S3-Bucket ab.
// Ohne PDF-Link oder bei Download-Fehlern wird no_pdf_found gesetzt und das
// Paper ansonsten unverändert gelassen.
func (s *ArchiveService) Archive(ctx context.Context, paperID uint) error {
	log := s.Logger.With(zap.Uint("paper_id", paperID))

	var paper models.Paper
	if err := s.DB.First(&paper, paperID).Error; err != nil {
		return fmt.Errorf("paper lookup failed: %w", err)
	}
	if paper.CloudStored {
		log.Debug("Paper bereits archiviert, wird übersprungen.")
		return nil
	}

	if paper.PDFURL == "" {
		log.Warn("Kein PDF-Link vorhanden, Archivierung hier beendet.")
		return s.DB.Model(&paper).Update("no_pdf_found", true).Error
	}

	log.Info("Starte PDF-Download", zap.String("url", paper.PDFURL))
	data, err := s.downloadPDF(ctx, paper.PDFURL)
	if err != nil {
		log.Warn("PDF-Download fehlgeschlagen", zap.Error(err))
		return s.DB.Model(&paper).Update("no_pdf_found", true).Error
	}

	key := fmt.Sprintf("papers/%d.pdf", paper.ID)
	s3link, err := storage.UploadFile(ctx, s.S3Client, s.Config.ArchiveS3Bucket, key, data, s.Config)
	if err != nil {
		log.Error("S3-Upload fehlgeschlagen", zap.Error(err))
		return err
	}

	if err := s.DB.Model(&paper).Updates(map[string]any{
		"s3_link":      s3link,
		"cloud_stored": true,
		"no_pdf_found": false,
	}).Error; err != nil {
		return fmt.Errorf("archive state update failed: %w", err)
	}

	log.Info("PDF erfolgreich archiviert", zap.String("s3_link", s3link))
	return nil
}

// downloadPDF lädt die Ressource und akzeptiert nur PDF-Inhalte.
func (s *ArchiveService) downloadPDF(ctx context.Context, link string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.Contains(contentType, "pdf") && !strings.HasSuffix(strings.ToLower(link), ".pdf") {
		return nil, fmt.Errorf("resource is not a pdf (content-type %q)", contentType)
	}

	return io.ReadAll(resp.Body)
}
