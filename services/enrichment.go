package services

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/codessneha/SciScope/models"
)

type enrichmentJob struct {
	paperID  uint
	abstract string
}

// EnrichmentWorker erzeugt Embeddings für neu angelegte Paper, entkoppelt vom
// Request-Lebenszyklus. Der auslösende Request wartet nie auf das Ergebnis;
// Fehler werden nur geloggt und das Paper bleibt ohne embedding_id.
type EnrichmentWorker struct {
	DB     *gorm.DB
	ML     InferenceClient
	Logger *zap.Logger

	// Failures zählt fehlgeschlagene Embedding-Versuche; darf nil sein.
	Failures prometheus.Counter

	jobs chan enrichmentJob
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

// NewEnrichmentWorker erstellt einen neuen Worker mit begrenzter Queue.
func NewEnrichmentWorker(db *gorm.DB, ml InferenceClient, logger *zap.Logger, queueSize int) *EnrichmentWorker {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &EnrichmentWorker{
		DB:     db,
		ML:     ml,
		Logger: logger,
		jobs:   make(chan enrichmentJob, queueSize),
	}
}

// Start startet die Worker-Goroutine.
func (w *EnrichmentWorker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for job := range w.jobs {
			w.process(job)
		}
	}()
}

// Stop schließt die Queue und wartet auf laufende Jobs. Spätere Enqueues
// werden verworfen statt auf den geschlossenen Channel zu laufen.
func (w *EnrichmentWorker) Stop() {
	w.once.Do(func() {
		w.mu.Lock()
		w.closed = true
		w.mu.Unlock()
		close(w.jobs)
	})
	w.wg.Wait()
}

// Enqueue plant die Anreicherung eines Papers ein, ohne zu blockieren. Bei
// voller Queue wird der Job verworfen; der Cron-Requeue holt ihn später nach.
func (w *EnrichmentWorker) Enqueue(paperID uint, abstract string) bool {
	if abstract == "" {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false
	}

	select {
	case w.jobs <- enrichmentJob{paperID: paperID, abstract: abstract}:
		return true
	default:
		w.Logger.Warn("Enrichment-Queue voll, Job verworfen", zap.Uint("paper_id", paperID))
		return false
	}
}

// RequeueMissing plant Paper ohne Embedding erneut ein; läuft per Cron.
func (w *EnrichmentWorker) RequeueMissing(limit int) int {
	var papers []models.Paper
	if err := w.DB.
		Where("embedding_id = '' AND abstract <> ''").
		Order("created_at asc").
		Limit(limit).
		Find(&papers).Error; err != nil {
		w.Logger.Error("Requeue fehlender Embeddings fehlgeschlagen", zap.Error(err))
		return 0
	}

	queued := 0
	for i := range papers {
		if w.Enqueue(papers[i].ID, papers[i].Abstract) {
			queued++
		}
	}
	if queued > 0 {
		w.Logger.Info("Paper ohne Embedding erneut eingeplant", zap.Int("queued", queued))
	}
	return queued
}

func (w *EnrichmentWorker) process(job enrichmentJob) {
	log := w.Logger.With(zap.Uint("paper_id", job.paperID))

	embeddingID, err := w.ML.GenerateEmbedding(context.Background(), job.paperID, job.abstract)
	if err != nil {
		log.Error("Embedding-Erzeugung fehlgeschlagen", zap.Error(err))
		if w.Failures != nil {
			w.Failures.Inc()
		}
		return
	}

	if err := w.DB.Model(&models.Paper{}).
		Where("id = ?", job.paperID).
		Update("embedding_id", embeddingID).Error; err != nil {
		log.Error("Konnte embedding_id nicht speichern", zap.Error(err))
		return
	}

	log.Info("Paper angereichert", zap.String("embedding_id", embeddingID))
}
