package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort string `envconfig:"HTTP_PORT" default:"5000"`

	// JWT für Registrierung/Login; die eigentliche Token-Prüfung bleibt eine
	// dünne Middleware-Schicht.
	JWTSecret   string        `envconfig:"JWT_SECRET" required:"true"`
	JWTLifetime time.Duration `envconfig:"JWT_LIFETIME" default:"720h"`

	// ML-Service (Embeddings, RAG-Antworten, Graph-Extraktion)
	MLServiceURL     string        `envconfig:"ML_SERVICE_URL" default:"http://localhost:8000"`
	MLServiceTimeout time.Duration `envconfig:"ML_SERVICE_TIMEOUT" default:"120s"`

	// Externe Paper-Kataloge
	ArxivBaseURL           string        `envconfig:"ARXIV_BASE_URL" default:"http://export.arxiv.org/api/query"`
	SemanticScholarBaseURL string        `envconfig:"SEMANTIC_SCHOLAR_BASE_URL" default:"https://api.semanticscholar.org/graph/v1"`
	SemanticScholarAPIKey  string        `envconfig:"SEMANTIC_SCHOLAR_API_KEY"`
	ProviderTimeout        time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"30s"`

	// Enrichment-Worker
	EnrichmentQueueSize int    `envconfig:"ENRICHMENT_QUEUE_SIZE" default:"256"`
	EnrichmentCron      string `envconfig:"ENRICHMENT_CRON" default:"*/15 * * * *"`

	// S3-Archiv für Paper-PDFs
	ArchiveEnabled  bool   `envconfig:"ARCHIVE_ENABLED" default:"false"`
	ArchiveS3Key    string `envconfig:"ARCHIVE_S3_KEY"`
	ArchiveS3Secret string `envconfig:"ARCHIVE_S3_SECRET"`
	ArchiveS3URL    string `envconfig:"ARCHIVE_S3_URL"`
	ArchiveS3Region string `envconfig:"ARCHIVE_S3_REGION"`
	ArchiveS3Bucket string `envconfig:"ARCHIVE_S3_BUCKET"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
