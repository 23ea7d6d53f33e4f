package main

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
)

// BackupConfig liest seine Werte direkt aus der Umgebung; der Backup-Job
// läuft als eigener Container ohne die restliche App-Konfiguration.
type BackupConfig struct {
	PostgresHost     string `envconfig:"POSTGRES_HOST" required:"true"`
	PostgresUser     string `envconfig:"POSTGRES_USER" required:"true"`
	PostgresPassword string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	PostgresDB       string `envconfig:"POSTGRES_DB" required:"true"`

	Bucket    string `envconfig:"BACKUP_S3_BUCKET" required:"true"`
	Endpoint  string `envconfig:"BACKUP_S3_ENDPOINT" required:"true"`
	AccessKey string `envconfig:"BACKUP_S3_ACCESS_KEY" required:"true"`
	SecretKey string `envconfig:"BACKUP_S3_SECRET_KEY" required:"true"`
	Region    string `envconfig:"BACKUP_S3_REGION" required:"true"`

	// Prefix trennt die Dumps von den archivierten Paper-PDFs, falls beide
	// im selben Bucket liegen.
	Prefix      string        `envconfig:"BACKUP_S3_PREFIX" default:"db/"`
	KeepBackups int           `envconfig:"KEEP_BACKUPS" default:"7"`
	Timeout     time.Duration `envconfig:"BACKUP_TIMEOUT" default:"10m"`
}

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "can't initialize zap logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Fatal("Backup fehlgeschlagen", zap.Error(err))
	}
	log.Info("Backup erfolgreich abgeschlossen.")
}

func run(log *zap.Logger) error {
	var cfg BackupConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	log.Info("Starte Datenbank-Backup", zap.String("database", cfg.PostgresDB))
	dump, err := dumpDatabase(ctx, cfg)
	if err != nil {
		return fmt.Errorf("pg_dump: %w", err)
	}
	log.Info("Dump erstellt", zap.Int("compressed_bytes", len(dump)))

	client, err := newS3Client(ctx, cfg)
	if err != nil {
		return fmt.Errorf("s3 client: %w", err)
	}

	key := fmt.Sprintf("%ssciscope-%s.sql.gz", cfg.Prefix, time.Now().UTC().Format("2006-01-02T15-04-05Z"))
	if _, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(cfg.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(dump),
	}); err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	log.Info("Backup hochgeladen",
		zap.String("bucket", cfg.Bucket),
		zap.String("key", key))

	return pruneOldBackups(ctx, client, cfg, log)
}

// dumpDatabase streamt pg_dump direkt durch gzip in den Speicher.
func dumpDatabase(ctx context.Context, cfg BackupConfig) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "pg_dump",
		"-h", cfg.PostgresHost,
		"-U", cfg.PostgresUser,
		"-d", cfg.PostgresDB,
		"-w", // Passwort kommt über PGPASSWORD
	)
	cmd.Env = append(os.Environ(), "PGPASSWORD="+cfg.PostgresPassword)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := io.Copy(zw, stdout); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	if err := cmd.Wait(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func newS3Client(ctx context.Context, cfg BackupConfig) (*s3.Client, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{URL: cfg.Endpoint}, nil
		})

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		awsconfig.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(awsCfg), nil
}

// pruneOldBackups behält die jüngsten KeepBackups Dumps unter dem Prefix und
// löscht den Rest. Objekte außerhalb des Prefix bleiben unangetastet.
func pruneOldBackups(ctx context.Context, client *s3.Client, cfg BackupConfig, log *zap.Logger) error {
	listed, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(cfg.Bucket),
		Prefix: aws.String(cfg.Prefix),
	})
	if err != nil {
		return fmt.Errorf("list backups: %w", err)
	}

	if len(listed.Contents) <= cfg.KeepBackups {
		log.Info("Keine Rotation nötig",
			zap.Int("backups", len(listed.Contents)),
			zap.Int("keep", cfg.KeepBackups))
		return nil
	}

	sort.Slice(listed.Contents, func(i, j int) bool {
		return listed.Contents[i].LastModified.After(*listed.Contents[j].LastModified)
	})

	for _, obj := range listed.Contents[cfg.KeepBackups:] {
		log.Info("Lösche altes Backup", zap.String("key", *obj.Key))
		if _, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(cfg.Bucket),
			Key:    obj.Key,
		}); err != nil {
			log.Warn("Konnte Backup nicht löschen",
				zap.String("key", *obj.Key), zap.Error(err))
		}
	}
	return nil
}
