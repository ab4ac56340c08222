package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/corpusworks/corpusd/internal/config"
	"github.com/corpusworks/corpusd/internal/converter"
	"github.com/corpusworks/corpusd/internal/database"
	"github.com/corpusworks/corpusd/internal/embedding"
	"github.com/corpusworks/corpusd/internal/repository"
	"github.com/corpusworks/corpusd/internal/service"
	"github.com/corpusworks/corpusd/internal/storage"
)

// app bundles the wired services shared by the serve, ingest, and search
// commands.
type app struct {
	cfg       *config.Config
	pool      *pgxpool.Pool
	chunkRepo *repository.ChunkRepository
	ingestSvc *service.IngestService
	searchSvc *service.SearchService
}

func (a *app) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if !cfg.HasOpenAI() {
		return nil, fmt.Errorf("CORPUS_OPENAI_API_KEY is required")
	}

	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	chunkRepo := repository.NewChunkRepository(pool)
	searchLogRepo := repository.NewSearchLogRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	var objects service.ObjectStore
	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
		})
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		objects = s3Client
	}

	embedder, err := embedding.NewClient(embedding.Config{
		APIKey:         cfg.OpenAIAPIKey,
		BaseURL:        cfg.OpenAIBaseURL,
		Model:          cfg.EmbeddingModel,
		Dimensions:     cfg.EmbeddingDimensions,
		BatchSize:      cfg.EmbeddingBatchSize,
		DocumentPrefix: cfg.DocumentPrefix,
		QueryPrefix:    cfg.QueryPrefix,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}

	chunker, err := service.NewChunker(service.ChunkConfig{
		SizeTokens:    cfg.ChunkSizeTokens,
		OverlapTokens: cfg.ChunkOverlapTokens,
		MinTokens:     cfg.ChunkMinTokens,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create chunker: %w", err)
	}

	fetcher := service.NewFetcher(service.FetcherConfig{
		Timeout:   cfg.FetchTimeout,
		UserAgent: cfg.FetchUserAgent,
		MaxBytes:  cfg.MaxUploadBytes,
	}, objects)

	conv := converter.New(false)

	ingestSvc := service.NewIngestService(chunkRepo, txRunner, fetcher, conv, chunker, embedder, service.IngestConfig{
		DefaultLibrary: cfg.DefaultLibrary,
		MaxConcurrency: cfg.MaxConcurrency,
	})

	searchSvc := service.NewSearchService(chunkRepo, embedder, searchLogRepo, service.SearchConfig{
		RRFConstant:         cfg.RRFConstant,
		CandidateMultiplier: cfg.CandidateMultiplier,
		SemanticWeight:      cfg.SemanticWeight,
		LexicalWeight:       cfg.LexicalWeight,
	})

	return &app{
		cfg:       cfg,
		pool:      pool,
		chunkRepo: chunkRepo,
		ingestSvc: ingestSvc,
		searchSvc: searchSvc,
	}, nil
}

func runMigrations(databaseURL string) error {
	// golang-migrate wants database/sql, not pgx pools
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else {
		log.Printf("migrations: database at version %d", version)
	}

	return nil
}
