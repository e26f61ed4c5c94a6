package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DylanDHubert/edu-sub002/internal/api/handlers"
	"github.com/DylanDHubert/edu-sub002/internal/config"
	"github.com/DylanDHubert/edu-sub002/internal/database"
	"github.com/DylanDHubert/edu-sub002/internal/jobs"
	"github.com/DylanDHubert/edu-sub002/internal/openai"
	"github.com/DylanDHubert/edu-sub002/internal/parser"
	"github.com/DylanDHubert/edu-sub002/internal/repository"
	"github.com/DylanDHubert/edu-sub002/internal/server"
	"github.com/DylanDHubert/edu-sub002/internal/service"
	"github.com/DylanDHubert/edu-sub002/internal/storage"
	"github.com/DylanDHubert/edu-sub002/internal/telemetry"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the document ingestion API server and the background ingestion worker",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Bool("no-worker", false, "Serve the API without the background ingestion worker")

	return cmd
}

// pipeline bundles the wired services shared by the serve and worker
// commands.
type pipeline struct {
	pool      *pgxpool.Pool
	ingestion *service.IngestionService
	status    *service.StatusService
	download  *service.DownloadService
	search    *service.SearchService
	citations *service.CitationService
	worker    *jobs.IngestionWorker
}

func (p *pipeline) Close() {
	p.pool.Close()
}

// buildPipeline wires repositories, clients, and services from config. All
// three external dependencies (database, storage, provider or OpenAI) are
// required; the pipeline is not useful degraded.
func buildPipeline(ctx context.Context, cfg *config.Config) (*pipeline, error) {
	var missing []string
	if !cfg.HasS3() {
		missing = append(missing, "S3_ENDPOINT/S3_ACCESS_KEY_ID/S3_SECRET_ACCESS_KEY")
	}
	if !cfg.HasOpenAI() {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if !cfg.HasParser() {
		missing = append(missing, "PARSER_API_URL/PARSER_API_TOKEN")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required configuration: %v", missing)
	}

	pool, err := database.NewPool(ctx, database.Config{
		URL:      cfg.DatabaseURL,
		MaxConns: 10,
		MinConns: 2,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Println("connected to database")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
	}
	log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)

	openaiClient := openai.NewClient(cfg.OpenAIAPIKey)
	parserClient := parser.NewClient(parser.Config{
		BaseURL: cfg.ParserAPIURL,
		Token:   cfg.ParserAPIToken,
	})

	docRepo := repository.NewDocumentRepository(pool)
	jobRepo := repository.NewIngestionJobRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	vectorizer := service.NewVectorizeService(openaiClient, txRunner)
	marker := service.NewPageMarkerProcessor()
	ingestionSvc := service.NewIngestionService(
		docRepo, jobRepo, txRunner,
		parserClient, s3Client, openaiClient,
		vectorizer, marker,
	)

	return &pipeline{
		pool:      pool,
		ingestion: ingestionSvc,
		status:    service.NewStatusService(docRepo, jobRepo),
		download:  service.NewDownloadService(docRepo, s3Client),
		search:    service.NewSearchService(openaiClient, chunkRepo),
		citations: service.NewCitationService(docRepo),
		worker:    jobs.NewIngestionWorker(jobRepo, ingestionSvc, cfg.WorkerBatchSize),
	}, nil
}

func initTelemetry() func() {
	dsn := os.Getenv("SENTRY_DSN")
	if dsn == "" {
		return func() {}
	}

	environment := os.Getenv("ENVIRONMENT")
	if environment == "" {
		environment = "development"
	}

	// Default to 10% sampling in production, 100% in development
	sampleRate := 0.1
	if environment == "development" {
		sampleRate = 1.0
	}

	shutdown, err := telemetry.Init(telemetry.Config{
		DSN:              dsn,
		Environment:      environment,
		TracesSampleRate: sampleRate,
	})
	if err != nil {
		log.Printf("telemetry init failed (continuing without tracing): %v", err)
		return func() {}
	}
	return shutdown
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	shutdownTelemetry := initTelemetry()
	defer shutdownTelemetry()

	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetString("port")
	}

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	pipe, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer pipe.Close()

	var worker *jobs.Worker
	noWorker, _ := cmd.Flags().GetBool("no-worker")
	if !noWorker {
		worker = jobs.NewWorker(pipe.worker, cfg.WorkerInterval)
		if err := worker.Start(ctx); err != nil {
			return fmt.Errorf("failed to start ingestion worker: %w", err)
		}
		log.Println("ingestion worker started")
	}

	router := server.NewRouter(server.RouterConfig{
		DocumentHandler: handlers.NewDocumentHandler(pipe.ingestion, pipe.status, pipe.download),
		SearchHandler:   handlers.NewSearchHandler(pipe.search),
		CitationHandler: handlers.NewCitationHandler(pipe.citations, service.NewAnswerCache(service.DefaultAnswerCacheConfig())),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if worker != nil {
		worker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

func runMigrations(databaseURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	// Create postgres driver instance
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	// Create migrate instance with file source
	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	// Run migrations
	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Get migration version and status
	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
