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

	"github.com/aifai-labs/aifai/internal/api/handlers"
	"github.com/aifai-labs/aifai/internal/collab"
	"github.com/aifai-labs/aifai/internal/config"
	"github.com/aifai-labs/aifai/internal/database"
	"github.com/aifai-labs/aifai/internal/jobs"
	"github.com/aifai-labs/aifai/internal/quality"
	"github.com/aifai-labs/aifai/internal/repository"
	"github.com/aifai-labs/aifai/internal/search"
	"github.com/aifai-labs/aifai/internal/server"
	"github.com/aifai-labs/aifai/internal/service"
	"github.com/aifai-labs/aifai/internal/telemetry"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the aifai API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		defer shutdownTelemetry()
		log.Println("sentry telemetry initialized")
	}

	pool, err := database.NewPool(ctx, database.Config{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DatabaseMaxConns,
		MinConns: cfg.DatabaseMinConns,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

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

	entryRepo := repository.NewEntryRepository(pool)
	instanceRepo := repository.NewInstanceRepository(pool)

	instanceSvc := service.NewInstanceService(instanceRepo)

	if cfg.InitInstanceName != "" {
		if err := bootstrapInitialInstance(ctx, cfg, instanceRepo, instanceSvc); err != nil {
			return fmt.Errorf("failed to bootstrap initial instance: %w", err)
		}
	}

	dispatcher := jobs.NewDispatcher(jobs.LogSink{}, cfg.NotificationQueueSize)
	go dispatcher.Start(ctx)

	lockManager := collab.NewManager(cfg.EditLockTTL)
	engine := search.NewFallbackEngine()

	entrySvc := service.NewEntryService(entryRepo, engine, lockManager, dispatcher, service.EntryServiceConfig{
		SimilarityWeight: cfg.SimilarityWeight,
		QualityWeight:    cfg.QualityWeight,
		Thresholds: quality.Thresholds{
			MinUsage:       cfg.AutoVerifyMinUsage,
			MinSuccessRate: cfg.AutoVerifyMinSuccessRate,
			MinNetUpvotes:  cfg.AutoVerifyMinNetUpvotes,
			MinScore:       cfg.AutoVerifyMinScore,
		},
	})

	router := server.NewRouter(server.RouterConfig{
		TokenValidator:   instanceSvc,
		KnowledgeHandler: handlers.NewKnowledgeHandler(entrySvc),
		InstanceHandler:  handlers.NewInstanceHandler(instanceSvc),
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

	dispatcher.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// bootstrapInitialInstance registers the configured instance on first start
// so deployments come up with a usable API token.
func bootstrapInitialInstance(ctx context.Context, cfg *config.Config, instanceRepo *repository.InstanceRepository, instanceSvc *service.InstanceService) error {
	if cfg.InitAPIToken == "" {
		return fmt.Errorf("AIFAI_INIT_API_TOKEN is required when AIFAI_INIT_INSTANCE_NAME is set")
	}

	if !service.IsValidAPIToken(cfg.InitAPIToken) {
		return fmt.Errorf("invalid AIFAI_INIT_API_TOKEN format (expected 'afi_<64 hex chars>')")
	}

	existing, err := instanceRepo.GetByTokenHash(ctx, service.HashAPIToken(cfg.InitAPIToken))
	if err == nil && existing != nil {
		log.Printf("bootstrap: instance '%s' already registered (id: %d)", existing.Name, existing.ID)
		return nil
	}

	instance, err := instanceSvc.RegisterWithToken(ctx, cfg.InitInstanceName, cfg.InitAPIToken)
	if err != nil {
		return fmt.Errorf("failed to register instance: %w", err)
	}

	log.Printf("bootstrap: registered instance '%s' (id: %d)", instance.Name, instance.ID)
	return nil
}

func runMigrations(databaseURL string) error {
	// golang-migrate drives a database/sql connection, not the pgx pool
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
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err == migrate.ErrNoChange {
		log.Println("migrations: no changes")
	} else {
		log.Println("migrations: applied")
	}

	return nil
}
