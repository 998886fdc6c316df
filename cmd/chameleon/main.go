package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/chameleon-systems/chameleon/internal/classifier"
	"github.com/chameleon-systems/chameleon/internal/config"
	"github.com/chameleon-systems/chameleon/internal/decoy"
	"github.com/chameleon-systems/chameleon/internal/engine"
	"github.com/chameleon-systems/chameleon/internal/forensics"
	"github.com/chameleon-systems/chameleon/internal/geo"
	"github.com/chameleon-systems/chameleon/internal/handlers"
	"github.com/chameleon-systems/chameleon/internal/ledger"
	"github.com/chameleon-systems/chameleon/internal/logging"
	"github.com/chameleon-systems/chameleon/internal/middleware"
	"github.com/chameleon-systems/chameleon/internal/mirror"
	"github.com/chameleon-systems/chameleon/internal/script"
	"github.com/chameleon-systems/chameleon/internal/server"
	"github.com/chameleon-systems/chameleon/internal/state"
	"github.com/chameleon-systems/chameleon/pkg/tokens"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "path to config file")
	migrationsPath := flag.String("migrations", "file://migrations", "migrations source URL")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	logger.Info("Starting chameleon honeypot", "port", cfg.Server.Port)

	// Deception script, with optional operator overrides
	deceptionScript, err := script.Load(cfg.Honeypot.ScriptPath)
	if err != nil {
		log.Fatalf("Failed to load deception script: %v", err)
	}

	// Ledger and decoy backends
	var ledgerRepo ledger.Repository
	var decoyStore decoy.Store
	switch cfg.Database.Type {
	case "postgres":
		connString := cfg.Database.DSN()

		// Run database migrations
		logger.Info("Running database migrations")
		m, err := migrate.New(*migrationsPath, connString)
		if err != nil {
			log.Fatalf("Failed to initialize migrations: %v", err)
		}
		if err := m.Up(); err != nil && err != migrate.ErrNoChange {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		logger.Info("Database migrations completed")

		pgLedger, err := ledger.NewPostgresRepository(context.Background(), connString)
		if err != nil {
			log.Fatalf("Failed to connect to PostgreSQL: %v", err)
		}
		ledgerRepo = pgLedger

		pgDecoy, err := decoy.NewPostgresStore(context.Background(), connString)
		if err != nil {
			log.Fatalf("Failed to connect decoy store: %v", err)
		}
		decoyStore = pgDecoy
	default:
		ledgerRepo = ledger.NewMemoryRepository()
		decoyStore = decoy.NewMemoryStore(cfg.Honeypot.DecoyRows, cfg.Honeypot.DecoySeed)
	}
	defer ledgerRepo.Close()
	defer decoyStore.Close()

	// Attacker state backend
	var stateRepo state.Repository
	switch cfg.State.Backend {
	case "redis":
		redisRepo, err := state.NewRedisRepository(cfg.Redis.URL, cfg.State.Retention)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		stateRepo = redisRepo
	default:
		stateRepo = state.NewMemoryRepository()
	}
	defer stateRepo.Close()

	// Optional NATS event mirror
	ledgerOpts := ledger.Options{
		BatchSize: cfg.Ledger.BatchSize,
	}
	if cfg.Ledger.SpoolPath != "" {
		ledgerOpts.Spool = ledger.NewSpool(cfg.Ledger.SpoolPath)
	}
	if cfg.Mirror.Enabled {
		publisher, err := mirror.NewPublisher(cfg.Mirror.URL, cfg.Mirror.Subject, logger)
		if err != nil {
			log.Fatalf("Failed to connect event mirror: %v", err)
		}
		defer publisher.Close()
		ledgerOpts.Publisher = publisher
	}

	ledgerSvc := ledger.NewService(ledgerRepo, ledgerOpts, logger)

	// Adapters
	geoClient := geo.NewHTTPClient(cfg.Geo.URL, cfg.Geo.Timeout)
	classifierClient := classifier.NewHTTPClient(cfg.Classifier.URL, cfg.Classifier.Timeout)

	// Deception engine
	eng := engine.New(
		engine.Config{
			TargetSecret: cfg.Honeypot.TargetPassword,
			BanThreshold: cfg.Honeypot.BanThreshold,
			TarpitAfter:  cfg.Honeypot.TarpitAfter,
			TarpitDelay:  cfg.Honeypot.TarpitDelay,
		},
		stateRepo,
		ledgerSvc,
		geoClient,
		classifierClient,
		decoyStore,
		deceptionScript,
		logger,
	)

	// HTTP surface
	hp := handlers.NewHoneypotHandler(eng, cfg.Honeypot.UploadMaxBytes, logger)
	fh := handlers.NewForensicsHandler(forensics.NewService(ledgerSvc))
	auth := middleware.NewAuthMiddleware(
		tokens.NewTokenGenerator(cfg.Forensics.JWTSecret, cfg.Forensics.TokenTTL))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.NewRouter(hp, fh, auth),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Honeypot listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server stopped")
}
