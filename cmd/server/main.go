// Package main is the entry point for the Logfold server binary. It
// dispatches subcommands via a plain switch on os.Args so the full CLI
// surface is readable in one place without a cobra dependency. The serve
// command runs auto-migration on startup so freshly deployed containers never
// need a separate migration step.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/logfold/logfold/internal/api"
	"github.com/logfold/logfold/internal/auth"
	"github.com/logfold/logfold/internal/config"
	"github.com/logfold/logfold/internal/db"
	"github.com/logfold/logfold/internal/db/models"
	"github.com/logfold/logfold/internal/db/repositories"
	"github.com/logfold/logfold/internal/telemetry"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	switch command {
	case "serve":
		return serve(cfg)
	case "migrate":
		if len(os.Args) < 3 {
			return fmt.Errorf("usage: %s migrate <up|down>", os.Args[0])
		}
		return runMigrations(cfg, os.Args[2])
	case "create-org":
		if len(os.Args) < 3 {
			return fmt.Errorf("usage: %s create-org <name> [log-limit] [retention-days]", os.Args[0])
		}
		return createOrganization(cfg, os.Args[2:])
	case "version":
		fmt.Printf("Logfold v%s\n", version)
		return nil
	default:
		return fmt.Errorf("unknown command: %s\nAvailable commands: serve, migrate, create-org, version", command)
	}
}

func serve(cfg *config.Config) error {
	// Install the structured logger first so all subsequent output uses the
	// configured format and level.
	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level)

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := auth.ValidateJWTSecret(); err != nil {
		return fmt.Errorf("security configuration error: %w", err)
	}

	database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()
	slog.Info("connected to database", "host", cfg.Database.Host, "name", cfg.Database.Name)

	telemetry.StartDBStatsCollector(database)

	if err := db.RunMigrations(database, "up"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if schemaVersion, dirty, err := db.GetMigrationVersion(database); err != nil {
		slog.Warn("failed to read migration version", "error", err)
	} else {
		slog.Info("database schema ready", "version", schemaVersion, "dirty", dirty)
	}

	// Redis backs the stats window cache and the shared rate limiter; both
	// degrade gracefully when no address is configured.
	var rdb redis.UniversalClient
	if cfg.Redis.Enabled() {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			slog.Warn("redis unreachable, continuing without cache and shared rate limiting", "addr", cfg.Redis.Addr, "error", err)
			_ = client.Close()
		} else {
			rdb = client
			defer client.Close()
			slog.Info("connected to redis", "addr", cfg.Redis.Addr)
		}
	}

	// Prometheus scrapes a dedicated port so the metrics path stays off the
	// public ingress and bypasses rate limiting.
	if cfg.Telemetry.PrometheusEnabled {
		metricsAddr := fmt.Sprintf(":%d", cfg.Telemetry.PrometheusPort)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			slog.Info("starting Prometheus metrics server", "addr", metricsAddr)
			srv := &http.Server{
				Addr:         metricsAddr,
				Handler:      mux,
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 10 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server error", "error", err)
			}
		}()
	}

	jobCtx, stopJobs := context.WithCancel(context.Background())
	defer stopJobs()

	router, bgServices := api.NewRouter(jobCtx, cfg, database, rdb)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		slog.Info("server ready", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	stopJobs()
	bgServices.Shutdown()

	slog.Info("server stopped gracefully")
	return nil
}

func runMigrations(cfg *config.Config, direction string) error {
	database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	log.Printf("Running migrations: %s", direction)
	if err := db.RunMigrations(database, direction); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	schemaVersion, dirty, err := db.GetMigrationVersion(database)
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	log.Printf("Migration completed successfully. Current version: %d (dirty: %v)", schemaVersion, dirty)
	return nil
}

// createOrganization provisions a tenant and prints its ingest API key once.
// Only the bcrypt hash is stored; a lost key means minting a new one.
func createOrganization(cfg *config.Config, args []string) error {
	name := args[0]
	var logLimit int64
	retentionDays := cfg.Usage.DefaultCycleDays
	if len(args) > 1 {
		if _, err := fmt.Sscanf(args[1], "%d", &logLimit); err != nil {
			return fmt.Errorf("invalid log limit %q: %w", args[1], err)
		}
	}
	if len(args) > 2 {
		if _, err := fmt.Sscanf(args[2], "%d", &retentionDays); err != nil {
			return fmt.Errorf("invalid retention days %q: %w", args[2], err)
		}
	}

	database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	ctx := context.Background()
	orgRepo := repositories.NewOrganizationRepository(database)

	if existing, err := orgRepo.GetByName(ctx, name); err != nil {
		return err
	} else if existing != nil {
		return fmt.Errorf("organization %q already exists", name)
	}

	// The key embeds the organization id, so create the row first with an
	// empty hash and mint the key against the generated id.
	org := &models.Organization{
		Name:               name,
		LogLimitForPeriod:  logLimit,
		LogRetentionInDays: retentionDays,
	}
	if err := orgRepo.Create(ctx, org); err != nil {
		return err
	}

	key, hash, err := auth.GenerateAPIKey(cfg.Auth.APIKeyPrefix, org.ID)
	if err != nil {
		return err
	}
	if err := orgRepo.SetAPIKeyHash(ctx, org.ID, hash); err != nil {
		return err
	}

	fmt.Printf("Organization created: %s (%s)\n", org.Name, org.ID)
	fmt.Printf("Ingest API key (shown once, store it now):\n\n  %s\n\n", key)
	return nil
}
