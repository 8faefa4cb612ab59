// Package main provides the main entry point for the Campsight segmentation service
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/campsight/segmentation/app/handlers"
	"github.com/campsight/segmentation/app/middleware"
	"github.com/campsight/segmentation/app/router"
	"github.com/campsight/segmentation/app/scheduler"
	"github.com/campsight/segmentation/app/services"
	businessflow "github.com/campsight/segmentation/business_flow"
	"github.com/campsight/segmentation/config"
	"github.com/campsight/segmentation/matching"
	"github.com/campsight/segmentation/repository"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.Config
	stopFuncs []func()
}

func main() {
	log.Println("Starting Campsight segmentation service...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := app.router.Start(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers
	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.router.GetApp().ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pooling
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	rc := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s (db=%d)", cfg.RedisAddress, cfg.RedisDB)
	return rc, nil
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.Config) (*Application, error) {
	var stopFuncs []func()

	// Initialize database
	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}

	// Initialize repositories
	segmentRepo := repository.NewSegmentRepository(db)
	guestRepo := repository.NewGuestRepository(db)
	campgroundRepo := repository.NewCampgroundRepository(db)
	organizationRepo := repository.NewOrganizationRepository(db)

	// Initialize matching engine over the guest corpus
	engine := matching.NewEngine(guestRepo,
		matching.WithTimeBudget(cfg.Matching.TimeBudget),
		matching.WithRetryPolicy(cfg.Matching.RetryAttempts, cfg.Matching.RetryBackoff),
		matching.WithBatchSize(cfg.Matching.BatchSize),
	)

	// Initialize token service
	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.RefreshTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	log.Printf("Token service initialized with issuer: %s, audience: %s", cfg.JWT.Issuer, cfg.JWT.Audience)

	// Initialize background recount worker
	worker := scheduler.NewRecountWorker(segmentRepo, engine, nil, cfg.Worker.QueueSize, cfg.Worker.SweepInterval)
	stopFuncs = append(stopFuncs, worker.Start(context.Background()))

	// Subscribe to corpus change signals when Redis is available
	if rc != nil {
		listener := scheduler.NewCorpusListener(rc, segmentRepo, worker, nil)
		stopFuncs = append(stopFuncs, listener.Start(context.Background()))
	}

	// Initialize flows
	segmentFlow := businessflow.NewSegmentFlow(
		segmentRepo,
		guestRepo,
		campgroundRepo,
		organizationRepo,
		engine,
		worker,
		cfg.Matching.SyncCorpusLimit,
	)

	// Initialize handlers and middleware
	segmentHandler := handlers.NewSegmentHandler(segmentFlow)
	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	// Initialize router
	fiberRouter := router.NewFiberRouter(segmentHandler, authMiddleware, cfg.Security.AllowedOrigins, cfg.Security.GlobalRateLimit)

	return &Application{
		router:    fiberRouter,
		config:    cfg,
		stopFuncs: stopFuncs,
	}, nil
}
