package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/espcontrol/espcontrol-backend-go/internal/api"
	"github.com/espcontrol/espcontrol-backend-go/internal/config"
	"github.com/espcontrol/espcontrol-backend-go/internal/core/auth"
	"github.com/espcontrol/espcontrol-backend-go/internal/core/devices"
	"github.com/espcontrol/espcontrol-backend-go/internal/core/integrations"
	"github.com/espcontrol/espcontrol-backend-go/internal/core/scheduler"
	"github.com/espcontrol/espcontrol-backend-go/internal/database"
	"github.com/espcontrol/espcontrol-backend-go/internal/websocket"
	"github.com/espcontrol/espcontrol-backend-go/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	// Initialize database
	db, err := database.Initialize(cfg.Database)
	if err != nil {
		log.Fatal("Failed to initialize database: ", err)
	}
	defer db.Close()

	// Run migrations
	if err := database.Migrate(db, cfg.Database.MigrationsPath); err != nil {
		log.Fatal("Failed to run migrations: ", err)
	}

	// Create repositories
	repos := database.NewRepositories(db)

	ctx := context.Background()

	// Authentication, plus the first-run admin if the users table is empty
	authService := auth.NewService(repos.User, cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry, log)
	if err := authService.Bootstrap(ctx, cfg.Auth.Bootstrap); err != nil {
		log.Fatal("Failed to bootstrap admin user: ", err)
	}

	// Device state store, with the websocket hub as its listener
	store := devices.NewStateStore(log)

	wsHub := websocket.NewHub(log)
	store.Subscribe(wsHub.BroadcastDeviceState)
	go wsHub.Run()

	// Seed known devices so the poll endpoint answers OFF before any
	// schedule or user touches them
	allDevices, err := repos.Device.GetAll(ctx)
	if err != nil {
		log.Fatal("Failed to load devices: ", err)
	}
	for _, device := range allDevices {
		store.SetDefault(strconv.Itoa(device.ID))
	}

	// Schedule evaluator
	evaluator := scheduler.NewEvaluator(store, log)
	if err := evaluator.Reload(ctx, repos.Device, repos.Schedule); err != nil {
		log.Fatal("Failed to load schedules: ", err)
	}
	if cfg.Scheduler.Enabled {
		if err := evaluator.Start(); err != nil {
			log.Fatal("Failed to start scheduler: ", err)
		}
	}

	// Integrations service with its background refresh loop
	integrationService := integrations.NewService(repos.Integration, repos.Trigger, store, cfg.Growatt, log)
	if err := integrationService.Start(); err != nil {
		log.Fatal("Failed to start integrations service: ", err)
	}

	// Initialize router
	router := api.NewRouter(cfg, repos, db, log, authService, store, evaluator, integrationService, wsHub)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("Starting espcontrol backend on port %d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server: ", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := integrationService.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("Failed to stop integrations service gracefully")
	}
	if err := evaluator.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("Failed to stop scheduler gracefully")
	}
	wsHub.Stop()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	log.Info("Server exited")
}
