/*
Package main is the entry point for the chat relay server.

It is responsible for loading configuration, initializing the global logging system,
opening the persistence backend, setting up the HTTP server and websocket hub,
and gracefully handling operating system interrupt signals (SIGINT, SIGTERM)
to ensure a smooth server shutdown.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatrelay/internal/app/chat"
	"chatrelay/internal/app/storage"
	"chatrelay/internal/app/store"
	"chatrelay/internal/app/store/memory"
	"chatrelay/internal/app/store/postgres"
	"chatrelay/internal/configs"
	"chatrelay/internal/handler"
	"chatrelay/internal/pkg/logx"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.Environment == "development")
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("store_driver", cfg.StoreDriver).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Open the persistence backend
	var st store.Store
	switch cfg.StoreDriver {
	case configs.StoreDriverMemory:
		st = memory.New().Store()
		logx.Warn("Using in-memory store; all data is lost on restart")
	case configs.StoreDriverPostgres:
		pg, err := postgres.New(cfg.DatabaseDSN)
		if err != nil {
			logx.Fatal(err, "Failed to open database")
		}
		defer pg.Close()
		st = pg.Store()
	}

	// File storage is optional; without it the upload endpoints refuse requests.
	var storageService storage.StorageService
	if cfg.UploadsEnabled() {
		storageService, err = storage.NewStorageService(storage.ServiceConfig{
			S3BucketName:      cfg.S3BucketName,
			S3Endpoint:        cfg.S3Endpoint,
			S3PublicBaseURL:   cfg.S3PublicBaseURL,
			S3AccessKeyID:     cfg.S3AccessKeyID,
			S3SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			logx.Fatal(err, "Failed to initialize file storage")
		}
	}

	// Wire the hub and the session gateway
	hub := chat.NewHub()
	gateway := chat.NewGateway(st, hub)
	if storageService != nil {
		gateway.WithBlobs(storageService)
	}

	// Periodically drop idle identities from the message rate limiter.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				gateway.Limiter().Sweep()
			}
		}
	}()

	deps := &handler.AppDeps{
		Hub:            hub,
		Gateway:        gateway,
		Config:         cfg,
		StorageService: storageService,
		Store:          st,
	}
	router := handler.Router(deps)

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("Chat relay server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Fatal(err, "Server forced to shutdown")
	}

	hub.Shutdown()

	logx.Info("Server gracefully stopped.")
}
