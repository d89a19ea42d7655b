package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/writing-studio/studio/internal/ai"
	"github.com/writing-studio/studio/internal/api"
	"github.com/writing-studio/studio/internal/config"
	"github.com/writing-studio/studio/internal/core"
	"github.com/writing-studio/studio/internal/ratelimit"
	"github.com/writing-studio/studio/internal/similarity"
	"github.com/writing-studio/studio/internal/store"
)

var cli struct {
	EnvFile   string `help:"Path to a .env file to load before reading the environment" default:""`
	Port      string `help:"HTTP port, overrides HTTP_PORT" default:""`
	WarmIndex bool   `help:"Index every stored world at start-up" default:"true" negatable:""`
}

func main() {
	_ = kong.Parse(&cli,
		kong.Name("studio"),
		kong.Description("AI Writing Studio HTTP server"),
	)

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	config.LoadConfig(cli.EnvFile)
	cfg := config.AppConfig
	if cli.Port != "" {
		cfg.HTTPPort = cli.Port
	}
	if cfg.LogLevel == "DEBUG" {
		log.Println("Service starting in DEBUG mode")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbStore, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer dbStore.Close()

	provider, err := ai.NewProvider(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize AI provider: %v", err)
	}
	defer provider.Close()
	log.Printf("Using AI provider %q", provider.Name)

	index := similarity.NewStore(provider.Embedder, provider.Generator,
		similarity.WithDimensions(cfg.EmbeddingDimensions),
		similarity.WithTimeout(cfg.AITimeout),
	)

	worldService := core.NewWorldService(dbStore, index)
	studioService := core.NewStudioService(dbStore, provider.Generator, worldService, cfg.AITimeout)
	userService := core.NewUserService(dbStore)

	if cli.WarmIndex {
		if _, err := worldService.WarmIndex(ctx); err != nil {
			log.Printf("Index warm-up incomplete: %v", err)
		}
	}

	limiters := ratelimit.NewLimiters()
	sweeper := ratelimit.NewSweeper(cfg.RateLimitCleanupInterval, limiters.All()...)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	apiHandler := api.NewAPIHandler(userService, studioService, worldService)
	router := api.NewRouter(apiHandler, limiters)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // generation plus suggestions can take a while
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", serverAddr, err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	cancel()

	log.Println("Server exiting gracefully")
}
