// Path: cmd/daemon/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/time/rate"

	"chartwatch/internal/config"
	"chartwatch/internal/delivery/rest"
	"chartwatch/internal/events"
	"chartwatch/internal/metrics"
	"chartwatch/internal/scrape"
	"chartwatch/internal/service"
	"chartwatch/internal/spotify"
	"chartwatch/internal/storage"
)

func main() {
	// 1. Load environment and configuration
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Setup Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Initialize Database Connection
	log.Println("Connecting to MongoDB...")
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Database.URI))
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer mongoClient.Disconnect(ctx)
	db := mongoClient.Database(cfg.Database.Name)

	// 4. Initialize Components
	log.Println("Initializing components...")
	broker := events.NewBroker()
	meters := metrics.NewManager()
	artistStore := storage.NewMongoArtistStorage(db, cfg.Database.ArtistSnapshotCollection, cfg.Database.ArtistCurrentCollection)
	trackStore := storage.NewMongoTrackStorage(db, cfg.Database.TrackSnapshotCollection, cfg.Database.TrackCurrentCollection)
	statusStore := storage.NewMongoStatusStorage(db, cfg.Database.StatusCollection)

	if err := artistStore.EnsureIndexes(ctx); err != nil {
		log.Fatalf("Failed to ensure artist indexes: %v", err)
	}
	if err := trackStore.EnsureIndexes(ctx); err != nil {
		log.Fatalf("Failed to ensure track indexes: %v", err)
	}

	fetcher := scrape.NewFetcher(cfg.Scraper)
	tokens := spotify.NewTokenCache(cfg.Spotify)
	resolver := spotify.NewResolver(cfg.Spotify, tokens)
	pacer := rate.NewLimiter(rate.Every(time.Duration(cfg.Refresher.EnrichDelayMS)*time.Millisecond), 1)

	// 5. Initialize The Engine
	coreService := service.NewService(
		cfg.Refresher,
		cfg.Charts,
		cfg.Scraper.BaseURL,
		fetcher,
		resolver,
		pacer,
		artistStore,
		trackStore,
		statusStore,
		broker,
		meters,
	)

	// 6. Start the Engine in the background
	go func() {
		if err := coreService.Start(ctx); err != nil {
			log.Printf("Core service error: %v", err)
			cancel() // Trigger shutdown on critical service error
		}
	}()

	// 7. Initialize and Start The API Server
	production := cfg.Environment == "production"
	apiServer := rest.NewServer(cfg.Server.Port, coreService, broker, meters.Handler(), cfg.Admin.Secret, production)
	go func() {
		log.Printf("API server starting on port %s", cfg.Server.Port)
		if err := apiServer.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("API server failed: %v", err)
		}
	}()

	// 8. Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutdown signal received. Shutting down gracefully...")

	// Cancel the main context to signal background processes to stop
	cancel()

	// Give background processes time to stop
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Stop the API server
	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Printf("Error during API server shutdown: %v", err)
	}

	// The core service stops gracefully via the cancelled context.
	coreService.Stop()

	log.Println("Server shut down successfully.")
}
