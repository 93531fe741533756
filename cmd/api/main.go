package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"pcba-mpi-api-server/config"
	"pcba-mpi-api-server/internal/api/routes"
	"pcba-mpi-api-server/internal/auth"
	"pcba-mpi-api-server/internal/cache"
	"pcba-mpi-api-server/internal/database"
	"pcba-mpi-api-server/internal/logger"
	"pcba-mpi-api-server/internal/s3"
	"pcba-mpi-api-server/internal/service"
	"pcba-mpi-api-server/internal/socket"
	"pcba-mpi-api-server/internal/store"
)

func main() {
	// 1. Load configuration
	cfg, err := config.LoadConfig("./config")
	if err != nil {
		log.Fatalf("Could not load config: %v", err)
	}

	appLogger, err := logger.New(cfg.Log.Mode)
	if err != nil {
		log.Fatalf("Could not create logger: %v", err)
	}
	defer appLogger.Sync()
	gin.SetMode(cfg.Server.Mode)

	if cfg.UsesDefaultAdminKey() {
		appLogger.Warn("ADMIN_SIGNUP_KEY is not set, admin signup uses the built-in default key")
	}

	ctx := context.Background()

	// 2. MongoDB
	client, mongoDB, err := database.Connect(ctx, cfg.Mongo)
	if err != nil {
		appLogger.Fatal("Failed to connect to MongoDB", "error", err)
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			appLogger.Warn("MongoDB disconnect failed", "error", err)
		}
	}()
	if err := database.EnsureIndexes(ctx, mongoDB); err != nil {
		appLogger.Fatal("Failed to create indexes", "error", err)
	}
	db := store.NewMongo(mongoDB)

	// 3. Reference data cache, Redis when configured
	var listCache cache.Cache = cache.Noop{}
	if cfg.Redis.Addr != "" {
		redisCache, redisClient, err := cache.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL)
		if err != nil {
			appLogger.Warn("Redis unavailable, caching disabled", "addr", cfg.Redis.Addr, "error", err)
		} else {
			listCache = redisCache
			defer redisClient.Close()
			appLogger.Info("Redis cache enabled", "addr", cfg.Redis.Addr)
		}
	}

	// 4. Section image storage, S3 when configured
	var images service.ImageStore
	if cfg.S3.Bucket != "" {
		uploader, err := s3.NewUploader(ctx, cfg.S3)
		if err != nil {
			appLogger.Fatal("Failed to create S3 uploader", "error", err)
		}
		images = uploader
	} else {
		appLogger.Warn("S3_BUCKET is not set, section image uploads are disabled")
	}

	// 5. Services
	tokens := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Expiration)
	hub := socket.NewHub(appLogger)
	credentials := service.NewCredentialService(db, tokens, cfg.Auth.AdminSignupKey, appLogger)
	allocator := service.NewAllocator(db)
	mpis := service.NewMPIService(db, allocator, images, hub, appLogger)

	if err := database.SeedAdmin(ctx, credentials, cfg.Seed, appLogger); err != nil {
		appLogger.Fatal("Failed to seed admin", "error", err)
	}

	router := routes.SetupRouter(routes.Deps{
		DB:           db,
		Tokens:       tokens,
		Credentials:  credentials,
		Registries:   service.NewRegistries(db, listCache, appLogger),
		Allocator:    allocator,
		MPIs:         mpis,
		Hub:          hub,
		Log:          appLogger,
		AllowOrigins: cfg.CORS.AllowOrigins,
	})

	// 6. Start server
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		appLogger.Info("Starting API server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("Failed to run server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server")

	hub.CloseAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", "error", err)
	}
	appLogger.Info("Server exited")
}
