package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/ThomaseR24/signature-pad-canvas/config"
	"github.com/ThomaseR24/signature-pad-canvas/handler"
	"github.com/ThomaseR24/signature-pad-canvas/middleware"
	"github.com/ThomaseR24/signature-pad-canvas/pkg/logger"
	"github.com/ThomaseR24/signature-pad-canvas/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	hashPassword := flag.String("hash-password", "", "print the bcrypt hash of a password for users[].password_hash and exit")
	flag.Parse()

	if *hashPassword != "" {
		hash, err := config.HashPassword(*hashPassword)
		if err != nil {
			slog.Error("failed to hash password", "error", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	slog.Info("configuration loaded successfully",
		"store", cfg.Store.Backend,
		"blob", cfg.Blob.Backend,
	)

	records, closeRecords, err := openRecordStore(&cfg.Store)
	if err != nil {
		slog.Error("failed to open record store", "backend", cfg.Store.Backend, "error", err)
		os.Exit(1)
	}
	defer closeRecords.Close()

	blobs, err := openBlobStore(cfg)
	if err != nil {
		slog.Error("failed to open blob store", "backend", cfg.Blob.Backend, "error", err)
		os.Exit(1)
	}

	hasher := service.NewHasher(blobs, cfg.Blob.FetchTimeout)
	recorder := service.NewRecorder(records, hasher, &cfg.Signing)
	slog.Info("signature recorder ready", "fingerprint_scope", recorder.Scope(), "fetch_timeout", cfg.Blob.FetchTimeout)
	verifier := service.NewVerifier(hasher)
	contracts := service.NewContractService(records, blobs)

	authHandler := handler.NewAuthHandler(cfg)
	contractHandler := handler.NewContractHandler(contracts, recorder, verifier, hasher, cfg.Server.MaxUploadMB)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RequestID())     // Request ID for tracing
	router.Use(middleware.Recovery())      // Panic recovery
	router.Use(middleware.RequestLogger()) // Access logging
	router.Use(cacheMiddleware())          // Cache control

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	// Public routes
	api := router.Group("/api")
	api.Use(middleware.RateLimit(cfg.Server.RateLimit, time.Minute))
	{
		api.POST("/auth/login", authHandler.Login)
	}

	// Protected routes
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(cfg))
	{
		protected.GET("/auth/me", authHandler.GetCurrentUser)
		protected.POST("/contracts", contractHandler.Upload)
		protected.GET("/contracts", contractHandler.List)
		protected.GET("/contracts/:id", contractHandler.Get)
		protected.DELETE("/contracts/:id", contractHandler.Delete)
		protected.GET("/contracts/:id/document", contractHandler.Document)
		protected.GET("/contracts/:id/verify", contractHandler.Verify)
		protected.GET("/contracts/:id/hash", contractHandler.ContractHash)
		protected.POST("/contracts/:id/signatures", contractHandler.Sign)
		protected.POST("/hash", contractHandler.Hash)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      corsHandler(&cfg.CORS, router),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownWait)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("server exited gracefully")
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openRecordStore returns the configured record store and a closer for it
func openRecordStore(cfg *config.StoreConfig) (service.RecordStore, io.Closer, error) {
	switch cfg.Backend {
	case config.StoreBolt:
		store, err := service.OpenBoltStore(cfg.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("using bolt record store", "path", cfg.BoltPath)
		return store, store, nil
	case config.StorePostgres:
		store, err := service.OpenPostgresStore(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("using postgres record store")
		return store, store, nil
	default:
		slog.Info("using in-memory record store", "max_contracts", cfg.MaxContracts)
		return service.NewMemoryStore(cfg.MaxContracts), nopCloser{}, nil
	}
}

func openBlobStore(cfg *config.Config) (service.BlobStore, error) {
	if cfg.Blob.Backend == config.BlobLocal {
		slog.Info("using local document store", "directory", cfg.Blob.LocalDir)
		return service.NewDirBlobStore(cfg.Blob.LocalDir)
	}

	minioSvc, err := service.NewMinioService(&cfg.Minio)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := minioSvc.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	slog.Info("using MINIO document store", "endpoint", cfg.Minio.Endpoint, "bucket", cfg.Minio.Bucket)
	return minioSvc, nil
}

// corsHandler wraps the router with rs/cors
func corsHandler(cfg *config.CORSConfig, next http.Handler) http.Handler {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Accept", "Origin", "Cache-Control", "X-Requested-With", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: !slices.Contains(origins, "*"),
	}).Handler(next)
}

// cacheMiddleware keeps API responses and documents out of caches
func cacheMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
		}
		c.Next()
	}
}
