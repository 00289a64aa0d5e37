package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/mrzscan/mrzscan-backend/internal/auth/jwt"
	"github.com/mrzscan/mrzscan-backend/internal/docprocessing/events"
	"github.com/mrzscan/mrzscan-backend/internal/docprocessing/handler"
	"github.com/mrzscan/mrzscan-backend/internal/docprocessing/metrics"
	"github.com/mrzscan/mrzscan-backend/internal/docprocessing/ocr"
	"github.com/mrzscan/mrzscan-backend/internal/docprocessing/processor"
	"github.com/mrzscan/mrzscan-backend/internal/docprocessing/repository"
	"github.com/mrzscan/mrzscan-backend/internal/docprocessing/service"
	"github.com/mrzscan/mrzscan-backend/internal/docprocessing/storage"
	"github.com/mrzscan/mrzscan-backend/pkg/config"
	"github.com/mrzscan/mrzscan-backend/pkg/database"
	"github.com/mrzscan/mrzscan-backend/pkg/httputil"
	"github.com/mrzscan/mrzscan-backend/pkg/i18n"
	"github.com/mrzscan/mrzscan-backend/pkg/logger"
	"github.com/mrzscan/mrzscan-backend/pkg/messaging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const serviceName = "mrz-service"

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(serviceName, cfg.Server.Environment)
	log.Info().Msg("starting MRZ Service")

	m := metrics.New(prometheus.DefaultRegisterer)

	// OCR text sources, tried in configured order after the plain-text reader
	sources, ocrCloser, err := ocr.FromConfig(cfg.OCR)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize OCR sources")
	}
	defer ocrCloser.Close()

	registry := processor.NewDefaultRegistry(sources)
	log.Info().Strs("processors", registry.Names()).Msg("document processors registered")

	store := storage.NewTempStorage(cfg.Processing.JobTTL)
	defer store.Close()

	opts := service.Options{
		Metrics:          m,
		BatchConcurrency: cfg.Processing.BatchConcurrency,
		MaxBatchSize:     cfg.Processing.MaxBatchSize,
		ProcessTimeout:   cfg.Processing.ProcessTimeout,
	}

	// Optional audit log
	var db *database.DB
	if cfg.Database.Enabled {
		db, err = database.New(&cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()

		if err := db.Migrate(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate database")
		}
		opts.Audit = repository.NewAuditRepository(db)
	}

	// Optional extraction events
	var rmq *messaging.RabbitMQ
	if cfg.RabbitMQ.Enabled {
		rmq, err = messaging.New(&cfg.RabbitMQ, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer rmq.Close()

		publisher, err := events.NewDocumentEventPublisher(rmq, serviceName, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create event publisher")
		}
		opts.Events = publisher
	}

	svc := service.NewService(registry, store, log.WithComponent("docprocessing"), opts)
	docHandler := handler.NewHandler(svc, log, cfg.Processing.MaxUploadSize)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "Accept-Language"},
		ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// i18n middleware - extract locale from Accept-Language header
	r.Use(i18n.Middleware)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health := map[string]any{
			"status":     "healthy",
			"service":    serviceName,
			"processors": registry.Names(),
			"jobs":       store.Len(),
		}
		if db != nil {
			health["database"] = db.Health(r.Context())
		}
		if rmq != nil {
			health["rabbitmq"] = rmq.Health()
		}
		httputil.JSON(w, http.StatusOK, health)
	})

	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.JWT.Enabled {
			r.Use(jwt.NewManager(&cfg.JWT).Middleware(log))
		}
		docHandler.RegisterRoutes(r)
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	// Let running extractions finish so their audit rows and events are written
	if err := svc.Wait(ctx); err != nil {
		log.Warn().Err(err).Msg("extractions still running at shutdown")
	}

	log.Info().Msg("server stopped")
}
