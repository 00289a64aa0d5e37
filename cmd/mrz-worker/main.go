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
	"github.com/mrzscan/mrzscan-backend/internal/docprocessing/consumers"
	"github.com/mrzscan/mrzscan-backend/internal/docprocessing/events"
	"github.com/mrzscan/mrzscan-backend/internal/docprocessing/metrics"
	"github.com/mrzscan/mrzscan-backend/internal/docprocessing/repository"
	"github.com/mrzscan/mrzscan-backend/pkg/config"
	"github.com/mrzscan/mrzscan-backend/pkg/database"
	"github.com/mrzscan/mrzscan-backend/pkg/httputil"
	"github.com/mrzscan/mrzscan-backend/pkg/logger"
	"github.com/mrzscan/mrzscan-backend/pkg/messaging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const serviceName = "mrz-worker"

// purgeInterval is how often expired audit rows are deleted
const purgeInterval = time.Hour

func main() {
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.Server.Environment)
	log.Info().Msg("starting MRZ Worker")

	// The worker only exists to consume events, so RabbitMQ is not optional here
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	if err := rmq.DeclareDeadLetterQueue(serviceName); err != nil {
		log.Fatal().Err(err).Msg("failed to declare dead letter queue")
	}

	publisher, err := events.NewDocumentEventPublisher(rmq, serviceName, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	h := consumers.NewOCRTextHandler(publisher, m, log.WithComponent("ocr-text"))

	consumer, err := consumers.NewOCRTextConsumer(rmq, h, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create OCR text consumer")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := consumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start consumer")
	}

	var db *database.DB
	if cfg.Database.Enabled && cfg.Processing.AuditRetention > 0 {
		db, err = database.New(&cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()

		go purgeAudit(ctx, repository.NewAuditRepository(db), cfg.Processing.AuditRetention, log)
	}

	// Health and metrics
	r := chi.NewRouter()
	r.Use(httputil.Recoverer(log))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health := map[string]any{
			"status":   "healthy",
			"service":  serviceName,
			"rabbitmq": rmq.Health(),
		}
		if db != nil {
			health["database"] = db.Health(r.Context())
		}
		httputil.JSON(w, http.StatusOK, health)
	})
	r.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("health server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}

// purgeAudit deletes audit rows older than retention once per purgeInterval
func purgeAudit(ctx context.Context, repo *repository.AuditRepository, retention time.Duration, log *logger.Logger) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		n, err := repo.DeleteBefore(ctx, time.Now().UTC().Add(-retention))
		if err != nil {
			log.Error().Err(err).Msg("failed to purge audit log")
		} else if n > 0 {
			log.Info().Int64("deleted", n).Msg("purged expired audit entries")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
