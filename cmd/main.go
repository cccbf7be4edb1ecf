// cmd/main.go is the application entry point.
// It wires together all layers, starts the delivery engine, and serves the
// management API.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/mlorenc/birthday-notify/internal/config"
	"github.com/mlorenc/birthday-notify/internal/database"
	"github.com/mlorenc/birthday-notify/internal/handler"
	"github.com/mlorenc/birthday-notify/internal/logging"
	"github.com/mlorenc/birthday-notify/internal/metrics"
	"github.com/mlorenc/birthday-notify/internal/repository"
	"github.com/mlorenc/birthday-notify/internal/schedule"
	"github.com/mlorenc/birthday-notify/internal/sender"
	"github.com/mlorenc/birthday-notify/internal/service"
	"github.com/mlorenc/birthday-notify/internal/worker"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fallback := logging.New("info", true)
		fallback.Fatal().Err(err).Msg("load config")
	}
	log := logging.New(cfg.LogLevel, cfg.LogConsole)

	pool, err := database.NewPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to database")
	}
	defer pool.Close()
	log.Info().Str("db", cfg.DBName).Msg("connected to postgres")

	calc, err := schedule.NewCalculator(cfg.AnchorHour)
	if err != nil {
		log.Fatal().Err(err).Msg("build occurrence calculator")
	}

	eventRepo := repository.NewEventRepository(pool)
	subjectRepo := repository.NewSubjectRepository(pool)

	resched := service.NewRescheduleCoordinator(eventRepo, subjectRepo, calc, cfg.RetryMax, log)
	claims := service.NewClaimCoordinator(eventRepo, log)
	webhook := sender.NewWebhookSender(cfg.WebhookURL, cfg.WebhookRate, cfg.WebhookBurst, log)
	delivery := service.NewDeliveryCoordinator(eventRepo, webhook, resched, service.BackoffPolicy{
		Base:   cfg.BackoffBase,
		Max:    cfg.BackoffMax,
		Jitter: cfg.BackoffJitter,
	}, cfg.DeliveryTimeout, log)
	subjectSvc := service.NewSubjectService(subjectRepo, eventRepo, resched, log)

	runner := worker.NewRunner(claims, delivery, cfg.SweepSpec, cfg.ClaimBatchSize, cfg.Workers, log)
	if err := runner.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("start delivery runner")
	}

	subjectHandler := handler.NewSubjectHandler(subjectSvc)

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)

	r.Get("/health", handler.HealthCheck)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/subjects", func(r chi.Router) {
		r.Post("/", subjectHandler.Create)
		r.Get("/", subjectHandler.List)
		r.Get("/{id}", subjectHandler.Get)
		r.Delete("/{id}", subjectHandler.Delete)
		r.Get("/{id}/events", subjectHandler.ListEvents)
	})
	r.Get("/events/{id}", subjectHandler.GetEvent)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	// Block until SIGINT or SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	if err := runner.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("runner shutdown failed")
	}
	log.Info().Msg("stopped")
}
