package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stockledger/internal/config"
	"stockledger/internal/infra"
	"stockledger/internal/repository"
	"stockledger/internal/router"
	"stockledger/internal/service"
	"stockledger/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Structured logger — dev: pretty, prod: JSON
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Async alert pipeline: the ledger enqueues, the pool mails. Worker
	// handlers are wired here (composition root) so the pool has full access
	// to infrastructure dependencies.
	mailer := infra.NewMailer(cfg)
	mailCB := infra.NewCircuitBreaker(infra.DefaultCBConfig())
	dispatcher := worker.NewDispatcher(rdb)
	worker.StartWorkerPool(ctx, rdb, cfg.WorkerPoolSize, map[string]worker.Handler{
		"low_stock": worker.NewAlertWorker(mailer, mailCB, rdb, cfg.AlertRecipient),
	})

	// Reservation expiry sweep runs independently of request traffic.
	txManager := repository.NewTxManager(db)
	balanceRepo := repository.NewStockBalanceRepository(db)
	reservationRepo := repository.NewReservationRepository(db)
	warehouseRepo := repository.NewWarehouseRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	sequenceRepo := repository.NewSequenceRepository(db)
	reservationSvc := service.NewReservationService(
		txManager, balanceRepo, reservationRepo, warehouseRepo, catalogRepo,
		service.NewNumberingService(sequenceRepo),
	)
	worker.StartExpiryCron(ctx, reservationSvc, time.Duration(cfg.ExpirySweepSeconds)*time.Second)

	r := router.New(cfg, db, rdb, dispatcher)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("stock ledger listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}
