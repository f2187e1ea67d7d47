// Command worker drains the event queue and applies verification and
// purchase confirmations. It also runs a periodic sweep that re-enqueues
// ledger rows the transport lost.
package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/bigbob/go-verify-backend/internal/config"
	"github.com/bigbob/go-verify-backend/internal/observability"
	"github.com/bigbob/go-verify-backend/internal/queue"
	"github.com/bigbob/go-verify-backend/internal/repo"
	"github.com/bigbob/go-verify-backend/internal/roblox"
	"github.com/bigbob/go-verify-backend/internal/services"
	"github.com/bigbob/go-verify-backend/internal/sysutil"
	"github.com/bigbob/go-verify-backend/internal/worker"
)

const version = "1.0.0"

// requeueEvery is how often the sweep looks for unprocessed ledger rows;
// requeueMinAge keeps it from racing events still in flight on the list.
const (
	requeueEvery  = time.Minute
	requeueMinAge = 2 * time.Minute
	requeueBatch  = 100
)

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()
	sysutil.SetupLogging(cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.OpenSQLite(cfg.DBPath, cfg.OTEL.Enabled)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("database open failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Queue.RedisAddr,
		Password: cfg.Queue.RedisPassword,
		DB:       cfg.Queue.RedisDB,
	})
	q := queue.NewRedisQueue(rdb, cfg.Queue.Key, cfg.Queue.PopTimeout)

	ingest := services.NewEventIngest(db, q)
	verifSvc := services.NewVerificationService(db, roblox.NewClient(cfg.RobloxBaseURL))
	verifSvc.CodeTTL = cfg.CodeTTL
	purchSvc := services.NewPurchaseService(db, ingest)

	w := worker.New(db, q, verifSvc, purchSvc)
	w.IdleSleep = cfg.Worker.IdleSleep
	w.ErrorBackoff = cfg.Worker.ErrorBackoff
	go func() {
		ticker := time.NewTicker(requeueEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := ingest.Requeue(ctx, requeueMinAge, requeueBatch); err != nil {
					log.Error().Err(err).Msg("requeue sweep failed")
				}
			}
		}
	}()

	_ = w.Run(ctx) // returns when ctx is cancelled

	if err := rdb.Close(); err != nil {
		log.Error().Err(err).Msg("redis close failed")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown failed")
	}
}
