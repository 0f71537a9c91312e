package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"game-pulse/internal/adapters/notify"
	"game-pulse/internal/adapters/repo"
	"game-pulse/internal/adapters/steam"
	"game-pulse/internal/domain"
	"game-pulse/internal/infra/config"
	"game-pulse/internal/infra/db"
	applog "game-pulse/internal/infra/log"
	"game-pulse/internal/infra/metrics"
	"game-pulse/internal/infra/queue"
	"game-pulse/internal/usecase/ccu"
	"game-pulse/internal/usecase/fetch"
	"game-pulse/internal/usecase/steamspy"
	"game-pulse/internal/usecase/syncrun"
)

const jobType = "steamspy_sync"

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv, jobType)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("steamspy-sync: нет подключения к БД")
	}
	defer pool.Close()
	repoAdapter := repo.NewPostgres(pool)

	var events domain.JobEventPublisher
	if cfg.RabbitURL != "" {
		rabbit, err := queue.NewRabbitJobEvents(cfg.RabbitURL, cfg.Queues.JobEvents)
		if err != nil {
			logger.Fatal().Err(err).Msg("steamspy-sync: не удалось подключиться к RabbitMQ")
		}
		defer rabbit.Close()
		events = rabbit
	}

	var notifier domain.FailureNotifier
	if cfg.Alerts.TelegramToken != "" && cfg.Alerts.TelegramChatID != 0 {
		notifier, err = notify.NewTelegram(cfg.Alerts.TelegramToken, cfg.Alerts.TelegramChatID)
		if err != nil {
			logger.Fatal().Err(err).Msg("steamspy-sync: не удалось создать бота для алертов")
		}
	}

	source := steam.NewSpyClient(cfg.Steam.SpyBaseURL, time.Duration(cfg.Steam.TimeoutSeconds)*time.Second)
	executor := fetch.NewExecutor(cfg.Fetch.Concurrency, cfg.Fetch.ProgressStep)
	merger := ccu.NewMerger(repoAdapter, cfg.Batch.Merge, logger)
	service := steamspy.NewService(repoAdapter, repoAdapter, merger, source, executor, cfg.Batch.Due, nil, logger)

	runner := syncrun.NewRunner(repoAdapter, events, notifier, cfg.RunID, logger)
	if err := runner.Run(ctx, jobType, cfg.Batch.Due, service.Sync); err != nil {
		logger.Error().Err(err).Msg("steamspy-sync: запуск завершился ошибкой")
		os.Exit(1)
	}
}
