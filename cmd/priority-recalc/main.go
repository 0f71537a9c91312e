package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"game-pulse/internal/adapters/notify"
	"game-pulse/internal/adapters/repo"
	"game-pulse/internal/domain"
	"game-pulse/internal/infra/config"
	"game-pulse/internal/infra/db"
	applog "game-pulse/internal/infra/log"
	"game-pulse/internal/infra/metrics"
	"game-pulse/internal/infra/queue"
	"game-pulse/internal/usecase/priority"
	"game-pulse/internal/usecase/syncrun"
)

const jobType = "priority_recalc"

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv, jobType)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("priority-recalc: нет подключения к БД")
	}
	defer pool.Close()
	repoAdapter := repo.NewPostgres(pool)

	var events domain.JobEventPublisher
	if cfg.RabbitURL != "" {
		rabbit, err := queue.NewRabbitJobEvents(cfg.RabbitURL, cfg.Queues.JobEvents)
		if err != nil {
			logger.Fatal().Err(err).Msg("priority-recalc: не удалось подключиться к RabbitMQ")
		}
		defer rabbit.Close()
		events = rabbit
	}

	var notifier domain.FailureNotifier
	if cfg.Alerts.TelegramToken != "" && cfg.Alerts.TelegramChatID != 0 {
		notifier, err = notify.NewTelegram(cfg.Alerts.TelegramToken, cfg.Alerts.TelegramChatID)
		if err != nil {
			logger.Fatal().Err(err).Msg("priority-recalc: не удалось создать бота для алертов")
		}
	}

	scorer := priority.NewScorer(priority.Thresholds{
		CCUHigh:   cfg.Score.CCUHigh,
		CCUMedium: cfg.Score.CCUMedium,
		CCULow:    cfg.Score.CCULow,
	})
	recalc := priority.NewRecalculator(repoAdapter, repoAdapter, repoAdapter, scorer, cfg.Batch.Upsert, nil, logger)

	runner := syncrun.NewRunner(repoAdapter, events, notifier, cfg.RunID, logger)
	if err := runner.Run(ctx, jobType, cfg.Batch.Upsert, func(ctx context.Context, run *syncrun.Run) error {
		return recalc.Run(ctx, &run.Counters)
	}); err != nil {
		logger.Error().Err(err).Msg("priority-recalc: запуск завершился ошибкой")
		os.Exit(1)
	}
}
