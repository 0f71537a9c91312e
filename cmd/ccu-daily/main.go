package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"game-pulse/internal/adapters/notify"
	"game-pulse/internal/adapters/repo"
	"game-pulse/internal/adapters/steam"
	"game-pulse/internal/domain"
	ccucache "game-pulse/internal/infra/cache"
	"game-pulse/internal/infra/config"
	"game-pulse/internal/infra/db"
	applog "game-pulse/internal/infra/log"
	"game-pulse/internal/infra/metrics"
	"game-pulse/internal/infra/queue"
	"game-pulse/internal/usecase/ccu"
	"game-pulse/internal/usecase/fetch"
	"game-pulse/internal/usecase/syncrun"
)

const jobType = "ccu_daily"

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv, jobType)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("ccu-daily: нет подключения к БД")
	}
	defer pool.Close()
	repoAdapter := repo.NewPostgres(pool)

	var tierCache domain.Cache = ccucache.NewMemory(nil)
	if cfg.RedisAddr != "" {
		tierCache = ccucache.NewRedis(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	} else {
		logger.Warn().Msg("ccu-daily: REDIS_ADDR не задан, замок перестройки ярусов только внутри процесса")
	}

	var events domain.JobEventPublisher
	if cfg.RabbitURL != "" {
		rabbit, err := queue.NewRabbitJobEvents(cfg.RabbitURL, cfg.Queues.JobEvents)
		if err != nil {
			logger.Fatal().Err(err).Msg("ccu-daily: не удалось подключиться к RabbitMQ")
		}
		defer rabbit.Close()
		events = rabbit
	}

	var notifier domain.FailureNotifier
	if cfg.Alerts.TelegramToken != "" && cfg.Alerts.TelegramChatID != 0 {
		notifier, err = notify.NewTelegram(cfg.Alerts.TelegramToken, cfg.Alerts.TelegramChatID)
		if err != nil {
			logger.Fatal().Err(err).Msg("ccu-daily: не удалось создать бота для алертов")
		}
	}

	// Суточный обход яруса 3 ходит в SteamSpy: официальное API на таком
	// объёме каталога упирается в лимиты.
	scheduler := ccu.NewScheduler(repoAdapter, tierCache, cfg.Tiers.TopN, cfg.Tiers.RecentN, nil, logger)
	merger := ccu.NewMerger(repoAdapter, cfg.Batch.Merge, logger)
	spy := steam.NewSpyClient(cfg.Steam.SpyBaseURL, time.Duration(cfg.Steam.TimeoutSeconds)*time.Second)
	source := steamSpyCCU{client: spy}
	executor := fetch.NewExecutor(cfg.Fetch.Concurrency, cfg.Fetch.ProgressStep)
	service := ccu.NewService(scheduler, merger, source, domain.CCUSourceSteamSpy, executor, nil, logger)

	runner := syncrun.NewRunner(repoAdapter, events, notifier, cfg.RunID, logger)
	if err := runner.Run(ctx, jobType, cfg.Batch.Merge, service.RunDaily); err != nil {
		logger.Error().Err(err).Msg("ccu-daily: запуск завершился ошибкой")
		os.Exit(1)
	}
}

// steamSpyCCU адаптирует снапшот SteamSpy к контракту источника CCU.
type steamSpyCCU struct {
	client *steam.SpyClient
}

func (s steamSpyCCU) FetchCCU(ctx context.Context, appID int64) (int, error) {
	snap, err := s.client.FetchOwners(ctx, appID)
	if err != nil {
		return 0, err
	}
	return snap.CCU, nil
}
