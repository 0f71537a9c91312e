package config

import (
	"log"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию воркеров.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	TZ     string `envconfig:"TZ" default:"UTC"`

	PGDSN     string `envconfig:"PG_DSN"`
	RedisAddr string `envconfig:"REDIS_ADDR"`
	RabbitURL string `envconfig:"RABBITMQ_URL"`

	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	// RunID — сквозной идентификатор запуска из внешнего планировщика (CI).
	// Если пуст, воркер генерирует свой.
	RunID string `envconfig:"RUN_ID"`

	Fetch struct {
		Concurrency  int `envconfig:"FETCH_CONCURRENCY" default:"15"`
		ProgressStep int `envconfig:"FETCH_PROGRESS_STEP" default:"50"`
	} `envconfig:""`

	Batch struct {
		Merge  int `envconfig:"MERGE_BATCH_SIZE" default:"100"`
		Upsert int `envconfig:"UPSERT_BATCH_SIZE" default:"500"`
		Due    int `envconfig:"DUE_BATCH_SIZE" default:"500"`
	} `envconfig:""`

	Tiers struct {
		TopN    int `envconfig:"CCU_TIER1_SIZE" default:"2000"`
		RecentN int `envconfig:"CCU_TIER2_SIZE" default:"5000"`
	} `envconfig:""`

	Score struct {
		CCUHigh   int `envconfig:"SCORE_CCU_HIGH" default:"1000"`
		CCUMedium int `envconfig:"SCORE_CCU_MEDIUM" default:"100"`
		CCULow    int `envconfig:"SCORE_CCU_LOW" default:"10"`
	} `envconfig:""`

	Steam struct {
		APIBaseURL     string `envconfig:"STEAM_API_BASE_URL" default:"https://api.steampowered.com"`
		StoreBaseURL   string `envconfig:"STEAM_STORE_BASE_URL" default:"https://store.steampowered.com"`
		SpyBaseURL     string `envconfig:"STEAMSPY_BASE_URL" default:"https://steamspy.com"`
		TimeoutSeconds int    `envconfig:"STEAM_HTTP_TIMEOUT" default:"20"`
	} `envconfig:""`

	Alerts struct {
		TelegramToken  string `envconfig:"TG_ALERT_TOKEN"`
		TelegramChatID int64  `envconfig:"TG_ALERT_CHAT_ID"`
	} `envconfig:""`

	Queues struct {
		JobEvents string `envconfig:"JOB_EVENTS_QUEUE" default:"sync_job_events"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
