package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	FetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "source_fetch_total",
		Help: "Количество обращений к источникам по статусу результата",
	}, []string{"source", "status"})

	MergeKeptTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ccu_merge_kept_total",
		Help: "Записи, прошедшие keep-max фильтр и записанные в БД",
	})
	MergeSkippedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ccu_merge_skipped_total",
		Help: "Записи, отброшенные keep-max фильтром (сохранённый пик выше)",
	})

	JobDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sync_job_duration_seconds",
		Help:    "Длительность запусков воркеров",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800, 3600},
	}, []string{"job_type", "status"})

	TierSize = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ccu_tier_size",
		Help: "Число игр в ярусе опроса CCU после перестройки",
	}, []string{"tier"})

	PriorityPagesFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "priority_pages_failed_total",
		Help: "Страницы пересчёта приоритетов, упавшие при записи",
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: prometheus.DefBuckets,
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		FetchTotal,
		MergeKeptTotal,
		MergeSkippedTotal,
		JobDurationSeconds,
		TierSize,
		PriorityPagesFailed,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// StartServer запускает HTTP сервер с эндпоинтами /metrics и /healthz.
// Воркеры короткоживущие, поэтому сервер поднимается на время запуска.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}
