package syncrun

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"game-pulse/internal/domain"
	"game-pulse/internal/infra/metrics"
)

// Run — рабочее состояние одного запуска, доступное телу воркера.
type Run struct {
	Counters domain.SyncJobCounters
	Metadata map[string]any
}

// Runner оборачивает тело воркера в единый жизненный цикл записи о запуске:
// running создаётся до начала работы, терминальный переход (completed либо
// failed) выполняется ровно один раз. Контракт общий для всех воркеров,
// поэтому мониторинг читает их одинаково.
type Runner struct {
	jobs     domain.SyncJobRepo
	events   domain.JobEventPublisher
	notifier domain.FailureNotifier
	runID    string
	log      zerolog.Logger
}

// NewRunner создаёт раннер. events и notifier могут быть nil — тогда
// публикация событий и алерты пропускаются. Пустой runID заменяется
// сгенерированным UUID.
func NewRunner(jobs domain.SyncJobRepo, events domain.JobEventPublisher, notifier domain.FailureNotifier, runID string, log zerolog.Logger) *Runner {
	if runID == "" {
		runID = uuid.NewString()
	}
	return &Runner{jobs: jobs, events: events, notifier: notifier, runID: runID, log: log}
}

// RunID возвращает сквозной идентификатор запуска.
func (r *Runner) RunID() string {
	return r.runID
}

// Run выполняет тело воркера под записью о запуске. Возвращённая из fn
// ошибка переводит запись в failed с частичными счётчиками; вызывающая
// сторона обязана завершить процесс ненулевым кодом.
func (r *Runner) Run(ctx context.Context, jobType string, batchSize int, fn func(ctx context.Context, run *Run) error) error {
	jobID, err := r.jobs.CreateJob(ctx, jobType, r.runID, batchSize)
	if err != nil {
		return fmt.Errorf("регистрация запуска %s: %w", jobType, err)
	}

	jobLog := r.log.With().Int64("job_id", jobID).Str("job_type", jobType).Str("run_id", r.runID).Logger()
	jobLog.Info().Int("batch_size", batchSize).Msg("запуск зарегистрирован")

	started := time.Now()
	run := &Run{}
	if err := fn(ctx, run); err != nil {
		metrics.JobDurationSeconds.WithLabelValues(jobType, string(domain.SyncJobFailed)).Observe(time.Since(started).Seconds())
		if failErr := r.jobs.FailJob(ctx, jobID, run.Counters, err.Error()); failErr != nil {
			jobLog.Error().Err(failErr).Msg("не удалось пометить запуск failed")
		}
		r.notifyFailure(ctx, jobType, err, jobLog)
		jobLog.Error().Err(err).Interface("counters", run.Counters).Msg("запуск завершился ошибкой")
		return err
	}

	metrics.JobDurationSeconds.WithLabelValues(jobType, string(domain.SyncJobCompleted)).Observe(time.Since(started).Seconds())
	if err := r.jobs.CompleteJob(ctx, jobID, run.Counters, run.Metadata); err != nil {
		return fmt.Errorf("завершение записи о запуске: %w", err)
	}
	r.publishEvent(ctx, jobID, jobType, run.Counters, jobLog)
	jobLog.Info().Interface("counters", run.Counters).Msg("запуск завершён")
	return nil
}

func (r *Runner) publishEvent(ctx context.Context, jobID int64, jobType string, counters domain.SyncJobCounters, jobLog zerolog.Logger) {
	if r.events == nil {
		return
	}
	event := domain.JobEvent{
		JobID:       jobID,
		JobType:     jobType,
		Status:      domain.SyncJobCompleted,
		RunID:       r.runID,
		Counters:    counters,
		CompletedAt: time.Now().UTC(),
	}
	if err := r.events.PublishJobEvent(ctx, event); err != nil {
		jobLog.Error().Err(err).Msg("не удалось опубликовать событие о запуске")
	}
}

func (r *Runner) notifyFailure(ctx context.Context, jobType string, cause error, jobLog zerolog.Logger) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.NotifyFailure(ctx, jobType, r.runID, cause.Error()); err != nil {
		jobLog.Error().Err(err).Msg("не удалось отправить алерт о падении")
	}
}
