package domain

import (
	"context"
	"errors"
	"time"
)

// ErrAppInvalid возвращается источником, когда upstream явно сообщает,
// что id не существует или не отслеживается. Отличается от временной
// ошибки: игра исключается из опроса на 30 дней.
var ErrAppInvalid = errors.New("источник не отслеживает этот app id")

// SyncJobStatus — состояние записи о запуске воркера.
type SyncJobStatus string

const (
	// SyncJobRunning — запуск зарегистрирован, работа идёт.
	SyncJobRunning SyncJobStatus = "running"
	// SyncJobCompleted — запуск завершился успешно. Терминальное состояние.
	SyncJobCompleted SyncJobStatus = "completed"
	// SyncJobFailed — запуск упал с фатальной ошибкой. Терминальное состояние.
	SyncJobFailed SyncJobStatus = "failed"
)

// SyncJobCounters — итоговые счётчики одного запуска.
type SyncJobCounters struct {
	Processed int
	Succeeded int
	Failed    int
	Created   int
	Updated   int
	Skipped   int
}

// SyncJob — запись аудита об одном запуске воркера. Создаётся в состоянии
// running до начала работы и ровно один раз переводится в completed либо failed.
type SyncJob struct {
	ID           int64
	JobType      string
	Status       SyncJobStatus
	StartedAt    time.Time
	CompletedAt  *time.Time
	Counters     SyncJobCounters
	ErrorMessage string
	BatchSize    int
	RunID        string
	Metadata     map[string]any
}

// SyncJobRepo ведёт журнал запусков воркеров.
type SyncJobRepo interface {
	// CreateJob регистрирует запуск в состоянии running и возвращает id записи.
	CreateJob(ctx context.Context, jobType, runID string, batchSize int) (int64, error)
	// CompleteJob переводит запись в completed с итоговыми счётчиками.
	CompleteJob(ctx context.Context, jobID int64, counters SyncJobCounters, metadata map[string]any) error
	// FailJob переводит запись в failed, сохраняя частичные счётчики и текст ошибки.
	FailJob(ctx context.Context, jobID int64, counters SyncJobCounters, errorMessage string) error
}

// JobEvent — уведомление о завершённом запуске для смежных потребителей
// (например, воркера эмбеддингов).
type JobEvent struct {
	JobID       int64           `json:"job_id"`
	JobType     string          `json:"job_type"`
	Status      SyncJobStatus   `json:"status"`
	RunID       string          `json:"run_id,omitempty"`
	Counters    SyncJobCounters `json:"counters"`
	CompletedAt time.Time       `json:"completed_at"`
}

// JobEventPublisher публикует события о завершении запусков.
type JobEventPublisher interface {
	PublishJobEvent(ctx context.Context, event JobEvent) error
}

// FailureNotifier уведомляет дежурных о фатальной ошибке запуска.
type FailureNotifier interface {
	NotifyFailure(ctx context.Context, jobType, runID, message string) error
}
