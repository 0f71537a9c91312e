package reviews

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"game-pulse/internal/domain"
	"game-pulse/internal/infra/metrics"
	"game-pulse/internal/usecase/fetch"
	"game-pulse/internal/usecase/syncrun"
	"game-pulse/internal/usecase/trend"
)

// Service синхронизирует гистограммы отзывов для игр, которым пора,
// и сразу пересчитывает тренды по обновлённой гистограмме.
type Service struct {
	statuses domain.SyncStatusRepo
	reviews  domain.ReviewRepo
	trends   domain.TrendRepo
	source   domain.ReviewSource
	executor *fetch.Executor
	batch    int
	now      func() time.Time
	log      zerolog.Logger
}

// NewService создаёт сервис. nowFn == nil означает time.Now.
func NewService(statuses domain.SyncStatusRepo, reviews domain.ReviewRepo, trends domain.TrendRepo, source domain.ReviewSource, executor *fetch.Executor, batch int, nowFn func() time.Time, log zerolog.Logger) *Service {
	if batch < 1 {
		batch = 500
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Service{statuses: statuses, reviews: reviews, trends: trends, source: source, executor: executor, batch: batch, now: nowFn, log: log}
}

// Sync обрабатывает очередной батч игр по приоритету.
func (s *Service) Sync(ctx context.Context, run *syncrun.Run) error {
	now := s.now().UTC()
	due, err := s.statuses.ListDueForSource(ctx, domain.SourceReviews, now, s.batch)
	if err != nil {
		return fmt.Errorf("выборка игр для синка отзывов: %w", err)
	}
	if len(due) == 0 {
		s.log.Info().Msg("reviews: нечего синхронизировать")
		return nil
	}

	appIDs := make([]int64, 0, len(due))
	for _, st := range due {
		appIDs = append(appIDs, st.AppID)
	}
	s.log.Info().Int("due", len(appIDs)).Msg("reviews: начинаем синк")

	results := fetch.Execute(ctx, s.executor, appIDs, s.source.FetchHistogram, func(done, total int) {
		s.log.Info().Int("done", done).Int("total", total).Msg("reviews: прогресс")
	})
	run.Counters.Processed = len(results)

	histograms, invalid, failed := fetch.SplitByStatus(results)
	metrics.FetchTotal.WithLabelValues(domain.SourceReviews, string(fetch.StatusValid)).Add(float64(len(histograms)))
	metrics.FetchTotal.WithLabelValues(domain.SourceReviews, string(fetch.StatusInvalid)).Add(float64(len(invalid)))
	metrics.FetchTotal.WithLabelValues(domain.SourceReviews, string(fetch.StatusError)).Add(float64(len(failed)))
	run.Counters.Failed = len(failed)

	synced := make([]int64, 0, len(histograms)+len(invalid))
	for appID, entries := range histograms {
		if err := s.storeGame(ctx, appID, entries, now); err != nil {
			s.log.Error().Err(err).Int64("app_id", appID).Msg("reviews: не удалось сохранить игру")
			run.Counters.Failed++
			failed = append(failed, appID)
			continue
		}
		run.Counters.Succeeded++
		run.Counters.Updated++
		synced = append(synced, appID)
	}

	// Невалидные id получают отметку синка: повторная попытка не раньше,
	// чем через их интервал, а не в каждом запуске.
	run.Counters.Skipped = len(invalid)
	synced = append(synced, invalid...)

	if len(synced) > 0 {
		if err := s.statuses.MarkSourceSynced(ctx, domain.SourceReviews, synced, now); err != nil {
			return fmt.Errorf("отметка синка отзывов: %w", err)
		}
	}
	if len(failed) > 0 {
		if err := s.statuses.IncrementErrors(ctx, failed); err != nil {
			return fmt.Errorf("учёт ошибок синка отзывов: %w", err)
		}
	}
	return nil
}

// storeGame записывает гистограмму и пересчитывает тренд игры целиком.
func (s *Service) storeGame(ctx context.Context, appID int64, entries []domain.ReviewMonth, now time.Time) error {
	if err := s.reviews.UpsertHistogram(ctx, appID, entries); err != nil {
		return fmt.Errorf("запись гистограммы: %w", err)
	}
	full, err := s.reviews.GetHistogram(ctx, appID)
	if err != nil {
		return fmt.Errorf("чтение гистограммы: %w", err)
	}
	tr := trend.Compute(full, now)
	if tr == nil {
		// Меньше двух корзин — тренд не синтезируется.
		return nil
	}
	tr.AppID = appID
	if err := s.trends.UpsertTrend(ctx, *tr); err != nil {
		return fmt.Errorf("запись тренда: %w", err)
	}
	return nil
}
