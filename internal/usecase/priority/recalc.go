package priority

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"game-pulse/internal/domain"
	"game-pulse/internal/infra/metrics"
)

// Recalculator постранично пересчитывает приоритеты всего каталога.
type Recalculator struct {
	statuses domain.SyncStatusRepo
	dailies  domain.DailyMetricRepo
	trends   domain.TrendRepo
	scorer   *Scorer
	pageSize int
	now      func() time.Time
	log      zerolog.Logger
}

// NewRecalculator создаёт сервис пересчёта. nowFn == nil означает time.Now.
func NewRecalculator(statuses domain.SyncStatusRepo, dailies domain.DailyMetricRepo, trends domain.TrendRepo, scorer *Scorer, pageSize int, nowFn func() time.Time, log zerolog.Logger) *Recalculator {
	if pageSize < 1 {
		pageSize = 500
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Recalculator{statuses: statuses, dailies: dailies, trends: trends, scorer: scorer, pageSize: pageSize, now: nowFn, log: log}
}

// Run обходит каталог страницами и батчево записывает новые приоритеты.
// Ошибка записи одной страницы логируется и не прерывает остальные.
func (r *Recalculator) Run(ctx context.Context, counters *domain.SyncJobCounters) error {
	var afterAppID int64
	for {
		page, err := r.statuses.ListPage(ctx, afterAppID, r.pageSize)
		if err != nil {
			return fmt.Errorf("чтение страницы статусов после app_id=%d: %w", afterAppID, err)
		}
		if len(page.Statuses) == 0 {
			return nil
		}
		afterAppID = page.LastAppID

		updates, err := r.scorePage(ctx, page.Statuses)
		if err != nil {
			return err
		}
		counters.Processed += len(updates)

		if err := r.statuses.UpsertPriorities(ctx, updates); err != nil {
			metrics.PriorityPagesFailed.Inc()
			counters.Failed += len(updates)
			r.log.Error().Err(err).Int64("after_app_id", afterAppID).Int("page", len(updates)).
				Msg("priority: не удалось записать страницу, продолжаем")
			continue
		}
		counters.Succeeded += len(updates)
		counters.Updated += len(updates)
	}
}

func (r *Recalculator) scorePage(ctx context.Context, statuses []domain.SyncStatus) ([]domain.PriorityUpdate, error) {
	appIDs := make([]int64, 0, len(statuses))
	for _, st := range statuses {
		appIDs = append(appIDs, st.AppID)
	}

	latestMetrics, err := r.dailies.LatestMetrics(ctx, appIDs)
	if err != nil {
		return nil, fmt.Errorf("чтение последних метрик: %w", err)
	}
	latestTrends, err := r.trends.LatestTrends(ctx, appIDs)
	if err != nil {
		return nil, fmt.Errorf("чтение трендов: %w", err)
	}

	now := r.now().UTC()
	updates := make([]domain.PriorityUpdate, 0, len(statuses))
	for _, st := range statuses {
		in := ScoreInput{NeverSynced: st.NeverSynced()}
		if metric, ok := latestMetrics[st.AppID]; ok {
			in.CCUPeak = metric.CCUPeak
			in.TotalReviews = metric.PositiveReviews + metric.NegativeReviews
		}
		if tr, ok := latestTrends[st.AppID]; ok {
			in.ReviewVelocity7d = tr.ReviewVelocity7d
			in.TrendChangePct = tr.ChangePct30d
		}
		result := r.scorer.Score(in)
		updates = append(updates, domain.PriorityUpdate{
			AppID:             st.AppID,
			PriorityScore:     result.PriorityScore,
			RefreshTier:       result.RefreshTier,
			SyncIntervalHours: result.SyncIntervalHours,
			CalculatedAt:      now,
			NextSyncAfter:     now.Add(time.Duration(result.SyncIntervalHours) * time.Hour),
		})
	}
	return updates, nil
}
