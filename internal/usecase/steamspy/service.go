package steamspy

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"game-pulse/internal/domain"
	"game-pulse/internal/infra/metrics"
	"game-pulse/internal/usecase/ccu"
	"game-pulse/internal/usecase/fetch"
	"game-pulse/internal/usecase/syncrun"
)

// upsertBatchSize ограничивает размер одного батча записи владельцев.
const upsertBatchSize = 500

// Service синхронизирует оценку владельцев и счётчики отзывов из SteamSpy.
// Попутно вливает отданное SteamSpy значение CCU через keep-max мерджер:
// для игр яруса 3 это единственный источник пика за день.
type Service struct {
	statuses domain.SyncStatusRepo
	dailies  domain.DailyMetricRepo
	merger   *ccu.Merger
	source   domain.OwnersSource
	executor *fetch.Executor
	batch    int
	now      func() time.Time
	log      zerolog.Logger
}

// NewService создаёт сервис. nowFn == nil означает time.Now.
func NewService(statuses domain.SyncStatusRepo, dailies domain.DailyMetricRepo, merger *ccu.Merger, source domain.OwnersSource, executor *fetch.Executor, batch int, nowFn func() time.Time, log zerolog.Logger) *Service {
	if batch < 1 {
		batch = 500
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Service{statuses: statuses, dailies: dailies, merger: merger, source: source, executor: executor, batch: batch, now: nowFn, log: log}
}

// Sync обрабатывает очередной батч игр по приоритету.
func (s *Service) Sync(ctx context.Context, run *syncrun.Run) error {
	now := s.now().UTC()
	due, err := s.statuses.ListDueForSource(ctx, domain.SourceSteamSpy, now, s.batch)
	if err != nil {
		return fmt.Errorf("выборка игр для синка SteamSpy: %w", err)
	}
	if len(due) == 0 {
		s.log.Info().Msg("steamspy: нечего синхронизировать")
		return nil
	}

	appIDs := make([]int64, 0, len(due))
	for _, st := range due {
		appIDs = append(appIDs, st.AppID)
	}
	s.log.Info().Int("due", len(appIDs)).Msg("steamspy: начинаем синк")

	results := fetch.Execute(ctx, s.executor, appIDs, s.source.FetchOwners, func(done, total int) {
		s.log.Info().Int("done", done).Int("total", total).Msg("steamspy: прогресс")
	})
	run.Counters.Processed = len(results)

	snapshots, invalid, failed := fetch.SplitByStatus(results)
	metrics.FetchTotal.WithLabelValues(domain.SourceSteamSpy, string(fetch.StatusValid)).Add(float64(len(snapshots)))
	metrics.FetchTotal.WithLabelValues(domain.SourceSteamSpy, string(fetch.StatusInvalid)).Add(float64(len(invalid)))
	metrics.FetchTotal.WithLabelValues(domain.SourceSteamSpy, string(fetch.StatusError)).Add(float64(len(failed)))
	run.Counters.Failed = len(failed)
	run.Counters.Skipped = len(invalid)

	day := now.Truncate(24 * time.Hour)
	synced := s.storeSnapshots(ctx, run, day, snapshots, &failed)
	synced = append(synced, invalid...)

	ccuValues := make(map[int64]int, len(snapshots))
	for appID, snap := range snapshots {
		if snap.CCU > 0 {
			ccuValues[appID] = snap.CCU
		}
	}
	if len(ccuValues) > 0 {
		// Попутный вклад в дневной пик: его провал не отменяет синк
		// владельцев, но должен быть виден в счётчиках запуска.
		if _, mergeFailed := s.merger.MergeCCUPeaks(ctx, day, domain.CCUSourceSteamSpy, ccuValues); mergeFailed > 0 {
			run.Counters.Failed += mergeFailed
		}
	}

	if len(synced) > 0 {
		if err := s.statuses.MarkSourceSynced(ctx, domain.SourceSteamSpy, synced, now); err != nil {
			return fmt.Errorf("отметка синка SteamSpy: %w", err)
		}
	}
	if len(failed) > 0 {
		if err := s.statuses.IncrementErrors(ctx, failed); err != nil {
			return fmt.Errorf("учёт ошибок синка SteamSpy: %w", err)
		}
	}
	return nil
}

// storeSnapshots пишет снапшоты владельцев батчами. Ошибка батча помечает
// его игры неуспешными, остальные батчи продолжаются.
func (s *Service) storeSnapshots(ctx context.Context, run *syncrun.Run, day time.Time, snapshots map[int64]domain.OwnersSnapshot, failed *[]int64) []int64 {
	appIDs := make([]int64, 0, len(snapshots))
	for appID := range snapshots {
		appIDs = append(appIDs, appID)
	}

	synced := make([]int64, 0, len(appIDs))
	for start := 0; start < len(appIDs); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(appIDs) {
			end = len(appIDs)
		}
		batch := make(map[int64]domain.OwnersSnapshot, end-start)
		for _, appID := range appIDs[start:end] {
			batch[appID] = snapshots[appID]
		}
		if err := s.dailies.UpsertOwnerCounts(ctx, day, batch); err != nil {
			s.log.Error().Err(err).Int("batch", len(batch)).Msg("steamspy: не удалось записать батч владельцев")
			run.Counters.Failed += len(batch)
			*failed = append(*failed, appIDs[start:end]...)
			continue
		}
		run.Counters.Succeeded += len(batch)
		run.Counters.Updated += len(batch)
		synced = append(synced, appIDs[start:end]...)
	}
	return synced
}
