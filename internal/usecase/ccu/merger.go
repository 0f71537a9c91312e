package ccu

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"game-pulse/internal/domain"
	"game-pulse/internal/infra/metrics"
)

// mergeBatchSize — размер по умолчанию одного цикла «чтение — фильтр —
// запись», чтобы транзакции оставались короткими и проверяемыми.
const mergeBatchSize = 100

// Merger применяет keep-max при записи дневных пиков CCU: новое значение
// попадает в БД, только если оно не меньше сохранённого. Благодаря этому
// повторные и перекрывающиеся запуски воркеров безопасны.
//
// Чтение и запись — два шага, а не атомарный compare-and-swap: при паре
// одновременных писателей одного дня возможно окно гонки. При ожидаемой
// нагрузке (единицы писателей в день) этого достаточно.
type Merger struct {
	dailies   domain.DailyMetricRepo
	batchSize int
	log       zerolog.Logger
}

// NewMerger создаёт мерджер. batchSize меньше 1 заменяется умолчанием.
func NewMerger(dailies domain.DailyMetricRepo, batchSize int, log zerolog.Logger) *Merger {
	if batchSize < 1 {
		batchSize = mergeBatchSize
	}
	return &Merger{dailies: dailies, batchSize: batchSize, log: log}
}

// MergeCCUPeaks записывает наблюдённые пики за день батчами. Значения ниже
// сохранённых считаются успешными no-op. Ошибка записи батча помечает весь
// батч неуспешным, остальные батчи продолжаются.
func (m *Merger) MergeCCUPeaks(ctx context.Context, day time.Time, source string, values map[int64]int) (succeeded, failed int) {
	appIDs := make([]int64, 0, len(values))
	for appID := range values {
		appIDs = append(appIDs, appID)
	}

	for start := 0; start < len(appIDs); start += m.batchSize {
		end := start + m.batchSize
		if end > len(appIDs) {
			end = len(appIDs)
		}
		batch := appIDs[start:end]

		existing, err := m.dailies.GetCCUPeaks(ctx, day, batch)
		if err != nil {
			m.log.Error().Err(err).Int("batch", len(batch)).Msg("merge: не удалось прочитать сохранённые пики")
			failed += len(batch)
			continue
		}

		kept := make(map[int64]int, len(batch))
		skipped := 0
		for _, appID := range batch {
			observed := values[appID]
			if observed >= existing[appID] {
				kept[appID] = observed
			} else {
				skipped++
			}
		}

		if len(kept) > 0 {
			if err := m.dailies.UpsertCCUPeaks(ctx, day, source, kept); err != nil {
				m.log.Error().Err(err).Int("batch", len(batch)).Msg("merge: не удалось записать батч пиков")
				failed += len(batch)
				continue
			}
		}

		metrics.MergeKeptTotal.Add(float64(len(kept)))
		metrics.MergeSkippedTotal.Add(float64(skipped))
		succeeded += len(batch)
	}
	return succeeded, failed
}
