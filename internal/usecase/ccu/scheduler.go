package ccu

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"game-pulse/internal/domain"
	"game-pulse/internal/infra/metrics"
)

// skipPeriod — на сколько исключается из опроса игра, которую upstream
// объявил невалидной.
const skipPeriod = 30 * 24 * time.Hour

// Scheduler распределяет игры по трём ярусам опроса CCU и выбирает
// кандидатов на текущий цикл.
type Scheduler struct {
	tiers   domain.CCUTierRepo
	cache   domain.Cache
	topN    int
	recentN int
	now     func() time.Time
	log     zerolog.Logger
}

// NewScheduler создаёт планировщик. nowFn == nil означает time.Now.
func NewScheduler(tiers domain.CCUTierRepo, cache domain.Cache, topN, recentN int, nowFn func() time.Time, log zerolog.Logger) *Scheduler {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Scheduler{tiers: tiers, cache: cache, topN: topN, recentN: recentN, now: nowFn, log: log}
}

// EnsureTiers перестраивает ярусы целиком в нулевой час UTC, а также при
// первом запуске, когда назначений ещё нет. Once-замок в кэше защищает от
// двойной перестройки при перекрывающихся запусках.
func (s *Scheduler) EnsureTiers(ctx context.Context) error {
	now := s.now().UTC()
	count, err := s.tiers.CountAssignments(ctx)
	if err != nil {
		return fmt.Errorf("подсчёт назначений: %w", err)
	}
	if now.Hour() != 0 && count > 0 {
		return nil
	}

	key := "ccu:tiers:" + now.Format("2006-01-02")
	err = s.cache.Once(key, 24*time.Hour, func() error {
		s.log.Info().Int("top_n", s.topN).Int("recent_n", s.recentN).Msg("ccu: перестройка ярусов")
		if err := s.rebuild(ctx); err != nil {
			return fmt.Errorf("перестройка ярусов: %w", err)
		}
		s.observeTierSizes(ctx)
		return nil
	})
	return err
}

func (s *Scheduler) rebuild(ctx context.Context) error {
	catalog, err := s.tiers.ListCatalogAppIDs(ctx)
	if err != nil {
		return fmt.Errorf("чтение каталога: %w", err)
	}
	topByPeak, err := s.tiers.ListTopByPeak(ctx, s.topN)
	if err != nil {
		return fmt.Errorf("чтение топа по пику: %w", err)
	}
	recent, err := s.tiers.ListRecentReleases(ctx, s.recentN)
	if err != nil {
		return fmt.Errorf("чтение свежих релизов: %w", err)
	}
	return s.tiers.ReplaceAssignments(ctx, partitionTiers(catalog, topByPeak, recent, s.topN, s.recentN))
}

// partitionTiers раскладывает каталог по ярусам: ярус 1 — до topN игр с
// наибольшим последним пиком CCU, ярус 2 — до recentN самых свежих релизов
// вне яруса 1, ярус 3 — остальные. Каждая игра каталога попадает ровно в
// один ярус; id вне каталога игнорируются. При пересечении списков игра
// остаётся в ярусе 1.
func partitionTiers(catalog, topByPeak, recent []int64, topN, recentN int) map[int64]int {
	tiers := make(map[int64]int, len(catalog))
	for _, id := range catalog {
		tiers[id] = 3
	}
	placed := 0
	for _, id := range recent {
		if placed == recentN {
			break
		}
		if _, ok := tiers[id]; !ok {
			continue
		}
		tiers[id] = 2
		placed++
	}
	placed = 0
	for _, id := range topByPeak {
		if placed == topN {
			break
		}
		if _, ok := tiers[id]; !ok {
			continue
		}
		tiers[id] = 1
		placed++
	}
	return tiers
}

func (s *Scheduler) observeTierSizes(ctx context.Context) {
	for tier := 1; tier <= 3; tier++ {
		ids, err := s.tiers.ListTierAppIDs(ctx, tier)
		if err != nil {
			s.log.Warn().Err(err).Int("tier", tier).Msg("ccu: не удалось посчитать размер яруса")
			continue
		}
		metrics.TierSize.WithLabelValues(strconv.Itoa(tier)).Set(float64(len(ids)))
	}
}

// HourlyCandidates возвращает игры текущего часового цикла: ярус 1 каждый
// час, ярус 2 — по чётным часам. Ярус 3 обслуживается отдельным суточным
// воркером.
func (s *Scheduler) HourlyCandidates(ctx context.Context) ([]int64, error) {
	candidates, err := s.tiers.ListTierAppIDs(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("чтение яруса 1: %w", err)
	}
	if s.now().UTC().Hour()%2 == 0 {
		tier2, err := s.tiers.ListTierAppIDs(ctx, 2)
		if err != nil {
			return nil, fmt.Errorf("чтение яруса 2: %w", err)
		}
		candidates = append(candidates, tier2...)
	}
	return candidates, nil
}

// DailyCandidates возвращает игры яруса 3 без тех, у кого skip_until
// ещё в будущем.
func (s *Scheduler) DailyCandidates(ctx context.Context) ([]int64, error) {
	candidates, err := s.tiers.ListDailyCandidates(ctx, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("чтение яруса 3: %w", err)
	}
	return candidates, nil
}

// ApplyFetchOutcomes фиксирует классификацию результатов опроса: валидные
// игры очищают skip_until, невалидные исключаются на 30 дней. Временные
// ошибки не меняют состояния — игра попадёт в следующий цикл.
func (s *Scheduler) ApplyFetchOutcomes(ctx context.Context, validIDs, invalidIDs []int64) error {
	if len(validIDs) == 0 && len(invalidIDs) == 0 {
		return nil
	}
	skipUntil := SkipUntil(s.now().UTC())
	if err := s.tiers.SetFetchOutcomes(ctx, validIDs, invalidIDs, skipUntil); err != nil {
		return fmt.Errorf("запись статусов опроса: %w", err)
	}
	if len(invalidIDs) > 0 {
		s.log.Info().Int("count", len(invalidIDs)).Time("skip_until", skipUntil).
			Msg("ccu: невалидные игры исключены из опроса")
	}
	return nil
}

// SkipUntil возвращает момент, до которого исключается невалидная игра.
func SkipUntil(now time.Time) time.Time {
	return now.Add(skipPeriod)
}
