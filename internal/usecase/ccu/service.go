package ccu

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"game-pulse/internal/domain"
	"game-pulse/internal/infra/metrics"
	"game-pulse/internal/usecase/fetch"
	"game-pulse/internal/usecase/syncrun"
)

// Service связывает планировщик ярусов, исполнитель опроса и keep-max
// мерджер в один цикл опроса CCU.
type Service struct {
	scheduler  *Scheduler
	merger     *Merger
	source     domain.CCUSource
	sourceName string
	executor   *fetch.Executor
	now        func() time.Time
	log        zerolog.Logger
}

// NewService создаёт сервис опроса CCU. sourceName попадает в ccu_source
// дневной метрики. nowFn == nil означает time.Now.
func NewService(scheduler *Scheduler, merger *Merger, source domain.CCUSource, sourceName string, executor *fetch.Executor, nowFn func() time.Time, log zerolog.Logger) *Service {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Service{scheduler: scheduler, merger: merger, source: source, sourceName: sourceName, executor: executor, now: nowFn, log: log}
}

// RunHourly выполняет часовой цикл: ярус 1 всегда, ярус 2 по чётным часам.
// Перед выборкой кандидатов при необходимости перестраивает ярусы.
func (s *Service) RunHourly(ctx context.Context, run *syncrun.Run) error {
	if err := s.scheduler.EnsureTiers(ctx); err != nil {
		return err
	}
	candidates, err := s.scheduler.HourlyCandidates(ctx)
	if err != nil {
		return err
	}
	return s.poll(ctx, run, candidates)
}

// RunDaily выполняет суточный обход яруса 3 без игр со skip_until в будущем.
func (s *Service) RunDaily(ctx context.Context, run *syncrun.Run) error {
	if err := s.scheduler.EnsureTiers(ctx); err != nil {
		return err
	}
	candidates, err := s.scheduler.DailyCandidates(ctx)
	if err != nil {
		return err
	}
	return s.poll(ctx, run, candidates)
}

func (s *Service) poll(ctx context.Context, run *syncrun.Run, candidates []int64) error {
	if len(candidates) == 0 {
		s.log.Info().Msg("ccu: нет кандидатов на этот цикл")
		return nil
	}
	s.log.Info().Int("candidates", len(candidates)).Msg("ccu: начинаем опрос")

	results := fetch.Execute(ctx, s.executor, candidates, s.source.FetchCCU, func(done, total int) {
		s.log.Info().Int("done", done).Int("total", total).Msg("ccu: прогресс опроса")
	})
	run.Counters.Processed = len(results)

	valid, invalid, failed := fetch.SplitByStatus(results)
	metrics.FetchTotal.WithLabelValues("ccu", string(fetch.StatusValid)).Add(float64(len(valid)))
	metrics.FetchTotal.WithLabelValues("ccu", string(fetch.StatusInvalid)).Add(float64(len(invalid)))
	metrics.FetchTotal.WithLabelValues("ccu", string(fetch.StatusError)).Add(float64(len(failed)))

	day := s.now().UTC().Truncate(24 * time.Hour)
	succeeded, mergeFailed := s.merger.MergeCCUPeaks(ctx, day, s.sourceName, valid)
	run.Counters.Succeeded = succeeded
	run.Counters.Failed = len(failed) + mergeFailed
	run.Counters.Skipped = len(invalid)

	if err := s.scheduler.ApplyFetchOutcomes(ctx, keys(valid), invalid); err != nil {
		return fmt.Errorf("применение статусов опроса: %w", err)
	}
	return nil
}

func keys(values map[int64]int) []int64 {
	out := make([]int64, 0, len(values))
	for id := range values {
		out = append(out, id)
	}
	return out
}
