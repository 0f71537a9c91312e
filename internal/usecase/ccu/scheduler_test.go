package ccu

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"game-pulse/internal/domain"
	"game-pulse/internal/infra/cache"
)

type stubTierRepo struct {
	assignments map[int64]*domain.CCUTierAssignment
	catalog     []int64
	topByPeak   []int64
	recent      []int64
	rebuilds    int
}

func newStubTierRepo() *stubTierRepo {
	return &stubTierRepo{assignments: make(map[int64]*domain.CCUTierAssignment)}
}

func (s *stubTierRepo) add(appID int64, tier int) {
	s.assignments[appID] = &domain.CCUTierAssignment{AppID: appID, Tier: tier, FetchStatus: domain.FetchStatusUnknown}
	s.catalog = append(s.catalog, appID)
}

func (s *stubTierRepo) CountAssignments(context.Context) (int, error) {
	return len(s.assignments), nil
}

func (s *stubTierRepo) ListCatalogAppIDs(context.Context) ([]int64, error) {
	return s.catalog, nil
}

func (s *stubTierRepo) ListTopByPeak(_ context.Context, limit int) ([]int64, error) {
	if len(s.topByPeak) > limit {
		return s.topByPeak[:limit], nil
	}
	return s.topByPeak, nil
}

func (s *stubTierRepo) ListRecentReleases(_ context.Context, limit int) ([]int64, error) {
	if len(s.recent) > limit {
		return s.recent[:limit], nil
	}
	return s.recent, nil
}

func (s *stubTierRepo) ReplaceAssignments(_ context.Context, tiers map[int64]int) error {
	s.rebuilds++
	for id, tier := range tiers {
		if a, ok := s.assignments[id]; ok {
			a.Tier = tier
			continue
		}
		s.assignments[id] = &domain.CCUTierAssignment{AppID: id, Tier: tier, FetchStatus: domain.FetchStatusUnknown}
	}
	for id := range s.assignments {
		if _, ok := tiers[id]; !ok {
			delete(s.assignments, id)
		}
	}
	return nil
}

func (s *stubTierRepo) ListTierAppIDs(_ context.Context, tier int) ([]int64, error) {
	var out []int64
	for id, a := range s.assignments {
		if a.Tier == tier {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *stubTierRepo) ListDailyCandidates(_ context.Context, now time.Time) ([]int64, error) {
	var out []int64
	for id, a := range s.assignments {
		if a.Tier != 3 {
			continue
		}
		if a.SkipUntil != nil && a.SkipUntil.After(now) {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

func (s *stubTierRepo) SetFetchOutcomes(_ context.Context, validIDs, invalidIDs []int64, skipUntil time.Time) error {
	for _, id := range validIDs {
		if a, ok := s.assignments[id]; ok {
			a.FetchStatus = domain.FetchStatusValid
			a.SkipUntil = nil
		}
	}
	for _, id := range invalidIDs {
		if a, ok := s.assignments[id]; ok {
			a.FetchStatus = domain.FetchStatusInvalid
			until := skipUntil
			a.SkipUntil = &until
		}
	}
	return nil
}

func atHour(hour int) func() time.Time {
	return func() time.Time {
		return time.Date(2025, 6, 15, hour, 30, 0, 0, time.UTC)
	}
}

func newTestScheduler(repo *stubTierRepo, hour int) *Scheduler {
	return NewScheduler(repo, cache.NewMemory(atHour(hour)), 2, 2, atHour(hour), zerolog.Nop())
}

func TestPartitionTiersEveryGameExactlyOnce(t *testing.T) {
	catalog := []int64{1, 2, 3, 4, 5, 6}
	topByPeak := []int64{1, 2}
	recent := []int64{3, 4}

	tiers := partitionTiers(catalog, topByPeak, recent, 2, 2)

	if len(tiers) != len(catalog) {
		t.Fatalf("каждая игра каталога должна получить ярус, получили %d из %d", len(tiers), len(catalog))
	}
	for _, id := range catalog {
		tier, ok := tiers[id]
		if !ok {
			t.Fatalf("игра %d осталась без яруса", id)
		}
		if tier < 1 || tier > 3 {
			t.Fatalf("игра %d получила недопустимый ярус %d", id, tier)
		}
	}
	want := map[int64]int{1: 1, 2: 1, 3: 2, 4: 2, 5: 3, 6: 3}
	for id, tier := range want {
		if tiers[id] != tier {
			t.Fatalf("игра %d: ожидали ярус %d, получили %d", id, tier, tiers[id])
		}
	}
}

func TestPartitionTiersCapsTierOneAtTopN(t *testing.T) {
	catalog := []int64{1, 2, 3, 4, 5}
	// Список длиннее topN: в ярус 1 попадают только первые topN.
	topByPeak := []int64{1, 2, 3, 4}

	tiers := partitionTiers(catalog, topByPeak, nil, 2, 2)

	tierOne := 0
	for _, tier := range tiers {
		if tier == 1 {
			tierOne++
		}
	}
	if tierOne != 2 {
		t.Fatalf("ярус 1 не должен превышать topN=2, получили %d", tierOne)
	}
	if tiers[1] != 1 || tiers[2] != 1 {
		t.Fatalf("в ярус 1 должны попасть первые по пику, получили %v", tiers)
	}
	if tiers[3] != 3 || tiers[4] != 3 {
		t.Fatalf("не вместившиеся в topN остаются в ярусе 3, получили %v", tiers)
	}
}

func TestPartitionTiersTierOneWinsOverlap(t *testing.T) {
	catalog := []int64{1, 2, 3}
	// Игра 1 и свежий релиз, и в топе по пику.
	tiers := partitionTiers(catalog, []int64{1}, []int64{1, 2}, 2, 2)

	if tiers[1] != 1 {
		t.Fatalf("при пересечении игра остаётся в ярусе 1, получили %d", tiers[1])
	}
	if tiers[2] != 2 || tiers[3] != 3 {
		t.Fatalf("неожиданная раскладка: %v", tiers)
	}
}

func TestPartitionTiersIgnoresUnknownIDs(t *testing.T) {
	catalog := []int64{1, 2}
	// Сигналы по играм вне каталога не создают назначений.
	tiers := partitionTiers(catalog, []int64{99, 1}, []int64{98}, 2, 2)

	if len(tiers) != 2 {
		t.Fatalf("назначения только для каталога, получили %v", tiers)
	}
	if tiers[1] != 1 || tiers[2] != 3 {
		t.Fatalf("неожиданная раскладка: %v", tiers)
	}
}

func TestEnsureTiersRebuildsAtMidnight(t *testing.T) {
	repo := newStubTierRepo()
	repo.add(1, 1)
	s := newTestScheduler(repo, 0)
	if err := s.EnsureTiers(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if repo.rebuilds != 1 {
		t.Fatalf("в нулевой час ожидали перестройку, получили %d", repo.rebuilds)
	}
}

func TestEnsureTiersSkipsOtherHours(t *testing.T) {
	repo := newStubTierRepo()
	repo.add(1, 1)
	s := newTestScheduler(repo, 13)
	if err := s.EnsureTiers(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if repo.rebuilds != 0 {
		t.Fatalf("вне нулевого часа перестройки быть не должно")
	}
}

func TestEnsureTiersBootstrapsEmptyAssignments(t *testing.T) {
	repo := newStubTierRepo()
	repo.catalog = []int64{1, 2}
	s := newTestScheduler(repo, 13)
	if err := s.EnsureTiers(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if repo.rebuilds != 1 {
		t.Fatalf("без назначений ожидали принудительную перестройку")
	}
	if len(repo.assignments) != 2 {
		t.Fatalf("после перестройки весь каталог в назначениях, получили %d", len(repo.assignments))
	}
}

func TestEnsureTiersRebuildPreservesSkipUntil(t *testing.T) {
	repo := newStubTierRepo()
	repo.add(1, 3)
	repo.add(2, 3)
	repo.topByPeak = []int64{2}
	until := atHour(0)().Add(10 * 24 * time.Hour)
	repo.assignments[1].SkipUntil = &until
	repo.assignments[1].FetchStatus = domain.FetchStatusInvalid

	s := newTestScheduler(repo, 0)
	if err := s.EnsureTiers(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	a := repo.assignments[1]
	if a.SkipUntil == nil || a.FetchStatus != domain.FetchStatusInvalid {
		t.Fatalf("перестройка не должна сбрасывать skip_until, получили %+v", a)
	}
	if repo.assignments[2].Tier != 1 {
		t.Fatalf("топ по пику должен уйти в ярус 1, получили %d", repo.assignments[2].Tier)
	}
}

func TestEnsureTiersOnceGuard(t *testing.T) {
	repo := newStubTierRepo()
	repo.add(1, 1)
	sharedCache := cache.NewMemory(atHour(0))
	s := NewScheduler(repo, sharedCache, 2, 2, atHour(0), zerolog.Nop())
	for i := 0; i < 3; i++ {
		if err := s.EnsureTiers(context.Background()); err != nil {
			t.Fatalf("не ожидали ошибку: %v", err)
		}
	}
	if repo.rebuilds != 1 {
		t.Fatalf("перекрывающиеся запуски должны перестраивать один раз, получили %d", repo.rebuilds)
	}
}

func TestHourlyCandidatesTierTwoOnEvenHours(t *testing.T) {
	repo := newStubTierRepo()
	repo.add(1, 1)
	repo.add(2, 2)
	repo.add(3, 3)

	even := newTestScheduler(repo, 14)
	got, err := even.HourlyCandidates(context.Background())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("в чётный час ожидали ярусы 1 и 2, получили %v", got)
	}

	odd := newTestScheduler(repo, 15)
	got, err = odd.HourlyCandidates(context.Background())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("в нечётный час ожидали только ярус 1, получили %v", got)
	}
}

func TestDailyCandidatesExcludeSkippedUntilExpiry(t *testing.T) {
	repo := newStubTierRepo()
	repo.add(10, 3)
	repo.add(11, 3)

	s := newTestScheduler(repo, 12)
	if err := s.ApplyFetchOutcomes(context.Background(), []int64{10}, []int64{11}); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	got, err := s.DailyCandidates(context.Background())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(got) != 1 || got[0] != 10 {
		t.Fatalf("невалидная игра должна исключаться, получили %v", got)
	}

	// Через 31 день skip_until истёк, игра снова в кандидатах.
	later := NewScheduler(repo, cache.NewMemory(nil), 2, 2, func() time.Time {
		return atHour(12)().Add(31 * 24 * time.Hour)
	}, zerolog.Nop())
	got, err = later.DailyCandidates(context.Background())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("после истечения skip_until ожидали обе игры, получили %v", got)
	}
}

func TestApplyFetchOutcomesClearsSkipOnValid(t *testing.T) {
	repo := newStubTierRepo()
	repo.add(10, 3)
	until := atHour(12)().Add(time.Hour)
	repo.assignments[10].SkipUntil = &until
	repo.assignments[10].FetchStatus = domain.FetchStatusInvalid

	s := newTestScheduler(repo, 12)
	if err := s.ApplyFetchOutcomes(context.Background(), []int64{10}, nil); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	a := repo.assignments[10]
	if a.FetchStatus != domain.FetchStatusValid || a.SkipUntil != nil {
		t.Fatalf("валидный результат должен сбрасывать skip_until, получили %+v", a)
	}
}
