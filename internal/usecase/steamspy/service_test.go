package steamspy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"game-pulse/internal/domain"
	"game-pulse/internal/usecase/ccu"
	"game-pulse/internal/usecase/fetch"
	"game-pulse/internal/usecase/syncrun"
)

type stubStatusRepo struct {
	due    []domain.SyncStatus
	synced []int64
	errors []int64
}

func (s *stubStatusRepo) ListPage(context.Context, int64, int) (domain.SyncStatusPage, error) {
	return domain.SyncStatusPage{}, nil
}

func (s *stubStatusRepo) ListDueForSource(context.Context, string, time.Time, int) ([]domain.SyncStatus, error) {
	return s.due, nil
}

func (s *stubStatusRepo) UpsertPriorities(context.Context, []domain.PriorityUpdate) error {
	return nil
}

func (s *stubStatusRepo) MarkSourceSynced(_ context.Context, _ string, appIDs []int64, _ time.Time) error {
	s.synced = append(s.synced, appIDs...)
	return nil
}

func (s *stubStatusRepo) IncrementErrors(_ context.Context, appIDs []int64) error {
	s.errors = append(s.errors, appIDs...)
	return nil
}

type stubDailyRepo struct {
	peaksReadErr error
	peaks        map[int64]int
	owners       map[int64]domain.OwnersSnapshot
}

func newStubDailyRepo() *stubDailyRepo {
	return &stubDailyRepo{peaks: make(map[int64]int), owners: make(map[int64]domain.OwnersSnapshot)}
}

func (s *stubDailyRepo) GetCCUPeaks(_ context.Context, _ time.Time, appIDs []int64) (map[int64]int, error) {
	if s.peaksReadErr != nil {
		return nil, s.peaksReadErr
	}
	out := make(map[int64]int, len(appIDs))
	for _, id := range appIDs {
		if peak, ok := s.peaks[id]; ok {
			out[id] = peak
		}
	}
	return out, nil
}

func (s *stubDailyRepo) UpsertCCUPeaks(_ context.Context, _ time.Time, _ string, peaks map[int64]int) error {
	for id, peak := range peaks {
		s.peaks[id] = peak
	}
	return nil
}

func (s *stubDailyRepo) UpsertOwnerCounts(_ context.Context, _ time.Time, snapshots map[int64]domain.OwnersSnapshot) error {
	for id, snap := range snapshots {
		s.owners[id] = snap
	}
	return nil
}

func (s *stubDailyRepo) LatestMetrics(context.Context, []int64) (map[int64]domain.DailyMetric, error) {
	return nil, nil
}

type stubOwnersSource struct {
	snapshots map[int64]domain.OwnersSnapshot
}

func (s *stubOwnersSource) FetchOwners(_ context.Context, appID int64) (domain.OwnersSnapshot, error) {
	snap, ok := s.snapshots[appID]
	if !ok {
		return domain.OwnersSnapshot{}, domain.ErrAppInvalid
	}
	return snap, nil
}

func fixedNow() time.Time {
	return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
}

func newTestService(statuses *stubStatusRepo, dailies *stubDailyRepo, source *stubOwnersSource) *Service {
	merger := ccu.NewMerger(dailies, 0, zerolog.Nop())
	executor := fetch.NewExecutor(2, 100)
	return NewService(statuses, dailies, merger, source, executor, 100, fixedNow, zerolog.Nop())
}

func TestSyncStoresOwnersAndMergesCCU(t *testing.T) {
	statuses := &stubStatusRepo{due: []domain.SyncStatus{{AppID: 730, IsSyncable: true}}}
	dailies := newStubDailyRepo()
	source := &stubOwnersSource{snapshots: map[int64]domain.OwnersSnapshot{
		730: {OwnersEstimate: 1500000, PositiveReviews: 12000, NegativeReviews: 800, CCU: 4200},
	}}
	svc := newTestService(statuses, dailies, source)

	run := &syncrun.Run{}
	if err := svc.Sync(context.Background(), run); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if run.Counters.Processed != 1 || run.Counters.Succeeded != 1 || run.Counters.Failed != 0 {
		t.Fatalf("неожиданные счётчики: %+v", run.Counters)
	}
	if dailies.owners[730].OwnersEstimate != 1500000 {
		t.Fatalf("снапшот владельцев не записан: %+v", dailies.owners[730])
	}
	if dailies.peaks[730] != 4200 {
		t.Fatalf("CCU из SteamSpy должен попасть в дневной пик, получили %d", dailies.peaks[730])
	}
	if len(statuses.synced) != 1 || statuses.synced[0] != 730 {
		t.Fatalf("игра должна быть отмечена синхронизированной, получили %v", statuses.synced)
	}
}

func TestSyncCountsFailedCCUMerge(t *testing.T) {
	statuses := &stubStatusRepo{due: []domain.SyncStatus{{AppID: 730, IsSyncable: true}}}
	dailies := newStubDailyRepo()
	dailies.peaksReadErr = errors.New("база недоступна")
	source := &stubOwnersSource{snapshots: map[int64]domain.OwnersSnapshot{
		730: {OwnersEstimate: 1500000, PositiveReviews: 12000, NegativeReviews: 800, CCU: 4200},
	}}
	svc := newTestService(statuses, dailies, source)

	run := &syncrun.Run{}
	if err := svc.Sync(context.Background(), run); err != nil {
		t.Fatalf("провал попутного мерджа не должен ронять синк: %v", err)
	}
	// Снапшот владельцев записан, но провал мерджа CCU виден в счётчиках.
	if run.Counters.Succeeded != 1 {
		t.Fatalf("синк владельцев должен остаться успешным, получили %+v", run.Counters)
	}
	if run.Counters.Failed != 1 {
		t.Fatalf("провал мерджа CCU должен попасть в счётчик failed, получили %+v", run.Counters)
	}
	if dailies.owners[730].OwnersEstimate != 1500000 {
		t.Fatalf("снапшот владельцев не записан: %+v", dailies.owners[730])
	}
}
