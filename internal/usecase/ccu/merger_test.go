package ccu

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"game-pulse/internal/domain"
)

type stubDailyRepo struct {
	peaks     map[int64]int
	readErr   error
	writeErr  error
	upserts   int
	lastWrite map[int64]int
}

func newStubDailyRepo() *stubDailyRepo {
	return &stubDailyRepo{peaks: make(map[int64]int)}
}

func (s *stubDailyRepo) GetCCUPeaks(_ context.Context, _ time.Time, appIDs []int64) (map[int64]int, error) {
	if s.readErr != nil {
		return nil, s.readErr
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
	if s.writeErr != nil {
		return s.writeErr
	}
	s.upserts++
	s.lastWrite = peaks
	for id, peak := range peaks {
		s.peaks[id] = peak
	}
	return nil
}

func (s *stubDailyRepo) UpsertOwnerCounts(context.Context, time.Time, map[int64]domain.OwnersSnapshot) error {
	return nil
}

func (s *stubDailyRepo) LatestMetrics(context.Context, []int64) (map[int64]domain.DailyMetric, error) {
	return nil, nil
}

var testDay = time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

func TestMergeKeepsMaxRegardlessOfOrder(t *testing.T) {
	cases := []struct {
		name  string
		first int
		then  int
	}{
		{"большее затем меньшее", 50, 30},
		{"меньшее затем большее", 30, 50},
		{"равные значения", 50, 50},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newStubDailyRepo()
			m := NewMerger(repo, 0, zerolog.Nop())

			ok, failed := m.MergeCCUPeaks(context.Background(), testDay, domain.CCUSourceSteamAPI, map[int64]int{730: tc.first})
			if ok != 1 || failed != 0 {
				t.Fatalf("первая запись: ожидали успех, получили ok=%d failed=%d", ok, failed)
			}
			ok, failed = m.MergeCCUPeaks(context.Background(), testDay, domain.CCUSourceSteamAPI, map[int64]int{730: tc.then})
			if ok != 1 || failed != 0 {
				t.Fatalf("вторая запись: ожидали успех (no-op тоже успех), получили ok=%d failed=%d", ok, failed)
			}
			if repo.peaks[730] != 50 {
				t.Fatalf("ожидали сохранённый пик 50, получили %d", repo.peaks[730])
			}
		})
	}
}

func TestMergeSkipsLowerWithoutWrite(t *testing.T) {
	repo := newStubDailyRepo()
	repo.peaks[730] = 100
	m := NewMerger(repo, 0, zerolog.Nop())

	ok, failed := m.MergeCCUPeaks(context.Background(), testDay, domain.CCUSourceSteamAPI, map[int64]int{730: 40})
	if ok != 1 || failed != 0 {
		t.Fatalf("меньшее значение — успешный no-op, получили ok=%d failed=%d", ok, failed)
	}
	if repo.upserts != 0 {
		t.Fatalf("запись не должна была выполняться")
	}
	if repo.peaks[730] != 100 {
		t.Fatalf("сохранённый пик не должен уменьшаться, получили %d", repo.peaks[730])
	}
}

func TestMergeCountsFailedBatch(t *testing.T) {
	repo := newStubDailyRepo()
	repo.writeErr = errors.New("база недоступна")
	m := NewMerger(repo, 0, zerolog.Nop())

	values := map[int64]int{1: 10, 2: 20, 3: 30}
	ok, failed := m.MergeCCUPeaks(context.Background(), testDay, domain.CCUSourceSteamAPI, values)
	if ok != 0 || failed != 3 {
		t.Fatalf("ожидали весь батч неуспешным, получили ok=%d failed=%d", ok, failed)
	}
}

func TestMergeSplitsIntoBatches(t *testing.T) {
	repo := newStubDailyRepo()
	m := NewMerger(repo, 0, zerolog.Nop())

	values := make(map[int64]int, mergeBatchSize+50)
	for i := 0; i < mergeBatchSize+50; i++ {
		values[int64(i+1)] = i
	}
	ok, failed := m.MergeCCUPeaks(context.Background(), testDay, domain.CCUSourceSteamAPI, values)
	if ok != mergeBatchSize+50 || failed != 0 {
		t.Fatalf("ожидали все записи успешными, получили ok=%d failed=%d", ok, failed)
	}
	if repo.upserts != 2 {
		t.Fatalf("ожидали 2 батча, получили %d", repo.upserts)
	}
}

func TestMergeRespectsConfiguredBatchSize(t *testing.T) {
	repo := newStubDailyRepo()
	m := NewMerger(repo, 10, zerolog.Nop())

	values := make(map[int64]int, 25)
	for i := 0; i < 25; i++ {
		values[int64(i+1)] = i + 1
	}
	ok, failed := m.MergeCCUPeaks(context.Background(), testDay, domain.CCUSourceSteamAPI, values)
	if ok != 25 || failed != 0 {
		t.Fatalf("ожидали все записи успешными, получили ok=%d failed=%d", ok, failed)
	}
	if repo.upserts != 3 {
		t.Fatalf("при размере батча 10 ожидали 3 батча, получили %d", repo.upserts)
	}
}
