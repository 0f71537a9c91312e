package trend

import (
	"testing"
	"time"

	"game-pulse/internal/domain"
)

var testNow = time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

func month(daysAgo, up, down int) domain.ReviewMonth {
	return domain.ReviewMonth{
		AppID: 440,
		Month: testNow.AddDate(0, 0, -daysAgo),
		Up:    up,
		Down:  down,
	}
}

func TestComputeRequiresTwoEntries(t *testing.T) {
	if got := Compute(nil, testNow); got != nil {
		t.Fatalf("для пустой гистограммы ожидали nil")
	}
	if got := Compute([]domain.ReviewMonth{month(5, 10, 2)}, testNow); got != nil {
		t.Fatalf("для одной корзины ожидали nil")
	}
}

func TestComputeDirectionUp(t *testing.T) {
	// Недавнее окно 90% положительных, среднее 50% — рост.
	entries := []domain.ReviewMonth{
		month(10, 90, 10),
		month(45, 50, 50),
	}
	tr := Compute(entries, testNow)
	if tr == nil {
		t.Fatalf("ожидали тренд")
	}
	if tr.Direction30d != domain.TrendUp {
		t.Fatalf("ожидали up, получили %s", tr.Direction30d)
	}
	if tr.ChangePct30d != 80.0 {
		t.Fatalf("ожидали +80%%, получили %v", tr.ChangePct30d)
	}
	if tr.CurrentRatio != 0.9 {
		t.Fatalf("ожидали долю 0.9, получили %v", tr.CurrentRatio)
	}
	if tr.PreviousRatio != 0.5 {
		t.Fatalf("ожидали долю 0.5, получили %v", tr.PreviousRatio)
	}
}

func TestComputeStableWithinDeadband(t *testing.T) {
	// 51% против 50% — изменение +2%, в пределах мёртвой зоны.
	entries := []domain.ReviewMonth{
		month(10, 51, 49),
		month(45, 50, 50),
	}
	tr := Compute(entries, testNow)
	if tr == nil {
		t.Fatalf("ожидали тренд")
	}
	if tr.Direction30d != domain.TrendStable {
		t.Fatalf("изменение в пределах ±2%% должно быть stable, получили %s", tr.Direction30d)
	}
}

func TestComputeDirectionDown(t *testing.T) {
	entries := []domain.ReviewMonth{
		month(10, 40, 60),
		month(45, 80, 20),
	}
	tr := Compute(entries, testNow)
	if tr == nil {
		t.Fatalf("ожидали тренд")
	}
	if tr.Direction30d != domain.TrendDown {
		t.Fatalf("ожидали down, получили %s", tr.Direction30d)
	}
	if tr.ChangePct30d != -50.0 {
		t.Fatalf("ожидали -50%%, получили %v", tr.ChangePct30d)
	}
}

func TestComputeZeroPreviousRatioGivesZeroChange(t *testing.T) {
	entries := []domain.ReviewMonth{
		month(10, 30, 0),
		month(45, 0, 20),
	}
	tr := Compute(entries, testNow)
	if tr == nil {
		t.Fatalf("ожидали тренд")
	}
	if tr.ChangePct30d != 0 {
		t.Fatalf("при нулевой прошлой доле изменение должно быть 0, получили %v", tr.ChangePct30d)
	}
	if tr.Direction30d != domain.TrendStable {
		t.Fatalf("ожидали stable, получили %s", tr.Direction30d)
	}
}

func TestComputeVelocities(t *testing.T) {
	entries := []domain.ReviewMonth{
		month(5, 100, 40),
		month(20, 50, 20),
		month(45, 10, 10),
	}
	tr := Compute(entries, testNow)
	if tr == nil {
		t.Fatalf("ожидали тренд")
	}
	// В недавнем окне 210 рекомендаций.
	if tr.ReviewVelocity7d != 30.0 {
		t.Fatalf("ожидали 30 в день за 7 дней, получили %v", tr.ReviewVelocity7d)
	}
	if tr.ReviewVelocity30d != 7.0 {
		t.Fatalf("ожидали 7 в день за 30 дней, получили %v", tr.ReviewVelocity30d)
	}
}

func TestComputeNinetyDayWindowUsesOldestThree(t *testing.T) {
	// Недавнее+среднее окна 75% положительных, старое 25% — рост на 90 днях.
	entries := []domain.ReviewMonth{
		month(10, 75, 25),
		month(60, 75, 25),
		month(120, 100, 0), // не входит: берутся три самые старые корзины
		month(150, 25, 75),
		month(180, 25, 75),
		month(210, 25, 75),
	}
	tr := Compute(entries, testNow)
	if tr == nil {
		t.Fatalf("ожидали тренд")
	}
	if tr.Direction90d != domain.TrendUp {
		t.Fatalf("ожидали up на 90 днях, получили %s", tr.Direction90d)
	}
	if tr.ChangePct90d != 200.0 {
		t.Fatalf("ожидали +200%%, получили %v", tr.ChangePct90d)
	}
}
