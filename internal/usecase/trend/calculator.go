package trend

import (
	"math"
	"sort"
	"time"

	"game-pulse/internal/domain"
)

const (
	// deadbandPct — мёртвая зона: изменение в пределах ±2% считается stable.
	deadbandPct = 2.0
	recentDays  = 30
	midDays     = 90
	oldEntries  = 3
)

// Compute строит тренд по полной гистограмме игры. Возвращает nil,
// если корзин меньше двух: нулевой тренд не синтезируется.
func Compute(entries []domain.ReviewMonth, now time.Time) *domain.GameTrend {
	if len(entries) < 2 {
		return nil
	}

	sorted := make([]domain.ReviewMonth, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Month.After(sorted[j].Month)
	})

	recentCutoff := now.AddDate(0, 0, -recentDays)
	midCutoff := now.AddDate(0, 0, -midDays)

	var recent, mid, old []domain.ReviewMonth
	for _, e := range sorted {
		switch {
		case !e.Month.Before(recentCutoff):
			recent = append(recent, e)
		case !e.Month.Before(midCutoff):
			mid = append(mid, e)
		default:
			old = append(old, e)
		}
	}
	// Из корзин старше 90 дней берутся три самые старые.
	if len(old) > oldEntries {
		old = old[len(old)-oldEntries:]
	}

	currentRatio := positiveRatio(recent)
	previousRatio := positiveRatio(mid)
	change30 := changePct(currentRatio, previousRatio)

	combinedRatio := positiveRatio(append(append([]domain.ReviewMonth{}, recent...), mid...))
	oldRatio := positiveRatio(old)
	change90 := changePct(combinedRatio, oldRatio)

	recentTotal := 0
	for _, e := range recent {
		recentTotal += e.Total()
	}

	appID := sorted[0].AppID
	return &domain.GameTrend{
		AppID:             appID,
		Direction30d:      direction(change30),
		ChangePct30d:      round2(change30),
		Direction90d:      direction(change90),
		ChangePct90d:      round2(change90),
		CurrentRatio:      round4(currentRatio),
		PreviousRatio:     round4(previousRatio),
		ReviewVelocity7d:  round2(float64(recentTotal) / 7),
		ReviewVelocity30d: round2(float64(recentTotal) / float64(recentDays)),
		CalculatedAt:      now,
	}
}

// positiveRatio возвращает долю положительных рекомендаций окна.
func positiveRatio(entries []domain.ReviewMonth) float64 {
	up, total := 0, 0
	for _, e := range entries {
		up += e.Up
		total += e.Total()
	}
	if total == 0 {
		return 0
	}
	return float64(up) / float64(total)
}

// changePct возвращает процент изменения между окнами. Ноль в знаменателе
// даёт 0, а не бесконечность.
func changePct(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return (current - previous) / previous * 100
}

func direction(change float64) domain.TrendDirection {
	switch {
	case change > deadbandPct:
		return domain.TrendUp
	case change < -deadbandPct:
		return domain.TrendDown
	default:
		return domain.TrendStable
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
