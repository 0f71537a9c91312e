package priority

import (
	"math"

	"game-pulse/internal/domain"
)

// Бонусы и пороги аддитивной модели приоритета.
const (
	neverSyncedBase = 25

	ccuHighBonus   = 100
	ccuMediumBonus = 50
	ccuLowBonus    = 25

	velocityFastBonus   = 40
	velocityMediumBonus = 20
	velocitySlowBonus   = 10

	trendStrongBonus = 25
	trendMildBonus   = 15

	reviewsHugeBonus  = 20
	reviewsLargeBonus = 10
	reviewsSmallBonus = 5

	deadGamePenalty = 50
	// deadVelocityCeiling — ниже этой скорости отзывов игра считается мёртвой
	// (вместе с нулевым пиком CCU).
	deadVelocityCeiling = 0.1
)

// Thresholds — пороги пиков CCU, задаются конфигом.
type Thresholds struct {
	CCUHigh   int
	CCUMedium int
	CCULow    int
}

// DefaultThresholds — пороги по умолчанию.
func DefaultThresholds() Thresholds {
	return Thresholds{CCUHigh: 1000, CCUMedium: 100, CCULow: 10}
}

// ScoreInput — сигналы одной игры для расчёта приоритета.
type ScoreInput struct {
	NeverSynced      bool
	CCUPeak          int
	ReviewVelocity7d float64
	TrendChangePct   float64
	TotalReviews     int
}

// ScoreResult — приоритет и вытекающие из него ярус и интервал.
type ScoreResult struct {
	PriorityScore     int
	RefreshTier       domain.RefreshTier
	SyncIntervalHours int
}

// Scorer вычисляет приоритет игры. Чистая функция от текущих сигналов.
type Scorer struct {
	thresholds Thresholds
}

// NewScorer создаёт скорер с указанными порогами CCU.
func NewScorer(thresholds Thresholds) *Scorer {
	return &Scorer{thresholds: thresholds}
}

// Score считает аддитивный приоритет и отображает его в ярус и интервал.
func (s *Scorer) Score(in ScoreInput) ScoreResult {
	score := 0

	// Ни разу не синхронизированные игры получают базу: быстрый первый
	// заход вместо ошибочной классификации как мёртвых.
	if in.NeverSynced {
		score += neverSyncedBase
	}

	switch {
	case in.CCUPeak > s.thresholds.CCUHigh:
		score += ccuHighBonus
	case in.CCUPeak > s.thresholds.CCUMedium:
		score += ccuMediumBonus
	case in.CCUPeak > s.thresholds.CCULow:
		score += ccuLowBonus
	}

	switch {
	case in.ReviewVelocity7d > 10:
		score += velocityFastBonus
	case in.ReviewVelocity7d > 5:
		score += velocityMediumBonus
	case in.ReviewVelocity7d > 1:
		score += velocitySlowBonus
	}

	switch change := math.Abs(in.TrendChangePct); {
	case change > 10:
		score += trendStrongBonus
	case change > 5:
		score += trendMildBonus
	}

	switch {
	case in.TotalReviews > 10000:
		score += reviewsHugeBonus
	case in.TotalReviews > 1000:
		score += reviewsLargeBonus
	case in.TotalReviews > 100:
		score += reviewsSmallBonus
	}

	// Штраф за мёртвую игру не трогает ни разу не синхронизированные:
	// по ним ещё нет данных.
	if !in.NeverSynced && in.CCUPeak == 0 && in.ReviewVelocity7d < deadVelocityCeiling {
		score -= deadGamePenalty
	}

	if score < 0 {
		score = 0
	}

	tier, interval := mapScore(score)
	return ScoreResult{PriorityScore: score, RefreshTier: tier, SyncIntervalHours: interval}
}

// mapScore отображает приоритет в ярус и интервал. Интервал монотонно
// не растёт с ростом приоритета.
func mapScore(score int) (domain.RefreshTier, int) {
	switch {
	case score >= 150:
		return domain.RefreshTierActive, 6
	case score >= 100:
		return domain.RefreshTierActive, 12
	case score >= 50:
		return domain.RefreshTierModerate, 24
	case score >= 25:
		return domain.RefreshTierModerate, 48
	case score > 0:
		return domain.RefreshTierDormant, 168
	default:
		return domain.RefreshTierDead, 168
	}
}
